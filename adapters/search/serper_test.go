package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func newTestSearch(t *testing.T, handler http.HandlerFunc) *SerperSearch {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s, err := NewSerperSearch(SerperConfig{APIKey: "test-key", Endpoint: srv.URL}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSerperSearch failed: %v", err)
	}
	return s
}

func TestSerperSearch(t *testing.T) {
	s := newTestSearch(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-KEY") != "test-key" {
			t.Error("missing X-API-KEY header")
		}
		var req serperRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request: %v", err)
		}
		if req.Query != "weather today" {
			t.Errorf("query = %q", req.Query)
		}
		fmt.Fprint(w, `{"organic":[
			{"title":"Weather","link":"https://a","snippet":"Sunny"},
			{"title":"Forecast","link":"https://b","snippet":"Rain later"}
		]}`)
	})

	results, err := s.Search(context.Background(), "weather today", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Title != "Weather" || results[0].Source != "organic" {
		t.Errorf("first result = %+v", results[0])
	}
}

func TestSerperAnswerBoxFirst(t *testing.T) {
	s := newTestSearch(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"answerBox":{"answer":"42","title":"The Answer"},
			"organic":[{"title":"Other","link":"https://x","snippet":"..."}]
		}`)
	})

	results, err := s.Search(context.Background(), "the answer", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Source != "answer_box" || results[0].Snippet != "42" {
		t.Errorf("first result = %+v, want answer box", results[0])
	}
}

func TestSerperErrors(t *testing.T) {
	s := newTestSearch(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	if _, err := s.Search(context.Background(), "anything", 5); err == nil {
		t.Fatal("expected error on API failure")
	}
	if _, err := s.Search(context.Background(), "  ", 5); err == nil {
		t.Fatal("expected error for empty query")
	}
	if _, err := NewSerperSearch(SerperConfig{}, zap.NewNop()); err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestSerperCapsResultCount(t *testing.T) {
	s := newTestSearch(t, func(w http.ResponseWriter, r *http.Request) {
		var req serperRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Num != maxNumResults {
			t.Errorf("num = %d, want capped at %d", req.Num, maxNumResults)
		}
		fmt.Fprint(w, `{"organic":[]}`)
	})

	if _, err := s.Search(context.Background(), "q", 100); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
}
