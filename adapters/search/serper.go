package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rahulvarma2468/ai-voice-agent/domain/repositories"
)

const (
	defaultEndpoint   = "https://google.serper.dev/search"
	defaultNumResults = 5
	maxNumResults     = 10
)

// SerperConfig holds configuration for the Serper search adapter.
type SerperConfig struct {
	APIKey   string
	Endpoint string
}

// SerperSearch implements WebSearch using the Serper Google Search API.
type SerperSearch struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ repositories.WebSearch = (*SerperSearch)(nil)

type serperRequest struct {
	Query string `json:"q"`
	Num   int    `json:"num"`
}

type serperResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
	AnswerBox struct {
		Answer  string `json:"answer"`
		Snippet string `json:"snippet"`
		Title   string `json:"title"`
	} `json:"answerBox"`
}

// NewSerperSearch creates a new Serper search instance.
func NewSerperSearch(config SerperConfig, logger *zap.Logger) (*SerperSearch, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("serper API key is required")
	}

	endpoint := config.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	return &SerperSearch{
		apiKey:     config.APIKey,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}, nil
}

// Search runs a web query and returns the organic results. An answer box, when
// present, is surfaced as the first result.
func (s *SerperSearch) Search(ctx context.Context, query string, numResults int) ([]repositories.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}
	if numResults <= 0 {
		numResults = defaultNumResults
	}
	if numResults > maxNumResults {
		numResults = maxNumResults
	}

	requestBody, err := json.Marshal(serperRequest{Query: query, Num: numResults})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-KEY", s.apiKey)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(resp.Body)
		s.logger.Error("Serper API returned error",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("response", string(errorBody)))
		return nil, fmt.Errorf("search API error: status %d", resp.StatusCode)
	}

	var result serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	var results []repositories.SearchResult

	if result.AnswerBox.Answer != "" || result.AnswerBox.Snippet != "" {
		snippet := result.AnswerBox.Answer
		if snippet == "" {
			snippet = result.AnswerBox.Snippet
		}
		results = append(results, repositories.SearchResult{
			Title:   result.AnswerBox.Title,
			Snippet: snippet,
			Source:  "answer_box",
		})
	}

	for _, item := range result.Organic {
		if len(results) >= numResults {
			break
		}
		results = append(results, repositories.SearchResult{
			Title:   item.Title,
			Link:    item.Link,
			Snippet: item.Snippet,
			Source:  "organic",
		})
	}

	s.logger.Info("Web search completed",
		zap.String("query", query),
		zap.Int("results", len(results)))

	return results, nil
}

// NewSerperConfigFromEnv creates a SerperConfig from environment variables.
func NewSerperConfigFromEnv() SerperConfig {
	return SerperConfig{
		APIKey:   strings.Trim(os.Getenv("SERPER_API_KEY"), `"'`),
		Endpoint: os.Getenv("SERPER_ENDPOINT"),
	}
}
