package persona

import (
	"strings"
	"testing"

	"github.com/rahulvarma2468/ai-voice-agent/domain/repositories"
)

func TestFindLore(t *testing.T) {
	entry, ok := FindLore("Tell me about DRAGONS please")
	if !ok {
		t.Fatal("no lore found for dragons")
	}
	if entry.Title != "The Chronicle of Wyrms" {
		t.Errorf("title = %q", entry.Title)
	}

	if _, ok := FindLore("what is the capital of France"); ok {
		t.Error("found lore for a topic with no entry")
	}
}

func TestShouldSearch(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"what's the latest news about the eclipse", true},
		{"how much does a telescope cost", true},
		{"tell me about dragons", true}, // "tell me about" is an indicator
		{"explain the meaning of magic", false},
		{"WEATHER in london", true},
	}
	for _, c := range cases {
		if got := ShouldSearch(c.text); got != c.want {
			t.Errorf("ShouldSearch(%q) = %v, want %v", c.text, got, c.want)
		}
	}
}

func TestExtractSearchQuery(t *testing.T) {
	got := ExtractSearchQuery("Please can you search for the latest eclipse news")
	if strings.Contains(strings.ToLower(got), "please") || strings.Contains(strings.ToLower(got), "search for") {
		t.Errorf("filler not stripped: %q", got)
	}

	long := strings.Repeat("word ", 20)
	if words := strings.Fields(ExtractSearchQuery(long)); len(words) > 10 {
		t.Errorf("query not capped: %d words", len(words))
	}
}

func TestFormatSearchResults(t *testing.T) {
	if got := FormatSearchResults("q", nil); got != "No search results available." {
		t.Errorf("empty results = %q", got)
	}

	results := []repositories.SearchResult{
		{Title: "One", Snippet: "a", Link: "l1"},
		{Title: "Two", Snippet: "b", Link: "l2"},
		{Title: "Three", Snippet: "c", Link: "l3"},
		{Title: "Four", Snippet: "d", Link: "l4"},
	}
	got := FormatSearchResults("q", results)
	if !strings.Contains(got, "Three") {
		t.Error("third result missing")
	}
	if strings.Contains(got, "Four") {
		t.Error("results not capped at three")
	}
}

func TestErrorResponsesAreInCharacter(t *testing.T) {
	kinds := []ErrorKind{ErrorTranscription, ErrorGeneration, ErrorSynthesis, ErrorSearch, ErrorGeneral}
	seen := map[string]bool{}
	for _, k := range kinds {
		msg := ErrorResponse(k)
		if msg == "" {
			t.Errorf("empty message for %s", k)
		}
		seen[msg] = true
	}
	if len(seen) != len(kinds) {
		t.Error("error messages are not distinct")
	}

	if ErrorResponse("bogus") == "" {
		t.Error("unknown kind has no fallback message")
	}
}

func TestGreetingNonEmpty(t *testing.T) {
	for i := 0; i < 20; i++ {
		if Greeting() == "" {
			t.Fatal("empty greeting")
		}
	}
}
