package repositories

import "context"

// SearchResult is one organic web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
	Source  string `json:"source,omitempty"`
}

// WebSearch abstracts the optional web-lookup sub-step of reply generation.
type WebSearch interface {
	Search(ctx context.Context, query string, numResults int) ([]SearchResult, error)
}
