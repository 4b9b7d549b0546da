package models

// SearchResult represents a single search hit. It is assembled at query time
// and never persisted.
type SearchResult struct {
	ID          string         `json:"id"`
	Text        string         `json:"text"`
	Similarity  float64        `json:"similarity"`
	Language    string         `json:"language"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Explanation string         `json:"explanation"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Results       []*SearchResult `json:"results"`
	QueryLanguage string          `json:"query_language"`
	Total         int             `json:"total"`
	QueryTime     int64           `json:"query_time_ms"`
	Query         string          `json:"query"`
}

// AddResult is the per-item outcome of a batch add. Exactly one of ID and
// Error is set.
type AddResult struct {
	ID    string `json:"id,omitempty"`
	Error string `json:"error,omitempty"`
}

// OK reports whether the item was added.
func (r *AddResult) OK() bool {
	return r.Error == ""
}
