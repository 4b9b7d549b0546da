package models

import "github.com/hyperjump/tokkyo/internal/errs"

// Default search parameters, used when the request leaves them unset.
const (
	DefaultTopK      = 5
	DefaultThreshold = 0.5
)

// SearchQuery represents a search request.
// TopK and Threshold are pointers so an explicit 0 is distinguishable from
// unset: unset falls back to the configured default, explicit 0 is rejected
// for k and honored for the threshold.
type SearchQuery struct {
	Text      string   `json:"text"`
	TopK      *int     `json:"k,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

// ThresholdOrDefault returns the requested threshold, or def when unset.
func (q *SearchQuery) ThresholdOrDefault(def float64) float64 {
	if q.Threshold == nil {
		return def
	}
	return *q.Threshold
}

// Validate checks the query and fills defaults. It must run before any
// adapter call so invalid requests never reach the embedding model.
// maxK caps the number of results; 0 means no cap.
func (q *SearchQuery) Validate(defaultK int, defaultThreshold float64, maxK int) error {
	if q.Text == "" {
		return errs.InvalidInput("query text cannot be empty")
	}
	if q.TopK == nil {
		k := defaultK
		q.TopK = &k
	}
	if *q.TopK <= 0 {
		return errs.InvalidParameter("k must be positive, got %d", *q.TopK)
	}
	if maxK > 0 && *q.TopK > maxK {
		capped := maxK
		q.TopK = &capped
	}
	if q.Threshold == nil {
		t := defaultThreshold
		q.Threshold = &t
	}
	if *q.Threshold < 0 || *q.Threshold > 1 {
		return errs.InvalidParameter("threshold must be in [0,1], got %g", *q.Threshold)
	}
	return nil
}
