// Package models defines core data structures for documents, queries, and search results.
package models

import "time"

// LanguageUnknown is the language code used when detection fails or times out.
const LanguageUnknown = "unknown"

// Document represents a stored patent abstract with metadata.
// Text is immutable once stored; re-adding the same ID replaces the whole document.
type Document struct {
	ID        string         `json:"id" db:"id"`
	Text      string         `json:"text" db:"text"`
	Language  string         `json:"language" db:"language"`
	Metadata  map[string]any `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" db:"updated_at"`
}

// DocumentInput is a single item of a batch add request.
// Metadata is opaque: the service stores and returns it unmodified.
type DocumentInput struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
