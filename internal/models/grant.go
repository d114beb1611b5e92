package models

import "fmt"

// RawRecord is one grant program as it appears in the source data: an
// arbitrary mapping of field names to scalar values. No field is required.
type RawRecord map[string]interface{}

// GetString returns the named field rendered as a string, or the empty
// string when the field is absent or nil.
func (r RawRecord) GetString(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	// JSON numbers decode as float64; render integral values without the
	// trailing ".0" so program ids keep their original form.
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprint(v)
}

// Document is a normalized grant record: a flat text rendering of every
// field plus a fixed metadata projection.
type Document struct {
	Text     string
	Metadata map[string]string
}

// Chunk is a bounded window of a Document's text. Metadata is copied from
// the parent document; a chunk never spans two records.
type Chunk struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// SearchResult pairs a retrieved chunk with its distance score.
// Lower scores mean closer matches.
type SearchResult struct {
	Chunk Chunk
	Score float32
}

// GrantType labels a grant's intended applicant. The wire values match the
// upstream API contract.
type GrantType string

const (
	GrantTypeOrganization GrantType = "COMPANY"
	GrantTypeIndividual   GrantType = "INDIVIDUAL"
)
