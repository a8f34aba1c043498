package model

import (
	"fmt"
	"strings"
	"time"
)

// AIData key names that are not field keys.
const (
	// KeyAccuracy holds the ingestion-time accuracy score.
	KeyAccuracy = "accuracy"
	// KeyFieldConfidences holds the derived tracked-field confidence map.
	KeyFieldConfidences = "fieldConfidences"
	// KeyRawOutput holds unparsed model output when the proposal could not
	// be parsed as structured data. A record carrying only this key is a
	// degraded record: no fields, no confidences, no accuracy.
	KeyRawOutput = "raw_output"
)

// AIData is the flattened extraction result stored on a document:
// field values, <field>_confidence scores, the derived fieldConfidences
// map and accuracy score. Values are JSON-shaped (string, float64,
// []any, nil) because the map round-trips through the store as JSON.
type AIData map[string]any

// Degraded reports whether this record carries only raw unparsed output.
func (d AIData) Degraded() bool {
	_, ok := d[KeyRawOutput]
	return ok
}

// Accuracy returns the stored accuracy score, or 0 if absent or non-numeric.
func (d AIData) Accuracy() float64 {
	f, _ := ToFloat64(d[KeyAccuracy])
	return f
}

// FieldConfidence returns the confidence recorded for a tracked field in
// the derived fieldConfidences map. The second return is false when the
// map or entry is missing, or the entry is not numeric.
func (d AIData) FieldConfidence(field string) (float64, bool) {
	m, ok := d[KeyFieldConfidences].(map[string]any)
	if !ok {
		return 0, false
	}
	v, ok := m[field]
	if !ok || v == nil {
		return 0, false
	}
	return ToFloat64(v)
}

// StringValue renders the value stored under key as a trimmed string.
// Nil and missing values render as "".
func (d AIData) StringValue(key string) string {
	v, ok := d[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprintf("%v", v))
}

// ToFloat64 converts JSON-shaped numeric values to float64.
func ToFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Document is the stored record for one ingested policy PDF.
//
// UserData holds only the fields whose corrected value differed from the
// AI value at the last save; it is replaced wholesale on each save, never
// merged. Concurrent saves to the same document race at the store layer
// and the last writer wins.
type Document struct {
	ID        string            `json:"id"`
	Name      string            `json:"pdfName"`
	AIData    AIData            `json:"ai_data"`
	UserData  map[string]string `json:"user_updated_data,omitempty"`
	PageCount int               `json:"pageCount"`
	WordCount int               `json:"wordCount"`
	OwnerID   string            `json:"user_id"`
	Timestamp time.Time         `json:"timestamp"`
}

// Summary is the list-view projection of a Document.
type Summary struct {
	ID               string             `json:"id"`
	Name             string             `json:"pdfName"`
	Accuracy         float64            `json:"accuracy"`
	FieldConfidences map[string]float64 `json:"field_confidences"`
	PageCount        int                `json:"pageCount"`
	WordCount        int                `json:"wordCount"`
	Timestamp        string             `json:"timestamp"`
}

// Summarize projects a Document into its list view. The timestamp is
// formatted for display as DD-MM-YYYY HH:MM.
func (doc *Document) Summarize() Summary {
	confs := make(map[string]float64)
	for _, field := range TrackedFields() {
		if c, ok := doc.AIData.FieldConfidence(field); ok {
			confs[field] = c
		}
	}
	return Summary{
		ID:               doc.ID,
		Name:             doc.Name,
		Accuracy:         doc.AIData.Accuracy(),
		FieldConfidences: confs,
		PageCount:        doc.PageCount,
		WordCount:        doc.WordCount,
		Timestamp:        doc.Timestamp.Format("02-01-2006 15:04"),
	}
}
