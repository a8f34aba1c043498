// Package analytics aggregates confidence, accuracy and correction
// statistics over a user's stored documents.
package analytics

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/smartdoc/policyd/internal/apperr"
	"github.com/smartdoc/policyd/internal/corrections"
	"github.com/smartdoc/policyd/internal/model"
	"github.com/smartdoc/policyd/internal/store"
)

// Result is the record-level analytics view over a window of documents.
type Result struct {
	TotalDocuments   int                `json:"total_pdfs"`
	FieldConfidences map[string]float64 `json:"field_confidences"`
	TopReviewFields  []string           `json:"top_review_fields"`
	LowestAccuracy   *LowestAccuracy    `json:"lowest_accuracy_pdf"`
}

// LowestAccuracy identifies the least accurate document in the window.
// Name is nil when no document scored below the 100.0 starting point.
type LowestAccuracy struct {
	Name     *string `json:"pdfName"`
	Accuracy float64 `json:"accuracy"`
}

// Engine computes analytics over the document store.
type Engine struct {
	store store.Store
	now   func() time.Time
}

// NewEngine creates an Engine. nowFn may be nil to use time.Now.
func NewEngine(st store.Store, nowFn func() time.Time) *Engine {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Engine{store: st, now: nowFn}
}

// Calculate aggregates the window's documents into a Result. An empty
// selection is a defined zero result, never an error. ownerID may be
// empty to aggregate across all owners.
//
// Per-document accuracy here is recomputed from the live correction
// diff, independent of the accuracy stored at ingestion: a document
// loses 1/3 of its score for each tracked field the reviewer changed.
// Trend aggregation uses the stored score instead; both computations
// are load-bearing, so neither replaces the other.
func (e *Engine) Calculate(ctx context.Context, ownerID string, window model.Window) (*Result, error) {
	cutoff := model.AnalyticsCutoff(window, e.now())
	docs, err := e.store.ListSince(ctx, ownerID, cutoff)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, err, "analytics: list documents")
	}

	if len(docs) == 0 {
		return &Result{
			FieldConfidences: map[string]float64{},
			TopReviewFields:  []string{},
		}, nil
	}

	tracked := model.TrackedFields()
	confObservations := make(map[string][]float64, len(tracked))
	reviewCounts := make(map[string]int, len(tracked))
	lowest := &LowestAccuracy{Accuracy: 100.0}

	for i := range docs {
		doc := &docs[i]

		for _, field := range tracked {
			if conf, ok := doc.AIData.FieldConfidence(field); ok {
				confObservations[field] = append(confObservations[field], conf)
			}

			// A field counts toward review frequency only when the AI
			// produced a value and the reviewer replaced it.
			aiVal := doc.AIData.StringValue(field)
			userVal, hasUser := doc.UserData[field]
			if aiVal != "" && hasUser && userVal != "" &&
				corrections.CorrectedDiffers(doc.AIData[field], userVal) {
				reviewCounts[field]++
			}
		}

		accuracy := documentAccuracy(doc, tracked)
		if accuracy < lowest.Accuracy {
			name := doc.Name
			lowest = &LowestAccuracy{Name: &name, Accuracy: accuracy}
		}
	}

	return &Result{
		TotalDocuments:   len(docs),
		FieldConfidences: meanConfidences(confObservations),
		TopReviewFields:  topReviewFields(reviewCounts, tracked),
		LowestAccuracy:   lowest,
	}, nil
}

// documentAccuracy scores a document by how many tracked fields the
// reviewer corrected: round(((n - corrected) / n) * 100, 2). Unlike the
// review counters, a correction counts here even when the AI value was
// empty: filling in a missed field still costs accuracy.
func documentAccuracy(doc *model.Document, tracked []string) float64 {
	corrected := 0
	for _, field := range tracked {
		userVal, ok := doc.UserData[field]
		if ok && userVal != "" && corrections.CorrectedDiffers(doc.AIData[field], userVal) {
			corrected++
		}
	}
	n := len(tracked)
	if n == 0 {
		return 100.0
	}
	return round2(float64(n-corrected) / float64(n) * 100)
}

// meanConfidences averages each field's observations to two decimals.
// Fields with no numeric observations are absent from the result.
func meanConfidences(observations map[string][]float64) map[string]float64 {
	out := make(map[string]float64, len(observations))
	for field, vals := range observations {
		if len(vals) == 0 {
			continue
		}
		var sum float64
		for _, v := range vals {
			sum += v
		}
		out[field] = round2(sum / float64(len(vals)))
	}
	return out
}

// topReviewFields ranks fields by correction count, descending, keeping
// at most three. Ties keep schema declaration order; fields never
// corrected are omitted.
func topReviewFields(counts map[string]int, tracked []string) []string {
	fields := make([]string, 0, len(counts))
	for _, field := range tracked {
		if counts[field] > 0 {
			fields = append(fields, field)
		}
	}
	sort.SliceStable(fields, func(i, j int) bool {
		return counts[fields[i]] > counts[fields[j]]
	})
	if len(fields) > 3 {
		fields = fields[:3]
	}
	return fields
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
