package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/smartdoc/policyd/internal/apperr"
	"github.com/smartdoc/policyd/internal/dates"
	"github.com/smartdoc/policyd/internal/model"
)

// Point is one day of the accuracy trend series.
type Point struct {
	Date        string  `json:"date"`
	AvgAccuracy float64 `json:"avg_accuracy"`
}

// Trend buckets an owner's documents by calendar day and averages the
// accuracy stored at ingestion (not the live recomputed score). Records
// without a stored accuracy, such as degraded ones, are left out of both
// sum and count rather than averaged in at zero. Days with no scored
// documents produce no point. Unrecognized window tokens select the
// owner's entire history; record-level analytics defaults to a month
// instead, and that divergence is intentional.
func (e *Engine) Trend(ctx context.Context, ownerID string, window model.Window) ([]Point, error) {
	if ownerID == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "missing user id")
	}

	cutoff := model.TrendCutoff(window, e.now())
	docs, err := e.store.ListSince(ctx, ownerID, cutoff)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, err, "analytics: list documents for trend")
	}

	type bucket struct {
		sum   float64
		count int
	}
	days := make(map[time.Time]*bucket)
	for i := range docs {
		acc, ok := model.ToFloat64(docs[i].AIData[model.KeyAccuracy])
		if !ok {
			continue
		}
		day := docs[i].Timestamp.UTC().Truncate(24 * time.Hour)
		b := days[day]
		if b == nil {
			b = &bucket{}
			days[day] = b
		}
		b.sum += acc
		b.count++
	}

	keys := make([]time.Time, 0, len(days))
	for day := range days {
		keys = append(keys, day)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	points := make([]Point, 0, len(keys))
	for _, day := range keys {
		b := days[day]
		points = append(points, Point{
			Date:        day.Format(dates.DisplayLayout),
			AvgAccuracy: b.sum / float64(b.count),
		})
	}
	return points, nil
}
