// Package monitoring watches extraction health. A Collector snapshots
// document metrics over a lookback window, an Alerter evaluates the
// snapshot against thresholds and posts webhook alerts, and a Checker
// runs the loop in the background.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/smartdoc/policyd/internal/store"
)

// MetricsSnapshot holds a point-in-time view of extraction health.
type MetricsSnapshot struct {
	// Document metrics (within lookback window).
	DocumentsTotal int     `json:"documents_total"`
	Degraded       int     `json:"degraded"`
	DegradedRate   float64 `json:"degraded_rate"`
	AvgAccuracy    float64 `json:"avg_accuracy"`
	TotalPages     int     `json:"total_pages"`
	TotalWords     int     `json:"total_words"`
	Owners         int     `json:"owners"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from the document store.
type Collector struct {
	store store.Store
	now   func() time.Time
}

// NewCollector creates a metrics collector. nowFn may be nil to use
// time.Now.
func NewCollector(st store.Store, nowFn func() time.Time) *Collector {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Collector{store: st, now: nowFn}
}

// Collect snapshots document metrics over the given lookback window,
// across all owners. Degraded documents count toward the average at
// their stored accuracy of zero, so a burst of unparseable model output
// drags the average down rather than hiding.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   c.now().UTC(),
	}

	cutoff := c.now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)

	docs, err := c.store.ListSince(ctx, "", cutoff)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list documents")
	}

	snap.DocumentsTotal = len(docs)
	owners := make(map[string]struct{})
	var accuracySum float64

	for i := range docs {
		doc := &docs[i]
		if doc.AIData.Degraded() {
			snap.Degraded++
		}
		accuracySum += doc.AIData.Accuracy()
		snap.TotalPages += doc.PageCount
		snap.TotalWords += doc.WordCount
		owners[doc.OwnerID] = struct{}{}
	}

	snap.Owners = len(owners)
	if snap.DocumentsTotal > 0 {
		snap.DegradedRate = float64(snap.Degraded) / float64(snap.DocumentsTotal)
		snap.AvgAccuracy = accuracySum / float64(snap.DocumentsTotal)
	}

	return snap, nil
}
