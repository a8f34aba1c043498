// Package corrections diffs reviewer-submitted field values against the
// extraction output and persists only the fields that actually changed.
package corrections

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/smartdoc/policyd/internal/apperr"
	"github.com/smartdoc/policyd/internal/dates"
	"github.com/smartdoc/policyd/internal/model"
	"github.com/smartdoc/policyd/internal/store"
)

// CorrectedDiffers reports whether a reviewer value is a real correction
// of the AI value: both compared as trimmed strings. This is the single
// definition of "was this field corrected?"; the analytics engine uses
// the same function when it recomputes correction counts from history,
// so the two can never drift apart.
func CorrectedDiffers(aiValue any, userValue string) bool {
	return stringify(aiValue) != strings.TrimSpace(userValue)
}

// stringify renders an AI value for comparison. Nil and missing values
// render as the empty string, so submitting an empty value for a field
// the AI never produced is not a correction.
func stringify(v any) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprintf("%v", v))
}

// Diff returns the subset of candidate whose values differ from the
// document's AI values. Keys the AI never produced count as differing
// whenever the submitted value is non-empty after trimming.
func Diff(aiData model.AIData, candidate map[string]string) map[string]string {
	changes := make(map[string]string)
	for field, submitted := range candidate {
		if CorrectedDiffers(aiData[field], submitted) {
			changes[field] = submitted
		}
	}
	return changes
}

// Tracker applies correction saves against the document store.
type Tracker struct {
	store store.Store
	now   func() time.Time
}

// NewTracker creates a Tracker. nowFn may be nil to use time.Now.
func NewTracker(st store.Store, nowFn func() time.Time) *Tracker {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Tracker{store: st, now: nowFn}
}

// Save validates and persists a correction set for a document. It
// returns changed=false (and no write) when every submitted value equals
// the current AI value; the caller treats that as confirmation, not an
// error. On a non-empty diff the document's userUpdatedData is replaced
// wholesale, its ownerId re-affirmed and its timestamp bumped, in one
// atomic store update.
func (t *Tracker) Save(ctx context.Context, docID, ownerID string, candidate map[string]string) (bool, error) {
	if docID == "" {
		return false, apperr.New(apperr.KindInvalidInput, "missing document id")
	}
	if len(candidate) == 0 {
		return false, apperr.New(apperr.KindInvalidInput, "missing updated data")
	}

	// Work on a copy so the caller's map is never mutated, then reformat
	// a submitted issueDate before diffing so "15th June 2024" and a
	// stored "15-06-2024" compare equal. Unparsable dates pass through
	// unchanged.
	submitted := make(map[string]string, len(candidate))
	for k, v := range candidate {
		submitted[k] = v
	}
	if raw, ok := submitted["issueDate"]; ok {
		if formatted, parsed := dates.Format(raw); parsed {
			submitted["issueDate"] = formatted
		} else {
			zap.L().Warn("corrections: could not parse submitted issueDate",
				zap.String("document_id", docID),
				zap.String("value", raw),
			)
		}
	}

	doc, err := t.store.GetDocument(ctx, docID)
	if err != nil {
		return false, apperr.Wrap(apperr.KindPersistence, err, "corrections: load document")
	}
	if doc == nil {
		return false, apperr.New(apperr.KindNotFound, "document not found: "+docID)
	}

	changes := Diff(doc.AIData, submitted)
	if len(changes) == 0 {
		return false, nil
	}

	if err := t.store.ReplaceUserData(ctx, docID, ownerID, changes, t.now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, apperr.New(apperr.KindNotFound, "document not found: "+docID)
		}
		return false, apperr.Wrap(apperr.KindPersistence, err, "corrections: save")
	}

	zap.L().Info("corrections: saved",
		zap.String("document_id", docID),
		zap.String("owner_id", ownerID),
		zap.Int("changed_fields", len(changes)),
	)
	return true, nil
}
