// Package normalize flattens the extraction model's nested JSON proposal
// into the flat aiData record stored on a document, applying regex
// fallbacks against the source text and computing the ingestion-time
// accuracy score.
package normalize

import (
	"encoding/json"
	"math"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/smartdoc/policyd/internal/dates"
	"github.com/smartdoc/policyd/internal/model"
)

// Fallback confidences for values recovered by regex scan rather than the
// extraction model.
const (
	fallbackAmountConfidence  = 75
	fallbackPremiumConfidence = 70
)

// sumAssuredRe matches a coverage-amount label followed by a currency
// amount on the same line. Used when the model returns no contractAmount.
var sumAssuredRe = regexp.MustCompile(`(?i)(sum assured|total benefit|maturity amount)[^\n]*?(Rs\.?\s*[\d,]+)`)

// recurringPremiumRe matches a premium label followed by a currency amount
// with an optional payment frequency. Used when the model returns no
// deductibles value.
var recurringPremiumRe = regexp.MustCompile(`(?i)(premium(?: per| payable)?(?:.*)?)[^\n]*?(Rs\.?\s*[\d,]+\s*(?:monthly|quarterly|annually|yearly)?)`)

// Normalizer converts model output into stored aiData records.
type Normalizer struct {
	schema *model.Schema
}

// New creates a Normalizer over the default policy field schema.
func New() *Normalizer {
	return &Normalizer{schema: model.DefaultSchema()}
}

// Normalize parses the extraction model's raw text output and flattens it
// into aiData. It never fails: output that cannot be parsed as JSON
// produces a degraded record holding only the raw text, which callers
// must store and serve without confidences or accuracy.
func (n *Normalizer) Normalize(modelOutput, sourceText string) model.AIData {
	cleaned := cleanJSON(modelOutput)

	var prop model.Proposal
	if err := json.Unmarshal([]byte(cleaned), &prop); err != nil {
		zap.L().Error("normalize: model output is not valid JSON, storing raw",
			zap.Error(err),
			zap.Int("output_len", len(modelOutput)),
		)
		return model.AIData{model.KeyRawOutput: modelOutput}
	}

	flat := n.flatten(prop)
	n.applyFallbacks(flat, sourceText)
	n.formatDates(flat)
	n.deriveAccuracy(flat)
	return flat
}

// flatten maps each schema field from its proposal key to its stored key,
// emitting a <field>_confidence entry for every scalar field and passing
// through raw date strings and list values without confidences.
func (n *Normalizer) flatten(prop model.Proposal) model.AIData {
	flat := make(model.AIData, 2*len(n.schema.Fields))
	for _, f := range n.schema.Fields {
		p := prop[f.ProposalKey]

		if f.List {
			if items := p.Strings(); items != nil {
				flat[f.Key] = items
			} else {
				flat[f.Key] = nil
			}
			continue
		}

		if p.Present {
			flat[f.Key] = p.Value
		} else {
			flat[f.Key] = nil
		}
		flat[f.ConfidenceKey()] = p.Confidence

		if f.RawKey != "" {
			raw := prop[f.RawKey]
			if raw.Present {
				flat[f.RawKey] = raw.Value
			} else {
				flat[f.RawKey] = nil
			}
		}
	}
	return flat
}

// applyFallbacks scans the source text for coverage and premium amounts
// the model missed. Matches are stored with fixed, reduced confidences.
func (n *Normalizer) applyFallbacks(flat model.AIData, sourceText string) {
	if flat.StringValue("contractAmount") == "" {
		if m := sumAssuredRe.FindStringSubmatch(sourceText); m != nil {
			flat["contractAmount"] = strings.TrimSpace(m[2])
			flat["contractAmount_confidence"] = fallbackAmountConfidence
			zap.L().Info("normalize: contractAmount recovered by fallback scan",
				zap.String("value", strings.TrimSpace(m[2])),
			)
		}
	}

	if flat.StringValue("deductibles") == "" {
		if m := recurringPremiumRe.FindStringSubmatch(sourceText); m != nil {
			flat["deductibles"] = strings.TrimSpace(m[2])
			flat["deductibles_confidence"] = fallbackPremiumConfidence
			zap.L().Info("normalize: deductibles recovered by fallback scan",
				zap.String("value", strings.TrimSpace(m[2])),
			)
		}
	}
}

// formatDates reformats extracted date fields to DD-MM-YYYY. Strings that
// cannot be parsed are left unchanged; this is never fatal.
func (n *Normalizer) formatDates(flat model.AIData) {
	for _, f := range n.schema.Fields {
		if !f.Date {
			continue
		}
		s := flat.StringValue(f.Key)
		if s == "" {
			continue
		}
		formatted, ok := dates.Format(s)
		if !ok {
			zap.L().Warn("normalize: could not format date field",
				zap.String("field", f.Key),
				zap.String("value", s),
			)
			continue
		}
		flat[f.Key] = formatted
	}
}

// deriveAccuracy computes the tracked-field confidence map and the
// ingestion-time accuracy score: the mean of the tracked confidences
// rounded to two decimals. This score is fixed at ingestion and never
// recomputed after user edits; trend aggregation depends on that.
func (n *Normalizer) deriveAccuracy(flat model.AIData) {
	tracked := n.schema.Tracked()
	confs := make(map[string]any, len(tracked))

	var sum float64
	for _, field := range tracked {
		c, _ := model.ToFloat64(flat[field+"_confidence"])
		confs[field] = c
		sum += c
	}

	flat[model.KeyFieldConfidences] = confs
	if len(tracked) == 0 {
		flat[model.KeyAccuracy] = 0.0
		return
	}
	flat[model.KeyAccuracy] = round2(sum / float64(len(tracked)))
}

// cleanJSON extracts a JSON object from text that may contain markdown
// code fences or prose wrapping.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
