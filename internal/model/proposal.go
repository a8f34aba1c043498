package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// FieldProposal is one field of the extraction model's JSON output. The
// model is told to emit {"value": ..., "confidence": 0-100} objects, but
// real output drifts: bare scalars, bare lists, nulls, string confidences.
// Every shape is accepted; anything unusable collapses to Absent.
type FieldProposal struct {
	Present    bool
	Value      any
	Confidence int
}

// UnmarshalJSON accepts {value, confidence} objects, bare scalar or list
// values, and null.
func (p *FieldProposal) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*p = FieldProposal{}
		return nil
	}

	if len(trimmed) > 0 && trimmed[0] == '{' {
		var obj map[string]any
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return err
		}
		// Value and confidence are read independently: a null value with
		// a numeric confidence keeps the confidence, so it still feeds
		// the accuracy mean.
		val := obj["value"]
		*p = FieldProposal{
			Present:    val != nil,
			Value:      val,
			Confidence: toConfidence(obj["confidence"]),
		}
		return nil
	}

	// Bare scalar or list.
	var val any
	if err := json.Unmarshal(trimmed, &val); err != nil {
		return err
	}
	*p = FieldProposal{Present: val != nil, Value: val}
	return nil
}

// Proposal is the extraction model's output keyed by proposal field name.
type Proposal map[string]FieldProposal

// Strings returns the proposal value as a list of strings, for list
// fields like termsAndExclusions. Scalar values become a single-element
// list; absent values return nil.
func (p FieldProposal) Strings() []string {
	if !p.Present {
		return nil
	}
	switch v := p.Value.(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}

// toConfidence coerces a confidence value to an integer in [0, 100].
// Absent, non-numeric, or unparsable values score 0.
func toConfidence(v any) int {
	var c float64
	switch n := v.(type) {
	case float64:
		c = n
	case int:
		c = float64(n)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		c = f
	default:
		return 0
	}
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return int(c)
}
