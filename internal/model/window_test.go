package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var wednesdayNoon = time.Date(2026, 8, 12, 12, 30, 45, 0, time.UTC)

func TestAnalyticsCutoff(t *testing.T) {
	assert.Equal(t, time.Date(2026, 8, 12, 0, 0, 0, 0, time.UTC), AnalyticsCutoff(WindowDay, wednesdayNoon))
	assert.Equal(t, wednesdayNoon.AddDate(0, 0, -7), AnalyticsCutoff(WindowWeek, wednesdayNoon))
	assert.Equal(t, wednesdayNoon.AddDate(0, 0, -30), AnalyticsCutoff(WindowMonth, wednesdayNoon))
	assert.True(t, AnalyticsCutoff(WindowAll, wednesdayNoon).IsZero())
}

func TestAnalyticsCutoff_UnknownDefaultsToMonth(t *testing.T) {
	assert.Equal(t, wednesdayNoon.AddDate(0, 0, -30), AnalyticsCutoff("fortnight", wednesdayNoon))
}

func TestTrendCutoff_UnknownIsUnbounded(t *testing.T) {
	assert.True(t, TrendCutoff("fortnight", wednesdayNoon).IsZero())
	assert.True(t, TrendCutoff(WindowAll, wednesdayNoon).IsZero())
	assert.Equal(t, wednesdayNoon.AddDate(0, 0, -7), TrendCutoff(WindowWeek, wednesdayNoon))
}

func TestDocumentSummarize(t *testing.T) {
	doc := &Document{
		ID:   "doc-1",
		Name: "policy_2024.pdf",
		AIData: AIData{
			"accuracy": 80.0,
			"fieldConfidences": map[string]any{
				"name":           90.0,
				"contractAmount": 80.0,
				"issueDate":      70.0,
			},
		},
		PageCount: 12,
		WordCount: 4300,
		Timestamp: time.Date(2026, 8, 12, 9, 5, 0, 0, time.UTC),
	}

	s := doc.Summarize()
	assert.Equal(t, 80.0, s.Accuracy)
	assert.Equal(t, 90.0, s.FieldConfidences["name"])
	assert.Equal(t, "12-08-2026 09:05", s.Timestamp)
}

func TestAIData_Degraded(t *testing.T) {
	d := AIData{KeyRawOutput: "not json at all"}
	assert.True(t, d.Degraded())
	assert.Equal(t, 0.0, d.Accuracy())

	_, ok := d.FieldConfidence("name")
	assert.False(t, ok)
}

func TestAIData_StringValue(t *testing.T) {
	d := AIData{"name": "  Asha Patel ", "contractAmount": nil}
	assert.Equal(t, "Asha Patel", d.StringValue("name"))
	assert.Equal(t, "", d.StringValue("contractAmount"))
	assert.Equal(t, "", d.StringValue("missing"))
}
