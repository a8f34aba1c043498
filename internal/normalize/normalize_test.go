package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdoc/policyd/internal/model"
)

const fullProposal = `{
	"policyholderName": {"value": "Ramesh Kumar", "confidence": 80},
	"issueDateRaw": "15th June 2024",
	"issueDate": {"value": "15th June 2024", "confidence": 70},
	"expirationDateRaw": null,
	"expirationDate": null,
	"providerName": {"value": "Star Health", "confidence": 95},
	"policyholderAddress": null,
	"policyNumber": {"value": "SH-2024-00123", "confidence": 85},
	"premiumAmount": {"value": "Rs. 5,00,000", "confidence": 90},
	"deductibles": {"value": "Rs. 2,500 monthly", "confidence": 60},
	"termsAndExclusions": ["pre-existing conditions", "cosmetic surgery"]
}`

func TestNormalize_FullProposal(t *testing.T) {
	flat := New().Normalize(fullProposal, "")

	assert.Equal(t, "Ramesh Kumar", flat["name"])
	assert.Equal(t, 80, flat["name_confidence"])
	assert.Equal(t, "Rs. 5,00,000", flat["contractAmount"])
	assert.Equal(t, 90, flat["contractAmount_confidence"])
	assert.Equal(t, "15-06-2024", flat["issueDate"])
	assert.Equal(t, "15th June 2024", flat["issueDateRaw"])
	assert.Equal(t, []string{"pre-existing conditions", "cosmetic surgery"}, flat["termsAndExclusions"])
	assert.Nil(t, flat["policyholderAddress"])
	assert.Equal(t, 0, flat["policyholderAddress_confidence"])
}

func TestNormalize_AccuracyIsMeanOfTrackedConfidences(t *testing.T) {
	// name 80, contractAmount 90, issueDate 70 -> accuracy 80.0.
	flat := New().Normalize(fullProposal, "")
	assert.Equal(t, 80.0, flat.Accuracy())

	conf, ok := flat.FieldConfidence("contractAmount")
	require.True(t, ok)
	assert.Equal(t, 90.0, conf)
}

func TestNormalize_NullValueKeepsConfidence(t *testing.T) {
	raw := `{
		"policyholderName": {"value": null, "confidence": 60},
		"premiumAmount": {"value": "Rs. 1,000", "confidence": 90},
		"issueDate": {"value": "15th June 2024", "confidence": 30}
	}`
	flat := New().Normalize(raw, "")

	assert.Nil(t, flat["name"])
	assert.Equal(t, 60, flat["name_confidence"])
	// (60 + 90 + 30) / 3 = 60.0
	assert.Equal(t, 60.0, flat.Accuracy())
}

func TestNormalize_AccuracyRounding(t *testing.T) {
	raw := `{
		"policyholderName": {"value": "A", "confidence": 80},
		"premiumAmount": {"value": "Rs. 1,000", "confidence": 80},
		"issueDate": {"value": null, "confidence": 0}
	}`
	flat := New().Normalize(raw, "")
	// (80 + 80 + 0) / 3 = 53.333... -> 53.33
	assert.Equal(t, 53.33, flat.Accuracy())
}

func TestNormalize_FallbackSumAssured(t *testing.T) {
	sourceText := "Policy Schedule\nSum Assured: Rs. 5,00,000\nTerm: 20 years"
	flat := New().Normalize(`{"premiumAmount": null}`, sourceText)

	assert.Equal(t, "Rs. 5,00,000", flat["contractAmount"])
	assert.Equal(t, 75, flat["contractAmount_confidence"])
}

func TestNormalize_FallbackRecurringPremium(t *testing.T) {
	sourceText := "Premium payable: Rs. 2,500 monthly via ECS"
	flat := New().Normalize(`{"deductibles": null}`, sourceText)

	assert.Equal(t, "Rs. 2,500 monthly", flat["deductibles"])
	assert.Equal(t, 70, flat["deductibles_confidence"])
}

func TestNormalize_FallbackDoesNotOverrideModelValue(t *testing.T) {
	sourceText := "Sum Assured: Rs. 9,99,999"
	flat := New().Normalize(`{"premiumAmount": {"value": "Rs. 5,00,000", "confidence": 90}}`, sourceText)

	assert.Equal(t, "Rs. 5,00,000", flat["contractAmount"])
	assert.Equal(t, 90, flat["contractAmount_confidence"])
}

func TestNormalize_UnparsableDateLeftAsIs(t *testing.T) {
	raw := `{"issueDate": {"value": "sometime last spring", "confidence": 20}}`
	flat := New().Normalize(raw, "")
	assert.Equal(t, "sometime last spring", flat["issueDate"])
}

func TestNormalize_DegradedRecordOnGarbage(t *testing.T) {
	flat := New().Normalize("I could not find any structured data, sorry!", "")

	assert.True(t, flat.Degraded())
	assert.Equal(t, "I could not find any structured data, sorry!", flat[model.KeyRawOutput])
	_, hasName := flat["name"]
	assert.False(t, hasName)
	assert.Equal(t, 0.0, flat.Accuracy())
}

func TestNormalize_MarkdownFencedOutput(t *testing.T) {
	fenced := "```json\n" + fullProposal + "\n```"
	flat := New().Normalize(fenced, "")
	assert.False(t, flat.Degraded())
	assert.Equal(t, "Ramesh Kumar", flat["name"])
}

func TestNormalize_ProseWrappedOutput(t *testing.T) {
	wrapped := "Here is the extracted data:\n" + fullProposal + "\nLet me know if you need more."
	flat := New().Normalize(wrapped, "")
	assert.False(t, flat.Degraded())
	assert.Equal(t, "SH-2024-00123", flat["policyNumber"])
}

func TestCleanJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, cleanJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, cleanJSON("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, cleanJSON(`noise {"a":1} trailing`))
	assert.Equal(t, "no braces here", cleanJSON("no braces here"))
}
