package analytics

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdoc/policyd/internal/model"
	"github.com/smartdoc/policyd/internal/store"
)

var testNow = time.Date(2026, 8, 20, 15, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*Engine, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return NewEngine(st, func() time.Time { return testNow }), st
}

type docSpec struct {
	id       string
	name     string
	owner    string
	ts       time.Time
	confs    map[string]float64
	aiVals   map[string]string
	userVals map[string]string
	accuracy float64
}

func insertDoc(t *testing.T, st store.Store, spec docSpec) {
	t.Helper()
	aiData := model.AIData{"accuracy": spec.accuracy}
	confs := make(map[string]any, len(spec.confs))
	for f, c := range spec.confs {
		confs[f] = c
	}
	aiData[model.KeyFieldConfidences] = confs
	for f, v := range spec.aiVals {
		aiData[f] = v
	}
	require.NoError(t, st.InsertDocument(context.Background(), &model.Document{
		ID:        spec.id,
		Name:      spec.name,
		AIData:    aiData,
		UserData:  spec.userVals,
		OwnerID:   spec.owner,
		Timestamp: spec.ts,
	}))
}

func TestCalculate_EmptySelection(t *testing.T) {
	eng, _ := newTestEngine(t)

	res, err := eng.Calculate(context.Background(), "user-1", model.WindowMonth)
	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalDocuments)
	assert.Empty(t, res.FieldConfidences)
	assert.Empty(t, res.TopReviewFields)
	assert.Nil(t, res.LowestAccuracy)
}

func TestCalculate_UncorrectedDocumentScores100(t *testing.T) {
	eng, st := newTestEngine(t)
	insertDoc(t, st, docSpec{
		id: "d1", name: "a.pdf", owner: "user-1", ts: testNow.AddDate(0, 0, -1),
		confs:    map[string]float64{"name": 80, "contractAmount": 90, "issueDate": 70},
		aiVals:   map[string]string{"name": "A", "contractAmount": "Rs. 1", "issueDate": "01-01-2026"},
		accuracy: 80,
	})

	res, err := eng.Calculate(context.Background(), "user-1", model.WindowMonth)
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalDocuments)

	// No document scored below 100, so the lowest-accuracy slot keeps
	// its starting point with no document name.
	require.NotNil(t, res.LowestAccuracy)
	assert.Nil(t, res.LowestAccuracy.Name)
	assert.Equal(t, 100.0, res.LowestAccuracy.Accuracy)
}

func TestCalculate_SingleCorrectionScores66_67(t *testing.T) {
	eng, st := newTestEngine(t)
	insertDoc(t, st, docSpec{
		id: "d1", name: "a.pdf", owner: "user-1", ts: testNow.AddDate(0, 0, -1),
		confs:    map[string]float64{"name": 80, "contractAmount": 90, "issueDate": 70},
		aiVals:   map[string]string{"name": "A", "contractAmount": "Rs. 1", "issueDate": "01-01-2026"},
		userVals: map[string]string{"name": "Corrected Name"},
		accuracy: 80,
	})

	res, err := eng.Calculate(context.Background(), "user-1", model.WindowMonth)
	require.NoError(t, err)
	require.NotNil(t, res.LowestAccuracy)
	require.NotNil(t, res.LowestAccuracy.Name)
	assert.Equal(t, "a.pdf", *res.LowestAccuracy.Name)
	assert.Equal(t, 66.67, res.LowestAccuracy.Accuracy)
}

func TestCalculate_FieldConfidenceMeans(t *testing.T) {
	eng, st := newTestEngine(t)
	insertDoc(t, st, docSpec{
		id: "d1", name: "a.pdf", owner: "user-1", ts: testNow.AddDate(0, 0, -2),
		confs: map[string]float64{"name": 80, "contractAmount": 90},
	})
	insertDoc(t, st, docSpec{
		id: "d2", name: "b.pdf", owner: "user-1", ts: testNow.AddDate(0, 0, -1),
		confs: map[string]float64{"name": 70},
	})

	res, err := eng.Calculate(context.Background(), "user-1", model.WindowMonth)
	require.NoError(t, err)
	assert.Equal(t, 75.0, res.FieldConfidences["name"])
	assert.Equal(t, 90.0, res.FieldConfidences["contractAmount"])

	// issueDate had no observations at all: absent, not zero.
	_, hasIssueDate := res.FieldConfidences["issueDate"]
	assert.False(t, hasIssueDate)
}

func TestCalculate_TopReviewFields_TieBrokenByDeclarationOrder(t *testing.T) {
	eng, st := newTestEngine(t)

	// Three docs correcting issueDate, three correcting name, one
	// correcting contractAmount. name and issueDate tie at 3; name wins
	// the tie because it is declared first.
	for i, field := range []string{"issueDate", "issueDate", "issueDate", "name", "name", "name", "contractAmount"} {
		insertDoc(t, st, docSpec{
			id:   string(rune('a' + i)),
			name: "doc.pdf", owner: "user-1", ts: testNow.AddDate(0, 0, -1),
			aiVals:   map[string]string{"name": "N", "contractAmount": "C", "issueDate": "D"},
			userVals: map[string]string{field: "changed"},
		})
	}

	res, err := eng.Calculate(context.Background(), "user-1", model.WindowMonth)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "issueDate", "contractAmount"}, res.TopReviewFields)
}

func TestCalculate_ReviewCountNeedsNonEmptyAIValue(t *testing.T) {
	eng, st := newTestEngine(t)
	// The AI produced nothing for contractAmount; filling it in is not
	// a "review" of the AI value, but it still costs document accuracy.
	insertDoc(t, st, docSpec{
		id: "d1", name: "a.pdf", owner: "user-1", ts: testNow.AddDate(0, 0, -1),
		aiVals:   map[string]string{"name": "N"},
		userVals: map[string]string{"contractAmount": "Rs. 2,00,000"},
	})

	res, err := eng.Calculate(context.Background(), "user-1", model.WindowMonth)
	require.NoError(t, err)
	assert.Empty(t, res.TopReviewFields)
	require.NotNil(t, res.LowestAccuracy)
	assert.Equal(t, 66.67, res.LowestAccuracy.Accuracy)
}

func TestCalculate_WindowFiltersOldDocuments(t *testing.T) {
	eng, st := newTestEngine(t)
	insertDoc(t, st, docSpec{
		id: "recent", name: "r.pdf", owner: "user-1", ts: testNow.AddDate(0, 0, -3),
	})
	insertDoc(t, st, docSpec{
		id: "ancient", name: "old.pdf", owner: "user-1", ts: testNow.AddDate(0, 0, -90),
	})

	res, err := eng.Calculate(context.Background(), "user-1", model.WindowWeek)
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalDocuments)

	res, err = eng.Calculate(context.Background(), "user-1", model.WindowAll)
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalDocuments)

	// Unknown tokens behave like "month": the 90-day-old doc stays out.
	res, err = eng.Calculate(context.Background(), "user-1", "bogus")
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalDocuments)
}

func TestCalculate_TiesKeepFirstLowestDocument(t *testing.T) {
	eng, st := newTestEngine(t)
	insertDoc(t, st, docSpec{
		id: "d1", name: "first.pdf", owner: "user-1", ts: testNow.AddDate(0, 0, -2),
		aiVals:   map[string]string{"name": "N"},
		userVals: map[string]string{"name": "X"},
	})
	insertDoc(t, st, docSpec{
		id: "d2", name: "second.pdf", owner: "user-1", ts: testNow.AddDate(0, 0, -1),
		aiVals:   map[string]string{"name": "N"},
		userVals: map[string]string{"name": "Y"},
	})

	res, err := eng.Calculate(context.Background(), "user-1", model.WindowMonth)
	require.NoError(t, err)
	require.NotNil(t, res.LowestAccuracy.Name)
	// Both score 66.67; the strict minimum keeps the first seen.
	assert.Equal(t, "first.pdf", *res.LowestAccuracy.Name)
}

func TestCalculate_DegradedRecordsDoNotCrash(t *testing.T) {
	eng, st := newTestEngine(t)
	require.NoError(t, st.InsertDocument(context.Background(), &model.Document{
		ID:        "deg",
		Name:      "degraded.pdf",
		AIData:    model.AIData{model.KeyRawOutput: "not json"},
		OwnerID:   "user-1",
		Timestamp: testNow.AddDate(0, 0, -1),
	}))

	res, err := eng.Calculate(context.Background(), "user-1", model.WindowMonth)
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalDocuments)
	assert.Empty(t, res.FieldConfidences)
}
