package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"restaurant-sentiment/internal/review"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// keywordPredictor labels texts containing "good" positive and "bad" negative.
type keywordPredictor struct {
	calls int
	err   error
}

func (k *keywordPredictor) Predict(_ context.Context, texts []string) ([]review.Label, error) {
	k.calls++
	if k.err != nil {
		return nil, k.err
	}
	labels := make([]review.Label, len(texts))
	for i, t := range texts {
		switch {
		case strings.Contains(t, "good"):
			labels[i] = review.Positive
		case strings.Contains(t, "bad"):
			labels[i] = review.Negative
		}
	}
	return labels, nil
}

func sampleReviews() []review.Review {
	return []review.Review{
		{ID: "r1", BusinessID: "grill", Text: "good steak", Stars: 5},
		{ID: "r2", BusinessID: "noodle", Text: "bad broth", Stars: 4},
		{ID: "r3", BusinessID: "grill", Text: "good sides", Stars: 4},
		{ID: "r4", BusinessID: "grill", Text: "bad service", Stars: 1},
		{ID: "r5", BusinessID: "noodle", Text: "ok", Stars: 0},
		{ID: "r6", BusinessID: "grill", Text: "fine"},
	}
}

func TestScore(t *testing.T) {
	p := &keywordPredictor{}
	res, err := Score(context.Background(), p, sampleReviews(), 0)
	require.NoError(t, err)

	assert.Equal(t, 2, p.calls, "one batch per business")
	require.Len(t, res.Businesses, 2)

	grill := res.Businesses[0]
	assert.Equal(t, "grill", grill.BusinessID)
	assert.Equal(t, []string{"r1", "r3", "r4", "r6"}, grill.ReviewIDs)
	assert.Equal(t, []review.Label{1, 1, -1, 0}, grill.Labels)
	assert.InDelta(t, 0.25, grill.Rate, 1e-12)
	assert.InDelta(t, 25.0, grill.Acceptance, 1e-9)
	assert.Equal(t, 2, grill.Positive)
	assert.Equal(t, 1, grill.Negative)
	assert.Equal(t, 1, grill.Neutral)
	assert.Equal(t, 3, grill.Rated)
	assert.Equal(t, 3, grill.Matched)
	assert.InDelta(t, 1.0, grill.Agreement, 1e-12)

	noodle := res.Businesses[1]
	assert.InDelta(t, -50.0, noodle.Acceptance, 1e-9)
	assert.Equal(t, 1, noodle.Rated)
	assert.Equal(t, 0, noodle.Matched, "4 stars but predicted negative")

	assert.Equal(t, 6, res.TotalReviews)
	assert.InDelta(t, 0.0, res.Acceptance, 1e-9)
	assert.Equal(t, 4, res.Rated)
	assert.InDelta(t, 0.75, res.Agreement, 1e-12)
}

func TestScore_Limit(t *testing.T) {
	res, err := Score(context.Background(), &keywordPredictor{}, sampleReviews(), 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"r1", "r3"}, res.Businesses[0].ReviewIDs)
	assert.InDelta(t, 100.0, res.Businesses[0].Acceptance, 1e-9)
	assert.Equal(t, 4, res.TotalReviews)
}

func TestScore_Empty(t *testing.T) {
	res, err := Score(context.Background(), &keywordPredictor{}, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, res.Businesses)
	assert.Zero(t, res.Acceptance)
}

func TestScore_PredictorError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Score(context.Background(), &keywordPredictor{err: boom}, sampleReviews(), 0)
	assert.ErrorIs(t, err, boom)
}

func TestReporter_GenerateReport(t *testing.T) {
	res, err := Score(context.Background(), &keywordPredictor{}, sampleReviews(), 0)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "out")
	require.NoError(t, NewReporter(res, out).GenerateReport())

	summary, err := os.ReadFile(filepath.Join(out, "summary.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(summary), "Reviews: 6")
	assert.Contains(t, string(summary), "grill: 4 reviews, 25.00% acceptance")

	f, err := os.Open(filepath.Join(out, "predictions.csv"))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 7)
	assert.Equal(t, []string{"business_id", "review_id", "label", "sentiment"}, rows[0])
	assert.Equal(t, []string{"grill", "r4", "-1", "Negative"}, rows[3])

	data, err := os.ReadFile(filepath.Join(out, "report.json"))
	require.NoError(t, err)
	var decoded struct {
		Results Results `json:"results"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 6, decoded.Results.TotalReviews)
	assert.Equal(t, "noodle", decoded.Results.Businesses[1].BusinessID)
}

func TestReporter_PrintSummary(t *testing.T) {
	res, err := Score(context.Background(), &keywordPredictor{}, sampleReviews(), 0)
	require.NoError(t, err)

	var buf bytes.Buffer
	NewReporter(res, "").PrintSummary(&buf)
	assert.Contains(t, buf.String(), "Acceptance: 0.00%")
	assert.Contains(t, buf.String(), "Star agreement: 75.00% of 4 rated reviews")
}
