// Package report scores reviews per business and writes the results as text, CSV and
// JSON reports.
package report

import (
	"context"
	"fmt"
	"time"

	"restaurant-sentiment/internal/ingest"
	"restaurant-sentiment/internal/review"
	"restaurant-sentiment/internal/sentiment"

	"github.com/rs/zerolog/log"
)

// Predictor classifies review texts. Both the local engine and the HTTP client satisfy it.
type Predictor interface {
	Predict(ctx context.Context, texts []string) ([]review.Label, error)
}

// BusinessResult is the sentiment summary of one business.
type BusinessResult struct {
	BusinessID string         `json:"business_id"`
	ReviewIDs  []string       `json:"review_ids"`
	Labels     []review.Label `json:"labels"`
	Rate       float64        `json:"rate"`       // mean signed label in [-1, 1]
	Acceptance float64        `json:"acceptance"` // Rate as a percentage
	Positive   int            `json:"positive"`
	Neutral    int            `json:"neutral"`
	Negative   int            `json:"negative"`
	Rated      int            `json:"rated"`     // reviews carrying a star rating
	Matched    int            `json:"matched"`   // rated reviews whose label matches the stars
	Agreement  float64        `json:"agreement"` // Matched / Rated
}

// Results aggregates a scoring run.
type Results struct {
	StartTime    time.Time        `json:"start_time"`
	EndTime      time.Time        `json:"end_time"`
	Businesses   []BusinessResult `json:"businesses"`
	TotalReviews int              `json:"total_reviews"`
	Positive     int              `json:"positive"`
	Neutral      int              `json:"neutral"`
	Negative     int              `json:"negative"`
	Acceptance   float64          `json:"acceptance"` // over all reviews, percent
	Rated        int              `json:"rated"`
	Agreement    float64          `json:"agreement"`
}

// Score predicts every business's reviews, at most limit per business (limit <= 0 means
// all), and summarizes each one. Businesses keep first-seen order.
func Score(ctx context.Context, p Predictor, reviews []review.Review, limit int) (*Results, error) {
	res := &Results{StartTime: time.Now()}
	var matched, sum int

	for _, group := range ingest.GroupByBusiness(reviews) {
		batch := group.Reviews
		if limit > 0 && len(batch) > limit {
			batch = batch[:limit]
		}

		labels, err := p.Predict(ctx, ingest.Texts(batch))
		if err != nil {
			return nil, fmt.Errorf("predict business %s: %w", group.BusinessID, err)
		}
		if len(labels) != len(batch) {
			return nil, fmt.Errorf("predict business %s: got %d labels for %d reviews", group.BusinessID, len(labels), len(batch))
		}

		br, err := summarize(group.BusinessID, batch, labels)
		if err != nil {
			return nil, err
		}

		res.Businesses = append(res.Businesses, br)
		res.TotalReviews += len(batch)
		res.Positive += br.Positive
		res.Neutral += br.Neutral
		res.Negative += br.Negative
		res.Rated += br.Rated
		matched += br.Matched
		sum += br.Positive - br.Negative

		log.Debug().
			Str("business_id", br.BusinessID).
			Int("reviews", len(batch)).
			Float64("acceptance", br.Acceptance).
			Msg("Business scored")
	}

	if res.TotalReviews > 0 {
		res.Acceptance = float64(sum) / float64(res.TotalReviews) * 100
	}
	if res.Rated > 0 {
		res.Agreement = float64(matched) / float64(res.Rated)
	}
	res.EndTime = time.Now()

	log.Info().
		Int("businesses", len(res.Businesses)).
		Int("reviews", res.TotalReviews).
		Float64("acceptance", res.Acceptance).
		Dur("elapsed", res.EndTime.Sub(res.StartTime)).
		Msg("Scoring complete")

	return res, nil
}

// summarize expects a non-empty batch.
func summarize(businessID string, batch []review.Review, labels []review.Label) (BusinessResult, error) {
	br := BusinessResult{
		BusinessID: businessID,
		ReviewIDs:  make([]string, len(batch)),
		Labels:     labels,
	}

	rate, err := sentiment.Acceptance(labels)
	if err != nil {
		return br, fmt.Errorf("business %s: %w", businessID, err)
	}
	br.Rate = rate
	br.Acceptance = rate * 100

	stars, rated := ingest.Labels(batch)
	for i, l := range labels {
		br.ReviewIDs[i] = batch[i].ID
		switch l {
		case review.Positive:
			br.Positive++
		case review.Negative:
			br.Negative++
		default:
			br.Neutral++
		}
		if rated[i] {
			br.Rated++
			if stars[i] == l {
				br.Matched++
			}
		}
	}
	if br.Rated > 0 {
		br.Agreement = float64(br.Matched) / float64(br.Rated)
	}

	return br, nil
}
