package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"restaurant-sentiment/internal/common"
	"restaurant-sentiment/internal/review"
	"restaurant-sentiment/internal/sentiment"
	"restaurant-sentiment/internal/storage"

	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 8 << 20

// PredictRequest is the body of POST /predict.
type PredictRequest struct {
	Texts []string `json:"texts"`
}

// PredictResponse carries one label per input text, in input order.
type PredictResponse struct {
	Labels    []review.Label `json:"labels"`
	Names     []string       `json:"names"`
	RequestID string         `json:"request_id,omitempty"`
	Latency   float64        `json:"latency_ms"`
}

// AcceptanceRequest is the body of POST /acceptance.
type AcceptanceRequest struct {
	Labels []int `json:"labels"`
}

// AcceptanceResponse reports the rate in [-1, 1] and the same value as a percentage.
type AcceptanceResponse struct {
	Rate       float64 `json:"rate"`
	Acceptance float64 `json:"acceptance"`
	Count      int     `json:"count"`
}

// ReviewSentiment is the predicted label of one stored review.
type ReviewSentiment struct {
	ReviewID  string       `json:"review_id"`
	Label     review.Label `json:"label"`
	Sentiment string       `json:"sentiment"`
}

// BusinessSentimentResponse is the body of GET /businesses/{id}/sentiment.
type BusinessSentimentResponse struct {
	BusinessID   string            `json:"business_id"`
	PredictionID string            `json:"prediction_id,omitempty"`
	Reviews      []ReviewSentiment `json:"reviews"`
	Rate         float64           `json:"rate"`
	Acceptance   float64           `json:"acceptance"`
	Positive     int               `json:"positive"`
	Neutral      int               `json:"neutral"`
	Negative     int               `json:"negative"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Healthy     bool      `json:"healthy"`
	State       string    `json:"state"`
	FailureRate float64   `json:"failure_rate"`
	Timestamp   time.Time `json:"timestamp"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req PredictRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if req.Texts == nil {
		writeError(w, r, http.StatusBadRequest, "texts is required")
		return
	}
	if len(req.Texts) > common.MaxBatchSize {
		writeError(w, r, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("batch of %d texts exceeds limit %d", len(req.Texts), common.MaxBatchSize))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.PredictTimeout)
	defer cancel()

	labels, err := s.engine.Predict(ctx, req.Texts)
	if err != nil {
		log.Error().Err(err).Int("batch_size", len(req.Texts)).Msg("prediction failed")
		writeError(w, r, statusFor(err), fmt.Sprintf("prediction failed: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, PredictResponse{
		Labels:    labels,
		Names:     review.Names(labels),
		RequestID: r.Header.Get(requestIDHeader),
		Latency:   float64(time.Since(start).Microseconds()) / 1000,
	})
}

func (s *Server) handleAcceptance(w http.ResponseWriter, r *http.Request) {
	var req AcceptanceRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	labels := make([]review.Label, len(req.Labels))
	for i, v := range req.Labels {
		l, err := review.ParseLabel(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, fmt.Sprintf("labels[%d]: %v", i, err))
			return
		}
		labels[i] = l
	}

	rate, err := s.engine.Acceptance(labels)
	if err != nil {
		writeError(w, r, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, AcceptanceResponse{
		Rate:       rate,
		Acceptance: rate * 100,
		Count:      len(labels),
	})
}

func (s *Server) handleBusinessSentiment(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, r, http.StatusNotImplemented, "review store not configured")
		return
	}

	businessID := r.PathValue("id")
	limit := s.cfg.ReviewLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > common.MaxReviewLimit {
			writeError(w, r, http.StatusBadRequest,
				fmt.Sprintf("limit must be between 1 and %d", common.MaxReviewLimit))
			return
		}
		limit = n
	}

	reviews, err := s.store.GetReviews(businessID, limit)
	if err != nil {
		writeError(w, r, statusFor(err), err.Error())
		return
	}
	if len(reviews) == 0 {
		writeError(w, r, http.StatusNotFound, fmt.Sprintf("business %s has no reviews", businessID))
		return
	}

	texts := make([]string, len(reviews))
	ids := make([]string, len(reviews))
	for i, rv := range reviews {
		texts[i] = rv.Text
		ids[i] = rv.ID
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.PredictTimeout)
	defer cancel()

	labels, err := s.engine.Predict(ctx, texts)
	if err != nil {
		log.Error().Err(err).Str("business_id", businessID).Msg("prediction failed")
		writeError(w, r, statusFor(err), fmt.Sprintf("prediction failed: %v", err))
		return
	}

	rate, err := s.engine.Acceptance(labels)
	if err != nil {
		writeError(w, r, statusFor(err), err.Error())
		return
	}

	resp := BusinessSentimentResponse{
		BusinessID: businessID,
		Reviews:    make([]ReviewSentiment, len(labels)),
		Rate:       rate,
		Acceptance: rate * 100,
	}
	for i, l := range labels {
		resp.Reviews[i] = ReviewSentiment{ReviewID: ids[i], Label: l, Sentiment: l.String()}
		switch l {
		case review.Positive:
			resp.Positive++
		case review.Negative:
			resp.Negative++
		default:
			resp.Neutral++
		}
	}

	rec, err := s.store.StorePrediction(storage.PredictionRecord{
		BusinessID: businessID,
		ReviewIDs:  ids,
		Labels:     labels,
		Acceptance: rate,
	})
	if err != nil {
		// the prediction itself succeeded; history is best effort
		log.Warn().Err(err).Str("business_id", businessID).Msg("failed to store prediction")
	} else {
		resp.PredictionID = rec.ID
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := s.engine.State()
	health := HealthResponse{
		Healthy:   state == sentiment.Ready,
		State:     state.String(),
		Timestamp: time.Now(),
	}
	if s.observer != nil {
		health.FailureRate = s.observer.FailureRate()
	}

	status := http.StatusOK
	if !health.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func (s *Server) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.engine.Info()
	if err != nil {
		writeError(w, r, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, sentiment.ErrModelNotLoaded):
		return http.StatusServiceUnavailable
	case errors.Is(err, sentiment.ErrDivisionUndefined):
		return http.StatusUnprocessableEntity
	case errors.Is(err, sentiment.ErrInvalidLabel):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrBusinessNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg, RequestID: r.Header.Get(requestIDHeader)})
}
