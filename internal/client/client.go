// Package client is a Go client for the sentiment HTTP API.
package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"restaurant-sentiment/internal/review"
	"restaurant-sentiment/internal/sentiment"
	"restaurant-sentiment/internal/server"
	"restaurant-sentiment/internal/storage"

	"github.com/go-resty/resty/v2"
)

// APIError is a non-2xx response. It unwraps to the matching engine or storage sentinel
// so callers can use errors.Is the same way against a local engine or a remote one.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sentiment api: %d %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusServiceUnavailable:
		return sentiment.ErrModelNotLoaded
	case http.StatusUnprocessableEntity:
		return sentiment.ErrDivisionUndefined
	case http.StatusNotFound:
		return storage.ErrBusinessNotFound
	default:
		return nil
	}
}

type Client struct {
	base string
	rest *resty.Client
}

// Option configures a Client.
type Option func(*resty.Client)

// WithRetries retries requests that fail with a transport error or a 502/503/504.
func WithRetries(n int, wait time.Duration) Option {
	return func(r *resty.Client) {
		r.SetRetryCount(n).
			SetRetryWaitTime(wait).
			AddRetryCondition(func(resp *resty.Response, err error) bool {
				if err != nil {
					return true
				}
				switch resp.StatusCode() {
				case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
					return true
				}
				return false
			})
	}
}

// New creates a client for the API at base, e.g. "http://localhost:8080".
func New(base string, timeout time.Duration, opts ...Option) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(30 * time.Second) // default fallback
	}
	r.SetHeader("Content-Type", "application/json")
	for _, opt := range opts {
		opt(r)
	}
	return &Client{base: base, rest: r}
}

// Predict classifies texts remotely; it satisfies report.Predictor.
func (c *Client) Predict(ctx context.Context, texts []string) ([]review.Label, error) {
	if texts == nil {
		texts = []string{}
	}

	out := &server.PredictResponse{}
	if err := c.do(ctx, http.MethodPost, "/predict", server.PredictRequest{Texts: texts}, out); err != nil {
		return nil, err
	}
	if len(out.Labels) != len(texts) {
		return nil, fmt.Errorf("sentiment api: %d labels for %d texts", len(out.Labels), len(texts))
	}
	return out.Labels, nil
}

// Acceptance computes the acceptance rate of labels remotely.
func (c *Client) Acceptance(ctx context.Context, labels []review.Label) (float64, error) {
	raw := make([]int, len(labels))
	for i, l := range labels {
		raw[i] = int(l)
	}

	out := &server.AcceptanceResponse{}
	if err := c.do(ctx, http.MethodPost, "/acceptance", server.AcceptanceRequest{Labels: raw}, out); err != nil {
		return 0, err
	}
	return out.Rate, nil
}

// BusinessSentiment scores the stored reviews of a business. limit <= 0 uses the
// server's default.
func (c *Client) BusinessSentiment(ctx context.Context, businessID string, limit int) (*server.BusinessSentimentResponse, error) {
	path := "/businesses/" + url.PathEscape(businessID) + "/sentiment"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	out := &server.BusinessSentimentResponse{}
	if err := c.do(ctx, http.MethodGet, path, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Health reports the server's health. A 503 is returned as a HealthResponse with
// Healthy false, not as an error.
func (c *Client) Health(ctx context.Context) (*server.HealthResponse, error) {
	out := &server.HealthResponse{}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(out).
		SetError(out). // the body has the same shape on 503
		Get(c.base + "/health")
	if err != nil {
		return nil, err
	}
	if resp.IsError() && resp.StatusCode() != http.StatusServiceUnavailable {
		return nil, &APIError{Status: resp.StatusCode(), Message: resp.Status()}
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	apiErr := &server.ErrorResponse{}
	req := c.rest.R().
		SetContext(ctx).
		SetResult(result).
		SetError(apiErr)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, c.base+path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		msg := apiErr.Error
		if msg == "" {
			msg = resp.Status()
		}
		return &APIError{Status: resp.StatusCode(), Message: msg}
	}
	return nil
}
