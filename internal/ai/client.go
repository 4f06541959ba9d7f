// Package ai is the client for the remote prediction service. The service
// receives a question plus the applicant profile and returns an answer with
// a confidence and an optional canonical-intent classification.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"formpilot/internal/config"
	"formpilot/internal/profile"
)

// maxPromptOptions bounds prompt size: option sets larger than this are
// withheld from the request entirely.
const maxPromptOptions = 20

// Request is one prediction request.
type Request struct {
	Question  string           `json:"question"`
	FieldType string           `json:"fieldType"`
	Options   []string         `json:"options,omitempty"`
	UserEmail string           `json:"userEmail,omitempty"`
	Profile   *profile.Profile `json:"profile,omitempty"`
}

// Response is the service's answer.
type Response struct {
	Answer          string  `json:"answer"`
	Confidence      float64 `json:"confidence"`
	Reasoning       string  `json:"reasoning,omitempty"`
	Intent          string  `json:"intent,omitempty"`
	NewIntent       bool    `json:"newIntent,omitempty"`
	SuggestedIntent string  `json:"suggestedIntent,omitempty"`
}

// Client talks to the prediction service.
type Client struct {
	baseURL    string
	apiKey     string
	userEmail  string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// New builds a client from config.
func New(cfg config.AIConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 4
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		userEmail:  cfg.UserEmail,
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		limiter:    rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		logger:     logger,
	}
}

// Predict asks the service for an answer. Transient failures (429, 5xx)
// are retried with exponential backoff; an empty intent in the response is
// coerced to "unknown" so downstream code never handles a null intent.
func (c *Client) Predict(ctx context.Context, req Request) (Response, error) {
	if req.UserEmail == "" {
		req.UserEmail = c.userEmail
	}
	if len(req.Options) > maxPromptOptions {
		req.Options = nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return Response{}, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshal prediction request: %w", err)
	}

	const maxRetries = 3
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Response{}, ctx.Err()
			case <-time.After(time.Duration(1<<uint(attempt-1)) * time.Second):
			}
		}

		resp, retryable, err := c.doOnce(ctx, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retryable {
			break
		}
		c.logger.Debug("prediction attempt failed", zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return Response{}, lastErr
}

func (c *Client) doOnce(ctx context.Context, body []byte) (Response, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return Response{}, false, fmt.Errorf("build prediction request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("X-API-Key", c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, true, fmt.Errorf("prediction call: %w", err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return Response{}, true, fmt.Errorf("read prediction response: %w", err)
	}

	if httpResp.StatusCode == http.StatusTooManyRequests || httpResp.StatusCode >= 500 {
		return Response{}, true, fmt.Errorf("prediction service returned %d", httpResp.StatusCode)
	}
	if httpResp.StatusCode != http.StatusOK {
		return Response{}, false, fmt.Errorf("prediction service returned %d: %s", httpResp.StatusCode, string(data))
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return Response{}, false, fmt.Errorf("decode prediction response: %w", err)
	}
	if resp.Intent == "" {
		resp.Intent = "unknown"
	}
	return resp, false, nil
}
