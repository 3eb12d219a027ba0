// Package autoapply hands high-scoring submissions off to the auto-apply
// collaborator service. Resumes that already clear the ATS threshold skip
// human review entirely, so the dispatch core never stores them; it only
// tells the collaborator to submit.
package autoapply

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/okiro/relais/internal/log"
)

// Submission is the payload delivered to the collaborator endpoint.
type Submission struct {
	CandidateID string  `json:"candidate_id"`
	JobID       string  `json:"job_id"`
	ResumeURL   string  `json:"resume_url,omitempty"`
	ATSScore    float64 `json:"ats_score"`
}

// Forwarder delivers submissions to the auto-apply collaborator.
type Forwarder interface {
	Forward(ctx context.Context, sub Submission) error
}

// RetryConfig holds retry configuration for forward requests.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts per submission.
	MaxAttempts int

	// BackoffBase is the initial backoff duration.
	BackoffBase time.Duration

	// BackoffMultiplier is applied to backoff on each retry.
	BackoffMultiplier float64

	// MaxBackoff caps the maximum backoff duration.
	MaxBackoff time.Duration
}

// DefaultRetryConfig returns sensible retry defaults for forwarding.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		BackoffBase:       2 * time.Second,
		BackoffMultiplier: 2.0,
		MaxBackoff:        30 * time.Second,
	}
}

// Config configures the forwarder.
type Config struct {
	// Endpoint is the collaborator URL submissions are POSTed to.
	// Empty disables forwarding.
	Endpoint string

	// Timeout bounds each individual request. Defaults to 10s.
	Timeout time.Duration

	// Retry overrides the default retry behaviour when non-zero.
	Retry RetryConfig
}

// New builds a Forwarder for the given config. An empty endpoint returns
// a forwarder that just logs and drops, so callers never have to check.
func New(cfg Config) Forwarder {
	if cfg.Endpoint == "" {
		return disabled{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}
	return &Client{
		endpoint:   cfg.Endpoint,
		retry:      cfg.Retry,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// disabled is the no-endpoint forwarder.
type disabled struct{}

func (disabled) Forward(ctx context.Context, sub Submission) error {
	log.Info(log.CatForward, "Auto-apply endpoint not configured, dropping submission",
		"candidate", sub.CandidateID, "job", sub.JobID, "score", sub.ATSScore)
	return nil
}

// Client forwards submissions over HTTP with retry and backoff.
type Client struct {
	endpoint   string
	retry      RetryConfig
	httpClient *http.Client
}

// Forward POSTs the submission, retrying transient failures with
// exponential backoff. Client errors other than 408/429 are not retried;
// the collaborator has rejected the payload and will keep rejecting it.
func (c *Client) Forward(ctx context.Context, sub Submission) error {
	body, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		err := c.post(ctx, body)
		if err == nil {
			log.Info(log.CatForward, "Submission forwarded for auto-apply",
				"candidate", sub.CandidateID, "job", sub.JobID, "attempt", attempt)
			return nil
		}
		lastErr = err

		var re *requestError
		if errors.As(err, &re) && !re.retryable {
			return fmt.Errorf("forward submission for %s/%s: %w", sub.CandidateID, sub.JobID, err)
		}

		if attempt < c.retry.MaxAttempts {
			backoff := c.calculateBackoff(attempt)
			log.Warn(log.CatForward, "Forward failed, retrying",
				"candidate", sub.CandidateID, "job", sub.JobID,
				"attempt", attempt, "max_attempts", c.retry.MaxAttempts,
				"backoff", backoff.String(), "error", err.Error())

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return fmt.Errorf("forward submission for %s/%s: %w", sub.CandidateID, sub.JobID, lastErr)
}

func (c *Client) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &requestError{retryable: true, err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &requestError{
		retryable: retryableStatus(resp.StatusCode),
		err:       fmt.Errorf("collaborator returned %s", resp.Status),
	}
}

// calculateBackoff computes exponential backoff duration with jitter.
// Jitter prevents synchronized retries across daemon instances.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	multiplier := 1.0
	for i := 1; i < attempt; i++ {
		multiplier *= c.retry.BackoffMultiplier
	}

	backoff := time.Duration(float64(c.retry.BackoffBase) * multiplier)
	if backoff > c.retry.MaxBackoff {
		backoff = c.retry.MaxBackoff
	}

	jitter := float64(backoff) * 0.25 * (rand.Float64()*2 - 1)
	return backoff + time.Duration(jitter)
}

// requestError carries whether a failed request is worth retrying.
type requestError struct {
	retryable bool
	err       error
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func retryableStatus(status int) bool {
	switch {
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return true
	case status >= 500:
		return true
	default:
		return false
	}
}
