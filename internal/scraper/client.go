package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/postecho/postecho/pkg/config"
	"github.com/postecho/postecho/pkg/logging"
	"github.com/postecho/postecho/pkg/telemetry"
)

// JobStatus is the lifecycle state reported by the job-execution service.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// JobState is one poll result for a triggered actor run.
type JobState struct {
	Status         JobStatus
	ResultLocation string
}

// JobClient is the contract the onboarding pipeline relies on. Scraping runs
// as asynchronous third-party actor jobs: trigger returns immediately, results
// are obtained by polling.
type JobClient interface {
	Trigger(ctx context.Context, actor, targetURL string) (string, error)
	PollStatus(ctx context.Context, jobID string) (*JobState, error)
	FetchResult(ctx context.Context, resultLocation string) ([]json.RawMessage, error)
}

// Client talks to the actor-execution HTTP API
type Client struct {
	baseURL    string
	token      string
	maxPosts   int
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a new scraping job client
func New(cfg *config.ScraperConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("scraper_base_url is required")
	}
	if cfg.APIToken == "" {
		return nil, fmt.Errorf("scraper_api_token is required")
	}

	logger := logging.GetLogger().With(zap.String("component", "scraper-client"))
	logger.Info("Scraper client initialized", zap.String("url", cfg.BaseURL))

	return &Client{
		baseURL:  cfg.BaseURL,
		token:    cfg.APIToken,
		maxPosts: cfg.MaxPosts,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}, nil
}

// Trigger starts an actor run against a target URL and returns the job ID.
// It does not wait for the run to finish.
func (c *Client) Trigger(ctx context.Context, actor, targetURL string) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "scraper.trigger")
	defer span.End()

	payload := map[string]interface{}{
		"targetUrl": targetURL,
		"maxItems":  c.maxPosts,
	}

	var response struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	endpoint := fmt.Sprintf("%s/acts/%s/runs", c.baseURL, url.PathEscape(actor))
	if err := c.do(ctx, http.MethodPost, endpoint, payload, &response); err != nil {
		return "", fmt.Errorf("failed to trigger actor %s: %w", actor, err)
	}
	if response.Data.ID == "" {
		return "", fmt.Errorf("actor %s run created without an id", actor)
	}

	c.logger.Info("Actor run triggered",
		zap.String("actor", actor),
		zap.String("job_id", response.Data.ID))

	return response.Data.ID, nil
}

// PollStatus fetches the current state of a run
func (c *Client) PollStatus(ctx context.Context, jobID string) (*JobState, error) {
	ctx, span := telemetry.StartSpan(ctx, "scraper.poll_status")
	defer span.End()

	var response struct {
		Data struct {
			Status           string `json:"status"`
			DefaultDatasetID string `json:"defaultDatasetId"`
		} `json:"data"`
	}
	endpoint := fmt.Sprintf("%s/actor-runs/%s", c.baseURL, url.PathEscape(jobID))
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, fmt.Errorf("failed to poll run %s: %w", jobID, err)
	}

	state := &JobState{ResultLocation: response.Data.DefaultDatasetID}
	switch response.Data.Status {
	case "SUCCEEDED":
		state.Status = JobSucceeded
	case "FAILED", "ABORTED", "TIMED-OUT":
		state.Status = JobFailed
	default:
		state.Status = JobRunning
	}
	return state, nil
}

// FetchResult downloads the raw records a finished run produced
func (c *Client) FetchResult(ctx context.Context, resultLocation string) ([]json.RawMessage, error) {
	ctx, span := telemetry.StartSpan(ctx, "scraper.fetch_result")
	defer span.End()

	if resultLocation == "" {
		return nil, fmt.Errorf("result location is empty")
	}

	var records []json.RawMessage
	endpoint := fmt.Sprintf("%s/datasets/%s/items", c.baseURL, url.PathEscape(resultLocation))
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &records); err != nil {
		return nil, fmt.Errorf("failed to fetch dataset %s: %w", resultLocation, err)
	}
	return records, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(data), 256))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
