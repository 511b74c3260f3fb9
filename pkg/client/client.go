// Package client is the Go client for the reelforge API, used by reelctl and
// the job monitor.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rudrakspatel/reelforge/pkg/models"
)

// Sentinel errors for API client failures.
var (
	ErrUnreachable     = errors.New("reelforge api unreachable")
	ErrTimeout         = errors.New("reelforge api timeout")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNotFound        = errors.New("not found")
	ErrActiveJobExists = errors.New("project already has an active reel job")
	ErrServiceSleeping = errors.New("compute service is sleeping")
	ErrJobFinished     = errors.New("reel job already finished")
)

// Client talks to the reelforge HTTP API.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// New creates an API client. The timeout bounds every request.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// StartReel creates a reel job for the project. The job completes
// asynchronously; poll GetJob or LatestReel until a terminal status.
func (c *Client) StartReel(ctx context.Context, projectID, userID uuid.UUID) (*models.ReelJob, error) {
	body := map[string]string{"user_id": userID.String()}
	var job models.ReelJob
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/projects/%s/reel", projectID), body, &job)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// LatestReel fetches the most recent reel job for the project.
func (c *Client) LatestReel(ctx context.Context, projectID uuid.UUID) (*models.ReelJob, error) {
	var job models.ReelJob
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/projects/%s/reel", projectID), nil, &job)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// GetJob fetches one reel job by id.
func (c *Client) GetJob(ctx context.Context, jobID uuid.UUID) (*models.ReelJob, error) {
	var job models.ReelJob
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/jobs/%s", jobID), nil, &job)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// CancelReel cancels a running reel job.
func (c *Client) CancelReel(ctx context.Context, jobID uuid.UUID) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/jobs/%s/cancel", jobID), nil, nil)
}

// ComputeHealth reports the server's view of the compute service.
func (c *Client) ComputeHealth(ctx context.Context) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/compute/health", nil, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

// do performs one request and decodes the response envelope into out.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}

	if out == nil {
		return nil
	}
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decoding response data: %w", err)
	}
	return nil
}

// decodeAPIError maps the server's error envelope onto sentinel errors.
func decodeAPIError(resp *http.Response) error {
	var env struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&env)

	switch env.Error.Code {
	case "NOT_FOUND":
		return ErrNotFound
	case "INVALID_TOKEN", "FORBIDDEN":
		return fmt.Errorf("%w: %s", ErrUnauthorized, env.Error.Message)
	case "ACTIVE_JOB_EXISTS":
		return ErrActiveJobExists
	case "SERVICE_SLEEPING":
		return ErrServiceSleeping
	case "JOB_FINISHED":
		return ErrJobFinished
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if env.Error.Message != "" {
		return fmt.Errorf("api error %s (status %d): %s", env.Error.Code, resp.StatusCode, env.Error.Message)
	}
	return fmt.Errorf("api error: status %d", resp.StatusCode)
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}
