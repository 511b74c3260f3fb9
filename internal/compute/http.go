package compute

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rudrakspatel/reelforge/pkg/models"
)

// HTTPClient implements Client against the compute service's HTTP API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a compute client. The timeout bounds every request,
// including health checks.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Name() string { return "http" }

func (c *HTTPClient) DetectMoments(ctx context.Context, req StepRequest) ([]models.Moment, error) {
	var out struct {
		Moments []models.Moment `json:"moments"`
	}
	if err := c.post(ctx, "/v1/detect", req, &out); err != nil {
		return nil, err
	}
	if out.Moments == nil {
		return []models.Moment{}, nil
	}
	return out.Moments, nil
}

func (c *HTTPClient) ComposeReel(ctx context.Context, req ComposeRequest) (string, error) {
	var out struct {
		ReelURL string `json:"reel_url"`
	}
	if err := c.post(ctx, "/v1/compose", req, &out); err != nil {
		return "", err
	}
	if out.ReelURL == "" {
		return "", fmt.Errorf("%w: empty reel_url", ErrComputeRejected)
	}
	return out.ReelURL, nil
}

func (c *HTTPClient) Health(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("building health request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrComputeUnhealthy, resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body any, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrComputeRejected, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding compute response: %w", err)
	}
	return nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrComputeTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrComputeTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrComputeUnreachable, err)
	}

	return fmt.Errorf("%w: %v", ErrComputeUnreachable, err)
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
