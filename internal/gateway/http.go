package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/noah-isme/gema-assignment-api/internal/observability"
)

// InternalServiceHeader identifies this service to its siblings.
const InternalServiceHeader = "X-Internal-Service"

// StatusError is a non-2xx answer from a sibling service.
type StatusError struct {
	Dependency string
	Code       int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Dependency, e.Code)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Dependency, e.Code, e.Body)
}

// Temporary reports whether retrying may succeed.
func (e *StatusError) Temporary() bool {
	return e.Code >= http.StatusInternalServerError ||
		e.Code == http.StatusRequestTimeout ||
		e.Code == http.StatusTooManyRequests
}

// restClient performs single JSON GET requests. Retry and breaking live above it.
type restClient struct {
	dependency  string
	baseURL     string
	serviceName string
	client      *http.Client
}

func newRestClient(dependency, baseURL, serviceName string, timeout time.Duration) *restClient {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &restClient{
		dependency:  dependency,
		baseURL:     strings.TrimRight(baseURL, "/"),
		serviceName: serviceName,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *restClient) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.serviceName != "" {
		req.Header.Set(InternalServiceHeader, c.serviceName)
	}
	if id := observability.CorrelationID(ctx); id != "" {
		req.Header.Set(observability.CorrelationHeader, id)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", c.dependency, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", c.dependency, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			Dependency: c.dependency,
			Code:       resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	return body, nil
}

func (c *restClient) getJSON(ctx context.Context, path string, dest interface{}) error {
	body, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", c.dependency, err)
	}
	return nil
}

// getString accepts either a JSON string or a plain text body.
func (c *restClient) getString(ctx context.Context, path string) (string, error) {
	body, err := c.get(ctx, path)
	if err != nil {
		return "", err
	}
	var value string
	if err := json.Unmarshal(body, &value); err == nil {
		return strings.TrimSpace(value), nil
	}
	return strings.TrimSpace(string(body)), nil
}
