package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 10 * time.Second

// apiClient is the JSON round trip shared by the HTTP gateways. sign is
// called with the encoded body to set provider-specific auth headers.
type apiClient struct {
	gateway string
	baseURL string
	http    *http.Client
	sign    func(req *http.Request, body []byte)
}

func newAPIClient(gateway, baseURL string, sign func(*http.Request, []byte)) *apiClient {
	return &apiClient{
		gateway: gateway,
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
		sign:    sign,
	}
}

func (c *apiClient) do(ctx context.Context, method, endpoint string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.sign != nil {
		c.sign(req, body)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(c.gateway, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return transportError(c.gateway, err)
	}

	switch {
	case resp.StatusCode >= 500, resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s: status %d", ErrTransient, c.gateway, resp.StatusCode)
	case resp.StatusCode >= 400:
		return invalidResponse(c.gateway, "api error: %s (status: %d)", truncate(respBody, 256), resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return invalidResponse(c.gateway, "failed to unmarshal response: %v", err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
