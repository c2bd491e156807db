// Package httputil wraps an http.Client with JSON helpers shared by the
// HTTP based adapters.
package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

type Client struct {
	*http.Client
}

func NewClient(requestTimeout time.Duration) *Client {
	if requestTimeout <= 0 {
		requestTimeout = defaultTimeout
	}
	return &Client{&http.Client{Timeout: requestTimeout}}
}

// Get performs a GET request and returns the response status and body.
func (c *Client) Get(
	ctx context.Context, url string, header map[string]string,
) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, err
	}
	return c.doRequest(req, header)
}

// Post JSON encodes body and posts it to url.
func (c *Client) Post(
	ctx context.Context, url string, body interface{}, header map[string]string,
) (int, []byte, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doRequest(req, header)
}

func (c *Client) doRequest(req *http.Request, header map[string]string) (int, []byte, error) {
	for key, value := range header {
		req.Header.Set(key, value)
	}

	rs, err := c.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer rs.Body.Close()

	body, err := io.ReadAll(rs.Body)
	if err != nil {
		return rs.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return rs.StatusCode, body, nil
}

// IsSuccess returns whether status is a 2xx code.
func IsSuccess(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}
