// Package api implements the authenticated HTTP gateway to the StackPilot
// platform. The base URL is chosen per call because most endpoints live on
// whichever backend server owns the application, not on a single API host.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

const (
	// requestTimeout is the timeout for outgoing HTTP requests.
	requestTimeout = 30 * time.Second

	tlsHandshakeTimeout   = 10 * time.Second
	responseHeaderTimeout = 10 * time.Second

	// maxErrorBody caps how much of an error response body is carried in
	// the returned HTTPError.
	maxErrorBody = 4 * 1024
)

// Client issues bearer-authenticated requests against a per-call base URL.
type Client struct {
	httpClient *http.Client
	token      string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Intended for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a gateway client with the given bearer token. An empty
// token produces unauthenticated requests.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				TLSHandshakeTimeout:   tlsHandshakeTimeout,
				ResponseHeaderTimeout: responseHeaderTimeout,
			},
		},
		token: token,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the bearer token used for subsequent requests. Called
// after a successful re-authentication.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Get issues a GET request and returns the unwrapped response body.
func (c *Client) Get(ctx context.Context, baseURL, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, baseURL, path, nil, "")
}

// Post issues a POST request with a JSON body and returns the unwrapped
// response body. A nil body sends an empty request body.
func (c *Client) Post(ctx context.Context, baseURL, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	return c.do(ctx, http.MethodPost, baseURL, path, reader, "application/json")
}

// Delete issues a DELETE request and returns the unwrapped response body.
func (c *Client) Delete(ctx context.Context, baseURL, path string) ([]byte, error) {
	return c.do(ctx, http.MethodDelete, baseURL, path, nil, "")
}

// UploadFile issues a multipart POST carrying the payload under the form
// field "file" with the declared filename.
func (c *Client) UploadFile(ctx context.Context, baseURL, path string, data []byte, filename string) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", "application/gzip")
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart payload: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write multipart payload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart payload: %w", err)
	}

	return c.do(ctx, http.MethodPost, baseURL, path, &buf, writer.FormDataContentType())
}

func (c *Client) do(ctx context.Context, method, baseURL, path string, body io.Reader, contentType string) ([]byte, error) {
	url := strings.TrimRight(baseURL, "/") + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request for %s: %w", method, url, err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := strings.TrimSpace(string(raw))
		if len(message) > maxErrorBody {
			message = message[:maxErrorBody]
		}
		return nil, NewHTTPError(resp.StatusCode, url, message)
	}

	return unwrapEnvelope(raw), nil
}

// unwrapEnvelope returns the payload under a top-level "data" field when the
// response uses the platform's envelope convention, else the raw body.
func unwrapEnvelope(raw []byte) []byte {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Data != nil {
		return envelope.Data
	}
	return raw
}
