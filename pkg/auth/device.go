package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/stackpilot-hq/stackpilot-mcp/pkg/logger"
)

const (
	// maxPollAttempts caps the device-authorization status polling
	// regardless of the provider-supplied interval.
	maxPollAttempts = 180

	defaultPollInterval = 5 * time.Second
)

// errAuthorizationPending marks a non-terminal poll result so an exhausted
// retry budget can be reported as a timeout rather than a generic failure.
var errAuthorizationPending = errors.New("authorization pending")

// DeviceFlow performs the device-authorization handshake against the
// identity provider and persists the resulting credential bundle.
type DeviceFlow struct {
	baseURL      string
	httpClient   *http.Client
	out          io.Writer
	pollOverride time.Duration
	now          func() time.Time
}

// DeviceFlowOption configures a DeviceFlow.
type DeviceFlowOption func(*DeviceFlow)

// WithHTTPClient replaces the underlying HTTP client. Intended for tests.
func WithHTTPClient(hc *http.Client) DeviceFlowOption {
	return func(d *DeviceFlow) {
		d.httpClient = hc
	}
}

// WithOutput redirects the operator-facing verification instructions.
func WithOutput(w io.Writer) DeviceFlowOption {
	return func(d *DeviceFlow) {
		d.out = w
	}
}

// WithPollInterval overrides the provider-supplied poll interval.
func WithPollInterval(interval time.Duration) DeviceFlowOption {
	return func(d *DeviceFlow) {
		d.pollOverride = interval
	}
}

// NewDeviceFlow creates a device-authorization client against the given
// identity provider base URL.
func NewDeviceFlow(baseURL string, opts ...DeviceFlowOption) *DeviceFlow {
	d := &DeviceFlow{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		out:        os.Stderr,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type deviceInitResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	Interval        int    `json:"interval"`
}

type deviceStatusResponse struct {
	Status string `json:"status"`
}

type deviceTokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int64        `json:"expires_in"`
	User        Identity     `json:"user"`
	Org         Organization `json:"org"`
}

// Authenticate runs the full device-authorization flow: session init,
// operator verification, status polling, token exchange, persistence. It
// blocks until the operator approves, a terminal failure occurs, or the
// poll budget runs out.
func (d *DeviceFlow) Authenticate(ctx context.Context) (*Credentials, error) {
	var session deviceInitResponse
	if err := d.postJSON(ctx, "/oauth/device/init", nil, &session); err != nil {
		return nil, fmt.Errorf("failed to start device authorization: %w", err)
	}

	fmt.Fprintf(d.out, "To authenticate, open %s and enter the code: %s\n", session.VerificationURI, session.UserCode)
	logger.Infow("device authorization started", "verification_uri", session.VerificationURI)

	if err := d.waitForApproval(ctx, session); err != nil {
		return nil, err
	}

	var token deviceTokenResponse
	payload := map[string]string{"device_code": session.DeviceCode}
	if err := d.postJSON(ctx, "/oauth/device/token", payload, &token); err != nil {
		return nil, fmt.Errorf("failed to exchange device code for token: %w", err)
	}

	creds := &Credentials{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		ExpiresAt:   d.now().Add(time.Duration(token.ExpiresIn) * time.Second),
		User:        token.User,
		Org:         token.Org,
	}
	if err := Save(creds); err != nil {
		return nil, fmt.Errorf("authenticated but failed to persist credentials: %w", err)
	}

	logger.Infow("authenticated", "user", creds.User.Email, "org", creds.Org.Name)
	return creds, nil
}

// waitForApproval polls the provider's status endpoint until a terminal
// state is reached or the attempt cap is hit.
func (d *DeviceFlow) waitForApproval(ctx context.Context, session deviceInitResponse) error {
	interval := d.pollOverride
	if interval == 0 {
		interval = time.Duration(session.Interval) * time.Second
		if interval <= 0 {
			interval = defaultPollInterval
		}
	}

	operation := func() (struct{}, error) {
		var status deviceStatusResponse
		path := "/oauth/device/status?device_code=" + url.QueryEscape(session.DeviceCode)
		if err := d.getJSON(ctx, path, &status); err != nil {
			return struct{}{}, backoff.Permanent(err)
		}

		switch status.Status {
		case "authorized":
			return struct{}{}, nil
		case "expired":
			return struct{}{}, backoff.Permanent(errors.New("device authorization expired"))
		case "denied":
			return struct{}{}, backoff.Permanent(errors.New("device authorization denied"))
		default:
			return struct{}{}, fmt.Errorf("%w (status %q)", errAuthorizationPending, status.Status)
		}
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(interval)),
		backoff.WithMaxTries(maxPollAttempts),
	)
	if err != nil {
		if errors.Is(err, errAuthorizationPending) {
			return fmt.Errorf("device authorization timed out after %d attempts", maxPollAttempts)
		}
		return err
	}
	return nil
}

func (d *DeviceFlow) getJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+path, nil)
	if err != nil {
		return err
	}
	return d.send(req, target)
}

func (d *DeviceFlow) postJSON(ctx context.Context, path string, body any, target any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return d.send(req, target)
}

func (d *DeviceFlow) send(req *http.Request, target any) error {
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("identity provider returned HTTP %d for %s", resp.StatusCode, req.URL.Path)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("failed to decode identity provider response: %w", err)
	}
	return nil
}
