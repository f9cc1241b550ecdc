package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/muurk/espfw/internal/logging"
	"github.com/muurk/espfw/internal/models"
	"github.com/muurk/espfw/internal/urls"
	"github.com/muurk/espfw/internal/version"
	"go.uber.org/zap"
)

const (
	// DefaultMaxRetries is 0: list calls are attempted once unless configured
	DefaultMaxRetries = 0

	// DefaultRetryDelay is the initial delay between retry attempts
	DefaultRetryDelay = 500 * time.Millisecond

	// DefaultMaxRetryDelay caps the exponential backoff
	DefaultMaxRetryDelay = 10 * time.Second

	// maxErrorBody bounds how much of an error response is read
	maxErrorBody = 64 << 10
)

// TokenSource supplies the bearer token for protected endpoints.
type TokenSource interface {
	Token() string
}

// StaticToken is a fixed bearer token.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token() string { return string(t) }

// Client talks to the firmware backend REST API.
type Client struct {
	// BaseURL is the API root, e.g. "http://localhost:5000/api"
	BaseURL string

	// HTTPClient is the underlying HTTP client. It has no timeout by default.
	HTTPClient *http.Client

	// Tokens provides the bearer token for /devices and /projects
	Tokens TokenSource

	// MaxRetries is the number of extra attempts for list calls
	MaxRetries int

	// RetryDelay is the initial delay between retry attempts
	RetryDelay time.Duration

	// MaxRetryDelay is the maximum delay for exponential backoff
	MaxRetryDelay time.Duration

	// UseExponentialBackoff doubles RetryDelay after each attempt
	UseExponentialBackoff bool

	// ReconnectDelay is the initial delay before Watch redials
	ReconnectDelay time.Duration
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, tokens TokenSource) *Client {
	if tokens == nil {
		tokens = StaticToken("")
	}
	return &Client{
		BaseURL:               strings.TrimRight(baseURL, "/"),
		HTTPClient:            &http.Client{},
		Tokens:                tokens,
		MaxRetries:            DefaultMaxRetries,
		RetryDelay:            DefaultRetryDelay,
		MaxRetryDelay:         DefaultMaxRetryDelay,
		UseExponentialBackoff: true,
		ReconnectDelay:        time.Second,
	}
}

// SetTimeout sets the HTTP request timeout. Zero disables it.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

// SetRetry configures retry behavior for list calls
func (c *Client) SetRetry(maxRetries int, retryDelay time.Duration) {
	c.MaxRetries = maxRetries
	c.RetryDelay = retryDelay
}

// UploadRequest is the multipart upload form.
type UploadRequest struct {
	Version     string
	Description string
	EspID       string
	FileName    string
	File        io.Reader
}

// LoginResponse is returned by Login.
type LoginResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

type request struct {
	method      string
	path        string
	body        []byte
	contentType string
	auth        bool
}

// ListFirmwares fetches every firmware record.
func (c *Client) ListFirmwares(ctx context.Context) ([]models.Firmware, error) {
	var firmwares []models.Firmware
	err := c.withRetry(ctx, func() error {
		body, err := c.fetch(ctx, request{method: http.MethodGet, path: urls.FirmwareList})
		if err != nil {
			return err
		}
		firmwares, err = models.DecodeFirmwares(body)
		if err != nil {
			return NewParseError("failed to parse firmware list", err)
		}
		return nil
	})
	return firmwares, err
}

// ListDevices fetches the devices visible to the session user. A body that
// is not a JSON array yields an empty list.
func (c *Client) ListDevices(ctx context.Context) ([]models.Device, error) {
	var devices []models.Device
	err := c.withRetry(ctx, func() error {
		body, err := c.fetch(ctx, request{method: http.MethodGet, path: urls.Devices, auth: true})
		if err != nil {
			return err
		}
		devices, err = models.DecodeDevices(body)
		if err != nil {
			return NewParseError("failed to parse device list", err)
		}
		return nil
	})
	return devices, err
}

// ListProjects fetches the projects visible to the session user.
func (c *Client) ListProjects(ctx context.Context) ([]models.Project, error) {
	var projects []models.Project
	err := c.withRetry(ctx, func() error {
		body, err := c.fetch(ctx, request{method: http.MethodGet, path: urls.Projects, auth: true})
		if err != nil {
			return err
		}
		projects, err = models.DecodeProjects(body)
		if err != nil {
			return NewParseError("failed to parse project list", err)
		}
		return nil
	})
	return projects, err
}

// Upload posts a firmware binary with its metadata. Fields are sent as
// given, including empty ones. The created record is returned when the
// backend echoes it.
func (c *Client) Upload(ctx context.Context, up UploadRequest) (*models.Firmware, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, field := range [][2]string{
		{"version", up.Version},
		{"description", up.Description},
		{"esp_id", up.EspID},
	} {
		if err := mw.WriteField(field[0], field[1]); err != nil {
			return nil, fmt.Errorf("failed to build upload form: %w", err)
		}
	}
	part, err := mw.CreateFormFile("file", up.FileName)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}
	if up.File != nil {
		if _, err := io.Copy(part, up.File); err != nil {
			return nil, fmt.Errorf("failed to read firmware file: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}

	body, err := c.fetch(ctx, request{
		method:      http.MethodPost,
		path:        urls.FirmwareUpload,
		body:        buf.Bytes(),
		contentType: mw.FormDataContentType(),
	})
	if err != nil {
		if apiErr, ok := asAPIError(err); ok && apiErr.Type == ErrTypeHTTP && apiErr.Body == "" {
			apiErr.Body = "Failed to upload firmware"
		}
		return nil, err
	}

	var created struct {
		Firmware *models.Firmware `json:"firmware"`
	}
	if json.Unmarshal(body, &created) == nil && created.Firmware != nil {
		return created.Firmware, nil
	}
	var fw models.Firmware
	if json.Unmarshal(body, &fw) == nil && fw.ID != "" {
		return &fw, nil
	}
	return nil, nil
}

// Download streams the firmware binary into w and returns the byte count.
func (c *Client) Download(ctx context.Context, id string, w io.Writer) (int64, error) {
	resp, err := c.send(ctx, request{method: http.MethodGet, path: urls.FirmwareDownload(id)})
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, NewNetworkError("download interrupted", err)
	}
	return n, nil
}

// Delete removes a firmware record and its binary.
func (c *Client) Delete(ctx context.Context, id string) error {
	_, err := c.fetch(ctx, request{method: http.MethodDelete, path: urls.FirmwareDelete(id)})
	return err
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	payload, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}
	body, err := c.fetch(ctx, request{
		method:      http.MethodPost,
		path:        urls.Login,
		body:        payload,
		contentType: "application/json",
	})
	if err != nil {
		return nil, err
	}

	var out LoginResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, NewParseError("failed to parse login response", err)
	}
	if out.Token == "" {
		return nil, NewParseError("login response has no token", nil)
	}
	return &out, nil
}

// fetch sends the request and reads the whole body.
func (c *Client) fetch(ctx context.Context, r request) ([]byte, error) {
	resp, err := c.send(ctx, r)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewNetworkError("failed to read response body", err)
	}
	return body, nil
}

// send performs one request. Non-2xx responses are turned into errors and
// their body is closed; on success the caller owns resp.Body.
func (c *Client) send(ctx context.Context, r request) (*http.Response, error) {
	target := urls.Join(c.BaseURL, r.path)

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return nil, NewNetworkError(fmt.Sprintf("failed to create %s request", r.method), err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if r.auth {
		req.Header.Set("Authorization", "Bearer "+c.Tokens.Token())
	}

	logging.LogRequest(r.method, target)
	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, NewNetworkError(fmt.Sprintf("%s %s failed", r.method, r.path), err)
	}
	logging.LogResponse(r.method, target, resp.StatusCode, time.Since(start))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer func() { _ = resp.Body.Close() }()
	message := errorMessage(resp.Body)

	if resp.StatusCode == http.StatusUnauthorized {
		apiErr := NewAuthError("authentication failed (token missing or expired)")
		apiErr.Body = message
		return nil, apiErr
	}
	return nil, NewHTTPError(resp.StatusCode,
		fmt.Sprintf("%s %s returned status %d", r.method, r.path, resp.StatusCode), message)
}

// errorMessage extracts the "message" field of a JSON error body.
func errorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(data, &payload) != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}

// withRetry runs attempt until it succeeds, fails with a non-retryable
// error, or MaxRetries extra attempts are used up.
func (c *Client) withRetry(ctx context.Context, attempt func() error) error {
	var lastErr error
	currentDelay := c.RetryDelay

	for i := 0; i <= c.MaxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return NewNetworkError("retry aborted", ctx.Err())
			case <-time.After(currentDelay):
			}

			if c.UseExponentialBackoff {
				currentDelay *= 2
				if currentDelay > c.MaxRetryDelay {
					currentDelay = c.MaxRetryDelay
				}
			}
		}

		err := attempt()
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}
		if i < c.MaxRetries {
			logging.Debug("Retrying backend request",
				zap.Int("attempt", i+1),
				zap.Duration("delay", currentDelay),
				zap.Error(err),
			)
		}
	}

	return lastErr
}
