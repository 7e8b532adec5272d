package connection

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yndnr/licmesh/internal/infra/buildinfo"
	"github.com/yndnr/licmesh/internal/infra/tlsroots"
)

const (
	// CallerHeader names the principal on whose behalf the CLI acts.
	CallerHeader = "X-Ledger-Caller"

	// DefaultTimeout bounds a single request.
	DefaultTimeout = 30 * time.Second
)

// Options configures an HTTPClient.
type Options struct {
	// Server is host:port or a full http(s) URL.
	Server string

	// Caller is sent as the X-Ledger-Caller header when set.
	Caller string

	// APIKey is "<key_id>:<secret>", sent as a bearer token when set.
	APIKey string

	// CAFile adds a PEM bundle to the trusted roots for https servers.
	CAFile string

	// Insecure disables server certificate verification.
	Insecure bool

	Timeout time.Duration
}

// HTTPClient provides HTTP communication with the server.
type HTTPClient struct {
	baseURL   string
	caller    string
	apiKey    string
	userAgent string
	client    *http.Client
}

// NewHTTPClient creates a new HTTP client.
func NewHTTPClient(opts Options) (*HTTPClient, error) {
	// Ensure baseURL has a scheme
	baseURL := strings.TrimRight(opts.Server, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.CAFile != "" || opts.Insecure {
		pool := tlsroots.NewPool()
		if opts.CAFile != "" {
			if err := pool.AddCertFile(opts.CAFile); err != nil {
				return nil, err
			}
		}
		transport.TLSClientConfig = pool.ClientTLSConfig(opts.Insecure)
	}

	return &HTTPClient{
		baseURL:   baseURL,
		caller:    opts.Caller,
		apiKey:    opts.APIKey,
		userAgent: buildinfo.UserAgent("licmesh-cli"),
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}, nil
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, path string) (*http.Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with JSON body.
func (c *HTTPClient) Post(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.Do(ctx, http.MethodPost, path, body)
}

// Do sends a request, encoding body as JSON when non-nil.
func (c *HTTPClient) Do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.addHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.client.Do(req)
}

// Call sends a request and decodes the envelope's data into target.
func (c *HTTPClient) Call(ctx context.Context, method, path string, body, target any) error {
	resp, err := c.Do(ctx, method, path, body)
	if err != nil {
		return err
	}
	return ParseResponse(resp, target)
}

func (c *HTTPClient) addHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if c.caller != "" {
		req.Header.Set(CallerHeader, c.caller)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
}

// BaseURL returns the base URL of the client.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// APIError is a non-2xx reply from the server.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
	Details   any
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	if e.Details != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// IsCode reports whether err is an APIError carrying code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

type envelope struct {
	Code      string          `json:"code"`
	Message   string          `json:"message"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
	Details   any             `json:"details"`
}

// ParseResponse closes resp.Body and decodes the envelope's data into
// target. A nil target discards the payload.
func ParseResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		if decodeErr == nil {
			apiErr.Code = env.Code
			apiErr.Message = env.Message
			apiErr.RequestID = env.RequestID
			apiErr.Details = env.Details
		}
		return apiErr
	}
	if decodeErr != nil {
		return fmt.Errorf("parse response: %w", decodeErr)
	}

	if target != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, target); err != nil {
			return fmt.Errorf("parse response data: %w", err)
		}
	}
	return nil
}
