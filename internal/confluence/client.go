package confluence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/flowme-cloud/flowme-backend/internal/logging"
	"github.com/flowme-cloud/flowme-backend/internal/metrics"
	"golang.org/x/time/rate"
)

// Identity selects whose credentials a host call is made with.
type Identity int

const (
	// AsApp acts with the service's own credentials.
	AsApp Identity = iota
	// AsUser forwards the calling user's token from the request context.
	AsUser
)

func (i Identity) String() string {
	if i == AsUser {
		return "user"
	}
	return "app"
}

// ErrNoUserToken is returned for AsUser calls made without a forwarded token.
var ErrNoUserToken = errors.New("no user token in request context")

// APIError is a non-2xx answer from the wiki REST API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Confluence API error %d: %s", e.Status, e.Body)
}

// IsNotFound reports whether err is a 404 from the wiki.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

type userTokenKey struct{}

// WithUserToken attaches the caller's bearer token to ctx for AsUser calls.
func WithUserToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, userTokenKey{}, token)
}

// UserToken returns the bearer token stored by WithUserToken.
func UserToken(ctx context.Context) string {
	if tok, ok := ctx.Value(userTokenKey{}).(string); ok {
		return tok
	}
	return ""
}

// Options configures a Client.
type Options struct {
	BaseURL string

	// AppHTTPClient, when set, is already authenticated for the app identity
	// (for example an oauth2 client credentials client).
	AppHTTPClient *http.Client

	// Basic credentials for the app identity when AppHTTPClient is nil.
	Email    string
	APIToken string

	Limiter *rate.Limiter
	Timeout time.Duration
}

// Client talks to the wiki's attachment and content REST API.
type Client struct {
	baseURL    string
	appClient  *http.Client
	userClient *http.Client
	email      string
	apiToken   string
	limiter    *rate.Limiter
}

// NewClient creates a new wiki REST client
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	appClient := opts.AppHTTPClient
	if appClient == nil {
		appClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		appClient:  appClient,
		userClient: &http.Client{Timeout: timeout},
		email:      opts.Email,
		apiToken:   opts.APIToken,
		limiter:    opts.Limiter,
	}
}

type request struct {
	op      string
	method  string
	path    string
	query   url.Values
	body    []byte
	headers http.Header
}

// send issues one request and returns the body of a 2xx answer. Any other
// status comes back as *APIError.
func (c *Client) send(ctx context.Context, id Identity, r request) ([]byte, error) {
	logger := logging.NewLogger(ctx)
	start := time.Now()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	reqURL := c.baseURL + r.path
	if len(r.query) > 0 {
		reqURL += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, reqURL, body)
	if err != nil {
		logger.LogError(r.op, err)
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range r.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	httpClient, err := c.authorize(ctx, id, req)
	if err != nil {
		logger.LogError(r.op, err)
		metrics.RecordHostCall(time.Since(start), err)
		return nil, err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		logger.LogError(r.op, err)
		metrics.RecordHostCall(time.Since(start), err)
		return nil, fmt.Errorf("confluence request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	duration := time.Since(start)
	if err != nil {
		metrics.RecordHostCall(duration, err)
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Body: string(data)}
		metrics.RecordHostCall(duration, apiErr)
		if resp.StatusCode != http.StatusNotFound {
			logger.LogWarnf(r.op, "confluence returned status %d as=%s", resp.StatusCode, id)
		}
		return nil, apiErr
	}

	metrics.RecordHostCall(duration, nil)
	return data, nil
}

func (c *Client) authorize(ctx context.Context, id Identity, req *http.Request) (*http.Client, error) {
	if id == AsUser {
		token := UserToken(ctx)
		if token == "" {
			return nil, ErrNoUserToken
		}
		req.Header.Set("Authorization", "Bearer "+token)
		return c.userClient, nil
	}
	if c.email != "" || c.apiToken != "" {
		req.SetBasicAuth(c.email, c.apiToken)
	}
	return c.appClient, nil
}

func (c *Client) getJSON(ctx context.Context, id Identity, op, path string, query url.Values, out any) error {
	data, err := c.send(ctx, id, request{op: op, method: http.MethodGet, path: path, query: query})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

func pathf(format string, segments ...string) string {
	escaped := make([]any, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return fmt.Sprintf(format, escaped...)
}
