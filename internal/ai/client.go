package ai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/flowme-cloud/flowme-backend/internal/metrics"
)

// ErrTimeout is returned when the provider does not answer within the
// configured timeout.
var ErrTimeout = errors.New("AI request timed out")

// maxErrorBody caps how much of a failed response is kept for the error.
const maxErrorBody = 4096

// RequestError is a non-2xx answer from the provider.
type RequestError struct {
	Status int
	Body   string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("AI request failed %d: %s", e.Status, e.Body)
}

// Dispatcher sends one encoded request to the provider.
type Dispatcher interface {
	Dispatch(ctx context.Context, target *Target, body []byte) ([]byte, error)
}

// HTTPDispatcher posts requests over HTTP with bearer auth.
type HTTPDispatcher struct {
	http *http.Client
}

// NewHTTPDispatcher builds a dispatcher. A nil client uses a fresh one
// without a global timeout; the per-call timeout comes from the Target.
func NewHTTPDispatcher(hc *http.Client) *HTTPDispatcher {
	if hc == nil {
		hc = &http.Client{}
	}
	return &HTTPDispatcher{http: hc}
}

// Dispatch bounds the whole exchange, including reading the body, by
// target.Timeout.
func (d *HTTPDispatcher) Dispatch(ctx context.Context, target *Target, body []byte) (out []byte, err error) {
	timedOut := false
	defer func() { metrics.RecordAICall(err, timedOut) }()

	if target.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, target.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build AI request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+target.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			timedOut = true
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("failed to call AI provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &RequestError{Status: resp.StatusCode, Body: string(b)}
	}

	out, err = io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			timedOut = true
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("failed to read AI response: %w", err)
	}
	return out, nil
}
