// internal/adapters/predictapi/client.go
package predictapi

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"house_price/internal/adapters/observability"
	"house_price/internal/domain"
)

// maxAttempts caps WithAttempts.
const maxAttempts = 4

// ErrMalformedResponse means a 2xx body was not a usable prediction.
var ErrMalformedResponse = errors.New("predictapi: malformed response")

// StatusError is a non-2xx reply. Detail comes from the {"detail": ...} body
// when the server sent one.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("predictapi: remote %d", e.Code)
	}
	return fmt.Sprintf("predictapi: remote %d: %s", e.Code, e.Detail)
}

// TransportError wraps network failures (DNS, refused, reset, timeout).
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return "predictapi: " + e.Op + ": " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

type Client struct {
	base     string
	hc       *http.Client
	rl       *rate.Limiter
	attempts int
}

type Option func(*Client)

// WithAttempts allows up to n tries for 429 and gateway errors. The default
// is a single try: a failed estimate is surfaced and the user resubmits.
func WithAttempts(n int) Option {
	return func(c *Client) {
		if n < 1 {
			n = 1
		}
		if n > maxAttempts {
			n = maxAttempts
		}
		c.attempts = n
	}
}

func New(base string, rps int, timeout time.Duration, opts ...Option) (*Client, error) {
	if strings.TrimSpace(base) == "" {
		return nil, fmt.Errorf("predict API base URL is required")
	}
	if rps <= 0 {
		rps = 5
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	c := &Client{
		base:     strings.TrimRight(base, "/"),
		hc:       &http.Client{Timeout: timeout},
		rl:       rate.NewLimiter(rate.Limit(rps), rps),
		attempts: 1,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// ---- Public API ----

func (c *Client) Predict(ctx context.Context, in domain.PropertyInput) (domain.PredictionResult, error) {
	var raw struct {
		PredictedPrice     *float64                   `json:"predicted_price"`
		ConfidenceInterval *domain.ConfidenceInterval `json:"confidence_interval"`
	}
	if err := c.do(ctx, http.MethodPost, "/predict", in, &raw); err != nil {
		return domain.PredictionResult{}, err
	}
	if raw.PredictedPrice == nil {
		return domain.PredictionResult{}, fmt.Errorf("%w: predicted_price missing", ErrMalformedResponse)
	}
	return domain.PredictionResult{
		PredictedPrice:     *raw.PredictedPrice,
		ConfidenceInterval: raw.ConfidenceInterval,
	}, nil
}

func (c *Client) PredictBatch(ctx context.Context, ins []domain.PropertyInput) ([]float64, error) {
	var raw struct {
		Predictions []float64 `json:"predictions"`
	}
	if err := c.do(ctx, http.MethodPost, "/predict/batch", ins, &raw); err != nil {
		return nil, err
	}
	if len(raw.Predictions) != len(ins) {
		return nil, fmt.Errorf("%w: %d predictions for %d inputs", ErrMalformedResponse, len(raw.Predictions), len(ins))
	}
	return raw.Predictions, nil
}

func (c *Client) Health(ctx context.Context) (domain.HealthStatus, error) {
	var out domain.HealthStatus
	return out, c.do(ctx, http.MethodGet, "/health", nil, &out)
}

func (c *Client) Source() domain.Source { return domain.SourceRemote }

// ---- Internals ----

// do sends one JSON request with client-side rate limiting and decodes a 2xx
// body into out. With WithAttempts > 1, 429 and gateway errors are retried
// with backoff.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
		payload = b
	}

	var lastErr error
	for i := 0; i < c.attempts; i++ {
		// build a fresh request each attempt
		var rd io.Reader
		if payload != nil {
			rd = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
		if err != nil {
			return err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "house-price/1.0")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal("predictapi", path, 0, time.Since(start))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = &TransportError{Op: method + " " + path, Err: err}
			if i < c.attempts-1 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		observability.ObserveExternal("predictapi", path, resp.StatusCode, time.Since(start))

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
			}
			return nil

		case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode == http.StatusBadGateway,
			resp.StatusCode == http.StatusServiceUnavailable, resp.StatusCode == http.StatusGatewayTimeout:
			// Prefer server-provided Retry-After; otherwise exponential backoff.
			wait := retryAfter(resp)
			lastErr = statusError(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			if i < c.attempts-1 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			err := statusError(resp)
			resp.Body.Close()
			return err
		}
	}
	return lastErr
}

// statusError reads a small error body and pulls out "detail" when it is a
// string. FastAPI-style validation errors carry a list there; those keep the
// raw body text instead.
func statusError(resp *http.Response) *StatusError {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	se := &StatusError{Code: resp.StatusCode}
	var env struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(b, &env); err == nil && len(env.Detail) > 0 {
		var s string
		if json.Unmarshal(env.Detail, &s) == nil {
			se.Detail = s
			return se
		}
		se.Detail = strings.TrimSpace(string(env.Detail))
		return se
	}
	se.Detail = strings.TrimSpace(string(b))
	return se
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles from 100ms per attempt with up to +50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 100 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
