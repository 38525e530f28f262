package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"os"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docsync/internal/domain"
	"github.com/kailas-cloud/docsync/internal/metrics"
	"github.com/kailas-cloud/docsync/internal/version"
)

// Retry defaults: up to 3 additional attempts, waiting attempt*500ms plus up to 500ms of jitter.
const (
	DefaultMaxRetries = 3
	DefaultBackoff    = 500 * time.Millisecond
	DefaultTimeout    = 30 * time.Second
)

// Doer performs a single HTTP round trip.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds the request client settings.
type Config struct {
	HTTPClient Doer          // nil = keep-alive-free client with Timeout
	Timeout    time.Duration // per attempt
	MaxRetries int           // 0 = DefaultMaxRetries, negative disables retries
	Backoff    time.Duration
	Logger     *zap.Logger
}

// Client sends requests to the search engine, retrying transient transport failures.
// It keeps no connection state between calls: keep-alives are disabled so each attempt
// dials a fresh connection.
type Client struct {
	doer       Doer
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(max time.Duration) time.Duration
}

// NewClient creates a request client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	doer := cfg.HTTPClient
	if doer == nil {
		doer = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:             http.ProxyFromEnvironment,
				DisableKeepAlives: true,
			},
		}
	}

	return &Client{
		doer:       doer,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		logger:     cfg.Logger,
		sleep:      sleepCtx,
		jitter:     randomJitter,
	}
}

// Send performs req. Transient failures are retried; the reply body must be JSON.
func (c *Client) Send(ctx context.Context, req domain.Request) (domain.Response, error) {
	start := time.Now()
	defer func() {
		metrics.SearchRequestDuration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())
	}()

	for attempt := 1; ; attempt++ {
		status, raw, err := c.attempt(ctx, req)
		if err != nil {
			transient := ctx.Err() == nil && IsTransient(err)
			if transient && attempt <= c.maxRetries {
				metrics.SearchRequestsTotal.WithLabelValues(req.Method, "transient").Inc()
				metrics.SearchRetriesTotal.WithLabelValues(req.Method).Inc()

				wait := c.wait(attempt)
				c.logger.Warn("Search request failed, backing off",
					zap.String("method", req.Method),
					zap.String("url", req.URL),
					zap.Int("attempt", attempt),
					zap.Duration("wait", wait),
					zap.Error(err),
				)
				if serr := c.sleep(ctx, wait); serr != nil {
					return domain.Response{}, &domain.TransportError{Request: req, Attempts: attempt, Err: serr}
				}
				continue
			}

			outcome := "transport"
			if transient {
				outcome = "transient"
			}
			metrics.SearchRequestsTotal.WithLabelValues(req.Method, outcome).Inc()
			return domain.Response{}, &domain.TransportError{
				Request:   req,
				Attempts:  attempt,
				Transient: transient,
				Err:       err,
			}
		}

		var body any
		if err := json.Unmarshal(raw, &body); err != nil {
			metrics.SearchRequestsTotal.WithLabelValues(req.Method, "invalid_response").Inc()
			return domain.Response{}, &domain.InvalidResponseError{Request: req, Status: status, Body: raw, Err: err}
		}

		metrics.SearchRequestsTotal.WithLabelValues(req.Method, "ok").Inc()
		return domain.Response{Status: status, Body: body, Raw: raw}, nil
	}
}

// attempt performs exactly one HTTP call and reads the whole body.
func (c *Client) attempt(ctx context.Context, req domain.Request) (int, []byte, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", version.UserAgent())
	if req.Body != nil {
		ct := req.ContentType
		if ct == "" {
			ct = "application/json"
		}
		httpReq.Header.Set("Content-Type", ct)
	}
	httpReq.Close = true

	resp, err := c.doer.Do(httpReq)
	if err != nil {
		return 0, nil, err //nolint:wrapcheck // classified by the caller
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response body: %w", err)
	}
	return resp.StatusCode, raw, nil
}

// wait returns the pause before retrying after the given (1-based) attempt.
func (c *Client) wait(attempt int) time.Duration {
	return time.Duration(attempt)*c.backoff + c.jitter(c.backoff)
}

// IsTransient reports connection resets, broken pipes and timeouts.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return rand.N(limit)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("backoff interrupted: %w", ctx.Err())
	case <-t.C:
		return nil
	}
}
