package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kjstillabower/rain-route-planner/internal/observability"
)

var (
	ErrInvalidAPIKey     = errors.New("invalid API key")
	ErrNotFound          = errors.New("not found")
	ErrUpstreamFailure   = errors.New("upstream failure")
	ErrRateLimited       = errors.New("rate limited")
	ErrMissingCredential = errors.New("missing credential")
)

// DefaultTimeout bounds each outbound provider call when none is configured.
const DefaultTimeout = 15 * time.Second

// maxBodyBytes caps how much of an upstream response is read.
const maxBodyBytes = 8 << 20

// base carries the transport shared by all provider clients: per-call timeout,
// correlation ID forwarding, status mapping and call metrics.
type base struct {
	provider  string
	timeout   time.Duration
	client    *http.Client
	userAgent string
}

func newBase(provider string, timeout time.Duration, userAgent string) base {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return base{
		provider:  provider,
		timeout:   timeout,
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

// fetch sends req built by build under a per-call deadline and returns the body of a 2xx response.
func (b base) fetch(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	req, err := build(reqCtx)
	if err != nil {
		observability.ProviderCallsTotal.WithLabelValues(b.provider, "error").Inc()
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if b.userAgent != "" {
		req.Header.Set("User-Agent", b.userAgent)
	}
	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		b.observe("error", start)
		err = b.wrapTransportError(err)
		observability.ProviderErrorsTotal.WithLabelValues(b.provider, string(CategorizeError(err))).Inc()
		return nil, err
	}
	defer resp.Body.Close()

	b.observe(statusLabel(resp.StatusCode), start)

	if err := handleErrorResponse(resp); err != nil {
		observability.ProviderErrorsTotal.WithLabelValues(b.provider, string(CategorizeError(err))).Inc()
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}

// getJSON fetches and decodes a JSON response into out.
func (b base) getJSON(ctx context.Context, build func(ctx context.Context) (*http.Request, error), out any) error {
	body, err := b.fetch(ctx, build)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		observability.ProviderErrorsTotal.WithLabelValues(b.provider, string(ErrorCategoryParsing)).Inc()
		return fmt.Errorf("parse %s response: %w", b.provider, err)
	}
	return nil
}

func (b base) observe(status string, start time.Time) {
	observability.ProviderCallsTotal.WithLabelValues(b.provider, status).Inc()
	observability.ProviderDuration.WithLabelValues(b.provider, status).Observe(time.Since(start).Seconds())
}

func (b base) wrapTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s request timeout: %w", b.provider, err)
	}
	return fmt.Errorf("%s http request failed: %w", b.provider, err)
}

func handleErrorResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", ErrInvalidAPIKey, resp.StatusCode)
	case http.StatusNotFound:
		return fmt.Errorf("%w", ErrNotFound)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w", ErrRateLimited)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}

	return nil
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
