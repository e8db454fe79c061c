// Package ecommerce contains the concrete storefront connectors. Each
// connector implements the platform.Connector port for one configured store:
// it owns authentication, cursor pagination, and normalization of the
// platform's wire format into canonical commerce records.
package ecommerce

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/optika/backend/internal/domain/platform"
)

const (
	// maxResponseSize limits the response body size to prevent memory exhaustion
	maxResponseSize = 10 * 1024 * 1024 // 10MB max response
	// defaultPageSize is the page size requested from platform list endpoints
	defaultPageSize = 100
)

// retryPolicy bounds retries for transient failures. Non-transient failures
// never retry.
type retryPolicy struct {
	// Attempts is the total number of tries including the first
	Attempts int
	// Delay is the base backoff, doubled after each failed try
	Delay time.Duration
}

// classifyStatus maps an HTTP status code to a platform sentinel error.
// 2xx codes map to nil.
func classifyStatus(code int) error {
	switch {
	case code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", platform.ErrAuthFailed, code)
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: HTTP %d", platform.ErrRateLimited, code)
	case code >= 500:
		return fmt.Errorf("%w: HTTP %d", platform.ErrUnavailable, code)
	default:
		return fmt.Errorf("%w: HTTP %d", platform.ErrRequestFailed, code)
	}
}

// isTransient reports whether a classified error is worth retrying.
func isTransient(err error) bool {
	return errors.Is(err, platform.ErrUnavailable) || errors.Is(err, platform.ErrRateLimited)
}

// sleepCtx sleeps for d or until the context is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// fetchResult is one successful platform response.
type fetchResult struct {
	body   []byte
	header http.Header
}

// doWithRetry executes the request builder with bounded retry and exponential
// backoff for transient failures. Non-transient failures return immediately.
// The builder is called once per attempt so request bodies are never reused.
func doWithRetry(ctx context.Context, client *http.Client, policy retryPolicy, build func(ctx context.Context) (*http.Request, error)) (*fetchResult, error) {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	delay := policy.Delay
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, delay); err != nil {
				return nil, err
			}
			delay *= 2
		}

		result, err := doOnce(ctx, client, build)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !isTransient(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

// doOnce executes a single request and classifies the outcome.
func doOnce(ctx context.Context, client *http.Client, build func(ctx context.Context) (*http.Request, error)) (*fetchResult, error) {
	req, err := build(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", platform.ErrRequestFailed, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		// Transport-level failures (timeouts, refused connections) are transient.
		return nil, fmt.Errorf("%w: %v", platform.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", platform.ErrUnavailable, err)
	}

	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, err
	}
	return &fetchResult{body: body, header: resp.Header}, nil
}
