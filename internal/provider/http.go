// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Configuration defaults.
const (
	DefaultConnectTimeout = 30 * time.Second
	DefaultIdleTimeout    = 60 * time.Second
	DefaultMaxRetries     = 3

	// retryBaseDelay is the base delay for exponential backoff.
	retryBaseDelay = 500 * time.Millisecond
	// retryMaxDelay caps a single backoff delay.
	retryMaxDelay = 10 * time.Second

	// MaxErrorBodySize bounds how much of an error response is read.
	MaxErrorBodySize = 64 * 1024

	userAgent = "muse/1.0"
)

// Config tunes an HTTPTransport.
type Config struct {
	// ConnectTimeout bounds dialing, TLS and waiting for response headers.
	ConnectTimeout time.Duration
	// IdleTimeout fails a stream that sends nothing for this long. Zero
	// disables it.
	IdleTimeout time.Duration
	// MaxRetries is the number of extra attempts made while opening.
	MaxRetries int
	// RequestsPerMinute paces outgoing requests. Zero disables pacing.
	RequestsPerMinute int

	// BaseDelay and MaxDelay shape the backoff. Zero uses the defaults.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// Client replaces the pooled client, mainly for tests.
	Client *http.Client
}

// DefaultConfig returns the default transport configuration.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: DefaultConnectTimeout,
		IdleTimeout:    DefaultIdleTimeout,
		MaxRetries:     DefaultMaxRetries,
	}
}

// =============================================================================
// HTTP TRANSPORT
// =============================================================================

// HTTPTransport opens streams with POST requests. It is safe for
// concurrent use.
type HTTPTransport struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewHTTPTransport creates a transport with a pooled client.
func NewHTTPTransport(cfg Config, logger zerolog.Logger) *HTTPTransport {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = retryBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = retryMaxDelay
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   cfg.ConnectTimeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: cfg.ConnectTimeout,
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
			},
			// No overall timeout: streams are bounded by the context and
			// the idle timeout.
		}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}

	return &HTTPTransport{
		cfg:     cfg,
		client:  client,
		limiter: limiter,
		logger:  logger.With().Str("component", "transport").Logger(),
	}
}

// Open sends req and returns the response body once a 2xx status arrives.
// Connection failures, 429 and 5xx responses are retried with backoff.
// Nothing is retried after the body has been returned.
func (t *HTTPTransport) Open(ctx context.Context, req Request) (io.ReadCloser, error) {
	payload, err := json.Marshal(req.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	requestID := uuid.NewString()

	var lastErr *NetworkError
	for attempt := 0; attempt <= t.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := t.backoff(attempt, lastErr)
			t.logger.Debug().
				Str("request_id", requestID).
				Int("attempt", attempt+1).
				Dur("delay", delay).
				Err(lastErr).
				Msg("retrying chat request")

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		if err := t.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		body, netErr := t.attempt(ctx, req, payload, requestID, attempt)
		if netErr == nil {
			return body, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		lastErr = netErr
		if !netErr.Retryable() {
			break
		}
	}
	return nil, lastErr
}

func (t *HTTPTransport) attempt(ctx context.Context, req Request, payload []byte, requestID string, attempt int) (io.ReadCloser, *NetworkError) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &NetworkError{Message: "invalid endpoint", Err: err, permanent: true}
	}
	httpReq.Header.Set("Authorization", "Bearer "+req.Credential)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("X-Request-ID", requestID)

	t.logRequest(httpReq, requestID, attempt)
	start := time.Now()

	resp, err := t.client.Do(httpReq)
	if err != nil {
		t.logger.Warn().Str("request_id", requestID).Err(redact(err)).Msg("chat request failed")
		return nil, &NetworkError{Message: describe(err), Err: err}
	}
	t.logResponse(resp, requestID, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		netErr := errorFromResponse(resp)
		return nil, netErr
	}
	return newIdleReader(resp.Body, t.cfg.IdleTimeout), nil
}

// backoff returns the delay before the given attempt. A Retry-After hint
// from a 429 response is honoured up to MaxDelay.
func (t *HTTPTransport) backoff(attempt int, last *NetworkError) time.Duration {
	if last != nil && last.retryAfter > 0 {
		return min(last.retryAfter, t.cfg.MaxDelay)
	}
	delay := t.cfg.BaseDelay * time.Duration(1<<uint(attempt-1))
	if delay > t.cfg.MaxDelay || delay <= 0 {
		delay = t.cfg.MaxDelay
	}
	return delay
}

// =============================================================================
// ERROR RESPONSES
// =============================================================================

type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

func errorFromResponse(resp *http.Response) *NetworkError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, MaxErrorBodySize))

	netErr := &NetworkError{Status: resp.StatusCode}
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		netErr.Message = apiErr.Error.Message
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		if secs, err := strconv.Atoi(strings.TrimSpace(resp.Header.Get("Retry-After"))); err == nil && secs > 0 {
			netErr.retryAfter = time.Duration(secs) * time.Second
		}
	}
	return netErr
}

// describe turns a client error into a short message without the URL,
// which may embed credentials for custom endpoints.
func describe(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "connection timed out"
	}
	return "connection failed: " + err.Error()
}

func redact(err error) error {
	return errors.New(describe(err))
}

// =============================================================================
// LOGGING
// =============================================================================

// logRequest logs method, host and attempt. Headers and body are never
// logged.
func (t *HTTPTransport) logRequest(req *http.Request, requestID string, attempt int) {
	t.logger.Debug().
		Str("request_id", requestID).
		Str("method", req.Method).
		Str("host", req.URL.Host).
		Int("attempt", attempt+1).
		Msg("chat request")
}

func (t *HTTPTransport) logResponse(resp *http.Response, requestID string, d time.Duration) {
	t.logger.Debug().
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Dur("duration", d).
		Msg("chat response")
}
