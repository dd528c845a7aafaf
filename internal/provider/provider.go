// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package provider opens streamed chat-completion responses.
//
// The Transport interface is the only network capability the rest of muse
// depends on. HTTPTransport implements it for OpenAI-compatible endpoints.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// ChatMessage is one message of the request payload.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the JSON body sent to the endpoint.
type ChatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// Request is everything needed to open one stream.
type Request struct {
	Endpoint   string
	Credential string
	Body       ChatRequest
}

// Transport opens a streamed response. The caller owns the returned body
// and must close it.
type Transport interface {
	Open(ctx context.Context, req Request) (io.ReadCloser, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req Request) (io.ReadCloser, error)

// Open implements Transport.
func (f TransportFunc) Open(ctx context.Context, req Request) (io.ReadCloser, error) {
	return f(ctx, req)
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNetworkFailure matches every *NetworkError via errors.Is.
	ErrNetworkFailure = errors.New("network failure")

	// ErrIdleTimeout is returned by a response body that stopped sending data.
	ErrIdleTimeout = errors.New("stream idle timeout")
)

// NetworkError describes a failed attempt to open a stream.
type NetworkError struct {
	// Status is the HTTP status, or 0 when no response was received.
	Status int
	// Message is the server's error message or a description of the failure.
	Message string
	// Err is the underlying transport error, if any.
	Err error

	retryAfter time.Duration
	permanent  bool
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	if e.Status != 0 {
		msg := e.Message
		if msg == "" {
			msg = "Unknown error"
		}
		return fmt.Sprintf("API Error (%d): %s", e.Status, msg)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return ErrNetworkFailure.Error()
}

// Unwrap returns the underlying error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrNetworkFailure.
func (e *NetworkError) Is(target error) bool {
	return target == ErrNetworkFailure
}

// Retryable reports whether a new attempt may succeed.
func (e *NetworkError) Retryable() bool {
	if e.permanent {
		return false
	}
	if e.Status == 0 {
		return !errors.Is(e.Err, context.Canceled) && !errors.Is(e.Err, context.DeadlineExceeded)
	}
	return e.Status == http.StatusTooManyRequests || (e.Status >= 500 && e.Status < 600)
}
