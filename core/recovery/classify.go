// Package recovery classifies provider failures and retries the retryable
// ones with per-category backoff. It wraps one dispatch at a time; fan-out
// and settlement live with the orchestrator.
package recovery

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/leofalp/promptfan/providers/ai"
)

// Kind is the canonical failure category. Only the first four are retryable.
type Kind string

const (
	KindRateLimit       Kind = "rate_limit"
	KindSlowDown        Kind = "slow_down"
	KindServerError     Kind = "server_error"
	KindConnectionError Kind = "connection_error"

	KindValidation      Kind = "validation"
	KindAuth            Kind = "auth"
	KindPermission      Kind = "permission"
	KindNotFound        Kind = "not_found"
	KindPayloadTooLarge Kind = "payload_too_large"
	KindFatal           Kind = "fatal"
)

// Retryable reports whether the recovery engine may retry this kind.
func (k Kind) Retryable() bool {
	switch k {
	case KindRateLimit, KindSlowDown, KindServerError, KindConnectionError:
		return true
	}
	return false
}

// connectionPatterns are message fragments that identify transport-level
// failures regardless of (usually absent) status codes.
var connectionPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"network is unreachable",
	"unexpected eof",
	"i/o timeout",
	"timeout awaiting response",
	"context deadline exceeded",
	"tls handshake",
}

// slowDownPatterns identify provider overload signals that arrive without a
// usable status code, e.g. Anthropic's mid-stream overloaded_error event.
var slowDownPatterns = []string{
	"overloaded",
	"slow down",
	"capacity",
}

// Classify maps an error to its failure category. Errors are expected to be
// normalized into *ai.ProviderError at the adapter boundary; anything else is
// classified from its message alone.
func Classify(err error) Kind {
	if err == nil {
		return KindFatal
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindConnectionError
	}

	var providerErr *ai.ProviderError
	if errors.As(err, &providerErr) {
		if kind, ok := classifyStatus(providerErr.StatusCode); ok {
			return kind
		}
		return classifyMessage(providerErr.Message)
	}

	return classifyMessage(err.Error())
}

func classifyStatus(status int) (Kind, bool) {
	switch status {
	case http.StatusTooManyRequests:
		return KindRateLimit, true
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, 529:
		return KindServerError, true
	case http.StatusBadRequest:
		return KindValidation, true
	case http.StatusUnauthorized:
		return KindAuth, true
	case http.StatusForbidden:
		return KindPermission, true
	case http.StatusNotFound:
		return KindNotFound, true
	case http.StatusRequestEntityTooLarge:
		return KindPayloadTooLarge, true
	}
	return KindFatal, false
}

func classifyMessage(message string) Kind {
	lower := strings.ToLower(message)

	if strings.Contains(lower, "rate limit") || strings.Contains(lower, "quota") {
		return KindRateLimit
	}
	for _, pattern := range slowDownPatterns {
		if strings.Contains(lower, pattern) {
			return KindSlowDown
		}
	}
	for _, pattern := range connectionPatterns {
		if strings.Contains(lower, pattern) {
			return KindConnectionError
		}
	}
	return KindFatal
}
