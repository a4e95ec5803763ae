package ai

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/leofalp/promptfan/internal/utils"
)

func TestNormalizeError_TransportStatusWins(t *testing.T) {
	httpErr := &utils.HTTPStatusError{
		StatusCode: 429,
		Body:       `{"error":{"message":"rate limited","code":"500"}}`,
		RetryAfter: 3 * time.Second,
	}

	err := NormalizeError("openai", "e1", httpErr)
	var providerErr *ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("got %T, want ProviderError", err)
	}
	if providerErr.StatusCode != 429 {
		t.Errorf("status = %d, want transport status 429 over envelope code", providerErr.StatusCode)
	}
	if providerErr.Message != "rate limited" {
		t.Errorf("message = %q, want envelope message", providerErr.Message)
	}
	if providerErr.RetryAfter != 3*time.Second {
		t.Errorf("retry after = %v, want 3s", providerErr.RetryAfter)
	}
	if providerErr.Provider != "openai" || providerErr.Engine != "e1" {
		t.Errorf("identity = %s/%s", providerErr.Provider, providerErr.Engine)
	}
}

func TestNormalizeError_MalformedEnvelopeRepaired(t *testing.T) {
	// Trailing comma: invalid JSON that jsonrepair can fix.
	httpErr := &utils.HTTPStatusError{
		StatusCode: 400,
		Body:       `{"error":{"message":"bad request",}}`,
	}

	err := NormalizeError("gemini", "e1", httpErr)
	var providerErr *ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("got %T, want ProviderError", err)
	}
	if providerErr.Message != "bad request" {
		t.Errorf("message = %q, want repaired envelope message", providerErr.Message)
	}
}

func TestNormalizeError_RegexFallback(t *testing.T) {
	err := NormalizeError("anthropic", "e1", fmt.Errorf("upstream said: 503 service unavailable"))
	var providerErr *ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("got %T, want ProviderError", err)
	}
	if providerErr.StatusCode != 503 {
		t.Errorf("status = %d, want 503 from message text", providerErr.StatusCode)
	}
}

func TestNormalizeError_NoStatusAnywhere(t *testing.T) {
	err := NormalizeError("ollama", "e1", errors.New("dial tcp: connection refused"))
	var providerErr *ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("got %T, want ProviderError", err)
	}
	if providerErr.StatusCode != 0 {
		t.Errorf("status = %d, want 0", providerErr.StatusCode)
	}
	if providerErr.Message == "" {
		t.Error("message should carry the raw text")
	}
}

func TestNormalizeError_PassThrough(t *testing.T) {
	original := &ProviderError{Provider: "openai", StatusCode: 401, Message: "bad key"}
	if got := NormalizeError("other", "e2", original); got != error(original) {
		t.Errorf("normalized ProviderError should pass through unchanged, got %v", got)
	}

	truncation := &TruncationError{Provider: "openai", Content: "partial", MaxTokens: 100}
	if got := NormalizeError("other", "e2", truncation); got != error(truncation) {
		t.Errorf("TruncationError should pass through unchanged, got %v", got)
	}

	if NormalizeError("openai", "e1", nil) != nil {
		t.Error("nil should stay nil")
	}
}

func TestRawToStatus(t *testing.T) {
	cases := []struct {
		raw  string
		want int
	}{
		{`429`, 429},
		{`"429"`, 429},
		{`"http 429"`, 429},
		{`"insufficient_quota"`, 0},
		{`99`, 0},
		{`700`, 0},
		{``, 0},
	}
	for _, c := range cases {
		if got := rawToStatus([]byte(c.raw)); got != c.want {
			t.Errorf("rawToStatus(%q) = %d, want %d", c.raw, got, c.want)
		}
	}
}
