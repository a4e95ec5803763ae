package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/kaptinlin/jsonrepair"

	"github.com/leofalp/promptfan/internal/utils"
)

// ProviderError is the canonical error value every adapter produces at its
// boundary. Raw provider failures come in many shapes (transport errors, JSON
// error envelopes, bare status lines); they are normalized exactly once, here,
// so downstream classification never probes provider-specific fields.
type ProviderError struct {
	Provider   string        // provider family tag
	Engine     string        // engine id the call belonged to
	StatusCode int           // canonical HTTP-like status, 0 when none found
	Message    string        // human-readable provider message
	RetryAfter time.Duration // provider retry hint, zero when absent
	Raw        string        // preserved raw technical detail for a details view
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// TruncationError reports a generation that was cut off by the output token
// budget rather than stopping naturally. It is not an outright failure: the
// partial content is preserved and the caller flags the run as incomplete
// instead of failed.
type TruncationError struct {
	Provider        string
	Content         string // everything generated before the budget ran out
	TokensGenerated int
	MaxTokens       int
}

func (e *TruncationError) Error() string {
	return fmt.Sprintf("%s: output truncated at token budget (%d generated, cap %d)", e.Provider, e.TokensGenerated, e.MaxTokens)
}

// statusCodePattern matches a 3-digit HTTP-like code in free-form error text.
// Last-resort extraction when no structured status is available.
var statusCodePattern = regexp.MustCompile(`\b([1-5]\d{2})\b`)

// errorEnvelope covers the common JSON error body shapes:
// {"error":{"message":...,"code":...}} and flat {"message":...,"code":...}.
type errorEnvelope struct {
	Error *struct {
		Message string          `json:"message"`
		Code    json.RawMessage `json:"code"`
		Status  string          `json:"status"`
		Type    string          `json:"type"`
	} `json:"error"`
	Message string          `json:"message"`
	Code    json.RawMessage `json:"code"`
}

// parseErrorEnvelope extracts a message and a numeric code from a raw error
// body. Malformed JSON gets one repair attempt before being given up on.
func parseErrorEnvelope(raw string) (message string, code int) {
	var env errorEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(raw)
		if repairErr != nil {
			return "", 0
		}
		if err := json.Unmarshal([]byte(repaired), &env); err != nil {
			return "", 0
		}
	}

	if env.Error != nil {
		message = env.Error.Message
		code = rawToStatus(env.Error.Code)
	}
	if message == "" {
		message = env.Message
	}
	if code == 0 {
		code = rawToStatus(env.Code)
	}
	return message, code
}

// rawToStatus interprets a JSON code field that may be a number or a numeric
// string. Non-numeric codes (e.g. "insufficient_quota") yield 0.
func rawToStatus(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil && n >= 100 && n <= 599 {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if m := statusCodePattern.FindString(s); m != "" {
			n = int(m[0]-'0')*100 + int(m[1]-'0')*10 + int(m[2]-'0')
			return n
		}
	}
	return 0
}

// NormalizeError converts any raw adapter failure into a *ProviderError.
// Status extraction checks candidate locations in order: the transport
// error's status code, then a code inside the JSON error envelope, then a
// 3-digit pattern in the message text. Already-normalized errors (including
// *TruncationError) pass through untouched.
func NormalizeError(provider, engineID string, err error) error {
	if err == nil {
		return nil
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	var te *TruncationError
	if errors.As(err, &te) {
		return te
	}

	var httpErr *utils.HTTPStatusError
	if errors.As(err, &httpErr) {
		message, _ := parseErrorEnvelope(httpErr.Body)
		if message == "" {
			message = utils.TruncateString(httpErr.Body, utils.DefaultMaxStringLength)
		}
		return &ProviderError{
			Provider:   provider,
			Engine:     engineID,
			StatusCode: httpErr.StatusCode,
			Message:    message,
			RetryAfter: httpErr.RetryAfter,
			Raw:        httpErr.Body,
		}
	}

	message := err.Error()
	status := 0
	if m := statusCodePattern.FindString(message); m != "" {
		status = int(m[0]-'0')*100 + int(m[1]-'0')*10 + int(m[2]-'0')
	}

	return &ProviderError{
		Provider:   provider,
		Engine:     engineID,
		StatusCode: status,
		Message:    message,
		Raw:        message,
	}
}
