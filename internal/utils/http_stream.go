package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/leofalp/promptfan/providers/observability"
)

// maxErrorBodySize caps how much of a non-2xx response body is read into an
// HTTPStatusError. Enforced via io.LimitReader so a misbehaving provider
// cannot force unbounded allocation on the error path.
const maxErrorBodySize int64 = 1 * 1024 * 1024

// HeaderOption is a single HTTP header to apply to an outbound request.
// Options are applied after the default headers, so a provider can override
// Authorization when it authenticates through a custom header instead.
type HeaderOption struct {
	Key   string
	Value string
}

// HTTPStatusError is returned by DoPostStream for non-2xx responses. It keeps
// the status code, the (capped) response body, and any Retry-After hint so
// the adapter boundary can normalize it into a canonical provider error
// without re-probing headers.
type HTTPStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration // zero when the header was absent or unparseable
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("non-2xx status %d: %s", e.StatusCode, TruncateString(e.Body, DefaultMaxStringLength))
}

// parseRetryAfter interprets a Retry-After header value, which may be either
// a delay in seconds or an HTTP date.
func parseRetryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

// DoPostStream performs an HTTP POST request and returns the response with its
// body left open for incremental reading. The caller owns the body and must
// close it when the stream is consumed or abandoned.
//
// Pre-stream failures are returned as errors: network/transport problems come
// back as the wrapped client error, and non-2xx responses are drained (capped)
// and returned as an *HTTPStatusError with the body closed.
func DoPostStream(ctx context.Context, client *http.Client, url string, apiKey string, body any, headers ...HeaderOption) (*http.Response, error) {
	span := observability.SpanFromContext(ctx)

	httpClient := client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("error marshaling body: %w", err)
	}

	if span != nil {
		span.AddEvent("http.stream_request.prepared",
			observability.String(observability.AttrHTTPMethod, "POST"),
			observability.String(observability.AttrHTTPURL, url),
			observability.Int(observability.AttrHTTPRequestBodySize, len(jsonBody)),
		)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	for _, header := range headers {
		req.Header.Set(header.Key, header.Value)
	}

	requestStart := time.Now()
	response, err := httpClient.Do(req)
	requestDuration := time.Since(requestStart)

	if err != nil {
		if span != nil {
			span.AddEvent("http.stream_request.error",
				observability.Error(err),
				observability.Duration("http.request.duration", requestDuration),
			)
		}
		return response, fmt.Errorf("error sending stream request: %w", err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		defer CloseWithLog(response.Body)
		errorBody, readErr := io.ReadAll(io.LimitReader(response.Body, maxErrorBodySize))
		if readErr != nil {
			return response, &HTTPStatusError{StatusCode: response.StatusCode, Body: fmt.Sprintf("(failed to read body: %v)", readErr)}
		}
		return response, &HTTPStatusError{
			StatusCode: response.StatusCode,
			Body:       string(errorBody),
			RetryAfter: parseRetryAfter(response.Header.Get("Retry-After"), time.Now()),
		}
	}

	if span != nil {
		span.AddEvent("http.stream_response.started",
			observability.Int(observability.AttrHTTPStatusCode, response.StatusCode),
			observability.Duration("http.request.duration", requestDuration),
		)
	}

	return response, nil
}
