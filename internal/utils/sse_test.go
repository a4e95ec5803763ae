package utils

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestSSEScanner_EventsAndSentinel(t *testing.T) {
	input := "data: {\"a\":1}\n\n: a comment\ndata: {\"a\":2}\n\ndata: [DONE]\n\n"
	scanner := NewSSEScanner(strings.NewReader(input))

	first, err := scanner.Next()
	if err != nil || first != `{"a":1}` {
		t.Fatalf("first = %q, %v", first, err)
	}
	second, err := scanner.Next()
	if err != nil || second != `{"a":2}` {
		t.Fatalf("second = %q, %v", second, err)
	}
	if _, err := scanner.Next(); err != io.EOF {
		t.Fatalf("sentinel should yield io.EOF, got %v", err)
	}
}

func TestSSEScanner_MultiLineDataJoined(t *testing.T) {
	input := "data: line one\ndata: line two\n\n"
	scanner := NewSSEScanner(strings.NewReader(input))

	payload, err := scanner.Next()
	if err != nil {
		t.Fatalf("Next() error: %v", err)
	}
	if payload != "line one\nline two" {
		t.Errorf("payload = %q, want joined lines", payload)
	}
}

func TestSSEScanner_FinalEventWithoutBlankLine(t *testing.T) {
	scanner := NewSSEScanner(strings.NewReader("data: tail"))
	payload, err := scanner.Next()
	if err != nil || payload != "tail" {
		t.Fatalf("payload = %q, %v; want trailing event delivered", payload, err)
	}
	if _, err := scanner.Next(); err != io.EOF {
		t.Fatalf("want io.EOF after final event, got %v", err)
	}
}

func TestNDJSONScanner_SkipsBlankLines(t *testing.T) {
	input := "{\"n\":1}\n\n{\"n\":2}\n"
	scanner := NewNDJSONScanner(strings.NewReader(input))

	first, err := scanner.Next()
	if err != nil || string(first) != `{"n":1}` {
		t.Fatalf("first = %q, %v", first, err)
	}
	second, err := scanner.Next()
	if err != nil || string(second) != `{"n":2}` {
		t.Fatalf("second = %q, %v", second, err)
	}
	if _, err := scanner.Next(); err != io.EOF {
		t.Fatalf("want io.EOF, got %v", err)
	}
}

func TestNDJSONScanner_PartialFinalLine(t *testing.T) {
	scanner := NewNDJSONScanner(strings.NewReader(`{"n":1}`))
	line, err := scanner.Next()
	if err != nil || string(line) != `{"n":1}` {
		t.Fatalf("line = %q, %v; want pending partial line at EOF", line, err)
	}
}

func TestUnmarshalLenient_RepairsTrailingComma(t *testing.T) {
	var out struct {
		A int `json:"a"`
	}
	if err := UnmarshalLenient([]byte(`{"a": 5,}`), &out); err != nil {
		t.Fatalf("UnmarshalLenient() error: %v", err)
	}
	if out.A != 5 {
		t.Errorf("a = %d, want 5", out.A)
	}
}

func TestUnmarshalLenient_Hopeless(t *testing.T) {
	var out map[string]any
	if err := UnmarshalLenient([]byte("\x00\x01not json"), &out); err == nil {
		t.Error("expected error for unrepairable input")
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Now()
	if d := parseRetryAfter("7", now); d.Seconds() != 7 {
		t.Errorf("seconds form = %v, want 7s", d)
	}
	if d := parseRetryAfter("", now); d != 0 {
		t.Errorf("empty = %v, want 0", d)
	}
	if d := parseRetryAfter("soon", now); d != 0 {
		t.Errorf("garbage = %v, want 0", d)
	}
	httpDate := now.Add(90 * time.Second).UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT")
	if d := parseRetryAfter(httpDate, now); d <= 0 || d.Seconds() > 91 {
		t.Errorf("http date = %v, want about 90s", d)
	}
}

func TestHTTPStatusError_Message(t *testing.T) {
	err := &HTTPStatusError{StatusCode: 503, Body: "unavailable"}
	if !strings.Contains(err.Error(), "503") || !strings.Contains(err.Error(), "unavailable") {
		t.Errorf("Error() = %q", err.Error())
	}
	var target *HTTPStatusError
	if !errors.As(error(err), &target) {
		t.Error("errors.As should match HTTPStatusError")
	}
}
