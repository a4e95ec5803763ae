package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/leofalp/promptfan/core/tokens"
	"github.com/leofalp/promptfan/providers/ai"
)

func writeSSE(writer http.ResponseWriter, eventType, data string) {
	fmt.Fprintf(writer, "event: %s\ndata: %s\n\n", eventType, data)
	if flusher, ok := writer.(http.Flusher); ok {
		flusher.Flush()
	}
}

func testEngine(credential string) ai.Engine {
	return ai.Engine{
		ID:            "claude-1",
		Provider:      "anthropic",
		Tokenizer:     tokens.FamilyClaude,
		ContextWindow: 200000,
		Version:       "claude-sonnet-4-5",
		Credential:    credential,
	}
}

func TestDispatch_EventLifecycle(t *testing.T) {
	var gotVersionHeader, gotAPIKey string
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		gotVersionHeader = request.Header.Get("anthropic-version")
		gotAPIKey = request.Header.Get("x-api-key")

		writeSSE(writer, "message_start", `{"type":"message_start","message":{"usage":{"input_tokens":12,"output_tokens":0}}}`)
		writeSSE(writer, "content_block_start", `{"type":"content_block_start"}`)
		writeSSE(writer, "content_block_delta", `{"type":"content_block_delta","delta":{"type":"text_delta","text":"Hel"}}`)
		writeSSE(writer, "content_block_delta", `{"type":"content_block_delta","delta":{"type":"text_delta","text":"lo"}}`)
		writeSSE(writer, "content_block_stop", `{"type":"content_block_stop"}`)
		writeSSE(writer, "message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":2}}`)
		writeSSE(writer, "message_stop", `{"type":"message_stop"}`)
	}))
	defer server.Close()

	adapter := New().WithBaseURL(server.URL)
	stream, err := adapter.Dispatch(context.Background(), testEngine("sk-ant"), "Hi", 1024)
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}

	collected, err := stream.Collect()
	if err != nil {
		t.Fatalf("Collect() error: %v", err)
	}
	if collected.Content != "Hello" {
		t.Errorf("content = %q, want Hello", collected.Content)
	}
	if collected.FinishReason != "end_turn" {
		t.Errorf("finish reason = %q, want end_turn", collected.FinishReason)
	}
	if collected.Usage == nil || collected.Usage.PromptTokens != 12 || collected.Usage.CompletionTokens != 2 {
		t.Errorf("usage = %+v, want 12 in / 2 out", collected.Usage)
	}
	if gotVersionHeader != anthropicVersion {
		t.Errorf("anthropic-version = %q, want %q", gotVersionHeader, anthropicVersion)
	}
	if gotAPIKey != "sk-ant" {
		t.Errorf("x-api-key = %q, want sk-ant", gotAPIKey)
	}
}

func TestDispatch_MaxTokensTruncation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writeSSE(writer, "message_start", `{"type":"message_start","message":{"usage":{"input_tokens":5}}}`)
		writeSSE(writer, "content_block_delta", `{"type":"content_block_delta","delta":{"type":"text_delta","text":"partial answer that ran ou"}}`)
		writeSSE(writer, "message_delta", `{"type":"message_delta","delta":{"stop_reason":"max_tokens"},"usage":{"output_tokens":300}}`)
		writeSSE(writer, "message_stop", `{"type":"message_stop"}`)
	}))
	defer server.Close()

	adapter := New().WithBaseURL(server.URL)
	stream, err := adapter.Dispatch(context.Background(), testEngine("sk-ant"), "Hi", 300)
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}

	collected, err := stream.Collect()

	var truncation *ai.TruncationError
	if !errors.As(err, &truncation) {
		t.Fatalf("Collect() error = %v, want TruncationError", err)
	}
	// Partial content is preserved both on the error and in the collection.
	if truncation.Content != "partial answer that ran ou" {
		t.Errorf("truncation content = %q", truncation.Content)
	}
	if collected.Content != truncation.Content {
		t.Errorf("collected %q != truncation content %q", collected.Content, truncation.Content)
	}
	if truncation.TokensGenerated != 300 || truncation.MaxTokens != 300 {
		t.Errorf("truncation counters = %d/%d, want 300/300", truncation.TokensGenerated, truncation.MaxTokens)
	}
}

func TestDispatch_TruncationSurvivesAbruptClose(t *testing.T) {
	// The connection drops after message_delta delivers stop_reason but
	// before message_stop; the recorded max_tokens must still surface as a
	// truncation, not a clean finish.
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writeSSE(writer, "message_start", `{"type":"message_start","message":{"usage":{"input_tokens":5}}}`)
		writeSSE(writer, "content_block_delta", `{"type":"content_block_delta","delta":{"type":"text_delta","text":"cut short"}}`)
		writeSSE(writer, "message_delta", `{"type":"message_delta","delta":{"stop_reason":"max_tokens"},"usage":{"output_tokens":300}}`)
	}))
	defer server.Close()

	adapter := New().WithBaseURL(server.URL)
	stream, err := adapter.Dispatch(context.Background(), testEngine("sk-ant"), "Hi", 300)
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}

	collected, err := stream.Collect()

	var truncation *ai.TruncationError
	if !errors.As(err, &truncation) {
		t.Fatalf("Collect() error = %v, want TruncationError", err)
	}
	if truncation.Content != "cut short" {
		t.Errorf("truncation content = %q", truncation.Content)
	}
	if truncation.TokensGenerated != 300 || truncation.MaxTokens != 300 {
		t.Errorf("truncation counters = %d/%d, want 300/300", truncation.TokensGenerated, truncation.MaxTokens)
	}
	if collected.Usage == nil || collected.Usage.CompletionTokens != 300 {
		t.Errorf("usage = %+v, want 300 out", collected.Usage)
	}
}

func TestDispatch_MidStreamErrorEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writeSSE(writer, "message_start", `{"type":"message_start","message":{"usage":{"input_tokens":5}}}`)
		writeSSE(writer, "error", `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)
	}))
	defer server.Close()

	adapter := New().WithBaseURL(server.URL)
	stream, err := adapter.Dispatch(context.Background(), testEngine("sk-ant"), "Hi", 64)
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}

	_, err = stream.Collect()
	var providerErr *ai.ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("Collect() error = %v, want ProviderError", err)
	}
	if providerErr.Provider != "anthropic" {
		t.Errorf("provider = %q, want anthropic", providerErr.Provider)
	}
}

func TestDispatch_ProxyRouteWithoutCredential(t *testing.T) {
	var gotPath, gotAPIKey string
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		gotPath = request.URL.Path
		gotAPIKey = request.Header.Get("x-api-key")
		writeSSE(writer, "message_stop", `{"type":"message_stop"}`)
	}))
	defer server.Close()

	adapter := New().WithProxyBase(server.URL)
	stream, err := adapter.Dispatch(context.Background(), testEngine(""), "Hi", 64)
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if _, err := stream.Collect(); err != nil {
		t.Fatalf("Collect() error: %v", err)
	}

	if gotPath != "/api/anthropic/messages" {
		t.Errorf("proxy path = %q, want /api/anthropic/messages", gotPath)
	}
	if gotAPIKey != "" {
		t.Errorf("x-api-key = %q, want empty on proxy route", gotAPIKey)
	}
}
