package run

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/leofalp/promptfan/providers/ai"
	"github.com/leofalp/promptfan/providers/ai/mock"
)

func mockRegistry(adapter ai.StreamProvider) *ai.Registry {
	registry := ai.NewRegistry()
	registry.Register("mock", adapter)
	return registry
}

func mockEngine(id string) ai.Engine {
	return ai.Engine{
		ID:            id,
		Provider:      "mock",
		ContextWindow: 8000,
		Version:       "mock-1",
		Credential:    "key",
	}
}

func TestRun_OneResultPerEngine(t *testing.T) {
	adapter := &mock.Adapter{Deltas: []string{"hello ", "world"}}
	orchestrator := NewOrchestrator(mockRegistry(adapter), Options{})

	engines := []ai.Engine{mockEngine("a"), mockEngine("b"), mockEngine("c")}
	results := orchestrator.Run(context.Background(), "prompt", engines, nil)

	if len(results) != len(engines) {
		t.Fatalf("len(results) = %d, want %d", len(results), len(engines))
	}
	for i, result := range results {
		if result.EngineID != engines[i].ID {
			t.Errorf("result[%d] engine = %q, want %q (input order)", i, result.EngineID, engines[i].ID)
		}
		if !result.Success || result.Err != nil {
			t.Errorf("result[%d] = success=%v err=%v, want clean success", i, result.Success, result.Err)
		}
		if result.FinalContent != "hello world" {
			t.Errorf("result[%d] content = %q", i, result.FinalContent)
		}
		if result.TokensOut < 1 || result.PlannedOutputCap <= 0 {
			t.Errorf("result[%d] accounting not populated: %+v", i, result)
		}
	}
}

func TestRun_MixedAuthFailureAndSuccess(t *testing.T) {
	authErr := &ai.ProviderError{Provider: "mock", StatusCode: 401, Message: "invalid api key"}
	registry := ai.NewRegistry()
	registry.Register("mock", &mock.Adapter{Deltas: []string{"fine"}})
	registry.Register("broken", &mock.Flaky{Inner: &mock.Adapter{}, Err: authErr, FailCount: 100})

	orchestrator := NewOrchestrator(registry, Options{})

	badEngine := mockEngine("bad")
	badEngine.Provider = "broken"
	engines := []ai.Engine{badEngine, mockEngine("good")}

	results := orchestrator.Run(context.Background(), "prompt", engines, nil)
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}

	bad, good := results[0], results[1]
	if bad.Success || bad.Err == nil {
		t.Errorf("bad engine: success=%v err=%v, want failure with error", bad.Success, bad.Err)
	}
	if !errors.Is(bad.Err, authErr) {
		t.Errorf("bad engine error = %v, want the auth error", bad.Err)
	}
	if !good.Success || good.Err != nil {
		t.Errorf("good engine: success=%v err=%v, want success", good.Success, good.Err)
	}

	lastErr := orchestrator.LastError()
	if lastErr == nil || lastErr.EngineID != "bad" {
		t.Fatalf("LastError() = %+v, want the failed engine", lastErr)
	}
	if lastErr.Explanation.What == "" {
		t.Error("last error should carry a structured explanation")
	}
}

func TestRun_AuthErrorNotRetried(t *testing.T) {
	authErr := &ai.ProviderError{Provider: "mock", StatusCode: 401, Message: "bad key"}
	flaky := &mock.Flaky{Inner: &mock.Adapter{}, Err: authErr, FailCount: 100}
	orchestrator := NewOrchestrator(mockRegistry(flaky), Options{})

	orchestrator.Run(context.Background(), "prompt", []ai.Engine{mockEngine("a")}, nil)
	if flaky.Calls() != 1 {
		t.Errorf("dispatch called %d times, want 1 (auth errors are terminal)", flaky.Calls())
	}
}

func TestRun_TruncationDistinctFromFailure(t *testing.T) {
	content := strings.Repeat("x", 500)
	adapter := &mock.Adapter{Deltas: []string{content}, TruncateAt: 300}
	orchestrator := NewOrchestrator(mockRegistry(adapter), Options{})

	results := orchestrator.Run(context.Background(), "prompt", []ai.Engine{mockEngine("a")}, nil)
	result := results[0]

	if !result.Truncated {
		t.Fatal("result should be flagged truncated")
	}
	if result.Success {
		t.Error("truncation must not count as success")
	}
	var truncation *ai.TruncationError
	if !errors.As(result.Err, &truncation) {
		t.Fatalf("err = %v, want TruncationError", result.Err)
	}
	if truncation.MaxTokens != 300 {
		t.Errorf("max tokens = %d, want 300", truncation.MaxTokens)
	}
	if result.FinalContent != content {
		t.Errorf("content length = %d, want the full 500 partial characters preserved", len(result.FinalContent))
	}
}

func TestRun_CreditHookOncePerSuccess(t *testing.T) {
	adapter := &mock.Adapter{
		Deltas: []string{"done"},
		Usage:  &ai.Usage{PromptTokens: 40, CompletionTokens: 7, TotalTokens: 47},
	}

	var mu sync.Mutex
	type credit struct {
		provider, model     string
		tokensIn, tokensOut int
	}
	var credits []credit

	orchestrator := NewOrchestrator(mockRegistry(adapter), Options{
		OnCredit: func(provider, model string, tokensIn, tokensOut int) {
			mu.Lock()
			credits = append(credits, credit{provider, model, tokensIn, tokensOut})
			mu.Unlock()
		},
	})

	orchestrator.Run(context.Background(), "prompt", []ai.Engine{mockEngine("a"), mockEngine("b")}, nil)

	mu.Lock()
	defer mu.Unlock()
	if len(credits) != 2 {
		t.Fatalf("credit hook called %d times, want once per successful engine", len(credits))
	}
	for _, c := range credits {
		if c.provider != "mock" || c.model != "mock-1" {
			t.Errorf("credit identity = %s/%s", c.provider, c.model)
		}
		if c.tokensIn != 40 || c.tokensOut != 7 {
			t.Errorf("credit tokens = %d/%d, want provider-reported 40/7", c.tokensIn, c.tokensOut)
		}
	}
}

func TestRun_StreamStateVisibleIncrementally(t *testing.T) {
	adapter := &mock.Adapter{Deltas: []string{"one ", "two ", "three"}}

	var mu sync.Mutex
	var seen []string
	orchestrator := NewOrchestrator(mockRegistry(adapter), Options{
		UpdateInterval: -1, // forward every delta
		OnUpdate: func(snapshot StateSnapshot) {
			mu.Lock()
			seen = append(seen, snapshot.Content)
			mu.Unlock()
		},
	})

	orchestrator.Run(context.Background(), "prompt", []ai.Engine{mockEngine("a")}, nil)

	mu.Lock()
	defer mu.Unlock()
	if len(seen) < 3 {
		t.Fatalf("saw %d updates, want at least one per delta: %q", len(seen), seen)
	}
	// Content is append-only: every snapshot extends the previous one.
	for i := 1; i < len(seen); i++ {
		if !strings.HasPrefix(seen[i], seen[i-1]) {
			t.Errorf("snapshot %d (%q) does not extend %q", i, seen[i], seen[i-1])
		}
	}
	final := seen[len(seen)-1]
	if final != "one two three" {
		t.Errorf("final snapshot = %q", final)
	}
}

// stalledProvider yields one delta then blocks until released.
type stalledProvider struct {
	release chan struct{}
}

func (p *stalledProvider) Dispatch(ctx context.Context, engine ai.Engine, prompt string, outputCap int) (*ai.DeltaStream, error) {
	return ai.NewDeltaStream(func(yield func(ai.StreamEvent, error) bool) {
		if !yield(ai.StreamEvent{Type: ai.StreamEventDelta, Delta: "partial"}, nil) {
			return
		}
		<-p.release
	}), nil
}

func TestRun_IdleTimeoutAbandonsEngine(t *testing.T) {
	provider := &stalledProvider{release: make(chan struct{})}
	defer close(provider.release)

	orchestrator := NewOrchestrator(mockRegistry(provider), Options{
		IdleTimeout: 20 * time.Millisecond,
	})

	results := orchestrator.Run(context.Background(), "prompt", []ai.Engine{mockEngine("a")}, nil)
	result := results[0]

	if !errors.Is(result.Err, ErrIdleTimeout) {
		t.Fatalf("err = %v, want ErrIdleTimeout", result.Err)
	}
	if result.Success {
		t.Error("idle-abandoned engine must not be successful")
	}
	if result.FinalContent != "partial" {
		t.Errorf("content = %q, want partial content preserved", result.FinalContent)
	}
}

func TestRetryEngine_ReplacesOnlyThatResult(t *testing.T) {
	authErr := &ai.ProviderError{Provider: "mock", StatusCode: 401, Message: "bad key"}
	flaky := &mock.Flaky{Inner: &mock.Adapter{Deltas: []string{"recovered"}}, Err: authErr, FailCount: 1}

	registry := ai.NewRegistry()
	registry.Register("mock", &mock.Adapter{Deltas: []string{"steady"}})
	registry.Register("flaky", flaky)

	flakyEngine := mockEngine("flaky-engine")
	flakyEngine.Provider = "flaky"
	engines := []ai.Engine{flakyEngine, mockEngine("steady-engine")}

	orchestrator := NewOrchestrator(registry, Options{})
	first := orchestrator.Run(context.Background(), "prompt", engines, nil)
	if first[0].Success {
		t.Fatal("flaky engine should fail on the first run")
	}

	retried, err := orchestrator.RetryEngine(context.Background(), "flaky-engine")
	if err != nil {
		t.Fatalf("RetryEngine() error: %v", err)
	}
	if !retried.Success || retried.FinalContent != "recovered" {
		t.Fatalf("retried = %+v, want success with recovered content", retried)
	}

	results := orchestrator.Results()
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	for _, result := range results {
		switch result.EngineID {
		case "flaky-engine":
			if !result.Success {
				t.Errorf("flaky result not replaced: %+v", result)
			}
		case "steady-engine":
			if !result.Success || result.FinalContent != "steady" {
				t.Errorf("steady result disturbed: %+v", result)
			}
		}
	}
	if orchestrator.LastError() != nil {
		t.Errorf("LastError() = %+v, want cleared after successful retry", orchestrator.LastError())
	}
}

func TestRetryEngine_UnknownEngine(t *testing.T) {
	orchestrator := NewOrchestrator(mockRegistry(&mock.Adapter{}), Options{})
	orchestrator.Run(context.Background(), "prompt", []ai.Engine{mockEngine("a")}, nil)

	if _, err := orchestrator.RetryEngine(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for an engine outside the last run")
	}
}

func TestTruncateToWindow(t *testing.T) {
	long := strings.Repeat("word ", 5000)
	short := truncateToWindow(long, "", 100)
	if len(short) >= len(long) {
		t.Fatal("prompt not truncated")
	}
	if truncateToWindow("tiny", "", 100) != "tiny" {
		t.Error("short prompt should pass through unchanged")
	}
}
