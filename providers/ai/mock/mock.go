// Package mock provides scripted StreamProvider implementations for tests
// and offline wiring checks. Error injection lives here, in decorators, so
// production adapter paths never carry simulation branches.
package mock

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/leofalp/promptfan/providers/ai"
)

var (
	_ ai.StreamProvider = (*Adapter)(nil)
	_ ai.StreamProvider = (*Flaky)(nil)
)

// Adapter streams a fixed script of deltas and then finishes. The zero value
// echoes the prompt back as a single delta.
type Adapter struct {
	// Deltas are yielded in order. When empty, the prompt itself is echoed.
	Deltas []string
	// Usage, when set, is yielded before the done event.
	Usage *ai.Usage
	// FinishReason reported on the done event; defaults to "stop".
	FinishReason string
	// TruncateAt, when > 0, ends the stream with a TruncationError after
	// the scripted deltas, simulating a budget cut-off at that cap.
	TruncateAt int
}

// Dispatch implements ai.StreamProvider.
func (m *Adapter) Dispatch(ctx context.Context, engine ai.Engine, prompt string, outputCap int) (*ai.DeltaStream, error) {
	deltas := m.Deltas
	if len(deltas) == 0 {
		deltas = []string{prompt}
	}

	finishReason := m.FinishReason
	if finishReason == "" {
		finishReason = "stop"
	}

	iteratorFunc := func(yield func(ai.StreamEvent, error) bool) {
		var accumulated strings.Builder

		for _, delta := range deltas {
			if ctx.Err() != nil {
				yield(ai.StreamEvent{}, ctx.Err())
				return
			}
			accumulated.WriteString(delta)
			if !yield(ai.StreamEvent{Type: ai.StreamEventDelta, Delta: delta}, nil) {
				return
			}
		}

		if m.Usage != nil {
			if !yield(ai.StreamEvent{Type: ai.StreamEventUsage, Usage: m.Usage}, nil) {
				return
			}
		}

		if m.TruncateAt > 0 {
			yield(ai.StreamEvent{}, &ai.TruncationError{
				Provider:        engine.Provider,
				Content:         accumulated.String(),
				TokensGenerated: m.TruncateAt,
				MaxTokens:       m.TruncateAt,
			})
			return
		}

		yield(ai.StreamEvent{Type: ai.StreamEventDone, FinishReason: finishReason}, nil)
	}

	return ai.NewDeltaStream(iteratorFunc), nil
}

// Flaky decorates an inner StreamProvider with scripted dispatch failures:
// the first FailCount calls return Err, subsequent calls pass through. Calls
// are counted across goroutines.
type Flaky struct {
	Inner     ai.StreamProvider
	Err       error
	FailCount int32

	calls atomic.Int32
}

// Dispatch implements ai.StreamProvider.
func (f *Flaky) Dispatch(ctx context.Context, engine ai.Engine, prompt string, outputCap int) (*ai.DeltaStream, error) {
	if f.calls.Add(1) <= f.FailCount {
		return nil, f.Err
	}
	return f.Inner.Dispatch(ctx, engine, prompt, outputCap)
}

// Calls reports how many dispatches have been attempted.
func (f *Flaky) Calls() int {
	return int(f.calls.Load())
}
