// Package run fans one prompt out to many engines concurrently, normalizes
// their progress into per-engine StreamStates, and settles each engine into
// exactly one Result. Engines are fully independent: no ordering, no shared
// outcome, no cross-engine cancellation.
package run

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/leofalp/promptfan/core/extract"
	"github.com/leofalp/promptfan/core/plan"
	"github.com/leofalp/promptfan/core/pricing"
	"github.com/leofalp/promptfan/core/recovery"
	"github.com/leofalp/promptfan/core/tokens"
	"github.com/leofalp/promptfan/internal/utils"
	"github.com/leofalp/promptfan/providers/ai"
	"github.com/leofalp/promptfan/providers/observability"
)

// ErrIdleTimeout marks an engine abandoned because no delta arrived within
// the idle window. The operation is not force-cancelled; its partial content
// is preserved on the Result.
var ErrIdleTimeout = errors.New("stream idle timeout")

// Defaults for the orchestrator's pacing knobs.
const (
	DefaultUpdateInterval = 15 * time.Millisecond
	DefaultIdleTimeout    = 30 * time.Second
)

// UpdateFunc receives coalesced live-progress snapshots for rendering.
type UpdateFunc func(snapshot StateSnapshot)

// CreditFunc is invoked once per successful engine with the realized token
// counts; persistence of the deduction is the callee's concern.
type CreditFunc func(provider, model string, tokensIn, tokensOut int)

// Options tunes one Orchestrator. The zero value is usable: defaults fill in
// pacing, pricing resolves from the built-in table, and updates go nowhere.
type Options struct {
	// ProviderMax is the admin-configured provider→max-output map.
	ProviderMax map[string]int
	// Pricing resolves spend projections; nil means built-in table only.
	Pricing *pricing.Resolver
	// UpdateInterval is the minimum spacing between OnUpdate calls per
	// engine. Zero means DefaultUpdateInterval; negative disables coalescing
	// and forwards every delta.
	UpdateInterval time.Duration
	// IdleTimeout abandons an engine when no delta arrives for this long.
	IdleTimeout time.Duration
	// OnUpdate receives coalesced snapshots; may be nil.
	OnUpdate UpdateFunc
	// OnCredit is the credit-deduction hook; may be nil.
	OnCredit CreditFunc
	// MaxAttempts caps recovery attempts per engine. Zero means the
	// recovery default.
	MaxAttempts int
}

// Orchestrator runs fan-out invocations. Safe for sequential reuse; Run
// replaces all previous results and stream states.
type Orchestrator struct {
	registry *ai.Registry
	options  Options

	mu      sync.Mutex
	states  map[string]*StreamState
	results []Result
	// lastRun lets RetryEngine re-dispatch a single engine with the same
	// assembled prompt.
	lastPrompt  string
	lastEngines map[string]ai.Engine
	lastErr     *EngineError
}

// EngineError is the single current-error slot: the most recent settled
// failure plus the handle needed to retry just that engine.
type EngineError struct {
	EngineID    string
	Err         error
	Explanation recovery.Explanation
}

// NewOrchestrator builds an Orchestrator dispatching through registry.
func NewOrchestrator(registry *ai.Registry, options Options) *Orchestrator {
	if options.UpdateInterval == 0 {
		options.UpdateInterval = DefaultUpdateInterval
	}
	if options.IdleTimeout <= 0 {
		options.IdleTimeout = DefaultIdleTimeout
	}
	if options.Pricing == nil {
		options.Pricing = &pricing.Resolver{}
	}
	return &Orchestrator{registry: registry, options: options}
}

// States returns the live per-engine stream states of the current run.
// Snapshots are safe to read while engines are still streaming.
func (o *Orchestrator) States() map[string]StateSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make(map[string]StateSnapshot, len(o.states))
	for id, state := range o.states {
		out[id] = state.Snapshot()
	}
	return out
}

// Results returns the settled results of the last completed run.
func (o *Orchestrator) Results() []Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Result, len(o.results))
	copy(out, o.results)
	return out
}

// LastError returns the current-error slot, or nil when the last run had no
// failures.
func (o *Orchestrator) LastError() *EngineError {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// Run fans prompt out to every engine concurrently and blocks until all of
// them settle. Non-image file text is appended to the prompt before
// dispatch. The returned slice holds exactly one Result per engine, in input
// order; it is the authoritative set, finalized only after the last engine
// settles, while stream states remain readable incrementally throughout.
func (o *Orchestrator) Run(ctx context.Context, prompt string, engines []ai.Engine, files []extract.File) []Result {
	assembled := extract.AppendFileText(prompt, files)

	states := make(map[string]*StreamState, len(engines))
	lastEngines := make(map[string]ai.Engine, len(engines))
	for _, engine := range engines {
		states[engine.ID] = newStreamState(engine.ID)
		lastEngines[engine.ID] = engine.Snapshot()
	}

	o.mu.Lock()
	o.states = states
	o.results = nil
	o.lastErr = nil
	o.lastPrompt = assembled
	o.lastEngines = lastEngines
	o.mu.Unlock()

	results := make([]Result, len(engines))
	var wg sync.WaitGroup
	for i, engine := range engines {
		wg.Add(1)
		go func(slot int, engine ai.Engine) {
			defer wg.Done()
			results[slot] = o.runEngine(ctx, engine.Snapshot(), assembled, states[engine.ID])
		}(i, engine)
	}
	wg.Wait()

	o.mu.Lock()
	o.results = results
	for _, result := range results {
		if result.Err != nil {
			o.lastErr = &EngineError{
				EngineID:    result.EngineID,
				Err:         result.Err,
				Explanation: recovery.Explain(result.Err),
			}
		}
	}
	o.mu.Unlock()

	return results
}

// RetryEngine re-runs exactly one engine from the last run with the same
// assembled prompt, replacing only that engine's Result. Other results are
// untouched.
func (o *Orchestrator) RetryEngine(ctx context.Context, engineID string) (Result, error) {
	o.mu.Lock()
	engine, ok := o.lastEngines[engineID]
	prompt := o.lastPrompt
	if ok {
		o.states[engineID] = newStreamState(engineID)
	}
	state := o.states[engineID]
	o.mu.Unlock()

	if !ok {
		return Result{}, fmt.Errorf("engine %q was not part of the last run", engineID)
	}

	result := o.runEngine(ctx, engine.Snapshot(), prompt, state)

	o.mu.Lock()
	for i := range o.results {
		if o.results[i].EngineID == engineID {
			o.results[i] = result
		}
	}
	if result.Err != nil {
		o.lastErr = &EngineError{EngineID: engineID, Err: result.Err, Explanation: recovery.Explain(result.Err)}
	} else if o.lastErr != nil && o.lastErr.EngineID == engineID {
		o.lastErr = nil
	}
	o.mu.Unlock()

	return result, nil
}

// runEngine drives one engine from dispatch to settlement.
func (o *Orchestrator) runEngine(ctx context.Context, engine ai.Engine, prompt string, state *StreamState) Result {
	logger := observability.ObserverFromContext(ctx)
	timer := utils.NewTimer()

	prompt = truncateToWindow(prompt, engine.Tokenizer, engine.ContextWindow)
	inputTokens := tokens.Estimate(prompt, engine.Tokenizer)
	outputCap := plan.OutputCap(engine, inputTokens, o.options.ProviderMax)
	estimate := o.options.Pricing.ProjectSpend(engine, inputTokens, outputCap)

	result := Result{
		EngineID:           engine.ID,
		Version:            engine.Version,
		PlannedInputTokens: inputTokens,
		PlannedOutputCap:   outputCap,
		MinSpend:           estimate.MinSpend,
		MaxSpend:           estimate.MaxSpend,
		Attempts:           1,
	}

	deltaCount := 0

	settle := func(final EngineState) Result {
		timer.Stop()
		result.Duration = timer.Duration()
		state.setState(final)
		o.emitUpdate(state, time.Time{})
		state.setState(StateSettled)
		if logger != nil {
			attrs := []observability.Attribute{
				observability.String(observability.AttrEngineID, engine.ID),
				observability.String(observability.AttrEngineState, string(final)),
				observability.Int(observability.AttrRunAttempt, result.Attempts),
				observability.Int(observability.AttrTokensIn, result.TokensIn),
				observability.Int(observability.AttrTokensOut, result.TokensOut),
				observability.Int(observability.AttrDeltaCount, deltaCount),
				observability.Int(observability.AttrContentLength, len(result.FinalContent)),
				observability.Float64(observability.AttrCostUSD, result.ActualCost),
				observability.Duration("duration", result.Duration),
				observability.Bool(observability.AttrTruncated, result.Truncated),
			}
			if result.Err != nil {
				attrs = append(attrs,
					observability.String(observability.AttrFailureKind, string(recovery.Classify(result.Err))),
					observability.Error(result.Err),
				)
			}
			logger.Info(ctx, observability.EventEngineSettled, attrs...)
		}
		return result
	}

	adapter, err := o.registry.Lookup(engine.Provider)
	if err != nil {
		result.Err = err
		return settle(StateFailed)
	}

	recoveryEngine := recovery.New(
		recovery.WithMaxAttempts(o.options.MaxAttempts),
		recovery.WithStatusCallback(func(message string) {
			result.Attempts++
			state.setStatus(message)
			o.emitUpdate(state, time.Time{})
			if logger != nil {
				logger.Info(ctx, observability.EventRecoveryRetry,
					observability.String(observability.AttrEngineID, engine.ID),
					observability.Int(observability.AttrRunAttempt, result.Attempts),
					observability.String(observability.AttrStatusMessage, message),
				)
			}
		}),
	)

	state.setState(StateDispatched)

	stream, err := recovery.Do(ctx, recoveryEngine, func(ctx context.Context) (*ai.DeltaStream, error) {
		return adapter.Dispatch(ctx, engine, prompt, outputCap)
	})
	if err != nil {
		result.Err = err
		return settle(StateFailed)
	}

	usage, deltas, streamErr := o.consume(ctx, stream, state)
	deltaCount = deltas

	result.FinalContent = state.contentString()
	result.TokensOut = tokens.Estimate(result.FinalContent, engine.Tokenizer)
	result.TokensIn = inputTokens
	if usage != nil {
		if usage.PromptTokens > 0 {
			result.TokensIn = usage.PromptTokens
		}
		if usage.CompletionTokens > 0 {
			result.TokensOut = usage.CompletionTokens
		}
	}
	if result.FinalContent == "" {
		result.TokensOut = 0
	}
	result.ActualCost = o.options.Pricing.ActualCost(engine, result.TokensIn, result.TokensOut)

	var truncation *ai.TruncationError
	switch {
	case streamErr == nil:
		result.Success = true
		if o.options.OnCredit != nil {
			o.options.OnCredit(engine.Provider, engine.Version, result.TokensIn, result.TokensOut)
		}
		return settle(StateCompleted)
	case errors.As(streamErr, &truncation):
		result.Truncated = true
		result.Err = streamErr
		return settle(StateTruncated)
	default:
		result.Err = streamErr
		return settle(StateFailed)
	}
}

// consume drains one stream into state, enforcing the idle timeout and the
// coalesced update cadence. On idle expiry the stream is abandoned, not
// cancelled: the producer goroutine is released and the connection is left to
// die with its own context.
func (o *Orchestrator) consume(ctx context.Context, stream *ai.DeltaStream, state *StreamState) (*ai.Usage, int, error) {
	type streamItem struct {
		event ai.StreamEvent
		err   error
	}

	items := make(chan streamItem)
	abandon := make(chan struct{})
	go func() {
		defer close(items)
		for event, err := range stream.Iter() {
			select {
			case items <- streamItem{event: event, err: err}:
			case <-abandon:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	idle := time.NewTimer(o.options.IdleTimeout)
	defer idle.Stop()

	var usage *ai.Usage
	var lastEmit time.Time
	deltas := 0

	for {
		select {
		case <-idle.C:
			close(abandon)
			return usage, deltas, ErrIdleTimeout

		case item, ok := <-items:
			if !ok {
				return usage, deltas, nil
			}
			if item.err != nil {
				return usage, deltas, item.err
			}

			switch item.event.Type {
			case ai.StreamEventDelta:
				deltas++
				state.appendContent(item.event.Delta)
				lastEmit = o.emitUpdate(state, lastEmit)
			case ai.StreamEventUsage:
				if item.event.Usage != nil {
					usage = item.event.Usage
				}
			}

			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(o.options.IdleTimeout)
		}
	}
}

// emitUpdate forwards a snapshot to OnUpdate, rate-limited to the configured
// interval. A zero lastEmit (settlement and recovery notices) always emits.
func (o *Orchestrator) emitUpdate(state *StreamState, lastEmit time.Time) time.Time {
	if o.options.OnUpdate == nil {
		return lastEmit
	}
	now := time.Now()
	if !lastEmit.IsZero() && o.options.UpdateInterval > 0 && now.Sub(lastEmit) < o.options.UpdateInterval {
		return lastEmit
	}
	o.options.OnUpdate(state.Snapshot())
	return now
}

// truncateToWindow defensively trims prompt so its estimate fits the context
// window, reducing payload-too-large rejections. The cut is proportional on
// the character count; the estimator's linearity makes that a safe
// over-approximation.
func truncateToWindow(prompt string, family tokens.Family, contextWindow int) string {
	if contextWindow <= 0 {
		return prompt
	}
	estimated := tokens.Estimate(prompt, family)
	if estimated <= contextWindow {
		return prompt
	}

	keepRatio := float64(contextWindow) / float64(estimated)
	keep := int(float64(len(prompt)) * keepRatio)
	if keep >= len(prompt) {
		keep = len(prompt) - 1
	}
	if keep < 0 {
		keep = 0
	}
	// Back off to a rune boundary.
	for keep > 0 && keep < len(prompt) && (prompt[keep]&0xC0) == 0x80 {
		keep--
	}
	return prompt[:keep]
}
