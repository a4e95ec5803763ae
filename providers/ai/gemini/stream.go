package gemini

import (
	"context"
	"io"
	"strings"

	"github.com/leofalp/promptfan/core/tokens"
	"github.com/leofalp/promptfan/internal/utils"
	"github.com/leofalp/promptfan/providers/ai"
	"github.com/leofalp/promptfan/providers/observability"
)

// Dispatch implements ai.StreamProvider.
//
// Each alt=sse event carries a snapshot whose candidate text may be
// cumulative depending on API version, so the iterator tracks how much text
// it has already emitted and yields only the new suffix; genuinely
// incremental chunks degrade to plain pass-through under the same rule. The
// stream ends on connection close (iterator exhaustion); the last seen
// finishReason decides the outcome, with "MAX_TOKENS" meaning the output
// budget cut the generation off.
func (a *Adapter) Dispatch(ctx context.Context, engine ai.Engine, prompt string, outputCap int) (*ai.DeltaStream, error) {
	span := observability.SpanFromContext(ctx)
	if span != nil {
		span.AddEvent(observability.EventLLMRequestStart,
			observability.String(observability.AttrLLMProvider, providerTag),
			observability.String(observability.AttrLLMModel, engine.Version),
			observability.Int(observability.AttrPlannedOutCap, outputCap),
		)
	}

	url, headers := a.target(engine)

	httpResponse, err := utils.DoPostStream(ctx, a.client, url, "", buildRequest(prompt, outputCap), headers...)
	if err != nil {
		return nil, ai.NormalizeError(providerTag, engine.ID, err)
	}

	scanner := utils.NewSSEScanner(httpResponse.Body)

	iteratorFunc := func(yield func(ai.StreamEvent, error) bool) {
		defer utils.CloseWithLog(httpResponse.Body)

		var emitted strings.Builder
		var usage *ai.Usage
		finishReason := ""
		firstDelta := true

		for {
			if ctx.Err() != nil {
				yield(ai.StreamEvent{}, ai.NormalizeError(providerTag, engine.ID, ctx.Err()))
				return
			}

			payload, sseErr := scanner.Next()
			if sseErr == io.EOF {
				break
			}
			if sseErr != nil {
				yield(ai.StreamEvent{}, ai.NormalizeError(providerTag, engine.ID, sseErr))
				return
			}

			var frame chunk
			if decodeErr := utils.UnmarshalLenient([]byte(payload), &frame); decodeErr != nil {
				continue
			}

			if frame.UsageMetadata != nil {
				usage = &ai.Usage{
					PromptTokens:     frame.UsageMetadata.PromptTokenCount,
					CompletionTokens: frame.UsageMetadata.CandidatesTokenCount,
					TotalTokens:      frame.UsageMetadata.TotalTokenCount,
				}
			}

			if len(frame.Candidates) == 0 {
				continue
			}
			candidate := frame.Candidates[0]

			var text strings.Builder
			for _, part := range candidate.Content.Parts {
				text.WriteString(part.Text)
			}
			snapshot := text.String()

			delta := snapshot
			if strings.HasPrefix(snapshot, emitted.String()) {
				// Cumulative snapshot: emit only the unseen suffix.
				delta = snapshot[emitted.Len():]
			}

			if delta != "" {
				if firstDelta && span != nil {
					span.AddEvent(observability.EventLLMFirstDelta)
				}
				firstDelta = false
				emitted.WriteString(delta)
				if !yield(ai.StreamEvent{Type: ai.StreamEventDelta, Delta: delta}, nil) {
					return
				}
			}

			if candidate.FinishReason != "" {
				finishReason = candidate.FinishReason
			}
		}

		if span != nil {
			span.AddEvent(observability.EventLLMStreamEnd,
				observability.Int(observability.AttrContentLength, emitted.Len()))
		}

		if usage != nil {
			if !yield(ai.StreamEvent{Type: ai.StreamEventUsage, Usage: usage}, nil) {
				return
			}
		}

		if finishReason == "MAX_TOKENS" {
			content := emitted.String()
			generated := tokens.Estimate(content, engine.Tokenizer)
			if usage != nil && usage.CompletionTokens > 0 {
				generated = usage.CompletionTokens
			}
			yield(ai.StreamEvent{}, &ai.TruncationError{
				Provider:        providerTag,
				Content:         content,
				TokensGenerated: generated,
				MaxTokens:       outputCap,
			})
			return
		}

		yield(ai.StreamEvent{Type: ai.StreamEventDone, FinishReason: finishReason}, nil)
	}

	return ai.NewDeltaStream(iteratorFunc), nil
}
