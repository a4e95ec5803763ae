package openai

import (
	"context"
	"io"

	"github.com/leofalp/promptfan/core/tokens"
	"github.com/leofalp/promptfan/internal/utils"
	"github.com/leofalp/promptfan/providers/ai"
	"github.com/leofalp/promptfan/providers/observability"
)

// Dispatch implements ai.StreamProvider.
//
// OpenAI streams chat.completion.chunk events over SSE until a literal
// [DONE] sentinel. Each chunk carries a content fragment in
// choices[0].delta.content; the final content-bearing chunk carries a
// finish_reason, and with stream_options.include_usage the API appends one
// usage-only chunk with an empty choices list.
//
// A finish_reason of "length" means the generation hit the output token
// budget; that surfaces as *ai.TruncationError with the partial content,
// distinct from an ordinary failure.
func (a *Adapter) Dispatch(ctx context.Context, engine ai.Engine, prompt string, outputCap int) (*ai.DeltaStream, error) {
	span := observability.SpanFromContext(ctx)
	if span != nil {
		span.AddEvent(observability.EventLLMRequestStart,
			observability.String(observability.AttrLLMProvider, providerTag),
			observability.String(observability.AttrLLMModel, engine.Version),
			observability.Int(observability.AttrPlannedOutCap, outputCap),
		)
	}

	url, apiKey := a.target(engine)

	httpResponse, err := utils.DoPostStream(ctx, a.client, url, apiKey, buildRequest(engine, prompt, outputCap))
	if err != nil {
		return nil, ai.NormalizeError(providerTag, engine.ID, err)
	}

	scanner := utils.NewSSEScanner(httpResponse.Body)

	iteratorFunc := func(yield func(ai.StreamEvent, error) bool) {
		defer utils.CloseWithLog(httpResponse.Body)

		var accumulated []byte
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
				// Unparseable frame even after repair: skip it.
				continue
			}

			if frame.Usage != nil {
				usage = &ai.Usage{
					PromptTokens:     frame.Usage.PromptTokens,
					CompletionTokens: frame.Usage.CompletionTokens,
					TotalTokens:      frame.Usage.TotalTokens,
				}
			}

			if len(frame.Choices) == 0 {
				continue
			}
			choice := frame.Choices[0]

			if choice.Delta.Content != "" {
				if firstDelta && span != nil {
					span.AddEvent(observability.EventLLMFirstDelta)
				}
				firstDelta = false
				accumulated = append(accumulated, choice.Delta.Content...)
				if !yield(ai.StreamEvent{Type: ai.StreamEventDelta, Delta: choice.Delta.Content}, nil) {
					return
				}
			}

			if choice.FinishReason != "" {
				finishReason = choice.FinishReason
			}
		}

		// Stream drained: emit usage, then inspect the terminal stop
		// indicator for a budget cut-off.
		if span != nil {
			span.AddEvent(observability.EventLLMStreamEnd,
				observability.Int(observability.AttrContentLength, len(accumulated)))
		}
		if usage != nil {
			if !yield(ai.StreamEvent{Type: ai.StreamEventUsage, Usage: usage}, nil) {
				return
			}
		}

		if finishReason == "length" {
			content := string(accumulated)
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
