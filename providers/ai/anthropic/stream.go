package anthropic

import (
	"context"
	"fmt"
	"io"

	"github.com/leofalp/promptfan/core/tokens"
	"github.com/leofalp/promptfan/internal/utils"
	"github.com/leofalp/promptfan/providers/ai"
	"github.com/leofalp/promptfan/providers/observability"
)

// Dispatch implements ai.StreamProvider.
//
// Anthropic SSE lifecycle:
//
//	message_start → content_block_start → content_block_delta(s) →
//	content_block_stop → message_delta → message_stop
//
// Input tokens arrive on message_start, output tokens and the stop reason on
// message_delta, and message_stop is the terminal event. A stop_reason of
// "max_tokens" means the output budget cut the generation off; that surfaces
// as *ai.TruncationError with the partial content preserved.
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

	// Empty apiKey: Anthropic authenticates via the x-api-key header option,
	// never a Bearer token.
	httpResponse, err := utils.DoPostStream(ctx, a.client, url, "", buildRequest(engine, prompt, outputCap), headers...)
	if err != nil {
		return nil, ai.NormalizeError(providerTag, engine.ID, err)
	}

	scanner := utils.NewSSEScanner(httpResponse.Body)

	iteratorFunc := func(yield func(ai.StreamEvent, error) bool) {
		defer utils.CloseWithLog(httpResponse.Body)

		var accumulated []byte
		inputTokens := 0
		outputTokens := 0
		stopReason := ""
		firstDelta := true

	receive:
		for {
			if ctx.Err() != nil {
				yield(ai.StreamEvent{}, ai.NormalizeError(providerTag, engine.ID, ctx.Err()))
				return
			}

			payload, sseErr := scanner.Next()
			if sseErr == io.EOF {
				// Closed without message_stop: settle on whatever state the
				// stream recorded, so a stop_reason already delivered on
				// message_delta is not lost.
				break receive
			}
			if sseErr != nil {
				yield(ai.StreamEvent{}, ai.NormalizeError(providerTag, engine.ID, sseErr))
				return
			}

			var event streamEvent
			if decodeErr := utils.UnmarshalLenient([]byte(payload), &event); decodeErr != nil {
				continue
			}

			switch event.Type {

			case "message_start":
				if event.Message != nil {
					inputTokens = event.Message.Usage.InputTokens
				}

			case "content_block_delta":
				if event.Delta != nil && event.Delta.Type == "text_delta" && event.Delta.Text != "" {
					if firstDelta && span != nil {
						span.AddEvent(observability.EventLLMFirstDelta)
					}
					firstDelta = false
					accumulated = append(accumulated, event.Delta.Text...)
					if !yield(ai.StreamEvent{Type: ai.StreamEventDelta, Delta: event.Delta.Text}, nil) {
						return
					}
				}

			case "message_delta":
				if event.Usage != nil {
					outputTokens = event.Usage.OutputTokens
				}
				if event.Delta != nil && event.Delta.StopReason != "" {
					stopReason = event.Delta.StopReason
				}

			case "message_stop":
				break receive

			case "error":
				message := "unknown stream error"
				if event.Error != nil {
					message = event.Error.Message
				}
				yield(ai.StreamEvent{}, ai.NormalizeError(providerTag, engine.ID, fmt.Errorf("anthropic stream error: %s", message)))
				return

			case "content_block_start", "content_block_stop", "ping":
				// Block bookkeeping and keep-alives carry no text.

			default:
				// Unknown event types are skipped for forward compatibility.
			}
		}

		if span != nil {
			span.AddEvent(observability.EventLLMStreamEnd,
				observability.Int(observability.AttrContentLength, len(accumulated)))
		}

		if !yield(ai.StreamEvent{
			Type: ai.StreamEventUsage,
			Usage: &ai.Usage{
				PromptTokens:     inputTokens,
				CompletionTokens: outputTokens,
				TotalTokens:      inputTokens + outputTokens,
			},
		}, nil) {
			return
		}

		if stopReason == "max_tokens" {
			content := string(accumulated)
			generated := outputTokens
			if generated == 0 {
				generated = tokens.Estimate(content, engine.Tokenizer)
			}
			yield(ai.StreamEvent{}, &ai.TruncationError{
				Provider:        providerTag,
				Content:         content,
				TokensGenerated: generated,
				MaxTokens:       outputCap,
			})
			return
		}

		yield(ai.StreamEvent{Type: ai.StreamEventDone, FinishReason: stopReason}, nil)
	}

	return ai.NewDeltaStream(iteratorFunc), nil
}
