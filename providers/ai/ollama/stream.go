package ollama

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
// The response body is a sequence of newline-delimited JSON frames; an
// incomplete trailing line is held by the scanner until its newline arrives,
// so frames split across read boundaries are reassembled. The frame with
// done=true is terminal and carries prompt_eval_count / eval_count plus a
// done_reason; "length" means the num_predict budget cut the generation off
// and surfaces as *ai.TruncationError.
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

	scanner := utils.NewNDJSONScanner(httpResponse.Body)

	iteratorFunc := func(yield func(ai.StreamEvent, error) bool) {
		defer utils.CloseWithLog(httpResponse.Body)

		var accumulated []byte
		firstDelta := true

		streamEnd := func() {
			if span != nil {
				span.AddEvent(observability.EventLLMStreamEnd,
					observability.Int(observability.AttrContentLength, len(accumulated)))
			}
		}

		for {
			if ctx.Err() != nil {
				yield(ai.StreamEvent{}, ai.NormalizeError(providerTag, engine.ID, ctx.Err()))
				return
			}

			line, readErr := scanner.Next()
			if readErr == io.EOF {
				// Closed without a done frame: report what we have.
				streamEnd()
				yield(ai.StreamEvent{Type: ai.StreamEventDone}, nil)
				return
			}
			if readErr != nil {
				yield(ai.StreamEvent{}, ai.NormalizeError(providerTag, engine.ID, readErr))
				return
			}

			var f frame
			if decodeErr := utils.UnmarshalLenient(line, &f); decodeErr != nil {
				continue
			}

			if f.Message.Content != "" {
				if firstDelta && span != nil {
					span.AddEvent(observability.EventLLMFirstDelta)
				}
				firstDelta = false
				accumulated = append(accumulated, f.Message.Content...)
				if !yield(ai.StreamEvent{Type: ai.StreamEventDelta, Delta: f.Message.Content}, nil) {
					return
				}
			}

			if !f.Done {
				continue
			}

			streamEnd()

			usage := &ai.Usage{
				PromptTokens:     f.PromptEvalCount,
				CompletionTokens: f.EvalCount,
				TotalTokens:      f.PromptEvalCount + f.EvalCount,
			}
			if !yield(ai.StreamEvent{Type: ai.StreamEventUsage, Usage: usage}, nil) {
				return
			}

			if f.DoneReason == "length" {
				content := string(accumulated)
				generated := f.EvalCount
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

			yield(ai.StreamEvent{Type: ai.StreamEventDone, FinishReason: f.DoneReason}, nil)
			return
		}
	}

	return ai.NewDeltaStream(iteratorFunc), nil
}
