package ai

import (
	"context"
	"iter"
	"strings"
)

// StreamEventType identifies the kind of payload carried by a StreamEvent.
type StreamEventType string

const (
	// StreamEventDelta carries one incremental text fragment.
	StreamEventDelta StreamEventType = "delta"
	// StreamEventUsage carries provider-reported token usage, typically the
	// final data-bearing event.
	StreamEventUsage StreamEventType = "usage"
	// StreamEventDone signals normal stream completion.
	StreamEventDone StreamEventType = "done"
)

// StreamEvent is a single normalized event yielded while streaming one
// completion. Every provider's wire framing is reduced to this shape.
type StreamEvent struct {
	Type         StreamEventType
	Delta        string // text fragment (Type == StreamEventDelta)
	Usage        *Usage // token accounting (Type == StreamEventUsage)
	FinishReason string // provider's normalized stop reason (Type == StreamEventDone)
}

// StreamProvider is the single contract every provider adapter implements.
// Dispatch issues one streaming completion call and returns a lazy, finite,
// non-restartable delta sequence. Pre-stream errors (bad credential, non-2xx
// response, network failure) are returned as a normalized *ProviderError;
// mid-stream errors are yielded through the iterator. A generation cut off by
// the token budget surfaces as a *TruncationError carrying the partial
// content.
type StreamProvider interface {
	Dispatch(ctx context.Context, engine Engine, prompt string, outputCap int) (*DeltaStream, error)
}

// DeltaStream wraps the normalized event iterator for one call. The caller
// must consume it (fully, or by breaking out of the loop) so the adapter can
// release the underlying response body.
type DeltaStream struct {
	iterator iter.Seq2[StreamEvent, error]
}

// NewDeltaStream creates a DeltaStream from a raw iterator. The iterator
// yields events with nil errors for normal progress and a non-nil error to
// terminate the stream.
func NewDeltaStream(iterator iter.Seq2[StreamEvent, error]) *DeltaStream {
	return &DeltaStream{iterator: iterator}
}

// Iter returns the underlying iterator for range-over-func consumption.
func (s *DeltaStream) Iter() iter.Seq2[StreamEvent, error] {
	return s.iterator
}

// Collected is the accumulated outcome of draining a DeltaStream.
type Collected struct {
	Content      string
	Usage        *Usage
	FinishReason string
}

// Collect drains the stream and concatenates all deltas. A mid-stream error
// terminates collection and is returned alongside the partial accumulation;
// in particular a *TruncationError still leaves the partial content in
// Collected.Content.
func (s *DeltaStream) Collect() (Collected, error) {
	var out Collected
	var content strings.Builder

	for event, err := range s.iterator {
		if err != nil {
			out.Content = content.String()
			return out, err
		}

		switch event.Type {
		case StreamEventDelta:
			content.WriteString(event.Delta)
		case StreamEventUsage:
			if event.Usage != nil {
				out.Usage = event.Usage
			}
		case StreamEventDone:
			out.FinishReason = event.FinishReason
		}
	}

	out.Content = content.String()
	return out, nil
}
