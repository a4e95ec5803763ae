package run

import (
	"time"
)

// Result is one engine's settled outcome. Exactly one Result exists per
// dispatched engine per orchestrator invocation; the whole set is replaced on
// the next run. Invariant: Success == (Err == nil).
type Result struct {
	EngineID string
	Version  string

	TokensIn  int
	TokensOut int

	PlannedInputTokens int
	PlannedOutputCap   int

	MinSpend   float64
	MaxSpend   float64
	ActualCost float64

	Duration time.Duration
	Attempts int

	Success bool
	// Truncated marks a budget-exhausted stop: the content in FinalContent
	// is real but incomplete, and Err carries the *ai.TruncationError.
	Truncated bool
	Err       error

	FinalContent string
}
