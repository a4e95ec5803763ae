// Package plan computes the output-token cap for one streaming call. The cap
// is what the dispatcher puts on the wire as the provider's max-output field,
// so it bounds both spend and truncation risk.
package plan

import (
	"math"

	"github.com/leofalp/promptfan/providers/ai"
)

// DefaultProviderMax is the output ceiling used for providers missing from the
// admin-configured map.
const DefaultProviderMax = 8192

// reserveRatio keeps a slice of the remaining context unused. The planner
// never authorizes the full remainder: provider-side prompt wrapping and
// tokenizer drift would otherwise push requests over the window.
const reserveRatio = 0.9

// OutputCap returns the maximum output tokens to request for engine given the
// current input estimate. A fixed output policy is honored verbatim. Otherwise
// the cap is the provider ceiling (providerMax entry, DefaultProviderMax when
// absent) bounded by 90% of the context remaining after the input.
func OutputCap(engine ai.Engine, inputTokens int, providerMax map[string]int) int {
	if fixed, ok := engine.Output.Fixed(); ok {
		return fixed
	}

	ceiling := DefaultProviderMax
	if configured, ok := providerMax[engine.Provider]; ok && configured > 0 {
		ceiling = configured
	}

	available := engine.ContextWindow - inputTokens
	if available < 0 {
		available = 0
	}

	budget := int(math.Floor(float64(available) * reserveRatio))
	if budget < ceiling {
		return budget
	}
	return ceiling
}
