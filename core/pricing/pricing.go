// Package pricing projects and settles per-call spend. Prices are expressed
// in USD per million tokens and resolved by priority: a per-call user
// override, then the admin-supplied table, then the built-in fallback table.
// A model with no entry anywhere prices at zero; there is no silent default
// price.
package pricing

import "github.com/leofalp/promptfan/providers/ai"

// Entry is the price of one model version, USD per million tokens.
type Entry struct {
	InputCostPerMillion  float64 `yaml:"input_cost_per_million" json:"input_cost_per_million"`
	OutputCostPerMillion float64 `yaml:"output_cost_per_million" json:"output_cost_per_million"`
}

// Zero reports whether the entry carries no price at all.
func (e Entry) Zero() bool {
	return e.InputCostPerMillion == 0 && e.OutputCostPerMillion == 0
}

// Key identifies one priced model version.
type Key struct {
	Provider string
	Version  string
}

// Estimate is the projected spend range for one planned call.
type Estimate struct {
	// MinSpend assumes a realistic output length, clamp(0.25*outputCap, 300, 1500).
	MinSpend float64
	// MaxSpend assumes the full output cap is consumed.
	MaxSpend float64
}

// Realistic output bounds for the MinSpend projection.
const (
	realisticOutputFraction = 0.25
	realisticOutputFloor    = 300
	realisticOutputCeil     = 1500
)

// Resolver merges the three price sources. The zero value resolves from the
// built-in table only.
type Resolver struct {
	// Admin is the externally supplied table, typically loaded from config.
	Admin map[Key]Entry
	// Override wins over everything; set per user session.
	Override map[Key]Entry
}

// Lookup resolves the price entry for engine, walking override, admin, and
// built-in tables in that order. The second return is false when no table has
// an entry.
func (r *Resolver) Lookup(engine ai.Engine) (Entry, bool) {
	key := Key{Provider: engine.Provider, Version: engine.Version}

	if entry, ok := r.Override[key]; ok {
		return entry, true
	}
	if entry, ok := r.Admin[key]; ok {
		return entry, true
	}
	if entry, ok := fallbackPricing[key]; ok {
		return entry, true
	}
	return Entry{}, false
}

// ProjectSpend computes the spend range for one planned call. Engines without
// a price entry project zero.
func (r *Resolver) ProjectSpend(engine ai.Engine, inputTokens, outputCap int) Estimate {
	entry, ok := r.Lookup(engine)
	if !ok {
		return Estimate{}
	}

	realistic := realisticOutput(outputCap)

	return Estimate{
		MinSpend: tokenCost(inputTokens, entry.InputCostPerMillion) + tokenCost(realistic, entry.OutputCostPerMillion),
		MaxSpend: tokenCost(inputTokens, entry.InputCostPerMillion) + tokenCost(outputCap, entry.OutputCostPerMillion),
	}
}

// ActualCost settles the spend for realized token counts. Engines without a
// price entry cost zero.
func (r *Resolver) ActualCost(engine ai.Engine, tokensIn, tokensOut int) float64 {
	entry, ok := r.Lookup(engine)
	if !ok {
		return 0
	}
	return tokenCost(tokensIn, entry.InputCostPerMillion) + tokenCost(tokensOut, entry.OutputCostPerMillion)
}

func realisticOutput(outputCap int) int {
	realistic := int(realisticOutputFraction * float64(outputCap))
	if realistic < realisticOutputFloor {
		realistic = realisticOutputFloor
	}
	if realistic > realisticOutputCeil {
		realistic = realisticOutputCeil
	}
	// The realistic figure never exceeds the cap itself, so the projected
	// range stays ordered even for tiny caps.
	if realistic > outputCap {
		realistic = outputCap
	}
	return realistic
}

func tokenCost(tokens int, pricePerMillion float64) float64 {
	return float64(tokens) / 1_000_000 * pricePerMillion
}
