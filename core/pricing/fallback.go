package pricing

// Built-in fallback price table, USD per million tokens. Checked last, after
// the user override and the admin table. Sources: provider public price pages
// (January 2025); keep entries for the standard (lowest) tier only.
var fallbackPricing = map[Key]Entry{
	// OpenAI
	{Provider: "openai", Version: "gpt-4o"}: {
		InputCostPerMillion:  2.50,
		OutputCostPerMillion: 10.00,
	},
	{Provider: "openai", Version: "gpt-4o-mini"}: {
		InputCostPerMillion:  0.15,
		OutputCostPerMillion: 0.60,
	},
	{Provider: "openai", Version: "gpt-4.1"}: {
		InputCostPerMillion:  2.00,
		OutputCostPerMillion: 8.00,
	},
	{Provider: "openai", Version: "gpt-4.1-mini"}: {
		InputCostPerMillion:  0.40,
		OutputCostPerMillion: 1.60,
	},
	{Provider: "openai", Version: "o3-mini"}: {
		InputCostPerMillion:  1.10,
		OutputCostPerMillion: 4.40,
	},

	// Anthropic
	{Provider: "anthropic", Version: "claude-sonnet-4-5"}: {
		InputCostPerMillion:  3.00,
		OutputCostPerMillion: 15.00,
	},
	{Provider: "anthropic", Version: "claude-opus-4-1"}: {
		InputCostPerMillion:  15.00,
		OutputCostPerMillion: 75.00,
	},
	{Provider: "anthropic", Version: "claude-haiku-4-5"}: {
		InputCostPerMillion:  1.00,
		OutputCostPerMillion: 5.00,
	},
	{Provider: "anthropic", Version: "claude-3-5-haiku"}: {
		InputCostPerMillion:  0.80,
		OutputCostPerMillion: 4.00,
	},

	// Gemini
	{Provider: "gemini", Version: "gemini-2.5-pro"}: {
		InputCostPerMillion:  1.25,
		OutputCostPerMillion: 10.00,
	},
	{Provider: "gemini", Version: "gemini-2.5-flash"}: {
		InputCostPerMillion:  0.30,
		OutputCostPerMillion: 2.50,
	},
	{Provider: "gemini", Version: "gemini-2.5-flash-lite"}: {
		InputCostPerMillion:  0.10,
		OutputCostPerMillion: 0.40,
	},
	{Provider: "gemini", Version: "gemini-2.0-flash"}: {
		InputCostPerMillion:  0.10,
		OutputCostPerMillion: 0.40,
	},

	// Ollama runs locally; metered at zero but listed so lookups succeed and
	// results report a settled (zero) cost rather than "no price entry".
	{Provider: "ollama", Version: "llama3.1"}: {},
	{Provider: "ollama", Version: "qwen2.5"}:  {},
}
