// Package promptfan fans one prompt out to multiple LLM providers
// concurrently, streaming normalized deltas, projecting and settling cost,
// and recovering from transient provider failures.
//
// The core pieces compose bottom-up: core/tokens estimates, core/plan caps,
// core/pricing prices, providers/ai/* speak the wire formats, core/recovery
// retries, and core/run orchestrates. This package only wires the standard
// adapter set together.
package promptfan

import (
	"github.com/leofalp/promptfan/providers/ai"
	"github.com/leofalp/promptfan/providers/ai/anthropic"
	"github.com/leofalp/promptfan/providers/ai/gemini"
	"github.com/leofalp/promptfan/providers/ai/ollama"
	"github.com/leofalp/promptfan/providers/ai/openai"
)

// NewDefaultRegistry returns a registry with all built-in provider adapters.
// proxyBase is the same-origin base URL used for engines without a
// credential; it may be empty when every engine carries its own key.
func NewDefaultRegistry(proxyBase string) *ai.Registry {
	registry := ai.NewRegistry()
	registry.Register("openai", openai.New().WithProxyBase(proxyBase))
	registry.Register("anthropic", anthropic.New().WithProxyBase(proxyBase))
	registry.Register("gemini", gemini.New().WithProxyBase(proxyBase))
	registry.Register("ollama", ollama.New().WithProxyBase(proxyBase))
	return registry
}
