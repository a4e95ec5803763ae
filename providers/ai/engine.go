package ai

import (
	"slices"

	"github.com/leofalp/promptfan/core/tokens"
)

// OutputPolicy decides how the output-token cap for a call is chosen: either
// a fixed user-selected value or automatic planning from the remaining
// context budget.
type OutputPolicy struct {
	fixed  bool
	tokens int
}

// AutoOutput returns the policy that lets the planner compute the cap.
func AutoOutput() OutputPolicy {
	return OutputPolicy{}
}

// FixedOutput returns a policy pinning the output cap to n tokens.
func FixedOutput(n int) OutputPolicy {
	return OutputPolicy{fixed: true, tokens: n}
}

// Fixed reports the pinned cap, if any.
func (p OutputPolicy) Fixed() (int, bool) {
	return p.tokens, p.fixed
}

// Engine describes one selectable completion engine. Engines are owned by the
// caller; the core only ever reads a Snapshot taken at dispatch time, so
// later edits never affect an in-flight call.
type Engine struct {
	ID            string        // stable identifier, unique among selected engines
	Name          string        // display name
	Provider      string        // provider family tag, keys the adapter registry
	Tokenizer     tokens.Family // tokenizer family for heuristic estimates
	ContextWindow int           // total input+output token budget of the model
	Versions      []string      // available model versions
	Version       string        // selected model version
	Credential    string        // API key; empty routes the call through the proxy
	Endpoint      string        // optional base URL override for direct calls
	Output        OutputPolicy  // output cap policy
}

// Snapshot returns a deep copy safe to hand to a dispatch goroutine.
func (e Engine) Snapshot() Engine {
	snapshot := e
	snapshot.Versions = slices.Clone(e.Versions)
	return snapshot
}

// Usage carries token accounting reported by the provider for one call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}
