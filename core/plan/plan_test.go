package plan

import (
	"testing"

	"github.com/leofalp/promptfan/providers/ai"
)

func TestOutputCap_ProviderMaxWins(t *testing.T) {
	engine := ai.Engine{Provider: "openai", ContextWindow: 128000}
	providerMax := map[string]int{"openai": 16384}

	// 90% of 127000 is 114300, well above the provider ceiling.
	got := OutputCap(engine, 1000, providerMax)
	if got != 16384 {
		t.Errorf("OutputCap() = %d, want 16384", got)
	}
}

func TestOutputCap_ReserveRatioWins(t *testing.T) {
	engine := ai.Engine{Provider: "openai", ContextWindow: 8000}
	providerMax := map[string]int{"openai": 16384}

	// available = 7000, 90% = 6300 < ceiling.
	got := OutputCap(engine, 1000, providerMax)
	if got != 6300 {
		t.Errorf("OutputCap() = %d, want 6300", got)
	}
}

func TestOutputCap_NeverFullRemainder(t *testing.T) {
	providerMax := map[string]int{}
	for _, inputTokens := range []int{0, 1, 500, 4000, 7999} {
		engine := ai.Engine{Provider: "ollama", ContextWindow: 8000}
		got := OutputCap(engine, inputTokens, providerMax)
		available := engine.ContextWindow - inputTokens
		if got > available*9/10 {
			t.Errorf("inputTokens=%d: cap %d exceeds 90%% of remaining %d", inputTokens, got, available)
		}
		if got > DefaultProviderMax {
			t.Errorf("inputTokens=%d: cap %d exceeds default ceiling", inputTokens, got)
		}
	}
}

func TestOutputCap_DefaultCeiling(t *testing.T) {
	engine := ai.Engine{Provider: "unlisted", ContextWindow: 1000000}
	got := OutputCap(engine, 100, nil)
	if got != DefaultProviderMax {
		t.Errorf("OutputCap() = %d, want default %d", got, DefaultProviderMax)
	}
}

func TestOutputCap_FixedPolicyPassthrough(t *testing.T) {
	engine := ai.Engine{Provider: "openai", ContextWindow: 128000, Output: ai.FixedOutput(512)}
	got := OutputCap(engine, 100000, map[string]int{"openai": 16384})
	if got != 512 {
		t.Errorf("OutputCap() = %d, want fixed 512", got)
	}
}

func TestOutputCap_InputExceedsWindow(t *testing.T) {
	engine := ai.Engine{Provider: "openai", ContextWindow: 4000}
	got := OutputCap(engine, 5000, nil)
	if got != 0 {
		t.Errorf("OutputCap() = %d, want 0 when input exceeds window", got)
	}
}
