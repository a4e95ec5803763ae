package config

import (
	"testing"
	"time"

	"github.com/leofalp/promptfan/core/pricing"
)

const sampleYAML = `
proxy_base: https://app.example.com
idle_timeout: 30s
update_interval: 15ms

provider_max_output:
  openai: 16384
  anthropic: 8192

pricing:
  - provider: openai
    version: gpt-4o
    input_cost_per_million: 2.0
    output_cost_per_million: 8.0

engines:
  - id: oai-1
    name: GPT-4o
    provider: openai
    tokenizer: tiktoken
    context_window: 128000
    versions: [gpt-4o, gpt-4o-mini]
    version: gpt-4o
  - id: claude-1
    name: Claude
    provider: anthropic
    tokenizer: claude
    context_window: 200000
    version: claude-sonnet-4-5
    credential_env: MY_CLAUDE_KEY
    max_output: 4096
`

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if cfg.ProxyBase != "https://app.example.com" {
		t.Errorf("proxy base = %q", cfg.ProxyBase)
	}
	if cfg.IdleTimeout.Std() != 30*time.Second {
		t.Errorf("idle timeout = %v, want 30s", cfg.IdleTimeout.Std())
	}
	if cfg.UpdateInterval.Std() != 15*time.Millisecond {
		t.Errorf("update interval = %v, want 15ms", cfg.UpdateInterval.Std())
	}
	if cfg.ProviderMaxOutput["openai"] != 16384 {
		t.Errorf("provider max = %v", cfg.ProviderMaxOutput)
	}

	table := cfg.PricingTable()
	entry, ok := table[pricing.Key{Provider: "openai", Version: "gpt-4o"}]
	if !ok || entry.InputCostPerMillion != 2.0 || entry.OutputCostPerMillion != 8.0 {
		t.Errorf("pricing table = %v", table)
	}
}

func TestParse_EngineValidation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing id", "engines:\n  - provider: openai\n    context_window: 1000\n"},
		{"missing provider", "engines:\n  - id: a\n    context_window: 1000\n"},
		{"bad context window", "engines:\n  - id: a\n    provider: openai\n"},
		{"duplicate id", "engines:\n  - id: a\n    provider: openai\n    context_window: 10\n  - id: a\n    provider: gemini\n    context_window: 10\n"},
	}
	for _, c := range cases {
		if _, err := Parse([]byte(c.yaml)); err == nil {
			t.Errorf("%s: Parse() succeeded, want error", c.name)
		}
	}
}

func TestBuildEngines_CredentialsFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("MY_CLAUDE_KEY", "sk-claude")

	cfg, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	engines := cfg.BuildEngines()
	if len(engines) != 2 {
		t.Fatalf("len(engines) = %d, want 2", len(engines))
	}

	openai := engines[0]
	if openai.Credential != "sk-openai" {
		t.Errorf("openai credential = %q, want conventional env var", openai.Credential)
	}
	if _, fixed := openai.Output.Fixed(); fixed {
		t.Error("openai output should be automatic")
	}

	claude := engines[1]
	if claude.Credential != "sk-claude" {
		t.Errorf("claude credential = %q, want custom env var", claude.Credential)
	}
	if cap, fixed := claude.Output.Fixed(); !fixed || cap != 4096 {
		t.Errorf("claude output = (%d, %v), want fixed 4096", cap, fixed)
	}
}

func TestBuildEngines_MissingCredentialLeavesProxyRoute(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if got := cfg.BuildEngines()[0].Credential; got != "" {
		t.Errorf("credential = %q, want empty for proxy routing", got)
	}
}

func TestParse_InvalidDuration(t *testing.T) {
	if _, err := Parse([]byte("idle_timeout: soon\n")); err == nil {
		t.Fatal("Parse() succeeded, want duration error")
	}
}
