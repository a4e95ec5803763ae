// Package config loads the admin-facing configuration: provider output
// ceilings, pricing overrides, orchestrator pacing, and the engine roster.
// Credentials never live in the YAML file; they are resolved from the
// environment (optionally populated from a .env file) at load time.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/leofalp/promptfan/core/pricing"
	"github.com/leofalp/promptfan/core/tokens"
	"github.com/leofalp/promptfan/providers/ai"
)

// Duration parses YAML scalars like "30s" or "15ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard-library duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// PriceEntry is one admin-supplied pricing row.
type PriceEntry struct {
	Provider             string  `yaml:"provider"`
	Version              string  `yaml:"version"`
	InputCostPerMillion  float64 `yaml:"input_cost_per_million"`
	OutputCostPerMillion float64 `yaml:"output_cost_per_million"`
}

// EngineEntry describes one engine in the roster. CredentialEnv names the
// environment variable holding the API key; empty falls back to the
// provider's conventional variable, and a missing variable leaves the engine
// on the proxy route.
type EngineEntry struct {
	ID            string   `yaml:"id"`
	Name          string   `yaml:"name"`
	Provider      string   `yaml:"provider"`
	Tokenizer     string   `yaml:"tokenizer"`
	ContextWindow int      `yaml:"context_window"`
	Versions      []string `yaml:"versions"`
	Version       string   `yaml:"version"`
	CredentialEnv string   `yaml:"credential_env"`
	Endpoint      string   `yaml:"endpoint"`
	// MaxOutput pins the output cap; zero leaves planning automatic.
	MaxOutput int `yaml:"max_output"`
}

// Config is the root of the YAML file.
type Config struct {
	ProxyBase         string         `yaml:"proxy_base"`
	ProviderMaxOutput map[string]int `yaml:"provider_max_output"`
	Pricing           []PriceEntry   `yaml:"pricing"`
	IdleTimeout       Duration       `yaml:"idle_timeout"`
	UpdateInterval    Duration       `yaml:"update_interval"`
	Engines           []EngineEntry  `yaml:"engines"`
}

// conventional credential variables per provider family.
var defaultCredentialEnv = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"gemini":    "GEMINI_API_KEY",
	"ollama":    "OLLAMA_API_KEY",
}

// LoadEnv populates the process environment from .env files. Missing files
// are not an error; existing variables are never overwritten.
func LoadEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		_ = godotenv.Load(path)
	}
}

// Load reads and validates the YAML configuration at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(raw)
}

// Parse decodes raw YAML bytes into a validated Config.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	seen := make(map[string]bool, len(cfg.Engines))
	for i, engine := range cfg.Engines {
		if engine.ID == "" {
			return nil, fmt.Errorf("engine %d: missing id", i)
		}
		if seen[engine.ID] {
			return nil, fmt.Errorf("engine %q: duplicate id", engine.ID)
		}
		seen[engine.ID] = true
		if engine.Provider == "" {
			return nil, fmt.Errorf("engine %q: missing provider", engine.ID)
		}
		if engine.ContextWindow <= 0 {
			return nil, fmt.Errorf("engine %q: context_window must be positive", engine.ID)
		}
	}
	return &cfg, nil
}

// PricingTable converts the admin pricing rows into a resolver table.
func (c *Config) PricingTable() map[pricing.Key]pricing.Entry {
	if len(c.Pricing) == 0 {
		return nil
	}
	table := make(map[pricing.Key]pricing.Entry, len(c.Pricing))
	for _, row := range c.Pricing {
		table[pricing.Key{Provider: row.Provider, Version: row.Version}] = pricing.Entry{
			InputCostPerMillion:  row.InputCostPerMillion,
			OutputCostPerMillion: row.OutputCostPerMillion,
		}
	}
	return table
}

// BuildEngines materializes the roster, resolving credentials from the
// environment.
func (c *Config) BuildEngines() []ai.Engine {
	engines := make([]ai.Engine, 0, len(c.Engines))
	for _, entry := range c.Engines {
		engines = append(engines, entry.Build())
	}
	return engines
}

// Build converts one roster entry into an Engine.
func (e EngineEntry) Build() ai.Engine {
	credentialEnv := e.CredentialEnv
	if credentialEnv == "" {
		credentialEnv = defaultCredentialEnv[e.Provider]
	}

	output := ai.AutoOutput()
	if e.MaxOutput > 0 {
		output = ai.FixedOutput(e.MaxOutput)
	}

	return ai.Engine{
		ID:            e.ID,
		Name:          e.Name,
		Provider:      e.Provider,
		Tokenizer:     tokens.Family(e.Tokenizer),
		ContextWindow: e.ContextWindow,
		Versions:      e.Versions,
		Version:       e.Version,
		Credential:    os.Getenv(credentialEnv),
		Endpoint:      e.Endpoint,
		Output:        output,
	}
}
