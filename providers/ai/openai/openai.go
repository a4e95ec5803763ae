// Package openai implements the stream adapter for OpenAI's chat completions
// API and for OpenAI-compatible endpoints.
package openai

import (
	"net/http"

	"github.com/leofalp/promptfan/providers/ai"
)

const (
	defaultBaseURL          = "https://api.openai.com/v1"
	chatCompletionsEndpoint = "/chat/completions"

	// providerTag keys this adapter in the registry and in proxy paths.
	providerTag = "openai"
)

var _ ai.StreamProvider = (*Adapter)(nil)

// Adapter implements ai.StreamProvider for OpenAI's SSE wire format:
// "data:"-framed chat.completion.chunk events terminated by a [DONE]
// sentinel line.
type Adapter struct {
	baseURL   string
	proxyBase string
	client    *http.Client
}

// New creates an Adapter with the public OpenAI endpoint as its default base.
func New() *Adapter {
	return &Adapter{
		baseURL: defaultBaseURL,
		client:  &http.Client{},
	}
}

// WithBaseURL overrides the default public endpoint, for compatible backends
// or tests.
func (a *Adapter) WithBaseURL(baseURL string) *Adapter {
	a.baseURL = baseURL
	return a
}

// WithProxyBase sets the same-origin base used for credential-less engines.
func (a *Adapter) WithProxyBase(proxyBase string) *Adapter {
	a.proxyBase = proxyBase
	return a
}

// WithHTTPClient replaces the default http.Client.
func (a *Adapter) WithHTTPClient(client *http.Client) *Adapter {
	a.client = client
	return a
}

// target resolves where the request goes. Engines without a credential are
// routed through the proxy path keyed by provider name, which holds the real
// secret server-side; engines with a credential go direct, honoring any
// endpoint override.
func (a *Adapter) target(engine ai.Engine) (url string, apiKey string) {
	if engine.Credential == "" {
		return a.proxyBase + "/api/" + providerTag + chatCompletionsEndpoint, ""
	}
	base := a.baseURL
	if engine.Endpoint != "" {
		base = engine.Endpoint
	}
	return base + chatCompletionsEndpoint, engine.Credential
}

// --- wire types ---

type chatRequest struct {
	Model         string        `json:"model"`
	Messages      []chatMessage `json:"messages"`
	MaxTokens     int           `json:"max_tokens,omitempty"`
	Stream        bool          `json:"stream"`
	StreamOptions *streamOpts   `json:"stream_options,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type streamOpts struct {
	IncludeUsage bool `json:"include_usage"`
}

type chunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func buildRequest(engine ai.Engine, prompt string, outputCap int) chatRequest {
	return chatRequest{
		Model:         engine.Version,
		Messages:      []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:     outputCap,
		Stream:        true,
		StreamOptions: &streamOpts{IncludeUsage: true},
	}
}
