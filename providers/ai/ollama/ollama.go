// Package ollama implements the stream adapter for Ollama's chat API, whose
// wire format is raw newline-delimited JSON rather than SSE.
package ollama

import (
	"net/http"

	"github.com/leofalp/promptfan/providers/ai"
)

const (
	defaultBaseURL = "http://localhost:11434"
	chatEndpoint   = "/api/chat"

	providerTag = "ollama"
)

var _ ai.StreamProvider = (*Adapter)(nil)

// Adapter implements ai.StreamProvider for Ollama. Each response line is one
// standalone JSON frame; the terminal frame sets done=true and carries the
// final token counts and done_reason.
type Adapter struct {
	baseURL   string
	proxyBase string
	client    *http.Client
}

// New creates an Adapter pointing at the default local daemon address.
// Engines usually set an Endpoint override for remote daemons.
func New() *Adapter {
	return &Adapter{
		baseURL: defaultBaseURL,
		client:  &http.Client{},
	}
}

// WithBaseURL overrides the default daemon address.
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

// target follows the same dispatch rule as every adapter: a credential-less
// engine goes through the proxy path. Ollama itself ignores the bearer token
// on direct calls, but the credential still selects the direct route.
func (a *Adapter) target(engine ai.Engine) (url string, apiKey string) {
	if engine.Credential == "" {
		return a.proxyBase + "/api/" + providerTag + chatEndpoint, ""
	}
	base := a.baseURL
	if engine.Endpoint != "" {
		base = engine.Endpoint
	}
	return base + chatEndpoint, engine.Credential
}

// --- wire types ---

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	NumPredict int `json:"num_predict,omitempty"`
}

// frame is one NDJSON line of the streamed response.
type frame struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

func buildRequest(engine ai.Engine, prompt string, outputCap int) chatRequest {
	return chatRequest{
		Model:    engine.Version,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
		Stream:   true,
		Options:  chatOptions{NumPredict: outputCap},
	}
}
