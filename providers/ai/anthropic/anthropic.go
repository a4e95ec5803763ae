// Package anthropic implements the stream adapter for Anthropic's Messages
// API.
package anthropic

import (
	"net/http"

	"github.com/leofalp/promptfan/internal/utils"
	"github.com/leofalp/promptfan/providers/ai"
)

const (
	defaultBaseURL   = "https://api.anthropic.com/v1"
	messagesEndpoint = "/messages"

	// anthropicVersion pins the wire format independently of the URL.
	anthropicVersion = "2023-06-01"

	providerTag = "anthropic"
)

var _ ai.StreamProvider = (*Adapter)(nil)

// Adapter implements ai.StreamProvider for Anthropic's SSE event framing:
// typed events from message_start through message_stop, with the terminal
// condition signaled by the message_stop event rather than a sentinel line.
type Adapter struct {
	baseURL   string
	proxyBase string
	client    *http.Client
}

// New creates an Adapter with the public Anthropic endpoint as its default
// base.
func New() *Adapter {
	return &Adapter{
		baseURL: defaultBaseURL,
		client:  &http.Client{},
	}
}

// WithBaseURL overrides the default public endpoint.
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

// target resolves the request URL and headers. Anthropic authenticates via
// x-api-key, not a Bearer token, so direct calls pass the credential as a
// header option; proxy calls carry no credential at all.
func (a *Adapter) target(engine ai.Engine) (url string, headers []utils.HeaderOption) {
	headers = []utils.HeaderOption{{Key: "anthropic-version", Value: anthropicVersion}}

	if engine.Credential == "" {
		return a.proxyBase + "/api/" + providerTag + messagesEndpoint, headers
	}

	base := a.baseURL
	if engine.Endpoint != "" {
		base = engine.Endpoint
	}
	headers = append(headers, utils.HeaderOption{Key: "x-api-key", Value: engine.Credential})
	return base + messagesEndpoint, headers
}

// --- wire types ---

type messagesRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	Messages  []apiMessage `json:"messages"`
	Stream    bool         `json:"stream"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// streamEvent is the envelope shared by all Anthropic SSE event types; the
// Type discriminator decides which optional fields are populated.
type streamEvent struct {
	Type string `json:"type"`

	Message *struct {
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	} `json:"message"`

	Delta *struct {
		Type       string `json:"type"`
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta"`

	Usage *struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`

	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func buildRequest(engine ai.Engine, prompt string, outputCap int) messagesRequest {
	return messagesRequest{
		Model:     engine.Version,
		MaxTokens: outputCap,
		Messages:  []apiMessage{{Role: "user", Content: prompt}},
		Stream:    true,
	}
}
