// Package gemini implements the stream adapter for the Gemini generative
// language API.
package gemini

import (
	"fmt"
	"net/http"

	"github.com/leofalp/promptfan/internal/utils"
	"github.com/leofalp/promptfan/providers/ai"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	providerTag = "gemini"
)

var _ ai.StreamProvider = (*Adapter)(nil)

// Adapter implements ai.StreamProvider for Gemini's streamGenerateContent
// endpoint with alt=sse. Unlike OpenAI, each SSE event carries a full
// generateContentResponse snapshot rather than a delta; the stream layer
// tracks cumulative text length and emits only the new suffix.
type Adapter struct {
	baseURL   string
	proxyBase string
	client    *http.Client
}

// New creates an Adapter with the public Gemini endpoint as its default base.
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

// target resolves the request URL and headers. Gemini authenticates with the
// x-goog-api-key header; the model version is part of the path.
func (a *Adapter) target(engine ai.Engine) (url string, headers []utils.HeaderOption) {
	path := fmt.Sprintf("/models/%s:streamGenerateContent?alt=sse", engine.Version)

	if engine.Credential == "" {
		return a.proxyBase + "/api/" + providerTag + path, nil
	}

	base := a.baseURL
	if engine.Endpoint != "" {
		base = engine.Endpoint
	}
	headers = []utils.HeaderOption{{Key: "x-goog-api-key", Value: engine.Credential}}
	return base + path, headers
}

// --- wire types ---

type generateRequest struct {
	Contents         []apiContent     `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type apiContent struct {
	Role  string    `json:"role"`
	Parts []apiPart `json:"parts"`
}

type apiPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
}

// chunk is one streamed generateContentResponse snapshot.
type chunk struct {
	Candidates []struct {
		Content struct {
			Parts []apiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

func buildRequest(prompt string, outputCap int) generateRequest {
	return generateRequest{
		Contents: []apiContent{{
			Role:  "user",
			Parts: []apiPart{{Text: prompt}},
		}},
		GenerationConfig: generationConfig{MaxOutputTokens: outputCap},
	}
}
