package recovery

import (
	"errors"
	"fmt"

	"github.com/leofalp/promptfan/providers/ai"
)

// Explanation is the structured, user-facing reading of one failure. Raw
// preserves the technical message for a details view.
type Explanation struct {
	Kind   Kind
	What   string
	Why    string
	Action string
	Raw    string
}

type explainKey struct {
	provider string
	kind     Kind
}

// Provider-specific wordings. Checked before the generic per-kind bucket.
var providerExplanations = map[explainKey]Explanation{
	{provider: "anthropic", kind: KindSlowDown}: {
		What:   "Anthropic is overloaded",
		Why:    "The API returned an overloaded_error; capacity is temporarily exhausted on their side.",
		Action: "Wait a moment and retry. Off-peak hours are usually reliable.",
	},
	{provider: "openai", kind: KindRateLimit}: {
		What:   "OpenAI rate limit reached",
		Why:    "Your key exceeded its requests-per-minute or tokens-per-minute quota.",
		Action: "Retry after the indicated delay, or raise the limit on your OpenAI account.",
	},
	{provider: "gemini", kind: KindRateLimit}: {
		What:   "Gemini quota exceeded",
		Why:    "The project's per-minute quota for this model is used up.",
		Action: "Retry shortly or request a quota increase in Google AI Studio.",
	},
	{provider: "ollama", kind: KindConnectionError}: {
		What:   "Cannot reach the local Ollama server",
		Why:    "No process is answering on the configured endpoint.",
		Action: "Start Ollama (`ollama serve`) or fix the endpoint override.",
	},
}

// Generic per-kind wordings, the fallback bucket.
var kindExplanations = map[Kind]Explanation{
	KindRateLimit: {
		What:   "Rate limit reached",
		Why:    "The provider rejected the request because too many were sent in a short window.",
		Action: "The call is retried automatically with backoff; reduce parallel engines if it persists.",
	},
	KindSlowDown: {
		What:   "Provider asked to slow down",
		Why:    "The provider is shedding load.",
		Action: "The call is retried after a short pause.",
	},
	KindServerError: {
		What:   "Provider server error",
		Why:    "The provider failed internally (5xx) while handling the request.",
		Action: "The call is retried automatically; if it keeps failing, check the provider's status page.",
	},
	KindConnectionError: {
		What:   "Connection problem",
		Why:    "The network path to the provider dropped or timed out.",
		Action: "Check your connection; one immediate retry is attempted automatically.",
	},
	KindValidation: {
		What:   "Request rejected as invalid",
		Why:    "The provider could not accept the request shape (model name, parameters, or prompt).",
		Action: "Check the selected model version and output settings for this engine.",
	},
	KindAuth: {
		What:   "Authentication failed",
		Why:    "The credential is missing, expired, or wrong for this provider.",
		Action: "Set a valid API key for this engine, or leave it empty to route via the proxy.",
	},
	KindPermission: {
		What:   "Access denied",
		Why:    "The credential is valid but not allowed to use this model.",
		Action: "Request access to the model or pick another version.",
	},
	KindNotFound: {
		What:   "Model or endpoint not found",
		Why:    "The provider does not recognize the requested model version or path.",
		Action: "Pick an available model version for this engine.",
	},
	KindPayloadTooLarge: {
		What:   "Prompt too large",
		Why:    "The request body exceeded the provider's size limit despite pre-truncation.",
		Action: "Shorten the prompt or remove attached file text.",
	},
	KindFatal: {
		What:   "Request failed",
		Why:    "The provider returned an error that does not match a known recoverable category.",
		Action: "See the technical details below.",
	},
}

// Explain produces the structured reading of err, preferring a
// provider-specific wording and falling back to the generic per-kind bucket.
func Explain(err error) Explanation {
	kind := Classify(err)

	provider := ""
	var providerErr *ai.ProviderError
	if errors.As(err, &providerErr) {
		provider = providerErr.Provider
	}

	explanation, ok := providerExplanations[explainKey{provider: provider, kind: kind}]
	if !ok {
		explanation = kindExplanations[kind]
	}
	explanation.Kind = kind
	if err != nil {
		explanation.Raw = err.Error()
	}
	if explanation.What == "" {
		explanation.What = fmt.Sprintf("Request failed (%s)", kind)
	}
	return explanation
}
