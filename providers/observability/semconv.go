package observability

// Shared attribute keys so spans and logs stay queryable across packages.
const (
	// HTTP attributes
	AttrHTTPMethod          = "http.method"
	AttrHTTPURL             = "http.url"
	AttrHTTPStatusCode      = "http.status_code"
	AttrHTTPRequestBodySize = "http.request.body_size"

	// LLM call attributes
	AttrLLMProvider = "llm.provider"
	AttrLLMModel    = "llm.model"

	// Engine run attributes
	AttrEngineID      = "engine.id"
	AttrEngineState   = "engine.state"
	AttrRunAttempt    = "run.attempt"
	AttrTokensIn      = "tokens.in"
	AttrTokensOut     = "tokens.out"
	AttrPlannedOutCap = "tokens.planned_out_cap"
	AttrCostUSD       = "cost.usd"
	AttrFailureKind   = "failure.kind"
	AttrStatus        = "status"
	AttrStatusMessage = "status.message"
	AttrDeltaCount    = "stream.delta_count"
	AttrContentLength = "stream.content_length"
	AttrTruncated     = "stream.truncated"

	// Span events
	EventLLMRequestStart = "llm.request.start"
	EventLLMFirstDelta   = "llm.first_delta"
	EventLLMStreamEnd    = "llm.stream.end"
	EventRecoveryRetry   = "recovery.retry"
	EventEngineSettled   = "engine.settled"
)
