package run

import "sync"

// EngineState is one engine's position in its lifecycle. Transitions:
// Idle → Dispatched → Streaming → {Completed | Truncated | Recovering →
// (Streaming | Failed)} → Settled.
type EngineState string

const (
	StateIdle       EngineState = "idle"
	StateDispatched EngineState = "dispatched"
	StateStreaming  EngineState = "streaming"
	StateRecovering EngineState = "recovering"
	StateCompleted  EngineState = "completed"
	StateTruncated  EngineState = "truncated"
	StateFailed     EngineState = "failed"
	StateSettled    EngineState = "settled"
)

// StreamState holds one engine's live progress. Entries are created before
// dispatch and written exclusively by that engine's goroutine; the mutex only
// orders those writes against reader snapshots.
type StreamState struct {
	mu sync.Mutex

	engineID  string
	state     EngineState
	content   []byte
	streaming bool
	status    string
}

// StateSnapshot is a copy of one engine's live progress, safe to hand to
// renderers.
type StateSnapshot struct {
	EngineID  string
	State     EngineState
	Content   string
	Streaming bool
	// Status is the latest human-readable recovery progress line, empty
	// outside recovery.
	Status string
}

func newStreamState(engineID string) *StreamState {
	return &StreamState{engineID: engineID, state: StateIdle}
}

// Snapshot copies the current progress.
func (s *StreamState) Snapshot() StateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StateSnapshot{
		EngineID:  s.engineID,
		State:     s.state,
		Content:   string(s.content),
		Streaming: s.streaming,
		Status:    s.status,
	}
}

func (s *StreamState) setState(state EngineState) {
	s.mu.Lock()
	s.state = state
	s.streaming = state == StateStreaming
	if state != StateRecovering {
		s.status = ""
	}
	s.mu.Unlock()
}

func (s *StreamState) appendContent(delta string) {
	s.mu.Lock()
	s.content = append(s.content, delta...)
	s.state = StateStreaming
	s.streaming = true
	s.mu.Unlock()
}

func (s *StreamState) setStatus(status string) {
	s.mu.Lock()
	s.state = StateRecovering
	s.streaming = false
	s.status = status
	s.mu.Unlock()
}

func (s *StreamState) contentString() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.content)
}
