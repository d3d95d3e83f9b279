package agent

import (
	"sync"
	"time"
)

// ErrorRecord is one failure recorded during a run.
type ErrorRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
}

// Metrics accumulates counters for a single Run invocation. A fresh Metrics
// is created at run start and finalized at run completion or failure; its
// summary ends up in the produced artifact's metadata.
type Metrics struct {
	mu         sync.Mutex
	startTime  time.Time
	endTime    time.Time
	apiCalls   int
	toolCalls  int
	tokensUsed int
	errors     []ErrorRecord
}

// NewMetrics starts a run's metrics at the current time.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now().UTC()}
}

// RecordAPICall counts one LLM call attempt.
func (m *Metrics) RecordAPICall() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apiCalls++
}

// RecordToolCall counts one tool invocation.
func (m *Metrics) RecordToolCall() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toolCalls++
}

// AddTokens accumulates provider-reported token usage.
func (m *Metrics) AddTokens(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokensUsed += n
}

// RecordError appends a failure record.
func (m *Metrics) RecordError(kind, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, ErrorRecord{
		Timestamp: time.Now().UTC(),
		Kind:      kind,
		Message:   message,
	})
}

// Finish stamps the end time. Safe to call more than once; the first call
// wins.
func (m *Metrics) Finish() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.endTime.IsZero() {
		m.endTime = time.Now().UTC()
	}
}

// APICalls returns the LLM call count so far.
func (m *Metrics) APICalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.apiCalls
}

// TokensUsed returns the accumulated token count.
func (m *Metrics) TokensUsed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokensUsed
}

// ErrorCount returns how many failures were recorded.
func (m *Metrics) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

// Errors returns a copy of the recorded failures.
func (m *Metrics) Errors() []ErrorRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ErrorRecord, len(m.errors))
	copy(out, m.errors)
	return out
}

// Summary renders the metrics for artifact metadata.
func (m *Metrics) Summary() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	end := m.endTime
	if end.IsZero() {
		end = time.Now().UTC()
	}
	return map[string]any{
		"duration_seconds": end.Sub(m.startTime).Seconds(),
		"api_calls":        m.apiCalls,
		"tool_calls":       m.toolCalls,
		"tokens_used":      m.tokensUsed,
		"error_count":      len(m.errors),
	}
}
