// Package llm abstracts the chat-completion provider behind a small Client
// interface so the agent layer never touches provider transport details.
//
// Two real providers are implemented (OpenAI over raw HTTP, Gemini via the
// google.golang.org/genai SDK) plus a scripted Fake for tests and offline
// development. All transport-level failures are wrapped as *TransportError;
// the agent layer uses that distinction to decide what trips its circuit
// breaker.
package llm

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

// Message roles follow the chat-completion convention.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is one entry in the ordered conversation sent to the provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a provider-agnostic completion request. When JSONResponse is
// set, the provider is asked to emit a single JSON object (the caller parses
// and validates it against its schema).
type Request struct {
	Model        string
	Messages     []Message
	JSONResponse bool
	Temperature  *float32
	MaxTokens    int
}

// Usage is the provider-reported token accounting for one call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Total is prompt plus completion tokens.
func (u Usage) Total() int { return u.PromptTokens + u.CompletionTokens }

// Response is the provider's answer: raw text plus token usage when the
// provider reports it.
type Response struct {
	Content string
	Usage   Usage
}

// Client sends chat-completion requests to one provider.
// Implementations must be safe for concurrent use.
type Client interface {
	// Complete sends the request and returns the provider's response.
	// Transport failures are returned as *TransportError.
	Complete(ctx context.Context, req Request) (Response, error)

	// Model returns the default model identifier for this client.
	Model() string
}

// TransportError wraps a network or provider-side failure. These are
// retryable and count against the caller's circuit breaker.
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("llm: %s: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

var llmMeter = otel.GetMeterProvider().Meter("surveykong/llm")

// recordCallMetrics records per-call OTEL metrics (best-effort, instruments
// lazily created).
func recordCallMetrics(ctx context.Context, provider, model string, durationMS float64, usage Usage, callErr error) {
	attrs := []attribute.KeyValue{
		attribute.String("llm.provider", provider),
		attribute.String("llm.model", model),
		attribute.Bool("llm.error", callErr != nil),
	}
	if counter, err := llmMeter.Int64Counter("llm.client.request_count"); err == nil {
		counter.Add(ctx, 1, otelmetric.WithAttributes(attrs...))
	}
	if hist, err := llmMeter.Float64Histogram("llm.client.duration",
		otelmetric.WithUnit("ms")); err == nil {
		hist.Record(ctx, durationMS, otelmetric.WithAttributes(attrs...))
	}
	if usage.Total() > 0 {
		if counter, err := llmMeter.Int64Counter("llm.client.tokens"); err == nil {
			counter.Add(ctx, int64(usage.Total()), otelmetric.WithAttributes(attrs...))
		}
	}
}
