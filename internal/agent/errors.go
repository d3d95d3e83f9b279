package agent

import (
	"errors"
	"fmt"
)

// ErrCircuitOpen is returned by the gateway when the circuit breaker refuses
// a call. It fails fast: the inner retry layer does not retry it, and stage
// agents surface it with distinct user-facing wording.
var ErrCircuitOpen = errors.New("agent: circuit breaker open")

// ErrToolNotFound is returned when no registered tool matches the name.
var ErrToolNotFound = errors.New("agent: tool not found")

// SchemaError means the LLM answered but its output did not parse or
// validate against the declared schema. Retryable at the outer stage layer;
// it does NOT trip the circuit breaker (the dependency responded, just not
// usefully).
type SchemaError struct {
	Err error
	Raw string // truncated raw response, for diagnostics
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("agent: schema validation: %v", e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// ToolError wraps a failure from a registered tool, naming the tool.
// Tool failures are never retried automatically.
type ToolError struct {
	Tool string
	Err  error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("agent: tool %q: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }
