// Package agent implements the orchestration core: a base agent that wraps
// LLM calls with retry, rate-limit pacing, circuit breaking and
// structured-output parsing, plus the concrete stage agents (spec, survey,
// cohort, outbound, analysis) that the workflow orchestrator chains.
//
// Failure handling is layered. The inner retry (linear backoff) protects the
// raw transport call and trips the per-agent circuit breaker on transport
// failures. The outer retry (exponential backoff) lives in each stage agent
// around the structured-output call and additionally covers schema
// validation failures; when it is exhausted, the stage agent degrades to a
// fallback artifact instead of propagating the error.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/surveykong/surveykong/internal/llm"
	"github.com/surveykong/surveykong/internal/model"
)

// Retry defaults, matching the stage agents' historical tuning.
const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = time.Second
)

// Tool is a named, described capability an agent may invoke during
// execution.
type Tool struct {
	Name        string
	Description string
	Fn          func(ctx context.Context, args map[string]any) (any, error)
}

// Context is per-agent conversational state: the ordered message history, a
// free-form memory map, and the artifacts produced so far. It persists
// across calls within a session; metrics do not.
type Context struct {
	mu        sync.Mutex
	messages  []llm.Message
	memory    map[string]any
	artifacts []any
}

// Remember stores a value in the agent's memory map.
func (c *Context) Remember(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.memory == nil {
		c.memory = make(map[string]any)
	}
	c.memory[key] = value
}

// Recall reads a value from the agent's memory map.
func (c *Context) Recall(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.memory[key]
	return v, ok
}

// AppendMessage records a message in the conversation history.
func (c *Context) AppendMessage(msg llm.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
}

// Messages returns a copy of the conversation history.
func (c *Context) Messages() []llm.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]llm.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Context) addArtifact(a any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.artifacts = append(c.artifacts, a)
}

// Artifacts returns the artifacts accumulated this session.
func (c *Context) Artifacts() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]any, len(c.artifacts))
	copy(out, c.artifacts)
	return out
}

// Config holds construction parameters for a Base agent.
// Zero values fall back to package defaults.
type Config struct {
	Name   string
	Client llm.Client
	Logger *slog.Logger

	MaxRetries int           // inner transport retry attempts
	RetryDelay time.Duration // base delay for both retry layers
	RateLimit  time.Duration // minimum interval between LLM calls; 0 disables

	BreakerThreshold    int
	BreakerResetTimeout time.Duration

	Temperature *float32
}

// Base is the abstract stage agent. Stage agents embed it and use its
// gateway (Complete / StructuredOutput) and run template (Run). The breaker
// and pacer are intentionally shared across concurrent requests hitting the
// same agent instance; both are mutex-guarded.
type Base struct {
	name        string
	client      llm.Client
	logger      *slog.Logger
	breaker     *CircuitBreaker
	inner       Policy
	retryDelay  time.Duration
	temperature *float32

	paceMu      sync.Mutex
	minInterval time.Duration
	lastCall    time.Time

	toolsMu sync.RWMutex
	tools   map[string]Tool

	// Optional lifecycle hooks around Run.
	PreRun  func(ctx context.Context) error
	PostRun func(ctx context.Context, result any) error

	// Conversation is the agent's session state.
	Conversation Context
}

// New creates a Base agent from cfg.
func New(cfg Config) *Base {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}

	return &Base{
		name:    cfg.Name,
		client:  cfg.Client,
		logger:  cfg.Logger.With("agent", cfg.Name),
		breaker: NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerResetTimeout),
		inner: Policy{
			MaxAttempts: cfg.MaxRetries,
			Backoff:     LinearBackoff(cfg.RetryDelay),
			// Circuit-open is a fail-fast condition, not a transient fault.
			RetryIf: func(err error) bool { return !errors.Is(err, ErrCircuitOpen) },
		},
		retryDelay:  cfg.RetryDelay,
		temperature: cfg.Temperature,
		minInterval: cfg.RateLimit,
		tools:       make(map[string]Tool),
	}
}

// Name returns the agent's name.
func (a *Base) Name() string { return a.name }

// Breaker exposes the agent's circuit breaker (shared, dependency-scoped).
func (a *Base) Breaker() *CircuitBreaker { return a.breaker }

// outerPolicy is the stage-level retry wrapped around structured-output
// calls: same attempt budget, exponential backoff.
func (a *Base) outerPolicy() Policy {
	return Policy{
		MaxAttempts: a.inner.MaxAttempts,
		Backoff:     ExponentialBackoff(a.retryDelay),
		RetryIf:     func(err error) bool { return !errors.Is(err, ErrCircuitOpen) },
	}
}

// AddTool registers a tool. Later registrations with the same name replace
// earlier ones.
func (a *Base) AddTool(t Tool) {
	a.toolsMu.Lock()
	defer a.toolsMu.Unlock()
	a.tools[t.Name] = t
}

// ExecuteTool invokes a registered tool by name, counting the call in m.
// Failures are wrapped in *ToolError naming the tool.
func (a *Base) ExecuteTool(ctx context.Context, m *Metrics, name string, args map[string]any) (any, error) {
	a.toolsMu.RLock()
	t, ok := a.tools[name]
	a.toolsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	m.RecordToolCall()
	out, err := t.Fn(ctx, args)
	if err != nil {
		m.RecordError("tool", err.Error())
		return nil, &ToolError{Tool: name, Err: err}
	}
	return out, nil
}

// Complete is the LLM gateway: circuit-breaker gate, rate-limit pacing,
// inner retry with linear backoff, and metrics accounting. Transport
// failures record a breaker failure; a refused call fails fast with
// ErrCircuitOpen.
func (a *Base) Complete(ctx context.Context, m *Metrics, msgs []llm.Message, jsonResponse bool) (llm.Response, error) {
	var resp llm.Response
	err := a.inner.Do(ctx, func(ctx context.Context) error {
		if !a.breaker.CanExecute() {
			m.RecordError("circuit_open", ErrCircuitOpen.Error())
			return ErrCircuitOpen
		}
		if err := a.pace(ctx); err != nil {
			return err
		}

		m.RecordAPICall()
		r, err := a.client.Complete(ctx, llm.Request{
			Messages:     msgs,
			JSONResponse: jsonResponse,
			Temperature:  a.temperature,
		})
		if err != nil {
			m.RecordError("api_call", err.Error())
			var te *llm.TransportError
			if errors.As(err, &te) {
				a.breaker.RecordFailure()
			}
			a.logger.Warn("llm call failed", "error", err)
			return err
		}

		m.AddTokens(r.Usage.Total())
		resp = r
		return nil
	})
	return resp, err
}

// pace enforces the minimum interval between consecutive LLM calls.
// Concurrent callers reserve sequential slots, so calls serialize behind the
// shared rate-limit clock by design.
func (a *Base) pace(ctx context.Context) error {
	if a.minInterval <= 0 {
		return nil
	}

	a.paceMu.Lock()
	now := time.Now()
	wait := a.minInterval - now.Sub(a.lastCall)
	if wait < 0 {
		wait = 0
	}
	a.lastCall = now.Add(wait)
	a.paceMu.Unlock()

	if wait == 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// StructuredOutput sends msgs through a's gateway in JSON mode and parses
// the response into T. Parse or validation failures return *SchemaError;
// these do not count against the circuit breaker. If T implements
// Validate() error, it is run after decoding.
func StructuredOutput[T any](ctx context.Context, a *Base, m *Metrics, msgs []llm.Message) (*T, error) {
	resp, err := a.Complete(ctx, m, msgs, true)
	if err != nil {
		return nil, err
	}

	raw := extractJSON(resp.Content)
	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		m.RecordError("schema", err.Error())
		return nil, &SchemaError{Err: err, Raw: truncate(resp.Content, 512)}
	}
	if v, ok := any(&out).(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			m.RecordError("schema", err.Error())
			return nil, &SchemaError{Err: err, Raw: truncate(resp.Content, 512)}
		}
	}
	return &out, nil
}

// Run is the template method every stage operation goes through: fresh
// metrics, pre-hook, execute, post-hook, artifact assembly, metrics summary
// attached to the artifact's metadata. Failures are recorded into metrics
// and returned; Run never swallows them.
func Run[T any](ctx context.Context, a *Base, artifactType string, exec func(ctx context.Context, m *Metrics) (*T, error)) (model.Artifact[T], error) {
	m := NewMetrics()

	fail := func(kind string, err error) (model.Artifact[T], error) {
		m.RecordError(kind, err.Error())
		m.Finish()
		return model.Artifact[T]{}, err
	}

	if a.PreRun != nil {
		if err := a.PreRun(ctx); err != nil {
			return fail("pre_hook", err)
		}
	}

	data, err := exec(ctx, m)
	if err != nil {
		return fail("execute", err)
	}

	if a.PostRun != nil {
		if err := a.PostRun(ctx, data); err != nil {
			return fail("post_hook", err)
		}
	}

	art := model.NewArtifact(data, artifactType)
	m.Finish()
	art.Metadata[model.MetaKeyMetrics] = m.Summary()
	a.Conversation.addArtifact(art)
	return art, nil
}

// extractJSON strips markdown code fences some models wrap around JSON
// output.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
