package llm

import (
	"context"
	"sync"
)

// Fake is a scripted in-memory Client for tests and the "fake" provider
// mode. Responses are returned in order; the last one repeats once the
// script is exhausted. An Err entry makes that call fail instead.
type Fake struct {
	mu        sync.Mutex
	Responses []FakeResponse
	Requests  []Request // every request received, in order
	calls     int
}

// FakeResponse is one scripted reply.
type FakeResponse struct {
	Content string
	Usage   Usage
	Err     error
}

// NewFake creates a Fake that always answers with content.
func NewFake(content string) *Fake {
	return &Fake{Responses: []FakeResponse{{Content: content}}}
}

// Model identifies the fake provider.
func (f *Fake) Model() string { return "fake" }

// Complete returns the next scripted response.
func (f *Fake) Complete(_ context.Context, req Request) (Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Requests = append(f.Requests, req)
	idx := f.calls
	f.calls++
	if idx >= len(f.Responses) {
		idx = len(f.Responses) - 1
	}
	if idx < 0 {
		return Response{}, &TransportError{Provider: "fake", Err: errNoScript}
	}

	r := f.Responses[idx]
	if r.Err != nil {
		return Response{}, r.Err
	}
	return Response{Content: r.Content, Usage: r.Usage}, nil
}

// Calls returns how many times Complete was invoked.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var errNoScript = errNoScriptType{}

type errNoScriptType struct{}

func (errNoScriptType) Error() string { return "no scripted responses" }
