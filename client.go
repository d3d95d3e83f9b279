package surveykong

import (
	"context"

	"github.com/surveykong/surveykong/internal/llm"
)

// Message roles follow the chat-completion convention.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is one entry in the ordered conversation sent to the provider.
type Message struct {
	Role    string
	Content string
}

// CompletionRequest is a provider-agnostic completion request. When
// JSONResponse is set, the provider is asked to emit a single JSON object.
type CompletionRequest struct {
	Model        string
	Messages     []Message
	JSONResponse bool
	Temperature  *float32
	MaxTokens    int
}

// Usage is the provider-reported token accounting for one call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// CompletionResponse is the provider's answer.
type CompletionResponse struct {
	Content string
	Usage   Usage
}

// CompletionClient lets embedders replace the built-in LLM providers with
// their own. Implementations must be safe for concurrent use.
type CompletionClient interface {
	// Complete sends the request and returns the provider's response.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// Model returns the default model identifier for this client.
	Model() string
}

// completionAdapter bridges a public CompletionClient into the internal
// client interface. Every error from the custom client counts as a transport
// failure for the agents' circuit breakers.
type completionAdapter struct {
	c CompletionClient
}

func (a completionAdapter) Model() string { return a.c.Model() }

func (a completionAdapter) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	msgs := make([]Message, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = Message{Role: m.Role, Content: m.Content}
	}

	resp, err := a.c.Complete(ctx, CompletionRequest{
		Model:        req.Model,
		Messages:     msgs,
		JSONResponse: req.JSONResponse,
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
	})
	if err != nil {
		return llm.Response{}, &llm.TransportError{Provider: "custom", Err: err}
	}

	return llm.Response{
		Content: resp.Content,
		Usage: llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}
