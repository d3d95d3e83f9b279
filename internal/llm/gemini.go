package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GeminiClient calls Google's Gemini API through the genai SDK.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a Gemini chat client. Model defaults to
// gemini-2.0-flash when empty.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("llm: gemini: API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: gemini: create client: %w", err)
	}

	return &GeminiClient{client: client, model: model}, nil
}

// Model returns the configured model identifier.
func (c *GeminiClient) Model() string { return c.model }

// Complete sends a chat completion request. System messages are mapped to
// Gemini's system instruction; the rest become user content in order.
func (c *GeminiClient) Complete(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	resp, err := c.complete(ctx, req)
	recordCallMetrics(ctx, "gemini", c.modelFor(req), float64(time.Since(start).Milliseconds()), resp.Usage, err)
	return resp, err
}

func (c *GeminiClient) complete(ctx context.Context, req Request) (Response, error) {
	cfg := &genai.GenerateContentConfig{}
	if req.JSONResponse {
		cfg.ResponseMIMEType = "application/json"
	}
	if req.Temperature != nil {
		cfg.Temperature = genai.Ptr(*req.Temperature)
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens) //nolint:gosec // bounded by config validation
	}

	var contents []*genai.Content
	var systemParts []string
	for _, m := range req.Messages {
		if m.Role == RoleSystem {
			systemParts = append(systemParts, m.Content)
			continue
		}
		contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
	}
	if len(systemParts) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(systemParts, "\n\n"), genai.RoleUser)
	}
	if len(contents) == 0 {
		return Response{}, fmt.Errorf("llm: gemini: no user messages in request")
	}

	result, err := c.client.Models.GenerateContent(ctx, c.modelFor(req), contents, cfg)
	if err != nil {
		return Response{}, &TransportError{Provider: "gemini", Err: err}
	}

	text := result.Text()
	if text == "" {
		return Response{}, &TransportError{Provider: "gemini", Err: fmt.Errorf("empty response")}
	}

	resp := Response{Content: text}
	if result.UsageMetadata != nil {
		resp.Usage = Usage{
			PromptTokens:     int(result.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(result.UsageMetadata.CandidatesTokenCount),
		}
	}
	return resp, nil
}

func (c *GeminiClient) modelFor(req Request) string {
	if req.Model != "" {
		return req.Model
	}
	return c.model
}
