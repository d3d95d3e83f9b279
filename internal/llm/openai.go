package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultOpenAIBaseURL is the public OpenAI endpoint. Override for proxies
// and OpenAI-compatible gateways.
const DefaultOpenAIBaseURL = "https://api.openai.com"

// OpenAIClient calls the OpenAI chat completions API.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOpenAIClient creates a chat-completion client. baseURL may be empty
// (defaults to api.openai.com); model must be set.
func NewOpenAIClient(apiKey, baseURL, model string) *OpenAIClient {
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	return &OpenAIClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// Model returns the configured model identifier.
func (c *OpenAIClient) Model() string { return c.model }

type openAIChatRequest struct {
	Model          string                `json:"model"`
	Messages       []Message             `json:"messages"`
	Temperature    *float32              `json:"temperature,omitempty"`
	MaxTokens      int                   `json:"max_completion_tokens,omitempty"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete sends a chat completion request.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	resp, err := c.complete(ctx, req)
	recordCallMetrics(ctx, "openai", c.modelFor(req), float64(time.Since(start).Milliseconds()), resp.Usage, err)
	return resp, err
}

func (c *OpenAIClient) complete(ctx context.Context, req Request) (Response, error) {
	body := openAIChatRequest{
		Model:       c.modelFor(req),
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSONResponse {
		body.ResponseFormat = &openAIResponseFormat{Type: "json_object"}
	}

	reqBody, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("llm: openai: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return Response{}, fmt.Errorf("llm: openai: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, &TransportError{Provider: "openai", Err: err}
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		return Response{}, &TransportError{
			Provider: "openai",
			Err:      fmt.Errorf("status %d: %s", httpResp.StatusCode, string(respBody)),
		}
	}

	var result openAIChatResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&result); err != nil {
		return Response{}, &TransportError{Provider: "openai", Err: fmt.Errorf("decode response: %w", err)}
	}
	if result.Error != nil {
		return Response{}, &TransportError{
			Provider: "openai",
			Err:      fmt.Errorf("%s: %s", result.Error.Type, result.Error.Message),
		}
	}
	if len(result.Choices) == 0 {
		return Response{}, &TransportError{Provider: "openai", Err: fmt.Errorf("no choices returned")}
	}

	return Response{
		Content: result.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     result.Usage.PromptTokens,
			CompletionTokens: result.Usage.CompletionTokens,
		},
	}, nil
}

func (c *OpenAIClient) modelFor(req Request) string {
	if req.Model != "" {
		return req.Model
	}
	return c.model
}
