package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surveykong/surveykong/internal/llm"
)

func TestOpenAIClientComplete(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": `{"title":"ok"}`}, "finish_reason": "stop"},
			},
			"usage": map[string]any{"prompt_tokens": 42, "completion_tokens": 7},
		})
	}))
	defer srv.Close()

	c := llm.NewOpenAIClient("test-key", srv.URL, "gpt-4.1-nano")
	resp, err := c.Complete(context.Background(), llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "sys"},
			{Role: llm.RoleUser, Content: "hello"},
		},
		JSONResponse: true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"title":"ok"}`, resp.Content)
	assert.Equal(t, 42, resp.Usage.PromptTokens)
	assert.Equal(t, 7, resp.Usage.CompletionTokens)
	assert.Equal(t, 49, resp.Usage.Total())

	// JSON mode must be requested on the wire.
	rf, ok := gotBody["response_format"].(map[string]any)
	require.True(t, ok, "expected response_format in request body")
	assert.Equal(t, "json_object", rf["type"])
	assert.Equal(t, "gpt-4.1-nano", gotBody["model"])
}

func TestOpenAIClientHTTPErrorIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded","type":"server_error"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := llm.NewOpenAIClient("k", srv.URL, "gpt-4.1-nano")
	_, err := c.Complete(context.Background(), llm.Request{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.Error(t, err)

	var te *llm.TransportError
	require.True(t, errors.As(err, &te), "expected *TransportError, got %T", err)
	assert.Equal(t, "openai", te.Provider)
	assert.Contains(t, te.Error(), "503")
}

func TestOpenAIClientAPIErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "invalid key", "type": "invalid_request_error"},
		})
	}))
	defer srv.Close()

	c := llm.NewOpenAIClient("bad", srv.URL, "gpt-4.1-nano")
	_, err := c.Complete(context.Background(), llm.Request{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	var te *llm.TransportError
	require.ErrorAs(t, err, &te)
	assert.Contains(t, te.Error(), "invalid key")
}

func TestFakeScriptedResponses(t *testing.T) {
	f := &llm.Fake{Responses: []llm.FakeResponse{
		{Err: &llm.TransportError{Provider: "fake", Err: errors.New("boom")}},
		{Content: "second"},
	}}

	_, err := f.Complete(context.Background(), llm.Request{})
	require.Error(t, err)

	resp, err := f.Complete(context.Background(), llm.Request{})
	require.NoError(t, err)
	assert.Equal(t, "second", resp.Content)

	// Script exhausted: last entry repeats.
	resp, err = f.Complete(context.Background(), llm.Request{})
	require.NoError(t, err)
	assert.Equal(t, "second", resp.Content)
	assert.Equal(t, 3, f.Calls())
}
