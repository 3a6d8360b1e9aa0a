package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"appforge/internal/faults"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnthropicTestClient(url string) *AnthropicClient {
	return NewAnthropicClientWithConfig(AnthropicConfig{
		APIKey:  "test-key",
		BaseURL: url,
		Model:   "claude-test",
		Timeout: 5 * time.Second,
	})
}

func TestAnthropicComplete(t *testing.T) {
	var captured anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-key", r.Header.Get("x-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"content": []map[string]string{{"type": "text", "text": "  hello world  "}},
		})
	}))
	defer srv.Close()

	c := newAnthropicTestClient(srv.URL)
	out, err := c.Complete(context.Background(), CompletionRequest{
		System: "sys", Prompt: "hi", MaxTokens: 128, Temperature: 0.2,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)
	assert.Equal(t, "claude-test", captured.Model)
	assert.Equal(t, 128, captured.MaxTokens)
}

func TestAnthropicCompleteWithImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)
		require.Len(t, req.Messages[0].Content, 2)
		assert.Equal(t, "image", req.Messages[0].Content[0].Type)
		assert.Equal(t, "image/png", req.Messages[0].Content[0].Source.MediaType)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"content": []map[string]string{{"type": "text", "text": "ok"}},
		})
	}))
	defer srv.Close()

	c := newAnthropicTestClient(srv.URL)
	_, err := c.Complete(context.Background(), CompletionRequest{
		Prompt: "describe", Image: []byte{0x89, 0x50},
	})
	require.NoError(t, err)
}

func TestAnthropicStatusClassification(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, faults.ErrProviderTransient},
		{http.StatusInternalServerError, faults.ErrProviderTransient},
		{http.StatusUnauthorized, faults.ErrProviderFatal},
		{http.StatusBadRequest, faults.ErrProviderFatal},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		c := newAnthropicTestClient(srv.URL)
		_, err := c.Complete(context.Background(), CompletionRequest{Prompt: "x"})
		assert.True(t, errors.Is(err, tc.want), "status %d: got %v", tc.status, err)
		srv.Close()
	}
}

func TestAnthropicUnavailableWithoutKey(t *testing.T) {
	c := NewAnthropicClient("")
	assert.False(t, c.Available())
	_, err := c.Complete(context.Background(), CompletionRequest{Prompt: "x"})
	assert.True(t, errors.Is(err, faults.ErrProviderUnavailable))
}

func TestOpenAIComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "result"}},
			},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClientWithConfig(OpenAIConfig{
		APIKey: "test-key", BaseURL: srv.URL, Model: "gpt-test", Timeout: 5 * time.Second,
	})
	out, err := c.Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "result", out)
}

func TestOpenAIRejectsImage(t *testing.T) {
	c := NewOpenAIClient("key")
	_, err := c.Complete(context.Background(), CompletionRequest{Prompt: "x", Image: []byte{1}})
	assert.True(t, errors.Is(err, faults.ErrProviderFatal))
}

func TestOpenAIMalformedResponseIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := NewOpenAIClientWithConfig(OpenAIConfig{
		APIKey: "k", BaseURL: srv.URL, Model: "m", Timeout: 5 * time.Second,
	})
	_, err := c.Complete(context.Background(), CompletionRequest{Prompt: "x"})
	assert.True(t, errors.Is(err, faults.ErrProviderFatal))
}

func TestGeminiUnavailableWithoutKey(t *testing.T) {
	c, err := NewGeminiClient("", "", 0)
	require.NoError(t, err)
	assert.False(t, c.Available())
	_, err = c.Complete(context.Background(), CompletionRequest{Prompt: "x"})
	assert.True(t, errors.Is(err, faults.ErrProviderUnavailable))
}
