package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func sseChunk(content string) string {
	return fmt.Sprintf(`data: {"choices":[{"delta":{"content":%q}}]}`+"\n\n", content)
}

func TestCompleteParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "test-model", body["model"])
		require.Equal(t, false, body["stream"])
		require.Equal(t, "Bearer key-123", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"choices":[{"message":{"content":"hello"}}],"usage":{"prompt_tokens":7,"completion_tokens":3}}`)
	}))
	t.Cleanup(srv.Close)

	c := NewClient()
	cfg := ChatConfig{BaseURL: srv.URL, APIKey: "key-123", Model: "test-model"}
	text, usage, err := c.Complete(context.Background(), cfg, []ChatMessage{{Role: "user", Content: "hi"}}, ChatOptions{})
	require.NoError(t, err)
	require.Equal(t, "hello", text)
	require.Equal(t, Usage{TokensIn: 7, TokensOut: 3}, usage)
}

func TestCompleteSendsOptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, 0.0, body["temperature"])
		require.Equal(t, float64(256), body["max_tokens"])
		rf, ok := body["response_format"].(map[string]any)
		require.True(t, ok)
		require.Equal(t, "json_object", rf["type"])
		fmt.Fprint(w, `{"choices":[{"message":{"content":"{}"}}]}`)
	}))
	t.Cleanup(srv.Close)

	temp := 0.0
	c := NewClient()
	_, _, err := c.Complete(context.Background(), ChatConfig{BaseURL: srv.URL, Model: "m"},
		[]ChatMessage{{Role: "user", Content: "hi"}},
		ChatOptions{Temperature: &temp, MaxTokens: 256, JSONOnly: true})
	require.NoError(t, err)
}

func TestCompleteUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	c := NewClient()
	_, _, err := c.Complete(context.Background(), ChatConfig{BaseURL: srv.URL, Model: "m"},
		[]ChatMessage{{Role: "user", Content: "hi"}}, ChatOptions{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "429")
}

func TestStreamCompleteDeltasInOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseChunk("Pat "))
		fmt.Fprint(w, sseChunk("writes "))
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{}}]}\n\n") // role-only frame
		fmt.Fprint(w, sseChunk("Go."))
		fmt.Fprint(w, `data: {"choices":[],"usage":{"prompt_tokens":42,"completion_tokens":11}}`+"\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)

	c := NewClient()
	var got []string
	full, usage, err := c.StreamComplete(context.Background(), ChatConfig{BaseURL: srv.URL, Model: "m"},
		[]ChatMessage{{Role: "user", Content: "hi"}}, ChatOptions{},
		func(chunk string) error {
			got = append(got, chunk)
			return nil
		})
	require.NoError(t, err)
	require.Equal(t, []string{"Pat ", "writes ", "Go."}, got)
	require.Equal(t, "Pat writes Go.", full)
	require.Equal(t, Usage{TokensIn: 42, TokensOut: 11}, usage)
}

func TestStreamCompleteOnChunkErrorAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for i := 0; i < 10; i++ {
			fmt.Fprint(w, sseChunk("x"))
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)

	disconnect := errors.New("writer closed")
	c := NewClient()
	sent := 0
	partial, _, err := c.StreamComplete(context.Background(), ChatConfig{BaseURL: srv.URL, Model: "m"},
		[]ChatMessage{{Role: "user", Content: "hi"}}, ChatOptions{},
		func(string) error {
			sent++
			if sent == 3 {
				return disconnect
			}
			return nil
		})
	require.ErrorIs(t, err, disconnect)
	require.Equal(t, "xxx", partial)
}

func TestStreamCompleteSkipsMalformedFrames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {not json}\n\n")
		fmt.Fprint(w, ": keepalive comment\n\n")
		fmt.Fprint(w, sseChunk("ok"))
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)

	c := NewClient()
	full, _, err := c.StreamComplete(context.Background(), ChatConfig{BaseURL: srv.URL, Model: "m"},
		[]ChatMessage{{Role: "user", Content: "hi"}}, ChatOptions{}, func(string) error { return nil })
	require.NoError(t, err)
	require.Equal(t, "ok", full)
}

func TestStripFences(t *testing.T) {
	require.Equal(t, `{"a":1}`, StripFences("```json\n{\"a\":1}\n```"))
	require.Equal(t, `{"a":1}`, StripFences("```\n{\"a\":1}\n```"))
	require.Equal(t, `{"a":1}`, StripFences(`{"a":1}`))
	require.Equal(t, "", StripFences("  \n"))
}
