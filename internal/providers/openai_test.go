package providers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenAIClient_Kinds(t *testing.T) {
	openai := NewOpenAI("key", "", testLogger())
	assert.Equal(t, KindOpenAI, openai.Kind())
	assert.Equal(t, DefaultOpenAIBaseURL, openai.baseURL)

	openrouter := NewOpenRouter("key", "", testLogger())
	assert.Equal(t, KindOpenRouter, openrouter.Kind())
	assert.Equal(t, DefaultOpenRouterBaseURL, openrouter.baseURL)
}

func TestOpenAIClient_Complete(t *testing.T) {
	var captured map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "cmpl-1",
			"choices": [{"message": {"role": "assistant", "content": "Hello there", "reasoning": "thinking..."}}]
		}`))
	}))
	defer srv.Close()

	client := NewOpenAI("test-key", srv.URL, testLogger())

	msgs := []Message{
		{Role: RoleUser, Text: "Hello"},
		{Role: RoleAssistant, Text: "Hi"},
		{Role: RoleUser, Text: "again"},
	}

	temp := 0.5
	res, err := client.Complete(context.Background(), "test-model", msgs, Options{Temperature: &temp})
	require.NoError(t, err)

	assert.Equal(t, "Hello there", res.Text)
	assert.Equal(t, "thinking...", res.Reasoning)

	assert.Equal(t, "test-model", captured["model"])
	assert.Equal(t, 0.5, captured["temperature"])
	assert.NotContains(t, captured, "top_p", "unset options must not be sent")
	assert.NotContains(t, captured, "max_tokens", "unset options must not be sent")

	wireMsgs, ok := captured["messages"].([]any)
	require.True(t, ok)
	require.Len(t, wireMsgs, 3)

	first := wireMsgs[0].(map[string]any)
	assert.Equal(t, "user", first["role"])
	assert.Equal(t, "Hello", first["content"])

	second := wireMsgs[1].(map[string]any)
	assert.Equal(t, "assistant", second["role"])
}

func TestOpenAIClient_Complete_BlockContentPassThrough(t *testing.T) {
	var captured map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "ok"}}]}`))
	}))
	defer srv.Close()

	client := NewOpenAI("k", srv.URL, testLogger())

	msgs := []Message{{
		Role: RoleUser,
		Blocks: []ContentBlock{
			{Type: ContentTypeText, Text: "describe"},
			{Type: ContentTypeImage, Image: "data:image/jpeg;base64,QUJD"},
		},
	}}

	_, err := client.Complete(context.Background(), "m", msgs, Options{})
	require.NoError(t, err)

	wireMsgs := captured["messages"].([]any)
	content := wireMsgs[0].(map[string]any)["content"].([]any)
	require.Len(t, content, 2)

	assert.Equal(t, "text", content[0].(map[string]any)["type"])
	assert.Equal(t, "image", content[1].(map[string]any)["type"])
	assert.Equal(t, "data:image/jpeg;base64,QUJD", content[1].(map[string]any)["image"])
}

func TestOpenAIClient_Complete_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "rate limited"}}`))
	}))
	defer srv.Close()

	client := NewOpenAI("k", srv.URL, testLogger())

	_, err := client.Complete(context.Background(), "m", []Message{{Role: RoleUser, Text: "hi"}}, Options{})
	require.Error(t, err)

	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, KindOpenAI, upErr.Provider)
	assert.Equal(t, http.StatusTooManyRequests, upErr.Status)
	assert.Equal(t, "rate limited", upErr.Detail)
}

func TestOpenAIClient_Complete_NonStringContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": {"weird": true}}}]}`))
	}))
	defer srv.Close()

	client := NewOpenAI("k", srv.URL, testLogger())

	res, err := client.Complete(context.Background(), "m", []Message{{Role: RoleUser, Text: "hi"}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "", res.Text, "non-string content must coerce to empty string")
}

func TestOpenAIClient_Stream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")

		chunks := []string{
			`data: {"choices": [{"delta": {"role": "assistant"}}]}`,
			`data: {"choices": [{"delta": {"content": "Hel"}}]}`,
			``,
			`: keepalive comment`,
			`data: {"choices": [{"delta": {"content": "lo", "reasoning": "hmm"}}]}`,
			`data: {"choices": [{"delta": {"content": "!"}}]}`,
			`data: [DONE]`,
		}
		for _, c := range chunks {
			w.Write([]byte(c + "\n"))
		}
	}))
	defer srv.Close()

	client := NewOpenAI("k", srv.URL, testLogger())

	st, err := client.Stream(context.Background(), "m", []Message{{Role: RoleUser, Text: "hi"}}, Options{})
	require.NoError(t, err)
	defer st.Close()

	var deltas []string

	for {
		delta, err := st.Recv()
		if err == io.EOF {
			break
		}

		require.NoError(t, err)
		deltas = append(deltas, delta)
	}

	assert.Equal(t, []string{"Hel", "lo", "!"}, deltas)
	assert.Equal(t, "hmm", st.Reasoning())

	// A finished stream stays finished.
	_, err = st.Recv()
	assert.Equal(t, io.EOF, err)
}

func TestOpenAIClient_Stream_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	client := NewOpenRouter("k", srv.URL, testLogger())

	_, err := client.Stream(context.Background(), "m", []Message{{Role: RoleUser, Text: "hi"}}, Options{})
	require.Error(t, err)

	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, KindOpenRouter, upErr.Provider)
	assert.Equal(t, http.StatusBadGateway, upErr.Status)
}
