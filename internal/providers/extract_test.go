package providers

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) map[string]any {
	t.Helper()

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))

	return payload
}

func TestExtractCompletion(t *testing.T) {
	tests := []struct {
		name          string
		payload       string
		wantText      string
		wantReasoning string
	}{
		{
			name:     "chat completions shape",
			payload:  `{"choices": [{"message": {"role": "assistant", "content": "hi"}}]}`,
			wantText: "hi",
		},
		{
			name:     "last assistant message wins",
			payload:  `{"messages": [{"role": "assistant", "content": "first"}, {"role": "user", "content": "q"}, {"role": "assistant", "content": "second"}]}`,
			wantText: "second",
		},
		{
			name:     "block list joins text blocks in order",
			payload:  `{"messages": [{"role": "assistant", "content": [{"type": "text", "text": "a"}, {"type": "image", "image": "x"}, {"type": "text", "text": "b"}]}]}`,
			wantText: "ab",
		},
		{
			name:     "flat text fallback",
			payload:  `{"text": "flat"}`,
			wantText: "flat",
		},
		{
			name:     "no assistant message falls back to flat text",
			payload:  `{"messages": [{"role": "user", "content": "q"}], "text": "flat"}`,
			wantText: "flat",
		},
		{
			name:     "non-string text coerces to empty",
			payload:  `{"text": 42}`,
			wantText: "",
		},
		{
			name:     "non-string content coerces to empty",
			payload:  `{"choices": [{"message": {"role": "assistant", "content": 7}}]}`,
			wantText: "",
		},
		{
			name:          "reasoning_content alias",
			payload:       `{"choices": [{"message": {"role": "assistant", "content": "x", "reasoning_content": "deep"}}]}`,
			wantText:      "x",
			wantReasoning: "deep",
		},
		{
			name:     "empty payload",
			payload:  `{}`,
			wantText: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := extractCompletion(decode(t, tt.payload))

			assert.Equal(t, tt.wantText, res.Text)
			assert.Equal(t, tt.wantReasoning, res.Reasoning)
		})
	}
}

func TestExtractCompletion_RawMessages(t *testing.T) {
	payload := decode(t, `{"messages": [{"role": "user", "content": "q"}, {"role": "assistant", "content": "a"}]}`)

	res := extractCompletion(payload)
	require.Len(t, res.RawMessages, 2)
	assert.Equal(t, "a", res.Text)
}
