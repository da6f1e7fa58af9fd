package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const (
	DefaultOpenAIBaseURL     = "https://api.openai.com/v1"
	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

// OpenAIClient speaks the OpenAI chat-completions wire format. The same
// client serves OpenRouter, which exposes an OpenAI-compatible endpoint under
// a different base URL and credential.
type OpenAIClient struct {
	kind    Kind
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

func NewOpenAI(apiKey, baseURL string, logger *slog.Logger) *OpenAIClient {
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}

	return &OpenAIClient{
		kind:    KindOpenAI,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client:  http.DefaultClient,
		logger:  logger,
	}
}

func NewOpenRouter(apiKey, baseURL string, logger *slog.Logger) *OpenAIClient {
	if baseURL == "" {
		baseURL = DefaultOpenRouterBaseURL
	}

	c := NewOpenAI(apiKey, baseURL, logger)
	c.kind = KindOpenRouter

	return c
}

func (c *OpenAIClient) Kind() Kind {
	return c.kind
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature *float64        `json:"temperature,omitempty"`
	TopP        *float64        `json:"top_p,omitempty"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
}

func (c *OpenAIClient) buildRequest(model string, msgs []Message, opts Options, stream bool) openAIRequest {
	wireMsgs := make([]openAIMessage, 0, len(msgs))

	for _, m := range msgs {
		wire := openAIMessage{Role: m.Role}

		// Normalized messages are already role/content compatible; block
		// content goes out as-is.
		if m.IsBlocks() {
			wire.Content = m.Blocks
		} else {
			wire.Content = m.Text
		}

		wireMsgs = append(wireMsgs, wire)
	}

	return openAIRequest{
		Model:       model,
		Messages:    wireMsgs,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
		MaxTokens:   opts.MaxOutputTokens,
		Stream:      stream,
	}
}

func (c *OpenAIClient) do(ctx context.Context, body openAIRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", c.kind, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", c.kind, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &UpstreamError{Provider: c.kind, Status: 0, Detail: err.Error()}
	}

	return resp, nil
}

func (c *OpenAIClient) Complete(ctx context.Context, model string, msgs []Message, opts Options) (*Result, error) {
	resp, err := c.do(ctx, c.buildRequest(model, msgs, opts, false))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := readBody(resp)
	if err != nil {
		return nil, &UpstreamError{Provider: c.kind, Status: resp.StatusCode, Detail: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{Provider: c.kind, Status: resp.StatusCode, Detail: upstreamDetail(raw)}
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &UpstreamError{Provider: c.kind, Status: resp.StatusCode, Detail: "malformed response body"}
	}

	c.logger.Debug("completion received", "provider", c.kind, "model", model)

	return extractCompletion(payload), nil
}

func (c *OpenAIClient) Stream(ctx context.Context, model string, msgs []Message, opts Options) (*Stream, error) {
	resp, err := c.do(ctx, c.buildRequest(model, msgs, opts, true))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := readBody(resp)
		resp.Body.Close()

		return nil, &UpstreamError{Provider: c.kind, Status: resp.StatusCode, Detail: upstreamDetail(raw)}
	}

	reader, err := decompressReader(resp)
	if err != nil {
		resp.Body.Close()
		return nil, &UpstreamError{Provider: c.kind, Status: resp.StatusCode, Detail: err.Error()}
	}

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	st := &Stream{closeFn: resp.Body.Close}
	st.next = func() (string, error) {
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, ":") {
				continue
			}

			data, ok := strings.CutPrefix(line, "data: ")
			if !ok {
				continue
			}

			if data == "[DONE]" {
				return "", io.EOF
			}

			var chunk map[string]any
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				c.logger.Debug("skipping malformed stream chunk", "provider", c.kind, "error", err)
				continue
			}

			content, reasoning := openAIDelta(chunk)
			if reasoning != "" {
				st.addReasoning(reasoning)
			}

			if content != "" {
				return content, nil
			}
		}

		if err := scanner.Err(); err != nil {
			return "", &UpstreamError{Provider: c.kind, Status: resp.StatusCode, Detail: err.Error()}
		}

		return "", io.EOF
	}

	return st, nil
}

// openAIDelta pulls the text and reasoning deltas out of one streamed chunk.
func openAIDelta(chunk map[string]any) (content, reasoning string) {
	choices, ok := chunk["choices"].([]any)
	if !ok || len(choices) == 0 {
		return "", ""
	}

	first, ok := choices[0].(map[string]any)
	if !ok {
		return "", ""
	}

	delta, ok := first["delta"].(map[string]any)
	if !ok {
		return "", ""
	}

	return asString(delta["content"]), reasoningText(delta)
}

// upstreamDetail extracts a readable error detail from an upstream error body.
func upstreamDetail(raw []byte) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}

	detail := strings.TrimSpace(string(raw))
	if len(detail) > 512 {
		detail = detail[:512]
	}

	if detail == "" {
		detail = "no response body"
	}

	return detail
}
