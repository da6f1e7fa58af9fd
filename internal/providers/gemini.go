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

const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient speaks the Google generative-language wire format, which
// differs from the normalized shape in three ways: the assistant role is
// called "model", system text has no slot of its own and is merged into the
// first user turn, and generation options live under generationConfig with
// Google's field names.
type GeminiClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

func NewGemini(apiKey, baseURL string, logger *slog.Logger) *GeminiClient {
	if baseURL == "" {
		baseURL = DefaultGeminiBaseURL
	}

	return &GeminiClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client:  http.DefaultClient,
		logger:  logger,
	}
}

func (c *GeminiClient) Kind() Kind {
	return KindGoogle
}

// Gemini wire structures.
type geminiRequest struct {
	Contents         []geminiContent  `json:"contents"`
	GenerationConfig *geminiGenConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	Thought    bool              `json:"thought,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiGenConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	TopK            *int     `json:"topK,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates,omitempty"`
	Error      *geminiError      `json:"error,omitempty"`
}

type geminiCandidate struct {
	Content      *geminiContent `json:"content,omitempty"`
	FinishReason string         `json:"finishReason,omitempty"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func (c *GeminiClient) buildRequest(msgs []Message, opts Options) geminiRequest {
	req := geminiRequest{Contents: buildGeminiContents(msgs)}

	if opts.Temperature != nil || opts.TopP != nil || opts.TopK != nil || opts.MaxOutputTokens != nil {
		req.GenerationConfig = &geminiGenConfig{
			Temperature:     opts.Temperature,
			TopP:            opts.TopP,
			TopK:            opts.TopK,
			MaxOutputTokens: opts.MaxOutputTokens,
		}
	}

	return req
}

// buildGeminiContents converts normalized messages into Gemini contents.
// System messages are collected and merged into the first user turn; if no
// user turn exists, a leading one is synthesized to carry the system text.
func buildGeminiContents(msgs []Message) []geminiContent {
	var systemText string

	for _, m := range msgs {
		if m.Role == RoleSystem {
			if systemText != "" {
				systemText += "\n\n"
			}

			systemText += m.PlainText()
		}
	}

	var contents []geminiContent

	systemMerged := systemText == ""

	for _, m := range msgs {
		if m.Role == RoleSystem {
			continue
		}

		role := RoleUser
		if m.Role == RoleAssistant {
			role = "model"
		}

		parts := geminiParts(m)

		if !systemMerged && role == RoleUser {
			parts = mergeSystemText(systemText, parts)
			systemMerged = true
		}

		contents = append(contents, geminiContent{Role: role, Parts: parts})
	}

	if !systemMerged {
		contents = append([]geminiContent{{
			Role:  RoleUser,
			Parts: []geminiPart{{Text: systemText}},
		}}, contents...)
	}

	return contents
}

func geminiParts(m Message) []geminiPart {
	if !m.IsBlocks() {
		return []geminiPart{{Text: m.Text}}
	}

	parts := make([]geminiPart, 0, len(m.Blocks))

	for _, b := range m.Blocks {
		switch b.Type {
		case ContentTypeText:
			parts = append(parts, geminiPart{Text: b.Text})
		case ContentTypeImage:
			mime, data := splitDataURL(b.Image)
			parts = append(parts, geminiPart{InlineData: &geminiInlineData{MimeType: mime, Data: data}})
		}
	}

	return parts
}

func mergeSystemText(systemText string, parts []geminiPart) []geminiPart {
	if len(parts) > 0 && parts[0].InlineData == nil {
		parts[0].Text = systemText + "\n\n" + parts[0].Text
		return parts
	}

	return append([]geminiPart{{Text: systemText}}, parts...)
}

// splitDataURL decomposes "data:<mime>;base64,<payload>" for inlineData.
func splitDataURL(dataURL string) (mime, data string) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return "image/jpeg", dataURL
	}

	meta, payload, found := strings.Cut(rest, ",")
	if !found {
		return "image/jpeg", rest
	}

	mime = strings.TrimSuffix(meta, ";base64")
	if mime == "" {
		mime = "image/jpeg"
	}

	return mime, payload
}

func (c *GeminiClient) do(ctx context.Context, url string, body geminiRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal gemini request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create gemini request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &UpstreamError{Provider: KindGoogle, Status: 0, Detail: err.Error()}
	}

	return resp, nil
}

func (c *GeminiClient) Complete(ctx context.Context, model string, msgs []Message, opts Options) (*Result, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, model)

	resp, err := c.do(ctx, url, c.buildRequest(msgs, opts))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := readBody(resp)
	if err != nil {
		return nil, &UpstreamError{Provider: KindGoogle, Status: resp.StatusCode, Detail: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{Provider: KindGoogle, Status: resp.StatusCode, Detail: geminiDetail(raw)}
	}

	var payload geminiResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &UpstreamError{Provider: KindGoogle, Status: resp.StatusCode, Detail: "malformed response body"}
	}

	c.logger.Debug("completion received", "provider", KindGoogle, "model", model)

	return geminiResult(&payload), nil
}

// geminiResult flattens a Gemini candidate into a Result. Thought parts feed
// the reasoning field, everything else the primary text.
func geminiResult(payload *geminiResponse) *Result {
	res := &Result{}

	if len(payload.Candidates) == 0 || payload.Candidates[0].Content == nil {
		return res
	}

	var text, reasoning strings.Builder

	for _, part := range payload.Candidates[0].Content.Parts {
		if part.Thought {
			reasoning.WriteString(part.Text)
		} else {
			text.WriteString(part.Text)
		}
	}

	res.Text = text.String()
	res.Reasoning = reasoning.String()

	return res
}

func (c *GeminiClient) Stream(ctx context.Context, model string, msgs []Message, opts Options) (*Stream, error) {
	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", c.baseURL, model)

	resp, err := c.do(ctx, url, c.buildRequest(msgs, opts))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := readBody(resp)
		resp.Body.Close()

		return nil, &UpstreamError{Provider: KindGoogle, Status: resp.StatusCode, Detail: geminiDetail(raw)}
	}

	reader, err := decompressReader(resp)
	if err != nil {
		resp.Body.Close()
		return nil, &UpstreamError{Provider: KindGoogle, Status: resp.StatusCode, Detail: err.Error()}
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

			var chunk geminiResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				c.logger.Debug("skipping malformed stream chunk", "provider", KindGoogle, "error", err)
				continue
			}

			partial := geminiResult(&chunk)
			if partial.Reasoning != "" {
				st.addReasoning(partial.Reasoning)
			}

			if partial.Text != "" {
				return partial.Text, nil
			}
		}

		if err := scanner.Err(); err != nil {
			return "", &UpstreamError{Provider: KindGoogle, Status: resp.StatusCode, Detail: err.Error()}
		}

		return "", io.EOF
	}

	return st, nil
}

func geminiDetail(raw []byte) string {
	var payload geminiResponse
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != nil && payload.Error.Message != "" {
		return payload.Error.Message
	}

	return upstreamDetail(raw)
}
