package handlers

import (
	"encoding/json"

	"ollama-bridge/internal/message"
	"ollama-bridge/internal/providers"
)

// ChatRequest is the inbound /api/chat body.
type ChatRequest struct {
	Model    string               `json:"model"`
	Messages []message.RawMessage `json:"messages"`
	Options  *Options             `json:"options,omitempty"`
	Stream   *bool                `json:"stream,omitempty"`
	Context  json.RawMessage      `json:"context,omitempty"`
}

// GenerateRequest is the inbound /api/generate body (legacy prompt shape).
type GenerateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Images  []string        `json:"images,omitempty"`
	Options *Options        `json:"options,omitempty"`
	Stream  *bool           `json:"stream,omitempty"`
	Context json.RawMessage `json:"context,omitempty"`
}

// Options mirrors the local API's options object. Absent fields stay absent
// upstream so the provider's own defaults apply; nothing is filled in
// locally.
type Options struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	TopK        *int     `json:"top_k,omitempty"`
	NumPredict  *int     `json:"num_predict,omitempty"`
}

func (o *Options) provider() providers.Options {
	if o == nil {
		return providers.Options{}
	}

	return providers.Options{
		Temperature:     o.Temperature,
		TopP:            o.TopP,
		TopK:            o.TopK,
		MaxOutputTokens: o.NumPredict,
	}
}

// streaming defaults to on when the request leaves it unset, matching the
// local API's native behavior.
func streamRequested(stream *bool) bool {
	return stream == nil || *stream
}

// TagEntry is one model in the /api/tags listing.
type TagEntry struct {
	Name       string `json:"name"`
	Model      string `json:"model"`
	ModifiedAt string `json:"modified_at"`
	Size       int64  `json:"size"`
	Digest     string `json:"digest"`
}
