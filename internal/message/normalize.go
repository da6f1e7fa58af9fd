// Package message converts the inbound API's heterogeneous message
// representations (plain strings, content-block arrays, the legacy prompt
// field, image attachments) into the normalized role-tagged list the provider
// adapters consume.
package message

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"ollama-bridge/internal/providers"
)

// ErrNoValidMessages means normalization produced an empty list; the request
// must be rejected before any upstream call.
var ErrNoValidMessages = errors.New("no valid messages in request")

// RawMessage is one inbound chat message before normalization. Content is
// either a JSON string or a content-block array; Images carries optional
// per-message vision payloads.
type RawMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
	Images  []string        `json:"images,omitempty"`
}

// Shape is an inbound request body resolved once into one of its two
// variants, so downstream code never re-sniffs the body.
type Shape struct {
	chat     bool
	messages []RawMessage
	prompt   string
	images   []string
}

// ChatShape wraps a messages-array request.
func ChatShape(messages []RawMessage) Shape {
	return Shape{chat: true, messages: messages}
}

// GenerateShape wraps a legacy prompt request with optional top-level images.
func GenerateShape(prompt string, images []string) Shape {
	return Shape{prompt: prompt, images: images}
}

type Normalizer struct {
	client *http.Client
	logger *slog.Logger
}

func NewNormalizer(logger *slog.Logger) *Normalizer {
	return &Normalizer{
		client: http.DefaultClient,
		logger: logger,
	}
}

// Normalize builds the ordered message list for a request. Insertion order is
// preserved end-to-end; entries whose content normalizes to nothing are
// dropped rather than padded.
func (n *Normalizer) Normalize(ctx context.Context, shape Shape) ([]providers.Message, error) {
	var out []providers.Message

	if shape.chat {
		for _, raw := range shape.messages {
			msg, ok, err := n.normalizeOne(ctx, raw)
			if err != nil {
				return nil, err
			}

			if ok {
				out = append(out, msg)
			}
		}
	} else {
		prompt := strings.TrimSpace(shape.prompt)

		if len(shape.images) > 0 {
			blocks, err := n.buildBlocks(ctx, prompt, shape.images)
			if err != nil {
				return nil, err
			}

			out = append(out, providers.Message{Role: providers.RoleUser, Blocks: blocks})
		} else if prompt != "" {
			out = append(out, providers.Message{Role: providers.RoleUser, Text: prompt})
		}
	}

	if len(out) == 0 {
		return nil, ErrNoValidMessages
	}

	return out, nil
}

func (n *Normalizer) normalizeOne(ctx context.Context, raw RawMessage) (providers.Message, bool, error) {
	role := normalizeRole(raw.Role)

	if len(raw.Images) > 0 {
		text := strings.TrimSpace(contentString(raw.Content))

		blocks, err := n.buildBlocks(ctx, text, raw.Images)
		if err != nil {
			return providers.Message{}, false, err
		}

		return providers.Message{Role: role, Blocks: blocks}, true, nil
	}

	// Already a block array: pass through unchanged.
	var blocks []providers.ContentBlock
	if err := json.Unmarshal(raw.Content, &blocks); err == nil && blocks != nil {
		return providers.Message{Role: role, Blocks: blocks}, true, nil
	}

	text := strings.TrimSpace(contentString(raw.Content))
	if text == "" {
		return providers.Message{}, false, nil
	}

	return providers.Message{Role: role, Text: text}, true, nil
}

// normalizeRole keeps assistant and system turns; every other role collapses
// to user. System survives normalization so the Gemini adapter can merge it.
func normalizeRole(role string) string {
	switch role {
	case providers.RoleAssistant:
		return providers.RoleAssistant
	case providers.RoleSystem:
		return providers.RoleSystem
	default:
		return providers.RoleUser
	}
}

func contentString(content json.RawMessage) string {
	var s string
	if err := json.Unmarshal(content, &s); err == nil {
		return s
	}

	return ""
}
