package providers

import (
	"context"
	"fmt"
	"strings"
)

// Kind identifies an upstream provider family.
type Kind string

const (
	KindOpenAI     Kind = "openai"
	KindGoogle     Kind = "google"
	KindOpenRouter Kind = "openrouter"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"

	ContentTypeText  = "text"
	ContentTypeImage = "image"
)

// ContentBlock is one tagged unit of message content.
type ContentBlock struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"` // data URL
}

// Message is the normalized role+content representation, independent of any
// provider wire format. Content is either plain Text or a Blocks list; a
// non-nil Blocks takes precedence over Text.
type Message struct {
	Role   string
	Text   string
	Blocks []ContentBlock
}

// IsBlocks reports whether the message carries multimodal block content.
func (m Message) IsBlocks() bool {
	return m.Blocks != nil
}

// PlainText returns the textual content of the message, joining text-typed
// blocks in order for block content.
func (m Message) PlainText() string {
	if !m.IsBlocks() {
		return m.Text
	}

	var sb strings.Builder

	for _, b := range m.Blocks {
		if b.Type == ContentTypeText {
			sb.WriteString(b.Text)
		}
	}

	return sb.String()
}

// Options are pass-through generation parameters. A nil field means the
// provider uses its own default; no value is ever substituted locally.
type Options struct {
	Temperature     *float64
	TopP            *float64
	TopK            *int
	MaxOutputTokens *int
}

// Result is a completed generation. Text is always a string, even when the
// upstream returned something degenerate in its content slot.
type Result struct {
	Text        string
	Reasoning   string
	RawMessages []any
}

// Provider is one upstream adapter. Implementations are safe for concurrent
// use; all per-request state lives in the arguments and return values.
type Provider interface {
	Kind() Kind

	// Complete performs a blocking generation call.
	Complete(ctx context.Context, model string, msgs []Message, opts Options) (*Result, error)

	// Stream starts a streaming generation call and returns a finite,
	// non-restartable sequence of text deltas.
	Stream(ctx context.Context, model string, msgs []Message, opts Options) (*Stream, error)
}

// UpstreamError is a failed provider call: non-success status or a response
// body that could not be interpreted. It is never retried locally.
type UpstreamError struct {
	Provider Kind
	Status   int
	Detail   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s upstream error (status %d): %s", e.Provider, e.Status, e.Detail)
}

// Set is the active adapters keyed by kind, built once at startup from the
// configured credentials and read-only afterwards.
type Set map[Kind]Provider

func (s Set) For(kind Kind) (Provider, bool) {
	p, ok := s[kind]
	return p, ok
}

func (s Set) Has(kind Kind) bool {
	_, ok := s[kind]
	return ok
}

// Kinds returns the kinds with an active adapter.
func (s Set) Kinds() []Kind {
	kinds := make([]Kind, 0, len(s))
	for k := range s {
		kinds = append(kinds, k)
	}

	return kinds
}
