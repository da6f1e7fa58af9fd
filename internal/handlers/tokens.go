package handlers

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"ollama-bridge/internal/providers"
)

// TokenCounter estimates token counts for the prompt_eval_count and
// eval_count fields of response envelopes. Counts are estimates: the bridge
// uses cl100k_base regardless of the upstream model's own tokenizer, and
// falls back to a whitespace split when the encoding is unavailable.
type TokenCounter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
}

func NewTokenCounter() *TokenCounter {
	return &TokenCounter{}
}

func (c *TokenCounter) Count(text string) int {
	c.once.Do(func() {
		if enc, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
			c.enc = enc
		}
	})

	if c.enc == nil {
		return len(strings.Fields(text))
	}

	return len(c.enc.Encode(text, nil, nil))
}

func (c *TokenCounter) CountMessages(msgs []providers.Message) int {
	total := 0
	for _, m := range msgs {
		total += c.Count(m.PlainText())
	}

	return total
}
