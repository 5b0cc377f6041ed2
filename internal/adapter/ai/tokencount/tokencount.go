// Package tokencount budgets prompt sizes with tiktoken encodings so parse
// calls never overflow the model context.
package tokencount

import (
	"fmt"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Counter counts and truncates text against one model's encoding. Encodings
// are expensive to build, so a counter is cached per model.
type Counter struct {
	enc *tiktoken.Tiktoken
}

var (
	mu       sync.Mutex
	counters = map[string]*Counter{}
)

// ForModel returns the shared counter for a model, falling back to the
// cl100k_base encoding for unknown model names.
func ForModel(model string) (*Counter, error) {
	mu.Lock()
	defer mu.Unlock()
	if c, ok := counters[model]; ok {
		return c, nil
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("op=tokencount.ForModel: %w", err)
		}
	}
	c := &Counter{enc: enc}
	counters[model] = c
	return c, nil
}

// Count returns the token count of text.
func (c *Counter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// Truncate trims text to at most maxTokens tokens, decoding back to a valid
// string boundary.
func (c *Counter) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	ids := c.enc.Encode(text, nil, nil)
	if len(ids) <= maxTokens {
		return text
	}
	return c.enc.Decode(ids[:maxTokens])
}
