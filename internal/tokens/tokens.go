// Package tokens wraps tiktoken so the rest of the engine can count and
// truncate text in model tokens rather than bytes.
package tokens

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Counter counts tokens using a tiktoken encoding. When the encoding cannot
// be initialized it degrades to a whitespace-based approximation so the
// engine keeps working offline.
type Counter struct {
	enc *tiktoken.Tiktoken
}

// NewCounter creates a Counter on the cl100k_base encoding.
func NewCounter() *Counter {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return &Counter{}
	}
	return &Counter{enc: enc}
}

// Count returns the number of tokens in text.
func (c *Counter) Count(text string) int {
	if c.enc == nil {
		return len(strings.Fields(text))
	}
	return len(c.enc.Encode(text, nil, nil))
}

// Truncate returns text cut to at most max tokens.
func (c *Counter) Truncate(text string, max int) string {
	if max <= 0 {
		return ""
	}
	if c.enc == nil {
		fields := strings.Fields(text)
		if len(fields) <= max {
			return text
		}
		return strings.Join(fields[:max], " ")
	}
	toks := c.enc.Encode(text, nil, nil)
	if len(toks) <= max {
		return text
	}
	return c.enc.Decode(toks[:max])
}
