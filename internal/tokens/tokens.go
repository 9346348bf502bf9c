// Package tokens implements precise token counting over cl100k_base,
// grounded on the teacher's internal/shared/token tokenutil helper
// (itself a thin wrapper over pkoukk/tiktoken-go), wired here as the
// concrete compaction.TokenCounter per SPEC_FULL.md's domain-stack entry
// for tiktoken-go.
package tokens

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/cortexlane/cortex/internal/domain/message"
)

// Counter is a compaction.TokenCounter backed by a cached cl100k_base
// encoding. Building the encoding is expensive enough that it's done once
// and reused for every CountTokens call.
type Counter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
	err  error
}

// NewCounter returns a ready-to-use Counter. The underlying encoding loads
// lazily on first use so constructing one never fails.
func NewCounter() *Counter { return &Counter{} }

func (c *Counter) encoding() (*tiktoken.Tiktoken, error) {
	c.once.Do(func() {
		c.enc, c.err = tiktoken.GetEncoding("cl100k_base")
	})
	return c.enc, c.err
}

// CountTokens implements compaction.TokenCounter, summing each message's
// rendered text (content plus any tool-result content) through the
// cl100k_base encoder. Reports ok=false if the encoding couldn't be
// loaded, so callers fall back to the 4-chars-per-token estimate.
func (c *Counter) CountTokens(history []message.Message) (int, bool) {
	enc, err := c.encoding()
	if err != nil {
		return 0, false
	}
	total := 0
	for _, m := range history {
		total += len(enc.Encode(m.Content, nil, nil))
		for _, r := range m.Results {
			total += len(enc.Encode(r.Content, nil, nil))
		}
	}
	return total, true
}
