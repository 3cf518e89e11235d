// Package budget estimates the prompt size of a grounded question. Backends
// use different tokenizers, so the estimate is a character heuristic of
// roughly four characters per token.
package budget

import (
	"github.com/cloudwego/eino/schema"
)

const (
	charsPerToken = 4

	// messageOverhead approximates the per-message framing most chat APIs add.
	messageOverhead = 4

	// DefaultMaxContextTokens is the prompt size above which a grounded
	// question is reported as likely to overflow an 8k-context model.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s. Non-empty input is at least
// one token.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated token count of msgs, including the
// role and framing of each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		if m == nil {
			continue
		}
		total += messageOverhead + Estimate(string(m.Role)) + Estimate(m.Content)
	}
	return total
}

// Usage is the estimated size of a prompt against a limit.
type Usage struct {
	Tokens int
	Max    int
}

// Over reports whether the estimate exceeds the limit.
func (u Usage) Over() bool { return u.Tokens > u.Max }

// Measure estimates msgs against maxTokens. maxTokens <= 0 selects
// DefaultMaxContextTokens.
func Measure(msgs []*schema.Message, maxTokens int) Usage {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxContextTokens
	}
	return Usage{Tokens: EstimateMessages(msgs), Max: maxTokens}
}
