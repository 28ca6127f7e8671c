// Package textgen wraps the chat models used for prompt synthesis and grading.
package textgen

import "context"

// Instruction is a system prompt plus the user text it applies to.
type Instruction struct {
	System    string
	User      string
	MaxTokens int
}

// Generator returns the model's raw text answer. Callers decode it with
// ParseJSON and treat malformed output as a fallback case, not an error.
type Generator interface {
	Complete(ctx context.Context, in Instruction) (string, error)
}

const defaultMaxTokens = 2048

func maxTokens(in Instruction) int64 {
	if in.MaxTokens > 0 {
		return int64(in.MaxTokens)
	}
	return defaultMaxTokens
}
