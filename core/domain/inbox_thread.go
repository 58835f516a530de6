package domain

import (
	"fmt"
	"time"
)

// ThreadKind identifies who wrote a thread entry.
type ThreadKind string

const (
	ThreadAIReply       ThreadKind = "ai-reply"
	ThreadHumanReply    ThreadKind = "human-reply"
	ThreadCustomerReply ThreadKind = "customer-reply"
)

// ParseThreadKind converts a string to a ThreadKind.
func ParseThreadKind(s string) (ThreadKind, error) {
	switch k := ThreadKind(s); k {
	case ThreadAIReply, ThreadHumanReply, ThreadCustomerReply:
		return k, nil
	}
	return "", fmt.Errorf("unknown thread entry type %q", s)
}

// ThreadEntry is one message appended to an email's conversation.
// Entries are append-only; order is chronological.
type ThreadEntry struct {
	Kind       ThreadKind `json:"type"`
	Author     string     `json:"author"`
	Content    string     `json:"content"`
	Timestamp  time.Time  `json:"timestamp"`
	Confidence *int       `json:"confidence,omitempty"` // only for ai-reply
}

// NewAIReplyEntry builds an ai-reply entry with its confidence clamped to 0..100.
func NewAIReplyEntry(author, content string, confidence int, at time.Time) ThreadEntry {
	c := ClampConfidence(confidence)
	return ThreadEntry{
		Kind:       ThreadAIReply,
		Author:     author,
		Content:    content,
		Timestamp:  at,
		Confidence: &c,
	}
}

// ClampConfidence bounds a confidence percentage to 0..100.
func ClampConfidence(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
