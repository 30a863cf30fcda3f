// Package llm defines the chat completion port used by the coordinator.
package llm

import "context"

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer produces a reply for a conversation.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}
