// Package llm defines the completion-provider abstraction used by the
// concierge core. Providers handle API communication with an LLM service
// and return plain text; conversation state and prompt assembly live in
// the calling layers.
package llm

import "context"

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat turn sent to a provider.
type Message struct {
	Role    Role
	Content string
}

// SystemMessage builds a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage builds a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant-role message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Provider is implemented by LLM completion backends.
//
// Complete returns the full response text for the given messages. Errors
// carry the upstream failure signature verbatim so the resilience layer
// can classify overload conditions from their text.
type Provider interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}
