package types

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single chat turn. Once appended to a conversation
// history it is never mutated.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
