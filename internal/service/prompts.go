package service

import "chat-relay/internal/types"

// DefaultSystemPrompt is the directive sent as the first message of every
// upstream request. It is configuration, not history: it is never stored in a
// session so it cannot be overwritten by replayed turns.
const DefaultSystemPrompt = "You are a helpful assistant for a desktop chat client. " +
	"Answer directly and follow the user's instructions precisely. " +
	"Keep replies short, clear, and structured.\n\n" +
	"Formatting rules:\n" +
	"- Use Markdown only (paragraphs, headings, lists, links, tables, inline code, fenced code blocks). Do not output raw HTML.\n" +
	"- Always tag fenced code blocks with a language (e.g. ```python).\n" +
	"- For very short answers prefer plain text unless formatting is requested.\n" +
	"- Math: use LaTeX delimiters, $...$ inline and $$...$$ for display; never wrap LaTeX in code fences."

// Compose builds the exact ordered message list for one turn: the system
// directive, the history snapshot in original order, then the new user
// message. Pure; no side effects.
func Compose(systemPrompt string, history []types.Message, userText string) []types.Message {
	messages := make([]types.Message, 0, len(history)+2)
	messages = append(messages, types.Message{Role: types.RoleSystem, Content: systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, types.Message{Role: types.RoleUser, Content: userText})
	return messages
}
