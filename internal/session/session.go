package session

import (
	"sync"
	"time"

	"chat-relay/internal/provider"
	"chat-relay/internal/types"
)

// Session pairs a conversation id with its history and the shared provider
// handle. The history grows by append only; entries are never mutated or
// reordered. Safe for concurrent use.
type Session struct {
	id     string
	client provider.Client

	mu       sync.Mutex
	messages []types.Message
	lastUsed time.Time
}

// ID returns the stable conversation identifier.
func (s *Session) ID() string {
	return s.id
}

// Client returns the shared completion provider handle.
func (s *Session) Client() provider.Client {
	return s.client
}

// Append adds one immutable message to the end of the history.
func (s *Session) Append(role types.Role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, types.Message{Role: role, Content: content})
	s.lastUsed = time.Now()
}

// Snapshot returns a copy of the history in insertion order. Callers must not
// mutate the returned slice's entries.
func (s *Session) Snapshot() []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastUsed = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed.Before(cutoff)
}
