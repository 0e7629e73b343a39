package session

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"chat-relay/internal/provider"
)

const idPrefix = "c_"

// Store owns the conversation id to session mapping. It is the sole authority
// that creates and destroys sessions; thread-safe.
type Store struct {
	client provider.Client

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewStore creates an empty store. Every session it mints shares client.
func NewStore(client provider.Client) *Store {
	return &Store{
		client:   client,
		sessions: make(map[string]*Session),
	}
}

// ResolveOrCreate returns the session for rawID, creating one on first
// reference. A blank or whitespace-only id gets a freshly generated
// identifier. The lookup-or-insert runs under one lock so two racing requests
// cannot both create a session for the same id.
func (st *Store) ResolveOrCreate(rawID string) *Session {
	id := strings.TrimSpace(rawID)

	st.mu.Lock()
	defer st.mu.Unlock()
	if id == "" {
		id = st.generateID()
	}
	sess, ok := st.sessions[id]
	if !ok {
		sess = &Session{id: id, client: st.client, lastUsed: time.Now()}
		st.sessions[id] = sess
		return sess
	}
	sess.touch()
	return sess
}

// Peek returns the session for rawID without creating one, or nil when the id
// is blank or unmapped.
func (st *Store) Peek(rawID string) *Session {
	id := strings.TrimSpace(rawID)
	if id == "" {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.sessions[id]
}

// Reset removes the session for rawID and discards its history. A blank or
// unmapped id is a no-op.
func (st *Store) Reset(rawID string) {
	id := strings.TrimSpace(rawID)
	if id == "" {
		return
	}
	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()
}

// Len reports the number of live sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// EvictIdle removes sessions untouched for longer than maxIdle and returns
// how many were dropped.
func (st *Store) EvictIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	st.mu.Lock()
	defer st.mu.Unlock()
	evicted := 0
	for id, sess := range st.sessions {
		if sess.idleSince(cutoff) {
			delete(st.sessions, id)
			evicted++
		}
	}
	return evicted
}

// generateID mints a fresh conversation id, retrying on the astronomically
// rare collision with an existing key. Caller must hold st.mu.
func (st *Store) generateID() string {
	for {
		id := idPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
		if _, taken := st.sessions[id]; !taken {
			return id
		}
	}
}
