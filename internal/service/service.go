package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"chat-relay/internal/provider"
	"chat-relay/internal/session"
	"chat-relay/internal/types"
)

// Service orchestrates conversation turns: it resolves the session, composes
// the upstream prompt, invokes the provider, and commits the turn to history
// only on a consistent outcome.
type Service struct {
	sessions     *session.Store
	systemPrompt string
	log          *slog.Logger
}

// New creates a Service over the given session store. An empty systemPrompt
// falls back to DefaultSystemPrompt; a nil logger falls back to slog.Default.
func New(sessions *session.Store, systemPrompt string, log *slog.Logger) *Service {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{sessions: sessions, systemPrompt: systemPrompt, log: log}
}

// Run executes one non-streaming turn. On provider failure the history is
// left untouched and the error propagates to the caller.
func (s *Service) Run(ctx context.Context, conversationID, message string) (string, string, error) {
	sess := s.sessions.ResolveOrCreate(conversationID)
	prompt := Compose(s.systemPrompt, sess.Snapshot(), message)

	content, err := sess.Client().Complete(ctx, prompt)
	if err != nil {
		s.log.Error("completion failed", "conversation_id", sess.ID(), "err", err)
		return sess.ID(), "", err
	}

	// User turn first so the history never holds a reply without its prompt.
	sess.Append(types.RoleUser, message)
	sess.Append(types.RoleAssistant, content)
	s.log.Info("turn completed", "conversation_id", sess.ID(), "chars", len(content))
	return sess.ID(), content, nil
}

// StartStream executes one streaming turn. The returned Stream re-yields each
// upstream fragment; the turn is committed to history exactly when the
// upstream sequence is exhausted, regardless of whether the consumer is still
// reading. Client disconnection must therefore cancel delivery via
// Stream.Close, never via ctx: the provider call runs on a context detached
// from the request.
func (s *Service) StartStream(ctx context.Context, conversationID, message string) (*Stream, error) {
	sess := s.sessions.ResolveOrCreate(conversationID)
	prompt := Compose(s.systemPrompt, sess.Snapshot(), message)

	upstream, err := sess.Client().Stream(context.WithoutCancel(ctx), prompt)
	if err != nil {
		s.log.Error("stream start failed", "conversation_id", sess.ID(), "err", err)
		return nil, err
	}

	st := &Stream{
		conversationID: sess.ID(),
		fragments:      make(chan string),
		abandoned:      make(chan struct{}),
	}
	go s.pump(sess, message, upstream, st)
	return st, nil
}

// ResetConversation discards the session for the given id, if any.
func (s *Service) ResetConversation(conversationID string) {
	s.sessions.Reset(conversationID)
}

// History returns the stored messages for an existing conversation. The
// second result is false when the id is blank or unknown; no session is
// created.
func (s *Service) History(conversationID string) ([]types.Message, bool) {
	sess := s.sessions.Peek(conversationID)
	if sess == nil {
		return nil, false
	}
	return sess.Snapshot(), true
}

// pump drains the upstream fragment stream. Every fragment is accumulated and
// forwarded while the consumer is still reading; once the consumer abandons
// the stream the drain continues silently so the commit still happens on
// normal exhaustion. A mid-sequence provider error drops the partial answer.
func (s *Service) pump(sess *session.Session, userText string, upstream provider.Stream, st *Stream) {
	defer close(st.fragments)
	defer upstream.Close()

	var full strings.Builder
	delivering := true
	for {
		frag, err := upstream.Recv()
		if errors.Is(err, io.EOF) {
			sess.Append(types.RoleUser, userText)
			sess.Append(types.RoleAssistant, full.String())
			s.log.Info("stream committed", "conversation_id", sess.ID(), "chars", full.Len())
			return
		}
		if err != nil {
			st.setErr(err)
			s.log.Error("stream failed", "conversation_id", sess.ID(), "err", err)
			return
		}
		full.WriteString(frag)
		if delivering {
			select {
			case st.fragments <- frag:
			case <-st.abandoned:
				delivering = false
			}
		}
	}
}

// Stream is the consumer-facing half of a streaming turn.
type Stream struct {
	conversationID string
	fragments      chan string
	abandoned      chan struct{}
	closeOnce      sync.Once

	mu  sync.Mutex
	err error
}

// ConversationID returns the resolved conversation id, available before the
// first fragment so it can be sent as out-of-band metadata.
func (st *Stream) ConversationID() string {
	return st.conversationID
}

// Fragments returns the fragment channel. It is closed when the upstream
// sequence ends, normally or not; check Err afterwards.
func (st *Stream) Fragments() <-chan string {
	return st.fragments
}

// Err reports the upstream error, if any, once Fragments is closed.
func (st *Stream) Err() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.err
}

// Close abandons delivery. The upstream drain and the pending history commit
// proceed regardless; only the fragment channel stops receiving.
func (st *Stream) Close() {
	st.closeOnce.Do(func() {
		close(st.abandoned)
	})
}

func (st *Stream) setErr(err error) {
	st.mu.Lock()
	st.err = err
	st.mu.Unlock()
}
