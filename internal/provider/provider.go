package provider

import (
	"context"

	"chat-relay/internal/types"
)

// Client is the completion-provider seam. A single Client is shared by every
// conversation; implementations must be safe for concurrent use.
type Client interface {
	// Complete sends the full message list and blocks for the final answer.
	Complete(ctx context.Context, messages []types.Message) (string, error)
	// Stream initiates a completion and returns a single-pass fragment stream.
	Stream(ctx context.Context, messages []types.Message) (Stream, error)
}

// Stream yields assistant text fragments as the upstream model produces them.
// Recv returns io.EOF when the stream ends normally; any other error means the
// upstream call failed mid-sequence. Streams are not restartable.
type Stream interface {
	Recv() (string, error)
	Close() error
}
