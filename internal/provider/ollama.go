package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"chat-relay/internal/types"
)

// OllamaClient serves completions from a local Ollama server via the official
// API client. Ollama delivers chat responses through a callback; Stream adapts
// that to the pull-based Stream interface.
type OllamaClient struct {
	api   *api.Client
	model string
}

// NewOllamaClient creates a client for the Ollama server at host.
func NewOllamaClient(host, model string) (*OllamaClient, error) {
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	httpClient := &http.Client{Timeout: 5 * time.Minute}
	return &OllamaClient{api: api.NewClient(u, httpClient), model: model}, nil
}

func (c *OllamaClient) Complete(ctx context.Context, messages []types.Message) (string, error) {
	stream := false
	var full strings.Builder
	err := c.api.Chat(ctx, &api.ChatRequest{
		Model:    c.model,
		Messages: toOllamaMessages(messages),
		Stream:   &stream,
	}, func(resp api.ChatResponse) error {
		full.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat failed: %w", err)
	}
	return full.String(), nil
}

func (c *OllamaClient) Stream(ctx context.Context, messages []types.Message) (Stream, error) {
	ctx, cancel := context.WithCancel(ctx)
	st := &ollamaStream{
		fragments: make(chan string),
		result:    make(chan error, 1),
		cancel:    cancel,
	}
	stream := true
	req := &api.ChatRequest{
		Model:    c.model,
		Messages: toOllamaMessages(messages),
		Stream:   &stream,
	}
	go func() {
		err := c.api.Chat(ctx, req, func(resp api.ChatResponse) error {
			if resp.Message.Content == "" {
				return nil
			}
			select {
			case st.fragments <- resp.Message.Content:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		st.result <- err
		close(st.fragments)
	}()
	return st, nil
}

type ollamaStream struct {
	fragments chan string
	result    chan error
	cancel    context.CancelFunc
	final     error
}

func (s *ollamaStream) Recv() (string, error) {
	if s.final != nil {
		return "", s.final
	}
	frag, ok := <-s.fragments
	if ok {
		return frag, nil
	}
	s.final = io.EOF
	if err := <-s.result; err != nil && !errors.Is(err, context.Canceled) {
		s.final = fmt.Errorf("ollama stream interrupted: %w", err)
	}
	return "", s.final
}

func (s *ollamaStream) Close() error {
	s.cancel()
	for range s.fragments {
		// drain so the producer goroutine can exit
	}
	return nil
}

func toOllamaMessages(messages []types.Message) []api.Message {
	out := make([]api.Message, len(messages))
	for i, m := range messages {
		out[i] = api.Message{Role: string(m.Role), Content: m.Content}
	}
	return out
}
