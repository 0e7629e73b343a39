package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"chat-relay/internal/types"
)

func TestOpenAICompleteParsesChoice(t *testing.T) {
	var gotAuth string
	var gotBody chatRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"hello back"}}]}`)
	}))
	defer ts.Close()

	c := NewOpenAIClient("sk-test", ts.URL, "test-model")
	content, err := c.Complete(context.Background(), []types.Message{
		{Role: types.RoleSystem, Content: "sys"},
		{Role: types.RoleUser, Content: "hello"},
	})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if content != "hello back" {
		t.Fatalf("content = %q", content)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("authorization = %q", gotAuth)
	}
	if gotBody.Model != "test-model" || len(gotBody.Messages) != 2 {
		t.Fatalf("request body = %+v", gotBody)
	}
	if gotBody.Stream {
		t.Fatalf("non-streaming request must not set stream")
	}
}

func TestOpenAICompleteSurfacesUpstreamFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer ts.Close()

	c := NewOpenAIClient("sk-test", ts.URL, "test-model")
	_, err := c.Complete(context.Background(), []types.Message{{Role: types.RoleUser, Content: "hi"}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "status=429") {
		t.Fatalf("error = %v, want status in message", err)
	}
}

func TestOpenAIStreamYieldsDeltasUntilDone(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		// First chunk carries only the role, no content; it must be skipped.
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"role\":\"assistant\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer ts.Close()

	c := NewOpenAIClient("sk-test", ts.URL, "test-model")
	st, err := c.Stream(context.Background(), []types.Message{{Role: types.RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	defer st.Close()

	var collected []string
	for {
		frag, err := st.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("recv failed: %v", err)
		}
		collected = append(collected, frag)
	}
	if strings.Join(collected, "") != "Hello" {
		t.Fatalf("fragments = %v", collected)
	}
	// Recv after the end keeps returning EOF.
	if _, err := st.Recv(); !errors.Is(err, io.EOF) {
		t.Fatalf("recv after done = %v, want EOF", err)
	}
}

func TestOpenAIStreamMalformedChunkFailsMidSequence(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\n")
		fmt.Fprint(w, "data: {broken\n\n")
	}))
	defer ts.Close()

	c := NewOpenAIClient("", ts.URL, "test-model")
	st, err := c.Stream(context.Background(), []types.Message{{Role: types.RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	defer st.Close()

	if frag, err := st.Recv(); err != nil || frag != "ok" {
		t.Fatalf("first recv = %q, %v", frag, err)
	}
	if _, err := st.Recv(); err == nil || errors.Is(err, io.EOF) {
		t.Fatalf("expected mid-sequence error, got %v", err)
	}
}

func TestTruncateLimitsErrorBodies(t *testing.T) {
	long := strings.Repeat("x", 500)
	got := truncate(long, 400)
	if len([]rune(got)) != 403 || !strings.HasSuffix(got, "...") {
		t.Fatalf("truncate result length = %d", len(got))
	}
	if truncate("short", 400) != "short" {
		t.Fatalf("short strings must pass through")
	}
}
