package session

import (
	"strings"
	"sync"
	"testing"
	"time"

	"chat-relay/internal/types"
)

func TestResolveOrCreateReturnsSameSession(t *testing.T) {
	st := NewStore(nil)
	first := st.ResolveOrCreate("chat-1")
	second := st.ResolveOrCreate("chat-1")
	if first != second {
		t.Fatalf("expected identical session for repeated id")
	}
	if first.ID() != "chat-1" {
		t.Fatalf("id = %q, want chat-1", first.ID())
	}
	if st.Len() != 1 {
		t.Fatalf("store size = %d, want 1", st.Len())
	}
}

func TestBlankIDGeneratesFreshIdentifier(t *testing.T) {
	st := NewStore(nil)
	seen := map[string]bool{}
	for _, raw := range []string{"", "   ", "\t\n"} {
		sess := st.ResolveOrCreate(raw)
		id := sess.ID()
		if !strings.HasPrefix(id, "c_") {
			t.Fatalf("generated id %q missing c_ prefix", id)
		}
		if len(id) != len("c_")+32 {
			t.Fatalf("generated id %q has unexpected length", id)
		}
		if seen[id] {
			t.Fatalf("id %q generated twice", id)
		}
		seen[id] = true
	}
	if st.Len() != 3 {
		t.Fatalf("store size = %d, want 3", st.Len())
	}
}

func TestExplicitIDTrimmedAndAcceptedVerbatim(t *testing.T) {
	st := NewStore(nil)
	sess := st.ResolveOrCreate("  client-chosen  ")
	if sess.ID() != "client-chosen" {
		t.Fatalf("id = %q, want client-chosen", sess.ID())
	}
	if again := st.ResolveOrCreate("client-chosen"); again != sess {
		t.Fatalf("trimmed and exact ids should resolve to the same session")
	}
}

func TestResetThenRecreateStartsEmpty(t *testing.T) {
	st := NewStore(nil)
	sess := st.ResolveOrCreate("")
	id := sess.ID()
	sess.Append(types.RoleUser, "hello")
	sess.Append(types.RoleAssistant, "world")

	st.Reset(id)
	if st.Len() != 0 {
		t.Fatalf("store size = %d after reset, want 0", st.Len())
	}

	fresh := st.ResolveOrCreate(id)
	if fresh == sess {
		t.Fatalf("recreated session should be a new object")
	}
	if fresh.ID() != id {
		t.Fatalf("recreated id = %q, want %q", fresh.ID(), id)
	}
	if got := fresh.Snapshot(); len(got) != 0 {
		t.Fatalf("recreated history = %v, want empty", got)
	}
}

func TestResetUnknownOrBlankIsNoop(t *testing.T) {
	st := NewStore(nil)
	st.ResolveOrCreate("keep")
	st.Reset("missing")
	st.Reset("   ")
	if st.Len() != 1 {
		t.Fatalf("store size = %d, want 1", st.Len())
	}
}

func TestConcurrentResolveSameIDCreatesOnce(t *testing.T) {
	st := NewStore(nil)
	const workers = 32
	results := make([]*Session, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = st.ResolveOrCreate("shared")
		}(i)
	}
	wg.Wait()
	for i := 1; i < workers; i++ {
		if results[i] != results[0] {
			t.Fatalf("worker %d got a different session object", i)
		}
	}
	if st.Len() != 1 {
		t.Fatalf("store size = %d, want 1", st.Len())
	}
}

func TestConcurrentBlankResolvesDoNotAliasHistories(t *testing.T) {
	st := NewStore(nil)
	const workers = 16
	sessions := make([]*Session, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i] = st.ResolveOrCreate("")
		}(i)
	}
	wg.Wait()

	ids := map[string]bool{}
	for _, sess := range sessions {
		if ids[sess.ID()] {
			t.Fatalf("id %q handed to two callers", sess.ID())
		}
		ids[sess.ID()] = true
	}
	sessions[0].Append(types.RoleUser, "only here")
	for i := 1; i < workers; i++ {
		if len(sessions[i].Snapshot()) != 0 {
			t.Fatalf("history of session %d aliased with session 0", i)
		}
	}
}

func TestPeekNeverCreates(t *testing.T) {
	st := NewStore(nil)
	if st.Peek("ghost") != nil {
		t.Fatalf("peek should not find unmapped id")
	}
	if st.Peek("") != nil {
		t.Fatalf("peek of blank id should be nil")
	}
	if st.Len() != 0 {
		t.Fatalf("peek must not create sessions, size = %d", st.Len())
	}
	sess := st.ResolveOrCreate("real")
	if st.Peek(" real ") != sess {
		t.Fatalf("peek should resolve trimmed id to the existing session")
	}
}

func TestEvictIdleDropsOnlyStaleSessions(t *testing.T) {
	st := NewStore(nil)
	st.ResolveOrCreate("stale")
	time.Sleep(20 * time.Millisecond)
	fresh := st.ResolveOrCreate("fresh")

	if n := st.EvictIdle(10 * time.Millisecond); n != 1 {
		t.Fatalf("evicted = %d, want 1", n)
	}
	if st.Peek("stale") != nil {
		t.Fatalf("stale session should be gone")
	}
	if st.Peek("fresh") != fresh {
		t.Fatalf("fresh session should survive")
	}
}

func TestSnapshotIsDefensiveCopy(t *testing.T) {
	st := NewStore(nil)
	sess := st.ResolveOrCreate("copy")
	sess.Append(types.RoleUser, "original")
	snap := sess.Snapshot()
	snap[0].Content = "mutated"
	if got := sess.Snapshot()[0].Content; got != "original" {
		t.Fatalf("history mutated through snapshot: %q", got)
	}
}
