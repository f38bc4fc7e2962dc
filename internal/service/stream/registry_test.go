package stream

import (
	"context"
	"testing"
	"time"
)

func TestRegistryAddGetRemove(t *testing.T) {
	reg := NewRegistry()
	sess := newSession("sess-1", DefaultOptions(), &fakeEngine{}, nil)

	reg.Add(sess)
	if reg.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", reg.Len())
	}

	got, ok := reg.Get("sess-1")
	if !ok || got != sess {
		t.Fatalf("Get returned wrong session")
	}

	reg.Remove("sess-1")
	if _, ok := reg.Get("sess-1"); ok {
		t.Fatalf("session still present after Remove")
	}
	if reg.Len() != 0 {
		t.Fatalf("expected empty registry")
	}
}

func TestRegistrySnapshot(t *testing.T) {
	reg := NewRegistry()
	reg.Add(newSession("a", DefaultOptions(), &fakeEngine{}, nil))
	reg.Add(newSession("b", DefaultOptions(), &fakeEngine{}, nil))

	snap := reg.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 stats entries, got %d", len(snap))
	}
	seen := map[string]bool{}
	for _, st := range snap {
		seen[st.ID] = true
		if st.State != StateConnecting.String() {
			t.Fatalf("unexpected state for %s: %s", st.ID, st.State)
		}
	}
	if !seen["a"] || !seen["b"] {
		t.Fatalf("snapshot missing sessions: %v", seen)
	}
}

func TestCloseAllShutsSessionsDown(t *testing.T) {
	mgr := NewManager(testOptions(), &fakeEngine{}, nil)
	a := mgr.Open()
	b := mgr.Open()

	mgr.Registry().CloseAll()
	awaitDone(t, a)
	awaitDone(t, b)

	if mgr.Registry().Len() != 0 {
		t.Fatalf("registry not empty after CloseAll: %d", mgr.Registry().Len())
	}
}

func TestManagerShutdownWaits(t *testing.T) {
	mgr := NewManager(testOptions(), &fakeEngine{}, nil)
	sess := mgr.Open()

	done := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		mgr.Shutdown(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("Shutdown did not return")
	}
	if sess.State() != StateClosed {
		t.Fatalf("expected closed session after shutdown, got %s", sess.State())
	}
}
