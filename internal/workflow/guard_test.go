package workflow

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestGuardRejectsSecondAcquire(t *testing.T) {
	g := NewGuard()
	token, ok := g.TryAcquire("lesson-1")
	if !ok || token == "" {
		t.Fatal("first acquire should succeed")
	}
	if _, ok := g.TryAcquire("lesson-1"); ok {
		t.Fatal("second acquire should fail while held")
	}
	if _, ok := g.TryAcquire("lesson-2"); !ok {
		t.Fatal("other identities are independent")
	}
	g.Release("lesson-1", token)
	if g.Held("lesson-1") {
		t.Fatal("release should free the identity")
	}
	if _, ok := g.TryAcquire("lesson-1"); !ok {
		t.Fatal("identity should be reusable after release")
	}
}

func TestGuardIgnoresStaleToken(t *testing.T) {
	g := NewGuard()
	old, _ := g.TryAcquire("x")
	g.Release("x", old)
	current, _ := g.TryAcquire("x")
	g.Release("x", old)
	if !g.Held("x") {
		t.Fatal("stale token must not release a newer claim")
	}
	g.Release("x", current)
	if len(g.Snapshot()) != 0 {
		t.Fatalf("expected empty snapshot, got %v", g.Snapshot())
	}
}

func TestGuardConcurrentAcquireHasOneWinner(t *testing.T) {
	g := NewGuard()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := g.TryAcquire("same"); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins.Load())
	}
}
