package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestFrontierAdmit tests duplicate rejection.
func TestFrontierAdmit(t *testing.T) {
	t.Parallel()

	t.Run("admits new URL once", func(t *testing.T) {
		t.Parallel()

		f := NewFrontier()
		if !f.Admit(Entry{URL: "https://a.test/", Depth: 0}) {
			t.Fatal("first admit should succeed")
		}
		if f.Admit(Entry{URL: "https://a.test/", Depth: 1}) {
			t.Error("duplicate admit should fail")
		}
		if f.Len() != 1 {
			t.Errorf("expected 1 queued entry, got %d", f.Len())
		}
		if !f.Seen("https://a.test/") {
			t.Error("admitted URL should be seen")
		}
	})

	t.Run("claimed URL is not admitted again", func(t *testing.T) {
		t.Parallel()

		f := NewFrontier()
		f.Admit(Entry{URL: "https://a.test/"})
		if _, ok := f.ClaimNext(); !ok {
			t.Fatal("expected a claim")
		}
		f.Done()
		if f.Admit(Entry{URL: "https://a.test/"}) {
			t.Error("URL admitted after being claimed")
		}
	})

	t.Run("concurrent admits of one URL succeed exactly once", func(t *testing.T) {
		t.Parallel()

		f := NewFrontier()
		var admitted atomic.Int32
		var wg sync.WaitGroup
		for range 100 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if f.Admit(Entry{URL: "https://a.test/race", Depth: 1}) {
					admitted.Add(1)
				}
			}()
		}
		wg.Wait()

		if admitted.Load() != 1 {
			t.Errorf("expected exactly 1 admit, got %d", admitted.Load())
		}
		if f.Len() != 1 {
			t.Errorf("expected 1 queued entry, got %d", f.Len())
		}
	})

	t.Run("soft queue cap drops and remembers", func(t *testing.T) {
		t.Parallel()

		f := NewFrontier(WithMaxQueue(2))
		f.Admit(Entry{URL: "https://a.test/1"})
		f.Admit(Entry{URL: "https://a.test/2"})
		if f.Admit(Entry{URL: "https://a.test/3"}) {
			t.Error("admit beyond cap should fail")
		}
		if f.Dropped() != 1 {
			t.Errorf("expected 1 dropped, got %d", f.Dropped())
		}

		f.ClaimNext()
		f.Done()
		if f.Admit(Entry{URL: "https://a.test/3"}) {
			t.Error("dropped URL should stay visited")
		}
	})
}

func TestFrontierMarkVisited(t *testing.T) {
	t.Parallel()

	f := NewFrontier()
	if !f.MarkVisited("https://a.test/final") {
		t.Fatal("first mark should succeed")
	}
	if f.MarkVisited("https://a.test/final") {
		t.Error("second mark should fail")
	}
	if f.Admit(Entry{URL: "https://a.test/final", Depth: 1}) {
		t.Error("marked URL should not be admitted")
	}
	if f.Len() != 0 {
		t.Errorf("marking should not queue, got %d entries", f.Len())
	}

	f.Admit(Entry{URL: "https://a.test/queued"})
	if f.MarkVisited("https://a.test/queued") {
		t.Error("admitted URL should count as visited")
	}
}

// TestFrontierClaimNext tests FIFO order and idle tracking.
func TestFrontierClaimNext(t *testing.T) {
	t.Parallel()

	t.Run("claims in FIFO order", func(t *testing.T) {
		t.Parallel()

		f := NewFrontier()
		for i := range 5 {
			f.Admit(Entry{URL: fmt.Sprintf("https://a.test/%d", i), Depth: i})
		}
		for i := range 5 {
			e, ok := f.ClaimNext()
			if !ok {
				t.Fatalf("claim %d failed", i)
			}
			if want := fmt.Sprintf("https://a.test/%d", i); e.URL != want {
				t.Errorf("claim %d = %q, want %q", i, e.URL, want)
			}
			f.Done()
		}
		if _, ok := f.ClaimNext(); ok {
			t.Error("claim on empty frontier should fail")
		}
	})

	t.Run("empty queue with claim in flight is not idle", func(t *testing.T) {
		t.Parallel()

		f := NewFrontier()
		if !f.IsEmptyAndIdle() {
			t.Error("new frontier should be idle")
		}

		f.Admit(Entry{URL: "https://a.test/"})
		if f.IsEmptyAndIdle() {
			t.Error("frontier with queued work is not idle")
		}

		f.ClaimNext()
		if f.IsEmptyAndIdle() {
			t.Error("frontier with a claim in flight is not idle")
		}

		f.Done()
		if !f.IsEmptyAndIdle() {
			t.Error("frontier should be idle after release")
		}
	})
}

// TestFrontierNext tests the blocking claim used by workers.
func TestFrontierNext(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrFrontierExhausted when idle", func(t *testing.T) {
		t.Parallel()

		f := NewFrontier()
		_, err := f.Next(context.Background())
		if !errors.Is(err, ErrFrontierExhausted) {
			t.Errorf("expected ErrFrontierExhausted, got %v", err)
		}
	})

	t.Run("waits for in-flight claim to admit children", func(t *testing.T) {
		t.Parallel()

		f := NewFrontier()
		f.Admit(Entry{URL: "https://a.test/"})
		parent, _ := f.ClaimNext()

		got := make(chan Entry, 1)
		go func() {
			e, err := f.Next(context.Background())
			if err == nil {
				got <- e
			}
			close(got)
		}()

		time.Sleep(20 * time.Millisecond)
		f.Admit(Entry{URL: "https://a.test/child", Depth: parent.Depth + 1})
		f.Done()

		select {
		case e, ok := <-got:
			if !ok {
				t.Fatal("Next returned an error")
			}
			if e.URL != "https://a.test/child" || e.Depth != 1 {
				t.Errorf("unexpected entry %+v", e)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Next did not wake up")
		}
	})

	t.Run("returns context error when cancelled", func(t *testing.T) {
		t.Parallel()

		f := NewFrontier()
		f.Admit(Entry{URL: "https://a.test/"})
		f.ClaimNext()

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			_, err := f.Next(ctx)
			done <- err
		}()
		cancel()

		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Next did not observe cancellation")
		}
	})
}

// TestFrontierDrainLevel tests level claiming.
func TestFrontierDrainLevel(t *testing.T) {
	t.Parallel()

	f := NewFrontier()
	f.Admit(Entry{URL: "https://a.test/1", Depth: 1})
	f.Admit(Entry{URL: "https://a.test/2", Depth: 2})
	f.Admit(Entry{URL: "https://a.test/3", Depth: 1})

	depth, ok := f.MinDepth()
	if !ok || depth != 1 {
		t.Fatalf("MinDepth() = %d, %v", depth, ok)
	}

	level := f.DrainLevel(1)
	if len(level) != 2 || level[0].URL != "https://a.test/1" || level[1].URL != "https://a.test/3" {
		t.Errorf("unexpected level: %+v", level)
	}
	if f.Len() != 1 {
		t.Errorf("expected 1 entry left, got %d", f.Len())
	}
	if f.IsEmptyAndIdle() {
		t.Error("drained entries count as in flight")
	}
	f.Done()
	f.Done()

	if _, ok := f.MinDepth(); !ok {
		t.Error("depth 2 entry should remain")
	}
}
