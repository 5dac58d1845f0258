package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func newMemo(t *testing.T, size int) *Memo[string, int] {
	t.Helper()
	m, err := New[string, int]("test", size, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return m
}

// TestMemo_HitAfterLoad verifies a loaded value is served from cache.
func TestMemo_HitAfterLoad(t *testing.T) {
	m := newMemo(t, 4)
	calls := 0
	load := func() (int, error) {
		calls++
		return 42, nil
	}

	v, hit, err := m.GetOrLoad("k", load)
	if err != nil || v != 42 || hit {
		t.Fatalf("first call: got %d, hit=%v, err=%v", v, hit, err)
	}
	v, hit, err = m.GetOrLoad("k", load)
	if err != nil || v != 42 || !hit {
		t.Fatalf("second call: got %d, hit=%v, err=%v", v, hit, err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 load, got %d", calls)
	}
}

// TestMemo_ClearStartsNewGeneration verifies nothing from before Clear is served.
func TestMemo_ClearStartsNewGeneration(t *testing.T) {
	m := newMemo(t, 4)
	_, _, _ = m.GetOrLoad("k", func() (int, error) { return 1, nil })

	m.Clear()

	if _, ok := m.Get("k"); ok {
		t.Fatal("expected miss after Clear")
	}
	if m.Generation() != 1 {
		t.Fatalf("expected generation 1, got %d", m.Generation())
	}
	v, hit, _ := m.GetOrLoad("k", func() (int, error) { return 2, nil })
	if v != 2 || hit {
		t.Fatalf("expected fresh load of 2, got %d (hit=%v)", v, hit)
	}
}

// TestMemo_LoadStraddlingClearIsDiscarded verifies a load that began before
// Clear does not populate the new generation.
func TestMemo_LoadStraddlingClearIsDiscarded(t *testing.T) {
	m := newMemo(t, 4)
	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan int)
	go func() {
		v, _, _ := m.GetOrLoad("k", func() (int, error) {
			close(started)
			<-release
			return 1, nil
		})
		done <- v
	}()

	<-started
	m.Clear()
	close(release)

	if v := <-done; v != 1 {
		t.Fatalf("caller should still receive its own load, got %d", v)
	}
	if _, ok := m.Get("k"); ok {
		t.Fatal("stale load must not be cached in the new generation")
	}
}

// TestMemo_ErrorsAreNotCached verifies a failed load is retried by the next caller.
func TestMemo_ErrorsAreNotCached(t *testing.T) {
	m := newMemo(t, 4)

	_, _, err := m.GetOrLoad("k", func() (int, error) { return 0, errors.New("boom") })
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if m.Len() != 0 {
		t.Fatalf("expected empty cache, got %d entries", m.Len())
	}

	v, _, err := m.GetOrLoad("k", func() (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Fatalf("expected 7, got %d (%v)", v, err)
	}
}

// TestMemo_ConcurrentMissesShareLoad verifies concurrent callers trigger one load.
func TestMemo_ConcurrentMissesShareLoad(t *testing.T) {
	m := newMemo(t, 4)
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	results := make([]int, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _, _ := m.GetOrLoad("k", func() (int, error) {
				calls.Add(1)
				<-release
				return 9, nil
			})
			results[i] = v
		}(i)
	}
	close(release)
	wg.Wait()

	for i, v := range results {
		if v != 9 {
			t.Fatalf("caller %d: expected 9, got %d", i, v)
		}
	}
	// Late arrivals may find the value cached; none may load a second time.
	if calls.Load() != 1 {
		t.Fatalf("expected 1 load, got %d", calls.Load())
	}
}

// TestMemo_Bounded verifies the least recently used entry is evicted.
func TestMemo_Bounded(t *testing.T) {
	m := newMemo(t, 2)
	for _, k := range []string{"a", "b", "c"} {
		k := k
		_, _, _ = m.GetOrLoad(k, func() (int, error) { return len(k), nil })
	}

	if m.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", m.Len())
	}
	if _, ok := m.Get("a"); ok {
		t.Fatal("expected oldest entry to be evicted")
	}
}
