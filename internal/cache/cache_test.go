package cache

import (
	"testing"
	"time"

	"ledger/internal/log"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func TestLRUCache_GetSet(t *testing.T) {
	clk := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[[]string](2, time.Minute).WithClock(clk.now)

	c.Set("a", []string{"food"})
	got, ok := c.Get("a")
	if !ok || len(got) != 1 || got[0] != "food" {
		t.Fatalf("Get(a) = %v, %v", got, ok)
	}

	clk.advance(2 * time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Error("expected entry to expire")
	}
	if c.Size() != 0 {
		t.Errorf("expired entry should be removed on access, size=%d", c.Size())
	}
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Hour)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("a = %v, %v", v, ok)
	}
	if v, ok := c.Get("c"); !ok || v != 3 {
		t.Errorf("c = %v, %v", v, ok)
	}
}

func TestLRUCache_OverwriteAndDelete(t *testing.T) {
	c := NewLRUCache[int](3, time.Hour)
	c.Set("a", 1)
	c.Set("a", 2)
	if v, _ := c.Get("a"); v != 2 {
		t.Errorf("overwrite: got %d", v)
	}
	if c.Size() != 1 {
		t.Errorf("size = %d, want 1", c.Size())
	}
	c.Delete("a")
	c.Delete("missing")
	if c.Size() != 0 {
		t.Errorf("size after delete = %d", c.Size())
	}
}

func TestLRUCache_CleanExpired(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	c := NewLRUCache[int](10, time.Minute).WithClock(clk.now)
	c.Set("old1", 1)
	c.Set("old2", 2)
	clk.advance(30 * time.Second)
	c.Set("fresh", 3)
	clk.advance(45 * time.Second)

	if n := c.CleanExpired(); n != 2 {
		t.Errorf("CleanExpired() = %d, want 2", n)
	}
	if c.Size() != 1 {
		t.Errorf("size = %d, want 1", c.Size())
	}
}

func TestManager_CleanNowAndStop(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	a := NewLRUCache[int](10, time.Second).WithClock(clk.now)
	b := NewLRUCache[string](10, time.Second).WithClock(clk.now)
	a.Set("x", 1)
	b.Set("y", "z")
	clk.advance(time.Minute)

	m := NewManager(log.Discard())
	m.Register(a)
	m.Register(b)
	if n := m.CleanNow(); n != 2 {
		t.Errorf("CleanNow() = %d, want 2", n)
	}

	m.StartCleanup(time.Millisecond)
	m.StartCleanup(time.Millisecond)
	m.Stop()
	m.Stop()
}

func TestManager_StopWithoutStart(t *testing.T) {
	m := NewManager(nil)
	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked without a running loop")
	}
}
