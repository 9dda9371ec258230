package cache

import (
	"strconv"
	"testing"
	"time"
)

func TestLocalSetGetRoundTrip(t *testing.T) {
	c := NewLocal(time.Hour)
	defer c.Close()

	if !c.Set("k", []byte("v1"), 200) {
		t.Fatal("Set should succeed")
	}
	snap, ok := c.Get("k")
	if !ok || string(snap.Body) != "v1" {
		t.Fatalf("Get = %+v, %v", snap, ok)
	}

	c.Set("k", []byte("v2"), 200)
	snap, ok = c.Get("k")
	if !ok || string(snap.Body) != "v2" {
		t.Fatalf("after overwrite, Get = %+v, %v", snap, ok)
	}
}

func TestLocalFlush(t *testing.T) {
	c := NewLocal(time.Hour)
	defer c.Close()
	c.Set("k", []byte("v"), 200)
	c.Flush()
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss after Flush")
	}
}

func TestLocalRejectsEmptyBody(t *testing.T) {
	c := NewLocal(time.Hour)
	defer c.Close()
	if c.Set("k", nil, 200) {
		t.Error("Set with empty body should return false")
	}
	if _, ok := c.Get("k"); ok {
		t.Error("rejected Set must not create an entry")
	}
}

func TestLocalRejectsOversizedBody(t *testing.T) {
	c := NewLocal(time.Hour)
	defer c.Close()
	big := make([]byte, MaxBodySize+1)
	if c.Set("k", big, 200) {
		t.Error("Set with oversized body should return false")
	}
}

func TestLocalRejectedSetDoesNotClobberExisting(t *testing.T) {
	c := NewLocal(time.Hour)
	defer c.Close()
	c.Set("k", []byte("v1"), 200)
	c.Set("k", nil, 200)
	snap, ok := c.Get("k")
	if !ok || string(snap.Body) != "v1" {
		t.Fatalf("existing entry was clobbered by a rejected Set: %+v, %v", snap, ok)
	}
}

func TestLocalFreshnessBoundary(t *testing.T) {
	c := NewLocal(100 * time.Millisecond)
	defer c.Close()
	c.Set("k", []byte("v"), 200)

	_, isStale, ok := c.GetWithFreshness("k")
	if !ok || isStale {
		t.Errorf("immediately after Set: isStale=%v ok=%v, want false true", isStale, ok)
	}

	time.Sleep(90 * time.Millisecond) // past 0.8*100ms
	_, isStale, ok = c.GetWithFreshness("k")
	if !ok || !isStale {
		t.Errorf("past 0.8*TTL: isStale=%v ok=%v, want true true", isStale, ok)
	}
}

func TestLocalEvictionCapOldestFirst(t *testing.T) {
	c := NewLocal(time.Hour)
	defer c.Close()

	for i := 0; i < maxLocalEntries; i++ {
		c.Set("k"+strconv.Itoa(i), []byte("v"), 200)
	}
	if _, ok := c.Get("k0"); !ok {
		t.Fatal("k0 should still be present before overflow")
	}

	c.Set("overflow", []byte("v"), 200)
	if _, ok := c.Get("k0"); ok {
		t.Error("k0 (oldest-inserted) should have been evicted")
	}
	if _, ok := c.Get("overflow"); !ok {
		t.Error("overflow entry should be present")
	}
}

func TestLocalDeleteReturnsCount(t *testing.T) {
	c := NewLocal(time.Hour)
	defer c.Close()
	c.Set("k", []byte("v"), 200)

	if n := c.Delete("k"); n != 1 {
		t.Errorf("Delete = %d, want 1", n)
	}
	if n := c.Delete("k"); n != 0 {
		t.Errorf("second Delete = %d, want 0", n)
	}
}

func TestLocalStatsTracksHitsAndMisses(t *testing.T) {
	c := NewLocal(time.Hour)
	defer c.Close()
	c.Set("k", []byte("v"), 200)

	c.Get("k")
	c.Get("missing")

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("Stats = %+v, want 1 hit 1 miss", stats)
	}
	if stats.Keys != 1 {
		t.Errorf("Stats.Keys = %d, want 1", stats.Keys)
	}
}

func TestLocalConcurrentSetGet(t *testing.T) {
	c := NewLocal(time.Hour)
	defer c.Close()

	done := make(chan struct{})
	for i := 0; i < 20; i++ {
		go func(n int) {
			key := "k" + strconv.Itoa(n%5)
			c.Set(key, []byte("v"), 200)
			c.Get(key)
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < 20; i++ {
		<-done
	}
}
