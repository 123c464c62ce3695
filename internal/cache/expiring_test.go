package cache

import (
	"testing"
	"time"
)

func TestInsertAndContains(t *testing.T) {
	m := New[string, int](time.Second)
	m.Insert("a", 1)

	if !m.Contains("a") {
		t.Error("Contains(a) = false after insert")
	}
	if m.Contains("b") {
		t.Error("Contains(b) = true, never inserted")
	}
	v, ok := m.Get("a")
	if !ok || v != 1 {
		t.Errorf("Get(a) = (%d, %t), want (1, true)", v, ok)
	}
}

func TestTickSweepsExpiredEntries(t *testing.T) {
	now := time.Unix(1000, 0)
	m := New[string, struct{}](time.Second)
	m.now = func() time.Time { return now }

	m.Insert("old", struct{}{})

	now = now.Add(1500 * time.Millisecond)
	m.Insert("fresh", struct{}{})
	m.Tick()

	if m.Contains("old") {
		t.Error("expired entry survived the sweep")
	}
	if !m.Contains("fresh") {
		t.Error("fresh entry was swept")
	}
}

func TestTickRateLimited(t *testing.T) {
	now := time.Unix(1000, 0)
	m := New[string, struct{}](time.Second)
	m.now = func() time.Time { return now }

	// First tick establishes the sweep timestamp.
	now = now.Add(1100 * time.Millisecond)
	m.Tick()

	m.Insert("a", struct{}{})

	// Entry outlives its TTL, but the next sweep is not due yet.
	now = now.Add(500 * time.Millisecond)
	m.Tick()
	if !m.Contains("a") {
		t.Error("sweep ran before a full TTL elapsed")
	}

	now = now.Add(600 * time.Millisecond)
	m.Tick()
	if m.Contains("a") {
		t.Error("expired entry survived a due sweep")
	}
}
