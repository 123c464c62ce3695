package queue

import (
	"sync"
	"testing"
)

func TestPushPopOrder(t *testing.T) {
	q := New[int]()
	for i := 0; i < 5; i++ {
		q.Push(i)
	}
	if got := q.Len(); got != 5 {
		t.Fatalf("Len() = %d, want 5", got)
	}
	for i := 0; i < 5; i++ {
		v, ok := q.Pop()
		if !ok {
			t.Fatalf("Pop() empty at %d", i)
		}
		if v != i {
			t.Errorf("Pop() = %d, want %d", v, i)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Error("Pop() on drained queue reported a value")
	}
}

func TestPopEmpty(t *testing.T) {
	q := New[string]()
	v, ok := q.Pop()
	if ok || v != "" {
		t.Errorf("Pop() = (%q, %t), want zero value and false", v, ok)
	}
}

func TestConcurrentPush(t *testing.T) {
	q := New[int]()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Push(j)
			}
		}()
	}
	wg.Wait()
	if got := q.Len(); got != 1000 {
		t.Errorf("Len() = %d, want 1000", got)
	}
}
