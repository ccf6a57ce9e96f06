package osm

import "testing"

func TestBoundedLRUBufferEvictsExactlyOnePerOverflow(t *testing.T) {
	var evicted []string
	buf := NewBoundedLRUBuffer(2, func(k string, v interface{}) {
		evicted = append(evicted, k)
	})

	buf.Put("a", 1)
	buf.Put("b", 2)
	if len(evicted) != 0 {
		t.Fatalf("no eviction expected yet, got %v", evicted)
	}

	buf.Put("c", 3)
	if len(evicted) != 1 || evicted[0] != "a" {
		t.Fatalf("expected exactly one eviction of the LRU entry 'a', got %v", evicted)
	}
	if buf.Len() != 2 {
		t.Fatalf("buffer should still hold bound=2 entries, got %d", buf.Len())
	}
}

func TestBoundedLRUBufferGetPromotes(t *testing.T) {
	var evicted []string
	buf := NewBoundedLRUBuffer(2, func(k string, v interface{}) {
		evicted = append(evicted, k)
	})

	buf.Put("a", 1)
	buf.Put("b", 2)
	buf.Get("a") // promote a to MRU, b is now LRU
	buf.Put("c", 3)

	if len(evicted) != 1 || evicted[0] != "b" {
		t.Fatalf("expected 'b' evicted after promoting 'a', got %v", evicted)
	}
}

func TestBoundedLRUBufferFlushOrder(t *testing.T) {
	var evicted []string
	buf := NewBoundedLRUBuffer(10, func(k string, v interface{}) {
		evicted = append(evicted, k)
	})

	buf.Put("a", 1)
	buf.Put("b", 2)
	buf.Put("c", 3)
	buf.Flush()

	want := []string{"a", "b", "c"}
	if len(evicted) != len(want) {
		t.Fatalf("expected %d evictions, got %d", len(want), len(evicted))
	}
	for i, k := range want {
		if evicted[i] != k {
			t.Errorf("flush order[%d] = %q, want %q", i, evicted[i], k)
		}
	}
	if buf.Len() != 0 {
		t.Errorf("buffer should be empty after flush, got %d entries", buf.Len())
	}
}

func TestBoundedLRUBufferPop(t *testing.T) {
	buf := NewBoundedLRUBuffer(10, nil)
	buf.Put("a", 1)
	buf.Put("b", 2)

	k, v, ok := buf.Pop()
	if !ok || k != "a" || v.(int) != 1 {
		t.Fatalf("Pop() = (%q, %v, %v), want (a, 1, true)", k, v, ok)
	}
	if buf.Len() != 1 {
		t.Errorf("expected 1 entry remaining, got %d", buf.Len())
	}
}

func TestBoundedLRUBufferDelete(t *testing.T) {
	var evicted []string
	buf := NewBoundedLRUBuffer(10, func(k string, v interface{}) {
		evicted = append(evicted, k)
	})
	buf.Put("a", 1)
	buf.Delete("a")
	if _, ok := buf.Get("a"); ok {
		t.Error("expected miss after delete")
	}
	if len(evicted) != 0 {
		t.Error("Delete must not invoke the eviction callback")
	}
}
