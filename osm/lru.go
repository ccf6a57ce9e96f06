package osm

import "container/list"

// EvictFunc is invoked exactly once per overflow, or once per entry
// during Flush, with the evicted key and value.
type EvictFunc func(key string, value interface{})

type lruEntry struct {
	key   string
	value interface{}
}

// BoundedLRUBuffer is a fixed-capacity mapping with a recency order and
// an eviction callback (§4.2). It has no concurrency guarantees of its
// own; callers needing thread-safety (C3/C4) wrap it in a mutex.
type BoundedLRUBuffer struct {
	bound    int
	callback EvictFunc

	order *list.List // front = LRU, back = MRU
	index map[string]*list.Element
}

// NewBoundedLRUBuffer constructs a buffer with the given capacity and
// optional eviction callback.
func NewBoundedLRUBuffer(bound int, callback EvictFunc) *BoundedLRUBuffer {
	return &BoundedLRUBuffer{
		bound:    bound,
		callback: callback,
		order:    list.New(),
		index:    make(map[string]*list.Element),
	}
}

// Put inserts or updates k. If k is already present it is moved to MRU
// and its value replaced. If the insertion pushes the buffer over bound,
// the LRU entry is evicted and the callback (if any) invoked with it.
// Exactly one eviction happens per overflow.
func (b *BoundedLRUBuffer) Put(k string, v interface{}) {
	if el, ok := b.index[k]; ok {
		el.Value.(*lruEntry).value = v
		b.order.MoveToBack(el)
		return
	}

	el := b.order.PushBack(&lruEntry{key: k, value: v})
	b.index[k] = el

	if b.order.Len() > b.bound {
		b.evictOne()
	}
}

func (b *BoundedLRUBuffer) evictOne() {
	front := b.order.Front()
	if front == nil {
		return
	}
	entry := front.Value.(*lruEntry)
	b.order.Remove(front)
	delete(b.index, entry.key)
	if b.callback != nil {
		b.callback(entry.key, entry.value)
	}
}

// Get returns the value for k and promotes it to MRU. ok is false on a
// miss.
func (b *BoundedLRUBuffer) Get(k string) (v interface{}, ok bool) {
	el, found := b.index[k]
	if !found {
		return nil, false
	}
	b.order.MoveToBack(el)
	return el.Value.(*lruEntry).value, true
}

// Peek returns the value for k without changing its recency.
func (b *BoundedLRUBuffer) Peek(k string) (v interface{}, ok bool) {
	el, found := b.index[k]
	if !found {
		return nil, false
	}
	return el.Value.(*lruEntry).value, true
}

// Delete removes k without invoking the eviction callback.
func (b *BoundedLRUBuffer) Delete(k string) {
	el, found := b.index[k]
	if !found {
		return
	}
	b.order.Remove(el)
	delete(b.index, k)
}

// Len returns the current number of entries.
func (b *BoundedLRUBuffer) Len() int {
	return b.order.Len()
}

// Pop returns and removes the current LRU entry, without invoking the
// callback. ok is false if the buffer is empty.
func (b *BoundedLRUBuffer) Pop() (k string, v interface{}, ok bool) {
	front := b.order.Front()
	if front == nil {
		return "", nil, false
	}
	entry := front.Value.(*lruEntry)
	b.order.Remove(front)
	delete(b.index, entry.key)
	return entry.key, entry.value, true
}

// Flush drains all entries to the callback in LRU to MRU order, leaving
// the buffer empty.
func (b *BoundedLRUBuffer) Flush() {
	for b.order.Len() > 0 {
		front := b.order.Front()
		entry := front.Value.(*lruEntry)
		b.order.Remove(front)
		delete(b.index, entry.key)
		if b.callback != nil {
			b.callback(entry.key, entry.value)
		}
	}
}

// Keys returns all keys in LRU to MRU order.
func (b *BoundedLRUBuffer) Keys() []string {
	out := make([]string, 0, b.order.Len())
	for el := b.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*lruEntry).key)
	}
	return out
}
