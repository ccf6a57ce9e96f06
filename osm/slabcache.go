package osm

import "fmt"

// slabIndexKey is the secondary index key (namespace, id).
type slabIndexKey struct {
	ns Namespace
	id string
}

// SlabCache is the two-level slab LRU cache described in §4.3: an inner
// LRU of slab_key -> Slab (C2), plus a flat secondary index (namespace,
// id) -> slab_key. It has no concurrency guarantees of its own; C4 adds
// the locking needed for multi-threaded access.
type SlabCache struct {
	inner      *BoundedLRUBuffer
	secondary  map[slabIndexKey]string
	onEvict    EvictFunc
}

// NewSlabCache constructs a slab cache bounded to hold at most bound
// slabs. onEvict, if non-nil, is invoked with (slab_key, Slab) for each
// slab evicted from the inner LRU, after its secondary entries have
// already been removed.
func NewSlabCache(bound int, onEvict EvictFunc) *SlabCache {
	c := &SlabCache{
		secondary: make(map[slabIndexKey]string),
		onEvict:   onEvict,
	}
	c.inner = NewBoundedLRUBuffer(bound, c.handleEviction)
	return c
}

func (c *SlabCache) handleEviction(key string, value interface{}) {
	slab := value.(Slab)
	for _, id := range slab.IDRange() {
		delete(c.secondary, slabIndexKey{ns: slab.Namespace(), id: id})
	}
	if c.onEvict != nil {
		c.onEvict(key, slab)
	}
}

// InsertSlab adds slab to the cache. It rejects a duplicate slab key and
// rejects insertion if any (namespace, id) it covers is already mapped
// to a different slab.
func (c *SlabCache) InsertSlab(slab Slab) error {
	if _, ok := c.inner.Peek(slab.Key()); ok {
		return ProgrammerErrorf("slab %q already present in cache", slab.Key())
	}
	for _, id := range slab.IDRange() {
		ik := slabIndexKey{ns: slab.Namespace(), id: id}
		if existing, ok := c.secondary[ik]; ok {
			return fmt.Errorf("osm: id %s/%s already mapped to slab %q", slab.Namespace(), id, existing)
		}
	}
	for _, id := range slab.IDRange() {
		c.secondary[slabIndexKey{ns: slab.Namespace(), id: id}] = slab.Key()
	}
	c.inner.Put(slab.Key(), slab)
	return nil
}

// Get looks up (ns, id): ok=false, nil if no slab is known for it;
// ok=true, (false, nil) if the slab is known but the slot is empty;
// ok=true, (true, element) if present. A successful lookup promotes the
// slab, not the individual item.
func (c *SlabCache) Get(ns Namespace, id string) (known bool, present bool, elem *Element) {
	slabKey, ok := c.secondary[slabIndexKey{ns: ns, id: id}]
	if !ok {
		return false, false, nil
	}
	v, ok := c.inner.Get(slabKey)
	if !ok {
		// Secondary index pointed at a slab no longer in the inner LRU;
		// this should not happen since eviction clears secondary entries
		// first, but treat it as an unknown id rather than panicking.
		return false, false, nil
	}
	slab := v.(Slab)
	present, elem = slab.Get(id)
	return true, present, elem
}

// GetSlab exposes the slab descriptor for (ns, id), promoting it to MRU,
// so the ingest path can append to it rather than replace it wholesale.
func (c *SlabCache) GetSlab(ns Namespace, id string) (Slab, bool) {
	slabKey, ok := c.secondary[slabIndexKey{ns: ns, id: id}]
	if !ok {
		return nil, false
	}
	v, ok := c.inner.Get(slabKey)
	if !ok {
		return nil, false
	}
	return v.(Slab), true
}

// GetSlabByKey looks up a slab directly by its slab key, promoting it to
// MRU.
func (c *SlabCache) GetSlabByKey(slabKey string) (Slab, bool) {
	v, ok := c.inner.Get(slabKey)
	if !ok {
		return nil, false
	}
	return v.(Slab), true
}

// RemoveSlab deletes slab and all its secondary entries, without
// invoking the eviction callback.
func (c *SlabCache) RemoveSlab(slab Slab) {
	for _, id := range slab.IDRange() {
		delete(c.secondary, slabIndexKey{ns: slab.Namespace(), id: id})
	}
	c.inner.Delete(slab.Key())
}

// Flush empties both indices, firing the eviction callback for each
// evicted slab in LRU order.
func (c *SlabCache) Flush() {
	c.inner.Flush()
}

// Len returns the number of slabs currently cached.
func (c *SlabCache) Len() int {
	return c.inner.Len()
}
