package osm

import "sync"

// WritebackFunc hands an evicted slab to its downstream writer — either
// the writeback pool's submit function or a synchronous writer when no
// worker threads are configured (§4.4, §4.5).
type WritebackFunc func(slabKey string, slab Slab)

type submission struct {
	key  string
	slab Slab
}

// IOCache wraps SlabCache (C3) with pending-I/O tracking and waiter
// coordination (§4.4). Its internal data structures, including the
// io_pending set, are guarded by a single mutex with its own condition
// variable, per §5.
type IOCache struct {
	mu   sync.Mutex
	cond *sync.Cond

	cache   *SlabCache
	pending map[string]struct{}
	writer  WritebackFunc

	perSlab func(ns Namespace) int

	toSubmit []submission
}

// NewIOCache constructs an I/O-aware cache bounded to hold at most bound
// slabs, handing evicted slabs to writer. perSlab returns the
// configured per-slab element count for a namespace, needed to recompute
// a slab key from (ns, id) when checking io_pending.
func NewIOCache(bound int, writer WritebackFunc, perSlab func(ns Namespace) int) *IOCache {
	c := &IOCache{
		pending: make(map[string]struct{}),
		writer:  writer,
		perSlab: perSlab,
	}
	c.cond = sync.NewCond(&c.mu)
	c.cache = NewSlabCache(bound, c.handleEviction)
	return c
}

// handleEviction runs while c.mu is held (it fires synchronously inside
// SlabCache.InsertSlab/Flush). It marks the slab pending and queues the
// actual handoff to the writer for after the lock is released, so the
// writer (which may block on a full writeback queue) never runs with the
// cache lock held.
func (c *IOCache) handleEviction(key string, value interface{}) {
	slab := value.(Slab)
	c.pending[key] = struct{}{}
	c.toSubmit = append(c.toSubmit, submission{key: key, slab: slab})
}

// takeSubmissions must be called with c.mu held. It hands back the
// queued evictions and clears the queue, so the caller can release the
// lock before invoking the writer — the writer may block (a full
// writeback queue, or the backend I/O itself in synchronous mode), and
// must never do so with the cache lock held, or it would stall every
// unrelated cache operation for the duration of that I/O.
func (c *IOCache) takeSubmissions() []submission {
	pending := c.toSubmit
	c.toSubmit = nil
	return pending
}

func (c *IOCache) submit(pending []submission) {
	for _, s := range pending {
		c.writer(s.key, s.slab)
	}
}

// InsertSlab adds slab to the cache, submitting any evicted slab to the
// writer.
func (c *IOCache) InsertSlab(slab Slab) error {
	c.mu.Lock()
	err := c.cache.InsertSlab(slab)
	pending := c.takeSubmissions()
	c.mu.Unlock()

	c.submit(pending)
	return err
}

// Get behaves like SlabCache.Get, except that a miss triggers computing
// the slab key for (ns, id) and, if that key is in io_pending, blocking
// until the slab is no longer pending. After waking, the caller should
// retry the fetch, which will go to the backend (§4.4).
func (c *IOCache) Get(ns Namespace, id string) (known bool, present bool, elem *Element) {
	c.mu.Lock()
	defer c.mu.Unlock()

	known, present, elem = c.cache.Get(ns, id)
	if known {
		return known, present, elem
	}

	slabKey, err := MakeSlabKey(ns, id, c.perSlab(ns))
	if err != nil {
		return false, false, nil
	}
	for {
		if _, isPending := c.pending[slabKey]; !isPending {
			return false, false, nil
		}
		c.cond.Wait()
	}
}

// GetSlab behaves like SlabCache.GetSlab.
func (c *IOCache) GetSlab(ns Namespace, id string) (Slab, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.GetSlab(ns, id)
}

// IsIOPending reports whether slabKey is currently being written back.
func (c *IOCache) IsIOPending(slabKey string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[slabKey]
	return ok
}

// IODone is called by the writeback pool once a slab has landed in the
// backend. It removes slabKey from io_pending and wakes all waiters.
func (c *IOCache) IODone(slabKey string) {
	c.mu.Lock()
	delete(c.pending, slabKey)
	c.mu.Unlock()
	c.cond.Broadcast()
}

// Flush empties the cache, submitting every evicted slab to the writer
// in LRU order.
func (c *IOCache) Flush() {
	c.mu.Lock()
	c.cache.Flush()
	pending := c.takeSubmissions()
	c.mu.Unlock()

	c.submit(pending)
}

// Len returns the number of slabs currently cached.
func (c *IOCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}
