package osm

import (
	"strconv"
	"sync"
)

// FetchItem is one result of FetchKeys: either a present element or a
// confirmed miss for the requested id.
type FetchItem struct {
	ID      string
	Present bool
	Element *Element
}

// Datastore is the public facade used by both the server and the
// loader (C6, §4.6). It composes the I/O-aware cache (C4) and a
// writeback pool (C5) in front of a pluggable Backend.
type Datastore struct {
	backend Backend
	cache   *IOCache
	pool    *WritebackPool

	geometry map[Namespace]SlabGeometry

	mu sync.Mutex // serializes store() against concurrent slab creation
}

// NewDatastore constructs a facade over backend, with the slab cache
// bounded to slabLRUSize entries and slabLRUThreads writeback workers
// (0 for synchronous writeback). geometry supplies the per-namespace
// PerSlab/InlineSize values recorded in the slab-config record.
func NewDatastore(backend Backend, slabLRUSize, slabLRUThreads, queueDepth int, geometry map[Namespace]SlabGeometry) *Datastore {
	ds := &Datastore{backend: backend, geometry: geometry}

	inlineSize := func(ns Namespace) int { return geometry[ns].InlineSize }

	ds.pool = NewWritebackPool(slabLRUThreads, queueDepth, backend, inlineSize, func(slabKey string) {
		ds.cache.IODone(slabKey)
	})
	ds.cache = NewIOCache(slabLRUSize, func(slabKey string, slab Slab) {
		ds.pool.Submit(slab.Namespace(), slabKey, slab)
	}, func(ns Namespace) int { return geometry[ns].PerSlab })

	return ds
}

// RegisterThreads notifies the backend of every goroutine identity that
// will talk to it — the caller plus each writeback worker — so a backend
// that needs a per-thread connection can allocate one client per thread.
// Call it once, right after NewDatastore: the writeback workers are
// already running then, but they do not use the backend until a slab is
// submitted to them.
func (ds *Datastore) RegisterThreads(threads []string) error {
	return ds.backend.RegisterThreads(threads)
}

func (ds *Datastore) perSlab(ns Namespace) int {
	return ds.geometry[ns].PerSlab
}

// Fetch is a convenience single-key wrapper around FetchKeys. It returns
// nil if the element is not present.
func (ds *Datastore) Fetch(ns Namespace, id string) (*Element, error) {
	it := ds.FetchKeys(ns, []string{id})
	item, ok, err := it.Next()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ProgrammerErrorf("fetch(%s,%s): iterator produced no result", ns, id)
	}
	if _, ok2, _ := it.Next(); ok2 {
		return nil, ProgrammerErrorf("fetch(%s,%s): iterator produced more than one result", ns, id)
	}
	if !item.Present {
		return nil, nil
	}
	return item.Element, nil
}

// KeysIterator is the lazy, pull-based stream returned by FetchKeys.
// Backend I/O for a slab group happens only when the consumer pulls
// into that group, not eagerly, to preserve the memory footprint for
// large id lists (§9, "Coroutine-ish iterators").
type KeysIterator struct {
	ds *Datastore
	ns Namespace

	hits   []FetchItem
	hitPos int

	slabbed    bool
	groups     []pendingGroup
	groupPos   int
	curItems   []FetchItem
	curPos     int
	nonSlabIDs []string
	nonSlabPos int

	accounted map[string]struct{}
	allIDs    []string
	leftPos   int

	err error
}

type pendingGroup struct {
	key string
	ids []string
}

// FetchKeys begins a lazy fetch of ids in namespace ns. See §4.6 for the
// exact step ordering this iterator follows.
func (ds *Datastore) FetchKeys(ns Namespace, ids []string) *KeysIterator {
	it := &KeysIterator{ds: ds, ns: ns, allIDs: ids, accounted: make(map[string]struct{})}

	var misses []string
	for _, id := range ids {
		known, present, elem := ds.cache.Get(ns, id)
		if known {
			it.hits = append(it.hits, FetchItem{ID: id, Present: present, Element: elem})
			it.accounted[id] = struct{}{}
			continue
		}
		misses = append(misses, id)
	}

	it.slabbed = ns.Slabbed()
	if it.slabbed {
		groups, err := GroupKeys(ns, misses, ds.perSlab(ns))
		if err != nil {
			it.err = err
			return it
		}
		for key, idset := range groups {
			group := pendingGroup{key: key}
			for id := range idset {
				group.ids = append(group.ids, id)
			}
			it.groups = append(it.groups, group)
		}
	} else {
		it.nonSlabIDs = misses
	}

	return it
}

// Next returns the next (FetchItem, true, nil) in the sequence, or
// (FetchItem{}, false, nil) once exhausted, or an error if a backend
// operation failed.
func (it *KeysIterator) Next() (FetchItem, bool, error) {
	if it.err != nil {
		return FetchItem{}, false, it.err
	}

	if it.hitPos < len(it.hits) {
		item := it.hits[it.hitPos]
		it.hitPos++
		return item, true, nil
	}

	if it.slabbed {
		for {
			if it.curPos < len(it.curItems) {
				item := it.curItems[it.curPos]
				it.curPos++
				it.accounted[item.ID] = struct{}{}
				return item, true, nil
			}
			if it.groupPos >= len(it.groups) {
				break
			}
			group := it.groups[it.groupPos]
			it.groupPos++
			items, err := it.ds.resolveGroup(it.ns, group)
			if err != nil {
				it.err = err
				return FetchItem{}, false, err
			}
			it.curItems = items
			it.curPos = 0
		}
	} else {
		if it.nonSlabPos < len(it.nonSlabIDs) {
			id := it.nonSlabIDs[it.nonSlabPos]
			it.nonSlabPos++
			item, err := it.ds.resolveNonSlab(it.ns, id)
			if err != nil {
				it.err = err
				return FetchItem{}, false, err
			}
			it.accounted[id] = struct{}{}
			return item, true, nil
		}
	}

	for it.leftPos < len(it.allIDs) {
		id := it.allIDs[it.leftPos]
		it.leftPos++
		if _, ok := it.accounted[id]; ok {
			continue
		}
		it.accounted[id] = struct{}{}
		return FetchItem{ID: id, Present: false}, true, nil
	}

	return FetchItem{}, false, nil
}

// resolveGroup performs the backend retrieve_slab call for one slab
// group, inserts the resulting slab into the cache (which may itself
// trigger evictions and writebacks), and returns the requested items.
func (ds *Datastore) resolveGroup(ns Namespace, group pendingGroup) ([]FetchItem, error) {
	// Another request may have already populated this slab while we were
	// partitioning; re-check before going to the backend.
	if slab, ok := ds.cache.GetSlab(ns, group.ids[0]); ok {
		return itemsFromSlab(slab, group.ids), nil
	}

	slab, err := ds.retrieveAndBuildSlab(ns, group.key)
	if err != nil {
		return nil, err
	}
	if err := ds.cache.InsertSlab(slab); err != nil {
		return nil, err
	}
	return itemsFromSlab(slab, group.ids), nil
}

func itemsFromSlab(slab Slab, ids []string) []FetchItem {
	items := make([]FetchItem, 0, len(ids))
	for _, id := range ids {
		present, elem := slab.Get(id)
		items = append(items, FetchItem{ID: id, Present: present, Element: elem})
	}
	return items
}

// retrieveAndBuildSlab fetches a slab's raw payload from the backend and
// decodes it into an in-memory Slab, resolving any INDIRECT slots via a
// follow-up retrieve_element call.
func (ds *Datastore) retrieveAndBuildSlab(ns Namespace, slabKey string) (Slab, error) {
	raw, err := ds.backend.RetrieveSlab(ns, slabKey)
	if err != nil {
		return nil, BackendUnavailablef(err, "retrieve_slab(%s, %s)", ns, slabKey)
	}

	perSlab := ds.perSlab(ns)
	if raw == nil {
		// No slab has ever been written for this range; build an empty
		// one so callers can still add to it.
		start, err := startForNamespace(ns, slabKey)
		if err != nil {
			return nil, err
		}
		if !ns.Numeric() {
			return NewAlphabeticSlab(ns, slabKey, start), nil
		}
		n, err := StartIndex(slabKey)
		if err != nil {
			return nil, err
		}
		return NewNumericSlab(ns, slabKey, n, perSlab), nil
	}

	slots, err := DecodeSlotSequence(raw)
	if err != nil {
		return nil, err
	}

	if !ns.Numeric() {
		slab := NewAlphabeticSlab(ns, slabKey, slabKeyID(slabKey))
		if len(slots) > 0 && slots[0].Status != StatusNotPresent {
			elem, err := ds.resolveSlot(ns, slots[0])
			if err != nil {
				return nil, err
			}
			if err := slab.Add(slabKeyID(slabKey), elem); err != nil {
				return nil, err
			}
		}
		return slab, nil
	}

	start, err := StartIndex(slabKey)
	if err != nil {
		return nil, err
	}
	slab := NewNumericSlab(ns, slabKey, start, perSlab)
	for i, slot := range slots {
		if slot.Status == StatusNotPresent {
			continue
		}
		elem, err := ds.resolveSlot(ns, slot)
		if err != nil {
			return nil, err
		}
		id := idAt(start, i)
		if err := slab.Add(id, elem); err != nil {
			return nil, err
		}
	}
	return slab, nil
}

func (ds *Datastore) resolveSlot(ns Namespace, slot Slot) (*Element, error) {
	if slot.Status == StatusInline {
		return slot.Element, nil
	}
	if slot.Status == StatusIndirect {
		raw, err := ds.backend.RetrieveElement(ns, slot.Key[1:])
		if err != nil {
			return nil, BackendUnavailablef(err, "retrieve_element for indirect slot %s", slot.Key)
		}
		if raw == nil {
			return nil, BackendProtocolErrorf(nil, "indirect slot %s points at a missing element", slot.Key)
		}
		return DecodeElement(raw)
	}
	return nil, ProgrammerErrorf("unknown slot status %v", slot.Status)
}

func (ds *Datastore) resolveNonSlab(ns Namespace, id string) (FetchItem, error) {
	raw, err := ds.backend.RetrieveElement(ns, id)
	if err != nil {
		return FetchItem{}, BackendUnavailablef(err, "retrieve_element(%s, %s)", ns, id)
	}
	if raw == nil {
		return FetchItem{ID: id, Present: false}, nil
	}
	elem, err := DecodeElement(raw)
	if err != nil {
		return FetchItem{}, err
	}
	return FetchItem{ID: id, Present: true, Element: elem}, nil
}

// Store is the ingest path (§4.6). It looks up or creates the slab for
// element; if the slab exists in cache it adds/overwrites the slot in
// place, otherwise it creates a fresh single-element slab and inserts
// it. It never goes to the backend directly — the writeback pool does,
// driven by evictions and final flush.
func (ds *Datastore) Store(elem *Element) error {
	if !elem.Namespace.Slabbed() {
		return ds.storeNonSlab(elem)
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	if slab, ok := ds.cache.GetSlab(elem.Namespace, elem.ID); ok {
		return slab.Add(elem.ID, elem)
	}

	key, err := MakeSlabKey(elem.Namespace, elem.ID, ds.perSlab(elem.Namespace))
	if err != nil {
		return err
	}
	start, err := StartIndex(key)
	if err != nil {
		return err
	}
	slab := NewNumericSlab(elem.Namespace, key, start, ds.perSlab(elem.Namespace))
	if err := slab.Add(elem.ID, elem); err != nil {
		return err
	}
	return ds.cache.InsertSlab(slab)
}

func (ds *Datastore) storeNonSlab(elem *Element) error {
	payload, err := EncodeElement(elem)
	if err != nil {
		return err
	}
	return ds.backend.StoreElement(elem.Namespace, elem.ID, payload)
}

// RetrieveElement is the direct, uncached path used by components (the
// geodoc indexer) that manage their own LRU independently of the slab
// cache.
func (ds *Datastore) RetrieveElement(ns Namespace, id string) (*Element, error) {
	raw, err := ds.backend.RetrieveElement(ns, id)
	if err != nil {
		return nil, BackendUnavailablef(err, "retrieve_element(%s, %s)", ns, id)
	}
	if raw == nil {
		return nil, nil
	}
	return DecodeElement(raw)
}

// StoreElement is the direct, uncached write used by the geodoc indexer.
func (ds *Datastore) StoreElement(elem *Element) error {
	payload, err := EncodeElement(elem)
	if err != nil {
		return err
	}
	return ds.backend.StoreElement(elem.Namespace, elem.ID, payload)
}

// Finalize flushes the slab cache (which drains into the writeback
// pool) and then joins the pool, per §4.6.
func (ds *Datastore) Finalize() {
	ds.cache.Flush()
	ds.pool.Join()
}

func startForNamespace(ns Namespace, slabKey string) (string, error) {
	if ns.Numeric() {
		return "", nil
	}
	return slabKeyID(slabKey), nil
}

// slabKeyID extracts the id portion of an alphabetic slab key
// (<nstag>L<id>).
func slabKeyID(slabKey string) string {
	for i := 0; i < len(slabKey); i++ {
		if slabKey[i] == 'L' {
			return slabKey[i+1:]
		}
	}
	return ""
}

// idAt formats the numeric id at offset i from a slab's start index.
func idAt(start int64, i int) string {
	return strconv.FormatInt(start+int64(i), 10)
}
