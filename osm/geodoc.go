package osm

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// GeoTable groups OSM nodes by their geographic coordinates into
// geohash-celled geodocs (C7, §4.7). Nodes are accumulated in memory per
// cell; when a cell is evicted from the table's own bounded LRU (sized
// independently of the main slab cache), the indexer merges the pending
// node ids into the backend's copy of that geodoc.
type GeoTable struct {
	ds        *Datastore
	precision int
	scale     int64

	mu     sync.Mutex
	accum  map[string]map[string]struct{}
	lru    *lru.Cache
	toSend []geoWorkItem

	nthreads int
	queue    chan geoWorkItem
	wg       sync.WaitGroup

	progMu    sync.Mutex
	progCond  *sync.Cond
	inProgress map[string]struct{}
}

type geoWorkItem struct {
	cell  string
	nodes map[string]struct{}
}

// NewGeoTable constructs a geodoc indexer writing through ds, grouping
// nodes at the given geohash precision, with an LRU of lruSize cells and
// nthreads writeback workers (0 for synchronous operation).
func NewGeoTable(ds *Datastore, precision int, scale int64, lruSize, nthreads int) (*GeoTable, error) {
	gt := &GeoTable{
		ds:         ds,
		precision:  precision,
		scale:      scale,
		accum:      make(map[string]map[string]struct{}),
		nthreads:   nthreads,
		inProgress: make(map[string]struct{}),
	}
	gt.progCond = sync.NewCond(&gt.progMu)

	cache, err := lru.NewWithEvict(lruSize, gt.handleEvict)
	if err != nil {
		return nil, ConfigErrorf("geodoc-lru-size invalid: %v", err)
	}
	gt.lru = cache

	if nthreads > 0 {
		gt.queue = make(chan geoWorkItem, nthreads)
		for i := 0; i < nthreads; i++ {
			gt.wg.Add(1)
			go gt.worker()
		}
	}

	return gt, nil
}

// handleEvict runs synchronously inside lru.Cache.Add/Purge while gt.mu
// is held. It only queues the work for dispatch after the caller
// releases the lock, the same pattern IOCache uses to keep the writer
// off the critical section.
func (gt *GeoTable) handleEvict(key, value interface{}) {
	cell := key.(string)
	nodeset := gt.accum[cell]
	delete(gt.accum, cell)
	gt.toSend = append(gt.toSend, geoWorkItem{cell: cell, nodes: nodeset})
}

// takeDispatch must be called with gt.mu held. It hands back the queued
// evictions and clears the queue, so the caller can release the lock
// before handing them off — writeGeodoc does backend I/O, and a full
// worker queue blocks on send, neither of which may happen under gt.mu.
func (gt *GeoTable) takeDispatch() []geoWorkItem {
	pending := gt.toSend
	gt.toSend = nil
	return pending
}

func (gt *GeoTable) dispatch(pending []geoWorkItem) {
	for _, item := range pending {
		if gt.nthreads == 0 {
			gt.writeGeodoc(item.cell, item.nodes)
			continue
		}
		gt.queue <- item
	}
}

func (gt *GeoTable) worker() {
	defer gt.wg.Done()
	for item := range gt.queue {
		gt.progMu.Lock()
		for {
			if _, busy := gt.inProgress[item.cell]; !busy {
				break
			}
			gt.progCond.Wait()
		}
		gt.inProgress[item.cell] = struct{}{}
		gt.progMu.Unlock()

		gt.writeGeodoc(item.cell, item.nodes)

		gt.progMu.Lock()
		delete(gt.inProgress, item.cell)
		gt.progCond.Broadcast()
		gt.progMu.Unlock()
	}
}

// writeGeodoc merges a pending node set into the backend's copy of a
// geodoc: reads the existing geodoc (or creates one with the cell's
// bbox), unions the pending node ids into its node set, and writes it
// back.
func (gt *GeoTable) writeGeodoc(cell string, nodeset map[string]struct{}) {
	geodoc, err := gt.ds.RetrieveElement(NSGeodoc, cell)
	if err != nil {
		log.Errorf("geotable: failed to retrieve geodoc %s: %v", cell, err)
		return
	}
	if geodoc == nil {
		geodoc, err = NewElement(NSGeodoc, cell)
		if err != nil {
			log.Errorf("geotable: failed to construct geodoc %s: %v", cell, err)
			return
		}
		geodoc.Geodoc.BBox = CellBounds(cell)
	}
	for id := range nodeset {
		geodoc.Geodoc.Nodes[id] = struct{}{}
	}
	if err := gt.ds.StoreElement(geodoc); err != nil {
		log.Errorf("geotable: failed to store geodoc %s: %v", cell, err)
	}
}

// Add records that node falls in its geohash cell. node must be a node
// element with valid Lat/Lon.
func (gt *GeoTable) Add(node *Element) error {
	if node.Namespace != NSNode {
		return ProgrammerErrorf("GeoTable.Add called with non-node element %s/%s", node.Namespace, node.ID)
	}

	cell, err := CellForElement(node, gt.scale, gt.precision)
	if err != nil {
		return err
	}

	gt.mu.Lock()

	set, ok := gt.accum[cell]
	if !ok {
		set = make(map[string]struct{})
		gt.accum[cell] = set
	}
	if _, already := set[node.ID]; !already {
		set[node.ID] = struct{}{}
		gt.lru.Add(cell, struct{}{})
	}
	pending := gt.takeDispatch()
	gt.mu.Unlock()

	gt.dispatch(pending)
	return nil
}

// Flush drains both the LRU and the worker queue, per §4.7.
func (gt *GeoTable) Flush() {
	gt.mu.Lock()
	gt.lru.Purge()
	pending := gt.takeDispatch()
	gt.mu.Unlock()

	gt.dispatch(pending)

	if gt.nthreads > 0 {
		close(gt.queue)
		gt.wg.Wait()
	}
}
