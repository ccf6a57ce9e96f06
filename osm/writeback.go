package osm

import "sync"

// writebackItem is one unit of work: a slab ready to be packed and
// written through to the backend.
type writebackItem struct {
	ns      Namespace
	slabKey string
	slab    Slab
}

// WritebackPool is the bounded FIFO of work items plus N worker
// goroutines described in §4.5. N == 0 means submissions run
// synchronously on the caller's goroutine.
type WritebackPool struct {
	store      Backend
	encode     func(slab Slab, ids []string, inlineSize int) ([]byte, error)
	inlineSize func(ns Namespace) int
	ioDone     func(slabKey string)

	n     int
	queue chan writebackItem
	wg    sync.WaitGroup
}

// NewWritebackPool constructs a pool with n worker goroutines (n == 0
// for synchronous operation), a bounded queue of the given depth, a
// backend to write through to, and an io-done callback invoked once a
// slab has landed.
func NewWritebackPool(n, queueDepth int, store Backend, inlineSize func(ns Namespace) int, ioDone func(slabKey string)) *WritebackPool {
	p := &WritebackPool{
		store:      store,
		encode:     EncodeSlab,
		inlineSize: inlineSize,
		ioDone:     ioDone,
		n:          n,
	}
	if n > 0 {
		p.queue = make(chan writebackItem, queueDepth)
		for i := 0; i < n; i++ {
			p.wg.Add(1)
			go p.worker()
		}
	}
	return p
}

func (p *WritebackPool) worker() {
	defer p.wg.Done()
	for item := range p.queue {
		p.writeThrough(item)
	}
}

func (p *WritebackPool) writeThrough(item writebackItem) {
	inlineSize := p.inlineSize(item.ns)
	// Elements too large to inline are written under their own element key
	// before the slab whose INDIRECT slot points at them.
	for id, elem := range item.slab.Items() {
		data, err := EncodeElement(elem)
		if err != nil || len(data) <= inlineSize {
			continue
		}
		if err := p.store.StoreElement(item.ns, id, data); err != nil {
			log.Errorf("writeback: failed to store indirect element %s of slab %s: %v", id, item.slabKey, err)
		}
	}
	payload, err := p.encode(item.slab, item.slab.IDRange(), inlineSize)
	if err != nil {
		log.Errorf("writeback: failed to encode slab %s: %v", item.slabKey, err)
		p.ioDone(item.slabKey)
		return
	}
	if err := p.store.StoreSlab(item.ns, item.slabKey, payload); err != nil {
		log.Errorf("writeback: failed to store slab %s: %v", item.slabKey, err)
	}
	p.ioDone(item.slabKey)
}

// Submit enqueues a slab for writeback. It is non-blocking when the
// queue has room and blocks when full, providing backpressure from the
// cache into whoever is causing evictions. On N == 0 it runs
// synchronously on the caller's goroutine.
func (p *WritebackPool) Submit(ns Namespace, slabKey string, slab Slab) {
	item := writebackItem{ns: ns, slabKey: slabKey, slab: slab}
	if p.n == 0 {
		p.writeThrough(item)
		return
	}
	p.queue <- item
}

// Join blocks until the queue is empty and no worker is busy. It must
// only be called from finalize().
func (p *WritebackPool) Join() {
	if p.n == 0 {
		return
	}
	close(p.queue)
	p.wg.Wait()
}
