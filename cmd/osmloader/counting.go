package main

import (
	"sync/atomic"

	"github.com/mapquest/osmserver/osm"
)

// countingBackend wraps an osm.Backend to tally slab writes and geodoc
// writes for the final ingest summary, without the backend itself
// needing to know it's being counted.
type countingBackend struct {
	osm.Backend

	slabsWritten   int64
	geodocsWritten int64
}

func newCountingBackend(b osm.Backend) *countingBackend {
	return &countingBackend{Backend: b}
}

func (c *countingBackend) StoreSlab(ns osm.Namespace, slabKey string, payload []byte) error {
	atomic.AddInt64(&c.slabsWritten, 1)
	return c.Backend.StoreSlab(ns, slabKey, payload)
}

func (c *countingBackend) StoreElement(ns osm.Namespace, id string, payload []byte) error {
	if ns == osm.NSGeodoc {
		atomic.AddInt64(&c.geodocsWritten, 1)
	}
	return c.Backend.StoreElement(ns, id, payload)
}

func (c *countingBackend) SlabsWritten() int64 {
	return atomic.LoadInt64(&c.slabsWritten)
}

func (c *countingBackend) GeodocsWritten() int64 {
	return atomic.LoadInt64(&c.geodocsWritten)
}
