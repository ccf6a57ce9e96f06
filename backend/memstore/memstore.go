// Package memstore implements an in-memory osm.Backend, used by tests and
// by the loader's -n (dry-run) mode where no real backend connection
// should be made.
package memstore

import (
	"sync"

	"github.com/mapquest/osmserver/osm"
)

// Store is a trivial, thread-safe in-memory key-value store implementing
// osm.Backend. It has no analogue in the teacher repo, which relies on a
// real Cassandra cluster in its own tests (see test/), but follows the
// teacher's preference for hand-written fakes over a mocking framework
// for this kind of low-level component (see helpers.go's fakeDial /
// recordingTransport).
type Store struct {
	mu       sync.RWMutex
	elements map[string][]byte
	slabs    map[string][]byte
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		elements: make(map[string][]byte),
		slabs:    make(map[string][]byte),
	}
}

func elementKey(ns osm.Namespace, id string) (string, error) {
	tag, err := ns.Tag()
	if err != nil {
		return "", err
	}
	return string(tag) + id, nil
}

// RetrieveElement implements osm.Backend.
func (s *Store) RetrieveElement(ns osm.Namespace, id string) ([]byte, error) {
	key, err := elementKey(ns, id)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.elements[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// StoreElement implements osm.Backend.
func (s *Store) StoreElement(ns osm.Namespace, id string, payload []byte) error {
	key, err := elementKey(ns, id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data := make([]byte, len(payload))
	copy(data, payload)
	s.elements[key] = data
	return nil
}

// RetrieveSlab implements osm.Backend.
func (s *Store) RetrieveSlab(ns osm.Namespace, slabKey string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.slabs[slabKey]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// StoreSlab implements osm.Backend.
func (s *Store) StoreSlab(ns osm.Namespace, slabKey string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := make([]byte, len(payload))
	copy(data, payload)
	s.slabs[slabKey] = data
	return nil
}

// RegisterThreads implements osm.Backend. Store is a single shared map
// guarded by a mutex, so no per-thread allocation is needed.
func (s *Store) RegisterThreads(threads []string) error {
	return nil
}

// Close implements osm.Backend.
func (s *Store) Close() error {
	return nil
}

// Len returns the number of element keys stored, for test assertions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.elements)
}

// SlabCount returns the number of slab keys stored, for test assertions.
func (s *Store) SlabCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slabs)
}

// SlabKeys returns every slab key currently stored, for test assertions.
func (s *Store) SlabKeys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.slabs))
	for k := range s.slabs {
		out = append(out, k)
	}
	return out
}
