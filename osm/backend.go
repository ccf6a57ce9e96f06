package osm

// Backend is the contract any single-value-get/set key-value store must
// satisfy to back the engine (§1, §4.6). The backend key for an element
// is <nstag><id>; for a slab it is the slab key (§4.1). A miss is
// reported by returning (nil, nil), never an error — only transport or
// protocol failures are errors (§4.9, "Failure semantics").
type Backend interface {
	RetrieveElement(ns Namespace, id string) ([]byte, error)
	StoreElement(ns Namespace, id string, payload []byte) error
	RetrieveSlab(ns Namespace, slabKey string) ([]byte, error)
	StoreSlab(ns Namespace, slabKey string, payload []byte) error

	// RegisterThreads is called once by the facade with the names of
	// every goroutine-identity that will talk to the backend (the main
	// caller plus each writeback worker), so a backend that needs a
	// per-thread connection can allocate one client per thread. Workers
	// must not be created after registration.
	RegisterThreads(threads []string) error

	// Close releases any resources held by the backend.
	Close() error
}
