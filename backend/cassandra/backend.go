package cassandra

import (
	"fmt"

	"github.com/gocql/gocql"

	"github.com/mapquest/osmserver/osm"
)

// Backend is the Cassandra-backed implementation of osm.Backend. Every
// record, element or slab, lives in a single wide table keyed by its
// opaque backend key (§6, "Backend wire layout"), grounded directly on
// the teacher's cassandra.Datastore's session/cluster handling.
//
// NewBackend should be used to construct one.
type Backend struct {
	cf *gocql.ClusterConfig
	db *gocql.Session
}

// NewBackend creates a Cassandra session from osm.Config.Cassandra and
// wraps it as an osm.Backend.
func NewBackend() (*Backend, error) {
	cf, err := ClusterConfig()
	if err != nil {
		return nil, err
	}
	db, err := cf.CreateSession()
	if err != nil {
		return nil, osm.BackendUnavailablef(err, "failed to create cassandra session")
	}
	return &Backend{cf: cf, db: db}, nil
}

func elementKey(ns osm.Namespace, id string) (string, error) {
	tag, err := ns.Tag()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%c%s", tag, id), nil
}

func (b *Backend) get(key string) ([]byte, error) {
	var value []byte
	err := b.db.Query(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == gocql.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, osm.BackendUnavailablef(err, "get(%s)", key)
	}
	return value, nil
}

func (b *Backend) put(key string, value []byte) error {
	err := b.db.Query(`INSERT INTO kv (key, value) VALUES (?, ?)`, key, value).Exec()
	if err != nil {
		return osm.BackendUnavailablef(err, "put(%s)", key)
	}
	return nil
}

// RetrieveElement implements osm.Backend.
func (b *Backend) RetrieveElement(ns osm.Namespace, id string) ([]byte, error) {
	key, err := elementKey(ns, id)
	if err != nil {
		return nil, err
	}
	return b.get(key)
}

// StoreElement implements osm.Backend.
func (b *Backend) StoreElement(ns osm.Namespace, id string, payload []byte) error {
	key, err := elementKey(ns, id)
	if err != nil {
		return err
	}
	return b.put(key, payload)
}

// RetrieveSlab implements osm.Backend.
func (b *Backend) RetrieveSlab(ns osm.Namespace, slabKey string) ([]byte, error) {
	return b.get(slabKey)
}

// StoreSlab implements osm.Backend.
func (b *Backend) StoreSlab(ns osm.Namespace, slabKey string, payload []byte) error {
	return b.put(slabKey, payload)
}

// RegisterThreads implements osm.Backend. Unlike the membase-style
// backend the reference implementation also supports (ds_membase.py's
// per-thread memcache.Client pool), a gocql.Session is already safe for
// concurrent use by any number of goroutines, so no per-thread
// allocation is needed here; this only logs the registration for
// diagnostics.
func (b *Backend) RegisterThreads(threads []string) error {
	osm.Log().Debugf("cassandra backend: registered %d threads", len(threads))
	return nil
}

// Close implements osm.Backend.
func (b *Backend) Close() error {
	b.db.Close()
	return nil
}
