package osm

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend is a minimal in-package test double, avoiding an import
// cycle with backend/memstore (which itself imports osm).
type fakeBackend struct {
	elements map[string][]byte
	slabs    map[string][]byte
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{elements: map[string][]byte{}, slabs: map[string][]byte{}}
}

func (b *fakeBackend) key(ns Namespace, id string) string {
	tag, _ := ns.Tag()
	return string(tag) + id
}

func (b *fakeBackend) RetrieveElement(ns Namespace, id string) ([]byte, error) {
	return b.elements[b.key(ns, id)], nil
}

func (b *fakeBackend) StoreElement(ns Namespace, id string, payload []byte) error {
	b.elements[b.key(ns, id)] = payload
	return nil
}

func (b *fakeBackend) RetrieveSlab(ns Namespace, slabKey string) ([]byte, error) {
	return b.slabs[slabKey], nil
}

func (b *fakeBackend) StoreSlab(ns Namespace, slabKey string, payload []byte) error {
	b.slabs[slabKey] = payload
	return nil
}

func (b *fakeBackend) RegisterThreads(threads []string) error { return nil }
func (b *fakeBackend) Close() error                            { return nil }

func testGeometry() map[Namespace]SlabGeometry {
	return map[Namespace]SlabGeometry{
		NSNode:      {PerSlab: 8, InlineSize: 1 << 20},
		NSWay:       {PerSlab: 8, InlineSize: 1 << 20},
		NSRelation:  {PerSlab: 8, InlineSize: 1 << 20},
		NSChangeset: {PerSlab: 8, InlineSize: 1 << 20},
	}
}

// TestSingleNodeRoundTrip is end-to-end scenario 1 from §8: store a
// node, finalize, and confirm both the fetch result and the backend's
// raw slab layout.
func TestSingleNodeRoundTrip(t *testing.T) {
	backend := newFakeBackend()
	ds := NewDatastore(backend, 10, 0, 1, testGeometry())

	node, err := NewElement(NSNode, "42")
	require.NoError(t, err)
	lat, err := EncodeCoordinate("12.3456789", 10000000)
	require.NoError(t, err)
	lon, err := EncodeCoordinate("-1.0000000", 10000000)
	require.NoError(t, err)
	node.Node.Lat = lat
	node.Node.Lon = lon

	require.NoError(t, ds.Store(node))
	ds.Finalize()

	got, err := ds.Fetch(NSNode, "42")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(123456789), got.Node.Lat)

	raw, ok := backend.slabs["NL40"]
	require.True(t, ok, "expected backend key NL40 to exist")

	slots, err := DecodeSlotSequence(raw)
	require.NoError(t, err)
	require.Len(t, slots, 8)
	assert.Equal(t, StatusInline, slots[2].Status)
	for i, s := range slots {
		if i == 2 {
			continue
		}
		assert.Equal(t, StatusNotPresent, s.Status)
	}
}

// TestSlabOverflow is end-to-end scenario 2 from §8.
func TestSlabOverflow(t *testing.T) {
	backend := newFakeBackend()
	ds := NewDatastore(backend, 10, 0, 1, testGeometry())

	for i := 0; i <= 8; i++ {
		n, err := NewElement(NSNode, strconv.Itoa(i))
		require.NoError(t, err)
		require.NoError(t, ds.Store(n))
	}
	ds.Finalize()

	assert.Len(t, backend.slabs, 2)
	_, ok0 := backend.slabs["NL0"]
	_, ok8 := backend.slabs["NL8"]
	assert.True(t, ok0)
	assert.True(t, ok8)
}

// TestCrossReferenceIdempotence is end-to-end scenario 3 from §8, plus
// the idempotence property: ingesting the same way twice leaves exactly
// one back-reference token.
func TestCrossReferenceIdempotence(t *testing.T) {
	backend := newFakeBackend()
	ds := NewDatastore(backend, 10, 0, 1, testGeometry())
	gt, err := newTestGeoTable(ds)
	require.NoError(t, err)
	xref := NewXrefMaintainer(ds, gt)

	for _, id := range []string{"1", "2", "3"} {
		n, err := NewElement(NSNode, id)
		require.NoError(t, err)
		require.NoError(t, xref.AddElement(n))
	}

	way, err := NewElement(NSWay, "100")
	require.NoError(t, err)
	way.Way.Nodes = []string{"1", "2", "3"}
	require.NoError(t, xref.AddElement(way))
	require.NoError(t, xref.AddElement(way)) // re-ingest: must be idempotent

	ds.Finalize()

	for _, id := range []string{"1", "2", "3"} {
		n, err := ds.Fetch(NSNode, id)
		require.NoError(t, err)
		require.NotNil(t, n)
		assert.Len(t, n.References, 1)
		assert.True(t, n.HasReference("W100"))
	}
}

func newTestGeoTable(ds *Datastore) (*GeoTable, error) {
	return NewGeoTable(ds, 5, 10000000, 100, 0)
}
