package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapquest/osmserver/backend/memstore"
	"github.com/mapquest/osmserver/osm"
)

func testGeometry() map[osm.Namespace]osm.SlabGeometry {
	return map[osm.Namespace]osm.SlabGeometry{
		osm.NSNode:      {PerSlab: 8, InlineSize: 1 << 20},
		osm.NSWay:       {PerSlab: 8, InlineSize: 1 << 20},
		osm.NSRelation:  {PerSlab: 8, InlineSize: 1 << 20},
		osm.NSChangeset: {PerSlab: 8, InlineSize: 1 << 20},
	}
}

func newTestLoader(t *testing.T, opts Options) (*Loader, *osm.Datastore) {
	t.Helper()
	ds := osm.NewDatastore(memstore.New(), 100, 0, 1, testGeometry())
	gt, err := osm.NewGeoTable(ds, 6, osm.Config.ScaleFactor, 100, 0)
	require.NoError(t, err)
	xref := osm.NewXrefMaintainer(ds, gt)
	return NewLoader(xref, opts), ds
}

const sampleDoc = `<?xml version="1.0" encoding="UTF-8"?>
<osm version="0.6" generator="test">
  <bounds minlat="0" minlon="0" maxlat="1" maxlon="1"/>
  <node id="1" lat="12.345" lon="-5.678">
    <tag k="amenity" v="cafe"/>
  </node>
  <node id="2" lat="12.346" lon="-5.679"/>
  <way id="10">
    <nd ref="1"/>
    <nd ref="2"/>
    <tag k="highway" v="residential"/>
  </way>
  <relation id="100">
    <member type="way" ref="10" role="outer"/>
    <member type="node" ref="1" role=""/>
    <tag k="type" v="multipolygon"/>
  </relation>
  <changeset id="500">
    <tag k="comment" v="initial import"/>
  </changeset>
</osm>
`

func TestDecoderStreamsTopLevelElements(t *testing.T) {
	dec := NewDecoder(strings.NewReader(sampleDoc))

	var namespaces []osm.Namespace
	for {
		elem, ok, err := dec.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		namespaces = append(namespaces, elem.Namespace)

		switch elem.ID {
		case "1":
			assert.Equal(t, "cafe", elem.Tags["amenity"])
			assert.NotZero(t, elem.Node.Lat)
		case "10":
			assert.Equal(t, []string{"1", "2"}, elem.Way.Nodes)
		case "100":
			require.Len(t, elem.Relation.Members, 2)
			assert.Equal(t, osm.MemberWay, elem.Relation.Members[0].Type)
			assert.Equal(t, "outer", elem.Relation.Members[0].Role)
		}
	}

	assert.Equal(t,
		[]osm.Namespace{osm.NSNode, osm.NSNode, osm.NSWay, osm.NSRelation, osm.NSChangeset},
		namespaces)
}

func TestLoadFileIngestsAndCrossReferences(t *testing.T) {
	dir := t.TempDir()
	fn := filepath.Join(dir, "sample.osm")
	require.NoError(t, os.WriteFile(fn, []byte(sampleDoc), 0o644))

	l, ds := newTestLoader(t, Options{})
	require.NoError(t, l.LoadFile(fn))
	l.Finish()

	assert.EqualValues(t, 5, l.Stats().Total())

	way, err := ds.Fetch(osm.NSWay, "10")
	require.NoError(t, err)
	require.NotNil(t, way)

	node, err := ds.Fetch(osm.NSNode, "1")
	require.NoError(t, err)
	require.NotNil(t, node)
	assert.True(t, node.HasReference("W10"), "node 1 should be backreferenced by way 10")
	assert.True(t, node.HasReference("R100"), "node 1 should be backreferenced by relation 100")

	relation, err := ds.Fetch(osm.NSRelation, "100")
	require.NoError(t, err)
	require.NotNil(t, relation)
}

func TestLoadFileSkipsChangesetsWhenRequested(t *testing.T) {
	dir := t.TempDir()
	fn := filepath.Join(dir, "sample.osm")
	require.NoError(t, os.WriteFile(fn, []byte(sampleDoc), 0o644))

	l, ds := newTestLoader(t, Options{SkipChangesets: true})
	require.NoError(t, l.LoadFile(fn))
	l.Finish()

	assert.EqualValues(t, 4, l.Stats().Total())

	cs, err := ds.Fetch(osm.NSChangeset, "500")
	require.NoError(t, err)
	assert.Nil(t, cs)
}

func TestOpenSourceRejectsUnsupportedFormats(t *testing.T) {
	dir := t.TempDir()

	pbf := filepath.Join(dir, "extract.pbf")
	require.NoError(t, os.WriteFile(pbf, []byte("x"), 0o644))
	_, err := OpenSource(pbf)
	require.Error(t, err)
	oerr, ok := err.(*osm.Error)
	require.True(t, ok)
	assert.Equal(t, osm.KindNotImplemented, oerr.Kind)

	osc := filepath.Join(dir, "diff.osc")
	require.NoError(t, os.WriteFile(osc, []byte("x"), 0o644))
	_, err = OpenSource(osc)
	require.Error(t, err)
}
