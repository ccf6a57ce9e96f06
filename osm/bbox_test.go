package osm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTileBBoxNonEmptyForDegenerateRectangle(t *testing.T) {
	Config.GeohashLength = 5
	cells, err := TileBBox(BBox{North: 0, South: 0, East: 0, West: 0})
	require.NoError(t, err)
	assert.NotEmpty(t, cells, "tiling must produce at least one cell even for a degenerate rectangle")
}

func TestTileBBoxCoversRequestedArea(t *testing.T) {
	Config.GeohashLength = 5
	cells, err := TileBBox(BBox{North: 1, South: 0, East: 1, West: 0})
	require.NoError(t, err)
	assert.NotEmpty(t, cells)

	seen := make(map[string]bool)
	for _, c := range cells {
		assert.False(t, seen[c], "tiling must not repeat a cell")
		seen[c] = true
	}

	for _, corner := range [][2]float64{{0, 0}, {0, 0.999}, {0.999, 0}, {0.999, 0.999}} {
		assert.True(t, seen[CellForCoordinate(corner[0], corner[1], 5)], "tiling must cover the cell at lat/lon %v", corner)
	}
}

// TestBBoxQueryHalfOpenPartition is end-to-end scenario 4 from §8: nodes
// A at (0,0) and B at (0.5,0.5); querying (-1,-1,1,1) returns both,
// while querying (0.1,0.1,1,1) returns only B.
func TestBBoxQueryHalfOpenPartition(t *testing.T) {
	Config.GeohashLength = 5
	Config.ScaleFactor = 10000000

	backend := newFakeBackend()
	ds := NewDatastore(backend, 100, 0, 1, testGeometry())
	gt, err := NewGeoTable(ds, Config.GeohashLength, Config.ScaleFactor, 100, 0)
	require.NoError(t, err)
	xref := NewXrefMaintainer(ds, gt)

	nodeA, err := NewElement(NSNode, "1")
	require.NoError(t, err)
	nodeA.Node.Lat, _ = EncodeCoordinate("0.0", Config.ScaleFactor)
	nodeA.Node.Lon, _ = EncodeCoordinate("0.0", Config.ScaleFactor)
	require.NoError(t, xref.AddElement(nodeA))

	nodeB, err := NewElement(NSNode, "2")
	require.NoError(t, err)
	nodeB.Node.Lat, _ = EncodeCoordinate("0.5", Config.ScaleFactor)
	nodeB.Node.Lon, _ = EncodeCoordinate("0.5", Config.ScaleFactor)
	require.NoError(t, xref.AddElement(nodeB))

	gt.Flush()
	ds.Finalize()

	result, err := QueryBBox(ds, BBox{West: -1, South: -1, East: 1, North: 1})
	require.NoError(t, err)
	ids := nodeIDs(result.Nodes)
	assert.ElementsMatch(t, []string{"1", "2"}, ids)

	result, err = QueryBBox(ds, BBox{West: 0.1, South: 0.1, East: 1, North: 1})
	require.NoError(t, err)
	ids = nodeIDs(result.Nodes)
	assert.ElementsMatch(t, []string{"2"}, ids)
}

func nodeIDs(elems []*Element) []string {
	out := make([]string, 0, len(elems))
	for _, e := range elems {
		out = append(out, e.ID)
	}
	return out
}
