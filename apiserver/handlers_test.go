package apiserver

import (
	"encoding/xml"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
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

// newTestHandlers seeds a memstore-backed Datastore with a small node/way/
// relation graph and returns the Handlers wrapping it, mirroring the
// teacher's spoofData() fixture.
func newTestHandlers(t *testing.T) (*Handlers, *osm.Datastore) {
	t.Helper()
	BuildRender()

	ds := osm.NewDatastore(memstore.New(), 100, 0, 1, testGeometry())

	node1, err := osm.NewElement(osm.NSNode, "1")
	require.NoError(t, err)
	node1.Node.Lat, err = osm.EncodeCoordinate("12.345", osm.Config.ScaleFactor)
	require.NoError(t, err)
	node1.Node.Lon, err = osm.EncodeCoordinate("-5.678", osm.Config.ScaleFactor)
	require.NoError(t, err)
	node1.Tags["amenity"] = "cafe"
	require.NoError(t, ds.Store(node1))

	node2, err := osm.NewElement(osm.NSNode, "2")
	require.NoError(t, err)
	node2.Node.Lat, err = osm.EncodeCoordinate("12.346", osm.Config.ScaleFactor)
	require.NoError(t, err)
	node2.Node.Lon, err = osm.EncodeCoordinate("-5.679", osm.Config.ScaleFactor)
	require.NoError(t, err)
	require.NoError(t, ds.Store(node2))

	way, err := osm.NewElement(osm.NSWay, "10")
	require.NoError(t, err)
	way.Way.Nodes = []string{"1", "2"}
	way.Tags["highway"] = "residential"
	node1.AddReference("W10")
	node2.AddReference("W10")
	require.NoError(t, ds.Store(node1))
	require.NoError(t, ds.Store(node2))
	require.NoError(t, ds.Store(way))

	relation, err := osm.NewElement(osm.NSRelation, "100")
	require.NoError(t, err)
	relation.Relation.Members = []osm.Member{
		{Type: osm.MemberWay, Ref: "10", Role: "outer"},
	}
	way.AddReference("R100")
	require.NoError(t, ds.Store(way))
	require.NoError(t, ds.Store(relation))

	// Index both nodes into geodocs so the /map bbox query can find them.
	gt, err := osm.NewGeoTable(ds, osm.Config.GeohashLength, osm.Config.ScaleFactor, 100, 0)
	require.NoError(t, err)
	require.NoError(t, gt.Add(node1))
	require.NoError(t, gt.Add(node2))
	gt.Flush()

	return NewHandlers(ds), ds
}

// serveRoute builds a one-route mux.Router the way the teacher's
// callControllerFull does, and returns the recorded response.
func serveRoute(method, url, pattern string, controller func(w http.ResponseWriter, req *http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, nil)
	router := mux.NewRouter()
	router.HandleFunc(pattern, controller)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCapabilities(t *testing.T) {
	h, _ := newTestHandlers(t)
	w := serveRoute(http.MethodGet, "http://localhost/api/0.6/capabilities", "/api/0.6/capabilities", h.Capabilities)
	require.Equal(t, http.StatusOK, w.Code)

	var doc capabilitiesDoc
	require.NoError(t, xml.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, osm.Config.APIVersion, doc.Version)
	assert.Equal(t, osm.Config.APIVersion, doc.API.Version.Minimum)
}

func TestElementNode(t *testing.T) {
	h, _ := newTestHandlers(t)
	w := serveRoute(http.MethodGet, "http://localhost/api/0.6/node/1", "/api/0.6/{namespace}/{id}", h.Element)
	require.Equal(t, http.StatusOK, w.Code)

	var doc osmDoc
	require.NoError(t, xml.Unmarshal(w.Body.Bytes(), &doc))
	require.Len(t, doc.Nodes, 1)
	assert.Equal(t, "1", doc.Nodes[0].ID)
	assert.Equal(t, "cafe", doc.Nodes[0].Tags[0].V)
}

func TestElementNotFound(t *testing.T) {
	h, _ := newTestHandlers(t)
	w := serveRoute(http.MethodGet, "http://localhost/api/0.6/node/999", "/api/0.6/{namespace}/{id}", h.Element)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var errDoc errorXML
	require.NoError(t, xml.Unmarshal(w.Body.Bytes(), &errDoc))
	assert.Contains(t, errDoc.Message, "999")
}

func TestMultiElement(t *testing.T) {
	h, _ := newTestHandlers(t)
	w := serveRoute(http.MethodGet, "http://localhost/api/0.6/nodes?nodes=1,2,999", "/api/0.6/{plural}", h.MultiElement)
	require.Equal(t, http.StatusOK, w.Code)

	var doc osmDoc
	require.NoError(t, xml.Unmarshal(w.Body.Bytes(), &doc))
	assert.Len(t, doc.Nodes, 2)
}

func TestNodeWays(t *testing.T) {
	h, _ := newTestHandlers(t)
	w := serveRoute(http.MethodGet, "http://localhost/api/0.6/node/1/ways", "/api/0.6/node/{id}/ways", h.NodeWays)
	require.Equal(t, http.StatusOK, w.Code)

	var doc osmDoc
	require.NoError(t, xml.Unmarshal(w.Body.Bytes(), &doc))
	require.Len(t, doc.Ways, 1)
	assert.Equal(t, "10", doc.Ways[0].ID)
}

func TestElementRelations(t *testing.T) {
	h, _ := newTestHandlers(t)
	w := serveRoute(http.MethodGet, "http://localhost/api/0.6/way/10/relations", "/api/0.6/{namespace}/{id}/relations", h.ElementRelations)
	require.Equal(t, http.StatusOK, w.Code)

	var doc osmDoc
	require.NoError(t, xml.Unmarshal(w.Body.Bytes(), &doc))
	require.Len(t, doc.Relations, 1)
	assert.Equal(t, "100", doc.Relations[0].ID)
}

func TestElementFullWay(t *testing.T) {
	h, _ := newTestHandlers(t)
	w := serveRoute(http.MethodGet, "http://localhost/api/0.6/way/10/full", "/api/0.6/{namespace}/{id}/full", h.ElementFull)
	require.Equal(t, http.StatusOK, w.Code)

	var doc osmDoc
	require.NoError(t, xml.Unmarshal(w.Body.Bytes(), &doc))
	assert.Len(t, doc.Ways, 1)
	assert.Len(t, doc.Nodes, 2)
}

func TestElementFullRejectsNode(t *testing.T) {
	h, _ := newTestHandlers(t)
	w := serveRoute(http.MethodGet, "http://localhost/api/0.6/node/1/full", "/api/0.6/{namespace}/{id}/full", h.ElementFull)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestMapBBox(t *testing.T) {
	h, _ := newTestHandlers(t)
	w := serveRoute(http.MethodGet, "http://localhost/api/0.6/map?bbox=-6,12,-5,13", "/api/0.6/map", h.Map)
	require.Equal(t, http.StatusOK, w.Code)

	var doc osmDoc
	require.NoError(t, xml.Unmarshal(w.Body.Bytes(), &doc))
	require.NotNil(t, doc.Bounds)
	assert.Len(t, doc.Nodes, 2)
	assert.Len(t, doc.Ways, 1)
}

func TestMapBBoxMissing(t *testing.T) {
	h, _ := newTestHandlers(t)
	w := serveRoute(http.MethodGet, "http://localhost/api/0.6/map", "/api/0.6/map", h.Map)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParseBBoxInvertedRange(t *testing.T) {
	_, err := parseBBox("10,12,-5,13")
	require.Error(t, err)
	oerr, ok := err.(*osm.Error)
	require.True(t, ok)
	assert.Equal(t, osm.KindBadRequest, oerr.Kind)
}
