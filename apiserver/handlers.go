package apiserver

import (
	"encoding/xml"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/mapquest/osmserver/osm"
)

// Handlers bundles the datastore every handler needs, following the
// console's pattern of a package-level DS pointer — except threaded
// explicitly through a struct instead of a global, since an apiserver
// may need to be stood up more than once in the same process (tests).
type Handlers struct {
	ds *osm.Datastore
}

// NewHandlers constructs the handler set backed by ds.
func NewHandlers(ds *osm.Datastore) *Handlers {
	return &Handlers{ds: ds}
}

type errorXML struct {
	XMLName xml.Name `xml:"error"`
	Message string   `xml:"message,attr"`
}

// writeError renders err as an XML error body with the HTTP status its
// osm.Kind maps to (§7).
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if oe, ok := err.(*osm.Error); ok {
		status = oe.HTTPStatus()
	}
	Render.XML(w, status, errorXML{Message: err.Error()})
}

// Capabilities serves GET /api/0.6/capabilities: a static document
// derived from config.
func (h *Handlers) Capabilities(w http.ResponseWriter, req *http.Request) {
	doc := capabilitiesDoc{
		Version:   osm.Config.APIVersion,
		Generator: osm.Config.ServerName,
		API: capabilities{
			Version:  versionRange{Minimum: osm.Config.APIVersion, Maximum: osm.Config.APIVersion},
			Area:     areaLimit{Maximum: "0.25"},
			Waynodes: waynodeLimit{Maximum: "2000"},
			Timeout:  timeoutLimit{Seconds: osm.Config.APICallTimeout},
		},
	}
	Render.XML(w, http.StatusOK, doc)
}

// Map serves GET /api/0.6/map?bbox=w,s,e,n (§4.9).
func (h *Handlers) Map(w http.ResponseWriter, req *http.Request) {
	bbox, err := parseBBox(req.URL.Query().Get("bbox"))
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := osm.QueryBBox(h.ds, bbox)
	if err != nil {
		writeError(w, err)
		return
	}

	doc := newOSMDoc()
	doc.Bounds = &boundsXML{
		MinLat: formatLat(bbox.South),
		MinLon: formatLon(bbox.West),
		MaxLat: formatLat(bbox.North),
		MaxLon: formatLon(bbox.East),
	}
	for _, n := range result.Nodes {
		doc.addElement(n)
	}
	for _, wy := range result.Ways {
		doc.addElement(wy)
	}
	for _, r := range result.Relations {
		doc.addElement(r)
	}
	Render.XML(w, http.StatusOK, doc)
}

// Element serves GET /api/0.6/(changeset|node|way|relation)/<id>.
func (h *Handlers) Element(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)
	ns, err := namespaceFromSingular(vars["namespace"])
	if err != nil {
		writeError(w, err)
		return
	}
	id := vars["id"]

	elem, err := h.ds.Fetch(ns, id)
	if err != nil {
		writeError(w, err)
		return
	}
	if elem == nil {
		writeError(w, osm.NotFoundf("%s %s not found", ns, id))
		return
	}

	doc := newOSMDoc()
	doc.addElement(elem)
	Render.XML(w, http.StatusOK, doc)
}

// MultiElement serves GET /api/0.6/(nodes|ways|relations)?<plural>=id,id,…
func (h *Handlers) MultiElement(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)
	plural := vars["plural"]
	ns, err := namespaceFromPlural(plural)
	if err != nil {
		writeError(w, err)
		return
	}

	raw := req.URL.Query().Get(plural)
	if raw == "" {
		writeError(w, osm.BadRequestf("missing required query parameter %q", plural))
		return
	}
	ids := splitIDs(raw)

	it := h.ds.FetchKeys(ns, ids)
	doc := newOSMDoc()
	for {
		item, ok, err := it.Next()
		if err != nil {
			writeError(w, err)
			return
		}
		if !ok {
			break
		}
		if item.Present {
			doc.addElement(item.Element)
		}
	}
	Render.XML(w, http.StatusOK, doc)
}

// NodeWays serves GET /api/0.6/node/<id>/ways.
func (h *Handlers) NodeWays(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)
	id := vars["id"]

	node, err := h.ds.Fetch(osm.NSNode, id)
	if err != nil {
		writeError(w, err)
		return
	}
	if node == nil {
		writeError(w, osm.NotFoundf("node %s not found", id))
		return
	}

	wayIDs := referencedIDs(node, 'W')
	ways, err := h.fetchAllPresent(osm.NSWay, wayIDs)
	if err != nil {
		writeError(w, err)
		return
	}

	doc := newOSMDoc()
	for _, wy := range ways {
		doc.addElement(wy)
	}
	Render.XML(w, http.StatusOK, doc)
}

// ElementRelations serves GET /api/0.6/(node|way|relation)/<id>/relations.
func (h *Handlers) ElementRelations(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)
	ns, err := namespaceFromSingular(vars["namespace"])
	if err != nil {
		writeError(w, err)
		return
	}
	id := vars["id"]

	elem, err := h.ds.Fetch(ns, id)
	if err != nil {
		writeError(w, err)
		return
	}
	if elem == nil {
		writeError(w, osm.NotFoundf("%s %s not found", ns, id))
		return
	}

	relationIDs := referencedIDs(elem, 'R')
	relations, err := h.fetchAllPresent(osm.NSRelation, relationIDs)
	if err != nil {
		writeError(w, err)
		return
	}

	doc := newOSMDoc()
	for _, r := range relations {
		doc.addElement(r)
	}
	Render.XML(w, http.StatusOK, doc)
}

// ElementFull serves GET /api/0.6/(way|relation)/<id>/full: the element
// itself plus its transitive nodes/ways one hop deep.
func (h *Handlers) ElementFull(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)
	ns, err := namespaceFromSingular(vars["namespace"])
	if err != nil {
		writeError(w, err)
		return
	}
	if ns != osm.NSWay && ns != osm.NSRelation {
		writeError(w, osm.NotImplementedf("full is only defined for way and relation"))
		return
	}
	id := vars["id"]

	elem, err := h.ds.Fetch(ns, id)
	if err != nil {
		writeError(w, err)
		return
	}
	if elem == nil {
		writeError(w, osm.NotFoundf("%s %s not found", ns, id))
		return
	}

	doc := newOSMDoc()
	doc.addElement(elem)

	if ns == osm.NSWay {
		nodes, err := h.fetchAllPresent(osm.NSNode, elem.Way.Nodes)
		if err != nil {
			writeError(w, err)
			return
		}
		for _, n := range nodes {
			doc.addElement(n)
		}
	} else {
		var nodeIDs, wayIDs []string
		for _, m := range elem.Relation.Members {
			switch m.Type {
			case osm.MemberNode:
				nodeIDs = append(nodeIDs, m.Ref)
			case osm.MemberWay:
				wayIDs = append(wayIDs, m.Ref)
			}
		}
		nodes, err := h.fetchAllPresent(osm.NSNode, nodeIDs)
		if err != nil {
			writeError(w, err)
			return
		}
		ways, err := h.fetchAllPresent(osm.NSWay, wayIDs)
		if err != nil {
			writeError(w, err)
			return
		}
		for _, wy := range ways {
			doc.addElement(wy)
			nested, err := h.fetchAllPresent(osm.NSNode, wy.Way.Nodes)
			if err != nil {
				writeError(w, err)
				return
			}
			nodes = append(nodes, nested...)
		}
		seen := make(map[string]struct{})
		for _, n := range nodes {
			if _, ok := seen[n.ID]; ok {
				continue
			}
			seen[n.ID] = struct{}{}
			doc.addElement(n)
		}
	}

	Render.XML(w, http.StatusOK, doc)
}

func (h *Handlers) fetchAllPresent(ns osm.Namespace, ids []string) ([]*osm.Element, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	it := h.ds.FetchKeys(ns, ids)
	var out []*osm.Element
	for {
		item, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if item.Present {
			out = append(out, item.Element)
		}
	}
	return out, nil
}

// referencedIDs collects the id portion of every reference token on elem
// with the given leading namespace tag.
func referencedIDs(elem *osm.Element, tag byte) []string {
	var out []string
	for token := range elem.References {
		if len(token) > 0 && token[0] == tag {
			out = append(out, token[1:])
		}
	}
	return out
}

func splitIDs(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func namespaceFromSingular(s string) (osm.Namespace, error) {
	switch s {
	case "changeset":
		return osm.NSChangeset, nil
	case "node":
		return osm.NSNode, nil
	case "way":
		return osm.NSWay, nil
	case "relation":
		return osm.NSRelation, nil
	default:
		return "", osm.BadRequestf("unknown element type %q", s)
	}
}

func namespaceFromPlural(s string) (osm.Namespace, error) {
	switch s {
	case "nodes":
		return osm.NSNode, nil
	case "ways":
		return osm.NSWay, nil
	case "relations":
		return osm.NSRelation, nil
	default:
		return "", osm.BadRequestf("unknown element collection %q", s)
	}
}

func parseBBox(raw string) (osm.BBox, error) {
	if raw == "" {
		return osm.BBox{}, osm.BadRequestf("missing required query parameter \"bbox\"")
	}
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return osm.BBox{}, osm.BadRequestf("bbox must have exactly 4 comma-separated values, got %d", len(parts))
	}

	values := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return osm.BBox{}, osm.BadRequestf("bbox value %q is not numeric", p)
		}
		values[i] = v
	}

	west, south, east, north := values[0], values[1], values[2], values[3]
	if err := osm.ValidateLon(west); err != nil {
		return osm.BBox{}, err
	}
	if err := osm.ValidateLon(east); err != nil {
		return osm.BBox{}, err
	}
	if err := osm.ValidateLat(south); err != nil {
		return osm.BBox{}, err
	}
	if err := osm.ValidateLat(north); err != nil {
		return osm.BBox{}, err
	}
	if west > east {
		return osm.BBox{}, osm.BadRequestf("bbox west (%v) must not exceed east (%v)", west, east)
	}
	if south > north {
		return osm.BBox{}, osm.BadRequestf("bbox south (%v) must not exceed north (%v)", south, north)
	}

	return osm.BBox{West: west, South: south, East: east, North: north}, nil
}

func formatLat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatLon(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
