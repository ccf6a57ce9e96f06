package apiserver

import (
	"encoding/xml"

	"github.com/mapquest/osmserver/osm"
)

// osmDoc is the <osm> wrapper every successful response is rendered
// inside (§6).
type osmDoc struct {
	XMLName    xml.Name       `xml:"osm"`
	Version    string         `xml:"version,attr"`
	Generator  string         `xml:"generator,attr"`
	Bounds     *boundsXML     `xml:"bounds"`
	Nodes      []nodeXML      `xml:"node"`
	Ways       []wayXML       `xml:"way"`
	Relations  []relationXML  `xml:"relation"`
	Changesets []changesetXML `xml:"changeset"`
}

func newOSMDoc() *osmDoc {
	return &osmDoc{Version: osm.Config.APIVersion, Generator: osm.Config.ServerName}
}

type boundsXML struct {
	MinLat string `xml:"minlat,attr"`
	MinLon string `xml:"minlon,attr"`
	MaxLat string `xml:"maxlat,attr"`
	MaxLon string `xml:"maxlon,attr"`
}

type tagXML struct {
	K string `xml:"k,attr"`
	V string `xml:"v,attr"`
}

type nodeXML struct {
	ID   string   `xml:"id,attr"`
	Lat  string   `xml:"lat,attr"`
	Lon  string   `xml:"lon,attr"`
	Tags []tagXML `xml:"tag"`
}

type ndXML struct {
	Ref string `xml:"ref,attr"`
}

type wayXML struct {
	ID    string   `xml:"id,attr"`
	Nodes []ndXML  `xml:"nd"`
	Tags  []tagXML `xml:"tag"`
}

type memberXML struct {
	Type string `xml:"type,attr"`
	Ref  string `xml:"ref,attr"`
	Role string `xml:"role,attr"`
}

type relationXML struct {
	ID      string      `xml:"id,attr"`
	Members []memberXML `xml:"member"`
	Tags    []tagXML    `xml:"tag"`
}

type changesetXML struct {
	ID   string   `xml:"id,attr"`
	Tags []tagXML `xml:"tag"`
}

func tagsXML(tags map[string]string) []tagXML {
	if len(tags) == 0 {
		return nil
	}
	out := make([]tagXML, 0, len(tags))
	for k, v := range tags {
		out = append(out, tagXML{K: k, V: v})
	}
	return out
}

func nodeFromElement(e *osm.Element) nodeXML {
	return nodeXML{
		ID:   e.ID,
		Lat:  osm.DecodeCoordinate(e.Node.Lat, osm.Config.ScaleFactor),
		Lon:  osm.DecodeCoordinate(e.Node.Lon, osm.Config.ScaleFactor),
		Tags: tagsXML(e.Tags),
	}
}

func wayFromElement(e *osm.Element) wayXML {
	w := wayXML{ID: e.ID, Tags: tagsXML(e.Tags)}
	for _, n := range e.Way.Nodes {
		w.Nodes = append(w.Nodes, ndXML{Ref: n})
	}
	return w
}

func relationFromElement(e *osm.Element) relationXML {
	r := relationXML{ID: e.ID, Tags: tagsXML(e.Tags)}
	for _, m := range e.Relation.Members {
		r.Members = append(r.Members, memberXML{Type: string(m.Type), Ref: m.Ref, Role: m.Role})
	}
	return r
}

func changesetFromElement(e *osm.Element) changesetXML {
	return changesetXML{ID: e.ID, Tags: tagsXML(e.Tags)}
}

// addElement appends e to the document under the XML child list matching
// its namespace.
func (doc *osmDoc) addElement(e *osm.Element) {
	switch e.Namespace {
	case osm.NSNode:
		doc.Nodes = append(doc.Nodes, nodeFromElement(e))
	case osm.NSWay:
		doc.Ways = append(doc.Ways, wayFromElement(e))
	case osm.NSRelation:
		doc.Relations = append(doc.Relations, relationFromElement(e))
	case osm.NSChangeset:
		doc.Changesets = append(doc.Changesets, changesetFromElement(e))
	}
}

// capabilitiesDoc is the static <osm><api>...</api></osm> response for
// GET /api/0.6/capabilities.
type capabilitiesDoc struct {
	XMLName   xml.Name     `xml:"osm"`
	Version   string       `xml:"version,attr"`
	Generator string       `xml:"generator,attr"`
	API       capabilities `xml:"api"`
}

type capabilities struct {
	Version  versionRange `xml:"version"`
	Area     areaLimit    `xml:"area"`
	Waynodes waynodeLimit `xml:"waynodes"`
	Timeout  timeoutLimit `xml:"timeout"`
}

type versionRange struct {
	Minimum string `xml:"minimum,attr"`
	Maximum string `xml:"maximum,attr"`
}

type areaLimit struct {
	Maximum string `xml:"maximum,attr"`
}

type waynodeLimit struct {
	Maximum string `xml:"maximum,attr"`
}

type timeoutLimit struct {
	Seconds string `xml:"seconds,attr"`
}
