package loader

import (
	"encoding/xml"
	"io"

	"github.com/mapquest/osmserver/osm"
)

// Decoder streams top-level OSM elements out of an <osm> document one at
// a time, matching the reference loader's element-by-element iterparse
// walk rather than building a DOM for the whole file.
type Decoder struct {
	xd  *xml.Decoder
	cur *osm.Element
}

var processedElements = map[string]osm.Namespace{
	"changeset": osm.NSChangeset,
	"node":      osm.NSNode,
	"way":       osm.NSWay,
	"relation":  osm.NSRelation,
}

// NewDecoder wraps r, which must hold an <osm>...</osm> document.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{xd: xml.NewDecoder(r)}
}

// Next returns the next top-level element, or (nil, false, nil) once the
// document is exhausted, or an error on malformed XML or an out-of-range
// coordinate.
func (d *Decoder) Next() (*osm.Element, bool, error) {
	for {
		tok, err := d.xd.Token()
		if err == io.EOF {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, osm.BadRequestf("malformed osm xml: %v", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if err := d.startElement(t); err != nil {
				return nil, false, err
			}
		case xml.EndElement:
			if elem, ok := d.endElement(t); ok {
				return elem, true, nil
			}
		}
	}
}

func attr(se xml.StartElement, name string) string {
	for _, a := range se.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func (d *Decoder) startElement(se xml.StartElement) error {
	name := se.Name.Local

	if name == "bound" || name == "bounds" {
		return nil
	}

	if ns, ok := processedElements[name]; ok {
		if d.cur != nil {
			return osm.BadRequestf("nested <%s> inside <%s>; osm elements must not nest", name, d.cur.Namespace)
		}
		elem, err := osm.NewElement(ns, attr(se, "id"))
		if err != nil {
			return err
		}
		if ns == osm.NSNode {
			lat, err := osm.EncodeCoordinate(attr(se, "lat"), osm.Config.ScaleFactor)
			if err != nil {
				return osm.BadRequestf("node %s: bad lat: %v", elem.ID, err)
			}
			lon, err := osm.EncodeCoordinate(attr(se, "lon"), osm.Config.ScaleFactor)
			if err != nil {
				return osm.BadRequestf("node %s: bad lon: %v", elem.ID, err)
			}
			if err := osm.ValidateLat(osm.DecodeCoordinateFloat(lat, osm.Config.ScaleFactor)); err != nil {
				return osm.BadRequestf("node %s: %v", elem.ID, err)
			}
			if err := osm.ValidateLon(osm.DecodeCoordinateFloat(lon, osm.Config.ScaleFactor)); err != nil {
				return osm.BadRequestf("node %s: %v", elem.ID, err)
			}
			elem.Node.Lat = lat
			elem.Node.Lon = lon
		}
		d.cur = elem
		return nil
	}

	if d.cur == nil {
		// Top-level noise (the <osm> root itself); nothing to do.
		return nil
	}

	switch name {
	case "tag":
		d.cur.Tags[attr(se, "k")] = attr(se, "v")
	case "nd":
		if d.cur.Namespace != osm.NSWay {
			return osm.BadRequestf("<nd> outside a <way> (in %s %s)", d.cur.Namespace, d.cur.ID)
		}
		d.cur.Way.Nodes = append(d.cur.Way.Nodes, attr(se, "ref"))
	case "member":
		if d.cur.Namespace != osm.NSRelation {
			return osm.BadRequestf("<member> outside a <relation> (in %s %s)", d.cur.Namespace, d.cur.ID)
		}
		d.cur.Relation.Members = append(d.cur.Relation.Members, osm.Member{
			Ref:  attr(se, "ref"),
			Role: attr(se, "role"),
			Type: osm.MemberType(attr(se, "type")),
		})
	}
	return nil
}

// endElement reports the completed element once its closing tag matches
// the one currently open.
func (d *Decoder) endElement(ee xml.EndElement) (*osm.Element, bool) {
	if d.cur == nil {
		return nil, false
	}
	if _, ok := processedElements[ee.Name.Local]; !ok {
		return nil, false
	}
	elem := d.cur
	d.cur = nil
	return elem, true
}
