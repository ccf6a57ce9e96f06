package osm

import "fmt"

// Namespace identifies which of the fixed set of element kinds a record
// belongs to (§3, "Namespaces").
type Namespace string

const (
	NSChangeset      Namespace = "changeset"
	NSNode           Namespace = "node"
	NSWay            Namespace = "way"
	NSRelation       Namespace = "relation"
	NSGeodoc         Namespace = "geodoc"
	NSDatastoreConfig Namespace = "datastore-config"
)

// Tag returns the single-character backend-key prefix for a namespace.
func (ns Namespace) Tag() (byte, error) {
	switch ns {
	case NSChangeset:
		return 'C', nil
	case NSNode:
		return 'N', nil
	case NSWay:
		return 'W', nil
	case NSRelation:
		return 'R', nil
	case NSGeodoc:
		return 'G', nil
	case NSDatastoreConfig:
		return 'D', nil
	default:
		return 0, ProgrammerErrorf("unknown namespace %q", ns)
	}
}

// Numeric reports whether a namespace's ids are integers and thus
// eligible for numeric (dense-array) slabbing, as opposed to alphabetic
// (single-record) slabbing.
func (ns Namespace) Numeric() bool {
	switch ns {
	case NSChangeset, NSNode, NSWay, NSRelation:
		return true
	default:
		return false
	}
}

// Slabbed reports whether a namespace groups its records into slabs at
// all. geodoc and datastore-config are fetched/stored as standalone
// elements (§4.6 step 4).
func (ns Namespace) Slabbed() bool {
	switch ns {
	case NSGeodoc, NSDatastoreConfig:
		return false
	default:
		return true
	}
}

// NamespaceFromTag is the inverse of Namespace.Tag, used when decoding a
// backend key's leading byte.
func NamespaceFromTag(tag byte) (Namespace, error) {
	switch tag {
	case 'C':
		return NSChangeset, nil
	case 'N':
		return NSNode, nil
	case 'W':
		return NSWay, nil
	case 'R':
		return NSRelation, nil
	case 'G':
		return NSGeodoc, nil
	case 'D':
		return NSDatastoreConfig, nil
	default:
		return "", BadRequestf("unknown namespace tag %q", tag)
	}
}

// MemberType is the type discriminator on a relation member triple.
// Selecting a subset of members must use exactly these three strings
// (see the ingest-path Open Question in spec's Design Notes: the member
// selector must never be confused with a namespace's plural config key).
type MemberType string

const (
	MemberNode     MemberType = "node"
	MemberWay      MemberType = "way"
	MemberRelation MemberType = "relation"
)

// Member is one entry of a relation's ordered member list.
type Member struct {
	Ref  string
	Role string
	Type MemberType
}

// Header is the set of fields common to every element regardless of
// namespace (§9, "Element as open mapping").
type Header struct {
	Namespace  Namespace
	ID         string
	References map[string]struct{}
	Tags       map[string]string
}

// BackReference returns the token other elements use in their
// References set to point back at this element: <nstag><id>.
func (h *Header) BackReference() (string, error) {
	tag, err := h.Namespace.Tag()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%c%s", tag, h.ID), nil
}

// AddReference records a back-reference token, idempotently.
func (h *Header) AddReference(token string) {
	if h.References == nil {
		h.References = make(map[string]struct{})
	}
	h.References[token] = struct{}{}
}

// HasReference reports whether token is already present.
func (h *Header) HasReference(token string) bool {
	_, ok := h.References[token]
	return ok
}

// Element is the polymorphic OSM record described in §3. At most one of
// the namespace-specific payload fields is populated (none for
// datastore-config), selected by Header.Namespace — this is the typed variant called for in §9 in place
// of the source's dynamic attribute bag.
type Element struct {
	Header

	Node      *NodePayload
	Way       *WayPayload
	Relation  *RelationPayload
	Geodoc    *GeodocPayload
	Changeset *ChangesetPayload
}

// NodePayload holds a node's fixed-point encoded coordinates.
type NodePayload struct {
	Lat int64
	Lon int64
}

// WayPayload holds a way's ordered list of referenced node ids.
type WayPayload struct {
	Nodes []string
}

// RelationPayload holds a relation's ordered, heterogeneous member list.
type RelationPayload struct {
	Members []Member
}

// GeodocPayload holds a geohash cell's set of contained node ids and its
// derived bounding box.
type GeodocPayload struct {
	Nodes map[string]struct{}
	BBox  BBox
}

// BBox is a (north, south, east, west) rectangle, matching the wire order
// used throughout §6/§9.
type BBox struct {
	North float64
	South float64
	East  float64
	West  float64
}

// ChangesetPayload is left empty; changesets carry only header fields
// and tags in this read-optimized engine (§1 Non-goals: no changeset
// upload, so only the metadata written at ingest time is modeled).
type ChangesetPayload struct{}

// NewElement constructs an empty Element for namespace ns and id,
// matching the Python reference's new_osm_element factory.
func NewElement(ns Namespace, id string) (*Element, error) {
	e := &Element{
		Header: Header{
			Namespace:  ns,
			ID:         id,
			References: make(map[string]struct{}),
			Tags:       make(map[string]string),
		},
	}
	switch ns {
	case NSNode:
		e.Node = &NodePayload{}
	case NSWay:
		e.Way = &WayPayload{}
	case NSRelation:
		e.Relation = &RelationPayload{}
	case NSGeodoc:
		e.Geodoc = &GeodocPayload{Nodes: make(map[string]struct{})}
	case NSChangeset:
		e.Changeset = &ChangesetPayload{}
	case NSDatastoreConfig:
		// no payload; carried entirely in Tags
	default:
		return nil, BadRequestf("unknown namespace %q", ns)
	}
	return e, nil
}

// Clone returns a deep copy of e that shares no maps or slices with it.
func (e *Element) Clone() *Element {
	c := &Element{
		Header: Header{
			Namespace:  e.Namespace,
			ID:         e.ID,
			References: make(map[string]struct{}, len(e.References)),
			Tags:       make(map[string]string, len(e.Tags)),
		},
	}
	for k := range e.References {
		c.References[k] = struct{}{}
	}
	for k, v := range e.Tags {
		c.Tags[k] = v
	}
	switch e.Namespace {
	case NSNode:
		n := *e.Node
		c.Node = &n
	case NSWay:
		w := WayPayload{Nodes: append([]string(nil), e.Way.Nodes...)}
		c.Way = &w
	case NSRelation:
		r := RelationPayload{Members: append([]Member(nil), e.Relation.Members...)}
		c.Relation = &r
	case NSGeodoc:
		g := GeodocPayload{Nodes: make(map[string]struct{}, len(e.Geodoc.Nodes)), BBox: e.Geodoc.BBox}
		for k := range e.Geodoc.Nodes {
			g.Nodes[k] = struct{}{}
		}
		c.Geodoc = &g
	case NSChangeset:
		cs := *e.Changeset
		c.Changeset = &cs
	}
	return c
}
