package osm

import "encoding/json"

// wireElement is the JSON-serializable shape of an Element, used by both
// the element codec and the slab codec. Payloads are always JSON:
// EngineConfig.DatastoreCodec is validated at config load but is not
// consulted here, and no binary encoding exists.
type wireElement struct {
	Namespace  Namespace         `json:"namespace"`
	ID         string            `json:"id"`
	References []string          `json:"references,omitempty"`
	Tags       map[string]string `json:"tags,omitempty"`

	Lat   *int64   `json:"lat,omitempty"`
	Lon   *int64   `json:"lon,omitempty"`
	Nodes []string `json:"nodes,omitempty"`

	Members []wireMember `json:"members,omitempty"`

	BBox *BBox `json:"bbox,omitempty"`
}

type wireMember struct {
	Ref  string     `json:"ref"`
	Role string     `json:"role"`
	Type MemberType `json:"type"`
}

func toWire(e *Element) (*wireElement, error) {
	w := &wireElement{
		Namespace: e.Namespace,
		ID:        e.ID,
		Tags:      e.Tags,
	}
	for ref := range e.References {
		w.References = append(w.References, ref)
	}

	switch e.Namespace {
	case NSNode:
		w.Lat = &e.Node.Lat
		w.Lon = &e.Node.Lon
	case NSWay:
		w.Nodes = e.Way.Nodes
	case NSRelation:
		for _, m := range e.Relation.Members {
			w.Members = append(w.Members, wireMember{Ref: m.Ref, Role: m.Role, Type: m.Type})
		}
	case NSGeodoc:
		for id := range e.Geodoc.Nodes {
			w.Nodes = append(w.Nodes, id)
		}
		bb := e.Geodoc.BBox
		w.BBox = &bb
	case NSChangeset, NSDatastoreConfig:
		// header + tags only
	default:
		return nil, ProgrammerErrorf("unknown namespace %q in toWire", e.Namespace)
	}
	return w, nil
}

func fromWire(w *wireElement) (*Element, error) {
	e, err := NewElement(w.Namespace, w.ID)
	if err != nil {
		return nil, err
	}
	for _, ref := range w.References {
		e.AddReference(ref)
	}
	if w.Tags != nil {
		e.Tags = w.Tags
	}

	switch w.Namespace {
	case NSNode:
		if w.Lat != nil {
			e.Node.Lat = *w.Lat
		}
		if w.Lon != nil {
			e.Node.Lon = *w.Lon
		}
	case NSWay:
		e.Way.Nodes = w.Nodes
	case NSRelation:
		for _, m := range w.Members {
			e.Relation.Members = append(e.Relation.Members, Member{Ref: m.Ref, Role: m.Role, Type: m.Type})
		}
	case NSGeodoc:
		for _, id := range w.Nodes {
			e.Geodoc.Nodes[id] = struct{}{}
		}
		if w.BBox != nil {
			e.Geodoc.BBox = *w.BBox
		}
	case NSChangeset, NSDatastoreConfig:
		// header + tags only
	}
	return e, nil
}

// EncodeElement serializes a single element to its backend payload, used
// for individual (non-slabbed) records and for INDIRECT slab slots.
func EncodeElement(e *Element) ([]byte, error) {
	w, err := toWire(e)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, BackendProtocolErrorf(err, "encoding element %s/%s", e.Namespace, e.ID)
	}
	return data, nil
}

// DecodeElement deserializes a single element payload produced by
// EncodeElement.
func DecodeElement(data []byte) (*Element, error) {
	var w wireElement
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, BackendProtocolErrorf(err, "decoding element payload")
	}
	return fromWire(&w)
}

// wireSlot is the JSON-serializable shape of one Slot in a slab's
// encoding.
type wireSlot struct {
	Status  SlotStatus   `json:"status"`
	Element *wireElement `json:"element,omitempty"`
	Key     string       `json:"key,omitempty"`
}

// EncodeSlab serializes slab to its backend payload: an ordered sequence
// of (status, payload) slots, one per id in the slab's range (numeric
// slabs) or the single slot (alphabetic slabs). inlineSize bounds how
// large a single element's encoding may be before it is written
// INDIRECT instead of INLINE (§3).
func EncodeSlab(slab Slab, ids []string, inlineSize int) ([]byte, error) {
	slots := make([]wireSlot, 0, len(ids))
	for _, id := range ids {
		present, elem := slab.Get(id)
		if !present {
			slots = append(slots, wireSlot{Status: StatusNotPresent})
			continue
		}
		w, err := toWire(elem)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(w)
		if err != nil {
			return nil, BackendProtocolErrorf(err, "encoding slot %s in slab %s", id, slab.Key())
		}
		if len(data) > inlineSize {
			key, err := elementKey(elem)
			if err != nil {
				return nil, err
			}
			slots = append(slots, wireSlot{Status: StatusIndirect, Key: key})
			continue
		}
		slots = append(slots, wireSlot{Status: StatusInline, Element: w})
	}
	out, err := json.Marshal(slots)
	if err != nil {
		return nil, BackendProtocolErrorf(err, "encoding slab %s", slab.Key())
	}
	return out, nil
}

func elementKey(e *Element) (string, error) {
	tag, err := e.Namespace.Tag()
	if err != nil {
		return "", err
	}
	return string(tag) + e.ID, nil
}

// DecodeSlotSequence deserializes a slab payload into its raw slot
// sequence. Resolving StatusIndirect slots into full Elements requires a
// backend fetch and is therefore left to the datastore facade (C6) that
// owns the backend connection.
func DecodeSlotSequence(data []byte) ([]Slot, error) {
	var wslots []wireSlot
	if err := json.Unmarshal(data, &wslots); err != nil {
		return nil, BackendProtocolErrorf(err, "decoding slab payload")
	}
	slots := make([]Slot, len(wslots))
	for i, ws := range wslots {
		s := Slot{Status: ws.Status, Key: ws.Key}
		if ws.Status == StatusInline && ws.Element != nil {
			e, err := fromWire(ws.Element)
			if err != nil {
				return nil, err
			}
			s.Element = e
		}
		slots[i] = s
	}
	return slots, nil
}
