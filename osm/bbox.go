package osm

import "strings"

// maxTileSteps bounds the tiling walk so a malformed or degenerate bbox
// cannot spin forever; any real deployment's precision/bbox combination
// stays several orders of magnitude under this.
const maxTileSteps = 1 << 20

// TileBBox walks geohash cells at the given precision covering bbox,
// per §4.9 step 1: start at (south, west); for each row, take the cell's
// east edge to step right until passing east; then take the row's first
// cell's north edge to step up until passing north. North/south are
// clamped by MaxGeohashLat. The returned set is non-empty even for a
// degenerate (zero-area) rectangle.
func TileBBox(bbox BBox) ([]string, error) {
	south := ClampGeohashLat(bbox.South)
	north := ClampGeohashLat(bbox.North)

	var cells []string
	seen := make(map[string]struct{})

	lat := south
	steps := 0
	for {
		steps++
		if steps > maxTileSteps {
			return nil, ProgrammerErrorf("TileBBox: exceeded %d row steps, bbox=%+v", maxTileSteps, bbox)
		}

		rowFirstCell := CellForCoordinate(lat, bbox.West, Config.GeohashLength)
		rowBounds := CellBounds(rowFirstCell)

		lon := bbox.West
		colSteps := 0
		for {
			colSteps++
			if colSteps > maxTileSteps {
				return nil, ProgrammerErrorf("TileBBox: exceeded %d column steps, bbox=%+v", maxTileSteps, bbox)
			}

			cell := CellForCoordinate(lat, lon, Config.GeohashLength)
			if _, ok := seen[cell]; !ok {
				seen[cell] = struct{}{}
				cells = append(cells, cell)
			}

			bounds := CellBounds(cell)
			if bounds.East >= bbox.East {
				break
			}
			lon = bounds.East
		}

		if rowBounds.North >= north {
			break
		}
		lat = rowBounds.North
	}

	return cells, nil
}

// BBoxResult is the output of the bounding-box query planner: nodes,
// ways, and relations, in that order, ready to be serialized alongside
// the <bounds> element (§4.9).
type BBoxResult struct {
	Nodes     []*Element
	Ways      []*Element
	Relations []*Element
}

// QueryBBox runs the four-step bounding-box expansion of §4.9 against
// ds.
func QueryBBox(ds *Datastore, bbox BBox) (*BBoxResult, error) {
	cells, err := TileBBox(bbox)
	if err != nil {
		return nil, err
	}

	candidateIDs, err := candidateNodeIDs(ds, cells)
	if err != nil {
		return nil, err
	}
	if len(candidateIDs) == 0 {
		return &BBoxResult{}, nil
	}

	nodes, err := fetchPresent(ds, NSNode, candidateIDs)
	if err != nil {
		return nil, err
	}

	nodes = filterByBBox(nodes, bbox)
	if len(nodes) == 0 {
		return &BBoxResult{}, nil
	}

	nodeSet := make(map[string]*Element, len(nodes))
	for _, n := range nodes {
		nodeSet[n.ID] = n
	}

	wayIDs := refsWithTag(nodeSet, 'W')
	ways, err := fetchPresent(ds, NSWay, setToSlice(wayIDs))
	if err != nil {
		return nil, err
	}

	extraNodeIDs := make(map[string]struct{})
	for _, w := range ways {
		for _, nid := range w.Way.Nodes {
			if _, ok := nodeSet[nid]; !ok {
				extraNodeIDs[nid] = struct{}{}
			}
		}
	}
	if len(extraNodeIDs) > 0 {
		extra, err := fetchPresent(ds, NSNode, setToSlice(extraNodeIDs))
		if err != nil {
			return nil, err
		}
		for _, n := range extra {
			nodeSet[n.ID] = n
			nodes = append(nodes, n)
		}
	}

	waySet := make(map[string]*Element, len(ways))
	for _, w := range ways {
		waySet[w.ID] = w
	}

	relationIDs := refsWithTag(nodeSet, 'R')
	for id := range refsWithTag(waySet, 'R') {
		relationIDs[id] = struct{}{}
	}
	relations, err := fetchPresent(ds, NSRelation, setToSlice(relationIDs))
	if err != nil {
		return nil, err
	}

	// One additional hop: the relations named by R tokens in those
	// relations' References sets. Transitive closure is NOT followed
	// further (§4.9 step 4, §9 "Cycles").
	relationSet := make(map[string]*Element, len(relations))
	for _, r := range relations {
		relationSet[r.ID] = r
	}
	moreRelationIDs := make(map[string]struct{})
	for _, r := range relations {
		for token := range r.References {
			if strings.HasPrefix(token, "R") {
				id := token[1:]
				if _, ok := relationSet[id]; !ok {
					moreRelationIDs[id] = struct{}{}
				}
			}
		}
	}
	if len(moreRelationIDs) > 0 {
		more, err := fetchPresent(ds, NSRelation, setToSlice(moreRelationIDs))
		if err != nil {
			return nil, err
		}
		relations = append(relations, more...)
	}

	return &BBoxResult{Nodes: nodes, Ways: ways, Relations: relations}, nil
}

// candidateNodeIDs fetches the geodocs for cells and unions their node
// ids (§4.9 step 2, before coordinate filtering).
func candidateNodeIDs(ds *Datastore, cells []string) (map[string]struct{}, error) {
	geodocs, err := fetchPresent(ds, NSGeodoc, cells)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{})
	for _, g := range geodocs {
		for id := range g.Geodoc.Nodes {
			ids[id] = struct{}{}
		}
	}
	return ids, nil
}

// filterByBBox keeps only nodes whose decoded coordinates satisfy
// w <= lon < e && s <= lat < n, half-open on the east/north edges so
// adjacent tilings partition cleanly (§4.9 step 2).
func filterByBBox(nodes []*Element, bbox BBox) []*Element {
	out := make([]*Element, 0, len(nodes))
	for _, n := range nodes {
		lat := DecodeCoordinateFloat(n.Node.Lat, Config.ScaleFactor)
		lon := DecodeCoordinateFloat(n.Node.Lon, Config.ScaleFactor)
		if lon >= bbox.West && lon < bbox.East && lat >= bbox.South && lat < bbox.North {
			out = append(out, n)
		}
	}
	return out
}

// refsWithTag collects the id portion of every reference token with the
// given leading namespace tag across elems.
func refsWithTag(elems map[string]*Element, tag byte) map[string]struct{} {
	out := make(map[string]struct{})
	for _, e := range elems {
		for token := range e.References {
			if len(token) > 0 && token[0] == tag {
				out[token[1:]] = struct{}{}
			}
		}
	}
	return out
}

func setToSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// fetchPresent fetches ids in namespace ns and returns only the elements
// present, silently omitting misses — the convention §6 specifies for
// multi-fetch endpoints and internal fanout.
func fetchPresent(ds *Datastore, ns Namespace, ids []string) ([]*Element, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	it := ds.FetchKeys(ns, ids)
	var out []*Element
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
