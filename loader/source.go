// Package loader implements bulk ingestion of OSM XML extracts into a
// Datastore (§4 "Bulk loader"). It streams input files element by
// element rather than building a DOM, so a planet-sized extract never
// has to fit in memory at once.
package loader

import (
	"compress/bzip2"
	"compress/gzip"
	"io"
	"os"
	"strings"

	"github.com/mapquest/osmserver/osm"
)

// Source is an opened input file ready for streaming XML parsing, plus
// the cleanup its compression wrapper (if any) requires.
type Source struct {
	r     io.Reader
	close func() error
}

// Close releases the underlying file and any decompression wrapper.
func (s *Source) Close() error {
	if s.close != nil {
		return s.close()
	}
	return nil
}

// OpenSource detects fn's compression and wire format from its name and
// returns a Source ready for NewDecoder, following the same extension
// rules as the reference loader: an optional ".gz"/".bz2" suffix,
// stripped before checking for ".osm"/".xml"; ".osc" and ".pbf" are
// recognized but not supported.
func OpenSource(fn string) (*Source, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, osm.BadRequestf("opening %s: %v", fn, err)
	}

	base := fn
	var wrap func(io.Reader) (io.Reader, error)
	switch {
	case strings.HasSuffix(base, ".gz"):
		base = strings.TrimSuffix(base, ".gz")
		wrap = func(r io.Reader) (io.Reader, error) { return gzip.NewReader(r) }
	case strings.HasSuffix(base, ".bz2"):
		base = strings.TrimSuffix(base, ".bz2")
		wrap = func(r io.Reader) (io.Reader, error) { return bzip2.NewReader(r), nil }
	}

	switch {
	case strings.HasSuffix(base, ".osc"):
		f.Close()
		return nil, osm.NotImplementedf("osmChange input (%s) is not supported", fn)
	case strings.HasSuffix(base, ".pbf"):
		f.Close()
		return nil, osm.NotImplementedf("PBF input (%s) is not supported", fn)
	case strings.HasSuffix(base, ".osm"), strings.HasSuffix(base, ".xml"):
		// recognized
	default:
		f.Close()
		return nil, osm.BadRequestf("unrecognized input format for %s", fn)
	}

	if wrap == nil {
		return &Source{r: f, close: f.Close}, nil
	}

	r, err := wrap(f)
	if err != nil {
		f.Close()
		return nil, osm.BadRequestf("decompressing %s: %v", fn, err)
	}
	return &Source{r: r, close: f.Close}, nil
}
