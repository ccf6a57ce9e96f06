package loader

import (
	"github.com/mapquest/osmserver/osm"
)

// Options controls how a Loader processes the files handed to it.
type Options struct {
	// SkipChangesets omits changeset elements from ingestion entirely,
	// matching the osmloader -x flag.
	SkipChangesets bool
	// Verbose enables the periodic stats reporter.
	Verbose bool
}

// Loader drives ingestion of one or more OSM XML files through an
// XrefMaintainer, accumulating Stats as it goes.
type Loader struct {
	xref  *osm.XrefMaintainer
	stats *Stats
	opts  Options
}

// NewLoader constructs a Loader that writes through xref.
func NewLoader(xref *osm.XrefMaintainer, opts Options) *Loader {
	return &Loader{xref: xref, stats: NewStats(opts.Verbose), opts: opts}
}

// Stats returns the running counters, safe to read while LoadFile is
// still in progress.
func (l *Loader) Stats() *Stats {
	return l.stats
}

// LoadFile streams fn element by element, adding each one through the
// XrefMaintainer.
func (l *Loader) LoadFile(fn string) error {
	src, err := OpenSource(fn)
	if err != nil {
		return err
	}
	defer src.Close()

	dec := NewDecoder(src.r)
	for {
		elem, ok, err := dec.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if l.opts.SkipChangesets && elem.Namespace == osm.NSChangeset {
			continue
		}
		if err := l.xref.AddElement(elem); err != nil {
			return err
		}
		l.stats.Increment(elem.Namespace)
	}
}

// Finish stops the stats reporter and logs the final summary. It does
// not flush or finalize the underlying Datastore; the caller owns that.
func (l *Loader) Finish() {
	l.stats.Stop()
}
