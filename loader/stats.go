package loader

import (
	"sync"
	"time"

	"github.com/mapquest/osmserver/osm"
)

// Stats counts elements ingested per namespace, reported incrementally
// while the loader runs and as a final summary on exit.
type Stats struct {
	mu     sync.Mutex
	counts map[osm.Namespace]int64

	prevMu sync.Mutex
	prev   map[osm.Namespace]int64

	ticker *time.Ticker
	done   chan struct{}
}

const statsReportInterval = time.Second

// NewStats constructs a zeroed counter set. If verbose is true, a
// background reporter logs incremental counts once a second until Stop
// is called.
func NewStats(verbose bool) *Stats {
	s := &Stats{
		counts: make(map[osm.Namespace]int64),
		prev:   make(map[osm.Namespace]int64),
	}
	if verbose {
		s.ticker = time.NewTicker(statsReportInterval)
		s.done = make(chan struct{})
		go s.report()
	}
	return s
}

// Increment records the ingest of one element in namespace ns.
func (s *Stats) Increment(ns osm.Namespace) {
	s.mu.Lock()
	s.counts[ns]++
	s.mu.Unlock()
}

func (s *Stats) snapshot() map[osm.Namespace]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[osm.Namespace]int64, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

func (s *Stats) report() {
	for {
		select {
		case <-s.ticker.C:
			s.logLine()
		case <-s.done:
			return
		}
	}
}

func (s *Stats) logLine() {
	cur := s.snapshot()

	s.prevMu.Lock()
	delta := make(map[osm.Namespace]int64, len(cur))
	for ns, v := range cur {
		delta[ns] = v - s.prev[ns]
		s.prev[ns] = v
	}
	s.prevMu.Unlock()

	osm.Log().Infof("ingest progress: changeset=%d(+%d) node=%d(+%d) way=%d(+%d) relation=%d(+%d)",
		cur[osm.NSChangeset], delta[osm.NSChangeset],
		cur[osm.NSNode], delta[osm.NSNode],
		cur[osm.NSWay], delta[osm.NSWay],
		cur[osm.NSRelation], delta[osm.NSRelation])
}

// Stop ends the background reporter, if any, and logs a final summary.
func (s *Stats) Stop() {
	if s.ticker != nil {
		s.ticker.Stop()
		close(s.done)
	}
	cur := s.snapshot()
	osm.Log().Infof("ingest complete: changeset=%d node=%d way=%d relation=%d",
		cur[osm.NSChangeset], cur[osm.NSNode], cur[osm.NSWay], cur[osm.NSRelation])
}

// Total returns the sum of every namespace's count.
func (s *Stats) Total() int64 {
	cur := s.snapshot()
	var total int64
	for _, v := range cur {
		total += v
	}
	return total
}
