// Command osmloader bulk-loads OSM XML extracts into the datastore
// backend configured in osmserver.yaml, following the flag surface of
// the reference dbmgr tool.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mapquest/osmserver/backend/cassandra"
	"github.com/mapquest/osmserver/backend/memstore"
	"github.com/mapquest/osmserver/loader"
	"github.com/mapquest/osmserver/osm"
)

var (
	configPath     string
	backendName    string
	encoding       string
	doInit         bool
	dryRun         bool
	noThreading    bool
	verbose        bool
	skipChangesets bool
)

var loaderCommand = &cobra.Command{
	Use:   "osmloader [files...]",
	Short: "load OSM XML extracts into the datastore",
	Run:   runLoader,
}

func init() {
	flags := loaderCommand.Flags()
	flags.StringVarP(&configPath, "config", "C", "", "path to a config file to load")
	flags.StringVarP(&backendName, "backend", "B", "", "override the configured datastore-backend")
	flags.StringVarP(&encoding, "encoding", "E", "", "override the configured datastore-encoding")
	flags.BoolVarP(&doInit, "init", "I", false, "(re-)initialize the backend's slab-config record")
	flags.BoolVarP(&dryRun, "dryrun", "n", false, "parse, but do not write data; uses an in-memory backend")
	flags.BoolVarP(&noThreading, "nothreading", "T", false, "disable writeback worker threads")
	flags.BoolVarP(&verbose, "verbose", "v", false, "report ingest progress once a second")
	flags.BoolVarP(&skipChangesets, "nochangesets", "x", false, "skip changeset elements")
}

func fatalf(code int, format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(code)
}

func runLoader(cmd *cobra.Command, args []string) {
	start := time.Now()

	if len(args) == 0 {
		fatalf(2, "osmloader: no input files given")
	}

	if configPath != "" {
		if err := osm.ReadConfigFile(configPath); err != nil {
			fatalf(2, "osmloader: %v", err)
		}
	}
	if backendName != "" {
		osm.Config.DatastoreBackend = backendName
	}
	if encoding != "" {
		osm.Config.DatastoreCodec = encoding
	}

	threads := osm.Config.SlabLRUThreads
	geoThreads := osm.Config.GeodocLRUThreads
	if noThreading {
		threads = 0
		geoThreads = 0
	}

	rawBackend, err := openBackend()
	if err != nil {
		fatalf(1, "osmloader: %v", err)
	}
	backend := newCountingBackend(rawBackend)
	defer backend.Close()

	ds := osm.NewDatastore(backend, osm.Config.SlabLRUSize, threads, threads+1, osm.Config.SlabGeometryMap())
	if err := ds.RegisterThreads(workerNames(threads)); err != nil {
		fatalf(1, "osmloader: %v", err)
	}

	if doInit || dryRun {
		if err := osm.WriteSlabConfig(ds, osm.Config.SlabGeometryMap()); err != nil {
			fatalf(1, "osmloader: writing slab-config record: %v", err)
		}
	}

	gt, err := osm.NewGeoTable(ds, osm.Config.GeohashLength, osm.Config.ScaleFactor, osm.Config.GeodocLRUSize, geoThreads)
	if err != nil {
		fatalf(1, "osmloader: %v", err)
	}
	xref := osm.NewXrefMaintainer(ds, gt)

	l := loader.NewLoader(xref, loader.Options{SkipChangesets: skipChangesets, Verbose: verbose})

	for _, fn := range args {
		if err := l.LoadFile(fn); err != nil {
			l.Finish()
			fatalf(1, "osmloader: %s: %v", fn, err)
		}
	}

	gt.Flush()
	ds.Finalize()
	l.Finish()

	stats := l.Stats()
	fmt.Printf("elements loaded: %d, slabs written: %d, geodocs touched: %d, elapsed: %s\n",
		stats.Total(), backend.SlabsWritten(), backend.GeodocsWritten(), time.Since(start).Round(time.Millisecond))
}

// openBackend constructs the backend named by osm.Config.DatastoreBackend,
// or an in-memory Store regardless of configuration when -n/--dryrun is
// set, since a dry run must never touch the real backend.
func openBackend() (osm.Backend, error) {
	if dryRun {
		return memstore.New(), nil
	}

	switch osm.Config.DatastoreBackend {
	case "cassandra":
		return cassandra.NewBackend()
	case "memstore":
		return memstore.New(), nil
	default:
		return nil, osm.ConfigErrorf("unknown datastore-backend %q", osm.Config.DatastoreBackend)
	}
}

func workerNames(threads int) []string {
	names := []string{"main"}
	for i := 0; i < threads; i++ {
		names = append(names, fmt.Sprintf("writeback-%d", i))
	}
	return names
}

func main() {
	if err := loaderCommand.Execute(); err != nil {
		os.Exit(2)
	}
}
