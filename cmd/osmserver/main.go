// Command osmserver serves the read-only OSM API (§6) over the
// datastore backend configured in osmserver.yaml.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mapquest/osmserver/apiserver"
	"github.com/mapquest/osmserver/backend/cassandra"
	"github.com/mapquest/osmserver/backend/memstore"
	"github.com/mapquest/osmserver/osm"
)

var configPath string

var serverCommand = &cobra.Command{
	Use:   "osmserver",
	Short: "serve the OSM read API",
	Run:   runServer,
}

func init() {
	serverCommand.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a config file to load")
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func runServer(cmd *cobra.Command, args []string) {
	if configPath != "" {
		if err := osm.ReadConfigFile(configPath); err != nil {
			fatalf("osmserver: %v", err)
		}
	}

	backend, err := openBackend()
	if err != nil {
		fatalf("osmserver: %v", err)
	}

	ds := osm.NewDatastore(backend, osm.Config.SlabLRUSize, osm.Config.SlabLRUThreads,
		osm.Config.SlabLRUThreads+1, osm.Config.SlabGeometryMap())

	threads := []string{"main"}
	for i := 0; i < osm.Config.SlabLRUThreads; i++ {
		threads = append(threads, fmt.Sprintf("writeback-%d", i))
	}
	if err := ds.RegisterThreads(threads); err != nil {
		fatalf("osmserver: %v", err)
	}

	if _, err := osm.ReadSlabConfig(ds); err != nil {
		fatalf("osmserver: %v", err)
	}

	srv := apiserver.NewServer(ds)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			osm.Log().Errorf("apiserver stopped: %v", err)
		}
	case <-sig:
		osm.Log().Infof("shutting down")
	}

	ds.Finalize()
	backend.Close()
}

func openBackend() (osm.Backend, error) {
	switch osm.Config.DatastoreBackend {
	case "cassandra":
		return cassandra.NewBackend()
	case "memstore":
		return memstore.New(), nil
	default:
		return nil, osm.ConfigErrorf("unknown datastore-backend %q", osm.Config.DatastoreBackend)
	}
}

func main() {
	if err := serverCommand.Execute(); err != nil {
		os.Exit(2)
	}
}
