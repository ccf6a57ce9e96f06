package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mapquest/osmserver/backend/cassandra"
	"github.com/mapquest/osmserver/osm"
)

var schemaOutfile string

// schemaCommand prints the cassandra kv schema to stdout or a file,
// substituting schema-relevant config items (keyspace, replication
// factor). Useful for:
//
//	$ <edit osmserver.yaml as desired>
//	$ osmloader schema -o schema.cql
//	$ cqlsh -f schema.cql
var schemaCommand = &cobra.Command{
	Use:   "schema",
	Short: "print the cassandra kv schema",
	Run:   runSchema,
}

func init() {
	schemaCommand.Flags().StringVarP(&schemaOutfile, "out", "o", "", "file to write output to (default stdout)")
	loaderCommand.AddCommand(schemaCommand)
}

func runSchema(cmd *cobra.Command, args []string) {
	if configPath != "" {
		if err := osm.ReadConfigFile(configPath); err != nil {
			fatalf(2, "osmloader schema: %v", err)
		}
	}

	schema, err := cassandra.GetSchema(cassandra.SchemaParams{
		Keyspace:          osm.Config.Cassandra.Keyspace,
		ReplicationFactor: osm.Config.Cassandra.ReplicationFactor,
	})
	if err != nil {
		fatalf(1, "osmloader schema: %v", err)
	}

	out := os.Stdout
	if schemaOutfile != "" {
		f, err := os.Create(schemaOutfile)
		if err != nil {
			fatalf(1, "osmloader schema: %v", err)
		}
		defer f.Close()
		out = f
	}
	fmt.Fprint(out, schema)
}
