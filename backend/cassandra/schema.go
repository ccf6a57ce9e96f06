package cassandra

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/mapquest/osmserver/osm"
)

// schemaTemplate generates the osm_kv keyspace from a Go template so the
// keyspace name and replication factor can be configured, particularly
// for testing.
const schemaTemplate string = `-- The schema file for osm_kv
--
-- Every engine record, whether an individual element or a packed slab,
-- is addressed by a single opaque text key (see §4.6, §6 "Backend wire
-- layout"): <nstag><id> for an element, <nstag>L<start_or_id> for a
-- slab, and the fixed key DCFGSLAB for the slab-config record. Values
-- are opaque serialized bytes under the configured codec.
CREATE KEYSPACE {{.Keyspace}}
WITH REPLICATION = { 'class': 'SimpleStrategy', 'replication_factor': {{.ReplicationFactor}} };

-- kv stores every element and slab record the engine writes. A single
-- wide table keyed by the opaque backend key keeps the read path to one
-- partition lookup per fetch, matching the "single-value-get/set store"
-- contract §1 describes.
CREATE TABLE {{.Keyspace}}.kv (
	-- the backend key: <nstag><id>, <nstag>L<start_or_id>, or DCFGSLAB
	key text,

	-- the serialized payload (an encoded Element for an individual
	-- record, or an encoded slot sequence for a slab)
	value blob,

	PRIMARY KEY (key)
);
`

// SchemaParams supplies the values schemaTemplate's placeholders expand
// to.
type SchemaParams struct {
	Keyspace          string
	ReplicationFactor int
}

// GetSchema renders the CQL schema for this version of the kv backend,
// substituting the keyspace name and replication factor from params.
func GetSchema(params SchemaParams) (string, error) {
	t, err := template.New("schema").Parse(schemaTemplate)
	if err != nil {
		panic(fmt.Sprintf("failure parsing the CQL schema template: %v", err))
	}
	var b bytes.Buffer
	if err := t.Execute(&b, params); err != nil {
		return "", osm.ProgrammerErrorf("rendering CQL schema: %v", err)
	}
	return b.String(), nil
}

// CreateSchema connects to the cluster named by osm.Config.Cassandra and
// creates the osm_kv keyspace and table, requiring that the keyspace not
// already exist.
func CreateSchema() error {
	cf, err := ClusterConfig()
	if err != nil {
		return err
	}
	cf.Keyspace = ""
	db, err := cf.CreateSession()
	if err != nil {
		return osm.BackendUnavailablef(err, "connecting to create cassandra schema")
	}
	defer db.Close()

	schema, err := GetSchema(SchemaParams{
		Keyspace:          osm.Config.Cassandra.Keyspace,
		ReplicationFactor: osm.Config.Cassandra.ReplicationFactor,
	})
	if err != nil {
		return err
	}

	for _, q := range strings.Split(schema, ";") {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		if err := db.Query(q).Exec(); err != nil {
			return osm.BackendUnavailablef(err, "creating schema\nstatement:\n%v", q)
		}
	}
	return nil
}
