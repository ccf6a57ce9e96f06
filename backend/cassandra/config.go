package cassandra

import (
	"time"

	"github.com/gocql/gocql"

	"github.com/mapquest/osmserver/osm"
)

// ClusterConfig builds a *gocql.ClusterConfig from osm.Config.Cassandra.
func ClusterConfig() (*gocql.ClusterConfig, error) {
	timeout, err := time.ParseDuration(osm.Config.Cassandra.Timeout)
	if err != nil {
		return nil, osm.ConfigErrorf("cassandra.timeout failed to parse: %v", err)
	}

	cfg := gocql.NewCluster(osm.Config.Cassandra.Hosts...)
	cfg.Keyspace = osm.Config.Cassandra.Keyspace
	cfg.Timeout = timeout
	cfg.Consistency = gocql.Quorum
	return cfg, nil
}
