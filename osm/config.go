package osm

import (
	"fmt"
	"io/ioutil"
	"strings"

	"gopkg.in/yaml.v2"
)

// Config is the engine configuration instance the rest of osm should
// access for global configuration values. See EngineConfig for available
// members.
var Config EngineConfig

// ConfigName is the path (can be relative or absolute) to the config file
// that should be read.
var ConfigName = "osmserver.yaml"

func init() {
	err := readConfig()
	if err != nil {
		if strings.Contains(err.Error(), "no such file or directory") {
			log.Infof("Did not find config file %v, continuing with defaults", ConfigName)
		} else {
			panic(err.Error())
		}
	}
}

// SlabGeometry holds the per-namespace slab-packing parameters recorded
// in the slab-config record (§3, "Slab-config record"). PerSlab must
// never change for a namespace once the backend holds data written under
// it, since slab keys are computed from it.
type SlabGeometry struct {
	PerSlab    int `yaml:"per_slab"`
	InlineSize int `yaml:"inline_size"`
}

// EngineConfig defines the available global configuration parameters for
// the storage engine. It reads values straight from the config file
// (osmserver.yaml by default).
type EngineConfig struct {
	ScaleFactor    int64 `yaml:"scale-factor"`
	GeohashLength  int   `yaml:"geohash-length"`
	DatastoreCodec string `yaml:"datastore-encoding"`

	SlabLRUSize     int `yaml:"slab-lru-size"`
	SlabLRUThreads  int `yaml:"slab-lru-threads"`
	GeodocLRUSize   int `yaml:"geodoc-lru-size"`
	GeodocLRUThreads int `yaml:"geodoc-lru-threads"`

	APICallTimeout string `yaml:"api-call-timeout"`
	APIVersion     string `yaml:"api-version"`
	Port           int    `yaml:"port"`
	ServerName     string `yaml:"server-name"`
	ServerVersion  string `yaml:"server-version"`

	DatastoreBackend string `yaml:"datastore-backend"`

	Cassandra struct {
		Hosts             []string `yaml:"hosts"`
		Keyspace          string   `yaml:"keyspace"`
		Timeout           string   `yaml:"timeout"`
		ReplicationFactor int      `yaml:"replication-factor"`
	} `yaml:"cassandra"`

	SlabGeometry struct {
		Node      SlabGeometry `yaml:"node"`
		Way       SlabGeometry `yaml:"way"`
		Relation  SlabGeometry `yaml:"relation"`
		Changeset SlabGeometry `yaml:"changeset"`
	} `yaml:"slab-geometry"`
}

// SlabGeometryMap returns the per-namespace slab geometry as a map keyed
// by Namespace, the shape NewDatastore and WriteSlabConfig expect.
func (c *EngineConfig) SlabGeometryMap() map[Namespace]SlabGeometry {
	return map[Namespace]SlabGeometry{
		NSNode:      c.SlabGeometry.Node,
		NSWay:       c.SlabGeometry.Way,
		NSRelation:  c.SlabGeometry.Relation,
		NSChangeset: c.SlabGeometry.Changeset,
	}
}

// SetDefaultConfig resets Config to default values, regardless of what
// was set by any configuration file.
func SetDefaultConfig() {
	// NOTE: go-yaml has a bug where it does not overwrite sequence values
	// (i.e. lists), it appends to them. See
	// https://github.com/go-yaml/yaml/issues/48. Until that's fixed, for
	// any sequence value, readConfig must nil it and then fill in the
	// default if yaml.Unmarshal did not fill anything in.

	Config.ScaleFactor = 10000000
	Config.GeohashLength = 6
	Config.DatastoreCodec = "json"

	Config.SlabLRUSize = 10000
	Config.SlabLRUThreads = 4
	Config.GeodocLRUSize = 2000
	Config.GeodocLRUThreads = 2

	Config.APICallTimeout = "30s"
	Config.APIVersion = "0.6"
	Config.Port = 8080
	Config.ServerName = "osmserver"
	Config.ServerVersion = "0.1"

	Config.DatastoreBackend = "cassandra"

	Config.Cassandra.Hosts = []string{"localhost"}
	Config.Cassandra.Keyspace = "osm_kv"
	Config.Cassandra.Timeout = "2s"
	Config.Cassandra.ReplicationFactor = 1

	Config.SlabGeometry.Node = SlabGeometry{PerSlab: 10000, InlineSize: 1 << 20}
	Config.SlabGeometry.Way = SlabGeometry{PerSlab: 2000, InlineSize: 1 << 20}
	Config.SlabGeometry.Relation = SlabGeometry{PerSlab: 2000, InlineSize: 1 << 20}
	Config.SlabGeometry.Changeset = SlabGeometry{PerSlab: 2000, InlineSize: 1 << 20}
}

// ReadConfigFile sets a new path to find the osmserver yaml config file
// and forces a reload of the config.
func ReadConfigFile(path string) error {
	ConfigName = path
	return readConfig()
}

func assertConfigInvariants() error {
	var errs []string

	if Config.ScaleFactor <= 0 {
		errs = append(errs, "scale-factor must be a positive integer")
	}
	if Config.GeohashLength <= 0 {
		errs = append(errs, "geohash-length must be a positive integer")
	}
	if Config.SlabLRUSize < 1 {
		errs = append(errs, "slab-lru-size must be greater than 0")
	}
	if Config.SlabLRUThreads < 0 {
		errs = append(errs, "slab-lru-threads must not be negative")
	}
	if Config.GeodocLRUSize < 1 {
		errs = append(errs, "geodoc-lru-size must be greater than 0")
	}
	if Config.GeodocLRUThreads < 0 {
		errs = append(errs, "geodoc-lru-threads must not be negative")
	}
	if Config.DatastoreCodec != "json" && Config.DatastoreCodec != "binary" {
		errs = append(errs, fmt.Sprintf("datastore-encoding %q is not one of json, binary", Config.DatastoreCodec))
	}

	for name, geom := range map[string]SlabGeometry{
		"node":      Config.SlabGeometry.Node,
		"way":       Config.SlabGeometry.Way,
		"relation":  Config.SlabGeometry.Relation,
		"changeset": Config.SlabGeometry.Changeset,
	} {
		if geom.PerSlab < 1 {
			errs = append(errs, fmt.Sprintf("slab-geometry.%s.per_slab must be greater than 0", name))
		}
		if geom.InlineSize < 1 {
			errs = append(errs, fmt.Sprintf("slab-geometry.%s.inline_size must be greater than 0", name))
		}
	}

	if len(errs) > 0 {
		em := ""
		for _, err := range errs {
			log.Errorf("Config Error: %v", err)
			em += "\t" + err + "\n"
		}
		return fmt.Errorf("Config Error:\n%v", em)
	}

	return nil
}

func readConfig() error {
	SetDefaultConfig()

	data, err := ioutil.ReadFile(ConfigName)
	if err != nil {
		return fmt.Errorf("failed to read config file (%v): %v", ConfigName, err)
	}

	// See NOTE in SetDefaultConfig regarding sequence values.
	Config.Cassandra.Hosts = []string{}

	err = yaml.Unmarshal(data, &Config)
	if err != nil {
		return fmt.Errorf("failed to unmarshal yaml from config file (%v): %v", ConfigName, err)
	}

	if len(Config.Cassandra.Hosts) == 0 {
		Config.Cassandra.Hosts = []string{"localhost"}
	}

	err = assertConfigInvariants()
	if err == nil {
		log.Infof("Loaded config file %v", ConfigName)
	}
	return err
}
