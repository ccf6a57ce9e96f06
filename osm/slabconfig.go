package osm

import "encoding/json"

// ConfigurationSchemaVersion is bumped whenever the slab-config record's
// shape changes in a way old readers can't tolerate. The server refuses
// to run against a backend whose stored version doesn't match (§3,
// "Slab-config record").
const ConfigurationSchemaVersion = 1

// slabConfigID is the fixed key the slab-config record lives under,
// within the datastore-config namespace (§6, "fixed key CFGSLAB").
const slabConfigID = "CFGSLAB"

// SlabConfigRecord is the single backend record holding every
// namespace's slab geometry plus the schema version, written once by
// the loader's --init and read by the server at startup.
type SlabConfigRecord struct {
	Version  int                          `json:"version"`
	Geometry map[Namespace]SlabGeometry `json:"geometry"`
}

// WriteSlabConfig persists geometry to the backend. The loader calls it
// for --init and for -n dry runs (against its in-memory backend): once
// written, PerSlab for a namespace must never change, since slab keys
// are computed from it.
func WriteSlabConfig(ds *Datastore, geometry map[Namespace]SlabGeometry) error {
	record := SlabConfigRecord{Version: ConfigurationSchemaVersion, Geometry: geometry}
	data, err := json.Marshal(record)
	if err != nil {
		return ConfigErrorf("failed to encode slab-config record: %v", err)
	}
	elem, err := NewElement(NSDatastoreConfig, slabConfigID)
	if err != nil {
		return err
	}
	elem.Tags["record"] = string(data)
	return ds.StoreElement(elem)
}

// ReadSlabConfig reads and validates the slab-config record at server
// startup. It returns a ConfigError if the record is missing or its
// schema version doesn't match ConfigurationSchemaVersion.
func ReadSlabConfig(ds *Datastore) (*SlabConfigRecord, error) {
	elem, err := ds.RetrieveElement(NSDatastoreConfig, slabConfigID)
	if err != nil {
		return nil, err
	}
	if elem == nil {
		return nil, ConfigErrorf("slab-config record %q not found; has the loader been run with --init?", slabConfigID)
	}
	raw, ok := elem.Tags["record"]
	if !ok {
		return nil, ConfigErrorf("slab-config record %q is malformed: missing payload", slabConfigID)
	}
	var record SlabConfigRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, ConfigErrorf("slab-config record %q failed to decode: %v", slabConfigID, err)
	}
	if record.Version != ConfigurationSchemaVersion {
		return nil, ConfigErrorf("slab-config schema version mismatch: backend has %d, this build expects %d",
			record.Version, ConfigurationSchemaVersion)
	}
	return &record, nil
}
