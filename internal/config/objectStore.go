package config

// BoltDB holds connection settings for a bbolt-backed store.
type BoltDB struct {
	Path string `hcl:"path,optional"`
}

// ObjectStore defines config settings for the shepherd's object store, used to resolve
// pipeline{{ }}/run{{ }} interpolation references.
type ObjectStore struct {
	// Engine used by the backend. Possible values: bolt.
	Engine string `hcl:"engine,optional"`

	BoltDB *BoltDB `hcl:"boltdb,block"`

	// RunObjectExpiry is the number of most-recent runs (per pipeline) whose run-scoped objects
	// are retained before the run-object expiry worker purges the oldest.
	RunObjectExpiry int `split_words:"true" hcl:"run_object_expiry,optional"`
}

func DefaultObjectStoreConfig() *ObjectStore {
	return &ObjectStore{
		Engine: "bolt",
		BoltDB: &BoltDB{
			Path: "/tmp/shepherd-objects.db",
		},
		RunObjectExpiry: 20,
	}
}
