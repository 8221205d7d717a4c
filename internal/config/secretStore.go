package config

// BoltDBSecret holds connection settings for the bbolt-backed secret store.
type BoltDBSecret struct {
	Path string `hcl:"path,optional"`

	// EncryptionKey is a 16/24/32-byte key used to AES-GCM encrypt secrets at rest.
	EncryptionKey string `split_words:"true" hcl:"encryption_key,optional"`
}

// SecretStore defines the configuration for the shepherd's secret{{ }} resolution backend.
type SecretStore struct {
	// Engine used by the backend. Possible values: bolt.
	Engine string `hcl:"engine,optional"`

	BoltDB *BoltDBSecret `hcl:"boltdb,block"`
}

func DefaultSecretStoreConfig() *SecretStore {
	return &SecretStore{
		Engine: "bolt",
		BoltDB: &BoltDBSecret{
			Path:          "/tmp/shepherd-secrets.db",
			EncryptionKey: "changemechangemechangemechangeme",
		},
	}
}
