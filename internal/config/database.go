package config

// Database defines config settings for the shepherd's sqlite-backed store.
type Database struct {
	// MaxResultsLimit defines the total number of rows any list query can return in one call.
	MaxResultsLimit int    `split_words:"true" hcl:"max_results_limit,optional"`
	Path            string `hcl:"path,optional"`
}

func DefaultDatabaseConfig() *Database {
	return &Database{
		Path:            "/tmp/shepherd.db",
		MaxResultsLimit: 100,
	}
}
