package config

import "time"

// Scheduler defines config settings for the shepherd's container scheduler.
type Scheduler struct {
	// Engine used by the scheduler. Possible values: docker.
	Engine string  `hcl:"engine,optional"`
	Docker *Docker `hcl:"docker,block"`
}

func DefaultSchedulerConfig() *Scheduler {
	return &Scheduler{
		Engine: "docker",
		Docker: DefaultDockerConfig(),
	}
}

// Docker holds settings for the docker scheduler adapter.
type Docker struct {
	// Prune runs a recurring `docker system prune` to avoid filling the local disk with images.
	Prune bool `hcl:"prune,optional"`

	// PruneInterval is the period between prune runs.
	PruneInterval time.Duration `split_words:"true"`

	// PruneIntervalHCL is the HCL-compatible string form of PruneInterval.
	PruneIntervalHCL string `ignored:"true" hcl:"prune_interval,optional"`
}

func DefaultDockerConfig() *Docker {
	return &Docker{
		Prune:         false,
		PruneInterval: mustParseDuration("24h"),
	}
}
