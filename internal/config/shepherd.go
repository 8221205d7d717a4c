package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/kelseyhightower/envconfig"
)

// Config defines the full configuration for the shepherd process.
type Config struct {
	// LogLevel affects the entire application's logs.
	LogLevel string `split_words:"true" hcl:"log_level,optional"`

	Shepherd    *Shepherd    `hcl:"shepherd,block"`
	Database    *Database    `hcl:"database,block"`
	ObjectStore *ObjectStore `hcl:"object_store,block"`
	SecretStore *SecretStore `hcl:"secret_store,block"`
	Scheduler   *Scheduler   `hcl:"scheduler,block"`
}

// Shepherd controls the run-execution core's own settings: where task logs live, how long the
// scheduler is given to gracefully stop a container, and sizing for the in-process event bus.
type Shepherd struct {
	// Directory task execution log files are written to.
	TaskRunLogsDir string `split_words:"true" hcl:"task_run_logs_dir,optional"`

	// TaskRunStopTimeout controls how long the scheduler waits for a task execution's container
	// to stop gracefully before issuing a hard kill.
	TaskRunStopTimeout time.Duration `split_words:"true"`

	// TaskRunStopTimeoutHCL is the HCL-compatible string form of TaskRunStopTimeout; HCL can't
	// parse directly into a time.Duration, so it's converted after decode.
	TaskRunStopTimeoutHCL string `ignored:"true" hcl:"task_run_stop_timeout,optional"`

	// RunLogExpiry is the number of most-recent runs (per pipeline) whose objects are retained;
	// older runs have their stored objects purged by the run-object expiry worker.
	RunLogExpiry int `split_words:"true" hcl:"run_log_expiry,optional"`

	// TaskExecutionLogRetention is the number of most-recent runs (per pipeline) whose task
	// execution log files are retained; older runs have their log files removed from disk.
	TaskExecutionLogRetention int `split_words:"true" hcl:"task_execution_log_retention,optional"`

	// EventBusBufferSize is the per-subscriber channel buffer depth on the event bus. Publishes
	// beyond this depth are dropped rather than blocking the publisher.
	EventBusBufferSize int `split_words:"true" hcl:"event_bus_buffer_size,optional"`
}

func DefaultShepherdConfig() *Shepherd {
	return &Shepherd{
		TaskRunLogsDir:            "/tmp",
		TaskRunStopTimeout:        mustParseDuration("5m"),
		RunLogExpiry:              20,
		TaskExecutionLogRetention: 20,
		EventBusBufferSize:        32,
	}
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel: "debug",

		Shepherd:    DefaultShepherdConfig(),
		Database:    DefaultDatabaseConfig(),
		ObjectStore: DefaultObjectStoreConfig(),
		SecretStore: DefaultSecretStoreConfig(),
		Scheduler:   DefaultSchedulerConfig(),
	}
}

// FromEnv parses environment variables into the config object based on envconfig name.
func (c *Config) FromEnv() error {
	return envconfig.Process("shepherd", c)
}

// FromBytes parses an HCL configuration held in memory.
func (c *Config) FromBytes(content []byte) error {
	if err := hclsimple.Decode("config.hcl", content, nil, c); err != nil {
		return err
	}

	c.convertDurationFromHCL()
	return nil
}

// FromFile parses an HCL configuration file.
func (c *Config) FromFile(path string) error {
	if err := hclsimple.DecodeFile(path, nil, c); err != nil {
		return err
	}

	c.convertDurationFromHCL()
	return nil
}

// convertDurationFromHCL moves each HCL-parsed duration string onto its real time.Duration field.
// HCL doesn't decode directly into time.Duration: https://github.com/hashicorp/hcl/issues/202
func (c *Config) convertDurationFromHCL() {
	if c.Shepherd != nil && c.Shepherd.TaskRunStopTimeoutHCL != "" {
		c.Shepherd.TaskRunStopTimeout = mustParseDuration(c.Shepherd.TaskRunStopTimeoutHCL)
	}

	if c.Scheduler != nil && c.Scheduler.Docker != nil && c.Scheduler.Docker.PruneIntervalHCL != "" {
		c.Scheduler.Docker.PruneInterval = mustParseDuration(c.Scheduler.Docker.PruneIntervalHCL)
	}
}

// InitConfig resolves the final configuration: start from defaults, layer in a config file (from
// userDefinedPath, a well-known path, or SHEPHERD_CONFIG_PATH, in ascending priority), then layer
// environment variables on top.
func InitConfig(userDefinedPath string) (*Config, error) {
	conf := DefaultConfig()

	homeDir, _ := os.UserHomeDir()
	path := searchFilePaths(append([]string{userDefinedPath}, possibleConfigPaths(homeDir, userDefinedPath)...)...)

	if envPath := os.Getenv("SHEPHERD_CONFIG_PATH"); envPath != "" {
		path = envPath
	}

	if path != "" {
		if err := conf.FromFile(path); err != nil {
			return nil, err
		}
	}

	if err := conf.FromEnv(); err != nil {
		return nil, err
	}

	return conf, nil
}

func PrintEnvs() error {
	var conf Config
	if err := envconfig.Usage("shepherd", &conf); err != nil {
		return err
	}
	fmt.Println("SHEPHERD_CONFIG_PATH")

	return nil
}
