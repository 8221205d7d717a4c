package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const sampleHCL = `
log_level = "info"

shepherd {
	task_run_logs_dir = "/var/log/shepherd"
	task_run_stop_timeout = "5m"
	run_log_expiry = 20
	task_execution_log_retention = 20
	event_bus_buffer_size = 64
}

database {
	engine = "bolt"
	max_results_limit = 100
	path = "/var/lib/shepherd/shepherd.db"
}

object_store {
	engine = "bolt"
	run_object_expiry = 20
	boltdb {
		path = "/var/lib/shepherd/objects.db"
	}
}

secret_store {
	engine = "bolt"
	boltdb {
		path = "/var/lib/shepherd/secrets.db"
		encryption_key = "changemechangemechangemechangeme"
	}
}

scheduler {
	engine = "docker"
	docker {
		prune = true
		prune_interval = "24h"
	}
}
`

func TestConfigFromBytes(t *testing.T) {
	conf := Config{}
	if err := conf.FromBytes([]byte(sampleHCL)); err != nil {
		t.Fatal(err)
	}

	expected := Config{
		LogLevel: "info",
		Shepherd: &Shepherd{
			TaskRunLogsDir:            "/var/log/shepherd",
			TaskRunStopTimeout:        time.Minute * 5,
			TaskRunStopTimeoutHCL:     "5m",
			RunLogExpiry:              20,
			TaskExecutionLogRetention: 20,
			EventBusBufferSize:        64,
		},
		Database: &Database{
			Path:            "/var/lib/shepherd/shepherd.db",
			MaxResultsLimit: 100,
		},
		ObjectStore: &ObjectStore{
			Engine:          "bolt",
			RunObjectExpiry: 20,
			BoltDB: &BoltDB{
				Path: "/var/lib/shepherd/objects.db",
			},
		},
		SecretStore: &SecretStore{
			Engine: "bolt",
			BoltDB: &BoltDBSecret{
				Path:          "/var/lib/shepherd/secrets.db",
				EncryptionKey: "changemechangemechangemechangeme",
			},
		},
		Scheduler: &Scheduler{
			Engine: "docker",
			Docker: &Docker{
				Prune:            true,
				PruneInterval:    time.Hour * 24,
				PruneIntervalHCL: "24h",
			},
		},
	}

	if diff := cmp.Diff(expected, conf); diff != "" {
		t.Errorf("result differs from expected (-want +got):\n%s", diff)
	}
}

func TestConfigOverwriteWithEnv(t *testing.T) {
	conf := Config{}
	if err := conf.FromBytes([]byte(sampleHCL)); err != nil {
		t.Fatal(err)
	}

	_ = os.Setenv("SHEPHERD_SHEPHERD_EVENT_BUS_BUFFER_SIZE", "128")
	_ = os.Setenv("SHEPHERD_DATABASE_MAX_RESULTS_LIMIT", "500")
	defer os.Unsetenv("SHEPHERD_SHEPHERD_EVENT_BUS_BUFFER_SIZE")
	defer os.Unsetenv("SHEPHERD_DATABASE_MAX_RESULTS_LIMIT")

	if err := conf.FromEnv(); err != nil {
		t.Fatal(err)
	}

	if conf.Shepherd.EventBusBufferSize != 128 {
		t.Fatalf("expected env override to apply, got %d", conf.Shepherd.EventBusBufferSize)
	}

	if conf.Database.MaxResultsLimit != 500 {
		t.Fatalf("expected env override to apply, got %d", conf.Database.MaxResultsLimit)
	}
}

func TestDefaultConfigIsFullyPopulated(t *testing.T) {
	conf := DefaultConfig()

	if conf.Shepherd == nil || conf.Database == nil || conf.ObjectStore == nil ||
		conf.SecretStore == nil || conf.Scheduler == nil {
		t.Fatal("expected every config block to have a non-nil default")
	}

	if conf.Shepherd.TaskRunStopTimeout != time.Minute*5 {
		t.Fatalf("expected default stop timeout of 5m, got %s", conf.Shepherd.TaskRunStopTimeout)
	}
}
