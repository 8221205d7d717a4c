// Package shepherd is the run execution core: it brings a run to life, launches one task monitor
// per task plus one run monitor over an in-process event bus, captures logs, and sweeps expired
// run objects and task execution logs once retention windows pass.
package shepherd

import (
	"fmt"

	"github.com/coldforge/shepherd/internal/config"
	"github.com/coldforge/shepherd/internal/dag"
	"github.com/coldforge/shepherd/internal/eventbus"
	"github.com/coldforge/shepherd/internal/events"
	"github.com/coldforge/shepherd/internal/models"
	"github.com/coldforge/shepherd/internal/objectStore"
	"github.com/coldforge/shepherd/internal/scheduler"
	"github.com/coldforge/shepherd/internal/secretStore"
	"github.com/coldforge/shepherd/internal/storage"
	"github.com/coldforge/shepherd/internal/syncmap"

	"github.com/coldforge/shepherd/internal/barrier"
	"github.com/rs/zerolog/log"
)

// Shepherd holds every collaborator a run needs and bootstraps new runs onto monitors. One
// Shepherd serves every pipeline and run in the process; there is no per-run Shepherd instance.
type Shepherd struct {
	DB          storage.DB
	ObjectStore objectStore.Engine
	SecretStore secretStore.Engine
	Scheduler   scheduler.Engine
	Bus         *eventbus.Bus
	Config      *config.Shepherd

	// inProgress tracks how many runs are currently not-yet-Complete per (namespace, pipeline),
	// incremented once at StartRun and decremented once when the run monitor finalizes.
	inProgress syncmap.Syncmap[string, int64]
}

func New(db storage.DB, objects objectStore.Engine, secrets secretStore.Engine, sched scheduler.Engine,
	bus *eventbus.Bus, cfg *config.Shepherd,
) *Shepherd {
	return &Shepherd{
		DB:          db,
		ObjectStore: objects,
		SecretStore: secrets,
		Scheduler:   sched,
		Bus:         bus,
		Config:      cfg,
		inProgress:  syncmap.New[string, int64](),
	}
}

func (s *Shepherd) conn() storage.Queryable {
	return s.DB.DB
}

func inProgressKey(namespace, pipeline string) string {
	return namespace + "/" + pipeline
}

// ParallelismLimitExceeded is a pure query: it reads the in-progress count for (namespace,
// pipeline) and reports whether it has already met pipeline.parallelism. It has no side effect and
// does not itself queue or reject a run — that decision belongs to whatever out-of-core caller is
// deciding whether to invoke StartRun at all.
func (s *Shepherd) ParallelismLimitExceeded(namespace, pipeline string, parallelism uint64) bool {
	if parallelism == 0 {
		return false
	}

	count, _ := s.inProgress.Get(inProgressKey(namespace, pipeline))
	return count >= int64(parallelism)
}

func (s *Shepherd) incrementInProgress(namespace, pipeline string) {
	_ = s.inProgress.Swap(inProgressKey(namespace, pipeline), func(v int64, _ bool) (int64, error) {
		return v + 1, nil
	})
}

func (s *Shepherd) decrementInProgress(namespace, pipeline string) {
	_ = s.inProgress.Swap(inProgressKey(namespace, pipeline), func(v int64, _ bool) (int64, error) {
		if v <= 0 {
			return 0, nil
		}
		return v - 1, nil
	})
}

// StartRun brings a run to life: it marks the in-progress counter, publishes StartedRun, persists
// the run as Running, then spawns a task monitor per task plus one run monitor, all gated behind a
// shared start barrier so no monitor can miss an event published by another. It returns once every
// monitor has been spawned; it does not wait for the run to finish.
func (s *Shepherd) StartRun(pipeline *models.Pipeline, run *models.Run) error {
	if err := validateTaskGraph(pipeline); err != nil {
		return fmt.Errorf("shepherd: pipeline %q has an invalid task dependency graph: %w", pipeline.PipelineID, err)
	}

	s.incrementInProgress(pipeline.NamespaceID, pipeline.PipelineID)

	s.Bus.Publish(events.NewStartedRun(run.NamespaceID, run.PipelineID, run.RunID))

	err := s.DB.UpdateRun(s.conn(), run.NamespaceID, run.PipelineID, run.RunID, storage.UpdatableRunFields{
		State: ptr(string(models.RunStateRunning)),
	})
	if err != nil {
		s.decrementInProgress(pipeline.NamespaceID, pipeline.PipelineID)
		return fmt.Errorf("shepherd: could not mark run running: %w", err)
	}

	taskIDs := make([]string, 0, len(pipeline.Tasks))
	for id := range pipeline.Tasks {
		taskIDs = append(taskIDs, id)
	}

	start := barrier.New(len(taskIDs) + 1)

	go s.runRunObjectExpiry(run.NamespaceID, run.PipelineID)
	go s.runTaskLogExpiry(run.NamespaceID, run.PipelineID)

	monitor := &RunMonitor{
		shepherd:    s,
		run:         run,
		taskIDs:     taskIDs,
		stopTimeout: s.Config.TaskRunStopTimeout,
	}
	go monitor.run(start)

	for _, task := range pipeline.Tasks {
		tm := &TaskMonitor{shepherd: s, run: run, task: task}
		go tm.run(start)
	}

	log.Info().Str("namespace", run.NamespaceID).Str("pipeline", run.PipelineID).
		Int64("run_id", run.RunID).Int("tasks", len(taskIDs)).Msg("shepherd: run started")

	return nil
}

// validateTaskGraph confirms a pipeline's depends_on configuration is actually a DAG before any
// task monitor is spawned. A cyclic configuration would otherwise deadlock every task monitor
// involved, each waiting on a parent that is itself waiting on it.
func validateTaskGraph(pipeline *models.Pipeline) error {
	taskIDs := make([]string, 0, len(pipeline.Tasks))
	dependsOn := make(map[string][]string, len(pipeline.Tasks))

	for id, task := range pipeline.Tasks {
		taskIDs = append(taskIDs, id)
		parents := make([]string, 0, len(task.DependsOn))
		for parent := range task.DependsOn {
			parents = append(parents, parent)
		}
		dependsOn[id] = parents
	}

	_, err := dag.FromTasks(taskIDs, dependsOn)
	return err
}
