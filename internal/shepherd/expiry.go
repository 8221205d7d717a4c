package shepherd

import (
	"os"
	"strings"
	"time"

	"github.com/coldforge/shepherd/internal/logs"
	"github.com/coldforge/shepherd/internal/models"
	"github.com/coldforge/shepherd/internal/storage"
	"github.com/rs/zerolog/log"
)

// runObjectKeyPrefix is the prefix every key runObjectKey produces for a given run starts with,
// letting the object-store expiry sweep list a run's keys without a dedicated tracking table.
func runObjectKeyPrefix(namespace, pipeline string, run int64) string {
	full := runObjectKey(namespace, pipeline, run, "")
	return strings.TrimSuffix(full, "_")
}

// runRunObjectExpiry keeps only the newest RunLogExpiry runs' store objects around. Once the
// pipeline has produced more than that many runs, it waits for the oldest run beyond the window to
// reach Complete, purges its object store keys, and marks it expired so the sweep never repeats
// the same run.
func (s *Shepherd) runRunObjectExpiry(namespace, pipeline string) {
	window := s.Config.RunLogExpiry
	if window <= 0 {
		return
	}

	runs, err := s.DB.ListRuns(s.conn(), 0, window+1, namespace, pipeline)
	if err != nil {
		log.Error().Err(err).Str("namespace", namespace).Str("pipeline", pipeline).
			Msg("shepherd: run object expiry could not list runs")
		return
	}

	if len(runs) <= window {
		return
	}

	candidateRow := runs[len(runs)-1]
	if candidateRow.StoreObjectsExpired {
		return
	}

	var candidate models.Run
	if err := candidate.FromStorage(&candidateRow); err != nil {
		log.Error().Err(err).Msg("shepherd: run object expiry could not decode candidate run")
		return
	}

	s.waitRunComplete(namespace, pipeline, candidate.RunID)

	keys, err := s.ObjectStore.ListObjectKeys(runObjectKeyPrefix(namespace, pipeline, candidate.RunID))
	if err != nil {
		log.Error().Err(err).Int64("run_id", candidate.RunID).
			Msg("shepherd: run object expiry could not list object keys")
		return
	}

	for _, key := range keys {
		if err := s.ObjectStore.DeleteObject(key); err != nil {
			log.Error().Err(err).Str("key", key).Msg("shepherd: run object expiry could not delete object")
		}
	}

	if err := s.DB.UpdateRun(s.conn(), namespace, pipeline, candidate.RunID, storage.UpdatableRunFields{
		StoreObjectsExpired: ptr(true),
	}); err != nil {
		log.Error().Err(err).Int64("run_id", candidate.RunID).
			Msg("shepherd: run object expiry could not mark run expired")
	}
}

// runTaskLogExpiry keeps only the newest TaskExecutionLogRetention runs' task execution logs on
// disk, marking each swept task execution's logs expired and removed once the underlying file is
// gone.
func (s *Shepherd) runTaskLogExpiry(namespace, pipeline string) {
	window := s.Config.TaskExecutionLogRetention
	if window <= 0 {
		return
	}

	runs, err := s.DB.ListRuns(s.conn(), 0, window+1, namespace, pipeline)
	if err != nil {
		log.Error().Err(err).Str("namespace", namespace).Str("pipeline", pipeline).
			Msg("shepherd: task log expiry could not list runs")
		return
	}

	if len(runs) <= window {
		return
	}

	candidateRow := runs[len(runs)-1]

	var candidate models.Run
	if err := candidate.FromStorage(&candidateRow); err != nil {
		log.Error().Err(err).Msg("shepherd: task log expiry could not decode candidate run")
		return
	}

	s.waitRunComplete(namespace, pipeline, candidate.RunID)

	executions, err := s.DB.ListTaskExecutions(s.conn(), 0, 0, namespace, pipeline, candidate.RunID)
	if err != nil {
		log.Error().Err(err).Int64("run_id", candidate.RunID).
			Msg("shepherd: task log expiry could not list task executions")
		return
	}

	for _, te := range executions {
		if te.LogsExpired {
			continue
		}

		path := logs.FilePath(s.Config.TaskRunLogsDir, namespace, pipeline, candidate.RunID, te.ID)
		removed := true
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			removed = false
			log.Error().Err(err).Str("path", path).
				Msg("shepherd: task log expiry could not remove task execution log file")
		}

		if err := s.DB.UpdateTaskExecution(s.conn(), namespace, pipeline, candidate.RunID, te.ID,
			storage.UpdatableTaskExecutionFields{
				LogsExpired: ptr(true),
				LogsRemoved: ptr(removed),
			}); err != nil {
			log.Error().Err(err).Str("task_id", te.ID).
				Msg("shepherd: task log expiry could not persist expiry state")
		}
	}
}

// waitRunComplete polls a run's state every 500ms until it reaches Complete. A run the expiry
// sweep selected as the oldest-of-window candidate may still be executing, and purging a running
// run's objects or logs out from under it would corrupt its task executions' output.
func (s *Shepherd) waitRunComplete(namespace, pipeline string, runID int64) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		row, err := s.DB.GetRun(s.conn(), namespace, pipeline, runID)
		if err != nil {
			return
		}

		if models.RunState(row.State) == models.RunStateComplete {
			return
		}
	}
}
