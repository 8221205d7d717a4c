package shepherd

import (
	"time"

	"github.com/coldforge/shepherd/internal/barrier"
	"github.com/coldforge/shepherd/internal/events"
	"github.com/coldforge/shepherd/internal/models"
	"github.com/coldforge/shepherd/internal/storage"
	"github.com/rs/zerolog/log"
)

// RunMonitor watches every task execution belonging to a run and rolls their terminal statuses up
// into the run's own terminal status once all of them have completed. It is the sole writer of the
// run's State/Status/Ended fields and the sole publisher of CompletedRun.
type RunMonitor struct {
	shepherd    *Shepherd
	run         *models.Run
	taskIDs     []string
	stopTimeout time.Duration
}

func (rm *RunMonitor) scoped(meta events.Metadata) bool {
	return meta.NamespaceID == rm.run.NamespaceID &&
		meta.PipelineID == rm.run.PipelineID &&
		meta.RunID == rm.run.RunID
}

func (rm *RunMonitor) hasStatus(statuses map[string]models.TaskExecutionStatus, want models.TaskExecutionStatus) bool {
	for _, s := range statuses {
		if s == want {
			return true
		}
	}
	return false
}

func (rm *RunMonitor) run(start *barrier.Barrier) {
	sub := rm.shepherd.Bus.Subscribe()
	defer rm.shepherd.Bus.Unsubscribe(sub)

	start.Arrive()

	completed := map[string]models.TaskExecutionStatus{}
	isCancelled := false

	for len(completed) < len(rm.taskIDs) {
		evt, ok := <-sub.Events
		if !ok {
			break
		}
		if !rm.scoped(evt.Metadata()) {
			continue
		}

		switch e := evt.(type) {
		case *events.CompletedTaskExecution:
			completed[e.TaskID] = e.Status
		case *events.StartedTaskExecutionCancellation:
			isCancelled = true
		case *events.StartedRunCancellation:
			for _, taskID := range rm.taskIDs {
				rm.shepherd.Bus.Publish(events.NewStartedTaskExecutionCancellation(
					rm.run.NamespaceID, rm.run.PipelineID, rm.run.RunID, taskID, rm.stopTimeout))
			}
			isCancelled = true
		}
	}

	status := models.RunStatusSuccessful
	var reason *models.StatusReason

	switch {
	case isCancelled || rm.hasStatus(completed, models.TaskExecutionStatusCancelled):
		status = models.RunStatusCancelled
		reason = &models.StatusReason{
			Kind:        models.StatusReasonKindCancelled,
			Description: "a user cancelled the run before all task executions finished",
		}
	case rm.hasStatus(completed, models.TaskExecutionStatusFailed):
		status = models.RunStatusFailed
		reason = &models.StatusReason{
			Kind:        models.StatusReasonKindAbnormalExit,
			Description: "one or more task executions failed",
		}
	default:
		status = models.RunStatusSuccessful
	}

	err := rm.shepherd.DB.UpdateRun(rm.shepherd.conn(), rm.run.NamespaceID, rm.run.PipelineID, rm.run.RunID,
		storage.UpdatableRunFields{
			State:        ptr(string(models.RunStateComplete)),
			Status:       ptr(string(status)),
			StatusReason: ptr(reasonJSON(reason)),
			Ended:        ptr(time.Now().UnixMilli()),
		})
	if err != nil {
		log.Error().Err(err).Str("namespace", rm.run.NamespaceID).Str("pipeline", rm.run.PipelineID).
			Int64("run_id", rm.run.RunID).Msg("shepherd: could not persist run completion; publishing terminal event regardless")
	}

	rm.shepherd.Bus.Publish(events.NewCompletedRun(rm.run.NamespaceID, rm.run.PipelineID, rm.run.RunID, status))

	rm.shepherd.decrementInProgress(rm.run.NamespaceID, rm.run.PipelineID)

	log.Info().Str("namespace", rm.run.NamespaceID).Str("pipeline", rm.run.PipelineID).
		Int64("run_id", rm.run.RunID).Str("status", string(status)).Msg("shepherd: run completed")
}
