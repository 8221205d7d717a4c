package shepherd

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/coldforge/shepherd/internal/barrier"
	"github.com/coldforge/shepherd/internal/eventbus"
	"github.com/coldforge/shepherd/internal/events"
	"github.com/coldforge/shepherd/internal/logs"
	"github.com/coldforge/shepherd/internal/models"
	"github.com/coldforge/shepherd/internal/scheduler"
	"github.com/coldforge/shepherd/internal/storage"
	"github.com/rs/zerolog/log"
)

// TaskMonitor is the per-task state machine described in the state diagram: Processing → Waiting
// (parents pending) → Processing (dependency check) → Running (container launched) → Complete. It
// owns its TaskExecution's row updates exclusively and publishes exactly one CompletedTaskExecution
// when it terminates.
type TaskMonitor struct {
	shepherd *Shepherd
	run      *models.Run
	task     models.Task
}

func (tm *TaskMonitor) scoped(meta events.Metadata) bool {
	return meta.NamespaceID == tm.run.NamespaceID &&
		meta.PipelineID == tm.run.PipelineID &&
		meta.RunID == tm.run.RunID
}

func (tm *TaskMonitor) setState(state models.TaskExecutionState) {
	err := tm.shepherd.DB.UpdateTaskExecution(tm.shepherd.conn(), tm.run.NamespaceID, tm.run.PipelineID,
		tm.run.RunID, tm.task.ID, storage.UpdatableTaskExecutionFields{
			State: ptr(string(state)),
		})
	if err != nil {
		log.Error().Err(err).Str("task_id", tm.task.ID).Str("state", string(state)).
			Msg("shepherd: could not persist task execution state")
	}
}

// finish marks the task execution Complete and publishes its terminal event exactly once. It
// publishes the event even if the storage update fails, so the run monitor never hangs waiting on
// a task execution that is, from the bus's perspective, already done.
func (tm *TaskMonitor) finish(status models.TaskExecutionStatus, reason *models.StatusReason, exitCode int64) {
	err := tm.shepherd.DB.UpdateTaskExecution(tm.shepherd.conn(), tm.run.NamespaceID, tm.run.PipelineID,
		tm.run.RunID, tm.task.ID, storage.UpdatableTaskExecutionFields{
			State:        ptr(string(models.TaskExecutionStateComplete)),
			Status:       ptr(string(status)),
			StatusReason: ptr(reasonJSON(reason)),
			Ended:        ptr(time.Now().UnixMilli()),
			ExitCode:     ptr(exitCode),
		})
	if err != nil {
		log.Error().Err(err).Str("task_id", tm.task.ID).
			Msg("shepherd: could not persist task execution completion; publishing terminal event regardless")
	}

	tm.shepherd.Bus.Publish(events.NewCompletedTaskExecution(
		tm.run.NamespaceID, tm.run.PipelineID, tm.run.RunID, tm.task.ID, status))
}

// unsatisfiedDependency returns a human-readable description of the first parent whose required
// status rule the completed map does not satisfy, or "" if every parent is satisfied.
func (tm *TaskMonitor) unsatisfiedDependency(completed map[string]models.TaskExecutionStatus) string {
	for parent, required := range tm.task.DependsOn {
		status := completed[parent]

		switch required {
		case models.RequiredParentStatusUnknown:
			return fmt.Sprintf("parent %q declares an invalid required status", parent)
		case models.RequiredParentStatusAny:
			if status != models.TaskExecutionStatusSuccessful &&
				status != models.TaskExecutionStatusFailed &&
				status != models.TaskExecutionStatusSkipped {
				return fmt.Sprintf("parent %q finished %q, which does not satisfy the 'any' dependency", parent, status)
			}
		case models.RequiredParentStatusSuccess:
			if status != models.TaskExecutionStatusSuccessful {
				return fmt.Sprintf("parent %q finished %q, required 'success' dependency unmet", parent, status)
			}
		case models.RequiredParentStatusFailure:
			if status != models.TaskExecutionStatusFailed {
				return fmt.Sprintf("parent %q finished %q, required 'failure' dependency unmet", parent, status)
			}
		}
	}

	return ""
}

func (tm *TaskMonitor) run(start *barrier.Barrier) {
	sub := tm.shepherd.Bus.Subscribe()
	defer tm.shepherd.Bus.Unsubscribe(sub)

	// Arrive only after subscribing: this closes the race window where a sibling task monitor
	// could publish a CompletedTaskExecution before this one is listening for it.
	start.Arrive()

	te := models.NewTaskExecution(tm.run.NamespaceID, tm.run.PipelineID, tm.run.RunID, tm.task)
	if err := tm.shepherd.DB.InsertTaskExecution(tm.shepherd.conn(), te.ToStorage()); err != nil &&
		!errors.Is(err, storage.ErrEntityExists) {
		log.Error().Err(err).Str("task_id", tm.task.ID).
			Msg("shepherd: could not register task execution; abandoning monitor without a terminal event")
		return
	}

	tm.setState(models.TaskExecutionStateWaiting)

	completedParents := map[string]models.TaskExecutionStatus{}

	for len(completedParents) < len(tm.task.DependsOn) {
		evt, ok := <-sub.Events
		if !ok {
			return
		}
		if !tm.scoped(evt.Metadata()) {
			continue
		}

		switch e := evt.(type) {
		case *events.CompletedTaskExecution:
			completedParents[e.TaskID] = e.Status
		case *events.StartedTaskExecutionCancellation:
			if e.TaskID == tm.task.ID {
				tm.finish(models.TaskExecutionStatusCancelled, &models.StatusReason{
					Kind:        models.StatusReasonKindCancelled,
					Description: "task execution was cancelled before it started",
				}, models.UnsetExitCode)
				return
			}
		}
	}

	tm.setState(models.TaskExecutionStateProcessing)

	if reason := tm.unsatisfiedDependency(completedParents); reason != "" {
		tm.finish(models.TaskExecutionStatusSkipped, &models.StatusReason{
			Kind:        models.StatusReasonKindFailedPrecondition,
			Description: fmt.Sprintf("task could not be run due to unmet dependencies: %s", reason),
		}, models.UnsetExitCode)
		return
	}

	envVars, err := interpolate(combine(tm.run, tm.task), resolver{
		namespace:   tm.run.NamespaceID,
		pipeline:    tm.run.PipelineID,
		runID:       tm.run.RunID,
		secretStore: tm.shepherd.SecretStore,
		objectStore: tm.shepherd.ObjectStore,
	})
	if err != nil {
		tm.finish(models.TaskExecutionStatusFailed, &models.StatusReason{
			Kind:        models.StatusReasonKindFailedPrecondition,
			Description: fmt.Sprintf("could not resolve task execution variables: %v", err),
		}, models.UnsetExitCode)
		return
	}

	if variablesJSON, err := json.Marshal(envVars); err == nil {
		_ = tm.shepherd.DB.UpdateTaskExecution(tm.shepherd.conn(), tm.run.NamespaceID, tm.run.PipelineID,
			tm.run.RunID, tm.task.ID, storage.UpdatableTaskExecutionFields{
				Variables: ptr(string(variablesJSON)),
			})
	}

	preparedEnvVars := make(map[string]string, len(envVars))
	for _, v := range envVars {
		preparedEnvVars[v.Key] = v.Value
	}

	registryUser, registryPass := "", ""
	if tm.task.RegistryAuth != nil {
		registryUser = tm.task.RegistryAuth.User
		registryPass = tm.task.RegistryAuth.Pass
	}

	containerID := taskContainerID(tm.run.NamespaceID, tm.run.PipelineID, tm.run.RunID, tm.task.ID)

	_, err = tm.shepherd.Scheduler.StartContainer(scheduler.StartContainerRequest{
		ID:           containerID,
		ImageName:    tm.task.Image,
		EnvVars:      preparedEnvVars,
		RegistryUser: registryUser,
		RegistryPass: registryPass,
		Entrypoint:   tm.task.Entrypoint,
		Command:      tm.task.Command,
	})
	if err != nil {
		tm.finish(models.TaskExecutionStatusFailed, &models.StatusReason{
			Kind:        models.StatusReasonKindSchedulerError,
			Description: fmt.Sprintf("task could not be scheduled: %v", err),
		}, models.UnsetExitCode)
		return
	}

	if err := tm.shepherd.DB.UpdateTaskExecution(tm.shepherd.conn(), tm.run.NamespaceID, tm.run.PipelineID,
		tm.run.RunID, tm.task.ID, storage.UpdatableTaskExecutionFields{
			State:   ptr(string(models.TaskExecutionStateRunning)),
			Started: ptr(time.Now().UnixMilli()),
		}); err != nil {
		log.Error().Err(err).Str("task_id", tm.task.ID).Msg("shepherd: could not persist task execution start")
	}

	tm.shepherd.Bus.Publish(events.NewStartedTaskExecution(
		tm.run.NamespaceID, tm.run.PipelineID, tm.run.RunID, tm.task.ID))

	if logItems, err := tm.shepherd.Scheduler.GetLogs(scheduler.GetLogsRequest{SchedulerID: containerID}); err != nil {
		log.Error().Err(err).Str("task_id", tm.task.ID).Msg("shepherd: could not start log capture")
	} else {
		path := logs.FilePath(tm.shepherd.Config.TaskRunLogsDir, tm.run.NamespaceID, tm.run.PipelineID,
			tm.run.RunID, tm.task.ID)
		go func() {
			if err := logs.Capture(path, logItems); err != nil {
				log.Error().Err(err).Str("task_id", tm.task.ID).Msg("shepherd: log capture ended with an error")
			}
		}()
	}

	tm.pollUntilComplete(sub, containerID)
}

// pollUntilComplete multiplexes a 1-second scheduler-state poll against bus receives, so a
// cancellation event can preempt the next poll rather than waiting out the full interval.
func (tm *TaskMonitor) pollUntilComplete(sub *eventbus.Subscription, containerID string) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case evt, ok := <-sub.Events:
			if !ok {
				return
			}
			if !tm.scoped(evt.Metadata()) {
				continue
			}

			cancellation, isCancellation := evt.(*events.StartedTaskExecutionCancellation)
			if !isCancellation || cancellation.TaskID != tm.task.ID {
				continue
			}

			if err := tm.shepherd.Scheduler.StopContainer(scheduler.StopContainerRequest{
				SchedulerID: containerID,
				Timeout:     cancellation.Timeout,
			}); err != nil {
				log.Error().Err(err).Str("task_id", tm.task.ID).
					Msg("shepherd: scheduler could not stop container on cancellation")
			}

			tm.finish(models.TaskExecutionStatusCancelled, &models.StatusReason{
				Kind:        models.StatusReasonKindCancelled,
				Description: "a user cancelled the task execution",
			}, models.UnsetExitCode)
			return

		case <-ticker.C:
			state, err := tm.shepherd.Scheduler.GetState(scheduler.GetStateRequest{SchedulerID: containerID})
			if err != nil {
				tm.finish(models.TaskExecutionStatusUnknown, &models.StatusReason{
					Kind:        models.StatusReasonKindSchedulerError,
					Description: fmt.Sprintf("could not query the scheduler for task execution state: %v", err),
				}, models.UnsetExitCode)
				return
			}

			switch state.State {
			case scheduler.ContainerStateRunning:
				continue
			case scheduler.ContainerStateSuccess:
				tm.finish(models.TaskExecutionStatusSuccessful, nil, int64(state.ExitCode))
				return
			case scheduler.ContainerStateFailed:
				tm.finish(models.TaskExecutionStatusFailed, &models.StatusReason{
					Kind:        models.StatusReasonKindAbnormalExit,
					Description: "task execution's container exited with a non-zero code",
				}, int64(state.ExitCode))
				return
			case scheduler.ContainerStateCancelled:
				tm.finish(models.TaskExecutionStatusCancelled, &models.StatusReason{
					Kind:        models.StatusReasonKindCancelled,
					Description: "task execution's container was cancelled",
				}, int64(state.ExitCode))
				return
			default:
				tm.finish(models.TaskExecutionStatusUnknown, &models.StatusReason{
					Kind:        models.StatusReasonKindSchedulerError,
					Description: "scheduler reported an unknown container state",
				}, models.UnsetExitCode)
				return
			}
		}
	}
}
