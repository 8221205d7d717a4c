// Package events defines the typed events that flow across the event bus between the shepherd,
// its monitors, and external cancellation initiators.
package events

import (
	"time"

	"github.com/coldforge/shepherd/internal/models"
)

type Kind string

const (
	KindStartedRun                       Kind = "STARTED_RUN"
	KindCompletedRun                     Kind = "COMPLETED_RUN"
	KindStartedRunCancellation           Kind = "STARTED_RUN_CANCELLATION"
	KindStartedTaskExecution             Kind = "STARTED_TASK_EXECUTION"
	KindCompletedTaskExecution           Kind = "COMPLETED_TASK_EXECUTION"
	KindStartedTaskExecutionCancellation Kind = "STARTED_TASK_EXECUTION_CANCELLATION"
)

// Event is the tagged-union interface every concrete event implements. Kind identifies which
// concrete type an Event is, so a subscriber can type-switch without reflection; Metadata carries
// the run-scoping fields every event needs to be filtered by (namespace, pipeline, run_id).
type Event interface {
	Kind() Kind
	Metadata() Metadata
}

// Metadata scopes an event to a namespace/pipeline/run so monitors can filter a shared bus down to
// just the run they own.
type Metadata struct {
	Emitted     int64
	NamespaceID string
	PipelineID  string
	RunID       int64
}

func newMetadata(namespace, pipeline string, runID int64) Metadata {
	return Metadata{
		Emitted:     time.Now().UnixMilli(),
		NamespaceID: namespace,
		PipelineID:  pipeline,
		RunID:       runID,
	}
}

type StartedRun struct {
	Meta Metadata
}

func NewStartedRun(namespace, pipeline string, runID int64) *StartedRun {
	return &StartedRun{newMetadata(namespace, pipeline, runID)}
}

func (e *StartedRun) Kind() Kind         { return KindStartedRun }
func (e *StartedRun) Metadata() Metadata { return e.Meta }

type CompletedRun struct {
	Meta   Metadata
	Status models.RunStatus
}

func NewCompletedRun(namespace, pipeline string, runID int64, status models.RunStatus) *CompletedRun {
	return &CompletedRun{newMetadata(namespace, pipeline, runID), status}
}

func (e *CompletedRun) Kind() Kind         { return KindCompletedRun }
func (e *CompletedRun) Metadata() Metadata { return e.Meta }

// StartedRunCancellation is published by the (out-of-scope) API on user cancellation of an entire
// run. The Run Monitor reacts to it by fanning out one StartedTaskExecutionCancellation per task.
type StartedRunCancellation struct {
	Meta    Metadata
	Timeout time.Duration
}

func NewStartedRunCancellation(namespace, pipeline string, runID int64, timeout time.Duration) *StartedRunCancellation {
	return &StartedRunCancellation{newMetadata(namespace, pipeline, runID), timeout}
}

func (e *StartedRunCancellation) Kind() Kind         { return KindStartedRunCancellation }
func (e *StartedRunCancellation) Metadata() Metadata { return e.Meta }

type StartedTaskExecution struct {
	Meta   Metadata
	TaskID string
}

func NewStartedTaskExecution(namespace, pipeline string, runID int64, taskID string) *StartedTaskExecution {
	return &StartedTaskExecution{newMetadata(namespace, pipeline, runID), taskID}
}

func (e *StartedTaskExecution) Kind() Kind         { return KindStartedTaskExecution }
func (e *StartedTaskExecution) Metadata() Metadata { return e.Meta }

type CompletedTaskExecution struct {
	Meta   Metadata
	TaskID string
	Status models.TaskExecutionStatus
}

func NewCompletedTaskExecution(namespace, pipeline string, runID int64, taskID string, status models.TaskExecutionStatus) *CompletedTaskExecution {
	return &CompletedTaskExecution{newMetadata(namespace, pipeline, runID), taskID, status}
}

func (e *CompletedTaskExecution) Kind() Kind         { return KindCompletedTaskExecution }
func (e *CompletedTaskExecution) Metadata() Metadata { return e.Meta }

// StartedTaskExecutionCancellation cancels a single task. The Run Monitor publishes one of these
// per task when a run-scoped cancellation arrives; the API may also publish one directly to cancel
// just that task.
type StartedTaskExecutionCancellation struct {
	Meta    Metadata
	TaskID  string
	Timeout time.Duration
}

func NewStartedTaskExecutionCancellation(namespace, pipeline string, runID int64, taskID string, timeout time.Duration) *StartedTaskExecutionCancellation {
	return &StartedTaskExecutionCancellation{newMetadata(namespace, pipeline, runID), taskID, timeout}
}

func (e *StartedTaskExecutionCancellation) Kind() Kind         { return KindStartedTaskExecutionCancellation }
func (e *StartedTaskExecutionCancellation) Metadata() Metadata { return e.Meta }
