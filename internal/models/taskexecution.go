package models

import (
	"encoding/json"
	"time"

	"github.com/coldforge/shepherd/internal/storage"
)

type TaskExecutionState string

const (
	TaskExecutionStateProcessing TaskExecutionState = "PROCESSING"
	TaskExecutionStateWaiting    TaskExecutionState = "WAITING"
	TaskExecutionStateRunning    TaskExecutionState = "RUNNING"
	TaskExecutionStateComplete   TaskExecutionState = "COMPLETE"
)

type TaskExecutionStatus string

const (
	TaskExecutionStatusUnknown    TaskExecutionStatus = "UNKNOWN"
	TaskExecutionStatusFailed     TaskExecutionStatus = "FAILED"
	TaskExecutionStatusSuccessful TaskExecutionStatus = "SUCCESSFUL"
	TaskExecutionStatusCancelled  TaskExecutionStatus = "CANCELLED"
	TaskExecutionStatusSkipped    TaskExecutionStatus = "SKIPPED"
)

// unsetExitCode is the sentinel exit code recorded for task executions that never produced a
// real one (Skipped, Cancelled, Unknown).
const UnsetExitCode int64 = 1

// TaskExecution is the runtime record of one task within one run.
type TaskExecution struct {
	NamespaceID  string               `json:"namespace_id"`
	PipelineID   string               `json:"pipeline_id"`
	RunID        int64                `json:"run_id"`
	TaskID       string               `json:"task_id"`
	Task         Task                 `json:"task"`
	State        TaskExecutionState   `json:"state"`
	Status       TaskExecutionStatus  `json:"status"`
	StatusReason *StatusReason        `json:"status_reason,omitempty"`
	ExitCode     int64                `json:"exit_code"`
	Started      int64                `json:"started"`
	Ended        int64                `json:"ended"`
	Variables    []Variable           `json:"variables"`
	LogsExpired  bool                 `json:"logs_expired"`
	LogsRemoved  bool                 `json:"logs_removed"`
}

func NewTaskExecution(namespace, pipeline string, runID int64, task Task) *TaskExecution {
	return &TaskExecution{
		NamespaceID: namespace,
		PipelineID:  pipeline,
		RunID:       runID,
		TaskID:      task.ID,
		Task:        task,
		State:       TaskExecutionStateProcessing,
		Status:      TaskExecutionStatusUnknown,
		ExitCode:    UnsetExitCode,
		Started:     time.Now().UnixMilli(),
		Variables:   []Variable{},
	}
}

// ToStorage converts the domain object to its storage row representation.
func (te *TaskExecution) ToStorage() *storage.TaskExecution {
	taskJSON, _ := json.Marshal(te.Task)
	variablesJSON, _ := json.Marshal(te.Variables)

	statusReasonJSON := ""
	if te.StatusReason != nil {
		if b, err := json.Marshal(te.StatusReason); err == nil {
			statusReasonJSON = string(b)
		}
	}

	return &storage.TaskExecution{
		Namespace:    te.NamespaceID,
		Pipeline:     te.PipelineID,
		Run:          te.RunID,
		ID:           te.TaskID,
		Task:         string(taskJSON),
		Started:      te.Started,
		Ended:        te.Ended,
		ExitCode:     te.ExitCode,
		LogsExpired:  te.LogsExpired,
		LogsRemoved:  te.LogsRemoved,
		State:        string(te.State),
		Status:       string(te.Status),
		StatusReason: statusReasonJSON,
		Variables:    string(variablesJSON),
	}
}

// FromStorage populates the domain object from its storage row representation.
func (te *TaskExecution) FromStorage(row *storage.TaskExecution) error {
	te.NamespaceID = row.Namespace
	te.PipelineID = row.Pipeline
	te.RunID = row.Run
	te.TaskID = row.ID
	te.Started = row.Started
	te.Ended = row.Ended
	te.ExitCode = row.ExitCode
	te.LogsExpired = row.LogsExpired
	te.LogsRemoved = row.LogsRemoved
	te.State = TaskExecutionState(row.State)
	te.Status = TaskExecutionStatus(row.Status)

	if row.Task != "" {
		var task Task
		if err := json.Unmarshal([]byte(row.Task), &task); err != nil {
			return err
		}
		te.Task = task
	}

	if row.StatusReason != "" {
		var reason StatusReason
		if err := json.Unmarshal([]byte(row.StatusReason), &reason); err != nil {
			return err
		}
		te.StatusReason = &reason
	}

	variables := []Variable{}
	if row.Variables != "" {
		if err := json.Unmarshal([]byte(row.Variables), &variables); err != nil {
			return err
		}
	}
	te.Variables = variables

	return nil
}
