package models

import (
	"encoding/json"
	"time"

	"github.com/coldforge/shepherd/internal/storage"
)

type RunState string

const (
	RunStatePending  RunState = "PENDING"
	RunStateRunning  RunState = "RUNNING"
	RunStateComplete RunState = "COMPLETE"
)

type RunStatus string

const (
	// RunStatusUnknown is only valid before a run's state reaches Complete.
	RunStatusUnknown    RunStatus = "UNKNOWN"
	RunStatusFailed     RunStatus = "FAILED"
	RunStatusSuccessful RunStatus = "SUCCESSFUL"
	RunStatusCancelled  RunStatus = "CANCELLED"
)

type InitiatorType string

const (
	InitiatorTypeUnknown   InitiatorType = "UNKNOWN"
	InitiatorTypeHuman     InitiatorType = "HUMAN"
	InitiatorTypeExtension InitiatorType = "EXTENSION"
)

// Initiator records who or what started a run.
type Initiator struct {
	Type   InitiatorType `json:"type"`
	Name   string        `json:"name"`
	Reason string        `json:"reason"`
}

// Run is one execution instance of a pipeline.
type Run struct {
	NamespaceID         string        `json:"namespace_id"`
	PipelineID          string        `json:"pipeline_id"`
	RunID               int64         `json:"run_id"`
	Started             int64         `json:"started"`
	Ended               int64         `json:"ended"`
	State               RunState      `json:"state"`
	Status              RunStatus     `json:"status"`
	StatusReason        *StatusReason `json:"status_reason,omitempty"`
	Initiator           Initiator     `json:"initiator"`
	Variables           []Variable    `json:"variables"`
	StoreObjectsExpired bool          `json:"store_objects_expired"`
}

func NewRun(namespace, pipeline string, runID int64, initiator Initiator, variables []Variable) *Run {
	return &Run{
		NamespaceID: namespace,
		PipelineID:  pipeline,
		RunID:       runID,
		Started:     time.Now().UnixMilli(),
		State:       RunStatePending,
		Status:      RunStatusUnknown,
		Initiator:   initiator,
		Variables:   variables,
	}
}

// ToStorage converts the domain object to its storage row representation.
func (r *Run) ToStorage() *storage.Run {
	variablesJSON, _ := json.Marshal(r.Variables)
	initiatorJSON, _ := json.Marshal(r.Initiator)

	statusReasonJSON := ""
	if r.StatusReason != nil {
		if b, err := json.Marshal(r.StatusReason); err == nil {
			statusReasonJSON = string(b)
		}
	}

	return &storage.Run{
		Namespace:           r.NamespaceID,
		Pipeline:            r.PipelineID,
		ID:                  r.RunID,
		Started:             r.Started,
		Ended:               r.Ended,
		State:               string(r.State),
		Status:              string(r.Status),
		StatusReason:        statusReasonJSON,
		Initiator:           string(initiatorJSON),
		Variables:           string(variablesJSON),
		StoreObjectsExpired: r.StoreObjectsExpired,
	}
}

// FromStorage populates the domain object from its storage row representation.
func (r *Run) FromStorage(row *storage.Run) error {
	r.NamespaceID = row.Namespace
	r.PipelineID = row.Pipeline
	r.RunID = row.ID
	r.Started = row.Started
	r.Ended = row.Ended
	r.State = RunState(row.State)
	r.Status = RunStatus(row.Status)
	r.StoreObjectsExpired = row.StoreObjectsExpired

	if row.StatusReason != "" {
		var reason StatusReason
		if err := json.Unmarshal([]byte(row.StatusReason), &reason); err != nil {
			return err
		}
		r.StatusReason = &reason
	}

	if row.Initiator != "" {
		var initiator Initiator
		if err := json.Unmarshal([]byte(row.Initiator), &initiator); err != nil {
			return err
		}
		r.Initiator = initiator
	}

	variables := []Variable{}
	if row.Variables != "" {
		if err := json.Unmarshal([]byte(row.Variables), &variables); err != nil {
			return err
		}
	}
	r.Variables = variables

	return nil
}
