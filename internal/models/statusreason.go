package models

// StatusReasonKind is the shared error taxonomy for both runs and task executions.
type StatusReasonKind string

const (
	StatusReasonKindUnknown            StatusReasonKind = "UNKNOWN"
	StatusReasonKindAbnormalExit       StatusReasonKind = "ABNORMAL_EXIT"
	StatusReasonKindSchedulerError     StatusReasonKind = "SCHEDULER_ERROR"
	StatusReasonKindFailedPrecondition StatusReasonKind = "FAILED_PRECONDITION"
	StatusReasonKindCancelled          StatusReasonKind = "CANCELLED"
)

// StatusReason carries the taxonomy kind plus a human-readable description, attached to a Run or
// TaskExecution whenever it finalizes to something other than a plain success.
type StatusReason struct {
	Kind        StatusReasonKind `json:"kind"`
	Description string           `json:"description"`
}
