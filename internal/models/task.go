package models

import "strings"

// RequiredParentStatus controls how a task's dependency on a parent task is evaluated once that
// parent finishes.
type RequiredParentStatus string

const (
	RequiredParentStatusUnknown RequiredParentStatus = "UNKNOWN"
	RequiredParentStatusAny     RequiredParentStatus = "ANY"
	RequiredParentStatusSuccess RequiredParentStatus = "SUCCESS"
	RequiredParentStatusFailure RequiredParentStatus = "FAILURE"
)

// ParseRequiredParentStatus is lenient about case, since pipeline definitions are frequently
// hand-written.
func ParseRequiredParentStatus(input string) RequiredParentStatus {
	switch strings.ToLower(input) {
	case "any":
		return RequiredParentStatusAny
	case "success":
		return RequiredParentStatusSuccess
	case "failure":
		return RequiredParentStatusFailure
	default:
		return RequiredParentStatusUnknown
	}
}

// RegistryAuth carries credentials for a private container registry.
type RegistryAuth struct {
	User string `json:"user"`
	Pass string `json:"pass"`
}

// Task is a single container invocation within a pipeline. It is read-only once a run has started.
type Task struct {
	ID           string                          `json:"id"`
	Description  string                          `json:"description"`
	Image        string                          `json:"image"`
	RegistryAuth *RegistryAuth                   `json:"registry_auth,omitempty"`
	DependsOn    map[string]RequiredParentStatus `json:"depends_on"`
	Variables    []Variable                      `json:"variables"`
	Entrypoint   []string                        `json:"entrypoint,omitempty"`
	Command      []string                        `json:"command,omitempty"`
	// InjectAPIToken tells the shepherd to mint a run-scoped API token and inject it under
	// GOFER_API_TOKEN as a pipeline-secret reference.
	InjectAPIToken bool `json:"inject_api_token"`
}

// Pipeline is the static, read-only-during-a-run definition of a task DAG belonging to a
// namespace.
type Pipeline struct {
	NamespaceID string          `json:"namespace_id"`
	PipelineID  string          `json:"pipeline_id"`
	// Parallelism caps the number of runs that may be in-progress simultaneously for this
	// pipeline. Zero means unbounded.
	Parallelism uint64          `json:"parallelism"`
	Tasks       map[string]Task `json:"tasks"`
}
