// Package scheduler defines the interface a container scheduler must adhere to. The shepherd uses
// it to launch, poll, cancel, and tail the containers backing a task execution.
package scheduler

import (
	"errors"
	"time"
)

type EngineType string

const (
	// EngineDocker uses a local docker instance to schedule tasks.
	EngineDocker EngineType = "docker"
)

// ErrNoSuchContainer is returned when a container requested could not be located on the scheduler.
var ErrNoSuchContainer = errors.New("scheduler: entity not found")

// ErrNoSuchImage is returned when the requested container image could not be pulled.
var ErrNoSuchImage = errors.New("scheduler: image not found")

// ContainerState is the scheduler's view of a container's lifecycle, independent of the models
// package's TaskExecutionState/Status (which also track orchestration bookkeeping the scheduler
// knows nothing about).
type ContainerState string

const (
	ContainerStateUnknown    ContainerState = "UNKNOWN"
	ContainerStateRunning    ContainerState = "RUNNING"
	ContainerStateSuccess    ContainerState = "SUCCESS"
	ContainerStateFailed     ContainerState = "FAILED"
	ContainerStateCancelled  ContainerState = "CANCELLED"
)

type StartContainerRequest struct {
	ID        string            // deterministic "{namespace}_{pipeline}_{run_id}_{task_id}"
	ImageName string            // image repository endpoint; tag can be included.
	EnvVars   map[string]string // environment variables to pass to the container.

	RegistryUser string // username for a private registry
	RegistryPass string // password for a private registry

	Entrypoint []string
	Command    []string

	// AlwaysPull attempts to pull from the repository even if the image exists locally. Useful
	// for images that don't use proper tagging or versioning.
	AlwaysPull bool
}

type StartContainerResponse struct {
	SchedulerID string // uniquely identifies the container that has started.
}

type StopContainerRequest struct {
	SchedulerID string        // unique identification for the container to stop.
	Timeout     time.Duration // total time to wait for a graceful stop before a SIGKILL.
}

type GetStateRequest struct {
	SchedulerID string
}

type GetStateResponse struct {
	ExitCode int
	State    ContainerState
}

type GetLogsRequest struct {
	SchedulerID string
}

// LogItemKind tags which stream a chunk of log output came from.
type LogItemKind string

const (
	LogItemStdout  LogItemKind = "STDOUT"
	LogItemStderr  LogItemKind = "STDERR"
	LogItemUnknown LogItemKind = "UNKNOWN"
)

// LogItem is one tagged chunk of container output.
type LogItem struct {
	Kind LogItemKind
	Data []byte
}

type Engine interface {
	// StartContainer launches a new container on the scheduler, returning a unique
	// "schedulerID" the caller uses on subsequent calls.
	StartContainer(request StartContainerRequest) (response StartContainerResponse, err error)

	// StopContainer attempts to gracefully stop a container, falling back to a hard kill once
	// the request's timeout elapses.
	StopContainer(request StopContainerRequest) error

	// GetState returns the current state of the container.
	GetState(request GetStateRequest) (response GetStateResponse, err error)

	// GetLogs streams tagged log chunks from the container over the returned channel. The
	// channel is closed once the container's log stream ends.
	GetLogs(request GetLogsRequest) (<-chan LogItem, error)
}
