// Package docker is a Docker-backed implementation of scheduler.Engine.
package docker

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/coldforge/shepherd/internal/scheduler"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/rs/zerolog/log"
)

// Orchestrator schedules task executions as local docker containers.
type Orchestrator struct {
	// cancelled keeps track of containers stopped via StopContainer. Docker gives no way to
	// distinguish a container we stopped from one that exited naturally, so GetState consults
	// this map to report Cancelled instead of Failed/Success for those containers.
	cancelled map[string]time.Time
	*client.Client
}

const envvarFormat = "%s=%s"

func New(pruneInterval time.Duration) (Orchestrator, error) {
	docker, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return Orchestrator{}, err
	}

	if _, err := docker.Info(context.Background()); err != nil {
		return Orchestrator{}, fmt.Errorf("could not connect to docker; is docker installed? %w", err)
	}

	// Containers are left in place (not auto-removed) so operators can inspect them after a
	// failure. ContainerPrune on a loop keeps that from accumulating indefinitely.
	if pruneInterval > 0 {
		go func() {
			for {
				report, err := docker.ContainersPrune(context.Background(), filters.Args{})
				if err != nil {
					log.Debug().Err(err).Msg("docker: could not prune containers")
				} else {
					log.Debug().Int("containers_deleted", len(report.ContainersDeleted)).
						Uint64("space_reclaimed", report.SpaceReclaimed).Msg("docker: pruned containers")
				}

				time.Sleep(pruneInterval)
			}
		}()
	}

	cancelled := map[string]time.Time{}
	go func() {
		for {
			time.Sleep(time.Hour * 24)
			for id, insertTime := range cancelled {
				if insertTime.Before(time.Now().AddDate(0, 0, -1)) {
					delete(cancelled, id)
				}
			}
		}
	}()

	return Orchestrator{
		Client:    docker,
		cancelled: cancelled,
	}, nil
}

func (orch *Orchestrator) StartContainer(req scheduler.StartContainerRequest) (scheduler.StartContainerResponse, error) {
	ctx := context.Background()

	var dockerRegistryAuth string
	if req.RegistryUser != "" {
		authString := fmt.Sprintf("%s:%s", req.RegistryUser, req.RegistryPass)
		dockerRegistryAuth = base64.StdEncoding.EncodeToString([]byte(authString))
	}

	if req.AlwaysPull {
		r, err := orch.ImagePull(ctx, req.ImageName, types.ImagePullOptions{RegistryAuth: dockerRegistryAuth})
		if err != nil {
			if strings.Contains(err.Error(), "manifest unknown") {
				return scheduler.StartContainerResponse{}, fmt.Errorf("image '%s' not found or missing auth: %w", req.ImageName, scheduler.ErrNoSuchImage)
			}
			return scheduler.StartContainerResponse{}, err
		}
		_, _ = io.Copy(io.Discard, r) // we only care about pull errors, not pull progress
		defer r.Close()
	} else {
		list, _ := orch.ImageList(ctx, types.ImageListOptions{
			Filters: filters.NewArgs(filters.KeyValuePair{Key: "reference", Value: req.ImageName}),
		})

		if len(list) == 0 {
			r, err := orch.ImagePull(ctx, req.ImageName, types.ImagePullOptions{RegistryAuth: dockerRegistryAuth})
			if err != nil {
				if strings.Contains(err.Error(), "manifest unknown") {
					return scheduler.StartContainerResponse{}, fmt.Errorf("image '%s' not found or missing auth: %w", req.ImageName, scheduler.ErrNoSuchImage)
				}
				return scheduler.StartContainerResponse{}, err
			}
			_, _ = io.Copy(io.Discard, r)
			defer r.Close()
		}
	}

	containerConfig := &container.Config{
		Image:      req.ImageName,
		Env:        convertEnvVars(req.EnvVars),
		Entrypoint: req.Entrypoint,
		Cmd:        req.Command,
	}

	removeOptions := types.ContainerRemoveOptions{RemoveVolumes: true, Force: true}
	_ = orch.ContainerRemove(ctx, req.ID, removeOptions)

	createResp, err := orch.ContainerCreate(ctx, containerConfig, &container.HostConfig{}, nil, nil, req.ID)
	if err != nil {
		return scheduler.StartContainerResponse{}, err
	}

	if err := orch.ContainerStart(ctx, createResp.ID, types.ContainerStartOptions{}); err != nil {
		return scheduler.StartContainerResponse{}, err
	}

	return scheduler.StartContainerResponse{SchedulerID: createResp.ID}, nil
}

func (orch *Orchestrator) StopContainer(req scheduler.StopContainerRequest) error {
	orch.cancelled[req.SchedulerID] = time.Now()

	timeout := int(req.Timeout.Seconds())
	err := orch.ContainerStop(context.Background(), req.SchedulerID, container.StopOptions{Timeout: &timeout})
	if err != nil {
		if strings.Contains(err.Error(), "No such container") {
			return scheduler.ErrNoSuchContainer
		}
		return err
	}

	return nil
}

func (orch *Orchestrator) GetState(gs scheduler.GetStateRequest) (scheduler.GetStateResponse, error) {
	containerInfo, err := orch.ContainerInspect(context.Background(), gs.SchedulerID)
	if err != nil {
		if strings.Contains(err.Error(), "No such container") {
			return scheduler.GetStateResponse{State: scheduler.ContainerStateUnknown}, scheduler.ErrNoSuchContainer
		}

		return scheduler.GetStateResponse{State: scheduler.ContainerStateUnknown}, err
	}

	switch containerInfo.State.Status {
	case "created", "running":
		return scheduler.GetStateResponse{State: scheduler.ContainerStateRunning}, nil
	case "exited":
		_, wasCancelled := orch.cancelled[gs.SchedulerID]
		if wasCancelled {
			return scheduler.GetStateResponse{
				ExitCode: containerInfo.State.ExitCode,
				State:    scheduler.ContainerStateCancelled,
			}, nil
		}

		if containerInfo.State.ExitCode == 0 {
			return scheduler.GetStateResponse{
				ExitCode: containerInfo.State.ExitCode,
				State:    scheduler.ContainerStateSuccess,
			}, nil
		}

		return scheduler.GetStateResponse{
			ExitCode: containerInfo.State.ExitCode,
			State:    scheduler.ContainerStateFailed,
		}, nil
	default:
		log.Debug().Str("state", containerInfo.State.Status).Msg("docker: abnormal container state")
		return scheduler.GetStateResponse{State: scheduler.ContainerStateUnknown}, nil
	}
}

// GetLogs streams tagged log chunks from the container's combined stdout/stderr stream.
//
// Docker multiplexes both streams on the wire as a sequence of 8-byte headers (stream type +
// length) followed by that many bytes of payload; this reads that framing directly instead of
// handing it to stdcopy.StdCopy, which would demultiplex both streams into one untagged pipe and
// lose the distinction the log capturer needs to preserve.
func (orch *Orchestrator) GetLogs(gl scheduler.GetLogsRequest) (<-chan scheduler.LogItem, error) {
	out, err := orch.ContainerLogs(context.Background(), gl.SchedulerID, types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "No such container") {
			return nil, scheduler.ErrNoSuchContainer
		}

		return nil, err
	}

	items := make(chan scheduler.LogItem, 64)

	go func() {
		defer close(items)
		defer out.Close()

		reader := bufio.NewReader(out)
		header := make([]byte, 8)

		for {
			if _, err := io.ReadFull(reader, header); err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
					log.Error().Err(err).Msg("docker: could not read log stream header")
				}
				return
			}

			kind := scheduler.LogItemUnknown
			switch header[0] {
			case 1:
				kind = scheduler.LogItemStdout
			case 2:
				kind = scheduler.LogItemStderr
			}

			size := binary.BigEndian.Uint32(header[4:8])
			payload := make([]byte, size)
			if _, err := io.ReadFull(reader, payload); err != nil {
				log.Error().Err(err).Msg("docker: could not read log stream payload")
				return
			}

			items <- scheduler.LogItem{Kind: kind, Data: payload}
		}
	}()

	return items, nil
}

func convertEnvVars(envvars map[string]string) []string {
	output := []string{}
	for key, value := range envvars {
		output = append(output, fmt.Sprintf(envvarFormat, key, value))
	}

	return output
}
