package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
)

// ContainerRuntime is the container runtime contract the pipeline consumes:
// create/start/kill/remove plus listing filtered by state and exit code.
type ContainerRuntime interface {
	Create(ctx context.Context, image, command string) (string, error)
	Start(ctx context.Context, id string) error
	Kill(ctx context.Context, id string) error
	Remove(ctx context.Context, id string) error
	Exists(ctx context.Context, id string) (bool, error)
	Exited(ctx context.Context) ([]string, error)
	ExitedWithCode(ctx context.Context, code int) ([]string, error)
	Close() error
}

// DockerRuntime implements ContainerRuntime against the Docker Engine API.
type DockerRuntime struct {
	cli *client.Client
}

// NewDockerRuntime creates a Docker client from the environment and checks
// the daemon is reachable.
func NewDockerRuntime(ctx context.Context) (*DockerRuntime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	if _, err := cli.Ping(ctx); err != nil {
		return nil, fmt.Errorf("docker daemon not accessible: %w", err)
	}
	return &DockerRuntime{cli: cli}, nil
}

// Close releases the client connection.
func (r *DockerRuntime) Close() error {
	return r.cli.Close()
}

// Create makes a container from the image running the given command and
// returns its id. The command is split on whitespace.
func (r *DockerRuntime) Create(ctx context.Context, image, command string) (string, error) {
	resp, err := r.cli.ContainerCreate(ctx, &container.Config{
		Image: image,
		Cmd:   strings.Fields(command),
	}, &container.HostConfig{}, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("failed to create container: %w", err)
	}
	return resp.ID, nil
}

// Start starts a created container.
func (r *DockerRuntime) Start(ctx context.Context, id string) error {
	if err := r.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start container %s: %w", id, err)
	}
	return nil
}

// Kill sends SIGKILL to a running container. A container that is already
// stopped or gone is not an error.
func (r *DockerRuntime) Kill(ctx context.Context, id string) error {
	err := r.cli.ContainerKill(ctx, id, "KILL")
	if err != nil && !errdefs.IsNotFound(err) && !errdefs.IsConflict(err) {
		return fmt.Errorf("failed to kill container %s: %w", id, err)
	}
	return nil
}

// Remove deletes a container. Absence is not an error; cleanup is
// at-least-once.
func (r *DockerRuntime) Remove(ctx context.Context, id string) error {
	err := r.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true})
	if err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("failed to remove container %s: %w", id, err)
	}
	return nil
}

// Exists reports whether the runtime knows the container.
func (r *DockerRuntime) Exists(ctx context.Context, id string) (bool, error) {
	_, err := r.cli.ContainerInspect(ctx, id)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to inspect container %s: %w", id, err)
	}
	return true, nil
}

// Exited lists the ids of all containers in the exited state.
func (r *DockerRuntime) Exited(ctx context.Context) ([]string, error) {
	return r.list(ctx, filters.Arg("status", "exited"))
}

// ExitedWithCode lists the ids of all containers that exited with the given
// code.
func (r *DockerRuntime) ExitedWithCode(ctx context.Context, code int) ([]string, error) {
	return r.list(ctx, filters.Arg("exited", fmt.Sprintf("%d", code)))
}

func (r *DockerRuntime) list(ctx context.Context, filter filters.KeyValuePair) ([]string, error) {
	containers, err := r.cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filter),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	ids := make([]string, 0, len(containers))
	for _, c := range containers {
		ids = append(ids, c.ID)
	}
	return ids, nil
}
