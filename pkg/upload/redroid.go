package upload

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/go-connections/nat"

	"github.com/Charliesj0129/pixAV/internal/logger"
)

const adbContainerPort = nat.Port("5555/tcp")

const readyPollInterval = 3 * time.Second

// DockerManager runs one redroid container per upload task through the
// Docker Engine API.
type DockerManager struct {
	cli    client.APIClient
	config RedroidConfig
}

// NewDockerManager connects to the Docker daemon from the environment
// (DOCKER_HOST et al.) with API version negotiation.
func NewDockerManager(cfg RedroidConfig) (*DockerManager, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &DockerManager{cli: cli, config: cfg}, nil
}

// NewDockerManagerWithClient wires an existing Docker API client, used
// by tests.
func NewDockerManagerWithClient(cli client.APIClient, cfg RedroidConfig) *DockerManager {
	return &DockerManager{cli: cli, config: cfg}
}

// Create starts a privileged redroid container for the task and
// resolves its mapped ADB endpoint.
func (d *DockerManager) Create(ctx context.Context, taskID string) (*Session, error) {
	name := "pixav-redroid-" + shortID(taskID, 8)

	cfg := &container.Config{
		Image:        d.config.Image,
		Labels:       map[string]string{"pixav.task_id": taskID},
		ExposedPorts: nat.PortSet{adbContainerPort: struct{}{}},
	}
	host := &container.HostConfig{
		Privileged: true,
		// An empty binding lets the daemon pick a free host port.
		PortBindings: nat.PortMap{adbContainerPort: {{}}},
	}
	if d.config.Network != "" {
		host.NetworkMode = container.NetworkMode(d.config.Network)
	}

	resp, err := d.cli.ContainerCreate(ctx, cfg, host, nil, nil, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create container %s: %w", name, err)
	}
	if err := d.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = d.cli.ContainerRemove(context.WithoutCancel(ctx), resp.ID, container.RemoveOptions{Force: true})
		return nil, fmt.Errorf("failed to start container %s: %w", name, err)
	}

	session := &Session{
		TaskID:      taskID,
		ContainerID: resp.ID,
		ADBHost:     d.config.ADBHost,
		ADBPort:     d.hostPort(ctx, resp.ID, name),
	}
	logger.Info("created redroid container",
		"name", name,
		"container_id", shortID(resp.ID, 12),
		"task_id", taskID,
		"adb_port", session.ADBPort)
	return session, nil
}

// Destroy force-removes the container. An already removed container is
// not an error.
func (d *DockerManager) Destroy(ctx context.Context, containerID string) error {
	err := d.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true})
	if errdefs.IsNotFound(err) {
		logger.Warn("container already removed", "container_id", shortID(containerID, 12))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to destroy container %s: %w", shortID(containerID, 12), err)
	}
	logger.Info("destroyed container", "container_id", shortID(containerID, 12))
	return nil
}

// WaitReady polls the container until it is running and healthy, or
// the timeout elapses. A container without a healthcheck counts as
// ready once running.
func (d *DockerManager) WaitReady(ctx context.Context, containerID string, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		inspect, err := d.cli.ContainerInspect(ctx, containerID)
		if err != nil {
			logger.Debug("waiting for container",
				"container_id", shortID(containerID, 12), "error", err)
		} else if inspect.State != nil {
			switch inspect.State.Status {
			case "running":
				health := "none"
				if inspect.State.Health != nil {
					health = inspect.State.Health.Status
				}
				if health == "healthy" || health == "none" {
					logger.Info("container is ready", "container_id", shortID(containerID, 12))
					return true, nil
				}
			case "exited", "dead":
				logger.Error("container in terminal state",
					"container_id", shortID(containerID, 12), "status", inspect.State.Status)
				return false, nil
			}
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(readyPollInterval):
		}
	}
	logger.Warn("container readiness timed out",
		"container_id", shortID(containerID, 12), "timeout", timeout)
	return false, nil
}

// hostPort resolves the host port mapped onto the container's ADB
// port, falling back to the configured start port.
func (d *DockerManager) hostPort(ctx context.Context, containerID, name string) int {
	inspect, err := d.cli.ContainerInspect(ctx, containerID)
	if err == nil && inspect.NetworkSettings != nil {
		bindings := inspect.NetworkSettings.Ports[adbContainerPort]
		if len(bindings) > 0 && bindings[0].HostPort != "" {
			if port, err := strconv.Atoi(bindings[0].HostPort); err == nil {
				return port
			}
		}
	}
	logger.Warn("could not read dynamic adb port, falling back",
		"container", name, "port", d.config.ADBPortStart)
	return d.config.ADBPortStart
}

func shortID(id string, n int) string {
	if len(id) <= n {
		return id
	}
	return id[:n]
}
