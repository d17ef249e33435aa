// Package docker implements driver.Driver against the Docker engine.
package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/rs/zerolog/log"

	"github.com/codexec/codexec/internal/driver"
)

// executorPort is the port the execution protocol inside the container
// listens on; it is bound 1:1 onto the host.
const executorPort = "5001"

// Driver talks to the local Docker daemon.
type Driver struct {
	cli *client.Client
}

// New connects to the Docker daemon using the environment defaults.
func New() (*Driver, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Driver{cli: cli}, nil
}

func (d *Driver) Ping(ctx context.Context) error {
	_, err := d.cli.Ping(ctx)
	return err
}

func (d *Driver) Close() error {
	return d.cli.Close()
}

// BuildImage implements driver.Driver.
func (d *Driver) BuildImage(ctx context.Context, contextTarPath, dockerfileName, imageTag string) error {
	f, err := os.Open(contextTarPath)
	if err != nil {
		return fmt.Errorf("failed to open build context %s: %w", contextTarPath, err)
	}
	defer f.Close()

	resp, err := d.cli.ImageBuild(ctx, f, types.ImageBuildOptions{
		Dockerfile: dockerfileName,
		Tags:       []string{imageTag},
		Remove:     true,
	})
	if err != nil {
		return fmt.Errorf("failed to build image %s: %w", imageTag, err)
	}
	defer resp.Body.Close()

	// The build result arrives as a JSON message stream; an error mid-stream
	// means the build failed even though the HTTP call succeeded.
	decoder := json.NewDecoder(resp.Body)
	for {
		var msg struct {
			Stream string `json:"stream"`
			Error  string `json:"error"`
		}
		if err := decoder.Decode(&msg); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("failed to read build output for %s: %w", imageTag, err)
		}
		if msg.Error != "" {
			return fmt.Errorf("build of %s failed: %s", imageTag, msg.Error)
		}
		if s := strings.TrimSpace(msg.Stream); s != "" {
			log.Debug().Str("image", imageTag).Msg(s)
		}
	}

	log.Info().Str("image", imageTag).Msg("Image built")
	return nil
}

// CreateContainer implements driver.Driver.
func (d *Driver) CreateContainer(ctx context.Context, name, imageTag string, labels map[string]string) error {
	port := nat.Port(executorPort + "/tcp")

	cfg := &container.Config{
		Image:        imageTag,
		Labels:       labels,
		ExposedPorts: nat.PortSet{port: struct{}{}},
	}
	hostCfg := &container.HostConfig{
		PortBindings: nat.PortMap{
			port: []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: executorPort}},
		},
	}

	if _, err := d.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, name); err != nil {
		return fmt.Errorf("failed to create container %s: %w", name, err)
	}
	log.Info().Str("container", name).Str("image", imageTag).Msg("Container created")
	return nil
}

// StartContainer implements driver.Driver.
func (d *Driver) StartContainer(ctx context.Context, name string) error {
	if err := d.cli.ContainerStart(ctx, name, types.ContainerStartOptions{}); err != nil {
		return fmt.Errorf("failed to start container %s: %w", name, err)
	}
	log.Info().Str("container", name).Msg("Container started")
	return nil
}

// RemoveContainer implements driver.Driver.
func (d *Driver) RemoveContainer(ctx context.Context, name string) error {
	opts := types.ContainerRemoveOptions{Force: true, RemoveVolumes: true}
	if err := d.cli.ContainerRemove(ctx, name, opts); err != nil {
		if client.IsErrNotFound(err) {
			return driver.ErrContainerNotFound
		}
		return fmt.Errorf("failed to remove container %s: %w", name, err)
	}
	return nil
}

// Exec implements driver.Driver.
func (d *Driver) Exec(ctx context.Context, containerName, shellCommand string) (string, error) {
	execCfg := types.ExecConfig{
		Cmd:          []string{"sh", "-c", shellCommand},
		AttachStdout: true,
		AttachStderr: true,
	}

	execResp, err := d.cli.ContainerExecCreate(ctx, containerName, execCfg)
	if err != nil {
		if client.IsErrNotFound(err) {
			return "", driver.ErrContainerNotFound
		}
		return "", fmt.Errorf("failed to create exec in %s: %w", containerName, err)
	}

	attach, err := d.cli.ContainerExecAttach(ctx, execResp.ID, types.ExecStartCheck{})
	if err != nil {
		return "", fmt.Errorf("%w: %v", driver.ErrExecutorUnavailable, err)
	}
	defer attach.Close()

	out, err := drainExecStream(attach.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to read exec output from %s: %w", containerName, err)
	}
	return out, nil
}

// drainExecStream consumes the multiplexed exec stream until it closes,
// concatenating stdout and stderr payloads in arrival order. Frame format:
// 8-byte header (stream type, 3 zero bytes, big-endian payload size).
func drainExecStream(r io.Reader) (string, error) {
	var out strings.Builder
	header := make([]byte, 8)
	for {
		if _, err := io.ReadFull(r, header); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return "", err
		}

		payloadSize := int64(header[4])<<24 | int64(header[5])<<16 | int64(header[6])<<8 | int64(header[7])
		if payloadSize <= 0 {
			continue
		}

		switch header[0] {
		case 1, 2: // stdout, stderr: captured in arrival order
			if _, err := io.CopyN(&out, r, payloadSize); err != nil {
				return "", err
			}
		default:
			if _, err := io.CopyN(io.Discard, r, payloadSize); err != nil {
				return "", err
			}
		}
	}
	return strings.ToValidUTF8(out.String(), "�"), nil
}

// ListOwned implements driver.Driver.
func (d *Driver) ListOwned(ctx context.Context, labelKey, podTag string) ([]driver.OwnedContainer, error) {
	list, err := d.cli.ContainerList(ctx, types.ContainerListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", labelKey+"="+podTag)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	owned := make([]driver.OwnedContainer, 0, len(list))
	for _, c := range list {
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}
		owned = append(owned, driver.OwnedContainer{ID: c.ID, Name: name})
	}
	return owned, nil
}
