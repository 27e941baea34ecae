package sandbox

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	dockertypes "github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
)

// DockerRuntime implements ContainerRuntime against the Docker Engine API.
type DockerRuntime struct {
	cli *client.Client
}

// NewDockerRuntime connects to the Docker daemon using environment defaults
// (DOCKER_HOST, DOCKER_TLS_VERIFY, etc).
func NewDockerRuntime() (*DockerRuntime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("connect to docker: %w", err)
	}
	return &DockerRuntime{cli: cli}, nil
}

func (r *DockerRuntime) EnsureContainer(ctx context.Context, spec ContainerSpec) (string, error) {
	existing, err := r.cli.ContainerInspect(ctx, spec.Name)
	if err == nil {
		if !existing.State.Running {
			if err := r.cli.ContainerStart(ctx, existing.ID, container.StartOptions{}); err != nil {
				return "", fmt.Errorf("restart container %s: %w", spec.Name, err)
			}
		}
		return existing.ID, nil
	}

	mounts := make([]mount.Mount, 0, len(spec.Mounts))
	for _, m := range spec.Mounts {
		mounts = append(mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   m.HostPath,
			Target:   m.ContainerPath,
			ReadOnly: m.ReadOnly,
		})
	}

	networkMode := container.NetworkMode("bridge")
	if spec.DisableNet {
		networkMode = container.NetworkMode("none")
	}

	created, err := r.cli.ContainerCreate(ctx,
		&container.Config{
			Image:      spec.Image,
			WorkingDir: spec.WorkingDir,
			Tty:        false,
			Cmd:        []string{"sleep", "infinity"},
		},
		&container.HostConfig{
			Mounts:      mounts,
			NetworkMode: networkMode,
		},
		nil, nil, spec.Name,
	)
	if err != nil {
		return "", fmt.Errorf("create container %s: %w", spec.Name, err)
	}

	if err := r.cli.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("start container %s: %w", spec.Name, err)
	}
	return created.ID, nil
}

func (r *DockerRuntime) Exec(ctx context.Context, containerID string, command string) (string, int, bool, error) {
	execConfig := dockertypes.ExecConfig{
		Cmd:          []string{"/bin/sh", "-c", command},
		AttachStdout: true,
		AttachStderr: true,
	}
	execID, err := r.cli.ContainerExecCreate(ctx, containerID, execConfig)
	if err != nil {
		return "", 0, false, fmt.Errorf("exec create: %w", err)
	}

	attach, err := r.cli.ContainerExecAttach(ctx, execID.ID, dockertypes.ExecStartCheck{})
	if err != nil {
		return "", 0, false, fmt.Errorf("exec attach: %w", err)
	}
	defer attach.Close()

	var buf bytes.Buffer
	done := make(chan error, 1)
	go func() {
		_, copyErr := io.Copy(&buf, attach.Reader)
		done <- copyErr
	}()

	select {
	case <-ctx.Done():
		return buf.String(), -1, true, nil
	case copyErr := <-done:
		if copyErr != nil && copyErr != io.EOF {
			return buf.String(), 0, false, fmt.Errorf("read exec output: %w", copyErr)
		}
	}

	inspect, err := r.cli.ContainerExecInspect(ctx, execID.ID)
	if err != nil {
		return buf.String(), 0, false, fmt.Errorf("exec inspect: %w", err)
	}
	return buf.String(), inspect.ExitCode, false, nil
}

// CopyToContainer tars content as a single entry at the base name of
// destPath and extracts it into destPath's parent directory, matching the
// Docker Engine API's tar-stream upload contract.
func (r *DockerRuntime) CopyToContainer(ctx context.Context, containerID string, destPath string, content io.Reader) error {
	data, err := io.ReadAll(content)
	if err != nil {
		return fmt.Errorf("read content: %w", err)
	}

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	hdr := &tar.Header{Name: path.Base(destPath), Mode: 0o644, Size: int64(len(data))}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write tar header: %w", err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("write tar body: %w", err)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar writer: %w", err)
	}

	return r.cli.CopyToContainer(ctx, containerID, path.Dir(destPath), &buf, dockertypes.CopyToContainerOptions{})
}

func (r *DockerRuntime) CopyFromContainer(ctx context.Context, containerID string, path string) (io.ReadCloser, error) {
	rc, _, err := r.cli.CopyFromContainer(ctx, containerID, path)
	return rc, err
}

func (r *DockerRuntime) Stop(ctx context.Context, containerID string) error {
	return r.cli.ContainerStop(ctx, containerID, container.StopOptions{})
}
