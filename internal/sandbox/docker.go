package sandbox

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codearena-dev/codearena/internal/config"
	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

const (
	workDir         = "/work"
	runUser         = "1000"
	stopTimeoutSecs = 5

	// Resource limits per run.
	memoryLimitBytes = 256 * 1024 * 1024 // 256MB
	cpuQuota         = 50000             // 0.5 CPU
	pidsLimit        = 128
)

// runSpec describes how one language is executed inside a container.
type runSpec struct {
	image    string
	filename string
	command  string
}

var runSpecs = map[string]runSpec{
	"python":     {"python:3.12-alpine", "main.py", "python3 /work/main.py"},
	"javascript": {"node:22-alpine", "main.js", "node /work/main.js"},
	"java":       {"eclipse-temurin:21-jdk", "Main.java", "cd /work && javac Main.java && java Main"},
	"cpp":        {"gcc:13", "main.cpp", "g++ -O2 -o /tmp/prog /work/main.cpp && /tmp/prog"},
}

// DockerRunner executes code in short-lived local containers. Used when no
// remote execution API is configured.
type DockerRunner struct {
	cli     *client.Client
	timeout time.Duration
}

// NewDockerRunner creates a runner backed by the local Docker daemon.
func NewDockerRunner(cfg config.SandboxConfig) (*DockerRunner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &DockerRunner{cli: cli, timeout: timeout}, nil
}

// Close releases the Docker client.
func (d *DockerRunner) Close() error {
	return d.cli.Close()
}

// Run executes the source in a one-shot container with network disabled and
// resource limits applied. The container is always removed afterwards.
func (d *DockerRunner) Run(ctx context.Context, source, language string) (string, error) {
	spec, ok := runSpecs[language]
	if !ok {
		return UnsupportedLanguageMessage, nil
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	pids := int64(pidsLimit)
	created, err := d.cli.ContainerCreate(ctx,
		&container.Config{
			Image:           spec.image,
			Cmd:             []string{"sh", "-c", spec.command},
			WorkingDir:      workDir,
			User:            runUser,
			NetworkDisabled: true,
		},
		&container.HostConfig{
			Resources: container.Resources{
				Memory:    memoryLimitBytes,
				CPUQuota:  cpuQuota,
				PidsLimit: &pids,
			},
		},
		nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("create run container: %w", err)
	}
	defer d.remove(created.ID)

	archive, err := sourceArchive(spec.filename, source)
	if err != nil {
		return "", err
	}
	if err := d.cli.CopyToContainer(ctx, created.ID, "/", archive, container.CopyToContainerOptions{}); err != nil {
		return "", fmt.Errorf("copy source into container: %w", err)
	}

	if err := d.cli.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("start run container: %w", err)
	}

	waitCh, errCh := d.cli.ContainerWait(ctx, created.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return "", fmt.Errorf("wait for run container: %w", err)
		}
	case <-waitCh:
	case <-ctx.Done():
		return "", fmt.Errorf("run timed out after %s", d.timeout)
	}

	return d.collectOutput(ctx, created.ID)
}

func (d *DockerRunner) collectOutput(ctx context.Context, containerID string) (string, error) {
	logs, err := d.cli.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return "", fmt.Errorf("read run logs: %w", err)
	}
	defer func() {
		if closeErr := logs.Close(); closeErr != nil {
			slog.Debug("failed to close run logs", "error", closeErr)
		}
	}()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, logs); err != nil {
		return "", fmt.Errorf("demultiplex run logs: %w", err)
	}

	// Same priority order as the remote API: stdout wins over stderr.
	if stdout.Len() > 0 {
		return stdout.String(), nil
	}
	if stderr.Len() > 0 {
		return stderr.String(), nil
	}
	return NoOutputMessage, nil
}

// remove cleans up the run container on a background context so cleanup
// still happens after a timeout.
func (d *DockerRunner) remove(containerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeoutSecs*time.Second)
	defer cancel()

	err := d.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true})
	if err != nil && !errdefs.IsNotFound(err) {
		slog.Warn("failed to remove run container", "container_id", containerID, "error", err)
	}
}

func sourceArchive(filename, source string) (*bytes.Reader, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	hdr := &tar.Header{
		Name: workDir[1:] + "/" + filename,
		Mode: 0644,
		Size: int64(len(source)),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return nil, fmt.Errorf("write source tar header: %w", err)
	}
	if _, err := tw.Write([]byte(source)); err != nil {
		return nil, fmt.Errorf("write source tar body: %w", err)
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("finalize source tar: %w", err)
	}

	return bytes.NewReader(buf.Bytes()), nil
}
