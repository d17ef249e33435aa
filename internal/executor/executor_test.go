package executor

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codexec/codexec/internal/cleanup"
	"github.com/codexec/codexec/internal/config"
	"github.com/codexec/codexec/internal/driver"
	"github.com/codexec/codexec/internal/language"
	"github.com/codexec/codexec/internal/session"
)

type execCall struct {
	container string
	cmd       string
}

type fakeDriver struct {
	mu      sync.Mutex
	builds  []string
	created map[string]map[string]string
	started []string
	removed []string
	execs   []execCall

	execOutput string
	execErr    error
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{created: make(map[string]map[string]string)}
}

func (f *fakeDriver) BuildImage(_ context.Context, _, _, imageTag string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builds = append(f.builds, imageTag)
	return nil
}

func (f *fakeDriver) CreateContainer(_ context.Context, name, _ string, labels map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created[name] = labels
	return nil
}

func (f *fakeDriver) StartContainer(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, name)
	return nil
}

func (f *fakeDriver) RemoveContainer(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, name)
	return nil
}

func (f *fakeDriver) Exec(_ context.Context, containerName, shellCommand string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs = append(f.execs, execCall{container: containerName, cmd: shellCommand})
	return f.execOutput, f.execErr
}

func (f *fakeDriver) ListOwned(_ context.Context, _, _ string) ([]driver.OwnedContainer, error) {
	return nil, nil
}

func (f *fakeDriver) Ping(context.Context) error { return nil }
func (f *fakeDriver) Close() error               { return nil }

func (f *fakeDriver) buildCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.builds)
}

func newTestService(t *testing.T, drv driver.Driver) (*Service, *session.Registry, *config.Config) {
	t.Helper()

	dir := t.TempDir()
	dockerfile := filepath.Join(dir, "python.Dockerfile")
	require.NoError(t, os.WriteFile(dockerfile, []byte("FROM python:3.12-slim\n"), 0o644))

	cfg := &config.Config{}
	cfg.Dockerfiles.Python = dockerfile
	cfg.Dockerfiles.JavaScript = dockerfile
	cfg.Dockerfiles.Java = dockerfile
	cfg.Paths.TarPath = filepath.Join(dir, "context")
	cfg.Constants.Dockerfile = "Dockerfile"
	cfg.Constants.DockerCreatedByLabel = "created-by"
	cfg.Constants.ExecutorContainerName = "executor"
	cfg.Constants.ExecutorImageName = "executor_image"
	cfg.Constants.TarFileName = "context.tar"
	cfg.Build.ServiceName = "executor_service test-pod"

	registry := session.NewRegistry(session.Config{
		SessionTimeout: 24 * time.Hour,
		MaxSessions:    100,
	})
	cleaner := cleanup.NewService(drv, cfg.Constants.DockerCreatedByLabel, cfg.PodTag(), cfg.Paths.TarPath)
	return NewService(cfg, drv, registry, cleaner), registry, cfg
}

func TestEnsureSessionContainerMissBuildsAndRegisters(t *testing.T) {
	drv := newFakeDriver()
	drv.execOutput = "1\n"
	svc, registry, cfg := newTestService(t, drv)

	out, err := svc.EnsureSessionContainer(context.Background(), "s1", language.Python, "print(1)")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)

	require.Len(t, drv.builds, 1)
	assert.Equal(t, "executor_image_s1_python", drv.builds[0])

	labels, ok := drv.created["executor_python_s1"]
	require.True(t, ok)
	assert.Equal(t, cfg.PodTag(), labels["created-by"])
	assert.Equal(t, []string{"executor_python_s1"}, drv.started)

	require.Len(t, drv.execs, 1)
	assert.Equal(t, "executor_python_s1", drv.execs[0].container)
	assert.Equal(t, "echo 'print(1)' > script.py && python script.py", drv.execs[0].cmd)

	v, err := registry.Lookup("s1", language.Python)
	require.NoError(t, err)
	assert.Equal(t, "executor_python_s1", v.ContainerName)
}

func TestEnsureSessionContainerHitSkipsBuild(t *testing.T) {
	drv := newFakeDriver()
	drv.execOutput = "1\n"
	svc, registry, _ := newTestService(t, drv)

	require.NoError(t, registry.Add("s1", language.Python, "executor_python_s1"))

	out, err := svc.EnsureSessionContainer(context.Background(), "s1", language.Python, "print(1)")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)

	assert.Zero(t, drv.buildCount(), "a warm session must not trigger a build")
	assert.Empty(t, drv.created)
	require.Len(t, drv.execs, 1)
	assert.Equal(t, "executor_python_s1", drv.execs[0].container)
}

func TestSequentialCallsReuseOneContainer(t *testing.T) {
	drv := newFakeDriver()
	drv.execOutput = "1\n"
	svc, _, _ := newTestService(t, drv)

	_, err := svc.EnsureSessionContainer(context.Background(), "s1", language.Python, "print(1)")
	require.NoError(t, err)
	_, err = svc.EnsureSessionContainer(context.Background(), "s1", language.Python, "print(1)")
	require.NoError(t, err)

	assert.Equal(t, 1, drv.buildCount())
	assert.Len(t, drv.execs, 2)
}

func TestLanguageMismatchKeepsSessionsApart(t *testing.T) {
	drv := newFakeDriver()
	svc, registry, _ := newTestService(t, drv)

	_, err := svc.EnsureSessionContainer(context.Background(), "s1", language.Python, "print(1)")
	require.NoError(t, err)
	_, err = svc.EnsureSessionContainer(context.Background(), "s1", language.JavaScript, "console.log(2)")
	require.NoError(t, err)

	assert.Equal(t, 2, drv.buildCount())
	_, err = registry.Lookup("s1", language.Python)
	assert.NoError(t, err)
	_, err = registry.Lookup("s1", language.JavaScript)
	assert.NoError(t, err)
}

func TestRegistrationFailureRemovesFreshContainer(t *testing.T) {
	drv := newFakeDriver()
	svc, registry, _ := newTestService(t, drv)

	// Occupy the key so the post-start registration conflicts.
	require.NoError(t, registry.Add("s1", language.Python, "someone_else"))

	_, err := svc.BuildAndStart(context.Background(), "s1", language.Python)
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrAlreadyExists)
	assert.Equal(t, []string{"executor_python_s1"}, drv.removed)

	v, lookupErr := registry.Lookup("s1", language.Python)
	require.NoError(t, lookupErr)
	assert.Equal(t, "someone_else", v.ContainerName, "the live entry must be untouched")
}
