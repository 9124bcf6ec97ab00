package registrar

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/burrow/pkg/appenv"
	"github.com/cuemby/burrow/pkg/coordinator"
	"github.com/cuemby/burrow/pkg/resources"
	"github.com/cuemby/burrow/pkg/watchdog"
)

type fakeCoordinator struct {
	mu       sync.Mutex
	state    coordinator.SessionState
	nodes    map[string][]byte
	getErr   error
	deleted  []string
}

func newFakeCoordinator() *fakeCoordinator {
	return &fakeCoordinator{
		state: coordinator.StateConnected,
		nodes: make(map[string][]byte),
	}
}

func (f *fakeCoordinator) State() coordinator.SessionState { return f.state }

func (f *fakeCoordinator) Get(path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.nodes[path]
	if !ok {
		return nil, errors.New("no node")
	}
	return data, nil
}

func (f *fakeCoordinator) Exists(path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.nodes[path]
	return ok, nil
}

func (f *fakeCoordinator) Create(path string, data []byte, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.nodes[path]; ok {
		return errors.New("node exists")
	}
	f.nodes[path] = data
	return nil
}

func (f *fakeCoordinator) CreateOrSet(path string, data []byte, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodes[path] = data
	return nil
}

func (f *fakeCoordinator) EnsureDeleted(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.nodes, path)
	f.deleted = append(f.deleted, path)
	return nil
}

func registrarEnv(t *testing.T, available bool) appenv.Env {
	t.Helper()
	env := appenv.Env{Root: t.TempDir(), Hostname: "h1"}
	require.NoError(t, env.Ensure())
	state := "Unlock"
	if available {
		state = "Lock"
	}
	require.NoError(t, os.WriteFile(filepath.Join(env.Root, appenv.ScreenStateFile), []byte(state), 0o644))
	return env
}

func staticSample(s resources.Sample) Sampler {
	return func(time.Duration) (resources.Sample, error) { return s, nil }
}

func TestReconcileCreatesPresence(t *testing.T) {
	env := registrarEnv(t, true)
	zk := newFakeCoordinator()
	zk.nodes["/servers/node"] = []byte("label: ~\nparent: /cell\n")

	r := New(env, zk)
	r.sample = staticSample(resources.Sample{CPUFreePercent: 80, MemoryFreeMB: 2048, DiskFreeMB: 10240})

	require.NoError(t, r.reconcile())

	server, ok := zk.nodes["/servers/h1"]
	require.True(t, ok)
	presence, ok := zk.nodes["/server.presence/h1"]
	require.True(t, ok)
	assert.Equal(t, server, presence)
	assert.Contains(t, string(server), "cpu: 80%")
	assert.Contains(t, string(server), "memory: 2048M")
	assert.Contains(t, string(server), "disk: 10240M")
	assert.Contains(t, string(server), "parent: /cell")
}

func TestReconcileWithdrawsWhileUnavailable(t *testing.T) {
	env := registrarEnv(t, false)
	zk := newFakeCoordinator()
	zk.nodes["/server.presence/h1"] = []byte("stale")

	r := New(env, zk)
	require.NoError(t, r.reconcile())

	_, ok := zk.nodes["/server.presence/h1"]
	assert.False(t, ok)
}

func TestReconcileRespectsBlackout(t *testing.T) {
	env := registrarEnv(t, true)
	zk := newFakeCoordinator()
	zk.nodes["/servers/node"] = []byte("label: ~\n")
	zk.nodes["/blackedout.servers/h1"] = nil

	r := New(env, zk)
	r.sample = staticSample(resources.Sample{})

	require.NoError(t, r.reconcile())
	_, ok := zk.nodes["/server.presence/h1"]
	assert.False(t, ok)
}

func TestReconcileTemplateReadIsFatal(t *testing.T) {
	env := registrarEnv(t, true)
	zk := newFakeCoordinator()

	r := New(env, zk)
	r.sample = staticSample(resources.Sample{})

	assert.Error(t, r.reconcile())
}

func TestRenderDescriptor(t *testing.T) {
	sample := resources.Sample{CPUFreePercent: 50, MemoryFreeMB: 512, DiskFreeMB: 4096}

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{
			name:     "with parent key",
			template: "cpu: 1%\nlabel: ~\nparent: /cell/a\n",
			want:     "cpu: 50%\ndisk: 4096M\nlabel: windows\nmemory: 512M\nparent: /cell/a\n",
		},
		{
			name:     "without parent key",
			template: "label: ~\n",
			want:     "cpu: 50%\ndisk: 4096M\nlabel: windows\nmemory: 512M\n",
		},
		{
			name:     "without parent key keeps other lines",
			template: "label: ~\nos: win10\n",
			want:     "cpu: 50%\ndisk: 4096M\nlabel: windows\nmemory: 512M\nos: win10\n",
		},
		{
			name:     "only first tilde replaced",
			template: "label: ~\nother: ~\nparent: /cell/~\n",
			want:     "cpu: 50%\ndisk: 4096M\nlabel: windows\nmemory: 512M\nparent: /cell/~\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, renderDescriptor(tt.template, sample))
		})
	}
}

func TestStartStopLifecycle(t *testing.T) {
	env := registrarEnv(t, false)
	zk := newFakeCoordinator()

	r := New(env, zk)
	r.sample = staticSample(resources.Sample{})

	require.NoError(t, r.Start())
	// Wait for the run goroutine to come up.
	require.Eventually(t, func() bool {
		return r.Status() == watchdog.StatusRunning
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, r.Stop(time.Second))
	assert.Equal(t, watchdog.StatusStopped, r.Status())
}
