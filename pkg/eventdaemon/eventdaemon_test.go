package eventdaemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-zookeeper/zk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/cuemby/burrow/pkg/appenv"
	"github.com/cuemby/burrow/pkg/coordinator"
	"github.com/cuemby/burrow/pkg/types"
)

type fakeCoordinator struct {
	mu    sync.Mutex
	nodes map[string][]byte
}

func newFakeCoordinator() *fakeCoordinator {
	return &fakeCoordinator{nodes: make(map[string][]byte)}
}

func (f *fakeCoordinator) WatchExists(path string) (bool, <-chan coordinator.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.nodes[path]
	return ok, make(chan coordinator.Event), nil
}

func (f *fakeCoordinator) Children(path string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var children []string
	prefix := path + "/"
	for node := range f.nodes {
		if len(node) > len(prefix) && node[:len(prefix)] == prefix {
			children = append(children, node[len(prefix):])
		}
	}
	return children, nil
}

func (f *fakeCoordinator) GetYAML(path string, out interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.nodes[path]
	if !ok {
		return zk.ErrNoNode
	}
	return yaml.Unmarshal(data, out)
}

type fakeKiller struct {
	mu     sync.Mutex
	killed []string
	err    error
}

func (f *fakeKiller) Kill(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.killed = append(f.killed, id)
	return nil
}

func daemonEnv(t *testing.T) appenv.Env {
	t.Helper()
	env := appenv.Env{Root: t.TempDir(), Hostname: "h1"}
	require.NoError(t, env.Ensure())
	return env
}

func cachedInstances(t *testing.T, env appenv.Env) []string {
	t.Helper()
	names, err := appenv.ListInstances(env.Cache())
	require.NoError(t, err)
	return names
}

func TestSynchronizeCachesMissing(t *testing.T) {
	env := daemonEnv(t)
	zkc := newFakeCoordinator()
	zkc.nodes["/scheduled/appA#001"] = []byte("services:\n- name: web\n  command: run.sh\n")

	d := New(env, zkc, &fakeKiller{})
	require.NoError(t, d.Synchronize([]string{"appA#001"}))

	assert.Equal(t, []string{"appA#001"}, cachedInstances(t, env))

	data, err := os.ReadFile(filepath.Join(env.Cache(), "appA#001"))
	require.NoError(t, err)
	manifest, err := types.ParseManifest(data)
	require.NoError(t, err)
	assert.Equal(t, "001", manifest.Task)
}

func TestSynchronizeMergesPlacementPayload(t *testing.T) {
	env := daemonEnv(t)
	zkc := newFakeCoordinator()
	zkc.nodes["/scheduled/appA#001"] = []byte("services:\n- name: web\n  command: run.sh\n")
	zkc.nodes["/placement/h1/appA#001"] = []byte("image: custom\nrack: r7\n")

	d := New(env, zkc, &fakeKiller{})
	require.NoError(t, d.Synchronize([]string{"appA#001"}))

	data, err := os.ReadFile(filepath.Join(env.Cache(), "appA#001"))
	require.NoError(t, err)
	manifest, err := types.ParseManifest(data)
	require.NoError(t, err)
	assert.Equal(t, "custom", manifest.Image)
	assert.Equal(t, "r7", manifest.Extra["rack"])
}

func TestSynchronizeRemovesExtra(t *testing.T) {
	env := daemonEnv(t)
	zkc := newFakeCoordinator()
	require.NoError(t, appenv.WriteAtomic(env.Cache(), "appB#002", []byte("services: []\n")))

	d := New(env, zkc, &fakeKiller{})
	require.NoError(t, d.Synchronize(nil))

	assert.Empty(t, cachedInstances(t, env))
}

func TestSynchronizeKillsRunningExtra(t *testing.T) {
	env := daemonEnv(t)
	zkc := newFakeCoordinator()
	killer := &fakeKiller{}

	require.NoError(t, appenv.WriteAtomic(env.Cache(), "appC#003", []byte("services: []\n")))
	marker := &types.RunMarker{ContainerID: "c999"}
	data, err := marker.Encode()
	require.NoError(t, err)
	require.NoError(t, appenv.WriteAtomic(env.Running(), "appC#003", data))

	d := New(env, zkc, killer)
	require.NoError(t, d.Synchronize(nil))

	assert.Equal(t, []string{"c999"}, killer.killed)
	assert.Empty(t, cachedInstances(t, env))
}

func TestSynchronizeKillFailureStillDropsCache(t *testing.T) {
	env := daemonEnv(t)
	zkc := newFakeCoordinator()
	killer := &fakeKiller{err: errors.New("runtime down")}

	require.NoError(t, appenv.WriteAtomic(env.Cache(), "appC#003", []byte("services: []\n")))
	marker := &types.RunMarker{ContainerID: "c999"}
	data, err := marker.Encode()
	require.NoError(t, err)
	require.NoError(t, appenv.WriteAtomic(env.Running(), "appC#003", data))

	d := New(env, zkc, killer)
	require.NoError(t, d.Synchronize(nil))

	assert.Empty(t, cachedInstances(t, env))
}

func TestSynchronizeSetTransitions(t *testing.T) {
	env := daemonEnv(t)
	zkc := newFakeCoordinator()
	zkc.nodes["/scheduled/a#1"] = []byte("services:\n- name: s\n  command: c\n")
	zkc.nodes["/scheduled/b#2"] = []byte("services:\n- name: s\n  command: c\n")

	d := New(env, zkc, &fakeKiller{})

	require.NoError(t, d.Synchronize(nil))
	assert.Empty(t, cachedInstances(t, env))

	require.NoError(t, d.Synchronize([]string{"a#1", "b#2"}))
	assert.Equal(t, []string{"a#1", "b#2"}, cachedInstances(t, env))

	require.NoError(t, d.Synchronize([]string{"b#2"}))
	assert.Equal(t, []string{"b#2"}, cachedInstances(t, env))

	require.NoError(t, d.Synchronize(nil))
	assert.Empty(t, cachedInstances(t, env))
}

func TestSynchronizeSkipsUnknownScheduled(t *testing.T) {
	env := daemonEnv(t)
	zkc := newFakeCoordinator()

	d := New(env, zkc, &fakeKiller{})
	require.NoError(t, d.Synchronize([]string{"ghost#1"}))

	// Missing scheduler record: nothing cached, next pass corrects.
	assert.Empty(t, cachedInstances(t, env))
}

func TestSynchronizeLeavesDotFilesAlone(t *testing.T) {
	env := daemonEnv(t)
	zkc := newFakeCoordinator()
	require.NoError(t, env.MarkSeen())

	d := New(env, zkc, &fakeKiller{})
	require.NoError(t, d.Synchronize(nil))

	assert.True(t, env.Seen())
}

func TestInstanceWithoutTaskStillCached(t *testing.T) {
	env := daemonEnv(t)
	zkc := newFakeCoordinator()
	zkc.nodes["/scheduled/plainname"] = []byte("services:\n- name: s\n  command: c\n")

	d := New(env, zkc, &fakeKiller{})
	require.NoError(t, d.Synchronize([]string{"plainname"}))

	data, err := os.ReadFile(filepath.Join(env.Cache(), "plainname"))
	require.NoError(t, err)
	manifest, err := types.ParseManifest(data)
	require.NoError(t, err)
	assert.Empty(t, manifest.Task)
}
