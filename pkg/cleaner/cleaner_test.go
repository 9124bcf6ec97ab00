package cleaner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/burrow/pkg/appenv"
	"github.com/cuemby/burrow/pkg/types"
)

type fakeCoordinator struct {
	mu      sync.Mutex
	deleted []string
	err     error
}

func (f *fakeCoordinator) EnsureDeleted(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, path)
	return nil
}

type fakeRuntime struct {
	mu      sync.Mutex
	removed []string
	err     error
}

func (f *fakeRuntime) Remove(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.removed = append(f.removed, id)
	return nil
}

func cleanerEnv(t *testing.T) appenv.Env {
	t.Helper()
	env := appenv.Env{Root: t.TempDir(), Hostname: "h1"}
	require.NoError(t, env.Ensure())
	require.NoError(t, os.WriteFile(filepath.Join(env.Root, appenv.ScreenStateFile), []byte("Lock"), 0o644))
	return env
}

func queueInstance(t *testing.T, env appenv.Env, instance, cid string) {
	t.Helper()
	marker := &types.RunMarker{ContainerID: cid}
	data, err := marker.Encode()
	require.NoError(t, err)
	require.NoError(t, appenv.WriteAtomic(env.Cache(), instance, []byte("services:\n- name: s\n  command: c\n")))
	require.NoError(t, appenv.WriteAtomic(env.Running(), instance, data))
	require.NoError(t, appenv.WriteAtomic(env.Cleanup(), instance, data))
}

func assertGone(t *testing.T, env appenv.Env, instance string) {
	t.Helper()
	for _, dir := range []string{env.Cache(), env.Running(), env.Cleanup()} {
		_, err := os.Stat(filepath.Join(dir, instance))
		assert.True(t, os.IsNotExist(err), "expected %s gone from %s", instance, dir)
	}
}

func TestCleanupRemovesEverything(t *testing.T) {
	env := cleanerEnv(t)
	zk := &fakeCoordinator{}
	rt := &fakeRuntime{}
	c := New(env, zk, rt)

	queueInstance(t, env, "appA#001", "c123")
	require.NoError(t, c.CleanupOne("appA#001"))

	assert.Equal(t, []string{"/placement/h1/appA#001"}, zk.deleted)
	assert.Equal(t, []string{"c123"}, rt.removed)
	assertGone(t, env, "appA#001")
}

func TestCleanupRetriesOnRuntimeError(t *testing.T) {
	env := cleanerEnv(t)
	zk := &fakeCoordinator{}
	rt := &fakeRuntime{err: errors.New("daemon busy")}
	c := New(env, zk, rt)

	queueInstance(t, env, "appA#001", "c123")
	assert.Error(t, c.CleanupOne("appA#001"))

	// The marker survives the failed pass.
	_, err := os.Stat(filepath.Join(env.Cleanup(), "appA#001"))
	assert.NoError(t, err)

	// Next tick with a healthy runtime drains it.
	rt.err = nil
	require.NoError(t, c.CleanupOne("appA#001"))
	assertGone(t, env, "appA#001")
}

func TestCleanupRetriesOnCoordinatorError(t *testing.T) {
	env := cleanerEnv(t)
	zk := &fakeCoordinator{err: errors.New("connection loss")}
	rt := &fakeRuntime{}
	c := New(env, zk, rt)

	queueInstance(t, env, "appA#001", "c123")
	assert.Error(t, c.CleanupOne("appA#001"))
	assert.Empty(t, rt.removed)
}

func TestSweepSkipsWhileUnavailable(t *testing.T) {
	env := cleanerEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(env.Root, appenv.ScreenStateFile), []byte("Unlock"), 0o644))
	zk := &fakeCoordinator{}
	rt := &fakeRuntime{}
	c := New(env, zk, rt)

	queueInstance(t, env, "appA#001", "c123")
	c.Sweep()

	assert.Empty(t, rt.removed)
	_, err := os.Stat(filepath.Join(env.Cleanup(), "appA#001"))
	assert.NoError(t, err)
}

func TestSweepProcessesAllEntries(t *testing.T) {
	env := cleanerEnv(t)
	zk := &fakeCoordinator{}
	rt := &fakeRuntime{}
	c := New(env, zk, rt)

	queueInstance(t, env, "appA#001", "c1")
	queueInstance(t, env, "appB#002", "c2")
	c.Sweep()

	assert.ElementsMatch(t, []string{"c1", "c2"}, rt.removed)
	assertGone(t, env, "appA#001")
	assertGone(t, env, "appB#002")
}
