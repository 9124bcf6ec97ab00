package statemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/burrow/pkg/appenv"
	"github.com/cuemby/burrow/pkg/trace"
	"github.com/cuemby/burrow/pkg/types"
)

// fakeRuntime reports a fixed exit code per container id.
type fakeRuntime struct {
	exitCodes map[string]int
}

func (f *fakeRuntime) Exited(context.Context) ([]string, error) {
	var ids []string
	for id := range f.exitCodes {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeRuntime) ExitedWithCode(_ context.Context, code int) ([]string, error) {
	var ids []string
	for id, c := range f.exitCodes {
		if c == code {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func monitorEnv(t *testing.T) appenv.Env {
	t.Helper()
	env := appenv.Env{Root: t.TempDir(), Hostname: "h1"}
	require.NoError(t, env.Ensure())
	return env
}

func startInstance(t *testing.T, env appenv.Env, instance, cid string) {
	t.Helper()
	m := &types.Manifest{Services: []types.Service{{Name: "web", Command: "run.sh"}}}
	data, err := m.Encode()
	require.NoError(t, err)
	require.NoError(t, appenv.WriteAtomic(env.Cache(), instance, data))

	marker := &types.RunMarker{ContainerID: cid}
	markerData, err := marker.Encode()
	require.NoError(t, err)
	require.NoError(t, appenv.WriteAtomic(env.Running(), instance, markerData))
}

func emittedEvents(t *testing.T, env appenv.Env) []trace.File {
	t.Helper()
	names, err := appenv.ListInstances(env.AppEvents())
	require.NoError(t, err)
	var out []trace.File
	for _, name := range names {
		f, err := trace.ParseFilename(name)
		require.NoError(t, err)
		out = append(out, f)
	}
	return out
}

func TestScanClassifiesFinished(t *testing.T) {
	env := monitorEnv(t)
	startInstance(t, env, "appA#001", "c123")
	m := New(env, &fakeRuntime{exitCodes: map[string]int{"c123": 0}})

	require.NoError(t, m.Scan())

	events := emittedEvents(t, env)
	require.Len(t, events, 2)
	assert.Equal(t, trace.ServiceExited{UniqueID: "c123", Service: "web", RC: 0, Signal: 0}, events[0].Event)
	assert.Equal(t, trace.Finished{RC: 0, Signal: 0}, events[1].Event)

	// Marker copied to cleanup, running marker untouched.
	cleanupData, err := os.ReadFile(filepath.Join(env.Cleanup(), "appA#001"))
	require.NoError(t, err)
	marker, err := types.ParseRunMarker(cleanupData)
	require.NoError(t, err)
	assert.Equal(t, "c123", marker.ContainerID)

	_, err = os.Stat(filepath.Join(env.Running(), "appA#001"))
	assert.NoError(t, err)
}

func TestScanClassifiesKilled(t *testing.T) {
	env := monitorEnv(t)
	startInstance(t, env, "appA#001", "c123")
	m := New(env, &fakeRuntime{exitCodes: map[string]int{"c123": 137}})

	require.NoError(t, m.Scan())

	events := emittedEvents(t, env)
	require.Len(t, events, 2)
	assert.Equal(t, trace.ServiceExited{UniqueID: "c123", Service: "web", RC: 137, Signal: 137}, events[0].Event)
	assert.Equal(t, trace.Killed{IsOOM: false}, events[1].Event)
}

func TestScanClassifiesAborted(t *testing.T) {
	env := monitorEnv(t)
	startInstance(t, env, "appA#001", "c123")
	m := New(env, &fakeRuntime{exitCodes: map[string]int{"c123": 2}})

	require.NoError(t, m.Scan())

	events := emittedEvents(t, env)
	require.Len(t, events, 2)
	assert.Equal(t, trace.ServiceExited{UniqueID: "c123", Service: "web", RC: 2, Signal: 2}, events[0].Event)
	assert.Equal(t, trace.Aborted{Why: "2"}, events[1].Event)
}

func TestScanExitCodeBuckets(t *testing.T) {
	tests := []struct {
		code int
		want trace.Type
	}{
		{0, trace.TypeFinished},
		{137, trace.TypeKilled},
		{1, trace.TypeAborted},
		{2, trace.TypeAborted},
		{255, trace.TypeAborted},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%d", tt.want, tt.code), func(t *testing.T) {
			env := monitorEnv(t)
			startInstance(t, env, "appA#001", "c123")
			m := New(env, &fakeRuntime{exitCodes: map[string]int{"c123": tt.code}})

			require.NoError(t, m.Scan())

			events := emittedEvents(t, env)
			require.Len(t, events, 2)
			assert.Equal(t, tt.want, events[1].Event.EventType())
		})
	}
}

func TestScanSkipsInstancesAlreadyInCleanup(t *testing.T) {
	env := monitorEnv(t)
	startInstance(t, env, "appA#001", "c123")

	marker := &types.RunMarker{ContainerID: "c123"}
	data, err := marker.Encode()
	require.NoError(t, err)
	require.NoError(t, appenv.WriteAtomic(env.Cleanup(), "appA#001", data))

	m := New(env, &fakeRuntime{exitCodes: map[string]int{"c123": 0}})
	require.NoError(t, m.Scan())

	// De-dup: no new events for an instance already queued.
	assert.Empty(t, emittedEvents(t, env))
}

func TestScanIgnoresStillRunning(t *testing.T) {
	env := monitorEnv(t)
	startInstance(t, env, "appA#001", "c123")

	// Runtime reports no exited containers at all.
	m := New(env, &fakeRuntime{exitCodes: map[string]int{}})
	require.NoError(t, m.Scan())

	assert.Empty(t, emittedEvents(t, env))
	_, err := os.Stat(filepath.Join(env.Cleanup(), "appA#001"))
	assert.True(t, os.IsNotExist(err))
}

func TestScanSkipsMalformedMarker(t *testing.T) {
	env := monitorEnv(t)
	require.NoError(t, appenv.WriteAtomic(env.Running(), "appA#001", []byte("no_id: here\n")))

	m := New(env, &fakeRuntime{exitCodes: map[string]int{"c123": 0}})
	require.NoError(t, m.Scan())

	assert.Empty(t, emittedEvents(t, env))
	// Left in place for operator inspection.
	_, err := os.Stat(filepath.Join(env.Running(), "appA#001"))
	assert.NoError(t, err)
}
