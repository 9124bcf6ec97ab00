package cfgmgr

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
	"github.com/cuemby/burrow/pkg/trace"
	"github.com/cuemby/burrow/pkg/types"
)

type fakeRuntime struct {
	mu       sync.Mutex
	nextID   int
	created  []string
	started  []string
	createErr error
	startErr  error
}

func (f *fakeRuntime) Create(_ context.Context, image, command string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextID++
	id := "c" + string(rune('0'+f.nextID))
	f.created = append(f.created, image+" "+command)
	return id, nil
}

func (f *fakeRuntime) Start(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, id)
	return nil
}

func (f *fakeRuntime) Exists(context.Context, string) (bool, error) {
	return true, nil
}

func managerEnv(t *testing.T) appenv.Env {
	t.Helper()
	env := appenv.Env{Root: t.TempDir(), Hostname: "h1"}
	require.NoError(t, env.Ensure())
	return env
}

func cacheManifest(t *testing.T, env appenv.Env, instance string) {
	t.Helper()
	m := &types.Manifest{Services: []types.Service{{Name: "web", Command: "run.sh"}}}
	data, err := m.Encode()
	require.NoError(t, err)
	require.NoError(t, appenv.WriteAtomic(env.Cache(), instance, data))
}

func eventTypes(t *testing.T, env appenv.Env) []trace.Type {
	t.Helper()
	names, err := appenv.ListInstances(env.AppEvents())
	require.NoError(t, err)
	var out []trace.Type
	for _, name := range names {
		f, err := trace.ParseFilename(name)
		require.NoError(t, err)
		out = append(out, f.Event.EventType())
	}
	return out
}

func TestConfigureStartsContainerAndWritesMarker(t *testing.T) {
	env := managerEnv(t)
	rt := &fakeRuntime{}
	m := New(env, rt)

	cacheManifest(t, env, "appA#001")
	m.Configure("appA#001")

	assert.Equal(t, []string{"resource run.sh"}, rt.created)
	assert.Len(t, rt.started, 1)

	data, err := os.ReadFile(filepath.Join(env.Running(), "appA#001"))
	require.NoError(t, err)
	marker, err := types.ParseRunMarker(data)
	require.NoError(t, err)
	assert.Equal(t, rt.started[0], marker.ContainerID)

	assert.Equal(t, []trace.Type{trace.TypeConfigured, trace.TypeServiceRunning}, eventTypes(t, env))
}

func TestConfigureIsIdempotent(t *testing.T) {
	env := managerEnv(t)
	rt := &fakeRuntime{}
	m := New(env, rt)

	cacheManifest(t, env, "appA#001")
	m.Configure("appA#001")
	m.Configure("appA#001")

	// The running marker gates the second pass; one container only.
	assert.Len(t, rt.created, 1)
	assert.Len(t, rt.started, 1)
}

func TestConfigureAbandonsOnCreateError(t *testing.T) {
	env := managerEnv(t)
	rt := &fakeRuntime{createErr: errors.New("image missing")}
	m := New(env, rt)

	cacheManifest(t, env, "appA#001")
	m.Configure("appA#001")

	_, err := os.Stat(filepath.Join(env.Running(), "appA#001"))
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, eventTypes(t, env))
}

func TestConfigureAbandonsOnStartError(t *testing.T) {
	env := managerEnv(t)
	rt := &fakeRuntime{startErr: errors.New("runtime down")}
	m := New(env, rt)

	cacheManifest(t, env, "appA#001")
	m.Configure("appA#001")

	// No running marker, so the next pass retries; configured was already
	// posted for the created container.
	_, err := os.Stat(filepath.Join(env.Running(), "appA#001"))
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, []trace.Type{trace.TypeConfigured}, eventTypes(t, env))
}

func TestConfigureSkipsMalformedManifest(t *testing.T) {
	env := managerEnv(t)
	rt := &fakeRuntime{}
	m := New(env, rt)

	require.NoError(t, appenv.WriteAtomic(env.Cache(), "appA#001", []byte("{{{")))
	m.Configure("appA#001")

	assert.Empty(t, rt.created)
	// The file stays for operator inspection.
	_, err := os.Stat(filepath.Join(env.Cache(), "appA#001"))
	assert.NoError(t, err)
}

func TestReconcileConfiguresOnlyUnstarted(t *testing.T) {
	env := managerEnv(t)
	rt := &fakeRuntime{}
	m := New(env, rt)

	cacheManifest(t, env, "appA#001")
	cacheManifest(t, env, "appB#002")

	marker := &types.RunMarker{ContainerID: "c-old"}
	data, err := marker.Encode()
	require.NoError(t, err)
	require.NoError(t, appenv.WriteAtomic(env.Running(), "appA#001", data))

	m.Reconcile()

	assert.Len(t, rt.created, 1)
}

func TestOnCreatedIgnoresDotFiles(t *testing.T) {
	env := managerEnv(t)
	rt := &fakeRuntime{}
	m := New(env, rt)

	m.onCreated(".tmp-something")
	assert.Empty(t, rt.created)
}

func TestOnCreatedSeenTriggersReconcile(t *testing.T) {
	env := managerEnv(t)
	rt := &fakeRuntime{}
	m := New(env, rt)

	cacheManifest(t, env, "appA#001")
	m.onCreated(appenv.SeenFile)

	assert.Len(t, rt.created, 1)
}
