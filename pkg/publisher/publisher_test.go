package publisher

import (
	"errors"
	"sync"
	"testing"

	"github.com/go-zookeeper/zk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/burrow/pkg/appenv"
	"github.com/cuemby/burrow/pkg/trace"
)

type fakeCoordinator struct {
	mu        sync.Mutex
	created   map[string][]byte
	order     []string
	updated   map[string]map[string]interface{}
	deleted   []string
	createErr error
}

func newFakeCoordinator() *fakeCoordinator {
	return &fakeCoordinator{
		created: make(map[string][]byte),
		updated: make(map[string]map[string]interface{}),
	}
}

func (f *fakeCoordinator) CreateRecursive(path string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.created[path]; ok {
		return zk.ErrNodeExists
	}
	f.created[path] = data
	f.order = append(f.order, path)
	return nil
}

func (f *fakeCoordinator) EnsureDeleted(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, path)
	return nil
}

func (f *fakeCoordinator) MergeUpdate(path string, updates map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated[path] = updates
	return nil
}

func publisherEnv(t *testing.T) appenv.Env {
	t.Helper()
	env := appenv.Env{Root: t.TempDir(), Hostname: "h1"}
	require.NoError(t, env.Ensure())
	return env
}

func queuedFiles(t *testing.T, env appenv.Env) []string {
	t.Helper()
	names, err := appenv.ListInstances(env.AppEvents())
	require.NoError(t, err)
	return names
}

func TestPublishForwardsAndDeletes(t *testing.T) {
	env := publisherEnv(t)
	zkc := newFakeCoordinator()
	p := New(env, zkc)

	require.NoError(t, trace.Post(env.AppEvents(), "appA#001", trace.Configured{UniqueID: "c123"}, []byte("body")))
	name := queuedFiles(t, env)[0]

	p.publish(name)

	assert.Empty(t, queuedFiles(t, env))
	require.Len(t, zkc.created, 1)
	for path, payload := range zkc.created {
		assert.Contains(t, path, "/tasks/appA/001/")
		assert.Contains(t, path, ",h1,configured,c123")
		assert.Equal(t, "body", string(payload))
	}
	assert.Empty(t, zkc.deleted)
}

func TestPublishSwallowsNodeExists(t *testing.T) {
	env := publisherEnv(t)
	zkc := newFakeCoordinator()
	p := New(env, zkc)

	require.NoError(t, trace.Post(env.AppEvents(), "appA#001", trace.Configured{UniqueID: "c123"}, nil))
	name := queuedFiles(t, env)[0]

	// Publish twice: the second create collides and is absorbed, the file
	// still goes away.
	p.publish(name)
	require.NoError(t, appenv.WriteAtomic(env.AppEvents(), name, nil))
	p.publish(name)

	assert.Empty(t, queuedFiles(t, env))
}

func TestPublishKeepsFileOnCoordinatorError(t *testing.T) {
	env := publisherEnv(t)
	zkc := newFakeCoordinator()
	zkc.createErr = errors.New("connection loss")
	p := New(env, zkc)

	require.NoError(t, trace.Post(env.AppEvents(), "appA#001", trace.Configured{UniqueID: "c123"}, nil))
	name := queuedFiles(t, env)[0]

	p.publish(name)

	// Deleted only after the coordinator write succeeded.
	assert.Equal(t, []string{name}, queuedFiles(t, env))
}

func TestTerminalEventUnschedules(t *testing.T) {
	env := publisherEnv(t)
	zkc := newFakeCoordinator()
	p := New(env, zkc)

	require.NoError(t, trace.Post(env.AppEvents(), "appA#001", trace.Finished{RC: 0, Signal: 0}, nil))
	p.Drain()

	assert.Contains(t, zkc.deleted, "/scheduled/appA#001")
	summary, ok := zkc.updated["/tasks/appA/001"]
	require.True(t, ok)
	assert.Equal(t, "finished", summary["state"])
	assert.Equal(t, "h1", summary["host"])
	assert.Equal(t, "0.0", summary["data"])
}

func TestNonTerminalEventDoesNotUnschedule(t *testing.T) {
	env := publisherEnv(t)
	zkc := newFakeCoordinator()
	p := New(env, zkc)

	require.NoError(t, trace.Post(env.AppEvents(), "appA#001", trace.ServiceRunning{UniqueID: "c1", Service: "web"}, nil))
	p.Drain()

	assert.Empty(t, zkc.deleted)
	assert.Empty(t, zkc.updated)
}

func TestPublishSkipsMalformedFilename(t *testing.T) {
	env := publisherEnv(t)
	zkc := newFakeCoordinator()
	p := New(env, zkc)

	require.NoError(t, appenv.WriteAtomic(env.AppEvents(), "not-an-event-file", []byte("x")))
	p.Drain()

	// Left in place for operator inspection, nothing published.
	assert.Equal(t, []string{"not-an-event-file"}, queuedFiles(t, env))
	assert.Empty(t, zkc.created)
}

func TestDrainPreservesTimestampOrder(t *testing.T) {
	env := publisherEnv(t)
	zkc := newFakeCoordinator()
	p := New(env, zkc)

	// Hand-written filenames with increasing timestamps.
	require.NoError(t, appenv.WriteAtomic(env.AppEvents(), "100.000001,appA#001,configured,c1", nil))
	require.NoError(t, appenv.WriteAtomic(env.AppEvents(), "100.000002,appA#001,service_running,c1.web", nil))
	require.NoError(t, appenv.WriteAtomic(env.AppEvents(), "100.000003,appA#001,service_exited,c1.web.0.0", nil))

	p.Drain()

	assert.Empty(t, queuedFiles(t, env))
	assert.Len(t, zkc.created, 3)
	assert.Equal(t, []string{
		"/tasks/appA/001/100.000001,h1,configured,c1",
		"/tasks/appA/001/100.000002,h1,service_running,c1.web",
		"/tasks/appA/001/100.000003,h1,service_exited,c1.web.0.0",
	}, zkc.order)
}
