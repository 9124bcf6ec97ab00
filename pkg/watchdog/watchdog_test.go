package watchdog

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/burrow/pkg/appenv"
	"github.com/cuemby/burrow/pkg/coordinator"
)

type fakeChild struct {
	mu     sync.Mutex
	name   string
	status Status
	starts int
	stops  int
}

func (c *fakeChild) Name() string { return c.name }

func (c *fakeChild) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = StatusRunning
	c.starts++
	return nil
}

func (c *fakeChild) Stop(time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = StatusStopped
	c.stops++
	return nil
}

func (c *fakeChild) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *fakeChild) setStatus(s Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = s
}

type fakeSession struct {
	mu         sync.Mutex
	state      coordinator.SessionState
	deleted    []string
	reconnects int
}

func (s *fakeSession) State() coordinator.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *fakeSession) EnsureDeleted(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, path)
	return nil
}

func (s *fakeSession) Reconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconnects++
	return nil
}

func watchdogEnv(t *testing.T, available bool) appenv.Env {
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

func TestSuperviseStartsChildrenWhenEligible(t *testing.T) {
	env := watchdogEnv(t, true)
	session := &fakeSession{state: coordinator.StateConnected}
	a := &fakeChild{name: "a", status: StatusStopped}
	b := &fakeChild{name: "b", status: StatusStopped}

	w := New(env, session, a, b)
	w.supervise()

	assert.Equal(t, StatusRunning, a.Status())
	assert.Equal(t, StatusRunning, b.Status())
	assert.Equal(t, 1, a.starts)
}

func TestSuperviseStopsAllWhenNotAvailable(t *testing.T) {
	env := watchdogEnv(t, false)
	session := &fakeSession{state: coordinator.StateConnected}
	a := &fakeChild{name: "a", status: StatusRunning}

	w := New(env, session, a)
	w.supervise()

	assert.Equal(t, StatusStopped, a.Status())
	assert.Contains(t, session.deleted, "/server.presence/h1")
}

func TestSuperviseStopsAllWhenSessionDown(t *testing.T) {
	env := watchdogEnv(t, true)
	session := &fakeSession{state: coordinator.StateLost}
	a := &fakeChild{name: "a", status: StatusRunning}

	w := New(env, session, a)
	w.supervise()

	assert.Equal(t, StatusStopped, a.Status())
	assert.Equal(t, 1, session.reconnects)
}

func TestSuperviseRestartsAfterUnexpectedDeath(t *testing.T) {
	env := watchdogEnv(t, true)
	session := &fakeSession{state: coordinator.StateConnected}
	a := &fakeChild{name: "a", status: StatusStopped}
	b := &fakeChild{name: "b", status: StatusStopped}

	w := New(env, session, a, b)
	w.supervise()
	require.Equal(t, StatusRunning, a.Status())

	// One child dies on its own: next pass takes everything down and
	// withdraws presence.
	a.setStatus(StatusStopped)
	w.supervise()
	assert.Equal(t, StatusStopped, b.Status())
	assert.Contains(t, session.deleted, "/server.presence/h1")

	// The pass after that brings the set back up.
	w.supervise()
	assert.Equal(t, StatusRunning, a.Status())
	assert.Equal(t, StatusRunning, b.Status())
}
