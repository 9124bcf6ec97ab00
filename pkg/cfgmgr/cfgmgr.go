package cfgmgr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/cuemby/burrow/pkg/appenv"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/trace"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/cuemby/burrow/pkg/watchdog"
)

// heartbeat is the full-rescan interval backing up the directory watcher.
const heartbeat = 30 * time.Second

// Runtime is the slice of the container runtime the config manager needs.
type Runtime interface {
	Create(ctx context.Context, image, command string) (string, error)
	Start(ctx context.Context, id string) error
	Exists(ctx context.Context, id string) (bool, error)
}

// Manager configures and starts a container for every cached manifest that
// has no running marker yet. It is the only writer of running/.
type Manager struct {
	env    appenv.Env
	rt     Runtime
	logger zerolog.Logger

	mu     sync.Mutex
	status watchdog.Status
	stopCh chan struct{}
	done   chan struct{}
}

// New creates a config manager.
func New(env appenv.Env, rt Runtime) *Manager {
	return &Manager{
		env:    env,
		rt:     rt,
		logger: log.WithComponent("cfgmgr"),
		status: watchdog.StatusStopped,
	}
}

// Name implements watchdog.Child.
func (m *Manager) Name() string { return "cfgmgr" }

// Status implements watchdog.Child.
func (m *Manager) Status() watchdog.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Start implements watchdog.Child.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != watchdog.StatusStopped {
		return nil
	}
	m.status = watchdog.StatusStarting
	m.stopCh = make(chan struct{})
	m.done = make(chan struct{})
	go m.run(m.stopCh, m.done)
	return nil
}

// Stop implements watchdog.Child.
func (m *Manager) Stop(budget time.Duration) error {
	m.mu.Lock()
	if m.status == watchdog.StatusStopped {
		m.mu.Unlock()
		return nil
	}
	m.status = watchdog.StatusStopping
	stopCh, done := m.stopCh, m.done
	m.mu.Unlock()

	close(stopCh)
	select {
	case <-done:
		return nil
	case <-time.After(budget):
		return fmt.Errorf("config manager did not stop within %s", budget)
	}
}

func (m *Manager) setStatus(s watchdog.Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

func (m *Manager) run(stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer m.setStatus(watchdog.StatusStopped)
	m.setStatus(watchdog.StatusRunning)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to create cache watcher")
		return
	}
	defer watcher.Close()

	if err := watcher.Add(m.env.Cache()); err != nil {
		m.logger.Error().Err(err).Msg("Failed to watch cache directory")
		return
	}

	m.logger.Info().Str("dir", m.env.Cache()).Msg("Config manager started")

	// Catch up on manifests that arrived before this component did.
	m.Reconcile()

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&fsnotify.Create != 0 {
				m.onCreated(filepath.Base(ev.Name))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn().Err(err).Msg("Cache watcher error")
		case <-ticker.C:
			m.Reconcile()
		case <-stopCh:
			m.logger.Info().Msg("Config manager stopped")
			return
		}
	}
}

// onCreated handles one new cache entry. The .seen sentinel appearing means
// the mirror has caught up, which is worth a full sync of its own.
func (m *Manager) onCreated(name string) {
	if name == appenv.SeenFile {
		m.logger.Info().Msg("Cache folder ready, reconciling")
		m.Reconcile()
		return
	}
	if strings.HasPrefix(name, ".") {
		return
	}
	m.Configure(name)
}

// Reconcile configures every cached instance without a running marker.
func (m *Manager) Reconcile() {
	cached, err := appenv.ListInstances(m.env.Cache())
	if err != nil {
		m.logger.Warn().Err(err).Msg("Failed to list cache")
		return
	}
	for _, instance := range cached {
		m.Configure(instance)
	}
}

// Configure creates and starts the container for one cached instance and
// writes its running marker. A present marker makes this a no-op, so a
// second pass never starts a second container. Runtime errors abandon the
// attempt with no marker and no event; the next pass retries.
func (m *Manager) Configure(instance string) {
	if m.alreadyRunning(instance) {
		return
	}

	data, err := os.ReadFile(filepath.Join(m.env.Cache(), instance))
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Warn().Err(err).Str("instance", instance).Msg("Failed to read cached manifest")
		}
		return
	}
	manifest, err := types.ParseManifest(data)
	if err != nil {
		// Left in place for operator inspection.
		m.logger.Warn().Err(err).Str("instance", instance).Msg("Malformed manifest, skipping")
		return
	}

	timer := metrics.NewTimer()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	m.logger.Info().Str("instance", instance).Msg("Configuring")

	service := manifest.Services[0]
	containerID, err := m.rt.Create(ctx, manifest.ImageRef(), service.Command)
	if err != nil {
		m.logger.Warn().Err(err).Str("instance", instance).Msg("Failed to create container")
		metrics.ConfigureFailures.Inc()
		return
	}

	if ok, err := m.rt.Exists(ctx, containerID); err == nil && ok {
		if err := trace.Post(m.env.AppEvents(), instance, trace.Configured{UniqueID: containerID}, nil); err != nil {
			m.logger.Warn().Err(err).Str("instance", instance).Msg("Failed to post configured event")
		}
		m.logger.Info().Str("instance", instance).Str("container_id", containerID).Msg("Configured")
	}

	if err := m.rt.Start(ctx, containerID); err != nil {
		m.logger.Warn().Err(err).Str("instance", instance).Msg("Failed to start container")
		metrics.ConfigureFailures.Inc()
		return
	}

	marker := &types.RunMarker{ContainerID: containerID}
	markerData, err := marker.Encode()
	if err != nil {
		m.logger.Error().Err(err).Str("instance", instance).Msg("Failed to encode run marker")
		return
	}
	if err := appenv.WriteAtomic(m.env.Running(), instance, markerData); err != nil {
		m.logger.Error().Err(err).Str("instance", instance).Msg("Failed to write run marker")
		return
	}

	if err := trace.Post(m.env.AppEvents(), instance, trace.ServiceRunning{
		UniqueID: containerID,
		Service:  service.Name,
	}, nil); err != nil {
		m.logger.Warn().Err(err).Str("instance", instance).Msg("Failed to post service_running event")
	}

	timer.ObserveDuration(metrics.ContainerStartDuration)
	metrics.ContainersConfigured.Inc()
	m.logger.Info().Str("instance", instance).Str("container_id", containerID).Msg("Running")
}

func (m *Manager) alreadyRunning(instance string) bool {
	_, err := os.Stat(filepath.Join(m.env.Running(), instance))
	return err == nil
}
