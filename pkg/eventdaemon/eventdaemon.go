package eventdaemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/burrow/pkg/appenv"
	"github.com/cuemby/burrow/pkg/coordinator"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/cuemby/burrow/pkg/watchdog"
)

const rearmDelay = 2 * time.Second

// Coordinator is the slice of the coordinator client the daemon needs.
type Coordinator interface {
	WatchExists(path string) (bool, <-chan coordinator.Event, error)
	Children(path string) ([]string, error)
	GetYAML(path string, out interface{}) error
}

// ContainerKiller kills a container best-effort when its placement is
// withdrawn while it still runs.
type ContainerKiller interface {
	Kill(ctx context.Context, id string) error
}

// Daemon mirrors the host's placement list into cache/, one manifest file
// per assigned instance. It is the only writer of cache/.
type Daemon struct {
	env    appenv.Env
	zk     Coordinator
	rt     ContainerKiller
	logger zerolog.Logger

	mu     sync.Mutex
	status watchdog.Status
	stopCh chan struct{}
	done   chan struct{}
}

// New creates a placement mirror daemon.
func New(env appenv.Env, zk Coordinator, rt ContainerKiller) *Daemon {
	return &Daemon{
		env:    env,
		zk:     zk,
		rt:     rt,
		logger: log.WithComponent("eventdaemon"),
		status: watchdog.StatusStopped,
	}
}

// Name implements watchdog.Child.
func (d *Daemon) Name() string { return "eventdaemon" }

// Status implements watchdog.Child.
func (d *Daemon) Status() watchdog.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// Start implements watchdog.Child.
func (d *Daemon) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.status != watchdog.StatusStopped {
		return nil
	}
	d.status = watchdog.StatusStarting
	d.stopCh = make(chan struct{})
	d.done = make(chan struct{})
	go d.run(d.stopCh, d.done)
	return nil
}

// Stop implements watchdog.Child.
func (d *Daemon) Stop(budget time.Duration) error {
	d.mu.Lock()
	if d.status == watchdog.StatusStopped {
		d.mu.Unlock()
		return nil
	}
	d.status = watchdog.StatusStopping
	stopCh, done := d.stopCh, d.done
	d.mu.Unlock()

	close(stopCh)
	select {
	case <-done:
		return nil
	case <-time.After(budget):
		return fmt.Errorf("event daemon did not stop within %s", budget)
	}
}

func (d *Daemon) setStatus(s watchdog.Status) {
	d.mu.Lock()
	d.status = s
	d.mu.Unlock()
}

// run watches the presence node and keeps the cache in step with the
// placement list. Watches are one-shot and re-armed after every callback;
// processing is strictly serial.
func (d *Daemon) run(stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer d.setStatus(watchdog.StatusStopped)
	d.setStatus(watchdog.StatusRunning)

	presencePath := coordinator.ServerPresencePath(d.env.Hostname)
	d.logger.Info().Str("path", presencePath).Msg("Placement mirror started")

	for {
		select {
		case <-stopCh:
			d.logger.Info().Msg("Placement mirror stopped")
			return
		default:
		}

		exists, events, err := d.zk.WatchExists(presencePath)
		if err != nil {
			d.logger.Warn().Err(err).Msg("Failed to arm presence watch")
			select {
			case <-time.After(rearmDelay):
			case <-stopCh:
				return
			}
			continue
		}

		if exists {
			d.onPresent()
		} else {
			d.onAbsent()
		}

		select {
		case ev := <-events:
			if ev.Type == coordinator.EventDeleted {
				d.logger.Info().Msg("Presence node deleted")
				d.onAbsent()
			}
			// Loop re-arms the watch and re-reads the state.
		case <-stopCh:
			d.logger.Info().Msg("Placement mirror stopped")
			return
		}
	}
}

// onAbsent clears the seen sentinel; the cache must no longer be trusted as
// authoritative until the next successful sync.
func (d *Daemon) onAbsent() {
	if err := d.env.ClearSeen(); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to clear seen sentinel")
	}
}

// onPresent lists the placement and synchronises the cache against it.
func (d *Daemon) onPresent() {
	expected, err := d.zk.Children(coordinator.PlacementPath(d.env.Hostname))
	if err != nil {
		d.logger.Warn().Err(err).Msg("Failed to list placement")
		return
	}
	if err := d.Synchronize(expected); err != nil {
		d.logger.Warn().Err(err).Msg("Placement sync failed")
		return
	}
	if err := d.env.MarkSeen(); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to mark seen sentinel")
	}
}

// Synchronize brings cache/ in step with the expected instance list by set
// difference: extras are killed and dropped, missing instances are fetched
// and cached.
func (d *Daemon) Synchronize(expected []string) error {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.PlacementSyncDuration)
		metrics.PlacementSyncsTotal.Inc()
	}()

	current, err := appenv.ListInstances(d.env.Cache())
	if err != nil {
		return err
	}

	expectedSet := make(map[string]bool, len(expected))
	for _, name := range expected {
		expectedSet[name] = true
	}
	currentSet := make(map[string]bool, len(current))
	for _, name := range current {
		currentSet[name] = true
	}

	d.logger.Info().
		Strs("expected", expected).
		Strs("actual", current).
		Msg("Synchronizing placement")

	for _, instance := range current {
		if !expectedSet[instance] {
			d.evict(instance)
		}
	}
	for _, instance := range expected {
		if !currentSet[instance] {
			d.cache(instance)
		}
	}
	return nil
}

// evict handles an instance present in cache but no longer placed here: the
// running container, if any, is killed best-effort and the cache entry is
// dropped.
func (d *Daemon) evict(instance string) {
	markerPath := filepath.Join(d.env.Running(), instance)
	if data, err := os.ReadFile(markerPath); err == nil {
		if marker, err := types.ParseRunMarker(data); err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := d.rt.Kill(ctx, marker.ContainerID); err != nil {
				d.logger.Warn().Err(err).
					Str("instance", instance).
					Str("container_id", marker.ContainerID).
					Msg("Failed to kill evicted container")
			}
			cancel()
		}
	}

	if err := appenv.RemoveIfPresent(d.env.Cache(), instance); err != nil {
		d.logger.Warn().Err(err).Str("instance", instance).Msg("Failed to delete cache manifest")
		return
	}
	d.logger.Info().Str("instance", instance).Msg("Deleted cache manifest")
}

// cache fetches the instance's manifest from the scheduler record, enriches
// it with the task id and placement payload, and writes it atomically.
func (d *Daemon) cache(instance string) {
	var manifest types.Manifest
	if err := d.zk.GetYAML(coordinator.ScheduledPath(instance), &manifest); err != nil {
		if coordinator.IsNoNode(err) {
			d.logger.Info().Str("instance", instance).Msg("Instance not found in scheduler")
		} else {
			d.logger.Warn().Err(err).Str("instance", instance).Msg("Failed to fetch manifest")
		}
		return
	}

	manifest.Task = types.TaskOf(instance)

	placement := make(map[string]interface{})
	err := d.zk.GetYAML(coordinator.PlacementInstancePath(d.env.Hostname, instance), &placement)
	if err != nil && !coordinator.IsNoNode(err) {
		d.logger.Warn().Err(err).Str("instance", instance).Msg("Failed to fetch placement payload")
	}
	if len(placement) > 0 {
		manifest.Merge(placement)
	}

	data, err := manifest.Encode()
	if err != nil {
		d.logger.Warn().Err(err).Str("instance", instance).Msg("Failed to encode manifest")
		return
	}
	if err := appenv.WriteAtomic(d.env.Cache(), instance, data); err != nil {
		d.logger.Warn().Err(err).Str("instance", instance).Msg("Failed to write cache manifest")
		return
	}
	d.logger.Info().Str("instance", instance).Msg("Created cache manifest")
}
