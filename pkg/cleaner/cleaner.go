package cleaner

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

const tick = 2 * time.Second

// Coordinator is the slice of the coordinator client the cleaner needs.
type Coordinator interface {
	EnsureDeleted(path string) error
}

// Runtime is the slice of the container runtime the cleaner needs.
type Runtime interface {
	Remove(ctx context.Context, id string) error
}

// Cleaner retires instances queued in cleanup/: the placement record goes,
// the container goes, then all three markers go. Any failure leaves the
// cleanup marker for the next tick, so cleanup is at-least-once.
type Cleaner struct {
	env    appenv.Env
	zk     Coordinator
	rt     Runtime
	logger zerolog.Logger

	mu     sync.Mutex
	status watchdog.Status
	stopCh chan struct{}
	done   chan struct{}
}

// New creates a cleanup worker.
func New(env appenv.Env, zk Coordinator, rt Runtime) *Cleaner {
	return &Cleaner{
		env:    env,
		zk:     zk,
		rt:     rt,
		logger: log.WithComponent("cleaner"),
		status: watchdog.StatusStopped,
	}
}

// Name implements watchdog.Child.
func (c *Cleaner) Name() string { return "cleaner" }

// Status implements watchdog.Child.
func (c *Cleaner) Status() watchdog.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Start implements watchdog.Child.
func (c *Cleaner) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != watchdog.StatusStopped {
		return nil
	}
	c.status = watchdog.StatusStarting
	c.stopCh = make(chan struct{})
	c.done = make(chan struct{})
	go c.run(c.stopCh, c.done)
	return nil
}

// Stop implements watchdog.Child.
func (c *Cleaner) Stop(budget time.Duration) error {
	c.mu.Lock()
	if c.status == watchdog.StatusStopped {
		c.mu.Unlock()
		return nil
	}
	c.status = watchdog.StatusStopping
	stopCh, done := c.stopCh, c.done
	c.mu.Unlock()

	close(stopCh)
	select {
	case <-done:
		return nil
	case <-time.After(budget):
		return fmt.Errorf("cleaner did not stop within %s", budget)
	}
}

func (c *Cleaner) setStatus(s watchdog.Status) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

func (c *Cleaner) run(stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer c.setStatus(watchdog.StatusStopped)
	c.setStatus(watchdog.StatusRunning)

	c.logger.Info().Msg("Cleanup worker started")

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Sweep()
		case <-stopCh:
			c.logger.Info().Msg("Cleanup worker stopped")
			return
		}
	}
}

// Sweep processes every queued cleanup entry while the node is available.
func (c *Cleaner) Sweep() {
	if !c.env.NodeAvailable() {
		return
	}

	entries, err := appenv.ListInstances(c.env.Cleanup())
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to list cleanup directory")
		return
	}

	for _, instance := range entries {
		if err := c.CleanupOne(instance); err != nil {
			c.logger.Warn().Err(err).Str("instance", instance).Msg("Cleanup failed, will retry")
			metrics.CleanupRetries.Inc()
		}
	}
}

// CleanupOne retires a single instance. On error the cleanup marker is left
// untouched and the entry is retried on the next tick.
func (c *Cleaner) CleanupOne(instance string) error {
	c.logger.Info().Str("instance", instance).Msg("Cleaning up")

	if err := c.zk.EnsureDeleted(coordinator.PlacementInstancePath(c.env.Hostname, instance)); err != nil {
		return fmt.Errorf("failed to delete placement record: %w", err)
	}

	data, err := os.ReadFile(filepath.Join(c.env.Cleanup(), instance))
	if err != nil {
		return fmt.Errorf("failed to read cleanup marker: %w", err)
	}
	marker, err := types.ParseRunMarker(data)
	if err != nil {
		return fmt.Errorf("unusable cleanup marker: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := c.rt.Remove(ctx, marker.ContainerID); err != nil {
		return fmt.Errorf("failed to remove container %s: %w", marker.ContainerID, err)
	}

	for _, dir := range []string{c.env.Cache(), c.env.Running(), c.env.Cleanup()} {
		if err := appenv.RemoveIfPresent(dir, instance); err != nil {
			return fmt.Errorf("failed to delete marker in %s: %w", dir, err)
		}
	}

	metrics.CleanupsTotal.Inc()
	c.logger.Info().Str("instance", instance).Str("container_id", marker.ContainerID).Msg("Cleaned up")
	return nil
}
