package publisher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/cuemby/burrow/pkg/appenv"
	"github.com/cuemby/burrow/pkg/coordinator"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/trace"
	"github.com/cuemby/burrow/pkg/watchdog"
)

// rescan backs up the directory watcher so no event file is stranded.
const rescan = 2 * time.Second

// Coordinator is the slice of the coordinator client the publisher needs.
type Coordinator interface {
	CreateRecursive(path string, data []byte) error
	EnsureDeleted(path string) error
	MergeUpdate(path string, updates map[string]interface{}) error
}

// Publisher drains appevents/ into the coordinator's task history. An event
// file is deleted only once its coordinator node was created or observed to
// already exist, so publication is exactly-once by path. The local file is
// the retry state; nothing else is persisted.
type Publisher struct {
	env    appenv.Env
	zk     Coordinator
	logger zerolog.Logger

	mu     sync.Mutex
	status watchdog.Status
	stopCh chan struct{}
	done   chan struct{}
}

// New creates an event publisher.
func New(env appenv.Env, zk Coordinator) *Publisher {
	return &Publisher{
		env:    env,
		zk:     zk,
		logger: log.WithComponent("publisher"),
		status: watchdog.StatusStopped,
	}
}

// Name implements watchdog.Child.
func (p *Publisher) Name() string { return "publisher" }

// Status implements watchdog.Child.
func (p *Publisher) Status() watchdog.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Start implements watchdog.Child.
func (p *Publisher) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status != watchdog.StatusStopped {
		return nil
	}
	p.status = watchdog.StatusStarting
	p.stopCh = make(chan struct{})
	p.done = make(chan struct{})
	go p.run(p.stopCh, p.done)
	return nil
}

// Stop implements watchdog.Child.
func (p *Publisher) Stop(budget time.Duration) error {
	p.mu.Lock()
	if p.status == watchdog.StatusStopped {
		p.mu.Unlock()
		return nil
	}
	p.status = watchdog.StatusStopping
	stopCh, done := p.stopCh, p.done
	p.mu.Unlock()

	close(stopCh)
	select {
	case <-done:
		return nil
	case <-time.After(budget):
		return fmt.Errorf("publisher did not stop within %s", budget)
	}
}

func (p *Publisher) setStatus(s watchdog.Status) {
	p.mu.Lock()
	p.status = s
	p.mu.Unlock()
}

func (p *Publisher) run(stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer p.setStatus(watchdog.StatusStopped)
	p.setStatus(watchdog.StatusRunning)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		p.logger.Error().Err(err).Msg("Failed to create events watcher")
		return
	}
	defer watcher.Close()

	if err := watcher.Add(p.env.AppEvents()); err != nil {
		p.logger.Error().Err(err).Msg("Failed to watch events directory")
		return
	}

	p.logger.Info().Str("dir", p.env.AppEvents()).Msg("Event publisher started")

	// Replay the backlog accumulated while we were down.
	p.Drain()

	ticker := time.NewTicker(rescan)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&fsnotify.Create != 0 {
				p.publish(filepath.Base(ev.Name))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Warn().Err(err).Msg("Events watcher error")
		case <-ticker.C:
			p.Drain()
		case <-stopCh:
			p.logger.Info().Msg("Event publisher stopped")
			return
		}
	}
}

// Drain publishes every queued event file in name order; the timestamp
// prefix makes that causal order per instance.
func (p *Publisher) Drain() {
	names, err := appenv.ListInstances(p.env.AppEvents())
	if err != nil {
		p.logger.Warn().Err(err).Msg("Failed to list events directory")
		return
	}
	for _, name := range names {
		p.publish(name)
	}
}

// publish forwards one event file and deletes it on success.
func (p *Publisher) publish(name string) {
	if strings.HasPrefix(name, ".") {
		return
	}
	path := filepath.Join(p.env.AppEvents(), name)

	f, err := trace.ParseFilename(name)
	if err != nil {
		// Left in place for operator inspection.
		p.logger.Warn().Err(err).Str("file", name).Msg("Malformed event filename, skipping")
		return
	}

	payload, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			p.logger.Warn().Err(err).Str("file", name).Msg("Failed to read event payload")
		}
		return
	}

	eventType := f.Event.EventType()
	eventNode := fmt.Sprintf("%s,%s,%s,%s", f.Timestamp, p.env.Hostname, eventType, f.Event.EventData())
	taskPath := coordinator.TaskEventPath(f.Instance, eventNode)

	err = p.zk.CreateRecursive(taskPath, payload)
	if err != nil && !coordinator.IsNodeExists(err) {
		p.logger.Warn().Err(err).Str("file", name).Msg("Failed to publish event, will retry")
		return
	}

	if trace.Terminal(eventType) {
		if err := p.unschedule(f, eventNode); err != nil {
			p.logger.Warn().Err(err).Str("instance", f.Instance).Msg("Failed to unschedule, will retry")
			return
		}
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		p.logger.Warn().Err(err).Str("file", name).Msg("Failed to delete published event file")
		return
	}

	metrics.EventsPublished.WithLabelValues(string(eventType)).Inc()
	p.logger.Info().
		Str("instance", f.Instance).
		Str("type", string(eventType)).
		Msg("Event published")
}

// unschedule removes the scheduler record on a terminal event and leaves an
// exit summary on the task node.
func (p *Publisher) unschedule(f trace.File, eventNode string) error {
	if err := p.zk.EnsureDeleted(coordinator.ScheduledPath(f.Instance)); err != nil {
		return err
	}

	err := p.zk.MergeUpdate(coordinator.TaskPath(f.Instance), map[string]interface{}{
		"state": string(f.Event.EventType()),
		"when":  f.Timestamp,
		"host":  p.env.Hostname,
		"data":  f.Event.EventData(),
	})
	if err != nil {
		if coordinator.IsNoNode(err) {
			p.logger.Warn().Str("instance", f.Instance).Msg("Task node not found for exit summary")
			return nil
		}
		return err
	}
	return nil
}
