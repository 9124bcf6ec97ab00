package watchdog

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/burrow/pkg/appenv"
	"github.com/cuemby/burrow/pkg/coordinator"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
)

// Status is the observable lifecycle state of a supervised component.
type Status string

const (
	StatusStopped  Status = "STOPPED"
	StatusStarting Status = "STARTING"
	StatusRunning  Status = "RUNNING"
	StatusStopping Status = "STOPPING"
)

// Child is a supervised pipeline component.
type Child interface {
	Name() string
	Start() error
	Stop(budget time.Duration) error
	Status() Status
}

// Session is the slice of the coordinator the watchdog acts on.
type Session interface {
	State() coordinator.SessionState
	EnsureDeleted(path string) error
	Reconnect() error
}

const (
	tick = 2 * time.Second

	// DefaultStopBudget is how long a child gets to stop gracefully.
	DefaultStopBudget = 10 * time.Second
)

// Watchdog supervises the pipeline components: they run only while the node
// is available and the coordinator session is connected, and an unexpected
// child death takes the whole set down along with the presence node.
type Watchdog struct {
	env      appenv.Env
	session  Session
	children []Child
	logger   zerolog.Logger

	stopBudget time.Duration
	started    bool
}

// New creates a watchdog over the given children.
func New(env appenv.Env, session Session, children ...Child) *Watchdog {
	return &Watchdog{
		env:        env,
		session:    session,
		children:   children,
		logger:     log.WithComponent("watchdog"),
		stopBudget: DefaultStopBudget,
	}
}

// Run drives the supervision loop until stopCh closes, then stops all
// children.
func (w *Watchdog) Run(stopCh <-chan struct{}) {
	w.logger.Info().Int("children", len(w.children)).Msg("Watchdog started")

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.supervise()
		case <-stopCh:
			w.logger.Info().Msg("Watchdog stopping")
			w.stopAll()
			return
		}
	}
}

func (w *Watchdog) supervise() {
	available := w.env.NodeAvailable()
	state := w.session.State()

	if !available || state != coordinator.StateConnected {
		w.logger.Debug().
			Bool("available", available).
			Str("session", state.String()).
			Msg("Node not eligible, holding children down")
		w.stopAll()
		w.removePresence()
		if err := w.session.Reconnect(); err != nil {
			w.logger.Warn().Err(err).Msg("Failed to re-establish coordinator session")
		}
		return
	}

	if w.started && w.anyUnexpectedlyStopped() {
		w.logger.Warn().Msg("Child died unexpectedly, stopping all children")
		w.stopAll()
		w.removePresence()
		return
	}

	w.startAll()
}

func (w *Watchdog) anyUnexpectedlyStopped() bool {
	for _, child := range w.children {
		if child.Status() == StatusStopped {
			w.logger.Warn().Str("child", child.Name()).Msg("Child found stopped")
			return true
		}
	}
	return false
}

func (w *Watchdog) startAll() {
	for _, child := range w.children {
		if child.Status() != StatusStopped {
			continue
		}
		if err := child.Start(); err != nil {
			w.logger.Error().Err(err).Str("child", child.Name()).Msg("Failed to start child")
			continue
		}
		metrics.ChildRunning.WithLabelValues(child.Name()).Set(1)
		w.logger.Info().Str("child", child.Name()).Msg("Child started")
	}
	w.started = true
}

func (w *Watchdog) stopAll() {
	for _, child := range w.children {
		if child.Status() == StatusStopped {
			metrics.ChildRunning.WithLabelValues(child.Name()).Set(0)
			continue
		}
		if err := child.Stop(w.stopBudget); err != nil {
			w.logger.Error().Err(err).Str("child", child.Name()).Msg("Child failed to stop in budget")
		} else {
			w.logger.Info().Str("child", child.Name()).Msg("Child stopped")
		}
		metrics.ChildRunning.WithLabelValues(child.Name()).Set(0)
	}
	w.started = false
}

func (w *Watchdog) removePresence() {
	path := coordinator.ServerPresencePath(w.env.Hostname)
	if err := w.session.EnsureDeleted(path); err != nil {
		w.logger.Warn().Err(err).Msg("Failed to remove presence node")
	}
}
