package registrar

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/burrow/pkg/appenv"
	"github.com/cuemby/burrow/pkg/coordinator"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/resources"
	"github.com/cuemby/burrow/pkg/watchdog"
)

const (
	tick      = 2 * time.Second
	cpuWindow = time.Second

	// nodeLabel is substituted for the template's placeholder so the
	// scheduler can match desktop nodes.
	nodeLabel = "windows"

	// templateNode carries the descriptor template all hosts derive theirs
	// from.
	templateNode = "node"
)

// Coordinator is the slice of the coordinator client the registrar needs.
type Coordinator interface {
	State() coordinator.SessionState
	Get(path string) ([]byte, error)
	Exists(path string) (bool, error)
	CreateOrSet(path string, data []byte, ephemeral bool) error
	Create(path string, data []byte, ephemeral bool) error
	EnsureDeleted(path string) error
}

// Sampler measures the node's spare capacity.
type Sampler func(window time.Duration) (resources.Sample, error)

// Registrar maintains the host's server record and ephemeral presence in the
// coordinator, gated on the node-availability signal.
type Registrar struct {
	env     appenv.Env
	zk      Coordinator
	sample  Sampler
	logger  zerolog.Logger

	mu     sync.Mutex
	status watchdog.Status
	stopCh chan struct{}
	done   chan struct{}
}

// New creates a registrar.
func New(env appenv.Env, zk Coordinator) *Registrar {
	return &Registrar{
		env:    env,
		zk:     zk,
		sample: resources.Measure,
		logger: log.WithComponent("registrar"),
		status: watchdog.StatusStopped,
	}
}

// Name implements watchdog.Child.
func (r *Registrar) Name() string { return "registrar" }

// Status implements watchdog.Child.
func (r *Registrar) Status() watchdog.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Start implements watchdog.Child.
func (r *Registrar) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != watchdog.StatusStopped {
		return nil
	}
	r.status = watchdog.StatusStarting
	r.stopCh = make(chan struct{})
	r.done = make(chan struct{})
	go r.run(r.stopCh, r.done)
	return nil
}

// Stop implements watchdog.Child.
func (r *Registrar) Stop(budget time.Duration) error {
	r.mu.Lock()
	if r.status == watchdog.StatusStopped {
		r.mu.Unlock()
		return nil
	}
	r.status = watchdog.StatusStopping
	stopCh, done := r.stopCh, r.done
	r.mu.Unlock()

	close(stopCh)
	select {
	case <-done:
		return nil
	case <-time.After(budget):
		return fmt.Errorf("registrar did not stop within %s", budget)
	}
}

func (r *Registrar) setStatus(s watchdog.Status) {
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}

func (r *Registrar) run(stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer r.setStatus(watchdog.StatusStopped)
	r.setStatus(watchdog.StatusRunning)

	r.logger.Info().Str("host", r.env.Hostname).Msg("Registrar started")

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := r.reconcile(); err != nil {
				// A missing descriptor template is unrecoverable inside this
				// loop; exit and let the watchdog take it from here.
				r.logger.Error().Err(err).Msg("Registrar loop is fatal, exiting")
				return
			}
		case <-stopCh:
			r.logger.Info().Msg("Registrar stopped")
			return
		}
	}
}

// reconcile performs one presence pass. Only a template read failure is
// returned; create/set failures are logged and retried on the next tick.
func (r *Registrar) reconcile() error {
	if !r.env.NodeAvailable() {
		r.withdraw()
		return nil
	}
	if r.zk.State() != coordinator.StateConnected {
		return nil
	}

	blacked, err := r.zk.Exists(coordinator.BlackedOutPath(r.env.Hostname))
	if err != nil {
		r.logger.Warn().Err(err).Msg("Failed to check blackout gate")
		return nil
	}
	if blacked {
		r.logger.Info().Msg("Host is blacked out, suppressing presence")
		return nil
	}

	template, err := r.zk.Get(coordinator.ServerPath(templateNode))
	if err != nil {
		return fmt.Errorf("failed to read descriptor template: %w", err)
	}

	sample, err := r.sample(cpuWindow)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Failed to sample resources")
		return nil
	}

	descriptor := []byte(renderDescriptor(string(template), sample))

	if err := r.zk.CreateOrSet(coordinator.ServerPath(r.env.Hostname), descriptor, false); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to write server record")
		return nil
	}
	if err := r.zk.CreateOrSet(coordinator.ServerPresencePath(r.env.Hostname), descriptor, true); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to write presence node")
		return nil
	}

	r.logger.Debug().
		Int("cpu_free", sample.CPUFreePercent).
		Int("mem_free_mb", sample.MemoryFreeMB).
		Int("disk_free_mb", sample.DiskFreeMB).
		Msg("Presence refreshed")
	return nil
}

// withdraw removes the ephemeral presence while the node is unavailable.
func (r *Registrar) withdraw() {
	if err := r.zk.EnsureDeleted(coordinator.ServerPresencePath(r.env.Hostname)); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to withdraw presence")
	}
}

// renderDescriptor builds the host descriptor from the template: the first
// '~' becomes the node label, current resource lines are prepended, and
// anything before the template's parent key is replaced by them. A template
// without a parent key keeps its remaining lines minus any label entry; the
// resource block already carries the node label.
func renderDescriptor(template string, s resources.Sample) string {
	desc := strings.Replace(template, "~", nodeLabel, 1)
	update := fmt.Sprintf("cpu: %d%%\ndisk: %dM\nlabel: %s\nmemory: %dM\n",
		s.CPUFreePercent, s.DiskFreeMB, nodeLabel, s.MemoryFreeMB)
	if i := strings.Index(desc, "parent"); i >= 0 {
		return update + desc[i:]
	}
	return update + stripLabelLines(desc)
}

func stripLabelLines(desc string) string {
	var keep []string
	for _, line := range strings.Split(desc, "\n") {
		if strings.HasPrefix(line, "label:") {
			continue
		}
		keep = append(keep, line)
	}
	return strings.Join(keep, "\n")
}
