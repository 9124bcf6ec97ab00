package statemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/burrow/pkg/appenv"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/trace"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/cuemby/burrow/pkg/watchdog"
)

const (
	tick = time.Second

	// killExitCode is the code a SIGKILLed container reports; it separates
	// the killed bucket from plain aborts.
	killExitCode = 137
)

// Runtime is the slice of the container runtime the monitor needs.
type Runtime interface {
	Exited(ctx context.Context) ([]string, error)
	ExitedWithCode(ctx context.Context, code int) ([]string, error)
}

// Monitor watches the running set for terminal containers, classifies each
// exit, emits the trace events, and hands the instance to the cleanup worker
// by copying its marker. It never deletes the running marker or the
// container itself.
type Monitor struct {
	env    appenv.Env
	rt     Runtime
	logger zerolog.Logger

	mu     sync.Mutex
	status watchdog.Status
	stopCh chan struct{}
	done   chan struct{}
}

// New creates a state monitor.
func New(env appenv.Env, rt Runtime) *Monitor {
	return &Monitor{
		env:    env,
		rt:     rt,
		logger: log.WithComponent("statemon"),
		status: watchdog.StatusStopped,
	}
}

// Name implements watchdog.Child.
func (m *Monitor) Name() string { return "statemon" }

// Status implements watchdog.Child.
func (m *Monitor) Status() watchdog.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Start implements watchdog.Child.
func (m *Monitor) Start() error {
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
func (m *Monitor) Stop(budget time.Duration) error {
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
		return fmt.Errorf("state monitor did not stop within %s", budget)
	}
}

func (m *Monitor) setStatus(s watchdog.Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

func (m *Monitor) run(stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer m.setStatus(watchdog.StatusStopped)
	m.setStatus(watchdog.StatusRunning)

	m.logger.Info().Msg("State monitor started")

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := m.Scan(); err != nil {
				m.logger.Warn().Err(err).Msg("Scan failed")
			}
		case <-stopCh:
			m.logger.Info().Msg("State monitor stopped")
			return
		}
	}
}

// Scan inspects the runtime once and processes every running instance whose
// container has exited. Instances already queued for cleanup are skipped.
func (m *Monitor) Scan() error {
	running, err := appenv.ListInstances(m.env.Running())
	if err != nil {
		return err
	}
	cleanup, err := appenv.ListInstances(m.env.Cleanup())
	if err != nil {
		return err
	}
	cleanupSet := make(map[string]bool, len(cleanup))
	for _, name := range cleanup {
		cleanupSet[name] = true
	}

	// cid -> instance for everything still our responsibility.
	byContainer := make(map[string]string)
	for _, instance := range running {
		if cleanupSet[instance] {
			continue
		}
		data, err := os.ReadFile(filepath.Join(m.env.Running(), instance))
		if err != nil {
			continue
		}
		marker, err := types.ParseRunMarker(data)
		if err != nil {
			m.logger.Warn().Err(err).Str("instance", instance).Msg("Malformed run marker, skipping")
			continue
		}
		byContainer[marker.ContainerID] = instance
	}
	if len(byContainer) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	exited, err := m.rt.Exited(ctx)
	if err != nil {
		return err
	}
	exitedSet := toSet(exited)

	finished, err := m.rt.ExitedWithCode(ctx, 0)
	if err != nil {
		return err
	}
	finishedSet := toSet(finished)

	killed, err := m.rt.ExitedWithCode(ctx, killExitCode)
	if err != nil {
		return err
	}
	killedSet := toSet(killed)

	aborted := make(map[string]int)
	for code := 1; code <= 255; code++ {
		if code == killExitCode {
			continue
		}
		ids, err := m.rt.ExitedWithCode(ctx, code)
		if err != nil {
			return err
		}
		for _, id := range ids {
			aborted[id] = code
		}
	}

	for cid, instance := range byContainer {
		if !exitedSet[cid] {
			continue
		}
		m.classify(cid, instance, finishedSet, killedSet, aborted)
	}
	return nil
}

// classify emits the terminal events for one exited container and queues the
// instance for cleanup. Event order is fixed: service_exited first, then the
// terminal event, then the cleanup marker.
func (m *Monitor) classify(cid, instance string, finished, killed map[string]bool, aborted map[string]int) {
	service := m.serviceName(instance)
	events := m.env.AppEvents()

	switch {
	case finished[cid]:
		m.logger.Info().Str("instance", instance).Msg("Container finished")
		if err := trace.Post(events, instance, trace.ServiceExited{
			UniqueID: cid, Service: service, RC: 0, Signal: 0,
		}, nil); err != nil {
			m.logger.Warn().Err(err).Str("instance", instance).Msg("Failed to post service_exited")
			return
		}
		if err := trace.Post(events, instance, trace.Finished{RC: 0, Signal: 0}, nil); err != nil {
			m.logger.Warn().Err(err).Str("instance", instance).Msg("Failed to post finished")
			return
		}
		metrics.ExitsClassified.WithLabelValues("finished").Inc()

	case killed[cid]:
		m.logger.Info().Str("instance", instance).Msg("Container killed")
		if err := trace.Post(events, instance, trace.ServiceExited{
			UniqueID: cid, Service: service, RC: killExitCode, Signal: killExitCode,
		}, nil); err != nil {
			m.logger.Warn().Err(err).Str("instance", instance).Msg("Failed to post service_exited")
			return
		}
		if err := trace.Post(events, instance, trace.Killed{IsOOM: false}, nil); err != nil {
			m.logger.Warn().Err(err).Str("instance", instance).Msg("Failed to post killed")
			return
		}
		metrics.ExitsClassified.WithLabelValues("killed").Inc()

	default:
		code, ok := aborted[cid]
		if !ok {
			// Exited but not yet visible under any exit-code filter; the
			// next pass will see it.
			return
		}
		m.logger.Info().Str("instance", instance).Int("code", code).Msg("Container aborted")
		// Signal mirrors the exit code here for wire compatibility; it is
		// not a real signal number.
		if err := trace.Post(events, instance, trace.ServiceExited{
			UniqueID: cid, Service: service, RC: code, Signal: code,
		}, nil); err != nil {
			m.logger.Warn().Err(err).Str("instance", instance).Msg("Failed to post service_exited")
			return
		}
		if err := trace.Post(events, instance, trace.Aborted{Why: strconv.Itoa(code)}, nil); err != nil {
			m.logger.Warn().Err(err).Str("instance", instance).Msg("Failed to post aborted")
			return
		}
		metrics.ExitsClassified.WithLabelValues("aborted").Inc()
	}

	m.queueCleanup(instance)
}

// queueCleanup copies the running marker into cleanup/, transferring
// ownership of the container and markers to the cleanup worker.
func (m *Monitor) queueCleanup(instance string) {
	data, err := os.ReadFile(filepath.Join(m.env.Running(), instance))
	if err != nil {
		m.logger.Warn().Err(err).Str("instance", instance).Msg("Failed to read run marker for cleanup")
		return
	}
	if err := appenv.WriteAtomic(m.env.Cleanup(), instance, data); err != nil {
		m.logger.Warn().Err(err).Str("instance", instance).Msg("Failed to write cleanup marker")
		return
	}
	m.logger.Info().Str("instance", instance).Msg("Queued for cleanup")
}

// serviceName resolves the first service of the instance's cached manifest;
// the cache entry outlives the container, so it is normally still there.
func (m *Monitor) serviceName(instance string) string {
	data, err := os.ReadFile(filepath.Join(m.env.Cache(), instance))
	if err != nil {
		return ""
	}
	manifest, err := types.ParseManifest(data)
	if err != nil {
		return ""
	}
	return manifest.Services[0].Name
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
