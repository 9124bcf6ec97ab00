/*
Package watchdog supervises the pipeline components.

Children run only while the node is available and the coordinator session
is connected. One unexpected child death takes the whole set down and
withdraws the presence node, so the scheduler never sees a half-alive
agent: either every stage of the pipeline is running, or the host is not
advertising itself.

# Architecture

	┌─────────────────── WATCHDOG ────────────────────────┐
	│                                                      │
	│  every 2s tick                                       │
	│  ┌────────────────────────────────────────────┐     │
	│  │ available ∧ CONNECTED ?                    │     │
	│  │   no  → stop all children                  │     │
	│  │         delete /server.presence/<host>     │     │
	│  │         nudge session Reconnect()          │     │
	│  │   yes → any child unexpectedly STOPPED?    │     │
	│  │           yes → stop all, delete presence  │     │
	│  │           no  → start every STOPPED child  │     │
	│  └────────────────────────────────────────────┘     │
	│                                                      │
	│  children: registrar, eventdaemon, cfgmgr,           │
	│            statemon, publisher, cleaner              │
	└──────────────────────────────────────────────────────┘

The screen-state source is not a child: it is an external OS event pump
owned elsewhere, and the watchdog only reads its output through the
availability predicate.

# Child State Machine

Every supervised component implements Child and reports one of four
states:

	            Start()
	 ┌─────────┐       ┌──────────┐ run goroutine ┌─────────┐
	 │ STOPPED ├──────▶│ STARTING ├──────────────▶│ RUNNING │
	 └─────────┘       └──────────┘   comes up    └────┬────┘
	      ▲                                            │ Stop(budget)
	      │                                            ▼
	      │            done, or run loop          ┌──────────┐
	      └───────────── exits on its own ────────┤ STOPPING │
	                                              └──────────┘

  - STOPPED: no run goroutine; the only state Start acts on
  - STARTING: Start accepted, goroutine launched but not yet in its loop
  - RUNNING: the loop is live and processing ticks/watches
  - STOPPING: Stop closed the stop channel and is waiting on done

A run loop may also exit on its own — a fatal error like the registrar's
unreadable descriptor template — which lands the child in STOPPED without
any Stop call. That is the "unexpected death" the supervision loop
detects.

# Supervision Decisions

Per tick, in order:

	condition                          action
	──────────────────────────────────────────────────────────────
	not available, or session not      stop all, withdraw presence,
	CONNECTED                          Reconnect() if session LOST
	eligible, a started child is       stop all, withdraw presence
	STOPPED (unexpected death)         (restart happens next tick)
	eligible, otherwise                start every STOPPED child

Stopping everything on one death is deliberate: the components are stages
of one pipeline, and a missing stage turns the handoff directories into
unbounded queues. A clean full restart re-derives all state from the
directories, which the crash-safe handoff makes cheap.

# Stop Budget

Stop(budget) closes the child's stop channel and waits up to the budget
(default 10s) for the done channel. Components check their stop channel
at the top of every loop, after finishing the current atomic action — one
directory scan, one watch callback — so the budget is normally consumed
only when a component is blocked on a slow runtime or coordinator call.
A budget overrun is reported as an error and logged; the goroutine is not
killed (Go offers no safe way). The child reports STOPPING until the
goroutine finally exits and sets STOPPED; only STOPPED children are
started, so the first eligible tick after that starts a fresh run.

# Presence Withdrawal

Both hold paths delete /server.presence/<host>, and the duplication
with the registrar's own withdrawal is intentional redundancy:

  - the registrar withdraws when the NODE is ineligible (screen
    unlocked) — it is the component that owns the node's advertisement
  - the watchdog withdraws when the PIPELINE is ineligible (session
    down, child death) — the registrar may be among the stopped and
    unable to act

On session loss the server side usually beats both to it: the ephemeral
node dies with the session. The explicit deletes cover the windows
where the session is alive but the pipeline is not — exactly the
half-alive state the design forbids advertising.

# Usage

	wd := watchdog.New(env, zk,
		registrar.New(env, zk),
		eventdaemon.New(env, zk, rt),
		cfgmgr.New(env, rt),
		statemon.New(env, rt),
		publisher.New(env, zk),
		cleaner.New(env, zk, rt),
	)

	stopCh := make(chan struct{})
	// close(stopCh) on SIGINT/SIGTERM
	wd.Run(stopCh) // blocks; stops all children on the way out

Implementing a Child:

	type Worker struct {
		mu     sync.Mutex
		status watchdog.Status
		stopCh chan struct{}
		done   chan struct{}
	}

	func (w *Worker) Start() error {
		// guard on status == StatusStopped, set StatusStarting,
		// make channels, go w.run(stopCh, done)
	}

	func (w *Worker) run(stopCh <-chan struct{}, done chan<- struct{}) {
		defer close(done)
		defer w.setStatus(watchdog.StatusStopped)
		w.setStatus(watchdog.StatusRunning)
		for {
			select {
			case <-ticker.C:
				// one atomic action
			case <-stopCh:
				return
			}
		}
	}

# Failure Scenarios

Session drops mid-flight:
  - Next tick stops the set and withdraws presence (the server side has
    usually already dropped the ephemeral node). On reconnect the set
    restarts, the registrar recreates presence, and the placement mirror
    reconverges from the directories — no duplicate containers, because
    the running markers survived

Node becomes unavailable (screen unlocked):
  - Same stop-all path without the reconnect; workloads already running
    are not killed, the pipeline just stops advancing

Child wedged past its stop budget:
  - Error logged, set continues stopping; the wedged goroutine's
    component reports STOPPED when it finally unblocks and finds its
    stop channel closed

# Why All-or-Nothing

Per-child restart is the instinctive design and the rejected one. The
six children are stages of one pipeline coupled through directories,
and partial operation has quietly bad modes:

	mirror down, rest up        cache goes stale; config manager keeps
	                            faithfully starting yesterday's
	                            placements
	monitor down, rest up       exits pile up unclassified; the
	                            scheduler believes instances run
	publisher down, rest up     terminal events queue locally; the
	                            scheduler never unschedules
	cleaner down, rest up       cleanup/ grows; placements leak slots

Every mode is eventually consistent once the missing stage returns, but
"eventually" is unbounded while the watchdog believes things are fine.
Stopping everything turns all of them into one visible, short condition
— the set is down, presence is withdrawn, the scheduler routes around
the host — and restart re-derives all state from the directories.

# Integration Points

This package integrates with:

  - pkg/registrar, pkg/eventdaemon, pkg/cfgmgr, pkg/statemon,
    pkg/publisher, pkg/cleaner: the supervised children
  - pkg/coordinator: session state and presence withdrawal
  - pkg/appenv: the availability predicate
  - pkg/metrics: per-child running gauges
  - cmd/burrow: constructs and runs the watchdog

# Worked Timeline

A session flap with one slow child, tick by tick:

	t+0s   all six children RUNNING, session CONNECTED, node available
	t+1s   session drops to SUSPENDED (network blip)
	t+2s   tick: not eligible → stop all. Five children stop in
	       milliseconds; statemon is mid-scan against a slow daemon and
	       rides its stop budget
	t+2s   presence node deleted (it may already be gone server-side)
	t+4s   tick: still SUSPENDED → stop-all is a no-op on STOPPED
	       children, Reconnect() is a no-op (not LOST)
	t+6s   session back to CONNECTED
	t+8s   tick: eligible, no unexpected deaths → start all six
	t+10s  registrar's first tick recreates presence; the mirror
	       resyncs; the pipeline is whole

The directories carried every instance across the gap: running markers
meant no duplicate containers, queued events published after the
reconnect, cleanup entries resumed draining.

# Monitoring

	burrow_child_running{child}   one series per component; the watchdog
	                              sets 1 on start and 0 on stop
	burrow_node_available         the eligibility gate's first half

A sawtooth on all six child series together is the restart-on-death
cycle: something is dying every time the set comes up — find the child
whose series drops first.

# Troubleshooting

Set restarts every few seconds:
  - One child dies immediately after start; its own log names the
    reason. The registrar's template read and the watchers' directory
    adds are the startup steps that can fail this way

Children never start:
  - Check both gates: burrow_node_available and the session state in
    the coordinator log. The watchdog logs its holding decision at
    debug level

Stop budget errors in the log:
  - A component was blocked past 10s in a runtime or coordinator call;
    the call's own timeout (one to five minutes, per component) will
    eventually release the goroutine. Recurring overruns mean the
    external dependency is hanging, not the component

# Best Practices

Do:
  - Keep every child loop to one atomic action per stop-channel check
  - Let fatal conditions exit the run loop; the watchdog owns restarts
    and the stop-all keeps the pipeline consistent
  - Withdraw presence on every hold; a host that is not running the
    pipeline must not advertise

Don't:
  - Restart a single child in isolation; partial pipelines fill
    handoff directories without draining them
  - Add children that cannot tolerate stop/start cycles; supervision
    assumes restart is always safe

# Thread Safety

The watchdog runs in one goroutine; children synchronize their own status
internally, so Status/Start/Stop may be called from the supervision loop
while run goroutines transition concurrently.

# Performance Considerations

  - A steady-state tick is twelve status reads (one sweep for deaths,
    one in the start pass) and two cheap predicate checks
  - The stop-all path is sequential; worst case is children × budget,
    though components built on the one-atomic-action rule stop in
    milliseconds

# See Also

  - pkg/registrar for the fatal-exit example of unexpected death
  - pkg/coordinator for the session states driving eligibility
  - pkg/appenv for the availability predicate
*/
package watchdog
