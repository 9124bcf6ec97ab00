/*
Package cleaner retires instances the state monitor has queued in cleanup/.

The cleaner owns the final erasure: the placement record in the
coordinator, the container in the runtime, and the cache, running, and
cleanup markers on disk. Any failure leaves the cleanup marker untouched
and the whole entry is retried on the next tick — cleanup is
at-least-once, and every step tolerates having already happened.

# Architecture

	┌────────────────── CLEANUP WORKER ────────────────────┐
	│                                                       │
	│  every 2s tick, while node available                  │
	│  ┌─────────────────────────────────────────────┐     │
	│  │ for each cleanup/<instance>:                │     │
	│  │                                             │     │
	│  │  1. delete /placement/<host>/<instance>     │     │
	│  │     (NoNode ignored)                        │     │
	│  │  2. read marker → container id              │     │
	│  │  3. remove container (not-found ignored)    │     │
	│  │  4. delete cache/<i>, running/<i>,          │     │
	│  │     cleanup/<i> (absent ignored)            │     │
	│  │                                             │     │
	│  │  any step fails → stop, keep marker,        │     │
	│  │  retry entire entry next tick               │     │
	│  └─────────────────────────────────────────────┘     │
	└───────────────────────────────────────────────────────┘

# At-Least-Once Design

The cleanup marker is the retry state; it is deleted last. Each step is
idempotent, so a crash or error anywhere replays safely:

  - placement delete ignores NoNode (step 1 already ran)
  - container remove ignores not-found (step 3 already ran)
  - marker deletes ignore absence (step 4 partially ran)

The step order matters: the placement record goes first so the scheduler
stops counting the instance against this host even if the container
removal is stuck; the cleanup marker goes last so a stuck removal stays
visible as a stale entry in cleanup/ — the operator-facing signal for "a
container removal is wedged".

# Availability Gate

The sweep runs only while the node is available. An unavailable node
leaves the queue intact; entries resume draining when the node returns.
The gate is re-checked every tick, not per entry, matching the watchdog's
coarser supervision.

# Interaction With Eviction

Two paths lead an instance's files to deletion, and they compose without
coordination:

	exit path:      state monitor copies the marker → cleaner erases
	                cache, running, cleanup
	eviction path:  event daemon kills the container and deletes cache;
	                the kill becomes an exit (137) → state monitor →
	                cleaner erases running and cleanup (cache already
	                gone — RemoveIfPresent shrugs)

An evicted instance therefore still flows through this component; the
only difference the cleaner sees is a cache file that is already absent,
which step 4 treats as done. This is why every deletion in the protocol
ignores absence: the other path may have gotten there first.

# Design Patterns

Marker As Work Item:

	The cleanup file is simultaneously the queue entry, the retry
	token, and the input data (it carries the container id). There is
	no separate queue state to desynchronize from the work.

Erase Last:

	Deleting the cleanup marker is the final step of a successful pass,
	so "entry exists" always means "work remains", with no completed-
	but-listed window.

Coarse Abort:

	A failed step aborts the whole entry rather than resuming mid-way
	next tick; re-running the cheap early steps buys a protocol with no
	per-entry cursor to persist.

# Why the Placement Record Goes First

Deleting /placement/<host>/<instance> before the container removal is a
scheduling-capacity decision. The children of /placement/<host> are what
the scheduler counts against the host; a container that is merely dead
weight on disk should not hold a placement slot hostage to a slow or
flaky removal. The cost of the ordering is benign: if the removal then
fails, the retry's placement delete is a NoNode no-op, and the scheduler
may place new work while an exited container awaits removal — exited
containers consume no meaningful resources.

The symmetric risk (slot freed, container never removed) is bounded by
the retry loop and surfaced by the stale cleanup/ entry plus the retry
counter; it cannot silently leak.

# Usage

	c := cleaner.New(env, zk, rt)
	if err := c.Start(); err != nil {
		return err
	}
	defer c.Stop(watchdog.DefaultStopBudget)

	// Tests drive entries directly:
	err := c.CleanupOne("appA#001")
	c.Sweep()

# Failure Scenarios

Coordinator delete fails:
  - Entry aborted before the container is touched; full retry next tick

Unreadable or malformed cleanup marker:
  - Entry aborted and retried; the marker stays for the operator. This
    is the one entry shape that can never self-heal — it also can never
    half-run, because it fails before any destructive step

Runtime remove fails:
  - Entry aborted after the placement delete; the placement delete replay
    next tick is a free NoNode

Marker deletion fails (filesystem error):
  - Entry aborted; remaining markers are swept on the retry

# Integration Points

This package integrates with:

  - pkg/statemon: produces the cleanup markers
  - pkg/coordinator: placement record deletion
  - pkg/runtime: the Remove slice
  - pkg/appenv: queue listing, marker deletion, availability gate
  - pkg/types: marker parsing
  - pkg/metrics: cleanup and retry counters
  - pkg/watchdog: supervised as a Child

# Crash Recovery Walkthrough

The cleaner dies between steps 3 and 4 of an entry:

	state at crash:
	  /placement/h1/appA#001   deleted (step 1 ran)
	  container c123           removed (step 3 ran)
	  cache/appA#001           still present
	  running/appA#001         still present
	  cleanup/appA#001         still present ← the retry token

	restart, first sweep:
	  1. delete placement      → NoNode, ignored
	  2. read cleanup marker   → c123
	  3. remove c123           → not-found, ignored
	  4. delete all three      → done

	observable difference from an uncrashed run: none

The same replay logic covers a sweep cut short by a process exit (each
entry is atomic in effect) and the node flipping unavailable between
ticks.

# Stop Behavior

The stop channel is checked between sweeps, not between entries: a stop
request takes effect once the current sweep has worked through every
entry it listed. In the common case the worker is waiting for the next
tick and Stop returns immediately; during a sweep, Stop waits up to its
budget (10s by default) and returns an error if the sweep is still
running, as it can be while a removal rides its one-minute timeout.
Entries queued after the sweep's listing simply remain queued; there is
no draining phase, because the queue IS the durable state.

# Thread Safety

One goroutine owns the sweep; the mutex guards Start/Stop status only.
CleanupOne is safe to call directly in tests.

# Performance Considerations

  - One coordinator delete and one runtime remove per entry; the queue
    is normally empty and the tick is a single readdir
  - A persistently failing entry retries every 2s; the CleanupRetries
    counter and the stale cleanup/ entry make it visible long before it
    matters
  - Entries are processed sequentially; a slow container removal delays
    the entries behind it by at most its one-minute context timeout

# Validation

CleanupOne validates only the marker (ParseRunMarker's non-empty
container id); the instance name is trusted as a filename that already
exists. There is deliberately no cross-check against cache/ or
running/ — their entries may legitimately be present, absent, or
half-erased from a prior pass, and the protocol's ignore-absence
deletions handle every combination.

# Worked Example

An instance appA#001 whose container c123 exited cleanly:

	before the sweep:
	  cache/appA#001      (manifest, still present)
	  running/appA#001    {container_id: c123}
	  cleanup/appA#001    {container_id: c123}
	  /placement/h1/appA#001 in the coordinator
	  container c123 in the runtime, exited

	sweep:
	  1. delete /placement/h1/appA#001       → gone
	  2. read cleanup/appA#001               → c123
	  3. remove container c123               → gone
	  4. delete cache/appA#001               → gone
	     delete running/appA#001             → gone
	     delete cleanup/appA#001             → gone

	after: no trace of the instance on this node; the scheduler is free
	to place it elsewhere

If step 3 had failed, steps 1-2 replay next tick: the placement delete
finds NoNode and moves on, the marker is still there, the removal gets a
second chance.

# Monitoring

Key signals for this component:

	burrow_cleanups_total          steady growth with workload churn
	burrow_cleanup_retries_total   occasional blips are normal (daemon
	                               busy); sustained growth is a wedge
	burrow_directory_entries{dir="cleanup"}
	                               should hover at zero; a plateau means
	                               an entry cannot complete

# Troubleshooting

Entry never drains:
  - Read the cleaner's log for the failing step; the error names it
  - A malformed marker must be removed by hand after inspecting it
  - A container remove that keeps failing usually means the runtime
    daemon is unhealthy; the entry will drain once it recovers

Markers gone but container still exists:
  - Does not happen through this code path — the marker deletion is
    strictly after the successful remove. A container with no markers
    was created outside the pipeline or its configure pass crashed
    before the running marker; such containers are invisible to the
    agent by design

Queue draining while the node is in use:
  - Check screen_state.txt; the sweep gate reads it every tick and
    "Lock" (user away) is the state that permits cleanup

# Best Practices

Do:
  - Treat a stale cleanup/ entry as an operator signal, not noise
  - Let retries ride; every step is idempotent by construction
  - Watch the retry counter alongside the queue depth

Don't:
  - Delete cleanup markers by hand to "unstick" the queue — that orphans
    the container and leaks the placement record
  - Reorder the steps: the placement delete must precede the removal,
    and the marker deletes must come last

# See Also

  - pkg/statemon for how entries arrive
  - pkg/appenv for the directory contract
  - pkg/metrics for the stuck-cleanup signals
*/
package cleaner
