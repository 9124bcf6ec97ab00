/*
Package statemon classifies container exits into terminal trace events and
hands finished instances to the cleanup worker.

Every second the monitor maps the running markers to their container ids,
asks the runtime which containers have exited and with what codes, and
drives each exited instance through exactly one terminal bucket. It never
deletes the running marker and never removes the container — ownership of
both transfers to the cleaner at the moment the cleanup marker appears.

# Architecture

	┌────────────────── STATE MONITOR ─────────────────────┐
	│                                                       │
	│  every 1s tick                                        │
	│  ┌────────────────────────────────────────┐          │
	│  │ running/ \ cleanup/  → pending set     │          │
	│  │ read markers         → cid → instance  │          │
	│  └───────────────┬────────────────────────┘          │
	│                  ▼                                    │
	│  ┌────────────────────────────────────────┐          │
	│  │ runtime queries:                       │          │
	│  │   E = status=exited                    │          │
	│  │   F = exited=0                         │          │
	│  │   K = exited=137                       │          │
	│  │   A = exited=c, c ∈ [1,255] \ {137}    │          │
	│  └───────────────┬────────────────────────┘          │
	│                  ▼                                    │
	│  for each (cid, instance), cid ∈ E:                   │
	│  ┌────────────────────────────────────────┐          │
	│  │ classify → emit events → copy marker   │          │
	│  │            to cleanup/<instance>       │          │
	│  └────────────────────────────────────────┘          │
	└───────────────────────────────────────────────────────┘

# Classification

	bucket    condition    events emitted (in order)
	──────────────────────────────────────────────────────────────
	finished  cid ∈ F      service_exited(rc=0,  sig=0)
	                       finished(rc=0, sig=0)
	killed    cid ∈ K      service_exited(rc=137, sig=137)
	                       killed(is_oom=false)
	aborted   c = A[cid]   service_exited(rc=c, sig=c)
	                       aborted(why=str(c))

The signal slot mirrors the exit code on abnormal exits. It is not a real
signal number; the encoding is kept for wire compatibility with existing
consumers and must not be interpreted by new ones.

A container in E but in none of F, K, A is a race with the runtime's exit
bookkeeping; it is skipped this pass and classified on the next one.

# Ordering and Ownership

Two guarantees hold at every observation point:

  - service_exited is posted before its terminal event (the post order
    above, and a failed post stops that instance's handling before the
    marker copy)
  - the cleanup marker is never observable before all terminal events for
    its instance are in appevents/ (the copy is the last step)

After the copy, the instance is in both running/ and cleanup/ with the
same container id, and the de-dup subtraction keeps this monitor from
ever touching it again. The cleaner erases both markers; until it does,
invariant "one container id per instance across running/ and cleanup/"
holds because the cleanup marker is a byte copy of the running one.

# Service Name Resolution

service_exited names the instance's first service. The running marker
carries only the container id, so the name is read from the cached
manifest, which normally outlives the container. If the cache entry is
already gone (eviction killed the instance), the service field is empty
rather than blocking the terminal events.

# Why Poll Instead of Watch

The runtime offers event streams, but the monitor is a poller on
purpose:

  - the classification is a pure function of (markers, exit filters),
    so every tick is stateless and a restart loses nothing
  - a missed event stream gap would need exactly this scan as its
    repair path; polling IS the repair path, run always
  - the 1s tick bounds detection latency well below anything the
    scheduler reacts to

The same reasoning shapes the whole pipeline: directories and periodic
re-derivation over in-memory subscriptions, everywhere durability
matters.

# Exit Code Semantics

	0       the service's process ended voluntarily with success;
	        scheduling considers the instance complete
	137     128+9, the SIGKILL convention: eviction kills, OOM kills,
	        and manual docker kill all land here — the killed event
	        deliberately does not distinguish them (is_oom stays false;
	        the runtime's OOM flag is not consulted)
	1..255  the service failed on its own terms; the code rides the
	        aborted event as its reason string

Codes above 255 cannot occur (the engine reports the low byte), and
code 137 from a plain exit(137) is indistinguishable from a kill —
accepted, since the scheduler's response is the same.

# Scan Pass Anatomy

	1. list running/, list cleanup/         either fails → pass aborts
	2. pending = running \ cleanup
	3. read each pending marker             unreadable/malformed →
	                                        that instance skipped
	4. pending empty?                       yes → done, zero runtime
	                                        calls this tick
	5. exit queries (E, F, K, A sweep)      any fails → pass aborts,
	                                        nothing emitted
	6. per (cid, instance), cid ∈ E:
	     classify, emit, copy marker        per-instance; one
	                                        instance's post failure
	                                        stops only that instance

The all-or-nothing shape of steps 1-5 against the per-instance shape of
step 6 is deliberate: queries describe a single moment and mixing two
moments' answers could misclassify, while emissions are independent per
instance and one failure should not starve the rest.

# Usage

	m := statemon.New(env, rt)
	if err := m.Start(); err != nil {
		return err
	}
	defer m.Stop(watchdog.DefaultStopBudget)

	// Tests drive a single pass:
	err := m.Scan()

# Failure Scenarios

Runtime query fails:
  - The pass aborts with no events emitted and no markers copied; the
    next tick re-derives everything

Event post fails mid-classification:
  - The pass for that instance stops before the cleanup copy, so the next
    tick reclassifies and re-posts. Terminal events are therefore
    at-least-once; the publisher's path-based exactly-once absorbs the
    duplicates

Malformed running marker:
  - Logged and skipped, file left in place for the operator

Crash after events, before the copy:
  - Same as a failed post: reclassification next pass, duplicate events
    absorbed downstream

# Integration Points

This package integrates with:

  - pkg/appenv: running/cleanup listings, atomic marker copy
  - pkg/types: marker and manifest parsing
  - pkg/runtime: the Exited/ExitedWithCode slice
  - pkg/trace: all four exit-side event types
  - pkg/cleaner: consumes the cleanup markers this monitor writes
  - pkg/metrics: per-bucket classification counters
  - pkg/watchdog: supervised as a Child

# Design Patterns

Snapshot Classification:

	All four exit queries are taken before any instance is processed;
	one pass classifies against one consistent view of the runtime.

Subtraction De-Dup:

	"Already handled" is encoded as membership in cleanup/, not in
	memory — the de-dup set survives restarts because it is the
	handoff artefact itself.

Ownership Transfer By Copy:

	The cleanup marker is a byte copy of the running marker, made with
	the same atomic rename as every other handoff. The monitor never
	deletes anything; its entire write surface is appevents/ and the
	one copy.

# Thread Safety

One goroutine owns the scan loop; the mutex guards Start/Stop status
only. Scan is safe to call directly in tests with nothing else running.

# Performance Considerations

  - The aborted sweep issues one filtered list call per exit code, ~255
    runtime round trips per tick; on the local daemon socket this is
    cheap, and the sweep is skipped entirely when no pending instance
    exists
  - Marker reads are one small file per running instance per tick
  - The de-dup subtraction keeps already-queued instances from paying
    the classification cost twice

# Worked Example

appA#001's container c123 exits with code 2:

	running/appA#001 = {container_id: c123}, not in cleanup/
	  byContainer = {c123: appA#001}

	runtime queries:
	  E (status=exited)  = {c123}
	  F (exited=0)       = {}
	  K (exited=137)     = {}
	  A                  = {c123: 2}

	classify c123:
	  not finished, not killed → aborted, code 2
	  post <ts>,appA#001,service_exited,c123.web.2.2
	  post <ts>,appA#001,aborted,2
	  copy running/appA#001 → cleanup/appA#001

	next tick: appA#001 ∈ cleanup/ → subtracted, never revisited

# Monitoring

	burrow_exits_classified_total{bucket}   the exit mix per node;
	                                        an aborted surge is an
	                                        application problem, a
	                                        killed surge is eviction
	                                        or OOM pressure
	burrow_directory_entries{dir="running"} live container count
	burrow_directory_entries{dir="cleanup"} handoffs awaiting the
	                                        cleaner

# Troubleshooting

Exit never classified:
  - The container must be findable under an exit-code filter; a
    container in E but no bucket is re-checked every tick and the log
    stays silent — inspect the runtime's view of its exit code
  - A missing running marker means configure never committed; this
    monitor cannot see such containers by design

Terminal events duplicated in the task history:
  - Expected after a crash between posting and the cleanup copy;
    distinct timestamps produce distinct history nodes and consumers
    read the first terminal state

Empty service name in service_exited:
  - The cache manifest was already evicted when the exit was observed
    (unschedule-while-running); the terminal events still flow

# Best Practices

Do:
  - Keep the emit order fixed: service_exited, terminal, copy
  - Abort the instance's pass on any post failure; the next tick
    replays it whole
  - Leave the running marker and container alone — they are the
    cleaner's to erase

Don't:
  - Touch the coordinator from this component; unscheduling belongs to
    the publisher
  - Classify from container state alone; the marker map is what ties an
    exit to an instance

# See Also

  - pkg/cfgmgr for the marker this monitor watches
  - pkg/cleaner for the handoff target
  - pkg/trace for event encodings and the signal quirk
*/
package statemon
