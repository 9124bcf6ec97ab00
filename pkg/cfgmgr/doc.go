/*
Package cfgmgr turns cached manifests into running containers.

The config manager is the only writer of running/. It watches the cache
directory for new manifests, creates and starts a container for each one
that has no running marker yet, and asserts responsibility by writing the
marker. The marker, not the runtime, is what makes a configure pass
idempotent: a second pass over the same instance sees the marker and does
nothing, so no instance ever gets two containers.

# Architecture

	┌───────────────── CONFIG MANAGER ─────────────────────┐
	│                                                       │
	│  fsnotify on cache/          30s heartbeat ticker     │
	│  ┌──────────────────┐       ┌──────────────────┐     │
	│  │ create events    │       │ full reconcile:  │     │
	│  │  .seen → reconcile       │ cache \ running  │     │
	│  │  .* → ignore     │       │ → configure each │     │
	│  │  name → configure│       └────────┬─────────┘     │
	│  └────────┬─────────┘                │               │
	│           └───────────┬──────────────┘               │
	│                       ▼                               │
	│            ┌────────────────────┐                     │
	│            │   Configure(i)     │                     │
	│            └────────────────────┘                     │
	└───────────────────────────────────────────────────────┘

The watcher gives latency; the heartbeat gives completeness. Events can be
missed (watcher races, agent restarts), so every 30 seconds the manager
re-derives the work list from the directories alone.

# Configure Protocol

For one instance, in order:

 1. Skip if running/<instance> exists (idempotence gate)
 2. Read and parse cache/<instance>; malformed manifests are logged and
    left in place for the operator
 3. Create a container from the manifest's image (default "resource") and
    the first service's command
 4. If the runtime lists the container, post configured(container-id)
 5. Start the container; on a runtime error, abandon — no marker, no
    service_running, the next pass retries from step 1
 6. Atomically write running/<instance> with {container_id}
 7. Post service_running(container-id, services[0].name)

The marker write (6) is the commit point. Everything before it is
repeatable; everything after it belongs to the state monitor.

# Crash Safety

Crash before step 6:
  - No marker exists, so the next pass re-runs configure. The runtime may
    hold an orphaned created-but-unstarted container; it has no marker and
    is invisible to the state monitor, and the new pass creates a fresh one.

Crash between steps 6 and 7:
  - The marker exists, so configure never runs again for this instance.
    service_running for it is simply never emitted — consumers must
    tolerate a terminal event with no preceding service_running, and the
    state monitor's exit classification proceeds normally off the marker.

# The .seen Event

The placement mirror creates .seen after its first successful sync. The
watcher treats that creation as "cache folder ready" and runs a full
reconcile, which is what catches manifests that were written while this
component was down and therefore produced no create events.

The sentinel does not gate configuration: a manifest visible in cache/
is configured whether or not .seen exists. An unsynchronized cache means
the mirror may not have caught up, not that its entries are wrong — a
cached manifest was always fetched from the scheduler's own record, so
acting on it early is safe, and waiting would add latency to every
placement for no correctness gain.

# Watcher Plus Heartbeat

The two drive mechanisms cover each other's blind spots:

	fsnotify create event    immediate reaction to a new manifest;
	                         can be missed (restart, overflow)
	30s heartbeat            cannot miss anything (derived from the
	                         directories); adds up to 30s latency

	startup Reconcile        the heartbeat's logic run once at Start,
	                         so a restart begins converged rather than
	                         waiting out the first interval

Every path funnels into Configure, and Configure's marker gate makes all
redundancy free — the same instance arriving via event, heartbeat, and
startup replay configures exactly once.

# Usage

	m := cfgmgr.New(env, rt)
	if err := m.Start(); err != nil {
		return err
	}
	defer m.Stop(watchdog.DefaultStopBudget)

	// Tests call the steps directly:
	m.Configure("appA#001")
	m.Reconcile()

# Failure Scenarios

Runtime create fails (image missing, daemon down):
  - Logged, ConfigureFailures incremented, attempt abandoned; retried on
    the next heartbeat

Runtime start fails:
  - Same abandonment; the configured event for the created container has
    already been posted, which is accurate — it was configured, it never
    ran

Marker write fails:
  - Logged at error; the container is running without a marker, and the
    next pass will create a second container. This is the one step whose
    failure is not fully safe, which is why it is a plain local rename —
    the least likely operation in the protocol to fail

Malformed manifest:
  - Skipped forever until an operator fixes or removes the file; the
    pipeline never deletes what it cannot parse

# Event Semantics

The two events this component emits mark distinct commitments:

	configured(container-id)
	  the runtime accepted the create and lists the container; emitted
	  even if the subsequent start fails, because a container now
	  exists that an operator might need to find

	service_running(container-id, service)
	  the container started AND the running marker is committed; the
	  instance is now the state monitor's to watch

Between the two sits the start call and the marker rename — the window
the crash-safety section walks through. Consumers that see configured
with no service_running and no terminal event are looking at either an
abandoned start (retry imminent) or the crash window (marker committed,
event lost); in both cases the next observable transition comes from
the terminal path, which is why consumers must key on terminal events,
not on service_running.

# Integration Points

This package integrates with:

  - pkg/appenv: cache/running listings, atomic marker writes, .seen name
  - pkg/types: manifest parsing, marker encoding
  - pkg/runtime: Create/Start/Exists slice of the runtime
  - pkg/trace: configured and service_running events
  - pkg/eventdaemon: produces the cache this manager consumes
  - pkg/statemon: takes over at the running marker
  - pkg/metrics: configure counters and start-duration histogram
  - pkg/watchdog: supervised as a Child

# Design Patterns

Marker-Gated Idempotence:

	The cheapest possible dedup: one os.Stat against running/. No
	in-memory set to lose on restart, no lease to expire — the gate is
	as durable as the work it guards.

Abandon, Don't Retry Inline:

	A failed create or start returns without cleanup or backoff; the
	heartbeat IS the retry policy. Inline retries would serialize
	behind a sick daemon; abandonment keeps each pass short and the
	retry cadence uniform.

Commit Point Last:

	Everything repeatable happens before the marker rename; everything
	after it is owned downstream. The protocol is a write-ahead handoff
	with the rename as the ledger entry.

# Thread Safety

One goroutine runs the watcher loop, the heartbeat, and every configure;
the mutex guards only Start/Stop status transitions. Configure is
race-free against itself by construction (single goroutine) and
idempotent against restarts (the marker gate).

# Performance Considerations

  - Configure blocks on the runtime under a 2 minute context timeout;
    Create does not pull, so a missing image fails the create at once
  - The heartbeat reconcile is one cache listing plus one stat of
    running/ per cached instance when there is nothing to do
  - fsnotify events for the same manifest can arrive more than once; the
    marker gate makes duplicates free
  - Configures run sequentially; a slow runtime call delays the manifests
    behind it until the next heartbeat picks them up

# Worked Example

appA#001 arriving on an idle node:

	event daemon writes cache/appA#001:
	  services:
	  - name: web
	    command: run.sh

	fsnotify: create cache/appA#001
	  running/appA#001?                 → absent, proceed
	  parse manifest                    → image "resource", command run.sh
	  rt.Create("resource", "run.sh")   → c123
	  rt.Exists(c123)                   → true
	  post  <ts>,appA#001,configured,c123
	  rt.Start(c123)                    → ok
	  rename running/appA#001           → {container_id: c123}
	  post  <ts>,appA#001,service_running,c123.web

	thirty seconds later, heartbeat:
	  cache \ running = ∅               → nothing to do

# Monitoring

	burrow_containers_configured_total        advances with placements
	burrow_configure_failures_total           runtime refusals; bursts
	                                          track daemon health
	burrow_container_start_duration_seconds   runtime create/start latency
	burrow_directory_entries{dir="cache"} vs {dir="running"}
	                                          a persistent gap means
	                                          configures are failing

# Troubleshooting

Manifest cached but no container:
  - Read cfgmgr.log for the instance; create/start refusals are logged
    with the runtime's error
  - A malformed manifest is reported once per pass — fix or remove the
    cache file by hand

Instance configured twice:
  - Cannot happen through this component while running/<instance>
    exists; if two containers share an instance, look for manual marker
    deletion or an out-of-band container

Events missed while down:
  - By design: the startup Reconcile and the .seen handler both replay
    from the directory state, not from the event stream

# Best Practices

Do:
  - Treat the running marker as the single source of configure truth
  - Keep configure abandonment silent-but-counted; the retry is the
    heartbeat's job
  - Let malformed manifests sit; they are evidence

Don't:
  - Write anything into cache/ from this component; it is a reader there
  - Emit service_running before the marker rename; the order is part of
    the crash-safety contract

# See Also

  - pkg/eventdaemon for how manifests arrive
  - pkg/statemon for what happens after the marker
  - pkg/trace for the emitted events
*/
package cfgmgr
