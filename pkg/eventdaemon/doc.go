/*
Package eventdaemon mirrors the coordinator's placement list for this host
into the cache directory, one manifest file per assigned instance.

The daemon is the only writer of cache/. It watches the host's presence
node and, whenever the node exists, reconciles the cache against the
placement children by set difference. The .seen sentinel marks a cache
that has caught up at least once since the presence appeared; while it is
absent the cache must not be trusted as authoritative.

# Architecture

	┌──────────────── PLACEMENT MIRROR ────────────────────┐
	│                                                       │
	│  /server.presence/<host> ──ExistsW──┐                 │
	│                                     ▼                 │
	│                      ┌──────────────────────┐         │
	│                      │  presence state      │         │
	│                      │  machine (below)     │         │
	│                      └──────────┬───────────┘         │
	│                                 │ Present              │
	│                                 ▼                      │
	│  /placement/<host> children ──▶ Synchronize            │
	│                                 │                      │
	│              ┌──────────────────┼───────────────────┐  │
	│              ▼                  ▼                   │  │
	│        extra instances    missing instances         │  │
	│        kill container     fetch /scheduled/<i>      │  │
	│        (best-effort),     set task, merge           │  │
	│        delete cache/<i>   /placement payload,       │  │
	│                           write cache/<i> atomically│  │
	│              └──────────────────┬───────────────────┘  │
	│                                 ▼                      │
	│                           mark .seen                   │
	└───────────────────────────────────────────────────────┘

# Presence State Machine

	            node exists
	  ┌────────────────────────────▶ Present:
	  │                               list placement,
	  │                               synchronize, mark .seen
	Absent:                              │
	  clear .seen;                       │ EventDeleted
	  cache kept       ◀─────────────────┘
	  ▲   │
	  └───┘ node still missing: wait for the watch

  - Absent: the scheduler cannot see this host; whatever is cached may be
    stale, so .seen comes off
  - Present: every watch wake-up lists the placement and synchronizes;
    the registrar's 2s presence refresh fires the data-changed watch, so
    sync runs continuously while present
  - Deleted: treated exactly as Absent

The daemon keeps no in-memory ready flag: the .seen sentinel is the only
record of whether the mirror has caught up since the presence appeared.

Watches are one-shot and re-armed after every callback. Processing is
strictly serial — there is no parallelism inside the daemon, so two syncs
never interleave.

# Synchronize

Given the expected instance list, one pass computes two set differences
against the cache listing:

	extra   = cached \ expected   → evict
	missing = expected \ cached   → cache

Evict: if running/<instance> exists its container is killed through the
runtime best-effort (the state monitor will classify the 137 exit and the
normal terminal path runs); then the cache entry is deleted. A kill
failure never blocks the eviction — the placement is gone either way.

Cache: the manifest is fetched from /scheduled/<instance>, its task field
is set from the name part after the first '#' (empty when there is none),
any payload at /placement/<host>/<instance> is merged over it, and the
result is written to cache/<instance> by atomic rename. A missing
scheduler record is logged at info and skipped; the next pass corrects.

Instances already cached and still expected are never rewritten — the
cache entry is stable from creation to eviction.

# Manifest Enrichment

A cached manifest is the scheduler record plus two enrichments, applied
in order so later sources win:

	1. /scheduled/<instance>          the base document
	2. task = part after first '#'    derived from the name itself
	3. /placement/<host>/<instance>   host-specific overrides merged on
	                                  top (image, arbitrary metadata)

The placement payload is how the scheduler specializes one instance for
one host without touching the shared scheduled record. A missing
placement payload is normal (NoNode is quietly skipped); a present one
merges via the manifest's own Merge routing.

# The .seen Contract

The sentinel makes the mirror's progress observable to the rest of the
node:

	created   after every successful sync while present — the cache
	          now reflects a placement listing the scheduler served
	cleared   on every absence or deletion of the presence node — the
	          scheduler may have reassigned work while it could not
	          see this host

Downstream, the config manager treats the sentinel's creation as a
reconcile trigger but configures visible manifests regardless; .seen
distinguishes "caught up" from "catching up", never "valid" from
"invalid".

# Usage

	d := eventdaemon.New(env, zk, rt)
	if err := d.Start(); err != nil {
		return err
	}
	defer d.Stop(watchdog.DefaultStopBudget)

	// Tests drive the sync directly:
	err := d.Synchronize([]string{"appA#001", "appB#002"})

# Failure Scenarios

Coordinator listing fails:
  - Logged, pass skipped, .seen untouched; the next watch wake-up retries

Scheduler record missing for an expected instance:
  - Logged at info, instance skipped; a later pass fetches it once the
    scheduler writes it

Kill fails during eviction:
  - Logged, cache entry still deleted; the cleanup path owns the
    container's remains once the state monitor sees the exit

Crash mid-sync:
  - Cache writes are atomic, so the directory holds only complete
    manifests; the next pass recomputes both differences from scratch and
    converges

# Why Watch Presence, Not Placement

The mirror could watch /placement/<host>'s children directly; watching
the presence node instead buys three things:

  - absence handling for free: the same watch that drives syncs also
    reports "the scheduler cannot see this host", which is what clears
    .seen — a children watch on placement says nothing about presence
  - a built-in heartbeat: the registrar refreshes the presence payload
    every 2s, and each refresh fires the data-changed watch, so the
    mirror re-lists placement continuously while present without any
    timer of its own
  - one watch to re-arm instead of two to keep consistent

The cost is listing the placement children on wake-ups where nothing
changed; the listing is one cheap call and the set difference against
an unchanged cache is a no-op.

# Integration Points

This package integrates with:

  - pkg/coordinator: presence watch, placement children, scheduled and
    placement payloads
  - pkg/runtime: best-effort kill on eviction
  - pkg/appenv: cache listing, atomic writes, the .seen sentinel
  - pkg/types: manifest decode/enrich/encode
  - pkg/cfgmgr: consumes the cache this daemon maintains
  - pkg/metrics: sync pass counters and durations
  - pkg/watchdog: supervised as a Child

# Design Patterns

Set-Difference Reconciliation:

	Desired (placement children) minus actual (cache listing) in both
	directions, recomputed from scratch every pass. No incremental
	diffing, no event replay — the pass is correct from any starting
	state, which is the whole crash-safety story.

Single Writer:

	Only this daemon writes cache/. The config manager's view can be
	stale but never torn, and eviction vs creation cannot race because
	both happen in the one serial loop.

Best-Effort Side Effects:

	The eviction kill may fail; the cache deletion proceeds anyway.
	Side effects that other components will eventually converge
	(the monitor sees the exit, the cleaner removes the container)
	are not allowed to block the authoritative state change.

# Thread Safety

One goroutine owns the watch loop and every sync; the mutex only guards
status transitions for Start/Stop. Synchronize is safe to call directly in
tests because nothing else is running.

# Performance Considerations

  - A sync pass is one directory listing, one children call, and one
    fetch per missing instance; steady state with no placement changes
    does no coordinator reads beyond the children list
  - The 2s presence refresh bounds how stale the mirror can be while
    present
  - Manifest fetches happen only for missing instances, so a stable
    placement costs nothing per pass

# Worked Example

The placement walking through ∅ → {a#1, b#2} → {b#2} → ∅:

	placement ∅, cache ∅:
	  extra = ∅, missing = ∅                → no-op, mark .seen

	placement {a#1, b#2}:
	  missing = {a#1, b#2}
	  fetch /scheduled/a#1 → task "1" → cache/a#1
	  fetch /scheduled/b#2 → task "2" → cache/b#2

	placement {b#2}:
	  extra = {a#1}
	  running/a#1 exists → kill its container (best-effort)
	  delete cache/a#1

	placement ∅:
	  extra = {b#2} → same eviction path

Each arrow is one watch wake-up; the config manager and state monitor
react to the cache and the kill independently, through the directories.

# Monitoring

	burrow_placement_syncs_total             advances every pass; a
	                                         stall while present means
	                                         the watch loop is stuck
	burrow_placement_sync_duration_seconds   fetch-bound; tracks
	                                         coordinator latency
	burrow_directory_entries{dir="cache"}    should equal the placement
	                                         children count at rest

# Troubleshooting

Cache never fills:
  - Check the presence node exists; the mirror only syncs while present
  - Check eventdaemon.log for "Instance not found in scheduler" — the
    placement names an instance /scheduled does not hold yet

.seen missing while everything looks fine:
  - The sentinel clears on every absence; a registrar or session flap
    within the last moments explains it, and the next present-sync
    restores it

Evicted instance's container still running:
  - The kill is best-effort; a failed kill is logged and the container
    exits into the normal classification path later, or is removed by
    the cleaner once a terminal event queues

# Best Practices

Do:
  - Keep all sync work serial; the correctness of set-difference
    reconciliation depends on passes not interleaving
  - Re-arm the watch after every event, success or failure
  - Trust the directories over memory: every pass recomputes from disk

Don't:
  - Rewrite a cached manifest for a still-placed instance; cache
    entries are immutable between creation and eviction
  - Treat a kill failure as a sync failure; the placement's word is
    final either way

# See Also

  - pkg/registrar for the presence refresh that drives the watch
  - pkg/cfgmgr for what consumes the cache
  - pkg/appenv for the .seen contract
*/
package eventdaemon
