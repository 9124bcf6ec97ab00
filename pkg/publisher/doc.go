/*
Package publisher drains the appevents/ queue into the coordinator's task
history.

The event filename already encodes every routable field, so the publisher
derives the coordinator node path from the name alone and forwards the file
body as the payload. A file is deleted only after its coordinator node was
created or observed to already exist — publication is exactly-once by path,
and the local file is the retry state.

# Architecture

	┌────────────────── EVENT PUBLISHER ───────────────────┐
	│                                                       │
	│  startup: Drain() replays the backlog in name order   │
	│                                                       │
	│  fsnotify on appevents/       2s rescan ticker        │
	│  ┌──────────────────┐        ┌──────────────────┐    │
	│  │ create events    │        │ Drain(): sorted  │    │
	│  │  → publish(name) │        │ listing, publish │    │
	│  └────────┬─────────┘        │ each             │    │
	│           └──────────┬───────┴────────┬─────────┘    │
	│                      ▼                               │
	│  ┌─────────────────────────────────────────────┐     │
	│  │ publish(name):                              │     │
	│  │  parse ts,instance,type,data                │     │
	│  │  create /tasks/<app>/<task>/                │     │
	│  │         <ts>,<host>,<type>,<data>           │     │
	│  │         (makepath; NodeExists absorbed)     │     │
	│  │  terminal? → delete /scheduled/<instance>   │     │
	│  │             merge exit summary into         │     │
	│  │             /tasks/<app>/<task>             │     │
	│  │  delete the local file                      │     │
	│  └─────────────────────────────────────────────┘     │
	└───────────────────────────────────────────────────────┘

# Exactly-Once Protocol

The coordinator node path is a pure function of the event file name plus
the hostname. Publishing the same file twice therefore targets the same
path; the second create fails with NodeExists and is absorbed. The
deletion order makes this safe in both directions:

  - crash after create, before local delete → next pass re-creates,
    collides, absorbs, deletes: one node, no stranded file
  - create fails (connection loss) → file stays, next pass retries: the
    event is never lost

The state monitor's at-least-once terminal emission composes with this:
duplicate event files target duplicate paths only if their timestamps
collide, and distinct timestamps produce distinct history nodes — the
consumer's view of history tolerates that, the scheduler record deletion
does not care.

# Terminal Events

For finished, aborted, and killed the publisher additionally:

 1. Deletes /scheduled/<instance> (NoNode ignored) — this is the single
    place the agent unschedules; the state monitor never touches the
    coordinator
 2. Best-effort merges an exit summary into the task node:

	state: finished
	when: <event timestamp>
	host: <this host>
	data: 0.0

A missing task node downgrades step 2 to a warning; the unschedule in
step 1 must still have succeeded before the local file is deleted.

# Ordering

Within one instance, filenames sort lexicographically by their timestamp
prefix, and Drain publishes in sorted order, so an instance's history
nodes are created in causal order. Across instances no order is promised.
The fsnotify path can interleave instances arbitrarily; only the backlog
replay is sorted, which is where ordering can actually have been lost.

# History Node Rendering

The local filename and the history node name share a grammar but differ
in one field — the instance slot becomes the host:

	local:    <ts>,<instance>,<type>,<data>
	history:  <ts>,<host>,<type>,<data>

The instance moves into the path (/tasks/<app>/<task>/...), where it
shards history by application, and the host takes its slot in the name,
recording which node observed the event. Both renderings come from the
same parsed File, so a re-publish after a crash produces byte-identical
node names — the collision that makes exactly-once work.

# Watcher Plus Rescan

Like the config manager, the publisher pairs fsnotify with a ticker, but
with a 2s period instead of 30s: events are latency-sensitive (the
scheduler acts on terminal events) and the queue is usually empty, so
the cheap rescan earns its keep. The rescan also sweeps files whose
first publish attempt failed — fsnotify only fires on creation, and a
kept file would otherwise wait for the next unrelated event.

# Why Unscheduling Lives Here

The publisher is the only component that removes scheduler state, and
the terminal event is the trigger, not the exit itself. Two properties
fall out:

  - unscheduling is exactly as durable as the event queue: a crash
    anywhere leaves either the event file (retry) or the completed
    deletion, never a half-state
  - the scheduler observes a consistent story — by the time
    /scheduled/<instance> disappears, the terminal history node
    explaining why already exists

Had the state monitor unscheduled at classification time (as older
agents did), a crash between the coordinator write and the event post
could orphan an unscheduled instance with no recorded reason.

# Usage

	p := publisher.New(env, zk)
	if err := p.Start(); err != nil {
		return err
	}
	defer p.Stop(watchdog.DefaultStopBudget)

	// Tests drive the queue directly:
	p.Drain()

# Failure Scenarios

Coordinator create fails:
  - File kept, warning logged, retried by the 2s rescan

Unschedule fails on a terminal event:
  - File kept (the history node already exists; the retry will collide
    and absorb), unschedule retried next pass

Malformed filename:
  - Logged and left in place for operator inspection; nothing else in
    the queue is blocked

Local delete fails:
  - Warning logged; the next pass re-publishes, collides, and retries
    the delete

# Integration Points

This package integrates with:

  - pkg/trace: filename parsing and terminal-type detection
  - pkg/coordinator: task history paths, recursive create, unscheduling,
    exit summary merge
  - pkg/appenv: queue listing
  - pkg/cfgmgr and pkg/statemon: the producers of this queue
  - pkg/metrics: per-type published counters
  - pkg/watchdog: supervised as a Child

# Design Patterns

Path-Derived Idempotence:

	The history node path is a deterministic function of the event
	file's name; duplicate work collides instead of duplicating. No
	dedup state, no transaction log — the coordinator's namespace is
	the ledger.

File As Ack:

	The local file's continued existence is the un-acked state; its
	deletion is the ack. Retry needs no bookkeeping beyond "what is
	still in the directory".

Router, Not Parser:

	The publisher understands event names, never event bodies. New
	payload formats flow through untouched; only a new event TYPE
	requires code here (and then only in pkg/trace's closed set).

# Thread Safety

One goroutine runs the watcher, the rescan, and every publish; the mutex
guards Start/Stop status only. Duplicate deliveries (watcher event plus
rescan of the same file) are harmless: the second read finds the file
gone and returns.

# Performance Considerations

  - One create round trip per event, plus two more for terminal events
  - The 2s rescan lists one directory; with an empty queue it is a single
    readdir
  - Queue depth is visible as burrow_directory_entries{dir="appevents"} —
    a growing value means the coordinator path is failing
  - Publishes are sequential; coordinator latency bounds throughput at
    roughly one event per round trip, far above any real emission rate

# Validation

The publisher's only validation is ParseFilename: a name that does not
parse is not an event and is never forwarded, deleted, or counted. The
payload is explicitly NOT validated — forwarding opaque bytes is the
contract, and a consumer-side schema change must not strand events on
every node's disk.

# Worked Example

The file 1700000000.123456,appA#001,finished,0.0 on host h1:

	parse:    ts=1700000000.123456  instance=appA#001
	          type=finished         data=0.0
	create:   /tasks/appA/001/1700000000.123456,h1,finished,0.0
	          payload = file body   (parents made as needed)
	terminal: delete /scheduled/appA#001
	          merge into /tasks/appA/001:
	            state: finished
	            when: "1700000000.123456"
	            host: h1
	            data: "0.0"
	delete:   the local file

A crash after the create replays the whole sequence: the create collides
(absorbed), the scheduled delete finds NoNode (ignored), the merge
rewrites the same summary, and the file finally goes.

# Monitoring

	burrow_events_published_total{type}       should track
	burrow_events_posted_total{type} with a small lag
	burrow_directory_entries{dir="appevents"} the lag made visible; a
	                                          growing queue with flat
	                                          published counters is a
	                                          coordinator outage

# Troubleshooting

Queue growing:
  - Read publisher.log; "Failed to publish event, will retry" carries
    the coordinator error. The queue is the buffer working as designed —
    nothing is lost, it drains on reconnect

One file stuck forever:
  - A malformed filename is skipped (and logged) every pass; inspect
    and remove it by hand
  - A terminal event whose unschedule keeps failing holds its file; the
    history node already exists and will be absorbed on the eventual
    retry

Instance history out of order:
  - Within an instance the backlog replay is sorted; live watcher
    deliveries follow post order. Cross-instance interleaving carries
    no meaning

# Best Practices

Do:
  - Derive the history path only from the filename; the body is opaque
  - Delete the local file strictly after the create succeeded or
    collided
  - Keep the unschedule inside the terminal path; it is the only place
    the agent removes scheduler state

Don't:
  - Parse or validate payloads here; the publisher is a router
  - Publish dot-prefixed names; they are temp files mid-rename

# See Also

  - pkg/trace for the filename grammar this package routes on
  - pkg/statemon for terminal event production
  - pkg/coordinator for NodeExists/NoNode semantics
*/
package publisher
