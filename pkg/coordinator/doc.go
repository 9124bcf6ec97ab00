/*
Package coordinator wraps the ZooKeeper client the agent registers with and
mirrors placements from.

The wrapper keeps the coordinator contract narrow: get/exists/create/delete/
children plus one-shot data and children watches, YAML payloads, and a
session state observable as CONNECTED, SUSPENDED, or LOST. Ephemeral nodes
live exactly as long as the session; the registrar recreates them on
reconnect. Path builders for the scheduler's namespace live alongside the
client so no component spells a path by hand.

# Architecture

	┌───────────────── COORDINATOR CLIENT ──────────────────┐
	│                                                        │
	│  ┌──────────────────────────────────────────┐         │
	│  │              Client                       │         │
	│  │  - go-zookeeper connection               │         │
	│  │  - session watcher goroutine             │         │
	│  │  - state: CONNECTED/SUSPENDED/LOST       │         │
	│  └───────┬──────────────────┬───────────────┘         │
	│          │                  │                          │
	│  ┌───────▼───────┐  ┌───────▼────────────┐            │
	│  │  Operations   │  │    Watches         │            │
	│  │  Get/GetYAML  │  │  WatchExists       │            │
	│  │  Exists       │  │  WatchChildren     │            │
	│  │  Create       │  │  (one-shot, re-arm │            │
	│  │  CreateOrSet  │  │   after every      │            │
	│  │  CreateRecursive  event)              │            │
	│  │  Delete       │  └────────────────────┘            │
	│  │  EnsureDeleted│                                     │
	│  │  Children     │  ┌────────────────────┐            │
	│  │  MergeUpdate  │  │  Error Predicates  │            │
	│  └───────────────┘  │  IsNoNode          │            │
	│                     │  IsNodeExists      │            │
	│                     │  IsConnectionLoss  │            │
	│                     └────────────────────┘            │
	└────────────────────────────────────────────────────────┘

# Path Namespace

The scheduler's namespace, built by the functions in paths.go:

	/servers/<host>               persistent server record (descriptor text)
	/server.presence/<host>       ephemeral presence; lifetime = session
	/blackedout.servers/<host>    gate; present ⇒ suppress presence
	/placement/<host>             children list = this host's assignments
	/placement/<host>/<instance>  payload merged into the cached manifest
	/scheduled/<instance>         scheduler's record of the instance
	/tasks/<app>/<task>           task history node (instance split on '#')
	/tasks/<app>/<task>/<event>   one published trace event

TaskPath splits the instance name on its first '#'; an instance without a
task part collapses to /tasks/<app>.

# Session States

	         ┌─────────────┐
	  dial   │  SUSPENDED  │◀─────────────┐
	────────▶│ (no session)│              │ disconnect /
	         └──────┬──────┘              │ reconnecting
	                │ session             │
	                │ established        ┌┴──────────┐
	                ▼                    │ CONNECTED │
	         ┌─────────────┐             └┬──────────┘
	         │  CONNECTED  │──────────────┘
	         └──────┬──────┘
	                │ session expired
	                ▼
	         ┌─────────────┐   Reconnect()
	         │    LOST     │──────────────▶ fresh dial (SUSPENDED)
	         └─────────────┘

  - SUSPENDED: transport down or session not yet established; the
    underlying client is retrying on its own, ephemeral nodes still exist
    server-side until the session times out
  - CONNECTED: live session; ephemeral nodes are held
  - LOST: session expired server-side; every ephemeral node is gone and
    only Reconnect() (a fresh connection) leaves this state

The watchdog polls State() each pass and holds the pipeline down while the
session is anything but CONNECTED.

# Usage

Connecting:

	zk, err := coordinator.Connect("10.0.0.1:2181,10.0.0.2:2181")
	if err != nil {
		return err
	}
	defer zk.Close()

Reading a YAML payload:

	var manifest types.Manifest
	err := zk.GetYAML(coordinator.ScheduledPath(instance), &manifest)
	if coordinator.IsNoNode(err) {
		// Scheduler record gone; the next reconcile pass corrects.
		return nil
	}

Watching a node with re-arm:

	for {
		exists, events, err := zk.WatchExists(coordinator.ServerPresencePath(host))
		if err != nil {
			time.Sleep(rearmDelay)
			continue
		}
		handle(exists)
		select {
		case ev := <-events:
			if ev.Type == coordinator.EventDeleted {
				handleDeleted()
			}
			// loop: re-arm the watch, re-read the state
		case <-stopCh:
			return
		}
	}

Publishing with makepath and idempotence:

	err := zk.CreateRecursive(coordinator.TaskEventPath(instance, node), payload)
	if err != nil && !coordinator.IsNodeExists(err) {
		return err // retry later; NodeExists means an earlier pass won
	}

Maintaining an ephemeral presence:

	err := zk.CreateOrSet(coordinator.ServerPresencePath(host), descriptor, true)

Merging an exit summary:

	err := zk.MergeUpdate(coordinator.TaskPath(instance), map[string]interface{}{
		"state": "finished",
		"when":  ts,
		"host":  host,
		"data":  "0.0",
	})

# Watch Semantics

Watches are one-shot, exactly as the underlying client delivers them:

  - WatchExists fires on create, delete, and data change of the node
  - WatchChildren fires on membership change under the node
  - After one event the channel is done; the caller loops and re-arms
  - A watch armed on one connection dies silently with that connection;
    the re-arm loop picks up on the fresh one

The event daemon leans on the exists-watch firing for data changes: the
registrar refreshes the presence payload every tick, so each refresh wakes
the placement mirror for a sync pass without a separate channel.

# Error Handling

Errors wrap the client's sentinels so callers use predicates, not types:

  - IsNoNode: missing-node reads; log at info and let the next pass fix it
  - IsNodeExists: idempotent-write collision; another pass did the work
  - IsConnectionLoss: transport/session trouble; pause and retry on
    reconnect — the watchdog handles the wider stop/start

Everything else (malformed YAML, bad paths) is a programming or data error;
it is wrapped with the failing path like every other error, and none of
the predicates match it.

# Integration Points

This package integrates with:

  - pkg/registrar: server record, presence node, blackout gate
  - pkg/eventdaemon: presence watch, placement children, scheduled payloads
  - pkg/publisher: task history creation, unscheduling, exit summaries
  - pkg/cleaner: placement record deletion
  - pkg/watchdog: session state polling, presence withdrawal, Reconnect

# Operation Semantics

The write operations differ in how they treat existing state, and each
maps to one caller's need:

	Create           fails on existing node — the primitive the others
	                 build on
	CreateOrSet      existing node gets the new payload; the registrar's
	                 level-triggered refresh (both its nodes, every tick)
	CreateRecursive  missing parents are created persistent, an existing
	                 LEAF still errors NodeExists — the publisher's
	                 exactly-once probe
	Delete           fails on missing node
	EnsureDeleted    missing node is success — every teardown path
	                 (unschedule, placement erase, presence withdrawal)
	MergeUpdate      read-modify-write of a YAML mapping — the terminal
	                 exit summary

Ephemerality is per-create: CreateOrSet's ephemeral flag applies when it
creates; a Set on an existing node cannot change the node's mode, which
is why the registrar's presence node is created ephemeral from the
first tick.

# Event Translation

Watch events cross the package boundary as the wrapper's own Event type
so components never import the client library:

	client event              wrapper Event.Type
	──────────────────────────────────────────────
	NodeCreated               EventCreated
	NodeDeleted               EventDeleted
	NodeDataChanged           EventDataChanged
	NodeChildrenChanged       EventChildrenChanged
	(session/other)           EventSession

Each translate goroutine forwards exactly one event and closes its
channel — the one-shot contract made concrete. A channel that closes
without delivering means the connection died; the re-arm loop's next
WatchExists reports the real state.

# Thread Safety

  - All operations are safe for concurrent use; the connection handle is
    guarded and the session state is atomic
  - Reconnect swaps the connection under a write lock; in-flight calls on
    the old connection fail with connection-loss errors and are retried by
    their component loops
  - Watch channels are owned by a single receiving component each

# Performance Considerations

  - Session timeout is 10s; ephemeral cleanup after a crash takes at most
    that long
  - CreateRecursive only walks parents after a NoNode failure, so the
    common case is one round trip
  - MergeUpdate is read-modify-write without a version check; last writer
    wins, which is acceptable for the single-writer exit summary

# Reconnect Semantics

The underlying client distinguishes two failure depths, and the wrapper
preserves the distinction:

	transport drop (SUSPENDED)
	  - the client redials and resumes the SAME session on its own
	  - ephemeral nodes survive if the session is re-established within
	    the 10s timeout
	  - no wrapper action needed; Reconnect() is a no-op here

	session expiry (LOST)
	  - the server has discarded the session; every ephemeral node is
	    gone and the old connection can never recover
	  - only Reconnect() leaves this state: it closes the dead
	    connection and dials a fresh one, entering SUSPENDED until the
	    new session establishes

Watches do not survive either transition's connection swap; every
watching component runs a re-arm loop, so a dead watch costs one delay
cycle, never a hang.

# Payload Conventions

All node payloads in the scheduler's namespace are YAML or plain text:

	/servers/<host>            descriptor text (not YAML-parsed here)
	/server.presence/<host>    same descriptor text
	/scheduled/<instance>      YAML manifest → GetYAML into a Manifest
	/placement/<host>/<i>      YAML mapping → merged into the manifest
	/tasks/.../<event>         opaque event payload, forwarded bytes
	/tasks/<app>/<task>        YAML mapping, MergeUpdate'd exit summary

GetYAML on an empty payload is a successful no-op decode; absent nodes
are NoNode errors, never empty values.

# Best Practices

Do:
  - Build every path through paths.go; a hand-spelled path is a typo
    waiting for production
  - Check errors with the predicates, not string matching or type
    assertions on the client's internals
  - Re-arm watches in a loop with a delay on arm failure

Don't:
  - Hold results of Exists across a pass boundary; the answer is stale
    the moment it returns — act, then handle the collision predicates
  - Call Reconnect on SUSPENDED; the client's own retry is already
    doing the right thing and a fresh dial would discard a recoverable
    session

# Troubleshooting

Presence node missing while the agent runs:
  - Check State(); SUSPENDED or LOST means the session dropped and the
    registrar will recreate the node after reconnect
  - Check /blackedout.servers/<host>; the gate suppresses presence

Events not publishing:
  - IsConnectionLoss errors in the publisher log mean the queue is held
    locally; files drain after reconnect, nothing is lost

Watch never fires:
  - Watches are one-shot; a missing re-arm loop is the usual cause

Ephemeral node outliving a dead agent:
  - Expected for up to the 10s session timeout after a crash; the
    server reaps it when the session times out

# See Also

  - pkg/registrar for presence maintenance
  - pkg/eventdaemon for the placement mirror driven by these watches
  - pkg/publisher for task history writes
*/
package coordinator
