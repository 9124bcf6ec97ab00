/*
Package trace models instance lifecycle events as a closed sum type with a
filename codec, and posts them to the appevents/ queue.

An event file's name encodes every routable field — timestamp, instance,
type, data — and its body carries an opaque payload. The publisher can route
an event without opening it, and the coordinator's task history node name is
derived from the same encoding. The closed set of event types replaces the
runtime type registry older agents built with reflection.

# Architecture

	┌────────────────── TRACE EVENT FLOW ──────────────────┐
	│                                                       │
	│  config manager            state monitor              │
	│  ┌─────────────┐          ┌──────────────────┐        │
	│  │ Configured  │          │ ServiceExited    │        │
	│  │ ServiceRunning         │ Finished/Killed/ │        │
	│  └──────┬──────┘          │ Aborted          │        │
	│         │                 └────────┬─────────┘        │
	│         │      Post(dir, instance, │ event, payload)  │
	│         ▼                          ▼                  │
	│  ┌─────────────────────────────────────────┐          │
	│  │              appevents/                 │          │
	│  │  <ts>,<instance>,<type>,<data>          │          │
	│  │  (atomic rename; body = payload)        │          │
	│  └────────────────────┬────────────────────┘          │
	│                       │ ParseFilename                 │
	│                       ▼                               │
	│  ┌─────────────────────────────────────────┐          │
	│  │              publisher                  │          │
	│  │  /tasks/<app>/<task>/<ts>,<host>,...    │          │
	│  └─────────────────────────────────────────┘          │
	└───────────────────────────────────────────────────────┘

# Event Types

The closed set, with each type's event-data encoding:

	type             data encoding                          emitted by
	─────────────────────────────────────────────────────────────────────
	pending          (empty)                                scheduler
	scheduled        server name                            scheduler
	configured       container id                           config manager
	service_running  <container-id>.<service>               config manager
	service_exited   <container-id>.<service>.<rc>.<sig>    state monitor
	finished         <rc>.<sig>                             state monitor
	aborted          reason string                          state monitor
	killed           "oom" or empty                         state monitor
	deleted          (empty)                                scheduler

pending, scheduled, and deleted originate on the scheduler side; the agent
carries their codecs so every filename in the system round-trips through
one implementation.

# Filename Grammar

	<timestamp> "," <instance> "," <type> "," <data>

  - Commas are the only separators; data may contain anything but a comma
  - The timestamp is seconds since epoch with microsecond precision, kept
    as a string so parsing preserves the exact bytes
  - Lexicographic order of filenames is causal order per instance

Dots inside data are legal and common — container ids and service names
both carry them — so the decoders split positionally:

  - service_running: first dot ends the container id, the service keeps
    the rest (dots included)
  - service_exited: rc and signal are the last two dot-parts; the service
    keeps every interior dot
  - finished: split on the last dot, so an rc with stray dots fails
    loudly instead of mis-parsing

# Usage

Posting an event:

	err := trace.Post(env.AppEvents(), instance,
		trace.Configured{UniqueID: containerID}, nil)

	err = trace.Post(env.AppEvents(), instance, trace.ServiceExited{
		UniqueID: cid, Service: "web", RC: 137, Signal: 137,
	}, nil)

Parsing a queued file:

	f, err := trace.ParseFilename(name)
	if err != nil {
		// Malformed names are left in place for the operator.
		return
	}
	switch ev := f.Event.(type) {
	case trace.Finished:
		_ = ev.RC
	case trace.Aborted:
		_ = ev.Why
	}

Round-tripping:

	decoded, err := trace.FromData(ev.EventType(), ev.EventData())
	// decoded == ev for every event type and every legal field value

Terminal check:

	if trace.Terminal(f.Event.EventType()) {
		// finished, aborted, killed: unschedule the instance
	}

# Ordering Guarantees

Within one instance, event files sort by their timestamp prefix, and the
emitters respect causality:

  - service_exited is posted before its terminal finished/killed/aborted
  - the terminal event is posted before the cleanup marker appears
  - deleted, when the scheduler emits it, follows the terminal event

Across instances no order is promised or needed.

# Known Wire Quirk

ServiceExited carries Signal == RC on abnormal exits. The signal slot is
not a real signal number; existing consumers parse the position, so the
encoding is kept for wire compatibility and flagged on the type. New
consumers must not interpret it.

# Event-to-Filename Worked Examples

	Configured{UniqueID: "c123"} for appA#001 at t:
	  <t>,appA#001,configured,c123

	ServiceRunning{UniqueID: "c123", Service: "web.front"}:
	  <t>,appA#001,service_running,c123.web.front

	ServiceExited{UniqueID: "c123", Service: "web.front", RC: 2, Signal: 2}:
	  <t>,appA#001,service_exited,c123.web.front.2.2

	Killed{IsOOM: false}:
	  <t>,appA#001,killed,
	  (trailing comma: the data slot is present and empty)

	Aborted{Why: "2"}:
	  <t>,appA#001,aborted,2

Note the instance name's own '#' passes through untouched — only commas
structure the filename, which is why no field may contain one.

# Design Patterns

Closed Sum Type:

	Event is an interface with exactly nine implementations in this
	package. Decoding switches on the type name; an unknown name is an
	error, not an extension point. This replaces the original's
	name→class registry and reflection with compile-time exhaustiveness.

Filename As Envelope:

	Every field the publisher routes on lives in the name. The body is
	payload only, written as-is and forwarded as-is; nothing in the
	pipeline ever parses a body.

Atomic Post:

	Post writes through the same tempfile+rename protocol as every other
	boundary file, so the publisher never sees a half-written name.

# Timestamps

Post stamps each event with seconds since epoch to microsecond
precision, formatted %.6f and kept as a string end to end:

  - the fixed width makes lexicographic filename order equal numeric
    time order for any two events this code writes
  - parsing never converts the timestamp; the history node reuses the
    exact bytes, so a re-publish renders an identical node name
  - the timestamp rides into the terminal exit summary's "when" field
    verbatim

Clock skew between nodes only affects cross-host comparisons of history
nodes, which nothing in the system performs; within one instance all
events come from one host.

# Integration Points

This package integrates with:

  - pkg/cfgmgr: posts configured and service_running
  - pkg/statemon: posts service_exited and the terminal events
  - pkg/publisher: parses filenames and forwards to the task history
  - pkg/coordinator: TaskEventPath embeds the re-rendered event node name
  - pkg/metrics: Post counts per-type into EventsPosted

# Payload Conventions

The body of an event file is opaque to the pipeline, but the conventions
are worth stating:

  - agent-emitted events (configured, service_running, service_exited,
    finished, killed, aborted) post a nil payload: the filename carries
    everything, and the history node is created with an empty body
  - scheduler-emitted events may carry YAML payloads; the publisher
    forwards the bytes untouched
  - a payload is never required to parse, route, or publish an event

# Decoding Edge Cases

The positional decoders are exercised by the round-trip tests; the rules
they implement:

	service_running "c123.web.front"
	  uniqueid "c123", service "web.front"     first dot splits

	service_exited "c123.web.front.2.2"
	  uniqueid "c123", service "web.front",    last two parts are
	  rc 2, signal 2                           numeric by contract

	finished "0.0"                             last dot splits
	finished "1.2.3"                           error: rc "1.2" is not
	                                           an integer — refused
	                                           loudly, never guessed

	killed ""        IsOOM false
	killed "oom"     IsOOM true

	aborted "exit.code.42"                     reason strings keep
	                                           their dots verbatim

A decoder error anywhere makes ParseFilename fail, and the publisher
leaves the file for the operator rather than forwarding a misread event.

# Troubleshooting

Event file never leaves the queue:
  - ParseFilename is failing on it; the publisher logs "Malformed event
    filename" once per pass. The name was either written by something
    other than Post or mangled by hand

Duplicate events for one instance:
  - Expected after a state monitor replay; each carries its own
    timestamp and the task history keeps both. Consumers take the first
    terminal event per instance

Timestamps comparing wrong:
  - Compare as decimals, not strings, if mixing agents with different
    precision; within one agent the fixed %.6f format makes string
    order numeric order

# Best Practices

Do:
  - Construct events from the typed structs; never format a filename by
    hand
  - Route on EventType()/Terminal(), switch on the concrete type only
    when a field is needed
  - Keep payloads small and optional; the filename is the event

Don't:
  - Put a comma in any field that reaches EventData — the grammar has
    no escaping, by design
  - Interpret the signal slot of service_exited
  - Extend the event set without touching FromData; the closed switch
    is the registry

# Thread Safety

Events are immutable values. Post is safe for concurrent emitters; each
call writes its own uniquely-suffixed temp file before the rename.

# Performance Considerations

  - Encoding is string formatting; decoding is a SplitN and a few Atoi
  - One file per event is the designed durability trade: events survive
    crashes of every component, at the cost of a directory entry each

# See Also

  - pkg/publisher for the queue consumer
  - pkg/statemon for exit classification into these types
  - pkg/appenv for the atomic write protocol underneath Post
*/
package trace
