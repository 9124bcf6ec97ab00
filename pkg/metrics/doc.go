/*
Package metrics exposes Prometheus instrumentation for the agent pipeline.

The metrics answer the two operational questions the pipeline raises: is
work flowing (events posted and published, containers configured, exits
classified, cleanups completed), and is anything stuck (directory depths,
cleanup retries, child liveness). Everything registers at init and is
served by the standard promhttp handler.

# Architecture

	┌──────────────────── METRICS ─────────────────────────┐
	│                                                       │
	│  pipeline counters (incremented inline)               │
	│  ┌─────────────────────────────────────────────┐     │
	│  │ trace.Post      → EventsPosted{type}        │     │
	│  │ publisher       → EventsPublished{type}     │     │
	│  │ cfgmgr          → ContainersConfigured,     │     │
	│  │                   ConfigureFailures,        │     │
	│  │                   ContainerStartDuration    │     │
	│  │ statemon        → ExitsClassified{bucket}   │     │
	│  │ cleaner         → CleanupsTotal,            │     │
	│  │                   CleanupRetries            │     │
	│  │ eventdaemon     → PlacementSyncsTotal,      │     │
	│  │                   PlacementSyncDuration     │     │
	│  │ watchdog        → ChildRunning{child}       │     │
	│  └─────────────────────────────────────────────┘     │
	│                                                       │
	│  Collector (15s sampling loop)                        │
	│  ┌─────────────────────────────────────────────┐     │
	│  │ DirectoryEntries{dir} for cache/, running/, │     │
	│  │ appevents/, cleanup/                        │     │
	│  │ NodeAvailable from the screen gate          │     │
	│  └─────────────────────────────────────────────┘     │
	│                                                       │
	│  Handler() → promhttp on --metrics-addr               │
	└───────────────────────────────────────────────────────┘

# Metrics Reference

Throughput counters:
  - burrow_events_posted_total{type}: trace events written to appevents/
  - burrow_events_published_total{type}: events forwarded to the task
    history
  - burrow_containers_configured_total: successful configure passes
  - burrow_configure_failures_total: configure attempts abandoned on
    runtime errors
  - burrow_exits_classified_total{bucket}: finished / killed / aborted
  - burrow_cleanups_total: instances fully retired
  - burrow_placement_syncs_total: mirror passes completed

Latency histograms:
  - burrow_container_start_duration_seconds: manifest read to started
    container
  - burrow_placement_sync_duration_seconds: one mirror pass

Stuck-pipeline gauges:
  - burrow_directory_entries{dir}: live entries per work directory
  - burrow_cleanup_retries_total: entries that failed and were kept
  - burrow_child_running{child}: 1 while the watchdog considers the
    component up
  - burrow_node_available: the screen gate, 1 = available

# Usage

Timing an operation:

	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.PlacementSyncDuration)
		metrics.PlacementSyncsTotal.Inc()
	}()

Counting with labels:

	metrics.EventsPosted.WithLabelValues(string(ev.EventType())).Inc()
	metrics.ExitsClassified.WithLabelValues("killed").Inc()

Running the directory collector:

	collector := metrics.NewCollector(map[string]string{
		"cache":     env.Cache(),
		"running":   env.Running(),
		"appevents": env.AppEvents(),
		"cleanup":   env.Cleanup(),
	}, env.NodeAvailable)
	collector.Start()
	defer collector.Stop()

Serving:

	http.Handle("/metrics", metrics.Handler())
	go http.ListenAndServe(addr, nil)

# Reading the Pipeline

Each handoff stage has a depth gauge and a drain counter; a healthy
pipeline keeps every depth near zero while the counters advance:

	appevents depth growing, published flat  → coordinator path failing
	cleanup depth growing, retries climbing  → container removal wedged
	cache depth > running depth, configures  → runtime refusing starts
	flat

	child_running dropping to 0 while        → a component died and the
	node_available is 1                        watchdog is cycling the set

# Design Patterns

Inline Counters:

	Components increment at the site of the action they count, not
	through an abstraction layer; the metric is part of the operation's
	contract (trace.Post counts, the caller does not).

Sampled Gauges:

	Directory depths are sampled on a 15s loop rather than maintained
	incrementally — the directories are the truth, and sampling cannot
	drift from it.

Bounded Cardinality:

	Label values are closed sets: nine event types, three exit buckets,
	six children, four directories. Instance names never become labels;
	per-instance observability lives in the logs, where cardinality is
	free.

# Metric Pairings

The metrics are designed to be read in pairs, flow against its buffer:

	posted{type} vs published{type}      appevents/ is the buffer;
	                                     depth gauge shows the gap live
	syncs_total vs directory cache       the mirror's output at rest
	configured vs directory running      configure commits made visible
	exits{bucket} vs directory cleanup   classification feeding the
	                                     cleanup queue
	cleanups vs cleanup retries          drain rate against friction

Each pair's divergence names the failing component without reading a
single log line; the log then names the reason.

# Histogram Buckets

Both histograms use the Prometheus defaults (5ms..10s). Placement syncs
sit in the low buckets unless the coordinator is slow; container starts
track the runtime's create and start latency (the agent does not pull
images, so a start never includes a download).

# Timer

The Timer helper standardizes histogram observation:

	timer := metrics.NewTimer()
	// ... the measured work ...
	timer.ObserveDuration(metrics.ContainerStartDuration)

	elapsed := timer.Duration() // for logging alongside

It is a start-time capture, nothing more. The sync path observes in a
defer, so early returns are measured too; the configure path observes
only at the end of a successful configure, so abandoned attempts are not
measured.

# Integration Points

This package integrates with:

  - pkg/trace, pkg/cfgmgr, pkg/statemon, pkg/publisher, pkg/cleaner,
    pkg/eventdaemon, pkg/watchdog: inline instrumentation
  - pkg/appenv: the directories and availability gate the Collector
    samples
  - cmd/burrow: wires the Collector and the HTTP handler

# Collector Semantics

The Collector samples immediately on Start, then every 15 seconds:

  - each configured directory is read and its non-dot entries counted;
    an unreadable directory keeps its previous gauge value rather than
    reporting a false zero
  - the availability predicate is evaluated on the same cadence, so
    burrow_node_available lags screen transitions by up to one period
  - sampling continues while the pipeline is held down — queue depths
    during an outage are precisely the interesting values

# Thread Safety

All metric vars are prometheus types, safe for concurrent use. The
Collector runs one goroutine; Start and Stop are not idempotent and are
called once by cmd/burrow.

# Alerting Examples

Queue stuck:

	burrow_directory_entries{dir="appevents"} > 100
	  for: 5m
	  meaning: the publisher cannot reach the coordinator; events are
	  buffered on disk and will drain, but placement history is stale

Cleanup wedged:

	increase(burrow_cleanup_retries_total[10m]) > 50
	  meaning: the same entries are failing every 2s tick; check the
	  runtime daemon and the cleaner log

Pipeline down while eligible:

	burrow_node_available == 1 and burrow_child_running == 0
	  for: 2m
	  meaning: the watchdog is cycling the set; one child keeps dying —
	  the registrar's template read is the usual suspect

Configure failure burst:

	increase(burrow_configure_failures_total[5m]) > 10
	  meaning: the runtime refuses creates or starts; image availability
	  or daemon health

# Troubleshooting

Metrics endpoint empty:
  - The listener only starts when --metrics-addr is set on the agent
    command

Directory gauges frozen:
  - The Collector samples every 15s; frozen values with a live process
    mean its goroutine died with the agent shutting down, or the
    directories were removed underneath it (uninstall while running)

Counters reset:
  - Process restart; all state here is in-memory by design — the
    directories, not the metrics, are the durable truth

# Best Practices

Do:
  - Alert on depths and retries (the stuck signals), graph the
    counters (the flow signals)
  - Compare posted vs published per type; the gap is the queue
  - Keep new metrics in this package's var block so registration stays
    in one init

Don't:
  - Derive correctness from metrics; the work directories are
    authoritative and the gauges are 15s-stale samples of them
  - Add per-instance label cardinality; instances are unbounded

# Naming Conventions

Every series carries the burrow_ prefix; suffixes follow the Prometheus
conventions the registry lints for:

	_total       monotonic counters (events, cleanups, retries, syncs)
	_seconds     histograms of durations
	(bare)       gauges of current state (directory_entries,
	             child_running, node_available)

Label names are singular nouns (type, bucket, child, dir) with closed
value sets documented in the reference above.

# Performance Considerations

  - Counter increments are atomic adds; nothing here is on a hot path
    hotter than a file write anyway
  - The Collector's 15s readdir of four small directories is negligible

# See Also

  - cmd/burrow for the --metrics-addr flag
  - pkg/appenv for what the directory depths mean
  - pkg/watchdog for the child gauge semantics
*/
package metrics
