/*
Package log provides structured logging for the agent using zerolog.

The package wraps zerolog with a global logger, component-scoped child
loggers, and an optional per-component file sink: when a log directory is
configured, each component writes to <logdir>/<component>.log in JSON as
well as to the console. One log file per pipeline stage is the operator's
primary window into a node — "failures are visible through the log files
under <root>/log/".

# Architecture

	┌──────────────────── LOGGING ─────────────────────────┐
	│                                                       │
	│  ┌────────────────────────────────────────┐          │
	│  │            Global Logger               │          │
	│  │  - zerolog instance, Init() once       │          │
	│  │  - level: debug/info/warn/error        │          │
	│  │  - JSON or console rendering           │          │
	│  └──────────────────┬─────────────────────┘          │
	│                     │                                 │
	│  ┌──────────────────▼─────────────────────┐          │
	│  │     WithComponent("statemon")          │          │
	│  │  - component field on every line       │          │
	│  │  - plus <logdir>/statemon.log sink     │          │
	│  │    when LogDir is configured           │          │
	│  └──────────────────┬─────────────────────┘          │
	│                     │                                 │
	│      console (human or JSON)  +  per-component file   │
	└───────────────────────────────────────────────────────┘

# Core Components

Config:
  - Level: threshold below which lines are dropped
  - JSONOutput: JSON lines vs human console rendering
  - Output: destination writer, defaulting to stdout
  - LogDir: directory for per-component files; empty disables the sink

Component Loggers:
  - WithComponent(name): child logger tagged component=name; with LogDir
    set it also appends JSON lines to <logdir>/<name>.log
  - WithInstance(logger, instance): adds the instance key to a component
    logger for per-instance tracing

Helpers:
  - Info/Debug/Warn/Error/Fatal: package-level one-liners for code with
    no component context (mainly cmd/burrow before wiring completes)

# Usage

Initializing at process start:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: false,
	})

Re-initializing once the work directory is known:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: logJSON,
		LogDir:     env.Log(),
	})

Component logging:

	logger := log.WithComponent("cfgmgr")
	logger.Info().Str("instance", instance).Msg("Configuring")
	logger.Warn().Err(err).Msg("Failed to create container")

Structured fields over formatting:

	logger.Info().
		Str("instance", instance).
		Str("container_id", containerID).
		Msg("Running")

# Initialization Order

Init is called twice in the agent binary: once from cobra's OnInitialize
with console output only (the work directory is not yet validated), and
again inside the agent command with LogDir set. Component loggers created
before Init are disabled no-ops (zerolog's nil-writer behavior), which is
what makes package construction in tests silent without any setup.

# Design Patterns

Component Field Everywhere:

	Every pipeline component names itself once via WithComponent; grep
	component=cleaner in the console stream or tail cleaner.log — same
	lines, two homes.

Fail-Open File Sink:

	If the component's log file cannot be opened the component logs a
	warning and continues console-only; logging must never stop a
	pipeline stage from starting.

Two-Phase Init:

	Console-only first (flags are known, the root is not), full sinks
	second (after env.Ensure creates log/). Components constructed
	between the phases still log; they just have no file yet.

# Reading a Node's Logs

The per-component files mirror the pipeline, so an instance's life reads
across them in order:

	eventdaemon.log   Created cache manifest        instance=appA#001
	cfgmgr.log        Configuring / Running         instance=appA#001
	statemon.log      Container finished            instance=appA#001
	publisher.log     Event published               instance=appA#001
	cleaner.log       Cleaned up                    instance=appA#001

Grepping one instance name across log/ reconstructs its full history
without the coordinator. The watchdog and registrar files narrate the
node-level story: eligibility flips, session drops, restarts.

# Log Directory Lifecycle

The log/ directory is part of the work tree: created by env.Ensure (and
the install command), removed wholesale by uninstall. Files append
across agent restarts and are never rotated by the agent itself —
rotation belongs to the host's logrotate against <root>/log/*.log with
copytruncate, since the agent keeps the files open.

# Field Conventions

The keys used across the pipeline, so queries compose:

	component      every line; the package's short name
	instance       the <app>#<task> key, on every per-instance line
	container_id   whenever a runtime id is known
	host           only in agent-level lines; components inherit the
	               node identity from their file
	error          via .Err(err), never formatted into the message
	dir, file,     context-specific, always via typed fields
	path, signal

Messages are short imperatives or past-tense facts ("Configuring",
"Cleaned up", "Failed to publish event, will retry"); the fields carry
the variables. A message never embeds a value that has a field key.

# Integration Points

This package integrates with:

  - every pkg/* component: WithComponent at construction
  - pkg/appenv: env.Log() supplies LogDir
  - cmd/burrow: Init wiring and the log-level/log-json flags

# Log Levels

Debug:
  - Per-tick detail: presence refreshes, skipped passes
  - Off in production; the 1-2s tick cadence makes it loud

Info:
  - The default. State transitions worth a line: manifest cached,
    container running, event published, instance cleaned up

Warn:
  - A pass failed and will retry: coordinator create failed, runtime
    create refused, marker unreadable. The pipeline is degraded but
    self-healing

Error:
  - A component cannot proceed: watcher creation failed, fatal template
    read, marker write failed after a started container

Fatal:
  - Unused inside components — a component's unrecoverable errors exit
    its loop and the watchdog handles the restart; Fatal would take the
    whole process

# Log Output Examples

Console format (development):

	10:30:00 INF Placement mirror started component=eventdaemon path=/server.presence/h1
	10:30:02 INF Created cache manifest component=eventdaemon instance=appA#001
	10:30:03 INF Configuring component=cfgmgr instance=appA#001
	10:30:05 INF Running component=cfgmgr instance=appA#001 container_id=c123
	10:31:12 WRN Failed to publish event, will retry component=publisher file=...

JSON format (production, and always in the file sink):

	{"level":"info","component":"statemon","instance":"appA#001","time":"...","message":"Container finished"}
	{"level":"warn","component":"cleaner","instance":"appA#001","error":"daemon busy","time":"...","message":"Cleanup failed, will retry"}

# Troubleshooting

No component log files:
  - LogDir is only set by the second Init inside the agent command; the
    install/uninstall commands intentionally log console-only
  - Check the log/ directory exists; env.Ensure() creates it before the
    re-init

Duplicate lines on the console:
  - Expected: a component logger writes each line to its file and
    through the console logger; the console shows one rendered copy

Silent component:
  - A logger built before Init is a no-op; in tests that is intended,
    in the binary it means initLogging did not run

# Best Practices

Do:
  - Tag every component logger once with WithComponent
  - Carry the instance key on per-instance lines (WithInstance or .Str)
  - Log retryable failures at Warn with the error attached
  - Let the file sink fail open; never make logging load-bearing

Don't:
  - Log payload or descriptor contents; names and ids are enough
  - Use Fatal inside a supervised component
  - Format fields into the message string; use typed fields

# File Sink Mechanics

WithComponent with a configured LogDir builds a two-headed logger:

	zerolog.MultiLevelWriter(console, file)
	  console: the global logger as an io.Writer — lines render through
	           whatever format Init chose (human console or JSON)
	  file:    <logdir>/<component>.log, opened append-only at
	           creation, JSON lines always

The file handle lives as long as the logger value, which lives as long
as its component; components are constructed once per process, so the
handle count is constant: one each for the agent, the coordinator
client, the watchdog, and the six pipeline components. A failed open degrades to console-
only with one warning — the sink is an observability convenience, never
a dependency.

# Thread Safety

zerolog loggers are safe for concurrent use; child loggers are values and
each component holds its own. Init is not synchronized — it runs during
single-threaded startup, before any component goroutine exists.

# Level Selection Guidance

Per environment:

	development        debug, console format — watch the ticks
	production         info, JSON to stdout, files under log/
	incident debug     debug temporarily via --log-level; remember the
	                   1s state-monitor tick makes debug loud fast

The level is global; there is no per-component level override, and the
per-component files receive the same filtered stream the console does.

# Performance Considerations

  - Disabled levels short-circuit before formatting
  - The file sink appends without buffering; per-component volume is a
    few lines per action, not per tick

# See Also

  - pkg/appenv for the log/ directory in the tree layout
  - cmd/burrow for flag plumbing
  - Zerolog documentation: https://github.com/rs/zerolog
*/
package log
