/*
Package runtime wraps the Docker Engine API behind the narrow
ContainerRuntime contract the pipeline needs: create, start, kill, remove,
and listing filtered by exited status or exit code.

Image distribution, networking, and volumes are the runtime's own concern;
the agent hands it an image reference and a command and reads back exit
codes. Components depend on the ContainerRuntime interface, never on the
Docker client directly, so tests substitute fakes and the runtime could be
swapped without touching the pipeline.

# Architecture

	┌──────────────── CONTAINER RUNTIME ────────────────┐
	│                                                    │
	│  ┌──────────────────────────────────────┐         │
	│  │        ContainerRuntime (interface)  │         │
	│  │  Create / Start / Kill / Remove      │         │
	│  │  Exists / Exited / ExitedWithCode    │         │
	│  └──────────────────┬───────────────────┘         │
	│                     │                              │
	│  ┌──────────────────▼───────────────────┐         │
	│  │          DockerRuntime               │         │
	│  │  - client.FromEnv + API negotiation  │         │
	│  │  - Ping() at construction            │         │
	│  │  - filters: status=exited, exited=N  │         │
	│  │  - not-found tolerated on kill/remove│         │
	│  └──────────────────┬───────────────────┘         │
	│                     │                              │
	│  ┌──────────────────▼───────────────────┐         │
	│  │          Docker Engine               │         │
	│  │  - local image lookup on create      │         │
	│  │  - container lifecycle               │         │
	│  │  - exit code bookkeeping             │         │
	│  └──────────────────────────────────────┘         │
	└────────────────────────────────────────────────────┘

# Core Components

ContainerRuntime:
  - The full contract; DockerRuntime implements it, component packages
    re-declare just the slice they consume (Create/Start/Exists for the
    config manager, Exited/ExitedWithCode for the state monitor, Kill for
    the event daemon, Remove for the cleaner)

DockerRuntime:
  - Built from the environment (DOCKER_HOST and friends) with API version
    negotiation, the same way the rest of the fleet's tooling dials the
    daemon
  - Ping at construction: an unreachable daemon fails fast at agent start
    instead of on the first instance

# Usage

Creating the runtime:

	rt, err := runtime.NewDockerRuntime(ctx)
	if err != nil {
		return err // daemon unreachable is fatal at startup
	}
	defer rt.Close()

Creating and starting a container:

	id, err := rt.Create(ctx, manifest.ImageRef(), service.Command)
	if err != nil {
		return err // abandon; no marker, the next pass retries
	}
	if err := rt.Start(ctx, id); err != nil {
		return err
	}

Listing exits for classification:

	exited, err := rt.Exited(ctx)            // all status=exited
	finished, err := rt.ExitedWithCode(ctx, 0)
	killed, err := rt.ExitedWithCode(ctx, 137)
	// remaining codes 1..255 queried individually for the aborted map

Removing a retired container:

	if err := rt.Remove(ctx, marker.ContainerID); err != nil {
		return err // cleanup marker stays; retried next tick
	}

# Exit Code Queries

The state monitor's classification rides directly on the engine's list
filters:

	status=exited   → the container stopped, code unknown yet
	exited=0        → finished bucket
	exited=137      → killed bucket (SIGKILL)
	exited=N        → aborted bucket, reason N, for N in 1..255 minus 137

Ids are returned raw; mapping ids back to instances is the caller's job
via its run markers. The command string passed to Create is split on
whitespace into the container's Cmd, mirroring how the scheduler records
service commands.

# Error Handling

  - Create/Start errors surface to the caller; the config manager abandons
    the attempt and leaves no running marker
  - Kill tolerates not-found and not-running: evicting an instance whose
    container already died must not fail the sync pass
  - Remove tolerates not-found: cleanup is at-least-once, and the second
    attempt after a half-finished pass must succeed
  - Exists maps not-found to (false, nil) so probes are never errors

The asymmetry is deliberate: construction errors (Create/Start) are
always real and always abort the caller's pass, while destruction errors
(Kill/Remove) are filtered through "was the goal already achieved?"
before surfacing. Every caller of the teardown methods is an
at-least-once loop, and a not-found on retry is its success signal.

# Interface Slices

Component packages re-declare only the methods they call, and the
concrete DockerRuntime satisfies each by subset:

	pkg/cfgmgr       Create, Start, Exists
	pkg/statemon     Exited, ExitedWithCode
	pkg/eventdaemon  Kill
	pkg/cleaner      Remove

This keeps test fakes to a handful of lines per package and makes each
component's runtime footprint visible in its interface — the state
monitor provably cannot create containers, the cleaner provably cannot
start them.

# Command Splitting

Create turns the manifest's command string into the container's Cmd by
whitespace splitting:

	"run.sh --port 8080"  →  ["run.sh", "--port", "8080"]

There is no shell involved and no quoting: a command needing shell
semantics must name a shell explicitly ("sh -c ..." arrives as three
fields, which is what the engine expects). This matches how the
scheduler records service commands.

# Client Construction

NewDockerRuntime builds the client the standard way:

	client.FromEnv                    honors DOCKER_HOST,
	                                  DOCKER_API_VERSION,
	                                  DOCKER_CERT_PATH, DOCKER_TLS_VERIFY
	client.WithAPIVersionNegotiation  pins the API version to what the
	                                  daemon actually speaks, so one
	                                  agent binary spans daemon versions

The Ping check at construction is the agent's only startup-time
dependency probe: a node whose daemon is down fails `burrow agent`
immediately with the transport error, rather than coming up as a host
that accepts placements and abandons every configure.

# Integration Points

This package integrates with:

  - pkg/cfgmgr: Create/Start/Exists during configure
  - pkg/statemon: Exited/ExitedWithCode during classification
  - pkg/eventdaemon: Kill on placement withdrawal
  - pkg/cleaner: Remove during cleanup
  - cmd/burrow: constructs the one shared DockerRuntime

# Design Patterns

Accept Interfaces, Return Structs:

	NewDockerRuntime returns the concrete *DockerRuntime; consumers
	declare the slice they need. The full ContainerRuntime interface
	exists as documentation of the whole contract and for callers that
	genuinely need all of it.

Tolerant Teardown:

	Kill and Remove fold "already achieved" errors into success at the
	wrapper, not at every call site — the at-least-once loops upstream
	stay free of engine-specific error inspection.

No Hidden State:

	The wrapper caches nothing: no container table, no id map. The
	engine is the single source of container truth, and the pipeline's
	own truth lives in the run markers.

# Thread Safety

The Docker client is safe for concurrent use and the wrapper adds no
state, so one DockerRuntime serves every component simultaneously.

# Performance Considerations

  - The state monitor's aborted sweep issues one list call per exit code;
    each is a cheap filtered query, but the full pass is ~255 round trips
    on a local socket per tick — acceptable on a node's unix socket, worth
    knowing when pointing at a remote daemon
  - Create does not pull images: the engine's create call fails with a
    not-found error when the image is absent locally, and the configure
    attempt is abandoned like any other Create error

# Container Lifecycle Through the Pipeline

One container's life as the four components see it through this package:

	cfgmgr        Create(image, command)  → id
	              Start(id)               → running
	statemon      Exited()                → id appears once the
	              ExitedWithCode(code)      process ends
	eventdaemon   Kill(id)                → only on placement
	                                        withdrawal, best-effort
	cleaner       Remove(id)              → force removal, tolerant
	                                        of "already gone"

The runtime holds the exited container and its exit code until Remove;
that retention window is what lets the state monitor classify exits it
was not running to observe.

# Monitoring

There are no metrics in this package itself; its callers count:

	burrow_configure_failures_total           Create/Start refusals
	burrow_exits_classified_total{bucket}     the filter queries' yield
	burrow_cleanup_retries_total              Remove failures

A healthy daemon keeps all three in their normal regimes; correlated
bursts across them point at the daemon, not the pipeline.

# Best Practices

Do:
  - Depend on the narrowest interface slice a component needs; the
    concrete DockerRuntime satisfies all of them
  - Treat Create+Start as one abandonable unit; never retry Start on an
    id from a previous pass
  - Pass real contexts with timeouts; every method blocks on the daemon

Don't:
  - Cache list results across ticks; the filters are the truth and they
    are cheap
  - Interpret not-found as failure on the teardown paths; it means the
    work is already done

# Troubleshooting

Daemon not accessible at startup:
  - Check the docker daemon is running and DOCKER_HOST (if set) is right;
    the Ping failure message carries the transport error

Containers created but never classified:
  - The classification keys off run markers; a container with no marker
    (configure crashed before the rename) is invisible here and will be
    retried by the config manager instead

Exit codes missing from every filter:
  - A container removed out-of-band between the status query and the
    code queries vanishes mid-classification; the pass skips it and the
    instance resolves on a later tick or via cleanup

# See Also

  - pkg/cfgmgr for the configure protocol built on Create/Start
  - pkg/statemon for the classification built on the list filters
  - pkg/cleaner for removal
*/
package runtime
