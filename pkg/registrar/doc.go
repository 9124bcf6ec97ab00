/*
Package registrar advertises the host to the scheduler: a persistent server
record plus an ephemeral presence node, refreshed with current spare
capacity while the node is available and withdrawn while it is not.

The availability signal is the screen state, and it is deliberately
inverted: Lock means the user is away, so a locked screen makes the node
available for workloads. The predicate is named (appenv.NodeAvailable) so
the inversion lives in exactly one place.

# Architecture

	┌──────────────────── REGISTRAR ─────────────────────┐
	│                                                     │
	│   every 2s tick                                     │
	│  ┌──────────────────────────────────────┐          │
	│  │ node available? ──no──▶ withdraw      │          │
	│  │      │ yes              presence      │          │
	│  │ session CONNECTED? ──no──▶ skip tick  │          │
	│  │      │ yes                            │          │
	│  │ blacked out? ──yes──▶ skip tick       │          │
	│  │      │ no                             │          │
	│  │ read /servers/node template ──err──▶ exit loop  │
	│  │      │                                │          │
	│  │ sample cpu/mem/disk (gopsutil)        │          │
	│  │      │                                │          │
	│  │ render descriptor                     │          │
	│  │      │                                │          │
	│  │ CreateOrSet /servers/<host>           │          │
	│  │ CreateOrSet /server.presence/<host>   │ (ephemeral)
	│  └──────────────────────────────────────┘          │
	└─────────────────────────────────────────────────────┘

The presence refresh doubles as the placement mirror's heartbeat: every
CreateOrSet of the presence payload fires the event daemon's exists-watch,
driving a sync pass without any channel between the two components.

# Descriptor Rendering

The host descriptor derives from a template at /servers/node:

 1. The first '~' in the template becomes the node label ("windows")
 2. Current resource lines are prepended:

	cpu: 80%
	disk: 10240M
	label: windows
	memory: 2048M

 3. Everything before the template's "parent" key is replaced by those
    lines; a template with no parent key keeps its remaining lines, minus
    any label entry the resource block already states

Worked example, template "label: ~\nparent: /cell/a\n" with 80% cpu free,
2048MB memory, 10240MB disk:

	cpu: 80%
	disk: 10240M
	label: windows
	memory: 2048M
	parent: /cell/a

# The Availability Inversion

The gate reads counter-intuitively and deserves spelling out once:

	screen Locked   → user is away   → node AVAILABLE  → advertise
	screen Unlocked → user is active → node unavailable → withdraw

A desktop fleet donates compute only while its owners are elsewhere.
The inversion lives in appenv.NodeAvailable; this component just calls
the named predicate, so no other code ever reasons about lock states.

While unavailable, the registrar withdraws only the ephemeral presence.
The persistent /servers/<host> record stays — the scheduler keeps
knowing the host exists and what it last looked like, it simply cannot
place onto it until presence returns.

# Two Records, One Payload

Both coordinator nodes carry the same rendered descriptor, with
different lifetimes:

	/servers/<host>           persistent; survives sessions; the
	                          scheduler's durable catalog entry
	/server.presence/<host>   ephemeral; exactly as alive as the
	                          session; the placement eligibility signal

Writing both every tick keeps the resource lines fresh (capacity moves
with the desktop's own load) and makes the presence payload a free
heartbeat for the placement mirror's watch.

# Usage

	r := registrar.New(env, zk)
	if err := r.Start(); err != nil {
		return err
	}
	defer r.Stop(watchdog.DefaultStopBudget)

	// The watchdog drives Start/Stop in production; direct use is for
	// tests, which also substitute the resource sampler:
	r.sample = func(time.Duration) (resources.Sample, error) {
		return resources.Sample{CPUFreePercent: 80}, nil
	}

# Failure Modes

Template read failure:
  - Fatal for the loop: the run goroutine exits and the component reports
    STOPPED, which the watchdog treats as an unexpected death — all
    children stop, presence is withdrawn, and the set restarts. Without a
    template there is nothing correct to advertise.

Create/Set failure:
  - Logged and retried on the next tick; a transient coordinator error
    must not kill the loop

Sampler failure:
  - Logged and the tick skipped; stale capacity is worse than none

Blackout:
  - /blackedout.servers/<host> present suppresses the whole pass; the
    host stays invisible to placement until the gate clears

Session recovery:
  - Ephemeral nodes vanish with the session. The loop re-runs CreateOrSet
    every tick, so presence reappears on the first tick after reconnect
    with no special-case code

# Reconcile Pass Anatomy

One tick, with every early exit labelled:

	1. NodeAvailable?         no → EnsureDeleted(presence), done
	2. State() CONNECTED?     no → done (silent; the watchdog will act)
	3. blackout node exists?  yes → done (logged at info)
	   check errored?         → logged warn, done (retry next tick)
	4. Get(/servers/node)     error → RETURN error (fatal: loop exits)
	5. sample resources       error → logged warn, done
	6. render descriptor
	7. CreateOrSet(/servers/<host>)          error → warn, done
	8. CreateOrSet(presence, ephemeral)      error → warn, done

Only step 4 can kill the loop. Steps 1-3 and 5-8 all resolve to "try
again in two seconds", because each failure leaves the coordinator in a
state the next pass fully repairs. The template read is different: it is
the input everything else derives from, and its absence means the cell
is misconfigured — a condition ticking cannot fix and the watchdog
should surface by cycling the set.

# Integration Points

This package integrates with:

  - pkg/coordinator: server/presence/blackout paths, session state
  - pkg/resources: gopsutil sampling for the resource lines
  - pkg/appenv: node availability gate
  - pkg/eventdaemon: its presence refresh drives the mirror's watch
  - pkg/watchdog: supervised as a Child

# Session Recovery Walkthrough

A session expiry and reconnect, tick by tick:

	t+0s   session LOST; the coordinator drops /server.presence/<host>
	       server-side on its own
	t+2s   watchdog tick: not CONNECTED → children (this one included)
	       stop; Reconnect() dials fresh
	t+4s   session CONNECTED again; watchdog starts the children
	t+6s   registrar tick: template read, resources sampled, CreateOrSet
	       recreates /servers/<host> and the ephemeral presence
	t+6s   the presence creation fires the event daemon's watch; the
	       placement mirror resynchronizes

No state is carried across the gap: the loop's idempotent CreateOrSet
makes recovery indistinguishable from a routine refresh.

# Template Edge Cases

	template                     rendered descriptor
	──────────────────────────────────────────────────────────────
	"label: ~\nparent: /c\n"     resource block + "parent: /c\n"
	"label: ~\n"                 resource block only (stale label
	                             line dropped; the block has one)
	"label: ~\nos: win10\n"      resource block + "os: win10\n"
	"a: ~\nb: ~\nparent: x\n"    only the FIRST '~' is substituted
	(unreadable)                 loop exits; watchdog restarts the set

# Monitoring

	burrow_child_running{child="registrar"}   1 while supervised up
	burrow_node_available                     the gate this component
	                                          acts on

The presence node itself is the strongest signal: its absence while the
node is available and connected means this loop is failing — read
registrar.log for which step.

# Troubleshooting

Presence flapping:
  - Check screen_state.txt stability; every Lock/Unlock transition
    withdraws or restores presence by design
  - Check session state transitions in the coordinator log; SUSPENDED
    ticks skip silently

Registrar repeatedly restarting:
  - Almost always the descriptor template: /servers/node missing or
    unreadable is the loop's one fatal error, and the watchdog cycles
    the whole set around it until the template is restored

Resource lines frozen:
  - The sampler failure path skips the tick and keeps the last written
    descriptor; check the log for "Failed to sample resources"

# Resource Lines

The three measurements and their units, fixed by the scheduler's
descriptor format:

	cpu: 80%       percent of cpu FREE over a one-second window
	               (100 minus the busy percentage, truncated)
	disk: 10240M   megabytes free on the root filesystem
	memory: 2048M  megabytes of available physical memory

"Available" memory is the reclaimable figure, not free pages — the
number that answers "how much could a workload actually get". The
scheduler reads these as capacity hints, not reservations; they refresh
every tick, so a desktop under interactive load advertises honestly
shrinking numbers until the availability gate withdraws it entirely.

# Design Patterns

Level-Triggered Presence:

	Every tick asserts the desired end state (records exist, payload
	fresh) rather than reacting to transitions. Session recovery,
	blackout clearing, and first start are all the same code path.

Named Gate Predicate:

	The Lock-means-available inversion is encapsulated behind
	appenv.NodeAvailable; the registrar's loop reads as policy-free
	plumbing.

One Fatal Input:

	Exactly one failure (the template) exits the loop; everything else
	retries. Components that can distinguish "misconfigured" from
	"transient" should, and the distinction is the watchdog's signal.

# Thread Safety

Status transitions are mutex-guarded; the run loop owns every other field.
Start and Stop are safe to call from the watchdog's goroutine at any time.
The sampler hook is replaced only in tests, before Start.

# Performance Considerations

  - The cpu sample blocks its tick for the one-second measurement
    window; the 2s tick spacing absorbs it
  - Two CreateOrSet round trips per tick while available; the payload is
    a few hundred bytes of descriptor text

# See Also

  - pkg/eventdaemon for what the presence node gates downstream
  - pkg/watchdog for supervision and the stop budget
  - pkg/resources for the sample fields and units
*/
package registrar
