/*
Package appenv holds the node environment: the work directory tree the
pipeline components hand state through, the node-availability predicate, and
the atomic write every boundary-crossing file uses.

The four core directories are the only shared state between components. A
file's directory says which component owns it right now; moving a name from
one directory to the next is how responsibility transfers. That contract —
atomic rename, no partial reads, dot-prefixed names invisible — lives here.

# Architecture

The work directory tree, rooted at the workDirectory environment variable:

	<root>/
	  cache/       mirror of assignments; one manifest per instance
	  running/     presence asserts the container was started
	  cleanup/     queue of containers needing removal
	  appevents/   outbound trace event queue
	  log/         per-component log files
	  screen_state.txt         "Lock" | "Unlock"
	  installed_version.txt    version recorded at install time

Write direction through the tree is strict; each directory has a single
writing stage, except appevents/, which the config manager and the state
monitor both post to:

	┌──────────────┐  writes   ┌───────────┐  reads   ┌──────────────┐
	│ event daemon ├──────────▶│  cache/   │◀─────────┤ config mgr   │
	└──────────────┘           └───────────┘          └──────┬───────┘
	                                                          │ writes
	┌──────────────┐  reads    ┌───────────┐                  ▼
	│ state monitor│◀──────────┤ running/  │◀─────────────────┘
	└──────┬───────┘           └───────────┘
	       │ writes            ┌───────────┐  reads   ┌──────────────┐
	       ├──────────────────▶│ cleanup/  │◀─────────┤   cleaner    │
	       │                   └───────────┘          └──────────────┘
	       │ writes            ┌───────────┐  reads   ┌──────────────┐
	       └──────────────────▶│ appevents/│◀─────────┤  publisher   │
	  (and config mgr)         └───────────┘          └──────────────┘

# Core Components

Env:
  - Root, Hostname, ZooKeeper: the process-wide configuration record
  - Built once by Load() from workDirectory and zookeeper env vars
  - Passed by value into every component; there is no other global state
  - Cache()/Running()/AppEvents()/Cleanup()/Log() path accessors
  - Ensure() creates the whole tree

Atomic Writes:
  - WriteAtomic(dir, name, data): dot-prefixed temp file + rename
  - Readers never observe partial content; the final name appears whole

Directory Listing:
  - ListInstances(dir): sorted entries, dot-prefixed names skipped
  - Dot files are never instances — temp files and sentinels hide here

Sentinels and Gates:
  - SeenFile (.seen): placement mirror has completed at least one sync
  - MarkSeen/ClearSeen/Seen: pure presence, content never consulted
  - NodeAvailable(): screen_state.txt == "Lock"
  - InstalledVersion/WriteInstalledVersion: install compatibility check

# Usage

Building the environment at process start:

	env, err := appenv.Load()
	if err != nil {
		return err // workDirectory or zookeeper missing is fatal
	}
	if err := env.Ensure(); err != nil {
		return err
	}

	// Components receive env by value.
	daemon := eventdaemon.New(env, zk, rt)

Writing a file another component will read:

	data, err := manifest.Encode()
	if err != nil {
		return err
	}
	if err := appenv.WriteAtomic(env.Cache(), instance, data); err != nil {
		return err
	}
	// The file is now visible under its final name, complete.

Listing a work directory:

	instances, err := appenv.ListInstances(env.Cache())
	// [".seen", ".tmp-..."] never appear; order is sorted and stable

Checking node availability:

	if !env.NodeAvailable() {
		// The user is at the machine; hold workloads down.
		return nil
	}

# Atomic Write Protocol

Every file that crosses a component boundary is created the same way:

	1. Write .<name>-<uuid> in the TARGET directory (same filesystem)
	2. rename(2) the temp file to <name>

	dir/
	  .appA#001-550e8400...   ← invisible to ListInstances
	  appA#001                ← appears complete, or not at all

The temp file is dot-prefixed so a reader scanning between steps 1 and 2
skips it, and the rename is same-directory so it cannot cross a filesystem
boundary and degrade into a copy. On rename failure the temp file is
removed; a crash between the steps leaves only an ignorable dot file.

# Node Availability

Lock means available. The screen-state file models "the user is away, the
machine may run workloads":

	screen_state.txt == "Lock"    → NodeAvailable() == true
	screen_state.txt == "Unlock"  → false
	file missing/unreadable       → false (fail closed)

The file is maintained by an external screen-state monitor; this package
only reads it. Callers should treat the predicate as advisory and re-check
every pass — it can flip at any time.

# Validation

Load fails when:
  - workDirectory is unset
  - zookeeper is unset
  - the hostname cannot be resolved

These are fatal configuration errors: the process terminates rather than
limping on with a guessed root, and the service manager restarts it once
the environment is corrected.

# Design Patterns

Configuration Record:

	One Env value built at startup replaces every module-level hostname or
	environment lookup. Components cannot disagree about the root.

Sentinel Files:

	.seen is pure presence. MarkSeen on an existing file is a no-op, never
	a rewrite, so the sentinel carries no content to go stale.

Fail-Closed Gates:

	NodeAvailable and Seen both answer false on any read error; the
	pipeline prefers doing nothing over acting on a misread gate.

Directory As Queue:

	Each stage's input directory is its work queue: readdir is dequeue-
	peek, processing is idempotent, and the owning component's deletion
	is the ack. Crash recovery is a free side effect — the queue IS the
	durable state.

Rename As Commit:

	The rename in WriteAtomic is the only commit primitive in the whole
	pipeline. Everything that must be crash-consistent — manifests,
	markers, events — funnels through it, so there is exactly one place
	where the guarantee is implemented.

# Integration Points

This package integrates with:

  - pkg/eventdaemon: writes cache/, maintains .seen
  - pkg/cfgmgr: reads cache/, writes running/, watches for .seen
  - pkg/statemon: reads running/, writes cleanup/ and appevents/
  - pkg/cleaner: reads cleanup/, erases all three markers
  - pkg/publisher: drains appevents/
  - pkg/trace: posts event files via WriteAtomic
  - pkg/watchdog: gates supervision on NodeAvailable
  - cmd/burrow: install/uninstall manage the tree and version file

# Validation

Names and paths are validated by construction rather than inspection:

  - instance names arrive as coordinator children or directory entries,
    both already legal filenames
  - WriteAtomic derives its temp name from the final name plus a uuid,
    so a legal final name implies a legal temp name
  - the one rejected shape is the empty root: Load refuses to guess

# Thread Safety

  - Env is an immutable value after Load; copying it is free and safe
  - WriteAtomic is safe for concurrent writers of different names; two
    writers of the same name race benignly (last rename wins, each rename
    atomic)
  - ListInstances takes no locks; it reflects one readdir snapshot

# Performance Considerations

  - Directory scans are O(entries) and the directories stay small (one
    file per live instance)
  - WriteAtomic costs one temp write plus one rename; both are cheap next
    to the coordinator and runtime calls around them
  - uuid suffixes keep concurrent temp files from colliding without
    coordination

# Ownership Rules

Each artefact has exactly one creator and one eraser; no two components
ever delete the same file:

	artefact              created by       deleted by
	───────────────────────────────────────────────────────────
	cache/<i>             event daemon     event daemon (evict)
	                                       or cleaner (retire)
	running/<i>           config manager   cleaner
	cleanup/<i>           state monitor    cleaner
	appevents/<file>      cfgmgr/statemon  publisher
	.seen                 event daemon     event daemon
	screen_state.txt      external pump    uninstall
	installed_version.txt install          uninstall

The one shared deletion (cache by daemon-or-cleaner) is safe because
eviction and retirement are mutually exclusive for an instance: the
placement is either withdrawn before the exit (eviction kills, cleanup
follows the exit) or after it (cleanup got there first and the evict's
RemoveIfPresent finds nothing).

# Best Practices

Do:
  - Route every cross-component file through WriteAtomic; a direct
    os.WriteFile is a partial-read bug by construction
  - List with ListInstances; raw ReadDir sees temp files and sentinels
  - Re-check NodeAvailable every pass rather than caching it

Don't:
  - Store anything but the defined artefacts in the four core
    directories; every non-dot name is treated as an instance
  - Give .seen content or meaning beyond presence
  - Share an Env by pointer; it is a value on purpose

# Troubleshooting

Stale .seen after a presence flap:
  - Symptom: cache trusted while the mirror is behind
  - Check: event daemon logs for "Presence node deleted"
  - The daemon clears .seen on absence; a missing clear means it is down

Orphaned dot files:
  - Symptom: .name-uuid entries accumulating in a work directory
  - Cause: crashes between temp write and rename
  - Safe to delete; they are invisible to every reader

Node never available:
  - Check screen_state.txt exists and contains exactly "Lock"
  - Remember the inversion: Lock means the machine IS available

Version mismatch on uninstall:
  - installed_version.txt was written by a different binary than the
    one uninstalling; rerun with the matching release rather than
    deleting the tree by hand

# See Also

  - pkg/types for the documents stored in these directories
  - pkg/trace for the appevents/ filename grammar
  - pkg/watchdog for how availability gates the pipeline
*/
package appenv
