/*
Package types defines the core data structures shared across the agent pipeline.

This package contains the domain model every other package builds on: the
instance manifest mirrored from the coordinator, the run marker that asserts a
started container, and the helpers that split an instance name into its
application and task parts. The instance name <app>#<task> is the primary key
of the whole pipeline and appears as a filename in every work directory.

# Architecture

The types package is the foundation of the agent's data model. It defines:

  - Instance identity (the <app>#<task> name and its parts)
  - Manifest contents (services, task id, image, placement metadata)
  - Run markers (the container_id handoff document)
  - YAML codecs for both documents

All types are designed to be:
  - Serializable (YAML, matching the coordinator's payloads)
  - Self-contained (no references into other packages)
  - Validated (ParseManifest rejects documents the pipeline cannot run)
  - Round-trippable (Encode(Parse(x)) preserves every field)

# Core Types

Instance Identity:
  - AppOf: application part, the substring before the first '#'
  - TaskOf: task part, the substring after the first '#' (empty without one)

Manifest:
  - Manifest: one assigned instance as cached in cache/<instance>
  - Service: one service entry with a name and a command
  - Extra: placement metadata the agent carries but does not interpret

Run Marker:
  - RunMarker: the running/<instance> and cleanup/<instance> document
  - ContainerID: the only field; presence of the file is the real signal

# Usage

Parsing a cached manifest:

	data, err := os.ReadFile(filepath.Join(cacheDir, instance))
	if err != nil {
		return err
	}
	manifest, err := types.ParseManifest(data)
	if err != nil {
		// Malformed manifests are logged and left in place for the
		// operator; the pipeline never deletes what it cannot read.
		return err
	}

	image := manifest.ImageRef()          // falls back to types.DefaultImage
	command := manifest.Services[0].Command

Enriching a manifest from the coordinator:

	var manifest types.Manifest
	// ... decoded from /scheduled/<instance> ...

	manifest.Task = types.TaskOf(instance)

	placement := map[string]interface{}{"rack": "r7", "image": "appimage:v2"}
	manifest.Merge(placement)
	// manifest.Image == "appimage:v2", manifest.Extra["rack"] == "r7"

	data, err := manifest.Encode()
	// write atomically into cache/<instance>

Writing and reading a run marker:

	marker := &types.RunMarker{ContainerID: containerID}
	data, err := marker.Encode()
	// appenv.WriteAtomic(runningDir, instance, data)

	back, err := types.ParseRunMarker(data)
	// back.ContainerID == containerID

Splitting instance names:

	types.AppOf("appA#001")   // "appA"
	types.TaskOf("appA#001")  // "001"
	types.AppOf("plainname")  // "plainname"
	types.TaskOf("plainname") // "" — still a valid, cacheable instance

# Manifest Lifecycle

A manifest moves through the pipeline as a file, never as shared memory:

	/scheduled/<instance>           scheduler's record (YAML payload)
	        │  fetched by the event daemon
	        ▼
	cache/<instance>                enriched with task id + placement data
	        │  read by the config manager
	        ▼
	running/<instance>              reduced to a RunMarker {container_id}
	        │  copied by the state monitor
	        ▼
	cleanup/<instance>              same marker, now owned by the cleaner

The manifest document only exists in the first two stages; from running/
onwards the container id is the only state that matters.

# Validation

ParseManifest enforces what the config manager needs to act:

  - services must be present and non-empty
  - every service must have a name
  - every service must have a command

ParseRunMarker enforces:

  - container_id must be present and non-empty

Anything else in a manifest is legal: unknown top-level keys land in Extra
via the inline mapping and survive a round trip, so placement metadata added
by newer schedulers passes through older agents untouched.

# Validation Philosophy

Parse functions validate for their consumer, not exhaustively:

  - ParseManifest checks exactly what Configure will dereference
    (services[0].Name, services[0].Command); a manifest that passes
    will not panic the config manager
  - ParseRunMarker checks exactly what the monitor and cleaner need
    (a non-empty container id)
  - neither validates the instance NAME — names are filenames by the
    time this package sees them, already vetted by their origin

Failed parses return errors that name the missing piece; the callers'
uniform response (log, skip, leave the file) turns every malformed
document into an operator-visible artifact instead of a crash loop.

# Design Patterns

Closed Fields Plus Inline Extra:

	Known keys (services, task, image) are typed struct fields; everything
	else stays in Extra via yaml's inline mapping. Merge routes updates the
	same way, so a placement payload can override the image without the
	agent knowing every scheduler key.

Presence Over Content:

	RunMarker deliberately carries one field. The pipeline's invariants hang
	on the file existing with its final name, not on what is inside it; the
	container id is the minimum needed to find the container again.

Fallback Image:

	ImageRef returns DefaultImage when the scheduler record names none,
	matching the scheduler's convention for resource-class workloads.

# Name Grammar

The instance name's split is on the FIRST '#', and everything after it
is the task — including further '#' characters:

	"appA#001"      app "appA", task "001"
	"appA#001#x"    app "appA", task "001#x"
	"#leading"      app "",     task "leading"
	"trailing#"     app "trailing", task ""
	"plainname"     app "plainname", task ""

Names never contain '/' or ',' in practice (they are coordinator node
names and event-filename fields respectively), but this package does not
enforce that: it is the scheduler's naming discipline, and the agent
faithfully round-trips whatever arrives.

# Integration Points

This package integrates with:

  - pkg/eventdaemon: builds and enriches manifests from coordinator payloads
  - pkg/cfgmgr: parses manifests and writes run markers
  - pkg/statemon: reads run markers and resolves service names
  - pkg/cleaner: reads cleanup markers to find the container
  - pkg/coordinator: AppOf/TaskOf shape the /tasks path namespace

# Instance Lifecycle

From this package's perspective an instance is a name that accumulates and
sheds documents:

	placed        /scheduled payload exists; nothing local yet
	   │  event daemon: ParseManifest-able YAML + Task + Merge
	   ▼
	cached        cache/<instance> holds the enriched Manifest
	   │  config manager: Manifest consumed, RunMarker written
	   ▼
	running       running/<instance> holds {container_id}
	   │  state monitor: marker bytes copied
	   ▼
	retiring      cleanup/<instance> holds the same marker
	   │  cleaner: all three files deleted
	   ▼
	gone          the name is free for the scheduler to reuse

At every stage the documents are the state; no in-memory registry of
instances exists anywhere in the agent.

# Serialization

Both documents are YAML for one reason: the coordinator's payloads are
YAML, and the cache file is byte-compatible with what a scheduler-side
tool would write. Specifics worth knowing:

  - Field order in Encode output follows the struct, then Extra keys;
    consumers must not depend on ordering
  - Empty Task and Image are omitted (omitempty), so a minimal manifest
    round-trips to a minimal document
  - Extra uses the inline mapping: unknown keys sit at the top level of
    the document, not under an "extra:" key
  - RunMarker encodes to exactly one line, "container_id: <id>"

# Troubleshooting

ParseManifest rejects a document the scheduler wrote:
  - The validation rules above are the complete list; the usual culprit
    is a services entry missing its command
  - The config manager leaves the file in place — inspect it with any
    YAML tool, fix it at the source (/scheduled), and evict/re-place

Merge did not override a field:
  - Only task and image route to struct fields; any other key lands in
    Extra even if it shadows a services-level concept
  - Non-string task/image values in the placement payload are ignored
    rather than coerced

Task field empty:
  - The instance name has no '#'; that is legal and the instance flows
    through the whole pipeline with an empty task part

# Best Practices

Do:
  - Parse with ParseManifest/ParseRunMarker, never raw yaml.Unmarshal;
    the validation is the contract
  - Treat parsed values as read-only outside the enrichment step
  - Use AppOf/TaskOf for every name split; inline Index calls invite
    first-vs-last '#' bugs

Don't:
  - Add fields to RunMarker; its minimalism is the crash-safety design
  - Depend on Extra key ordering or on Extra surviving beyond the cache
    stage — running/ and cleanup/ never see the manifest again

# Thread Safety

All types in this package are plain data:
  - Read-safe: values can be read concurrently once constructed
  - Write-unsafe: mutation (Merge) must be confined to one goroutine
  - In practice each component parses its own copy from a file, so no
    instance of these types is ever shared between goroutines

# Performance Considerations

  - Manifests are small (hundreds of bytes); parse cost is irrelevant next
    to the container runtime calls that follow
  - Encode allocates a fresh document each time; markers are written once
    per instance lifetime
  - AppOf/TaskOf are single index scans and safe for hot paths

# See Also

  - pkg/appenv for where these documents live on disk
  - pkg/eventdaemon for how manifests are fetched and enriched
  - pkg/cfgmgr for how manifests become containers
*/
package types
