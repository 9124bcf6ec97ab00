package coordinator

import (
	"github.com/cuemby/burrow/pkg/types"
)

// Coordinator namespace roots.
const (
	ServersRoot        = "/servers"
	ServerPresenceRoot = "/server.presence"
	BlackedOutRoot     = "/blackedout.servers"
	PlacementRoot      = "/placement"
	ScheduledRoot      = "/scheduled"
	TasksRoot          = "/tasks"
)

// ServerPath is the persistent per-host server record.
func ServerPath(host string) string {
	return ServersRoot + "/" + host
}

// ServerPresencePath is the ephemeral per-host presence node.
func ServerPresencePath(host string) string {
	return ServerPresenceRoot + "/" + host
}

// BlackedOutPath gates presence creation; when it exists the host must not
// advertise itself.
func BlackedOutPath(host string) string {
	return BlackedOutRoot + "/" + host
}

// PlacementPath is the parent whose children list the host's assignments.
func PlacementPath(host string) string {
	return PlacementRoot + "/" + host
}

// PlacementInstancePath is one assignment record; its payload is merged into
// the cached manifest.
func PlacementInstancePath(host, instance string) string {
	return PlacementPath(host) + "/" + instance
}

// ScheduledPath is the scheduler's record of an instance.
func ScheduledPath(instance string) string {
	return ScheduledRoot + "/" + instance
}

// TaskPath is the task history node for an instance: /tasks/<app>/<task>.
func TaskPath(instance string) string {
	app := types.AppOf(instance)
	task := types.TaskOf(instance)
	if task == "" {
		return TasksRoot + "/" + app
	}
	return TasksRoot + "/" + app + "/" + task
}

// TaskEventPath is one published trace event under the task history node.
func TaskEventPath(instance, eventNode string) string {
	return TaskPath(instance) + "/" + eventNode
}
