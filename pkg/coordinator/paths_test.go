package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaths(t *testing.T) {
	assert.Equal(t, "/servers/h1", ServerPath("h1"))
	assert.Equal(t, "/server.presence/h1", ServerPresencePath("h1"))
	assert.Equal(t, "/blackedout.servers/h1", BlackedOutPath("h1"))
	assert.Equal(t, "/placement/h1", PlacementPath("h1"))
	assert.Equal(t, "/placement/h1/appA#001", PlacementInstancePath("h1", "appA#001"))
	assert.Equal(t, "/scheduled/appA#001", ScheduledPath("appA#001"))
}

func TestTaskPaths(t *testing.T) {
	assert.Equal(t, "/tasks/appA/001", TaskPath("appA#001"))
	assert.Equal(t, "/tasks/noseparator", TaskPath("noseparator"))
	assert.Equal(t,
		"/tasks/appA/001/123.5,h1,finished,0.0",
		TaskEventPath("appA#001", "123.5,h1,finished,0.0"))
}

func TestSessionStateString(t *testing.T) {
	assert.Equal(t, "CONNECTED", StateConnected.String())
	assert.Equal(t, "SUSPENDED", StateSuspended.String())
	assert.Equal(t, "LOST", StateLost.String())
}
