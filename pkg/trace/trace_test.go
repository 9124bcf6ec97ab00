package trace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventDataRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		event Event
	}{
		{"pending", Pending{}},
		{"deleted", Deleted{}},
		{"scheduled", Scheduled{Where: "h1"}},
		{"configured", Configured{UniqueID: "c123"}},
		{"service_running", ServiceRunning{UniqueID: "c123", Service: "web"}},
		{"service_running dotted service", ServiceRunning{UniqueID: "c123", Service: "web.front.v2"}},
		{"service_exited", ServiceExited{UniqueID: "c123", Service: "web", RC: 0, Signal: 0}},
		{"service_exited dotted service", ServiceExited{UniqueID: "c123", Service: "web.front", RC: 137, Signal: 137}},
		{"service_exited max codes", ServiceExited{UniqueID: "c1", Service: "s", RC: 255, Signal: 255}},
		{"finished", Finished{RC: 0, Signal: 0}},
		{"finished nonzero", Finished{RC: 2, Signal: 2}},
		{"aborted", Aborted{Why: "2"}},
		{"aborted dotted reason", Aborted{Why: "exit.code.42"}},
		{"killed", Killed{IsOOM: false}},
		{"killed oom", Killed{IsOOM: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := FromData(tt.event.EventType(), tt.event.EventData())
			require.NoError(t, err)
			assert.Equal(t, tt.event, decoded)
			assert.Equal(t, tt.event.EventData(), decoded.EventData())
		})
	}
}

func TestFilenameRoundTrip(t *testing.T) {
	f := File{
		Timestamp: "1700000000.123456",
		Instance:  "appA#001",
		Event:     ServiceExited{UniqueID: "c123", Service: "web.front", RC: 2, Signal: 2},
	}

	name := f.Filename()
	assert.Equal(t, "1700000000.123456,appA#001,service_exited,c123.web.front.2.2", name)

	back, err := ParseFilename(name)
	require.NoError(t, err)
	assert.Equal(t, f, back)
	assert.Equal(t, name, back.Filename())
}

func TestParseFilenameRejectsMalformed(t *testing.T) {
	tests := []string{
		"",
		"no-commas-here",
		"1,appA#001,finished",            // missing data part
		"1,appA#001,finished,nodots",     // bad finished encoding
		"1,appA#001,service_exited,a.b",  // too few parts
		"1,appA#001,service_exited,a.b.x.y", // non-numeric codes
		"1,appA#001,nosuchtype,data",
	}

	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseFilename(name)
			assert.Error(t, err)
		})
	}
}

func TestFinishedSplitsOnLastDot(t *testing.T) {
	// A malformed-looking rc with extra dots must not panic the decoder and
	// must split on the last dot.
	ev, err := FromData(TypeFinished, "0.0")
	require.NoError(t, err)
	assert.Equal(t, Finished{RC: 0, Signal: 0}, ev)

	_, err = FromData(TypeFinished, "1.2.3")
	assert.Error(t, err)
}

func TestTerminal(t *testing.T) {
	assert.True(t, Terminal(TypeFinished))
	assert.True(t, Terminal(TypeAborted))
	assert.True(t, Terminal(TypeKilled))
	assert.False(t, Terminal(TypeServiceExited))
	assert.False(t, Terminal(TypeConfigured))
	assert.False(t, Terminal(TypeDeleted))
}

func TestPostWritesAtomically(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, Post(dir, "appA#001", Configured{UniqueID: "c123"}, []byte("payload")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	name := entries[0].Name()
	assert.False(t, strings.HasPrefix(name, "."))

	parsed, err := ParseFilename(name)
	require.NoError(t, err)
	assert.Equal(t, "appA#001", parsed.Instance)
	assert.Equal(t, Configured{UniqueID: "c123"}, parsed.Event)

	body, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(body))
}
