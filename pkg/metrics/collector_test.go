package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorSamplesDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "appA#001"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "appB#002"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".seen"), nil, 0o644))

	c := NewCollector(map[string]string{"cache": dir}, func() bool { return true })
	c.collect()

	// Dot files are not instances and must not be counted.
	assert.Equal(t, 2.0, testutil.ToFloat64(DirectoryEntries.WithLabelValues("cache")))
	assert.Equal(t, 1.0, testutil.ToFloat64(NodeAvailable))
}

func TestTimerDuration(t *testing.T) {
	timer := NewTimer()
	time.Sleep(10 * time.Millisecond)
	assert.GreaterOrEqual(t, timer.Duration(), 10*time.Millisecond)
}
