package appenv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEnv(t *testing.T) Env {
	t.Helper()
	env := Env{Root: t.TempDir(), Hostname: "h1", ZooKeeper: "127.0.0.1:2181"}
	require.NoError(t, env.Ensure())
	return env
}

func TestEnsureCreatesTree(t *testing.T) {
	env := testEnv(t)

	for _, dir := range []string{env.Cache(), env.Running(), env.AppEvents(), env.Cleanup(), env.Log()} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestNodeAvailable(t *testing.T) {
	env := testEnv(t)

	// No screen state file: not available.
	assert.False(t, env.NodeAvailable())

	// Lock means the user is away and the node may run workloads.
	require.NoError(t, os.WriteFile(filepath.Join(env.Root, ScreenStateFile), []byte("Lock"), 0o644))
	assert.True(t, env.NodeAvailable())

	require.NoError(t, os.WriteFile(filepath.Join(env.Root, ScreenStateFile), []byte("Unlock"), 0o644))
	assert.False(t, env.NodeAvailable())
}

func TestWriteAtomicLeavesNoTempFile(t *testing.T) {
	env := testEnv(t)

	require.NoError(t, WriteAtomic(env.Cache(), "appA#001", []byte("services: []\n")))

	data, err := os.ReadFile(filepath.Join(env.Cache(), "appA#001"))
	require.NoError(t, err)
	assert.Equal(t, "services: []\n", string(data))

	// The only visible entry is the final name; no concurrent temp file.
	names, err := ListInstances(env.Cache())
	require.NoError(t, err)
	assert.Equal(t, []string{"appA#001"}, names)

	entries, err := os.ReadDir(env.Cache())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestListInstancesSkipsDotFiles(t *testing.T) {
	env := testEnv(t)

	require.NoError(t, os.WriteFile(filepath.Join(env.Cache(), ".seen"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(env.Cache(), ".tmp-partial"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(env.Cache(), "b#2"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(env.Cache(), "a#1"), nil, 0o644))

	names, err := ListInstances(env.Cache())
	require.NoError(t, err)
	assert.Equal(t, []string{"a#1", "b#2"}, names)
}

func TestSeenSentinel(t *testing.T) {
	env := testEnv(t)

	assert.False(t, env.Seen())
	require.NoError(t, env.MarkSeen())
	assert.True(t, env.Seen())

	// Marking twice keeps it a pure presence marker.
	require.NoError(t, env.MarkSeen())
	assert.True(t, env.Seen())

	require.NoError(t, env.ClearSeen())
	assert.False(t, env.Seen())
	require.NoError(t, env.ClearSeen())
}

func TestInstalledVersion(t *testing.T) {
	env := testEnv(t)

	_, err := env.InstalledVersion()
	assert.Error(t, err)

	require.NoError(t, env.WriteInstalledVersion("0.1.0"))
	v, err := env.InstalledVersion()
	require.NoError(t, err)
	assert.Equal(t, "0.1.0", v)
}

func TestLoadRequiresEnvVars(t *testing.T) {
	t.Setenv("workDirectory", "")
	t.Setenv("zookeeper", "")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("workDirectory", t.TempDir())
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("zookeeper", "127.0.0.1:2181")
	env, err := Load()
	require.NoError(t, err)
	assert.NotEmpty(t, env.Hostname)
}
