package appenv

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Work directory layout, relative to the root.
const (
	CacheDir     = "cache"
	RunningDir   = "running"
	AppEventsDir = "appevents"
	CleanupDir   = "cleanup"
	LogDir       = "log"

	// ScreenStateFile holds "Lock" or "Unlock"; Lock means the user is away
	// and the machine may run workloads.
	ScreenStateFile = "screen_state.txt"

	// VersionFile records the installed agent version for install/uninstall
	// compatibility checks.
	VersionFile = "installed_version.txt"

	// SeenFile is the sentinel in cache/ asserting the placement mirror has
	// completed at least one successful sync. Pure presence marker; its
	// content is irrelevant.
	SeenFile = ".seen"
)

// Env is the process-wide node environment, built once at startup and passed
// by value into every component.
type Env struct {
	Root      string
	Hostname  string
	ZooKeeper string
}

// Load builds the environment from the workDirectory and zookeeper
// environment variables.
func Load() (Env, error) {
	root := os.Getenv("workDirectory")
	if root == "" {
		return Env{}, fmt.Errorf("workDirectory environment variable is not set")
	}
	hosts := os.Getenv("zookeeper")
	if hosts == "" {
		return Env{}, fmt.Errorf("zookeeper environment variable is not set")
	}
	hostname, err := os.Hostname()
	if err != nil {
		return Env{}, fmt.Errorf("failed to resolve hostname: %w", err)
	}
	return Env{Root: root, Hostname: hostname, ZooKeeper: hosts}, nil
}

// Cache returns the cache/ directory path.
func (e Env) Cache() string { return filepath.Join(e.Root, CacheDir) }

// Running returns the running/ directory path.
func (e Env) Running() string { return filepath.Join(e.Root, RunningDir) }

// AppEvents returns the appevents/ directory path.
func (e Env) AppEvents() string { return filepath.Join(e.Root, AppEventsDir) }

// Cleanup returns the cleanup/ directory path.
func (e Env) Cleanup() string { return filepath.Join(e.Root, CleanupDir) }

// Log returns the log/ directory path.
func (e Env) Log() string { return filepath.Join(e.Root, LogDir) }

// Ensure creates the work directory tree.
func (e Env) Ensure() error {
	for _, dir := range []string{e.Root, e.Cache(), e.Running(), e.AppEvents(), e.Cleanup(), e.Log()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// NodeAvailable reports whether the node may run workloads. Lock means the
// user is away, so the machine is available.
func (e Env) NodeAvailable() bool {
	data, err := os.ReadFile(filepath.Join(e.Root, ScreenStateFile))
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == "Lock"
}

// InstalledVersion reads the recorded install version.
func (e Env) InstalledVersion() (string, error) {
	data, err := os.ReadFile(filepath.Join(e.Root, VersionFile))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// WriteInstalledVersion records the install version.
func (e Env) WriteInstalledVersion(version string) error {
	return os.WriteFile(filepath.Join(e.Root, VersionFile), []byte(version), 0o644)
}

// MarkSeen creates the .seen sentinel in cache/.
func (e Env) MarkSeen() error {
	path := filepath.Join(e.Cache(), SeenFile)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create seen sentinel: %w", err)
	}
	return f.Close()
}

// ClearSeen removes the .seen sentinel.
func (e Env) ClearSeen() error {
	err := os.Remove(filepath.Join(e.Cache(), SeenFile))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Seen reports whether the .seen sentinel is present.
func (e Env) Seen() bool {
	_, err := os.Stat(filepath.Join(e.Cache(), SeenFile))
	return err == nil
}

// WriteAtomic writes data to dir/name via a dot-prefixed temp file in the
// same directory followed by a rename, so readers never observe partial
// content.
func WriteAtomic(dir, name string, data []byte) error {
	tmp := filepath.Join(dir, fmt.Sprintf(".%s-%s", name, uuid.New().String()))
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, name)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename into place: %w", err)
	}
	return nil
}

// ListInstances returns the sorted non-dot entries of a work directory.
// Dot-prefixed names are never instances.
func ListInstances(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// RemoveIfPresent deletes dir/name, treating absence as success.
func RemoveIfPresent(dir, name string) error {
	err := os.Remove(filepath.Join(dir, name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
