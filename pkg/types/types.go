package types

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultImage is the image used when a manifest carries no image reference.
const DefaultImage = "resource"

// Service is one service entry of an instance manifest.
type Service struct {
	Name    string `yaml:"name"`
	Command string `yaml:"command"`
}

// Manifest describes one instance assigned to this node. It is mirrored from
// the coordinator into cache/<instance> and consumed by the config manager.
type Manifest struct {
	Services []Service `yaml:"services"`
	Task     string    `yaml:"task,omitempty"`
	Image    string    `yaml:"image,omitempty"`

	// Extra carries placement metadata merged from the coordinator that the
	// agent itself does not interpret.
	Extra map[string]interface{} `yaml:",inline"`
}

// ParseManifest decodes and validates a cached manifest document.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the manifest invariants required by the pipeline.
func (m *Manifest) Validate() error {
	if len(m.Services) == 0 {
		return fmt.Errorf("manifest has no services")
	}
	for i, svc := range m.Services {
		if svc.Name == "" {
			return fmt.Errorf("service %d has no name", i)
		}
		if svc.Command == "" {
			return fmt.Errorf("service %q has no command", svc.Name)
		}
	}
	return nil
}

// ImageRef returns the container image for the manifest, falling back to the
// default image when the scheduler record carries none.
func (m *Manifest) ImageRef() string {
	if m.Image != "" {
		return m.Image
	}
	return DefaultImage
}

// Merge folds a placement payload into the manifest. Known manifest keys
// override the corresponding fields; everything else lands in Extra.
func (m *Manifest) Merge(placement map[string]interface{}) {
	for k, v := range placement {
		switch k {
		case "task":
			if s, ok := v.(string); ok {
				m.Task = s
			}
		case "image":
			if s, ok := v.(string); ok {
				m.Image = s
			}
		default:
			if m.Extra == nil {
				m.Extra = make(map[string]interface{})
			}
			m.Extra[k] = v
		}
	}
}

// Encode renders the manifest back to YAML for the cache file.
func (m *Manifest) Encode() ([]byte, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	return data, nil
}

// RunMarker is the running/<instance> (and cleanup/<instance>) document. Its
// presence asserts the container was started by this node.
type RunMarker struct {
	ContainerID string `yaml:"container_id"`
}

// ParseRunMarker decodes a running or cleanup marker.
func ParseRunMarker(data []byte) (*RunMarker, error) {
	var m RunMarker
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode run marker: %w", err)
	}
	if m.ContainerID == "" {
		return nil, fmt.Errorf("run marker has no container_id")
	}
	return &m, nil
}

// Encode renders the marker to YAML.
func (m *RunMarker) Encode() ([]byte, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode run marker: %w", err)
	}
	return data, nil
}

// AppOf returns the application part of an instance name, the substring
// before the first '#'. For a name without '#' it is the whole name.
func AppOf(instance string) string {
	if i := strings.Index(instance, "#"); i >= 0 {
		return instance[:i]
	}
	return instance
}

// TaskOf returns the task part of an instance name, the substring after the
// first '#'. For a name without '#' it is empty.
func TaskOf(instance string) string {
	if i := strings.Index(instance, "#"); i >= 0 {
		return instance[i+1:]
	}
	return ""
}
