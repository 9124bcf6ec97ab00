package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseManifest(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{
			name:  "valid single service",
			input: "services:\n- name: web\n  command: run.sh\n",
		},
		{
			name:  "valid with extra metadata",
			input: "services:\n- name: web\n  command: run.sh\ncpu: 10%\nmemory: 128M\n",
		},
		{
			name:    "no services",
			input:   "task: \"001\"\n",
			wantErr: true,
		},
		{
			name:    "service without command",
			input:   "services:\n- name: web\n",
			wantErr: true,
		},
		{
			name:    "not yaml",
			input:   "{{{",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseManifest([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, m.Services)
		})
	}
}

func TestManifestMerge(t *testing.T) {
	m := &Manifest{
		Services: []Service{{Name: "web", Command: "run.sh"}},
	}

	m.Merge(map[string]interface{}{
		"image":    "custom",
		"task":     "007",
		"affinity": "rack-1",
	})

	assert.Equal(t, "custom", m.Image)
	assert.Equal(t, "007", m.Task)
	assert.Equal(t, "rack-1", m.Extra["affinity"])
}

func TestManifestImageRef(t *testing.T) {
	m := &Manifest{Services: []Service{{Name: "web", Command: "run.sh"}}}
	assert.Equal(t, DefaultImage, m.ImageRef())

	m.Image = "appimage:v2"
	assert.Equal(t, "appimage:v2", m.ImageRef())
}

func TestManifestRoundTrip(t *testing.T) {
	m := &Manifest{
		Services: []Service{{Name: "web", Command: "run.sh"}},
		Task:     "001",
		Extra:    map[string]interface{}{"cpu": "10%"},
	}

	data, err := m.Encode()
	require.NoError(t, err)

	back, err := ParseManifest(data)
	require.NoError(t, err)
	assert.Equal(t, m.Services, back.Services)
	assert.Equal(t, m.Task, back.Task)
	assert.Equal(t, "10%", back.Extra["cpu"])
}

func TestRunMarker(t *testing.T) {
	marker := &RunMarker{ContainerID: "c123"}
	data, err := marker.Encode()
	require.NoError(t, err)

	back, err := ParseRunMarker(data)
	require.NoError(t, err)
	assert.Equal(t, "c123", back.ContainerID)

	_, err = ParseRunMarker([]byte("not_a_marker: true\n"))
	assert.Error(t, err)
}

func TestInstanceNameParts(t *testing.T) {
	tests := []struct {
		instance string
		app      string
		task     string
	}{
		{"appA#001", "appA", "001"},
		{"appA#001#x", "appA", "001#x"},
		{"noseparator", "noseparator", ""},
		{"trailing#", "trailing", ""},
		{"#leading", "", "leading"},
	}

	for _, tt := range tests {
		t.Run(tt.instance, func(t *testing.T) {
			assert.Equal(t, tt.app, AppOf(tt.instance))
			assert.Equal(t, tt.task, TaskOf(tt.instance))
		})
	}
}
