package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")

	size, err := WriteJSON(path, map[string]any{
		"name": "<b>&</b>",
		"list": []int{1, 2},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), size)
	want := "{\n" +
		"  \"list\": [\n    1,\n    2\n  ],\n" +
		"  \"name\": \"<b>&</b>\"\n" +
		"}\n"
	assert.Equal(t, want, string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file must not be left behind")
	assert.Equal(t, "out.json", entries[0].Name())
}

func TestWriteJSONReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, os.WriteFile(path, []byte("old contents"), 0o600))

	_, err := WriteJSON(path, []string{"new"})
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[\n  \"new\"\n]\n", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestWriteJSONUnencodable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")
	require.NoError(t, os.WriteFile(path, []byte("keep"), 0o644))

	_, err := WriteJSON(path, map[string]any{"f": func() {}})
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(data), "failed write must not clobber")
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteJSONMissingDir(t *testing.T) {
	_, err := WriteJSON(
		filepath.Join(t.TempDir(), "nope", "out.json"), []int{},
	)
	require.Error(t, err)
}

func TestDefaultProjectOutput(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Health Research", "health_research_conversations.json"},
		{"my-project_2", "my-project_2_conversations.json"},
		{"A/B: notes!", "a_b__notes__conversations.json"},
		{"Café", "café_conversations.json"},
		{"", "project_conversations.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultProjectOutput(tt.name))
		})
	}
}
