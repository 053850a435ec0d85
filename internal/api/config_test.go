package api

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestMergeYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camsrc.yaml")
	err := os.WriteFile(path, []byte(`
api:
  listen: ":1985"
libcamera:
  backend: virtual
  width: 640
sources:
  desk:
    device_id: cam0
`), 0644)
	require.Nil(t, err)

	b, err := mergeYAML(path, []byte(`
libcamera:
  width: 1280
  height: 720
sources:
  door:
    device_id: cam1
`))
	require.Nil(t, err)

	var cfg map[string]any
	require.Nil(t, yaml.Unmarshal(b, &cfg))

	require.Equal(t, map[string]any{"listen": ":1985"}, cfg["api"])
	require.Equal(t, map[string]any{"backend": "virtual", "width": 1280, "height": 720}, cfg["libcamera"])
	require.Equal(t, map[string]any{
		"desk": map[string]any{"device_id": "cam0"},
		"door": map[string]any{"device_id": "cam1"},
	}, cfg["sources"])
}

func TestMergeYAMLEmpty(t *testing.T) {
	b, err := mergeYAML(filepath.Join(t.TempDir(), "missing.yaml"), []byte("log:\n  level: debug\n"))
	require.Nil(t, err)
	require.Equal(t, "log:\n    level: debug\n", string(b))

	_, err = mergeYAML("", []byte("log: [a"))
	require.NotNil(t, err)
}

func TestMerge(t *testing.T) {
	dst := map[string]any{"a": map[string]any{"b": 1, "c": 2}, "d": 3}
	src := map[string]any{"a": map[string]any{"c": 4}, "d": map[string]any{"e": 5}}

	require.Equal(t, map[string]any{
		"a": map[string]any{"b": 1, "c": 4},
		"d": map[string]any{"e": 5},
	}, merge(dst, src))
}
