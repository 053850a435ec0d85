package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseConfString(t *testing.T) {
	require.Equal(t, "{log: {level: trace}}", string(parseConfString("log.level=trace")))
	require.Equal(t, "{libcamera: {virtual: {fps: 5}}}", string(parseConfString("libcamera.virtual.fps=5")))
	require.Nil(t, parseConfString("camsrc.yaml"))
	require.Nil(t, parseConfString("level=trace"))
}

func TestLoadConfig(t *testing.T) {
	prev := configs
	t.Cleanup(func() { configs = prev })

	configs = [][]byte{
		[]byte("libcamera:\n  width: 1280\n  height: 720\n"),
		parseConfString("libcamera.height=1080"),
	}

	var cfg struct {
		Mod struct {
			Width  int `yaml:"width"`
			Height int `yaml:"height"`
		} `yaml:"libcamera"`
	}

	LoadConfig(&cfg)
	require.Equal(t, 1280, cfg.Mod.Width)
	require.Equal(t, 1080, cfg.Mod.Height)
}

func TestPatchConfig(t *testing.T) {
	prevPath := ConfigPath
	prevReadOnly := ConfigReadOnly
	t.Cleanup(func() {
		ConfigPath = prevPath
		ConfigReadOnly = prevReadOnly
	})

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("# sources\n"), 0644))

	ConfigPath = path

	err := PatchConfig([]string{"sources", "desk"}, map[string]any{"device_id": "/dev/video0"})
	require.NoError(t, err)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, `# sources
sources:
  desk:
    device_id: /dev/video0
`, string(b))

	// nil value removes the key
	require.NoError(t, PatchConfig([]string{"sources", "desk"}, nil))
	b, _ = os.ReadFile(path)
	require.Equal(t, "# sources\nsources:\n", string(b))

	ConfigReadOnly = true

	err = PatchConfig([]string{"sources", "desk"}, nil)
	require.EqualError(t, err, "config is read-only")

	ConfigPath = ""
	err = PatchConfig([]string{"sources", "desk"}, nil)
	require.EqualError(t, err, "config file disabled")
}
