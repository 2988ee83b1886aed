package soundmod

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "soundmod", "config.yaml")
	want := Config{
		Tools: ToolPaths{
			FFmpeg:    "/usr/bin/ffmpeg",
			Vgmstream: "./vgmstream-win64/vgmstream-cli",
		},
		Workers:         4,
		WwiseConversion: "Vorbis Quality Low",
	}

	require.NoError(t, want.Save(path))

	got, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, want, *got)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "wwiseConsole", "empty fields are omitted")
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tools:\n  wwiseConsole: C:\\Wwise\\WwiseConsole.exe\nworkers: 2\n"), 0o644))
	c, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, `C:\Wwise\WwiseConsole.exe`, c.Tools.WwiseConsole)
	assert.Equal(t, 2, c.Workers)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("tools: [unclosed"), 0o644))
	_, err = LoadConfig(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), bad)

	_, err = LoadConfig(filepath.Join(dir, "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestConfigApply(t *testing.T) {
	opts := DefaultOptions()
	opts.VgmstreamPath = "/opt/vgmstream-cli"

	Config{
		Tools:   ToolPaths{FFmpeg: "/usr/bin/ffmpeg"},
		Workers: 8,
		TempDir: "/var/tmp/soundmod",
	}.Apply(&opts)

	assert.Equal(t, "/usr/bin/ffmpeg", opts.FFmpegPath)
	assert.Equal(t, "/opt/vgmstream-cli", opts.VgmstreamPath)
	assert.Equal(t, 8, opts.MaxWorkers)
	assert.Equal(t, "/var/tmp/soundmod", opts.TempDir)
	assert.Equal(t, DefaultWwiseConversion, opts.WwiseConversion)
	assert.Equal(t, DefaultFFmpegLogLevel, opts.FFmpegLogLevel)
}
