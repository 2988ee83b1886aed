package soundmod

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/thadeu/go-soundmod/internal/fileutil"
)

// Config is the persisted form of the user's settings.
//
//	tools:
//	  ffmpeg: /usr/bin/ffmpeg
//	  wwiseConsole: C:\Audiokinetic\Wwise\Authoring\x64\Release\bin\WwiseConsole.exe
//	  vgmstream: ./vgmstream-win64/vgmstream-cli
//	workers: 4
type Config struct {
	Tools           ToolPaths `yaml:"tools"`
	Workers         int       `yaml:"workers,omitempty"`
	TempDir         string    `yaml:"tempDir,omitempty"`
	FFmpegLogLevel  string    `yaml:"ffmpegLogLevel,omitempty"`
	WwiseConversion string    `yaml:"wwiseConversion,omitempty"`
}

// ToolPaths holds one executable path per tool.
type ToolPaths struct {
	FFmpeg       string `yaml:"ffmpeg,omitempty"`
	WwiseConsole string `yaml:"wwiseConsole,omitempty"`
	Vgmstream    string `yaml:"vgmstream,omitempty"`
}

// DefaultConfigPath returns the config file location in the user's config
// directory.
func DefaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "soundmod", "config.yaml"), nil
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &c, nil
}

// Save writes c to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return fileutil.WriteFileAtomic(path, data)
}

// Apply copies every value set in c onto opts.
func (c Config) Apply(opts *Options) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&opts.FFmpegPath, c.Tools.FFmpeg)
	set(&opts.WwiseConsolePath, c.Tools.WwiseConsole)
	set(&opts.VgmstreamPath, c.Tools.Vgmstream)
	set(&opts.TempDir, c.TempDir)
	set(&opts.FFmpegLogLevel, c.FFmpegLogLevel)
	set(&opts.WwiseConversion, c.WwiseConversion)
	if c.Workers > 0 {
		opts.MaxWorkers = c.Workers
	}
}
