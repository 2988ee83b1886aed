package soundmod

import (
	"log/slog"
	"time"
)

// Options configures a Workspace.
type Options struct {
	// FFmpegPath, WwiseConsolePath and VgmstreamPath set the tool
	// executables. An empty path is auto-detected unless SkipDetect is set.
	FFmpegPath       string
	WwiseConsolePath string
	VgmstreamPath    string

	// SkipDetect leaves tools without a configured path undetected.
	SkipDetect bool

	// FFmpegLogLevel is passed to ffmpeg's -loglevel (defaults to "warning").
	FFmpegLogLevel string

	// WwiseConversion names the conversion setting used when encoding wem
	// (defaults to "Vorbis Quality High").
	WwiseConversion string

	// WwisePlatform is the platform targeted by the temporary Wwise project
	// (defaults to "Windows").
	WwisePlatform string

	// TempDir holds transcode results, export staging and the Wwise
	// project. When empty a directory is created and removed on Close.
	TempDir string

	// MaxWorkers bounds BatchTranscode. Zero reads SOUNDMOD_MAX_WORKERS.
	MaxWorkers int

	// BatchMaxFailures is the number of consecutive failures after which
	// BatchTranscode stops starting jobs for BatchResetTimeout. Zero
	// disables the check.
	BatchMaxFailures  int
	BatchResetTimeout time.Duration

	// Monitor receives every tool invocation. A new one is created when nil.
	Monitor *ResourceMonitor

	// Logger receives structured logs. Nil discards them.
	Logger *slog.Logger
}

// DefaultOptions returns Options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		FFmpegLogLevel:  DefaultFFmpegLogLevel,
		WwiseConversion: DefaultWwiseConversion,
		WwisePlatform:   DefaultWwisePlatform,

		BatchMaxFailures:  5,
		BatchResetTimeout: 10 * time.Second,
	}
}

// toolPath returns the configured path of kind.
func (o *Options) toolPath(kind ToolKind) string {
	switch kind {
	case FFmpegTool:
		return o.FFmpegPath
	case WwiseConsoleTool:
		return o.WwiseConsolePath
	case VgmstreamTool:
		return o.VgmstreamPath
	}
	return ""
}
