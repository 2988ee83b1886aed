package soundmod

import (
	"context"
	"log/slog"
)

// FFmpegEnv names the environment variable consulted first when locating ffmpeg.
const FFmpegEnv = "FFMPEG_PATH"

// DefaultFFmpegLogLevel is passed to -loglevel unless configured otherwise.
const DefaultFFmpegLogLevel = "warning"

// FFmpeg converts between formats ffmpeg understands, which excludes wem.
type FFmpeg struct {
	*Tool
	logLevel string
}

// NewFFmpeg creates an unconfigured ffmpeg adapter. The tool is alive when
// "-version" exits 0.
func NewFFmpeg(logLevel string, monitor *ResourceMonitor, logger *slog.Logger) *FFmpeg {
	if logLevel == "" {
		logLevel = DefaultFFmpegLogLevel
	}
	return &FFmpeg{
		Tool:     newTool(FFmpegTool, FFmpegEnv, "", "ffmpeg", exitsWith(0, "-version"), monitor, logger),
		logLevel: logLevel,
	}
}

// Transcode converts input to output, picking both formats from the file
// extensions. An existing output is overwritten.
func (f *FFmpeg) Transcode(ctx context.Context, input, output string) error {
	_, err := f.Run(ctx, "-hide_banner", "-loglevel", f.logLevel, "-i", input, "-y", output)
	return err
}
