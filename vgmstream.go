package soundmod

import (
	"context"
	"io"
	"log/slog"
)

// Vgmstream decodes game audio streams, including wem, to WAV.
type Vgmstream struct {
	*Tool
}

// NewVgmstream creates an unconfigured vgmstream-cli adapter. The Windows
// release unpacks into "vgmstream-win64", which is searched next to the
// executable and in the working directory. vgmstream-cli prints its usage and
// exits 1 when run with "-h"; that is its liveness check.
func NewVgmstream(monitor *ResourceMonitor, logger *slog.Logger) *Vgmstream {
	return &Vgmstream{
		Tool: newTool(VgmstreamTool, "", "vgmstream-win64", "vgmstream-cli", exitsWith(1, "-h"), monitor, logger),
	}
}

// Transcode decodes input to the WAV file output.
func (v *Vgmstream) Transcode(ctx context.Context, input, output string) error {
	_, err := v.Run(ctx, input, "-o", output)
	return err
}

// Stream decodes input and writes the WAV bytes to w as they are produced,
// for playback without a temporary file.
func (v *Vgmstream) Stream(ctx context.Context, input string, w io.Writer) error {
	return v.locked(func() error {
		_, err := v.run(ctx, w, []string{"-p", input})
		return err
	})
}
