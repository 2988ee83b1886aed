package soundmod

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format is an audio file format named by its lower-case extension.
type Format string

const (
	// FormatWEM is the Wwise encoded stream format.
	FormatWEM Format = "wem"

	// FormatWAV is uncompressed PCM. Every conversion involving wem passes
	// through it.
	FormatWAV Format = "wav"

	FormatMP3  Format = "mp3"
	FormatOGG  Format = "ogg"
	FormatFLAC Format = "flac"
)

// Pivot is the format two-hop conversions pass through.
const Pivot = FormatWAV

// FormatOf returns the format of path from its extension.
func FormatOf(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", fmt.Errorf("%s: %w", path, ErrMissingExtension)
	}
	return Format(strings.ToLower(ext)), nil
}

// ParseFormat normalises a user supplied format name such as ".WAV".
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimPrefix(name, ".")))
	if f == "" || strings.ContainsAny(string(f), `./\`) {
		return "", fmt.Errorf("format %q: %w", name, ErrMissingExtension)
	}
	return f, nil
}

func (f Format) String() string { return string(f) }

// edge returns the tool converting from into to in a single step:
// vgmstream decodes wem to wav, WwiseConsole encodes wav to wem and ffmpeg
// handles every pair without wem.
func edge(from, to Format) (ToolKind, bool) {
	switch {
	case from == FormatWEM && to == FormatWAV:
		return VgmstreamTool, true
	case from == FormatWAV && to == FormatWEM:
		return WwiseConsoleTool, true
	case from != FormatWEM && to != FormatWEM:
		return FFmpegTool, true
	}
	return 0, false
}

// route returns the shortest chain of at most two hops from one format to
// another, passing through Pivot when no single tool converts directly.
func route(from, to Format) ([]Hop, error) {
	if tool, ok := edge(from, to); ok {
		return []Hop{{Tool: tool, From: from, To: to}}, nil
	}

	first, ok1 := edge(from, Pivot)
	second, ok2 := edge(Pivot, to)
	if ok1 && ok2 && from != Pivot && to != Pivot {
		return []Hop{
			{Tool: first, From: from, To: Pivot},
			{Tool: second, From: Pivot, To: to},
		}, nil
	}
	return nil, fmt.Errorf(".%s to .%s: %w", from, to, ErrNoRoute)
}
