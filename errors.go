package soundmod

import (
	"errors"
	"fmt"
	"strings"

	"github.com/thadeu/go-soundmod/bnk"
	"github.com/thadeu/go-soundmod/loose"
	"github.com/thadeu/go-soundmod/loudness"
	"github.com/thadeu/go-soundmod/pck"
)

var (
	// ErrNotFound is returned when an external tool has no usable path.
	ErrNotFound = errors.New("executable not found")

	// ErrCommandExecution is returned when an external process cannot be started.
	ErrCommandExecution = errors.New("command execution failed")

	// ErrCommandFailed is returned when an external process exits with a non-zero code.
	ErrCommandFailed = errors.New("command failed")

	// ErrOutputNotFound is returned when WwiseConsole reports success but the
	// converted file is not where it should be.
	ErrOutputNotFound = errors.New("output file not found in expected path")

	// ErrMissingExtension is returned when a transcode path has no extension.
	ErrMissingExtension = errors.New("file has no extension")

	// ErrSameExtension is returned when input and output share an extension.
	ErrSameExtension = errors.New("input and output file extension are the same")

	// ErrNoRoute is returned when no chain of tools converts between two formats.
	ErrNoRoute = errors.New("no conversion route")

	// ErrUnknownStream is returned when an export replaces a stream id the
	// container does not index.
	ErrUnknownStream = errors.New("stream not in container")
)

// Errors re-exported from the container packages.
var (
	// ErrMissingSource is returned when a container references a stream with no loose file.
	ErrMissingSource = loose.ErrMissingSource

	// ErrCountMismatch is returned when index entries and data blocks disagree in number.
	ErrCountMismatch = bnk.ErrCountMismatch

	// ErrNoDataSection is returned when a bank has no DATA section to extract from.
	ErrNoDataSection = bnk.ErrNoDataSection

	// ErrDataNotEmpty is returned when overriding a DATA section that still holds blocks.
	ErrDataNotEmpty = bnk.ErrDataNotEmpty

	// ErrMalformedBank is returned when bytes do not describe a valid SoundBank.
	ErrMalformedBank = bnk.ErrMalformed

	// ErrMalformedPackage is returned when bytes do not describe a valid package.
	ErrMalformedPackage = pck.ErrMalformed

	// ErrEmbeddedBanks is returned when repacking a package that embeds sound banks.
	ErrEmbeddedBanks = pck.ErrEmbeddedBanks

	// ErrBlockSize is returned when repacking streams addressed in blocks.
	ErrBlockSize = pck.ErrBlockSize

	// ErrUnsupportedAudio is returned when measuring audio the meter cannot decode.
	ErrUnsupportedAudio = loudness.ErrUnsupportedFormat
)

// CommandError reports an external process that ran and exited non-zero.
type CommandError struct {
	Tool   string
	Code   int
	Stdout string
	Stderr string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Tool, e.Code)
	if detail := strings.TrimSpace(e.Stderr); detail != "" {
		return msg + "\n" + detail
	}
	if detail := strings.TrimSpace(e.Stdout); detail != "" {
		return msg + "\n" + detail
	}
	return msg
}

func (e *CommandError) Is(target error) bool { return target == ErrCommandFailed }

// ExecError reports an external process that could not be started.
type ExecError struct {
	Tool string
	Err  error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("%s: starting process: %v", e.Tool, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

func (e *ExecError) Is(target error) bool { return target == ErrCommandExecution }

// Describe renders err as one line per wrapping layer, outermost context
// first and the innermost cause last. Joined errors are listed as indented
// groups.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var b strings.Builder
	describe(&b, err, "")
	return strings.TrimRight(b.String(), "\n")
}

func describe(b *strings.Builder, err error, indent string) {
	for err != nil {
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			for _, e := range joined.Unwrap() {
				describe(b, e, indent+"  ")
			}
			return
		}

		inner := errors.Unwrap(err)
		msg := err.Error()
		if inner != nil {
			msg = strings.TrimSuffix(msg, inner.Error())
			msg = strings.TrimRight(msg, ": \n")
		}
		if msg != "" {
			for _, line := range strings.Split(msg, "\n") {
				b.WriteString(indent)
				b.WriteString(line)
				b.WriteByte('\n')
			}
		}
		err = inner
	}
}
