package soundmod

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Codec converts the file at input into output. Both formats are implied by
// the file extensions.
type Codec interface {
	Transcode(ctx context.Context, input, output string) error
}

// Hop is one conversion step performed by a single tool.
type Hop struct {
	Tool ToolKind
	From Format
	To   Format
}

func (h Hop) String() string {
	return fmt.Sprintf(".%s to .%s", h.From, h.To)
}

// Plan is the chain of hops converting Input to Output.
type Plan struct {
	Input  string
	Output string
	Hops   []Hop
}

func (p *Plan) String() string {
	parts := make([]string, len(p.Hops))
	for i, h := range p.Hops {
		parts[i] = fmt.Sprintf("%s (%s)", h, h.Tool)
	}
	return strings.Join(parts, ", ")
}

// Transcoder converts audio files by chaining the configured codecs.
type Transcoder struct {
	codecs map[ToolKind]Codec
	logger *slog.Logger
}

// NewTranscoder creates a Transcoder dispatching each hop to the codec
// registered for its tool. A nil logger discards output.
func NewTranscoder(codecs map[ToolKind]Codec, logger *slog.Logger) *Transcoder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Transcoder{codecs: codecs, logger: logger}
}

// Plan computes the hops converting input to output.
func (t *Transcoder) Plan(input, output string) (*Plan, error) {
	from, err := FormatOf(input)
	if err != nil {
		return nil, fmt.Errorf("input %w", err)
	}
	to, err := FormatOf(output)
	if err != nil {
		return nil, fmt.Errorf("output %w", err)
	}
	if from == to {
		return nil, fmt.Errorf(".%s: %w", from, ErrSameExtension)
	}

	hops, err := route(from, to)
	if err != nil {
		return nil, err
	}
	return &Plan{Input: input, Output: output, Hops: hops}, nil
}

// AutoTranscode converts input to output, through an intermediate wav when
// no single tool handles the pair.
//
// Every hop writes to a uniquely named file next to output. The last one is
// renamed to output on success and all others are removed, so output is
// either complete or untouched.
func (t *Transcoder) AutoTranscode(ctx context.Context, input, output string) error {
	plan, err := t.Plan(input, output)
	if err != nil {
		return err
	}
	t.logger.Info("converting", "input", input, "output", output, "plan", plan.String())

	dir := filepath.Dir(output)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	var temps []string
	defer func() {
		for _, p := range temps {
			os.Remove(p)
		}
	}()

	src := input
	for _, hop := range plan.Hops {
		codec, ok := t.codecs[hop.Tool]
		if !ok || codec == nil {
			return fmt.Errorf("converting %s: %s: %w", hop, hop.Tool, ErrNotFound)
		}

		dst := filepath.Join(dir, "soundmod-"+uuid.NewString()+"."+string(hop.To))
		temps = append(temps, dst)

		if err := codec.Transcode(ctx, src, dst); err != nil {
			return fmt.Errorf("converting %s: %w", hop, err)
		}
		t.logger.Debug("hop done", "hop", hop.String(), "tool", hop.Tool.String())
		src = dst
	}

	if err := os.Rename(src, output); err != nil {
		return fmt.Errorf("moving result into place: %w", err)
	}
	return nil
}
