package pck

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"github.com/thadeu/go-soundmod/internal/fileutil"
	"github.com/thadeu/go-soundmod/loose"
)

// Repacker rewrites packages, optionally replacing their body with loose
// stream files.
type Repacker struct {
	logger *slog.Logger
}

// NewRepacker creates a Repacker that reads loose files named <id>.wem. A nil
// logger discards output.
func NewRepacker(logger *slog.Logger) *Repacker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Repacker{logger: logger}
}

// Repack writes h to outputPath.
//
// With an empty looseDir only the header is written. Otherwise every entry
// is pointed at the bytes of its loose file: offsets are assigned in entry
// order starting at DataStart, and the body is the loose files concatenated
// in the same order. Loose files are resolved before anything is written;
// h is updated only once the output is complete.
//
// The output is written to a temporary file and renamed into place, so a
// failed call never leaves a partial file at outputPath.
func (r *Repacker) Repack(h *Header, outputPath, looseDir string) error {
	if looseDir == "" {
		err := fileutil.WriteAtomic(outputPath, func(w io.Writer) error {
			_, err := h.WriteTo(w)
			return err
		})
		if err != nil {
			return err
		}
		r.logger.Debug("wrote package header", "path", outputPath, "streams", len(h.Entries))
		return nil
	}

	if n := h.BankCount(); n > 0 {
		return fmt.Errorf("%d banks in bank table: %w", n, ErrEmbeddedBanks)
	}

	files, err := loose.Scan(looseDir, loose.DefaultExt)
	if err != nil {
		return err
	}

	next, sources, err := r.layout(h, files)
	if err != nil {
		return err
	}

	err = fileutil.WriteAtomic(outputPath, func(w io.Writer) error {
		if _, err := next.WriteTo(w); err != nil {
			return err
		}
		for i, e := range next.Entries {
			if err := copySource(w, sources[i], e.Length); err != nil {
				return fmt.Errorf("stream %d: %w", e.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	*h = *next
	r.logger.Debug("repacked package", "path", outputPath, "streams", len(h.Entries), "dataStart", h.DataStart())
	return nil
}

// layout returns a copy of h with offsets and lengths taken from files, and
// the source path of every entry.
func (r *Repacker) layout(h *Header, files loose.Set) (*Header, []string, error) {
	next := h.Clone()
	if err := files.Require(next.IDs()); err != nil {
		return nil, nil, err
	}

	sources := make([]string, len(next.Entries))
	offset := uint64(next.Len()) + PreambleBytes
	for i := range next.Entries {
		e := &next.Entries[i]
		if e.BlockSize > 1 {
			return nil, nil, fmt.Errorf("stream %d has block size %d: %w", e.ID, e.BlockSize, ErrBlockSize)
		}

		f, _ := files.Lookup(e.ID)
		if f.Size > math.MaxUint32 || offset > math.MaxUint32 {
			return nil, nil, fmt.Errorf("stream %d at offset %d with %d bytes exceeds package limits: %w",
				e.ID, offset, f.Size, ErrMalformed)
		}

		e.Offset = uint32(offset)
		e.Length = uint32(f.Size)
		sources[i] = f.Path
		offset += uint64(f.Size)
	}
	return next, sources, nil
}

func copySource(w io.Writer, path string, length uint32) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := io.Copy(w, io.LimitReader(f, int64(length)))
	if err != nil {
		return err
	}
	if n != int64(length) {
		return fmt.Errorf("%s shrank to %d of %d bytes: %w", path, n, length, io.ErrUnexpectedEOF)
	}
	return nil
}
