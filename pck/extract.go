package pck

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/thadeu/go-soundmod/loose"
)

// Info is a read-only summary of a package on disk.
type Info struct {
	Header *Header
	Size   int64

	// HasPayloadBody is false for a header-only export, whose file ends
	// where the body would begin.
	HasPayloadBody bool
}

// Load reads the header of the package at path.
func Load(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h, err := ReadHeader(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}

	return &Info{
		Header:         h,
		Size:           st.Size(),
		HasPayloadBody: st.Size() > int64(h.DataStart()),
	}, nil
}

// Extract writes every stream of the package at path to dir as <id>.<ext>.
//
// Extraction is best effort: a stream that cannot be read or written does
// not stop the others, files already written are kept, and the failures are
// returned joined.
func Extract(path, dir, ext string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h, err := ReadHeader(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var (
		written []string
		errs    []error
	)
	for _, e := range h.Entries {
		target, err := extractEntry(f, e, dir, ext)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		written = append(written, target)
	}
	return written, errors.Join(errs...)
}

func extractEntry(r io.ReaderAt, e StreamEntry, dir, ext string) (string, error) {
	src := io.NewSectionReader(r, e.ByteOffset(), int64(e.Length))
	return loose.WriteFrom(dir, e.ID, ext, func(w io.Writer) error {
		n, err := io.Copy(w, src)
		if err != nil {
			return err
		}
		if n != int64(e.Length) {
			return fmt.Errorf("read %d of %d bytes at offset %d: %w", n, e.Length, e.ByteOffset(), io.ErrUnexpectedEOF)
		}
		return nil
	})
}
