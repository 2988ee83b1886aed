// Package loose handles loose stream files: standalone files on disk named by
// the numeric id of the stream they hold, "<id>.<ext>".
//
// Loose files are the override source for rebuilding SoundBanks and Packages
// and the destination of stream extraction. A Set is enumerated fresh on every
// call; nothing is cached between calls.
package loose

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/thadeu/go-soundmod/internal/fileutil"
)

// DefaultExt is the extension of encoded Wwise streams.
const DefaultExt = "wem"

// ErrMissingSource is returned when a container references a stream id that
// has no loose file.
var ErrMissingSource = errors.New("missing loose source file")

// File is a single loose stream file.
type File struct {
	ID   uint32
	Path string
	Size int64
}

// Set maps stream ids to their loose files.
type Set map[uint32]File

// Name returns the loose file name for id, e.g. "1234.wem".
func Name(id uint32, ext string) string {
	return strconv.FormatUint(uint64(id), 10) + "." + strings.TrimPrefix(ext, ".")
}

// ParseName extracts the stream id from a loose file name. ok is false when
// name does not follow the "<id>.<ext>" convention for ext. The id must be
// written the way Name writes it, so "0123.wem" is rejected and cannot shadow
// "123.wem".
func ParseName(name, ext string) (id uint32, ok bool) {
	suffix := "." + strings.TrimPrefix(ext, ".")
	if len(name) <= len(suffix) || !strings.EqualFold(name[len(name)-len(suffix):], suffix) {
		return 0, false
	}

	stem := name[:len(name)-len(suffix)]
	n, err := strconv.ParseUint(stem, 10, 32)
	if err != nil || strconv.FormatUint(n, 10) != stem {
		return 0, false
	}
	return uint32(n), true
}

// Scan enumerates the loose files in dir with the given extension.
// Entries that are directories or do not follow the naming convention are
// ignored.
func Scan(dir, ext string) (Set, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan loose directory: %w", err)
	}

	set := make(Set, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id, ok := ParseName(e.Name(), ext)
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		if !info.Mode().IsRegular() {
			continue
		}
		set[id] = File{
			ID:   id,
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		}
	}
	return set, nil
}

// Lookup returns the loose file for id.
func (s Set) Lookup(id uint32) (File, error) {
	f, ok := s[id]
	if !ok {
		return File{}, fmt.Errorf("stream %d: %w", id, ErrMissingSource)
	}
	return f, nil
}

// Require checks that every id has a loose file. The first missing id is
// reported.
func (s Set) Require(ids []uint32) error {
	for _, id := range ids {
		if _, err := s.Lookup(id); err != nil {
			return err
		}
	}
	return nil
}

// IDs returns the ids in the set in ascending order.
func (s Set) IDs() []uint32 {
	ids := make([]uint32, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Read returns the full content of the loose file for id.
func (s Set) Read(id uint32) ([]byte, error) {
	f, err := s.Lookup(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read stream %d: %w", id, err)
	}
	return data, nil
}

// Write stores data as the loose file for id inside dir and returns its path.
func Write(dir string, id uint32, ext string, data []byte) (string, error) {
	return WriteFrom(dir, id, ext, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// WriteFrom stores the output of fn as the loose file for id inside dir and
// returns its path. The file is replaced atomically: when fn fails any
// previous file for id is left untouched.
func WriteFrom(dir string, id uint32, ext string, fn func(w io.Writer) error) (string, error) {
	path := filepath.Join(dir, Name(id, ext))
	if err := fileutil.WriteAtomic(path, fn); err != nil {
		return "", fmt.Errorf("write stream %d: %w", id, err)
	}
	return path, nil
}
