package loose

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseName(t *testing.T) {
	tests := []struct {
		name   string
		ext    string
		wantID uint32
		wantOK bool
	}{
		{"1234.wem", "wem", 1234, true},
		{"1234.WEM", "wem", 1234, true},
		{"1234.wem", ".wem", 1234, true},
		{"4294967295.wem", "wem", 4294967295, true},
		{"4294967296.wem", "wem", 0, false},
		{"abc.wem", "wem", 0, false},
		{"1234.wav", "wem", 0, false},
		{".wem", "wem", 0, false},
		{"12.34.wem", "wem", 0, false},
		{"0.wem", "wem", 0, true},
		{"0123.wem", "wem", 0, false},
		{"00.wem", "wem", 0, false},
		{"+5.wem", "wem", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := ParseName(tt.name, tt.ext)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "10.wem"), []byte("aaaa"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2.wem"), []byte("bb"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "3.wav"), []byte("c"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("d"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "7.wem"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "010.wem"), []byte("shadow"), 0o644))

	set, err := Scan(dir, DefaultExt)
	require.NoError(t, err)

	assert.Equal(t, []uint32{2, 10}, set.IDs())
	assert.Equal(t, int64(4), set[10].Size)
	assert.Equal(t, filepath.Join(dir, "2.wem"), set[2].Path)

	data, err := set.Read(10)
	require.NoError(t, err)
	assert.Equal(t, "aaaa", string(data))
}

func TestScanMissingDirectory(t *testing.T) {
	_, err := Scan(filepath.Join(t.TempDir(), "missing"), DefaultExt)
	require.Error(t, err)
}

func TestRequire(t *testing.T) {
	set := Set{1: {ID: 1}, 2: {ID: 2}}

	assert.NoError(t, set.Require([]uint32{1, 2}))

	err := set.Require([]uint32{1, 3, 2})
	require.ErrorIs(t, err, ErrMissingSource)
	assert.Contains(t, err.Error(), "stream 3")
}

func TestWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")

	path, err := Write(dir, 42, "wem", []byte("data"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "42.wem"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}

func TestWriteFromFailureKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	_, err := Write(dir, 42, DefaultExt, []byte("previous"))
	require.NoError(t, err)

	_, err = WriteFrom(dir, 42, DefaultExt, func(w io.Writer) error {
		if _, err := w.Write([]byte("partial")); err != nil {
			return err
		}
		return io.ErrUnexpectedEOF
	})
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Contains(t, err.Error(), "stream 42")

	data, err := os.ReadFile(filepath.Join(dir, "42.wem"))
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must be removed")
}
