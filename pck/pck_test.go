package pck

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// languageMap builds a map with a single language named name.
func languageMap(id uint32, name string) []byte {
	var b []byte
	b = binary.LittleEndian.AppendUint32(b, 1)
	b = binary.LittleEndian.AppendUint32(b, 12)
	b = binary.LittleEndian.AppendUint32(b, id)
	for _, r := range name {
		b = binary.LittleEndian.AppendUint16(b, uint16(r))
	}
	return append(b, 0, 0)
}

func newTestHeader() *Header {
	return &Header{
		Version:     1,
		LanguageMap: languageMap(0, "sfx"),
		BankTable:   []byte{0, 0, 0, 0},
		Entries: []StreamEntry{
			{ID: 30, BlockSize: 1, Length: 4},
			{ID: 10, BlockSize: 1, Length: 7},
			{ID: 20, BlockSize: 1, Length: 2},
		},
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	h := newTestHeader()

	data, err := h.Encode()
	require.NoError(t, err)
	assert.Equal(t, "AKPK", string(data[:4]))
	assert.Len(t, data, int(h.DataStart()))

	got, err := DecodeHeader(data)
	require.NoError(t, err)
	assert.Equal(t, h.HeaderLength, got.HeaderLength)
	assert.Equal(t, h.LanguageMap, got.LanguageMap)
	assert.Equal(t, h.BankTable, got.BankTable)
	assert.Equal(t, h.Entries, got.Entries)
	assert.False(t, got.HasExternalTable)
	assert.Equal(t, []uint32{30, 10, 20}, got.IDs())

	again, err := got.Encode()
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestHeaderWithExternalTable(t *testing.T) {
	h := newTestHeader()
	h.HasExternalTable = true
	h.ExternalTable = []byte{1, 0, 0, 0, 9, 9, 9, 9}

	data, err := h.Encode()
	require.NoError(t, err)

	got, err := DecodeHeader(data)
	require.NoError(t, err)
	assert.True(t, got.HasExternalTable)
	assert.Equal(t, h.ExternalTable, got.ExternalTable)
	assert.Equal(t, h.Entries, got.Entries)
}

func TestHeaderEmptyExternalTableSurvives(t *testing.T) {
	h := newTestHeader()
	h.HasExternalTable = true

	data, err := h.Encode()
	require.NoError(t, err)

	got, err := DecodeHeader(data)
	require.NoError(t, err)
	assert.True(t, got.HasExternalTable)
	assert.Empty(t, got.ExternalTable)
}

func TestLanguages(t *testing.T) {
	h := newTestHeader()

	langs, err := h.Languages()
	require.NoError(t, err)
	assert.Equal(t, []Language{{ID: 0, Name: "sfx"}}, langs)

	h.LanguageMap = nil
	langs, err = h.Languages()
	require.NoError(t, err)
	assert.Empty(t, langs)
}

func TestEntryLookup(t *testing.T) {
	h := newTestHeader()

	e, ok := h.Entry(10)
	require.True(t, ok)
	assert.Equal(t, uint32(7), e.Length)

	_, ok = h.Entry(99)
	assert.False(t, ok)
}

func TestByteOffset(t *testing.T) {
	assert.Equal(t, int64(100), StreamEntry{Offset: 100}.ByteOffset())
	assert.Equal(t, int64(100), StreamEntry{Offset: 100, BlockSize: 1}.ByteOffset())
	assert.Equal(t, int64(3200), StreamEntry{Offset: 100, BlockSize: 32}.ByteOffset())
}

func TestBankCount(t *testing.T) {
	h := newTestHeader()
	assert.Equal(t, 0, h.BankCount())

	h.BankTable = binary.LittleEndian.AppendUint32(nil, 2)
	assert.Equal(t, 2, h.BankCount())
}

func TestCloneIsDeep(t *testing.T) {
	h := newTestHeader()
	c := h.Clone()

	c.Entries[0].Offset = 999
	c.LanguageMap[0] = 0xFF

	assert.Zero(t, h.Entries[0].Offset)
	assert.Equal(t, byte(1), h.LanguageMap[0])
}

func TestDecodeHeaderMalformed(t *testing.T) {
	valid, err := newTestHeader().Encode()
	require.NoError(t, err)

	withLength := func(data []byte, length uint32) []byte {
		out := bytes.Clone(data)
		binary.LittleEndian.PutUint32(out[4:], length)
		return out
	}
	withStreamCount := func(data []byte, count uint32) []byte {
		out := bytes.Clone(data)
		h := newTestHeader()
		at := PreambleBytes + 16 + len(h.LanguageMap) + len(h.BankTable)
		binary.LittleEndian.PutUint32(out[at:], count)
		return out
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad magic", append([]byte("KPKA"), valid[4:]...)},
		{"truncated header", valid[:len(valid)-3]},
		{"header too short", withLength([]byte("AKPK\x00\x00\x00\x00\x01\x00\x00\x00"), 4)},
		{"sizes overflow header", withLength(append(bytes.Clone(valid), 0, 0), uint32(len(valid)-PreambleBytes+2))},
		{"stream count mismatch", withStreamCount(valid, 5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeHeader(tt.data)
			require.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestWriteRejectsUndeclaredExternalTable(t *testing.T) {
	h := newTestHeader()
	h.ExternalTable = []byte{1}

	_, err := h.Encode()
	require.ErrorIs(t, err, ErrMalformed)
}
