// Package pck implements access to the Wwise File Package (AKPK) format.
//
// A package starts with a header holding a language map, a sound bank table,
// a stream table and, in newer versions, an external source table. The
// header is followed by a body of concatenated stream bytes; each stream table
// entry addresses its stream by offset and length from the start of the file.
package pck

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf16"
)

// Magic is the four-character code every package starts with.
const Magic = "AKPK"

// The number of bytes preceding the header body: magic and header length.
const PreambleBytes = 8

// The number of bytes used to describe a single stream table entry.
const StreamEntryBytes = 20

var (
	// ErrMalformed is returned when the bytes do not describe a valid package.
	ErrMalformed = errors.New("malformed package")

	// ErrEmbeddedBanks is returned when repacking a package whose bank table
	// is not empty.
	ErrEmbeddedBanks = errors.New("package embeds sound banks")

	// ErrBlockSize is returned when repacking an entry that is addressed in
	// blocks larger than one byte.
	ErrBlockSize = errors.New("unsupported stream block size")
)

// Header is the structural model of a package header.
type Header struct {
	// HeaderLength is the number of header bytes after the preamble. It is
	// recomputed when the header is written.
	HeaderLength uint32
	Version      uint32

	// LanguageMap, BankTable and ExternalTable are kept as raw bytes and
	// written back verbatim.
	LanguageMap   []byte
	BankTable     []byte
	Entries       []StreamEntry
	ExternalTable []byte

	// HasExternalTable records whether the header declares the size of an
	// external table, even an empty one.
	HasExternalTable bool
}

// StreamEntry locates one stream in the package body.
type StreamEntry struct {
	ID        uint32
	BlockSize uint32
	Length    uint32
	// Offset is counted in BlockSize units from the start of the file.
	Offset     uint32
	LanguageID uint32
}

// Language is one decoded entry of the language map.
type Language struct {
	ID   uint32
	Name string
}

// DataStart returns the file offset at which the body begins, the first
// valid stream offset.
func (h *Header) DataStart() uint32 {
	return h.HeaderLength + PreambleBytes
}

// ByteOffset returns the offset of the entry in bytes.
func (e StreamEntry) ByteOffset() int64 {
	return int64(e.Offset) * int64(max(e.BlockSize, 1))
}

// BankCount returns the number of sound banks in the bank table.
func (h *Header) BankCount() int {
	if len(h.BankTable) < 4 {
		return 0
	}
	return int(binary.LittleEndian.Uint32(h.BankTable))
}

// Entry returns the stream entry with the given id.
func (h *Header) Entry(id uint32) (StreamEntry, bool) {
	for _, e := range h.Entries {
		if e.ID == id {
			return e, true
		}
	}
	return StreamEntry{}, false
}

// IDs returns the stream ids in table order.
func (h *Header) IDs() []uint32 {
	ids := make([]uint32, len(h.Entries))
	for i, e := range h.Entries {
		ids[i] = e.ID
	}
	return ids
}

// Languages decodes the language map. Names are stored as NUL terminated
// UTF-16LE strings at offsets relative to the start of the map.
func (h *Header) Languages() ([]Language, error) {
	m := h.LanguageMap
	if len(m) < 4 {
		return nil, nil
	}

	count := binary.LittleEndian.Uint32(m)
	if uint64(count)*8+4 > uint64(len(m)) {
		return nil, fmt.Errorf("language map declares %d entries in %d bytes: %w", count, len(m), ErrMalformed)
	}

	langs := make([]Language, count)
	for i := range langs {
		e := m[4+i*8:]
		offset := binary.LittleEndian.Uint32(e[0:4])
		if uint64(offset) >= uint64(len(m)) {
			return nil, fmt.Errorf("language %d name offset %d out of range: %w", i, offset, ErrMalformed)
		}
		langs[i] = Language{
			ID:   binary.LittleEndian.Uint32(e[4:8]),
			Name: decodeUTF16(m[offset:]),
		}
	}
	return langs, nil
}

func decodeUTF16(b []byte) string {
	var u []uint16
	for i := 0; i+1 < len(b); i += 2 {
		c := binary.LittleEndian.Uint16(b[i:])
		if c == 0 {
			break
		}
		u = append(u, c)
	}
	return string(utf16.Decode(u))
}

// ReadHeader parses a package header from r. On return r is positioned at
// the start of the body.
func ReadHeader(r io.Reader) (*Header, error) {
	var pre [PreambleBytes]byte
	if _, err := io.ReadFull(r, pre[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("truncated preamble: %w", ErrMalformed)
		}
		return nil, err
	}
	if string(pre[:4]) != Magic {
		return nil, fmt.Errorf("expected %s magic, got %q: %w", Magic, pre[:4], ErrMalformed)
	}

	length := binary.LittleEndian.Uint32(pre[4:])
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("truncated header of %d bytes: %w", length, ErrMalformed)
		}
		return nil, err
	}

	h, err := decodeHeader(body)
	if err != nil {
		return nil, err
	}
	h.HeaderLength = length
	return h, nil
}

// DecodeHeader parses a package header held in memory.
func DecodeHeader(data []byte) (*Header, error) {
	return ReadHeader(bytes.NewReader(data))
}

func decodeHeader(body []byte) (*Header, error) {
	if len(body) < 16 {
		return nil, fmt.Errorf("header body of %d bytes: %w", len(body), ErrMalformed)
	}

	h := &Header{Version: binary.LittleEndian.Uint32(body[0:4])}
	langSize := uint64(binary.LittleEndian.Uint32(body[4:8]))
	bankSize := uint64(binary.LittleEndian.Uint32(body[8:12]))
	streamSize := uint64(binary.LittleEndian.Uint32(body[12:16]))
	var extSize uint64

	pos := uint64(16)
	tables := langSize + bankSize + streamSize
	switch {
	case pos+tables == uint64(len(body)):
	case len(body) >= 20:
		extSize = uint64(binary.LittleEndian.Uint32(body[16:20]))
		pos = 20
		if pos+tables+extSize != uint64(len(body)) {
			return nil, fmt.Errorf("table sizes %d+%d+%d+%d do not fill header of %d bytes: %w",
				langSize, bankSize, streamSize, extSize, len(body), ErrMalformed)
		}
		h.HasExternalTable = true
	default:
		return nil, fmt.Errorf("table sizes exceed header of %d bytes: %w", len(body), ErrMalformed)
	}

	next := func(n uint64) []byte {
		b := body[pos : pos+n]
		pos += n
		return b
	}
	h.LanguageMap = next(langSize)
	h.BankTable = next(bankSize)
	streams := next(streamSize)
	h.ExternalTable = next(extSize)

	entries, err := decodeStreamTable(streams)
	if err != nil {
		return nil, err
	}
	h.Entries = entries
	return h, nil
}

func decodeStreamTable(b []byte) ([]StreamEntry, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("stream table of %d bytes: %w", len(b), ErrMalformed)
	}

	count := binary.LittleEndian.Uint32(b)
	if uint64(count)*StreamEntryBytes+4 != uint64(len(b)) {
		return nil, fmt.Errorf("stream table declares %d entries in %d bytes: %w", count, len(b), ErrMalformed)
	}

	entries := make([]StreamEntry, count)
	for i := range entries {
		e := b[4+i*StreamEntryBytes:]
		entries[i] = StreamEntry{
			ID:         binary.LittleEndian.Uint32(e[0:4]),
			BlockSize:  binary.LittleEndian.Uint32(e[4:8]),
			Length:     binary.LittleEndian.Uint32(e[8:12]),
			Offset:     binary.LittleEndian.Uint32(e[12:16]),
			LanguageID: binary.LittleEndian.Uint32(e[16:20]),
		}
	}
	return entries, nil
}

// Len returns the header body length implied by the tables.
func (h *Header) Len() int {
	n := 16 + len(h.LanguageMap) + len(h.BankTable) + 4 + StreamEntryBytes*len(h.Entries) + len(h.ExternalTable)
	if h.HasExternalTable {
		n += 4
	}
	return n
}

// Encode returns the serialized header.
func (h *Header) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := h.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo writes the preamble and header to w and updates HeaderLength.
func (h *Header) WriteTo(w io.Writer) (int64, error) {
	length := h.Len()
	if uint64(length) > math.MaxUint32 {
		return 0, fmt.Errorf("header of %d bytes: %w", length, ErrMalformed)
	}
	if len(h.ExternalTable) > 0 && !h.HasExternalTable {
		return 0, fmt.Errorf("external table without size field: %w", ErrMalformed)
	}
	h.HeaderLength = uint32(length)

	buf := make([]byte, 0, PreambleBytes+length)
	buf = append(buf, Magic...)
	buf = binary.LittleEndian.AppendUint32(buf, h.HeaderLength)
	buf = binary.LittleEndian.AppendUint32(buf, h.Version)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(h.LanguageMap)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(h.BankTable)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(4+StreamEntryBytes*len(h.Entries)))
	if h.HasExternalTable {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(h.ExternalTable)))
	}
	buf = append(buf, h.LanguageMap...)
	buf = append(buf, h.BankTable...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(h.Entries)))
	for _, e := range h.Entries {
		buf = binary.LittleEndian.AppendUint32(buf, e.ID)
		buf = binary.LittleEndian.AppendUint32(buf, e.BlockSize)
		buf = binary.LittleEndian.AppendUint32(buf, e.Length)
		buf = binary.LittleEndian.AppendUint32(buf, e.Offset)
		buf = binary.LittleEndian.AppendUint32(buf, e.LanguageID)
	}
	buf = append(buf, h.ExternalTable...)

	n, err := w.Write(buf)
	return int64(n), err
}

// Clone returns a deep copy of the header.
func (h *Header) Clone() *Header {
	c := *h
	c.LanguageMap = bytes.Clone(h.LanguageMap)
	c.BankTable = bytes.Clone(h.BankTable)
	c.ExternalTable = bytes.Clone(h.ExternalTable)
	c.Entries = append([]StreamEntry(nil), h.Entries...)
	return &c
}
