// Package bnk implements access to the Wwise SoundBank file format.
//
// A SoundBank is an ordered list of sections. Each section starts with an
// 8-byte header (four-character identifier and payload length) followed by its
// payload. The DIDX section indexes the streams held by the DATA section; the
// i-th DIDX entry describes the i-th DATA block. Every other section is kept
// as an opaque byte slice and written back verbatim.
package bnk

import (
	"encoding/binary"
	"errors"
)

// The number of bytes used to describe the header of a section.
const SectionHeaderBytes = 8

// The number of bytes used to describe the known portion of a BKHD section.
const BankHeaderBytes = 8

// The number of bytes used to describe a single DIDX entry.
const IndexEntryBytes = 12

// DataAlignment is the alignment of every DATA block offset.
const DataAlignment = 16

// Section identifiers, as the little-endian u32 of their four characters.
const (
	MagicBKHD uint32 = 0x44484B42 // "BKHD"
	MagicDIDX uint32 = 0x58444944 // "DIDX"
	MagicDATA uint32 = 0x41544144 // "DATA"
	MagicHIRC uint32 = 0x43524948 // "HIRC"
)

// DefaultKeep is the section allow-list used when loading a bank for editing:
// the header, the index and the object hierarchy. DATA is emptied.
var DefaultKeep = []uint32{MagicBKHD, MagicDIDX, MagicHIRC}

var (
	// ErrMalformed is returned when the bytes do not describe a valid SoundBank.
	ErrMalformed = errors.New("malformed soundbank")

	// ErrCountMismatch is returned when the number of DIDX entries differs from
	// the number of DATA blocks.
	ErrCountMismatch = errors.New("index entry count does not match data block count")

	// ErrNoDataSection is returned when a bank has no DATA section.
	ErrNoDataSection = errors.New("soundbank has no data section")

	// ErrDataNotEmpty is returned when data is overridden on a bank whose DATA
	// section still holds blocks.
	ErrDataNotEmpty = errors.New("data section must be empty before override")
)

// MagicOf returns the section identifier for a four-character code.
// Codes shorter than four characters are zero padded; longer ones truncated.
func MagicOf(code string) uint32 {
	var b [4]byte
	copy(b[:], code)
	return binary.LittleEndian.Uint32(b[:])
}

// MagicString returns the four-character code of a section identifier.
func MagicString(magic uint32) string {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], magic)
	return string(b[:])
}

// Bank is the structural model of a SoundBank.
type Bank struct {
	Sections []*Section
}

// Section is a single SoundBank section.
type Section struct {
	Magic   uint32
	Payload Payload
}

// Payload is the content of a section: *BankHeader, *Index, *Data or *Opaque.
type Payload interface {
	// Len returns the encoded payload length in bytes, excluding the section
	// header.
	Len() int
}

// BankHeader is the BKHD payload.
type BankHeader struct {
	Version uint32
	ID      uint32
	// Extra holds the remainder of the payload, which depends on the version.
	Extra []byte
}

// Index is the DIDX payload.
type Index struct {
	Entries []IndexEntry
}

// IndexEntry locates one stream inside the DATA payload.
type IndexEntry struct {
	ID uint32
	// The number of bytes from the start of the DATA payload.
	Offset uint32
	Length uint32
}

// Data is the DATA payload: the encoded streams in index order.
type Data struct {
	Blocks [][]byte
}

// Opaque is the payload of any section this package does not interpret.
type Opaque struct {
	Raw []byte
}

func (h *BankHeader) Len() int { return BankHeaderBytes + len(h.Extra) }

func (x *Index) Len() int { return IndexEntryBytes * len(x.Entries) }

// Len returns the DATA payload length once blocks are laid out at aligned
// offsets.
func (d *Data) Len() int {
	n := 0
	for i, b := range d.Blocks {
		if i > 0 {
			n = align(n)
		}
		n += len(b)
	}
	return n
}

func (o *Opaque) Len() int { return len(o.Raw) }

// IDs returns the stream ids of the index in order.
func (x *Index) IDs() []uint32 {
	ids := make([]uint32, len(x.Entries))
	for i, e := range x.Entries {
		ids[i] = e.ID
	}
	return ids
}

// Header returns the BKHD payload, or nil.
func (b *Bank) Header() *BankHeader {
	for _, s := range b.Sections {
		if h, ok := s.Payload.(*BankHeader); ok {
			return h
		}
	}
	return nil
}

// Index returns the DIDX payload, or nil.
func (b *Bank) Index() *Index {
	for _, s := range b.Sections {
		if x, ok := s.Payload.(*Index); ok {
			return x
		}
	}
	return nil
}

// Data returns the DATA payload, or nil.
func (b *Bank) Data() *Data {
	for _, s := range b.Sections {
		if d, ok := s.Payload.(*Data); ok {
			return d
		}
	}
	return nil
}

// HasSection reports whether a section with the given identifier exists.
func (b *Bank) HasSection(magic uint32) bool {
	for _, s := range b.Sections {
		if s.Magic == magic {
			return true
		}
	}
	return false
}

func align(n int) int {
	if r := n % DataAlignment; r != 0 {
		return n + DataAlignment - r
	}
	return n
}
