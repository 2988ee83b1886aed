package bnk

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// sectionHeader is the on-disk header preceding every section payload.
type sectionHeader struct {
	Magic  uint32
	Length uint32
}

// Read parses a SoundBank from r until EOF.
func Read(r io.Reader) (*Bank, error) {
	bank := &Bank{}
	var index *Index

	for i := 0; ; i++ {
		var hdr sectionHeader
		err := binary.Read(r, binary.LittleEndian, &hdr)
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("section %d: truncated header: %w", i, ErrMalformed)
		}
		if err != nil {
			return nil, fmt.Errorf("section %d: read header: %w", i, err)
		}

		payload := make([]byte, hdr.Length)
		if _, err := io.ReadFull(r, payload); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, fmt.Errorf("section %d (%s): truncated payload: %w", i, MagicString(hdr.Magic), ErrMalformed)
			}
			return nil, fmt.Errorf("section %d (%s): read payload: %w", i, MagicString(hdr.Magic), err)
		}

		p, err := decodePayload(hdr.Magic, payload, index)
		if err != nil {
			return nil, fmt.Errorf("section %d (%s): %w", i, MagicString(hdr.Magic), err)
		}
		if x, ok := p.(*Index); ok {
			index = x
		}
		bank.Sections = append(bank.Sections, &Section{Magic: hdr.Magic, Payload: p})
	}

	return bank, nil
}

// Decode parses a SoundBank held in memory.
func Decode(data []byte) (*Bank, error) {
	return Read(bytes.NewReader(data))
}

func decodePayload(magic uint32, payload []byte, index *Index) (Payload, error) {
	switch magic {
	case MagicBKHD:
		return decodeBankHeader(payload)
	case MagicDIDX:
		return decodeIndex(payload)
	case MagicDATA:
		return decodeData(payload, index)
	default:
		return &Opaque{Raw: payload}, nil
	}
}

func decodeBankHeader(payload []byte) (*BankHeader, error) {
	if len(payload) < BankHeaderBytes {
		return nil, fmt.Errorf("header payload is %d bytes: %w", len(payload), ErrMalformed)
	}
	return &BankHeader{
		Version: binary.LittleEndian.Uint32(payload[0:4]),
		ID:      binary.LittleEndian.Uint32(payload[4:8]),
		Extra:   payload[BankHeaderBytes:],
	}, nil
}

func decodeIndex(payload []byte) (*Index, error) {
	if len(payload)%IndexEntryBytes != 0 {
		return nil, fmt.Errorf("index payload of %d bytes is not a multiple of %d: %w",
			len(payload), IndexEntryBytes, ErrMalformed)
	}

	count := len(payload) / IndexEntryBytes
	x := &Index{Entries: make([]IndexEntry, count)}
	seen := make(map[uint32]struct{}, count)
	for i := range x.Entries {
		e := payload[i*IndexEntryBytes:]
		entry := IndexEntry{
			ID:     binary.LittleEndian.Uint32(e[0:4]),
			Offset: binary.LittleEndian.Uint32(e[4:8]),
			Length: binary.LittleEndian.Uint32(e[8:12]),
		}
		if _, dup := seen[entry.ID]; dup {
			return nil, fmt.Errorf("stream %d is indexed twice: %w", entry.ID, ErrMalformed)
		}
		seen[entry.ID] = struct{}{}
		x.Entries[i] = entry
	}
	return x, nil
}

// decodeData splits the DATA payload into blocks using the preceding index.
// Bytes between blocks are alignment padding and are not kept. An empty
// payload is a header-only bank: the index is kept and no block is read.
func decodeData(payload []byte, index *Index) (*Data, error) {
	if len(payload) == 0 {
		return &Data{}, nil
	}
	if index == nil {
		return nil, fmt.Errorf("data section without a preceding index: %w", ErrMalformed)
	}

	d := &Data{Blocks: make([][]byte, len(index.Entries))}
	for i, e := range index.Entries {
		end := uint64(e.Offset) + uint64(e.Length)
		if end > uint64(len(payload)) {
			return nil, fmt.Errorf("stream %d spans [%d,%d) beyond data length %d: %w",
				e.ID, e.Offset, end, len(payload), ErrMalformed)
		}
		d.Blocks[i] = payload[e.Offset:end]
	}
	return d, nil
}

// Encode returns the serialized bank.
func (b *Bank) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := b.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo writes the full bank to w.
//
// When the DATA section holds blocks, the DIDX offsets and lengths are
// recomputed from them so the two sections always agree. An empty DATA section
// leaves the index untouched.
func (b *Bank) WriteTo(w io.Writer) (written int64, err error) {
	if err := b.layout(); err != nil {
		return 0, err
	}

	for _, s := range b.Sections {
		n, err := writeSection(w, s)
		written += n
		if err != nil {
			return written, fmt.Errorf("write %s section: %w", MagicString(s.Magic), err)
		}
	}
	return written, nil
}

// layout assigns aligned offsets to the index entries from the data blocks.
func (b *Bank) layout() error {
	data := b.Data()
	if data == nil || len(data.Blocks) == 0 {
		return nil
	}

	index := b.Index()
	if index == nil {
		return fmt.Errorf("%d data blocks without an index: %w", len(data.Blocks), ErrCountMismatch)
	}
	if len(index.Entries) != len(data.Blocks) {
		return fmt.Errorf("%d index entries, %d data blocks: %w",
			len(index.Entries), len(data.Blocks), ErrCountMismatch)
	}
	if uint64(data.Len()) > math.MaxUint32 {
		return fmt.Errorf("data section of %d bytes exceeds 4GiB: %w", data.Len(), ErrMalformed)
	}

	offset := 0
	for i, block := range data.Blocks {
		if i > 0 {
			offset = align(offset)
		}
		index.Entries[i].Offset = uint32(offset)
		index.Entries[i].Length = uint32(len(block))
		offset += len(block)
	}
	return nil
}

func writeSection(w io.Writer, s *Section) (int64, error) {
	length := s.Payload.Len()
	if uint64(length) > math.MaxUint32 {
		return 0, fmt.Errorf("payload of %d bytes: %w", length, ErrMalformed)
	}

	hdr := sectionHeader{Magic: s.Magic, Length: uint32(length)}
	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return 0, err
	}
	written := int64(SectionHeaderBytes)

	n, err := writePayload(w, s.Payload)
	written += n
	return written, err
}

func writePayload(w io.Writer, p Payload) (int64, error) {
	switch p := p.(type) {
	case *BankHeader:
		if err := binary.Write(w, binary.LittleEndian, [2]uint32{p.Version, p.ID}); err != nil {
			return 0, err
		}
		n, err := w.Write(p.Extra)
		return int64(BankHeaderBytes + n), err

	case *Index:
		buf := make([]byte, p.Len())
		for i, e := range p.Entries {
			o := buf[i*IndexEntryBytes:]
			binary.LittleEndian.PutUint32(o[0:4], e.ID)
			binary.LittleEndian.PutUint32(o[4:8], e.Offset)
			binary.LittleEndian.PutUint32(o[8:12], e.Length)
		}
		n, err := w.Write(buf)
		return int64(n), err

	case *Data:
		var written int64
		var pad [DataAlignment]byte
		for i, block := range p.Blocks {
			if i > 0 {
				if r := int(written) % DataAlignment; r != 0 {
					n, err := w.Write(pad[:DataAlignment-r])
					written += int64(n)
					if err != nil {
						return written, err
					}
				}
			}
			n, err := w.Write(block)
			written += int64(n)
			if err != nil {
				return written, err
			}
		}
		return written, nil

	case *Opaque:
		n, err := w.Write(p.Raw)
		return int64(n), err

	default:
		return 0, fmt.Errorf("unsupported payload type %T", p)
	}
}
