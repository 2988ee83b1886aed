package bnk

import "fmt"

// Stream is one encoded payload paired with the id that indexes it.
type Stream struct {
	ID   uint32
	Data []byte
}

// StreamTable pairs index ids with data blocks by position. It can only be
// built from sequences of equal length, so a table always satisfies the
// one-entry-per-block invariant of a SoundBank.
type StreamTable struct {
	streams []Stream
}

// NewStreamTable pairs ids[i] with blocks[i].
func NewStreamTable(ids []uint32, blocks [][]byte) (*StreamTable, error) {
	if len(ids) != len(blocks) {
		return nil, fmt.Errorf("%d ids, %d blocks: %w", len(ids), len(blocks), ErrCountMismatch)
	}

	t := &StreamTable{streams: make([]Stream, len(ids))}
	for i := range ids {
		t.streams[i] = Stream{ID: ids[i], Data: blocks[i]}
	}
	return t, nil
}

// Len returns the number of streams.
func (t *StreamTable) Len() int { return len(t.streams) }

// Streams returns the streams in index order.
func (t *StreamTable) Streams() []Stream {
	out := make([]Stream, len(t.streams))
	copy(out, t.streams)
	return out
}

// IDs returns the ids in index order.
func (t *StreamTable) IDs() []uint32 {
	ids := make([]uint32, len(t.streams))
	for i, s := range t.streams {
		ids[i] = s.ID
	}
	return ids
}

// Blocks returns the data blocks in index order.
func (t *StreamTable) Blocks() [][]byte {
	blocks := make([][]byte, len(t.streams))
	for i, s := range t.streams {
		blocks[i] = s.Data
	}
	return blocks
}
