package bnk

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/thadeu/go-soundmod/loose"
)

// Editor performs structural edits on a loaded Bank. It holds no state other
// than its logger; every call works on the bank it is given.
type Editor struct {
	logger *slog.Logger
}

// NewEditor creates an Editor. A nil logger discards output.
func NewEditor(logger *slog.Logger) *Editor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Editor{logger: logger}
}

// FilterSections keeps only the sections whose identifier is in keep.
//
// A DATA section that is not kept is emptied but stays in place, so the index
// and data sections never disagree on structure; every other section that is
// not kept is removed. A nil keep leaves the bank unchanged.
func (e *Editor) FilterSections(b *Bank, keep []uint32) *Bank {
	if keep == nil {
		return b
	}

	kept := b.Sections[:0]
	for _, s := range b.Sections {
		if slices.Contains(keep, s.Magic) {
			kept = append(kept, s)
			continue
		}
		if d, ok := s.Payload.(*Data); ok {
			e.logger.Debug("emptying data section", "blocks", len(d.Blocks))
			d.Blocks = nil
			kept = append(kept, s)
			continue
		}
		e.logger.Debug("removing section", "magic", MagicString(s.Magic))
	}
	clear(b.Sections[len(kept):])
	b.Sections = kept
	return b
}

// OverrideData fills the DATA section from loose files, one block per index
// entry in index order.
//
// A bank without an index or data section is left unchanged. The data
// section must be empty (see FilterSections); otherwise ErrDataNotEmpty is
// returned. Every id is resolved and read before the bank is touched, so a
// missing source leaves the data section as it was.
func (e *Editor) OverrideData(b *Bank, files loose.Set) error {
	index, data := b.Index(), b.Data()
	if index == nil || data == nil {
		e.logger.Warn("bank has no index or data section, skipping data override",
			"hasIndex", index != nil, "hasData", data != nil)
		return nil
	}
	if len(data.Blocks) > 0 {
		return fmt.Errorf("%d blocks present: %w", len(data.Blocks), ErrDataNotEmpty)
	}

	ids := index.IDs()
	if err := files.Require(ids); err != nil {
		return err
	}

	blocks := make([][]byte, 0, len(ids))
	for _, id := range ids {
		block, err := files.Read(id)
		if err != nil {
			return err
		}
		blocks = append(blocks, block)
	}

	table, err := NewStreamTable(ids, blocks)
	if err != nil {
		return err
	}
	data.Blocks = append(data.Blocks, table.Blocks()...)

	e.logger.Debug("overrode data section", "streams", table.Len())
	return nil
}

// ExtractStreams returns every stream of the bank paired with its index id.
// A bank without an index section yields an empty id list, so a non-empty
// data section then fails with ErrCountMismatch.
func (e *Editor) ExtractStreams(b *Bank) ([]Stream, error) {
	data := b.Data()
	if data == nil {
		return nil, ErrNoDataSection
	}

	var ids []uint32
	if index := b.Index(); index != nil {
		ids = index.IDs()
	}

	table, err := NewStreamTable(ids, data.Blocks)
	if err != nil {
		return nil, err
	}
	return table.Streams(), nil
}
