package bnk

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/thadeu/go-soundmod/loose"
)

type EditorTestSuite struct {
	suite.Suite
	editor *Editor
	dir    string
}

func TestEditorSuite(t *testing.T) {
	suite.Run(t, new(EditorTestSuite))
}

func (s *EditorTestSuite) SetupTest() {
	s.editor = NewEditor(nil)
	s.dir = s.T().TempDir()
}

func (s *EditorTestSuite) writeLoose(id uint32, data []byte) {
	_, err := loose.Write(s.dir, id, loose.DefaultExt, data)
	require.NoError(s.T(), err)
}

func (s *EditorTestSuite) magics(b *Bank) []string {
	var out []string
	for _, sec := range b.Sections {
		out = append(out, MagicString(sec.Magic))
	}
	return out
}

func (s *EditorTestSuite) TestFilterNilKeepsEverything() {
	bank := newTestBank()

	s.editor.FilterSections(bank, nil)

	assert.Equal(s.T(), []string{"BKHD", "DIDX", "DATA", "HIRC", "STID"}, s.magics(bank))
	assert.Len(s.T(), bank.Data().Blocks, 3)
}

func (s *EditorTestSuite) TestFilterEmptiesDataAndRemovesOthers() {
	bank := newTestBank()

	s.editor.FilterSections(bank, DefaultKeep)

	assert.Equal(s.T(), []string{"BKHD", "DIDX", "DATA", "HIRC"}, s.magics(bank))
	assert.Empty(s.T(), bank.Data().Blocks)
	assert.Len(s.T(), bank.Index().Entries, 3)
}

func (s *EditorTestSuite) TestFilterEmptyAllowListKeepsOnlyEmptyData() {
	bank := newTestBank()

	s.editor.FilterSections(bank, []uint32{})

	assert.Equal(s.T(), []string{"DATA"}, s.magics(bank))
	assert.Empty(s.T(), bank.Data().Blocks)
}

func (s *EditorTestSuite) TestFilterPreservesCountInvariant() {
	allowLists := [][]uint32{
		{MagicDIDX, MagicDATA},
		{MagicDIDX},
		{MagicBKHD},
		{MagicDATA},
		{},
	}

	for _, keep := range allowLists {
		bank := newTestBank()
		s.editor.FilterSections(bank, keep)

		index, data := bank.Index(), bank.Data()
		if index != nil && data != nil && len(data.Blocks) > 0 {
			assert.Len(s.T(), data.Blocks, len(index.Entries))
		}
		if index != nil {
			_, err := bank.Encode()
			assert.NoError(s.T(), err, "filtered bank must stay writable for %v", keep)
		}
	}
}

func (s *EditorTestSuite) TestOverrideFillsBlocksInIndexOrder() {
	bank := newTestBank()
	s.editor.FilterSections(bank, DefaultKeep)

	s.writeLoose(100, []byte("hundred"))
	s.writeLoose(200, []byte("two hundred"))
	s.writeLoose(300, []byte("three hundred"))
	s.writeLoose(999, []byte("unrelated"))
	files, err := loose.Scan(s.dir, loose.DefaultExt)
	require.NoError(s.T(), err)

	err = s.editor.OverrideData(bank, files)
	require.NoError(s.T(), err)

	blocks := bank.Data().Blocks
	require.Len(s.T(), blocks, 3)
	for i, id := range bank.Index().IDs() {
		want, err := os.ReadFile(filepath.Join(s.dir, loose.Name(id, loose.DefaultExt)))
		require.NoError(s.T(), err)
		assert.Equal(s.T(), want, blocks[i], "block %d must hold stream %d", i, id)
	}
}

func (s *EditorTestSuite) TestOverrideMissingSourceLeavesDataUntouched() {
	bank := newTestBank()
	s.editor.FilterSections(bank, DefaultKeep)

	s.writeLoose(100, []byte("hundred"))
	s.writeLoose(300, []byte("three hundred"))
	files, err := loose.Scan(s.dir, loose.DefaultExt)
	require.NoError(s.T(), err)

	err = s.editor.OverrideData(bank, files)
	require.ErrorIs(s.T(), err, loose.ErrMissingSource)
	assert.Contains(s.T(), err.Error(), "stream 200")
	assert.Empty(s.T(), bank.Data().Blocks)
}

func (s *EditorTestSuite) TestOverrideRequiresEmptyData() {
	bank := newTestBank()

	err := s.editor.OverrideData(bank, loose.Set{})
	require.ErrorIs(s.T(), err, ErrDataNotEmpty)
	assert.Len(s.T(), bank.Data().Blocks, 3)
}

func (s *EditorTestSuite) TestOverrideWithoutDataIsNoop() {
	bank := newTestBank()
	s.editor.FilterSections(bank, []uint32{MagicBKHD, MagicDIDX})
	bank.Sections = bank.Sections[:2] // drop the emptied DATA section

	err := s.editor.OverrideData(bank, loose.Set{})
	require.NoError(s.T(), err)
	assert.Nil(s.T(), bank.Data())
}

func (s *EditorTestSuite) TestOverrideThenEncodeRoundTrips() {
	bank := newTestBank()
	s.editor.FilterSections(bank, nil)
	streams, err := s.editor.ExtractStreams(bank)
	require.NoError(s.T(), err)
	for _, st := range streams {
		s.writeLoose(st.ID, st.Data)
	}

	fresh := newTestBank()
	s.editor.FilterSections(fresh, []uint32{MagicBKHD, MagicDIDX, MagicHIRC, MagicOf("STID")})
	files, err := loose.Scan(s.dir, loose.DefaultExt)
	require.NoError(s.T(), err)
	require.NoError(s.T(), s.editor.OverrideData(fresh, files))

	want, err := newTestBank().Encode()
	require.NoError(s.T(), err)
	got, err := fresh.Encode()
	require.NoError(s.T(), err)
	assert.Equal(s.T(), want, got)
}

func (s *EditorTestSuite) TestFilteredBankDecodesAndRefills() {
	original, err := newTestBank().Encode()
	require.NoError(s.T(), err)
	bank, err := Decode(original)
	require.NoError(s.T(), err)
	streams, err := s.editor.ExtractStreams(bank)
	require.NoError(s.T(), err)
	for _, st := range streams {
		s.writeLoose(st.ID, st.Data)
	}

	s.editor.FilterSections(bank, DefaultKeep)
	headerOnly, err := bank.Encode()
	require.NoError(s.T(), err)

	reloaded, err := Decode(headerOnly)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []string{"BKHD", "DIDX", "DATA", "HIRC"}, s.magics(reloaded))
	assert.Equal(s.T(), []uint32{300, 100, 200}, reloaded.Index().IDs())
	assert.Empty(s.T(), reloaded.Data().Blocks)

	files, err := loose.Scan(s.dir, loose.DefaultExt)
	require.NoError(s.T(), err)
	require.NoError(s.T(), s.editor.OverrideData(reloaded, files))
	assert.Equal(s.T(), bytes.Repeat([]byte{0xBB}, 20), reloaded.Data().Blocks[1])
}

func (s *EditorTestSuite) TestExtractStreamsPairsByPosition() {
	bank := newTestBank()

	streams, err := s.editor.ExtractStreams(bank)
	require.NoError(s.T(), err)

	require.Len(s.T(), streams, 3)
	assert.Equal(s.T(), uint32(300), streams[0].ID)
	assert.Equal(s.T(), bytes.Repeat([]byte{0xAA}, 5), streams[0].Data)
	assert.Equal(s.T(), uint32(100), streams[1].ID)
	assert.Equal(s.T(), uint32(200), streams[2].ID)
}

func (s *EditorTestSuite) TestExtractStreamsNoDataSection() {
	bank := newTestBank()
	bank.Sections = append(bank.Sections[:2], bank.Sections[3:]...)

	_, err := s.editor.ExtractStreams(bank)
	require.ErrorIs(s.T(), err, ErrNoDataSection)
}

func (s *EditorTestSuite) TestExtractStreamsCountMismatch() {
	bank := newTestBank()
	bank.Index().Entries = bank.Index().Entries[:1]

	_, err := s.editor.ExtractStreams(bank)
	require.ErrorIs(s.T(), err, ErrCountMismatch)
}

func TestNewStreamTableRejectsMismatch(t *testing.T) {
	_, err := NewStreamTable([]uint32{1, 2}, [][]byte{{1}})
	require.ErrorIs(t, err, ErrCountMismatch)

	table, err := NewStreamTable([]uint32{1, 2}, [][]byte{{1}, {2}})
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())
	assert.Equal(t, []uint32{1, 2}, table.IDs())
	assert.Equal(t, [][]byte{{1}, {2}}, table.Blocks())
}
