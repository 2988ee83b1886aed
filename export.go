package soundmod

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/opencontainers/go-digest"

	"github.com/thadeu/go-soundmod/bnk"
	"github.com/thadeu/go-soundmod/loose"
	"github.com/thadeu/go-soundmod/pck"
)

// stagingRoot holds one fresh staging directory per export in progress.
func (w *Workspace) stagingRoot() string {
	return filepath.Join(w.tempDir, "export")
}

// stagingLabel names the staging directories of a source container by a
// short digest of its path.
func stagingLabel(src string) string {
	abs, err := filepath.Abs(src)
	if err != nil {
		abs = src
	}
	return digest.FromString(abs).Encoded()[:8]
}

// ExportBank writes bank to exportPath with some streams replaced.
//
// The streams of the bank file at src are extracted into a staging
// directory, each file in overrides is copied over the stream of its id, and
// the bank is saved with the staging directory as loose source. The data
// section of bank is rebuilt from staging, so it is emptied first.
func (w *Workspace) ExportBank(src string, bank *bnk.Bank, exportPath string, overrides map[uint32]string) error {
	var ids []uint32
	if index := bank.Index(); index != nil {
		ids = index.IDs()
	}
	if err := checkOverrides(ids, overrides); err != nil {
		return err
	}

	stage, err := w.prepareStaging(src)
	if err != nil {
		return err
	}
	defer os.RemoveAll(stage)

	if _, err := w.ExtractBank(src, stage); err != nil {
		return fmt.Errorf("staging %s: %w", src, err)
	}
	if err := applyOverrides(stage, overrides); err != nil {
		return err
	}

	if data := bank.Data(); data != nil {
		data.Blocks = nil
	}
	return w.SaveBank(exportPath, bank, stage)
}

// ExportPackage writes the package described by info to exportPath with
// some streams replaced, the same way ExportBank does for banks.
func (w *Workspace) ExportPackage(src string, info *pck.Info, exportPath string, overrides map[uint32]string) error {
	if err := checkOverrides(info.Header.IDs(), overrides); err != nil {
		return err
	}

	stage, err := w.prepareStaging(src)
	if err != nil {
		return err
	}
	defer os.RemoveAll(stage)

	if _, err := w.ExtractPackage(src, stage); err != nil {
		return fmt.Errorf("staging %s: %w", src, err)
	}
	if err := applyOverrides(stage, overrides); err != nil {
		return err
	}

	return w.SavePackage(info.Header, exportPath, stage)
}

// prepareStaging creates an empty directory owned by a single export, so
// concurrent exports of the same source never share one.
func (w *Workspace) prepareStaging(src string) (string, error) {
	root := w.stagingRoot()
	if err := os.MkdirAll(root, 0o750); err != nil {
		return "", fmt.Errorf("creating staging directory: %w", err)
	}
	stage, err := os.MkdirTemp(root, stagingLabel(src)+"-*")
	if err != nil {
		return "", fmt.Errorf("creating staging directory: %w", err)
	}
	w.logger.Debug("staging export", "source", src, "dir", stage)
	return stage, nil
}

func checkOverrides(ids []uint32, overrides map[uint32]string) error {
	for id := range overrides {
		if !slices.Contains(ids, id) {
			return fmt.Errorf("stream %d: %w", id, ErrUnknownStream)
		}
	}
	return nil
}

func applyOverrides(stage string, overrides map[uint32]string) error {
	for id, path := range overrides {
		if err := copyLoose(stage, id, path); err != nil {
			return fmt.Errorf("replacing stream %d: %w", id, err)
		}
	}
	return nil
}

func copyLoose(stage string, id uint32, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	_, err = loose.WriteFrom(stage, id, loose.DefaultExt, func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	})
	return err
}
