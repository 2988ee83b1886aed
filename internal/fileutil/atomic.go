// Package fileutil holds small filesystem helpers shared by the container
// writers.
package fileutil

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteAtomic streams the output of fn into target.
//
// The content is written to a temp file in the target's directory and renamed
// over target only when fn and every flush/close succeed. On failure the temp
// file is removed and target is left as it was, so a partial file never
// appears at target.
func WriteAtomic(target string, fn func(w io.Writer) error) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".soundmod-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	bw := bufio.NewWriterSize(tmp, 64*1024)
	if err := fn(bw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// WriteFileAtomic writes data to target through WriteAtomic.
func WriteFileAtomic(target string, data []byte) error {
	return WriteAtomic(target, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}
