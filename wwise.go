package soundmod

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/thadeu/go-soundmod/internal/fileutil"
)

const (
	// DefaultWwiseConversion is the conversion setting applied to external sources.
	DefaultWwiseConversion = "Vorbis Quality High"

	// DefaultWwisePlatform is the platform the temporary project targets. The
	// console writes converted files into a subdirectory of the same name.
	DefaultWwisePlatform = "Windows"

	wwiseProjectName = "SoundmodTemp"
)

// WwiseConsole encodes WAV files to wem through the Wwise authoring console.
//
// Conversions run inside a temporary Wwise project created on first use and
// reused until Close.
type WwiseConsole struct {
	*Tool
	conversion string
	platform   string
	tempDir    string

	// Guarded by Tool.mu.
	projectRoot string
	project     string
}

// NewWwiseConsole creates an unconfigured WwiseConsole adapter. The
// temporary project is created under tempDir, or the system temp directory
// when empty. The console has no stable version flag, so it counts as alive
// when "-h" starts at all.
func NewWwiseConsole(conversion, platform, tempDir string, monitor *ResourceMonitor, logger *slog.Logger) *WwiseConsole {
	if conversion == "" {
		conversion = DefaultWwiseConversion
	}
	if platform == "" {
		platform = DefaultWwisePlatform
	}
	return &WwiseConsole{
		Tool:       newTool(WwiseConsoleTool, "", "", "WwiseConsole", starts("-h"), monitor, logger),
		conversion: conversion,
		platform:   platform,
		tempDir:    tempDir,
	}
}

// Transcode encodes the WAV file input to the wem file output.
//
// The console writes into <dir>/<platform>/<input name>.wem for an output
// directory it is given; that file is moved to output. The lock is held
// across project creation and conversion.
func (w *WwiseConsole) Transcode(ctx context.Context, input, output string) error {
	return w.locked(func() error {
		project, err := w.acquireProject(ctx)
		if err != nil {
			return err
		}

		// Stage next to output so the final rename stays on one filesystem.
		staging, err := os.MkdirTemp(filepath.Dir(output), ".wwise-*")
		if err != nil {
			return err
		}
		defer os.RemoveAll(staging)

		list := filepath.Join(staging, "sources.wsources")
		if err := writeSourceList(list, input, w.conversion); err != nil {
			return err
		}

		_, err = w.run(ctx, nil, []string{
			"convert-external-source", project,
			"--platform", w.platform,
			"--source-file", list,
			"--output", staging,
		})
		if err != nil {
			return err
		}

		stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
		expected := filepath.Join(staging, w.platform, stem+".wem")
		if _, err := os.Stat(expected); err != nil {
			return fmt.Errorf("%s: %w", filepath.Join(w.platform, stem+".wem"), ErrOutputNotFound)
		}
		return os.Rename(expected, output)
	})
}

// acquireProject returns the temporary project, creating it when needed.
// The caller holds the tool's lock.
func (w *WwiseConsole) acquireProject(ctx context.Context) (string, error) {
	if w.project != "" {
		if _, err := os.Stat(w.project); err == nil {
			return w.project, nil
		}
		w.logger.Warn("temporary project vanished, recreating", "path", w.project)
		os.RemoveAll(w.projectRoot)
		w.project, w.projectRoot = "", ""
	}

	root, err := os.MkdirTemp(w.tempDir, "wwise-project-*")
	if err != nil {
		return "", fmt.Errorf("creating project directory: %w", err)
	}
	project := filepath.Join(root, wwiseProjectName, wwiseProjectName+".wproj")

	_, err = w.run(ctx, nil, []string{"create-new-project", project, "--platform", w.platform, "--quiet"})
	if err != nil {
		os.RemoveAll(root)
		return "", fmt.Errorf("creating temporary project: %w", err)
	}

	w.project, w.projectRoot = project, root
	w.logger.Debug("created temporary project", "path", project)
	return project, nil
}

// Close removes the temporary project.
func (w *WwiseConsole) Close() error {
	return w.locked(func() error {
		if w.projectRoot == "" {
			return nil
		}
		err := os.RemoveAll(w.projectRoot)
		w.project, w.projectRoot = "", ""
		return err
	})
}

// sourceList is the .wsources document listing external sources to convert.
type sourceList struct {
	XMLName       xml.Name      `xml:"ExternalSourcesList"`
	SchemaVersion int           `xml:"SchemaVersion,attr"`
	Root          string        `xml:"Root,attr"`
	Sources       []sourceEntry `xml:"Source"`
}

type sourceEntry struct {
	Path       string `xml:"Path,attr"`
	Conversion string `xml:"Conversion,attr"`
}

func writeSourceList(path, input, conversion string) error {
	abs, err := filepath.Abs(input)
	if err != nil {
		return err
	}

	doc := sourceList{
		SchemaVersion: 1,
		Root:          filepath.Dir(abs),
		Sources:       []sourceEntry{{Path: filepath.Base(abs), Conversion: conversion}},
	}
	data, err := xml.MarshalIndent(doc, "", "\t")
	if err != nil {
		return fmt.Errorf("encoding source list: %w", err)
	}
	return fileutil.WriteFileAtomic(path, append([]byte(xml.Header), data...))
}
