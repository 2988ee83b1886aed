package soundmod

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/thadeu/go-soundmod/bnk"
	"github.com/thadeu/go-soundmod/internal/fileutil"
	"github.com/thadeu/go-soundmod/loose"
	"github.com/thadeu/go-soundmod/loudness"
	"github.com/thadeu/go-soundmod/pck"
)

// Workspace is the entry point for editing SoundBanks and packages and for
// transcoding audio. It owns the three tool adapters and a temp directory.
//
// Container operations keep no state between calls and are safe for
// concurrent use. Transcodes serialize per tool.
type Workspace struct {
	logger  *slog.Logger
	monitor *ResourceMonitor
	pool    *Pool

	ffmpeg    *FFmpeg
	wwise     *WwiseConsole
	vgmstream *Vgmstream

	transcoder *Transcoder
	editor     *bnk.Editor
	repacker   *pck.Repacker

	tempDir     string
	ownsTempDir bool

	batchMaxFailures  int
	batchResetTimeout time.Duration
}

// NewWorkspace creates a Workspace. Tools without a configured path are
// auto-detected; a tool that cannot be found is logged and left
// unconfigured until SetToolPath.
func NewWorkspace(ctx context.Context, opts Options) (*Workspace, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	monitor := opts.Monitor
	if monitor == nil {
		monitor = NewResourceMonitor()
	}

	tempDir, owns := opts.TempDir, false
	if tempDir == "" {
		dir, err := os.MkdirTemp("", "soundmod-*")
		if err != nil {
			return nil, fmt.Errorf("creating temp directory: %w", err)
		}
		tempDir, owns = dir, true
	} else if err := os.MkdirAll(tempDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating temp directory: %w", err)
	}

	w := &Workspace{
		logger:      logger,
		monitor:     monitor,
		pool:        NewPoolWithLimit(opts.MaxWorkers),
		ffmpeg:      NewFFmpeg(opts.FFmpegLogLevel, monitor, logger),
		wwise:       NewWwiseConsole(opts.WwiseConversion, opts.WwisePlatform, tempDir, monitor, logger),
		vgmstream:   NewVgmstream(monitor, logger),
		editor:      bnk.NewEditor(logger),
		repacker:    pck.NewRepacker(logger),
		tempDir:     tempDir,
		ownsTempDir: owns,

		batchMaxFailures:  opts.BatchMaxFailures,
		batchResetTimeout: opts.BatchResetTimeout,
	}
	w.transcoder = NewTranscoder(map[ToolKind]Codec{
		FFmpegTool:       w.ffmpeg,
		WwiseConsoleTool: w.wwise,
		VgmstreamTool:    w.vgmstream,
	}, logger)

	for _, kind := range ToolKinds() {
		t := w.tool(kind)
		if path := opts.toolPath(kind); path != "" {
			t.SetPath(path)
			continue
		}
		if opts.SkipDetect {
			continue
		}
		if _, err := t.AutoDetect(ctx); err != nil {
			logger.Error("tool not detected, set its path to enable it", "tool", kind.String(), "error", err)
		}
	}
	return w, nil
}

// TempDir returns the workspace temp directory.
func (w *Workspace) TempDir() string { return w.tempDir }

func (w *Workspace) tool(kind ToolKind) *Tool {
	switch kind {
	case FFmpegTool:
		return w.ffmpeg.Tool
	case WwiseConsoleTool:
		return w.wwise.Tool
	case VgmstreamTool:
		return w.vgmstream.Tool
	}
	return nil
}

func (w *Workspace) lookupTool(kind ToolKind) (*Tool, error) {
	t := w.tool(kind)
	if t == nil {
		return nil, fmt.Errorf("%s: %w", kind, ErrNotFound)
	}
	return t, nil
}

// LoadBank reads the SoundBank at path, keeping only the sections in keep.
// See bnk.Editor.FilterSections; a nil keep loads everything.
func (w *Workspace) LoadBank(path string, keep []uint32) (*bnk.Bank, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bank, err := bnk.Read(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return w.editor.FilterSections(bank, keep), nil
}

// SaveBank writes bank to path. With a looseDir the data section is first
// filled from <id>.wem files in that directory, which requires it to be
// empty. The file is replaced atomically.
func (w *Workspace) SaveBank(path string, bank *bnk.Bank, looseDir string) error {
	if looseDir != "" {
		files, err := loose.Scan(looseDir, loose.DefaultExt)
		if err != nil {
			return err
		}
		if err := w.editor.OverrideData(bank, files); err != nil {
			return err
		}
	}

	err := fileutil.WriteAtomic(path, func(out io.Writer) error {
		_, err := bank.WriteTo(out)
		return err
	})
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	w.logger.Info("saved bank", "path", path, "sections", len(bank.Sections))
	return nil
}

// ExtractBank writes every stream of the SoundBank at path into dir as
// <id>.wem and returns the files written. Extraction is best effort: failed
// streams are reported together and written files are kept.
func (w *Workspace) ExtractBank(path, dir string) ([]string, error) {
	bank, err := w.LoadBank(path, nil)
	if err != nil {
		return nil, err
	}
	streams, err := w.editor.ExtractStreams(bank)
	if err != nil {
		return nil, fmt.Errorf("extracting %s: %w", path, err)
	}

	var (
		written []string
		errs    []error
	)
	for _, s := range streams {
		target, err := loose.Write(dir, s.ID, loose.DefaultExt, s.Data)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		written = append(written, target)
	}
	w.logger.Info("extracted bank", "path", path, "streams", len(written), "failed", len(errs))
	return written, errors.Join(errs...)
}

// LoadPackage reads the header of the package at path.
func (w *Workspace) LoadPackage(path string) (*pck.Info, error) {
	return pck.Load(path)
}

// SavePackage writes header to outputPath, with the streams in looseDir as
// body when given. See pck.Repacker.Repack.
func (w *Workspace) SavePackage(header *pck.Header, outputPath, looseDir string) error {
	if err := w.repacker.Repack(header, outputPath, looseDir); err != nil {
		return fmt.Errorf("writing %s: %w", outputPath, err)
	}
	w.logger.Info("saved package", "path", outputPath, "streams", len(header.Entries), "repacked", looseDir != "")
	return nil
}

// ExtractPackage writes every stream of the package at path into dir as
// <id>.wem. Like ExtractBank it is best effort.
func (w *Workspace) ExtractPackage(path, dir string) ([]string, error) {
	written, err := pck.Extract(path, dir, loose.DefaultExt)
	w.logger.Info("extracted package", "path", path, "streams", len(written))
	return written, err
}

// SetToolPath configures the executable of a tool.
func (w *Workspace) SetToolPath(kind ToolKind, path string) error {
	t, err := w.lookupTool(kind)
	if err != nil {
		return err
	}
	t.SetPath(path)
	w.logger.Info("tool path set", "tool", kind.String(), "path", path)
	return nil
}

// ToolPath returns the configured executable of a tool, "" when undetected.
func (w *Workspace) ToolPath(kind ToolKind) string {
	if t := w.tool(kind); t != nil {
		return t.Path()
	}
	return ""
}

// AutoDetectTool locates a tool and configures the path found.
func (w *Workspace) AutoDetectTool(ctx context.Context, kind ToolKind) (string, error) {
	t, err := w.lookupTool(kind)
	if err != nil {
		return "", err
	}
	return t.AutoDetect(ctx)
}

// CheckTools runs the liveness check of every tool and reports those that
// are unconfigured or whose configured executable no longer answers.
func (w *Workspace) CheckTools(ctx context.Context) error {
	var errs []error
	for _, kind := range ToolKinds() {
		if err := w.tool(kind).Check(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Config returns the current settings in their persisted form.
func (w *Workspace) Config() Config {
	c := Config{
		Tools: ToolPaths{
			FFmpeg:       w.ToolPath(FFmpegTool),
			WwiseConsole: w.ToolPath(WwiseConsoleTool),
			Vgmstream:    w.ToolPath(VgmstreamTool),
		},
		Workers: w.pool.Size(),
	}
	if !w.ownsTempDir {
		c.TempDir = w.tempDir
	}
	return c
}

// AutoTranscode converts input to output. See Transcoder.AutoTranscode.
func (w *Workspace) AutoTranscode(ctx context.Context, input, output string) error {
	return w.transcoder.AutoTranscode(ctx, input, output)
}

// Plan returns the conversion steps AutoTranscode would take.
func (w *Workspace) Plan(input, output string) (*Plan, error) {
	return w.transcoder.Plan(input, output)
}

// TranscodeTemp converts input into a new file of the given format in the
// workspace temp directory and returns its path.
func (w *Workspace) TranscodeTemp(ctx context.Context, input string, format Format) (string, error) {
	output := filepath.Join(w.tempDir, uuid.NewString()+"."+string(format))
	if err := w.AutoTranscode(ctx, input, output); err != nil {
		return "", err
	}
	return output, nil
}

// Job is one conversion of a batch.
type Job struct {
	Input  string
	Output string
}

// JobResult is the outcome of a Job.
type JobResult struct {
	Job
	Err error
}

// BatchTranscode runs jobs concurrently, bounded by the worker pool. A
// failed job does not cancel the others, but after too many consecutive
// failures the remaining jobs fail with ErrCircuitOpen without running. The
// results are in job order.
func (w *Workspace) BatchTranscode(ctx context.Context, jobs []Job) []JobResult {
	results := make([]JobResult, len(jobs))
	breaker := NewCircuitBreaker(w.batchMaxFailures, w.batchResetTimeout)

	var g errgroup.Group
	for i, job := range jobs {
		results[i].Job = job
		g.Go(func() error {
			if err := w.pool.Acquire(ctx); err != nil {
				results[i].Err = err
				return nil
			}
			defer w.pool.Release()

			results[i].Err = breaker.Call(func() error {
				return w.AutoTranscode(ctx, job.Input, job.Output)
			})
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Preview decodes a stream and writes WAV bytes to out for playback.
func (w *Workspace) Preview(ctx context.Context, input string, out io.Writer) error {
	if err := w.vgmstream.Stream(ctx, input, out); err != nil {
		return fmt.Errorf("previewing %s: %w", input, err)
	}
	return nil
}

// Loudness measures the file at path. Formats other than wav are first
// converted into the temp directory.
func (w *Workspace) Loudness(ctx context.Context, path string) (*loudness.Info, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	if format != FormatWAV {
		tmp, err := w.TranscodeTemp(ctx, path, FormatWAV)
		if err != nil {
			return nil, err
		}
		defer os.Remove(tmp)
		path = tmp
	}
	return loudness.Measure(path)
}

// Stats returns tool usage statistics and the batch pool counters.
func (w *Workspace) Stats() MonitorStats {
	stats := w.monitor.GetStats()
	stats.Workers = w.pool.Stats()
	return stats
}

// Close removes the Wwise project and, when the workspace created it, the
// temp directory.
func (w *Workspace) Close() error {
	err := w.wwise.Close()
	if w.ownsTempDir {
		err = errors.Join(err, os.RemoveAll(w.tempDir))
	}
	return err
}
