package soundmod

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ToolKind identifies one of the external programs.
type ToolKind int

const (
	FFmpegTool ToolKind = iota
	WwiseConsoleTool
	VgmstreamTool
)

var toolNames = [...]string{
	FFmpegTool:       "ffmpeg",
	WwiseConsoleTool: "WwiseConsole",
	VgmstreamTool:    "vgmstream",
}

func (k ToolKind) String() string {
	if int(k) < len(toolNames) {
		return toolNames[k]
	}
	return fmt.Sprintf("ToolKind(%d)", int(k))
}

// ToolKinds returns every tool kind.
func ToolKinds() []ToolKind {
	return []ToolKind{FFmpegTool, WwiseConsoleTool, VgmstreamTool}
}

// ParseToolKind resolves a tool name, ignoring case. "wwise" is accepted
// for WwiseConsole.
func ParseToolKind(name string) (ToolKind, error) {
	switch strings.ToLower(name) {
	case "ffmpeg":
		return FFmpegTool, nil
	case "wwise", "wwiseconsole":
		return WwiseConsoleTool, nil
	case "vgmstream", "vgmstream-cli":
		return VgmstreamTool, nil
	}
	return 0, fmt.Errorf("unknown tool %q", name)
}

// livenessTimeout bounds a single liveness check.
const livenessTimeout = 10 * time.Second

// livenessFunc reports whether the executable at path is the expected tool.
type livenessFunc func(ctx context.Context, path string) bool

// exitsWith accepts an executable that exits with code when run with args.
func exitsWith(code int, args ...string) livenessFunc {
	return func(ctx context.Context, path string) bool {
		err := exec.CommandContext(ctx, path, args...).Run()
		if code == 0 {
			return err == nil
		}
		var exitErr *exec.ExitError
		return errors.As(err, &exitErr) && exitErr.ExitCode() == code
	}
}

// starts accepts an executable that can be started with args, whatever its
// exit code.
func starts(args ...string) livenessFunc {
	return func(ctx context.Context, path string) bool {
		err := exec.CommandContext(ctx, path, args...).Run()
		var exitErr *exec.ExitError
		return err == nil || (errors.As(err, &exitErr) && exitErr.ExitCode() >= 0)
	}
}

// Output is the captured output of a finished process.
type Output struct {
	Stdout []byte
	Stderr []byte
}

// Tool is an external executable with a configurable path.
//
// Every invocation holds the tool's lock until the process exits, so
// concurrent callers of the same tool run one after another while different
// tools run in parallel. Setting the path takes the same lock.
type Tool struct {
	kind   ToolKind
	envVar string
	subdir string
	binary string
	alive  livenessFunc

	monitor *ResourceMonitor
	logger  *slog.Logger

	mu   sync.Mutex
	path string
}

func newTool(kind ToolKind, envVar, subdir, binary string, alive livenessFunc, monitor *ResourceMonitor, logger *slog.Logger) *Tool {
	if monitor == nil {
		monitor = NewResourceMonitor()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Tool{
		kind:    kind,
		envVar:  envVar,
		subdir:  subdir,
		binary:  binary,
		alive:   alive,
		monitor: monitor,
		logger:  logger.With("tool", kind.String()),
	}
}

// Kind returns the tool kind.
func (t *Tool) Kind() ToolKind { return t.kind }

// Name returns the display name of the tool.
func (t *Tool) Name() string { return t.kind.String() }

// SetPath configures the executable. An empty path unconfigures the tool.
func (t *Tool) SetPath(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.path = path
}

// Path returns the configured executable, or "" when undetected.
func (t *Tool) Path() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.path
}

// Candidates lists the locations tried by Locate, in order: the tool's
// environment variable, the executable's directory, the working directory
// and finally the bare name resolved through PATH.
func (t *Tool) Candidates() []string {
	var out []string
	if t.envVar != "" {
		if p := os.Getenv(t.envVar); p != "" {
			out = append(out, p)
		}
	}
	if exe, err := os.Executable(); err == nil {
		out = append(out, filepath.Join(filepath.Dir(exe), t.subdir, t.binary))
	}
	if cwd, err := os.Getwd(); err == nil {
		out = append(out, filepath.Join(cwd, t.subdir, t.binary))
	}
	return append(out, t.binary)
}

// Locate returns the first candidate that passes the tool's liveness check.
func (t *Tool) Locate(ctx context.Context) (string, error) {
	for _, candidate := range t.Candidates() {
		pctx, cancel := context.WithTimeout(ctx, livenessTimeout)
		ok := t.alive(pctx, candidate)
		cancel()
		if ok {
			return candidate, nil
		}
		t.logger.Debug("candidate rejected", "path", candidate)
	}
	return "", fmt.Errorf("%s: %w", t.Name(), ErrNotFound)
}

// AutoDetect locates the tool and configures the path found.
func (t *Tool) AutoDetect(ctx context.Context) (string, error) {
	path, err := t.Locate(ctx)
	if err != nil {
		return "", err
	}
	t.SetPath(path)
	t.logger.Info("tool detected", "path", path)
	return path, nil
}

// Check verifies that the configured path passes the liveness check.
func (t *Tool) Check(ctx context.Context) error {
	path := t.Path()
	if path == "" {
		return fmt.Errorf("%s: %w", t.Name(), ErrNotFound)
	}
	pctx, cancel := context.WithTimeout(ctx, livenessTimeout)
	defer cancel()
	if !t.alive(pctx, path) {
		return fmt.Errorf("%s at %s: %w", t.Name(), path, ErrNotFound)
	}
	return nil
}

// Run executes the tool with args and waits for it to exit.
func (t *Tool) Run(ctx context.Context, args ...string) (*Output, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.run(ctx, nil, args)
}

// locked runs fn while holding the tool's lock, for operations made of
// several invocations.
func (t *Tool) locked(fn func() error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn()
}

// run executes the tool. The caller holds t.mu. When stdout is not nil the
// process writes to it directly and Output.Stdout stays empty.
func (t *Tool) run(ctx context.Context, stdout io.Writer, args []string) (*Output, error) {
	if t.path == "" {
		return nil, fmt.Errorf("%s: %w", t.Name(), ErrNotFound)
	}

	var outBuf, errBuf bytes.Buffer
	sink := &outputWriter{w: &outBuf}
	if stdout != nil {
		sink.w = stdout
	}
	cmd := exec.CommandContext(ctx, t.path, args...)
	cmd.Stdout = sink
	cmd.Stderr = &errBuf

	t.logger.Debug("running", "path", t.path, "args", args)
	if err := cmd.Start(); err != nil {
		return nil, &ExecError{Tool: t.Name(), Err: err}
	}

	pid := cmd.Process.Pid
	t.monitor.TrackProcess(t.kind, pid)
	err := cmd.Wait()
	t.monitor.UntrackProcess(pid)

	out := &Output{Stdout: outBuf.Bytes(), Stderr: errBuf.Bytes()}
	if err == nil {
		return out, nil
	}

	t.monitor.RecordFailure(t.kind)
	if ctx.Err() != nil {
		return out, fmt.Errorf("%s: %w", t.Name(), ctx.Err())
	}
	// A closed pipe can kill the process, so the writer's error wins over
	// the exit status.
	if sink.err != nil {
		return out, fmt.Errorf("%s: writing output: %w", t.Name(), sink.err)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return out, &CommandError{
			Tool:   t.Name(),
			Code:   exitErr.ExitCode(),
			Stdout: string(out.Stdout),
			Stderr: string(out.Stderr),
		}
	}
	return out, fmt.Errorf("%s: waiting for process: %w", t.Name(), err)
}

// outputWriter remembers the first error of the writer receiving stdout.
type outputWriter struct {
	w   io.Writer
	err error
}

func (o *outputWriter) Write(p []byte) (int, error) {
	n, err := o.w.Write(p)
	if err != nil && o.err == nil {
		o.err = err
	}
	return n, err
}
