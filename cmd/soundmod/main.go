// Command soundmod edits Wwise SoundBanks and packages and converts audio
// through ffmpeg, vgmstream and WwiseConsole.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	soundmod "github.com/thadeu/go-soundmod"
	"github.com/thadeu/go-soundmod/bnk"
	"github.com/thadeu/go-soundmod/loudness"
)

const usage = `usage: soundmod [-config file] [-v] <command> [arguments]

commands:
  bank-info <bank>                       list sections and streams
  bank-extract <bank> <dir>              write every stream as <id>.wem
  bank-save [-keep list] <bank> <out> [dir]
                                         save, filling DATA from <dir>
  pck-info <pck>                         list languages and streams
  pck-extract <pck> <dir>                write every stream as <id>.wem
  pck-repack <pck> <out> [dir]           rebuild the body from <dir>
  transcode [-plan] <in> <out>           convert between formats
  batch <dir> <format> <files...>        convert files into <dir>
  loudness <file>                        peak and integrated loudness
  tools [-set kind=path]... [-save]      show, set or persist tool paths`

var errUsage = errors.New("invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err == nil {
		return
	}

	if errors.Is(err, errUsage) {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	log.SetFlags(0)
	log.Fatal(soundmod.Describe(err))
}

// command is one subcommand. Commands that convert audio need the external
// tools detected; the others skip detection.
type command struct {
	needsTools bool
	run        func(ctx context.Context, ws *soundmod.Workspace, args []string, out io.Writer) error
}

var commands = map[string]command{
	"bank-info":    {run: bankInfo},
	"bank-extract": {run: bankExtract},
	"bank-save":    {run: bankSave},
	"pck-info":     {run: pckInfo},
	"pck-extract":  {run: pckExtract},
	"pck-repack":   {run: pckRepack},
	"transcode":    {needsTools: true, run: transcode},
	"batch":        {needsTools: true, run: batch},
	"loudness":     {needsTools: true, run: measure},
	"tools":        {needsTools: true},
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	flagSet := flag.NewFlagSet("soundmod", flag.ContinueOnError)
	flagSet.SetOutput(stderr)

	configPath := flagSet.String("config", "", "config file (default: user config directory)")
	verbose := flagSet.Bool("v", false, "log debug output")

	if err := flagSet.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if flagSet.NArg() < 1 {
		return errUsage
	}

	name := flagSet.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, name)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	path, cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	opts := soundmod.DefaultOptions()
	cfg.Apply(&opts)
	opts.Logger = logger
	opts.SkipDetect = !cmd.needsTools

	ws, err := soundmod.NewWorkspace(ctx, opts)
	if err != nil {
		return err
	}
	defer ws.Close()

	if name == "tools" {
		return tools(ws, flagSet.Args()[1:], path, stdout)
	}
	return cmd.run(ctx, ws, flagSet.Args()[1:], stdout)
}

// loadConfig reads the config file at path, or at the default location when
// path is empty. A missing file yields an empty config.
func loadConfig(path string) (string, *soundmod.Config, error) {
	if path == "" {
		p, err := soundmod.DefaultConfigPath()
		if err != nil {
			return "", &soundmod.Config{}, nil
		}
		path = p
	}

	cfg, err := soundmod.LoadConfig(path)
	if errors.Is(err, os.ErrNotExist) {
		return path, &soundmod.Config{}, nil
	}
	if err != nil {
		return "", nil, err
	}
	return path, cfg, nil
}

func parseArgs(name string, args []string, min, max int, define func(*flag.FlagSet)) ([]string, error) {
	flagSet := flag.NewFlagSet(name, flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	if define != nil {
		define(flagSet)
	}
	if err := flagSet.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errUsage, name, err)
	}
	if n := flagSet.NArg(); n < min || (max >= 0 && n > max) {
		return nil, fmt.Errorf("%w: %s: wrong number of arguments", errUsage, name)
	}
	return flagSet.Args(), nil
}

func bankInfo(_ context.Context, ws *soundmod.Workspace, args []string, out io.Writer) error {
	args, err := parseArgs("bank-info", args, 1, 1, nil)
	if err != nil {
		return err
	}

	bank, err := ws.LoadBank(args[0], nil)
	if err != nil {
		return err
	}

	if h := bank.Header(); h != nil {
		fmt.Fprintf(out, "version %d, id %d\n", h.Version, h.ID)
	}
	for _, s := range bank.Sections {
		fmt.Fprintf(out, "%s\t%d bytes\n", bnk.MagicString(s.Magic), s.Payload.Len())
	}
	if index := bank.Index(); index != nil {
		for _, e := range index.Entries {
			fmt.Fprintf(out, "  %d\toffset %d\tlength %d\n", e.ID, e.Offset, e.Length)
		}
	}
	return nil
}

func bankExtract(_ context.Context, ws *soundmod.Workspace, args []string, out io.Writer) error {
	args, err := parseArgs("bank-extract", args, 2, 2, nil)
	if err != nil {
		return err
	}

	written, err := ws.ExtractBank(args[0], args[1])
	fmt.Fprintf(out, "extracted %d streams\n", len(written))
	return err
}

func bankSave(_ context.Context, ws *soundmod.Workspace, args []string, out io.Writer) error {
	var keep string
	args, err := parseArgs("bank-save", args, 2, 3, func(fs *flag.FlagSet) {
		fs.StringVar(&keep, "keep", "BKHD,DIDX,HIRC", "sections to keep; DATA is emptied when omitted")
	})
	if err != nil {
		return err
	}

	var magics []uint32
	for _, code := range strings.Split(keep, ",") {
		if code = strings.TrimSpace(code); code != "" {
			magics = append(magics, bnk.MagicOf(code))
		}
	}
	if magics == nil {
		magics = []uint32{}
	}

	bank, err := ws.LoadBank(args[0], magics)
	if err != nil {
		return err
	}

	var looseDir string
	if len(args) == 3 {
		looseDir = args[2]
	}
	if err := ws.SaveBank(args[1], bank, looseDir); err != nil {
		return err
	}
	fmt.Fprintf(out, "saved %s\n", args[1])
	return nil
}

func pckInfo(_ context.Context, ws *soundmod.Workspace, args []string, out io.Writer) error {
	args, err := parseArgs("pck-info", args, 1, 1, nil)
	if err != nil {
		return err
	}

	info, err := ws.LoadPackage(args[0])
	if err != nil {
		return err
	}

	h := info.Header
	fmt.Fprintf(out, "version %d, header %d bytes, body %t\n", h.Version, h.HeaderLength, info.HasPayloadBody)
	languages, err := h.Languages()
	if err != nil {
		return err
	}
	for _, l := range languages {
		fmt.Fprintf(out, "language %d\t%s\n", l.ID, l.Name)
	}
	for _, e := range h.Entries {
		fmt.Fprintf(out, "  %d\toffset %d\tlength %d\tlanguage %d\n", e.ID, e.ByteOffset(), e.Length, e.LanguageID)
	}
	return nil
}

func pckExtract(_ context.Context, ws *soundmod.Workspace, args []string, out io.Writer) error {
	args, err := parseArgs("pck-extract", args, 2, 2, nil)
	if err != nil {
		return err
	}

	written, err := ws.ExtractPackage(args[0], args[1])
	fmt.Fprintf(out, "extracted %d streams\n", len(written))
	return err
}

func pckRepack(_ context.Context, ws *soundmod.Workspace, args []string, out io.Writer) error {
	args, err := parseArgs("pck-repack", args, 2, 3, nil)
	if err != nil {
		return err
	}

	info, err := ws.LoadPackage(args[0])
	if err != nil {
		return err
	}

	var looseDir string
	if len(args) == 3 {
		looseDir = args[2]
	}
	if err := ws.SavePackage(info.Header, args[1], looseDir); err != nil {
		return err
	}
	fmt.Fprintf(out, "saved %s\n", args[1])
	return nil
}

func transcode(ctx context.Context, ws *soundmod.Workspace, args []string, out io.Writer) error {
	var planOnly bool
	args, err := parseArgs("transcode", args, 2, 2, func(fs *flag.FlagSet) {
		fs.BoolVar(&planOnly, "plan", false, "print the conversion steps without running them")
	})
	if err != nil {
		return err
	}

	if planOnly {
		plan, err := ws.Plan(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, plan)
		return nil
	}

	if err := ws.AutoTranscode(ctx, args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s\n", args[1])
	return nil
}

func batch(ctx context.Context, ws *soundmod.Workspace, args []string, out io.Writer) error {
	args, err := parseArgs("batch", args, 3, -1, nil)
	if err != nil {
		return err
	}

	format, err := soundmod.ParseFormat(args[1])
	if err != nil {
		return err
	}

	var jobs []soundmod.Job
	for _, input := range args[2:] {
		stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
		jobs = append(jobs, soundmod.Job{
			Input:  input,
			Output: filepath.Join(args[0], stem+"."+format.String()),
		})
	}

	var errs []error
	for _, r := range ws.BatchTranscode(ctx, jobs) {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Input, r.Err))
			continue
		}
		fmt.Fprintf(out, "wrote %s\n", r.Output)
	}
	return errors.Join(errs...)
}

func measure(ctx context.Context, ws *soundmod.Workspace, args []string, out io.Writer) error {
	args, err := parseArgs("loudness", args, 1, 1, nil)
	if err != nil {
		return err
	}

	info, err := ws.Loudness(ctx, args[0])
	if err != nil {
		return err
	}
	printLoudness(out, info)
	return nil
}

func printLoudness(out io.Writer, info *loudness.Info) {
	fmt.Fprintf(out, "peak %.2f dBFS\n", info.PeakDB)
	if info.LUFS != nil {
		fmt.Fprintf(out, "integrated %.2f LUFS\n", *info.LUFS)
	} else {
		fmt.Fprintln(out, "integrated n/a")
	}
	fmt.Fprintf(out, "%d Hz, %d channels, %s\n", info.SampleRate, info.Channels, info.Duration)
}

func tools(ws *soundmod.Workspace, args []string, configPath string, out io.Writer) error {
	var save bool
	paths := map[soundmod.ToolKind]string{}
	if _, err := parseArgs("tools", args, 0, 0, func(fs *flag.FlagSet) {
		fs.BoolVar(&save, "save", false, "write the detected paths to the config file")
		fs.Func("set", "set a tool path as kind=path (ffmpeg, wwise, vgmstream)", func(v string) error {
			name, path, ok := strings.Cut(v, "=")
			if !ok || path == "" {
				return fmt.Errorf("%q is not kind=path", v)
			}
			kind, err := soundmod.ParseToolKind(name)
			if err != nil {
				return err
			}
			paths[kind] = path
			return nil
		})
	}); err != nil {
		return err
	}

	for kind, path := range paths {
		if err := ws.SetToolPath(kind, path); err != nil {
			return err
		}
	}

	for _, kind := range soundmod.ToolKinds() {
		path := ws.ToolPath(kind)
		if path == "" {
			path = "(not found)"
		}
		fmt.Fprintf(out, "%s\t%s\n", kind, path)
	}

	if !save {
		return nil
	}
	if configPath == "" {
		return errors.New("no config file location")
	}
	cfg := ws.Config()
	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Fprintf(out, "saved %s\n", configPath)
	return nil
}
