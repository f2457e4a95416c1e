package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"ustar/pkg/compress"
	"ustar/pkg/config"
	"ustar/pkg/core"
	"ustar/pkg/progress"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
	}
}

// app carries what every command needs
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	in     *bufio.Reader
	out    io.Writer

	// interactive is true when in is a terminal the overwrite prompt may use
	interactive bool
}

// run parses global flags and dispatches to the named command
func run(args []string, stdin io.Reader, stdout io.Writer) error {
	var configPath, logLevel string
	var noProgress bool

	flagSet := pflag.NewFlagSet("ustar", pflag.ContinueOnError)
	flagSet.SetInterspersed(false)
	flagSet.StringVar(&configPath, "config", "", "path to YAML config file (default: $"+config.EnvVar+")")
	flagSet.StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides config)")
	flagSet.BoolVar(&noProgress, "no-progress", false, "disable progress records")
	flagSet.Usage = func() { printUsage(stdout, flagSet) }
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if noProgress {
		cfg.Progress = false
	}
	level, err := cfg.Level()
	if err != nil {
		return err
	}

	a := &app{
		cfg:         cfg,
		logger:      newLogger(os.Stderr, level),
		in:          bufio.NewReader(stdin),
		out:         stdout,
		interactive: isTerminal(stdin),
	}
	if cfg.Progress {
		progress.SetLogger(a.logger)
	} else {
		progress.SetLogger(nil)
	}

	if flagSet.NArg() == 0 {
		printUsage(stdout, flagSet)
		return errors.New("no command given")
	}
	return a.dispatch(flagSet.Arg(0), flagSet.Args()[1:])
}

// dispatch runs one command
func (a *app) dispatch(command string, args []string) error {
	switch command {
	case "pack":
		return a.pack(args)
	case "unpack":
		return a.unpack(args)
	case "list":
		return a.list(args)
	case "shell":
		return a.shell()
	case "help", "--help", "-h":
		printUsage(a.out, nil)
		return nil
	default:
		return fmt.Errorf("unknown command %q, run 'ustar help'", command)
	}
}

// newLogger builds a text logger for terminals and a JSON logger otherwise
func newLogger(w *os.File, level slog.Level) *slog.Logger {
	options := &slog.HandlerOptions{Level: level}
	if term.IsTerminal(int(w.Fd())) {
		return slog.New(slog.NewTextHandler(w, options))
	}
	return slog.New(slog.NewJSONHandler(w, options))
}

// isTerminal reports whether r is an interactive terminal
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// printUsage prints the command-line usage information
func printUsage(w io.Writer, global *pflag.FlagSet) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  ustar [global flags] pack <path> [-c] [name]   archive path into name.tar (name.tar.gz with -c)")
	fmt.Fprintln(w, "  ustar [global flags] unpack <archive> [-C dir]  extract a .tar, .tar.gz, .tgz, .tar.lz4 or .tar.zst")
	fmt.Fprintln(w, "  ustar [global flags] list <archive>             list archive entries")
	fmt.Fprintln(w, "  ustar [global flags] shell                      read commands from standard input")
	if global != nil {
		fmt.Fprintln(w, "\nGlobal flags:")
		fmt.Fprint(w, global.FlagUsages())
	}
}

// pack handles the pack command
func (a *app) pack(args []string) error {
	var gzipFlag, sorted bool
	var scheme string

	flagSet := pflag.NewFlagSet("pack", pflag.ContinueOnError)
	flagSet.SetOutput(a.out)
	flagSet.BoolVarP(&gzipFlag, "compress", "c", false, "gzip the archive (same as --compression gzip)")
	flagSet.StringVar(&scheme, "compression", a.cfg.Compression, "none, gzip, lz4 or zstd")
	flagSet.BoolVar(&sorted, "sort", a.cfg.SortEntries, "visit directory entries in name order")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() < 1 || flagSet.NArg() > 2 {
		return errors.New("usage: pack <path> [-c] [name]")
	}

	s := a.cfg.Scheme()
	if flagSet.Changed("compression") {
		var err error
		if s, err = compress.ParseScheme(scheme); err != nil {
			return err
		}
	}
	if gzipFlag {
		s = compress.Gzip
	}
	name := a.cfg.ArchiveName
	if flagSet.NArg() == 2 {
		name = flagSet.Arg(1)
	}

	opts := core.PackOptions{
		Compression: s,
		Sorted:      sorted,
		Logger:      a.logger,
	}
	if a.cfg.ResolveAccounts {
		opts.Accounts = core.NewSystemAccounts()
	}
	result, err := core.Pack(flagSet.Arg(0), name, opts)
	if err != nil {
		return fmt.Errorf("packing archive: %w", err)
	}
	a.logger.Info("archive written",
		"path", result.Path,
		"compression", s.String(),
		"archive_size", humanize.IBytes(uint64(result.ArchiveSize)),
		"written", humanize.IBytes(uint64(result.Written)),
		"blake3", result.Digest)
	fmt.Fprintf(a.out, "Successfully created %s\n", result.Path)
	return nil
}

// unpack handles the unpack command
func (a *app) unpack(args []string) error {
	var dest, overwrite string

	flagSet := pflag.NewFlagSet("unpack", pflag.ContinueOnError)
	flagSet.SetOutput(a.out)
	flagSet.StringVarP(&dest, "directory", "C", ".", "extract below this directory")
	flagSet.StringVar(&overwrite, "overwrite", a.cfg.Overwrite, "existing directories: prompt, recreate, skip or fail")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() != 1 {
		return errors.New("usage: unpack <archive> [-C dir]")
	}
	archivePath := flagSet.Arg(0)

	opts := core.UnpackOptions{Logger: a.logger}
	if overwrite == "prompt" {
		if a.interactive {
			opts.Decide = a.promptOverwrite
		} else {
			opts.Overwrite = core.OverwriteSkip
		}
	} else {
		p, err := core.ParseOverwritePolicy(overwrite)
		if err != nil {
			return err
		}
		opts.Overwrite = p
	}

	warnings, err := core.Unpack(archivePath, dest, opts)
	if err != nil {
		return fmt.Errorf("unpacking archive: %w", err)
	}
	for _, w := range warnings {
		if errors.Is(w, core.ErrPrivilege) {
			fmt.Fprintf(a.out, "Warning: %v (device and FIFO entries usually need root)\n", w)
			continue
		}
		fmt.Fprintf(a.out, "Warning: %v\n", w)
	}
	fmt.Fprintf(a.out, "Successfully unpacked %s\n", archivePath)
	return nil
}

// promptOverwrite asks whether an existing directory should be recreated
func (a *app) promptOverwrite(name string) (core.OverwritePolicy, error) {
	fmt.Fprintf(a.out, "Directory '%s' already exists.\nDo you want to overwrite it? (y/n): ", name)
	response, err := a.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return core.OverwriteSkip, err
	}
	if strings.EqualFold(strings.TrimSpace(response), "y") {
		return core.OverwriteRecreate, nil
	}
	return core.OverwriteSkip, nil
}

// list handles the list command
func (a *app) list(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: list <archive>")
	}
	entries, err := core.List(args[0])
	if err != nil {
		return err
	}
	for _, e := range entries {
		owner := e.Owner
		if owner == "" {
			owner = "-"
		}
		group := e.Group
		if group == "" {
			group = "-"
		}
		line := fmt.Sprintf("%-8s %04o %s/%s %10d %s %s", e.Type, e.Mode, owner, group, e.Size,
			e.ModTime.Format("2006-01-02 15:04"), e.Name)
		if e.LinkName != "" {
			line += " -> " + e.LinkName
		}
		fmt.Fprintln(a.out, line)
	}
	return nil
}
