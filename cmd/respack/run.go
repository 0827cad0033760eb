package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/hupe1980/respack"
	"github.com/hupe1980/respack/blobstore"
	"github.com/hupe1980/respack/discovery"
	"github.com/hupe1980/respack/model"
	flag "github.com/spf13/pflag"
)

const helpFlag = "--help"

var errNoSource = errors.New("either --root or --config is required")

// Run executes the command line args and returns the exit code.
func Run(ctx context.Context, out, errOut io.Writer, args []string) int {
	if len(args) < 2 {
		printUsage(out)

		return 0
	}

	cmd, rest := args[1], args[2:]

	var err error

	switch cmd {
	case "-h", helpFlag, "help":
		printUsage(out)

		return 0
	case "pack":
		err = cmdPack(ctx, out, rest)
	case "verify":
		err = cmdVerify(ctx, out, errOut, rest)
	case "ls":
		err = cmdLs(ctx, out, errOut, rest)
	case "show":
		err = cmdShow(ctx, out, errOut, rest)
	default:
		fprintln(errOut, "error: unknown command:", cmd)
		printUsage(errOut)

		return 1
	}

	if err != nil {
		if !errors.Is(err, errSilent) {
			fprintln(errOut, "error:", err)
		}

		return 1
	}

	return 0
}

// errSilent signals failure after the command already reported it.
var errSilent = errors.New("silent")

// sourceFlags selects the content a command reads.
type sourceFlags struct {
	root     string
	config   string
	platform string
	verbose  bool
}

func (s *sourceFlags) register(flagSet *flag.FlagSet) {
	flagSet.StringVarP(&s.root, "root", "C", "", "Directory scanned as a single core library")
	flagSet.StringVarP(&s.config, "config", "c", "", "Library config file (JSON with comments)")
	flagSet.StringVarP(&s.platform, "platform", "p", "", "Active platform (vulkan, d3d12, metal, opengl)")
	flagSet.BoolVarP(&s.verbose, "verbose", "v", false, "Log discovery details")
}

func (s *sourceFlags) open(ctx context.Context, errOut io.Writer) (*respack.Assets, discovery.Result, error) {
	level := slog.LevelWarn
	if s.verbose {
		level = slog.LevelDebug
	}

	opts := []respack.Option{
		respack.WithAsync(false),
		respack.WithLogger(respack.NewLogger(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))),
	}

	if s.platform != "" {
		p, err := model.ParsePlatform(s.platform)
		if err != nil {
			return nil, discovery.Result{}, err
		}

		opts = append(opts, respack.WithPlatform(p))
	}

	var libs []discovery.Library

	switch {
	case s.config != "":
		cfg, err := discovery.LoadConfig(s.config)
		if err != nil {
			return nil, discovery.Result{}, err
		}

		libs, err = cfg.Open(ctx)
		if err != nil {
			return nil, discovery.Result{}, err
		}

		if cfg.Workers > 0 {
			opts = append(opts, respack.WithWorkers(cfg.Workers))
		}

		if s.platform == "" {
			if p, perr := model.ParsePlatform(cfg.Platform); perr == nil {
				opts = append(opts, respack.WithPlatform(p))
			}
		}
	case s.root != "":
		libs = []discovery.Library{{Name: s.root, Tier: model.TierCore, Store: blobstore.NewLocalStore(s.root)}}
	default:
		return nil, discovery.Result{}, errNoSource
	}

	a, err := respack.Open(ctx, libs, opts...)
	if err != nil {
		return nil, discovery.Result{}, err
	}

	return a, a.LastScan(), nil
}

func newFlagSet(name string) *flag.FlagSet {
	flagSet := flag.NewFlagSet(name, flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	return flagSet
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func fprintf(w io.Writer, format string, a ...any) {
	_, _ = fmt.Fprintf(w, format, a...)
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "-h" || arg == helpFlag {
			return true
		}
	}

	return false
}

func printUsage(w io.Writer) {
	fprintln(w, `Usage: respack <command> [flags]

Commands:
  pack     Pack files into containers and descriptors
  verify   Recompute the integrity hash of every container
  ls       List registered resources
  show     Show one resource

Run "respack <command> --help" for command flags.`)
}
