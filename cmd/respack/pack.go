package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/hupe1980/respack/blobstore"
	"github.com/hupe1980/respack/container"
	"github.com/hupe1980/respack/descriptor"
	"github.com/hupe1980/respack/model"
)

var errNoInput = errors.New("no input files")

type packOptions struct {
	root        string
	src         string
	batch       string
	typ         string
	compression string
	format      string
	platform    string
	deps        []string
}

func cmdPack(ctx context.Context, out io.Writer, args []string) error {
	if hasHelpFlag(args) {
		printPackHelp(out)

		return nil
	}

	opts, inputs, err := parsePackFlags(args)
	if err != nil {
		return err
	}

	files, err := readInputs(opts, inputs)
	if err != nil {
		return err
	}

	p, err := newPacker(opts)
	if err != nil {
		return err
	}

	if opts.batch != "" {
		entries := make([]container.Entry, len(files))
		for i, f := range files {
			entries[i] = f.entry
		}

		d, err := p.PackBatch(ctx, opts.batch, entries)
		if err != nil {
			return err
		}

		fprintf(out, "%s\t%s\t%d resources\t%d -> %d bytes\n",
			opts.batch, d.Kind, len(d.Resources), d.UncompressedSize, d.DataSize)

		return nil
	}

	for _, f := range files {
		if _, err := p.PackSingle(ctx, f.rel, f.entry); err != nil {
			return err
		}

		fprintf(out, "%s\t%s\t%d bytes\n", f.rel, model.KindSingle, len(f.entry.Data))
	}

	return nil
}

func parsePackFlags(args []string) (packOptions, []string, error) {
	var opts packOptions

	flagSet := newFlagSet("pack")
	flagSet.StringVarP(&opts.root, "root", "C", ".", "Output directory")
	flagSet.StringVar(&opts.src, "src", ".", "Directory input paths are relative to")
	flagSet.StringVarP(&opts.batch, "batch", "b", "", "Pack all inputs into one batch container with this name")
	flagSet.StringVarP(&opts.typ, "type", "t", "", "Resource type (default: file extension)")
	flagSet.StringVar(&opts.compression, "compression", "zstd", "Batch codec (zstd, lz4)")
	flagSet.StringVar(&opts.format, "format", "binary", "Descriptor format (binary, json, yaml)")
	flagSet.StringVarP(&opts.platform, "platform", "p", "", "Platforms the resources apply to")
	flagSet.StringArrayVarP(&opts.deps, "dep", "d", nil, "Dependency as key=dep[,dep...] (repeatable)")

	if err := flagSet.Parse(args); err != nil {
		return packOptions{}, nil, err
	}

	if flagSet.NArg() == 0 {
		return packOptions{}, nil, errNoInput
	}

	return opts, flagSet.Args(), nil
}

func newPacker(opts packOptions) (*container.Packer, error) {
	c, err := model.ParseCompression(opts.compression)
	if err != nil {
		return nil, err
	}

	var format descriptor.Format

	switch strings.ToLower(opts.format) {
	case "binary", "bin", "":
		format = descriptor.FormatBinary
	case "json":
		format = descriptor.FormatJSON
	case "yaml", "yml":
		format = descriptor.FormatYAML
	default:
		return nil, fmt.Errorf("unknown descriptor format: %q", opts.format)
	}

	store := blobstore.NewLocalStore(opts.root)

	return container.NewPacker(store, container.WithCompression(c), container.WithDescriptorFormat(format)), nil
}

// input is a file to pack. rel is its slash path relative to --src.
type input struct {
	rel   string
	entry container.Entry
}

// readInputs loads the input files. Directories are walked. The key of a
// resource is its path relative to --src without extension.
func readInputs(opts packOptions, inputs []string) ([]input, error) {
	deps, err := parseDeps(opts.deps)
	if err != nil {
		return nil, err
	}

	platforms, err := model.ParsePlatform(opts.platform)
	if err != nil {
		return nil, err
	}

	var files []string

	for _, in := range inputs {
		full := filepath.Join(opts.src, in)

		err := filepath.WalkDir(full, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if d.Type().IsRegular() {
				files = append(files, p)
			}

			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	if len(files) == 0 {
		return nil, errNoInput
	}

	out := make([]input, 0, len(files))

	for _, f := range files {
		rel, err := filepath.Rel(opts.src, f)
		if err != nil {
			return nil, err
		}

		rel = filepath.ToSlash(rel)
		ext := path.Ext(rel)
		key := strings.TrimSuffix(rel, ext)

		typ := opts.typ
		if typ == "" {
			typ = strings.TrimPrefix(ext, ".")
		}

		if typ == "" {
			return nil, fmt.Errorf("%s: no extension, pass --type", rel)
		}

		data, err := os.ReadFile(f)
		if err != nil {
			return nil, err
		}

		out = append(out, input{rel: rel, entry: container.Entry{
			Key:          key,
			Type:         typ,
			Platforms:    platforms,
			Dependencies: deps[key],
			Data:         data,
		}})
	}

	return out, nil
}

func parseDeps(specs []string) (map[string][]string, error) {
	deps := make(map[string][]string, len(specs))

	for _, s := range specs {
		key, list, ok := strings.Cut(s, "=")
		if !ok || key == "" || list == "" {
			return nil, fmt.Errorf("invalid --dep %q, want key=dep[,dep...]", s)
		}

		for _, d := range strings.Split(list, ",") {
			if d = strings.TrimSpace(d); d != "" {
				deps[key] = append(deps[key], d)
			}
		}
	}

	return deps, nil
}

func printPackHelp(w io.Writer) {
	fprintln(w, `Usage: respack pack [flags] <path>...

Pack files into containers. Each file becomes a single container next to
its descriptor unless --batch is given. Keys are paths relative to --src
without extension.

Flags:
  -C, --root DIR          Output directory (default ".")
      --src DIR           Directory input paths are relative to (default ".")
  -b, --batch NAME        Pack all inputs into one batch container
  -t, --type TYPE         Resource type (default: file extension)
      --compression NAME  Batch codec: zstd, lz4 (default "zstd")
      --format NAME       Descriptor format: binary, json, yaml (default "binary")
  -p, --platform LIST     Platforms the resources apply to
  -d, --dep KEY=DEPS      Dependencies of KEY, comma separated (repeatable)`)
}
