package main

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/hupe1980/respack/model"
)

var errKeyRequired = errors.New("resource key required")

func cmdShow(ctx context.Context, out, errOut io.Writer, args []string) error {
	if hasHelpFlag(args) {
		fprintln(out, `Usage: respack show [flags] <key>

Show a resource and the container holding it.

Flags:
  -C, --root DIR       Directory scanned as a single core library
  -c, --config FILE    Library config file
  -p, --platform LIST  Active platform
  -v, --verbose        Log discovery details`)

		return nil
	}

	var src sourceFlags

	flagSet := newFlagSet("show")
	src.register(flagSet)

	if err := flagSet.Parse(args); err != nil {
		return err
	}

	if flagSet.NArg() == 0 {
		return errKeyRequired
	}

	a, _, err := src.open(ctx, errOut)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	h, err := a.Get(flagSet.Arg(0))
	if err != nil {
		return err
	}

	offset, size := h.Range()
	platforms := h.Platforms()

	fprintf(out, "key:          %s\n", h.Key())
	fprintf(out, "type:         %s\n", h.Type())
	fprintf(out, "tier:         %s\n", h.Tier())
	fprintf(out, "container:    %s\n", h.Container())
	fprintf(out, "range:        %d+%d\n", offset, size)

	if h.Flags() != "" {
		fprintf(out, "flags:        %s\n", h.Flags())
	}

	if platforms != model.PlatformAny {
		fprintf(out, "platforms:    %s\n", platforms)
	}

	if deps := h.Dependencies(); len(deps) > 0 {
		fprintf(out, "dependencies: %s\n", strings.Join(deps, ", "))
	}

	if ct, ok := a.Catalog().Container(h.Container()); ok {
		fprintf(out, "kind:         %s\n", ct.Kind())
		fprintf(out, "size:         %d\n", ct.Size())
		fprintf(out, "hash:         %016x\n", ct.Hash())
	}

	return nil
}
