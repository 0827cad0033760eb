package main

import (
	"context"
	"io"
	"text/tabwriter"

	"github.com/hupe1980/respack/catalog"
)

func cmdLs(ctx context.Context, out, errOut io.Writer, args []string) error {
	if hasHelpFlag(args) {
		fprintln(out, `Usage: respack ls [flags]

List registered resources sorted by key.

Flags:
  -C, --root DIR       Directory scanned as a single core library
  -c, --config FILE    Library config file
  -p, --platform LIST  Active platform
  -t, --type TYPE      Only list resources of this type
  -v, --verbose        Log discovery details`)

		return nil
	}

	var (
		src sourceFlags
		typ string
	)

	flagSet := newFlagSet("ls")
	src.register(flagSet)
	flagSet.StringVarP(&typ, "type", "t", "", "Only list resources of this type")

	if err := flagSet.Parse(args); err != nil {
		return err
	}

	a, res, err := src.open(ctx, errOut)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	handles := a.Catalog().All(false)
	if typ != "" {
		handles = a.Catalog().ByType(typ)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fprintln(tw, "KEY\tTYPE\tTIER\tSIZE\tCONTAINER")

	for h := range handles {
		writeRow(tw, h)
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	for _, c := range res.Collisions {
		fprintln(errOut, "collision:", c)
	}

	return nil
}

func writeRow(w io.Writer, h *catalog.Handle) {
	_, size := h.Range()
	fprintf(w, "%s\t%s\t%s\t%d\t%s\n", h.Key(), h.Type(), h.Tier(), size, h.Container())
}
