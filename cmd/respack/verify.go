package main

import (
	"context"
	"io"
)

func cmdVerify(ctx context.Context, out, errOut io.Writer, args []string) error {
	if hasHelpFlag(args) {
		fprintln(out, `Usage: respack verify [flags]

Recompute the integrity hash of every container and report corrupt ones.
Exits 1 if any container is corrupt.

Flags:
  -C, --root DIR       Directory scanned as a single core library
  -c, --config FILE    Library config file
  -p, --platform LIST  Active platform
  -v, --verbose        Log discovery details`)

		return nil
	}

	var src sourceFlags

	flagSet := newFlagSet("verify")
	src.register(flagSet)

	if err := flagSet.Parse(args); err != nil {
		return err
	}

	a, res, err := src.open(ctx, errOut)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	corrupt, err := a.Verify(ctx)
	if err != nil {
		return err
	}

	for _, key := range corrupt {
		fprintln(out, "corrupt", key)
	}

	fprintf(out, "%d containers, %d corrupt, %d skipped descriptors\n", res.Containers, len(corrupt), res.Skipped)

	if len(corrupt) > 0 {
		return errSilent
	}

	return nil
}
