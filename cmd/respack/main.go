// Package main provides respack, a tool to pack, inspect and verify asset
// containers.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Run(ctx, os.Stdout, os.Stderr, os.Args)
	stop()
	os.Exit(code)
}
