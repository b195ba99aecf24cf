// Package main provides the mwdb command line client. It wires subcommands,
// loads configuration and initializes logging.
package main

import (
	"context"
	"mwdb/pkg/logger"
	"os"

	"go.uber.org/zap"
)

// main builds the root command and executes it. Errors are explained on
// stderr and turn into a non-zero exit code.
func main() {
	a := newApp(os.Stdin, os.Stdout, os.Stderr)
	ctx := context.Background()

	defer func() {
		if p := recover(); p != nil {
			logger.Error(ctx, "captured panic, exiting...", zap.Any("panic", p))
			logger.Sync()

			panic(p)
		}
	}()

	err := a.rootCommand().ExecuteContext(ctx)
	logger.Sync()
	if err != nil {
		a.explain(err)
		os.Exit(1) //nolint: gocritic
	}
}
