package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/cbtap/cbtap/internal/formula"
)

// Version will be set at build time via -ldflags
var Version = "v0.1.0-dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", formula.FormatError(err, false))
		os.Exit(1)
	}
}
