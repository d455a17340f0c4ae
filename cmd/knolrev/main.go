package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/conorfennell/knolrev/internal/cli"
	"github.com/conorfennell/knolrev/internal/errs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", errs.UserMessage(err))
		fmt.Fprintf(os.Stderr, "  %v\n", err)
		stop()
		os.Exit(1)
	}
}
