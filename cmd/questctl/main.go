// Package main provides questctl, a command line client for the speech service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"speechquest/internal/pkg/logx"
)

func main() {
	logx.InitGlobalLogger(true)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
