// Command ragts is the CLI entrypoint: process recordings into sections,
// record new ones, or inspect a recording's detected sections.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ragts/internal/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	root := cmd.NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "ragts:", err)
		os.Exit(1)
	}
}
