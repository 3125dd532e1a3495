package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"paperchat/internal/app"
	"paperchat/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(func(ctx context.Context) (cli.Runtime, error) {
		a, err := app.Open(ctx)
		if err != nil {
			return nil, err
		}
		return a, nil
	})
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
