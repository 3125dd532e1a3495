// Package cli implements the paperchat command line.
package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"paperchat/internal/service"
)

// Runtime is what commands need from a running instance.
type Runtime interface {
	DocumentService() service.DocumentService
	ChatService() service.ChatService
	// Drain waits for queued ingestion jobs to finish.
	Drain()
	// Serve runs the HTTP API until ctx is cancelled.
	Serve(ctx context.Context) error
	Close() error
}

// Opener builds a Runtime for one command invocation.
type Opener func(ctx context.Context) (Runtime, error)

type options struct {
	owner string
	open  Opener
}

// NewRootCommand returns the paperchat command tree.
func NewRootCommand(open Opener) *cobra.Command {
	opts := &options{open: open}

	root := &cobra.Command{
		Use:           "paperchat",
		Short:         "Chat with research papers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultOwner := os.Getenv("PAPERCHAT_OWNER")
	if defaultOwner == "" {
		defaultOwner = "local"
	}
	root.PersistentFlags().StringVar(&opts.owner, "owner", defaultOwner, "Owner id for documents (env PAPERCHAT_OWNER)")

	root.AddCommand(
		newServeCommand(opts),
		newIngestCommand(opts),
		newStatusCommand(opts),
		newAskCommand(opts),
		newListCommand(opts),
		newDeleteCommand(opts),
		newHistoryCommand(opts),
		newKeygenCommand(),
	)
	return root
}

// withRuntime opens a Runtime, runs fn and closes it.
func (o *options) withRuntime(ctx context.Context, fn func(Runtime) error) (err error) {
	rt, err := o.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rt.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(rt)
}
