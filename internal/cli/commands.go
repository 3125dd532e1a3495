package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"paperchat/internal/service"
	"paperchat/internal/storage"
)

func newServeCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withRuntime(cmd.Context(), func(rt Runtime) error {
				return rt.Serve(cmd.Context())
			})
		},
	}
}

func newIngestCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file>",
		Short: "Upload a paper and wait for it to be processed",
		Long: `Upload a PDF, Markdown or text file and wait for ingestion to finish.

Examples:
  paperchat ingest attention.pdf
  paperchat ingest notes.md --owner alice`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer func() {
				_ = f.Close()
			}()

			return opts.withRuntime(ctx, func(rt Runtime) error {
				doc, err := rt.DocumentService().Upload(ctx, opts.owner, filepath.Base(args[0]), f)
				if err != nil {
					return err
				}
				rt.Drain()

				doc, err = rt.DocumentService().Get(ctx, opts.owner, doc.ID)
				if err != nil {
					return err
				}
				printDocument(cmd.OutOrStdout(), doc)
				if doc.Status == storage.StatusFailed {
					return fmt.Errorf("ingestion failed: %s", doc.Error)
				}
				return nil
			})
		},
	}
}

func newStatusCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id>",
		Short: "Show a document's processing status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return opts.withRuntime(ctx, func(rt Runtime) error {
				doc, err := rt.DocumentService().Get(ctx, opts.owner, args[0])
				if err != nil {
					return err
				}
				printDocument(cmd.OutOrStdout(), doc)
				return nil
			})
		},
	}
}

func newAskCommand(opts *options) *cobra.Command {
	var augmented, debug bool
	cmd := &cobra.Command{
		Use:   "ask <id> <question>",
		Short: "Ask a question about a document",
		Long: `Ask a question about a processed document.

Examples:
  paperchat ask 3f2a... "What dataset was used?"
  paperchat ask 3f2a... "How does this compare to BERT?" --augmented`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			mode := "standard"
			if augmented {
				mode = "augmented"
			}
			return opts.withRuntime(ctx, func(rt Runtime) error {
				resp, err := rt.ChatService().Ask(ctx, opts.owner, service.AskInput{
					DocumentID: args[0],
					Question:   strings.Join(args[1:], " "),
					Mode:       mode,
					Debug:      debug,
				})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintln(out, resp.Answer)
				if len(resp.SourceSnippets) > 0 {
					fmt.Fprintln(out, "\nSources:")
					for i, s := range resp.SourceSnippets {
						fmt.Fprintf(out, "  [%d] %s\n", i+1, s)
					}
				}
				if debug {
					fmt.Fprintf(out, "\nAttempts: %d, state: %s\n", resp.Attempts, resp.State)
					if resp.DebugFeedback != "" {
						fmt.Fprintf(out, "Feedback: %s\n", resp.DebugFeedback)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&augmented, "augmented", false, "Also consult external sources")
	cmd.Flags().BoolVar(&debug, "debug", false, "Show attempts and reviewer feedback")
	return cmd
}

func newListCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return opts.withRuntime(ctx, func(rt Runtime) error {
				docs, err := rt.DocumentService().List(ctx, opts.owner)
				if err != nil {
					return err
				}
				if len(docs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No documents.")
					return nil
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tSTATUS\tFILENAME\tTITLE")
				for _, d := range docs {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.ID, d.Status, d.Filename, d.Title)
				}
				return tw.Flush()
			})
		},
	}
}

func newDeleteCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a document with its history and index entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return opts.withRuntime(ctx, func(rt Runtime) error {
				if err := rt.DocumentService().Delete(ctx, opts.owner, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func newHistoryCommand(opts *options) *cobra.Command {
	var clear bool
	cmd := &cobra.Command{
		Use:   "history <id>",
		Short: "Show or clear a document's chat history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return opts.withRuntime(ctx, func(rt Runtime) error {
				if clear {
					if err := rt.ChatService().ClearHistory(ctx, opts.owner, args[0]); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "History cleared.")
					return nil
				}
				msgs, err := rt.ChatService().History(ctx, opts.owner, args[0])
				if err != nil {
					return err
				}
				for _, m := range msgs {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", m.Role, m.Content)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&clear, "clear", false, "Delete the history instead of printing it")
	return cmd
}

func printDocument(w io.Writer, doc *storage.Document) {
	fmt.Fprintf(w, "ID:       %s\n", doc.ID)
	fmt.Fprintf(w, "File:     %s\n", doc.Filename)
	fmt.Fprintf(w, "Status:   %s\n", doc.Status)
	if doc.Title != "" {
		fmt.Fprintf(w, "Title:    %s\n", doc.Title)
	}
	if doc.Error != "" {
		fmt.Fprintf(w, "Error:    %s\n", doc.Error)
	}
	if doc.Summary != "" {
		fmt.Fprintf(w, "\n%s\n", doc.Summary)
	}
}

func newKeygenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Print a new ENCRYPTION_KEY for chat history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := storage.GenerateKey()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), key)
			return err
		},
	}
}
