package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "desk",
		Short: "Ticket desk: a synchronized, role-filtered view over the ticket service",
		Long: `desk keeps a local cache of the ticket service in sync through snapshot
reloads and the push channel, and serves the grouped board to the UI.`,
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newBoardCmd(), newIngestCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the sync layer and the desk HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func newBoardCmd() *cobra.Command {
	var opts boardOptions
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Reload once and print the grouped board",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBoard(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.identity, "identity", "", "directory id to view the board as (default: the saved identity)")
	cmd.Flags().BoolVar(&opts.compact, "compact", false, "print counts only")
	return cmd
}

func newIngestCmd() *cobra.Command {
	var opts ingestOptions
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Submit a new ticket",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIngest(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.title, "title", "", "ticket title (required)")
	cmd.Flags().StringVar(&opts.description, "description", "", "ticket description")
	cmd.Flags().StringVar(&opts.priority, "priority", "medium", "low, medium, high or critical")
	cmd.Flags().StringSliceVar(&opts.labels, "label", nil, "label to attach (repeatable)")
	cmd.Flags().StringVar(&opts.category, "category", "", "routing category")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}
