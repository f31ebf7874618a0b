// scholarsync: scholarship discovery service.
//
// Subcommands:
//
//	run       one scrape run across all enabled sources, for an external scheduler
//	schedule  built-in cron trigger plus the status API
//	migrate   apply or roll back database migrations
//	sources   list the enabled, valid sources
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "scholarsync: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "scholarsync",
		Short:         "Scholarship discovery and scraping service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "scholarsync version %s\n", version)
		},
	})
	root.AddCommand(
		newRunCommand(),
		newScheduleCommand(),
		newMigrateCommand(),
		newSourcesCommand(),
	)
	return root
}
