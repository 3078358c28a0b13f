// Package cmd provides the stackrun command tree.
package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/SpiceLabsHQ/stackrun/internal/cli"
)

// NewRootCommand creates and returns the root cobra command with all global
// persistent flags registered. Subcommands are attached here.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stackrun",
		Short: "Deploy CloudFormation stacks and follow them to completion",
		Long: "Deploy CloudFormation stacks: create or update a stack, stream its " +
			"provisioning events until the operation settles, and clean up " +
			"rolled-back stacks and orphaned empty buckets.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := cli.NewCLIContext(cmd)
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = cli.WithContext(ctx, cliCtx)

			if commandNeedsAWS(cmd.Name()) && awsClientsFromContext(ctx) == nil {
				clients, err := initAWSClients(ctx, cliCtx)
				if err != nil {
					if cliCtx.JSON {
						return reportJSONError(cmd, err)
					}
					return err
				}
				ctx = contextWithAWSClients(ctx, clients)
			}

			cmd.SetContext(ctx)
			return nil
		},
	}

	rootCmd.PersistentFlags().Bool("verbose", false, "Show progress steps")
	rootCmd.PersistentFlags().Bool("debug", false, "Mirror AWS API call log to stderr")
	rootCmd.PersistentFlags().Bool("json", false, "Machine-readable JSON output")
	rootCmd.PersistentFlags().Bool("yes", false, "Skip confirmation on destructive operations")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable coloured status output")
	rootCmd.PersistentFlags().String("region", "", "AWS region (overrides config)")
	rootCmd.PersistentFlags().String("profile", "", "AWS shared config profile (overrides config)")

	rootCmd.AddCommand(newVersionCommand())
	rootCmd.AddCommand(newConfigCommand())
	rootCmd.AddCommand(newDeployCommand())
	rootCmd.AddCommand(newDeleteCommand())
	rootCmd.AddCommand(newStatusCommand())

	return rootCmd
}

// Execute creates the root command and runs it. Called from main.
func Execute() error {
	return NewRootCommand().Execute()
}
