package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/SpiceLabsHQ/stackrun/internal/cli"
	"github.com/SpiceLabsHQ/stackrun/internal/deploy"
	"github.com/SpiceLabsHQ/stackrun/internal/identity"
	"github.com/SpiceLabsHQ/stackrun/internal/logging"
	"github.com/SpiceLabsHQ/stackrun/internal/stack"
)

// deleteDeps holds the injectable dependencies for the delete command.
type deleteDeps struct {
	stacks       deploy.StackService
	events       deploy.EventSource
	auditor      logging.Auditor
	owner        *identity.Owner
	region       string
	pollInterval time.Duration
	color        bool
}

// newDeleteCommand creates the production delete command.
func newDeleteCommand() *cobra.Command {
	return newDeleteCommandWithDeps(nil)
}

// newDeleteCommandWithDeps creates the delete command with explicit
// dependencies for testing.
func newDeleteCommandWithDeps(deps *deleteDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <stack-name>",
		Short: "Delete a stack and follow the deletion to completion",
		Long: "Delete the stack and stream its events until the deletion settles. " +
			"Requires typing the stack name to confirm unless --yes is set.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps != nil {
				return runDelete(cmd, args[0], deps)
			}
			clients := awsClientsFromContext(cmd.Context())
			if clients == nil {
				return fmt.Errorf("AWS clients not configured")
			}
			stacks, events, _ := clients.pipelineDeps()
			return runDelete(cmd, args[0], &deleteDeps{
				stacks:       stacks,
				events:       events,
				auditor:      clients.auditor(),
				owner:        clients.owner,
				region:       clients.region,
				pollInterval: clients.appConfig.PollInterval(),
				color:        clients.useColor(cli.FromCommand(cmd)),
			})
		},
	}
}

// runDelete confirms with the operator, then deletes and monitors the stack.
func runDelete(cmd *cobra.Command, stackName string, deps *deleteDeps) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cliCtx := cli.FromCommand(cmd)
	jsonOutput := false
	yes := false
	if cliCtx != nil {
		jsonOutput = cliCtx.JSON
		yes = cliCtx.Yes
	}
	if deps.auditor != nil {
		defer deps.auditor.Close()
	}

	if !yes {
		if jsonOutput {
			return reportJSONError(cmd, fmt.Errorf("--yes is required with --json"))
		}
		if err := confirmStackName(cmd, stackName); err != nil {
			return err
		}
	}

	sp, report := newProgressReporter(cmd, deps.color, jsonOutput)
	sp.Start(fmt.Sprintf("Deleting stack %s...", stackName))

	deployer := deploy.NewDeployer(deps.stacks, deps.events, nil, report, deps.pollInterval)
	result, err := deployer.Delete(ctx, stack.Request{Name: stackName, Region: deps.region})
	if deps.auditor != nil {
		_ = deps.auditor.Record("delete", stackName, ownerARN(deps.owner), err)
	}
	if err != nil {
		sp.Fail(fmt.Sprintf("Delete of %s failed.", stackName))
		if jsonOutput {
			return reportJSONError(cmd, err)
		}
		return err
	}
	sp.Stop("")

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	printResult(cmd.OutOrStdout(), result)
	return nil
}

// confirmStackName requires the operator to type the stack name.
func confirmStackName(cmd *cobra.Command, stackName string) error {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "This will permanently delete stack %q and the resources it manages.\n", stackName)
	fmt.Fprintf(w, "\nType the stack name %q to confirm: ", stackName)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	if !scanner.Scan() {
		return fmt.Errorf("no confirmation input received, delete aborted")
	}
	input := strings.TrimSpace(scanner.Text())
	if input != stackName {
		return fmt.Errorf("confirmation %q does not match stack name %q, delete aborted", input, stackName)
	}
	return nil
}
