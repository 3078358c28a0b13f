package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/SpiceLabsHQ/stackrun/internal/cli"
	"github.com/SpiceLabsHQ/stackrun/internal/deploy"
	"github.com/SpiceLabsHQ/stackrun/internal/identity"
	"github.com/SpiceLabsHQ/stackrun/internal/logging"
	"github.com/SpiceLabsHQ/stackrun/internal/params"
	"github.com/SpiceLabsHQ/stackrun/internal/progress"
	"github.com/SpiceLabsHQ/stackrun/internal/stack"
	"github.com/SpiceLabsHQ/stackrun/internal/tags"
	"github.com/SpiceLabsHQ/stackrun/internal/template"
)

// deployDeps holds the injectable dependencies for the deploy command.
type deployDeps struct {
	stacks  deploy.StackService
	events  deploy.EventSource
	storage deploy.ObjectStorage

	// uploader stages oversized local templates; nil rejects them.
	uploader *template.Uploader
	auditor  logging.Auditor
	owner    *identity.Owner
	region   string

	pollInterval time.Duration
	color        bool
}

// newDeployCommand creates the production deploy command.
func newDeployCommand() *cobra.Command {
	return newDeployCommandWithDeps(nil)
}

// newDeployCommandWithDeps creates the deploy command with explicit
// dependencies for testing.
func newDeployCommandWithDeps(deps *deployDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy <stack-name>",
		Short: "Create or update a stack and follow it to completion",
		Long: "Create the stack if it does not exist, otherwise update it, then stream " +
			"its events until the operation settles. A create that rolls back is " +
			"deleted so it can be retried, and empty buckets named after the stack " +
			"are removed.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps != nil {
				return runDeploy(cmd, args[0], deps)
			}
			clients := awsClientsFromContext(cmd.Context())
			if clients == nil {
				return fmt.Errorf("AWS clients not configured")
			}
			stacks, events, storage := clients.pipelineDeps()
			return runDeploy(cmd, args[0], &deployDeps{
				stacks:       stacks,
				events:       events,
				storage:      storage,
				uploader:     clients.templateUploader(),
				auditor:      clients.auditor(),
				owner:        clients.owner,
				region:       clients.region,
				pollInterval: clients.appConfig.PollInterval(),
				color:        clients.useColor(cli.FromCommand(cmd)),
			})
		},
	}

	cmd.Flags().String("template", "", "Template file path, https:// URL or s3://bucket/key (required)")
	cmd.Flags().String("params-file", "", "YAML or JSON file of stack parameters")
	cmd.Flags().StringArray("param", nil, "Stack parameter as KEY=VALUE (repeatable, overrides --params-file)")
	cmd.Flags().StringArray("tag", nil, "Stack tag as KEY=VALUE (repeatable)")
	_ = cmd.MarkFlagRequired("template")

	return cmd
}

// runDeploy resolves the request from flags and runs the deployment.
func runDeploy(cmd *cobra.Command, stackName string, deps *deployDeps) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	jsonOutput := false
	if cliCtx := cli.FromCommand(cmd); cliCtx != nil {
		jsonOutput = cliCtx.JSON
	}
	if deps.auditor != nil {
		defer deps.auditor.Close()
	}

	result, err := deployStack(ctx, cmd, stackName, deps, jsonOutput)
	if deps.auditor != nil {
		_ = deps.auditor.Record("deploy", stackName, ownerARN(deps.owner), err)
	}
	if err != nil {
		if jsonOutput {
			return reportJSONError(cmd, err)
		}
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	printResult(cmd.OutOrStdout(), result)
	return nil
}

func deployStack(ctx context.Context, cmd *cobra.Command, stackName string, deps *deployDeps, jsonOutput bool) (*deploy.Result, error) {
	templateRef, _ := cmd.Flags().GetString("template")
	paramsFile, _ := cmd.Flags().GetString("params-file")
	paramPairs, _ := cmd.Flags().GetStringArray("param")
	tagPairs, _ := cmd.Flags().GetStringArray("tag")

	parameters, err := params.Resolve(paramsFile, paramPairs)
	if err != nil {
		return nil, fmt.Errorf("resolve parameters: %w", err)
	}

	extraTags, err := params.ParsePairs(tagPairs)
	if err != nil {
		return nil, fmt.Errorf("parse tags: %w", err)
	}
	builder := tags.NewTagBuilder("", "")
	if deps.owner != nil {
		builder = tags.NewTagBuilder(deps.owner.Name, deps.owner.ARN)
	}
	stackTags, err := builder.WithTags(extraTags).Build()
	if err != nil {
		return nil, err
	}

	tmpl, err := template.Load(ctx, templateRef, stackName, deps.uploader)
	if err != nil {
		return nil, err
	}

	sp, report := newProgressReporter(cmd, deps.color, jsonOutput)
	sp.Start(fmt.Sprintf("Deploying stack %s...", stackName))

	if tmpl.URL != "" {
		report.Stepf("Template: %s", tmpl.URL)
	} else {
		report.Stepf("Template: inline body (%d bytes)", len(tmpl.Body))
	}
	report.Stepf("Resolved %d parameter(s) and %d tag(s).", len(parameters), len(stackTags))

	deployer := deploy.NewDeployer(deps.stacks, deps.events, deps.storage, report, deps.pollInterval)
	result, err := deployer.Deploy(ctx, stack.Request{
		Name:       stackName,
		Template:   tmpl,
		Region:     deps.region,
		Parameters: parameters,
		Tags:       stackTags,
	})
	if err != nil {
		sp.Fail(fmt.Sprintf("Deploy of %s failed.", stackName))
		return result, err
	}
	sp.Stop("")
	return result, nil
}

// newProgressReporter returns a spinner and a reporter that writes through
// it. In JSON mode the spinner is silent and events go to stderr so stdout
// carries only the result document. --verbose enables the reporter's step
// lines.
func newProgressReporter(cmd *cobra.Command, color, jsonOutput bool) (*progress.Spinner, *deploy.Reporter) {
	var sp *progress.Spinner
	var report *deploy.Reporter
	if jsonOutput {
		sp = progress.NewCommandSpinner(cmd.ErrOrStderr(), true)
		report = deploy.NewReporter(cmd.ErrOrStderr(), false)
	} else {
		sp = progress.NewCommandSpinner(cmd.OutOrStdout(), false)
		report = deploy.NewReporter(sp, color)
	}
	if cliCtx := cli.FromCommand(cmd); cliCtx != nil {
		report.SetVerbose(cliCtx.Verbose)
	}
	return sp, report
}

// printResult writes the human-readable summary of a deploy or delete.
func printResult(w io.Writer, result *deploy.Result) {
	switch {
	case result.NoOp:
		fmt.Fprintf(w, "Stack %s is up to date.\n", result.StackName)
	case result.FinalStatus != "":
		fmt.Fprintf(w, "Stack %s: %s\n", result.StackName, result.FinalStatus)
	default:
		fmt.Fprintf(w, "Stack %s: %s requested.\n", result.StackName, result.Action)
	}

	if c, err := stack.Classify(result.FinalStatus); err == nil && c.Failed {
		fmt.Fprintf(w, "Warning: stack finished in %s; see the events above for the cause.\n", result.FinalStatus)
	}
	if result.RollbackDeleted {
		fmt.Fprintf(w, "Rolled-back stack %s was deleted and can be deployed again.\n", result.StackName)
	}
	if result.CleanupSkipped {
		fmt.Fprintln(w, "Cleanup was skipped.")
	}
	for _, b := range result.DeletedBuckets {
		fmt.Fprintf(w, "Deleted orphan bucket %s\n", b)
	}
}

func ownerARN(owner *identity.Owner) string {
	if owner == nil {
		return ""
	}
	return owner.ARN
}
