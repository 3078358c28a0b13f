// Package cmd provides the stackrun command tree.
// This file defines the shared AWS client infrastructure used by
// PersistentPreRunE to initialize SDK clients once and share them
// across subcommands via context.
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/SpiceLabsHQ/stackrun/internal/cli"
	"github.com/SpiceLabsHQ/stackrun/internal/config"
	"github.com/SpiceLabsHQ/stackrun/internal/deploy"
	"github.com/SpiceLabsHQ/stackrun/internal/identity"
	"github.com/SpiceLabsHQ/stackrun/internal/logging"
	"github.com/SpiceLabsHQ/stackrun/internal/progress"
	"github.com/SpiceLabsHQ/stackrun/internal/stack"
	"github.com/SpiceLabsHQ/stackrun/internal/storage"
	"github.com/SpiceLabsHQ/stackrun/internal/template"
)

// awsClients holds pre-initialized AWS SDK clients and resolved identity.
// Created once in PersistentPreRunE and stored on the command context.
type awsClients struct {
	cfnClient *cloudformation.Client
	s3Client  *s3.Client
	region    string
	owner     *identity.Owner

	// appConfig holds the loaded user preferences.
	appConfig *config.Config
	configDir string
}

// awsClientsKey is the context key for storing awsClients.
type awsClientsKey struct{}

// awsClientsFromContext retrieves the awsClients from the context.
// Returns nil if no clients have been stored.
func awsClientsFromContext(ctx context.Context) *awsClients {
	v, _ := ctx.Value(awsClientsKey{}).(*awsClients)
	return v
}

// contextWithAWSClients returns a new context carrying the given awsClients.
func contextWithAWSClients(ctx context.Context, clients *awsClients) context.Context {
	return context.WithValue(ctx, awsClientsKey{}, clients)
}

// commandNeedsAWS returns true if the command requires AWS client
// initialization. Commands that operate locally return false.
func commandNeedsAWS(cmdName string) bool {
	switch cmdName {
	case "deploy", "delete", "status":
		return true
	default:
		return false
	}
}

// initAWSClients loads user preferences and the AWS SDK config, creates the
// SDK clients, and resolves the caller identity. Flags override config;
// config overrides the SDK's own defaults.
func initAWSClients(ctx context.Context, cliCtx *cli.CLIContext) (*awsClients, error) {
	configDir := config.DefaultConfigDir()
	appCfg, err := config.Load(configDir)
	if err != nil {
		return nil, fmt.Errorf("load stackrun config: %w", err)
	}

	region := firstNonEmpty(cliCtx.Region, appCfg.Region)
	profile := firstNonEmpty(cliCtx.Profile, appCfg.Profile)

	var opts []func(*awscfg.LoadOptions) error
	if region != "" {
		opts = append(opts, awscfg.WithRegion(region))
	}
	if profile != "" {
		opts = append(opts, awscfg.WithSharedConfigProfile(profile))
	}
	if appCfg.AccessKeyID != "" && appCfg.SecretAccessKey != "" {
		opts = append(opts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(appCfg.AccessKeyID, appCfg.SecretAccessKey, ""),
		))
	}

	// The API call log is best-effort; a read-only home directory must not
	// block deployments.
	if apiLog, logErr := logging.NewStructuredLogger(filepath.Join(configDir, "logs"), cliCtx.Debug); logErr == nil {
		opts = append(opts, awscfg.WithAPIOptions(logging.APIOptions(apiLog)))
	}

	cfg, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("no AWS region configured; pass --region or run: stackrun config set region <region>")
	}

	owner, err := identity.NewResolver(sts.NewFromConfig(cfg)).Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve identity: %w", err)
	}

	return &awsClients{
		cfnClient: cloudformation.NewFromConfig(cfg),
		s3Client:  s3.NewFromConfig(cfg),
		region:    cfg.Region,
		owner:     owner,
		appConfig: appCfg,
		configDir: configDir,
	}, nil
}

// pipelineDeps returns the stack service, event source and object storage
// backed by the real clients. Storage is nil when the sweep is disabled.
func (c *awsClients) pipelineDeps() (deploy.StackService, deploy.EventSource, deploy.ObjectStorage) {
	var buckets deploy.ObjectStorage
	if c.appConfig.SweepBuckets {
		buckets = storage.NewBuckets(c.s3Client, c.region)
	}
	return stack.NewService(c.cfnClient), stack.NewPoller(c.cfnClient), buckets
}

// templateUploader stages large templates in the configured bucket, or in
// stackrun-templates-{account}-{region} when none is configured.
func (c *awsClients) templateUploader() *template.Uploader {
	bucket := c.appConfig.TemplateBucket
	if bucket == "" {
		bucket = fmt.Sprintf("stackrun-templates-%s-%s", c.owner.Account, c.region)
	}
	return template.NewUploader(c.s3Client, bucket, c.region)
}

// auditor opens the audit log. Failure to open it is not fatal.
func (c *awsClients) auditor() logging.Auditor {
	a, err := logging.NewAuditLogger(filepath.Join(c.configDir, "audit.log"))
	if err != nil {
		return nil
	}
	return a
}

// useColor decides whether status output is coloured: enabled in config,
// not disabled by flag or NO_COLOR, and stdout is a terminal.
func (c *awsClients) useColor(cliCtx *cli.CLIContext) bool {
	if !c.appConfig.Color || os.Getenv("NO_COLOR") != "" {
		return false
	}
	if cliCtx != nil && (cliCtx.NoColor || cliCtx.JSON) {
		return false
	}
	return progress.IsTerminal(os.Stdout)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
