package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SpiceLabsHQ/stackrun/internal/cli"
	"github.com/SpiceLabsHQ/stackrun/internal/config"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Display current configuration",
		Long: "Display all stackrun configuration values. Uses ~/.config/stackrun/config.toml; " +
			"STACKRUN_<KEY> environment variables override the file.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.DefaultConfigDir())
			if err != nil {
				return err
			}

			cliCtx := cli.FromCommand(cmd)
			if cliCtx != nil && cliCtx.JSON {
				return printConfigJSON(cmd, cfg)
			}
			return printConfigHuman(cmd, cfg)
		},
	}

	cmd.AddCommand(newConfigGetCommand())
	cmd.AddCommand(newConfigSetCommand())

	return cmd
}

func printConfigJSON(cmd *cobra.Command, cfg *config.Config) error {
	data := map[string]any{
		"region":                cfg.Region,
		"profile":               cfg.Profile,
		"poll_interval_seconds": cfg.PollIntervalSeconds,
		"template_bucket":       cfg.TemplateBucket,
		"sweep_buckets":         cfg.SweepBuckets,
		"color":                 cfg.Color,
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func printConfigHuman(cmd *cobra.Command, cfg *config.Config) error {
	w := cmd.OutOrStdout()
	for _, key := range config.ValidKeys() {
		if _, err := fmt.Fprintf(w, "%-21s %s\n", key, configValue(cfg, key)); err != nil {
			return err
		}
	}
	return nil
}
