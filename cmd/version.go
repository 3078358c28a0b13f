package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/SpiceLabsHQ/stackrun/internal/cli"
)

// Release metadata, set by the release build:
//
//	-ldflags "-X github.com/SpiceLabsHQ/stackrun/cmd.version=v0.3.0
//	  -X github.com/SpiceLabsHQ/stackrun/cmd.commit=$(git rev-parse --short HEAD)
//	  -X github.com/SpiceLabsHQ/stackrun/cmd.date=$(date -u +%Y-%m-%d)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// buildInfo describes the running binary. Include it in bug reports about
// stack deployments so the CloudFormation behavior can be matched to a
// release.
type buildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func currentBuild() buildInfo {
	return buildInfo{
		Version:   version,
		Commit:    commit,
		Date:      date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the stackrun release and build details",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := currentBuild()
			w := cmd.OutOrStdout()

			if cliCtx := cli.FromCommand(cmd); cliCtx != nil && cliCtx.JSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}

			fmt.Fprintf(w, "stackrun %s\n", info.Version)
			fmt.Fprintf(w, "  %-7s %s\n", "commit", info.Commit)
			fmt.Fprintf(w, "  %-7s %s\n", "built", info.Date)
			_, err := fmt.Fprintf(w, "  %-7s %s %s\n", "go", info.GoVersion, info.Platform)
			return err
		},
	}
}
