package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// silentExitError is an error that carries no message text. It signals to
// main.go that the command failed (so os.Exit(1) is appropriate) but that
// the error has already been reported to the user, e.g. as JSON on stdout.
type silentExitError struct{}

func (silentExitError) Error() string { return "" }

// reportJSONError writes err as {"error": "..."} to stdout and returns a
// silentExitError so main.go does not print it a second time.
func reportJSONError(cmd *cobra.Command, err error) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	_ = enc.Encode(map[string]string{"error": err.Error()})
	return silentExitError{}
}
