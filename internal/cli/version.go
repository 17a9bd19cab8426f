package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Set via -ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

func newVersionCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version and build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON {
				return a.printJSON(map[string]string{
					"version": Version,
					"commit":  Commit,
					"date":    Date,
				})
			}
			_, err := fmt.Fprintf(a.out, "stepgraph %s (commit: %s, built: %s)\n", Version, Commit, Date)
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output version info as JSON")
	return cmd
}
