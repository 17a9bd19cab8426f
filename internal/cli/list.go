package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the built-in workflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			for _, name := range demoNames() {
				fmt.Fprintf(tw, "%s\t%s\n", name, demos[name].Description)
			}
			return tw.Flush()
		},
	}
}
