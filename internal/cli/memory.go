package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/petrijr/stepgraph/internal/config"
)

func newMemoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect or clear thread memory in the configured backend",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <thread-id>",
		Short: "Print the saved memory of a thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mem, closeMem, err := config.OpenMemory(cmd.Context(), a.cfg.Memory)
			if err != nil {
				return err
			}
			defer closeMem()

			state, err := mem.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if state == nil {
				return fmt.Errorf("thread %q has no saved memory", args[0])
			}
			return a.printJSON(map[string]any{
				"threadId":  state.ThreadID,
				"updatedAt": state.UpdatedAt,
				"values":    state.Values,
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "forget <thread-id>",
		Short: "Delete the saved memory of a thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mem, closeMem, err := config.OpenMemory(cmd.Context(), a.cfg.Memory)
			if err != nil {
				return err
			}
			defer closeMem()

			if err := mem.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			a.logger.Info("thread forgotten", "thread", args[0])
			return nil
		},
	})
	return cmd
}
