// Package cli implements the stepgraph command line tool.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/petrijr/stepgraph/internal/config"
	"github.com/petrijr/stepgraph/internal/logging"
)

// app carries what every subcommand needs after PersistentPreRunE.
type app struct {
	flagVerbose   bool
	flagQuiet     bool
	flagConfig    string
	flagLogFormat string

	cfg    *config.Config
	logger *slog.Logger
	out    io.Writer
}

// NewRootCmd builds the command tree. Output goes to out; logs go to stderr.
func NewRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}

	cmd := &cobra.Command{
		Use:   "stepgraph",
		Short: "Run step-graph workflows",
		Long: `stepgraph runs the built-in demo workflows of the stepgraph engine
against a configurable memory backend and prints every step result as JSON.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	cmd.PersistentFlags().BoolVarP(&a.flagVerbose, "verbose", "v", false, "Enable verbose (debug) output")
	cmd.PersistentFlags().BoolVarP(&a.flagQuiet, "quiet", "q", false, "Suppress all output except errors")
	cmd.PersistentFlags().StringVar(&a.flagConfig, "config", "", "Path to a stepgraph config file (yaml, toml or json)")
	cmd.PersistentFlags().StringVar(&a.flagLogFormat, "log-format", "", "Log format: text or json (default from config)")

	cmd.AddCommand(
		newRunCmd(a),
		newListCmd(a),
		newMemoryCmd(a),
		newVersionCmd(a),
	)
	return cmd
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.flagConfig)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Log.Format = a.flagLogFormat
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	a.cfg = cfg

	a.logger = logging.Setup(logging.Options{
		Verbose: a.flagVerbose,
		Quiet:   a.flagQuiet,
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
	})
	return nil
}

// Execute runs the root command and returns the exit code.
func Execute() int {
	if err := NewRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
