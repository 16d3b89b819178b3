package cmd

import (
	"context"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "otr",
	Short: "OpenTraceRoute - grid-based PCB autorouter",
	Long: `OpenTraceRoute (otr) routes the unconnected nets of a KiCad board on a
layered grid, negotiating congestion between nets until every cell is used
by at most one net.

Examples:
  otr route board.kicad_pcb --out routed.kicad_pcb   # Route and write a new board
  otr route board.kicad_pcb --adaptive --png board.png
  otr stacks                                         # List layer stack presets
  otr config > otr.toml                              # Write the default configuration
  otr serve --addr :8080                             # Run the HTTP service`,
	Version:      "0.9.0",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := log.InfoLevel
		if verbose {
			level = log.DebugLevel
		}
		cmd.SetContext(withLogger(cmd.Context(), newLogger(os.Stderr, level)))
	},
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
