package cmd

import (
	"github.com/encodeous/dsdvsim/core"
	"github.com/encodeous/dsdvsim/state"
	"github.com/spf13/cobra"
)

var logPath string

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a scenario",
	Long:  `Runs the scenario until every round has completed, then prints the statistics report. Send SIGINT or Ctrl+C to stop early.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		return core.Bootstrap(scenarioPath, logPath, verbose)
	},
	SilenceUsage: true,
	GroupID:      "sim",
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("verbose", "v", false, "Verbose output")
	runCmd.Flags().StringVarP(&logPath, "log", "l", "", "Also write logs to this file")
	runCmd.Flags().BoolVarP(&state.DBG_log_table, "ltable", "t", false, "Outputs routing table decisions to the console")
	runCmd.Flags().BoolVarP(&state.DBG_log_links, "llinks", "k", false, "Outputs link changes to the console")
	runCmd.Flags().BoolVarP(&state.DBG_log_packets, "lpackets", "p", false, "Outputs every data packet to the console")
	runCmd.Flags().BoolVarP(&state.DBG_log_adverts, "ladverts", "a", false, "Outputs every advertisement to the console")
	runCmd.Flags().StringVarP(&state.DBG_metrics, "metrics", "m", "", "Serve metrics on this address, e.g. 127.0.0.1:6060")
}
