package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var scenarioPath = "scenario.yaml"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dsdvsim",
	Short: "DSDV routing simulator",
	Long: `dsdvsim simulates a mobile ad-hoc network running the DSDV routing protocol.
Hosts move around an area, exchange routing tables with the hosts in range and forward data packets, then the delivery statistics are reported.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddGroup(&cobra.Group{
		ID:    "init",
		Title: "Create Scenarios",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "sim",
		Title: "Simulation Commands",
	})
	rootCmd.PersistentFlags().StringVarP(&scenarioPath, "scenario", "s", scenarioPath, "path to the scenario file")
}
