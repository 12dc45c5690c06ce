package cmd

import (
	"fmt"
	"os"

	"github.com/encodeous/dsdvsim/state"
	"github.com/spf13/cobra"
)

var (
	initHosts int
	initSeed  uint64
	initForce bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Writes a new scenario with randomly placed hosts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(scenarioPath); err == nil && !initForce {
			return fmt.Errorf("%s already exists, use --force to overwrite it", scenarioPath)
		}
		sc := &state.Scenario{
			Name:        "random",
			Seed:        initSeed,
			RandomHosts: initHosts,
			Mobility: state.MobilityCfg{
				Speed: 10,
				Pause: 5,
			},
		}
		state.ExpandScenario(sc)
		err := state.ScenarioValidator(sc)
		if err != nil {
			return err
		}
		err = state.WriteScenario(scenarioPath, sc)
		if err != nil {
			return err
		}
		fmt.Printf("Wrote scenario with %d hosts to %s\n", len(sc.Hosts), scenarioPath)
		return nil
	},
	SilenceUsage: true,
	GroupID:      "init",
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().IntVarP(&initHosts, "hosts", "n", 20, "Number of hosts to place")
	initCmd.Flags().Uint64Var(&initSeed, "seed", 1, "Seed for host placement and mobility")
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing scenario")
}
