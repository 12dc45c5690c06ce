package cmd

import (
	"fmt"

	"github.com/encodeous/dsdvsim/state"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

var printExpanded bool

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Validates a scenario without running it",
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := state.ReadScenario(scenarioPath)
		if err != nil {
			return err
		}
		state.ExpandScenario(sc)
		err = state.ScenarioValidator(sc)
		if err != nil {
			return err
		}
		links, err := sc.Links()
		if err != nil {
			return err
		}

		fmt.Printf("Scenario %q is valid: %d hosts, %d rounds\n", sc.Name, len(sc.Hosts), sc.Rounds)
		if links != nil {
			fmt.Printf("%d links allowed by the graph\n", len(links))
		}
		if printExpanded {
			out, err := yaml.Marshal(sc)
			if err != nil {
				return err
			}
			fmt.Println(string(out))
		}
		return nil
	},
	SilenceUsage: true,
	GroupID:      "sim",
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().BoolVarP(&printExpanded, "print", "p", false, "Print the expanded scenario")
}
