package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/FOI-Bioinformatics/nanorunner/sim"
)

// profilesCmd lists the built-in configuration profiles
var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List built-in configuration profiles",
	Run: func(cmd *cobra.Command, args []string) {
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tTIMING\tBATCH\tOPERATION\tDESCRIPTION")
		for _, name := range sim.ProfileNames() {
			p, _ := sim.GetProfile(name)
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", p.Name, p.TimingModel, p.BatchSize, p.Operation, p.Description)
		}
		w.Flush()
	},
}

// adaptersCmd lists the built-in pipeline adapters
var adaptersCmd = &cobra.Command{
	Use:   "adapters",
	Short: "List supported pipeline adapters",
	Run: func(cmd *cobra.Command, args []string) {
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tDESCRIPTION")
		for _, name := range sim.AdapterNames() {
			a, _ := sim.GetAdapter(name)
			fmt.Fprintf(w, "%s\t%s\n", a.Name, a.Description)
		}
		w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(profilesCmd)
	rootCmd.AddCommand(adaptersCmd)
}
