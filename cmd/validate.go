package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/FOI-Bioinformatics/nanorunner/sim"
)

var validatePipeline string // Adapter name to validate against

// validateCmd checks a delivery directory against a pipeline's expectations
var validateCmd = &cobra.Command{
	Use:   "validate <target_dir>",
	Short: "Validate a delivery directory for a downstream pipeline",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		adapter, ok := sim.GetAdapter(validatePipeline)
		if !ok {
			logrus.Fatalf("Unknown pipeline %q (see 'nanorunner adapters')", validatePipeline)
		}

		report := adapter.Validate(args[0])
		fmt.Printf("Pipeline:        %s\n", report.Pipeline)
		fmt.Printf("Structure valid: %v\n", report.StructureValid)
		fmt.Printf("Files found:     %d\n", len(report.FilesFound))
		for _, f := range report.FilesFound {
			fmt.Printf("  %s\n", f)
		}
		for _, m := range report.MissingFiles {
			fmt.Printf("Missing: %s\n", m)
		}
		for _, w := range report.Warnings {
			fmt.Printf("Warning: %s\n", w)
		}
		for _, e := range report.Errors {
			fmt.Printf("Error: %s\n", e)
		}

		if !report.Valid {
			fmt.Println("Result: INVALID")
			os.Exit(1)
		}
		fmt.Println("Result: valid")
	},
}

func init() {
	validateCmd.Flags().StringVar(&validatePipeline, "pipeline", "nanometanf", "Pipeline adapter to validate against")
	rootCmd.AddCommand(validateCmd)
}
