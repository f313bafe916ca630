// Command surveyctl inspects survey questionnaires and exports recorded results.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "surveyctl",
	Short: "Inspect Copilot usage surveys and export their results",
	Long: `surveyctl works with the Copilot usage survey outside the webhook server.

Examples:
  surveyctl extract issue.md --title "Copilot Usage - PR#44"
  surveyctl render --locale pt --pr 44
  surveyctl export --out results.csv
  surveyctl export --repo acme/web`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error: "+err.Error())
		os.Exit(1)
	}
}
