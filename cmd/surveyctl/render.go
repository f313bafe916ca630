package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"basegraph.app/copilot-survey/internal/issuetemplate"
	"basegraph.app/copilot-survey/internal/survey"
)

var (
	renderLocale string
	renderPR     int
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Print the survey issue that would be opened for a pull request",
	Long: `Print the title and body of the survey issue for a pull request.
Unknown locales fall back to English.

Examples:
  surveyctl render --pr 44
  surveyctl render --locale es --pr 44`,
	RunE: runRender,
}

func init() {
	renderCmd.Flags().StringVar(&renderLocale, "locale", issuetemplate.DefaultLocale, "Template locale (en, es, pt, fr)")
	renderCmd.Flags().IntVar(&renderPR, "pr", 0, "Pull request number")
	_ = renderCmd.MarkFlagRequired("pr")
}

func runRender(cmd *cobra.Command, args []string) error {
	src, err := issuetemplate.NewEmbeddedSource()
	if err != nil {
		return err
	}

	body, locale := issuetemplate.Render(src, renderLocale, renderPR)
	if locale != renderLocale {
		fmt.Fprintf(cmd.ErrOrStderr(), "no %q template, using %q\n", renderLocale, locale)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n%s", survey.SurveyTitle(renderPR), body)
	return nil
}
