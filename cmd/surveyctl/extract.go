package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"basegraph.app/copilot-survey/internal/model"
	"basegraph.app/copilot-survey/internal/survey"
)

var (
	extractTitle       string
	extractCommentFile string
)

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Parse a survey issue body and print the answers as JSON",
	Long: `Parse a survey issue body (markdown) and print the extracted answers,
the usage classification and whether the survey would be closed.

Examples:
  surveyctl extract body.md --title "Copilot Usage - PR#44"
  surveyctl extract body.md --comment-file reason.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVar(&extractTitle, "title", "", "Issue title (PR number is read from the body when empty)")
	extractCmd.Flags().StringVar(&extractCommentFile, "comment-file", "", "File holding a new comment on the survey")
}

type extraction struct {
	PRNumber         int      `json:"pr_number"`
	Usage            []string `json:"usage"`
	CopilotUsed      *bool    `json:"is_copilot_used"`
	Negative         bool     `json:"negative"`
	SavingPercentage string   `json:"saving_percentage"`
	UsageFrequency   string   `json:"usage_frequency"`
	SavingsInvested  string   `json:"savings_invested"`
	SavingsAsked     bool     `json:"savings_invested_asked"`
	Comment          string   `json:"comment,omitempty"`
	Complete         bool     `json:"complete"`
}

func runExtract(cmd *cobra.Command, args []string) error {
	body, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	doc := model.QuestionnaireDocument{Body: string(body)}
	if extractCommentFile != "" {
		comment, err := os.ReadFile(extractCommentFile)
		if err != nil {
			return fmt.Errorf("reading %s: %w", extractCommentFile, err)
		}
		doc.Comment = string(comment)
	}

	out, err := extract(extractTitle, doc)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// extract evaluates doc as if it were the first event for a fresh issue.
func extract(title string, doc model.QuestionnaireDocument) (*extraction, error) {
	eval, err := survey.Evaluate(title, doc, survey.DefaultSchema)
	if err != nil {
		return nil, err
	}

	resp := eval.Response()
	record := survey.Reconcile(nil, resp, eval.Comment)

	return &extraction{
		PRNumber:         eval.PRNumber,
		Usage:            eval.Usage.Options,
		CopilotUsed:      resp.CopilotUsed,
		Negative:         eval.Classification.Negative,
		SavingPercentage: record.SavingPercentage,
		UsageFrequency:   record.UsageFrequency,
		SavingsInvested:  record.SavingsInvested,
		SavingsAsked:     eval.SavingsInvested.Present,
		Comment:          record.Comment,
		Complete:         survey.IsComplete(record, eval.Signals()),
	}, nil
}
