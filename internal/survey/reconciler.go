package survey

import (
	"strings"
	"time"

	"basegraph.app/copilot-survey/internal/model"
)

// Separator joins multiple selections and accumulated comments.
const Separator = " || "

// JoinSelections stores a multi-valued answer as a single field.
func JoinSelections(options []string) string {
	return strings.Join(options, Separator)
}

// FlattenComment collapses a comment to a single line.
func FlattenComment(comment string) string {
	comment = strings.ReplaceAll(comment, "\r\n", " ")
	comment = strings.ReplaceAll(comment, "\n", " ")
	comment = strings.ReplaceAll(comment, "\r", " ")
	return strings.TrimSpace(comment)
}

// Reconcile merges an incoming response into the stored record for the same issue.
//
// Every field except the comment is last-writer-wins per field: a non-empty
// incoming value replaces the stored one, an empty one keeps it. Comments
// accumulate in arrival order.
func Reconcile(existing *model.SurveyRecord, in model.SurveyResponse, newComment string) model.SurveyRecord {
	var out model.SurveyRecord
	if existing != nil {
		out = *existing
	}

	out.EnterpriseName = pickString(in.EnterpriseName, out.EnterpriseName)
	out.OrganizationName = pickString(in.OrganizationName, out.OrganizationName)
	out.RepositoryName = pickString(in.RepositoryName, out.RepositoryName)
	if in.IssueID != 0 {
		out.IssueID = in.IssueID
	}
	if in.IssueNumber != 0 {
		out.IssueNumber = in.IssueNumber
	}
	if in.PRNumber != 0 {
		out.PRNumber = in.PRNumber
	}
	out.AssigneeName = pickString(in.AssigneeName, out.AssigneeName)
	if in.CopilotUsed != nil {
		out.CopilotUsed = *in.CopilotUsed
	}
	out.SavingPercentage = pickString(in.SavingPercentage, out.SavingPercentage)
	out.UsageFrequency = pickString(in.UsageFrequency, out.UsageFrequency)
	out.SavingsInvested = pickString(in.SavingsInvested, out.SavingsInvested)
	out.CreatedAt = pickTime(in.CreatedAt, out.CreatedAt)
	out.CompletedAt = pickTime(in.CompletedAt, out.CompletedAt)
	out.Comment = AppendComment(FlattenComment(out.Comment), newComment)

	return out
}

// AppendComment joins a new comment onto the accumulated ones.
func AppendComment(previous, comment string) string {
	comment = FlattenComment(comment)
	switch {
	case previous == "":
		return comment
	case comment == "":
		return previous
	default:
		return previous + Separator + comment
	}
}

func pickString(incoming, existing string) string {
	if incoming != "" {
		return incoming
	}
	return existing
}

func pickTime(incoming, existing time.Time) time.Time {
	if !incoming.IsZero() {
		return incoming
	}
	return existing
}
