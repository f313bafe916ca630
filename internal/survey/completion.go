package survey

import "basegraph.app/copilot-survey/internal/model"

// Signals are the per-event facts the completion decision needs beyond the record.
type Signals struct {
	Usage Classification
	// CommentSupplied is true when this event carried a non-empty comment.
	CommentSupplied bool
	// SavingsInvestedAsked is true when the questionnaire includes the
	// savings-invested question (newer template versions).
	SavingsInvestedAsked bool
}

// IsComplete reports whether the issue can be closed.
//
// Affirmative path: copilot used and every rating question answered.
// Negative path: a negative usage answer plus a justification comment in this event.
func IsComplete(record model.SurveyRecord, signals Signals) bool {
	if record.CopilotUsed &&
		record.SavingPercentage != "" &&
		record.UsageFrequency != "" &&
		(!signals.SavingsInvestedAsked || record.SavingsInvested != "") {
		return true
	}

	return signals.Usage.Negative && signals.CommentSupplied
}
