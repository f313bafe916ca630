package model

import "time"

// QuestionnaireDocument is the text a survey response is extracted from.
// Comment is empty unless the triggering event was a new comment.
type QuestionnaireDocument struct {
	Body    string `json:"body"`
	Comment string `json:"comment,omitempty"`
}

// Answer holds the checked options of one question.
// Present reports whether the question header exists in the document at all,
// so "asked but unanswered" (Present, nil Options) differs from "not present".
type Answer struct {
	Present bool     `json:"present"`
	Options []string `json:"options,omitempty"`
}

func (a Answer) Answered() bool {
	return len(a.Options) > 0
}

// AnswerSet holds one Answer per requested question, in request order.
type AnswerSet []Answer

// SurveyRecord is the durable per-issue row. IssueID is the dedup key.
type SurveyRecord struct {
	EnterpriseName   string    `json:"enterprise_name"`
	OrganizationName string    `json:"organization_name"`
	RepositoryName   string    `json:"repository_name"`
	IssueID          int64     `json:"issue_id"`
	IssueNumber      int       `json:"issue_number"`
	PRNumber         int       `json:"pr_number"`
	AssigneeName     string    `json:"assignee_name"`
	CopilotUsed      bool      `json:"is_copilot_used"`
	SavingPercentage string    `json:"saving_percentage"`
	UsageFrequency   string    `json:"usage_frequency"`
	SavingsInvested  string    `json:"savings_invested"`
	Comment          string    `json:"comment"`
	CreatedAt        time.Time `json:"created_at"`
	CompletedAt      time.Time `json:"completed_at"`
}

// SurveyResponse carries the values observed in a single event.
// Zero values mean "not provided"; CopilotUsed is nil while question 1 is unanswered.
type SurveyResponse struct {
	EnterpriseName   string
	OrganizationName string
	RepositoryName   string
	IssueID          int64
	IssueNumber      int
	PRNumber         int
	AssigneeName     string
	CopilotUsed      *bool
	SavingPercentage string
	UsageFrequency   string
	SavingsInvested  string
	CreatedAt        time.Time
	CompletedAt      time.Time
}
