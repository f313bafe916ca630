package model

import (
	"fmt"
	"time"
)

type SurveyEventKind string

const (
	SurveyEventPullRequestClosed SurveyEventKind = "pull_request_closed"
	SurveyEventEdited            SurveyEventKind = "survey_edited"
	SurveyEventCommented         SurveyEventKind = "survey_commented"
)

// RepoRef identifies a repository on the issue tracker.
type RepoRef struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

func (r RepoRef) String() string {
	return fmt.Sprintf("%s/%s", r.Owner, r.Name)
}

type PullRequest struct {
	Number int    `json:"number"`
	Author string `json:"author"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

type SurveyIssue struct {
	ID        int64     `json:"id"`
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Assignee  string    `json:"assignee,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type IssueComment struct {
	ID     int64  `json:"id"`
	Author string `json:"author"`
	Body   string `json:"body"`
}

// SurveyEvent is the provider-neutral form of an inbound webhook.
// It is JSON encoded when events travel through the queue.
type SurveyEvent struct {
	ID               int64           `json:"id"`
	DeliveryID       string          `json:"delivery_id,omitempty"`
	Kind             SurveyEventKind `json:"kind"`
	Repo             RepoRef         `json:"repo"`
	EnterpriseName   string          `json:"enterprise_name,omitempty"`
	OrganizationName string          `json:"organization_name,omitempty"`
	PullRequest      *PullRequest    `json:"pull_request,omitempty"`
	Issue            *SurveyIssue    `json:"issue,omitempty"`
	Comment          *IssueComment   `json:"comment,omitempty"`
}

// Document snapshots the questionnaire carried by a survey event.
func (e SurveyEvent) Document() QuestionnaireDocument {
	var doc QuestionnaireDocument
	if e.Issue != nil {
		doc.Body = e.Issue.Body
	}
	if e.Comment != nil {
		doc.Comment = e.Comment.Body
	}
	return doc
}
