package mapper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/go-github/v57/github"

	"basegraph.app/copilot-survey/common/id"
	"basegraph.app/copilot-survey/internal/model"
	"basegraph.app/copilot-survey/internal/survey"
)

// ErrEventIgnored is returned for deliveries that carry no survey work.
var ErrEventIgnored = errors.New("event ignored")

// EventMapper turns a raw webhook delivery into a survey event.
type EventMapper interface {
	Map(ctx context.Context, eventType, deliveryID string, payload []byte) (*model.SurveyEvent, error)
}

type GitHubEventMapper struct {
	newID func() int64
}

func NewGitHubEventMapper() *GitHubEventMapper {
	return &GitHubEventMapper{newID: id.New}
}

// NewGitHubEventMapperWithIDs is used by tests that need deterministic IDs.
func NewGitHubEventMapperWithIDs(newID func() int64) *GitHubEventMapper {
	return &GitHubEventMapper{newID: newID}
}

// owners carries the fields go-github does not expose on every event type.
type owners struct {
	Enterprise *struct {
		Name string `json:"name"`
	} `json:"enterprise"`
	Organization *struct {
		Login string `json:"login"`
	} `json:"organization"`
}

func (m *GitHubEventMapper) Map(ctx context.Context, eventType, deliveryID string, payload []byte) (*model.SurveyEvent, error) {
	parsed, err := github.ParseWebHook(eventType, payload)
	if err != nil {
		if eventType == "" {
			return nil, fmt.Errorf("missing event type: %w", err)
		}
		// unknown event types are ignored, malformed JSON is an error
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
			return nil, fmt.Errorf("parsing %s payload: %w", eventType, err)
		}
		return nil, fmt.Errorf("%w: %s", ErrEventIgnored, eventType)
	}

	var event *model.SurveyEvent
	switch e := parsed.(type) {
	case *github.PullRequestEvent:
		event, err = m.mapPullRequest(e)
	case *github.IssuesEvent:
		event, err = m.mapIssue(e)
	case *github.IssueCommentEvent:
		event, err = m.mapIssueComment(e)
	default:
		return nil, fmt.Errorf("%w: %s", ErrEventIgnored, eventType)
	}
	if err != nil {
		return nil, err
	}

	var o owners
	if err := json.Unmarshal(payload, &o); err != nil {
		return nil, fmt.Errorf("parsing %s payload: %w", eventType, err)
	}
	if o.Enterprise != nil {
		event.EnterpriseName = o.Enterprise.Name
	}
	if o.Organization != nil {
		event.OrganizationName = o.Organization.Login
	}

	event.ID = m.newID()
	event.DeliveryID = deliveryID
	return event, nil
}

func (m *GitHubEventMapper) mapPullRequest(e *github.PullRequestEvent) (*model.SurveyEvent, error) {
	if e.GetAction() != "closed" || e.GetPullRequest() == nil {
		return nil, fmt.Errorf("%w: pull_request.%s", ErrEventIgnored, e.GetAction())
	}

	pr := e.GetPullRequest()
	return &model.SurveyEvent{
		Kind: model.SurveyEventPullRequestClosed,
		Repo: repoRef(e.GetRepo()),
		PullRequest: &model.PullRequest{
			Number: pr.GetNumber(),
			Author: pr.GetUser().GetLogin(),
			Title:  pr.GetTitle(),
			Body:   pr.GetBody(),
		},
	}, nil
}

func (m *GitHubEventMapper) mapIssue(e *github.IssuesEvent) (*model.SurveyEvent, error) {
	if e.GetAction() != "edited" {
		return nil, fmt.Errorf("%w: issues.%s", ErrEventIgnored, e.GetAction())
	}
	if !isSurveyIssue(e.GetIssue()) {
		return nil, fmt.Errorf("%w: not a survey issue", ErrEventIgnored)
	}

	return &model.SurveyEvent{
		Kind:  model.SurveyEventEdited,
		Repo:  repoRef(e.GetRepo()),
		Issue: surveyIssue(e.GetIssue()),
	}, nil
}

func (m *GitHubEventMapper) mapIssueComment(e *github.IssueCommentEvent) (*model.SurveyEvent, error) {
	if e.GetAction() != "created" {
		return nil, fmt.Errorf("%w: issue_comment.%s", ErrEventIgnored, e.GetAction())
	}
	if !isSurveyIssue(e.GetIssue()) {
		return nil, fmt.Errorf("%w: not a survey issue", ErrEventIgnored)
	}

	c := e.GetComment()
	return &model.SurveyEvent{
		Kind:  model.SurveyEventCommented,
		Repo:  repoRef(e.GetRepo()),
		Issue: surveyIssue(e.GetIssue()),
		Comment: &model.IssueComment{
			ID:     c.GetID(),
			Author: c.GetUser().GetLogin(),
			Body:   c.GetBody(),
		},
	}, nil
}

func isSurveyIssue(issue *github.Issue) bool {
	return issue != nil && !issue.IsPullRequest() && survey.IsSurveyTitle(issue.GetTitle())
}

func surveyIssue(issue *github.Issue) *model.SurveyIssue {
	return &model.SurveyIssue{
		ID:        issue.GetID(),
		Number:    issue.GetNumber(),
		Title:     issue.GetTitle(),
		Body:      issue.GetBody(),
		Assignee:  issue.GetAssignee().GetLogin(),
		CreatedAt: issue.GetCreatedAt().Time,
		UpdatedAt: issue.GetUpdatedAt().Time,
	}
}

func repoRef(repo *github.Repository) model.RepoRef {
	return model.RepoRef{
		Owner: repo.GetOwner().GetLogin(),
		Name:  repo.GetName(),
	}
}
