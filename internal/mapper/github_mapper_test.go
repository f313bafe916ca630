package mapper_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/copilot-survey/internal/mapper"
	"basegraph.app/copilot-survey/internal/model"
)

const pullRequestClosed = `{
  "action": "closed",
  "number": 44,
  "pull_request": {
    "number": 44,
    "title": "Add retry to exporter",
    "body": "Fixes flaky export",
    "user": {"login": "octocat"}
  },
  "repository": {"name": "hello-world", "owner": {"login": "acme"}},
  "organization": {"login": "acme"},
  "enterprise": {"name": "Acme Corp"}
}`

const surveyEdited = `{
  "action": "edited",
  "issue": {
    "id": 9001,
    "number": 7,
    "title": "Copilot Usage - PR#44",
    "body": "survey body",
    "assignee": {"login": "octocat"},
    "created_at": "2024-03-01T10:00:00Z",
    "updated_at": "2024-03-01T10:05:00Z"
  },
  "repository": {"name": "hello-world", "owner": {"login": "acme"}}
}`

const surveyCommented = `{
  "action": "created",
  "issue": {
    "id": 9001,
    "number": 7,
    "title": "Copilot Usage - PR#44",
    "body": "survey body"
  },
  "comment": {"id": 55, "body": "it helped", "user": {"login": "octocat"}},
  "repository": {"name": "hello-world", "owner": {"login": "acme"}},
  "organization": {"login": "acme"}
}`

var _ = Describe("GitHubEventMapper", func() {
	var (
		m   mapper.EventMapper
		ctx context.Context
	)

	BeforeEach(func() {
		next := int64(100)
		m = mapper.NewGitHubEventMapperWithIDs(func() int64 {
			next++
			return next
		})
		ctx = context.Background()
	})

	Describe("pull_request", func() {
		It("maps a closed pull request", func() {
			event, err := m.Map(ctx, "pull_request", "delivery-1", []byte(pullRequestClosed))
			Expect(err).NotTo(HaveOccurred())

			Expect(event.ID).To(Equal(int64(101)))
			Expect(event.DeliveryID).To(Equal("delivery-1"))
			Expect(event.Kind).To(Equal(model.SurveyEventPullRequestClosed))
			Expect(event.Repo).To(Equal(model.RepoRef{Owner: "acme", Name: "hello-world"}))
			Expect(event.OrganizationName).To(Equal("acme"))
			Expect(event.EnterpriseName).To(Equal("Acme Corp"))
			Expect(event.PullRequest).To(Equal(&model.PullRequest{
				Number: 44,
				Author: "octocat",
				Title:  "Add retry to exporter",
				Body:   "Fixes flaky export",
			}))
		})

		It("ignores other actions", func() {
			_, err := m.Map(ctx, "pull_request", "d", []byte(`{"action":"opened","pull_request":{"number":1}}`))
			Expect(errors.Is(err, mapper.ErrEventIgnored)).To(BeTrue())
		})
	})

	Describe("issues", func() {
		It("maps an edited survey issue", func() {
			event, err := m.Map(ctx, "issues", "d", []byte(surveyEdited))
			Expect(err).NotTo(HaveOccurred())

			Expect(event.Kind).To(Equal(model.SurveyEventEdited))
			Expect(event.Comment).To(BeNil())
			Expect(event.Issue.ID).To(Equal(int64(9001)))
			Expect(event.Issue.Number).To(Equal(7))
			Expect(event.Issue.Assignee).To(Equal("octocat"))
			Expect(event.Issue.CreatedAt).To(Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)))
			Expect(event.Issue.UpdatedAt).To(Equal(time.Date(2024, 3, 1, 10, 5, 0, 0, time.UTC)))
			Expect(event.OrganizationName).To(BeEmpty())
			Expect(event.EnterpriseName).To(BeEmpty())
		})

		It("ignores issues that are not surveys", func() {
			payload := `{"action":"edited","issue":{"id":1,"number":2,"title":"Bug report"}}`
			_, err := m.Map(ctx, "issues", "d", []byte(payload))
			Expect(errors.Is(err, mapper.ErrEventIgnored)).To(BeTrue())
		})

		It("ignores opened survey issues", func() {
			payload := `{"action":"opened","issue":{"id":1,"number":2,"title":"Copilot Usage - PR#3"}}`
			_, err := m.Map(ctx, "issues", "d", []byte(payload))
			Expect(errors.Is(err, mapper.ErrEventIgnored)).To(BeTrue())
		})
	})

	Describe("issue_comment", func() {
		It("maps a new comment on a survey issue", func() {
			event, err := m.Map(ctx, "issue_comment", "d", []byte(surveyCommented))
			Expect(err).NotTo(HaveOccurred())

			Expect(event.Kind).To(Equal(model.SurveyEventCommented))
			Expect(event.Comment).To(Equal(&model.IssueComment{ID: 55, Author: "octocat", Body: "it helped"}))
			Expect(event.Document()).To(Equal(model.QuestionnaireDocument{Body: "survey body", Comment: "it helped"}))
			Expect(event.OrganizationName).To(Equal("acme"))
		})

		It("ignores comments on pull requests", func() {
			payload := `{
				"action":"created",
				"issue":{"id":1,"number":2,"title":"Copilot Usage - PR#3","pull_request":{"url":"https://example.test/pr/3"}},
				"comment":{"id":1,"body":"x"}
			}`
			_, err := m.Map(ctx, "issue_comment", "d", []byte(payload))
			Expect(errors.Is(err, mapper.ErrEventIgnored)).To(BeTrue())
		})

		It("ignores edited comments", func() {
			payload := `{"action":"edited","issue":{"id":1,"number":2,"title":"Copilot Usage - PR#3"},"comment":{"id":1}}`
			_, err := m.Map(ctx, "issue_comment", "d", []byte(payload))
			Expect(errors.Is(err, mapper.ErrEventIgnored)).To(BeTrue())
		})
	})

	It("ignores unrelated event types", func() {
		_, err := m.Map(ctx, "ping", "d", []byte(`{"zen":"Keep it logically awesome."}`))
		Expect(errors.Is(err, mapper.ErrEventIgnored)).To(BeTrue())

		_, err = m.Map(ctx, "made_up_event", "d", []byte(`{}`))
		Expect(errors.Is(err, mapper.ErrEventIgnored)).To(BeTrue())
	})

	It("rejects malformed payloads", func() {
		_, err := m.Map(ctx, "issues", "d", []byte(`{not json`))
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, mapper.ErrEventIgnored)).To(BeFalse())
	})
})
