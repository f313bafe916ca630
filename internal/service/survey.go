package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"basegraph.app/copilot-survey/common/logger"
	"basegraph.app/copilot-survey/internal/issuetemplate"
	"basegraph.app/copilot-survey/internal/language"
	"basegraph.app/copilot-survey/internal/model"
	"basegraph.app/copilot-survey/internal/service/issue_tracker"
	"basegraph.app/copilot-survey/internal/store"
	"basegraph.app/copilot-survey/internal/survey"
	"basegraph.app/copilot-survey/internal/telemetry"
)

// ErrUnsupportedEvent is returned by Handle for event kinds it does not process.
var ErrUnsupportedEvent = errors.New("unsupported survey event")

// RecordResult describes what RecordResponse did with an event.
type RecordResult struct {
	Record   model.SurveyRecord
	Complete bool
	Closed   bool
}

type SurveyService interface {
	// Handle dispatches a survey event to OpenSurvey or RecordResponse.
	Handle(ctx context.Context, event *model.SurveyEvent) error
	// OpenSurvey creates the survey issue for a closed pull request.
	OpenSurvey(ctx context.Context, event *model.SurveyEvent) (*model.SurveyIssue, error)
	// RecordResponse reconciles an edited or commented survey into the store
	// and closes the issue once it is complete.
	RecordResponse(ctx context.Context, event *model.SurveyEvent) (*RecordResult, error)
}

type SurveyDeps struct {
	Tracker   issue_tracker.IssueTracker
	Stores    store.Factory
	Locker    store.Locker
	Detector  language.Detector
	Templates issuetemplate.Source
	Sink      telemetry.Sink
	Metrics   *telemetry.Metrics
	Logger    *slog.Logger
}

type SurveyOptions struct {
	DefaultLocale string
	LockTTL       time.Duration
	Schema        survey.Schema
}

type surveyService struct {
	tracker   issue_tracker.IssueTracker
	stores    store.Factory
	locker    store.Locker
	detector  language.Detector
	templates issuetemplate.Source
	sink      telemetry.Sink
	metrics   *telemetry.Metrics
	logger    *slog.Logger
	opts      SurveyOptions
}

func NewSurveyService(deps SurveyDeps, opts SurveyOptions) SurveyService {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Locker == nil {
		deps.Locker = store.NewNoopLocker()
	}
	if deps.Sink == nil {
		deps.Sink = telemetry.NewNoopSink()
	}
	if opts.DefaultLocale == "" {
		opts.DefaultLocale = issuetemplate.DefaultLocale
	}
	if deps.Detector == nil {
		deps.Detector = language.NewStaticDetector(opts.DefaultLocale)
	}
	if opts.LockTTL == 0 {
		opts.LockTTL = 30 * time.Second
	}
	if opts.Schema == (survey.Schema{}) {
		opts.Schema = survey.DefaultSchema
	}

	return &surveyService{
		tracker:   deps.Tracker,
		stores:    deps.Stores,
		locker:    deps.Locker,
		detector:  deps.Detector,
		templates: deps.Templates,
		sink:      deps.Sink,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		opts:      opts,
	}
}

func (s *surveyService) Handle(ctx context.Context, event *model.SurveyEvent) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		EventID:    logger.Ptr(event.ID),
		EventType:  logger.Ptr(string(event.Kind)),
		Repository: logger.Ptr(event.Repo.String()),
		Component:  "survey.service",
	})
	if event.DeliveryID != "" {
		ctx = logger.WithLogFields(ctx, logger.LogFields{DeliveryID: logger.Ptr(event.DeliveryID)})
	}

	span := logger.StartSpan(ctx, "survey."+string(event.Kind))
	defer span.End()
	ctx = span.Context()

	var err error
	switch event.Kind {
	case model.SurveyEventPullRequestClosed:
		_, err = s.OpenSurvey(ctx, event)
	case model.SurveyEventEdited, model.SurveyEventCommented:
		_, err = s.RecordResponse(ctx, event)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedEvent, event.Kind)
	}
	span.RecordError(err)
	return err
}

// OpenSurvey never fails on tracker errors: a survey that could not be opened
// is logged and telemetered, and the event is considered handled.
func (s *surveyService) OpenSurvey(ctx context.Context, event *model.SurveyEvent) (*model.SurveyIssue, error) {
	pr := event.PullRequest
	if pr == nil {
		return nil, fmt.Errorf("pull request event without pull request")
	}

	locale := language.Resolve(ctx, s.detector, pr.Title+"\n\n"+pr.Body, s.opts.DefaultLocale)
	body, locale := issuetemplate.Render(s.templates, locale, pr.Number)
	title := survey.SurveyTitle(pr.Number)

	start := time.Now()
	issue, err := s.tracker.CreateIssue(ctx, event.Repo, issue_tracker.CreateIssueParams{
		Title:    title,
		Body:     body,
		Assignee: pr.Author,
	})
	s.trackDependency(ctx, "github", "CreateIssue", start, err)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create survey issue",
			"error", err,
			"pr_number", pr.Number)
		s.metrics.EventFailed(string(event.Kind), "create_issue")
		s.sink.TrackException(ctx, err, map[string]string{
			"stage":     "create_issue",
			"pr_number": strconv.Itoa(pr.Number),
		})
		return nil, nil
	}

	s.metrics.SurveyOpened(locale)
	s.sink.TrackEvent(ctx, "survey_opened", map[string]string{
		"repository": event.Repo.String(),
		"pr_number":  strconv.Itoa(pr.Number),
		"locale":     locale,
	})
	s.logger.InfoContext(ctx, "survey issue created",
		"pr_number", pr.Number,
		"issue_number", issue.Number,
		"assignee", pr.Author,
		"locale", locale)

	return issue, nil
}

func (s *surveyService) RecordResponse(ctx context.Context, event *model.SurveyEvent) (*RecordResult, error) {
	issue := event.Issue
	if issue == nil {
		return nil, fmt.Errorf("survey event without issue")
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		IssueID:     logger.Ptr(issue.ID),
		IssueNumber: logger.Ptr(issue.Number),
	})

	eval, err := survey.Evaluate(issue.Title, event.Document(), s.opts.Schema)
	if err != nil {
		s.fail(ctx, event, "parse", err)
		return nil, fmt.Errorf("evaluating survey: %w", err)
	}

	unlock, err := s.locker.Lock(ctx, issue.ID, s.opts.LockTTL)
	if err != nil {
		s.fail(ctx, event, "lock", err)
		return nil, fmt.Errorf("locking issue: %w", err)
	}
	defer unlock()

	records := s.stores.For(event.Repo)

	start := time.Now()
	existing, err := records.Get(ctx, issue.ID)
	if errors.Is(err, store.ErrNotFound) {
		existing, err = nil, nil
	}
	s.trackDependency(ctx, "store", "GetSurveyRecord", start, err)
	if err != nil {
		s.fail(ctx, event, "load", err)
		return nil, fmt.Errorf("loading survey record: %w", err)
	}

	incoming := eval.Response()
	incoming.EnterpriseName = event.EnterpriseName
	incoming.OrganizationName = event.OrganizationName
	incoming.RepositoryName = event.Repo.Name
	incoming.IssueID = issue.ID
	incoming.IssueNumber = issue.Number
	incoming.AssigneeName = issue.Assignee
	incoming.CreatedAt = issue.CreatedAt
	incoming.CompletedAt = issue.UpdatedAt

	record := survey.Reconcile(existing, incoming, eval.Comment)
	complete := survey.IsComplete(record, eval.Signals())

	start = time.Now()
	err = records.Upsert(ctx, &record)
	s.trackDependency(ctx, "store", "UpsertSurveyRecord", start, err)
	if err != nil {
		s.fail(ctx, event, "store", err)
		return nil, fmt.Errorf("storing survey record: %w", err)
	}

	s.metrics.ResponseRecorded(complete)
	s.logger.InfoContext(ctx, "survey response recorded",
		"pr_number", record.PRNumber,
		"copilot_used", record.CopilotUsed,
		"complete", complete,
		"new_record", existing == nil)

	result := &RecordResult{Record: record, Complete: complete}
	if !complete {
		return result, nil
	}

	start = time.Now()
	err = s.tracker.CloseIssue(ctx, event.Repo, issue.Number)
	s.trackDependency(ctx, "github", "CloseIssue", start, err)
	if err != nil {
		// record is stored; the next edit or comment retries the close
		s.logger.ErrorContext(ctx, "failed to close completed survey", "error", err)
		s.metrics.EventFailed(string(event.Kind), "close_issue")
		s.sink.TrackException(ctx, err, map[string]string{"stage": "close_issue"})
		return result, nil
	}

	path := "negative"
	if record.CopilotUsed {
		path = "affirmative"
	}
	s.metrics.IssueClosed(path)
	s.sink.TrackEvent(ctx, "survey_closed", map[string]string{
		"repository":   event.Repo.String(),
		"issue_number": strconv.Itoa(issue.Number),
		"path":         path,
	})
	s.logger.InfoContext(ctx, "survey issue closed", "path", path)

	result.Closed = true
	return result, nil
}

func (s *surveyService) fail(ctx context.Context, event *model.SurveyEvent, stage string, err error) {
	level := slog.LevelError
	if errors.Is(err, survey.ErrMalformedSurvey) {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "survey event failed", "stage", stage, "error", err)
	s.metrics.EventFailed(string(event.Kind), stage)
	s.sink.TrackException(ctx, err, map[string]string{"stage": stage})
}

func (s *surveyService) trackDependency(ctx context.Context, target, name string, start time.Time, err error) {
	s.sink.TrackDependency(ctx, telemetry.Dependency{
		Name:     name,
		Target:   target,
		Start:    start,
		Duration: time.Since(start),
		Success:  err == nil,
	})
}
