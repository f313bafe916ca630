package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"basegraph.app/copilot-survey/internal/model"
	"basegraph.app/copilot-survey/internal/service/issue_tracker"
)

// ContentClient is the slice of the issue tracker the branch store needs.
type ContentClient interface {
	GetFileContent(ctx context.Context, repo model.RepoRef, path, ref string) (*issue_tracker.FileContent, error)
	PutFileContent(ctx context.Context, repo model.RepoRef, params issue_tracker.PutFileParams) error
	CreateBranch(ctx context.Context, repo model.RepoRef, name string) error
}

// maxWriteAttempts bounds re-reads after another writer moved the file.
const maxWriteAttempts = 3

type branchCSVStore struct {
	client ContentClient
	repo   model.RepoRef
	branch string
	path   string
}

// NewBranchCSVStore keeps records in a CSV file on a dedicated branch of repo.
func NewBranchCSVStore(client ContentClient, repo model.RepoRef, branch, path string) SurveyStore {
	return &branchCSVStore{
		client: client,
		repo:   repo,
		branch: branch,
		path:   path,
	}
}

func (s *branchCSVStore) Get(ctx context.Context, issueID int64) (*model.SurveyRecord, error) {
	file, _, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range file.Records {
		if file.Records[i].IssueID == issueID {
			return &file.Records[i], nil
		}
	}
	return nil, ErrNotFound
}

func (s *branchCSVStore) List(ctx context.Context) ([]model.SurveyRecord, error) {
	file, _, err := s.load(ctx)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return file.Records, nil
}

// Upsert rewrites the whole file with record replaced or appended. The write is
// conditional on the blob SHA that was read, so a concurrent writer causes a
// re-read instead of a lost row.
func (s *branchCSVStore) Upsert(ctx context.Context, record *model.SurveyRecord) error {
	var err error
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		err = s.upsertOnce(ctx, record)
		if !errors.Is(err, issue_tracker.ErrConflict) {
			return err
		}
		slog.WarnContext(ctx, "results file changed during write, retrying",
			"attempt", attempt,
			"path", s.path,
			"branch", s.branch)
	}
	return err
}

func (s *branchCSVStore) upsertOnce(ctx context.Context, record *model.SurveyRecord) error {
	file, sha, err := s.load(ctx)
	if errors.Is(err, ErrNotFound) {
		return s.create(ctx, record)
	}
	if err != nil {
		return err
	}

	replaced := false
	for i := range file.Records {
		if file.Records[i].IssueID == record.IssueID {
			file.Records[i] = *record
			replaced = true
			break
		}
	}
	if !replaced {
		file.Records = append(file.Records, *record)
	}
	file.Without(record.IssueID)

	content, err := file.Encode()
	if err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}

	if err := s.client.PutFileContent(ctx, s.repo, issue_tracker.PutFileParams{
		Path:    s.path,
		Content: content,
		SHA:     sha,
		Branch:  s.branch,
		Message: "Update " + s.path,
	}); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}
	return nil
}

// create makes the branch when needed and writes a fresh file with one row.
func (s *branchCSVStore) create(ctx context.Context, record *model.SurveyRecord) error {
	if err := s.client.CreateBranch(ctx, s.repo, s.branch); err != nil && !errors.Is(err, issue_tracker.ErrAlreadyExists) {
		return fmt.Errorf("creating results branch: %w", err)
	}

	content, err := EncodeCSV([]model.SurveyRecord{*record})
	if err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}

	if err := s.client.PutFileContent(ctx, s.repo, issue_tracker.PutFileParams{
		Path:    s.path,
		Content: content,
		Branch:  s.branch,
		Message: "Create " + s.path,
	}); err != nil {
		return fmt.Errorf("creating results file: %w", err)
	}

	slog.InfoContext(ctx, "results file created",
		"repository", s.repo.String(),
		"branch", s.branch,
		"path", s.path)
	return nil
}

func (s *branchCSVStore) load(ctx context.Context) (*ResultsFile, string, error) {
	file, err := s.client.GetFileContent(ctx, s.repo, s.path, s.branch)
	if err != nil {
		if errors.Is(err, issue_tracker.ErrNotFound) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("reading results: %w", err)
	}

	results, err := ParseResults(file.Content)
	if err != nil {
		return nil, "", fmt.Errorf("decoding %s: %w", s.path, err)
	}
	for _, row := range results.Rejected {
		slog.WarnContext(ctx, "results row could not be decoded, keeping it as is",
			"repository", s.repo.String(),
			"path", s.path,
			"issue_id", row.IssueID,
			"error", row.Err)
	}
	return results, file.SHA, nil
}
