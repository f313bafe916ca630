package issue_tracker

import (
	"context"
	"errors"

	"basegraph.app/copilot-survey/internal/model"
)

var (
	// ErrNotFound is returned when the issue, file, ref or repository does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when creating a branch that already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrConflict is returned when a file write raced another writer (stale SHA).
	ErrConflict = errors.New("conflict")
)

type CreateIssueParams struct {
	Title    string
	Body     string
	Assignee string // optional
}

type FileContent struct {
	Content []byte
	SHA     string // blob SHA; required to overwrite the file
}

type PutFileParams struct {
	Path    string
	Content []byte
	SHA     string // empty creates the file
	Branch  string
	Message string
}

type IssueTracker interface {
	CreateIssue(ctx context.Context, repo model.RepoRef, params CreateIssueParams) (*model.SurveyIssue, error)
	CloseIssue(ctx context.Context, repo model.RepoRef, number int) error
	GetFileContent(ctx context.Context, repo model.RepoRef, path, ref string) (*FileContent, error)
	PutFileContent(ctx context.Context, repo model.RepoRef, params PutFileParams) error
	// CreateBranch creates name from the repository's default branch.
	CreateBranch(ctx context.Context, repo model.RepoRef, name string) error
}
