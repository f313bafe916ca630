package issue_tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"basegraph.app/copilot-survey/internal/model"
)

type GitHubConfig struct {
	Token string
	// BaseURL selects a GitHub Enterprise Server API. Empty means github.com.
	BaseURL string
}

type gitHubIssueTracker struct {
	client *github.Client
}

func NewGitHubIssueTracker(ctx context.Context, cfg GitHubConfig) (IssueTracker, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("GitHub token not set")
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	client := github.NewClient(oauth2.NewClient(ctx, ts))

	if cfg.BaseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(cfg.BaseURL, cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("configuring enterprise url: %w", err)
		}
	}

	return NewGitHubIssueTrackerFromClient(client), nil
}

// NewGitHubIssueTrackerFromClient wraps an already configured client.
func NewGitHubIssueTrackerFromClient(client *github.Client) IssueTracker {
	return &gitHubIssueTracker{client: client}
}

func (t *gitHubIssueTracker) CreateIssue(ctx context.Context, repo model.RepoRef, params CreateIssueParams) (*model.SurveyIssue, error) {
	req := &github.IssueRequest{
		Title: github.String(params.Title),
		Body:  github.String(params.Body),
	}
	if params.Assignee != "" {
		req.Assignees = &[]string{params.Assignee}
	}

	issue, resp, err := t.client.Issues.Create(ctx, repo.Owner, repo.Name, req)
	if err != nil {
		return nil, fmt.Errorf("creating issue in %s: %w", repo, mapError(resp, err))
	}

	return toSurveyIssue(issue), nil
}

func (t *gitHubIssueTracker) CloseIssue(ctx context.Context, repo model.RepoRef, number int) error {
	_, resp, err := t.client.Issues.Edit(ctx, repo.Owner, repo.Name, number, &github.IssueRequest{
		State: github.String("closed"),
	})
	if err != nil {
		return fmt.Errorf("closing issue %s#%d: %w", repo, number, mapError(resp, err))
	}
	return nil
}

func (t *gitHubIssueTracker) GetFileContent(ctx context.Context, repo model.RepoRef, path, ref string) (*FileContent, error) {
	file, _, resp, err := t.client.Repositories.GetContents(ctx, repo.Owner, repo.Name, path, &github.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return nil, fmt.Errorf("getting %s@%s in %s: %w", path, ref, repo, mapError(resp, err))
	}
	if file == nil {
		return nil, fmt.Errorf("%s in %s is a directory", path, repo)
	}

	// files over 1 MB come back with encoding "none" and no content
	if file.GetEncoding() == "none" {
		blob, resp, err := t.client.Git.GetBlobRaw(ctx, repo.Owner, repo.Name, file.GetSHA())
		if err != nil {
			return nil, fmt.Errorf("getting blob %s for %s in %s: %w", file.GetSHA(), path, repo, mapError(resp, err))
		}
		return &FileContent{Content: blob, SHA: file.GetSHA()}, nil
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	return &FileContent{Content: []byte(content), SHA: file.GetSHA()}, nil
}

func (t *gitHubIssueTracker) PutFileContent(ctx context.Context, repo model.RepoRef, params PutFileParams) error {
	opts := &github.RepositoryContentFileOptions{
		Message: github.String(params.Message),
		Content: params.Content,
		Branch:  github.String(params.Branch),
	}

	var (
		resp *github.Response
		err  error
	)
	if params.SHA == "" {
		_, resp, err = t.client.Repositories.CreateFile(ctx, repo.Owner, repo.Name, params.Path, opts)
	} else {
		opts.SHA = github.String(params.SHA)
		_, resp, err = t.client.Repositories.UpdateFile(ctx, repo.Owner, repo.Name, params.Path, opts)
	}
	if err != nil {
		err = mapError(resp, err)
		// GitHub answers 409 for a stale SHA and 422 when creating over an existing file.
		if resp != nil && resp.StatusCode == http.StatusUnprocessableEntity {
			err = fmt.Errorf("%w: %w", ErrConflict, err)
		}
		return fmt.Errorf("writing %s@%s in %s: %w", params.Path, params.Branch, repo, err)
	}
	return nil
}

func (t *gitHubIssueTracker) CreateBranch(ctx context.Context, repo model.RepoRef, name string) error {
	base, err := t.baseSHA(ctx, repo)
	if err != nil {
		return err
	}

	_, resp, err := t.client.Git.CreateRef(ctx, repo.Owner, repo.Name, &github.Reference{
		Ref:    github.String("refs/heads/" + name),
		Object: &github.GitObject{SHA: github.String(base)},
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnprocessableEntity {
			return fmt.Errorf("branch %s in %s: %w", name, repo, ErrAlreadyExists)
		}
		return fmt.Errorf("creating branch %s in %s: %w", name, repo, mapError(resp, err))
	}

	slog.InfoContext(ctx, "results branch created",
		"repository", repo.String(),
		"branch", name)
	return nil
}

// baseSHA resolves the head of the default branch, trying main then master
// when the repository metadata is unavailable.
func (t *gitHubIssueTracker) baseSHA(ctx context.Context, repo model.RepoRef) (string, error) {
	candidates := []string{"main", "master"}
	if r, _, err := t.client.Repositories.Get(ctx, repo.Owner, repo.Name); err == nil && r.GetDefaultBranch() != "" {
		candidates = append([]string{r.GetDefaultBranch()}, candidates...)
	}

	var lastErr error
	for _, branch := range candidates {
		ref, resp, err := t.client.Git.GetRef(ctx, repo.Owner, repo.Name, "heads/"+branch)
		if err == nil {
			return ref.GetObject().GetSHA(), nil
		}
		lastErr = mapError(resp, err)
		if !errors.Is(lastErr, ErrNotFound) {
			break
		}
	}
	return "", fmt.Errorf("resolving base branch in %s: %w", repo, lastErr)
}

func mapError(resp *github.Response, err error) error {
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if resp != nil && resp.StatusCode == http.StatusConflict {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	return err
}

func toSurveyIssue(issue *github.Issue) *model.SurveyIssue {
	out := &model.SurveyIssue{
		ID:        issue.GetID(),
		Number:    issue.GetNumber(),
		Title:     issue.GetTitle(),
		Body:      issue.GetBody(),
		CreatedAt: issue.GetCreatedAt().Time,
		UpdatedAt: issue.GetUpdatedAt().Time,
	}
	if a := issue.GetAssignee(); a != nil {
		out.Assignee = a.GetLogin()
	}
	return out
}
