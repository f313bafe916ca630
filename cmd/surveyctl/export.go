package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"basegraph.app/copilot-survey/core/config"
	"basegraph.app/copilot-survey/core/db"
	"basegraph.app/copilot-survey/internal/model"
	"basegraph.app/copilot-survey/internal/service/issue_tracker"
	"basegraph.app/copilot-survey/internal/store"
)

var (
	exportOut  string
	exportRepo string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Dump recorded survey results as CSV",
	Long: `Dump recorded survey results in the results.csv format.

Without --repo the Postgres table (DATABASE_URL) is exported.
With --repo the CSV committed to the results branch of that repository is
read through the GitHub API (GITHUB_TOKEN).

Examples:
  surveyctl export --out results.csv
  surveyctl export --repo acme/web`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (stdout when empty)")
	exportCmd.Flags().StringVar(&exportRepo, "repo", "", "Read the results branch of owner/name instead of Postgres")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(config.ServiceTypeCLI)
	if err != nil {
		return err
	}

	lister, closeFn, err := openLister(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	records, err := lister.List(ctx)
	if err != nil {
		return fmt.Errorf("listing survey records: %w", err)
	}

	data, err := store.EncodeCSV(records)
	if err != nil {
		return err
	}

	if exportOut == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(exportOut, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", exportOut, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "exported %d records to %s\n", len(records), exportOut)
	return nil
}

func openLister(ctx context.Context, cfg config.Config) (store.SurveyLister, func(), error) {
	if exportRepo != "" {
		repo, err := parseRepo(exportRepo)
		if err != nil {
			return nil, nil, err
		}
		tracker, err := issue_tracker.NewGitHubIssueTracker(ctx, issue_tracker.GitHubConfig{
			Token:   cfg.GitHub.Token,
			BaseURL: cfg.GitHub.BaseURL,
		})
		if err != nil {
			return nil, nil, err
		}
		s := store.NewBranchCSVStore(tracker, repo, cfg.Store.ResultsBranch, cfg.Store.ResultsPath)
		lister, ok := s.(store.SurveyLister)
		if !ok {
			return nil, nil, errors.New("branch store cannot list records")
		}
		return lister, func() {}, nil
	}

	if !cfg.DB.Enabled() {
		return nil, nil, errors.New("DATABASE_URL is required to export from postgres (or pass --repo)")
	}
	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		return nil, nil, err
	}
	return store.NewPostgresStore(database), database.Close, nil
}

func parseRepo(s string) (model.RepoRef, error) {
	owner, name, ok := strings.Cut(s, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return model.RepoRef{}, fmt.Errorf("invalid repository %q, want owner/name", s)
	}
	return model.RepoRef{Owner: owner, Name: name}, nil
}
