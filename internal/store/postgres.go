package store

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"basegraph.app/copilot-survey/core/db"
	"basegraph.app/copilot-survey/internal/model"
)

// TxRunner is satisfied by *db.DB.
type TxRunner interface {
	Conn() db.DBTX
	WithTx(ctx context.Context, fn func(tx db.DBTX) error) error
}

const (
	undefinedTable = "42P01"

	createTableSQL = `CREATE TABLE IF NOT EXISTS copilot_survey_results (
    enterprise_name   TEXT NOT NULL DEFAULT '',
    organization_name TEXT NOT NULL DEFAULT '',
    repository_name   TEXT NOT NULL DEFAULT '',
    issue_id          BIGINT PRIMARY KEY,
    issue_number      INTEGER NOT NULL DEFAULT 0,
    pr_number         INTEGER NOT NULL DEFAULT 0,
    assignee_name     TEXT NOT NULL DEFAULT '',
    is_copilot_used   BOOLEAN NOT NULL DEFAULT FALSE,
    saving_percentage TEXT NOT NULL DEFAULT '',
    usage_frequency   TEXT NOT NULL DEFAULT '',
    savings_invested  TEXT NOT NULL DEFAULT '',
    comment           TEXT NOT NULL DEFAULT '',
    created_at        TIMESTAMPTZ,
    completed_at      TIMESTAMPTZ
)`

	selectColumns = `enterprise_name, organization_name, repository_name, issue_id, issue_number,
    pr_number, assignee_name, is_copilot_used, saving_percentage, usage_frequency,
    savings_invested, comment, created_at, completed_at`

	getSQL = `SELECT ` + selectColumns + ` FROM copilot_survey_results WHERE issue_id = $1`

	listSQL = `SELECT ` + selectColumns + ` FROM copilot_survey_results ORDER BY created_at NULLS LAST, issue_id`

	upsertSQL = `INSERT INTO copilot_survey_results (` + selectColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (issue_id) DO UPDATE SET
    enterprise_name   = EXCLUDED.enterprise_name,
    organization_name = EXCLUDED.organization_name,
    repository_name   = EXCLUDED.repository_name,
    issue_number      = EXCLUDED.issue_number,
    pr_number         = EXCLUDED.pr_number,
    assignee_name     = EXCLUDED.assignee_name,
    is_copilot_used   = EXCLUDED.is_copilot_used,
    saving_percentage = EXCLUDED.saving_percentage,
    usage_frequency   = EXCLUDED.usage_frequency,
    savings_invested  = EXCLUDED.savings_invested,
    comment           = EXCLUDED.comment,
    created_at        = EXCLUDED.created_at,
    completed_at      = EXCLUDED.completed_at`
)

type PostgresStore struct {
	db          TxRunner
	tableExists atomic.Bool
}

// NewPostgresStore keeps every repository's records in one table keyed by issue id.
func NewPostgresStore(db TxRunner) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, issueID int64) (*model.SurveyRecord, error) {
	rec, err := scanRecord(s.db.Conn().QueryRow(ctx, getSQL, issueID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isUndefinedTable(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting survey record %d: %w", issueID, err)
	}
	return rec, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, record *model.SurveyRecord) error {
	err := s.db.WithTx(ctx, func(tx db.DBTX) error {
		if !s.tableExists.Load() {
			if _, err := tx.Exec(ctx, createTableSQL); err != nil {
				return fmt.Errorf("creating results table: %w", err)
			}
		}
		_, err := tx.Exec(ctx, upsertSQL,
			record.EnterpriseName,
			record.OrganizationName,
			record.RepositoryName,
			record.IssueID,
			record.IssueNumber,
			record.PRNumber,
			record.AssigneeName,
			record.CopilotUsed,
			record.SavingPercentage,
			record.UsageFrequency,
			record.SavingsInvested,
			record.Comment,
			nullTime(record.CreatedAt),
			nullTime(record.CompletedAt),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("upserting survey record %d: %w", record.IssueID, err)
	}
	s.tableExists.Store(true)
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]model.SurveyRecord, error) {
	rows, err := s.db.Conn().Query(ctx, listSQL)
	if err != nil {
		if isUndefinedTable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing survey records: %w", err)
	}
	defer rows.Close()

	var records []model.SurveyRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning survey record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		if isUndefinedTable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing survey records: %w", err)
	}
	return records, nil
}

func scanRecord(row pgx.Row) (*model.SurveyRecord, error) {
	var (
		rec                    model.SurveyRecord
		createdAt, completedAt *time.Time
	)
	if err := row.Scan(
		&rec.EnterpriseName,
		&rec.OrganizationName,
		&rec.RepositoryName,
		&rec.IssueID,
		&rec.IssueNumber,
		&rec.PRNumber,
		&rec.AssigneeName,
		&rec.CopilotUsed,
		&rec.SavingPercentage,
		&rec.UsageFrequency,
		&rec.SavingsInvested,
		&rec.Comment,
		&createdAt,
		&completedAt,
	); err != nil {
		return nil, err
	}
	if createdAt != nil {
		rec.CreatedAt = createdAt.UTC()
	}
	if completedAt != nil {
		rec.CompletedAt = completedAt.UTC()
	}
	return &rec, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == undefinedTable
}
