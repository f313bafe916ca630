package store

import (
	"context"
	"errors"
	"time"

	"basegraph.app/copilot-survey/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrLocked is returned when another event holds the issue lock.
var ErrLocked = errors.New("locked")

// SurveyStore defines the contract for survey record access.
// Upsert either stores the full record or fails; it never leaves a partial write behind.
type SurveyStore interface {
	Get(ctx context.Context, issueID int64) (*model.SurveyRecord, error)
	Upsert(ctx context.Context, record *model.SurveyRecord) error
}

// SurveyLister is implemented by stores that can enumerate every record.
type SurveyLister interface {
	List(ctx context.Context) ([]model.SurveyRecord, error)
}

// Factory returns the store holding the records of a repository.
type Factory interface {
	For(repo model.RepoRef) SurveyStore
}

// Locker serializes reconciliation per issue.
type Locker interface {
	Lock(ctx context.Context, issueID int64, ttl time.Duration) (unlock func(), err error)
}
