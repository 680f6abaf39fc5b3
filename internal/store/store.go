package store

import (
	"context"
	"time"

	"github.com/joescharf/tickeasy/internal/models"
)

// SubmissionFilter specifies filters for listing submissions.
type SubmissionFilter struct {
	ConcertID string
	Outcome   models.SubmissionOutcome
	Limit     int
}

// Store defines the local persistence interface for the console. The
// key/value part backs the client-persistent session store.
type Store interface {
	// Session values
	GetValue(ctx context.Context, key string) (string, error)
	SetValue(ctx context.Context, key, value string) error
	DeleteValue(ctx context.Context, key string) error

	// Submission audit log
	RecordSubmission(ctx context.Context, s *models.Submission) error
	GetSubmission(ctx context.Context, id string) (*models.Submission, error)
	ListSubmissions(ctx context.Context, filter SubmissionFilter) ([]*models.Submission, error)
	PruneSubmissions(ctx context.Context, before time.Time) (int64, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
