package ledger

import (
	"context"
	"log/slog"

	"github.com/joescharf/tickeasy/internal/apperr"
	"github.com/joescharf/tickeasy/internal/metrics"
	"github.com/joescharf/tickeasy/internal/models"
)

// Fetcher returns the raw ledger body for a concert.
type Fetcher interface {
	FetchReviews(ctx context.Context, token, concertID string) ([]byte, error)
}

// Result is one ledger read. Records is never nil; Err carries the
// diagnostic when the read degraded to an empty sequence.
type Result struct {
	Records []models.ReviewRecord
	Shape   string
	Skipped int // entries dropped because they could not be decoded
	Err     error
}

// Reader fetches and normalizes review ledgers.
type Reader struct {
	fetcher Fetcher
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewReader creates a Reader. logger and m may be nil.
func NewReader(f Fetcher, logger *slog.Logger, m *metrics.Metrics) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{fetcher: f, logger: logger, metrics: m}
}

// FetchReviews reads the full history of concertID, newest first. Failures
// never propagate to the caller as a panic or a nil slice; they are returned
// in Result.Err next to an empty sequence.
func (r *Reader) FetchReviews(ctx context.Context, concertID, token string) Result {
	raw, err := r.fetcher.FetchReviews(ctx, token, concertID)
	if err != nil {
		r.logger.Warn("review ledger fetch failed", "concert_id", concertID, "error", err)
		r.metrics.LedgerFetch("error")
		return Result{Records: []models.ReviewRecord{}, Err: err}
	}

	records, shape, skipped := normalize(raw)
	r.metrics.LedgerFetch(shape)
	if shape == ShapeUnrecognized {
		r.logger.Warn("unrecognized review ledger shape, treating as empty",
			"concert_id", concertID, "bytes", len(raw))
		return Result{
			Records: records,
			Shape:   shape,
			Err:     apperr.New(apperr.ParseFailure, "fetch reviews", "unrecognized ledger response"),
		}
	}

	if skipped > 0 {
		r.logger.Warn("skipped undecodable review ledger entries",
			"concert_id", concertID, "shape", shape, "skipped", skipped, "kept", len(records))
	}

	for i := range records {
		if records[i].ConcertID == "" {
			records[i].ConcertID = concertID
		}
	}
	return Result{Records: records, Shape: shape, Skipped: skipped}
}
