// Package review submits manual moderation decisions and drives the
// confirm-before-submit flow around them.
package review

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/joescharf/tickeasy/internal/apperr"
	"github.com/joescharf/tickeasy/internal/ledger"
	"github.com/joescharf/tickeasy/internal/lifecycle"
	"github.com/joescharf/tickeasy/internal/metrics"
	"github.com/joescharf/tickeasy/internal/models"
	"github.com/joescharf/tickeasy/internal/session"
)

const opSubmit = "submit review"

// Config holds review engine configuration.
type Config struct {
	// PrecheckRole enables the local role hint used to hide or warn about
	// the review action. It never blocks Submit.
	PrecheckRole bool
}

// DefaultConfig returns the default review config, reading from viper when available.
func DefaultConfig() Config {
	cfg := Config{PrecheckRole: true}
	if viper.IsSet("review.precheck_role") {
		cfg.PrecheckRole = viper.GetBool("review.precheck_role")
	}
	return cfg
}

// Submitter sends a manual decision to the remote moderation service.
type Submitter interface {
	SubmitManualReview(ctx context.Context, token, concertID string, decision models.Decision, note string) error
}

// LedgerReader returns the normalized review history of a concert.
type LedgerReader interface {
	FetchReviews(ctx context.Context, concertID, token string) ledger.Result
}

// Recorder keeps the local audit log of submissions.
type Recorder interface {
	RecordSubmission(ctx context.Context, s *models.Submission) error
}

// Ack is the result of an accepted decision.
type Ack struct {
	ConcertID    string                 `json:"concertId"`
	Decision     models.Decision        `json:"decision"`
	ReviewStatus models.ReviewStatus    `json:"reviewStatus"`
	Lifecycle    models.LifecycleStatus `json:"lifecycleStatus"`
	Reviews      []models.ReviewRecord  `json:"reviews"`
	LedgerErr    error                  `json:"-"`
}

// Engine submits moderation decisions. The remote service is the only
// authority on whether a decision is allowed.
type Engine struct {
	remote   Submitter
	reader   LedgerReader
	recorder Recorder
	cfg      Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewEngine creates an Engine. reader and recorder may be nil.
func NewEngine(remote Submitter, reader LedgerReader, recorder Recorder, cfg Config) *Engine {
	return &Engine{
		remote:   remote,
		reader:   reader,
		recorder: recorder,
		cfg:      cfg,
		logger:   slog.Default(),
	}
}

// WithLogger sets the engine logger.
func (e *Engine) WithLogger(l *slog.Logger) *Engine {
	if l != nil {
		e.logger = l
	}
	return e
}

// WithMetrics sets the metrics sink.
func (e *Engine) WithMetrics(m *metrics.Metrics) *Engine {
	e.metrics = m
	return e
}

// Validate checks the decision inputs that do not need a token.
func Validate(concertID string, decision models.Decision, note string) error {
	if strings.TrimSpace(concertID) == "" {
		return apperr.New(apperr.InvalidInput, opSubmit, "concert id is required")
	}
	if !decision.Valid() {
		return apperr.New(apperr.InvalidInput, opSubmit, fmt.Sprintf("decision must be approved or rejected, got %q", decision))
	}
	if strings.TrimSpace(note) == "" {
		return apperr.New(apperr.InvalidInput, opSubmit, "reviewer note is required")
	}
	return nil
}

// Precheck reports, from the token's own claims, whether the actor looks
// unable to moderate. It returns a Forbidden error in that case and nil when
// the token is opaque, carries no role, or the precheck is disabled.
func (e *Engine) Precheck(token string) error {
	if !e.cfg.PrecheckRole {
		return nil
	}
	actor, ok := session.ActorFromToken(token)
	if !ok || actor.Role == "" || actor.Role.CanModerate() {
		return nil
	}
	return apperr.New(apperr.Forbidden, opSubmit, "role "+string(actor.Role)+" may not review concerts")
}

// Submit sends decision for concertID. A missing token or invalid input
// fails before any network call. Remote rejections are returned with the
// service's body as the detail. On success the ledger is re-read so the new
// record is part of the Ack.
func (e *Engine) Submit(ctx context.Context, concertID string, decision models.Decision, note, token string) (*Ack, error) {
	if strings.TrimSpace(token) == "" {
		return nil, apperr.New(apperr.Unauthenticated, opSubmit, "sign in before reviewing")
	}
	if err := Validate(concertID, decision, note); err != nil {
		return nil, err
	}
	note = strings.TrimSpace(note)

	err := e.remote.SubmitManualReview(ctx, token, concertID, decision, note)
	e.record(ctx, concertID, decision, note, token, err)
	if err != nil {
		e.logger.Warn("review submission failed", "concert_id", concertID, "decision", decision, "error", err)
		return nil, err
	}
	e.logger.Info("review submitted", "concert_id", concertID, "decision", decision)

	ack := &Ack{
		ConcertID:    concertID,
		Decision:     decision,
		ReviewStatus: models.ReviewStatus(decision),
		Lifecycle:    lifecycle.OutcomeLifecycle(decision),
		Reviews:      []models.ReviewRecord{},
	}
	if e.reader != nil {
		res := e.reader.FetchReviews(ctx, concertID, token)
		ack.Reviews = res.Records
		ack.LedgerErr = res.Err
	}
	return ack, nil
}

func (e *Engine) record(ctx context.Context, concertID string, decision models.Decision, note, token string, err error) {
	outcome := models.SubmissionSucceeded
	if err != nil {
		outcome = models.SubmissionFailed
	}
	e.metrics.ReviewSubmission(string(decision), string(outcome))

	if e.recorder == nil {
		return
	}
	sub := &models.Submission{
		ConcertID: concertID,
		Decision:  decision,
		Note:      note,
		Outcome:   outcome,
	}
	if actor, ok := session.ActorFromToken(token); ok {
		sub.ActorID = actor.ID
	}
	if err != nil {
		sub.ErrorKind = string(apperr.KindOf(err))
		sub.ErrorDetail = apperr.Detail(err)
	}
	if recErr := e.recorder.RecordSubmission(ctx, sub); recErr != nil {
		e.logger.Warn("record submission", "concert_id", concertID, "error", recErr)
	}
}
