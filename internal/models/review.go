package models

import "time"

// ReviewType distinguishes operator decisions from automated pre-screening.
type ReviewType string

const (
	ReviewTypeManual    ReviewType = "manual"
	ReviewTypeAutomated ReviewType = "automated"
)

// Decision is a terminal manual review outcome.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// Valid reports whether d is one of the two terminal decisions.
func (d Decision) Valid() bool {
	return d == DecisionApproved || d == DecisionRejected
}

// Analysis is the structured payload of an automated review.
type Analysis struct {
	Summary              string   `json:"summary,omitempty"`
	Reasons              []string `json:"reasons,omitempty"`
	Suggestions          []string `json:"suggestions,omitempty"`
	Confidence           *float64 `json:"confidence,omitempty"`
	FlaggedContent       []string `json:"flaggedContent,omitempty"`
	Recommended          *bool    `json:"isAppropriate,omitempty"`
	RequiresManualReview bool     `json:"requiresManualReview,omitempty"`
}

// ReviewRecord is one immutable ledger entry for a concert.
type ReviewRecord struct {
	ReviewID     string       `json:"reviewId"`
	ConcertID    string       `json:"concertId"`
	Type         ReviewType   `json:"reviewType"`
	Status       ReviewStatus `json:"reviewStatus"`
	ReviewerNote string       `json:"reviewerNote,omitempty"`
	ReviewerID   string       `json:"reviewerId,omitempty"`
	Analysis     *Analysis    `json:"aiResponse,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// Reviewer returns a display name for whoever produced the record.
func (r *ReviewRecord) Reviewer() string {
	if r.ReviewerID != "" {
		return r.ReviewerID
	}
	if r.Type == ReviewTypeAutomated {
		return "AI"
	}
	return "system"
}

// SubmissionOutcome is the local result of one submit attempt.
type SubmissionOutcome string

const (
	SubmissionSucceeded SubmissionOutcome = "success"
	SubmissionFailed    SubmissionOutcome = "error"
)

// Submission is a local audit row for a manual review attempt that reached
// the remote service. It is not part of the remote ledger.
type Submission struct {
	ID          string
	ConcertID   string
	Decision    Decision
	Note        string
	ActorID     string
	Outcome     SubmissionOutcome
	ErrorKind   string
	ErrorDetail string
	CreatedAt   time.Time
}
