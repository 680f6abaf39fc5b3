// Package lifecycle projects a concert's persisted status fields into
// display badges and decides whether the review action is offered.
//
// It is the single mapping to extend when a lifecycle or review state is
// added.
package lifecycle

import "github.com/joescharf/tickeasy/internal/models"

// Severity is the visual weight of a badge.
type Severity string

const (
	SeverityDefault     Severity = "default"
	SeveritySecondary   Severity = "secondary"
	SeverityOutline     Severity = "outline"
	SeverityDestructive Severity = "destructive"
)

// Badge is a label plus severity. Known is false for values outside the
// enumerations, in which case Label is the raw value.
type Badge struct {
	Label    string   `json:"label"`
	Severity Severity `json:"severity"`
	Known    bool     `json:"known"`
}

// Projection is the presentable status of a concert.
type Projection struct {
	Lifecycle Badge  `json:"lifecycle"`
	Review    *Badge `json:"review,omitempty"`
	CanReview bool   `json:"canReview"`
}

var lifecycleBadges = map[models.LifecycleStatus]Badge{
	models.LifecycleDraft:     {Label: "Draft", Severity: SeveritySecondary, Known: true},
	models.LifecycleReviewing: {Label: "Reviewing", Severity: SeverityOutline, Known: true},
	models.LifecyclePublished: {Label: "Published", Severity: SeverityDefault, Known: true},
	models.LifecycleRejected:  {Label: "Rejected", Severity: SeverityDestructive, Known: true},
	models.LifecycleFinished:  {Label: "Finished", Severity: SeveritySecondary, Known: true},
}

var reviewBadges = map[models.ReviewStatus]Badge{
	models.ReviewPending:  {Label: "Pending review", Severity: SeverityOutline, Known: true},
	models.ReviewApproved: {Label: "Approved", Severity: SeverityDefault, Known: true},
	models.ReviewRejected: {Label: "Rejected", Severity: SeverityDestructive, Known: true},
	models.ReviewSkipped:  {Label: "Skipped", Severity: SeveritySecondary, Known: true},
}

// LifecycleBadge maps a lifecycle status. Unknown values render as-is.
func LifecycleBadge(s models.LifecycleStatus) Badge {
	if b, ok := lifecycleBadges[s]; ok {
		return b
	}
	return Badge{Label: string(s), Severity: SeverityOutline}
}

// ReviewBadge maps a review status. Unknown values render as-is.
func ReviewBadge(s models.ReviewStatus) Badge {
	if b, ok := reviewBadges[s]; ok {
		return b
	}
	return Badge{Label: string(s), Severity: SeverityOutline}
}

// ShowReviewBadge reports whether a review badge is displayed at all; it is
// hidden for an empty or skipped review status.
func ShowReviewBadge(s models.ReviewStatus) bool {
	return s != "" && s != models.ReviewSkipped
}

// CanReview reports whether the manual review action is offered. Only a
// pending review status qualifies.
func CanReview(s models.ReviewStatus) bool {
	return s == models.ReviewPending
}

// Project builds the full projection for a concert.
func Project(lifecycle models.LifecycleStatus, review models.ReviewStatus) Projection {
	p := Projection{
		Lifecycle: LifecycleBadge(lifecycle),
		CanReview: CanReview(review),
	}
	if ShowReviewBadge(review) {
		b := ReviewBadge(review)
		p.Review = &b
	}
	return p
}

// ProjectConcert is Project over a concert's fields.
func ProjectConcert(c *models.Concert) Projection {
	return Project(c.LifecycleStatus, c.ReviewStatus)
}

// OutcomeLifecycle is the lifecycle status a successful decision leads to.
func OutcomeLifecycle(d models.Decision) models.LifecycleStatus {
	if d == models.DecisionApproved {
		return models.LifecyclePublished
	}
	return models.LifecycleRejected
}
