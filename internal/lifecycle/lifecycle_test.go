package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/tickeasy/internal/models"
)

func TestLifecycleBadge(t *testing.T) {
	tests := []struct {
		status   models.LifecycleStatus
		label    string
		severity Severity
	}{
		{models.LifecycleDraft, "Draft", SeveritySecondary},
		{models.LifecycleReviewing, "Reviewing", SeverityOutline},
		{models.LifecyclePublished, "Published", SeverityDefault},
		{models.LifecycleRejected, "Rejected", SeverityDestructive},
		{models.LifecycleFinished, "Finished", SeveritySecondary},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			b := LifecycleBadge(tt.status)
			assert.Equal(t, tt.label, b.Label)
			assert.Equal(t, tt.severity, b.Severity)
			assert.True(t, b.Known)
		})
	}
}

func TestUnknownStatusRendersRawValue(t *testing.T) {
	b := LifecycleBadge("archived")
	assert.Equal(t, "archived", b.Label)
	assert.Equal(t, SeverityOutline, b.Severity)
	assert.False(t, b.Known)

	r := ReviewBadge("escalated")
	assert.Equal(t, "escalated", r.Label)
	assert.False(t, r.Known)
}

func TestCanReview_OnlyPending(t *testing.T) {
	all := []models.ReviewStatus{"", models.ReviewPending, models.ReviewApproved, models.ReviewRejected, models.ReviewSkipped, "unknown"}
	for _, s := range all {
		assert.Equal(t, s == models.ReviewPending, CanReview(s), "status %q", s)
	}
}

func TestProject(t *testing.T) {
	p := Project(models.LifecycleReviewing, models.ReviewPending)
	assert.True(t, p.CanReview)
	require.NotNil(t, p.Review)
	assert.Equal(t, "Pending review", p.Review.Label)

	p = Project(models.LifecycleDraft, models.ReviewSkipped)
	assert.False(t, p.CanReview)
	assert.Nil(t, p.Review)

	p = ProjectConcert(&models.Concert{LifecycleStatus: models.LifecyclePublished})
	assert.Nil(t, p.Review)
	assert.Equal(t, "Published", p.Lifecycle.Label)
}

func TestOutcomeLifecycle(t *testing.T) {
	assert.Equal(t, models.LifecyclePublished, OutcomeLifecycle(models.DecisionApproved))
	assert.Equal(t, models.LifecycleRejected, OutcomeLifecycle(models.DecisionRejected))
}
