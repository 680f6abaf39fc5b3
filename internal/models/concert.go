package models

import "time"

// LifecycleStatus is the publication stage of a concert.
type LifecycleStatus string

const (
	LifecycleDraft     LifecycleStatus = "draft"
	LifecycleReviewing LifecycleStatus = "reviewing"
	LifecyclePublished LifecycleStatus = "published"
	LifecycleRejected  LifecycleStatus = "rejected"
	LifecycleFinished  LifecycleStatus = "finished"
)

// ReviewStatus is the outcome of the most recent moderation cycle.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
	ReviewSkipped  ReviewStatus = "skipped"
)

// Concert is a submitted concert as owned by the remote moderation service.
// The console only reads it; transitions go through the review engine.
type Concert struct {
	ConcertID       string          `json:"concertId"`
	OrganizationID  string          `json:"organizationId,omitempty"`
	VenueID         string          `json:"venueId,omitempty"`
	Title           string          `json:"conTitle"`
	Introduction    string          `json:"conIntroduction,omitempty"`
	Location        string          `json:"conLocation,omitempty"`
	Address         string          `json:"conAddress,omitempty"`
	EventStartDate  string          `json:"eventStartDate,omitempty"`
	EventEndDate    string          `json:"eventEndDate,omitempty"`
	LifecycleStatus LifecycleStatus `json:"conInfoStatus"`
	ReviewStatus    ReviewStatus    `json:"reviewStatus,omitempty"`
	ReviewNote      string          `json:"reviewNote,omitempty"`
	Organization    *Organization   `json:"organization,omitempty"`
	Venue           *Venue          `json:"venue,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Organization is the organizer that submitted a concert.
type Organization struct {
	OrganizationID string `json:"organizationId"`
	Name           string `json:"orgName"`
	Address        string `json:"orgAddress,omitempty"`
	Mail           string `json:"orgMail,omitempty"`
}

// Venue is where a concert takes place.
type Venue struct {
	VenueID string `json:"venueId"`
	Name    string `json:"venueName"`
	Address string `json:"venueAddress,omitempty"`
}

// VenueName returns the venue name, falling back to the free-text location.
func (c *Concert) VenueName() string {
	if c.Venue != nil && c.Venue.Name != "" {
		return c.Venue.Name
	}
	return c.Location
}
