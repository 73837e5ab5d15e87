// Package model defines the core domain entities: contacts, verification
// verdicts, per-contact economics, and batch receipts.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ContactStatus is the lifecycle state of a contact record.
type ContactStatus string

const (
	StatusActive              ContactStatus = "active"
	StatusInactive            ContactStatus = "inactive"
	StatusUnknown             ContactStatus = "unknown"
	StatusOptedOut            ContactStatus = "opted_out"
	StatusPendingConfirmation ContactStatus = "pending_confirmation"
)

// Contact is a B2B contact whose role freshness we track.
// Records are never hard-deleted; opt-out anonymizes in place.
type Contact struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Email        string        `json:"email"`
	Title        string        `json:"title"`
	Organization string        `json:"organization"`
	Status       ContactStatus `json:"status"`

	NeedsHumanReview bool   `json:"needs_human_review"`
	ReviewReason     string `json:"review_reason,omitempty"`

	OrgWebsite string `json:"org_website,omitempty"`
	ProfileURL string `json:"profile_url,omitempty"`

	// EmailHash is retained after opt-out for deduplication only.
	EmailHash string `json:"email_hash,omitempty"`

	SalesforceID string `json:"salesforce_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewContact creates a contact with a generated ID and unknown status.
func NewContact(name, email, title, organization string) Contact {
	now := time.Now().UTC()
	return Contact{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		Title:        title,
		Organization: organization,
		Status:       StatusUnknown,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (c *Contact) touch() {
	c.UpdatedAt = time.Now().UTC()
}

// FlagForReview marks the contact for human review. The flag and reason are
// always set together.
func (c *Contact) FlagForReview(reason string) {
	c.NeedsHumanReview = true
	c.ReviewReason = reason
	c.touch()
}

// ClearReviewFlag removes the review flag and its reason together.
func (c *Contact) ClearReviewFlag() {
	c.NeedsHumanReview = false
	c.ReviewReason = ""
	c.touch()
}

// MarkActive records that the contact is confirmed still in their role.
func (c *Contact) MarkActive() {
	c.Status = StatusActive
	c.touch()
}

// MarkInactive records that the contact has left their position.
func (c *Contact) MarkInactive() {
	c.Status = StatusInactive
	c.touch()
}

// MarkPendingConfirmation records that a confirmation email was sent and a
// reply is awaited through the inbound pipeline.
func (c *Contact) MarkPendingConfirmation() {
	c.Status = StatusPendingConfirmation
	c.touch()
}

// UpdateEmail replaces the contact's email after a verified correction.
func (c *Contact) UpdateEmail(email string) {
	c.Email = email
	c.touch()
}

// OptOut irreversibly anonymizes all PII, keeping only a one-way hash of the
// email for deduplication.
func (c *Contact) OptOut() {
	sum := sha256.Sum256([]byte(strings.ToLower(c.Email)))
	c.EmailHash = hex.EncodeToString(sum[:])
	c.Name = "[OPTED OUT]"
	c.Email = ""
	c.Title = ""
	c.Organization = ""
	c.OrgWebsite = ""
	c.ProfileURL = ""
	c.Status = StatusOptedOut
	c.NeedsHumanReview = false
	c.ReviewReason = ""
	c.touch()
}

// IsOptedOut reports whether the contact has opted out of tracking.
func (c *Contact) IsOptedOut() bool {
	return c.Status == StatusOptedOut
}
