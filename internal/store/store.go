// Package store persists contacts, verdict audit rows, and batch receipts.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospectkeeper/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = eris.New("store: not found")

// ContactFilter specifies criteria for listing contacts.
type ContactFilter struct {
	Status      model.ContactStatus `json:"status,omitempty"`
	NeedsReview *bool               `json:"needs_review,omitempty"`
	Limit       int                 `json:"limit,omitempty"`
	Offset      int                 `json:"offset,omitempty"`
}

// Store defines the persistence interface for the verification pipeline.
type Store interface {
	// Contacts
	GetContact(ctx context.Context, id string) (*model.Contact, error)
	GetContactByEmail(ctx context.Context, email string) (*model.Contact, error)
	ListContacts(ctx context.Context, filter ContactFilter) ([]model.Contact, error)
	// GetContactsForVerification returns up to limit contacts eligible for a
	// batch run: not opted out and not already flagged for review.
	GetContactsForVerification(ctx context.Context, limit int) ([]model.Contact, error)
	SaveContact(ctx context.Context, c *model.Contact) error
	InsertContact(ctx context.Context, c *model.Contact) error

	// Audit
	SaveVerdict(ctx context.Context, v *model.Verdict) error
	SaveReceipt(ctx context.Context, r *model.Receipt) error
	ListReceipts(ctx context.Context, limit int) ([]model.Receipt, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
