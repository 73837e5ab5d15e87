// Package crm pushes verification outcomes back to Salesforce.
package crm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospectkeeper/internal/model"
	"github.com/sells-group/prospectkeeper/internal/store"
	"github.com/sells-group/prospectkeeper/pkg/salesforce"
)

// Custom fields on the Contact object. These must exist in the target org.
const (
	fieldVerificationStatus = "Verification_Status__c"
	fieldLastVerifiedAt     = "Last_Verified_At__c"
)

const pageSize = 500

// SyncResult summarizes one sync pass.
type SyncResult struct {
	Examined int      `json:"examined"`
	Linked   int      `json:"linked"`
	Created  int      `json:"created"`
	Updated  int      `json:"updated"`
	Failed   int      `json:"failed"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// Syncer mirrors local contact state into Salesforce. Local records are the
// source of truth for verification status; Salesforce is the source of truth
// for record identity.
type Syncer struct {
	sf    salesforce.Client
	store store.Store
}

func NewSyncer(sf salesforce.Client, st store.Store) *Syncer {
	return &Syncer{sf: sf, store: st}
}

// Sync links unlinked contacts to existing SF records, creates SF contacts for
// replacements that have none, and pushes verification status for every linked
// contact in bulk.
func (s *Syncer) Sync(ctx context.Context) (*SyncResult, error) {
	result := &SyncResult{}
	var updates []salesforce.ContactUpdate

	for offset := 0; ; offset += pageSize {
		contacts, err := s.store.ListContacts(ctx, store.ContactFilter{Limit: pageSize, Offset: offset})
		if err != nil {
			return result, eris.Wrap(err, "crm: list contacts")
		}
		if len(contacts) == 0 {
			break
		}

		for i := range contacts {
			contact := &contacts[i]
			result.Examined++

			if contact.SalesforceID == "" {
				if err := s.link(ctx, contact, result); err != nil {
					result.Failed++
					result.Errors = append(result.Errors, fmt.Sprintf("%s (%s): %v", contact.ID, contact.Name, err))
					continue
				}
			}
			if contact.SalesforceID == "" {
				result.Skipped++
				continue
			}

			updates = append(updates, salesforce.ContactUpdate{
				ID:     contact.SalesforceID,
				Fields: updateFields(contact),
			})
		}

		if len(contacts) < pageSize {
			break
		}
	}

	results, err := salesforce.BulkUpdateContacts(ctx, s.sf, updates)
	if err != nil {
		return result, eris.Wrap(err, "crm: push status updates")
	}
	for _, r := range results {
		if r.Success {
			result.Updated++
		} else {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("sf %s: %s", r.ID, strings.Join(r.Errors, "; ")))
		}
	}

	zap.L().Info("salesforce sync complete",
		zap.Int("examined", result.Examined),
		zap.Int("linked", result.Linked),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// link resolves a Salesforce ID for an unlinked contact: match by email first,
// create under the matching Account as a fallback. Opted-out contacts have no
// email left to match on and are never created remotely.
func (s *Syncer) link(ctx context.Context, contact *model.Contact, result *SyncResult) error {
	if contact.IsOptedOut() || contact.Email == "" {
		return nil
	}

	remote, err := salesforce.FindContactByEmail(ctx, s.sf, contact.Email)
	if err != nil {
		return err
	}
	if remote != nil {
		contact.SalesforceID = remote.ID
		result.Linked++
		return s.saveLink(ctx, contact)
	}

	if contact.OrgWebsite == "" {
		return nil
	}
	account, err := salesforce.FindAccountByWebsite(ctx, s.sf, contact.OrgWebsite)
	if err != nil {
		return err
	}
	if account == nil {
		return nil
	}

	first, last := splitName(contact.Name)
	fields := map[string]any{
		"LastName": last,
		"Email":    contact.Email,
		"Title":    contact.Title,
	}
	if first != "" {
		fields["FirstName"] = first
	}
	id, err := salesforce.CreateContact(ctx, s.sf, account.ID, fields)
	if err != nil {
		return err
	}
	contact.SalesforceID = id
	result.Created++
	return s.saveLink(ctx, contact)
}

func (s *Syncer) saveLink(ctx context.Context, contact *model.Contact) error {
	if err := s.store.SaveContact(ctx, contact); err != nil {
		return eris.Wrapf(err, "crm: save salesforce link for %s", contact.ID)
	}
	return nil
}

func updateFields(contact *model.Contact) map[string]any {
	fields := map[string]any{
		fieldVerificationStatus: string(contact.Status),
		fieldLastVerifiedAt:     contact.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if contact.IsOptedOut() {
		fields["HasOptedOutOfEmail"] = true
	}
	return fields
}

// splitName breaks a display name into SF FirstName/LastName. A single token
// becomes the LastName, which SF requires.
func splitName(name string) (first, last string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", "Unknown"
	case 1:
		return "", parts[0]
	default:
		return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
	}
}
