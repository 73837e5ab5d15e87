// Package review mirrors contacts flagged for human review into a Notion
// database and applies resolutions back to the local store.
package review

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospectkeeper/internal/model"
	"github.com/sells-group/prospectkeeper/internal/store"
	"github.com/sells-group/prospectkeeper/pkg/notion"
)

// Status values in the review database. Reviewers move items from Open to
// Resolved; the pull pass archives them once applied.
const (
	statusOpen     = "Open"
	statusResolved = "Resolved"
	statusArchived = "Archived"
)

const propContactID = "Contact ID"

// PushResult summarizes one push pass.
type PushResult struct {
	Flagged int `json:"flagged"`
	Pushed  int `json:"pushed"`
	Skipped int `json:"skipped"`
}

// PullResult summarizes one pull pass.
type PullResult struct {
	Resolved int      `json:"resolved"`
	Applied  int      `json:"applied"`
	Errors   []string `json:"errors,omitempty"`
}

// Queue syncs the review flag between the local store and a Notion database.
type Queue struct {
	client notion.Client
	store  store.Store
	dbID   string
}

func NewQueue(client notion.Client, st store.Store, dbID string) *Queue {
	return &Queue{client: client, store: st, dbID: dbID}
}

// Push creates a review page for every flagged contact that does not already
// have an open one. Re-running is safe; existing open items are skipped.
func (q *Queue) Push(ctx context.Context) (*PushResult, error) {
	needsReview := true
	contacts, err := q.store.ListContacts(ctx, store.ContactFilter{NeedsReview: &needsReview})
	if err != nil {
		return nil, eris.Wrap(err, "review: list flagged contacts")
	}

	open, err := notion.QueryByStatus(ctx, q.client, q.dbID, statusOpen)
	if err != nil {
		return nil, eris.Wrap(err, "review: list open items")
	}
	openIDs := make(map[string]struct{}, len(open))
	for _, page := range open {
		if id := contactIDOf(page); id != "" {
			openIDs[id] = struct{}{}
		}
	}

	result := &PushResult{Flagged: len(contacts)}
	for i := range contacts {
		contact := &contacts[i]
		if _, exists := openIDs[contact.ID]; exists {
			result.Skipped++
			continue
		}
		if _, err := q.client.CreatePage(ctx, q.pageFor(contact)); err != nil {
			return result, eris.Wrapf(err, "review: push contact %s", contact.ID)
		}
		result.Pushed++
	}

	zap.L().Info("review queue pushed",
		zap.Int("flagged", result.Flagged),
		zap.Int("pushed", result.Pushed),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

// PullResolved clears the review flag for contacts whose item a reviewer
// marked Resolved, then archives the item. Items whose contact cannot be
// loaded are reported and left in place for the next pass.
func (q *Queue) PullResolved(ctx context.Context) (*PullResult, error) {
	pages, err := notion.QueryByStatus(ctx, q.client, q.dbID, statusResolved)
	if err != nil {
		return nil, eris.Wrap(err, "review: list resolved items")
	}

	result := &PullResult{Resolved: len(pages)}
	for _, page := range pages {
		contactID := contactIDOf(page)
		if contactID == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("page %s: no contact id", page.ID))
			continue
		}

		contact, err := q.store.GetContact(ctx, contactID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("page %s: %v", page.ID, err))
			continue
		}
		contact.ClearReviewFlag()
		if err := q.store.SaveContact(ctx, contact); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("page %s: %v", page.ID, err))
			continue
		}

		if _, err := q.client.UpdatePage(ctx, page.ID.String(), archiveRequest()); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("page %s: archive: %v", page.ID, err))
			continue
		}
		result.Applied++
	}

	zap.L().Info("review queue pulled",
		zap.Int("resolved", result.Resolved),
		zap.Int("applied", result.Applied),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}

func (q *Queue) pageFor(contact *model.Contact) *notionapi.PageCreateRequest {
	props := notionapi.Properties{
		"Name": notionapi.TitleProperty{
			Type:  notionapi.PropertyTypeTitle,
			Title: richText(contact.Name),
		},
		propContactID: notionapi.RichTextProperty{
			Type:     notionapi.PropertyTypeRichText,
			RichText: richText(contact.ID),
		},
		"Email": notionapi.RichTextProperty{
			Type:     notionapi.PropertyTypeRichText,
			RichText: richText(contact.Email),
		},
		"Organization": notionapi.RichTextProperty{
			Type:     notionapi.PropertyTypeRichText,
			RichText: richText(contact.Organization),
		},
		"Reason": notionapi.RichTextProperty{
			Type:     notionapi.PropertyTypeRichText,
			RichText: richText(contact.ReviewReason),
		},
		"Status": notionapi.StatusProperty{
			Status: notionapi.Status{Name: statusOpen},
		},
	}
	return &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(q.dbID),
		},
		Properties: props,
	}
}

func archiveRequest() *notionapi.PageUpdateRequest {
	return &notionapi.PageUpdateRequest{
		Properties: notionapi.Properties{
			"Status": notionapi.StatusProperty{
				Status: notionapi.Status{Name: statusArchived},
			},
		},
	}
}

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{
		{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: s}},
	}
}

// contactIDOf extracts the Contact ID rich_text value from a review page.
func contactIDOf(page notionapi.Page) string {
	prop, ok := page.Properties[propContactID]
	if !ok {
		return ""
	}
	rt, ok := prop.(*notionapi.RichTextProperty)
	if !ok {
		// Properties built locally (tests, fixtures) are values, not pointers.
		if v, ok := prop.(notionapi.RichTextProperty); ok {
			rt = &v
		} else {
			return ""
		}
	}
	if len(rt.RichText) == 0 || rt.RichText[0].Text == nil {
		return ""
	}
	return rt.RichText[0].Text.Content
}
