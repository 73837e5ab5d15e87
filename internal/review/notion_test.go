package review

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospectkeeper/internal/model"
	"github.com/sells-group/prospectkeeper/internal/store"
)

type fakeNotion struct {
	openPages     []notionapi.Page
	resolvedPages []notionapi.Page
	queryErr      error
	created       []*notionapi.PageCreateRequest
	createErr     error
	updated       map[string]*notionapi.PageUpdateRequest
	updateErr     error
}

func (f *fakeNotion) QueryDatabase(_ context.Context, _ string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	pages := f.openPages
	if pf, ok := req.Filter.(notionapi.PropertyFilter); ok && pf.Status != nil && pf.Status.Equals == statusResolved {
		pages = f.resolvedPages
	}
	return &notionapi.DatabaseQueryResponse{Results: pages}, nil
}

func (f *fakeNotion) CreatePage(_ context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	return &notionapi.Page{ID: "created"}, nil
}

func (f *fakeNotion) UpdatePage(_ context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	if f.updated == nil {
		f.updated = make(map[string]*notionapi.PageUpdateRequest)
	}
	f.updated[pageID] = req
	return &notionapi.Page{ID: notionapi.ObjectID(pageID)}, nil
}

func reviewPage(pageID, contactID string) notionapi.Page {
	return notionapi.Page{
		ID: notionapi.ObjectID(pageID),
		Properties: notionapi.Properties{
			propContactID: notionapi.RichTextProperty{
				Type:     notionapi.PropertyTypeRichText,
				RichText: richText(contactID),
			},
		},
	}
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "review.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedFlagged(t *testing.T, st store.Store, name, email, reason string) model.Contact {
	t.Helper()
	contact := model.NewContact(name, email, "VP Engineering", "Acme Corp")
	contact.FlagForReview(reason)
	require.NoError(t, st.InsertContact(context.Background(), &contact))
	return contact
}

func TestPush_CreatesPagesForFlaggedContacts(t *testing.T) {
	st := newTestStore(t)
	contact := seedFlagged(t, st, "Jane Doe", "jane@acme.com", "profile page blocked")

	clean := model.NewContact("Bob Smith", "bob@globex.com", "CFO", "Globex")
	require.NoError(t, st.InsertContact(context.Background(), &clean))

	fake := &fakeNotion{}
	result, err := NewQueue(fake, st, "db-review").Push(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Flagged)
	assert.Equal(t, 1, result.Pushed)

	require.Len(t, fake.created, 1)
	props := fake.created[0].Properties
	title := props["Name"].(notionapi.TitleProperty)
	assert.Equal(t, "Jane Doe", title.Title[0].Text.Content)
	reason := props["Reason"].(notionapi.RichTextProperty)
	assert.Equal(t, "profile page blocked", reason.RichText[0].Text.Content)
	id := props[propContactID].(notionapi.RichTextProperty)
	assert.Equal(t, contact.ID, id.RichText[0].Text.Content)
	status := props["Status"].(notionapi.StatusProperty)
	assert.Equal(t, "Open", status.Status.Name)
}

func TestPush_SkipsContactsWithOpenItems(t *testing.T) {
	st := newTestStore(t)
	contact := seedFlagged(t, st, "Jane Doe", "jane@acme.com", "blocked")

	fake := &fakeNotion{openPages: []notionapi.Page{reviewPage("page-1", contact.ID)}}
	result, err := NewQueue(fake, st, "db-review").Push(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Zero(t, result.Pushed)
	assert.Empty(t, fake.created)
}

func TestPush_QueryError(t *testing.T) {
	st := newTestStore(t)
	seedFlagged(t, st, "Jane Doe", "jane@acme.com", "blocked")

	fake := &fakeNotion{queryErr: eris.New("unauthorized")}
	_, err := NewQueue(fake, st, "db-review").Push(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list open items")
}

func TestPullResolved_ClearsFlagAndArchives(t *testing.T) {
	st := newTestStore(t)
	contact := seedFlagged(t, st, "Jane Doe", "jane@acme.com", "blocked")

	fake := &fakeNotion{resolvedPages: []notionapi.Page{reviewPage("page-1", contact.ID)}}
	result, err := NewQueue(fake, st, "db-review").PullResolved(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Resolved)
	assert.Equal(t, 1, result.Applied)
	assert.Empty(t, result.Errors)

	saved, err := st.GetContact(context.Background(), contact.ID)
	require.NoError(t, err)
	assert.False(t, saved.NeedsHumanReview)
	assert.Empty(t, saved.ReviewReason)

	req := fake.updated["page-1"]
	require.NotNil(t, req)
	status := req.Properties["Status"].(notionapi.StatusProperty)
	assert.Equal(t, "Archived", status.Status.Name)
}

func TestPullResolved_UnknownContactReported(t *testing.T) {
	st := newTestStore(t)

	fake := &fakeNotion{resolvedPages: []notionapi.Page{reviewPage("page-1", "no-such-contact")}}
	result, err := NewQueue(fake, st, "db-review").PullResolved(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Applied)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "page-1")
	assert.Empty(t, fake.updated)
}

func TestPullResolved_ArchiveFailureLeavesItem(t *testing.T) {
	st := newTestStore(t)
	contact := seedFlagged(t, st, "Jane Doe", "jane@acme.com", "blocked")

	fake := &fakeNotion{
		resolvedPages: []notionapi.Page{reviewPage("page-1", contact.ID)},
		updateErr:     eris.New("conflict"),
	}
	result, err := NewQueue(fake, st, "db-review").PullResolved(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Applied)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "archive")
}

func TestContactIDOf(t *testing.T) {
	assert.Equal(t, "c1", contactIDOf(reviewPage("p", "c1")))
	assert.Empty(t, contactIDOf(notionapi.Page{Properties: notionapi.Properties{}}))

	// API responses decode properties as pointers.
	page := notionapi.Page{Properties: notionapi.Properties{
		propContactID: &notionapi.RichTextProperty{RichText: richText("c2")},
	}}
	assert.Equal(t, "c2", contactIDOf(page))
}
