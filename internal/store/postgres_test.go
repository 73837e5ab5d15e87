package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospectkeeper/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresFromPool(mock), mock
}

func contactRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "name", "email", "title", "organization", "status",
		"needs_human_review", "review_reason", "org_website", "profile_url",
		"email_hash", "salesforce_id", "created_at", "updated_at",
	})
}

func TestPostgresStore_GetContact(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .+ FROM contacts WHERE id = \$1`).
		WithArgs("c-1").
		WillReturnRows(contactRows().AddRow(
			"c-1", "Jane Doe", "jane@acme.test", "VP Engineering", "Acme Corp", "active",
			false, "", "https://acme.test", "", "", "", now, now,
		))

	c, err := s.GetContact(context.Background(), "c-1")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", c.Name)
	assert.Equal(t, model.StatusActive, c.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetContact_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM contacts WHERE id = \$1`).
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetContact(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveContact_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE contacts SET`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	c := model.NewContact("Ghost", "ghost@acme.test", "", "Acme Corp")
	c.ID = "ghost"
	err := s.SaveContact(context.Background(), &c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contact not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertContact_GeneratesID(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO contacts`).
		WithArgs(pgxmock.AnyArg(), "Jane Doe", "jane@acme.test", "VP Engineering", "Acme Corp",
			"unknown", false, "", "", "", "", "", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	c := model.NewContact("Jane Doe", "jane@acme.test", "VP Engineering", "Acme Corp")
	c.ID = ""
	require.NoError(t, s.InsertContact(context.Background(), &c))
	assert.NotEmpty(t, c.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveVerdict(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO verdicts`).
		WithArgs(pgxmock.AnyArg(), "c-1", "inactive", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	v := &model.Verdict{ContactID: "c-1", Status: model.StatusInactive}
	require.NoError(t, s.SaveVerdict(context.Background(), v))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveAndListReceipts(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	r := &model.Receipt{BatchID: "batch-1", RunAt: time.Now().UTC(), ContactsProcessed: 3}
	mock.ExpectExec(`INSERT INTO receipts`).
		WithArgs("batch-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, s.SaveReceipt(context.Background(), r))

	mock.ExpectQuery(`SELECT receipt FROM receipts ORDER BY run_at DESC LIMIT \$1`).
		WithArgs(20).
		WillReturnRows(pgxmock.NewRows([]string{"receipt"}).
			AddRow([]byte(`{"batch_id":"batch-1","contacts_processed":3}`)))

	receipts, err := s.ListReceipts(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, "batch-1", receipts[0].BatchID)
	assert.Equal(t, 3, receipts[0].ContactsProcessed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetContactsForVerification_ExcludesOptedOut(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`WHERE status != 'opted_out' AND needs_human_review = false`).
		WithArgs(10).
		WillReturnRows(contactRows().AddRow(
			"c-2", "John Roe", "john@acme.test", "", "Acme Corp", "unknown",
			false, "", "", "", "", "", now, now,
		))

	contacts, err := s.GetContactsForVerification(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "John Roe", contacts[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListContacts_Filter(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	needsReview := true
	mock.ExpectQuery(`AND status = \$1 AND needs_human_review = \$2`).
		WithArgs("unknown", true, 100).
		WillReturnRows(contactRows())

	_, err := s.ListContacts(context.Background(), ContactFilter{
		Status:      model.StatusUnknown,
		NeedsReview: &needsReview,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
