package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/prospectkeeper/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS contacts (
	id                 TEXT PRIMARY KEY,
	name               TEXT NOT NULL,
	email              TEXT NOT NULL DEFAULT '',
	title              TEXT NOT NULL DEFAULT '',
	organization       TEXT NOT NULL DEFAULT '',
	status             TEXT NOT NULL DEFAULT 'unknown',
	needs_human_review INTEGER NOT NULL DEFAULT 0,
	review_reason      TEXT NOT NULL DEFAULT '',
	org_website        TEXT NOT NULL DEFAULT '',
	profile_url        TEXT NOT NULL DEFAULT '',
	email_hash         TEXT NOT NULL DEFAULT '',
	salesforce_id      TEXT NOT NULL DEFAULT '',
	created_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS verdicts (
	id         TEXT PRIMARY KEY,
	contact_id TEXT NOT NULL REFERENCES contacts(id),
	status     TEXT NOT NULL,
	verdict    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS receipts (
	batch_id TEXT PRIMARY KEY,
	run_at   DATETIME NOT NULL,
	receipt  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_contacts_status ON contacts(status);
CREATE INDEX IF NOT EXISTS idx_contacts_email ON contacts(email);
CREATE INDEX IF NOT EXISTS idx_contacts_review ON contacts(needs_human_review);
CREATE INDEX IF NOT EXISTS idx_verdicts_contact_id ON verdicts(contact_id);
CREATE INDEX IF NOT EXISTS idx_receipts_run_at ON receipts(run_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteContactCols = `id, name, email, title, organization, status,
	needs_human_review, review_reason, org_website, profile_url,
	email_hash, salesforce_id, created_at, updated_at`

func (s *SQLiteStore) GetContact(ctx context.Context, id string) (*model.Contact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteContactCols+` FROM contacts WHERE id = ?`, id)
	return scanContact(row)
}

func (s *SQLiteStore) GetContactByEmail(ctx context.Context, email string) (*model.Contact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteContactCols+` FROM contacts WHERE email = ? COLLATE NOCASE
		 ORDER BY updated_at DESC LIMIT 1`, email)
	return scanContact(row)
}

func (s *SQLiteStore) ListContacts(ctx context.Context, filter ContactFilter) ([]model.Contact, error) {
	query := `SELECT ` + sqliteContactCols + ` FROM contacts WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.NeedsReview != nil {
		query += ` AND needs_human_review = ?`
		args = append(args, boolToInt(*filter.NeedsReview))
	}
	query += ` ORDER BY updated_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list contacts")
	}
	defer rows.Close()

	var contacts []model.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, *c)
	}
	return contacts, eris.Wrap(rows.Err(), "sqlite: list contacts iterate")
}

func (s *SQLiteStore) GetContactsForVerification(ctx context.Context, limit int) ([]model.Contact, error) {
	if limit <= 0 {
		limit = 50
	}
	// Stalest first, so repeated runs rotate through the whole book.
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteContactCols+` FROM contacts
		 WHERE status != 'opted_out' AND needs_human_review = 0
		 ORDER BY updated_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get contacts for verification")
	}
	defer rows.Close()

	var contacts []model.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, *c)
	}
	return contacts, eris.Wrap(rows.Err(), "sqlite: verification candidates iterate")
}

func (s *SQLiteStore) InsertContact(ctx context.Context, c *model.Contact) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contacts (`+sqliteContactCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Email, c.Title, c.Organization, string(c.Status),
		boolToInt(c.NeedsHumanReview), c.ReviewReason, c.OrgWebsite, c.ProfileURL,
		c.EmailHash, c.SalesforceID, c.CreatedAt, c.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert contact %s", c.ID)
}

func (s *SQLiteStore) SaveContact(ctx context.Context, c *model.Contact) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE contacts SET name = ?, email = ?, title = ?, organization = ?, status = ?,
		 needs_human_review = ?, review_reason = ?, org_website = ?, profile_url = ?,
		 email_hash = ?, salesforce_id = ?, updated_at = ? WHERE id = ?`,
		c.Name, c.Email, c.Title, c.Organization, string(c.Status),
		boolToInt(c.NeedsHumanReview), c.ReviewReason, c.OrgWebsite, c.ProfileURL,
		c.EmailHash, c.SalesforceID, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save contact %s", c.ID)
	}
	return checkRowsAffected(res, "contact", c.ID)
}

func (s *SQLiteStore) SaveVerdict(ctx context.Context, v *model.Verdict) error {
	verdictJSON, err := json.Marshal(v)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal verdict")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO verdicts (id, contact_id, status, verdict, created_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), v.ContactID, string(v.Status), string(verdictJSON), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert verdict for contact %s", v.ContactID)
}

func (s *SQLiteStore) SaveReceipt(ctx context.Context, r *model.Receipt) error {
	receiptJSON, err := json.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal receipt")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO receipts (batch_id, run_at, receipt) VALUES (?, ?, ?)`,
		r.BatchID, r.RunAt, string(receiptJSON),
	)
	return eris.Wrapf(err, "sqlite: insert receipt %s", r.BatchID)
}

func (s *SQLiteStore) ListReceipts(ctx context.Context, limit int) ([]model.Receipt, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT receipt FROM receipts ORDER BY run_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list receipts")
	}
	defer rows.Close()

	var receipts []model.Receipt
	for rows.Next() {
		var receiptJSON string
		if err := rows.Scan(&receiptJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan receipt")
		}
		var r model.Receipt
		if err := json.Unmarshal([]byte(receiptJSON), &r); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal receipt")
		}
		receipts = append(receipts, r)
	}
	return receipts, eris.Wrap(rows.Err(), "sqlite: list receipts iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scannable interface {
	Scan(dest ...any) error
}

func scanContact(row scannable) (*model.Contact, error) {
	var c model.Contact
	var status string
	var needsReview int

	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Title, &c.Organization, &status,
		&needsReview, &c.ReviewReason, &c.OrgWebsite, &c.ProfileURL,
		&c.EmailHash, &c.SalesforceID, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan contact")
	}

	c.Status = model.ContactStatus(status)
	c.NeedsHumanReview = needsReview != 0
	return &c, nil
}
