package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/prospectkeeper/internal/db"
	"github.com/sells-group/prospectkeeper/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest store operations.
var preparedStatements = map[string]string{
	"get_contact":    `SELECT ` + pgContactCols + ` FROM contacts WHERE id = $1`,
	"save_contact":   pgSaveContactSQL,
	"insert_contact": pgInsertContactSQL,
	"insert_verdict": `INSERT INTO verdicts (id, contact_id, status, verdict, created_at) VALUES ($1, $2, $3, $4, $5)`,
	"insert_receipt": `INSERT INTO receipts (batch_id, run_at, receipt) VALUES ($1, $2, $3)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests and by subsystems
// that share a pool with the importer.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for subsystems that need direct
// query access (e.g., bulk import).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS contacts (
	id                 TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name               TEXT NOT NULL,
	email              TEXT NOT NULL DEFAULT '',
	title              TEXT NOT NULL DEFAULT '',
	organization       TEXT NOT NULL DEFAULT '',
	status             TEXT NOT NULL DEFAULT 'unknown',
	needs_human_review BOOLEAN NOT NULL DEFAULT false,
	review_reason      TEXT NOT NULL DEFAULT '',
	org_website        TEXT NOT NULL DEFAULT '',
	profile_url        TEXT NOT NULL DEFAULT '',
	email_hash         TEXT NOT NULL DEFAULT '',
	salesforce_id      TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS verdicts (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	contact_id TEXT NOT NULL REFERENCES contacts(id),
	status     TEXT NOT NULL,
	verdict    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS receipts (
	batch_id TEXT PRIMARY KEY,
	run_at   TIMESTAMPTZ NOT NULL,
	receipt  JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_contacts_status ON contacts(status);
CREATE INDEX IF NOT EXISTS idx_contacts_email ON contacts(lower(email));
CREATE INDEX IF NOT EXISTS idx_contacts_review ON contacts(needs_human_review);
CREATE INDEX IF NOT EXISTS idx_verdicts_contact_id ON verdicts(contact_id);
CREATE INDEX IF NOT EXISTS idx_receipts_run_at ON receipts(run_at DESC);
`

const pgContactCols = `id, name, email, title, organization, status,
	needs_human_review, review_reason, org_website, profile_url,
	email_hash, salesforce_id, created_at, updated_at`

const pgInsertContactSQL = `INSERT INTO contacts (` + pgContactCols + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

const pgSaveContactSQL = `UPDATE contacts SET name = $1, email = $2, title = $3,
	organization = $4, status = $5, needs_human_review = $6, review_reason = $7,
	org_website = $8, profile_url = $9, email_hash = $10, salesforce_id = $11,
	updated_at = $12 WHERE id = $13`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetContact(ctx context.Context, id string) (*model.Contact, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgContactCols+` FROM contacts WHERE id = $1`, id)
	return scanPgContact(row)
}

func (s *PostgresStore) GetContactByEmail(ctx context.Context, email string) (*model.Contact, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgContactCols+` FROM contacts WHERE lower(email) = lower($1)
		 ORDER BY updated_at DESC LIMIT 1`, email)
	return scanPgContact(row)
}

func (s *PostgresStore) ListContacts(ctx context.Context, filter ContactFilter) ([]model.Contact, error) {
	query := `SELECT ` + pgContactCols + ` FROM contacts WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.NeedsReview != nil {
		query += fmt.Sprintf(` AND needs_human_review = $%d`, argIdx)
		args = append(args, *filter.NeedsReview)
		argIdx++
	}
	query += ` ORDER BY updated_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list contacts")
	}
	defer rows.Close()
	return collectContacts(rows)
}

func (s *PostgresStore) GetContactsForVerification(ctx context.Context, limit int) ([]model.Contact, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgContactCols+` FROM contacts
		 WHERE status != 'opted_out' AND needs_human_review = false
		 ORDER BY updated_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get contacts for verification")
	}
	defer rows.Close()
	return collectContacts(rows)
}

func (s *PostgresStore) InsertContact(ctx context.Context, c *model.Contact) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx, pgInsertContactSQL,
		c.ID, c.Name, c.Email, c.Title, c.Organization, string(c.Status),
		c.NeedsHumanReview, c.ReviewReason, c.OrgWebsite, c.ProfileURL,
		c.EmailHash, c.SalesforceID, c.CreatedAt, c.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: insert contact %s", c.ID)
}

// BulkUpsertContacts writes a batch of imported contacts in one round trip.
// Conflicts on id refresh the identity columns only; verification state and
// anonymized opt-out rows are left untouched.
func (s *PostgresStore) BulkUpsertContacts(ctx context.Context, contacts []model.Contact) (int64, error) {
	rows := make([][]any, len(contacts))
	for i, c := range contacts {
		rows[i] = []any{
			c.ID, c.Name, c.Email, c.Title, c.Organization, string(c.Status),
			c.NeedsHumanReview, c.ReviewReason, c.OrgWebsite, c.ProfileURL,
			c.EmailHash, c.SalesforceID, c.CreatedAt, c.UpdatedAt,
		}
	}
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table: "contacts",
		Columns: []string{
			"id", "name", "email", "title", "organization", "status",
			"needs_human_review", "review_reason", "org_website", "profile_url",
			"email_hash", "salesforce_id", "created_at", "updated_at",
		},
		ConflictKeys: []string{"id"},
		UpdateCols: []string{
			"name", "email", "title", "organization",
			"org_website", "profile_url", "salesforce_id", "updated_at",
		},
		UpdateWhere: "contacts.status <> 'opted_out'",
	}, rows)
}

func (s *PostgresStore) SaveContact(ctx context.Context, c *model.Contact) error {
	tag, err := s.pool.Exec(ctx, pgSaveContactSQL,
		c.Name, c.Email, c.Title, c.Organization, string(c.Status),
		c.NeedsHumanReview, c.ReviewReason, c.OrgWebsite, c.ProfileURL,
		c.EmailHash, c.SalesforceID, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save contact %s", c.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("contact not found: %s", c.ID)
	}
	return nil
}

func (s *PostgresStore) SaveVerdict(ctx context.Context, v *model.Verdict) error {
	verdictJSON, err := json.Marshal(v)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal verdict")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO verdicts (id, contact_id, status, verdict, created_at) VALUES ($1, $2, $3, $4, $5)`,
		uuid.New().String(), v.ContactID, string(v.Status), verdictJSON, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: insert verdict for contact %s", v.ContactID)
}

func (s *PostgresStore) SaveReceipt(ctx context.Context, r *model.Receipt) error {
	receiptJSON, err := json.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal receipt")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO receipts (batch_id, run_at, receipt) VALUES ($1, $2, $3)`,
		r.BatchID, r.RunAt, receiptJSON,
	)
	return eris.Wrapf(err, "postgres: insert receipt %s", r.BatchID)
}

func (s *PostgresStore) ListReceipts(ctx context.Context, limit int) ([]model.Receipt, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT receipt FROM receipts ORDER BY run_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list receipts")
	}
	defer rows.Close()

	var receipts []model.Receipt
	for rows.Next() {
		var receiptJSON []byte
		if err := rows.Scan(&receiptJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan receipt")
		}
		var r model.Receipt
		if err := json.Unmarshal(receiptJSON, &r); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal receipt")
		}
		receipts = append(receipts, r)
	}
	return receipts, eris.Wrap(rows.Err(), "postgres: list receipts iterate")
}

// helpers

func scanPgContact(row pgx.Row) (*model.Contact, error) {
	var c model.Contact
	var status string

	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Title, &c.Organization, &status,
		&c.NeedsHumanReview, &c.ReviewReason, &c.OrgWebsite, &c.ProfileURL,
		&c.EmailHash, &c.SalesforceID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan contact")
	}

	c.Status = model.ContactStatus(status)
	return &c, nil
}

func collectContacts(rows pgx.Rows) ([]model.Contact, error) {
	var contacts []model.Contact
	for rows.Next() {
		c, err := scanPgContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, *c)
	}
	return contacts, eris.Wrap(rows.Err(), "postgres: iterate contacts")
}
