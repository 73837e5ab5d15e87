// Package importer loads contact list files (CSV or XLSX, local or remote)
// into the store.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospectkeeper/internal/fetcher"
	"github.com/sells-group/prospectkeeper/internal/model"
	"github.com/sells-group/prospectkeeper/internal/store"
)

// contactNamespace seeds the deterministic contact IDs. Never change it:
// every existing row's ID is derived from it.
var contactNamespace = uuid.MustParse("b9c41c9e-74ca-4f52-9fd1-2d2f1bfa5847")

// ContactID derives a stable contact ID from an email address, so the same
// person imported twice lands on the same row.
func ContactID(email string) string {
	normalized := strings.ToLower(strings.TrimSpace(email))
	return uuid.NewSHA1(contactNamespace, []byte(normalized)).String()
}

// Result summarizes one import run.
type Result struct {
	Rows     int      // data rows read from the file
	Imported int      // contacts written (new or refreshed)
	Skipped  int      // in-file duplicates and opted-out contacts
	Invalid  int      // rows that failed validation
	Errors   []string // one entry per invalid row
}

// bulkUpserter is satisfied by stores that can write an import batch in one
// round trip.
type bulkUpserter interface {
	BulkUpsertContacts(ctx context.Context, contacts []model.Contact) (int64, error)
}

// Importer parses contact lists and writes them through the store.
type Importer struct {
	store   store.Store
	timeout time.Duration
}

// New creates an importer.
func New(st store.Store) *Importer {
	return &Importer{store: st, timeout: 60 * time.Second}
}

// ImportURL downloads a contact list and imports it. The file format is
// inferred from the URL path.
func (im *Importer) ImportURL(ctx context.Context, rawURL string) (Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Result{}, eris.Wrapf(err, "importer: parse url %s", rawURL)
	}

	f, err := fetcher.ForURL(rawURL, im.timeout)
	if err != nil {
		return Result{}, err
	}

	if strings.EqualFold(filepath.Ext(u.Path), ".xlsx") {
		// The xlsx reader needs a seekable file, so spool to disk first.
		tmp, err := os.CreateTemp("", "prospectkeeper-import-*.xlsx")
		if err != nil {
			return Result{}, eris.Wrap(err, "importer: create temp file")
		}
		defer os.Remove(tmp.Name()) //nolint:errcheck
		_ = tmp.Close()

		if _, err := f.DownloadToFile(ctx, rawURL, tmp.Name()); err != nil {
			return Result{}, err
		}
		return im.ImportXLSX(ctx, tmp.Name())
	}

	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return Result{}, err
	}
	defer body.Close() //nolint:errcheck
	return im.ImportCSV(ctx, body)
}

// ImportFile imports a local contact list, dispatching on the extension.
func (im *Importer) ImportFile(ctx context.Context, path string) (Result, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return im.ImportXLSX(ctx, path)
	case ".csv", ".txt":
		file, err := os.Open(path)
		if err != nil {
			return Result{}, eris.Wrapf(err, "importer: open %s", path)
		}
		defer file.Close() //nolint:errcheck
		return im.ImportCSV(ctx, file)
	default:
		return Result{}, eris.Errorf("importer: unsupported file type %q", filepath.Ext(path))
	}
}

// ImportCSV imports a CSV contact list. The first row must be a header.
func (im *Importer) ImportCSV(ctx context.Context, r io.Reader) (Result, error) {
	headerCh := make(chan []string, 1)
	rowCh, errCh := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
		TrimSpace: true,
	})
	return im.consume(ctx, headerCh, rowCh, errCh)
}

// ImportXLSX imports the first sheet of an XLSX contact list.
func (im *Importer) ImportXLSX(ctx context.Context, path string) (Result, error) {
	headerCh := make(chan []string, 1)
	rowCh, errCh := fetcher.StreamXLSX(ctx, path, fetcher.XLSXOptions{
		SkipRows: 1,
		HeaderCh: headerCh,
	})
	return im.consume(ctx, headerCh, rowCh, errCh)
}

func (im *Importer) consume(ctx context.Context, headerCh <-chan []string, rowCh <-chan []string, errCh <-chan error) (Result, error) {
	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	if err := <-errCh; err != nil {
		return Result{}, err
	}

	var header []string
	select {
	case header = <-headerCh:
	default:
		return Result{}, eris.New("importer: file has no header row")
	}

	return im.importRows(ctx, header, rows)
}

func (im *Importer) importRows(ctx context.Context, header []string, rows [][]string) (Result, error) {
	cm, err := mapColumns(header)
	if err != nil {
		return Result{}, err
	}

	var result Result
	seen := make(map[string]bool, len(rows))
	batch := make([]model.Contact, 0, len(rows))

	for i, row := range rows {
		result.Rows++
		rowNum := i + 2 // header is row 1

		c, err := cm.contact(row)
		if err != nil {
			result.Invalid++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowNum, err))
			continue
		}

		key := strings.ToLower(c.Email)
		if seen[key] {
			result.Skipped++
			continue
		}
		seen[key] = true
		batch = append(batch, c)
	}

	if err := im.write(ctx, batch, &result); err != nil {
		return result, err
	}

	zap.L().Info("import complete",
		zap.Int("rows", result.Rows),
		zap.Int("imported", result.Imported),
		zap.Int("skipped", result.Skipped),
		zap.Int("invalid", result.Invalid),
	)
	return result, nil
}

func (im *Importer) write(ctx context.Context, batch []model.Contact, result *Result) error {
	if len(batch) == 0 {
		return nil
	}

	if bu, ok := im.store.(bulkUpserter); ok {
		n, err := bu.BulkUpsertContacts(ctx, batch)
		if err != nil {
			return eris.Wrap(err, "importer: bulk upsert")
		}
		result.Imported = int(n)
		result.Skipped += len(batch) - int(n)
		return nil
	}

	for _, c := range batch {
		// Anonymized opt-out rows keep their derived ID with an empty email,
		// so the ID lookup comes first. The email fallback catches rows
		// created outside the importer (replacement contacts get random IDs).
		existing, err := im.store.GetContact(ctx, c.ID)
		if errors.Is(err, store.ErrNotFound) {
			existing, err = im.store.GetContactByEmail(ctx, c.Email)
		}
		switch {
		case errors.Is(err, store.ErrNotFound):
			if insertErr := im.store.InsertContact(ctx, &c); insertErr != nil {
				return eris.Wrapf(insertErr, "importer: insert %s", c.Email)
			}
			result.Imported++
		case err != nil:
			return eris.Wrapf(err, "importer: lookup %s", c.Email)
		case existing.IsOptedOut():
			result.Skipped++
		default:
			existing.Name = c.Name
			existing.Title = c.Title
			existing.Organization = c.Organization
			existing.OrgWebsite = c.OrgWebsite
			existing.ProfileURL = c.ProfileURL
			if c.SalesforceID != "" {
				existing.SalesforceID = c.SalesforceID
			}
			if saveErr := im.store.SaveContact(ctx, existing); saveErr != nil {
				return eris.Wrapf(saveErr, "importer: update %s", c.Email)
			}
			result.Imported++
		}
	}
	return nil
}
