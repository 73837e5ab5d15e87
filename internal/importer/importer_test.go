package importer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/prospectkeeper/internal/model"
	"github.com/sells-group/prospectkeeper/internal/store"
)

func newTestImporter(t *testing.T) (*Importer, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "import.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return New(st), st
}

const sampleCSV = `Full Name,Work Email,Job Title,Company,Company Website,LinkedIn URL
Jane Doe,jane@acme.com,VP Engineering,Acme Corp,https://acme.com,https://example.com/in/janedoe
Bob Smith,bob@globex.com,CFO,Globex,,
`

func TestImportCSV(t *testing.T) {
	im, st := newTestImporter(t)

	result, err := im.ImportCSV(context.Background(), strings.NewReader(sampleCSV))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Rows)
	assert.Equal(t, 2, result.Imported)
	assert.Zero(t, result.Invalid)

	jane, err := st.GetContactByEmail(context.Background(), "jane@acme.com")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", jane.Name)
	assert.Equal(t, "VP Engineering", jane.Title)
	assert.Equal(t, "Acme Corp", jane.Organization)
	assert.Equal(t, "https://acme.com", jane.OrgWebsite)
	assert.Equal(t, model.StatusUnknown, jane.Status)
	assert.Equal(t, ContactID("jane@acme.com"), jane.ID)
}

func TestImportCSV_InvalidRowsReported(t *testing.T) {
	im, _ := newTestImporter(t)

	csv := "name,email\n" +
		"Jane Doe,jane@acme.com\n" +
		",missing@acme.com\n" +
		"No Email,not-an-email\n"

	result, err := im.ImportCSV(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 3, result.Rows)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 2, result.Invalid)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "row 3: missing name")
	assert.Contains(t, result.Errors[1], `row 4: invalid email "not-an-email"`)
}

func TestImportCSV_InFileDuplicatesSkipped(t *testing.T) {
	im, _ := newTestImporter(t)

	csv := "name,email\n" +
		"Jane Doe,jane@acme.com\n" +
		"Jane D.,JANE@ACME.COM\n"

	result, err := im.ImportCSV(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 1, result.Skipped)
}

func TestImportCSV_ReimportRefreshesIdentity(t *testing.T) {
	im, st := newTestImporter(t)
	ctx := context.Background()

	_, err := im.ImportCSV(ctx, strings.NewReader("name,email,title\nJane Doe,jane@acme.com,VP Engineering\n"))
	require.NoError(t, err)

	// Verification state set between imports must survive a refresh.
	jane, err := st.GetContactByEmail(ctx, "jane@acme.com")
	require.NoError(t, err)
	jane.MarkActive()
	require.NoError(t, st.SaveContact(ctx, jane))

	result, err := im.ImportCSV(ctx, strings.NewReader("name,email,title\nJane Doe,jane@acme.com,SVP Engineering\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)

	jane, err = st.GetContactByEmail(ctx, "jane@acme.com")
	require.NoError(t, err)
	assert.Equal(t, "SVP Engineering", jane.Title)
	assert.Equal(t, model.StatusActive, jane.Status)
}

func TestImportCSV_OptedOutNotResurrected(t *testing.T) {
	im, st := newTestImporter(t)
	ctx := context.Background()

	_, err := im.ImportCSV(ctx, strings.NewReader("name,email\nJane Doe,jane@acme.com\n"))
	require.NoError(t, err)

	jane, err := st.GetContactByEmail(ctx, "jane@acme.com")
	require.NoError(t, err)
	jane.OptOut()
	require.NoError(t, st.SaveContact(ctx, jane))

	result, err := im.ImportCSV(ctx, strings.NewReader("name,email\nJane Doe,jane@acme.com\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Zero(t, result.Imported)

	optedOut, err := st.GetContact(ctx, jane.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOptedOut, optedOut.Status)
	assert.Equal(t, "[OPTED OUT]", optedOut.Name)
	assert.Empty(t, optedOut.Email)
}

func TestImportCSV_MissingRequiredColumns(t *testing.T) {
	im, _ := newTestImporter(t)

	_, err := im.ImportCSV(context.Background(), strings.NewReader("name,company\nJane Doe,Acme\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no email column")
}

func TestImportCSV_EmptyFile(t *testing.T) {
	im, _ := newTestImporter(t)

	_, err := im.ImportCSV(context.Background(), strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no header row")
}

func TestImportFile_XLSX(t *testing.T) {
	im, st := newTestImporter(t)

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Contacts")
	require.NoError(t, err)
	for _, cells := range [][]string{
		{"Name", "Email", "Title", "Organization"},
		{"Jane Doe", "jane@acme.com", "VP Engineering", "Acme Corp"},
	} {
		row := sheet.AddRow()
		for _, v := range cells {
			row.AddCell().Value = v
		}
	}
	path := filepath.Join(t.TempDir(), "contacts.xlsx")
	require.NoError(t, f.Save(path))

	result, err := im.ImportFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)

	_, err = st.GetContactByEmail(context.Background(), "jane@acme.com")
	require.NoError(t, err)
}

func TestImportFile_CSVAndUnsupported(t *testing.T) {
	im, _ := newTestImporter(t)

	path := filepath.Join(t.TempDir(), "contacts.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,email\nJane Doe,jane@acme.com\n"), 0o644))

	result, err := im.ImportFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)

	_, err = im.ImportFile(context.Background(), "/tmp/contacts.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}

type bulkStore struct {
	store.Store
	batch []model.Contact
}

func (b *bulkStore) BulkUpsertContacts(_ context.Context, contacts []model.Contact) (int64, error) {
	b.batch = contacts
	return int64(len(contacts)) - 1, nil
}

func TestImportCSV_BulkPathPreferred(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "import.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	bs := &bulkStore{Store: st}
	im := New(bs)

	result, err := im.ImportCSV(context.Background(), strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, bs.batch, 2)
	assert.Equal(t, "jane@acme.com", bs.batch[0].Email)
	// The store reports one row left untouched by the guarded update.
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 1, result.Skipped)

	// Rows went through the bulk writer, not per-row inserts.
	_, err = st.GetContactByEmail(context.Background(), "jane@acme.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestContactID_Deterministic(t *testing.T) {
	assert.Equal(t, ContactID("jane@acme.com"), ContactID(" JANE@acme.com "))
	assert.NotEqual(t, ContactID("jane@acme.com"), ContactID("bob@globex.com"))
}

func TestMapColumns_Aliases(t *testing.T) {
	cm, err := mapColumns([]string{"Contact_Name", "E-Mail", "Position", "Account Name", "Domain", "LinkedIn", "SFDC ID"})
	require.NoError(t, err)
	assert.Equal(t, 0, cm.name)
	assert.Equal(t, 1, cm.email)
	assert.Equal(t, 2, cm.title)
	assert.Equal(t, 3, cm.organization)
	assert.Equal(t, 4, cm.website)
	assert.Equal(t, 5, cm.profile)
	assert.Equal(t, 6, cm.salesforceID)
}

func TestValidEmail(t *testing.T) {
	assert.True(t, validEmail("jane@acme.com"))
	assert.False(t, validEmail("jane@acme"))
	assert.False(t, validEmail("@acme.com"))
	assert.False(t, validEmail("jane@@acme.com"))
	assert.False(t, validEmail("jane doe@acme.com"))
}
