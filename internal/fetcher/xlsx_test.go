package fetcher

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func writeTestXLSX(t *testing.T, sheetName string, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	require.NoError(t, err)
	for _, cells := range rows {
		row := sheet.AddRow()
		for _, v := range cells {
			row.AddCell().Value = v
		}
	}
	path := filepath.Join(t.TempDir(), "contacts.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestStreamXLSX_Basic(t *testing.T) {
	path := writeTestXLSX(t, "Contacts", [][]string{
		{"name", "email"},
		{"Jane Doe", "jane@acme.com"},
		{"Bob Smith", "bob@globex.com"},
	})

	headerCh := make(chan []string, 1)
	rowCh, errCh := StreamXLSX(context.Background(), path, XLSXOptions{
		SkipRows: 1,
		HeaderCh: headerCh,
	})
	rows := collectRows(t, rowCh, errCh)

	assert.Equal(t, []string{"name", "email"}, <-headerCh)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Jane Doe", "jane@acme.com"}, rows[0])
}

func TestStreamXLSX_SheetByName(t *testing.T) {
	path := writeTestXLSX(t, "Weekly Export", [][]string{
		{"Jane Doe", "jane@acme.com"},
	})

	rowCh, errCh := StreamXLSX(context.Background(), path, XLSXOptions{SheetName: "Weekly Export"})
	rows := collectRows(t, rowCh, errCh)
	require.Len(t, rows, 1)

	rowCh, errCh = StreamXLSX(context.Background(), path, XLSXOptions{SheetName: "Missing"})
	for range rowCh {
	}
	err := <-errCh
	require.Error(t, err)
	assert.Contains(t, err.Error(), `sheet "Missing" not found`)
}

func TestStreamXLSX_SheetIndexOutOfRange(t *testing.T) {
	path := writeTestXLSX(t, "Contacts", [][]string{{"a"}})

	rowCh, errCh := StreamXLSX(context.Background(), path, XLSXOptions{SheetIndex: 3})
	for range rowCh {
	}
	require.Error(t, <-errCh)
}

func TestStreamXLSX_MissingFile(t *testing.T) {
	rowCh, errCh := StreamXLSX(context.Background(), "/nonexistent.xlsx", XLSXOptions{})
	for range rowCh {
	}
	err := <-errCh
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open file")
}
