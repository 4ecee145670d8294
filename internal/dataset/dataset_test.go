package dataset

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReadCSV(t *testing.T) {
	input := "\xEF\xBB\xBFid,Timestamp,note\n" +
		"1,2024-01-05 10:00,first\n" +
		"2,2024-01-05 11:00\n" +
		"\n" +
		"3,2024-01-31,\"quoted, note\",extra\n"

	table, err := ReadCSV(strings.NewReader(input), "events.csv")
	require.NoError(t, err)

	assert.Equal(t, "events.csv", table.Name)
	assert.Equal(t, []string{"id", "Timestamp", "note", "Unnamed: 3"}, table.Columns)
	assert.Equal(t, 3, table.Len())

	values, err := table.Column("Timestamp")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-05 10:00", "2024-01-05 11:00", "2024-01-31"}, values)

	notes, err := table.Column("note")
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "", "quoted, note"}, notes)
}

func TestReadCSV_Empty(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""), "empty.csv")
	assert.ErrorIs(t, err, ErrEmptyDataset)

	table, err := ReadCSV(strings.NewReader("Timestamp\n"), "header.csv")
	require.NoError(t, err)
	assert.Equal(t, 0, table.Len())
	assert.Equal(t, []string{"Timestamp"}, table.Columns)
}

func TestReadCSV_DuplicateHeaders(t *testing.T) {
	table, err := ReadCSV(strings.NewReader("ts,ts,,ts\n1,2,3,4\n"), "dup.csv")
	require.NoError(t, err)
	assert.Equal(t, []string{"ts", "ts.1", "Unnamed: 2", "ts.2"}, table.Columns)

	values, err := table.Column("ts.2")
	require.NoError(t, err)
	assert.Equal(t, []string{"4"}, values)
}

func TestTable_ColumnNotFound(t *testing.T) {
	table, err := ReadCSV(strings.NewReader("a,b\n1,2\n"), "t.csv")
	require.NoError(t, err)

	_, err = table.Column("Timestamp")
	assert.ErrorIs(t, err, ErrColumnNotFound)
	assert.Contains(t, err.Error(), "a, b")
	assert.Equal(t, -1, table.ColumnIndex("Timestamp"))
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Timestamp", "user"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"2024-03-09 10:00", "ana"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]interface{}{"2024-03-10"}))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	table, err := Read(bytes.NewReader(buf.Bytes()), "events.XLSX")
	require.NoError(t, err)
	assert.Equal(t, []string{"Timestamp", "user"}, table.Columns)

	values, err := table.Column("Timestamp")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-09 10:00", "2024-03-10"}, values)

	users, err := table.Column("user")
	require.NoError(t, err)
	assert.Equal(t, []string{"ana", ""}, users)
}

func TestReadXLSX_Invalid(t *testing.T) {
	_, err := ReadXLSX(strings.NewReader("not a zip"), "broken.xlsx")
	assert.Error(t, err)
}

func TestRead_Dispatch(t *testing.T) {
	table, err := Read(strings.NewReader("Timestamp\n2024-01-01\n"), "upload.csv")
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())

	_, err = Read(strings.NewReader("{}"), "upload.json")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	assert.True(t, SupportedExtension("a.CSV"))
	assert.True(t, SupportedExtension("a.xlsx"))
	assert.False(t, SupportedExtension("a.xls"))
}

func TestTable_NilLen(t *testing.T) {
	var table *Table
	assert.Equal(t, 0, table.Len())
}
