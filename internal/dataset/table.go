// Package dataset reads tabular uploads into named columns.
//
// CSV and XLSX files are supported. The first row is always the header.
// Header names are made unique and non-empty the way spreadsheet tools do
// it: a blank header becomes "Unnamed: <index>" and a repeated header gets
// a ".1", ".2" suffix.
package dataset

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

var (
	ErrEmptyDataset      = errors.New("dataset is empty")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrColumnNotFound    = errors.New("column not found")
)

// Table is a parsed upload. Every row has exactly len(Columns) values.
type Table struct {
	Name    string     `json:"name"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"-"`
}

// Len returns the number of data rows
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ColumnIndex returns the position of a column, or -1
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns all values of the named column in row order
func (t *Table) Column(name string) ([]string, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrColumnNotFound, name, strings.Join(t.Columns, ", "))
	}
	values := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[idx]
	}
	return values, nil
}

// Read parses r according to the extension of name
func Read(r io.Reader, name string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return ReadCSV(r, name)
	case ".xlsx":
		return ReadXLSX(r, name)
	default:
		return nil, fmt.Errorf("%w: %q (expected .csv or .xlsx)", ErrUnsupportedFormat, filepath.Ext(name))
	}
}

// SupportedExtension reports whether Read accepts the file name
func SupportedExtension(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt", ".xlsx":
		return true
	}
	return false
}

// newTable builds a table from raw records, the first being the header
func newTable(name string, records [][]string) (*Table, error) {
	if len(records) == 0 || isBlank(records[0]) {
		return nil, ErrEmptyDataset
	}

	header := records[0]
	width := len(header)
	for _, rec := range records[1:] {
		if len(rec) > width {
			width = len(rec)
		}
	}

	t := &Table{
		Name:    name,
		Columns: uniqueColumns(header, width),
		Rows:    make([][]string, 0, len(records)-1),
	}

	for _, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		row := make([]string, width)
		copy(row, rec)
		t.Rows = append(t.Rows, row)
	}

	return t, nil
}

func uniqueColumns(header []string, width int) []string {
	columns := make([]string, width)
	seen := make(map[string]bool, width)
	suffix := make(map[string]int)
	for i := 0; i < width; i++ {
		name := ""
		if i < len(header) {
			name = strings.TrimSpace(header[i])
		}
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		base := name
		for seen[name] {
			suffix[base]++
			name = fmt.Sprintf("%s.%d", base, suffix[base])
		}
		seen[name] = true
		columns[i] = name
	}
	return columns
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
