package dataset

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV parses comma-separated data. Rows may have fewer or more fields
// than the header; short rows are padded with empty values.
func ReadCSV(r io.Reader, name string) (*Table, error) {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	// Set FieldsPerRecord to -1 to allow variable number of fields
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return nil, fmt.Errorf("failed to parse %s at line %d: %w", name, parseErr.Line, parseErr.Err)
		}
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}

	return newTable(name, records)
}
