package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrMissingColumn is returned when a table lacks a column the pipeline needs
var ErrMissingColumn = errors.New("missing required column")

const utf8BOM = "\ufeff"

// Table is a raw CSV file held in memory as strings.
// Values are never coerced here; parsing belongs to the transformer.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string

	index map[string]int
}

// NewTable builds a table and its column index from a header and rows
func NewTable(name string, header []string, rows [][]string) *Table {
	t := &Table{Name: name, Header: make([]string, len(header)), Rows: rows}
	t.index = make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, utf8BOM))
		t.Header[i] = h
		if _, dup := t.index[h]; !dup {
			t.index[h] = i
		}
	}
	return t
}

// ReadTable parses CSV content with a header row
func ReadTable(name string, r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return NewTable(name, nil, nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", name, err)
	}

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		rows = append(rows, record)
	}

	return NewTable(name, header, rows), nil
}

// ReadTableFile opens and parses a CSV file
func ReadTableFile(name, path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return ReadTable(name, f)
}

// Len returns the number of data rows
func (t *Table) Len() int {
	return len(t.Rows)
}

// Col returns the position of a column, or -1 if absent
func (t *Table) Col(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// HasColumns reports the first missing column, if any
func (t *Table) HasColumns(names ...string) error {
	for _, n := range names {
		if t.Col(n) < 0 {
			return fmt.Errorf("%s: %w %q", t.Name, ErrMissingColumn, n)
		}
	}
	return nil
}

// Value returns the trimmed cell at col, or "" for short rows and absent columns
func (t *Table) Value(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}
