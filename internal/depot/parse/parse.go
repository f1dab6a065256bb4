// Package parse converts raw dataset exports into ordered logical rows. It
// validates header shape against the dataset descriptor and expands rows that
// pack several logical records into one physical line.
package parse

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/openteller/depot/internal/common/depoterrors"
	"github.com/openteller/depot/internal/depot/model"
	"github.com/openteller/depot/internal/depot/schema"
)

// physicalRow is one row as it appears in the source, before multi-value
// expansion. num is the 1-based row number counting header and title rows.
type physicalRow struct {
	num    int
	values []string
}

// Parse reads the raw bytes of one upload according to the dataset descriptor
// and returns the logical rows in source order. A header mismatch aborts with
// a single structural error and zero rows; there are never partial results.
func Parse(raw []byte, ds *schema.Dataset) ([]model.Row, error) {
	var (
		header   []string
		headerAt int
		physical []physicalRow
		err      error
	)
	switch ds.Source.Kind {
	case schema.SourceDelimited:
		header, headerAt, physical, err = readDelimited(raw, ds)
	case schema.SourceWorkbook:
		header, headerAt, physical, err = readWorkbook(raw, ds)
	default:
		return nil, errors.Errorf("dataset %q declares unknown source kind %q", ds.Name, ds.Source.Kind)
	}
	if err != nil {
		return nil, err
	}

	if err := validateHeader(header, headerAt, ds); err != nil {
		return nil, err
	}

	var rows []model.Row
	for _, p := range physical {
		values := padTo(p.values, len(ds.Columns))
		if isBlank(values) {
			continue
		}
		for _, logical := range expand(values, ds.MultiValueSeparator) {
			rows = append(rows, model.Row{SourceRow: p.num, Values: cells(logical)})
		}
	}
	return rows, nil
}

func readDelimited(raw []byte, ds *schema.Dataset) ([]string, int, []physicalRow, error) {
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.Comma = ds.Source.Delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, 0, nil, structural(1, "", fmt.Sprintf("cannot read delimited payload: %v", err))
	}
	if len(records) == 0 {
		return nil, 0, nil, structural(1, "", "payload is empty")
	}

	physical := make([]physicalRow, 0, len(records)-1)
	for i, record := range records[1:] {
		physical = append(physical, physicalRow{num: i + 2, values: record})
	}
	return records[0], 1, physical, nil
}

// validateHeader requires the parsed header to carry exactly the declared
// columns, in declared order. Column name comparison ignores case and
// surrounding whitespace; order and count are strict.
func validateHeader(header []string, headerAt int, ds *schema.Dataset) error {
	expected := ds.ColumnNames()
	if len(header) != len(expected) {
		return structural(headerAt, "", fmt.Sprintf(
			"expected %d columns (%s), got %d",
			len(expected), strings.Join(expected, ", "), len(header)))
	}
	for i, name := range expected {
		got := strings.TrimSpace(header[i])
		if !strings.EqualFold(got, name) {
			return structural(headerAt, name, fmt.Sprintf(
				"expected column %q at position %d, got %q", name, i+1, got))
		}
	}
	return nil
}

// expand splits every column value on the multi-value separator and emits one
// logical row per split index. Columns with fewer splits than the widest
// column repeat their last value to pad up to the full count. Rows without
// the separator pass through unchanged.
func expand(values []string, separator string) [][]string {
	splits := make([][]string, len(values))
	k := 1
	for i, v := range values {
		if separator != "" && strings.Contains(v, separator) {
			splits[i] = strings.Split(v, separator)
		} else {
			splits[i] = []string{v}
		}
		if len(splits[i]) > k {
			k = len(splits[i])
		}
	}

	logical := make([][]string, k)
	for i := 0; i < k; i++ {
		row := make([]string, len(values))
		for c := range values {
			s := splits[c]
			if i < len(s) {
				row[c] = s[i]
			} else {
				row[c] = s[len(s)-1]
			}
		}
		logical[i] = row
	}
	return logical
}

func isBlank(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func padTo(values []string, n int) []string {
	if len(values) >= n {
		return values
	}
	padded := make([]string, n)
	copy(padded, values)
	return padded
}

func cells(values []string) []*string {
	result := make([]*string, len(values))
	for i := range values {
		v := values[i]
		result[i] = &v
	}
	return result
}

func structural(row int, column string, message string) error {
	return &depoterrors.ErrValidationFailed{
		Errors: []model.ValidationError{
			{Row: row, Column: column, Message: message},
		},
	}
}
