// Package normalize applies per-column transforms to parsed rows and collects
// data-quality errors. Validation is a pure gate: callers insert rows only
// when the error set for the whole upload is empty.
package normalize

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/openteller/depot/internal/depot/model"
	"github.com/openteller/depot/internal/depot/schema"
)

// Normalize transforms every cell of every row according to the dataset's
// column rules and reports all problems found. All errors of a row are
// collected, not just the first, so a caller can fix the whole export in one
// pass. The returned rows are complete even when errors are present; the
// caller decides whether to discard them.
func Normalize(rows []model.Row, ds *schema.Dataset) ([]model.Row, []model.ValidationError) {
	normalized := make([]model.Row, len(rows))
	var validationErrors []model.ValidationError

	for i, row := range rows {
		out := model.Row{SourceRow: row.SourceRow, Values: make([]*string, len(ds.Columns))}
		for c, column := range ds.Columns {
			var raw string
			if c < len(row.Values) && row.Values[c] != nil {
				raw = *row.Values[c]
			}
			value := apply(column.Rule, raw)
			out.Values[c] = value

			if column.Required && value == nil {
				validationErrors = append(validationErrors, model.ValidationError{
					Row:     row.SourceRow,
					Column:  column.Name,
					Value:   raw,
					Message: fmt.Sprintf("required column %q is empty", column.Name),
				})
			}
		}
		normalized[i] = out
	}
	return normalized, validationErrors
}

// apply runs one column rule. Empty results always map to null.
func apply(rule schema.Rule, raw string) *string {
	var value string
	switch rule {
	case schema.RuleCollapseUpper:
		value = strings.ToUpper(strings.Join(strings.Fields(raw), " "))
	case schema.RuleStripUpper:
		value = strings.ToUpper(stripWhitespace(raw))
	default:
		value = strings.TrimSpace(raw)
	}
	if value == "" {
		return nil
	}
	return &value
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
