// Package schema is the single source of truth for dataset shapes. The parser,
// normalizer and loader all derive their behaviour from the descriptors held
// here; column lists are never repeated elsewhere.
package schema

import (
	"github.com/openteller/depot/internal/common/depoterrors"
)

// Rule selects the normalization applied to a column's raw values. Every rule
// ends with empty string mapping to null.
type Rule string

const (
	// RuleTrim trims surrounding whitespace only.
	RuleTrim Rule = "TRIM"
	// RuleCollapseUpper trims, collapses internal whitespace runs to single
	// spaces and uppercases. Used for free-text name columns.
	RuleCollapseUpper Rule = "COLLAPSE_UPPER"
	// RuleStripUpper removes all whitespace and uppercases. Used for
	// identifier columns where exports pad or split values inconsistently.
	RuleStripUpper Rule = "STRIP_UPPER"
)

type Column struct {
	Name     string
	Required bool
	Rule     Rule
}

// SourceKind distinguishes the physical formats a dataset export arrives in.
type SourceKind string

const (
	SourceDelimited SourceKind = "DELIMITED"
	SourceWorkbook  SourceKind = "WORKBOOK"
)

// Source declares how raw upload bytes for a dataset are to be read.
type Source struct {
	Kind SourceKind

	// Delimiter is the field separator for delimited sources.
	Delimiter rune

	// HeaderRow and DataRow are 0-based row offsets for workbook sources.
	// Exports produced by spreadsheet tools often place a title above the
	// header, and sometimes an empty row between header and data, so both
	// offsets are declared rather than assumed.
	HeaderRow int
	DataRow   int
}

// Dataset describes one named, independently-schemed table.
type Dataset struct {
	Name    string
	Columns []Column
	Source  Source

	// Claimable datasets carry the used/times_used tracking columns and can
	// be dispensed through the claim engine.
	Claimable bool

	// MultiValueSeparator is the in-band separator used by some exports to
	// pack several logical records into one physical row. Empty disables
	// expansion.
	MultiValueSeparator string
}

// ColumnNames returns the declared column names in order.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// Column returns the descriptor for the named column.
func (d *Dataset) Column(name string) (Column, bool) {
	for _, c := range d.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Registry maps dataset names to their descriptors.
type Registry struct {
	datasets map[string]*Dataset
	order    []string
}

func NewRegistry(datasets ...*Dataset) *Registry {
	r := &Registry{datasets: make(map[string]*Dataset, len(datasets))}
	for _, d := range datasets {
		r.datasets[d.Name] = d
		r.order = append(r.order, d.Name)
	}
	return r
}

func (r *Registry) Get(name string) (*Dataset, error) {
	d, ok := r.datasets[name]
	if !ok {
		return nil, &depoterrors.ErrNotFound{Type: "dataset", Value: name}
	}
	return d, nil
}

// All returns every registered dataset in registration order.
func (r *Registry) All() []*Dataset {
	result := make([]*Dataset, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.datasets[name])
	}
	return result
}
