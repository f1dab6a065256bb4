package model

// Row is one logical record of an upload, after multi-value expansion.
// Values are indexed by the dataset's declared column order; a nil entry is a
// null cell.
type Row struct {
	// SourceRow is the 1-based row number in the original payload, counting
	// header rows, so that validation errors point at what the operator sees
	// in the export file.
	SourceRow int
	Values    []*string
}

// ValidationError describes a single data-quality problem found while
// validating an upload. It is reported to the caller verbatim and never
// persisted.
type ValidationError struct {
	Row     int
	Column  string
	Value   string
	Message string
}

// Record is one dispensed row of a dataset, as returned by the claim engine.
// The internal row identifier is deliberately absent.
type Record struct {
	Dataset   string
	Values    map[string]*string
	Used      bool
	TimesUsed int
}

// Value returns the named column value, or "" if the cell is null or the
// column does not exist.
func (r *Record) Value(column string) string {
	if v, ok := r.Values[column]; ok && v != nil {
		return *v
	}
	return ""
}

// IngestMode selects whether an upload is added to the existing rows of a
// dataset or replaces them wholesale.
type IngestMode string

const (
	IngestAppend  IngestMode = "APPEND"
	IngestReplace IngestMode = "REPLACE"
)
