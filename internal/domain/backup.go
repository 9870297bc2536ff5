package domain

import "strings"

// GlobalsName is the pseudo-database representing server-wide objects
// (roles, tablespaces). It is not a real database: dumping it runs a
// whole-server globals dump instead of a single-database dump, and the
// enumerator appends it after exclusion so it can never be filtered out.
const GlobalsName = "postgres_globals"

// TimestampLayout is the timestamp embedded in every backup filename.
// Fixed width and zero padded, so lexicographic order on filenames equals
// chronological order on the instants they encode.
const TimestampLayout = "2006-01-02_15h04m"

// Period is the retention bucket a run writes into. Exactly one period is
// active per run, selected by date.
type Period string

const (
	Daily   Period = "daily"
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
)

// Periods lists every bucket, in the order their directories are created.
func Periods() []Period {
	return []Period{Daily, Weekly, Monthly}
}

// DecodeName turns the escaped-space marker used in configuration lists
// back into a literal space, so the name can serve as a dump target and a
// filesystem path component.
func DecodeName(name string) string {
	return strings.ReplaceAll(name, "%", " ")
}
