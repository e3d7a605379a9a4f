package repository

import "strings"

// Op is a comparison operator for a column filter.
type Op string

const (
	OpEq  Op = "eq"
	OpNeq Op = "neq"
	OpLt  Op = "lt"
	OpLte Op = "lte"
	OpGte Op = "gte"
)

// Filter compares one column against a value.
type Filter struct {
	Field string
	Op    Op
	Value any
}

func Eq(field string, v any) Filter  { return Filter{Field: field, Op: OpEq, Value: v} }
func Neq(field string, v any) Filter { return Filter{Field: field, Op: OpNeq, Value: v} }
func Lt(field string, v any) Filter  { return Filter{Field: field, Op: OpLt, Value: v} }
func Lte(field string, v any) Filter { return Filter{Field: field, Op: OpLte, Value: v} }
func Gte(field string, v any) Filter { return Filter{Field: field, Op: OpGte, Value: v} }

// Search is a case-insensitive substring match over any of Columns.
type Search struct {
	Columns []string
	Term    string
}

// ListOptions narrows and orders a List or Count. OrderBy defaults to
// created_at, descending unless Ascending is set.
type ListOptions struct {
	Filters   []Filter
	Search    *Search
	OrderBy   string
	Ascending bool
}

// Where returns options with the given filters and default ordering.
func Where(filters ...Filter) ListOptions {
	return ListOptions{Filters: filters}
}

// Matching returns options searching term across columns.
func Matching(term string, columns ...string) ListOptions {
	return ListOptions{Search: &Search{Columns: columns, Term: term}}
}

// OrderedBy returns a copy of o ordered by column.
func (o ListOptions) OrderedBy(column string, ascending bool) ListOptions {
	o.OrderBy = column
	o.Ascending = ascending
	return o
}

// Order returns the effective order column.
func (o ListOptions) Order() string {
	if o.OrderBy == "" {
		return "created_at"
	}
	return o.OrderBy
}

// IsZero reports whether o lists the full collection in default order.
func (o ListOptions) IsZero() bool {
	return len(o.Filters) == 0 && o.Search == nil && o.Order() == "created_at" && !o.Ascending
}

// SearchPattern escapes LIKE wildcards in term and wraps it for a substring match.
func SearchPattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}
