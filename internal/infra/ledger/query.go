package ledger

import (
	"net/url"
	"strings"
)

// Filter builds a where-clause for the ledger API's query syntax. String
// literals are single-quoted with embedded quotes doubled; all escaping
// lives here so callers never hand-build filter strings.
type Filter struct {
	clauses []string
}

// Where starts an empty filter.
func Where() *Filter {
	return &Filter{}
}

// Eq adds `field eq 'value'`.
func (f *Filter) Eq(field, value string) *Filter {
	f.clauses = append(f.clauses, field+" eq '"+escapeLiteral(value)+"'")
	return f
}

// NotEq adds `field ne 'value'`.
func (f *Filter) NotEq(field, value string) *Filter {
	f.clauses = append(f.clauses, field+" ne '"+escapeLiteral(value)+"'")
	return f
}

// EqGUID adds `field eq guid'value'`. GUIDs come from the upstream itself and
// carry no quote characters, but they go through the same escaping anyway.
func (f *Filter) EqGUID(field, value string) *Filter {
	f.clauses = append(f.clauses, field+" eq guid'"+escapeLiteral(value)+"'")
	return f
}

// String joins the clauses with AND, unencoded.
func (f *Filter) String() string {
	return strings.Join(f.clauses, " and ")
}

// Encode percent-encodes the whole clause for use as a query-parameter value.
func (f *Filter) Encode() string {
	return url.QueryEscape(f.String())
}

// escapeLiteral doubles embedded single quotes, the filter grammar's escape
// for a quote inside a quoted literal.
func escapeLiteral(v string) string {
	return strings.ReplaceAll(v, "'", "''")
}
