package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DocumentType discriminates the two document kinds that feed the summary.
type DocumentType string

const (
	DocumentInvoice    DocumentType = "Invoice"
	DocumentCreditNote DocumentType = "CreditNote"
)

// Contact is a resolved ledger record reference.
type Contact struct {
	ID   string `json:"contactId"`
	Name string `json:"name"`
}

// Document is a normalized open invoice or credit note as fetched from the
// ledger, before reduction. Balance is the type-appropriate outstanding
// amount (AmountDue for invoices, RemainingCredit for credit notes), zero
// when the upstream omits it.
type Document struct {
	Type        DocumentType
	Number      string
	ContactName string
	Date        time.Time
	DueDate     time.Time
	Total       decimal.Decimal
	Balance     decimal.Decimal
	Voided      bool
}

// DocumentRow is one formatted line of the embed panel. Monetary fields are
// fixed to two decimals, dates to their date-only portion.
type DocumentRow struct {
	ContactName string       `json:"contactName"`
	Date        string       `json:"date"`
	Type        DocumentType `json:"type"`
	Number      string       `json:"number"`
	DueDate     string       `json:"dueDate"`
	Total       string       `json:"total"`
	Balance     string       `json:"balance"`
}

// FinanceSummary is the aggregated view served to the embed. Immutable once
// stored in the cache.
//
// AccountBalance = sum of invoice balances minus sum of credit-note balances
// over non-voided documents. OverdueBalance sums only invoices whose due date
// is strictly before the as-of time and whose balance is positive; credit
// notes never contribute to overdue.
type FinanceSummary struct {
	AccountBalance string        `json:"accountBalance"`
	OverdueBalance string        `json:"overdueBalance"`
	Rows           []DocumentRow `json:"rows"`
	AsOf           time.Time     `json:"asOf"`
}

// AuthDecision is the full outcome of validating an embed request signature.
// Ephemeral, one per request; the expected signature is only ever exposed by
// the debug endpoint.
type AuthDecision struct {
	Valid     bool   `json:"valid"`
	Reason    string `json:"reason,omitempty"`
	Canonical string `json:"canonical"`
	Received  string `json:"received"`
	Expected  string `json:"expected"`
	AgentID   string `json:"agentId"`
	Area      string `json:"area"`
}
