package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	casedomain "github.com/smallbiznis/recovery/internal/cases/domain"
)

// Record is the typed view of a row. Nil fields were absent or empty in
// the row and must not overwrite stored values.
type Record struct {
	Key          string
	InvoiceID    string
	CustomerID   string
	CustomerName string
	Currency     string
	PaymentTerms string
	Amount       *decimal.Decimal
	DocumentDate *time.Time
	DueDate      *time.Time
	ClearedAt    *time.Time
	Open         *bool

	// Problems lists fields that were present but could not be decoded.
	Problems []string
}

var (
	customerIDFields   = []string{"cust_number", "customer_id", "customer_number"}
	customerNameFields = []string{"name_customer", "customer_name", "company_name"}
	amountFields       = []string{"total_open_amount", "amount", "invoice_amount"}
	dueFields          = []string{"due_in_date", "due_date"}
	documentFields     = []string{"document_create_date", "document_create_date_1", "invoice_date", "posting_date"}
	clearFields        = []string{"clear_date", "cleared_at"}
	currencyFields     = []string{"invoice_currency", "currency"}
	termsFields        = []string{"cust_payment_terms", "payment_terms"}
	openFields         = []string{"isopen", "is_open"}
)

func Decode(r Row) Record {
	rec := Record{
		Key:          r.NaturalKey(),
		InvoiceID:    strings.TrimSuffix(r.first("invoice_id"), ".0"),
		CustomerID:   strings.TrimSuffix(r.first(customerIDFields...), ".0"),
		CustomerName: r.first(customerNameFields...),
		Currency:     strings.ToUpper(r.first(currencyFields...)),
		PaymentTerms: r.first(termsFields...),
	}
	if rec.InvoiceID == "" {
		rec.InvoiceID = rec.Key
	}

	if v := r.first(amountFields...); v != "" {
		amount, err := decimal.NewFromString(strings.ReplaceAll(v, ",", ""))
		if err != nil || amount.IsNegative() {
			rec.problem("amount", v)
		} else {
			amount = amount.Round(2)
			rec.Amount = &amount
		}
	}
	rec.DueDate = rec.date("due_date", r.first(dueFields...))
	rec.DocumentDate = rec.date("document_date", r.first(documentFields...))
	rec.ClearedAt = rec.date("clear_date", r.first(clearFields...))

	if v := r.first(openFields...); v != "" {
		open, ok := ParseOpenFlag(v)
		if ok {
			rec.Open = &open
		} else {
			rec.problem("is_open", v)
		}
	}
	return rec
}

func (rec *Record) date(field, value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := casedomain.ParseDate(value)
	if err != nil {
		rec.problem(field, value)
		return nil
	}
	return &t
}

func (rec *Record) problem(field, value string) {
	rec.Problems = append(rec.Problems, fmt.Sprintf("%s=%q", field, value))
}

// ParseOpenFlag collapses the legacy open flag representations.
func ParseOpenFlag(value string) (open bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "1.0", "true", "t", "yes", "y", "open":
		return true, true
	case "0", "0.0", "false", "f", "no", "n", "closed":
		return false, true
	}
	return false, false
}

func (r Row) first(fields ...string) string {
	for _, f := range fields {
		if v := r[f]; v != "" {
			return v
		}
	}
	return ""
}
