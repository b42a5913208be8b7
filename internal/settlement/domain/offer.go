package domain

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	casedomain "github.com/smallbiznis/recovery/internal/cases/domain"
)

type OfferKind string

const (
	OfferReject   OfferKind = "REJECT"
	OfferEMI      OfferKind = "EMI"
	OfferDiscount OfferKind = "DISCOUNT"
)

const emiMonths = 3

var (
	liquidityThreshold = decimal.RequireFromString("0.8")
	revenueThreshold   = decimal.RequireFromString("0.5")
	discountRate       = decimal.RequireFromString("0.85")
)

// Offer is a settlement proposal computed from the debtor's financials.
type Offer struct {
	Kind   OfferKind       `json:"kind"`
	Title  string          `json:"title"`
	Detail string          `json:"detail"`
	Debt   decimal.Decimal `json:"debt"`

	Months           int             `json:"months,omitempty"`
	MonthlyAmount    decimal.Decimal `json:"monthly_amount"`
	SettlementAmount decimal.Decimal `json:"settlement_amount"`
	WaivedAmount     decimal.Decimal `json:"waived_amount"`
}

// Acceptable reports whether the debtor can agree to the offer; a REJECT
// offer only asks for full payment.
func (o Offer) Acceptable() bool {
	return o.Kind == OfferEMI || o.Kind == OfferDiscount
}

// Evaluate applies the relief rules in order: enough cash for 80% of the
// debt gets no relief, strong revenue gets a 3 month EMI, anything else a
// 15% one-time discount.
func Evaluate(debt, cash, revenue decimal.Decimal) (Offer, error) {
	if !debt.IsPositive() {
		return Offer{}, casedomain.ErrInvalidAmount
	}
	if cash.IsNegative() || revenue.IsNegative() {
		return Offer{}, ErrInvalidFinancials
	}

	if cash.GreaterThan(debt.Mul(liquidityThreshold)) {
		return Offer{
			Kind:   OfferReject,
			Title:  "Full payment required",
			Detail: fmt.Sprintf("Pay %s in full.", debt.StringFixed(2)),
			Debt:   debt,
		}, nil
	}

	if revenue.GreaterThan(debt.Mul(revenueThreshold)) {
		monthly := debt.Div(decimal.NewFromInt(emiMonths)).Round(2)
		return Offer{
			Kind:          OfferEMI,
			Title:         "3-Month EMI Plan",
			Detail:        fmt.Sprintf("Pay %s / month for %d months.", monthly.StringFixed(2), emiMonths),
			Debt:          debt,
			Months:        emiMonths,
			MonthlyAmount: monthly,
		}, nil
	}

	settlement := debt.Mul(discountRate).Round(2)
	waived := debt.Sub(settlement)
	return Offer{
		Kind:             OfferDiscount,
		Title:            "15% Discount Settlement",
		Detail:           fmt.Sprintf("Pay %s today and %s is waived.", settlement.StringFixed(2), waived.StringFixed(2)),
		Debt:             debt,
		SettlementAmount: settlement,
		WaivedAmount:     waived,
	}, nil
}

// PendingOffer decodes the offer stored on a case. A missing column scans
// as empty or JSON null depending on the driver.
func PendingOffer(c *casedomain.Case) (*Offer, error) {
	raw := string(c.NegotiationOffer)
	if raw == "" || raw == "null" {
		return nil, nil
	}
	var offer Offer
	if err := json.Unmarshal(c.NegotiationOffer, &offer); err != nil {
		return nil, fmt.Errorf("decode negotiation offer: %w", err)
	}
	return &offer, nil
}

func EncodeOffer(o Offer) ([]byte, error) {
	return json.Marshal(o)
}
