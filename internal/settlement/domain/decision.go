package domain

import (
	"fmt"
	"time"

	casedomain "github.com/smallbiznis/recovery/internal/cases/domain"
)

const (
	OutcomeSuccess = "Success"
	OutcomeFailed  = "Failed"
)

// CanNegotiate checks that a case may receive a new offer.
func CanNegotiate(c *casedomain.Case) error {
	switch {
	case c.Status.Terminal():
		return casedomain.ErrCaseClosed
	case c.Status == casedomain.StatusPlanAgreed:
		return ErrPlanAlreadyAgreed
	case c.CustomerID == "" && c.CustomerName == "":
		return ErrMissingCustomer
	case !c.OutstandingAmount.IsPositive():
		return casedomain.ErrInvalidAmount
	}
	return nil
}

// StartNegotiation assigns an agent on first contact, stores the offer and
// moves the case into NEGOTIATION_ACTIVE. It returns the history entry to
// append.
func StartNegotiation(c *casedomain.Case, offer Offer, roster Roster, now time.Time) (casedomain.HistoryEntry, error) {
	encoded, err := EncodeOffer(offer)
	if err != nil {
		return casedomain.HistoryEntry{}, err
	}
	if c.AssignedAgentID == "" {
		agent := roster.Assign(c.ID)
		c.AssignedAgentID = agent.ID
		c.AssignedAgentName = agent.Name
	}
	c.Status = casedomain.StatusNegotiationActive
	c.NegotiationOffer = encoded
	c.UpdatedAt = now

	note := fmt.Sprintf("%s offered by %s. %s", offer.Title, c.AssignedAgentName, offer.Detail)
	return casedomain.NewHistoryEntry(c, casedomain.HistoryNegotiation, "Offer "+string(offer.Kind), note, now), nil
}

// ApplyDecision records the debtor's answer to the pending offer. An
// accepted plan neutralizes the risk; a refusal sends the case to a
// collector.
func ApplyDecision(c *casedomain.Case, accepted bool, now time.Time) (casedomain.HistoryEntry, error) {
	switch {
	case c.Status.Terminal():
		return casedomain.HistoryEntry{}, casedomain.ErrCaseClosed
	case c.Status == casedomain.StatusPlanAgreed:
		return casedomain.HistoryEntry{}, ErrPlanAlreadyAgreed
	case c.Status != casedomain.StatusNegotiationActive:
		return casedomain.HistoryEntry{}, ErrNoPendingOffer
	}

	offer, err := PendingOffer(c)
	if err != nil {
		return casedomain.HistoryEntry{}, err
	}
	if offer == nil {
		return casedomain.HistoryEntry{}, ErrNoPendingOffer
	}
	if accepted && !offer.Acceptable() {
		return casedomain.HistoryEntry{}, ErrOfferNotAcceptable
	}

	c.UpdatedAt = now
	if accepted {
		c.Status = casedomain.StatusPlanAgreed
		c.Zone = casedomain.ZoneGreen
		c.Action = casedomain.ActionNone
		c.Escalated = false
		note := fmt.Sprintf("Customer accepted %s. %s", offer.Title, offer.Detail)
		return casedomain.NewHistoryEntry(c, casedomain.HistoryNegotiation, OutcomeSuccess, note, now), nil
	}

	c.Status = casedomain.StatusNegotiationFailed
	c.Zone = casedomain.ZoneRed
	c.Action = casedomain.ActionCall
	note := fmt.Sprintf("Customer rejected %s. Manual intervention required.", offer.Title)
	return casedomain.NewHistoryEntry(c, casedomain.HistoryNegotiation, OutcomeFailed, note, now), nil
}
