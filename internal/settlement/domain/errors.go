package domain

import "errors"

var (
	ErrMissingCustomer    = errors.New("missing_customer")
	ErrInvalidFinancials  = errors.New("invalid_financials")
	ErrOfferNotAcceptable = errors.New("offer_not_acceptable")
	ErrNoPendingOffer     = errors.New("no_pending_offer")
	ErrPlanAlreadyAgreed  = errors.New("plan_already_agreed")
	ErrInvalidRoster      = errors.New("invalid_agent_roster")
)
