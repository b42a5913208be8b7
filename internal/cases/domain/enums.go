package domain

import (
	"fmt"
	"strings"
)

// Zone is the risk band a case sits in.
type Zone string

const (
	ZoneGreen   Zone = "GREEN"
	ZoneYellow  Zone = "YELLOW"
	ZoneOrange  Zone = "ORANGE"
	ZoneRed     Zone = "RED"
	ZoneUnknown Zone = "UNKNOWN"
)

var Zones = []Zone{ZoneGreen, ZoneYellow, ZoneOrange, ZoneRed, ZoneUnknown}

func (z Zone) Valid() bool {
	switch z {
	case ZoneGreen, ZoneYellow, ZoneOrange, ZoneRed, ZoneUnknown:
		return true
	}
	return false
}

func ParseZone(value string) (Zone, error) {
	z := Zone(strings.ToUpper(strings.TrimSpace(value)))
	if !z.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidZone, value)
	}
	return z, nil
}

// Action is the recommended next step for a collector.
type Action string

const (
	ActionNone     Action = "NO_ACTION"
	ActionMail     Action = "MAIL"
	ActionCall     Action = "CALL"
	ActionEscalate Action = "ESCALATE"
	ActionResolved Action = "RESOLVED"
)

func (a Action) Valid() bool {
	switch a {
	case ActionNone, ActionMail, ActionCall, ActionEscalate, ActionResolved:
		return true
	}
	return false
}

// RequiresContact reports whether a collector has to reach out.
func (a Action) RequiresContact() bool {
	switch a {
	case ActionMail, ActionCall, ActionEscalate:
		return true
	}
	return false
}

func ParseAction(value string) (Action, error) {
	a := Action(strings.ToUpper(strings.TrimSpace(value)))
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, value)
	}
	return a, nil
}

type Status string

const (
	StatusOpen              Status = "OPEN"
	StatusNegotiationActive Status = "NEGOTIATION_ACTIVE"
	StatusPlanAgreed        Status = "PLAN_AGREED"
	StatusNegotiationFailed Status = "NEGOTIATION_FAILED"
	StatusPaid              Status = "PAID"
	StatusClosed            Status = "CLOSED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusNegotiationActive, StatusPlanAgreed, StatusNegotiationFailed, StatusPaid, StatusClosed:
		return true
	}
	return false
}

// Terminal statuses never reopen.
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusClosed
}

// Reclassifiable statuses still follow the date-driven zone rules; the
// negotiation outcome pins zone and action for the others.
func (s Status) Reclassifiable() bool {
	return s == StatusOpen || s == StatusNegotiationActive
}

func ParseStatus(value string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(value)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, value)
	}
	return s, nil
}
