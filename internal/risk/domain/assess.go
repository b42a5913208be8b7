package domain

import (
	"time"

	casedomain "github.com/smallbiznis/recovery/internal/cases/domain"
)

type Assessment struct {
	Zone      casedomain.Zone
	Action    casedomain.Action
	Escalated bool
}

// Assess classifies c at now and derives the recommended action.
func Assess(c *casedomain.Case, policy Policy, now time.Time) Assessment {
	zone := Classify(c.DueDate, c.SLADate, c.PredictedPaymentDate, now)
	return Assessment{
		Zone:      zone,
		Action:    policy.DeriveAction(zone, c.EffectiveDelay()),
		Escalated: c.SLADate != nil && !now.Before(*c.SLADate),
	}
}

// Changed reports whether applying a would alter c.
func (a Assessment) Changed(c *casedomain.Case) bool {
	return c.Zone != a.Zone || c.Action != a.Action || c.Escalated != a.Escalated
}

func (a Assessment) ApplyTo(c *casedomain.Case) {
	c.Zone = a.Zone
	c.Action = a.Action
	c.Escalated = a.Escalated
}
