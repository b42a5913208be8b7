package domain

import (
	"errors"
	"fmt"
	"math"
	"sort"

	casedomain "github.com/smallbiznis/recovery/internal/cases/domain"
)

var (
	ErrInvalidPolicy     = errors.New("invalid_policy")
	ErrInvalidPrediction = errors.New("invalid_prediction")
)

// Rule recommends Action for Zone once the predicted delay reaches
// MinDelayDays.
type Rule struct {
	Zone         casedomain.Zone   `mapstructure:"zone" json:"zone"`
	MinDelayDays float64           `mapstructure:"min_delay_days" json:"min_delay_days"`
	Action       casedomain.Action `mapstructure:"action" json:"action"`
}

// GraceRule grants Days of grace past the due date to customers whose late
// payment ratio is at least MinLateRatio.
type GraceRule struct {
	MinLateRatio float64 `mapstructure:"min_late_ratio" json:"min_late_ratio"`
	Days         int     `mapstructure:"days" json:"days"`
}

type Policy struct {
	Rules            []Rule      `mapstructure:"rules" json:"rules"`
	Grace            []GraceRule `mapstructure:"grace" json:"grace"`
	DefaultGraceDays int         `mapstructure:"default_grace_days" json:"default_grace_days"`
}

// PolicySource hands out the policy in force; a Policy is its own source.
type PolicySource interface {
	Current() Policy
}

func (p Policy) Current() Policy { return p }

func DefaultPolicy() Policy {
	return Policy{
		Rules: []Rule{
			{Zone: casedomain.ZoneGreen, MinDelayDays: 0, Action: casedomain.ActionNone},
			{Zone: casedomain.ZoneYellow, MinDelayDays: 0, Action: casedomain.ActionMail},
			{Zone: casedomain.ZoneOrange, MinDelayDays: 0, Action: casedomain.ActionCall},
			{Zone: casedomain.ZoneRed, MinDelayDays: 0, Action: casedomain.ActionCall},
			{Zone: casedomain.ZoneRed, MinDelayDays: 7, Action: casedomain.ActionEscalate},
			{Zone: casedomain.ZoneUnknown, MinDelayDays: 0, Action: casedomain.ActionNone},
		},
		Grace: []GraceRule{
			{MinLateRatio: 0.8, Days: 3},
			{MinLateRatio: 0.5, Days: 5},
			{MinLateRatio: 0.2, Days: 10},
		},
		DefaultGraceDays: 15,
	}
}

// DeriveAction picks, among the rules for zone, the one with the greatest
// MinDelayDays not above delay. A delay below every threshold (an early
// payer) falls back to the zone's lowest rule; a zone without rules gets
// NO_ACTION.
func (p Policy) DeriveAction(zone casedomain.Zone, delay float64) casedomain.Action {
	if math.IsNaN(delay) {
		delay = 0
	}
	var matched, lowest *Rule
	for i := range p.Rules {
		rule := &p.Rules[i]
		if rule.Zone != zone {
			continue
		}
		if lowest == nil || rule.MinDelayDays < lowest.MinDelayDays {
			lowest = rule
		}
		if rule.MinDelayDays <= delay && (matched == nil || rule.MinDelayDays >= matched.MinDelayDays) {
			matched = rule
		}
	}
	switch {
	case matched != nil:
		return matched.Action
	case lowest != nil:
		return lowest.Action
	default:
		return casedomain.ActionNone
	}
}

// GraceDays returns the SLA grace window for a late payment ratio.
func (p Policy) GraceDays(lateRatio float64) int {
	if math.IsNaN(lateRatio) {
		return p.DefaultGraceDays
	}
	rules := append([]GraceRule(nil), p.Grace...)
	sort.Slice(rules, func(i, j int) bool {
		return rules[i].MinLateRatio > rules[j].MinLateRatio
	})
	for _, rule := range rules {
		if lateRatio >= rule.MinLateRatio {
			return rule.Days
		}
	}
	return p.DefaultGraceDays
}

func (p Policy) Validate() error {
	if len(p.Rules) == 0 {
		return fmt.Errorf("%w: rules cannot be empty", ErrInvalidPolicy)
	}
	for i, rule := range p.Rules {
		if !rule.Zone.Valid() {
			return fmt.Errorf("%w: rule %d has zone %q", ErrInvalidPolicy, i, rule.Zone)
		}
		if !rule.Action.Valid() || rule.Action == casedomain.ActionResolved {
			return fmt.Errorf("%w: rule %d has action %q", ErrInvalidPolicy, i, rule.Action)
		}
	}
	for i, rule := range p.Grace {
		if rule.Days < 0 || rule.MinLateRatio < 0 || rule.MinLateRatio > 1 {
			return fmt.Errorf("%w: grace rule %d out of range", ErrInvalidPolicy, i)
		}
	}
	if p.DefaultGraceDays < 0 {
		return fmt.Errorf("%w: default_grace_days must be >= 0", ErrInvalidPolicy)
	}
	return nil
}
