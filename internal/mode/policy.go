// Package mode holds the calendar rule for the prize mode: Jackpot on the
// anchor weekday in the configured zone, Standard everywhere else. Pure
// functions of the instant, no I/O.
package mode

import (
	"time"

	"github.com/freakyfriday/relayer/internal/round"
)

// Policy maps an instant to the desired prize mode.
type Policy struct {
	zone       *time.Location
	jackpotDay time.Weekday
}

// NewPolicy returns the standard Friday-jackpot policy for the given zone.
func NewPolicy(zone *time.Location) *Policy {
	return &Policy{zone: zone, jackpotDay: time.Friday}
}

// NewPolicyForDay allows a different anchor weekday.
func NewPolicyForDay(zone *time.Location, day time.Weekday) *Policy {
	return &Policy{zone: zone, jackpotDay: day}
}

// DesiredMode interprets t in the policy's zone. The comparison is on the
// local calendar day, so the flip happens exactly at local midnight.
func (p *Policy) DesiredMode(t time.Time) round.PrizeMode {
	if t.In(p.zone).Weekday() == p.jackpotDay {
		return round.ModeJackpot
	}
	return round.ModeStandard
}
