package retention

import (
	"time"

	hlberrors "hlb/internal/errors"
)

// Default windows, in days.
const (
	DefaultHourly  = 2
	DefaultDaily   = 30
	DefaultWeekly  = 60
	DefaultMonthly = 730
	DefaultYearly  = 3650
)

// Policy holds the five retention windows of a target, in days.
type Policy struct {
	Hourly  int `yaml:"hourly"`
	Daily   int `yaml:"daily"`
	Weekly  int `yaml:"weekly"`
	Monthly int `yaml:"monthly"`
	Yearly  int `yaml:"yearly"`
}

// DefaultPolicy returns the policy used when a target declares none.
func DefaultPolicy() Policy {
	return Policy{
		Hourly:  DefaultHourly,
		Daily:   DefaultDaily,
		Weekly:  DefaultWeekly,
		Monthly: DefaultMonthly,
		Yearly:  DefaultYearly,
	}
}

// WithDefaults fills unset windows from DefaultPolicy.
func (p Policy) WithDefaults() Policy {
	d := DefaultPolicy()
	if p.Hourly == 0 {
		p.Hourly = d.Hourly
	}
	if p.Daily == 0 {
		p.Daily = d.Daily
	}
	if p.Weekly == 0 {
		p.Weekly = d.Weekly
	}
	if p.Monthly == 0 {
		p.Monthly = d.Monthly
	}
	if p.Yearly == 0 {
		p.Yearly = d.Yearly
	}
	return p
}

var minimums = [...]int{
	TierHourly:  1,
	TierDaily:   1,
	TierWeekly:  7,
	TierMonthly: 30,
	TierYearly:  365,
}

// Days returns the window of tier in days. TierIdle has no window.
func (p Policy) Days(tier Tier) int {
	switch tier {
	case TierHourly:
		return p.Hourly
	case TierDaily:
		return p.Daily
	case TierWeekly:
		return p.Weekly
	case TierMonthly:
		return p.Monthly
	case TierYearly:
		return p.Yearly
	}
	return 0
}

// Window returns the window of tier as a duration.
func (p Policy) Window(tier Tier) time.Duration {
	return time.Duration(p.Days(tier)) * 24 * time.Hour
}

// Validate checks the per-window minimums and that windows strictly increase
// from hourly to yearly. The error names the violated rule.
func (p Policy) Validate() error {
	for _, tier := range Tiers {
		if d := p.Days(tier); d < minimums[tier] {
			return hlberrors.Retentionf("retention.%s must be at least %d days, got %d", tier, minimums[tier], d)
		}
	}

	for i := 1; i < len(Tiers); i++ {
		prev, cur := Tiers[i-1], Tiers[i]
		if p.Days(cur) <= p.Days(prev) {
			return hlberrors.Retentionf("retention.%s (%d) must be greater than retention.%s (%d)",
				cur, p.Days(cur), prev, p.Days(prev))
		}
	}

	return nil
}
