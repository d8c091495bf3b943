// Package retention classifies snapshots against a grandfather-father-son
// policy.
//
// Two computations share the same windows. Classify assigns every snapshot a
// display tier and never deletes anything. Decide computes the keep/prune
// decision: a snapshot older than a tier's window is pruned when the next
// newer snapshot falls in the same period bucket of that tier. Evaluation
// continues with the next coarser tier when the window is exceeded but the
// buckets differ, so a lone representative of a day can still be decimated
// against its week, month or year further back in time.
//
// Decide is a single batch over the catalog as listed: every decision looks
// at the original next-newer neighbor, never at the post-deletion state.
package retention

import (
	"fmt"
	"time"

	"hlb/internal/snapshot"
)

// Tier is a retention window.
type Tier int

const (
	TierIdle Tier = iota
	TierHourly
	TierDaily
	TierWeekly
	TierMonthly
	TierYearly
)

// Tiers lists the windows from the most to the least granular.
var Tiers = []Tier{TierHourly, TierDaily, TierWeekly, TierMonthly, TierYearly}

func (t Tier) String() string {
	switch t {
	case TierHourly:
		return "hourly"
	case TierDaily:
		return "daily"
	case TierWeekly:
		return "weekly"
	case TierMonthly:
		return "monthly"
	case TierYearly:
		return "yearly"
	}
	return "idle"
}

// granularity ranks tiers; hourly is the most granular, idle the least.
func (t Tier) granularity() int {
	if t == TierIdle {
		return 0
	}
	return int(TierYearly) + 1 - int(t)
}

// Bucket names the period a tier decimates to once its window is exceeded.
// The yearly tier has no bucket: anything older than it expires.
func (t Tier) Bucket() string {
	switch t {
	case TierHourly:
		return "day"
	case TierDaily:
		return "week"
	case TierWeekly:
		return "month"
	case TierMonthly:
		return "year"
	}
	return ""
}

// bucketKey returns the period key of instant t for tier. Keys are absolute
// periods, so equal keys always mean the same calendar day, ISO week, month
// or year.
func bucketKey(tier Tier, t time.Time) int {
	switch tier {
	case TierHourly:
		y, m, d := t.Date()
		return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
	case TierDaily:
		y, w := t.ISOWeek()
		return y*100 + w
	case TierWeekly:
		return t.Year()*12 + int(t.Month()) - 1
	case TierMonthly:
		return t.Year()
	}
	return 0
}

// Decision is the retention outcome for one snapshot.
type Decision struct {
	ID    snapshot.ID
	Prune bool
	// Tier is the window whose decimation pruned the snapshot. TierIdle when kept.
	Tier Tier
}

// Reason describes the decision for humans.
func (d Decision) Reason() string {
	if !d.Prune {
		return "kept"
	}
	if d.Tier == TierYearly {
		return "older than the yearly window"
	}
	return fmt.Sprintf("older than the %s window, a newer snapshot represents the same %s", d.Tier, d.Tier.Bucket())
}

// Classify returns the display tier of every snapshot in ids, which must be
// ascending. A snapshot gets the most granular tier whose cutoff it falls at
// or after; a tier never loses granularity relative to the previous snapshot.
func Classify(ids []snapshot.ID, p Policy, now time.Time) []Tier {
	cutoffs := make(map[Tier]time.Time, len(Tiers))
	for _, tier := range Tiers {
		cutoffs[tier] = now.Add(-p.Window(tier))
	}

	tiers := make([]Tier, len(ids))
	prev := TierIdle
	for i, id := range ids {
		cur := TierIdle
		for _, tier := range Tiers {
			if !id.Time().Before(cutoffs[tier]) {
				cur = tier
				break
			}
		}
		if cur.granularity() < prev.granularity() {
			cur = prev
		}
		tiers[i] = cur
		prev = cur
	}

	return tiers
}

// Decide returns the keep/prune decision of every snapshot in ids, which must
// be ascending. The last (most recent) snapshot is always kept.
func Decide(ids []snapshot.ID, p Policy, now time.Time) []Decision {
	decisions := make([]Decision, len(ids))
	for i, id := range ids {
		decisions[i] = Decision{ID: id}
		if i == len(ids)-1 {
			break
		}

		t := id.Time()
		next := ids[i+1].Time()
		for _, tier := range Tiers {
			if !t.Before(now.Add(-p.Window(tier))) {
				continue
			}
			if tier == TierYearly || bucketKey(tier, t) == bucketKey(tier, next) {
				decisions[i].Prune = true
				decisions[i].Tier = tier
				break
			}
		}
	}

	return decisions
}

// Pruned returns the identifiers marked for pruning, in input order.
func Pruned(decisions []Decision) []snapshot.ID {
	var ids []snapshot.ID
	for _, d := range decisions {
		if d.Prune {
			ids = append(ids, d.ID)
		}
	}
	return ids
}

// Kept returns the identifiers that survive, in input order.
func Kept(decisions []Decision) []snapshot.ID {
	var ids []snapshot.ID
	for _, d := range decisions {
		if !d.Prune {
			ids = append(ids, d.ID)
		}
	}
	return ids
}
