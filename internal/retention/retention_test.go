package retention

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hlb/internal/snapshot"
)

var idComparer = cmp.Comparer(func(a, b snapshot.ID) bool { return a.Compare(b) == 0 })

func ids(times ...time.Time) []snapshot.ID {
	out := make([]snapshot.ID, 0, len(times))
	for _, t := range times {
		out = append(out, snapshot.New(t))
	}
	snapshot.Sort(out)
	return out
}

func ago(now time.Time, d time.Duration) time.Time {
	return now.Add(-d)
}

const day = 24 * time.Hour

func TestDecideRecentAndLoneOldSnapshotsSurvive(t *testing.T) {
	now := time.Date(2024, 6, 20, 12, 0, 0, 0, time.UTC)
	catalog := ids(
		ago(now, 40*day),
		ago(now, 10*time.Minute),
		ago(now, 5*time.Minute),
	)

	decisions := Decide(catalog, DefaultPolicy(), now)

	want := []Decision{
		{ID: catalog[0]},
		{ID: catalog[1]},
		{ID: catalog[2]},
	}
	if diff := cmp.Diff(want, decisions, idComparer); diff != "" {
		t.Errorf("Decide() mismatch (-want +got):\n%s", diff)
	}
}

func TestDecideSameWeekPair(t *testing.T) {
	now := time.Date(2024, 6, 20, 12, 0, 0, 0, time.UTC)
	older := time.Date(2024, 3, 11, 10, 0, 0, 0, time.UTC) // Monday, ISO week 11
	newer := time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC) // Tuesday, ISO week 11

	catalog := ids(older, newer, now)
	decisions := Decide(catalog, DefaultPolicy(), now)

	require.Len(t, decisions, 3)
	assert.True(t, decisions[0].Prune)
	assert.Equal(t, TierDaily, decisions[0].Tier)
	assert.Equal(t, "week", decisions[0].Tier.Bucket())
	assert.Contains(t, decisions[0].Reason(), "same week")
	assert.False(t, decisions[1].Prune)
	assert.False(t, decisions[2].Prune)
}

func TestDecidePairAloneKeepsNewest(t *testing.T) {
	now := time.Date(2024, 6, 20, 12, 0, 0, 0, time.UTC)
	catalog := ids(
		time.Date(2024, 3, 11, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC),
	)

	decisions := Decide(catalog, DefaultPolicy(), now)

	assert.Equal(t, []snapshot.ID{catalog[0]}, Pruned(decisions))
	assert.Equal(t, []snapshot.ID{catalog[1]}, Kept(decisions))
}

func TestDecideContinuesToCoarserTier(t *testing.T) {
	now := time.Date(2024, 6, 20, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		older    time.Time
		newer    time.Time
		wantTier Tier
	}{
		{
			name:     "same day beyond hourly window",
			older:    ago(now, 5*day),
			newer:    ago(now, 5*day).Add(time.Minute),
			wantTier: TierHourly,
		},
		{
			name:     "same month different week beyond weekly window",
			older:    time.Date(2024, 2, 5, 9, 0, 0, 0, time.UTC),
			newer:    time.Date(2024, 2, 20, 9, 0, 0, 0, time.UTC),
			wantTier: TierWeekly,
		},
		{
			name:     "same year different month beyond monthly window",
			older:    time.Date(2021, 3, 1, 9, 0, 0, 0, time.UTC),
			newer:    time.Date(2021, 9, 1, 9, 0, 0, 0, time.UTC),
			wantTier: TierMonthly,
		},
		{
			name:     "beyond yearly window",
			older:    time.Date(2010, 3, 1, 9, 0, 0, 0, time.UTC),
			newer:    time.Date(2013, 9, 1, 9, 0, 0, 0, time.UTC),
			wantTier: TierYearly,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := ids(tt.older, tt.newer, now)

			decisions := Decide(catalog, DefaultPolicy(), now)

			assert.True(t, decisions[0].Prune)
			assert.Equal(t, tt.wantTier, decisions[0].Tier)
			assert.False(t, decisions[2].Prune)
		})
	}
}

func TestDecideKeepsUniqueRepresentatives(t *testing.T) {
	now := time.Date(2024, 6, 20, 12, 0, 0, 0, time.UTC)
	// One snapshot per month, all within the monthly window.
	catalog := ids(
		time.Date(2023, 1, 15, 9, 0, 0, 0, time.UTC),
		time.Date(2023, 2, 15, 9, 0, 0, 0, time.UTC),
		time.Date(2023, 3, 15, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC),
	)

	assert.Empty(t, Pruned(Decide(catalog, DefaultPolicy(), now)))
}

func TestDecideSinglePassChain(t *testing.T) {
	now := time.Date(2024, 6, 20, 12, 0, 0, 0, time.UTC)
	base := ago(now, 5*day)
	catalog := ids(base, base.Add(time.Hour), base.Add(2*time.Hour), now)

	decisions := Decide(catalog, DefaultPolicy(), now)

	// Each of the first two is judged against its original neighbor.
	assert.Equal(t, []snapshot.ID{catalog[0], catalog[1]}, Pruned(decisions))
	assert.Equal(t, []snapshot.ID{catalog[2], catalog[3]}, Kept(decisions))
}

func TestDecideEmptyAndSingle(t *testing.T) {
	now := time.Now()

	assert.Empty(t, Decide(nil, DefaultPolicy(), now))

	single := ids(ago(now, 10000*day))
	decisions := Decide(single, DefaultPolicy(), now)
	require.Len(t, decisions, 1)
	assert.False(t, decisions[0].Prune)
}

func randomCatalog(r *rand.Rand, now time.Time, n int) []snapshot.ID {
	seen := make(map[string]bool)
	var out []snapshot.ID
	for len(out) < n {
		age := time.Duration(r.Int64N(int64(4000 * day)))
		id := snapshot.New(now.Add(-age))
		if seen[id.String()] {
			continue
		}
		seen[id.String()] = true
		out = append(out, id)
	}
	snapshot.Sort(out)
	return out
}

func TestDecideNeverPrunesNewest(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	now := time.Date(2024, 6, 20, 12, 0, 0, 0, time.UTC)
	policies := []Policy{
		DefaultPolicy(),
		{Hourly: 1, Daily: 2, Weekly: 7, Monthly: 30, Yearly: 365},
	}

	for i := 0; i < 200; i++ {
		catalog := randomCatalog(r, now, 1+r.IntN(60))
		for _, p := range policies {
			decisions := Decide(catalog, p, now)
			require.False(t, decisions[len(decisions)-1].Prune)
		}
	}
}

func TestDecideIsIdempotent(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	now := time.Date(2024, 6, 20, 12, 0, 0, 0, time.UTC)
	policies := []Policy{
		DefaultPolicy(),
		{Hourly: 1, Daily: 2, Weekly: 7, Monthly: 30, Yearly: 365},
		{Hourly: 3, Daily: 14, Weekly: 90, Monthly: 400, Yearly: 2000},
	}

	for i := 0; i < 200; i++ {
		catalog := randomCatalog(r, now, 1+r.IntN(80))
		for _, p := range policies {
			survivors := Kept(Decide(catalog, p, now))

			again := Decide(survivors, p, now)
			require.Empty(t, Pruned(again), "second pass pruned snapshots kept by the first")
		}
	}
}

func TestClassify(t *testing.T) {
	now := time.Date(2024, 6, 20, 12, 0, 0, 0, time.UTC)
	catalog := ids(
		ago(now, 4000*day),
		ago(now, 1000*day),
		ago(now, 200*day),
		ago(now, 45*day),
		ago(now, 10*day),
		ago(now, time.Hour),
		now,
	)

	got := Classify(catalog, DefaultPolicy(), now)

	want := []Tier{TierIdle, TierYearly, TierMonthly, TierWeekly, TierDaily, TierHourly, TierHourly}
	assert.Equal(t, want, got)
}

func TestClassifyNeverLosesGranularity(t *testing.T) {
	now := time.Date(2024, 6, 20, 12, 0, 0, 0, time.UTC)
	// Out of order input: a daily snapshot after an hourly one keeps hourly.
	catalog := []snapshot.ID{
		snapshot.New(ago(now, time.Hour)),
		snapshot.New(ago(now, 10*day)),
	}

	assert.Equal(t, []Tier{TierHourly, TierHourly}, Classify(catalog, DefaultPolicy(), now))
}

func TestTierString(t *testing.T) {
	assert.Equal(t, "idle", TierIdle.String())
	assert.Equal(t, "hourly", TierHourly.String())
	assert.Equal(t, "yearly", TierYearly.String())
	assert.Equal(t, "", TierYearly.Bucket())
	assert.Equal(t, "kept", Decision{}.Reason())
	assert.Equal(t, "older than the yearly window", Decision{Prune: true, Tier: TierYearly}.Reason())
}
