package snapshot

import (
	"sort"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hlberrors "hlb/internal/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{
			name:  "valid identifier",
			input: "2023-08-04-233001",
			want:  time.Date(2023, 8, 4, 23, 30, 1, 0, time.UTC),
		},
		{
			name:  "leap day",
			input: "2024-02-29-000000",
			want:  time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		},
		{name: "staging name", input: StagingName, wantErr: true},
		{name: "marker name", input: MarkerName, wantErr: true},
		{name: "garbage", input: "garbage", wantErr: true},
		{name: "short seconds", input: "2023-08-04-23300", wantErr: true},
		{name: "trailing suffix", input: "2023-08-04-233001.old", wantErr: true},
		{name: "colon separators", input: "2023-08-04-23:30:01", wantErr: true},
		{name: "invalid day", input: "2023-02-30-000000", wantErr: true},
		{name: "invalid hour", input: "2023-02-01-250000", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, hlberrors.ErrInvalidIdentifier))
				assert.False(t, Valid(tt.input))
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got.Time()))
			assert.Equal(t, tt.input, got.String())
		})
	}
}

func TestNewTruncatesToSecond(t *testing.T) {
	now := time.Date(2023, 8, 4, 23, 30, 1, 987654321, time.UTC)

	id := New(now)

	assert.Equal(t, "2023-08-04-233001", id.String())
	assert.Equal(t, "2023-08-04-233001", Format(now))

	parsed, err := Parse(id.String())
	require.NoError(t, err)
	assert.Equal(t, 0, parsed.Compare(id))
}

func TestIdentifiersIgnoreLocalZone(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	t.Run("fall back", func(t *testing.T) {
		earlier := New(time.Date(2024, 11, 3, 1, 45, 0, 0, ny))
		later := New(earlier.Time().Add(30 * time.Minute).In(ny))

		assert.Equal(t, "2024-11-03-054500", earlier.String())
		assert.Equal(t, "2024-11-03-061500", later.String())
		assert.True(t, earlier.Before(later))
		assert.Less(t, earlier.String(), later.String())
	})

	t.Run("names round trip", func(t *testing.T) {
		for _, name := range []string{"2024-03-10-023000", "2024-03-31-023000", "2024-11-03-013000"} {
			id, err := Parse(name)
			require.NoError(t, err)
			assert.Equal(t, name, id.String())
			assert.Equal(t, name, Format(id.Time().In(ny)))
		}
	})

	t.Run("zone of the clock", func(t *testing.T) {
		instant := time.Date(2024, 6, 20, 12, 0, 0, 0, time.UTC)
		assert.Equal(t, New(instant).String(), New(instant.In(ny)).String())
		assert.Equal(t, "2024-06-20-120000", Format(instant.In(ny)))
	})
}

func TestOrderingMatchesStringOrder(t *testing.T) {
	names := []string{
		"2023-08-04-233001",
		"2021-12-31-235959",
		"2023-08-01-010000",
		"2023-08-04-233000",
		"2022-01-01-000000",
	}

	var ids []ID
	for _, n := range names {
		id, err := Parse(n)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	Sort(ids)
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	for i, id := range ids {
		assert.Equal(t, sorted[i], id.String())
	}
	assert.True(t, ids[0].Before(ids[1]))
	assert.False(t, ids[1].Before(ids[0]))
	assert.True(t, ID{}.IsZero())
}
