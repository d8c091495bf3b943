package catalog

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	names []string
	err   error
	dirs  []string
}

func (f *fakeLister) List(_ context.Context, dir string) ([]string, error) {
	f.dirs = append(f.dirs, dir)
	return f.names, f.err
}

func TestList(t *testing.T) {
	l := &fakeLister{names: []string{"2023-08-04-233001", "garbage", "in-progress", "2023-08-01-010000"}}

	ids, err := List(context.Background(), l, "/mnt/backup")
	require.NoError(t, err)

	assert.Equal(t, []string{"2023-08-01-010000", "2023-08-04-233001"}, Strings(ids))
	assert.Equal(t, []string{"/mnt/backup"}, l.dirs)
}

func TestListError(t *testing.T) {
	l := &fakeLister{err: errors.New("connection refused")}

	_, err := List(context.Background(), l, "/mnt/backup")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "listing /mnt/backup")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{
			name:  "empty",
			input: nil,
			want:  []string{},
		},
		{
			name:  "marker and staging only",
			input: []string{"backup.marker", "in-progress"},
			want:  []string{},
		},
		{
			name:  "unordered listing",
			input: []string{"2024-01-02-000000", "2023-12-31-235959", "2024-01-01-120000"},
			want:  []string{"2023-12-31-235959", "2024-01-01-120000", "2024-01-02-000000"},
		},
		{
			name:  "invalid calendar dates dropped",
			input: []string{"2023-02-30-000000", "2023-02-28-000000", ".hidden", "2023-02-28-000000.tmp"},
			want:  []string{"2023-02-28-000000"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Strings(Filter(tt.input)))
		})
	}
}

func TestLatestAndFind(t *testing.T) {
	ids := Filter([]string{"2023-08-04-233001", "2023-08-01-010000"})

	latest, ok := Latest(ids)
	require.True(t, ok)
	assert.Equal(t, "2023-08-04-233001", latest.String())

	_, ok = Latest(nil)
	assert.False(t, ok)

	id, idx, ok := Find(ids, "2023-08-01-010000")
	require.True(t, ok)
	assert.Equal(t, 0, idx)
	assert.Equal(t, "2023-08-01-010000", id.String())

	_, idx, ok = Find(ids, "2020-01-01-000000")
	assert.False(t, ok)
	assert.Equal(t, -1, idx)
}
