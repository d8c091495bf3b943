package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestRetentionfIsConfiguration(t *testing.T) {
	err := Retentionf("daily (%d) must be greater than hourly (%d)", 1, 2)

	assert.True(t, errors.Is(err, ErrInvalidRetentionPolicy))
	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.Equal(t, "daily (1) must be greater than hourly (2)", err.Error())
}

func TestToExit(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   int
		suggestion string
	}{
		{
			name:     "configuration error",
			err:      errors.Wrap(Configf("targets[0].name is required"), "loading config"),
			wantCode: ExitUser,
		},
		{
			name:     "not found",
			err:      NotFoundf("snapshot %s not found", "2023-01-01-000000"),
			wantCode: ExitUser,
		},
		{
			name: "unverified destination with hint",
			err: errors.WithHint(
				errors.Mark(errors.New("marker missing"), ErrDestinationUnverified),
				"run: hlb mark",
			),
			wantCode:   ExitUser,
			suggestion: "run: hlb mark",
		},
		{
			name:     "transfer failure",
			err:      errors.Mark(errors.New("rsync exited with status 23"), ErrTransfer),
			wantCode: ExitSystem,
		},
		{
			name:     "interrupted",
			err:      fmt.Errorf("backup: %w", context.Canceled),
			wantCode: ExitInterrupt,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToExit(tt.err)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.suggestion, got.Suggestion)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestToExitKeepsExistingExitError(t *testing.T) {
	orig := &ExitError{Err: errors.New("boom"), Code: 7}

	assert.Same(t, orig, ToExit(errors.Wrap(orig, "outer")))
	assert.Nil(t, ToExit(nil))
}

func TestExitErrorNilErr(t *testing.T) {
	assert.Equal(t, "exit code 3", (&ExitError{Code: 3}).Error())
}
