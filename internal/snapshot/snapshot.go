// Package snapshot defines the snapshot identifier: a timestamp encoded as a
// fixed-width string whose lexicographic order is its chronological order.
package snapshot

import (
	"regexp"
	"slices"
	"time"

	"github.com/cockroachdb/errors"

	hlberrors "hlb/internal/errors"
)

const (
	// Layout is the time layout of an identifier (YYYY-MM-DD-HHMMSS).
	Layout = "2006-01-02-150405"

	// StagingName is the reserved name of an in-progress snapshot. It never
	// matches the identifier pattern.
	StagingName = "in-progress"

	// MarkerName is the sentinel file proving a destination is a backup location.
	MarkerName = "backup.marker"
)

var pattern = regexp.MustCompile(`^[0-9]{4}-[0-9]{2}-[0-9]{2}-[0-9]{6}$`)

// ID identifies one snapshot. Identifiers encode UTC wall-clock time so that
// every name maps to exactly one instant. The zero value is not a valid
// identifier.
type ID struct {
	t    time.Time
	name string
}

// New mints an identifier for t, truncated to the second.
func New(t time.Time) ID {
	t = t.UTC().Truncate(time.Second)
	return ID{t: t, name: t.Format(Layout)}
}

// Parse decodes s. It fails with ErrInvalidIdentifier unless s matches the
// identifier pattern and denotes a valid calendar date-time.
func Parse(s string) (ID, error) {
	if !pattern.MatchString(s) {
		return ID{}, errors.Mark(errors.Newf("%q is not a snapshot identifier", s), hlberrors.ErrInvalidIdentifier)
	}

	t, err := time.ParseInLocation(Layout, s, time.UTC)
	if err != nil {
		return ID{}, errors.Mark(errors.Wrapf(err, "%q is not a valid date-time", s), hlberrors.ErrInvalidIdentifier)
	}

	return ID{t: t, name: s}, nil
}

// Valid reports whether s is a snapshot identifier.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Format renders now as an identifier string.
func Format(now time.Time) string {
	return now.UTC().Format(Layout)
}

// String returns the name the identifier was parsed from or minted as.
func (id ID) String() string {
	return id.name
}

// Time returns the instant the identifier denotes.
func (id ID) Time() time.Time {
	return id.t
}

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool {
	return id.t.IsZero()
}

// Compare returns -1, 0 or +1 depending on whether id is before, equal to or
// after other.
func (id ID) Compare(other ID) int {
	return id.t.Compare(other.t)
}

// Before reports whether id is chronologically before other.
func (id ID) Before(other ID) bool {
	return id.t.Before(other.t)
}

// Sort orders ids ascending by time.
func Sort(ids []ID) {
	slices.SortFunc(ids, ID.Compare)
}
