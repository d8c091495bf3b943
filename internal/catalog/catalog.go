// Package catalog lists the snapshots stored at a destination.
package catalog

import (
	"context"

	"github.com/cockroachdb/errors"

	"hlb/internal/snapshot"
)

// Lister lists the entry names of a directory. Order is not guaranteed.
type Lister interface {
	List(ctx context.Context, dir string) ([]string, error)
}

// List queries dir and returns its snapshots ascending by time. The catalog
// is rebuilt on every call.
func List(ctx context.Context, l Lister, dir string) ([]snapshot.ID, error) {
	names, err := l.List(ctx, dir)
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", dir)
	}
	return Filter(names), nil
}

// Filter keeps the names that are snapshot identifiers and sorts them.
// Everything else, the staging entry and the marker included, is dropped.
func Filter(names []string) []snapshot.ID {
	ids := make([]snapshot.ID, 0, len(names))
	for _, name := range names {
		id, err := snapshot.Parse(name)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	snapshot.Sort(ids)
	return ids
}

// Latest returns the most recent snapshot of an ascending catalog.
func Latest(ids []snapshot.ID) (snapshot.ID, bool) {
	if len(ids) == 0 {
		return snapshot.ID{}, false
	}
	return ids[len(ids)-1], true
}

// Find returns the snapshot named name and its position in ids.
func Find(ids []snapshot.ID, name string) (snapshot.ID, int, bool) {
	for i, id := range ids {
		if id.String() == name {
			return id, i, true
		}
	}
	return snapshot.ID{}, -1, false
}

// Strings renders ids as their identifier strings.
func Strings(ids []snapshot.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
