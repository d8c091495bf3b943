// Package errors defines the error taxonomy of hlb.
//
// Errors are built with github.com/cockroachdb/errors and marked with one of
// the class sentinels, so callers test the class with errors.Is regardless of
// how many times the error was wrapped on its way up:
//
//	if errors.Is(err, hlberrors.ErrConfiguration) {
//	    // reported before any destination was touched
//	}
//
// Classes:
//
//   - ErrConfiguration: invalid or missing target, invalid retention policy.
//     ErrTargetNotFound, ErrNoTargets and ErrInvalidRetentionPolicy are
//     additionally marked with ErrConfiguration.
//   - ErrDestinationUnverified: the marker file is missing. Carries a hint.
//   - ErrTransfer: the mirroring transfer failed. The staging entry is kept.
//   - ErrNotFound: a requested snapshot or path does not exist.
//
// [ToExit] maps any error to an [ExitError] whose Suggestion collects the
// hints attached to the chain.
package errors
