package version

import "errors"

// Error kinds from spec §7, scoped to the version store.
var (
	// ErrNotFound names the not-found error kind. The Get* accessors do not
	// return it: they report a miss as a nil record with a nil error.
	ErrNotFound = errors.New("version: not found")
	// ErrPersistence wraps any backing-store or blob-store failure during Save
	// or DeleteVersion. Per spec §4.5, these failures must never be swallowed.
	ErrPersistence = errors.New("version: persistence error")
	// ErrVersionConflict is returned when an explicit SaveOptions.Version collides
	// with a version already present in the chain.
	ErrVersionConflict = errors.New("version: version conflict")
	// ErrUnknownResourceType is returned when a ResourceKey names a type the
	// store has no column/cache-namespace mapping for.
	ErrUnknownResourceType = errors.New("version: unknown resource type")
)
