package storage

import "errors"

// Sentinel errors for the storage package.
var (
	// ErrRunIDRequired is returned when a run write is attempted without an ID.
	ErrRunIDRequired = errors.New("run ID is required")

	// ErrRunNotFound is returned when no indexed run matches an ID.
	ErrRunNotFound = errors.New("run not found")

	// ErrAmbiguousRunID is returned when an ID prefix matches several runs.
	ErrAmbiguousRunID = errors.New("run ID prefix is ambiguous")

	// ErrInvalidArtifactName is returned for artifact names that are not plain
	// file names.
	ErrInvalidArtifactName = errors.New("invalid artifact name")
)
