package common

import (
	"errors"
	"fmt"
)

const (
	major = 0
	minor = 1
	patch = 0

	// Versions from which the storage can be opened without migration.
	prevMajor = 0
	prevMinor = 1
	prevPatch = 0

	Version = major*1_000_000 + minor*1_000 + patch

	PrevVersion = prevMajor*1_000_000 + prevMinor*1_000 + prevPatch
)

var (
	// ErrVersionMismatch is returned by CheckVersion when the stored data is
	// too old to be used.
	ErrVersionMismatch = errors.New("previous version mismatch")

	// ErrNewerVersion is returned by CheckVersion when the stored data was
	// written by a newer ledger.
	ErrNewerVersion = errors.New("storage is of a newer version")
)

// CheckVersion checks that the version the storage was written with can be
// served by the current code.
func CheckVersion(from int) error {
	if from < PrevVersion {
		return fmt.Errorf("%w: expected >=%d, got %d", ErrVersionMismatch, PrevVersion, from)
	}
	if from > Version {
		return fmt.Errorf("%w: %d > %d", ErrNewerVersion, from, Version)
	}
	return nil
}
