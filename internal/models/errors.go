package models

import "errors"

var (
	// ErrEventNotFound is returned when an event id or slug does not
	// resolve to a catalog entry.
	ErrEventNotFound = errors.New("event not found")

	// ErrInvalidInput marks caller mistakes (blank ids, blank keys)
	// rejected before any provider call is made.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotConfigured marks a missing bucket, table or collection
	// identifier. Fatal, never retried.
	ErrNotConfigured = errors.New("not configured")

	// ErrSelfieNotFound is returned when a user has no stored selfie.
	ErrSelfieNotFound = errors.New("selfie not found")

	// ErrProvider marks failures of the recognition provider, both
	// transport errors and non-2xx responses.
	ErrProvider = errors.New("recognition provider failure")
)
