package models

import "errors"

var (
	// ErrInvariant marks a broken simulation invariant. Runs abort on it.
	ErrInvariant = errors.New("invariant violated")

	// ErrConfig marks configuration that cannot be simulated.
	ErrConfig = errors.New("invalid configuration")
)
