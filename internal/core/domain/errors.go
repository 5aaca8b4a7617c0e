package domain

import "errors"

var (
	// ErrInvalidInput marks malformed arguments: empty point sets, scale
	// factors outside (0, 1], out-of-range coordinates.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownFeature marks an operation on an ID that is not live. It is
	// never fatal.
	ErrUnknownFeature = errors.New("unknown feature")

	// ErrBackendInit marks a rendering backend that failed to initialise.
	// It is only reported through the ready listener.
	ErrBackendInit = errors.New("backend init failure")

	// ErrAlreadyAttached is returned by a second Attach on one controller.
	ErrAlreadyAttached = errors.New("map already attached")

	// ErrReleased is returned by mutations on a released map controller.
	ErrReleased = errors.New("map released")
)
