package store

import "errors"

var (
	// ErrSlotTaken means a non-cancelled appointment already holds the
	// (provider, date, time) key. Callers should re-fetch availability and
	// pick a different slot; the store never retries.
	ErrSlotTaken = errors.New("slot already booked")

	ErrNotFound = errors.New("not found")

	// ErrUnavailable wraps store connectivity failures. Unlike the errors
	// above it is transient and safe for the caller to retry.
	ErrUnavailable = errors.New("store unavailable")
)
