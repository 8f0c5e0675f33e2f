package growt

import "errors"

// Sentinel errors returned by growt operations.
//
// Callers should use [errors.Is] to check error types.
var (
	// ErrInvalidOption indicates a field of [Options] failed validation.
	// Wrapped with additional context; use errors.Is against this sentinel.
	ErrInvalidOption = errors.New("growt: invalid option")

	// ErrHandleLimitExceeded is returned by [Table.GetHandle] when the
	// sync exclusion strategy's bounded registry ([Options.HandleLimit]
	// handles, 256 by default) is full.
	ErrHandleLimitExceeded = errors.New("growt: handle limit exceeded")

	// ErrReservedKey is returned when a caller tries to insert one of the
	// three key values the slot machinery reserves for its own
	// bookkeeping: 0 (the empty sentinel), 1 (the transient claim
	// sentinel held while an insert is in flight), and the all-ones
	// value of K's 63-bit key lane (the tombstone sentinel).
	ErrReservedKey = errors.New("growt: key is reserved")

	// ErrClosed indicates a [Handle] was used after Close, or that
	// [Table.Close] was called a second time.
	ErrClosed = errors.New("growt: handle closed")
)
