package xfer

import "errors"

var (
	// ErrInvalidJob indicates a malformed job specification.
	ErrInvalidJob = errors.New("xfer: invalid job")

	// ErrStartupTimeout indicates no counterpart responded within the
	// startup window.
	ErrStartupTimeout = errors.New("xfer: no counterpart detected")

	// ErrBlockTimeout indicates the counterpart went silent mid-transfer.
	ErrBlockTimeout = errors.New("xfer: block timeout")

	// ErrChecksumMismatch indicates a block failed its check. It is
	// reported only when the retry ceiling is reached; individual
	// mismatches are NAKed and retried.
	ErrChecksumMismatch = errors.New("xfer: checksum mismatch")

	// ErrMaxRetries indicates the per-block retry ceiling was reached.
	ErrMaxRetries = errors.New("xfer: retry limit exceeded")

	// ErrCanceled indicates the transfer was canceled, either by the
	// counterpart's CAN byte or by context cancellation.
	ErrCanceled = errors.New("xfer: transfer canceled")
)
