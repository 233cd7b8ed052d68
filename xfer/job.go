package xfer

import (
	"fmt"
	"io"
)

// Protocol selects the transfer protocol variant.
type Protocol int

const (
	XModem Protocol = iota
	YModem
	ASCII
)

// String returns the protocol name.
func (p Protocol) String() string {
	switch p {
	case XModem:
		return "XMODEM"
	case YModem:
		return "YMODEM"
	case ASCII:
		return "ASCII"
	default:
		return "unknown"
	}
}

// Direction selects which way the payload moves relative to the hub.
type Direction int

const (
	Send Direction = iota
	Receive
)

// String returns the direction name.
func (d Direction) String() string {
	if d == Send {
		return "send"
	}
	return "receive"
}

// Job describes one transfer. At most one job runs per session at a time.
type Job struct {
	Protocol  Protocol
	Direction Direction

	// Check selects the integrity check. A receiver announces it during
	// negotiation; a sender follows whatever the receiver requests.
	// YMODEM always uses CRC16 regardless of this field.
	Check CheckMode

	// Name is the filename announced in the YMODEM metadata block and
	// used for logging. Optional for XMODEM and ASCII.
	Name string

	// Size is the payload size in bytes, carried in the YMODEM metadata
	// block so the receiver can trim final-block padding. Zero means
	// unknown.
	Size int64

	// Source supplies the payload for Send jobs.
	Source io.Reader

	// Sink stores the payload for Receive jobs.
	Sink io.Writer
}

func (j *Job) validate() error {
	switch j.Protocol {
	case XModem, YModem, ASCII:
	default:
		return fmt.Errorf("%w: unknown protocol %d", ErrInvalidJob, j.Protocol)
	}

	switch j.Direction {
	case Send:
		if j.Source == nil {
			return fmt.Errorf("%w: send job without source", ErrInvalidJob)
		}
	case Receive:
		if j.Sink == nil {
			return fmt.Errorf("%w: receive job without sink", ErrInvalidJob)
		}
	default:
		return fmt.Errorf("%w: unknown direction %d", ErrInvalidJob, j.Direction)
	}

	if j.Protocol == YModem && j.Direction == Send && j.Name == "" {
		return fmt.Errorf("%w: ymodem send requires a filename", ErrInvalidJob)
	}

	return nil
}

// checkMode returns the effective check mode for the job.
func (j *Job) checkMode() CheckMode {
	if j.Protocol == YModem {
		return CRC16
	}
	return j.Check
}

// Status classifies a finished transfer.
type Status int

const (
	// StatusCompleted means the payload moved in full.
	StatusCompleted Status = iota
	// StatusAborted means the protocol gave up; Err carries the reason.
	StatusAborted
	// StatusLinkLost means the underlying stream failed mid-transfer.
	StatusLinkLost
)

// String returns a short status label.
func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusAborted:
		return "aborted"
	case StatusLinkLost:
		return "link lost"
	default:
		return "unknown"
	}
}

// Result is the terminal outcome of one transfer job.
type Result struct {
	Status Status

	// Bytes is the number of payload bytes moved, excluding framing
	// and padding.
	Bytes int64

	// Filename is the name announced by the counterpart in a YMODEM
	// receive; empty otherwise.
	Filename string

	// Err carries the abort reason or link fault. Nil when Status is
	// StatusCompleted.
	Err error
}

func completed(bytes int64) Result {
	return Result{Status: StatusCompleted, Bytes: bytes}
}

func aborted(bytes int64, err error) Result {
	return Result{Status: StatusAborted, Bytes: bytes, Err: err}
}

func linkLost(bytes int64, err error) Result {
	return Result{Status: StatusLinkLost, Bytes: bytes, Err: err}
}
