// Package xfer implements the file-transfer engine: the XMODEM, YMODEM and
// ASCII protocol state machines, in both directions, over a raw byte stream.
//
// The engine operates on a stream it owns exclusively for the duration of one
// job; the session supervisor hands the link over before calling Run and takes
// it back afterwards. Within a run the stream carries binary protocol traffic
// and no textual command interpretation happens; cancellation is out-of-band,
// either through the protocol CAN byte or through context cancellation.
//
// The counterpart is vintage, unmodifiable client software, so wire behavior
// follows the classic protocols exactly: 128-byte SOH blocks with an 8-bit
// checksum or CRC-16 for XMODEM, 1024-byte STX blocks with mandatory CRC-16
// and a filename/size metadata block for YMODEM, and an unframed byte copy
// for ASCII.
package xfer
