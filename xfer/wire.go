package xfer

import "fmt"

// Control bytes shared by the XMODEM family of protocols.
const (
	// SOH starts a 128-byte block.
	SOH byte = 0x01

	// STX starts a 1024-byte block (YMODEM).
	STX byte = 0x02

	// EOT signals end of file.
	EOT byte = 0x04

	// ACK confirms correct reception of a block.
	ACK byte = 0x06

	// NAK rejects a block, or requests checksum mode at startup.
	NAK byte = 0x15

	// CAN cancels an in-flight transfer from either side.
	CAN byte = 0x18

	// SUB pads the final block out to its full size.
	SUB byte = 0x1A

	// CRCReq requests CRC-16 mode at startup ('C').
	CRCReq byte = 0x43
)

// Block payload sizes.
const (
	ShortBlockSize = 128  // SOH blocks
	LongBlockSize  = 1024 // STX blocks
)

// blockHeaderSize is marker + sequence + complemented sequence.
const blockHeaderSize = 3

// CheckMode selects the per-block integrity check.
type CheckMode int

const (
	// Checksum8 is the original XMODEM 8-bit arithmetic checksum.
	Checksum8 CheckMode = iota
	// CRC16 is CRC-16/XMODEM (CCITT polynomial 0x1021, zero initial value).
	CRC16
)

// String returns the conventional mode label.
func (m CheckMode) String() string {
	switch m {
	case Checksum8:
		return "checksum"
	case CRC16:
		return "crc16"
	default:
		return "unknown"
	}
}

// Size returns the on-wire size of the check field in bytes.
func (m CheckMode) Size() int {
	if m == CRC16 {
		return 2
	}
	return 1
}

// pollByte returns the negotiation byte a receiver repeats at startup to
// announce this check mode to the sender.
func (m CheckMode) pollByte() byte {
	if m == CRC16 {
		return CRCReq
	}
	return NAK
}

// checksum8 computes the 8-bit arithmetic checksum over data.
func checksum8(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

// crc16 computes CRC-16/XMODEM over data.
func crc16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// packBlock frames one block: marker, seq, 255-seq, data, check field.
// len(data) must already match the marker's block size.
func packBlock(marker, seq byte, data []byte, mode CheckMode) []byte {
	frame := make([]byte, 0, blockHeaderSize+len(data)+mode.Size())
	frame = append(frame, marker, seq, 0xFF-seq)
	frame = append(frame, data...)

	if mode == CRC16 {
		crc := crc16(data)
		frame = append(frame, byte(crc>>8), byte(crc))
	} else {
		frame = append(frame, checksum8(data))
	}

	return frame
}

// verifyBlock checks the sequence pair and the check field of a block whose
// marker has already been consumed. body is seq, 255-seq, data, check.
func verifyBlock(body []byte, mode CheckMode) (seq byte, data []byte, err error) {
	if len(body) < 2+mode.Size() {
		return 0, nil, fmt.Errorf("xfer: short block (%d bytes)", len(body))
	}

	seq = body[0]
	if body[1] != 0xFF-seq {
		return 0, nil, fmt.Errorf("xfer: sequence complement mismatch (%#02x/%#02x)", body[0], body[1])
	}

	data = body[2 : len(body)-mode.Size()]
	if mode == CRC16 {
		want := uint16(body[len(body)-2])<<8 | uint16(body[len(body)-1])
		if crc16(data) != want {
			return 0, nil, fmt.Errorf("%w: crc %#04x", ErrChecksumMismatch, want)
		}
	} else if checksum8(data) != body[len(body)-1] {
		return 0, nil, fmt.Errorf("%w: checksum %#02x", ErrChecksumMismatch, body[len(body)-1])
	}

	return seq, data, nil
}
