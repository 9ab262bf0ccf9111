package protocol

import (
	"encoding/binary"
	"errors"
)

// Frame layout on the wire:
//
//	[STX][command][len_hi][len_lo][payload...][crc_hi][crc_lo][ETX]
//
// Length and checksum are big-endian; the CRC covers payload bytes only.
// The format is fixed by deployed controller firmware and must not change.
const (
	STX byte = 0x02
	ETX byte = 0x03

	CmdPriceUpdate byte = 0x31
	CmdStatusQuery byte = 0x32
	CmdAck         byte = 0x33
	CmdError       byte = 0xFF

	// MinFrameSize is a complete frame with an empty payload.
	MinFrameSize = 7
	// MaxPayloadSize is the largest payload the 16-bit length field can carry.
	MaxPayloadSize = 0xFFFF
)

var (
	ErrFrameTooLarge    = errors.New("protocol: payload exceeds maximum frame size")
	ErrIncompleteFrame  = errors.New("protocol: incomplete frame")
	ErrMalformedFrame   = errors.New("protocol: malformed frame")
	ErrChecksumMismatch = errors.New("protocol: checksum mismatch")
)

// Frame is one decoded wire message.
type Frame struct {
	Command  byte
	Payload  []byte
	Checksum uint16
}

// Encode frames a command/payload pair for the wire.
func Encode(command byte, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, ErrFrameTooLarge
	}

	buf := make([]byte, 0, MinFrameSize+len(payload))
	buf = append(buf, STX, command)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(payload)))
	buf = append(buf, payload...)
	buf = binary.BigEndian.AppendUint16(buf, Checksum(payload))
	buf = append(buf, ETX)
	return buf, nil
}

// Decode parses and verifies a single frame.
func Decode(data []byte) (Frame, error) {
	if len(data) < MinFrameSize {
		return Frame{}, ErrIncompleteFrame
	}
	if data[0] != STX {
		return Frame{}, ErrMalformedFrame
	}

	length := int(binary.BigEndian.Uint16(data[2:4]))
	if len(data) < MinFrameSize+length {
		return Frame{}, ErrIncompleteFrame
	}
	if data[4+length+2] != ETX {
		return Frame{}, ErrMalformedFrame
	}

	payload := data[4 : 4+length]
	transmitted := binary.BigEndian.Uint16(data[4+length : 4+length+2])
	if transmitted != Checksum(payload) {
		return Frame{}, ErrChecksumMismatch
	}

	return Frame{
		Command:  data[1],
		Payload:  append([]byte(nil), payload...),
		Checksum: transmitted,
	}, nil
}

// Checksum computes CRC16-CCITT (poly 0x1021, init 0xFFFF, MSB-first)
// over the given bytes.
func Checksum(data []byte) uint16 {
	crc := uint16(0xFFFF)
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
