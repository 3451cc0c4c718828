package ble

import (
	"encoding/binary"
	"errors"
)

// ErrEmptyPayload is returned when a status notification carries no bytes.
var ErrEmptyPayload = errors.New("ble: empty payload")

// StatusCode decodes a status notification. The firmware writes a single
// unsigned byte; trailing bytes are ignored.
func StatusCode(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, ErrEmptyPayload
	}
	return int(buf[0]), nil
}

// HeartRate decodes a heart rate notification. ok is false when the payload
// is empty or has a width the firmware never sends.
//
//	1 byte  uint8
//	2 bytes uint16, little endian
//	4 bytes int32, little endian
func HeartRate(buf []byte) (bpm float64, ok bool) {
	switch len(buf) {
	case 1:
		return float64(buf[0]), true
	case 2:
		return float64(binary.LittleEndian.Uint16(buf)), true
	case 4:
		return float64(int32(binary.LittleEndian.Uint32(buf))), true
	default:
		return 0, false
	}
}
