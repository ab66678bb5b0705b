// Package xbee speaks the XBee API-mode serial protocol: it turns the byte
// stream from a radio module into addressed frames and encodes outbound
// payloads as transmit requests.
//
// Only API mode 1 (no byte escaping) is supported.
package xbee

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/rennerdo30/radiogate/internal/radio"
)

// StartDelimiter begins every API frame.
const StartDelimiter = 0x7E

// API frame types.
const (
	FrameTxRequest      byte = 0x10
	FrameRx64           byte = 0x80
	FrameTxStatusLegacy byte = 0x89
	FrameModemStatus    byte = 0x8A
	FrameTxStatus       byte = 0x8B
	FrameReceivePacket  byte = 0x90
)

// Unknown16 is the 16-bit address placeholder used when only the 64-bit
// destination is known.
const Unknown16 uint16 = 0xFFFE

// MaxFrameData is the largest frame body the 16-bit length field can carry.
const MaxFrameData = 0xFFFF

var (
	// ErrChecksum is returned for a frame whose checksum does not match.
	ErrChecksum = errors.New("xbee: bad frame checksum")
	// ErrShortFrame is returned for a frame too short for its type.
	ErrShortFrame = errors.New("xbee: frame too short")
)

// APIFrame is one decoded frame: the type byte and the bytes following it.
type APIFrame struct {
	Type byte
	Data []byte
}

// checksum returns 0xFF minus the low byte of the sum of body.
func checksum(body []byte) byte {
	var sum byte
	for _, b := range body {
		sum += b
	}
	return 0xFF - sum
}

// Encode serializes f with delimiter, length and checksum.
func (f APIFrame) Encode() ([]byte, error) {
	bodyLen := 1 + len(f.Data)
	if bodyLen > MaxFrameData {
		return nil, fmt.Errorf("xbee: frame body of %d bytes exceeds %d", bodyLen, MaxFrameData)
	}

	out := make([]byte, 0, bodyLen+4)
	out = append(out, StartDelimiter)
	out = binary.BigEndian.AppendUint16(out, uint16(bodyLen))
	out = append(out, f.Type)
	out = append(out, f.Data...)
	out = append(out, checksum(out[3:]))
	return out, nil
}

// ReadAPIFrame reads the next frame from r, skipping any bytes before a
// start delimiter. A checksum mismatch consumes the bad frame and returns
// ErrChecksum so the caller can continue with the next one.
func ReadAPIFrame(r *bufio.Reader) (APIFrame, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return APIFrame{}, err
		}
		if b == StartDelimiter {
			break
		}
	}

	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return APIFrame{}, noEOF(err)
	}
	length := int(binary.BigEndian.Uint16(lenBuf[:]))
	if length == 0 {
		return APIFrame{}, fmt.Errorf("%w: zero length", ErrShortFrame)
	}

	body := make([]byte, length+1)
	if _, err := io.ReadFull(r, body); err != nil {
		return APIFrame{}, noEOF(err)
	}

	want := body[length]
	body = body[:length]
	if got := checksum(body); got != want {
		return APIFrame{}, fmt.Errorf("%w: got %#02x, want %#02x", ErrChecksum, got, want)
	}

	return APIFrame{Type: body[0], Data: body[1:]}, nil
}

// noEOF turns an EOF in the middle of a frame into io.ErrUnexpectedEOF.
func noEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// TxRequest builds a transmit request for payload addressed to dest.
// A frame ID of 0 tells the module not to send a transmit status.
func TxRequest(frameID byte, dest radio.Addr, payload []byte) APIFrame {
	data := make([]byte, 0, 13+len(payload))
	data = append(data, frameID)
	data = binary.BigEndian.AppendUint64(data, uint64(dest))
	data = binary.BigEndian.AppendUint16(data, Unknown16)
	data = append(data, 0x00) // broadcast radius: module maximum
	data = append(data, 0x00) // options
	data = append(data, payload...)
	return APIFrame{Type: FrameTxRequest, Data: data}
}

// ParseReceive converts a receive frame into a radio.Frame. It accepts the
// ZigBee/DigiMesh receive packet (0x90) and the 802.15.4 64-bit receive
// frame (0x80).
func ParseReceive(f APIFrame) (radio.Frame, error) {
	switch f.Type {
	case FrameReceivePacket:
		// src64(8) src16(2) options(1) payload
		if len(f.Data) < 11 {
			return radio.Frame{}, fmt.Errorf("%w: receive packet of %d bytes", ErrShortFrame, len(f.Data))
		}
		return radio.Frame{
			Src:      radio.Addr(binary.BigEndian.Uint64(f.Data[0:8])),
			Src16:    binary.BigEndian.Uint16(f.Data[8:10]),
			HasSrc16: true,
			Payload:  f.Data[11:],
		}, nil

	case FrameRx64:
		// src64(8) rssi(1) options(1) payload
		if len(f.Data) < 10 {
			return radio.Frame{}, fmt.Errorf("%w: rx64 frame of %d bytes", ErrShortFrame, len(f.Data))
		}
		return radio.Frame{
			Src:     radio.Addr(binary.BigEndian.Uint64(f.Data[0:8])),
			Payload: f.Data[10:],
		}, nil

	default:
		return radio.Frame{}, fmt.Errorf("xbee: frame type %#02x carries no payload", f.Type)
	}
}
