// Package radio defines the types shared between the gateway and the mesh
// radio link: node addresses, received frames, and outbound transmit jobs.
package radio

import (
	"fmt"
	"strconv"
	"strings"
)

// Addr is the 64-bit address of a node on the radio mesh.
type Addr uint64

// Broadcast is the reserved address that reaches every node on the mesh.
const Broadcast Addr = 0xFFFF

// IsBroadcast reports whether a is the broadcast address.
func (a Addr) IsBroadcast() bool {
	return a == Broadcast
}

// String formats the address as lowercase hex, matching how radio firmware
// prints serial numbers.
func (a Addr) String() string {
	return strconv.FormatUint(uint64(a), 16)
}

// MarshalText encodes the address the same way String does.
func (a Addr) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// ParseAddr parses a mesh address given in hex ("0x0013a200deadbeef") or
// decimal.
func ParseAddr(s string) (Addr, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty mesh address")
	}
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid mesh address %q: %w", s, err)
	}
	return Addr(v), nil
}

// Frame is one application payload reassembled by a Reframer.
type Frame struct {
	Src      Addr   // 64-bit sender address from the frame envelope
	Src16    uint16 // 16-bit network address of the sender, valid if HasSrc16
	HasSrc16 bool
	Payload  []byte
}

// TxJob is a payload waiting to be written to the radio link.
type TxJob struct {
	Dest    Addr
	Payload []byte
}

// Reframer turns the radio's byte stream into discrete frames.
type Reframer interface {
	// ReceiveFrame blocks until a complete frame is available. Any error is
	// terminal for the reframer.
	ReceiveFrame() (Frame, error)
}
