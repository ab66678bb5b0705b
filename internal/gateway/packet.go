package gateway

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

var (
	// ErrNotIP is returned for packets whose version nibble is neither 4 nor 6.
	ErrNotIP = errors.New("not an IP packet")
	// ErrMalformedIP is returned when the IPv4 or IPv6 header fails to decode.
	ErrMalformedIP = errors.New("malformed IP header")
	// ErrNoIPLayer is returned when decoding succeeded but yielded no usable
	// IPv4 or IPv6 header.
	ErrNoIPLayer = errors.New("no IP layer in packet")
)

// decodeNetwork decodes the IPv4 or IPv6 header at the start of data. The
// transport payload is never inspected, so a damaged TCP or UDP header
// does not make the packet unusable.
func decodeNetwork(data []byte) (gopacket.NetworkLayer, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty packet", ErrNotIP)
	}

	var network interface {
		gopacket.NetworkLayer
		gopacket.DecodingLayer
	}
	switch version := data[0] >> 4; version {
	case 4:
		network = &layers.IPv4{}
	case 6:
		network = &layers.IPv6{}
	default:
		return nil, fmt.Errorf("%w: version %d", ErrNotIP, version)
	}

	// The header is only trusted when the decoder accepted it; a layer
	// with a bad IHL or total length must never reach the cache.
	if err := network.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedIP, network.LayerType(), err)
	}
	return network, nil
}

// endpoints returns the source and destination addresses of an IP header.
func endpoints(network gopacket.NetworkLayer) (src, dst netip.Addr, err error) {
	var ok1, ok2 bool
	switch l := network.(type) {
	case *layers.IPv4:
		src, ok1 = netip.AddrFromSlice(l.SrcIP.To4())
		dst, ok2 = netip.AddrFromSlice(l.DstIP.To4())
	case *layers.IPv6:
		src, ok1 = netip.AddrFromSlice(l.SrcIP.To16())
		dst, ok2 = netip.AddrFromSlice(l.DstIP.To16())
	}
	if !ok1 || !ok2 {
		return netip.Addr{}, netip.Addr{}, ErrNoIPLayer
	}
	return src, dst, nil
}

// DestinationIP returns the destination address of a raw IP packet.
func DestinationIP(data []byte) (netip.Addr, error) {
	network, err := decodeNetwork(data)
	if err != nil {
		return netip.Addr{}, err
	}
	_, dst, err := endpoints(network)
	return dst, err
}

// SourceIP returns the source address of a raw IP packet.
func SourceIP(data []byte) (netip.Addr, error) {
	network, err := decodeNetwork(data)
	if err != nil {
		return netip.Addr{}, err
	}
	src, _, err := endpoints(network)
	return src, err
}
