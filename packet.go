package osc

import (
	"bytes"
	"fmt"
)

// bundleTag is the literal that introduces an OSC bundle on the wire.
const bundleTag = "#bundle\x00"

// maxBundleDepth bounds how deeply bundles may nest during decode, so that a
// crafted input cannot exhaust the stack.
const maxBundleDepth = 16

// Packet is either a *Message or a *Bundle.
type Packet interface {
	isPacket()
	// Append encodes the packet and appends it to b.
	Append(b []byte) []byte
}

// ParsePacket decodes a single OSC packet: a message if it begins with "/",
// a bundle if it begins with the "#bundle\0" literal, or ErrUnknownPacket
// otherwise.
func ParsePacket(buf []byte) (Packet, error) {
	return parsePacket(buf, 0)
}

func parsePacket(buf []byte, depth int) (Packet, error) {
	switch {
	case len(buf) > 0 && buf[0] == '/':
		return ParseMessage(buf)
	case bytes.HasPrefix(buf, []byte(bundleTag)):
		return parseBundle(buf, depth)
	default:
		return nil, fmt.Errorf("%w: leading bytes %q are neither a message nor a bundle", ErrUnknownPacket, peek(buf))
	}
}

func peek(buf []byte) []byte {
	if len(buf) > 8 {
		return buf[:8]
	}
	return buf
}
