package osc

import (
	"encoding/binary"
	"fmt"
)

// Bundle is a time-tagged envelope grouping zero or more elements, each of
// which is itself a Message or a nested Bundle.
type Bundle struct {
	Time     TimeTag
	Elements []Packet
}

func (*Bundle) isPacket() {}

// Append encodes the bundle and appends it to b.
func (bd Bundle) Append(b []byte) []byte {
	b = append(b, bundleTag...)
	b = bd.Time.Append(b)
	for _, e := range bd.Elements {
		// Reserve space for the element's length, then backfill once we
		// know how long the encoded element turned out to be.
		lenPos := len(b)
		b = binary.BigEndian.AppendUint32(b, 0)
		start := len(b)
		b = e.Append(b)
		elemLen := len(b) - start
		binary.BigEndian.PutUint32(b[lenPos:], uint32(elemLen))
	}
	return b
}

func parseBundle(buf []byte, depth int) (*Bundle, error) {
	if depth >= maxBundleDepth {
		return nil, ErrBundleTooDeep
	}
	if len(buf) < len(bundleTag)+8 {
		return nil, fmt.Errorf("%w: bundle too short for header", ErrMalformedValue)
	}
	buf = buf[len(bundleTag):]

	var tt TimeTag
	buf, err := tt.Consume(buf)
	if err != nil {
		return nil, fmt.Errorf("reading bundle time tag: %w", err)
	}

	bd := &Bundle{Time: tt}
	for len(buf) > 0 {
		if len(buf) < 4 {
			return nil, fmt.Errorf("%w: trailing bytes too short for element length", ErrMalformedValue)
		}
		elemLen := binary.BigEndian.Uint32(buf)
		buf = buf[4:]
		if elemLen == 0 || elemLen%4 != 0 {
			return nil, fmt.Errorf("%w: element length %d is not a positive multiple of 4", ErrMalformedValue, elemLen)
		}
		if uint64(elemLen) > uint64(len(buf)) {
			return nil, fmt.Errorf("%w: element length %d exceeds remaining %d bytes", ErrMalformedValue, elemLen, len(buf))
		}
		elem, err := parsePacket(buf[:elemLen], depth+1)
		if err != nil {
			return nil, fmt.Errorf("reading bundle element: %w", err)
		}
		bd.Elements = append(bd.Elements, elem)
		buf = buf[elemLen:]
	}
	return bd, nil
}

// Flatten returns every Message contained transitively within the bundle,
// in depth-first order. It does not schedule or reorder by time tag, and the
// time tags of the bundle and its nested bundles are not returned.
func (bd *Bundle) Flatten() []*Message {
	var out []*Message
	for _, e := range bd.Elements {
		switch v := e.(type) {
		case *Message:
			out = append(out, v)
		case *Bundle:
			out = append(out, v.Flatten()...)
		}
	}
	return out
}
