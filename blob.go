package osc

import (
	"encoding/binary"
	"fmt"
)

// maxBlobLen is the largest blob the spec allows: 2^32 - 1 bytes.
const maxBlobLen = (1 << 32) - 1

// Blob is an arbitrary byte sequence. On the wire it is a 32-bit big-endian
// size, the bytes themselves, and zero-padding to the next 4-byte boundary
// (the padding bytes are not counted in the size).
type Blob []byte

func (Blob) TypeTag() rune { return 'b' }

func (bl Blob) Append(b []byte) []byte {
	b = binary.BigEndian.AppendUint32(b, uint32(len(bl)))
	b = append(b, bl...)
	for len(b)%4 > 0 {
		b = append(b, 0)
	}
	return b
}

func (bl *Blob) Consume(b []byte) ([]byte, error) {
	if l := len(b); l < 4 {
		return nil, fmt.Errorf("%w: expect blob size, only %d bytes", ErrMalformedValue, l)
	}
	size := binary.BigEndian.Uint32(b)
	if size > maxBlobLen {
		return nil, fmt.Errorf("%w: blob size %d exceeds maximum", ErrMalformedValue, size)
	}
	b = b[4:]
	if uint64(size) > uint64(len(b)) {
		return nil, fmt.Errorf("%w: blob size %d exceeds remaining %d bytes", ErrMalformedValue, size, len(b))
	}
	out := make([]byte, size)
	copy(out, b[:size])
	*bl = out

	padded := int(size) + (4-int(size)%4)%4
	if padded > len(b) {
		return nil, fmt.Errorf("%w: blob missing padding", ErrMalformedValue)
	}
	return b[padded:], nil
}

func (bl Blob) String() string {
	return fmt.Sprintf("Blob(%d bytes)", len(bl))
}
