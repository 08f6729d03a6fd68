package osc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Message represents an OSC message: an address pattern plus an ordered
// list of arguments.
type Message struct {
	// Pattern is the address pattern, a string beginning with a "/".
	Pattern string
	// Arguments is the values.
	Arguments []Argument
}

func (*Message) isPacket() {}

// TypeTagString returns the computed type tag string for the message's
// arguments: a leading "," followed by one character per argument. It is
// never stored alongside the arguments, only derived when needed.
func (m Message) TypeTagString() string {
	tt := make([]byte, 0, len(m.Arguments)+1)
	tt = append(tt, ',')
	for _, a := range m.Arguments {
		tt = append(tt, byte(a.TypeTag()))
	}
	return string(tt)
}

// ParseMessage parses a message from its wire representation.
func ParseMessage(buf []byte) (*Message, error) {
	// A message begins with the address, which is a string.
	var addr String
	buf, err := addr.Consume(buf)
	if err != nil {
		return nil, fmt.Errorf("reading address pattern: %w", err)
	}
	if len(addr) == 0 || addr[0] != '/' {
		return nil, fmt.Errorf("%w: address %q must begin with \"/\"", ErrMalformedValue, addr)
	}
	// Next is the type tag string.
	var tt String
	buf, err = tt.Consume(buf)
	if err != nil {
		return nil, fmt.Errorf("reading type tag: %w", err)
	}
	if len(tt) == 0 || tt[0] != ',' {
		return nil, fmt.Errorf("%w: type tag string %q must begin with \",\"", ErrMalformedValue, tt)
	}
	args := make([]Argument, len(tt)-1)
	for i, t := range tt[1:] {
		c, ok := newByTypeTag[t]
		if !ok {
			return nil, fmt.Errorf("%w: %c", ErrUnknownTypeTag, t)
		}
		a := c()
		buf, err = a.Consume(buf)
		if err != nil {
			return nil, fmt.Errorf("reading argument %d (%c): %w", i, t, err)
		}
		args[i] = a
	}

	return &Message{
		Pattern:   string(addr),
		Arguments: args,
	}, nil
}

// Append encodes the message and appends it to the provided slice.
func (m Message) Append(b []byte) []byte {
	addr := String(m.Pattern)
	b = addr.Append(b)

	tt := String(m.TypeTagString())
	b = tt.Append(b)

	for _, a := range m.Arguments {
		b = a.Append(b)
	}
	return b
}

// newByTypeTag holds functions to construct a new Argument for a given
// type tag character.
var newByTypeTag = map[rune]func() Argument{
	Int32(0).TypeTag():   func() Argument { return new(Int32) },
	Float32(0).TypeTag(): func() Argument { return new(Float32) },
	String("").TypeTag(): func() Argument { return new(String) },
	Blob(nil).TypeTag():  func() Argument { return new(Blob) },
	TimeTag{}.TypeTag():  func() Argument { return new(TimeTag) },
	True{}.TypeTag():     func() Argument { return True{} },
	False{}.TypeTag():    func() Argument { return False{} },
	Null{}.TypeTag():     func() Argument { return Null{} },
	Impulse{}.TypeTag():  func() Argument { return Impulse{} },
}

// Argument represents an OSC value.
type Argument interface {
	// TypeTag must return the type tag of the argument, a single character.
	TypeTag() rune
	// Append appends the binary representation of the argument to the
	// provided byte slice.
	Append([]byte) []byte
	// Consume fills in the argument from the provided bytes, returning any
	// remainder.
	Consume([]byte) ([]byte, error)
}

// Int32 is the OSC int32: a "32-bit big-endian two’s complement integer"
type Int32 int32

func (Int32) TypeTag() rune { return 'i' }

func (i Int32) Append(b []byte) []byte {
	return binary.BigEndian.AppendUint32(b, uint32(i))
}

func (i *Int32) Consume(b []byte) ([]byte, error) {
	if l := len(b); l < 4 {
		return nil, fmt.Errorf("%w: expect int32, only %d bytes", ErrMalformedValue, l)
	}
	u := binary.BigEndian.Uint32(b)
	*i = Int32(u)
	return b[4:], nil
}

func (i Int32) String() string {
	return fmt.Sprintf("Int32(%d)", i)
}

// Float32 is a normal float32: "32-bit big-endian IEEE 754 floating point
// number"
type Float32 float32

func (Float32) TypeTag() rune { return 'f' }

func (f Float32) Append(b []byte) []byte {
	return binary.BigEndian.AppendUint32(b, math.Float32bits(float32(f)))
}

func (f *Float32) Consume(b []byte) ([]byte, error) {
	if l := len(b); l < 4 {
		return nil, fmt.Errorf("%w: expect float32, only %d bytes", ErrMalformedValue, l)
	}
	u := binary.BigEndian.Uint32(b)
	*f = Float32(math.Float32frombits(u))
	return b[4:], nil
}

func (f Float32) String() string {
	return fmt.Sprintf("Float32(%f)", f)
}

// maxStringLen is the largest string length (excluding the NUL terminator)
// the spec allows: 2^32 - 5, leaving room for at least one NUL and a
// 4-byte-aligned total.
const maxStringLen = (1 << 32) - 5

// String is an ASCII string, on the wire it's null-terminated and padded for
// alignment.
type String string

func (String) TypeTag() rune { return 's' }

func (s String) Append(b []byte) []byte {
	// Avoid a temporary conversion.
	for i := range s {
		b = append(b, s[i])
	}
	// 0 pad at least once, at most 3 times until the total length is a
	// multiple of 4 bytes.
	b = append(b, 0)
	for len(b)%4 > 0 {
		b = append(b, 0)
	}
	return b
}

func (s *String) Consume(b []byte) ([]byte, error) {
	end := bytes.IndexByte(b, 0)
	if end < 0 {
		return nil, fmt.Errorf("%w: no NUL terminator in string %q", ErrMalformedValue, b)
	}
	if end > maxStringLen {
		return nil, fmt.Errorf("%w: string of length %d exceeds maximum", ErrMalformedValue, end)
	}
	*s = String(b[:end])
	// Total number of bytes must be a multiple of 4, so we can just
	// figure out how much padding there is from the length. Because
	// the spec requires the padding, don't worry about whether the bytes
	// are actually 0 or not.
	padded := end + 4 - end%4
	if padded > len(b) {
		return nil, fmt.Errorf("%w: string %q missing padding", ErrMalformedValue, b[:end])
	}
	return b[padded:], nil
}

func (s String) String() string {
	return fmt.Sprintf("String(%q)", string(s))
}

// TimeTag is an OSC time tag: a 64-bit NTP-format fixed point time, seconds
// since 1900-01-01 UTC in the high 32 bits and a binary fraction of a second
// in the low 32 bits. The value {0, 1} is reserved to mean "immediate"; the
// all-ones value is not defined by the spec.
type TimeTag struct {
	Seconds  uint32
	Fraction uint32
}

func (TimeTag) TypeTag() rune { return 't' }

// epoch is the starting point for TimeTags.
var epoch = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// Immediate is the time tag meaning "execute as soon as possible".
var Immediate = TimeTag{Seconds: 0, Fraction: 1}

// NewTimeTag converts a time.Time to its NTP time tag representation.
func NewTimeTag(t time.Time) TimeTag {
	d := t.Sub(epoch)
	if d <= 0 {
		return TimeTag{}
	}
	seconds := d.Seconds()
	const stepsPerSecond = float64(int64(1) << 32)
	base, frac := math.Modf(seconds)
	return TimeTag{
		Seconds:  uint32(base),
		Fraction: uint32(frac * stepsPerSecond),
	}
}

// Time converts a TimeTag back to a time.Time, assuming UTC.
func (t TimeTag) Time() time.Time {
	frac := float64(t.Fraction) / float64(uint64(1)<<32)
	return epoch.Add(time.Duration(float64(t.Seconds)*float64(time.Second)) +
		time.Duration(frac*float64(time.Second)))
}

func (t TimeTag) Append(b []byte) []byte {
	b = binary.BigEndian.AppendUint32(b, t.Seconds)
	return binary.BigEndian.AppendUint32(b, t.Fraction)
}

func (t *TimeTag) Consume(b []byte) ([]byte, error) {
	if l := len(b); l < 8 {
		return nil, fmt.Errorf("%w: expected time tag (8 bytes), only %d bytes", ErrMalformedValue, l)
	}
	t.Seconds = binary.BigEndian.Uint32(b)
	t.Fraction = binary.BigEndian.Uint32(b[4:])
	return b[8:], nil
}

func (t TimeTag) String() string {
	if t == Immediate {
		return "TimeTag(immediate)"
	}
	return fmt.Sprintf("TimeTag(%v)", t.Time())
}

/*
   Additional mandatory types from the OSC 1.1 NIME paper
   (https://ccrma.stanford.edu/groups/osc/files/2009-NIME-OSC-1.1.pdf)
*/

// True is a boolean true, it contains no data.
type True struct{}

func (True) TypeTag() rune                    { return 'T' }
func (True) Append(b []byte) []byte           { return b }
func (True) Consume(b []byte) ([]byte, error) { return b, nil }
func (True) String() string                   { return "True" }

// False is a boolean false value, it contains no data.
type False struct{}

func (False) TypeTag() rune                    { return 'F' }
func (False) Append(b []byte) []byte           { return b }
func (False) Consume(b []byte) ([]byte, error) { return b, nil }
func (False) String() string                   { return "False" }

// Null is just an empty value.
type Null struct{}

func (Null) TypeTag() rune                    { return 'N' }
func (Null) Append(b []byte) []byte           { return b }
func (Null) Consume(b []byte) ([]byte, error) { return b, nil }
func (Null) String() string                   { return "Null" }

// Impulse (aka "bang", or "Infinitum" in OSC 1.0 is another empty type.
type Impulse struct{}

func (Impulse) TypeTag() rune                    { return 'I' }
func (Impulse) Append(b []byte) []byte           { return b }
func (Impulse) Consume(b []byte) ([]byte, error) { return b, nil }
func (Impulse) String() string                   { return "Impulse" }
