// Package slip implements RFC 1055 SLIP framing with the OSC 1.1
// conventions layered on top: an END byte delimits frames, a leading END
// before any payload is ignored (this tolerates noise on the line), and an
// empty frame is never emitted.
package slip

import "errors"

const (
	// END marks a frame boundary.
	END = 0xC0
	// ESC introduces an escaped byte.
	ESC = 0xDB
	// ESCEND is the escaped form of END.
	ESCEND = 0xDC
	// ESCESC is the escaped form of ESC.
	ESCESC = 0xDD
)

// ErrBadEscape is returned when an ESC byte is followed by anything other
// than ESCEND or ESCESC.
var ErrBadEscape = errors.New("slip: invalid escape sequence")

// ErrFrameTooLarge is returned when accumulated, not-yet-terminated frame
// bytes exceed the decoder's configured cap.
var ErrFrameTooLarge = errors.New("slip: frame exceeds maximum size")

// DefaultMaxFrame is the recommended per-connection input buffer cap.
const DefaultMaxFrame = 64 * 1024

type state int

const (
	stateIdle state = iota
	stateAccumulating
	stateEscaping
)

// Decoder is a pure, stateful SLIP frame decoder. It is not safe for
// concurrent use: one Decoder serves one stream.
type Decoder struct {
	state   state
	payload []byte
	max     int
}

// NewDecoder returns a Decoder that rejects frames larger than max bytes.
// A max of 0 selects DefaultMaxFrame.
func NewDecoder(max int) *Decoder {
	if max <= 0 {
		max = DefaultMaxFrame
	}
	return &Decoder{max: max}
}

// Write feeds newly-arrived bytes into the decoder and returns every
// complete frame they produced. Partial state (including an in-progress
// escape) is retained across calls; a caller may split input into
// arbitrarily small chunks and will see the same frames as one large call.
//
// On ErrBadEscape the offending partial payload is discarded and decoding
// resumes at Idle; the error is informational, not fatal, for a caller that
// wants to keep reading the stream. On ErrFrameTooLarge the decoder's state
// is left as-is; the caller should treat the connection as unrecoverable
// per the framing layer's contract.
func (d *Decoder) Write(p []byte) (frames [][]byte, err error) {
	for _, b := range p {
		switch d.state {
		case stateIdle:
			if b == END {
				d.state = stateAccumulating
				d.payload = d.payload[:0]
			}
			// Discard anything else while idle.

		case stateAccumulating:
			switch b {
			case END:
				if len(d.payload) > 0 {
					frame := make([]byte, len(d.payload))
					copy(frame, d.payload)
					frames = append(frames, frame)
				}
				d.payload = d.payload[:0]
				d.state = stateIdle
			case ESC:
				d.state = stateEscaping
			default:
				if len(d.payload)+1 > d.max {
					return frames, ErrFrameTooLarge
				}
				d.payload = append(d.payload, b)
			}

		case stateEscaping:
			var unescaped byte
			switch b {
			case ESCEND:
				unescaped = END
			case ESCESC:
				unescaped = ESC
			default:
				d.payload = d.payload[:0]
				d.state = stateIdle
				return frames, ErrBadEscape
			}
			if len(d.payload)+1 > d.max {
				return frames, ErrFrameTooLarge
			}
			d.payload = append(d.payload, unescaped)
			d.state = stateAccumulating
		}
	}
	return frames, nil
}

// Encode wraps payload in SLIP framing: a leading END, the payload with
// END and ESC bytes escaped, and a trailing END.
func Encode(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+2)
	out = append(out, END)
	for _, b := range payload {
		switch b {
		case END:
			out = append(out, ESC, ESCEND)
		case ESC:
			out = append(out, ESC, ESCESC)
		default:
			out = append(out, b)
		}
	}
	out = append(out, END)
	return out
}
