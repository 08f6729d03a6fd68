package osc

import "errors"

// Sentinel errors for the wire-level failure kinds a decoder can report.
// Callers should compare against these with errors.Is; the codec always
// wraps them with additional context via fmt.Errorf("...: %w", ...).
var (
	// ErrMalformedValue is returned when a primitive argument (string,
	// blob, int32, float32, time tag) cannot be decoded from the bytes
	// remaining in the buffer.
	ErrMalformedValue = errors.New("osc: malformed value")
	// ErrUnknownTypeTag is returned when a message's type tag string
	// contains a character outside the recognized alphabet.
	ErrUnknownTypeTag = errors.New("osc: unknown type tag")
	// ErrUnknownPacket is returned when a packet's leading bytes are
	// neither a message address nor the bundle literal.
	ErrUnknownPacket = errors.New("osc: unknown packet")
	// ErrBundleTooDeep is returned when decoding a bundle would recurse
	// past the configured depth bound.
	ErrBundleTooDeep = errors.New("osc: bundle nested too deep")
	// ErrBadEscape names the failure of an escape byte followed by
	// something other than ESC_END or ESC_ESC. The SLIP decoder in
	// internal/slip reports its own slip.ErrBadEscape, which does not wrap
	// this value.
	ErrBadEscape = errors.New("osc: bad SLIP escape sequence")
	// ErrFrameTooLarge names the failure of a connection's accumulated
	// input exceeding its configured cap. The SLIP decoder in internal/slip
	// reports its own slip.ErrFrameTooLarge, which does not wrap this value.
	ErrFrameTooLarge = errors.New("osc: frame too large")
	// ErrIllegalPattern is returned when an address pattern is empty or
	// does not begin with "/".
	ErrIllegalPattern = errors.New("osc: illegal address pattern")
	// ErrProtocolError is returned when handshake messages arrive out of
	// the order the state machine expects.
	ErrProtocolError = errors.New("osc: handshake protocol error")
	// ErrUnsupportedProtocol is returned when a peer's handshake message
	// carries a protocol version this implementation does not speak.
	ErrUnsupportedProtocol = errors.New("osc: unsupported handshake protocol version")
	// ErrHandshakeTimeout is returned when a handshake does not reach
	// Complete within the configured deadline.
	ErrHandshakeTimeout = errors.New("osc: handshake timed out")
	// ErrTransport names a failure reported by a Transport implementation.
	// The Transports in this package return the underlying net.Conn errors
	// without wrapping them in it.
	ErrTransport = errors.New("osc: transport error")
)
