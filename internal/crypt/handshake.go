// Package crypt implements the encrypted-stream handshake and per-frame
// AEAD filter used by stream transports that opt into encryption. Nothing
// here touches the wire format of ordinary (unencrypted) OSC traffic; a
// connection that never sees a handshake message behaves exactly as if this
// package did not exist.
package crypt

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/openosc/osc"
)

// Reserved address prefixes carrying handshake messages. These travel in
// the clear, ahead of any Filter being installed, so they are recognized by
// address alone, never by decrypting anything.
const (
	AddrRequest = "/com.figure53.f53osc/request"
	AddrApprove = "/com.figure53.f53osc/approve"
	AddrBegin   = "/com.figure53.f53osc/begin"
)

// ProtocolVersion is the only handshake version this implementation speaks.
const ProtocolVersion = 1

// IsHandshakeMessage reports whether m is one of the three reserved
// handshake messages. It never inspects the arguments, only the address, so
// it is safe to call before any key material has been established.
func IsHandshakeMessage(m *osc.Message) bool {
	switch m.Pattern {
	case AddrRequest, AddrApprove, AddrBegin:
		return true
	default:
		return false
	}
}

// step is the local handshake state. It is never put on the wire: the wire
// carries only the three address strings above, so the numbering here is
// this implementation's business alone.
type step int

const (
	stepNone step = iota
	stepAwaitingApprove
	stepReadyToBegin
	stepAwaitingBegin
	stepComplete
)

// Role distinguishes the two sides of a handshake: the initiator sends
// request and begin; the responder sends approve.
type Role int

const (
	Initiator Role = iota
	Responder
)

// Handshake drives one side of the four-state encryption handshake over a
// single stream connection. It is not safe for concurrent use; a connState
// owns one per connection, on its own goroutine.
type Handshake struct {
	role Role
	step step

	priv, pub [32]byte
	peerPub   [32]byte

	// send is how the handshake emits messages to its peer. Incoming
	// handshake messages are fed in by the connection's read loop through
	// Step as they are recognized.
	send func(*osc.Message) error
}

// NewHandshake creates a handshake for the given role. send is called
// whenever the handshake needs to emit a message to its peer; the caller is
// responsible for actually writing it to the connection.
func NewHandshake(role Role, send func(*osc.Message) error) (*Handshake, error) {
	h := &Handshake{role: role, send: send}
	if err := h.generateKeypair(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Handshake) generateKeypair() error {
	if _, err := rand.Read(h.priv[:]); err != nil {
		return fmt.Errorf("osc: generating handshake key: %w", err)
	}
	scalarBaseMult(&h.pub, &h.priv)
	return nil
}

// Start begins the handshake. Only the initiator side does anything here;
// the responder waits for a request.
func (h *Handshake) Start(ctx context.Context) error {
	if h.role != Initiator {
		return nil
	}
	if h.step != stepNone {
		return fmt.Errorf("%w: handshake already started", osc.ErrProtocolError)
	}
	m := &osc.Message{
		Pattern: AddrRequest,
		Arguments: []osc.Argument{
			intArg(ProtocolVersion),
			blobArg(h.pub[:]),
		},
	}
	h.step = stepAwaitingApprove
	return h.send(m)
}

// Step advances the handshake with an incoming message already identified
// by IsHandshakeMessage. It returns (true, nil) once the handshake reaches
// Complete, at which point Filter returns the derived session filter.
func (h *Handshake) Step(m *osc.Message) (complete bool, err error) {
	version, pub, err := decodeHandshakeArgs(m)
	if err != nil {
		return false, err
	}
	if version != ProtocolVersion {
		return false, fmt.Errorf("%w: peer speaks version %d", osc.ErrUnsupportedProtocol, version)
	}
	switch m.Pattern {
	case AddrRequest:
		if h.role != Responder || h.step != stepNone {
			return false, fmt.Errorf("%w: unexpected request in state %d", osc.ErrProtocolError, h.step)
		}
		h.peerPub = pub
		h.step = stepAwaitingBegin
		reply := &osc.Message{
			Pattern: AddrApprove,
			Arguments: []osc.Argument{
				intArg(ProtocolVersion),
				blobArg(h.pub[:]),
			},
		}
		if err := h.send(reply); err != nil {
			return false, err
		}
		return false, nil
	case AddrApprove:
		if h.role != Initiator || h.step != stepAwaitingApprove {
			return false, fmt.Errorf("%w: unexpected approve in state %d", osc.ErrProtocolError, h.step)
		}
		h.peerPub = pub
		h.step = stepReadyToBegin
		reply := &osc.Message{
			Pattern: AddrBegin,
			Arguments: []osc.Argument{
				intArg(ProtocolVersion),
				blobArg(h.pub[:]),
			},
		}
		if err := h.send(reply); err != nil {
			return false, err
		}
		h.step = stepComplete
		return true, nil
	case AddrBegin:
		if h.role != Responder || h.step != stepAwaitingBegin {
			return false, fmt.Errorf("%w: unexpected begin in state %d", osc.ErrProtocolError, h.step)
		}
		h.step = stepComplete
		return true, nil
	default:
		return false, fmt.Errorf("%w: %q is not a handshake address", osc.ErrProtocolError, m.Pattern)
	}
}

// Complete reports whether the handshake has finished.
func (h *Handshake) Complete() bool { return h.step == stepComplete }

// Filter derives the session Filter once the handshake is Complete. It is
// an error to call this before then.
func (h *Handshake) Filter() (*Filter, error) {
	if !h.Complete() {
		return nil, fmt.Errorf("%w: handshake not complete", osc.ErrProtocolError)
	}
	return newFilter(h.priv, h.pub, h.peerPub)
}

func decodeHandshakeArgs(m *osc.Message) (version int32, pub [32]byte, err error) {
	if len(m.Arguments) != 2 {
		return 0, pub, fmt.Errorf("%w: handshake message %q wants 2 arguments, got %d", osc.ErrProtocolError, m.Pattern, len(m.Arguments))
	}
	v, ok := m.Arguments[0].(*osc.Int32)
	if !ok {
		return 0, pub, fmt.Errorf("%w: handshake message %q argument 0 must be an int32", osc.ErrProtocolError, m.Pattern)
	}
	key, ok := m.Arguments[1].(*osc.Blob)
	if !ok {
		return 0, pub, fmt.Errorf("%w: handshake message %q argument 1 must be a blob", osc.ErrProtocolError, m.Pattern)
	}
	if len(*key) != 32 {
		return 0, pub, fmt.Errorf("%w: handshake public key must be 32 bytes, got %d", osc.ErrProtocolError, len(*key))
	}
	copy(pub[:], *key)
	return int32(*v), pub, nil
}

func intArg(v int32) osc.Argument {
	i := osc.Int32(v)
	return &i
}

func blobArg(b []byte) osc.Argument {
	blob := osc.Blob(append([]byte(nil), b...))
	return &blob
}
