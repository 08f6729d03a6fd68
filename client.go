package osc

import (
	"fmt"
	"net"

	"github.com/openosc/osc/internal/slip"
)

// sealer is satisfied by *crypt.Filter without this package importing
// internal/crypt directly -- a Client only needs to know it can seal bytes,
// not how.
type sealer interface {
	Seal(plaintext []byte) ([]byte, error)
}

// Client sends Packets over a Transport, generalizing the package-level
// Send helper in osc.go to work over any Transport (not just a bare
// net.PacketConn) and to SLIP-frame outbound bytes when the transport is a
// byte stream rather than a datagram socket.
type Client struct {
	t      Transport
	stream bool
	filter sealer // nil until an encryption handshake completes
}

// NewUDPClient builds a Client around a connected UDP socket. Each Send
// writes exactly one datagram per Packet.
func NewUDPClient(conn net.Conn) *Client {
	return &Client{t: NewUDPTransport(conn)}
}

// NewStreamClient builds a Client around a connected TCP socket. Each Send
// SLIP-frames the encoded packet before writing it.
func NewStreamClient(conn net.Conn) *Client {
	return &Client{t: NewTCPTransport(conn), stream: true}
}

// SetFilter installs an encryption filter, used once a handshake on this
// connection reaches Complete. Every Send after this point seals its frame
// before writing it. Only meaningful for stream clients.
func (c *Client) SetFilter(f sealer) {
	c.filter = f
}

// Send encodes p and writes it to the peer.
func (c *Client) Send(p Packet) error {
	b := getBuf()
	b = p.Append(b)
	defer putBuf(b)

	if !c.stream {
		return c.t.Send(b)
	}

	payload := b
	if c.filter != nil {
		sealed, err := c.filter.Seal(b)
		if err != nil {
			return fmt.Errorf("osc: sealing outbound frame: %w", err)
		}
		payload = sealed
	}
	return c.t.Send(slip.Encode(payload))
}

// Close releases the underlying transport.
func (c *Client) Close() error {
	return c.t.Close()
}
