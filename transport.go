package osc

import (
	"net"
	"sync"
)

// Transport is the seam between the codec/dispatch core and a concrete
// connected socket. A datagram transport (UDP) and a stream transport (TCP)
// both implement it as a tagged variant; nothing above this interface
// switches on which one it is. Both are built over an already-connected
// net.Conn (e.g. the result of net.Dial), so Send/Recv need no per-call
// addressing -- the connection itself names the peer.
type Transport interface {
	// Send writes one already-encoded packet (and, for a stream transport,
	// already SLIP-framed) to the peer.
	Send(b []byte) error
	// Recv returns the channel RecvEvents arrive on, starting the
	// transport's background read loop on its first call. It is closed
	// when the transport is closed. A send-only caller (a Client used
	// only to write, with reads owned by someone else, such as
	// server.StreamListener's own per-connection loop) never needs to
	// call Recv, and so never starts a competing reader.
	Recv() <-chan RecvEvent
	// Close releases the underlying socket.
	Close() error
}

// RecvEvent is one received unit: a datagram for a datagram transport, or a
// raw read for a stream transport (SLIP framing happens above this layer).
type RecvEvent struct {
	Data []byte
	Err  error
}

// udpTransport is a Transport backed by a connected net.Conn over UDP: each
// Recv yields exactly one datagram.
type udpTransport struct {
	conn     net.Conn
	recv     chan RecvEvent
	done     chan struct{}
	startRead sync.Once
}

// NewUDPTransport wraps an already-connected UDP net.Conn (e.g. from
// net.Dial("udp", addr)).
func NewUDPTransport(conn net.Conn) Transport {
	return &udpTransport{
		conn: conn,
		recv: make(chan RecvEvent, 100),
		done: make(chan struct{}),
	}
}

func (t *udpTransport) readLoop() {
	defer close(t.recv)
	buf := make([]byte, 1<<16)
	for {
		n, err := t.conn.Read(buf)
		if n > 0 {
			data := append([]byte(nil), buf[:n]...)
			select {
			case t.recv <- RecvEvent{Data: data}:
			case <-t.done:
				return
			}
		}
		if err != nil {
			select {
			case t.recv <- RecvEvent{Err: err}:
			case <-t.done:
			}
			return
		}
	}
}

func (t *udpTransport) Send(b []byte) error {
	_, err := t.conn.Write(b)
	return err
}

func (t *udpTransport) Recv() <-chan RecvEvent {
	t.startRead.Do(func() { go t.readLoop() })
	return t.recv
}

func (t *udpTransport) Close() error {
	close(t.done)
	return t.conn.Close()
}

// tcpTransport is a Transport backed by a connected TCP net.Conn. Unlike
// UDP, a single Read may return a partial frame or several frames
// concatenated; the caller (Client, or StreamListener's per-connection
// loop) is responsible for feeding the bytes through a SLIP decoder.
type tcpTransport struct {
	conn      net.Conn
	recv      chan RecvEvent
	done      chan struct{}
	startRead sync.Once
}

// NewTCPTransport wraps an already-connected net.Conn.
func NewTCPTransport(conn net.Conn) Transport {
	return &tcpTransport{
		conn: conn,
		recv: make(chan RecvEvent, 100),
		done: make(chan struct{}),
	}
}

func (t *tcpTransport) readLoop() {
	defer close(t.recv)
	buf := make([]byte, 4096)
	for {
		n, err := t.conn.Read(buf)
		if n > 0 {
			data := append([]byte(nil), buf[:n]...)
			select {
			case t.recv <- RecvEvent{Data: data}:
			case <-t.done:
				return
			}
		}
		if err != nil {
			select {
			case t.recv <- RecvEvent{Err: err}:
			case <-t.done:
			}
			return
		}
	}
}

func (t *tcpTransport) Send(b []byte) error {
	_, err := t.conn.Write(b)
	return err
}

func (t *tcpTransport) Recv() <-chan RecvEvent {
	t.startRead.Do(func() { go t.readLoop() })
	return t.recv
}

func (t *tcpTransport) Close() error {
	close(t.done)
	return t.conn.Close()
}
