package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openosc/osc"
	"github.com/openosc/osc/internal/crypt"
	"github.com/openosc/osc/internal/slip"
)

// DefaultHandshakeTimeout bounds how long a connection's encryption
// handshake, if one is requested, has to complete before the connection is
// closed.
const DefaultHandshakeTimeout = 10 * time.Second

// DefaultMaxFrame is the per-connection SLIP frame size cap, matching
// internal/slip's own default.
const DefaultMaxFrame = slip.DefaultMaxFrame

// StreamListener is the TCP counterpart to Listener: connections are
// persistent, so each gets its own SLIP decoder and, optionally, encryption
// handshake and filter, all owned exclusively by that connection's
// goroutine. Unlike the UDP Listener, a decode or frame error on a stream
// connection closes it immediately: there is no way to resynchronize a byte
// stream once its framing is suspect.
type StreamListener struct {
	ln net.Listener

	handlers []handler

	// RequireEncryption, if true, runs the handshake as the responder
	// before handing any message to a handler. If false, a connection that
	// never sends a handshake message behaves exactly like plain SLIP-framed
	// OSC, and handshake messages, if any arrive, are still honored.
	RequireEncryption bool
	// HandshakeTimeout overrides DefaultHandshakeTimeout when nonzero.
	HandshakeTimeout time.Duration
	// MaxFrame overrides DefaultMaxFrame when nonzero.
	MaxFrame int
	// Unhandled, if set, receives any message that no registered Handler's
	// pattern matches, along with a ReplyEndpoint addressed back down the
	// same connection.
	Unhandled Consumer

	mu          sync.Mutex
	connections map[uint64]*connState
	nextID      uint64
}

// NewStreamListener wraps an already-listening net.Listener (typically from
// net.Listen("tcp", addr)).
func NewStreamListener(ln net.Listener) *StreamListener {
	return &StreamListener{
		ln:          ln,
		connections: make(map[uint64]*connState),
	}
}

// Handle registers a handler to receive messages on the provided pattern.
func (sl *StreamListener) Handle(pattern string, h Handler) {
	sl.handlers = append(sl.handlers, handler{pattern, h})
}

// connState is everything one connection needs, owned exclusively by that
// connection's goroutine except for its presence in StreamListener.connections,
// which is only ever touched by the acceptor goroutine under sl.mu.
type connState struct {
	id      uint64
	conn    net.Conn
	dec     *slip.Decoder
	hs      *crypt.Handshake
	armed   atomic.Bool // true once hs.Filter() has been installed
	filter  *crypt.Filter
	client  *osc.Client
}

// Serve accepts connections until ctx is cancelled or the listener reports
// an error. Each accepted connection is served on its own goroutine; Serve
// itself returns once accepting stops, without waiting for in-flight
// connections to finish. Connection goroutines are not part of Serve's
// errgroup, unlike the fixed worker pool in Listener.Serve, which Serve
// waits for.
func (sl *StreamListener) Serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return sl.ln.Close()
	})
	g.Go(func() error {
		for {
			conn, err := sl.ln.Accept()
			if err != nil {
				return err
			}
			cs := sl.register(conn)
			go sl.serveConn(gctx, cs)
		}
	})
	return g.Wait()
}

func (sl *StreamListener) register(conn net.Conn) *connState {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.nextID++
	cs := &connState{
		id:   sl.nextID,
		conn: conn,
		dec:  slip.NewDecoder(sl.maxFrame()),
	}
	sl.connections[cs.id] = cs
	return cs
}

func (sl *StreamListener) unregister(id uint64) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	delete(sl.connections, id)
}

func (sl *StreamListener) maxFrame() int {
	if sl.MaxFrame > 0 {
		return sl.MaxFrame
	}
	return DefaultMaxFrame
}

func (sl *StreamListener) handshakeTimeout() time.Duration {
	if sl.HandshakeTimeout > 0 {
		return sl.HandshakeTimeout
	}
	return DefaultHandshakeTimeout
}

// serveConn owns cs's connection for its entire lifetime: reading,
// SLIP-decoding, handshake interception, decryption, and dispatch all
// happen here and nowhere else.
func (sl *StreamListener) serveConn(ctx context.Context, cs *connState) {
	defer sl.unregister(cs.id)
	defer cs.conn.Close()

	cs.client = osc.NewStreamClient(cs.conn)
	defer cs.client.Close()

	if sl.RequireEncryption {
		if err := sl.runHandshake(ctx, cs); err != nil {
			log.Printf("connection %d: handshake failed: %v", cs.id, err)
			return
		}
	}

	buf := make([]byte, 4096)
	for {
		if dl, ok := ctx.Deadline(); ok {
			cs.conn.SetReadDeadline(dl)
		}
		n, err := cs.conn.Read(buf)
		if n > 0 {
			frames, ferr := cs.dec.Write(buf[:n])
			for _, frame := range frames {
				if cs.filter != nil {
					opened, oerr := cs.filter.Open(frame)
					if oerr != nil {
						log.Printf("connection %d: decrypting frame: %v", cs.id, oerr)
						return
					}
					frame = opened
				}
				if e := sl.handleFrame(cs, frame); e != nil {
					log.Printf("connection %d: %v", cs.id, e)
					return
				}
			}
			if ferr != nil {
				log.Printf("connection %d: framing error, closing: %v", cs.id, ferr)
				return
			}
		}
		if err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (sl *StreamListener) handleFrame(cs *connState, frame []byte) error {
	pkt, err := osc.ParsePacket(frame)
	if err != nil {
		return fmt.Errorf("decoding packet: %w", err)
	}
	if msg, ok := pkt.(*osc.Message); ok && crypt.IsHandshakeMessage(msg) {
		// A handshake message arriving outside sl.RequireEncryption's own
		// handshake run (e.g. a peer that starts one unprompted) is
		// honored too: respond in kind, then keep serving plaintext until
		// it completes.
		if cs.hs == nil {
			hs, err := crypt.NewHandshake(crypt.Responder, func(m *osc.Message) error {
				return cs.client.Send(m)
			})
			if err != nil {
				return fmt.Errorf("starting handshake: %w", err)
			}
			cs.hs = hs
		}
		complete, err := cs.hs.Step(msg)
		if err != nil {
			return fmt.Errorf("handshake: %w", err)
		}
		if complete {
			f, err := cs.hs.Filter()
			if err != nil {
				return fmt.Errorf("deriving session filter: %w", err)
			}
			cs.filter = f
			cs.client.SetFilter(f)
			cs.armed.Store(true)
		}
		return nil
	}
	dispatchPacket(sl.handlers, pkt, sl.Unhandled, streamReplyEndpoint{cs.client})
	return nil
}

// streamReplyEndpoint addresses a reply back down the same connection a
// packet arrived on.
type streamReplyEndpoint struct {
	client *osc.Client
}

func (r streamReplyEndpoint) Reply(p osc.Packet) error {
	return r.client.Send(p)
}

func (sl *StreamListener) runHandshake(ctx context.Context, cs *connState) error {
	hctx, cancel := context.WithTimeout(ctx, sl.handshakeTimeout())
	defer cancel()

	hs, err := crypt.NewHandshake(crypt.Responder, func(m *osc.Message) error {
		return cs.client.Send(m)
	})
	if err != nil {
		return err
	}
	cs.hs = hs

	buf := make([]byte, 4096)
	for !hs.Complete() {
		if dl, ok := hctx.Deadline(); ok {
			cs.conn.SetReadDeadline(dl)
		}
		n, err := cs.conn.Read(buf)
		if err != nil {
			return fmt.Errorf("%w: %v", osc.ErrHandshakeTimeout, err)
		}
		if n == 0 {
			continue
		}
		frames, ferr := cs.dec.Write(buf[:n])
		for _, frame := range frames {
			pkt, perr := osc.ParsePacket(frame)
			if perr != nil {
				return fmt.Errorf("decoding handshake frame: %w", perr)
			}
			msg, ok := pkt.(*osc.Message)
			if !ok || !crypt.IsHandshakeMessage(msg) {
				return fmt.Errorf("%w: expected a handshake message", osc.ErrProtocolError)
			}
			complete, err := hs.Step(msg)
			if err != nil {
				return err
			}
			if complete {
				f, err := hs.Filter()
				if err != nil {
					return err
				}
				cs.filter = f
				cs.client.SetFilter(f)
				cs.armed.Store(true)
			}
		}
		if ferr != nil {
			return fmt.Errorf("framing error during handshake: %w", ferr)
		}
		select {
		case <-hctx.Done():
			return fmt.Errorf("%w", osc.ErrHandshakeTimeout)
		default:
		}
	}
	cs.conn.SetReadDeadline(time.Time{})
	return nil
}
