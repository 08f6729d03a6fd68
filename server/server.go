// Package server implements OSC server-side dispatch: an osc.Packet, once
// decoded, is matched against registered address patterns and delivered to
// the handlers that match.
package server

import (
	"context"
	"fmt"
	"log"
	"net"

	"golang.org/x/sync/errgroup"

	"github.com/openosc/osc"
)

// Handler is something that can handle OSC messages.
type Handler interface {
	Handle(*osc.Message) error
}

// HandlerFunc converts a function into a Handler.
func HandlerFunc(f func(*osc.Message) error) Handler {
	return handlerFunc(f)
}

type handlerFunc func(*osc.Message) error

func (h handlerFunc) Handle(m *osc.Message) error {
	return h(m)
}

// ReplyEndpoint captures the transport a packet arrived on, so a handler
// can address a reply back to whoever sent it without holding a reference
// to the whole Listener.
type ReplyEndpoint interface {
	Reply(p osc.Packet) error
}

// Consumer is a single-operation capability, takePacket(packet,
// replyEndpoint). The dispatcher hands it only the messages that match no
// registered Handler (bundles are flattened first, so it
// is always given an *osc.Message); matched messages go to their Handlers
// and never reach the Consumer.
type Consumer interface {
	TakePacket(p osc.Packet, reply ReplyEndpoint)
}

type udpReplyEndpoint struct {
	conn net.PacketConn
	addr net.Addr
}

func (r udpReplyEndpoint) Reply(p osc.Packet) error {
	_, err := r.conn.WriteTo(p.Append(nil), r.addr)
	return err
}

// Listener listens to a connection and dispatches messages to registered
// handlers. Up to workers messages are handled in parallel, each on its own
// goroutine, so the same handler may be executed concurrently for different
// messages. The handlers matching one message are called one after another
// on that message's goroutine.
//
// Decode errors on a UDP listener are dropped and logged; the listener keeps
// serving subsequent datagrams.
type Listener struct {
	conn net.PacketConn
	// TODO: this could definitely be more efficient, but is it worth it?
	handlers []handler
	// workers sets the number of messages handled in parallel. A message
	// that matches many handlers still occupies a single worker.
	workers int

	// Unhandled, if set, receives any message that no registered Handler's
	// pattern matches, along with a ReplyEndpoint addressed back to
	// whoever sent it. Otherwise an unmatched message is just logged.
	Unhandled Consumer
}

type handler struct {
	p string
	h Handler
}

func NewListener(conn net.PacketConn, workers int) *Listener {
	return &Listener{
		conn:    conn,
		workers: workers,
	}
}

// Handle registers a handler to receive messages on the provided pattern.
func (l *Listener) Handle(pattern string, h Handler) {
	l.handlers = append(l.handlers, handler{pattern, h})
}

// dispatch matches msg's address against every registered handler pattern
// and invokes the ones that match, logging (but not returning) any error a
// Handler reports. If nothing matches and fallback is non-nil, the message
// is handed to it instead of just being logged as unmatched. It is shared
// by the UDP Listener and the TCP StreamListener, since address matching
// and delivery don't depend on the transport underneath.
func dispatch(handlers []handler, msg *osc.Message, fallback Consumer, reply ReplyEndpoint) error {
	pattern, err := ParsePattern(msg.Pattern)
	if err != nil {
		return err
	}
	matched := false
	for _, m := range handlers {
		if pattern.Match(m.p) {
			matched = true
			// TODO: do these concurrently?
			if err := m.h.Handle(msg); err != nil {
				log.Printf("Error from handler %q: %v (message: %v)", m.p, err, msg)
			}
		}
	}
	if !matched {
		if fallback != nil {
			fallback.TakePacket(msg, reply)
			return nil
		}
		log.Printf("%v", unmatched(*msg))
	}
	return nil
}

// dispatchPacket is the packet-level counterpart to dispatch: it flattens
// bundles to their contained messages first. Shared by Listener and
// StreamListener.
func dispatchPacket(handlers []handler, p osc.Packet, fallback Consumer, reply ReplyEndpoint) {
	switch v := p.(type) {
	case *osc.Message:
		if err := dispatch(handlers, v, fallback, reply); err != nil {
			log.Printf("Error handling message: %v (message: %v)", err, v)
		}
	case *osc.Bundle:
		for _, msg := range v.Flatten() {
			if err := dispatch(handlers, msg, fallback, reply); err != nil {
				log.Printf("Error handling message: %v (message: %v)", err, msg)
			}
		}
	}
}

// Serve starts listening to OSC packets and dispatching them to registered
// handlers. It blocks until the context is cancelled or it receives an error
// from the underlying connection.
type recvItem struct {
	pkt  osc.Packet
	addr net.Addr
}

func (l *Listener) Serve(ctx context.Context) error {
	recv := make(chan recvItem, 100)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		buf := make([]byte, 1<<16) // ~max UDP packet size.
		for {
			n, addr, err := l.conn.ReadFrom(buf)
			if n > 0 {
				pkt, perr := osc.ParsePacket(buf[:n])
				if perr != nil {
					log.Printf("Received invalid packet from %v: %v", addr, perr)
				} else {
					select {
					case recv <- recvItem{pkt, addr}:
					case <-gctx.Done():
						return gctx.Err()
					}
				}
			}
			if err != nil {
				return err
			}
		}
	})
	for range l.workers {
		g.Go(func() error {
			for {
				var item recvItem
				select {
				case <-gctx.Done():
					return gctx.Err()
				case item = <-recv:
				}
				reply := udpReplyEndpoint{conn: l.conn, addr: item.addr}
				dispatchPacket(l.handlers, item.pkt, l.Unhandled, reply)
			}
		})
	}

	return g.Wait()
}

type UnmatchedPatternError struct {
	msg osc.Message
}

func unmatched(msg osc.Message) UnmatchedPatternError {
	return UnmatchedPatternError{msg}
}

func (u UnmatchedPatternError) Error() string {
	return fmt.Sprintf("no handlers for message: %v", u.msg)
}
