package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/openosc/osc"
	"github.com/openosc/osc/internal/slip"
)

func TestStreamListenerEndToEnd(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	sl := NewStreamListener(ln)
	recv := make(chan *osc.Message, 1)
	sl.Handle("/ping", HandlerFunc(func(m *osc.Message) error {
		recv <- m
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sl.Serve(ctx)

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	msg := osc.Message{Pattern: "/ping"}
	frame := slip.Encode(msg.Append(nil))
	if _, err := conn.Write(frame); err != nil {
		t.Fatalf("Write: %v", err)
	}

	select {
	case m := <-recv:
		if m.Pattern != "/ping" {
			t.Errorf("got pattern %q, want /ping", m.Pattern)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestStreamListenerSplitFrameAcrossWrites(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	sl := NewStreamListener(ln)
	recv := make(chan *osc.Message, 1)
	sl.Handle("/*", HandlerFunc(func(m *osc.Message) error {
		recv <- m
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sl.Serve(ctx)

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	i := osc.Int32(1)
	msg := osc.Message{Pattern: "/split", Arguments: []osc.Argument{&i}}
	frame := slip.Encode(msg.Append(nil))
	mid := len(frame) / 2
	if _, err := conn.Write(frame[:mid]); err != nil {
		t.Fatalf("Write first half: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := conn.Write(frame[mid:]); err != nil {
		t.Fatalf("Write second half: %v", err)
	}

	select {
	case m := <-recv:
		if m.Pattern != "/split" {
			t.Errorf("got pattern %q, want /split", m.Pattern)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}
