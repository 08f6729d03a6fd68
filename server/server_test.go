package server

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/openosc/osc"
)

func TestDispatchMatchesRegisteredHandler(t *testing.T) {
	var got []string
	var mu sync.Mutex
	h := handlerFunc(func(m *osc.Message) error {
		mu.Lock()
		got = append(got, m.Pattern)
		mu.Unlock()
		return nil
	})
	handlers := []handler{{"/foo/*", h}, {"/bar", h}}

	if err := dispatch(handlers, &osc.Message{Pattern: "/foo/baz"}, nil, nil); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "/foo/baz" {
		t.Fatalf("got %v, want one match for /foo/baz", got)
	}
}

type fakeConsumer struct {
	took []osc.Packet
}

func (f *fakeConsumer) TakePacket(p osc.Packet, reply ReplyEndpoint) {
	f.took = append(f.took, p)
}

func TestDispatchFallsBackToConsumerWhenUnmatched(t *testing.T) {
	var fc fakeConsumer
	msg := &osc.Message{Pattern: "/unregistered"}
	if err := dispatch(nil, msg, &fc, nil); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(fc.took) != 1 || fc.took[0] != msg {
		t.Fatalf("fallback Consumer got %v, want [%v]", fc.took, msg)
	}
}

func TestDispatchPacketFlattensBundles(t *testing.T) {
	var got []string
	h := handlerFunc(func(m *osc.Message) error {
		got = append(got, m.Pattern)
		return nil
	})
	handlers := []handler{{"/*", h}}
	bd := &osc.Bundle{
		Time: osc.Immediate,
		Elements: []osc.Packet{
			&osc.Message{Pattern: "/a"},
			&osc.Bundle{Elements: []osc.Packet{&osc.Message{Pattern: "/b"}}},
		},
	}
	dispatchPacket(handlers, bd, nil, nil)
	if len(got) != 2 || got[0] != "/a" || got[1] != "/b" {
		t.Fatalf("got %v, want [/a /b]", got)
	}
}

func TestListenerServeEndToEnd(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket: %v", err)
	}
	defer conn.Close()

	l := NewListener(conn, 1)
	recv := make(chan *osc.Message, 1)
	l.Handle("/ping", HandlerFunc(func(m *osc.Message) error {
		recv <- m
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Serve(ctx)

	client, err := net.Dial("udp", conn.LocalAddr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	i := osc.Int32(5)
	msg := osc.Message{Pattern: "/ping", Arguments: []osc.Argument{&i}}
	if _, err := client.Write(msg.Append(nil)); err != nil {
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
