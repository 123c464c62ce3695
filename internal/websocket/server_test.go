package websocket

import (
	"testing"
	"time"

	"github.com/ibisek/ogn-logbook/internal/storage/sqlite"
	"github.com/ibisek/ogn-logbook/pkg/logger"
)

func TestNotifyEventReachesRegisteredClient(t *testing.T) {
	s := NewServer(logger.NewNop())
	go s.Run()
	defer s.Stop()

	client := &Client{send: make(chan *Message, 1), server: s}
	s.register <- client

	s.NotifyEvent(sqlite.FlightEvent{Address: "DD1234", Event: sqlite.EventTakeoff})

	select {
	case msg := <-client.send:
		if msg.Type != MessageTypeFlightEvent {
			t.Errorf("message type = %q, want %q", msg.Type, MessageTypeFlightEvent)
		}
	case <-time.After(time.Second):
		t.Fatal("broadcast never reached the client")
	}
}

func TestStopTerminatesHubAndClosesClients(t *testing.T) {
	s := NewServer(logger.NewNop())
	done := make(chan struct{})
	go func() {
		s.Run()
		close(done)
	}()

	client := &Client{send: make(chan *Message, 1), server: s}
	s.register <- client

	s.Stop()
	s.Stop() // idempotent

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub loop did not return after Stop")
	}

	select {
	case _, ok := <-client.send:
		if ok {
			t.Error("client channel delivered a message instead of closing")
		}
	case <-time.After(time.Second):
		t.Fatal("client channel was not closed")
	}
}
