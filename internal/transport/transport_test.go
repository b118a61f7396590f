package transport

import (
	"testing"
	"time"

	"github.com/tenzoki/actorhost/internal/wire"
)

func newTestReceiver(t *testing.T, name string) *Receiver {
	t.Helper()
	r, err := NewReceiver(name, "localhost", Options{})
	if err != nil {
		t.Fatalf("NewReceiver(%s): %v", name, err)
	}
	t.Cleanup(func() {
		r.Close(nil, nil)
	})
	return r
}

func TestSendReceiveFIFO(t *testing.T) {
	r := newTestReceiver(t, "fifo-target")

	sender, err := NewSender(r.Address(), true)
	if err != nil {
		t.Fatalf("NewSender: %v", err)
	}
	defer sender.Close()

	for i := 0; i < 3; i++ {
		if err := sender.Put(wire.New("tick", map[string]any{"n": i})); err != nil {
			t.Fatalf("Put %d: %v", i, err)
		}
	}

	for i := 0; i < 3; i++ {
		msg, ok, terminated := r.Get(1 * time.Second)
		if terminated {
			t.Fatalf("unexpected termination at %d", i)
		}
		if !ok {
			t.Fatalf("Get %d timed out", i)
		}
		if got := int(msg["n"].(float64)); got != i {
			t.Fatalf("Get %d = %d, want %d", i, got, i)
		}
	}
}

func TestSenderToNonexistentTargetIsChannelDown(t *testing.T) {
	ghost := wire.Address{Name: "nobody-here", Host: "localhost", Port: 59999}
	_, err := NewSender(ghost, true)
	if err == nil {
		t.Fatal("expected ChannelDownError dialing a nonexistent target")
	}
	var down *wire.ChannelDownError
	if !asChannelDown(err, &down) {
		t.Fatalf("expected *wire.ChannelDownError, got %T: %v", err, err)
	}
}

func asChannelDown(err error, target **wire.ChannelDownError) bool {
	d, ok := err.(*wire.ChannelDownError)
	if ok {
		*target = d
	}
	return ok
}

func TestCloseDeliversConfirmation(t *testing.T) {
	r := newTestReceiver(t, "closer")
	confirmReceiver := newTestReceiver(t, "confirm-listener")

	sender, err := NewSender(r.Address(), true)
	if err != nil {
		t.Fatalf("NewSender: %v", err)
	}
	defer sender.Close()

	confirmAddr := confirmReceiver.Address()
	if err := sender.CloseReceiver(&confirmAddr, wire.New("closed", nil)); err != nil {
		t.Fatalf("CloseReceiver: %v", err)
	}

	msg, ok, terminated := confirmReceiver.Get(2 * time.Second)
	if terminated {
		t.Fatal("confirm listener terminated before receiving confirmation")
	}
	if !ok {
		t.Fatal("did not receive close confirmation in time")
	}
	if msg.Tag() != "closed" {
		t.Fatalf("confirmation tag = %q, want %q", msg.Tag(), "closed")
	}

	if _, _, terminated := r.Get(2 * time.Second); !terminated {
		t.Fatal("closed receiver's mailbox should report terminated")
	}
}

func TestMailboxRestoreKeepsOrderAheadOfNewArrivals(t *testing.T) {
	r := newTestReceiver(t, "restore-target")

	backlog := []wire.Message{
		wire.New("a", nil),
		wire.New("b", nil),
		wire.New("c", nil),
	}
	for _, m := range backlog {
		r.mbox.push(m)
	}

	// Drain and restore, simulating a selective receive pass that
	// matched nothing: all three go back to the head, in order.
	var drained []wire.Message
	for i := 0; i < 3; i++ {
		msg, ok, _ := r.Get(100 * time.Millisecond)
		if !ok {
			t.Fatalf("drain %d timed out", i)
		}
		drained = append(drained, msg)
	}
	r.Restore(drained)

	// A concurrently-arrived message must land behind the restored
	// backlog, not ahead of it.
	r.mbox.push(wire.New("late", nil))

	for i, want := range []string{"a", "b", "c", "late"} {
		msg, ok, _ := r.Get(100 * time.Millisecond)
		if !ok {
			t.Fatalf("replay %d timed out", i)
		}
		if msg.Tag() != want {
			t.Fatalf("replay %d = %q, want %q", i, msg.Tag(), want)
		}
	}
}

func TestMailboxDrainsQueuedMessagesBeforeReportingClosed(t *testing.T) {
	m := newMailbox()
	m.push(wire.New("a", nil))
	m.push(wire.New("b", nil))
	m.closeMailbox()

	for _, want := range []string{"a", "b"} {
		msg, ok, terminated := m.pop(100 * time.Millisecond)
		if terminated {
			t.Fatalf("pop(%q) reported terminated before the queue drained", want)
		}
		if !ok {
			t.Fatalf("pop(%q) timed out", want)
		}
		if msg.Tag() != want {
			t.Fatalf("pop = %q, want %q", msg.Tag(), want)
		}
	}

	if _, ok, terminated := m.pop(100 * time.Millisecond); ok || !terminated {
		t.Fatalf("pop after drain = ok=%v terminated=%v, want ok=false terminated=true", ok, terminated)
	}
}
