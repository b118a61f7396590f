package actor

import (
	"testing"
	"time"

	"github.com/tenzoki/actorhost/internal/transport"
	"github.com/tenzoki/actorhost/internal/wire"
)

func newTestActor(t *testing.T, name string) *Actor {
	t.Helper()
	a, err := New(name, "localhost", transport.Options{})
	if err != nil {
		t.Fatalf("New(%s): %v", name, err)
	}
	t.Cleanup(func() { a.Close(nil, nil) })
	return a
}

func TestNewGeneratesNameWhenNoneSupplied(t *testing.T) {
	a := newTestActor(t, "")
	if a.Address().Name == "" {
		t.Fatal("expected a generated name, got empty string")
	}

	b := newTestActor(t, "")
	if a.Address().Name == b.Address().Name {
		t.Fatalf("expected two generated names to differ, both were %q", a.Address().Name)
	}
}

func TestSendReceiveRoundTrip(t *testing.T) {
	a := newTestActor(t, "echo-target")
	ref, err := NewRef(a.Address())
	if err != nil {
		t.Fatalf("NewRef: %v", err)
	}
	if err := ref.Send("greet", map[string]any{"who": "world"}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	msg, timedOut, err := a.Receive([]string{"greet"}, 2*time.Second)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if timedOut {
		t.Fatal("unexpected timeout")
	}
	if msg["who"] != "world" {
		t.Fatalf("msg = %+v, want who=world", msg)
	}
}

func TestSelectiveReceiveRestoresUnmatchedInOrder(t *testing.T) {
	a := newTestActor(t, "selective-target")
	ref, err := NewRef(a.Address())
	if err != nil {
		t.Fatalf("NewRef: %v", err)
	}

	// Preload A, B, C, A. A selective receive for "b" must skip the
	// first A, find B, and restore A ahead of C and the second A so
	// a subsequent wildcard receive observes A, C, A in that order.
	for _, tag := range []string{"a", "b", "c", "a"} {
		if err := ref.Send(tag, map[string]any{"tag": tag}); err != nil {
			t.Fatalf("preload Send(%s): %v", tag, err)
		}
	}
	time.Sleep(50 * time.Millisecond) // let all four frames land in the mailbox

	msg, timedOut, err := a.Receive([]string{"b"}, 2*time.Second)
	if err != nil || timedOut {
		t.Fatalf("Receive(b) = %v, timedOut=%v, err=%v", msg, timedOut, err)
	}
	if msg.Tag() != "b" {
		t.Fatalf("got tag %q, want b", msg.Tag())
	}

	for _, want := range []string{"a", "c", "a"} {
		msg, timedOut, err := a.Receive([]string{wire.Wildcard}, 2*time.Second)
		if err != nil || timedOut {
			t.Fatalf("Receive(_) = %v, timedOut=%v, err=%v", msg, timedOut, err)
		}
		if msg.Tag() != want {
			t.Fatalf("got tag %q, want %q", msg.Tag(), want)
		}
	}
}

func TestReceiveTimesOutWhenNothingMatches(t *testing.T) {
	a := newTestActor(t, "timeout-target")
	start := time.Now()
	_, timedOut, err := a.Receive([]string{"never-sent"}, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !timedOut {
		t.Fatal("expected timeout")
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("returned too early: %s", elapsed)
	}
}

func TestReceiveReturnsMailboxClosedAfterClose(t *testing.T) {
	a, err := New("closing-target", "localhost", transport.Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a.Close(nil, nil)

	_, _, err = a.Receive([]string{wire.Wildcard}, 2*time.Second)
	if err != wire.ErrMailboxClosed {
		t.Fatalf("err = %v, want ErrMailboxClosed", err)
	}
}

func TestReceiveDrainsBacklogQueuedBeforeClose(t *testing.T) {
	a, err := New("closing-with-backlog", "localhost", transport.Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ref, err := NewRef(a.Address())
	if err != nil {
		t.Fatalf("NewRef: %v", err)
	}
	if err := ref.Send("leftover", nil); err != nil {
		t.Fatalf("Send: %v", err)
	}
	time.Sleep(50 * time.Millisecond) // let the frame land in the mailbox

	a.Close(nil, nil)

	// The message queued before Close must still be delivered: close
	// stops the reader but does not flush the mailbox.
	msg, timedOut, err := a.Receive([]string{wire.Wildcard}, 2*time.Second)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if timedOut {
		t.Fatal("expected the pre-close backlog message, got timeout")
	}
	if msg.Tag() != "leftover" {
		t.Fatalf("tag = %q, want leftover", msg.Tag())
	}

	// Only once the backlog is drained does the mailbox report closed.
	_, _, err = a.Receive([]string{wire.Wildcard}, 2*time.Second)
	if err != wire.ErrMailboxClosed {
		t.Fatalf("err = %v, want ErrMailboxClosed", err)
	}
}

func TestRefIsAliveTransitions(t *testing.T) {
	a := newTestActor(t, "liveness-target")
	ref, err := NewRef(a.Address())
	if err != nil {
		t.Fatalf("NewRef: %v", err)
	}
	if !ref.IsAlive() {
		t.Fatal("expected target to be alive")
	}

	a.Close(nil, nil)
	time.Sleep(50 * time.Millisecond)

	if ref.IsAlive() {
		t.Fatal("expected target to be dead after Close")
	}
}

func TestRefSyncRoundTrip(t *testing.T) {
	a := newTestActor(t, "sync-target")
	ref, err := NewRef(a.Address())
	if err != nil {
		t.Fatalf("NewRef: %v", err)
	}

	go func() {
		msg, _, err := a.Receive([]string{"ask"}, 2*time.Second)
		if err != nil {
			return
		}
		replyAddr, ok := decodeReplyAddress(msg.ReplyTo())
		if !ok {
			return
		}
		replyRef, err := NewRef(replyAddr)
		if err != nil {
			return
		}
		replyRef.Send(wire.TagReply, map[string]any{"answer": 42})
	}()

	reply, err := ref.Sync("ask", nil, 2*time.Second)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if got := int(reply["answer"].(float64)); got != 42 {
		t.Fatalf("answer = %d, want 42", got)
	}
}

func TestCloseActorDeliversConfirmation(t *testing.T) {
	a := newTestActor(t, "close-target")
	listener := newTestActor(t, "close-confirm-listener")

	ref, err := NewRef(a.Address())
	if err != nil {
		t.Fatalf("NewRef: %v", err)
	}
	confirmAddr := listener.Address()
	if err := ref.CloseActor(&confirmAddr, wire.New(wire.TagClosed, nil)); err != nil {
		t.Fatalf("CloseActor: %v", err)
	}

	msg, timedOut, err := listener.Receive([]string{wire.TagClosed}, 2*time.Second)
	if err != nil || timedOut {
		t.Fatalf("confirmation receive failed: msg=%v timedOut=%v err=%v", msg, timedOut, err)
	}
}
