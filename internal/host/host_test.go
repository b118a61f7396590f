package host

import (
	"testing"
	"time"

	"github.com/tenzoki/actorhost/internal/actor"
	"github.com/tenzoki/actorhost/internal/transport"
	"github.com/tenzoki/actorhost/internal/wire"
)

func TestRunThreadedEchoesOneMessage(t *testing.T) {
	done := make(chan wire.Message, 1)
	a, err := RunThreaded("thread-echo", "localhost", transport.Options{}, func(a *actor.Actor) {
		msg, timedOut, err := a.Receive([]string{"ping"}, 2*time.Second)
		if err == nil && !timedOut {
			done <- msg
		}
		a.Close(nil, nil)
	})
	if err != nil {
		t.Fatalf("RunThreaded: %v", err)
	}

	ref, err := actor.NewRef(a.Address())
	if err != nil {
		t.Fatalf("NewRef: %v", err)
	}
	if err := ref.Send("ping", map[string]any{"n": 1}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case msg := <-done:
		if msg.Tag() != "ping" {
			t.Fatalf("tag = %q, want ping", msg.Tag())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("threaded actor never received the message")
	}
}

func TestSyncCallAgainstThreadedActor(t *testing.T) {
	a, err := RunThreaded("thread-sync", "localhost", transport.Options{}, func(a *actor.Actor) {
		for {
			msg, timedOut, err := a.Receive([]string{"ask"}, 2*time.Second)
			if err != nil {
				return
			}
			if timedOut {
				continue
			}
			replyAddr, ok := msg.ReplyTo().(wire.Address)
			if !ok {
				if raw, ok := msg.ReplyTo().(map[string]any); ok {
					name, _ := raw["name"].(string)
					host, _ := raw["host"].(string)
					port := 0
					if p, ok := raw["port"].(float64); ok {
						port = int(p)
					}
					replyAddr = wire.Address{Name: name, Host: host, Port: port}
				}
			}
			replyRef, err := actor.NewRef(replyAddr)
			if err != nil {
				continue
			}
			replyRef.Send(wire.TagReply, map[string]any{"answer": "pong"})
			return
		}
	})
	if err != nil {
		t.Fatalf("RunThreaded: %v", err)
	}

	reply, err := SyncCall(a.Address(), "ask", nil, 2*time.Second)
	if err != nil {
		t.Fatalf("SyncCall: %v", err)
	}
	if reply["answer"] != "pong" {
		t.Fatalf("reply = %+v, want answer=pong", reply)
	}
}

func TestRegistryResolvesAndRejectsUnknownKinds(t *testing.T) {
	r := NewRegistry(nil)
	r.Register("worker", "/bin/true", "test worker")

	path, err := r.Binary("worker")
	if err != nil || path != "/bin/true" {
		t.Fatalf("Binary(worker) = (%q, %v), want (/bin/true, nil)", path, err)
	}

	if _, err := r.Binary("ghost"); err == nil {
		t.Fatal("expected error resolving an unregistered kind")
	}
}

func TestSpawnAdoptsExistingActorWithRequestedName(t *testing.T) {
	existing, err := actor.New("adopt-me", "localhost", transport.Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { existing.Close(nil, nil) })

	// No spawnable is registered under this kind; if Spawn tried to
	// launch a process it would fail resolving the binary. Adoption
	// must happen before that lookup.
	handle, err := Spawn(NewRegistry(nil), "localhost", "localhost", "unregistered-kind",
		map[string]any{"name": "adopt-me"})
	if err != nil {
		t.Fatalf("Spawn (adopt path): %v", err)
	}
	t.Cleanup(func() { handle.Close() })

	if handle.Address().Name != "adopt-me" {
		t.Fatalf("handle address = %s, want name adopt-me", handle.Address())
	}
}
