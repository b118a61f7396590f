// Package actor implements the runtime's actor kernel (spec §4.3): a
// named mailbox with selective receive, built directly on top of
// internal/transport's Receiver/Sender pipes.
//
// Grounded on the original runtime's mischief/actors/actor.py Actor
// class, whose receive() algorithm (snapshot the starting queue size,
// poll at a fixed interval, defer the caller's timeout until the
// pre-existing backlog has been scanned, restore unmatched messages
// to the head) is reproduced here exactly; the polling/condvar
// machinery itself is grounded on the teacher's goroutine-per-
// connection and context-cancellation idioms (internal/broker/service.go).
package actor

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tenzoki/actorhost/internal/transport"
	"github.com/tenzoki/actorhost/internal/wire"
)

// InboxPollingTimeout is the bounded wait Receive uses on each pop
// attempt while waiting for a matching message or its own deadline,
// per spec §4.3.
const InboxPollingTimeout = 10 * time.Millisecond

// Actor owns one named mailbox. It is not safe for concurrent
// Receive calls from multiple goroutines (the original runtime's
// single-threaded receive loop assumption); Send-side operations
// (via ActorRef) are safe to call from anywhere.
type Actor struct {
	recv *transport.Receiver

	mu       sync.Mutex
	patterns []string // tags currently awaited, for __debug__ introspection
	closed   bool
}

// New creates and binds an actor named name on host, starting its
// transport endpoints. An empty name is replaced with a generated
// token unique enough that collisions within a host are negligible
// (spec §4.3: "allocates a name if none supplied").
func New(name, host string, opts transport.Options) (*Actor, error) {
	if name == "" {
		name = "actor-" + uuid.New().String()
	}
	recv, err := transport.NewReceiver(name, host, opts)
	if err != nil {
		return nil, err
	}
	return &Actor{recv: recv}, nil
}

// Address returns the actor's address.
func (a *Actor) Address() wire.Address { return a.recv.Address() }

// QSize returns the number of messages currently queued.
func (a *Actor) QSize() int { return a.recv.QSize() }

// Receive implements selective receive (spec §4.3): it returns the
// first queued message whose tag is in tags (wire.Wildcard matches
// any tag), scanning oldest-to-newest, within timeout. Messages
// skipped along the way are restored to the mailbox head, in their
// original order, so they keep priority over anything that arrived
// during the call. A negative timeout blocks indefinitely; zero
// performs exactly one non-blocking pass over the backlog that
// existed when Receive was called.
//
// timedOut is true if no match was found within timeout; err is
// non-nil only once the actor's mailbox has been closed
// (wire.ErrMailboxClosed).
func (a *Actor) Receive(tags []string, timeout time.Duration) (msg wire.Message, timedOut bool, err error) {
	a.mu.Lock()
	a.patterns = tags
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.patterns = nil
		a.mu.Unlock()
	}()

	indefinite := timeout < 0
	deadline := time.Now().Add(timeout)

	startingSize := a.recv.QSize()
	scanned := 0
	var processed []wire.Message

	for {
		pollTimeout := InboxPollingTimeout
		if !indefinite && scanned >= startingSize {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				a.recv.Restore(processed)
				return nil, true, nil
			}
			if remaining < pollTimeout {
				pollTimeout = remaining
			}
		}

		got, ok, terminated := a.recv.Get(pollTimeout)
		if terminated {
			a.recv.Restore(processed)
			return nil, false, wire.ErrMailboxClosed
		}
		if !ok {
			continue
		}

		if scanned < startingSize {
			scanned++
		}

		if got.Tag() == wire.TagDebug {
			a.replyDebug(got)
			continue
		}

		if matchesAny(got.Tag(), tags) {
			a.recv.Restore(processed)
			return got, false, nil
		}
		processed = append(processed, got)
	}
}

// matchesAny reports whether tag satisfies one of the selective
// receive patterns: an exact tag match, or wire.Wildcard matching
// anything.
func matchesAny(tag string, patterns []string) bool {
	for _, p := range patterns {
		if p == wire.Wildcard || p == tag {
			return true
		}
	}
	return false
}

// replyDebug answers a __debug__ introspection probe with the
// actor's current queue size and awaited patterns, without disturbing
// the caller's own selective receive (spec: debug tag is intercepted
// transparently, like the transport layer's control frames, but
// needs actor-level state the transport layer does not have).
func (a *Actor) replyDebug(msg wire.Message) {
	addr, ok := decodeReplyAddress(msg.ReplyTo())
	if !ok {
		return
	}

	a.mu.Lock()
	patterns := append([]string{}, a.patterns...)
	a.mu.Unlock()

	reply := wire.New(wire.TagReply, map[string]any{
		"qsize":    a.recv.QSize(),
		"patterns": patterns,
		"address":  a.Address(),
	})

	sender, err := transport.NewSender(addr, true)
	if err != nil {
		return
	}
	defer sender.Close()
	sender.Put(reply)
}

func decodeReplyAddress(v any) (wire.Address, bool) {
	switch t := v.(type) {
	case wire.Address:
		return t, true
	case map[string]any:
		name, _ := t["name"].(string)
		host, _ := t["host"].(string)
		var port int
		switch p := t["port"].(type) {
		case float64:
			port = int(p)
		case int:
			port = p
		}
		if name == "" {
			return wire.Address{}, false
		}
		return wire.Address{Name: name, Host: host, Port: port}, true
	default:
		return wire.Address{}, false
	}
}

// Close shuts the actor's mailbox down, delivering confirmMsg to
// confirmTo once closed, if given.
func (a *Actor) Close(confirmTo *wire.Address, confirmMsg wire.Message) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()
	return a.recv.Close(confirmTo, confirmMsg)
}

// String implements fmt.Stringer for log output.
func (a *Actor) String() string {
	return fmt.Sprintf("Actor(%s)", a.Address())
}
