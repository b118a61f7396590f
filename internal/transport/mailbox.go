package transport

import (
	"sync"
	"time"

	"github.com/tenzoki/actorhost/internal/wire"
)

// mailbox is the ordered FIFO of messages owned by exactly one
// Receiver. It supports pushing to the back (ordinary arrival),
// pushing a batch back to the front (selective receive's restore
// step, spec §4.3 step 4), and a blocking pop with a bounded wait.
//
// Grounded on the original runtime's inbox being a plain queue.Queue
// plus a terminator sentinel; reimplemented here as a deque behind a
// sync.Cond so restore-to-head is possible without losing FIFO order
// among the restored messages.
type mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []wire.Message
	closed bool
}

func newMailbox() *mailbox {
	m := &mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// push enqueues msg at the back (ordinary arrival order).
func (m *mailbox) push(msg wire.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.items = append(m.items, msg)
	m.cond.Broadcast()
}

// pushFront restores msgs to the head, in their original relative
// order, ahead of anything already queued (spec: unmatched messages
// keep priority over messages that arrived during the receive call).
func (m *mailbox) pushFront(msgs []wire.Message) {
	if len(msgs) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(append([]wire.Message{}, msgs...), m.items...)
	m.cond.Broadcast()
}

// size returns the number of messages currently queued.
func (m *mailbox) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// closeMailbox marks the mailbox as terminated: later pushes are
// ignored, messages already queued are still returned by pop, and once
// the queue is empty any blocked or future pop returns (nil, false,
// true) — the terminator condition.
func (m *mailbox) closeMailbox() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.cond.Broadcast()
}

// pop waits up to timeout for a message at the front of the queue.
// Returns (msg, true, false) on success, (nil, false, false) if the
// wait elapsed with nothing available, and (nil, false, true) if the
// mailbox has been closed (the terminator sentinel).
func (m *mailbox) pop(timeout time.Duration) (wire.Message, bool, bool) {
	deadline := time.Now().Add(timeout)

	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		// Drain whatever is still queued before honoring a close: the
		// mailbox is not flushed on close (spec), so messages enqueued
		// before closeMailbox() must still reach the executor's final
		// receive calls.
		if len(m.items) > 0 {
			msg := m.items[0]
			m.items = m.items[1:]
			return msg, true, false
		}
		if m.closed {
			return nil, false, true
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, false, false
		}
		waitOnCond(m.cond, remaining)
	}
}

// waitOnCond blocks on cond.Wait but bounded to at most d, by racing
// a timer goroutine that wakes every waiter. sync.Cond has no native
// timeout, so this is the standard workaround: a helper goroutine
// broadcasts once the timer fires, the loop in pop() re-checks state
// and timeout on every wake.
func waitOnCond(cond *sync.Cond, d time.Duration) {
	timer := time.AfterFunc(d, cond.Broadcast)
	defer timer.Stop()
	cond.Wait()
}
