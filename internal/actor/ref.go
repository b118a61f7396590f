package actor

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/tenzoki/actorhost/internal/transport"
	"github.com/tenzoki/actorhost/internal/wire"
)

// ActorRef is a location-transparent handle to an actor, local or
// remote. It normalizes whatever it is constructed from (a bare
// name, a wire.Address, or anything Addressable) at construction
// time, exactly as the original runtime's ActorRef does, and opens a
// fresh Sender per operation — pipes are cheap, short-lived
// connections by design (spec §4.1).
type ActorRef struct {
	addr wire.Address
}

// NewRef normalizes target into an ActorRef and probes it once with a
// low-level ping; a target that does not answer fails construction
// with a *wire.ChannelDownError.
func NewRef(target any) (*ActorRef, error) {
	addr, err := wire.ToAddress(target)
	if err != nil {
		return nil, err
	}
	sender, err := transport.NewSender(addr, true)
	if err != nil {
		return nil, err
	}
	sender.Close()
	return &ActorRef{addr: addr}, nil
}

// Address returns the ref's target address, satisfying
// wire.Addressable.
func (r *ActorRef) Address() wire.Address { return r.addr }

func (r *ActorRef) String() string { return r.addr.String() }

// Send fires tag with fields at the target and does not wait for a
// reply.
func (r *ActorRef) Send(tag string, fields map[string]any) error {
	sender, err := transport.NewSender(r.addr, true)
	if err != nil {
		return err
	}
	defer sender.Close()
	return sender.Put(wire.New(tag, fields))
}

// Tag starts a fluent MessageBuilder for this ref, mirroring the
// original runtime's ref.foo(x=1) attribute-sugar with a typed
// builder instead (spec REDESIGN FLAGS).
func (r *ActorRef) Tag(tag string) *MessageBuilder {
	return &MessageBuilder{ref: r, tag: tag, fields: map[string]any{}}
}

// MessageBuilder accumulates fields for one outgoing message before
// Send or Sync dispatches it.
type MessageBuilder struct {
	ref    *ActorRef
	tag    string
	fields map[string]any
}

// With sets field key to value and returns the builder for chaining.
func (b *MessageBuilder) With(key string, value any) *MessageBuilder {
	b.fields[key] = value
	return b
}

// Send dispatches the accumulated message without waiting for a
// reply.
func (b *MessageBuilder) Send() error {
	return b.ref.Send(b.tag, b.fields)
}

// Sync dispatches the accumulated message and blocks for a single
// reply within timeout.
func (b *MessageBuilder) Sync(timeout time.Duration) (wire.Message, error) {
	return b.ref.Sync(b.tag, b.fields, timeout)
}

// Sync sends tag/fields to the target with a transient reply address
// and blocks for exactly one reply within timeout, mirroring the
// original runtime's _ReplyWaiter pattern.
func (r *ActorRef) Sync(tag string, fields map[string]any, timeout time.Duration) (wire.Message, error) {
	waiter, err := transport.NewReceiver(transientName("sync"), r.addr.Host, transport.Options{})
	if err != nil {
		return nil, fmt.Errorf("actor: sync reply listener: %w", err)
	}
	defer waiter.Close(nil, nil)

	sender, err := transport.NewSender(r.addr, true)
	if err != nil {
		return nil, err
	}
	replyAddr := waiter.Address()
	replyAddr.Host = r.localReplyHost()
	msg := wire.New(tag, fields).WithReplyTo(replyAddr)
	if err := sender.Put(msg); err != nil {
		sender.Close()
		return nil, err
	}
	sender.Close()

	reply, ok, terminated := waiter.Get(timeout)
	if terminated {
		return nil, wire.ErrMailboxClosed
	}
	if !ok {
		return nil, fmt.Errorf("actor: sync call to %s timed out after %s", r.addr, timeout)
	}
	return reply, nil
}

// IsAlive reports whether the target answers a liveness probe. It
// never returns an error: a dead or unreachable target simply
// reports false.
func (r *ActorRef) IsAlive() bool {
	sender, err := transport.NewSender(r.addr, true)
	if err != nil {
		return false
	}
	sender.Close()
	return true
}

// FullAddress resolves the ref's address against the target itself,
// filling in host/port for a ref constructed from a bare name, and
// reports the target's OS process id. It uses the __address__ control
// query (spec §4.1), which the target's Receiver answers inline
// without ever touching its mailbox. Carried over from
// original_source's actor.py full_address() (spec SPEC_FULL §11).
func (r *ActorRef) FullAddress(timeout time.Duration) (wire.Address, int, error) {
	waiter, err := transport.NewReceiver(transientName("addr"), r.addr.Host, transport.Options{})
	if err != nil {
		return wire.Address{}, 0, err
	}
	defer waiter.Close(nil, nil)

	sender, err := transport.NewSender(r.addr, true)
	if err != nil {
		return wire.Address{}, 0, err
	}
	replyAddr := waiter.Address()
	replyAddr.Host = r.localReplyHost()
	probe := wire.New(wire.TagAddress, nil).WithReplyTo(replyAddr)
	if err := sender.Put(probe); err != nil {
		sender.Close()
		return wire.Address{}, 0, err
	}
	sender.Close()

	reply, ok, terminated := waiter.Get(timeout)
	if terminated || !ok {
		return wire.Address{}, 0, fmt.Errorf("actor: %s did not answer address probe", r.addr)
	}
	addr, ok := decodeReplyAddress(reply["address"])
	if !ok {
		return wire.Address{}, 0, fmt.Errorf("actor: malformed address probe reply from %s", r.addr)
	}
	pid, _ := reply["pid"].(float64)
	return addr, int(pid), nil
}

// DebugPatterns returns the tags the target's Receive call is
// currently waiting on, and its queue depth, via the __debug__
// introspection probe.
func (r *ActorRef) DebugPatterns(timeout time.Duration) (patterns []string, qsize int, err error) {
	waiter, err := transport.NewReceiver(transientName("debug"), r.addr.Host, transport.Options{})
	if err != nil {
		return nil, 0, err
	}
	defer waiter.Close(nil, nil)

	sender, err := transport.NewSender(r.addr, true)
	if err != nil {
		return nil, 0, err
	}
	replyAddr := waiter.Address()
	replyAddr.Host = r.localReplyHost()
	probe := wire.New(wire.TagDebug, nil).WithReplyTo(replyAddr)
	if err := sender.Put(probe); err != nil {
		sender.Close()
		return nil, 0, err
	}
	sender.Close()

	reply, ok, terminated := waiter.Get(timeout)
	if terminated || !ok {
		return nil, 0, fmt.Errorf("actor: %s did not answer debug probe", r.addr)
	}
	if raw, ok := reply["patterns"].([]any); ok {
		for _, p := range raw {
			if s, ok := p.(string); ok {
				patterns = append(patterns, s)
			}
		}
	} else if raw, ok := reply["patterns"].([]string); ok {
		patterns = raw
	}
	if n, ok := reply["qsize"].(float64); ok {
		qsize = int(n)
	}
	return patterns, qsize, nil
}

// CloseActor asks the target to shut down, optionally requesting a
// confirmation message be delivered to confirmTo.
func (r *ActorRef) CloseActor(confirmTo *wire.Address, confirmMsg wire.Message) error {
	sender, err := transport.NewSender(r.addr, true)
	if err != nil {
		return err
	}
	defer sender.Close()
	return sender.CloseReceiver(confirmTo, confirmMsg)
}

var transientSeq int64

// transientName mints a short-lived unique actor name for a
// throwaway reply listener, mirroring the original runtime's
// gen_name() used for its _ReplyWaiter and _ListenerActor helpers.
func transientName(purpose string) string {
	n := atomic.AddInt64(&transientSeq, 1)
	return fmt.Sprintf("__%s_%d_%d__", purpose, time.Now().UnixNano(), n)
}

// localReplyHost returns the host the target should use to dial this
// ref's transient reply listeners back, mirroring
// transport.Sender.lowLevelPing's use of LocalHostAs: a reply_to
// naming the target's own host (rather than the caller's) makes the
// target try to dial itself, which hangs until the caller's timeout.
func (r *ActorRef) localReplyHost() string {
	if h := transport.LocalHostAs(r.addr.Host); h != "" {
		return h
	}
	return "127.0.0.1"
}
