// Package transport implements the runtime's pipe layer (spec §4.1):
// bidirectional, name-addressed, JSON-framed channels backed by a
// local IPC endpoint (Unix domain socket) and/or a TCP endpoint, with
// the control-frame sub-protocol that makes liveness probing and
// shutdown possible.
//
// Grounded on the teacher's internal/broker/service.go (net.Listener
// accept loop, one goroutine per connection, JSON codec over
// net.Conn, panic-safe reader loops) and internal/client/broker.go
// (the background messageListener reader-goroutine pattern), both
// generalized from a single multiplexed broker connection into one
// push channel per actor, per spec's "Receiver/Sender" pipe model.
package transport

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net"
	"os"
	"sync"
	"time"

	"github.com/tenzoki/actorhost/internal/namebroker"
	"github.com/tenzoki/actorhost/internal/wire"
)

// Options configures a Receiver's bindings.
type Options struct {
	// UseRemote forces binding a TCP endpoint even when IPC is
	// available. TCP is always bound when IPC is unavailable
	// (non-POSIX platforms).
	UseRemote bool

	// StrictRegistration makes a NameBroker registration failure
	// fatal to construction. Default (false) tolerates it.
	StrictRegistration bool

	// Broker is the NameBroker client used to register/unregister
	// the receiver's TCP port. A nil Broker dials the broker on
	// Host with namebroker.NewClient.
	Broker *namebroker.Client
}

// Receiver is the mailbox-side transport endpoint of an actor (spec
// §4.1). One Receiver owns its bound endpoints and exactly one
// background reader task per accepted connection, all funneling into
// one mailbox.
type Receiver struct {
	name string
	host string
	port int

	ipcListener net.Listener
	tcpListener net.Listener
	broker      *namebroker.Client
	registered  bool

	mbox *mailbox

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewReceiver binds name's endpoints and starts its reader task(s).
func NewReceiver(name, host string, opts Options) (*Receiver, error) {
	if host == "" {
		host = "localhost"
	}

	r := &Receiver{
		name: name,
		host: host,
		mbox: newMailbox(),
	}

	if posixIPCSupported() {
		if ln, err := bindIPC(name); err != nil {
			log.Printf("transport: ipc bind for %s failed, continuing TCP-only: %v", name, err)
		} else {
			r.ipcListener = ln
		}
	}

	needTCP := opts.UseRemote || r.ipcListener == nil
	if needTCP {
		ln, port, err := bindEphemeralTCP()
		if err != nil {
			return nil, fmt.Errorf("transport: bind tcp for %s: %w", name, err)
		}
		r.tcpListener = ln
		r.port = port

		broker := opts.Broker
		if broker == nil {
			broker = namebroker.NewClient(host)
		}
		r.broker = broker

		if err := broker.Register(name, port); err != nil {
			if opts.StrictRegistration {
				ln.Close()
				return nil, fmt.Errorf("transport: register %s with broker: %w", name, err)
			}
			log.Printf("transport: register %s with broker failed (tolerated): %v", name, err)
		} else {
			r.registered = true
		}
	}

	if r.ipcListener != nil {
		r.wg.Add(1)
		go r.acceptLoop(r.ipcListener)
	}
	if r.tcpListener != nil {
		r.wg.Add(1)
		go r.acceptLoop(r.tcpListener)
	}

	return r, nil
}

func bindIPC(name string) (net.Listener, error) {
	path, err := IPCPath(name)
	if err != nil {
		return nil, err
	}
	// A Receiver binding a previously used name removes the stale
	// socket left behind by a crashed process (spec §6).
	_ = os.Remove(path)
	return net.Listen("unix", path)
}

func bindEphemeralTCP() (net.Listener, int, error) {
	const attempts = 100
	for i := 0; i < attempts; i++ {
		port := MinPort + rand.Intn(MaxPort-MinPort+1)
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err == nil {
			return ln, port, nil
		}
	}
	return nil, 0, fmt.Errorf("no free port in [%d, %d] after %d attempts", MinPort, MaxPort, attempts)
}

// Address returns the receiver's address.
func (r *Receiver) Address() wire.Address {
	return wire.Address{Name: r.name, Host: r.host, Port: r.port}
}

// QSize returns the number of messages currently queued in the
// mailbox.
func (r *Receiver) QSize() int {
	return r.mbox.size()
}

// Get pops the next mailbox message, blocking up to timeout. ok is
// false if the wait elapsed with nothing available; terminated is
// true once the receiver has been closed and drained, meaning no
// further message will ever arrive (spec: MailboxClosed).
func (r *Receiver) Get(timeout time.Duration) (msg wire.Message, ok bool, terminated bool) {
	return r.mbox.pop(timeout)
}

// Restore pushes msgs back to the head of the mailbox, in original
// order, ahead of anything already queued. Used by selective receive
// to put back unmatched messages (spec §4.3 step 4).
func (r *Receiver) Restore(msgs []wire.Message) {
	r.mbox.pushFront(msgs)
}

// acceptLoop accepts connections on ln until it is closed, spawning a
// connReader goroutine per connection.
func (r *Receiver) acceptLoop(ln net.Listener) {
	defer r.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			return // listener closed
		}
		r.wg.Add(1)
		go r.connReader(conn)
	}
}

// connReader reads frames from one connection and dispatches them:
// control frames are intercepted and answered inline, everything else
// is enqueued to the mailbox. A malformed frame is logged and
// dropped; the loop keeps running (spec §4.1's reader-loop table).
func (r *Receiver) connReader(conn net.Conn) {
	defer r.wg.Done()
	defer conn.Close()

	// Frames are split on newlines first and decoded one line at a time,
	// so a line that fails to decode is dropped without losing the
	// frames that follow it on the same connection.
	rd := bufio.NewReader(conn)
	for {
		line, readErr := rd.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			msg, err := wire.NewDecoder(bytes.NewReader(line)).Decode()
			if err != nil {
				log.Printf("transport: %s: frame decode error (dropped): %v", r.name, err)
			} else if !r.handleControl(msg) && msg.Valid() {
				r.mbox.push(msg) // invalid (untagged) frames never enter the mailbox
			}
		}
		if readErr != nil {
			if !errors.Is(readErr, io.EOF) {
				log.Printf("transport: %s: connection read error: %v", r.name, readErr)
			}
			return
		}
	}
}

// handleControl intercepts reserved control tags per spec §4.1's
// table. It returns true if msg was a control frame (and therefore
// must not be enqueued).
func (r *Receiver) handleControl(msg wire.Message) bool {
	switch msg.Tag() {
	case wire.TagQuit:
		r.onQuit(msg)
		return true
	case wire.TagPing:
		r.replyTo(msg, wire.New(wire.TagPong, nil))
		return true
	case wire.TagAddress:
		r.replyTo(msg, wire.New(wire.TagReply, map[string]any{
			"address": r.Address(),
			"pid":     os.Getpid(),
		}))
		return true
	case wire.TagLowLevelPing:
		r.lowLevelPong(msg)
		return true
	default:
		return false
	}
}

// replyTo sends msg to the Address carried in original's reply_to,
// using the full Sender machinery (including its own liveness
// probe) — this is for control replies aimed at a real, already
// running Receiver (e.g. an is_alive() listener actor).
func (r *Receiver) replyTo(original wire.Message, reply wire.Message) {
	addr, ok := decodeAddress(original.ReplyTo())
	if !ok {
		return
	}
	sender, err := NewSender(addr, true)
	if err != nil {
		log.Printf("transport: %s: cannot reply to %s: %v", r.name, addr, err)
		return
	}
	defer sender.Close()
	if err := sender.Put(reply); err != nil {
		log.Printf("transport: %s: reply to %s failed: %v", r.name, addr, err)
	}
}

// lowLevelPong answers a __low_level_ping__ by opening a transient,
// one-shot connection to the bare "host:port" URI carried in
// reply_to and pushing a pong. This bypasses normal addressing
// entirely (no liveness probe of its own) since it is itself the
// reply to a liveness probe — probing it would recurse forever.
func (r *Receiver) lowLevelPong(msg wire.Message) {
	uri, ok := msg.ReplyTo().(string)
	if !ok || uri == "" {
		return
	}
	conn, err := net.DialTimeout("tcp", uri, 1*time.Second)
	if err != nil {
		return
	}
	defer conn.Close()
	_ = wire.NewEncoder(conn).Encode(wire.New(wire.TagPong, nil))
}

// onQuit implements the Receiver's close sequence from the
// perspective of the reader loop that observes the __quit__ frame:
// endpoints are closed, the terminator sentinel is enqueued, a
// confirmation is sent (if requested) only after endpoints close, and
// the receiver unregisters from the broker.
func (r *Receiver) onQuit(msg wire.Message) {
	r.closeOnce.Do(func() {
		if r.ipcListener != nil {
			r.ipcListener.Close()
		}
		if r.tcpListener != nil {
			r.tcpListener.Close()
		}
		r.mbox.closeMailbox()

		if r.registered && r.broker != nil {
			if err := r.broker.Unregister(r.name); err != nil {
				log.Printf("transport: %s: unregister from broker failed: %v", r.name, err)
			}
		}

		if addr, ok := decodeAddress(msg["confirm_to"]); ok {
			confirmMsg, _ := msg["confirm_msg"].(wire.Message)
			if confirmMsg == nil {
				if raw, ok := msg["confirm_msg"].(map[string]any); ok {
					confirmMsg = wire.Message(raw)
				}
			}
			if sender, err := NewSender(addr, true); err == nil {
				sender.Put(confirmMsg)
				sender.Close()
			}
		}
	})
}

// Close runs the same shutdown sequence a received __quit__ frame
// triggers, by building that frame and passing it to onQuit directly
// rather than sending it over a connection. confirmTo/confirmMsg are
// delivered after the endpoints are closed.
func (r *Receiver) Close(confirmTo *wire.Address, confirmMsg wire.Message) error {
	quit := wire.New(wire.TagQuit, nil)
	if confirmTo != nil {
		quit["confirm_to"] = *confirmTo
		quit["confirm_msg"] = confirmMsg
	}
	r.onQuit(quit)
	return nil
}

func decodeAddress(v any) (wire.Address, bool) {
	switch a := v.(type) {
	case wire.Address:
		return a, true
	case map[string]any:
		name, _ := a["name"].(string)
		host, _ := a["host"].(string)
		port := 0
		switch p := a["port"].(type) {
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
