package transport

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/tenzoki/actorhost/internal/namebroker"
	"github.com/tenzoki/actorhost/internal/wire"
)

// lowLevelPingTimeout bounds how long a Sender waits for a pong on its
// ephemeral reply listener while establishing liveness (spec §4.1: the
// low-level ping probe used before any higher-level addressing
// exists).
const lowLevelPingTimeout = 1 * time.Second

// Sender is the write-side transport endpoint addressed at one
// Receiver. Constructing a Sender dials the target (IPC if it is
// local and POSIX IPC is available, TCP otherwise, resolving the port
// through the NameBroker when needed) and, unless probe is false,
// performs a liveness probe; a target that never answers the probe
// raises ChannelDownError at construction, never later on Put (spec
// §7).
type Sender struct {
	target wire.Address
	conn   net.Conn
	enc    *wire.Encoder

	mu     sync.Mutex
	closed bool
}

// NewSender dials target. probe controls whether the low-level
// liveness handshake runs before the sender is returned; it should be
// true for ordinary actor-to-actor sends and can be set false for
// internal control replies that already know the peer is alive (e.g.
// a reply into a connection that just spoke to us).
func NewSender(target wire.Address, probe bool) (*Sender, error) {
	conn, err := dialTarget(target)
	if err != nil {
		return nil, &wire.ChannelDownError{Target: target, Reason: err}
	}

	s := &Sender{target: target, conn: conn, enc: wire.NewEncoder(conn)}

	if probe {
		if err := s.lowLevelPing(); err != nil {
			conn.Close()
			return nil, &wire.ChannelDownError{Target: target, Reason: err}
		}
	}

	return s, nil
}

// dialTarget picks IPC or TCP for target, resolving its TCP port
// through the NameBroker when target.Port is not already known.
func dialTarget(target wire.Address) (net.Conn, error) {
	if IsLocalHost(target.Host) && posixIPCSupported() {
		path, err := IPCPath(target.Name)
		if err == nil {
			if conn, err := net.DialTimeout("unix", path, lowLevelPingTimeout); err == nil {
				return conn, nil
			}
		}
		// Fall through to TCP: the name may be registered remotely or
		// its IPC socket may be gone while its TCP endpoint lives on.
	}

	port := target.Port
	if port == 0 {
		broker := namebroker.NewClient(target.Host)
		resolved, ok, err := broker.Get(target.Name)
		if err != nil {
			return nil, fmt.Errorf("transport: resolve %s via broker: %w", target.Name, err)
		}
		if !ok {
			return nil, fmt.Errorf("transport: %s is not registered with the broker", target.Name)
		}
		port = resolved
	}

	host := target.Host
	if host == "" {
		host = "localhost"
	}
	return net.DialTimeout("tcp", fmt.Sprintf("%s:%d", host, port), lowLevelPingTimeout)
}

// lowLevelPing binds a transient local listener, sends
// __low_level_ping__ with that listener's address as a bare
// "host:port" reply_to, and waits for a single pong connection. This
// mirrors the original runtime's use of a throwaway reply socket to
// probe liveness before any actor-level addressing is involved.
func (s *Sender) lowLevelPing() error {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		return fmt.Errorf("bind reply listener: %w", err)
	}
	defer ln.Close()

	localIP := LocalHostAs(s.target.Host)
	if localIP == "" {
		localIP = "127.0.0.1"
	}
	_, port, _ := net.SplitHostPort(ln.Addr().String())
	replyTo := net.JoinHostPort(localIP, port)

	ping := wire.New(wire.TagLowLevelPing, nil)
	ping["reply_to"] = replyTo
	if err := s.enc.Encode(ping); err != nil {
		return fmt.Errorf("send low level ping: %w", err)
	}

	ln.(*net.TCPListener).SetDeadline(time.Now().Add(lowLevelPingTimeout))
	conn, err := ln.Accept()
	if err != nil {
		return fmt.Errorf("no pong within %s: %w", lowLevelPingTimeout, err)
	}
	defer conn.Close()

	pong, err := wire.NewDecoder(conn).Decode()
	if err != nil {
		return fmt.Errorf("decode pong: %w", err)
	}
	if pong.Tag() != wire.TagPong {
		return fmt.Errorf("expected pong, got tag %q", pong.Tag())
	}
	return nil
}

// Put sends msg to the target.
func (s *Sender) Put(msg wire.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("transport: send on closed sender to %s", s.target)
	}
	return s.enc.Encode(msg)
}

// Close releases the underlying connection. It does not signal the
// target's Receiver to shut down; use CloseReceiver for that.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}

// CloseReceiver sends a __quit__ frame to the target, asking its
// Receiver to shut down, optionally requesting a confirmation message
// be delivered to confirmTo once the target has finished closing
// (spec §4.1's "close with confirmation" handshake).
func (s *Sender) CloseReceiver(confirmTo *wire.Address, confirmMsg wire.Message) error {
	quit := wire.New(wire.TagQuit, nil)
	if confirmTo != nil {
		quit["confirm_to"] = *confirmTo
		quit["confirm_msg"] = confirmMsg
	}
	return s.Put(quit)
}
