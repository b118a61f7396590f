// Package actor is the embeddable public surface of the actor host:
// the subset of internal/actor, internal/host, and internal/wire an
// application wires its own actors against, without reaching into
// internal packages directly.
//
// Grounded on the teacher's public/agent package, which plays the
// same role for its BaseAgent/AgentFramework: a stable facade over
// internal machinery meant for other modules to import.
package actor

import (
	"time"

	"github.com/tenzoki/actorhost/internal/actor"
	"github.com/tenzoki/actorhost/internal/config"
	"github.com/tenzoki/actorhost/internal/host"
	"github.com/tenzoki/actorhost/internal/namebroker"
	"github.com/tenzoki/actorhost/internal/transport"
	"github.com/tenzoki/actorhost/internal/wire"
)

// Re-exported types and sentinels so callers never need to import
// the internal packages themselves.
type (
	Actor          = actor.Actor
	Ref            = actor.ActorRef
	MessageBuilder = actor.MessageBuilder
	Message        = wire.Message
	Address        = wire.Address
	Options        = transport.Options
	Registry       = host.Registry
	ProcessHandle  = host.ProcessHandle
	SpawnableConfig = config.SpawnableConfig
)

const (
	Wildcard        = wire.Wildcard
	TagInit         = wire.TagInit
	TagFinishedInit = wire.TagFinishedInit
	TagClosed       = wire.TagClosed
	TagReply        = wire.TagReply
)

var (
	ErrMailboxClosed = wire.ErrMailboxClosed
	ErrSpawnTimeout  = wire.ErrSpawnTimeout
)

// New binds an actor named name on host; it starts no body of its
// own (see RunThreaded for that).
func New(name, host string, opts Options) (*Actor, error) {
	return actor.New(name, host, opts)
}

// NewRef normalizes target (a bare name, an Address, or anything
// Addressable) into a ref, failing if the target does not answer a
// liveness probe.
func NewRef(target any) (*Ref, error) {
	return actor.NewRef(target)
}

// NewMessage builds a Message with the given tag and fields.
func NewMessage(tag string, fields map[string]any) Message {
	return wire.New(tag, fields)
}

// RunThreaded binds name and runs fn as its body in a new goroutine.
func RunThreaded(name, hostAddr string, opts Options, fn func(a *Actor)) (*Actor, error) {
	return host.RunThreaded(name, hostAddr, opts, fn)
}

// SyncCall performs a single request/reply round-trip against target.
func SyncCall(target any, tag string, fields map[string]any, timeout time.Duration) (Message, error) {
	return host.SyncCall(target, tag, fields, timeout)
}

// NewRegistry builds a spawn registry from loaded spawnable
// definitions.
func NewRegistry(spawnables []SpawnableConfig) *Registry {
	return host.NewRegistry(spawnables)
}

// Spawn launches kind as a child process, initializes it with
// initFields, and returns a handle to the running actor.
func Spawn(registry *Registry, hostAddr, brokerHost, kind string, initFields map[string]any) (*ProcessHandle, error) {
	return host.Spawn(registry, hostAddr, brokerHost, kind, initFields)
}

// Bootstrap is the child-process half of Spawn: a spawnable binary's
// main() calls this to join the handshake and obtain its own Actor.
func Bootstrap(name, hostAddr, waitName, waitHost string, waitPort int, onInit func(a *Actor, init Message) error) (*Actor, error) {
	return host.Bootstrap(name, hostAddr, waitName, waitHost, waitPort, onInit)
}

// NewBroker starts a NameBroker service bound to addr (":5555" when
// empty).
func NewBroker(addr string, debug bool) *namebroker.Service {
	return namebroker.NewService(addr, debug)
}

// NewBrokerClient returns a client for the NameBroker on host.
func NewBrokerClient(host string) *namebroker.Client {
	return namebroker.NewClient(host)
}

// LoadConfig loads the actor host's YAML configuration.
func LoadConfig(path string) (*config.Config, error) {
	return config.Load(path)
}
