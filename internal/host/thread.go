// Package host implements the runtime's two actor hosting models
// (spec §4.4): thread-hosted, where an actor runs as a goroutine
// inside the current process, and process-hosted, where it runs as a
// freshly launched child OS process reached entirely through the
// transport layer.
//
// Grounded on the teacher's public/agent/framework.go Run() lifecycle
// (initialize, connect, hand off to the actor's own loop, wait for
// shutdown) for the thread-hosted model, and the original runtime's
// mischief/actors/process_actor.py (WaitActor / ok / init /
// finished_init handshake) for the process-hosted model.
package host

import (
	"fmt"
	"time"

	"github.com/tenzoki/actorhost/internal/actor"
	"github.com/tenzoki/actorhost/internal/transport"
	"github.com/tenzoki/actorhost/internal/wire"
)

// ActorFunc is the body of a thread-hosted actor: it owns a *and
// drives* its own receive loop against a, returning when it wants to
// shut down.
type ActorFunc func(a *actor.Actor)

// RunThreaded binds an actor named name on host and runs fn as its
// body in a new goroutine, returning immediately with the bound
// actor. The caller is responsible for eventually calling Close on
// the returned actor if fn does not close it itself.
func RunThreaded(name, host string, opts transport.Options, fn ActorFunc) (*actor.Actor, error) {
	a, err := actor.New(name, host, opts)
	if err != nil {
		return nil, fmt.Errorf("host: run threaded actor %s: %w", name, err)
	}
	go fn(a)
	return a, nil
}

// SyncCall is the transient-actor request/reply pattern used for a
// one-off synchronous call against any addressable target: it opens
// an ActorRef, performs one Sync round-trip, and returns the reply.
// This does not itself spin up a thread-hosted actor; ActorRef.Sync
// already creates and tears down its own transient reply listener
// per call (spec §4.1/§4.3), so SyncCall is a thin, host-level
// convenience wrapper over that.
func SyncCall(target any, tag string, fields map[string]any, timeout time.Duration) (wire.Message, error) {
	ref, err := actor.NewRef(target)
	if err != nil {
		return nil, err
	}
	return ref.Sync(tag, fields, timeout)
}
