package host

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tenzoki/actorhost/internal/actor"
	"github.com/tenzoki/actorhost/internal/namebroker"
	"github.com/tenzoki/actorhost/internal/transport"
	"github.com/tenzoki/actorhost/internal/wire"
)

// SpawnTimeout bounds both legs of the process-spawn handshake: the
// child's "ok" after launch, and its "finished_init" after receiving
// init (spec §4.4, §7).
const SpawnTimeout = 5 * time.Second

// Flag names a spawned child parses out of its own argv to rejoin
// the handshake. A spawnable binary's main() is expected to read
// these via the flag package and call Bootstrap.
const (
	FlagName     = "actor-name"
	FlagHost     = "actor-host"
	FlagWaitName = "actor-wait-name"
	FlagWaitHost = "actor-wait-host"
	FlagWaitPort = "actor-wait-port"
)

// ProcessHandle is the scoped resource a successful Spawn returns: it
// owns the child OS process and an ActorRef to the actor it hosts.
// Acquire/release is uniform with every other resource in the
// runtime (spec §5): construction succeeds only once the child is
// fully initialized, and Close tears both down.
type ProcessHandle struct {
	cmd  *exec.Cmd
	ref  *actor.ActorRef
	addr wire.Address

	mu     sync.Mutex
	closed bool
}

// Address returns the spawned actor's address.
func (h *ProcessHandle) Address() wire.Address { return h.addr }

// Ref returns an ActorRef to the spawned actor.
func (h *ProcessHandle) Ref() *actor.ActorRef { return h.ref }

// Close asks the spawned actor to shut down and waits for its process
// to exit, killing it if it does not exit promptly. A handle adopted
// from an already-running actor via the name-collision path (cmd ==
// nil) has no process of its own to wait on or kill: Close only asks
// the actor to shut down, swallowing an already-gone peer, exactly as
// the non-owning case of spec.md §4.4's "usable as scoped resources"
// requires.
func (h *ProcessHandle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	h.ref.CloseActor(nil, nil)

	if h.cmd == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- h.cmd.Wait() }()

	select {
	case <-done:
		return nil
	case <-time.After(SpawnTimeout):
		if h.cmd.Process != nil {
			h.cmd.Process.Kill()
		}
		<-done
		return fmt.Errorf("host: process for %s did not exit cleanly, killed", h.addr)
	}
}

// Spawn launches kind as a new child process, waits for it to report
// readiness, sends it initFields as an init message, and waits for it
// to confirm initialization — the full handshake from the original
// runtime's ProcessActor.spawn / WaitActor (mischief/actors/process_actor.py),
// generalized from "re-import the actor's source by path" to
// "look the kind up in registry and exec its binary".
func Spawn(registry *Registry, host, broker string, kind string, initFields map[string]any) (*ProcessHandle, error) {
	// Name-collision avoidance (spec REDESIGN FLAGS / original_source
	// mischief/actors/process_actor.py's ProcessActor.spawn): if the
	// caller requested a specific name and an actor already answers
	// under it, adopt that actor instead of launching a duplicate
	// process.
	if requested, _ := initFields["name"].(string); requested != "" {
		existingRef, err := actor.NewRef(wire.Address{Name: requested, Host: host})
		if err == nil && existingRef.IsAlive() {
			return &ProcessHandle{cmd: nil, ref: existingRef, addr: existingRef.Address()}, nil
		}
	}

	binary, err := registry.Binary(kind)
	if err != nil {
		return nil, err
	}

	name, err := uniqueSpawnName(host, kind)
	if err != nil {
		return nil, err
	}
	if requested, _ := initFields["name"].(string); requested != "" {
		name = requested
	}

	wait, err := actor.New(name+"-wait", host, transport.Options{Broker: namebroker.NewClient(broker)})
	if err != nil {
		return nil, fmt.Errorf("host: spawn %s: wait actor: %w", kind, err)
	}
	defer wait.Close(nil, nil)
	waitAddr := wait.Address()

	cmd := exec.Command(binary,
		"-"+FlagName, name,
		"-"+FlagHost, host,
		"-"+FlagWaitName, waitAddr.Name,
		"-"+FlagWaitHost, waitAddr.Host,
		"-"+FlagWaitPort, strconv.Itoa(waitAddr.Port),
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("host: spawn %s: start %s: %w", kind, binary, err)
	}

	okMsg, timedOut, err := wait.Receive([]string{"ok"}, SpawnTimeout)
	if err != nil || timedOut {
		cmd.Process.Kill()
		return nil, wire.ErrSpawnTimeout
	}

	addr, ok := decodeSpawnAddress(okMsg["spawn_address"])
	if !ok {
		cmd.Process.Kill()
		return nil, fmt.Errorf("host: spawn %s: malformed ok message %+v", kind, okMsg)
	}

	ref, err := actor.NewRef(addr)
	if err != nil {
		cmd.Process.Kill()
		return nil, err
	}

	if err := ref.Send(wire.TagInit, initFields); err != nil {
		cmd.Process.Kill()
		return nil, fmt.Errorf("host: spawn %s: send init: %w", kind, err)
	}

	_, timedOut, err = wait.Receive([]string{wire.TagFinishedInit}, SpawnTimeout)
	if err != nil || timedOut {
		cmd.Process.Kill()
		return nil, wire.ErrSpawnTimeout
	}

	return &ProcessHandle{cmd: cmd, ref: ref, addr: addr}, nil
}

// uniqueSpawnName generates a spawn name and retries on a rare
// broker name collision, mirroring the original runtime's
// collision-avoiding spawn staticmethod.
func uniqueSpawnName(host, kind string) (string, error) {
	client := namebroker.NewClient(host)
	for attempt := 0; attempt < 5; attempt++ {
		candidate := fmt.Sprintf("%s-%s", kind, uuid.New().String())
		_, taken, err := client.Get(candidate)
		if err != nil {
			// Broker unreachable: proceed optimistically, IPC-only
			// actors never register with it anyway.
			return candidate, nil
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("host: could not generate a unique spawn name for kind %q", kind)
}

func decodeSpawnAddress(v any) (wire.Address, bool) {
	switch a := v.(type) {
	case wire.Address:
		return a, true
	case map[string]any:
		name, _ := a["name"].(string)
		hostVal, _ := a["host"].(string)
		var port int
		switch p := a["port"].(type) {
		case float64:
			port = int(p)
		case int:
			port = p
		}
		if name == "" {
			return wire.Address{}, false
		}
		return wire.Address{Name: name, Host: hostVal, Port: port}, true
	default:
		return wire.Address{}, false
	}
}

// Bootstrap is the child-side half of the spawn handshake: a
// spawnable binary's main() calls this after parsing its own flags
// (actor-name/actor-host/actor-wait-*) to bind its own actor, report
// readiness to the parent's WaitActor, and block until it receives
// and acknowledges its init message.
//
// onInit is invoked with the init message's fields; its return value
// (nil for success) determines whether Bootstrap reports
// finished_init or leaves the parent to time out.
func Bootstrap(name, host, waitName, waitHost string, waitPort int, onInit func(a *actor.Actor, init wire.Message) error) (*actor.Actor, error) {
	a, err := actor.New(name, host, transport.Options{})
	if err != nil {
		return nil, fmt.Errorf("host: bootstrap %s: %w", name, err)
	}

	waitAddr := wire.Address{Name: waitName, Host: waitHost, Port: waitPort}
	waitRef, err := actor.NewRef(waitAddr)
	if err != nil {
		a.Close(nil, nil)
		return nil, err
	}
	if err := waitRef.Send("ok", map[string]any{
		"spawn_address": a.Address(),
		"pid":           os.Getpid(),
	}); err != nil {
		a.Close(nil, nil)
		return nil, fmt.Errorf("host: bootstrap %s: report ok: %w", name, err)
	}

	initMsg, timedOut, err := a.Receive([]string{wire.TagInit}, SpawnTimeout)
	if err != nil || timedOut {
		a.Close(nil, nil)
		return nil, wire.ErrSpawnTimeout
	}

	if onInit != nil {
		if err := onInit(a, initMsg); err != nil {
			a.Close(nil, nil)
			return nil, fmt.Errorf("host: bootstrap %s: init: %w", name, err)
		}
	}

	if err := waitRef.Send(wire.TagFinishedInit, nil); err != nil {
		a.Close(nil, nil)
		return nil, fmt.Errorf("host: bootstrap %s: report finished_init: %w", name, err)
	}

	return a, nil
}
