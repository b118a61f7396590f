// Command actorhost runs a thread-hosted actor host: it resolves its
// configuration, binds an Echo actor under a configurable name, and
// serves until terminated. It is also the reference entrypoint a
// spawnable binary's main() can follow for the process-hosted model
// (see internal/host.Bootstrap).
//
// Grounded on the teacher's public/agent/framework.go Run() lifecycle
// (resolve config, connect, start processing, wait for shutdown) and
// cmd/orchestrator/main.go's flag/signal conventions.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tenzoki/actorhost/internal/actor"
	"github.com/tenzoki/actorhost/internal/config"
	"github.com/tenzoki/actorhost/internal/host"
	"github.com/tenzoki/actorhost/internal/obslog"
	"github.com/tenzoki/actorhost/internal/transport"
	"github.com/tenzoki/actorhost/internal/wire"
)

func main() {
	name := flag.String("name", "echo", "name this actor registers under")
	hostAddr := flag.String("host", "localhost", "host this actor advertises")
	configPath := flag.String("config", "", "path to actorhost.yaml (see internal/config)")
	logDir := flag.String("log-dir", "logs", "directory for session log files")
	quiet := flag.Bool("quiet", false, "suppress non-critical console output")

	// Process-hosted (spawned-child) flags, consumed only when this
	// binary is launched by host.Spawn rather than run standalone.
	spawnName := flag.String(host.FlagName, "", "")
	spawnHost := flag.String(host.FlagHost, "", "")
	waitName := flag.String("actor-wait-name", "", "")
	waitHost := flag.String("actor-wait-host", "", "")
	waitPort := flag.Int("actor-wait-port", 0, "")
	flag.Parse()

	logger, err := obslog.New(*logDir, *quiet)
	if err != nil {
		log.Fatalf("actorhost: %v", err)
	}
	defer logger.Close()
	obslog.SetGlobal(logger)

	resolver := config.Resolver{FlagPath: *configPath, EnvVar: "ACTORHOST_CONFIG", DefaultName: "actorhost.yaml"}
	cfg, err := resolver.LoadWithDefaults()
	if err != nil {
		logger.Error("load config: %v", err)
		os.Exit(1)
	}
	if cfg.Host.Addr != "" {
		*hostAddr = cfg.Host.Addr
	}

	if *waitName != "" {
		if *spawnName != "" {
			*name = *spawnName
		}
		if *spawnHost != "" {
			*hostAddr = *spawnHost
		}
		runSpawnedChild(logger, *name, *hostAddr, *waitName, *waitHost, *waitPort)
		return
	}

	runStandalone(logger, *name, *hostAddr)
}

// runStandalone binds a long-lived, thread-hosted Echo actor and
// blocks until SIGINT/SIGTERM.
func runStandalone(logger *obslog.SessionLogger, name, hostAddr string) {
	a, err := host.RunThreaded(name, hostAddr, transport.Options{}, echoLoop(logger))
	if err != nil {
		logger.Error("bind actor %s: %v", name, err)
		os.Exit(1)
	}
	logger.UserMessage("actorhost: %s listening at %s", name, a.Address())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.UserMessage("actorhost: shutting down %s", name)
	a.Close(nil, nil)
}

// runSpawnedChild is the process-hosted path: this binary was
// launched by host.Spawn, so it joins the handshake instead of
// running its own signal loop.
func runSpawnedChild(logger *obslog.SessionLogger, name, hostAddr, waitName, waitHost string, waitPort int) {
	a, err := host.Bootstrap(name, hostAddr, waitName, waitHost, waitPort, func(a *actor.Actor, init wire.Message) error {
		logger.Info("actorhost: %s initialized with %+v", name, init)
		return nil
	})
	if err != nil {
		logger.Error("bootstrap %s: %v", name, err)
		os.Exit(1)
	}
	echoLoop(logger)(a)
}

// decodeReplyTo recovers an Address from a reply_to value that has
// round-tripped through JSON (and so arrives as a generic map, not a
// wire.Address) as well as from one that never left memory.
func decodeReplyTo(v any) (wire.Address, bool) {
	switch a := v.(type) {
	case wire.Address:
		return a, true
	case map[string]any:
		name, _ := a["name"].(string)
		host, _ := a["host"].(string)
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
		return wire.Address{Name: name, Host: host, Port: port}, true
	default:
		return wire.Address{}, false
	}
}

// echoLoop answers every non-control message it receives with a
// "reply" tag carrying the original fields, mirroring the original
// runtime's Echo actor (mischief/actors/actor.py).
func echoLoop(logger *obslog.SessionLogger) host.ActorFunc {
	return func(a *actor.Actor) {
		for {
			msg, timedOut, err := a.Receive([]string{wire.Wildcard}, 30*time.Second)
			if err != nil {
				return
			}
			if timedOut {
				continue
			}
			if replyAddr, ok := decodeReplyTo(msg.ReplyTo()); ok {
				ref, err := actor.NewRef(replyAddr)
				if err == nil {
					fields := map[string]any{}
					for k, v := range msg {
						if k != "tag" && k != "reply_to" {
							fields[k] = v
						}
					}
					ref.Send(wire.TagReply, fields)
				}
			}
			logger.Debug("echo: received %s", fmt.Sprint(msg.Tag()))
		}
	}
}
