// Command namebrokerd runs the actor host's NameBroker service: a
// single-threaded directory mapping actor names to TCP ports, fixed
// on port 5555 (spec §4.2).
//
// Grounded on the teacher's cmd/orchestrator/main.go: stdlib flag
// parsing, signal-driven graceful shutdown via context cancellation.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/tenzoki/actorhost/internal/namebroker"
)

func main() {
	addr := flag.String("addr", "", "address to bind the broker on (default :5555)")
	debug := flag.Bool("debug", false, "log accept/decode errors")
	flag.Parse()

	svc := namebroker.NewService(*addr, *debug)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("namebrokerd: shutting down")
		cancel()
	}()

	log.Println("namebrokerd: starting")
	if err := svc.Start(ctx); err != nil {
		log.Fatalf("namebrokerd: %v", err)
	}
}
