package namebroker

import (
	"context"
	"testing"
	"time"
)

// startTestBroker binds the real fixed broker port, since Client
// always dials DefaultPort per spec (the broker has no per-client
// configurable port).
func startTestBroker(t *testing.T) (*Client, func()) {
	t.Helper()
	svc := NewService("", false)
	ctx, cancel := context.WithCancel(context.Background())

	ready := make(chan struct{})
	go func() {
		close(ready)
		svc.Start(ctx)
	}()
	<-ready
	time.Sleep(20 * time.Millisecond)

	client := &Client{host: "localhost", timeout: DefaultTimeout}
	return client, cancel
}

func TestDispatchHandlesCommandsDirectly(t *testing.T) {
	svc := NewService(":0", false)
	names := make(map[string]int)

	resp := svc.handle(names, Request{Tag: "register", Name: "alice", Port: 51000})
	if resp.Exception != "" {
		t.Fatalf("register: %s", resp.Exception)
	}

	resp = svc.handle(names, Request{Tag: "get", Name: "alice"})
	if resp.Port == nil || *resp.Port != 51000 {
		t.Fatalf("get after register = %+v, want port 51000", resp)
	}

	resp = svc.handle(names, Request{Tag: "get", Name: "bob"})
	if resp.Port != nil {
		t.Fatalf("get unknown name should return nil port, got %+v", resp)
	}

	resp = svc.handle(names, Request{Tag: "list"})
	if len(resp.Names) != 1 || resp.Names["alice"] != 51000 {
		t.Fatalf("list = %+v, want {alice:51000}", resp.Names)
	}

	resp = svc.handle(names, Request{Tag: "unregister", Name: "alice"})
	if resp.Exception != "" {
		t.Fatalf("unregister: %s", resp.Exception)
	}

	resp = svc.handle(names, Request{Tag: "get", Name: "alice"})
	if resp.Port != nil {
		t.Fatalf("get after unregister should be nil, got %+v", resp)
	}
}

func TestUnregisterUnknownNameIsNotAnError(t *testing.T) {
	svc := NewService(":0", false)
	names := make(map[string]int)
	resp := svc.handle(names, Request{Tag: "unregister", Name: "ghost"})
	if resp.Exception != "" {
		t.Fatalf("unregister unknown name should not error, got %s", resp.Exception)
	}
}

func TestPing(t *testing.T) {
	svc := NewService(":0", false)
	resp := svc.handle(map[string]int{}, Request{Tag: "ping"})
	if !resp.Pong {
		t.Fatal("ping should return pong=true")
	}
}

func TestUnknownCommandReturnsNull(t *testing.T) {
	svc := NewService(":0", false)
	resp := svc.handle(map[string]int{}, Request{Tag: "bogus"})
	if resp.Exception != "" || resp.Port != nil || resp.Names != nil || resp.Pong {
		t.Fatalf("unknown command should return an empty/null response, got %+v", resp)
	}
}

func TestEndToEndOverNetwork(t *testing.T) {
	client, cancel := startTestBroker(t)
	defer cancel()

	if err := client.Register("svc-a", 52000); err != nil {
		t.Fatalf("Register: %v", err)
	}
	port, ok, err := client.Get("svc-a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || port != 52000 {
		t.Fatalf("Get = (%d, %v), want (52000, true)", port, ok)
	}

	if !client.Ping() {
		t.Fatal("Ping should succeed against a running broker")
	}

	if err := client.Unregister("svc-a"); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	_, ok, err = client.Get("svc-a")
	if err != nil {
		t.Fatalf("Get after unregister: %v", err)
	}
	if ok {
		t.Fatal("expected svc-a to be gone after Unregister")
	}
}
