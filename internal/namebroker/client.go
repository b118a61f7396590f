package namebroker

import (
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// DefaultTimeout is the RPC timeout clients use to detect a missing
// broker (spec: "Clients detect a missing broker by timing out the
// ping RPC (default 1 s)").
const DefaultTimeout = 1 * time.Second

// Client talks to a NameBroker's REQ/REP turn: dial, send one
// request, read one reply, disconnect. Grounded on the original
// runtime's NameBrokerClient (mischief/actors/namebroker.py), which
// speaks exactly this protocol over a transient socket per call.
type Client struct {
	host    string
	timeout time.Duration
}

// NewClient returns a client for the broker on host (default
// "localhost"), using DefaultTimeout for every call.
func NewClient(host string) *Client {
	if host == "" {
		host = "localhost"
	}
	return &Client{host: host, timeout: DefaultTimeout}
}

// WithTimeout returns a copy of c using the given per-call timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	return &Client{host: c.host, timeout: d}
}

func (c *Client) call(req Request) (Response, error) {
	addr := fmt.Sprintf("%s:%d", c.host, DefaultPort)
	conn, err := net.DialTimeout("tcp", addr, c.timeout)
	if err != nil {
		return Response{}, fmt.Errorf("namebroker: dial %s: %w", addr, err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return Response{}, fmt.Errorf("namebroker: send %s: %w", req.Tag, err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("namebroker: recv reply to %s: %w", req.Tag, err)
	}
	if resp.Exception != "" {
		return Response{}, fmt.Errorf("namebroker: server error: %s", resp.Exception)
	}
	return resp, nil
}

// Register associates name with port, overwriting any prior entry.
func (c *Client) Register(name string, port int) error {
	_, err := c.call(Request{Tag: "register", Name: name, Port: port})
	return err
}

// Unregister removes name if present; removing an absent name is not
// an error.
func (c *Client) Unregister(name string) error {
	_, err := c.call(Request{Tag: "unregister", Name: name})
	return err
}

// Get returns the port registered for name, and false if name is
// unknown. Get never mutates broker state.
func (c *Client) Get(name string) (port int, ok bool, err error) {
	resp, err := c.call(Request{Tag: "get", Name: name})
	if err != nil {
		return 0, false, err
	}
	if resp.Port == nil {
		return 0, false, nil
	}
	return *resp.Port, true, nil
}

// List returns the full name->port mapping.
func (c *Client) List() (map[string]int, error) {
	resp, err := c.call(Request{Tag: "list"})
	if err != nil {
		return nil, err
	}
	return resp.Names, nil
}

// Ping checks broker liveness, returning false (no error) if the RPC
// times out rather than surfacing the dial/timeout error — callers
// use this to detect "no broker running" as a normal condition.
func (c *Client) Ping() bool {
	resp, err := c.call(Request{Tag: "ping"})
	return err == nil && resp.Pong
}
