package transport

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
)

// MinPort and MaxPort bound the ephemeral TCP range Receivers draw
// from, per spec §6.
const (
	MinPort = 50000
	MaxPort = 60000
)

// posixIPCSupported reports whether this platform supports the
// per-user Unix domain socket IPC endpoint (spec: "skipped on
// non-POSIX platforms").
func posixIPCSupported() bool {
	return runtime.GOOS != "windows"
}

// actorsDirectory returns /tmp/actors_<user>, creating it if absent.
func actorsDirectory() (string, error) {
	user := os.Getenv("USER")
	if user == "" {
		user = "NO_USER"
	}
	dir := filepath.Join(os.TempDir(), fmt.Sprintf("actors_%s", user))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("transport: create ipc directory %s: %w", dir, err)
	}
	return dir, nil
}

// IPCPath returns the path of the Unix domain socket used to reach
// the Receiver named name.
func IPCPath(name string) (string, error) {
	dir, err := actorsDirectory()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// IsLocalHost reports whether h names this machine: the empty string,
// "localhost", "127.0.0.1", or any hostname that resolves to an
// address assigned to a local interface.
func IsLocalHost(h string) bool {
	if h == "" || h == "localhost" || h == "127.0.0.1" {
		return true
	}
	addrs, err := net.LookupHost(h)
	if err != nil {
		return false
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); (ip != nil && ip.IsLoopback()) || a == LocalHostAs(a) {
			return true
		}
	}
	return false
}

// LocalHostAs returns the local address that would be used to reach
// target, mirroring the original runtime's UDP-connect trick: opening
// a UDP "connection" never sends a packet, it just asks the kernel to
// pick a local source address for the route to target. Best-effort:
// returns "" if there is no reachable local interface for target.
func LocalHostAs(target string) string {
	conn, err := net.Dial("udp", net.JoinHostPort(target, "8000"))
	if err != nil {
		return ""
	}
	defer conn.Close()

	host, _, err := net.SplitHostPort(conn.LocalAddr().String())
	if err != nil {
		return ""
	}
	return host
}
