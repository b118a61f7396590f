package wire

import "errors"

// Error kinds from spec §7. ChannelDown and BrokerUnavailable wrap the
// underlying network error; MailboxClosed and SpawnTimeout are plain
// sentinels since there is nothing further to attach.
var (
	// ErrMailboxClosed is returned by Receive when the mailbox's
	// reader loop has observed the terminator sentinel (the
	// receiver is closing or closed).
	ErrMailboxClosed = errors.New("actor: mailbox closed")

	// ErrSpawnTimeout is returned when a process spawn does not
	// observe "ok" within 5s, or "finished_init" within 5s.
	ErrSpawnTimeout = errors.New("actor: spawn timed out")
)

// ChannelDownError reports that a target could not be reached: the
// port was not in the broker, the TCP connect failed, or the
// liveness probe did not reply within the probe timeout.
type ChannelDownError struct {
	Target Address
	Reason error
}

func (e *ChannelDownError) Error() string {
	if e.Reason != nil {
		return "actor: channel down to " + e.Target.String() + ": " + e.Reason.Error()
	}
	return "actor: channel down to " + e.Target.String()
}

func (e *ChannelDownError) Unwrap() error { return e.Reason }

// BrokerUnavailableError reports that a NameBroker RPC timed out.
type BrokerUnavailableError struct {
	Op     string
	Reason error
}

func (e *BrokerUnavailableError) Error() string {
	return "actor: broker unavailable during " + e.Op + ": " + e.Reason.Error()
}

func (e *BrokerUnavailableError) Unwrap() error { return e.Reason }
