// Package obslog provides session-based logging for the actor host:
// clean, quiet console output for operators, with full detail always
// captured to a per-run session file.
//
// Grounded on the teacher's atomic/logging/session.go SessionLogger,
// trimmed of its PEV-cycle and AI-response-specific methods and
// generalized to the runtime's own event vocabulary (actor lifecycle,
// spawn handshakes, broker registration).
package obslog

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// SessionLogger writes every event to a session file, and mirrors
// Info/UserMessage/Error to the console unless QuietMode suppresses
// the non-critical ones.
type SessionLogger struct {
	sessionFile *os.File
	mu          sync.Mutex
	sessionPath string
	quietMode   bool
}

// New opens a fresh session log file under logDir, named by the
// current timestamp, and redirects the standard log package's output
// to it so every library's log.Printf call lands in the same file.
func New(logDir string, quietMode bool) (*SessionLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("obslog: create log directory: %w", err)
	}

	sessionID := time.Now().Format("20060102-150405")
	sessionPath := filepath.Join(logDir, fmt.Sprintf("actorhost-%s.log", sessionID))

	file, err := os.OpenFile(sessionPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("obslog: create session file: %w", err)
	}

	s := &SessionLogger{
		sessionFile: file,
		sessionPath: sessionPath,
		quietMode:   quietMode,
	}

	s.writeToFile("=== actor host session started ===\n")
	s.writeToFile("Session ID: %s\n", sessionID)
	s.writeToFile("Time: %s\n", time.Now().Format(time.RFC3339))
	s.writeToFile("===================================\n\n")

	log.SetOutput(file)
	log.SetFlags(log.Ldate | log.Ltime)

	return s, nil
}

// Close appends a closing marker and closes the session file.
func (s *SessionLogger) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionFile == nil {
		return nil
	}
	s.writeToFile("\n=== session ended %s ===\n", time.Now().Format(time.RFC3339))
	return s.sessionFile.Close()
}

// SessionPath returns the path of the current session's log file.
func (s *SessionLogger) SessionPath() string { return s.sessionPath }

// Debug writes to the session file only; it never reaches the
// console, quiet mode or not.
func (s *SessionLogger) Debug(format string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeToFile("[%s] DEBUG: %s\n", stamp(), fmt.Sprintf(format, args...))
}

// Info writes to the session file, and echoes to the console unless
// QuietMode is set.
func (s *SessionLogger) Info(format string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	message := fmt.Sprintf(format, args...)
	s.writeToFile("[%s] INFO: %s\n", stamp(), message)
	if !s.quietMode {
		fmt.Println(message)
	}
}

// UserMessage always reaches both the session file and the console,
// regardless of QuietMode: it is for events an operator needs to see
// (a spawn completed, the broker came up).
func (s *SessionLogger) UserMessage(format string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	message := fmt.Sprintf(format, args...)
	s.writeToFile("[%s] NOTICE: %s\n", stamp(), message)
	fmt.Println(message)
}

// Error always reaches both the session file and stderr.
func (s *SessionLogger) Error(format string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	message := fmt.Sprintf(format, args...)
	s.writeToFile("[%s] ERROR: %s\n", stamp(), message)
	fmt.Fprintf(os.Stderr, "error: %s\n", message)
}

func (s *SessionLogger) writeToFile(format string, args ...interface{}) {
	if s.sessionFile == nil {
		return
	}
	fmt.Fprintf(s.sessionFile, format, args...)
	s.sessionFile.Sync()
}

func stamp() string { return time.Now().Format("15:04:05") }

// SetQuietMode toggles console echo of Info messages.
func (s *SessionLogger) SetQuietMode(quiet bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quietMode = quiet
}

var (
	globalLogger *SessionLogger
	globalMu     sync.Mutex
)

// SetGlobal installs logger as the process-wide default used by the
// Global* helpers, for code that doesn't carry a *SessionLogger of
// its own (e.g. a spawned actor's bootstrap path).
func SetGlobal(logger *SessionLogger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = logger
}

// Global returns the process-wide default logger, or nil if none was
// installed.
func Global() *SessionLogger {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalLogger
}

// GlobalInfo logs to the global logger if set, falling back to the
// standard log package otherwise.
func GlobalInfo(format string, args ...interface{}) {
	if l := Global(); l != nil {
		l.Info(format, args...)
		return
	}
	log.Printf("[INFO] "+format, args...)
}

// GlobalError logs to the global logger if set, falling back to the
// standard log package otherwise.
func GlobalError(format string, args ...interface{}) {
	if l := Global(); l != nil {
		l.Error(format, args...)
		return
	}
	log.Printf("[ERROR] "+format, args...)
}
