// Package pty manages long-lived pseudoterminal-backed command sessions
// for the exec_command and write_stdin tools (spec.md §4.G): each
// session reads its output for a bounded yield interval rather than
// streaming continuously, so a tool call always returns promptly.
package pty

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	gopty "github.com/aymanbagabas/go-pty"

	"lincona/internal/boundary"
	"lincona/internal/outlimit"
)

// DefaultYield is the bounded read interval used when a caller doesn't
// specify one.
const DefaultYield = 200 * time.Millisecond

const terminationMarker = "[process exited]"

// ErrSessionExists is returned by Open when id is already in use.
var ErrSessionExists = fmt.Errorf("pty session already open")

// ErrSessionNotFound is returned by Write/Close for an unknown id.
var ErrSessionNotFound = fmt.Errorf("pty session not found")

// ErrSessionClosed is returned by Write once a session's child process
// has exited and its termination has already been reported once.
var ErrSessionClosed = fmt.Errorf("pty session closed")

type session struct {
	id  string
	cwd string

	ptmx gopty.Pty
	cmd  *gopty.Cmd

	opMu sync.Mutex // serializes open/write/close against this session

	dataMu        sync.Mutex
	buf           bytes.Buffer
	exited        bool
	exitErr       error
	reportedFinal bool
	closed        bool
}

// Manager tracks the set of open PTY sessions for one process. Safe for
// concurrent use; different sessions operate independently, but
// operations against the same session id are serialized.
type Manager struct {
	boundary *boundary.Boundary

	mu       sync.Mutex
	sessions map[string]*session
}

// New builds a Manager whose working directories are validated through b.
func New(b *boundary.Boundary) *Manager {
	return &Manager{boundary: b, sessions: make(map[string]*session)}
}

// Open spawns cmd attached to a new pseudoterminal under id, captures
// output for the yield interval, and returns the captured prefix
// (already passed through the output limiter).
func (m *Manager) Open(id, cmdline, workdir string, yield time.Duration, maxOutputBytes int) (string, bool, error) {
	m.mu.Lock()
	if _, exists := m.sessions[id]; exists {
		m.mu.Unlock()
		return "", false, fmt.Errorf("%w: %s", ErrSessionExists, id)
	}
	m.mu.Unlock()

	cwd, err := m.boundary.WorkDir(workdir)
	if err != nil {
		return "", false, err
	}

	ptmx, err := gopty.New()
	if err != nil {
		return "", false, fmt.Errorf("allocate pty: %w", err)
	}

	ptyCmd := ptmx.Command("/bin/sh", "-c", cmdline)
	ptyCmd.Dir = cwd

	if err := ptyCmd.Start(); err != nil {
		ptmx.Close()
		return "", false, fmt.Errorf("start pty command: %w", err)
	}

	s := &session{id: id, cwd: cwd, ptmx: ptmx, cmd: ptyCmd}
	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	go s.readLoop()

	return drain(s, yield, maxOutputBytes)
}

// Write sends chars to session id's stdin, then captures output for the
// yield interval, same as Open.
func (m *Manager) Write(id, chars string, yield time.Duration, maxOutputBytes int) (string, bool, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return "", false, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.dataMu.Lock()
	closed := s.closed
	s.dataMu.Unlock()
	if closed {
		return "", false, fmt.Errorf("%w: %s", ErrSessionClosed, id)
	}

	if _, err := s.ptmx.Write([]byte(chars)); err != nil {
		return "", false, fmt.Errorf("write to pty: %w", err)
	}

	return drain(s, yield, maxOutputBytes)
}

// Close terminates session id: SIGTERM, wait up to 2s, then SIGKILL.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.terminate()
}

// CloseAll terminates every tracked session; it is the Shutdown
// Coordinator's hook into this manager.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		_ = m.Close(id)
	}
}

func (s *session) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			s.dataMu.Lock()
			s.buf.Write(buf[:n])
			s.dataMu.Unlock()
		}
		if err != nil {
			waitErr := s.cmd.Wait()
			s.dataMu.Lock()
			s.exited = true
			s.exitErr = waitErr
			s.dataMu.Unlock()
			return
		}
	}
}

func (s *session) terminate() error {
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Signal(signalTERM())
	}

	done := make(chan struct{})
	go func() {
		s.dataMu.Lock()
		exited := s.exited
		s.dataMu.Unlock()
		for !exited {
			time.Sleep(20 * time.Millisecond)
			s.dataMu.Lock()
			exited = s.exited
			s.dataMu.Unlock()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		<-done
	}

	return s.ptmx.Close()
}

// drain captures session output accumulated over the yield interval
// and returns it through the output limiter. If the child has exited
// and its exit hasn't yet been reported, the final chunk is appended
// with a termination marker and the session is marked closed.
func drain(s *session, yield time.Duration, maxOutputBytes int) (string, bool, error) {
	if yield <= 0 {
		yield = DefaultYield
	}
	if maxOutputBytes <= 0 {
		maxOutputBytes = outlimit.DefaultMaxBytes
	}

	deadline := time.Now().Add(yield)
	for {
		s.dataMu.Lock()
		avail := s.buf.Len()
		exited := s.exited
		s.dataMu.Unlock()
		if avail >= maxOutputBytes || exited || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	s.dataMu.Lock()
	raw := s.buf.String()
	s.buf.Reset()
	finalChunk := s.exited && !s.reportedFinal
	if finalChunk {
		s.reportedFinal = true
		s.closed = true
	}
	s.dataMu.Unlock()

	text, truncated := outlimit.Truncate(raw, maxOutputBytes, outlimit.DefaultMaxLines)
	if finalChunk {
		if text != "" && text[len(text)-1] != '\n' {
			text += "\n"
		}
		text += terminationMarker
	}
	return text, truncated, nil
}
