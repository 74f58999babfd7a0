package ipc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"os"
	"os/exec"
	"sync"
	"time"

	"go.trai.ch/monorun/internal/adapters/shell"
	"go.trai.ch/monorun/internal/core/domain"
	"go.trai.ch/zerr"
)

// messageBuffer bounds the worker messages queued ahead of the runner.
const messageBuffer = 16

type outcome uint8

const (
	outcomeMessage outcome = iota
	outcomeExited
	outcomeDisconnected
	outcomeCanceled
)

// session is one worker process and its channel.
type session struct {
	name string

	runMu sync.Mutex // held for the duration of a Run

	stateMu sync.Mutex
	state   SessionState

	cmd      *exec.Cmd
	conn     net.Conn
	writeMu  sync.Mutex
	enc      *json.Encoder
	messages chan Message
	errMu    sync.Mutex
	readErr  error
	exited   chan struct{}
	exitCode int // written before exited is closed
	done     chan struct{}
	doneOnce sync.Once

	outMu    sync.Mutex
	out      io.Writer
	attached bool
	capture  bytes.Buffer
	warned   bool
}

func newSession(name string) *session {
	return &session{
		name:     name,
		state:    StateNotStarted,
		messages: make(chan Message, messageBuffer),
		exited:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *session) State() SessionState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

func (s *session) setState(state SessionState) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.state = state
}

// start launches the worker with the channel on descriptor 3.
func (s *session) start(ctx context.Context, op *domain.Operation, onRequestRun RequestRunFunc) error {
	s.setState(StateStarting)

	conn, child, err := socketPair()
	if err != nil {
		s.setState(StateDisconnected)
		return err
	}

	// The worker outlives the Run that started it.
	cmd := shell.Command(context.WithoutCancel(ctx), op)
	cmd.Env = append(cmd.Env, envChannelFD, envSerialization)
	cmd.ExtraFiles = []*os.File{child}
	cmd.Stdout = &streamWriter{session: s}
	cmd.Stderr = &streamWriter{session: s, stderr: true}

	if err := cmd.Start(); err != nil {
		_ = conn.Close()
		_ = child.Close()
		s.setState(StateDisconnected)
		return err
	}
	_ = child.Close()

	s.cmd = cmd
	s.conn = conn
	s.enc = json.NewEncoder(conn)

	go s.readLoop(onRequestRun)
	go s.waitLoop()

	s.setState(StateAwaitingSync)
	return nil
}

func (s *session) readLoop(onRequestRun RequestRunFunc) {
	defer close(s.messages)

	dec := json.NewDecoder(s.conn)
	for {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				s.setReadErr(zerr.With(zerr.Wrap(err, domain.ErrProtocolViolation.Error()), "operation", s.name))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case MessageRequestRun:
			if onRequestRun != nil {
				go onRequestRun(s.name, msg.Requestor)
			}
		case MessageSync, MessageAfterExecute:
			select {
			case s.messages <- msg:
			case <-s.done:
				return
			}
		}
	}
}

func (s *session) setReadErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	s.readErr = err
}

func (s *session) readError() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.readErr
}

func (s *session) waitLoop() {
	_ = s.cmd.Wait()
	s.exitCode = s.cmd.ProcessState.ExitCode()
	close(s.exited)

	// A run in progress resolves the exit itself.
	if s.runMu.TryLock() {
		s.close()
		s.runMu.Unlock()
	}
}

func (s *session) hasExited() bool {
	select {
	case <-s.exited:
		return true
	default:
		return false
	}
}

func (s *session) send(command string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.enc.Encode(Command{Type: command})
}

// next waits for a message of type want, the worker's exit, a broken channel or ctx.
func (s *session) next(ctx context.Context, want string, grace time.Duration) (Message, outcome) {
	for {
		select {
		case msg, ok := <-s.messages:
			if !ok {
				return Message{}, outcomeDisconnected
			}
			if msg.Type == want {
				return msg, outcomeMessage
			}
		case <-s.exited:
			return s.drain(want, grace)
		case <-ctx.Done():
			return Message{}, outcomeCanceled
		}
	}
}

// drain picks up a message the worker sent right before exiting.
func (s *session) drain(want string, grace time.Duration) (Message, outcome) {
	timer := time.NewTimer(grace)
	defer timer.Stop()
	for {
		select {
		case msg, ok := <-s.messages:
			if !ok {
				return Message{}, outcomeExited
			}
			if msg.Type == want {
				return msg, outcomeMessage
			}
		case <-timer.C:
			return Message{}, outcomeExited
		}
	}
}

// waitExit reports whether the worker exited within grace.
func (s *session) waitExit(grace time.Duration) bool {
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-s.exited:
		return true
	case <-timer.C:
		return false
	}
}

// shutdown asks the worker to exit and kills it if it does not within grace.
func (s *session) shutdown(grace time.Duration) {
	if s.cmd == nil {
		return
	}
	select {
	case <-s.exited:
	default:
		if err := s.send(CommandExit); err != nil || !s.waitExit(grace) {
			_ = s.cmd.Process.Kill()
			<-s.exited
		}
	}
	s.close()
}

func (s *session) kill() {
	if s.cmd == nil {
		return
	}
	_ = s.cmd.Process.Kill()
	<-s.exited
	s.close()
}

func (s *session) close() {
	s.doneOnce.Do(func() {
		close(s.done)
		if s.conn != nil {
			_ = s.conn.Close()
		}
		s.setState(StateDisconnected)
	})
}

// attach routes worker output to out and resets the per-run capture.
func (s *session) attach(out io.Writer) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	s.out = out
	s.attached = true
	s.capture.Reset()
	s.warned = false
}

// detach stops routing output and returns what the run captured.
func (s *session) detach() (string, bool) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	s.out = nil
	s.attached = false
	return s.capture.String(), s.warned
}

func (s *session) sawWarnings() bool {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	return s.warned
}

type streamWriter struct {
	session *session
	stderr  bool
}

func (w *streamWriter) Write(p []byte) (int, error) {
	s := w.session
	s.outMu.Lock()
	defer s.outMu.Unlock()
	if !s.attached {
		return len(p), nil
	}
	if w.stderr && len(p) > 0 {
		s.warned = true
	}
	s.capture.Write(p)
	if s.out != nil {
		_, _ = s.out.Write(p)
	}
	return len(p), nil
}
