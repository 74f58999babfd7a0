package ipc

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"go.trai.ch/monorun/internal/core/domain"
	"go.trai.ch/monorun/internal/core/ports"
	"go.trai.ch/zerr"
)

// DefaultGracePeriod is how long the runner waits for a worker to exit after
// asking it to, or after its channel closed, before killing it.
const DefaultGracePeriod = 5 * time.Second

var _ ports.OperationRunner = (*Runner)(nil)

// RequestRunFunc is called when a worker asks for its operation to be re-run.
type RequestRunFunc func(operation, requestor string)

// Option configures a Runner.
type Option func(*Runner)

// WithPersistence keeps workers alive between runs of the same operation.
func WithPersistence(persist bool) Option {
	return func(r *Runner) { r.persist = persist }
}

// WithRequestRunHook installs the hook called on requestRun messages.
func WithRequestRunHook(fn RequestRunFunc) Option {
	return func(r *Runner) { r.onRequestRun = fn }
}

// WithGracePeriod overrides DefaultGracePeriod.
func WithGracePeriod(d time.Duration) Option {
	return func(r *Runner) { r.grace = d }
}

// Runner implements ports.OperationRunner with worker processes.
type Runner struct {
	persist      bool
	onRequestRun RequestRunFunc
	grace        time.Duration

	mu       sync.Mutex
	sessions map[string]*session
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		grace:    DefaultGracePeriod,
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetRequestRunHook replaces the requestRun hook for workers started afterwards.
func (r *Runner) SetRequestRunHook(fn RequestRunFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRequestRun = fn
}

// SetPersistence toggles whether workers are kept alive between runs.
func (r *Runner) SetPersistence(persist bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.persist = persist
}

// State reports the session state of the worker for operation.
func (r *Runner) State(operation string) SessionState {
	r.mu.Lock()
	s, ok := r.sessions[operation]
	r.mu.Unlock()
	if !ok {
		return StateNotStarted
	}
	if s.hasExited() {
		return StateDisconnected
	}
	return s.State()
}

// Run sends one run command to the operation's worker, starting it if needed.
func (r *Runner) Run(ctx context.Context, op *domain.Operation, output io.Writer) domain.RunResult {
	if strings.TrimSpace(op.Command) == "" {
		return domain.RunResult{Status: domain.StatusNoOp}
	}

	s, persist, err := r.acquire(ctx, op)
	if err != nil {
		return domain.RunResult{
			Status: domain.StatusFailure,
			Err:    zerr.With(zerr.Wrap(err, domain.ErrProcessStartFailed.Error()), "operation", op.Name.String()),
		}
	}
	defer s.runMu.Unlock()

	s.attach(output)
	result := r.drive(ctx, s, op)

	keep := persist && s.State() == StateFinished && !s.hasExited()
	if keep {
		s.setState(StateReady)
	} else {
		s.shutdown(r.grace)
		r.forget(s)
	}

	result.Output, _ = s.detach()
	return result
}

// Close shuts down every persistent worker.
func (r *Runner) Close() error {
	r.mu.Lock()
	sessions := make([]*session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*session)
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Go(func() {
			s.runMu.Lock()
			defer s.runMu.Unlock()
			s.shutdown(r.grace)
		})
	}
	wg.Wait()
	return nil
}

// acquire finds or creates the session for op and locks it for one run.
// A session whose worker has exited is replaced by a fresh one.
func (r *Runner) acquire(ctx context.Context, op *domain.Operation) (*session, bool, error) {
	name := op.Name.String()

	for {
		r.mu.Lock()
		s, ok := r.sessions[name]
		if !ok || s.State() == StateDisconnected || s.hasExited() {
			s = newSession(name)
			r.sessions[name] = s
		}
		persist := r.persist
		hook := r.onRequestRun
		r.mu.Unlock()

		s.runMu.Lock()
		switch {
		case s.State() == StateNotStarted:
			if err := s.start(ctx, op, hook); err != nil {
				s.runMu.Unlock()
				r.forget(s)
				return nil, false, err
			}
		case s.State() == StateDisconnected || s.hasExited():
			// The worker died while this run waited for the previous one.
			s.close()
			s.runMu.Unlock()
			r.forget(s)
			continue
		}
		return s, persist, nil
	}
}

func (r *Runner) forget(s *session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[s.name] == s {
		delete(r.sessions, s.name)
	}
}

// drive moves the session from AwaitingSync or Ready through Running to a result.
func (r *Runner) drive(ctx context.Context, s *session, op *domain.Operation) domain.RunResult {
	if s.State() == StateAwaitingSync {
		msg, out := s.next(ctx, MessageSync, r.grace)
		if out != outcomeMessage {
			return r.resolve(ctx, s, op, msg, out)
		}
		s.setState(StateReady)
	}

	s.setState(StateRunning)
	if err := s.send(CommandRun); err != nil {
		return r.resolve(ctx, s, op, Message{}, outcomeDisconnected)
	}

	msg, out := s.next(ctx, MessageAfterExecute, r.grace)
	return r.resolve(ctx, s, op, msg, out)
}

func (r *Runner) resolve(ctx context.Context, s *session, op *domain.Operation, msg Message, out outcome) domain.RunResult {
	name := op.Name.String()

	switch out {
	case outcomeMessage:
		return r.fromAfterExecute(s, name, msg)

	case outcomeExited:
		return r.fromExit(s, name)

	case outcomeDisconnected:
		if err := s.readError(); err != nil {
			s.kill()
			return domain.RunResult{Status: domain.StatusFailure, Err: err}
		}
		if s.waitExit(r.grace) {
			return r.fromExit(s, name)
		}
		s.kill()
		return domain.RunResult{
			Status: domain.StatusFailure,
			Err:    zerr.With(domain.ErrWorkerDisconnected, "operation", name),
		}

	default:
		s.kill()
		return domain.RunResult{
			Status: domain.StatusFailure,
			Err:    zerr.With(zerr.Wrap(ctx.Err(), domain.ErrOperationFailed.Error()), "operation", name),
		}
	}
}

func (r *Runner) fromAfterExecute(s *session, name string, msg Message) domain.RunResult {
	status, ok := domain.ParseStatus(msg.Status)
	if !ok {
		s.kill()
		return domain.RunResult{
			Status: domain.StatusFailure,
			Err:    zerr.With(zerr.With(domain.ErrProtocolViolation, "status", msg.Status), "operation", name),
		}
	}
	s.setState(StateFinished)

	switch status {
	case domain.StatusSuccess:
		if s.sawWarnings() {
			return domain.RunResult{Status: domain.StatusSuccessWithWarning}
		}
		return domain.RunResult{Status: domain.StatusSuccess}
	case domain.StatusSuccessWithWarning, domain.StatusSkipped, domain.StatusNoOp:
		return domain.RunResult{Status: status}
	default:
		return domain.RunResult{
			Status: domain.StatusFailure,
			Err:    zerr.With(zerr.With(domain.ErrOperationFailed, "status", status.String()), "operation", name),
		}
	}
}

func (r *Runner) fromExit(s *session, name string) domain.RunResult {
	s.close()
	code := s.exitCode
	if code != 0 {
		return domain.RunResult{
			Status:   domain.StatusFailure,
			ExitCode: code,
			Err:      zerr.With(zerr.With(domain.ErrWorkerExited, "exit_code", code), "operation", name),
		}
	}
	if s.sawWarnings() {
		return domain.RunResult{Status: domain.StatusSuccessWithWarning}
	}
	return domain.RunResult{Status: domain.StatusSuccess}
}
