// Package shell runs operations as one-shot shell commands.
package shell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/creack/pty"
	"go.trai.ch/monorun/internal/core/domain"
	"go.trai.ch/monorun/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.OperationRunner = (*Runner)(nil)

// Runner implements ports.OperationRunner by running the command through sh -c.
// Standard output is attached to a pseudo terminal when one can be opened so
// tools keep their interactive formatting; standard error always uses a pipe so
// it can be told apart.
type Runner struct{}

// NewRunner creates a new Runner.
func NewRunner() *Runner {
	return &Runner{}
}

// Run executes the operation's command in its project folder.
func (r *Runner) Run(ctx context.Context, op *domain.Operation, output io.Writer) domain.RunResult {
	if strings.TrimSpace(op.Command) == "" {
		return domain.RunResult{Status: domain.StatusNoOp}
	}

	cmd := Command(ctx, op)

	capture := &captureWriter{out: output}
	stderr := &stderrWriter{capture: capture}
	cmd.Stderr = stderr

	proc, err := start(cmd, capture)
	if err != nil {
		return domain.RunResult{
			Status: domain.StatusFailure,
			Output: capture.String(),
			Err:    zerr.With(zerr.Wrap(err, domain.ErrProcessStartFailed.Error()), "operation", op.Name.String()),
		}
	}

	waitErr := proc.Wait()
	result := domain.RunResult{Output: capture.String()}

	switch {
	case waitErr != nil:
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		result.Status = domain.StatusFailure
		result.ExitCode = exitCode
		result.Err = zerr.With(zerr.Wrap(waitErr, domain.ErrCommandFailed.Error()), "exit_code", exitCode)
	case stderr.seen.Load() && op.AllowWarnings:
		result.Status = domain.StatusSuccessWithWarning
	case stderr.seen.Load():
		result.Status = domain.StatusFailure
		result.Err = zerr.With(domain.ErrStderrOutput, "operation", op.Name.String())
	default:
		result.Status = domain.StatusSuccess
	}

	return result
}

// process is a started command whose output is still being copied.
type process struct {
	cmd    *exec.Cmd
	tty    *os.File
	ptmx   *os.File
	ioDone <-chan struct{}
}

// start launches cmd with stdout on a pty, falling back to a pipe.
func start(cmd *exec.Cmd, stdout io.Writer) (*process, error) {
	ptmx, tty, err := pty.Open()
	if err != nil {
		cmd.Stdout = stdout
		if err := cmd.Start(); err != nil {
			return nil, err
		}
		done := make(chan struct{})
		close(done)
		return &process{cmd: cmd, ioDone: done}, nil
	}

	cmd.Stdout = tty
	if err := cmd.Start(); err != nil {
		_ = tty.Close()
		_ = ptmx.Close()
		return nil, err
	}

	ioDone := make(chan struct{})
	go func() {
		defer close(ioDone)
		// Reading the master fails with EIO once the child and every holder of the tty exit.
		_, _ = io.Copy(stdout, ptmx)
	}()

	return &process{cmd: cmd, tty: tty, ptmx: ptmx, ioDone: ioDone}, nil
}

// Wait waits for the command to exit and its output to drain.
func (p *process) Wait() error {
	if p.tty != nil {
		// The child holds its own copy; closing ours lets the master see EOF.
		_ = p.tty.Close()
	}

	err := p.cmd.Wait()
	<-p.ioDone

	if p.ptmx != nil {
		_ = p.ptmx.Close()
	}
	return err
}

// captureWriter records everything written while forwarding it to out.
type captureWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
	out io.Writer
}

func (c *captureWriter) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf.Write(p)
	if c.out != nil {
		_, _ = c.out.Write(p)
	}
	return len(p), nil
}

// String returns the captured output with terminal line endings normalized.
func (c *captureWriter) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.ReplaceAll(c.buf.String(), "\r\n", "\n")
}

// stderrWriter notes whether the command wrote anything to standard error.
type stderrWriter struct {
	capture *captureWriter
	seen    atomic.Bool
}

func (s *stderrWriter) Write(p []byte) (int, error) {
	if len(p) > 0 {
		s.seen.Store(true)
	}
	return s.capture.Write(p)
}
