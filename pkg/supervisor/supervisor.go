// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package supervisor runs the three role agents as sibling processes and
// tears them down together.
package supervisor

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jllopis/a2apipe/pkg/agents"
	"github.com/jllopis/a2apipe/pkg/telemetry"
)

// DefaultGrace is how long children get between SIGTERM and SIGKILL.
const DefaultGrace = 5 * time.Second

// Spec names one child.
type Spec struct {
	Role agents.Role
	Port int
}

// DefaultSpecs launches every role on its default port.
func DefaultSpecs() []Spec {
	specs := make([]Spec, 0, len(agents.Roles))
	for _, role := range agents.Roles {
		specs = append(specs, Spec{Role: role, Port: role.DefaultPort()})
	}
	return specs
}

// AgentArgs is the default command line of a child.
func AgentArgs(spec Spec) []string {
	return []string{"agent", "--agent", spec.Role.String(), "--port", strconv.Itoa(spec.Port)}
}

type process struct {
	spec Spec
	cmd  *exec.Cmd
	done chan struct{}
}

// Supervisor owns the child processes of one serve-all invocation.
type Supervisor struct {
	executable string
	args       func(Spec) []string
	grace      time.Duration
	stdout     io.Writer
	stderr     io.Writer
	logger     *slog.Logger

	mu       sync.Mutex
	procs    []*process
	group    *errgroup.Group
	cancel   context.CancelFunc
	stopOnce sync.Once
	stopping bool
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithArgs replaces the child command line builder.
func WithArgs(args func(Spec) []string) Option {
	return func(s *Supervisor) {
		if args != nil {
			s.args = args
		}
	}
}

// WithGrace sets the SIGTERM to SIGKILL delay.
func WithGrace(grace time.Duration) Option {
	return func(s *Supervisor) {
		if grace > 0 {
			s.grace = grace
		}
	}
}

// WithOutput forwards child output. Children are silent by default.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(s *Supervisor) {
		s.stdout = stdout
		s.stderr = stderr
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a supervisor that launches executable for each child.
func New(executable string, opts ...Option) *Supervisor {
	s := &Supervisor{
		executable: executable,
		args:       AgentArgs,
		grace:      DefaultGrace,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = telemetry.WithComponent(s.logger, "supervisor")
	return s
}

// Start launches every child. Cancelling ctx, or any child exiting on its
// own, shuts the remaining children down. If a child cannot be started the
// ones already running are stopped and the error is returned.
func (s *Supervisor) Start(ctx context.Context, specs []Spec) error {
	s.mu.Lock()
	if s.group != nil {
		s.mu.Unlock()
		return stderrors.New("supervisor already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(ctx)
	s.group = group
	s.cancel = cancel
	s.mu.Unlock()

	for _, spec := range specs {
		proc, err := s.launch(spec)
		if err != nil {
			s.Shutdown(s.grace)
			_ = group.Wait()
			return fmt.Errorf("start %s agent: %w", spec.Role, err)
		}
		group.Go(func() error { return s.watch(proc) })
	}

	group.Go(func() error {
		<-gctx.Done()
		s.Shutdown(s.grace)
		return nil
	})
	return nil
}

func (s *Supervisor) launch(spec Spec) (*process, error) {
	cmd := exec.Command(s.executable, s.args(spec)...)
	cmd.Stdout = s.stdout
	cmd.Stderr = s.stderr
	cmd.WaitDelay = s.grace
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	proc := &process{spec: spec, cmd: cmd, done: make(chan struct{})}

	s.mu.Lock()
	s.procs = append(s.procs, proc)
	s.mu.Unlock()

	s.logger.Info("agent started",
		slog.String("agent", spec.Role.String()),
		slog.Int("port", spec.Port),
		slog.Int("pid", cmd.Process.Pid),
	)
	return proc, nil
}

// watch waits for one child. An exit that was not requested is an error.
func (s *Supervisor) watch(proc *process) error {
	err := proc.cmd.Wait()
	close(proc.done)

	s.mu.Lock()
	stopping := s.stopping
	s.mu.Unlock()
	if stopping {
		s.logger.Info("agent stopped", slog.String("agent", proc.spec.Role.String()))
		return nil
	}
	if err == nil {
		err = stderrors.New("exited")
	}
	s.logger.Error("agent exited unexpectedly",
		slog.String("agent", proc.spec.Role.String()),
		slog.String("error", err.Error()),
	)
	return fmt.Errorf("%s agent: %w", proc.spec.Role, err)
}

// Wait blocks until every child has exited and returns the first
// unexpected exit.
func (s *Supervisor) Wait() error {
	s.mu.Lock()
	group := s.group
	s.mu.Unlock()
	if group == nil {
		return nil
	}
	return group.Wait()
}

// Shutdown sends SIGTERM to every running child and kills those still
// alive after grace. It returns once all children have exited.
func (s *Supervisor) Shutdown(grace time.Duration) {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopping = true
		procs := append([]*process(nil), s.procs...)
		cancel := s.cancel
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		s.terminate(procs, grace)
	})
}

func (s *Supervisor) terminate(procs []*process, grace time.Duration) {
	for _, proc := range procs {
		select {
		case <-proc.done:
			continue
		default:
		}
		if err := proc.cmd.Process.Signal(syscall.SIGTERM); err != nil {
			s.logger.Debug("signal failed",
				slog.String("agent", proc.spec.Role.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	deadline := time.NewTimer(grace)
	defer deadline.Stop()
	for _, proc := range procs {
		select {
		case <-proc.done:
		case <-deadline.C:
			for _, rest := range procs {
				s.kill(rest)
			}
			for _, rest := range procs {
				<-rest.done
			}
			return
		}
	}
}

func (s *Supervisor) kill(proc *process) {
	select {
	case <-proc.done:
		return
	default:
	}
	s.logger.Warn("agent did not stop in time, killing", slog.String("agent", proc.spec.Role.String()))
	_ = proc.cmd.Process.Kill()
}

// Pids returns the process ids of the launched children in start order.
func (s *Supervisor) Pids() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	pids := make([]int, 0, len(s.procs))
	for _, proc := range s.procs {
		pids = append(pids, proc.cmd.Process.Pid)
	}
	return pids
}
