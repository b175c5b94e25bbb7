package supervisor

import (
	"context"
	"os/exec"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/jllopis/a2apipe/pkg/agents"
)

func requireTool(t *testing.T, name string) string {
	t.Helper()
	path, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
	return path
}

func alive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}

func waitResult(t *testing.T, s *Supervisor) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- s.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("supervisor did not finish")
		return nil
	}
}

func TestDefaultSpecsAndArgs(t *testing.T) {
	specs := DefaultSpecs()
	if len(specs) != 3 {
		t.Fatalf("expected 3 specs, got %d", len(specs))
	}
	want := []Spec{{agents.RoleReader, 8001}, {agents.RoleAnalyst, 8002}, {agents.RoleVisualizer, 8003}}
	for i := range want {
		if specs[i] != want[i] {
			t.Errorf("spec %d: expected %+v, got %+v", i, want[i], specs[i])
		}
	}
	args := strings.Join(AgentArgs(specs[1]), " ")
	if args != "agent --agent analyst --port 8002" {
		t.Errorf("unexpected args %q", args)
	}
}

func TestShutdownStopsChildren(t *testing.T) {
	sleep := requireTool(t, "sleep")
	s := New(sleep, WithArgs(func(Spec) []string { return []string{"30"} }))
	if err := s.Start(context.Background(), DefaultSpecs()); err != nil {
		t.Fatalf("start: %v", err)
	}
	pids := s.Pids()
	if len(pids) != 3 {
		t.Fatalf("expected 3 children, got %d", len(pids))
	}

	s.Shutdown(time.Second)
	if err := waitResult(t, s); err != nil {
		t.Errorf("requested shutdown must not be an error: %v", err)
	}
	for _, pid := range pids {
		if alive(pid) {
			t.Errorf("child %d still running", pid)
		}
	}
}

func TestContextCancelStopsChildren(t *testing.T) {
	sleep := requireTool(t, "sleep")
	ctx, cancel := context.WithCancel(context.Background())
	s := New(sleep, WithArgs(func(Spec) []string { return []string{"30"} }))
	if err := s.Start(ctx, DefaultSpecs()[:2]); err != nil {
		t.Fatalf("start: %v", err)
	}
	cancel()
	if err := waitResult(t, s); err != nil {
		t.Errorf("expected clean stop, got %v", err)
	}
}

func TestUnexpectedExitStopsSiblings(t *testing.T) {
	sh := requireTool(t, "sh")
	s := New(sh, WithArgs(func(spec Spec) []string {
		if spec.Role == agents.RoleAnalyst {
			return []string{"-c", "exit 3"}
		}
		return []string{"-c", "exec sleep 30"}
	}))
	if err := s.Start(context.Background(), DefaultSpecs()); err != nil {
		t.Fatalf("start: %v", err)
	}
	err := waitResult(t, s)
	if err == nil || !strings.Contains(err.Error(), "analyst agent") {
		t.Fatalf("expected analyst failure, got %v", err)
	}
	for _, pid := range s.Pids() {
		if alive(pid) {
			t.Errorf("child %d still running", pid)
		}
	}
}

func TestKillAfterGrace(t *testing.T) {
	sh := requireTool(t, "sh")
	s := New(sh,
		WithGrace(200*time.Millisecond),
		WithArgs(func(Spec) []string { return []string{"-c", `trap "" TERM; exec sleep 30`} }),
	)
	if err := s.Start(context.Background(), DefaultSpecs()[:1]); err != nil {
		t.Fatalf("start: %v", err)
	}
	// Let the shell install the trap before signalling.
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	s.Shutdown(200 * time.Millisecond)
	if err := waitResult(t, s); err != nil {
		t.Errorf("expected clean stop, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 200*time.Millisecond {
		t.Errorf("expected the grace period to elapse, took %v", elapsed)
	}
}

func TestStartFailure(t *testing.T) {
	s := New("/nonexistent/a2apipe-binary")
	err := s.Start(context.Background(), DefaultSpecs())
	if err == nil || !strings.Contains(err.Error(), "start reader agent") {
		t.Fatalf("expected start failure, got %v", err)
	}
	if err := s.Start(context.Background(), DefaultSpecs()); err == nil {
		t.Error("expected second Start to fail")
	}
}
