package agents

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jllopis/a2apipe/pkg/a2a/server"
	"github.com/jllopis/a2apipe/pkg/errors"
	"github.com/jllopis/a2apipe/pkg/llm"
	"github.com/jllopis/a2apipe/pkg/resilience"
	"github.com/jllopis/a2apipe/pkg/telemetry"
)

// Deps are the collaborators a role handler is built with.
type Deps struct {
	Provider llm.Provider
	// Model is the default model; empty selects the role default.
	Model string
	// Timeout bounds each model call. Zero leaves only the request context.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Constructor builds the message handler of one role.
type Constructor func(Deps) server.MessageHandler

// Registry maps every role to its constructor.
type Registry map[Role]Constructor

// DefaultRegistry binds each role to its built-in handler.
func DefaultRegistry() Registry {
	return Registry{
		RoleReader:     func(d Deps) server.MessageHandler { return NewReader(d) },
		RoleAnalyst:    func(d Deps) server.MessageHandler { return NewAnalyst(d) },
		RoleVisualizer: func(d Deps) server.MessageHandler { return NewVisualizer(d) },
	}
}

// Handler builds the full agent surface of a role.
func (r Registry) Handler(role Role, deps Deps) (*server.AgentHandler, error) {
	build, ok := r[role]
	if !ok {
		return nil, fmt.Errorf("no handler registered for role %q", role)
	}
	if deps.Provider == nil {
		return nil, fmt.Errorf("agent %s: llm provider is required", role)
	}
	return server.NewAgentHandler(role.Profile().Name, build(deps), server.WithLogger(deps.Logger)), nil
}

func (d Deps) withDefaults(role Role) Deps {
	if d.Model == "" {
		d.Model = role.DefaultModel()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	d.Logger = telemetry.WithComponent(d.Logger, "agent."+role.String())
	return d
}

// chat sends one model request bounded by timeout. A call that outlives the
// bound fails with TIMEOUT, any other failure is an upstream failure.
func chat(ctx context.Context, provider llm.Provider, timeout time.Duration, stage string, req llm.ChatRequest) (*llm.ChatResponse, error) {
	resp, err := resilience.WithTimeout(ctx, resilience.TimeoutConfig{Duration: timeout}, func(ctx context.Context) (*llm.ChatResponse, error) {
		return provider.Chat(ctx, req)
	})
	if err == nil {
		return resp, nil
	}
	if errors.Is(err, errors.CodeTimeout) || stderrors.Is(err, context.DeadlineExceeded) {
		return nil, errors.New(errors.CodeTimeout, stage+" model call exceeded timeout", err).
			WithContext("model", req.Model).
			WithContext("timeout", timeout.String())
	}
	return nil, errors.Upstream(stage+" model call failed", err).WithContext("model", req.Model)
}
