package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jllopis/a2apipe/pkg/supervisor"
)

// ServeAllCmd launches every role agent as a child process.
type ServeAllCmd struct {
	Grace      time.Duration `help:"Time children get to stop before they are killed." default:"5s"`
	Executable string        `help:"Binary to launch for each agent. Defaults to this executable." type:"path"`
}

func (c *ServeAllCmd) Run(g *Globals) error {
	executable := c.Executable
	if executable == "" {
		self, err := os.Executable()
		if err != nil {
			return fmt.Errorf("resolve executable: %w", err)
		}
		executable = self
	}

	specs := supervisor.DefaultSpecs()
	for i := range specs {
		if port := g.Config.Agent(specs[i].Role.String()).Port; port != 0 {
			specs[i].Port = port
		}
	}

	sup := supervisor.New(executable,
		supervisor.WithArgs(childArgs(g.Path)),
		supervisor.WithGrace(c.Grace),
		supervisor.WithOutput(os.Stdout, os.Stderr),
		supervisor.WithLogger(g.Logger),
	)
	if err := sup.Start(g.Ctx, specs); err != nil {
		return err
	}

	g.Logger.Info("agents running, press Ctrl+C to stop", slog.String("agents", runningAgents(specs, sup.Pids())))

	return sup.Wait()
}

// childArgs forwards the config file to every child.
func childArgs(configPath string) func(supervisor.Spec) []string {
	return func(spec supervisor.Spec) []string {
		args := supervisor.AgentArgs(spec)
		if configPath != "" {
			args = append([]string{"--config", configPath}, args...)
		}
		return args
	}
}

// runningAgents renders role@port(pid) for each launched child.
func runningAgents(specs []supervisor.Spec, pids []int) string {
	running := make([]string, 0, len(specs))
	for i, spec := range specs {
		entry := fmt.Sprintf("%s@%d", spec.Role, spec.Port)
		if i < len(pids) {
			entry += fmt.Sprintf(" (pid %d)", pids[i])
		}
		running = append(running, entry)
	}
	return strings.Join(running, ", ")
}
