// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Command a2apipe serves the sales insight agents and drives the
// Reader → Analyst → Visualizer pipeline against them.
//
// Usage:
//
//	a2apipe serve-all
//	a2apipe agent --agent reader --port 8001
//	a2apipe run --dataset data/sales_marketing.csv --format yaml
//	a2apipe card --url http://localhost:8002
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/jllopis/a2apipe/pkg/config"
	"github.com/jllopis/a2apipe/pkg/telemetry"
)

const serviceName = "a2apipe"

// CLI defines the command-line interface.
type CLI struct {
	Agent    AgentCmd    `cmd:"" help:"Serve one role agent over JSON-RPC."`
	ServeAll ServeAllCmd `cmd:"" name:"serve-all" help:"Launch the reader, analyst and visualizer agents as sibling processes."`
	Run      RunCmd      `cmd:"" help:"Run the pipeline against running agents."`
	Card     CardCmd     `cmd:"" help:"Fetch and print a remote agent card."`
	Probe    ProbeCmd    `cmd:"" help:"Send one message to an agent and print the reply."`
	Version  VersionCmd  `cmd:"" help:"Show version information."`

	Config    string `short:"c" help:"Path to a YAML config file." type:"path" env:"A2APIPE_CONFIG"`
	LogLevel  string `help:"Log level (debug, info, warn, error). Overrides the config file."`
	LogFormat string `help:"Log format (text, json). Overrides the config file."`
}

// Globals is handed to every command's Run method.
type Globals struct {
	Ctx    context.Context
	Config *config.Config
	Path   string
	Logger *slog.Logger
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("a2apipe version %s\n", version())
	return nil
}

func version() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			return info.Main.Version
		}
	}
	return "dev"
}

func main() {
	os.Exit(run())
}

// run executes the selected command and returns the process exit code, so
// deferred cleanup completes before the process exits.
func run() int {
	_ = godotenv.Load()

	cli := CLI{}
	kctx := kong.Parse(&cli,
		kong.Name(serviceName),
		kong.Description("Sales insight pipeline over three A2A agents."),
		kong.UsageOnError(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	globals, err := cli.globals(ctx)
	if err != nil {
		return report(os.Stderr, err)
	}
	if err := kctx.Run(globals); err != nil {
		return report(os.Stderr, err)
	}
	return 0
}

func (cli *CLI) globals(ctx context.Context) (*Globals, error) {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return nil, err
	}
	if cli.LogLevel != "" {
		cfg.Log.Level = cli.LogLevel
	}
	if cli.LogFormat != "" {
		cfg.Log.Format = cli.LogFormat
	}
	logger := telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)
	return &Globals{Ctx: ctx, Config: cfg, Path: cli.Config, Logger: logger}, nil
}
