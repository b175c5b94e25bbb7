package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jllopis/a2apipe/pkg/a2a"
	"github.com/jllopis/a2apipe/pkg/agents"
	"github.com/jllopis/a2apipe/pkg/errors"
	"github.com/jllopis/a2apipe/pkg/pipeline"
	"github.com/jllopis/a2apipe/pkg/runstore"
	"github.com/jllopis/a2apipe/pkg/telemetry"
)

// RunCmd drives one pipeline run.
type RunCmd struct {
	Dataset   string            `help:"CSV or XLSX dataset to analyse." type:"path"`
	OutputDir string            `name:"output-dir" help:"Directory receiving chart artifacts." type:"path"`
	Format    string            `help:"Report format (text, json, yaml)." enum:"text,json,yaml" default:"text"`
	Endpoint  map[string]string `help:"Agent endpoint override, e.g. --endpoint analyst=http://host:8002." mapsep:","`
	Model     map[string]string `help:"Model override per agent, e.g. --model visualizer=gpt-4o." mapsep:","`
	HistoryDB string            `name:"history-db" help:"SQLite file recording every run." type:"path"`
}

func (c *RunCmd) Run(g *Globals) error {
	pcfg, err := c.pipelineConfig(g)
	if err != nil {
		return err
	}
	dataset := c.Dataset
	if dataset == "" {
		dataset = g.Config.Pipeline.Dataset
	}

	_, shutdownTelemetry, err := initTelemetry(serviceName+"-pipeline", g.Config.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()
	metrics, err := telemetry.NewMetrics()
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	pcfg.Progress = func(stage agents.Role, resp *a2a.Message) error {
		g.Logger.Info("stage reply received",
			slog.String("stage", stage.String()),
			slog.Int("text_bytes", len(resp.Text())),
		)
		return nil
	}

	orchestrator := pipeline.New(pipeline.WithLogger(g.Logger), pipeline.WithMetrics(metrics))
	started := time.Now()
	result, runErr := orchestrator.Run(g.Ctx, dataset, pcfg)
	c.recordHistory(g, dataset, started, result, runErr)
	if runErr != nil {
		return runErr
	}
	return render(os.Stdout, result, c.Format)
}

func (c *RunCmd) pipelineConfig(g *Globals) (pipeline.Config, error) {
	cfg := pipeline.Config{
		Endpoints: map[agents.Role]string{},
		Models:    map[agents.Role]string{},
		OutputDir: g.Config.Pipeline.OutputDir,
	}
	if c.OutputDir != "" {
		cfg.OutputDir = c.OutputDir
	}
	for _, layer := range []map[string]string{g.Config.Pipeline.Endpoints, c.Endpoint} {
		if err := mergeRoles(cfg.Endpoints, layer); err != nil {
			return cfg, err
		}
	}
	for _, layer := range []map[string]string{g.Config.Pipeline.Models, c.Model} {
		if err := mergeRoles(cfg.Models, layer); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func mergeRoles(dst map[agents.Role]string, src map[string]string) error {
	for key, value := range src {
		role, err := agents.ParseRole(key)
		if err != nil {
			return errors.New(errors.CodeBadRequest, err.Error(), nil)
		}
		if value != "" {
			dst[role] = value
		}
	}
	return nil
}

// recordHistory stores the run when --history-db is set. A history
// failure is logged and never fails the run.
func (c *RunCmd) recordHistory(g *Globals, dataset string, started time.Time, result *pipeline.Result, runErr error) {
	path := c.HistoryDB
	if path == "" {
		path = g.Config.Pipeline.HistoryDB
	}
	if path == "" {
		return
	}
	store, err := runstore.Open(path)
	if err != nil {
		g.Logger.Warn("run history unavailable", slog.String("error", err.Error()))
		return
	}
	defer store.Close()

	var run runstore.Run
	if runErr != nil {
		run = runstore.FromError(dataset, started, runErr)
	} else {
		run = runstore.FromResult(result)
	}
	if err := store.Record(context.WithoutCancel(g.Ctx), run); err != nil {
		g.Logger.Warn("run history not recorded", slog.String("error", err.Error()))
	}
}
