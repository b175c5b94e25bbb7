// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package pipeline drives one Reader → Analyst → Visualizer run over the
// agents' JSON-RPC endpoints and assembles the report and transcript.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/a2apipe/pkg/a2a"
	"github.com/jllopis/a2apipe/pkg/a2a/client"
	"github.com/jllopis/a2apipe/pkg/agents"
	"github.com/jllopis/a2apipe/pkg/dataset"
	"github.com/jllopis/a2apipe/pkg/errors"
	"github.com/jllopis/a2apipe/pkg/telemetry"
)

// Stage request texts.
const (
	readerInstruction     = "Ingest the provided sales dataset and produce a structured summary."
	analystInstruction    = "Convert the reader summary into a decision-ready analysis."
	visualizerInstruction = "Generate charts and advanced analytics for the executive summary."
)

// Sender exchanges one envelope with the agent at endpoint.
type Sender interface {
	Send(ctx context.Context, endpoint string, msg *a2a.Message) (*a2a.Message, *a2a.AgentCard, error)
}

// Orchestrator runs pipelines. It holds no per-run state and may be reused.
type Orchestrator struct {
	sender  Sender
	logger  *slog.Logger
	metrics *telemetry.Metrics
	tracer  trace.Tracer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSender replaces the network connector.
func WithSender(sender Sender) Option {
	return func(o *Orchestrator) {
		if sender != nil {
			o.sender = sender
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records stage durations and failures.
func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = metrics
	}
}

// New creates an orchestrator that talks to agents through a fresh
// client.Connector unless WithSender is given.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		logger: slog.Default(),
		tracer: otel.Tracer("github.com/jllopis/a2apipe/pkg/pipeline"),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.sender == nil {
		o.sender = client.New(client.WithLogger(o.logger))
	}
	o.logger = telemetry.WithComponent(o.logger, "pipeline")
	return o
}

// run carries the state of one invocation.
type run struct {
	record     RunRecord
	endpoints  map[agents.Role]string
	models     map[agents.Role]string
	progress   ProgressFunc
	cards      map[agents.Role]*a2a.AgentCard
	transcript []Entry
}

// Run executes Reader, Analyst and Visualizer strictly in order. Any failure
// aborts the run and is returned as a *StageError naming the stage.
func (o *Orchestrator) Run(ctx context.Context, datasetPath string, cfg Config) (*Result, error) {
	absPath, err := filepath.Abs(datasetPath)
	if err != nil {
		return nil, errors.New(errors.CodeBadRequest, "resolve dataset path", err)
	}
	if _, err := os.Stat(absPath); err != nil {
		return nil, errors.New(errors.CodeBadRequest, fmt.Sprintf("dataset could not be located at %s", absPath), err).
			WithContext("dataset_path", absPath)
	}
	table, err := dataset.LoadFile(absPath)
	if err != nil {
		return nil, errors.New(errors.CodeBadRequest, "load dataset", err).WithContext("dataset_path", absPath)
	}

	outputRoot, err := filepath.Abs(cfg.outputDir())
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "resolve output directory", err)
	}
	if err := os.MkdirAll(outputRoot, 0o755); err != nil {
		return nil, errors.New(errors.CodeInternal, "create output directory", err)
	}

	r := &run{
		record: RunRecord{
			ID:        uuid.NewString(),
			Dataset:   absPath,
			StartedAt: time.Now().UTC(),
		},
		endpoints: cfg.endpoints(),
		models:    cfg.models(),
		progress:  cfg.Progress,
		cards:     make(map[agents.Role]*a2a.AgentCard, len(agents.Roles)),
	}
	r.record.Models = r.models
	r.record.Endpoints = r.endpoints

	ctx, span := o.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String(telemetry.AttrRunID, r.record.ID),
	))
	defer span.End()

	o.logger.InfoContext(ctx, "pipeline run started",
		slog.String("run_id", r.record.ID),
		slog.String("dataset", absPath),
		slog.Int("rows", table.Len()),
	)

	readerReply, err := o.exchange(ctx, r, agents.RoleReader, readerInstruction, map[string]any{
		"dataset_path": absPath,
		"csv_text":     table.CSV(),
		"model":        r.models[agents.RoleReader],
	})
	if err != nil {
		return nil, o.fail(span, err)
	}
	readerData := mapOf(readerReply.Data())
	records := listOf(readerData["records"])
	forwarded := forwardedRecords(readerReply, records)

	analystReply, err := o.exchange(ctx, r, agents.RoleAnalyst, analystInstruction, map[string]any{
		"records":      forwarded,
		"summary_text": readerReply.Text(),
		"metrics":      mapOf(readerData["metrics"]),
		"model":        r.models[agents.RoleAnalyst],
	})
	if err != nil {
		return nil, o.fail(span, err)
	}

	visualizerReply, err := o.exchange(ctx, r, agents.RoleVisualizer, visualizerInstruction, map[string]any{
		"records":       forwarded,
		"analysis_text": analystReply.Text(),
		"artifacts_dir": filepath.Join(outputRoot, "charts"),
		"model":         r.models[agents.RoleVisualizer],
	})
	if err != nil {
		return nil, o.fail(span, err)
	}
	visualizerData := mapOf(visualizerReply.Data())

	r.record.FinishedAt = time.Now().UTC()
	artifactsDir, _ := visualizerData["artifacts_directory"].(string)
	result := &Result{
		Run:        r.record,
		Cards:      r.cards,
		Transcript: r.transcript,
		Reader: ReaderResult{
			Summary: readerReply.Text(),
			Metrics: mapOf(readerData["metrics"]),
			Records: records,
			Schema:  listOf(readerData["schema"]),
		},
		Analyst: AnalystResult{
			Analysis:   analystReply.Text(),
			Structured: mapOf(analystReply.Data()),
		},
		Visualizer: VisualizerResult{
			Insights:           visualizerReply.Text(),
			ToolOutputs:        listOf(visualizerData["tool_outputs"]),
			ArtifactsDirectory: artifactsDir,
			RawMessages:        listOf(visualizerData["raw_messages"]),
		},
		Conversation: conversationLog(r.transcript),
	}

	o.logger.InfoContext(ctx, "pipeline run completed",
		slog.String("run_id", r.record.ID),
		slog.Duration("elapsed", r.record.FinishedAt.Sub(r.record.StartedAt)),
		slog.Int("charts", len(result.Visualizer.FigurePaths())),
	)
	return result, nil
}

// exchange sends one stage request and records both envelopes. The progress
// callback runs before the next stage is built.
func (o *Orchestrator) exchange(ctx context.Context, r *run, stage agents.Role, text string, data map[string]any) (*a2a.Message, error) {
	endpoint := r.endpoints[stage]
	ctx, span := o.tracer.Start(ctx, "pipeline.stage."+stage.String(), trace.WithAttributes(
		telemetry.StageAttributes(stage.String(), endpoint, r.models[stage])...,
	))
	defer span.End()

	request, err := a2a.NewMessage(a2a.RoleUser, text, data)
	if err != nil {
		err = errors.New(errors.CodeBadRequest, "stage request cannot be encoded", err)
		o.fail(span, err)
		return nil, o.stageError(r, stage, err)
	}
	r.transcript = append(r.transcript, Entry{Speaker: SpeakerCoordinator, Stage: stage, Message: request})

	start := time.Now()
	reply, card, err := o.sender.Send(ctx, endpoint, request)
	o.metrics.RecordStage(ctx, stage.String(), time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.logger.ErrorContext(ctx, "stage failed",
			slog.String("stage", stage.String()),
			slog.String("endpoint", endpoint),
			slog.String("code", string(errors.CodeOf(err))),
			slog.String("error", err.Error()),
		)
		return nil, o.stageError(r, stage, err)
	}

	r.cards[stage] = card
	speaker := stage.Profile().Name
	if card != nil && card.Name != "" {
		speaker = card.Name
	}
	r.transcript = append(r.transcript, Entry{Speaker: speaker, Stage: stage, Message: reply})
	o.logger.InfoContext(ctx, "stage completed",
		slog.String("stage", stage.String()),
		slog.String("agent", speaker),
		slog.Duration("elapsed", time.Since(start)),
	)

	if r.progress != nil {
		if err := r.progress(stage, reply); err != nil {
			return nil, o.stageError(r, stage, err)
		}
	}
	return reply, nil
}

// forwardedRecords returns the reader's records as encoded on the wire, so
// later stages see the columns in the reader's order.
func forwardedRecords(reply *a2a.Message, decoded []any) any {
	part, ok := reply.DataPart()
	if !ok {
		return decoded
	}
	raw, ok := part.Field("records")
	if !ok || len(raw) == 0 || raw[0] != '[' {
		return decoded
	}
	return raw
}

func (o *Orchestrator) stageError(r *run, stage agents.Role, err error) *StageError {
	return &StageError{
		RunID:      r.record.ID,
		Stage:      stage,
		Err:        err,
		Transcript: append([]Entry(nil), r.transcript...),
	}
}

func (o *Orchestrator) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
