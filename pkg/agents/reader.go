package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jllopis/a2apipe/pkg/a2a"
	"github.com/jllopis/a2apipe/pkg/dataset"
	"github.com/jllopis/a2apipe/pkg/errors"
	"github.com/jllopis/a2apipe/pkg/llm"
)

const readerPreviewRows = 5

const readerPrompt = "You are a revenue operations ingestion agent. " +
	"Review the provided sales and marketing records and craft a concise " +
	"overview. Highlight demand trends, channel efficiency, and any " +
	"anomalies worth deeper analysis." +
	"\n\nDataset preview:\n%s\n\n" +
	"Provide:\n" +
	"1. Three bullet insights on revenue and pipeline momentum.\n" +
	"2. Two risks or anomalies worth escalation.\n" +
	"3. A JSON block named metrics summarizing totals for sales, marketing_spend, " +
	"lead_to_customer_rate, and regions_ranked."

// Reader ingests a dataset and reports its schema, records, deterministic
// metrics and a model-written overview.
type Reader struct {
	provider llm.Provider
	model    string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewReader builds the reader role.
func NewReader(deps Deps) *Reader {
	deps = deps.withDefaults(RoleReader)
	return &Reader{provider: deps.Provider, model: deps.Model, timeout: deps.Timeout, logger: deps.Logger}
}

// HandleMessage implements server.MessageHandler.
func (r *Reader) HandleMessage(ctx context.Context, msg *a2a.Message) (*a2a.Message, error) {
	in := payloadOf(msg)
	table, err := r.load(in)
	if err != nil {
		return nil, err
	}
	model := in.model(r.model)
	metrics := dataset.ComputeMetrics(table)

	preview := table.Head(readerPreviewRows).CSV() + "\n" + table.CSV()
	resp, err := chat(ctx, r.provider, r.timeout, "reader", llm.ChatRequest{
		Model: model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: fmt.Sprintf(readerPrompt, preview)},
		},
	})
	if err != nil {
		return nil, err
	}
	summary := strings.TrimSpace(resp.Content)

	r.logger.Info("dataset summarized",
		slog.Int("rows", table.Len()),
		slog.Int("columns", len(table.Columns)),
		slog.String("model", model),
	)
	return reply(summary, map[string]any{
		"schema":  table.Columns,
		"records": table.Records(),
		"metrics": metrics,
	})
}

// load resolves the dataset with precedence records > csv_text > dataset_path.
func (r *Reader) load(in payload) (*dataset.Table, error) {
	count, err := in.recordList("Reader")
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return in.records()
	}
	if text := in.str("csv_text"); strings.TrimSpace(text) != "" {
		table, err := dataset.ParseCSVString(text)
		if err != nil {
			return nil, errors.BadRequest(err.Error()).WithContext("key", "csv_text")
		}
		return table, nil
	}
	if path := strings.TrimSpace(in.str("dataset_path")); path != "" {
		table, err := dataset.LoadFile(path)
		if err != nil {
			return nil, errors.New(errors.CodeBadRequest, err.Error(), nil).WithContext("dataset_path", path)
		}
		return table, nil
	}
	return nil, errors.BadRequest("Reader agent expects 'dataset_path', 'csv_text', or 'records'.",
		"dataset_path", "csv_text", "records")
}
