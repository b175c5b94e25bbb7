package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jllopis/a2apipe/pkg/a2a"
	"github.com/jllopis/a2apipe/pkg/charts"
	"github.com/jllopis/a2apipe/pkg/dataset"
	"github.com/jllopis/a2apipe/pkg/errors"
	"github.com/jllopis/a2apipe/pkg/llm"
)

const (
	// ChartTool is the single tool the visualizer exposes to its model.
	ChartTool = "render_sales_chart"

	// MaxToolIterations caps the model-driven tool loop.
	MaxToolIterations = 3

	// DefaultArtifactsDir is used when the request names no artifacts_dir.
	DefaultArtifactsDir = "artifacts/charts"

	terminateMarker = "TERMINATE"
	fallbackNote    = "Generated default charts for Product and Region views."
)

const visualizerSystem = "You are a marketing analytics visualizer. Always call the tool " +
	"`render_sales_chart` twice: once with metric='Sales', group_by='Product', " +
	"chart_type='bar', top_n=5 and once with metric='Sales', group_by='Region', " +
	"chart_type='bar', top_n=4. Blend quantitative insights with narrative " +
	"recommendations. Conclude your final response with the word TERMINATE."

const visualizerTask = "Use the sales and marketing insights below to craft fine-grained analytics, " +
	"highlight lift and drag, and propose next actions. Call the tool " +
	"`render_sales_chart` twice using the specified arguments. After tool execution, " +
	"summarize the visuals and provide recommendations in bullets." +
	"\n\nInsights to leverage:\n"

var chartToolDef = llm.Tool{
	Type: llm.ToolTypeFunction,
	Function: llm.FunctionDef{
		Name:        ChartTool,
		Description: "Render a Plotly chart of a metric aggregated by a column and save it as JSON on disk.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"metric":     map[string]any{"type": "string", "default": charts.DefaultMetric},
				"group_by":   map[string]any{"type": "string", "default": charts.DefaultGroupBy},
				"chart_type": map[string]any{"type": "string", "enum": []string{"bar", "line"}, "default": "bar"},
				"top_n":      map[string]any{"type": "integer", "default": charts.DefaultTopN},
			},
		},
	},
}

// Visualizer renders charts through a bounded tool-call loop and narrates them.
type Visualizer struct {
	provider llm.Provider
	model    string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewVisualizer builds the visualizer role.
func NewVisualizer(deps Deps) *Visualizer {
	deps = deps.withDefaults(RoleVisualizer)
	return &Visualizer{provider: deps.Provider, model: deps.Model, timeout: deps.Timeout, logger: deps.Logger}
}

// HandleMessage implements server.MessageHandler.
func (v *Visualizer) HandleMessage(ctx context.Context, msg *a2a.Message) (*a2a.Message, error) {
	in := payloadOf(msg)
	count, err := in.recordList("Visualizer")
	if err != nil {
		return nil, err
	}
	var missing []string
	if count == 0 {
		missing = append(missing, "records")
	}
	if !in.has("analysis_text") {
		missing = append(missing, "analysis_text")
	}
	if len(missing) > 0 {
		return nil, errors.BadRequest("Visualizer agent expects 'records' and 'analysis_text'.", missing...)
	}
	table, err := in.records()
	if err != nil {
		return nil, err
	}
	dir := strings.TrimSpace(in.str("artifacts_dir"))
	if dir == "" {
		dir = DefaultArtifactsDir
	}

	session := &chartSession{table: table, dir: dir}
	text, err := v.converse(ctx, in.model(v.model), in.str("analysis_text"), session)
	if err != nil {
		return nil, err
	}

	if len(session.outputs) == 0 {
		if err := session.renderDefaults(); err != nil {
			return nil, errors.Upstream("default charts failed", err)
		}
		if text != "" {
			text += "\n\n(" + fallbackNote + ")"
		} else {
			text = fallbackNote
		}
		v.logger.Warn("model produced no charts; rendered defaults", slog.String("dir", dir))
	}

	outputs := uniqueByPath(session.outputs)
	v.logger.Info("charts rendered", slog.Int("charts", len(outputs)), slog.String("dir", dir))
	return reply(text, map[string]any{
		"tool_outputs":        outputs,
		"artifacts_directory": dir,
		"raw_messages":        session.transcript,
	})
}

// converse runs the tool loop and returns the model's narrative with the
// termination marker removed.
func (v *Visualizer) converse(ctx context.Context, model, analysis string, session *chartSession) (string, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: visualizerSystem},
		{Role: llm.RoleUser, Content: visualizerTask + analysis},
	}
	session.record("user", messages[1].Content)

	var segments []string
	pending := false
	for i := 0; i < MaxToolIterations; i++ {
		resp, err := chat(ctx, v.provider, v.timeout, "visualizer", llm.ChatRequest{Model: model, Messages: messages, Tools: []llm.Tool{chartToolDef}})
		if err != nil {
			return "", err
		}
		if content := strings.TrimSpace(resp.Content); content != "" {
			segments = append(segments, content)
			session.record("assistant", content)
		}
		if len(resp.ToolCalls) == 0 {
			pending = false
			break
		}
		pending = true
		messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls})
		for _, call := range resp.ToolCalls {
			result := session.execute(call)
			messages = append(messages, llm.Message{Role: llm.RoleTool, Content: result, ToolCallID: call.ID})
		}
	}

	// The loop stopped on the iteration cap with tool results the model has
	// not seen yet: ask once more, without tools, for the narrative.
	if pending {
		resp, err := chat(ctx, v.provider, v.timeout, "visualizer", llm.ChatRequest{Model: model, Messages: messages})
		if err != nil {
			return "", err
		}
		if content := strings.TrimSpace(resp.Content); content != "" {
			segments = append(segments, content)
			session.record("assistant", content)
		}
	}

	text := strings.Join(segments, "\n")
	return strings.TrimSpace(strings.ReplaceAll(text, terminateMarker, "")), nil
}

// chartSession holds the charts and the readable trace of one request.
type chartSession struct {
	table      *dataset.Table
	dir        string
	outputs    []charts.Descriptor
	transcript []string
}

func (s *chartSession) record(source, content string) {
	s.transcript = append(s.transcript, fmt.Sprintf("%s: %s", source, content))
}

type chartArgs struct {
	Metric    string `json:"metric"`
	GroupBy   string `json:"group_by"`
	ChartType string `json:"chart_type"`
	TopN      *int   `json:"top_n"`
}

// execute runs one tool call and returns the JSON result handed back to the
// model. Failures are reported to the model rather than aborting the loop.
func (s *chartSession) execute(call llm.ToolCall) string {
	s.record("tool_call", fmt.Sprintf("%s(%s)", call.Function.Name, call.Function.Arguments))
	if call.Function.Name != ChartTool {
		return s.toolError(fmt.Errorf("unknown tool %q", call.Function.Name))
	}
	var args chartArgs
	if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return s.toolError(fmt.Errorf("invalid arguments: %w", err))
		}
	}
	topN := charts.DefaultTopN
	if args.TopN != nil {
		topN = *args.TopN
	}
	desc, err := charts.Render(s.table, charts.Spec{
		Metric:    args.Metric,
		GroupBy:   args.GroupBy,
		ChartType: charts.Type(args.ChartType),
		TopN:      topN,
	}, s.dir)
	if err != nil {
		return s.toolError(err)
	}
	s.outputs = append(s.outputs, desc)
	encoded, _ := json.Marshal(desc)
	s.record("tool_result", string(encoded))
	return string(encoded)
}

func (s *chartSession) toolError(err error) string {
	encoded, _ := json.Marshal(map[string]string{"error": err.Error()})
	s.record("tool_result", string(encoded))
	return string(encoded)
}

// renderDefaults draws Sales by Product (top 5) and Sales by Region (every region).
func (s *chartSession) renderDefaults() error {
	regions := len(dataset.Aggregate(s.table, dataset.ColumnRegion, dataset.ColumnSales))
	for _, spec := range []charts.Spec{
		{Metric: dataset.ColumnSales, GroupBy: dataset.ColumnProduct, ChartType: charts.TypeBar, TopN: 5},
		{Metric: dataset.ColumnSales, GroupBy: dataset.ColumnRegion, ChartType: charts.TypeBar, TopN: regions},
	} {
		desc, err := charts.Render(s.table, spec, s.dir)
		if err != nil {
			return err
		}
		s.outputs = append(s.outputs, desc)
	}
	return nil
}

func uniqueByPath(outputs []charts.Descriptor) []charts.Descriptor {
	index := make(map[string]int, len(outputs))
	unique := make([]charts.Descriptor, 0, len(outputs))
	for _, desc := range outputs {
		if i, ok := index[desc.FigurePath]; ok {
			// A later render rewrote the same file.
			unique[i] = desc
			continue
		}
		index[desc.FigurePath] = len(unique)
		unique = append(unique, desc)
	}
	return unique
}
