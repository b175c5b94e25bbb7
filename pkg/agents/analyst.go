package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/jllopis/a2apipe/pkg/a2a"
	"github.com/jllopis/a2apipe/pkg/errors"
	"github.com/jllopis/a2apipe/pkg/llm"
)

const (
	analystRole      = "Revenue Intelligence Analyst"
	analystGoal      = "Transform sales and marketing signals into strategic guidance"
	analystBackstory = "Seasoned RevOps partner focused on pipeline health, marketing ROI, and " +
		"regional performance swings. Skilled at converting noisy channel data " +
		"into crisp executive briefings."
	analystTask = "Use the provided sales intelligence context to draft a decision-ready " +
		"analysis. Context:\n%s\n\n" +
		"Break down demand generation momentum, CAC efficiency, conversion " +
		"bottlenecks, and channel ROI."
	analystExpected = "Return a markdown report with sections for Momentum, Efficiency, Risks, " +
		"and Recommendations. Finish with a ```json``` block named analytics_json " +
		"containing keys: kpis, risk_alerts, acceleration_plays, forecast_notes."

	analystSampleRecords = 8
)

// AnalyticsKeys are always present in analytics_json.
var AnalyticsKeys = []string{"kpis", "risk_alerts", "acceleration_plays", "forecast_notes"}

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// Analyst turns the reader's summary and metrics into a briefing plus a
// structured analytics_json object.
type Analyst struct {
	provider llm.Provider
	model    string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewAnalyst builds the analyst role.
func NewAnalyst(deps Deps) *Analyst {
	deps = deps.withDefaults(RoleAnalyst)
	return &Analyst{provider: deps.Provider, model: deps.Model, timeout: deps.Timeout, logger: deps.Logger}
}

// HandleMessage implements server.MessageHandler.
func (a *Analyst) HandleMessage(ctx context.Context, msg *a2a.Message) (*a2a.Message, error) {
	in := payloadOf(msg)
	count, err := in.recordList("Analyst")
	if err != nil {
		return nil, err
	}
	var missing []string
	if count == 0 {
		missing = append(missing, "records")
	}
	if !in.has("summary_text") {
		missing = append(missing, "summary_text")
	}
	if !in.has("metrics") {
		missing = append(missing, "metrics")
	}
	if len(missing) > 0 {
		return nil, errors.BadRequest("Analyst agent expects 'records', 'summary_text', and 'metrics'.", missing...)
	}
	model := in.model(a.model)

	records := in.data["records"].([]any)
	if len(records) > analystSampleRecords {
		records = records[:analystSampleRecords]
	}
	contextBlob, err := json.MarshalIndent(map[string]any{
		"summary":        in.str("summary_text"),
		"metrics":        in.data["metrics"],
		"sample_records": records,
	}, "", "  ")
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "encode analyst context", err)
	}
	description := fmt.Sprintf(analystTask, contextBlob)

	resp, err := chat(ctx, a.provider, a.timeout, "analyst", llm.ChatRequest{
		Model: model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: fmt.Sprintf("You are %s. %s\n\n%s", analystRole, analystGoal, analystBackstory)},
			{Role: llm.RoleUser, Content: description + "\n\nExpected output: " + analystExpected},
		},
	})
	if err != nil {
		return nil, err
	}
	report := strings.TrimSpace(resp.Content)
	analytics, err := ParseAnalytics(report)
	if err != nil {
		return nil, errors.Upstream("analyst output carried no analytics_json block", err).WithContext("model", model)
	}

	a.logger.Info("analysis drafted",
		slog.String("model", model),
		slog.Int("report_chars", len(report)),
	)
	return reply(report, map[string]any{
		"analytics_json": analytics,
		"task_outputs": []any{map[string]any{
			"agent":           analystRole,
			"description":     description,
			"expected_output": analystExpected,
			"raw":             report,
		}},
	})
}

// ParseAnalytics extracts the trailing JSON object of a report. The last
// fenced block wins; without fences the outermost braces are tried. A
// wrapping "analytics_json" key is unwrapped and missing keys are filled.
func ParseAnalytics(report string) (map[string]any, error) {
	var candidates []string
	matches := fencedJSON.FindAllStringSubmatch(report, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		candidates = append(candidates, matches[i][1])
	}
	if start, end := strings.Index(report, "{"), strings.LastIndex(report, "}"); start >= 0 && end > start {
		candidates = append(candidates, report[start:end+1])
	}

	for _, candidate := range candidates {
		var parsed map[string]any
		if err := json.Unmarshal([]byte(strings.TrimSpace(candidate)), &parsed); err != nil {
			continue
		}
		if inner, ok := parsed["analytics_json"].(map[string]any); ok {
			parsed = inner
		}
		return fillAnalytics(parsed), nil
	}
	return nil, fmt.Errorf("no JSON object found in %d characters of output", len(report))
}

func fillAnalytics(parsed map[string]any) map[string]any {
	for _, key := range AnalyticsKeys {
		if _, ok := parsed[key]; ok {
			continue
		}
		if key == "kpis" {
			parsed[key] = map[string]any{}
		} else {
			parsed[key] = []any{}
		}
	}
	return parsed
}
