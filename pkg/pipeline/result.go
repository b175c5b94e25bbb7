package pipeline

import (
	"fmt"
	"time"

	"github.com/jllopis/a2apipe/pkg/a2a"
	"github.com/jllopis/a2apipe/pkg/agents"
	"github.com/jllopis/a2apipe/pkg/errors"
)

// SpeakerCoordinator labels transcript entries sent by the driver.
const SpeakerCoordinator = "coordinator"

// Entry is one exchanged envelope.
type Entry struct {
	Speaker string       `json:"speaker" yaml:"speaker"`
	Stage   agents.Role  `json:"stage" yaml:"stage"`
	Message *a2a.Message `json:"message" yaml:"message"`
}

// LogEntry is the flattened view of an Entry.
type LogEntry struct {
	Speaker string         `json:"speaker" yaml:"speaker"`
	Text    string         `json:"text" yaml:"text"`
	Data    map[string]any `json:"data,omitempty" yaml:"data,omitempty"`
}

// RunRecord identifies one run and the inputs it resolved.
type RunRecord struct {
	ID         string                 `json:"id" yaml:"id"`
	Dataset    string                 `json:"dataset" yaml:"dataset"`
	Models     map[agents.Role]string `json:"models" yaml:"models"`
	Endpoints  map[agents.Role]string `json:"endpoints" yaml:"endpoints"`
	StartedAt  time.Time              `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time              `json:"finished_at" yaml:"finished_at"`
}

// ReaderResult is the reader stage output.
type ReaderResult struct {
	Summary string         `json:"summary" yaml:"summary"`
	Metrics map[string]any `json:"metrics" yaml:"metrics"`
	Records []any          `json:"records" yaml:"records"`
	Schema  []any          `json:"schema" yaml:"schema"`
}

// AnalystResult is the analyst stage output. Structured holds the full data
// payload, so Structured["analytics_json"] is the parsed analytics object.
type AnalystResult struct {
	Analysis   string         `json:"analysis" yaml:"analysis"`
	Structured map[string]any `json:"structured" yaml:"structured"`
}

// Analytics returns the analytics_json object, or nil.
func (r AnalystResult) Analytics() map[string]any {
	analytics, _ := r.Structured["analytics_json"].(map[string]any)
	return analytics
}

// VisualizerResult is the visualizer stage output.
type VisualizerResult struct {
	Insights           string `json:"insights" yaml:"insights"`
	ToolOutputs        []any  `json:"tool_outputs" yaml:"tool_outputs"`
	ArtifactsDirectory string `json:"artifacts_directory" yaml:"artifacts_directory"`
	RawMessages        []any  `json:"raw_messages" yaml:"raw_messages"`
}

// FigurePaths lists the figure_path of every chart descriptor.
func (r VisualizerResult) FigurePaths() []string {
	paths := make([]string, 0, len(r.ToolOutputs))
	for _, output := range r.ToolOutputs {
		descriptor, ok := output.(map[string]any)
		if !ok {
			continue
		}
		if path, ok := descriptor["figure_path"].(string); ok && path != "" {
			paths = append(paths, path)
		}
	}
	return paths
}

// Result aggregates a successful run.
type Result struct {
	Run          RunRecord                      `json:"run" yaml:"run"`
	Cards        map[agents.Role]*a2a.AgentCard `json:"cards" yaml:"cards"`
	Transcript   []Entry                        `json:"transcript" yaml:"transcript"`
	Reader       ReaderResult                   `json:"reader" yaml:"reader"`
	Analyst      AnalystResult                  `json:"analyst" yaml:"analyst"`
	Visualizer   VisualizerResult               `json:"visualizer" yaml:"visualizer"`
	Conversation []LogEntry                     `json:"conversation_log" yaml:"conversation_log"`
}

// StageError attributes a failed run to one stage. Transcript holds the
// envelopes exchanged before the failure and is diagnostic only.
type StageError struct {
	RunID      string
	Stage      agents.Role
	Err        error
	Transcript []Entry
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Code is the taxonomy code of the underlying failure.
func (e *StageError) Code() errors.ErrorCode {
	return errors.CodeOf(e.Err)
}

func conversationLog(transcript []Entry) []LogEntry {
	out := make([]LogEntry, 0, len(transcript))
	for _, entry := range transcript {
		out = append(out, LogEntry{
			Speaker: entry.Speaker,
			Text:    entry.Message.Text(),
			Data:    entry.Message.Data(),
		})
	}
	return out
}

func listOf(value any) []any {
	list, _ := value.([]any)
	if list == nil {
		return []any{}
	}
	return list
}

func mapOf(value any) map[string]any {
	m, _ := value.(map[string]any)
	if m == nil {
		return map[string]any{}
	}
	return m
}
