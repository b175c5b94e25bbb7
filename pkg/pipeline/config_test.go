package pipeline

import (
	"context"
	"testing"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/jllopis/a2apipe/pkg/a2a"
	"github.com/jllopis/a2apipe/pkg/agents"
	"github.com/jllopis/a2apipe/pkg/errors"
)

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"http://localhost:8001", "http://localhost:8001"},
		{"http://localhost:8001/", "http://localhost:8001"},
		{"http://localhost:8001/a2a", "http://localhost:8001"},
		{"https://agents.example.com/reader/a2a?x=1#frag", "https://agents.example.com"},
		{"  http://10.0.0.5:9000/path  ", "http://10.0.0.5:9000"},
		{"localhost:8001", "localhost:8001"},
	}
	for _, tt := range tests {
		if got := NormalizeEndpoint(tt.in); got != tt.want {
			t.Errorf("NormalizeEndpoint(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{
		Endpoints: map[agents.Role]string{agents.RoleAnalyst: "http://remote:9002/a2a"},
		Models:    map[agents.Role]string{agents.RoleReader: "custom", agents.RoleAnalyst: " "},
	}
	endpoints := cfg.endpoints()
	if endpoints[agents.RoleReader] != "http://localhost:8001" || endpoints[agents.RoleAnalyst] != "http://remote:9002" {
		t.Errorf("unexpected endpoints %v", endpoints)
	}
	models := cfg.models()
	if models[agents.RoleReader] != "custom" || models[agents.RoleAnalyst] != "gpt-4o-mini" || models[agents.RoleVisualizer] != "gpt-4o" {
		t.Errorf("unexpected models %v", models)
	}
	if cfg.outputDir() != DefaultOutputDir {
		t.Errorf("unexpected output dir %q", cfg.outputDir())
	}
}

// fakeSender answers each stage in process and can fail a chosen stage.
type fakeSender struct {
	failAt  string
	failErr error
	sent    []*a2a.Message
}

func (f *fakeSender) Send(_ context.Context, endpoint string, msg *a2a.Message) (*a2a.Message, *a2a.AgentCard, error) {
	f.sent = append(f.sent, msg)
	if endpoint == f.failAt {
		return nil, nil, f.failErr
	}
	data := msg.Data()
	var (
		text    string
		payload map[string]any
		card    *a2a.AgentCard
	)
	switch {
	case data["csv_text"] != nil:
		text, card = "summary", &a2a.AgentCard{Name: "reader"}
		record := orderedmap.New[string, any]()
		record.Set("Sales", 1)
		record.Set("Region", "North")
		payload = map[string]any{
			"records": []*orderedmap.OrderedMap[string, any]{record},
			"metrics": map[string]any{"row_count": 1},
			"schema":  []any{"Sales", "Region"},
		}
	case data["summary_text"] != nil:
		text, card = "analysis", &a2a.AgentCard{Name: "analyst"}
		payload = map[string]any{"analytics_json": map[string]any{}}
	default:
		text, card = "insights", &a2a.AgentCard{Name: "visualizer"}
		payload = map[string]any{"tool_outputs": []any{}}
	}
	reply, err := a2a.NewAgentMessage(text, payload)
	if err != nil {
		return nil, nil, err
	}
	return reply, card, nil
}

func TestStageAttribution(t *testing.T) {
	endpoints := map[agents.Role]string{
		agents.RoleReader:     "http://reader:1",
		agents.RoleAnalyst:    "http://analyst:2",
		agents.RoleVisualizer: "http://visualizer:3",
	}
	tests := []struct {
		stage agents.Role
		err   error
		code  errors.ErrorCode
		sent  int
	}{
		{agents.RoleReader, errors.BadRequest("bad", "records"), errors.CodeBadRequest, 1},
		{agents.RoleAnalyst, errors.NoResponse("http://analyst:2"), errors.CodeNoResponse, 2},
		{agents.RoleVisualizer, errors.Upstream("model down", nil), errors.CodeUpstreamFailure, 3},
	}
	for _, tt := range tests {
		t.Run(tt.stage.String(), func(t *testing.T) {
			sender := &fakeSender{failAt: endpoints[tt.stage], failErr: tt.err}
			_, err := New(WithSender(sender)).Run(context.Background(), fixture, Config{
				Endpoints: endpoints,
				OutputDir: t.TempDir(),
			})
			stageErr, ok := err.(*StageError)
			if !ok {
				t.Fatalf("expected *StageError, got %T %v", err, err)
			}
			if stageErr.Stage != tt.stage || stageErr.Code() != tt.code {
				t.Errorf("got %s/%s, want %s/%s", stageErr.Stage, stageErr.Code(), tt.stage, tt.code)
			}
			if len(sender.sent) != tt.sent {
				t.Errorf("expected %d requests, got %d", tt.sent, len(sender.sent))
			}
			last := stageErr.Transcript[len(stageErr.Transcript)-1]
			if last.Speaker != SpeakerCoordinator || last.Stage != tt.stage {
				t.Errorf("expected failed request last in transcript, got %+v", last)
			}
		})
	}
}

func TestStagePayloadThreading(t *testing.T) {
	sender := &fakeSender{}
	if _, err := New(WithSender(sender)).Run(context.Background(), fixture, Config{OutputDir: t.TempDir()}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sender.sent) != 3 {
		t.Fatalf("expected three requests, got %d", len(sender.sent))
	}
	reader := sender.sent[0].Data()
	for _, key := range []string{"dataset_path", "csv_text", "model"} {
		if reader[key] == nil {
			t.Errorf("reader request missing %s", key)
		}
	}
	analyst := sender.sent[1].Data()
	if analyst["summary_text"] != "summary" || len(analyst["records"].([]any)) != 1 {
		t.Errorf("reader output not threaded: %v", analyst)
	}
	visualizer := sender.sent[2].Data()
	if visualizer["analysis_text"] != "analysis" || visualizer["artifacts_dir"] == nil {
		t.Errorf("analyst output not threaded: %v", visualizer)
	}
}

func TestRecordsForwardedInReaderOrder(t *testing.T) {
	sender := &fakeSender{}
	if _, err := New(WithSender(sender)).Run(context.Background(), fixture, Config{OutputDir: t.TempDir()}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, msg := range sender.sent[1:] {
		part, ok := msg.DataPart()
		if !ok {
			t.Fatal("expected a data part")
		}
		field, _ := part.Field("records")
		if string(field) != `[{"Sales":1,"Region":"North"}]` {
			t.Errorf("records reordered: %s", field)
		}
	}
}

func TestStageRequestEncodingFailure(t *testing.T) {
	sender := &fakeSender{}
	_, err := New(WithSender(sender)).Run(context.Background(), fixture, Config{
		Models:    map[agents.Role]string{agents.RoleAnalyst: "gpt-\xff"},
		OutputDir: t.TempDir(),
	})
	stageErr, ok := err.(*StageError)
	if !ok {
		t.Fatalf("expected *StageError, got %T %v", err, err)
	}
	if stageErr.Stage != agents.RoleAnalyst || stageErr.Code() != errors.CodeBadRequest {
		t.Errorf("got %s/%s, want analyst/BAD_REQUEST", stageErr.Stage, stageErr.Code())
	}
	if len(sender.sent) != 1 {
		t.Errorf("expected only the reader request to be sent, got %d", len(sender.sent))
	}
}
