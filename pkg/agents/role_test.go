package agents

import (
	"bytes"
	"context"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/jllopis/a2apipe/pkg/a2a"
	"github.com/jllopis/a2apipe/pkg/errors"
	"github.com/jllopis/a2apipe/pkg/llm"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{in: "reader", want: RoleReader},
		{in: " Analyst ", want: RoleAnalyst},
		{in: "VISUALIZER", want: RoleVisualizer},
		{in: "planner", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRoleDefaults(t *testing.T) {
	tests := []struct {
		role  Role
		port  int
		model string
		name  string
		skill string
	}{
		{RoleReader, 8001, "gpt-4o-mini", "Sales Reader", "sales_csv_ingest"},
		{RoleAnalyst, 8002, "gpt-4o-mini", "Revenue Analyst", "sales_revops_analysis"},
		{RoleVisualizer, 8003, "gpt-4o", "Sales Visualizer", "sales_visual_story"},
	}
	for _, tt := range tests {
		t.Run(tt.role.String(), func(t *testing.T) {
			if tt.role.DefaultPort() != tt.port || tt.role.DefaultModel() != tt.model {
				t.Errorf("unexpected defaults %d %s", tt.role.DefaultPort(), tt.role.DefaultModel())
			}
			card := tt.role.Card("http://localhost:9000/", "rpc")
			if card.Name != tt.name || card.URL != "http://localhost:9000/rpc" {
				t.Errorf("unexpected card %+v", card)
			}
			if len(card.Skills) != 1 || card.Skills[0].ID != tt.skill {
				t.Errorf("unexpected skills %+v", card.Skills)
			}
			if !reflect.DeepEqual(card.Skills[0].Tags, []string{"sales", "marketing", "analytics"}) {
				t.Errorf("unexpected tags %v", card.Skills[0].Tags)
			}
			if card.PreferredTransport != a2a.TransportJSONRPC || card.Capabilities.Streaming {
				t.Errorf("unexpected transport or capabilities %+v", card)
			}
		})
	}
}

func TestRegistryHandlers(t *testing.T) {
	registry := DefaultRegistry()
	for _, role := range Roles {
		t.Run(role.String(), func(t *testing.T) {
			h, err := registry.Handler(role, Deps{Provider: &llm.MockProvider{}})
			if err != nil {
				t.Fatalf("Handler: %v", err)
			}
			_, err = h.CancelTask(context.Background(), &a2a.TaskIDRequest{ID: "t1"})
			assertCode(t, err, errors.CodeUnsupportedMethod)
			if pe := errors.AsPipeError(err); pe.ContextString("method") != a2a.MethodCancelTask {
				t.Errorf("expected tasks/cancel named, got %v", pe)
			}
		})
	}
}

func TestRegistryErrors(t *testing.T) {
	registry := DefaultRegistry()
	if _, err := registry.Handler(RoleReader, Deps{}); err == nil {
		t.Error("expected error without provider")
	}
	if _, err := registry.Handler(Role("planner"), Deps{Provider: &llm.MockProvider{}}); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestRegistryHandlerSendsThroughAgentSurface(t *testing.T) {
	h, err := DefaultRegistry().Handler(RoleReader, Deps{Provider: &llm.MockProvider{Response: "overview"}, Model: "m"})
	if err != nil {
		t.Fatalf("Handler: %v", err)
	}
	resp, err := h.SendMessage(context.Background(), &a2a.SendMessageRequest{
		Message: request(t, map[string]any{"csv_text": salesCSV}),
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if resp.Message == nil || resp.Message.Text() != "overview" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestRegistryHandlerTagsLogsOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h, err := DefaultRegistry().Handler(RoleReader, Deps{Provider: &llm.MockProvider{Response: "overview"}, Logger: logger})
	if err != nil {
		t.Fatalf("Handler: %v", err)
	}
	if _, err := h.SendMessage(context.Background(), &a2a.SendMessageRequest{
		Message: request(t, map[string]any{"csv_text": salesCSV}),
	}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	var summarized string
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if strings.Count(line, `"component"`) > 1 || strings.Count(line, `"agent"`) > 1 {
			t.Errorf("attribute repeated in %s", line)
		}
		if strings.Contains(line, "dataset summarized") {
			summarized = line
		}
	}
	if !strings.Contains(summarized, `"component":"agent.reader"`) {
		t.Errorf("expected the role component on %q", summarized)
	}
}
