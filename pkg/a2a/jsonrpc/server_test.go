package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jllopis/a2apipe/pkg/a2a"
	"github.com/jllopis/a2apipe/pkg/a2a/agentcard"
	"github.com/jllopis/a2apipe/pkg/a2a/server"
	"github.com/jllopis/a2apipe/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func newEchoServer() *Server {
	handler := server.NewAgentHandler("echo", server.MessageHandlerFunc(func(_ context.Context, msg *a2a.Message) (*a2a.Message, error) {
		switch msg.Text() {
		case "fail":
			return nil, errors.BadRequest("invalid payload", "records")
		case "deny":
			return nil, status.Error(codes.InvalidArgument, "denied by policy")
		}
		return a2a.NewAgentMessage("ok", map[string]any{"seen": msg.Text()})
	}))
	return New(handler, WithName("echo"))
}

type wireResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

func post(t *testing.T, h http.Handler, body string) wireResponse {
	t.Helper()
	return postTo(t, h, "/a2a", body)
}

func postTo(t *testing.T, h http.Handler, path, body string) wireResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp wireResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response %q: %v", rec.Body.String(), err)
	}
	return resp
}

func rpcBody(t *testing.T, id any, method string, params any) string {
	t.Helper()
	payload := map[string]any{"jsonrpc": "2.0", "id": id, "method": method}
	if params != nil {
		payload["params"] = params
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.String()
}

func TestServerSendMessage(t *testing.T) {
	srv := newEchoServer()
	body := rpcBody(t, "1", a2a.MethodSendMessage, a2a.SendMessageRequest{
		Message:       a2a.NewTextMessage("ping"),
		Configuration: &a2a.SendMessageConfiguration{Blocking: true},
	})

	resp := post(t, srv, body)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	if string(resp.ID) != `"1"` {
		t.Errorf("expected id to be echoed, got %s", resp.ID)
	}
	var result a2a.SendMessageResponse
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.Message == nil || result.Message.Text() != "ok" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Message.Data()["seen"] != "ping" {
		t.Errorf("unexpected data: %v", result.Message.Data())
	}
}

func TestServerErrors(t *testing.T) {
	srv := newEchoServer()

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantData string
	}{
		{
			name:     "parse error",
			body:     "{not json",
			wantCode: CodeParseError,
		},
		{
			name:     "invalid request",
			body:     `{"jsonrpc":"1.0","id":1,"method":"message/send"}`,
			wantCode: CodeInvalidRequest,
		},
		{
			name:     "unknown method",
			body:     rpcBody(t, 2, "tasks/list", map[string]any{}),
			wantCode: CodeMethodNotFound,
		},
		{
			name:     "missing params",
			body:     rpcBody(t, 3, a2a.MethodSendMessage, nil),
			wantCode: CodeInvalidParams,
			wantData: string(errors.CodeBadRequest),
		},
		{
			name:     "bad request from handler",
			body:     rpcBody(t, 4, a2a.MethodSendMessage, a2a.SendMessageRequest{Message: a2a.NewTextMessage("fail")}),
			wantCode: CodeInvalidParams,
			wantData: string(errors.CodeBadRequest),
		},
		{
			name:     "status error from handler",
			body:     rpcBody(t, 8, a2a.MethodSendMessage, a2a.SendMessageRequest{Message: a2a.NewTextMessage("deny")}),
			wantCode: CodeInvalidParams,
			wantData: string(errors.CodeBadRequest),
		},
		{
			name:     "cancel unsupported",
			body:     rpcBody(t, 5, a2a.MethodCancelTask, a2a.TaskIDRequest{ID: "t1"}),
			wantCode: CodeUnsupportedOperation,
			wantData: string(errors.CodeUnsupportedMethod),
		},
		{
			name:     "stream unsupported",
			body:     rpcBody(t, 6, a2a.MethodSendStreamingMessage, a2a.SendMessageRequest{Message: a2a.NewTextMessage("x")}),
			wantCode: CodeUnsupportedOperation,
			wantData: string(errors.CodeUnsupportedMethod),
		},
		{
			name:     "push config unsupported",
			body:     rpcBody(t, 7, a2a.MethodListTaskPushConfig, nil),
			wantCode: CodeUnsupportedOperation,
			wantData: string(errors.CodeUnsupportedMethod),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, srv, tt.body)
			if resp.Error == nil {
				t.Fatalf("expected error, got result %s", resp.Result)
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("expected code %d, got %d (%s)", tt.wantCode, resp.Error.Code, resp.Error.Message)
			}
			if tt.wantData != "" {
				if resp.Error.Data == nil || resp.Error.Data.Code != tt.wantData {
					t.Errorf("expected data code %s, got %+v", tt.wantData, resp.Error.Data)
				}
			}
		})
	}
}

func TestServerCancelNamesMethod(t *testing.T) {
	resp := post(t, newEchoServer(), rpcBody(t, 1, a2a.MethodCancelTask, a2a.TaskIDRequest{ID: "t1"}))
	if resp.Error == nil || resp.Error.Data == nil {
		t.Fatalf("expected typed error, got %+v", resp)
	}
	if resp.Error.Data.Details["method"] != a2a.MethodCancelTask {
		t.Errorf("expected method detail, got %v", resp.Error.Data.Details)
	}
	if !strings.Contains(resp.Error.Message, "tasks/cancel") {
		t.Errorf("expected method in message, got %q", resp.Error.Message)
	}
}

func TestServerRejectsGet(t *testing.T) {
	rec := httptest.NewRecorder()
	newEchoServer().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/a2a", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestAgentMuxRoutes(t *testing.T) {
	card := agentcard.Build(agentcard.Config{Name: "echo", BaseURL: "http://localhost:9000", RPCPath: "/rpc"})
	mux := NewAgentMux(newEchoServer(), MuxConfig{
		RPCPath: "/rpc",
		Card:    card,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("metrics")) }),
	})

	for _, path := range []string{agentcard.WellKnownPath, "/healthz", "/metrics"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s: expected 200, got %d", path, rec.Code)
		}
	}

	resp := postTo(t, mux, "/rpc", rpcBody(t, 1, a2a.MethodSendMessage, a2a.SendMessageRequest{Message: a2a.NewTextMessage("x")}))
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
}
