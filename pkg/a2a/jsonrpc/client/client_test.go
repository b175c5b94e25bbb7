package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/jllopis/a2apipe/pkg/a2a"
	"github.com/jllopis/a2apipe/pkg/a2a/jsonrpc"
	"github.com/jllopis/a2apipe/pkg/a2a/server"
	"github.com/jllopis/a2apipe/pkg/errors"
)

func newServer(t *testing.T, fn server.MessageHandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(jsonrpc.New(server.NewAgentHandler("test", fn)))
	t.Cleanup(srv.Close)
	return srv
}

func TestSendMessage(t *testing.T) {
	srv := newServer(t, func(_ context.Context, msg *a2a.Message) (*a2a.Message, error) {
		return a2a.NewAgentMessage("pong", map[string]any{"echo": msg.Text()})
	})

	c := New(srv.URL, WithHTTPClient(srv.Client()))
	resp, err := c.SendMessage(context.Background(), &a2a.SendMessageRequest{Message: a2a.NewTextMessage("ping")})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if resp.Message == nil || resp.Message.Text() != "pong" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Message.Data()["echo"] != "ping" {
		t.Errorf("unexpected data %v", resp.Message.Data())
	}
}

func TestRemoteErrorsAreTyped(t *testing.T) {
	srv := newServer(t, func(_ context.Context, msg *a2a.Message) (*a2a.Message, error) {
		switch msg.Text() {
		case "bad":
			return nil, errors.BadRequest("invalid analyst payload", "metrics", "records")
		default:
			return nil, errors.Upstream("model failed", nil)
		}
	})
	c := New(srv.URL)

	_, err := c.SendMessage(context.Background(), &a2a.SendMessageRequest{Message: a2a.NewTextMessage("bad")})
	if !errors.Is(err, errors.CodeBadRequest) {
		t.Fatalf("expected bad request, got %v", err)
	}
	if got := errors.Missing(err); !reflect.DeepEqual(got, []string{"metrics", "records"}) {
		t.Errorf("expected missing keys to survive the wire, got %v", got)
	}

	_, err = c.SendMessage(context.Background(), &a2a.SendMessageRequest{Message: a2a.NewTextMessage("other")})
	if !errors.Is(err, errors.CodeUpstreamFailure) {
		t.Fatalf("expected upstream failure, got %v", err)
	}
}

func TestCancelTaskUnsupported(t *testing.T) {
	srv := newServer(t, func(context.Context, *a2a.Message) (*a2a.Message, error) { return nil, nil })
	c := New(srv.URL)

	_, err := c.CancelTask(context.Background(), &a2a.TaskIDRequest{ID: "task-1"})
	if !errors.Is(err, errors.CodeUnsupportedMethod) {
		t.Fatalf("expected unsupported method, got %v", err)
	}
	if got := errors.AsPipeError(err).ContextString("method"); got != a2a.MethodCancelTask {
		t.Errorf("expected method %q, got %q", a2a.MethodCancelTask, got)
	}
}

func TestUnknownMethodDecodesAsUnsupported(t *testing.T) {
	srv := newServer(t, func(context.Context, *a2a.Message) (*a2a.Message, error) { return nil, nil })
	err := New(srv.URL).Call(context.Background(), "tasks/list", nil, nil)
	if !errors.Is(err, errors.CodeUnsupportedMethod) {
		t.Fatalf("expected unsupported method, got %v", err)
	}
}

func TestConnectivityFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url).SendMessage(context.Background(), &a2a.SendMessageRequest{Message: a2a.NewTextMessage("x")})
	if !errors.Is(err, errors.CodeConnectivity) {
		t.Fatalf("expected connectivity failure, got %v", err)
	}
}

func TestHTTPErrorIsConnectivity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gateway down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL).SendMessage(context.Background(), &a2a.SendMessageRequest{Message: a2a.NewTextMessage("x")})
	if !errors.Is(err, errors.CodeConnectivity) {
		t.Fatalf("expected connectivity failure, got %v", err)
	}
}

func TestHeadersAndTracePropagation(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer otel.SetTextMapPropagator(prev)

	var gotHeader, gotTrace string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Run-ID")
		gotTrace = r.Header.Get("traceparent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":"1","result":{"message":{"message_id":"m","role":"agent","parts":[{"type":"text","text":"ok"}]}}}`))
	}))
	defer srv.Close()

	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "send")
	defer span.End()

	c := New(srv.URL, WithHeaders(map[string]string{"X-Run-ID": "run-1"}))
	if _, err := c.SendMessage(ctx, &a2a.SendMessageRequest{Message: a2a.NewTextMessage("x")}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if gotHeader != "run-1" {
		t.Errorf("expected custom header, got %q", gotHeader)
	}
	if gotTrace == "" {
		t.Errorf("expected traceparent header")
	}
}

func TestEmptyResultIsNoResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":"1","result":null}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).SendMessage(context.Background(), &a2a.SendMessageRequest{Message: a2a.NewTextMessage("x")})
	if !errors.Is(err, errors.CodeNoResponse) {
		t.Fatalf("expected no response, got %v", err)
	}
}
