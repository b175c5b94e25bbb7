// Package jsonrpc binds agent handlers to JSON-RPC 2.0 over HTTP.
package jsonrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-http-utils/headers"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jllopis/a2apipe/pkg/a2a"
	"github.com/jllopis/a2apipe/pkg/a2a/server"
	"github.com/jllopis/a2apipe/pkg/errors"
	"github.com/jllopis/a2apipe/pkg/telemetry"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError           = -32700
	CodeInvalidRequest       = -32600
	CodeMethodNotFound       = -32601
	CodeInvalidParams        = -32602
	CodeInternalError        = -32603
	CodeServerError          = -32000
	CodeUnsupportedOperation = -32004
)

const (
	version         = "2.0"
	maxRequestBytes = 64 << 20
	tracerName      = "github.com/jllopis/a2apipe/pkg/a2a/jsonrpc"
)

// Server exposes the JSON-RPC binding for an agent handler.
type Server struct {
	Handler server.Handler

	name    string
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// Option configures a Server.
type Option func(*Server)

// WithName sets the agent name used in logs, spans and metrics.
func WithName(name string) Option {
	return func(s *Server) { s.name = name }
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records one counter sample per served request.
func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(s *Server) { s.metrics = metrics }
}

// New creates a new JSON-RPC server wrapper.
func New(handler server.Handler, opts ...Option) *Server {
	s := &Server{Handler: handler, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServeHTTP handles JSON-RPC 2.0 requests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set(headers.Allow, http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.Handler == nil {
		writeError(w, nil, rpcError{Code: CodeInternalError, Message: "handler not configured"})
		return
	}

	var req rpcRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, nil, rpcError{Code: CodeParseError, Message: "invalid json"})
		return
	}
	if req.JSONRPC != version || req.Method == "" {
		writeError(w, req.ID, rpcError{Code: CodeInvalidRequest, Message: "invalid request"})
		return
	}

	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := otel.Tracer(tracerName).Start(ctx, req.Method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(telemetry.RPCAttributes(s.name, req.Method)...),
	)
	defer span.End()

	result, err := s.dispatch(ctx, req)
	s.metrics.RecordRPC(ctx, s.name, req.Method, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String(telemetry.AttrErrorCode, string(server.FromStatus(err).Code)))
		s.logger.DebugContext(ctx, "rpc failed",
			slog.String("agent", s.name),
			slog.String("method", req.Method),
			slog.String("error", err.Error()),
		)
		writeRPCError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) dispatch(ctx context.Context, req rpcRequest) (any, error) {
	switch req.Method {
	case a2a.MethodSendMessage:
		payload := &a2a.SendMessageRequest{}
		if err := decodeParams(req.Params, payload); err != nil {
			return nil, err
		}
		return s.Handler.SendMessage(ctx, payload)
	case a2a.MethodSendStreamingMessage:
		payload := &a2a.SendMessageRequest{}
		if err := decodeOptionalParams(req.Params, payload); err != nil {
			return nil, err
		}
		return nil, s.Handler.SendStreamingMessage(ctx, payload)
	case a2a.MethodGetTask:
		payload := &a2a.TaskQueryRequest{}
		if err := decodeOptionalParams(req.Params, payload); err != nil {
			return nil, err
		}
		return s.Handler.GetTask(ctx, payload)
	case a2a.MethodCancelTask:
		payload := &a2a.TaskIDRequest{}
		if err := decodeOptionalParams(req.Params, payload); err != nil {
			return nil, err
		}
		return s.Handler.CancelTask(ctx, payload)
	case a2a.MethodResubscribeToTask:
		payload := &a2a.TaskIDRequest{}
		if err := decodeOptionalParams(req.Params, payload); err != nil {
			return nil, err
		}
		return nil, s.Handler.ResubscribeToTask(ctx, payload)
	case a2a.MethodSetTaskPushConfig:
		payload := &a2a.TaskPushNotificationConfig{}
		if err := decodeOptionalParams(req.Params, payload); err != nil {
			return nil, err
		}
		return s.Handler.SetTaskPushNotificationConfig(ctx, payload)
	case a2a.MethodGetTaskPushConfig:
		payload := &a2a.TaskPushConfigRequest{}
		if err := decodeOptionalParams(req.Params, payload); err != nil {
			return nil, err
		}
		return s.Handler.GetTaskPushNotificationConfig(ctx, payload)
	case a2a.MethodListTaskPushConfig:
		payload := &a2a.TaskPushConfigRequest{}
		if err := decodeOptionalParams(req.Params, payload); err != nil {
			return nil, err
		}
		return s.Handler.ListTaskPushNotificationConfig(ctx, payload)
	case a2a.MethodDeleteTaskPushConfig:
		payload := &a2a.TaskPushConfigRequest{}
		if err := decodeOptionalParams(req.Params, payload); err != nil {
			return nil, err
		}
		return nil, s.Handler.DeleteTaskPushNotificationConfig(ctx, payload)
	default:
		return nil, methodNotFoundError(req.Method)
	}
}

func decodeParams(params json.RawMessage, target any) error {
	if len(params) == 0 {
		return errors.BadRequest("missing params")
	}
	if err := json.Unmarshal(params, target); err != nil {
		return errors.New(errors.CodeBadRequest, "invalid params: "+err.Error(), nil)
	}
	return nil
}

func decodeOptionalParams(params json.RawMessage, target any) error {
	if len(params) == 0 {
		return nil
	}
	return decodeParams(params, target)
}

func writeResult(w http.ResponseWriter, id json.RawMessage, result any) {
	raw, err := json.Marshal(result)
	if err != nil {
		writeRPCError(w, id, errors.New(errors.CodeInternal, "encode result", err))
		return
	}
	writeJSON(w, rpcResponse{JSONRPC: version, ID: normalizeID(id), Result: raw})
}

type methodNotFoundError string

func (e methodNotFoundError) Error() string {
	return fmt.Sprintf("method %q not found", string(e))
}

// writeRPCError maps an error onto the wire. Every error other than an
// unknown method goes through the typed taxonomy and carries its code in
// the error data.
func writeRPCError(w http.ResponseWriter, id json.RawMessage, err error) {
	if notFound, ok := err.(methodNotFoundError); ok {
		writeError(w, id, rpcError{Code: CodeMethodNotFound, Message: notFound.Error()})
		return
	}

	pe := server.FromStatus(err)
	st := status.Convert(server.ToStatus(pe))
	code := CodeServerError
	switch st.Code() {
	case grpccodes.InvalidArgument:
		code = CodeInvalidParams
	case grpccodes.Unimplemented:
		code = CodeUnsupportedOperation
	case grpccodes.Internal:
		code = CodeInternalError
	}

	data := &errorData{Code: string(pe.Code)}
	if len(pe.Context) > 0 {
		data.Details = pe.Context
	}
	if pe.Err != nil {
		data.Cause = pe.Err.Error()
	}
	writeError(w, id, rpcError{Code: code, Message: pe.Message, Data: data})
}

func writeError(w http.ResponseWriter, id json.RawMessage, rpcErr rpcError) {
	writeJSON(w, rpcResponse{JSONRPC: version, ID: normalizeID(id), Error: &rpcErr})
}

func writeJSON(w http.ResponseWriter, payload rpcResponse) {
	w.Header().Set(headers.ContentType, "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func normalizeID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    *errorData `json:"data,omitempty"`
}

// errorData carries the typed error across the wire.
type errorData struct {
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
	Cause   string         `json:"cause,omitempty"`
}
