// Package client is the JSON-RPC caller side of the agent binding.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-http-utils/headers"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/jllopis/a2apipe/pkg/a2a"
	"github.com/jllopis/a2apipe/pkg/errors"
)

// JSON-RPC error codes the client interprets when the error data carries no
// typed code.
const (
	codeMethodNotFound       = -32601
	codeInvalidParams        = -32602
	codeUnsupportedOperation = -32004
)

// Client wraps the JSON-RPC binding of one agent endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	headers    map[string]string
}

// Option configures the client.
type Option func(*Client)

// New creates a JSON-RPC client bound to an HTTP endpoint.
func New(endpoint string, opts ...Option) *Client {
	client := &Client{
		endpoint:   endpoint,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client
}

// WithHeaders sets default headers for each request.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) {
		c.headers = cloneHeaders(headers)
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// Endpoint returns the RPC URL the client posts to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// SendMessage invokes message/send.
func (c *Client) SendMessage(ctx context.Context, req *a2a.SendMessageRequest) (*a2a.SendMessageResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	resp := &a2a.SendMessageResponse{}
	if err := c.Call(ctx, a2a.MethodSendMessage, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// CancelTask invokes tasks/cancel.
func (c *Client) CancelTask(ctx context.Context, req *a2a.TaskIDRequest) (*a2a.Task, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	resp := &a2a.Task{}
	if err := c.Call(ctx, a2a.MethodCancelTask, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetTask invokes tasks/get.
func (c *Client) GetTask(ctx context.Context, req *a2a.TaskQueryRequest) (*a2a.Task, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	resp := &a2a.Task{}
	if err := c.Call(ctx, a2a.MethodGetTask, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Call invokes an arbitrary method. Remote errors come back as typed
// *errors.PipeError values; transport failures as connectivity failures.
func (c *Client) Call(ctx context.Context, method string, params any, result any) error {
	var raw json.RawMessage
	if params != nil {
		payload, err := json.Marshal(params)
		if err != nil {
			return errors.New(errors.CodeBadRequest, "encode params", err)
		}
		raw = payload
	}
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  method,
		Params:  raw,
	})
	if err != nil {
		return errors.New(errors.CodeInternal, "encode request", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Connectivity(c.endpoint, err)
	}
	request.Header.Set(headers.ContentType, "application/json")
	request.Header.Set(headers.Accept, "application/json")
	c.applyHeaders(ctx, request)

	resp, err := c.httpClient.Do(request)
	if err != nil {
		return c.transportError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.parseHTTPError(resp)
	}

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return errors.Connectivity(c.endpoint, fmt.Errorf("decode response: %w", err))
	}
	if decoded.Error != nil {
		return decodeRPCError(method, decoded.Error)
	}
	if result == nil {
		return nil
	}
	if len(decoded.Result) == 0 || bytes.Equal(decoded.Result, []byte("null")) {
		return errors.NoResponse(c.endpoint)
	}
	if err := json.Unmarshal(decoded.Result, result); err != nil {
		return errors.Connectivity(c.endpoint, fmt.Errorf("decode result: %w", err))
	}
	return nil
}

func (c *Client) applyHeaders(ctx context.Context, request *http.Request) {
	for key, value := range c.headers {
		request.Header.Set(key, value)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(request.Header))
}

func (c *Client) transportError(err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.New(errors.CodeTimeout, "request to "+c.endpoint+" timed out", err).
			WithContext("endpoint", c.endpoint)
	}
	return errors.Connectivity(c.endpoint, err)
}

func (c *Client) parseHTTPError(response *http.Response) error {
	payload, _ := io.ReadAll(io.LimitReader(response.Body, 4096))
	detail := strings.TrimSpace(string(payload))
	if detail == "" {
		detail = response.Status
	}
	return errors.Connectivity(c.endpoint, fmt.Errorf("http %d: %s", response.StatusCode, detail)).
		WithContext("http_status", response.StatusCode)
}

// decodeRPCError rebuilds the typed error the server encoded.
func decodeRPCError(method string, rpcErr *rpcError) error {
	if rpcErr.Data != nil {
		if code, ok := errors.ParseCode(rpcErr.Data.Code); ok {
			var cause error
			if rpcErr.Data.Cause != "" {
				cause = stderrors.New(rpcErr.Data.Cause)
			}
			pe := errors.New(code, rpcErr.Message, cause)
			for key, value := range rpcErr.Data.Details {
				pe.WithContext(key, value)
			}
			return pe
		}
	}
	switch rpcErr.Code {
	case codeInvalidParams:
		return errors.New(errors.CodeBadRequest, rpcErr.Message, nil)
	case codeUnsupportedOperation, codeMethodNotFound:
		return errors.Unsupported(method)
	default:
		return errors.Upstream(rpcErr.Message, nil).WithContext("rpc_code", rpcErr.Code)
	}
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    *errorData `json:"data,omitempty"`
}

type errorData struct {
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
	Cause   string         `json:"cause,omitempty"`
}

func cloneHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for key, value := range headers {
		out[key] = value
	}
	return out
}
