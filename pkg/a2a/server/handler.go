// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package server defines the agent request handler contract and the adapter
// that turns a role's message handler into a full agent surface.
package server

import (
	"context"
	"log/slog"

	"github.com/jllopis/a2apipe/pkg/a2a"
	"github.com/jllopis/a2apipe/pkg/errors"
	"github.com/jllopis/a2apipe/pkg/resilience"
)

// Handler defines the agent operations exposed by the JSON-RPC binding.
// Only SendMessage does work; the remaining methods exist so the binding can
// answer them explicitly.
type Handler interface {
	SendMessage(ctx context.Context, req *a2a.SendMessageRequest) (*a2a.SendMessageResponse, error)
	SendStreamingMessage(ctx context.Context, req *a2a.SendMessageRequest) error
	GetTask(ctx context.Context, req *a2a.TaskQueryRequest) (*a2a.Task, error)
	CancelTask(ctx context.Context, req *a2a.TaskIDRequest) (*a2a.Task, error)
	ResubscribeToTask(ctx context.Context, req *a2a.TaskIDRequest) error
	SetTaskPushNotificationConfig(ctx context.Context, req *a2a.TaskPushNotificationConfig) (*a2a.TaskPushNotificationConfig, error)
	GetTaskPushNotificationConfig(ctx context.Context, req *a2a.TaskPushConfigRequest) (*a2a.TaskPushNotificationConfig, error)
	ListTaskPushNotificationConfig(ctx context.Context, req *a2a.TaskPushConfigRequest) ([]a2a.TaskPushNotificationConfig, error)
	DeleteTaskPushNotificationConfig(ctx context.Context, req *a2a.TaskPushConfigRequest) error
}

// MessageHandler is the unit of work of one role: one envelope in, one out.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg *a2a.Message) (*a2a.Message, error)
}

// MessageHandlerFunc adapts a function to MessageHandler.
type MessageHandlerFunc func(ctx context.Context, msg *a2a.Message) (*a2a.Message, error)

// HandleMessage implements MessageHandler.
func (f MessageHandlerFunc) HandleMessage(ctx context.Context, msg *a2a.Message) (*a2a.Message, error) {
	return f(ctx, msg)
}

// Unsupported rejects every method outside single-shot send. Embed it to
// inherit the rejections.
type Unsupported struct{}

func (Unsupported) SendStreamingMessage(context.Context, *a2a.SendMessageRequest) error {
	return errors.Unsupported(a2a.MethodSendStreamingMessage)
}

func (Unsupported) GetTask(context.Context, *a2a.TaskQueryRequest) (*a2a.Task, error) {
	return nil, errors.Unsupported(a2a.MethodGetTask)
}

func (Unsupported) CancelTask(context.Context, *a2a.TaskIDRequest) (*a2a.Task, error) {
	return nil, errors.Unsupported(a2a.MethodCancelTask)
}

func (Unsupported) ResubscribeToTask(context.Context, *a2a.TaskIDRequest) error {
	return errors.Unsupported(a2a.MethodResubscribeToTask)
}

func (Unsupported) SetTaskPushNotificationConfig(context.Context, *a2a.TaskPushNotificationConfig) (*a2a.TaskPushNotificationConfig, error) {
	return nil, errors.Unsupported(a2a.MethodSetTaskPushConfig)
}

func (Unsupported) GetTaskPushNotificationConfig(context.Context, *a2a.TaskPushConfigRequest) (*a2a.TaskPushNotificationConfig, error) {
	return nil, errors.Unsupported(a2a.MethodGetTaskPushConfig)
}

func (Unsupported) ListTaskPushNotificationConfig(context.Context, *a2a.TaskPushConfigRequest) ([]a2a.TaskPushNotificationConfig, error) {
	return nil, errors.Unsupported(a2a.MethodListTaskPushConfig)
}

func (Unsupported) DeleteTaskPushNotificationConfig(context.Context, *a2a.TaskPushConfigRequest) error {
	return errors.Unsupported(a2a.MethodDeleteTaskPushConfig)
}

// AgentHandler serves one role. It validates the envelope, offloads the
// role's work and wraps the reply as a direct message response.
type AgentHandler struct {
	Unsupported

	name    string
	handler MessageHandler
	logger  *slog.Logger
}

// Option configures an AgentHandler.
type Option func(*AgentHandler)

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(h *AgentHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewAgentHandler wraps a role's message handler.
func NewAgentHandler(name string, handler MessageHandler, opts ...Option) *AgentHandler {
	h := &AgentHandler{name: name, handler: handler, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SendMessage runs the role's unit of work and returns its reply.
func (h *AgentHandler) SendMessage(ctx context.Context, req *a2a.SendMessageRequest) (*a2a.SendMessageResponse, error) {
	if h.handler == nil {
		return nil, errors.New(errors.CodeInternal, "handler not configured", nil)
	}
	if req == nil {
		return nil, errors.BadRequest("request is required")
	}
	if err := req.Message.Validate(); err != nil {
		return nil, errors.New(errors.CodeBadRequest, err.Error(), nil)
	}

	h.logger.Debug("agent request received",
		slog.String("agent", h.name),
		slog.String("message_id", req.Message.MessageID),
	)
	reply, err := Offload(ctx, func(ctx context.Context) (*a2a.Message, error) {
		return h.handler.HandleMessage(ctx, req.Message)
	})
	if err != nil {
		h.logger.Warn("agent request failed",
			slog.String("agent", h.name),
			slog.String("code", string(errors.CodeOf(err))),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	if reply == nil {
		return nil, errors.New(errors.CodeInternal, "handler returned no message", nil)
	}
	return &a2a.SendMessageResponse{Message: reply}, nil
}

// Offload runs a unit of work on its own goroutine and awaits it or ctx.
func Offload[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	return resilience.Offload(ctx, fn)
}

var _ Handler = (*AgentHandler)(nil)
