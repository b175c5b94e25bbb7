// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package client implements the connector the coordinator uses to exchange
// exactly one envelope with a remote agent.
package client

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jllopis/a2apipe/pkg/a2a"
	"github.com/jllopis/a2apipe/pkg/a2a/agentcard"
	rpcclient "github.com/jllopis/a2apipe/pkg/a2a/jsonrpc/client"
	"github.com/jllopis/a2apipe/pkg/errors"
)

// Timeouts bounds each phase of one exchange.
type Timeouts struct {
	Connect        time.Duration
	TLSHandshake   time.Duration
	ResponseHeader time.Duration
	Request        time.Duration
}

// DefaultTimeouts leaves room for slow model calls on the read side.
var DefaultTimeouts = Timeouts{
	Connect:        30 * time.Second,
	TLSHandshake:   30 * time.Second,
	ResponseHeader: 120 * time.Second,
	Request:        120 * time.Second,
}

// Option configures the connector.
type Option func(*Connector)

// Connector sends one envelope per call over a connection it owns and
// releases before returning.
type Connector struct {
	timeouts Timeouts
	logger   *slog.Logger
	headers  map[string]string
}

// New creates a connector.
func New(opts ...Option) *Connector {
	c := &Connector{timeouts: DefaultTimeouts, logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// WithTimeouts overrides the non-zero phase timeouts.
func WithTimeouts(t Timeouts) Option {
	return func(c *Connector) {
		if t.Connect > 0 {
			c.timeouts.Connect = t.Connect
		}
		if t.TLSHandshake > 0 {
			c.timeouts.TLSHandshake = t.TLSHandshake
		}
		if t.ResponseHeader > 0 {
			c.timeouts.ResponseHeader = t.ResponseHeader
		}
		if t.Request > 0 {
			c.timeouts.Request = t.Request
		}
	}
}

// WithLogger sets the connector logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Connector) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHeaders adds headers to every RPC.
func WithHeaders(headers map[string]string) Option {
	return func(c *Connector) {
		c.headers = headers
	}
}

// Send fetches the card at endpoint, posts msg to the card's RPC URL and
// returns the single terminal reply together with the card.
func (c *Connector) Send(ctx context.Context, endpoint string, msg *a2a.Message) (*a2a.Message, *a2a.AgentCard, error) {
	transport := c.newTransport()
	defer transport.CloseIdleConnections()
	httpClient := &http.Client{Transport: transport, Timeout: c.timeouts.Request}

	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Request)
	defer cancel()

	card, err := agentcard.Fetch(ctx, httpClient, endpoint)
	if err != nil {
		return nil, nil, errors.Connectivity(endpoint, fmt.Errorf("fetch agent card: %w", err))
	}
	if card.PreferredTransport != "" && card.PreferredTransport != a2a.TransportJSONRPC {
		return nil, card, errors.New(errors.CodeConnectivity,
			fmt.Sprintf("agent at %s prefers unsupported transport %q", endpoint, card.PreferredTransport), nil).
			WithContext("endpoint", endpoint)
	}
	rpcURL := card.URL
	if rpcURL == "" {
		rpcURL = agentcard.EndpointURL(endpoint, "")
	}

	rpc := rpcclient.New(rpcURL, rpcclient.WithHTTPClient(httpClient), rpcclient.WithHeaders(c.headers))
	c.logger.DebugContext(ctx, "sending message",
		slog.String("agent", card.Name),
		slog.String("url", rpc.Endpoint()),
		slog.String("message_id", msg.MessageID),
	)

	resp, err := rpc.SendMessage(ctx, &a2a.SendMessageRequest{
		Message: msg,
		Configuration: &a2a.SendMessageConfiguration{
			Blocking:            true,
			AcceptedOutputModes: card.DefaultOutputModes,
		},
	})
	if err != nil {
		if isTimeout(err) {
			return nil, card, errors.New(errors.CodeTimeout, "agent at "+endpoint+" did not answer in time", err).
				WithContext("endpoint", endpoint)
		}
		return nil, card, err
	}

	reply := terminalMessage(resp)
	if reply == nil && resp != nil && resp.Task != nil && resp.Task.ID != "" && !resp.Task.Status.State.Terminal() {
		reply = c.settle(ctx, rpc, resp.Task.ID)
	}
	if reply == nil {
		return nil, card, errors.NoResponse(endpoint)
	}
	return reply, card, nil
}

// settle asks once more for a task that was still running when the blocking
// send returned. Only a terminal task yields a reply.
func (c *Connector) settle(ctx context.Context, rpc *rpcclient.Client, taskID string) *a2a.Message {
	task, err := rpc.GetTask(ctx, &a2a.TaskQueryRequest{ID: taskID})
	if err != nil {
		c.logger.DebugContext(ctx, "task lookup failed",
			slog.String("task_id", taskID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if task == nil || !task.Status.State.Terminal() {
		return nil
	}
	return task.LastMessage()
}

// terminalMessage picks the effective answer: a direct message, or the last
// history entry of a finished task.
func terminalMessage(resp *a2a.SendMessageResponse) *a2a.Message {
	if resp == nil {
		return nil
	}
	if resp.Message != nil {
		return resp.Message
	}
	if resp.Task != nil && resp.Task.Status.State.Terminal() {
		return resp.Task.LastMessage()
	}
	return nil
}

func (c *Connector) newTransport() *http.Transport {
	dialer := &net.Dialer{Timeout: c.timeouts.Connect}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   c.timeouts.TLSHandshake,
		ResponseHeaderTimeout: c.timeouts.ResponseHeader,
		DisableKeepAlives:     true,
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, errors.CodeTimeout) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}
