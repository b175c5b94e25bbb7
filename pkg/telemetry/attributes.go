// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry wires logging, tracing and metrics for agents and the
// pipeline driver.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by spans and metrics.
const (
	AttrAgentName   = "a2apipe.agent.name"
	AttrAgentRole   = "a2apipe.agent.role"
	AttrAgentModel  = "a2apipe.agent.model"
	AttrRPCMethod   = "a2apipe.rpc.method"
	AttrRPCEndpoint = "a2apipe.rpc.endpoint"
	AttrStage       = "a2apipe.pipeline.stage"
	AttrRunID       = "a2apipe.pipeline.run_id"
	AttrErrorCode   = "a2apipe.error.code"
	AttrOutcome     = "a2apipe.outcome"
)

// Outcome values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// StageAttributes returns the attributes describing one pipeline stage call.
func StageAttributes(stage, endpoint, model string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(AttrStage, stage)}
	if endpoint != "" {
		attrs = append(attrs, attribute.String(AttrRPCEndpoint, endpoint))
	}
	if model != "" {
		attrs = append(attrs, attribute.String(AttrAgentModel, model))
	}
	return attrs
}

// RPCAttributes returns the attributes describing one served RPC.
func RPCAttributes(agent, method string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrAgentName, agent),
		attribute.String(AttrRPCMethod, method),
	}
}
