// SPDX-License-Identifier: Apache-2.0
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jllopis/a2apipe/pkg/errors"
)

// MeterName is the instrumentation scope of every a2apipe instrument.
const MeterName = "github.com/jllopis/a2apipe"

// Metrics holds the instruments recorded by agents and the pipeline driver.
// A nil *Metrics records nothing.
type Metrics struct {
	rpcRequests   metric.Int64Counter
	stageDuration metric.Float64Histogram
	stageFailures metric.Int64Counter
}

// NewMetrics creates the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsWithMeter(otel.Meter(MeterName))
}

// NewMetricsWithMeter creates the instruments on the given meter.
func NewMetricsWithMeter(meter metric.Meter) (*Metrics, error) {
	rpcRequests, err := meter.Int64Counter(
		"a2apipe.rpc.requests",
		metric.WithDescription("JSON-RPC requests served by method and outcome"),
	)
	if err != nil {
		return nil, err
	}

	stageDuration, err := meter.Float64Histogram(
		"a2apipe.stage.duration",
		metric.WithDescription("Pipeline stage round-trip time"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	stageFailures, err := meter.Int64Counter(
		"a2apipe.stage.failures",
		metric.WithDescription("Pipeline stage failures by error code"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		rpcRequests:   rpcRequests,
		stageDuration: stageDuration,
		stageFailures: stageFailures,
	}, nil
}

// RecordRPC counts one served RPC. A nil err counts as success.
func (m *Metrics) RecordRPC(ctx context.Context, agent, method string, err error) {
	if m == nil {
		return
	}
	attrs := RPCAttributes(agent, method)
	attrs = append(attrs, outcomeAttributes(err)...)
	m.rpcRequests.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordStage records a stage's duration and, on failure, its error code.
func (m *Metrics) RecordStage(ctx context.Context, stage string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String(AttrStage, stage)}
	attrs = append(attrs, outcomeAttributes(err)...)
	m.stageDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attrs...))
	if err != nil {
		m.stageFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func outcomeAttributes(err error) []attribute.KeyValue {
	if err == nil {
		return []attribute.KeyValue{attribute.String(AttrOutcome, OutcomeOK)}
	}
	return []attribute.KeyValue{
		attribute.String(AttrOutcome, OutcomeError),
		attribute.String(AttrErrorCode, string(errors.CodeOf(err))),
	}
}
