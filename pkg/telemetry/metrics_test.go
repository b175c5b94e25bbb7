// SPDX-License-Identifier: Apache-2.0
package telemetry

import (
	"context"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/jllopis/a2apipe/pkg/errors"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := map[string]metricdata.Metrics{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestMetricsRecordStage(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetricsWithMeter(provider.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetricsWithMeter: %v", err)
	}

	ctx := context.Background()
	m.RecordStage(ctx, "reader", 150*time.Millisecond, nil)
	m.RecordStage(ctx, "analyst", time.Second, errors.Connectivity("http://localhost:8002", nil))
	m.RecordRPC(ctx, "Sales Reader", "message/send", nil)

	got := collect(t, reader)

	failures, ok := got["a2apipe.stage.failures"]
	if !ok {
		t.Fatalf("expected stage failures metric, got %v", got)
	}
	sum, ok := failures.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 1 {
		t.Fatalf("expected one failure data point, got %+v", failures.Data)
	}
	code, _ := sum.DataPoints[0].Attributes.Value(AttrErrorCode)
	if code.AsString() != string(errors.CodeConnectivity) {
		t.Errorf("expected connectivity code attribute, got %q", code.AsString())
	}

	hist, ok := got["a2apipe.stage.duration"].Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) != 2 {
		t.Fatalf("expected two duration series, got %+v", got["a2apipe.stage.duration"].Data)
	}
	if _, ok := got["a2apipe.rpc.requests"]; !ok {
		t.Errorf("expected rpc requests metric")
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordStage(context.Background(), "reader", time.Second, nil)
	m.RecordRPC(context.Background(), "x", "y", nil)
}
