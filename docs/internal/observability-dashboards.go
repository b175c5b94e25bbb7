// SPDX-License-Identifier: Apache-2.0

// Package internal documents dashboard templates for the a2apipe metrics,
// for Grafana or any OpenTelemetry UI. Agents expose them at /metrics when
// telemetry.exporter is prometheus; the OTLP exporter ships the same names.
//
// DASHBOARD: Pipeline Stages
//
//	Queries:
//	- histogram_quantile(0.95, sum by (le, a2apipe_pipeline_stage) (rate(a2apipe_stage_duration_seconds_bucket[5m])))
//	  Metric: p95 round trip per stage (reader, analyst, visualizer)
//	  Display: Line chart, one series per stage
//	  Note: visualizer includes up to four model calls and chart rendering
//
//	- sum by (a2apipe_pipeline_stage, a2apipe_error_code) (rate(a2apipe_stage_failures_total[5m]))
//	  Metric: Stage failures by error code
//	  Display: Stacked bars
//	  Reading: CONNECTIVITY_FAILURE points at a stopped agent, UPSTREAM_FAILURE
//	  at the model provider, BAD_REQUEST at the payload handed between stages
//
// DASHBOARD: Agent Surface
//
//	Queries:
//	- sum by (a2apipe_agent_name, a2apipe_rpc_method, a2apipe_outcome) (rate(a2apipe_rpc_requests_total[5m]))
//	  Metric: Served JSON-RPC calls
//	  Display: Table
//	  Reading: anything other than message/send with outcome=error is a
//	  client asking for an unsupported method
//
// TRACES:
//
//	pipeline.run                  one per run, carries a2apipe.pipeline.run_id
//	  pipeline.stage.<role>       one per stage, carries endpoint and model
//	    <method>                  server span on the agent (message/send), same trace id
//
// Logs written through telemetry.ConfigureSlog carry trace_id and span_id,
// so a failed stage in the run history can be followed into the agent log.
package internal
