// Package instrumentation provides OpenTelemetry instrumentation for the
// tasksage server.
//
// This package enables production-grade observability through:
//   - OpenTelemetry metrics for HTTP requests, chat turns, model calls, and tool invocations
//   - Tracing for chat orchestration and tool execution
//   - Prometheus metrics export via /metrics endpoint on a dedicated port
//
// # Metrics
//
// Server/HTTP Metrics:
//   - http_requests_total: Counter of HTTP requests by method, path, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//
// Chat Orchestration Metrics:
//   - chat_turns_total: Counter of assistant chat turns by result
//   - model_calls_total: Counter of language model API calls by model and status
//   - model_call_duration_seconds: Histogram of model API call durations
//
// MCP Tool Metrics:
//   - mcp_tool_invocations_total: Counter of MCP tool invocations by tool name and status
//   - mcp_tool_duration_seconds: Histogram of MCP tool execution durations
//
// Subtask Suggestion Metrics:
//   - subtask_suggestions_total: Counter of subtask suggestion attempts by result
//
// # Configuration
//
// Instrumentation can be configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: Metrics exporter type (prometheus, stdout, default: prometheus)
//   - TRACING_EXPORTER: Tracing exporter type (stdout, none, default: none)
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: tasksage)
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	recorder := provider.Metrics()
//	recorder.RecordToolInvocation(ctx, "analyze_tasks", instrumentation.StatusSuccess, time.Since(start))
package instrumentation
