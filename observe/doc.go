// Package observe instruments resilient operations with OpenTelemetry.
//
// Wrap decorates a resilience.Operation with a span, a call id, operation
// metrics and a structured log line. The hook constructors on Middleware
// plug the same telemetry into the callbacks of RetryConfig, TimeoutConfig,
// RateLimiterConfig, BatchConfig and CircuitBreakerConfig.
//
// Exporters are chosen by name (stdout, otlp, jaeger, prometheus, none) through
// Config or the TASKOPS_* environment variables read by ConfigFromEnv.
package observe
