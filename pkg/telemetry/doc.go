// Package telemetry wires OpenTelemetry and Prometheus instrumentation for the
// units engine.
//
// It records call counters and latency for conversions and composition
// searches, bootstraps the OTLP trace provider used by the CLI, and exposes
// registry-stack gauges through a Prometheus collector. The package does not
// depend on the engine itself; callers hand it plain values.
package telemetry
