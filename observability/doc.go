// Package observability wires OpenTelemetry metrics and tracing for the
// gateway services. Both exporters speak OTLP over HTTP; with no provider
// installed the global no-op providers apply and recording costs nothing.
package observability
