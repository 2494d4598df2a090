package component

import "context"

// Component is one lifecycle-managed piece of a gateway service: the
// HTTP server, the signing key store, the JWKS verifier.
type Component interface {
	// Name identifies the component within a registry.
	Name() string

	// Start brings the component up. It must return once the component
	// is usable.
	Start(ctx context.Context) error

	// Stop shuts the component down and releases its resources.
	Stop(ctx context.Context) error

	// Health reports the component's current state.
	Health(ctx context.Context) Health
}

// HealthStatus is a component's reported state.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusDegraded  HealthStatus = "degraded"
)

// Health is one component's health report.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// Healthy builds a healthy report. The message is informational, like a
// listen address or a key count.
func Healthy(name, message string) Health {
	return Health{Name: name, Status: StatusHealthy, Message: message}
}

// Unhealthy builds an unhealthy report with the failure reason.
func Unhealthy(name, reason string) Health {
	return Health{Name: name, Status: StatusUnhealthy, Message: reason}
}
