// Package component defines the interfaces for lifecycle-managed pieces
// of a service: things that start, stop, and report health.
//
// Components are registered with the bootstrap package, which starts them
// in registration order and stops them in reverse during shutdown.
package component
