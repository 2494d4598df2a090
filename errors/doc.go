// Package errors provides unified error handling for gatekit services.
// It implements structured error types with error codes, HTTP status mapping,
// and safe-to-expose client messages.
package errors
