// Package resilience provides retry with exponential backoff and a
// token-bucket rate limiter.
//
// The token verifier uses Do to survive transient JWKS fetch failures;
// the gateway uses Limiter to shed excess request load before the
// pipeline runs.
package resilience
