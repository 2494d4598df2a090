// Package token implements the RSA token service: key generation and
// persistence, RS256 JWT issuance, JWKS publication, and an independent
// verifier that validates tokens against a remote JWKS endpoint.
//
// The issuer side owns a key directory where each key pair lives as a
// <kid>.key / <kid>.pub PEM file pair. The verifier side never touches
// key material on disk; it fetches public keys from the issuer's JWKS
// URL and caches them.
package token
