// Package apis declares the gateway's HTTP surface: the auth, admin,
// user and public APIs with their routes, authorizers and host
// restrictions. Every service binary registers all four; per-route
// service tags decide what each binary actually serves.
package apis
