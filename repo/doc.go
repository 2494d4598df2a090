// Package repo provides the in-memory demo repositories backing the
// gateway services. They are concurrency-safe and seeded with a few
// well-known users so the services are usable out of the box.
package repo
