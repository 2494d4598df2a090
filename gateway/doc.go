// Package gateway implements a multi-tenant request pipeline on top of Gin.
//
// Services declare their HTTP surface as APIs, each a named collection of
// typed routes. A Server owns one service identity and registers only the
// routes tagged for it, so the same API definitions can be registered on
// every service binary and each binary serves its own slice.
//
// Every request runs a fixed pipeline: proxy authentication, host
// restriction, API authentication, layered authorization, request
// validation, and finally the route handler. Each stage short-circuits
// with its own status code; the handler only ever sees requests that
// passed everything before it.
package gateway
