// Package logger provides structured logging for gatekit services
// using zerolog.
//
// It supports JSON and console output, level configuration from the
// environment, and component-scoped loggers with structured fields.
//
// # Usage
//
//	log := logger.NewFromEnv("auth-service")
//	log.Info("server started", logger.Fields("addr", addr))
package logger
