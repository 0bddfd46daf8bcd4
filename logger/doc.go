// Package logger provides structured logging for streamkit
// using zerolog.
//
// It supports multiple output formats (JSON, console), log level
// configuration, and component-scoped loggers with structured fields.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.New(&cfg.Logging, cfg.Name).WithComponent("server")
//	log.Info("run completed", logger.Fields(logger.FieldAction, "analyze"))
package logger
