// Package log provides the structured logging facade used across dp1-feed.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// simple Field type for structured context. Internally it is backed by Go's
// standard library slog via a custom handler that routes records through the
// configured formatter and outputs, so output stays consistent across the
// codebase while remaining interoperable with the slog ecosystem.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("queue"), log.Str("queue", "writes"))
//	l.Info("processor started", log.Int("poll_ms", 1000))
//
// # Configuration
//
// Use ApplyConfig to build a logger from a declarative Config (level and
// format), typically populated from DP1_LOG_LEVEL / DP1_LOG_FORMAT.
//
// # Interop
//
// RedirectStdLog routes standard library log output (Pebble uses it) through
// a Logger instance.
package log
