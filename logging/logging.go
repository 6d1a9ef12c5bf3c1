// Package logging is the benchmark core's thin wrapper over the xlog
// facade (github.com/trickstertwo/xlog), adding the scoped-activation
// discipline the harness requires: all logging inside the benchmark
// core happens within a Scope acquired at harness initialization and
// released at finalize, and a nested Scope may narrow (but never widen)
// the minimum log level for a block.
package logging

import (
	"os"
	"strings"

	"github.com/trickstertwo/xlog"
	"github.com/trickstertwo/xlog/adapter/zerolog"
)

// Config configures the root Scope.
type Config struct {
	// MinLevel is the default minimum level; overridden by MBENCH_LOG_LEVEL
	// when that environment variable is set to a recognized value.
	MinLevel xlog.Level
}

// DefaultConfig returns the harness's default logging configuration:
// info level, unless MBENCH_LOG_LEVEL overrides it.
func DefaultConfig() Config {
	return Config{MinLevel: xlog.LevelInfo}
}

// Scope is an activated logging context. The zero value is not usable;
// construct one with Open.
//
// xlog.Logger.With shares its parent's atomic min-level cell (by
// design, so that SetMinLevel on a logger obtained via Builder still
// reaches loggers derived from it), so narrowing a derived logger's
// level in place would also narrow every scope that shares its
// pointer, not just the child. Scope instead tracks its own min
// independently of the underlying *xlog.Logger and gates each call
// through discardLogger when the scope's own floor says no, leaving
// the shared logger's level untouched.
type Scope struct {
	logger *xlog.Logger
	min    xlog.Level
}

// discardLogger never emits: its min level sits above Fatal, so every
// event built from it is dropped by xlog's own level check before it
// reaches an adapter. Used by Scope to gate below its own min without
// touching the shared logger it wraps.
var discardLogger = xlog.New(nil, xlog.LevelFatal+1)

// Open builds the root Scope, wiring a zerolog adapter as the default
// backend (the only adapter the retrieval pack ships a working xlog
// integration for).
func Open(cfg Config) *Scope {
	if lvl, ok := levelFromEnv(); ok {
		cfg.MinLevel = lvl
	}

	logger := zerolog.Use(zerolog.Config{
		Writer:   os.Stdout,
		MinLevel: cfg.MinLevel,
	})

	return &Scope{logger: logger, min: cfg.MinLevel}
}

// Sub returns a narrower scope bound to the given fields; its minimum
// level can only be raised relative to the parent, never lowered,
// since relaxing verbosity mid-benchmark would bias later measurements
// toward more logging overhead than earlier ones.
func (s *Scope) Sub(min xlog.Level, fields ...xlog.Field) *Scope {
	if min < s.min {
		min = s.min
	}
	return &Scope{logger: s.logger.With(fields...), min: min}
}

func (s *Scope) Trace() *xlog.Event { return s.pick(xlog.LevelTrace).Trace() }
func (s *Scope) Debug() *xlog.Event { return s.pick(xlog.LevelDebug).Debug() }
func (s *Scope) Info() *xlog.Event  { return s.pick(xlog.LevelInfo).Info() }
func (s *Scope) Warn() *xlog.Event  { return s.pick(xlog.LevelWarn).Warn() }
func (s *Scope) Error() *xlog.Event { return s.pick(xlog.LevelError).Error() }

func (s *Scope) pick(level xlog.Level) *xlog.Logger {
	if level < s.min {
		return discardLogger
	}
	return s.logger
}

// DebugBiasWarning logs the one-time "measurements will be biased"
// warning the harness emits when trace/debug logging is active.
func (s *Scope) DebugBiasWarning() {
	if s.min <= xlog.LevelDebug {
		s.Warn().Msg("trace/debug logging is enabled; timing measurements will be biased")
	}
}

// Close releases the adapter. Call exactly once, last, during harness
// finalize.
func (s *Scope) Close() {
	s.logger.Close()
}

func levelFromEnv() (xlog.Level, bool) {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("MBENCH_LOG_LEVEL")))
	switch v {
	case "trace":
		return xlog.LevelTrace, true
	case "debug":
		return xlog.LevelDebug, true
	case "info":
		return xlog.LevelInfo, true
	case "warn", "warning":
		return xlog.LevelWarn, true
	case "error":
		return xlog.LevelError, true
	default:
		return 0, false
	}
}
