// Package logging configures zerolog for the storefront services.
//
// Every package logs through a component logger (NewLogger) and request
// handlers through the logger httpapi attaches to the request context.
// Cache hits and misses go to debug, refreshes and admin actions to info,
// absorbed cache and retry failures to warn, and source failures that reach
// a caller to error.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel is a configured minimum level.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Valid reports whether l is one of the supported levels.
func (l LogLevel) Valid() bool {
	switch l {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return true
	}
	return false
}

// Config holds logger configuration.
type Config struct {
	Level LogLevel

	// Pretty switches from JSON lines to zerolog's console writer.
	Pretty bool

	// Output defaults to os.Stderr.
	Output io.Writer

	// Service is added to every record when set.
	Service string
}

// DefaultConfig returns JSON logging at info level to stderr.
func DefaultConfig() Config {
	return Config{
		Level:   LevelInfo,
		Output:  os.Stderr,
		Service: "storefront-api",
	}
}

// Setup configures the global zerolog logger and makes it the fallback for
// zerolog.Ctx on contexts that carry no logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	lctx := zerolog.New(output).With().Timestamp()
	if cfg.Service != "" {
		lctx = lctx.Str("service", cfg.Service)
	}
	logger := lctx.Logger()

	log.Logger = logger
	zerolog.DefaultContextLogger = &logger

	return logger
}

// parseLevel maps a configured level to zerolog, accepting "warning" as well.
// Anything unknown or empty falls back to info.
func parseLevel(level LogLevel) zerolog.Level {
	name := strings.ToLower(string(level))
	if name == "warning" {
		name = string(LevelWarn)
	}
	parsed, err := zerolog.ParseLevel(name)
	if err != nil || parsed == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return parsed
}

// NewLogger returns the global logger tagged with component
// (cache, catalog, docstore, pagination, ratelimit, httpapi, main).
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
