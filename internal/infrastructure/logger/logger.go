// Package logger configures zerolog and carries request-scoped loggers in context.
package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/gledger/internal/domain"
)

// Config holds logger configuration.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output io.Writer
}

// New creates a new zerolog logger based on config.
func New(cfg Config) zerolog.Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	level := parseLevel(cfg.Level)

	return zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Caller().
		Logger()
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithContext stores l in ctx.
func WithContext(ctx context.Context, l zerolog.Logger) context.Context {
	return l.WithContext(ctx)
}

// FromContext returns the logger stored in ctx enriched with the request id,
// tenant and principal found in ctx. Without a stored logger it returns a
// disabled logger.
func FromContext(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		return l
	}

	c := l.With()
	changed := false
	if meta := domain.RequestMetaFromContext(ctx); meta.RequestID != "" {
		c = c.Str("request_id", meta.RequestID)
		changed = true
	}
	if tenant, ok := domain.TenantFromContext(ctx); ok {
		c = c.Str("tenant_id", tenant)
		changed = true
	}
	if p, ok := domain.PrincipalFromContext(ctx); ok {
		c = c.Str("user_id", p.ID)
		changed = true
	}
	if !changed {
		return l
	}
	enriched := c.Logger()
	return &enriched
}
