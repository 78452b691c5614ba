// Package logging builds zap loggers writing to stderr.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Supported encodings.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// New creates logger of the given level ("debug", "info", "warn", "error")
// and format (FormatConsole or FormatJSON). Empty values mean "info" and
// FormatConsole respectively.
func New(level, format string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if level = strings.TrimSpace(level); level != "" {
		err := lvl.UnmarshalText([]byte(strings.ToLower(level)))
		if err != nil {
			return nil, fmt.Errorf("invalid log level '%s': %w", level, err)
		}
	}

	var c zap.Config

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatConsole:
		c = zap.NewDevelopmentConfig()
		c.Development = false
		c.DisableStacktrace = true
	case FormatJSON:
		c = zap.NewProductionConfig()
		c.Sampling = nil
		c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		return nil, fmt.Errorf("invalid log format '%s'", format)
	}

	c.Level = zap.NewAtomicLevelAt(lvl)
	c.OutputPaths = []string{"stderr"}
	c.ErrorOutputPaths = []string{"stderr"}

	l, err := c.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	return l, nil
}
