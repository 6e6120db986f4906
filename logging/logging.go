// Package logging builds the zap loggers used by the binaries.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvVar names the environment variable holding the default log level.
const EnvVar = "KAMUI_LOG"

// Level returns the level named by `name`, falling back to $KAMUI_LOG and
// then to info.
func Level(name string) (zapcore.Level, error) {
	if name == "" {
		name = os.Getenv(EnvVar)
	}
	if name == "" {
		return zapcore.InfoLevel, nil
	}
	return zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
}

// New returns a logger at the given level. Console output is meant for
// people; JSON output for log collectors.
func New(level zapcore.Level, json bool) (*zap.Logger, error) {
	var config zap.Config
	if json {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.DisableStacktrace = true
	}
	config.Level = zap.NewAtomicLevelAt(level)
	return config.Build()
}
