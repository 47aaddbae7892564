// Package logger builds the zap logger shared by every component.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"agentx/internal/config"
)

// New builds a logger from cfg. Production config writes JSON; development
// uses the coloured console encoder. outputs replaces the default stderr
// sink, which the terminal chat needs to keep the screen clean.
func New(cfg config.LogConfig, outputs ...string) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	if len(outputs) > 0 {
		zc.OutputPaths = outputs
		zc.ErrorOutputPaths = outputs
	}

	log, err := zc.Build()
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(log)
	return log, nil
}
