// Package logger builds the application's zap logger.
//
// Development (dev): human-readable console output at DEBUG level.
// Staging (staging): JSON output at DEBUG level.
// Production (prod): JSON output at INFO level.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aanand-mishra/scholarship-api/internal/config"
)

// New returns a *zap.Logger configured for the given environment.
// level, when non-empty, overrides the environment's default level.
func New(env, level string) (*zap.Logger, error) {
	var zapCfg zap.Config
	switch env {
	case config.EnvProd:
		zapCfg = zap.NewProductionConfig()
	case config.EnvStaging:
		zapCfg = zap.NewProductionConfig()
		zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	default:
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.Encoding = "console"
	}

	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("logger.New: %w", err)
		}
		zapCfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	zapCfg.EncoderConfig.TimeKey = "timestamp"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return zapCfg.Build()
}
