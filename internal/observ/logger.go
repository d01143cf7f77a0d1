package observ

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger: JSON for ENV=production, colored
// console output otherwise. Every entry carries the service and env.
func NewLogger(env, level string) (*zap.Logger, error) {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if env == "production" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "ts"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zapLevel, levelErr := zapcore.ParseLevel(level)
	if levelErr != nil {
		zapLevel = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	logger, err := config.Build(zap.Fields(
		zap.String("service", "echothread"),
		zap.String("env", env),
	))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	if levelErr != nil {
		logger.Warn("unknown LOG_LEVEL, using info", zap.String("level", level))
	}
	return logger, nil
}
