package utils

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InitLogger builds a JSON logger for production and a console logger
// otherwise. level is any zap level name; empty means info.
func InitLogger(env, level string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		if err := lvl.Set(level); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}

	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger.With(zap.String("service", "cloudbox")), nil
}

// BootLogger is InitLogger for the window before configuration is loaded. It
// never returns nil: a logger that cannot be built falls back to a plain
// stdout one that reports why.
func BootLogger(env, level string) *zap.Logger {
	logger, err := InitLogger(env, level)
	if err != nil {
		logger = zap.NewExample(zap.Fields(zap.String("service", "cloudbox")))
		logger.Warn("falling back to default boot logger", zap.Error(err))
	}
	return logger
}
