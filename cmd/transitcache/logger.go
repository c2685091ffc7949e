package main

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jonwraymond/transitcache/observe"
)

// newZap builds a JSON production logger at level. An empty level means info.
func newZap(level string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		lvl = parsed
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.EncoderConfig.TimeKey = "timestamp"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zcfg.Build()
}

func newLogger(cfg observe.LoggingConfig) (observe.Logger, func(), error) {
	if !cfg.Enabled {
		return observe.NopLogger(), func() {}, nil
	}
	z, err := newZap(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	return observe.NewZapLogger(z), func() { _ = z.Sync() }, nil
}
