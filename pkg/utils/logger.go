package utils

import "go.uber.org/zap"

const serviceName = "concierge"

// NewLogger returns a zap logger tagged with the service name. When debug is true,
// uses development config (human-readable, debug level); otherwise production
// config (JSON, info level).
func NewLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.InitialFields = map[string]interface{}{"service": serviceName}
	return cfg.Build()
}

// NopIfNil returns l, or a no-op logger when l is nil.
func NopIfNil(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
