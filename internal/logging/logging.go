// Package logging constructs the per-node zap logger used across
// reactorctl, scoped to a role and node id the way the rest of the
// facility-control pack scopes its loggers to a service identity.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a logger for the given role/node, honoring the
// REACTORCTL_LOG_FORMAT convention ("json" or "console").
func New(role, nodeID, format string) (*zap.Logger, error) {
	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("role", role), zap.String("node_id", nodeID)), nil
}
