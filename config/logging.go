package config

import (
	"go.uber.org/zap"
)

// setLogger builds the zap logger for the deploy environment. Local gets
// the example logger so tests stay quiet, development gets human-readable
// output, production gets sampled json.
func setLogger(env string) (*zap.Logger, error) {
	switch env {
	case "production":
		return zap.NewProduction()
	case "development":
		return zap.NewDevelopment()
	default:
		return zap.NewExample(), nil
	}
}
