package logger

import (
	"go.uber.org/zap"
)

// New builds the process-wide logger. Dev environments get the console
// encoder, everything else gets production JSON.
func New(env string) (*zap.Logger, error) {
	if env == "dev" || env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
