package log

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/merchantlabs/backoffice/internal/config"
)

var Module = fx.Module("logger",
	fx.Provide(New),
)

// New builds the application logger. Production gets JSON sampling output,
// everything else gets the human-readable development encoder.
func New(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
