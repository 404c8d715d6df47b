package component

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/operify/opsgate/src/application/service"
)

type MonitorRunner struct {
	Logger         zerolog.Logger
	MonitorService service.MonitorService
}

func (self *MonitorRunner) Start(ctx context.Context) error {
	self.Logger.Info().Msg("Starting")
	defer self.Logger.Info().Msg("Stopped")

	return self.MonitorService.Run(ctx)
}
