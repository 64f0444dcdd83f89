package injector

import (
	"github.com/google/wire"

	"github.com/gpengine/gameplay/internal/core/events/bus"
	"github.com/gpengine/gameplay/internal/core/filesystem"
	"github.com/gpengine/gameplay/internal/core/game"
	"github.com/gpengine/gameplay/internal/core/graphics"
	"github.com/gpengine/gameplay/internal/core/graphics/driver"
	"github.com/gpengine/gameplay/internal/core/observability/log"
	"github.com/gpengine/gameplay/internal/core/serializer"
)

// ProviderSet builds a Game from its config, file system, activator and
// window surface.
var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideEventBus,
	ProvideDriver,
	ProvideDevice,
	ProvideGame,
)

func ProvideLogger(cfg *game.Config) log.Log {
	return log.NewWithConfig(cfg.Log)
}

// ProvideActivator returns a registry with every engine type registered.
// It is needed before the config is read, so it is not part of ProviderSet.
func ProvideActivator() *serializer.Activator {
	act := serializer.NewActivator()
	game.RegisterTypes(act)
	return act
}

func ProvideEventBus() bus.EventBus {
	return bus.New()
}

func ProvideDriver(cfg *game.Config) (driver.Driver, error) {
	return driver.Lookup(cfg.Graphics)
}

func ProvideDevice(drv driver.Driver, cfg *game.Config, logger log.Log) *graphics.Device {
	return graphics.NewDevice(drv, cfg.GraphicsSettings(), logger)
}

func ProvideGame(
	cfg *game.Config,
	fsys *filesystem.FileSystem,
	act *serializer.Activator,
	events bus.EventBus,
	device *graphics.Device,
	surface driver.Surface,
	logger log.Log,
) (*game.Game, error) {
	return game.New(cfg, fsys, act, events, device, surface, logger)
}
