//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/gpengine/gameplay/internal/core/filesystem"
	"github.com/gpengine/gameplay/internal/core/game"
	"github.com/gpengine/gameplay/internal/core/graphics/driver"
	"github.com/gpengine/gameplay/internal/core/serializer"
)

func InitializeGame(cfg *game.Config, fsys *filesystem.FileSystem, act *serializer.Activator, surface driver.Surface) (*game.Game, error) {
	wire.Build(ProviderSet)
	return nil, nil
}
