package injector

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpengine/gameplay/internal/core/filesystem"
	"github.com/gpengine/gameplay/internal/core/game"
	"github.com/gpengine/gameplay/internal/core/graphics/driver"
)

func TestInitializeGame(t *testing.T) {
	fsys, err := filesystem.NewMemory()
	require.NoError(t, err)
	cfg := game.DefaultConfig()
	cfg.Log.Level = "error"

	g, err := InitializeGame(cfg, fsys, ProvideActivator(), driver.Surface(1))
	require.NoError(t, err)
	assert.Equal(t, game.StateUninitialized, g.State())
	assert.Same(t, cfg, g.Config())
}

func TestInitializeGame_UnknownDriver(t *testing.T) {
	fsys, err := filesystem.NewMemory()
	require.NoError(t, err)
	cfg := game.DefaultConfig()
	cfg.Graphics = "glide"

	_, err = InitializeGame(cfg, fsys, ProvideActivator(), driver.Surface(1))
	assert.True(t, errors.Is(err, driver.ErrUnknownDriver))
}
