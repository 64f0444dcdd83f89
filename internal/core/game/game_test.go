package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpengine/gameplay/internal/core/events/bus"
	"github.com/gpengine/gameplay/internal/core/filesystem"
	"github.com/gpengine/gameplay/internal/core/graphics"
	"github.com/gpengine/gameplay/internal/core/graphics/driver"
	"github.com/gpengine/gameplay/internal/core/graphics/driver/sim"
	"github.com/gpengine/gameplay/internal/core/observability/log"
	"github.com/gpengine/gameplay/internal/core/scene"
	"github.com/gpengine/gameplay/internal/core/serializer"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recorder struct {
	mu     sync.Mutex
	events []bus.Event
}

func (r *recorder) handle(e bus.Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

func (r *recorder) states() []StateChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []StateChange
	for _, e := range r.events {
		if c, ok := e.Data().(StateChange); ok {
			out = append(out, c)
		}
	}
	return out
}

func (r *recorder) count(typ string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type() == typ {
			n++
		}
	}
	return n
}

type fixture struct {
	game   *Game
	fsys   *filesystem.FileSystem
	act    *serializer.Activator
	clock  *fakeClock
	events *recorder
}

func newFixture(t *testing.T, cfg *Config, opts sim.Options, gameOpts ...Option) *fixture {
	t.Helper()
	fsys, err := filesystem.NewMemory()
	require.NoError(t, err)
	act := serializer.NewActivator()
	RegisterTypes(act)

	eb := bus.New()
	rec := &recorder{}
	for _, typ := range []string{EventState, EventResize, EventSceneLoaded, EventSceneLoadFailed} {
		_, err := eb.Subscribe(typ, rec.handle)
		require.NoError(t, err)
	}

	clock := newFakeClock()
	device := graphics.NewDevice(sim.New(opts), cfg.GraphicsSettings(), log.NewNop())
	gameOpts = append([]Option{WithClock(clock.Now), WithLoaderWorkers(2)}, gameOpts...)
	g, err := New(cfg, fsys, act, eb, device, driver.Surface(1), log.NewNop(), gameOpts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Exit(context.Background()) })

	return &fixture{game: g, fsys: fsys, act: act, clock: clock, events: rec}
}

func (f *fixture) writeScene(t *testing.T, url string, root *scene.SceneObject) {
	t.Helper()
	w, err := serializer.CreateWriter(f.fsys, url, serializer.FormatJSON, f.act)
	require.NoError(t, err)
	w.WriteObject("", root)
	require.NoError(t, w.Close())
}

func TestGame_Lifecycle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SplashScreens = []*SplashScreen{
		{URL: "logo.png", Duration: time.Second},
		{URL: "studio.png", Duration: time.Second},
	}
	cfg.LoadingScene = "loading.scene"
	cfg.MainScene = "main.scene"
	f := newFixture(t, cfg, sim.Options{})

	main := scene.NewSceneObject("main")
	main.AddComponent(scene.NewCamera())
	f.writeScene(t, "loading.scene", scene.NewSceneObject("loading"))
	f.writeScene(t, "main.scene", main)

	ctx := context.Background()
	g := f.game
	require.ErrorIs(t, g.OnFrame(ctx), ErrNotInitialized)
	require.NoError(t, g.Initialize(ctx))
	assert.Equal(t, StateSplash, g.State())

	f.clock.Advance(time.Second)
	require.NoError(t, g.OnFrame(ctx))
	assert.Equal(t, StateSplash, g.State())

	f.clock.Advance(time.Second)
	require.NoError(t, g.OnFrame(ctx))
	assert.Equal(t, StateLoading, g.State())
	require.NotNil(t, g.Scene())
	assert.Equal(t, "loading", g.Scene().Name)

	require.Eventually(t, func() bool {
		_, ok, _ := g.LoadedScene("main.scene")
		return ok
	}, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, g.OnFrame(ctx))
	assert.Equal(t, StateRunning, g.State())
	assert.Equal(t, "main", g.Scene().Name)
	assert.NotNil(t, g.Camera())

	assert.Equal(t, []StateChange{
		{From: StateUninitialized, To: StateSplash},
		{From: StateSplash, To: StateLoading},
		{From: StateLoading, To: StateRunning},
	}, f.events.states())
	assert.Equal(t, 2, f.events.count(EventSceneLoaded))
	assert.Equal(t, uint64(3), g.device.Stats().Rendered)
}

func TestGame_MainSceneFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MainScene = "missing.scene"
	f := newFixture(t, cfg, sim.Options{})
	ctx := context.Background()

	require.NoError(t, f.game.Initialize(ctx))
	assert.Equal(t, StateLoading, f.game.State())

	require.Eventually(t, func() bool {
		return f.events.count(EventSceneLoadFailed) == 1
	}, 5*time.Second, 5*time.Millisecond)
	_, ok, err := f.game.LoadedScene("missing.scene")
	assert.True(t, ok)
	assert.True(t, errors.Is(err, filesystem.ErrNotFound))

	require.NoError(t, f.game.OnFrame(ctx))
	assert.Equal(t, StateRunning, f.game.State())
	assert.Nil(t, f.game.Scene())
}

func TestGame_InitializeFailure(t *testing.T) {
	f := newFixture(t, DefaultConfig(), sim.Options{
		Adapters: []driver.AdapterDesc{{Name: "warp", Software: true}},
	})
	err := f.game.Initialize(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, graphics.ErrDeviceSetup))
	assert.Equal(t, StateUninitialized, f.game.State())
}

func TestGame_PauseExcludesGameTime(t *testing.T) {
	f := newFixture(t, DefaultConfig(), sim.Options{})
	g := f.game

	g.Pause()
	assert.Equal(t, StateUninitialized, g.State())

	require.NoError(t, g.Initialize(context.Background()))
	assert.Equal(t, StateRunning, g.State())

	f.clock.Advance(2 * time.Second)
	g.Pause()
	g.Pause()
	assert.Equal(t, StatePaused, g.State())

	f.clock.Advance(5 * time.Second)
	assert.Equal(t, 2*time.Second, g.GameTime())
	g.Resume()
	assert.Equal(t, StatePaused, g.State())
	g.Resume()
	assert.Equal(t, StateRunning, g.State())
	g.Resume()
	assert.Equal(t, StateRunning, g.State())

	f.clock.Advance(time.Second)
	assert.Equal(t, 8*time.Second, g.AbsoluteTime())
	assert.Equal(t, 3*time.Second, g.GameTime())

	assert.Equal(t, []StateChange{
		{From: StateUninitialized, To: StateRunning},
		{From: StateRunning, To: StatePaused},
		{From: StatePaused, To: StateRunning},
	}, f.events.states())
}

func TestGame_PausedSplashKeepsRemainingTime(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SplashScreens = []*SplashScreen{{URL: "logo.png", Duration: time.Second}}
	f := newFixture(t, cfg, sim.Options{})
	g := f.game
	ctx := context.Background()

	require.NoError(t, g.Initialize(ctx))
	g.Pause()
	f.clock.Advance(10 * time.Second)
	require.NoError(t, g.OnFrame(ctx))
	g.Resume()
	assert.Equal(t, StateSplash, g.State())

	f.clock.Advance(time.Second)
	require.NoError(t, g.OnFrame(ctx))
	assert.Equal(t, StateRunning, g.State())
}

func TestGame_UpdateAndRender(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SplashScreens = []*SplashScreen{{URL: "logo.png", Duration: time.Second}}
	var updates, renders []time.Duration
	f := newFixture(t, cfg, sim.Options{},
		WithUpdate(func(elapsed time.Duration) { updates = append(updates, elapsed) }),
		WithRender(func(elapsed time.Duration) { renders = append(renders, elapsed) }),
	)
	g := f.game
	ctx := context.Background()
	require.NoError(t, g.Initialize(ctx))

	f.clock.Advance(500 * time.Millisecond)
	require.NoError(t, g.OnFrame(ctx))
	assert.Empty(t, updates, "no updates during splash")

	f.clock.Advance(500 * time.Millisecond)
	require.NoError(t, g.OnFrame(ctx))
	assert.Equal(t, StateRunning, g.State())

	g.Pause()
	f.clock.Advance(100 * time.Millisecond)
	require.NoError(t, g.OnFrame(ctx))
	g.Resume()

	f.clock.Advance(200 * time.Millisecond)
	require.NoError(t, g.OnFrame(ctx))

	assert.Equal(t, []time.Duration{500 * time.Millisecond, 200 * time.Millisecond}, updates)
	assert.Equal(t, []time.Duration{
		500 * time.Millisecond,
		500 * time.Millisecond,
		100 * time.Millisecond,
		200 * time.Millisecond,
	}, renders)
}

func TestGame_FrameRate(t *testing.T) {
	f := newFixture(t, DefaultConfig(), sim.Options{})
	ctx := context.Background()
	require.NoError(t, f.game.Initialize(ctx))

	for i := 0; i < 10; i++ {
		f.clock.Advance(100 * time.Millisecond)
		require.NoError(t, f.game.OnFrame(ctx))
	}
	assert.Equal(t, 10, f.game.FrameRate())
}

func TestGame_Resize(t *testing.T) {
	f := newFixture(t, DefaultConfig(), sim.Options{})
	ctx := context.Background()
	g := f.game

	assert.Equal(t, DefaultWidth, g.Width())
	require.NoError(t, g.Initialize(ctx))
	assert.InDelta(t, float32(16)/9, g.AspectRatio(), 1e-6)

	require.NoError(t, g.Resize(ctx, DefaultWidth, DefaultHeight))
	assert.Equal(t, 0, f.events.count(EventResize))

	require.NoError(t, g.Resize(ctx, 800, 600))
	assert.Equal(t, 800, g.Width())
	assert.Equal(t, 600, g.Height())
	assert.Equal(t, 1, f.events.count(EventResize))
}

func TestGame_SaveLoadUnload(t *testing.T) {
	f := newFixture(t, DefaultConfig(), sim.Options{})
	g := f.game

	require.Error(t, g.SaveScene("level.scene", serializer.FormatBinary))

	root := scene.NewSceneObject("level")
	root.AddChild(scene.NewSceneObject("crate"))
	g.SetScene(root)
	require.NoError(t, g.SaveScene("level.scene", serializer.FormatBinary))

	loaded, err := g.LoadSceneSync("level.scene")
	require.NoError(t, err)
	assert.Equal(t, root.ID, loaded.ID)
	require.NotNil(t, loaded.FindChild("crate"))

	g.SetScene(loaded)
	g.UnloadScene("level.scene")
	assert.Nil(t, g.Scene())
	_, ok, _ := g.LoadedScene("level.scene")
	assert.False(t, ok)
}

func TestGame_LoadSceneNotAScene(t *testing.T) {
	f := newFixture(t, DefaultConfig(), sim.Options{})
	require.NoError(t, SaveConfig(f.fsys, "game.config", serializer.FormatJSON, DefaultConfig(), f.act))

	_, err := f.game.LoadSceneSync("game.config")
	assert.ErrorIs(t, err, ErrNotScene)
}

func TestGame_Camera(t *testing.T) {
	f := newFixture(t, DefaultConfig(), sim.Options{})
	g := f.game
	assert.Nil(t, g.Camera())

	root := scene.NewSceneObject("root")
	eye := scene.NewSceneObject("eye")
	sceneCamera := scene.NewCamera()
	eye.AddComponent(sceneCamera)
	root.AddChild(eye)
	g.SetScene(root)
	assert.Same(t, sceneCamera, g.Camera())

	override := scene.NewCamera()
	g.SetCamera(override)
	assert.Same(t, override, g.Camera())
	g.SetCamera(nil)
	assert.Same(t, sceneCamera, g.Camera())
}

func TestGame_Exit(t *testing.T) {
	f := newFixture(t, DefaultConfig(), sim.Options{})
	ctx := context.Background()
	g := f.game
	require.NoError(t, g.Initialize(ctx))

	require.NoError(t, g.Exit(ctx))
	require.NoError(t, g.Exit(ctx))
	assert.True(t, g.IsExiting())
	assert.Equal(t, StateUninitialized, g.State())
	assert.ErrorIs(t, g.OnFrame(ctx), ErrExiting)
	assert.ErrorIs(t, g.LoadScene("a.scene"), ErrExiting)
	assert.ErrorIs(t, g.Initialize(ctx), ErrExiting)
}

func TestGame_PreloadScenes(t *testing.T) {
	f := newFixture(t, DefaultConfig(), sim.Options{})
	for _, name := range []string{"a", "b", "c"} {
		f.writeScene(t, name+".scene", scene.NewSceneObject(name))
	}
	ctx := context.Background()

	require.NoError(t, f.game.PreloadScenes(ctx, "a.scene", "b.scene", "c.scene"))
	for _, name := range []string{"a", "b", "c"} {
		s, ok, err := f.game.LoadedScene(name + ".scene")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, name, s.Name)
	}

	err := f.game.PreloadScenes(ctx, "a.scene", "missing.scene")
	assert.True(t, errors.Is(err, filesystem.ErrNotFound))
}
