// Package game runs the engine lifecycle on top of a graphics device:
// splash screens, scene loading, pause bookkeeping and the per-frame
// render call.
package game

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/atomic"
	"golang.org/x/sync/singleflight"

	"github.com/gpengine/gameplay/internal/core/events/bus"
	"github.com/gpengine/gameplay/internal/core/filesystem"
	"github.com/gpengine/gameplay/internal/core/graphics"
	"github.com/gpengine/gameplay/internal/core/graphics/driver"
	"github.com/gpengine/gameplay/internal/core/observability/log"
	"github.com/gpengine/gameplay/internal/core/observability/metrics"
	"github.com/gpengine/gameplay/internal/core/scene"
	"github.com/gpengine/gameplay/internal/core/serializer"
	"github.com/gpengine/gameplay/internal/core/texture"
	"github.com/gpengine/gameplay/pkg/sequence"
)

type State int32

const (
	StateUninitialized State = iota
	StateSplash
	StateLoading
	StateRunning
	StatePaused
)

var stateNames = map[State]string{
	StateUninitialized: "uninitialized",
	StateSplash:        "splash",
	StateLoading:       "loading",
	StateRunning:       "running",
	StatePaused:        "paused",
}

func (s State) String() string { return stateNames[s] }

// Events published on the bus.
const (
	EventState           = "game.state"
	EventResize          = "game.resize"
	EventSceneLoaded     = "scene.loaded"
	EventSceneLoadFailed = "scene.load_failed"

	eventSource = "game"
)

const defaultLoaderWorkers = 4

var (
	ErrNotInitialized = errors.New("game: not initialized")
	ErrExiting        = errors.New("game: exiting")
	ErrNotScene       = errors.New("game: root object is not a scene")
)

// StateChange is the data of an EventState event.
type StateChange struct {
	From State
	To   State
}

// ResizeEvent is the data of an EventResize event.
type ResizeEvent struct {
	Width  int
	Height int
}

// SceneLoadEvent is the data of EventSceneLoaded and EventSceneLoadFailed.
type SceneLoadEvent struct {
	URL     string
	Scene   *scene.SceneObject
	Err     error
	Elapsed time.Duration
}

type Option func(*Game)

// FrameFunc receives the time elapsed since the previous frame.
type FrameFunc func(elapsed time.Duration)

// WithUpdate sets a function called once per frame while the game is
// running. It is not called during splash, loading or pause.
func WithUpdate(fn FrameFunc) Option {
	return func(g *Game) { g.update = fn }
}

// WithRender sets a function called once per frame, in every state, just
// before the frame is handed to the graphics device.
func WithRender(fn FrameFunc) Option {
	return func(g *Game) { g.render = fn }
}

// WithClock replaces time.Now as the source of absolute time.
func WithClock(now func() time.Time) Option {
	return func(g *Game) { g.now = now }
}

// WithLoaderWorkers bounds the number of scenes read concurrently.
func WithLoaderWorkers(n int) Option {
	return func(g *Game) {
		if n > 0 {
			g.workers = n
		}
	}
}

type Game struct {
	logger  log.Log
	config  *Config
	fsys    *filesystem.FileSystem
	act     *serializer.Activator
	events  bus.EventBus
	device  *graphics.Device
	surface driver.Surface
	now     func() time.Time
	workers int
	update  FrameFunc
	render  FrameFunc

	pool  *ants.Pool
	loads singleflight.Group

	mu          sync.Mutex
	state       State
	resumeState State
	pauseCount  int
	splash      *sequence.Queue[*SplashScreen]
	splashShown *SplashScreen
	splashStart time.Duration
	scene       *scene.SceneObject
	camera      *scene.Camera
	scenes      map[string]*scene.SceneObject
	failed      map[string]error

	start       time.Time
	pausedAt    time.Duration
	pausedTotal time.Duration
	lastFrame   time.Duration
	frameMark   time.Duration
	frameCount  int
	frameRate   int

	exiting atomic.Bool
}

func New(
	cfg *Config,
	fsys *filesystem.FileSystem,
	act *serializer.Activator,
	events bus.EventBus,
	device *graphics.Device,
	surface driver.Surface,
	logger log.Log,
	opts ...Option,
) (*Game, error) {
	g := &Game{
		logger:  logger.Named("game"),
		config:  cfg,
		fsys:    fsys,
		act:     act,
		events:  events,
		device:  device,
		surface: surface,
		now:     time.Now,
		workers: defaultLoaderWorkers,
		splash:  sequence.NewQueue[*SplashScreen](),
		scenes:  make(map[string]*scene.SceneObject),
		failed:  make(map[string]error),
	}
	for _, opt := range opts {
		opt(g)
	}

	pool, err := ants.NewPool(g.workers, ants.WithPanicHandler(func(v any) {
		g.logger.Error("scene loader panicked", log.Any("panic", v))
	}))
	if err != nil {
		return nil, errors.Wrap(err, "create loader pool")
	}
	g.pool = pool
	g.start = g.now()
	return g, nil
}

// RegisterTypes registers every engine class and enum with act.
func RegisterTypes(act *serializer.Activator) {
	act.RegisterType(ClassConfig, func() serializer.Serializable { return DefaultConfig() })
	act.RegisterType(ClassSplashScreen, func() serializer.Serializable { return &SplashScreen{} })
	scene.RegisterTypes(act)
	texture.RegisterTypes(act)
}

func (g *Game) Config() *Config { return g.config }

func (g *Game) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Initialize brings up the graphics device and enters the first state:
// splash when splash screens are configured, otherwise loading. A device
// failure is returned marked graphics.ErrDeviceSetup.
func (g *Game) Initialize(ctx context.Context) error {
	if g.State() != StateUninitialized {
		return nil
	}
	if g.exiting.Load() {
		return ErrExiting
	}
	if err := g.device.Initialize(ctx, g.surface); err != nil {
		g.logger.Error("graphics initialization failed", log.Error(err))
		return err
	}

	now := g.AbsoluteTime()
	g.mu.Lock()
	g.lastFrame, g.frameMark = now, now
	for _, s := range g.config.SplashScreens {
		g.splash.Enqueue(s)
	}
	splash := !g.splash.IsEmpty()
	if splash {
		g.advanceSplash(g.gameTime(now))
	}
	g.mu.Unlock()

	g.logger.Info("initialized",
		log.String("title", g.config.Title),
		log.Int("width", g.Width()),
		log.Int("height", g.Height()),
		log.Int("splashScreens", len(g.config.SplashScreens)))

	if splash {
		g.setState(StateSplash)
	} else {
		g.setState(g.beginLoading())
	}
	return nil
}

// OnFrame advances the lifecycle by one frame, runs the update and render
// functions and renders it. Skipped frames are not errors.
func (g *Game) OnFrame(ctx context.Context) error {
	if g.exiting.Load() {
		return ErrExiting
	}
	now := g.AbsoluteTime()

	g.mu.Lock()
	if g.state == StateUninitialized {
		g.mu.Unlock()
		return ErrNotInitialized
	}
	elapsed := now - g.lastFrame
	g.lastFrame = now
	g.countFrame(now)

	var (
		splashDone bool
		loadDone   bool
		loaded     *scene.SceneObject
		loadErr    error
	)
	switch g.state {
	case StateSplash:
		splashDone = g.advanceSplash(g.gameTime(now))
	case StateLoading:
		loaded, loadDone, loadErr = g.result(g.config.MainScene)
	}
	g.mu.Unlock()

	switch {
	case splashDone:
		g.setState(g.beginLoading())
	case loadDone:
		if loadErr != nil {
			g.logger.Error("main scene unavailable", log.String("url", g.config.MainScene), log.Error(loadErr))
		} else {
			g.SetScene(loaded)
		}
		g.setState(StateRunning)
	}

	if g.update != nil && g.State() == StateRunning {
		g.update(elapsed)
	}
	if g.render != nil {
		g.render(elapsed)
	}
	err := g.device.Render(ctx, elapsed)
	if errors.Is(err, graphics.ErrFrameSkipped) {
		g.logger.Debug("frame skipped", log.Error(err))
		return nil
	}
	return err
}

// advanceSplash reports whether the splash queue is exhausted. gt is game
// time so a paused splash keeps its remaining duration.
func (g *Game) advanceSplash(gt time.Duration) bool {
	if g.splashShown != nil && gt-g.splashStart < g.splashShown.Duration {
		return false
	}
	next, ok := g.splash.Dequeue()
	if !ok {
		g.splashShown = nil
		return true
	}
	g.splashShown, g.splashStart = next, gt
	g.logger.Info("splash", log.String("url", next.URL), log.Duration("duration", next.Duration))
	return false
}

// beginLoading shows the loading scene, if any, and starts reading the
// main scene. It returns the state to enter.
func (g *Game) beginLoading() State {
	if url := g.config.LoadingScene; url != "" {
		s, err := g.LoadSceneSync(url)
		if err != nil {
			g.logger.Warn("loading scene unavailable", log.String("url", url), log.Error(err))
		} else {
			g.SetScene(s)
		}
	}
	if g.config.MainScene == "" {
		return StateRunning
	}
	if err := g.LoadScene(g.config.MainScene); err != nil {
		g.logger.Error("main scene load not started", log.String("url", g.config.MainScene), log.Error(err))
		return StateRunning
	}
	return StateLoading
}

func (g *Game) countFrame(now time.Duration) {
	g.frameCount++
	if now-g.frameMark >= time.Second {
		g.frameRate = g.frameCount
		g.frameCount = 0
		g.frameMark = now
		metrics.FrameRate.Set(float64(g.frameRate))
	}
}

// FrameRate returns the number of frames counted over the last full second.
func (g *Game) FrameRate() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.frameRate
}

// setState moves to the given state. While paused the target becomes the
// state Resume returns to.
func (g *Game) setState(to State) {
	g.mu.Lock()
	if g.state == StatePaused {
		g.resumeState = to
		g.mu.Unlock()
		return
	}
	from := g.state
	g.state = to
	g.mu.Unlock()
	if from != to {
		g.logger.Debug("state", log.String("from", from.String()), log.String("to", to.String()))
		g.publish(EventState, StateChange{From: from, To: to})
	}
}

func (g *Game) publish(typ string, data any) {
	if err := g.events.Publish(bus.NewEvent(typ, eventSource, data)); err != nil {
		g.logger.Warn("event handler failed", log.String("event", typ), log.Error(err))
	}
}

// Pause freezes game time. Calls nest: the game resumes after as many
// Resume calls.
func (g *Game) Pause() {
	now := g.AbsoluteTime()
	g.mu.Lock()
	if g.state == StateUninitialized {
		g.mu.Unlock()
		return
	}
	g.pauseCount++
	if g.pauseCount > 1 {
		g.mu.Unlock()
		return
	}
	from := g.state
	g.resumeState = from
	g.state = StatePaused
	g.pausedAt = now
	g.mu.Unlock()
	g.publish(EventState, StateChange{From: from, To: StatePaused})
}

func (g *Game) Resume() {
	now := g.AbsoluteTime()
	g.mu.Lock()
	if g.pauseCount == 0 {
		g.mu.Unlock()
		return
	}
	g.pauseCount--
	if g.pauseCount > 0 {
		g.mu.Unlock()
		return
	}
	g.pausedTotal += now - g.pausedAt
	g.state = g.resumeState
	to := g.state
	g.mu.Unlock()
	g.publish(EventState, StateChange{From: StatePaused, To: to})
}

// Exit stops accepting frames and loads, and releases the device. Only
// the first call has an effect.
func (g *Game) Exit(ctx context.Context) error {
	if !g.exiting.CompareAndSwap(false, true) {
		return nil
	}
	g.pool.Release()
	err := g.device.Close(ctx)

	g.mu.Lock()
	from := g.state
	g.state = StateUninitialized
	g.pauseCount = 0
	g.mu.Unlock()
	if from != StateUninitialized {
		g.publish(EventState, StateChange{From: from, To: StateUninitialized})
	}
	g.logger.Info("exit", log.Error(err))
	return err
}

func (g *Game) IsExiting() bool { return g.exiting.Load() }

// Resize resizes the swapchain and announces the new size.
func (g *Game) Resize(ctx context.Context, width, height int) error {
	if width == g.Width() && height == g.Height() && g.device.IsPrepared() {
		return nil
	}
	if err := g.device.Resize(ctx, width, height); err != nil {
		return err
	}
	g.publish(EventResize, ResizeEvent{Width: width, Height: height})
	return nil
}

func (g *Game) Width() int {
	if g.device.IsInitialized() {
		return g.device.Width()
	}
	return g.config.Width
}

func (g *Game) Height() int {
	if g.device.IsInitialized() {
		return g.device.Height()
	}
	return g.config.Height
}

func (g *Game) AspectRatio() float32 {
	h := g.Height()
	if h == 0 {
		return 0
	}
	return float32(g.Width()) / float32(h)
}

// AbsoluteTime is the time elapsed since the game was created.
func (g *Game) AbsoluteTime() time.Duration { return g.now().Sub(g.start) }

// GameTime is AbsoluteTime minus the time spent paused.
func (g *Game) GameTime() time.Duration {
	now := g.AbsoluteTime()
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gameTime(now)
}

func (g *Game) gameTime(now time.Duration) time.Duration {
	if g.state == StatePaused {
		return g.pausedAt - g.pausedTotal
	}
	return now - g.pausedTotal
}

func (g *Game) SetScene(s *scene.SceneObject) {
	g.mu.Lock()
	g.scene = s
	g.mu.Unlock()
}

func (g *Game) Scene() *scene.SceneObject {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.scene
}

// SetCamera overrides the scene camera. A nil camera restores the default.
func (g *Game) SetCamera(c *scene.Camera) {
	g.mu.Lock()
	g.camera = c
	g.mu.Unlock()
}

// Camera returns the camera set with SetCamera, or the first enabled
// camera of the current scene.
func (g *Game) Camera() *scene.Camera {
	g.mu.Lock()
	c, s := g.camera, g.scene
	g.mu.Unlock()
	if c != nil || s == nil {
		return c
	}
	return scene.FindCamera(s)
}
