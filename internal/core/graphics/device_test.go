package graphics

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/gpengine/gameplay/internal/core/graphics/driver"
	"github.com/gpengine/gameplay/internal/core/graphics/driver/sim"
	"github.com/gpengine/gameplay/internal/core/observability/log"
)

const surface = driver.Surface(1)

func newDevice(t *testing.T, opts sim.Options, s Settings) (*Device, *sim.Driver) {
	t.Helper()
	drv := sim.New(opts)
	if s.Width == 0 {
		s.Width, s.Height = 1280, 720
	}
	d := NewDevice(drv, s, log.NewNop())
	t.Cleanup(func() { _ = d.Close(context.Background()) })
	return d, drv
}

func TestDevice_Initialize(t *testing.T) {
	d, drv := newDevice(t, sim.Options{}, Settings{})
	ctx := context.Background()

	require.NoError(t, d.Initialize(ctx, surface))
	assert.True(t, d.IsInitialized())
	assert.True(t, d.IsPrepared())
	assert.Equal(t, 1280, d.Width())
	assert.Equal(t, 720, d.Height())
	assert.Equal(t, DefaultBackBuffers, d.BackBuffers())
	assert.Equal(t, int64(DefaultBackBuffers), drv.Stats().RenderTargetsCreated.Load())

	require.NoError(t, d.Initialize(ctx, surface))
	assert.Equal(t, int64(DefaultBackBuffers), drv.Stats().RenderTargetsCreated.Load())

	require.NoError(t, d.Close(ctx))
	require.NoError(t, d.Close(ctx))
	assert.False(t, d.IsInitialized())
	assert.False(t, d.IsPrepared())
	assert.Equal(t, int64(DefaultBackBuffers), drv.Stats().RenderTargetsReleased.Load())
}

func TestDevice_DisplayModeFallback(t *testing.T) {
	modes := []driver.DisplayMode{{Width: 1920, Height: 1080}, {Width: 1280, Height: 720}}

	d, _ := newDevice(t, sim.Options{DisplayModes: modes}, Settings{Width: 1000, Height: 700})
	require.NoError(t, d.Initialize(context.Background(), surface))
	assert.Equal(t, modes[0], d.DisplayMode())
	assert.Equal(t, 1920, d.Width())
	assert.Equal(t, 1080, d.Height())

	d, _ = newDevice(t, sim.Options{DisplayModes: modes}, Settings{Width: 1280, Height: 720})
	require.NoError(t, d.Initialize(context.Background(), surface))
	assert.Equal(t, modes[1], d.DisplayMode())
}

func TestDevice_SetupFailure(t *testing.T) {
	tests := []struct {
		name    string
		opts    sim.Options
		surface driver.Surface
		want    error
	}{
		{
			name:    "software only",
			opts:    sim.Options{Adapters: []driver.AdapterDesc{{Name: "warp", Software: true}}},
			surface: surface,
			want:    driver.ErrNoDevice,
		},
		{
			name:    "nil surface",
			surface: 0,
			want:    driver.ErrInvalidCall,
		},
		{
			name: "fence creation",
			opts: sim.Options{FailCreate: func(object string) error {
				if object == "fence" {
					return driver.ErrDeviceLost
				}
				return nil
			}},
			surface: surface,
			want:    driver.ErrDeviceLost,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := newDevice(t, tt.opts, Settings{})
			err := d.Initialize(context.Background(), tt.surface)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDeviceSetup))
			assert.True(t, errors.Is(err, tt.want), "%v", err)
			assert.False(t, d.IsInitialized())
			assert.False(t, d.IsPrepared())
		})
	}
}

func TestDevice_RenderUnprepared(t *testing.T) {
	d, drv := newDevice(t, sim.Options{}, Settings{})

	require.NoError(t, d.Render(context.Background(), time.Millisecond))
	assert.Equal(t, FrameStats{Skipped: 1}, d.Stats())
	assert.Zero(t, drv.Stats().Submissions.Load())
	assert.Zero(t, drv.Stats().Presents.Load())
}

func TestDevice_FramePacing(t *testing.T) {
	const k = 3
	latency := 100 * time.Millisecond
	d, drv := newDevice(t, sim.Options{GPULatency: latency}, Settings{BackBuffers: k})
	ctx := context.Background()
	require.NoError(t, d.Initialize(ctx, surface))

	for i := 0; i < k; i++ {
		require.NoError(t, d.Render(ctx, time.Millisecond))
	}
	assert.Zero(t, drv.Stats().FenceWaits.Load(), "the first K frames must not block")

	// The queue runs frames back to back, so frame 1 completes after one
	// latency and frame 2 after two.
	start := time.Now()
	require.NoError(t, d.Render(ctx, time.Millisecond))
	blocked := time.Since(start)
	completed := d.fence.Completed()
	assert.Equal(t, int64(1), drv.Stats().FenceWaits.Load())
	assert.GreaterOrEqual(t, blocked, latency/2, "frame K+1 waits for frame 1")
	assert.Less(t, blocked, 2*latency, "frame K+1 does not wait for frame 2")
	assert.Equal(t, uint64(1), completed)

	assert.Equal(t, FrameStats{Rendered: k + 1}, d.Stats())
	assert.Equal(t, int64(k+1), drv.Stats().Presents.Load())
}

func TestDevice_FenceTimeoutSkipsFrame(t *testing.T) {
	d, _ := newDevice(t, sim.Options{GPULatency: 200 * time.Millisecond}, Settings{BackBuffers: 2, FenceTimeout: 10 * time.Millisecond})
	ctx := context.Background()
	require.NoError(t, d.Initialize(ctx, surface))

	require.NoError(t, d.Render(ctx, 0))
	require.NoError(t, d.Render(ctx, 0))
	err := d.Render(ctx, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFrameSkipped))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, FrameStats{Rendered: 2, Skipped: 1}, d.Stats())
	assert.True(t, d.IsPrepared())
}

func TestDevice_PresentFailureSkipsFrame(t *testing.T) {
	d, drv := newDevice(t, sim.Options{FailPresent: func(n uint64) error {
		if n == 2 {
			return driver.ErrDeviceLost
		}
		return nil
	}}, Settings{})
	ctx := context.Background()
	require.NoError(t, d.Initialize(ctx, surface))

	require.NoError(t, d.Render(ctx, 0))
	index := d.index

	err := d.Render(ctx, 0)
	assert.True(t, errors.Is(err, ErrFrameSkipped))
	assert.True(t, errors.Is(err, driver.ErrDeviceLost))
	assert.Equal(t, index, d.index)

	require.NoError(t, d.Render(ctx, 0))
	assert.Equal(t, FrameStats{Rendered: 2, Skipped: 1}, d.Stats())
	assert.Equal(t, int64(3), drv.Stats().Submissions.Load())
}

func TestDevice_Resize(t *testing.T) {
	d, drv := newDevice(t, sim.Options{GPULatency: 5 * time.Millisecond}, Settings{})
	ctx := context.Background()

	require.NoError(t, d.Resize(ctx, 640, 480))
	assert.Zero(t, drv.Stats().SwapchainResizes.Load(), "resize before initialize is a no-op")

	require.NoError(t, d.Initialize(ctx, surface))
	require.NoError(t, d.Render(ctx, 0))
	created := drv.Stats().RenderTargetsCreated.Load()

	require.NoError(t, d.Resize(ctx, 1280, 720))
	assert.Equal(t, created, drv.Stats().RenderTargetsCreated.Load())
	assert.Zero(t, drv.Stats().SwapchainResizes.Load())

	require.NoError(t, d.Resize(ctx, 640, 480))
	assert.Equal(t, created+int64(d.BackBuffers()), drv.Stats().RenderTargetsCreated.Load())
	assert.Equal(t, int64(1), drv.Stats().SwapchainResizes.Load())
	assert.True(t, d.IsPrepared())
	assert.Equal(t, 640, d.Width())
	assert.Equal(t, 480, d.Height())

	require.NoError(t, d.Render(ctx, 0))
	assert.Equal(t, uint64(2), d.Stats().Rendered)
}

func TestDevice_ResizeFailureThenRetry(t *testing.T) {
	failViews := atomic.NewBool(false)
	d, _ := newDevice(t, sim.Options{FailCreate: func(object string) error {
		if object == "render target view" && failViews.Load() {
			return driver.ErrDeviceLost
		}
		return nil
	}}, Settings{})
	ctx := context.Background()
	require.NoError(t, d.Initialize(ctx, surface))

	failViews.Store(true)
	err := d.Resize(ctx, 800, 600)
	require.Error(t, err)
	assert.True(t, errors.Is(err, driver.ErrDeviceLost))
	assert.False(t, d.IsPrepared())
	assert.Equal(t, 1280, d.Width())

	require.NoError(t, d.Render(ctx, 0))
	assert.Equal(t, FrameStats{Skipped: 1}, d.Stats())

	failViews.Store(false)
	require.NoError(t, d.Resize(ctx, 800, 600))
	assert.True(t, d.IsPrepared())
	assert.Equal(t, 800, d.Width())
	require.NoError(t, d.Render(ctx, 0))
}

func TestDevice_ResizeRetrySameSize(t *testing.T) {
	failViews := atomic.NewBool(false)
	d, _ := newDevice(t, sim.Options{FailCreate: func(object string) error {
		if object == "render target view" && failViews.Load() {
			return driver.ErrDeviceLost
		}
		return nil
	}}, Settings{})
	ctx := context.Background()
	require.NoError(t, d.Initialize(ctx, surface))

	failViews.Store(true)
	require.Error(t, d.Resize(ctx, 800, 600))
	require.False(t, d.IsPrepared())

	// the stored size is still 1280x720, yet the call is not ignored
	failViews.Store(false)
	require.NoError(t, d.Resize(ctx, 1280, 720))
	assert.True(t, d.IsPrepared())
	require.NoError(t, d.Render(ctx, 0))
	assert.Equal(t, uint64(1), d.Stats().Rendered)
}
