// Package graphics drives the frame lifecycle of a GPU device: setup,
// swapchain resize and fence-paced rendering into a ring of back buffers.
package graphics

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"go.uber.org/atomic"

	"github.com/gpengine/gameplay/internal/core/graphics/driver"
	"github.com/gpengine/gameplay/internal/core/observability/log"
	"github.com/gpengine/gameplay/internal/core/observability/metrics"
)

var (
	// ErrDeviceSetup marks every Initialize failure. There is no usable
	// device state to recover to, so callers treat it as fatal.
	ErrDeviceSetup = errors.New("graphics: device setup failed")
	// ErrFrameSkipped marks a Render that dropped its frame.
	ErrFrameSkipped = errors.New("graphics: frame skipped")
)

// frameSlot holds what back buffer i owns. fenceValue is the fence value
// signaled after the slot's last submission.
type frameSlot struct {
	target     driver.Resource
	view       driver.RenderTargetView
	allocator  driver.CommandAllocator
	fenceValue uint64
}

// FrameStats counts frames since the device was created.
type FrameStats struct {
	Rendered uint64
	Skipped  uint64
}

// Device is not safe for concurrent use beyond what its mutex serializes:
// Initialize, Resize, Render and Close are expected on one goroutine.
type Device struct {
	logger   log.Log
	drv      driver.Driver
	settings Settings

	mu        sync.Mutex
	factory   driver.Factory
	adapter   driver.Adapter
	device    driver.Device
	queue     driver.CommandQueue
	swapchain driver.Swapchain
	list      driver.CommandList
	fence     driver.Fence
	slots     []frameSlot
	index     int
	// fenceValue is the last value signaled on fence.
	fenceValue uint64
	mode       driver.DisplayMode
	width      int
	height     int

	initialized atomic.Bool
	prepared    atomic.Bool
	rendered    atomic.Uint64
	skipped     atomic.Uint64
}

func NewDevice(drv driver.Driver, settings Settings, logger log.Log) *Device {
	return &Device{
		logger:   logger.Named("graphics"),
		drv:      drv,
		settings: settings.withDefaults(),
	}
}

func (d *Device) IsInitialized() bool { return d.initialized.Load() }
func (d *Device) IsPrepared() bool    { return d.prepared.Load() }
func (d *Device) BackBuffers() int    { return d.settings.BackBuffers }

func (d *Device) Width() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.width
}

func (d *Device) Height() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.height
}

// DisplayMode returns the mode the device was created with. It differs from
// the configured size when the monitor has no exact match.
func (d *Device) DisplayMode() driver.DisplayMode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

func (d *Device) Stats() FrameStats {
	return FrameStats{Rendered: d.rendered.Load(), Skipped: d.skipped.Load()}
}

// Initialize creates every GPU object the device needs. It has no effect
// on an initialized device. Errors are marked ErrDeviceSetup.
func (d *Device) Initialize(ctx context.Context, surface driver.Surface) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.initialized.Load() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return errors.Mark(err, ErrDeviceSetup)
	}
	if err := d.setup(surface); err != nil {
		d.release()
		return errors.Mark(errors.Wrap(err, "graphics setup"), ErrDeviceSetup)
	}
	d.initialized.Store(true)
	d.prepared.Store(true)
	d.logger.Info("graphics device initialized",
		log.String("driver", d.drv.Name()),
		log.String("adapter", d.adapter.Desc().Name),
		log.Int("width", d.width),
		log.Int("height", d.height),
		log.Int("back_buffers", d.settings.BackBuffers),
		log.Bool("validation", Debug && d.settings.Validation),
	)
	return nil
}

func (d *Device) setup(surface driver.Surface) error {
	s := d.settings
	factory, err := d.drv.Open(Debug && s.Validation)
	if err != nil {
		return errors.Wrapf(err, "open driver %q", d.drv.Name())
	}
	d.factory = factory

	adapters, err := factory.EnumAdapters()
	if err != nil {
		return errors.Wrap(err, "enumerate adapters")
	}
	adapter, ok := lo.Find(adapters, func(a driver.Adapter) bool {
		return !a.Desc().Software && a.SupportsFeatureLevel(driver.FeatureLevel11_0)
	})
	if !ok {
		return errors.Wrap(driver.ErrNoDevice, "no hardware adapter supports feature level 11_0")
	}
	d.adapter = adapter

	if d.device, err = factory.CreateDevice(adapter, driver.FeatureLevel11_0); err != nil {
		return errors.Wrap(err, "create device")
	}
	if d.queue, err = d.device.CreateCommandQueue(); err != nil {
		return errors.Wrap(err, "create command queue")
	}

	if d.mode, err = selectDisplayMode(adapter, s.Width, s.Height); err != nil {
		return err
	}
	if d.mode.Width != s.Width || d.mode.Height != s.Height {
		d.logger.Warn("configured resolution not supported by the display, using the first display mode",
			log.Int("width", s.Width),
			log.Int("height", s.Height),
			log.Int("mode_width", d.mode.Width),
			log.Int("mode_height", d.mode.Height),
		)
	}
	d.width, d.height = d.mode.Width, d.mode.Height

	d.swapchain, err = factory.CreateSwapchain(d.queue, surface, driver.SwapchainDesc{
		Width:       d.width,
		Height:      d.height,
		BufferCount: s.BackBuffers,
		SampleCount: 1 + s.Multisampling,
		Fullscreen:  s.Fullscreen,
	})
	if err != nil {
		return errors.Wrap(err, "create swapchain")
	}
	d.index = d.swapchain.CurrentBackBufferIndex()

	d.slots = make([]frameSlot, s.BackBuffers)
	for i := range d.slots {
		if d.slots[i].allocator, err = d.device.CreateCommandAllocator(); err != nil {
			return errors.Wrapf(err, "create command allocator %d", i)
		}
	}
	if d.list, err = d.device.CreateCommandList(d.slots[d.index].allocator); err != nil {
		return errors.Wrap(err, "create command list")
	}
	if err = d.list.Close(); err != nil {
		return errors.Wrap(err, "close command list")
	}
	if err = d.createTargets(); err != nil {
		return err
	}
	if d.fence, err = d.device.CreateFence(0); err != nil {
		return errors.Wrap(err, "create fence")
	}
	return nil
}

// selectDisplayMode returns the mode of the adapter's first output that
// matches width x height, or the first mode when none does.
func selectDisplayMode(adapter driver.Adapter, width, height int) (driver.DisplayMode, error) {
	outputs := adapter.Outputs()
	if len(outputs) == 0 {
		return driver.DisplayMode{}, errors.Wrap(driver.ErrNoDevice, "adapter has no outputs")
	}
	modes, err := outputs[0].DisplayModes()
	if err != nil {
		return driver.DisplayMode{}, errors.Wrap(err, "display modes")
	}
	if len(modes) == 0 {
		return driver.DisplayMode{}, errors.Wrapf(driver.ErrNoDevice, "output %q has no display modes", outputs[0].Name())
	}
	mode, ok := lo.Find(modes, func(m driver.DisplayMode) bool {
		return m.Width == width && m.Height == height
	})
	if !ok {
		return modes[0], nil
	}
	return mode, nil
}

func (d *Device) createTargets() error {
	for i := range d.slots {
		target, err := d.swapchain.Buffer(i)
		if err != nil {
			d.releaseTargets()
			return errors.Wrapf(err, "back buffer %d", i)
		}
		view, err := d.device.CreateRenderTargetView(target)
		if err != nil {
			target.Release()
			d.releaseTargets()
			return errors.Wrapf(err, "render target view %d", i)
		}
		d.slots[i].target, d.slots[i].view = target, view
	}
	return nil
}

func (d *Device) releaseTargets() {
	for i := range d.slots {
		if d.slots[i].target != nil {
			d.slots[i].target.Release()
		}
		d.slots[i].target, d.slots[i].view = nil, nil
	}
}

// Resize recreates the back buffers at width x height. It has no effect
// before Initialize, after Close, or when the size is unchanged.
//
// An unprepared device does not ignore the call: after a failed resize
// the next Resize is taken as a retry, even at the same size.
func (d *Device) Resize(ctx context.Context, width, height int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.initialized.Load() || (d.prepared.Load() && width == d.width && height == d.height) {
		return nil
	}
	if err := d.resize(ctx, width, height); err != nil {
		metrics.Resizes.WithLabelValues("error").Inc()
		d.logger.Error("resize failed, frames are skipped until the next successful resize",
			log.Int("width", width),
			log.Int("height", height),
			log.Error(err),
		)
		return err
	}
	metrics.Resizes.WithLabelValues("ok").Inc()
	d.logger.Debug("resized", log.Int("width", width), log.Int("height", height))
	return nil
}

// resize drains, releases, resizes, recreates and re-enables, in that order.
func (d *Device) resize(ctx context.Context, width, height int) error {
	if err := d.waitForGPU(ctx); err != nil {
		return errors.Wrap(err, "drain before resize")
	}
	d.prepared.Store(false)

	d.releaseTargets()
	for i := range d.slots {
		d.slots[i].fenceValue = d.fenceValue
	}
	if err := d.swapchain.ResizeBuffers(len(d.slots), width, height); err != nil {
		return errors.Wrap(err, "resize swapchain")
	}
	d.index = d.swapchain.CurrentBackBufferIndex()
	if err := d.createTargets(); err != nil {
		return err
	}
	d.width, d.height = width, height
	d.prepared.Store(true)
	return nil
}

// Render records, submits and presents one frame into the current back
// buffer. An unprepared device renders nothing and returns nil. Dropped
// frames return an error marked ErrFrameSkipped; the next call is a
// normal attempt.
func (d *Device) Render(ctx context.Context, elapsed time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.prepared.Load() {
		d.skip(metrics.SkipUnprepared)
		return nil
	}
	slot := &d.slots[d.index]

	// The slot is reused only after the GPU has finished its last frame,
	// so the CPU never runs more than len(slots) frames ahead.
	wctx, cancel := context.WithTimeout(ctx, d.settings.FenceTimeout)
	err := d.wait(wctx, slot.fenceValue)
	cancel()
	if err != nil {
		return d.dropFrame(metrics.SkipFenceWait, err)
	}

	if err = d.record(slot); err != nil {
		return d.dropFrame(metrics.SkipBackend, err)
	}
	if err = d.queue.Execute(d.list); err != nil {
		return d.dropFrame(metrics.SkipBackend, errors.Wrap(err, "execute"))
	}
	presentErr := d.swapchain.Present(d.settings.syncInterval())

	// Signal even when present failed: the submission still owns the
	// slot's allocator until the GPU is done with it.
	d.fenceValue++
	if err = d.queue.Signal(d.fence, d.fenceValue); err != nil {
		return d.dropFrame(metrics.SkipBackend, errors.Wrap(err, "signal"))
	}
	slot.fenceValue = d.fenceValue
	if presentErr != nil {
		return d.dropFrame(metrics.SkipPresent, presentErr)
	}

	d.index = d.swapchain.CurrentBackBufferIndex()
	d.rendered.Inc()
	metrics.FramesRendered.Inc()
	if d.logger.GetLevel() <= log.LevelDebug {
		d.logger.Debug("frame", log.Uint64("fence", d.fenceValue), log.Duration("elapsed", elapsed))
	}
	return nil
}

func (d *Device) record(slot *frameSlot) error {
	if err := slot.allocator.Reset(); err != nil {
		return errors.Wrap(err, "reset command allocator")
	}
	if err := d.list.Reset(slot.allocator); err != nil {
		return errors.Wrap(err, "reset command list")
	}
	d.list.ResourceBarrier(slot.target, driver.StatePresent, driver.StateRenderTarget)
	d.list.ClearRenderTarget(slot.view, [4]float32(d.settings.ClearColor))
	d.list.ResourceBarrier(slot.target, driver.StateRenderTarget, driver.StatePresent)
	if err := d.list.Close(); err != nil {
		return errors.Wrap(err, "close command list")
	}
	return nil
}

func (d *Device) skip(reason string) {
	d.skipped.Inc()
	metrics.FramesSkipped.WithLabelValues(reason).Inc()
}

func (d *Device) dropFrame(reason string, err error) error {
	d.skip(reason)
	d.logger.Warn("frame skipped", log.String("reason", reason), log.Error(err))
	return errors.Mark(err, ErrFrameSkipped)
}

// wait blocks until the fence reaches value.
func (d *Device) wait(ctx context.Context, value uint64) error {
	if d.fence.Completed() >= value {
		return nil
	}
	start := time.Now()
	err := d.fence.Wait(ctx, value)
	metrics.FenceWaitLatency.Observe(float64(time.Since(start).Microseconds()) / 1000)
	return err
}

// waitForGPU drains the queue. It is used for resize and teardown only.
func (d *Device) waitForGPU(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, d.settings.FenceTimeout)
	defer cancel()
	d.fenceValue++
	if err := d.queue.Signal(d.fence, d.fenceValue); err != nil {
		return errors.Wrap(err, "signal")
	}
	return d.wait(ctx, d.fenceValue)
}

// Close drains the GPU and releases every object. It is safe to call more
// than once.
func (d *Device) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.initialized.Load() {
		return nil
	}
	d.prepared.Store(false)
	var err error
	if waitErr := d.waitForGPU(ctx); waitErr != nil {
		err = errors.Wrap(waitErr, "drain before close")
		d.logger.Warn("GPU did not drain before close", log.Error(waitErr))
	}
	if d.settings.Fullscreen {
		if fsErr := d.swapchain.SetFullscreen(false); fsErr != nil {
			d.logger.Warn("leaving fullscreen", log.Error(fsErr))
		}
	}
	d.release()
	d.initialized.Store(false)
	d.logger.Info("graphics device closed", log.Uint64("frames", d.rendered.Load()))
	return err
}

// release frees whatever setup created, in reverse order.
func (d *Device) release() {
	d.releaseTargets()
	if d.fence != nil {
		d.fence.Release()
	}
	if d.list != nil {
		d.list.Release()
	}
	for i := range d.slots {
		if d.slots[i].allocator != nil {
			d.slots[i].allocator.Release()
		}
	}
	if d.swapchain != nil {
		d.swapchain.Release()
	}
	if d.queue != nil {
		d.queue.Release()
	}
	if d.device != nil {
		d.device.Release()
	}
	if d.factory != nil {
		d.factory.Release()
	}
	d.fence, d.list, d.slots, d.swapchain = nil, nil, nil, nil
	d.queue, d.device, d.factory, d.adapter = nil, nil, nil, nil
	d.index, d.fenceValue = 0, 0
}
