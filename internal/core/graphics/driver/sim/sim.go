// Package sim is a software-simulated GPU backend. Submissions run on a
// goroutine with a configurable latency so that CPU/GPU overlap, fence
// pacing and resize ordering can be exercised without a real device.
package sim

import (
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/atomic"

	"github.com/gpengine/gameplay/internal/core/graphics/driver"
)

const Name = "sim"

func init() {
	driver.Register(New(Options{}))
}

// Options configures the simulated hardware.
type Options struct {
	// Adapters defaults to a software adapter followed by a hardware one.
	Adapters []driver.AdapterDesc
	// FeatureLevel is the highest level hardware adapters support.
	// Software adapters only support 11_0.
	FeatureLevel driver.FeatureLevel
	// DisplayModes of the single output of every hardware adapter.
	DisplayModes []driver.DisplayMode
	// GPULatency is how long each Execute takes on the GPU timeline.
	GPULatency time.Duration

	// FailPresent, when set, is called with the 1-based present count of
	// a swapchain and may fail that present.
	FailPresent func(present uint64) error
	// FailCreate, when set, is called with the kind of object about to be
	// created ("factory", "device", "swapchain", ...) and may fail it.
	FailCreate func(object string) error
}

// Stats counts what the backend observed.
type Stats struct {
	RenderTargetsCreated  atomic.Int64
	RenderTargetsReleased atomic.Int64
	Submissions           atomic.Int64
	Presents              atomic.Int64
	FenceWaits            atomic.Int64
	SwapchainResizes      atomic.Int64
}

type Driver struct {
	opts  Options
	stats Stats
}

var _ driver.Driver = (*Driver)(nil)

func New(opts Options) *Driver {
	if len(opts.Adapters) == 0 {
		opts.Adapters = []driver.AdapterDesc{
			{Name: "Simulated Basic Render Driver", Software: true},
			{Name: "Simulated GPU", VideoMemory: 4 << 30},
		}
	}
	if opts.FeatureLevel == 0 {
		opts.FeatureLevel = driver.FeatureLevel12_0
	}
	if len(opts.DisplayModes) == 0 {
		opts.DisplayModes = []driver.DisplayMode{
			{Width: 1920, Height: 1080, RefreshRate: 60},
			{Width: 1280, Height: 720, RefreshRate: 60},
			{Width: 800, Height: 600, RefreshRate: 60},
		}
	}
	return &Driver{opts: opts}
}

func (d *Driver) Name() string  { return Name }
func (d *Driver) Stats() *Stats { return &d.stats }

func (d *Driver) Open(validation bool) (driver.Factory, error) {
	if err := d.fail("factory"); err != nil {
		return nil, err
	}
	return &factory{drv: d, validation: validation}, nil
}

func (d *Driver) fail(object string) error {
	if d.opts.FailCreate == nil {
		return nil
	}
	if err := d.opts.FailCreate(object); err != nil {
		return errors.Wrapf(err, "create %s", object)
	}
	return nil
}

type factory struct {
	drv        *Driver
	validation bool
}

func (f *factory) EnumAdapters() ([]driver.Adapter, error) {
	adapters := make([]driver.Adapter, 0, len(f.drv.opts.Adapters))
	for _, desc := range f.drv.opts.Adapters {
		a := &adapter{desc: desc, level: driver.FeatureLevel11_0}
		if !desc.Software {
			a.level = f.drv.opts.FeatureLevel
			a.outputs = []driver.Output{&output{name: desc.Name + " display", modes: f.drv.opts.DisplayModes}}
		}
		adapters = append(adapters, a)
	}
	return adapters, nil
}

func (f *factory) CreateDevice(a driver.Adapter, level driver.FeatureLevel) (driver.Device, error) {
	if a == nil || !a.SupportsFeatureLevel(level) {
		return nil, errors.Wrapf(driver.ErrNoDevice, "feature level %#x", uint32(level))
	}
	if err := f.drv.fail("device"); err != nil {
		return nil, err
	}
	return &device{drv: f.drv}, nil
}

func (f *factory) CreateSwapchain(q driver.CommandQueue, surface driver.Surface, desc driver.SwapchainDesc) (driver.Swapchain, error) {
	if _, ok := q.(*queue); !ok {
		return nil, errors.Wrap(driver.ErrInvalidCall, "foreign command queue")
	}
	if surface == 0 {
		return nil, errors.Wrap(driver.ErrInvalidCall, "nil surface")
	}
	if desc.BufferCount < 2 {
		return nil, errors.Wrapf(driver.ErrInvalidCall, "%d back buffers", desc.BufferCount)
	}
	if err := f.drv.fail("swapchain"); err != nil {
		return nil, err
	}
	sc := &swapchain{drv: f.drv, desc: desc}
	sc.allocate()
	return sc, nil
}

func (f *factory) Release() {}

type adapter struct {
	desc    driver.AdapterDesc
	level   driver.FeatureLevel
	outputs []driver.Output
}

func (a *adapter) Desc() driver.AdapterDesc                        { return a.desc }
func (a *adapter) SupportsFeatureLevel(l driver.FeatureLevel) bool { return l <= a.level }
func (a *adapter) Outputs() []driver.Output                        { return a.outputs }

type output struct {
	name  string
	modes []driver.DisplayMode
}

func (o *output) Name() string { return o.name }

func (o *output) DisplayModes() ([]driver.DisplayMode, error) {
	return append([]driver.DisplayMode(nil), o.modes...), nil
}
