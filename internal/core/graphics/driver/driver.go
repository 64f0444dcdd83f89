// Package driver defines the GPU backend contract consumed by the
// graphics device, modeled on explicit APIs (a factory enumerating
// adapters, a device creating queues, allocators, command lists and
// fences, and a swapchain presenting back buffers).
//
// Backends register themselves by name from an init function.
package driver

import (
	"context"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// Driver loads a backend.
type Driver interface {
	// Name returns the registry name of the driver. It must not open it.
	Name() string

	// Open creates a Factory. When validation is true the backend enables
	// its debug layer, if it has one.
	Open(validation bool) (Factory, error)
}

var (
	ErrNotInstalled  = errors.New("driver: missing required library")
	ErrUnknownDriver = errors.New("driver: unknown driver")
	ErrNoDevice      = errors.New("driver: no suitable device found")
	ErrDeviceLost    = errors.New("driver: device lost")
	ErrSwapchain     = errors.New("driver: swapchain-related error")
	ErrInUse         = errors.New("driver: resource in use by the GPU")
	ErrInvalidCall   = errors.New("driver: invalid call")
)

// Reserved names for native backends. Neither is built into this module.
const (
	NameDirect3D12 = "direct3d12"
	NameVulkan     = "vulkan"
)

var (
	mu      sync.Mutex
	drivers = make(map[string]Driver)
)

// Register makes drv available by name, replacing a driver already
// registered under the same name.
func Register(drv Driver) {
	mu.Lock()
	defer mu.Unlock()
	drivers[drv.Name()] = drv
}

// Lookup returns the driver registered as name.
func Lookup(name string) (Driver, error) {
	mu.Lock()
	drv, ok := drivers[name]
	mu.Unlock()
	if !ok {
		return nil, errors.Wrapf(ErrUnknownDriver, "%q (registered: %v)", name, Drivers())
	}
	return drv, nil
}

// Drivers returns the sorted names of registered drivers.
func Drivers() []string {
	mu.Lock()
	names := lo.Keys(drivers)
	mu.Unlock()
	sort.Strings(names)
	return names
}

// FeatureLevel is the minimum capability set a device must expose.
type FeatureLevel uint32

const (
	FeatureLevel11_0 FeatureLevel = 0xb000
	FeatureLevel12_0 FeatureLevel = 0xc000
)

// Surface is the native window handle a swapchain presents to.
type Surface uintptr

type AdapterDesc struct {
	Name        string
	Software    bool
	VideoMemory uint64
}

type DisplayMode struct {
	Width       int
	Height      int
	RefreshRate int
}

type SwapchainDesc struct {
	Width       int
	Height      int
	BufferCount int
	SampleCount int
	Fullscreen  bool
}

// Factory enumerates adapters and creates devices and swapchains.
type Factory interface {
	EnumAdapters() ([]Adapter, error)
	CreateDevice(adapter Adapter, level FeatureLevel) (Device, error)
	CreateSwapchain(queue CommandQueue, surface Surface, desc SwapchainDesc) (Swapchain, error)
	Release()
}

type Adapter interface {
	Desc() AdapterDesc
	SupportsFeatureLevel(level FeatureLevel) bool
	// Outputs returns the monitors attached to the adapter.
	Outputs() []Output
}

type Output interface {
	Name() string
	DisplayModes() ([]DisplayMode, error)
}

// Device creates GPU objects. Objects must be released before the device.
type Device interface {
	CreateCommandQueue() (CommandQueue, error)
	CreateCommandAllocator() (CommandAllocator, error)
	// CreateCommandList returns a list in the recording state.
	CreateCommandList(alloc CommandAllocator) (CommandList, error)
	CreateFence(initial uint64) (Fence, error)
	CreateRenderTargetView(target Resource) (RenderTargetView, error)
	Release()
}

// CommandQueue executes submissions in order.
type CommandQueue interface {
	Execute(lists ...CommandList) error
	// Signal sets fence to value once all prior submissions have completed.
	Signal(fence Fence, value uint64) error
	Release()
}

// CommandAllocator backs the memory of recorded commands. Reset fails
// with ErrInUse while the GPU still executes commands recorded into it.
type CommandAllocator interface {
	Reset() error
	Release()
}

type ResourceState uint8

const (
	StatePresent ResourceState = iota
	StateRenderTarget
)

type CommandList interface {
	// Reset reopens a closed list for recording into alloc.
	Reset(alloc CommandAllocator) error
	ResourceBarrier(target Resource, before, after ResourceState)
	ClearRenderTarget(view RenderTargetView, color [4]float32)
	Close() error
	Release()
}

// Fence is a monotonically increasing counter written by the GPU.
type Fence interface {
	Completed() uint64
	// Wait blocks until the fence reaches value or ctx is done.
	Wait(ctx context.Context, value uint64) error
	Release()
}

type Resource interface {
	Release()
}

type RenderTargetView interface {
	Target() Resource
}

type Swapchain interface {
	// Buffer returns a reference to back buffer i. It must be released
	// before ResizeBuffers.
	Buffer(i int) (Resource, error)
	// ResizeBuffers resizes every back buffer. A zero count keeps the
	// current count. The back-buffer index may change.
	ResizeBuffers(count, width, height int) error
	CurrentBackBufferIndex() int
	Present(syncInterval int) error
	SetFullscreen(fullscreen bool) error
	Release()
}
