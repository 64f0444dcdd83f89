package sim

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/atomic"

	"github.com/gpengine/gameplay/internal/core/graphics/driver"
)

type device struct {
	drv *Driver

	mu     sync.Mutex
	queues []*queue
}

func (d *device) CreateCommandQueue() (driver.CommandQueue, error) {
	if err := d.drv.fail("command queue"); err != nil {
		return nil, err
	}
	q := newQueue(d.drv)
	d.mu.Lock()
	d.queues = append(d.queues, q)
	d.mu.Unlock()
	return q, nil
}

func (d *device) CreateCommandAllocator() (driver.CommandAllocator, error) {
	if err := d.drv.fail("command allocator"); err != nil {
		return nil, err
	}
	return &allocator{}, nil
}

func (d *device) CreateCommandList(alloc driver.CommandAllocator) (driver.CommandList, error) {
	a, ok := alloc.(*allocator)
	if !ok {
		return nil, errors.Wrap(driver.ErrInvalidCall, "foreign command allocator")
	}
	if err := d.drv.fail("command list"); err != nil {
		return nil, err
	}
	return &commandList{alloc: a, recording: true}, nil
}

func (d *device) CreateFence(initial uint64) (driver.Fence, error) {
	if err := d.drv.fail("fence"); err != nil {
		return nil, err
	}
	f := &fence{drv: d.drv, notify: make(chan struct{})}
	f.completed.Store(initial)
	return f, nil
}

func (d *device) CreateRenderTargetView(target driver.Resource) (driver.RenderTargetView, error) {
	if _, ok := target.(*bufferRef); !ok {
		return nil, errors.Wrap(driver.ErrInvalidCall, "render target is not a back buffer")
	}
	if err := d.drv.fail("render target view"); err != nil {
		return nil, err
	}
	d.drv.stats.RenderTargetsCreated.Inc()
	return &view{target: target}, nil
}

func (d *device) Release() {
	d.mu.Lock()
	queues := d.queues
	d.queues = nil
	d.mu.Unlock()
	for _, q := range queues {
		q.Release()
	}
}

// submission tracks one Execute call on the GPU timeline.
type submission struct {
	done atomic.Bool
}

// queue runs jobs in submission order on its own goroutine.
type queue struct {
	drv  *Driver
	jobs chan func()
	wg   sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func newQueue(drv *Driver) *queue {
	q := &queue{drv: drv, jobs: make(chan func(), 256)}
	q.wg.Add(1)
	go q.run()
	return q
}

func (q *queue) run() {
	defer q.wg.Done()
	for job := range q.jobs {
		job()
	}
}

func (q *queue) submit(job func()) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return errors.Wrap(driver.ErrInvalidCall, "queue released")
	}
	q.jobs <- job
	return nil
}

func (q *queue) Execute(lists ...driver.CommandList) error {
	sub := &submission{}
	for _, l := range lists {
		cl, ok := l.(*commandList)
		if !ok {
			return errors.Wrap(driver.ErrInvalidCall, "foreign command list")
		}
		if cl.recording {
			return errors.Wrap(driver.ErrInvalidCall, "command list executed while open")
		}
		cl.alloc.inFlight.Store(sub)
	}
	latency := q.drv.opts.GPULatency
	q.drv.stats.Submissions.Inc()
	return q.submit(func() {
		if latency > 0 {
			time.Sleep(latency)
		}
		sub.done.Store(true)
	})
}

func (q *queue) Signal(f driver.Fence, value uint64) error {
	sf, ok := f.(*fence)
	if !ok {
		return errors.Wrap(driver.ErrInvalidCall, "foreign fence")
	}
	return q.submit(func() { sf.complete(value) })
}

// Release stops accepting work. Pending jobs still run.
func (q *queue) Release() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

type allocator struct {
	inFlight atomic.Pointer[submission]
}

func (a *allocator) Reset() error {
	if s := a.inFlight.Load(); s != nil && !s.done.Load() {
		return errors.Wrap(driver.ErrInUse, "command allocator reset")
	}
	return nil
}

func (a *allocator) Release() {}

type commandList struct {
	alloc     *allocator
	recording bool
	commands  int
	err       error
}

func (l *commandList) Reset(alloc driver.CommandAllocator) error {
	a, ok := alloc.(*allocator)
	if !ok {
		return errors.Wrap(driver.ErrInvalidCall, "foreign command allocator")
	}
	if l.recording {
		return errors.Wrap(driver.ErrInvalidCall, "command list reset while open")
	}
	l.alloc, l.recording, l.commands, l.err = a, true, 0, nil
	return nil
}

func (l *commandList) record() {
	if !l.recording && l.err == nil {
		l.err = errors.Wrap(driver.ErrInvalidCall, "command recorded into a closed list")
	}
	l.commands++
}

func (l *commandList) ResourceBarrier(driver.Resource, driver.ResourceState, driver.ResourceState) {
	l.record()
}

func (l *commandList) ClearRenderTarget(driver.RenderTargetView, [4]float32) {
	l.record()
}

func (l *commandList) Close() error {
	if !l.recording {
		return errors.Wrap(driver.ErrInvalidCall, "command list closed twice")
	}
	l.recording = false
	return l.err
}

func (l *commandList) Release() {}

type fence struct {
	drv       *Driver
	completed atomic.Uint64

	mu     sync.Mutex
	notify chan struct{}
}

func (f *fence) Completed() uint64 { return f.completed.Load() }

func (f *fence) complete(value uint64) {
	f.mu.Lock()
	f.completed.Store(value)
	close(f.notify)
	f.notify = make(chan struct{})
	f.mu.Unlock()
}

func (f *fence) Wait(ctx context.Context, value uint64) error {
	counted := false
	for {
		f.mu.Lock()
		if f.completed.Load() >= value {
			f.mu.Unlock()
			return nil
		}
		ch := f.notify
		f.mu.Unlock()

		if !counted {
			f.drv.stats.FenceWaits.Inc()
			counted = true
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "fence wait for %d (completed %d)", value, f.Completed())
		}
	}
}

func (f *fence) Release() {}

type view struct {
	target driver.Resource
}

func (v *view) Target() driver.Resource { return v.target }
