package sim

import (
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/atomic"

	"github.com/gpengine/gameplay/internal/core/graphics/driver"
)

type backBuffer struct {
	width  int
	height int
	refs   atomic.Int32
}

// bufferRef is one reference to a back buffer, as handed out by Buffer.
type bufferRef struct {
	drv  *Driver
	buf  *backBuffer
	once sync.Once
}

func (r *bufferRef) Release() {
	r.once.Do(func() {
		r.buf.refs.Dec()
		r.drv.stats.RenderTargetsReleased.Inc()
	})
}

type swapchain struct {
	drv      *Driver
	desc     driver.SwapchainDesc
	buffers  []*backBuffer
	index    int
	presents uint64
}

func (s *swapchain) allocate() {
	s.buffers = make([]*backBuffer, s.desc.BufferCount)
	for i := range s.buffers {
		s.buffers[i] = &backBuffer{width: s.desc.Width, height: s.desc.Height}
	}
	s.index = 0
}

func (s *swapchain) Buffer(i int) (driver.Resource, error) {
	if i < 0 || i >= len(s.buffers) {
		return nil, errors.Wrapf(driver.ErrInvalidCall, "back buffer %d of %d", i, len(s.buffers))
	}
	b := s.buffers[i]
	b.refs.Inc()
	return &bufferRef{drv: s.drv, buf: b}, nil
}

func (s *swapchain) ResizeBuffers(count, width, height int) error {
	for i, b := range s.buffers {
		if n := b.refs.Load(); n > 0 {
			return errors.Wrapf(driver.ErrSwapchain, "back buffer %d still has %d references", i, n)
		}
	}
	if err := s.drv.fail("swapchain buffers"); err != nil {
		return err
	}
	if count == 0 {
		count = s.desc.BufferCount
	}
	s.desc.BufferCount, s.desc.Width, s.desc.Height = count, width, height
	s.allocate()
	s.drv.stats.SwapchainResizes.Inc()
	return nil
}

func (s *swapchain) CurrentBackBufferIndex() int { return s.index }

func (s *swapchain) Present(int) error {
	s.presents++
	if hook := s.drv.opts.FailPresent; hook != nil {
		if err := hook(s.presents); err != nil {
			return errors.Wrap(err, "present")
		}
	}
	s.index = (s.index + 1) % len(s.buffers)
	s.drv.stats.Presents.Inc()
	return nil
}

func (s *swapchain) SetFullscreen(fullscreen bool) error {
	s.desc.Fullscreen = fullscreen
	return nil
}

func (s *swapchain) Release() {}
