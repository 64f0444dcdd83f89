package graphics

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	DefaultBackBuffers  = 3
	DefaultFenceTimeout = 5 * time.Second
)

// Debug enables backend validation layers for devices whose Settings
// request them. Release builds leave it false.
var Debug = false

// Settings is the configuration snapshot a Device reads once, at Initialize.
type Settings struct {
	Width         int
	Height        int
	Fullscreen    bool
	VSync         bool
	Multisampling int
	Validation    bool
	// BackBuffers is the number of frames the CPU may record ahead of the GPU.
	BackBuffers int
	// FenceTimeout bounds every CPU wait on the GPU.
	FenceTimeout time.Duration
	ClearColor   mgl32.Vec4
}

func (s Settings) withDefaults() Settings {
	if s.BackBuffers < 2 {
		s.BackBuffers = DefaultBackBuffers
	}
	if s.FenceTimeout <= 0 {
		s.FenceTimeout = DefaultFenceTimeout
	}
	if s.ClearColor == (mgl32.Vec4{}) {
		s.ClearColor = mgl32.Vec4{0, 0, 0, 1}
	}
	return s
}

func (s Settings) syncInterval() int {
	if s.VSync {
		return 1
	}
	return 0
}
