package game

import (
	"bytes"
	"io"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/gpengine/gameplay/internal/core/filesystem"
	"github.com/gpengine/gameplay/internal/core/graphics"
	"github.com/gpengine/gameplay/internal/core/graphics/driver/sim"
	"github.com/gpengine/gameplay/internal/core/observability/log"
	"github.com/gpengine/gameplay/internal/core/serializer"
)

const (
	ClassConfig       = "gameplay::Game::Config"
	ClassSplashScreen = "gameplay::Game::SplashScreen"

	// ConfigFile is the settings file read at startup, relative to the
	// asset path.
	ConfigFile = "game.config"

	DefaultWidth  = 1280
	DefaultHeight = 720
)

var ErrConfigFormat = errors.New("game: unsupported config format")

// SplashScreen is shown for Duration before loading starts.
type SplashScreen struct {
	URL      string
	Duration time.Duration
}

func (s *SplashScreen) ClassName() string { return ClassSplashScreen }

func (s *SplashScreen) OnSerialize(w serializer.Writer) {
	w.WriteString("url", s.URL, "")
	w.WriteInt("duration", int(s.Duration/time.Millisecond), 0)
}

func (s *SplashScreen) OnDeserialize(r serializer.Reader) {
	s.URL = r.ReadString("url", "")
	s.Duration = time.Duration(r.ReadInt("duration", 0)) * time.Millisecond
}

// Config holds the game settings. Durations are stored in milliseconds.
type Config struct {
	Title                string
	Graphics             string
	Width                int
	Height               int
	Fullscreen           bool
	VSync                bool
	Multisampling        int
	Validation           bool
	BackBuffers          int
	FenceTimeout         time.Duration
	ClearColor           mgl32.Vec4
	TouchSupport         bool
	AccelerometerSupport bool
	AssetsPath           string
	SplashScreens        []*SplashScreen
	LoadingScene         string
	MainScene            string
	Log                  log.Config
}

func DefaultConfig() *Config {
	return &Config{
		Title:        "gameplay",
		Graphics:     sim.Name,
		Width:        DefaultWidth,
		Height:       DefaultHeight,
		VSync:        true,
		BackBuffers:  graphics.DefaultBackBuffers,
		FenceTimeout: graphics.DefaultFenceTimeout,
		ClearColor:   mgl32.Vec4{0, 0, 0, 1},
		Log:          log.Config{Level: "info", Encoding: "json"},
	}
}

func (c *Config) ClassName() string { return ClassConfig }

func (c *Config) OnSerialize(w serializer.Writer) {
	d := DefaultConfig()
	w.WriteString("title", c.Title, d.Title)
	w.WriteString("graphics", c.Graphics, d.Graphics)
	w.WriteInt("width", c.Width, d.Width)
	w.WriteInt("height", c.Height, d.Height)
	w.WriteBool("fullscreen", c.Fullscreen, d.Fullscreen)
	w.WriteBool("vsync", c.VSync, d.VSync)
	w.WriteInt("multisampling", c.Multisampling, d.Multisampling)
	w.WriteBool("validation", c.Validation, d.Validation)
	w.WriteInt("backBuffers", c.BackBuffers, d.BackBuffers)
	w.WriteInt("fenceTimeout", int(c.FenceTimeout/time.Millisecond), int(d.FenceTimeout/time.Millisecond))
	w.WriteColor4("clearColor", c.ClearColor, d.ClearColor)
	w.WriteBool("touchSupport", c.TouchSupport, d.TouchSupport)
	w.WriteBool("accelerometerSupport", c.AccelerometerSupport, d.AccelerometerSupport)
	w.WriteString("assetsPath", c.AssetsPath, d.AssetsPath)
	w.WriteObjectList("splashScreens", len(c.SplashScreens))
	for _, s := range c.SplashScreens {
		w.WriteObject("", s)
	}
	w.WriteString("loadingScene", c.LoadingScene, "")
	w.WriteString("mainScene", c.MainScene, "")
	w.WriteString("logLevel", c.Log.Level, d.Log.Level)
	w.WriteString("logEncoding", c.Log.Encoding, d.Log.Encoding)
	w.WriteString("logFile", c.Log.File.Filename, "")
}

func (c *Config) OnDeserialize(r serializer.Reader) {
	d := DefaultConfig()
	c.Title = r.ReadString("title", d.Title)
	c.Graphics = r.ReadString("graphics", d.Graphics)
	c.Width = r.ReadInt("width", d.Width)
	c.Height = r.ReadInt("height", d.Height)
	c.Fullscreen = r.ReadBool("fullscreen", d.Fullscreen)
	c.VSync = r.ReadBool("vsync", d.VSync)
	c.Multisampling = r.ReadInt("multisampling", d.Multisampling)
	c.Validation = r.ReadBool("validation", d.Validation)
	c.BackBuffers = r.ReadInt("backBuffers", d.BackBuffers)
	c.FenceTimeout = time.Duration(r.ReadInt("fenceTimeout", int(d.FenceTimeout/time.Millisecond))) * time.Millisecond
	c.ClearColor = r.ReadColor4("clearColor", d.ClearColor)
	c.TouchSupport = r.ReadBool("touchSupport", d.TouchSupport)
	c.AccelerometerSupport = r.ReadBool("accelerometerSupport", d.AccelerometerSupport)
	c.AssetsPath = r.ReadString("assetsPath", d.AssetsPath)
	c.SplashScreens = c.SplashScreens[:0]
	for n := r.ReadObjectList("splashScreens"); n > 0; n-- {
		obj, err := r.ReadObject("")
		if err != nil {
			continue
		}
		if s, ok := obj.(*SplashScreen); ok {
			c.SplashScreens = append(c.SplashScreens, s)
		}
	}
	c.LoadingScene = r.ReadString("loadingScene", "")
	c.MainScene = r.ReadString("mainScene", "")
	c.Log.Level = r.ReadString("logLevel", d.Log.Level)
	c.Log.Encoding = r.ReadString("logEncoding", d.Log.Encoding)
	c.Log.File.Filename = r.ReadString("logFile", "")
}

// GraphicsSettings returns the device settings carried by c.
func (c *Config) GraphicsSettings() graphics.Settings {
	return graphics.Settings{
		Width:         c.Width,
		Height:        c.Height,
		Fullscreen:    c.Fullscreen,
		VSync:         c.VSync,
		Multisampling: c.Multisampling,
		Validation:    c.Validation,
		BackBuffers:   c.BackBuffers,
		FenceTimeout:  c.FenceTimeout,
		ClearColor:    c.ClearColor,
	}
}

// LoadConfig reads path through the serializer. A missing file yields
// DefaultConfig and no error, so a game without settings still starts.
func LoadConfig(fsys *filesystem.FileSystem, path string, act *serializer.Activator) (*Config, error) {
	if !fsys.FileExists(path) {
		return DefaultConfig(), nil
	}
	r, err := serializer.OpenReader(fsys, path, act)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	obj, err := r.ReadObject("")
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	cfg, ok := obj.(*Config)
	if !ok {
		return nil, errors.Newf("config %s: root is %T, want %s", path, obj, ClassConfig)
	}
	return cfg, nil
}

// SaveConfig writes c to path in the given format.
func SaveConfig(fsys *filesystem.FileSystem, path string, format serializer.Format, c *Config, act *serializer.Activator) error {
	w, err := serializer.CreateWriter(fsys, path, format, act)
	if err != nil {
		return err
	}
	w.WriteObject("", c)
	if err := w.Err(); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// overrides is the YAML/TOML shape of a settings override file. Only the
// fields present in the file are applied.
type overrides struct {
	Title         *string          `yaml:"title" toml:"title"`
	Graphics      *string          `yaml:"graphics" toml:"graphics"`
	Width         *int             `yaml:"width" toml:"width"`
	Height        *int             `yaml:"height" toml:"height"`
	Fullscreen    *bool            `yaml:"fullscreen" toml:"fullscreen"`
	VSync         *bool            `yaml:"vsync" toml:"vsync"`
	Multisampling *int             `yaml:"multisampling" toml:"multisampling"`
	Validation    *bool            `yaml:"validation" toml:"validation"`
	BackBuffers   *int             `yaml:"back_buffers" toml:"back_buffers"`
	FenceTimeout  *string          `yaml:"fence_timeout" toml:"fence_timeout"`
	AssetsPath    *string          `yaml:"assets_path" toml:"assets_path"`
	SplashScreens []splashOverride `yaml:"splash_screens" toml:"splash_screens"`
	LoadingScene  *string          `yaml:"loading_scene" toml:"loading_scene"`
	MainScene     *string          `yaml:"main_scene" toml:"main_scene"`
	Log           *log.Config      `yaml:"log" toml:"log"`
}

type splashOverride struct {
	URL      string `yaml:"url" toml:"url"`
	Duration string `yaml:"duration" toml:"duration"`
}

// ApplyOverrides decodes a YAML (.yaml, .yml) or TOML (.toml) document
// from data and applies the fields it sets on c. name only selects the
// decoder.
func (c *Config) ApplyOverrides(name string, data []byte) error {
	var o overrides
	var err error
	switch strings.ToUpper(filesystem.Extension(name)) {
	case ".YAML", ".YML":
		err = decodeYAML(bytes.NewReader(data), &o)
	case ".TOML":
		err = toml.NewDecoder(bytes.NewReader(data)).Decode(&o)
	default:
		return errors.Wrapf(ErrConfigFormat, "%s", name)
	}
	if err != nil {
		return errors.Wrapf(err, "decode %s", name)
	}
	return c.apply(&o)
}

// LoadOverrides reads path from fsys and applies it on c.
func (c *Config) LoadOverrides(fsys *filesystem.FileSystem, path string) error {
	data, err := fsys.ReadAll(path)
	if err != nil {
		return err
	}
	return c.ApplyOverrides(path, data)
}

func decodeYAML(r io.Reader, o *overrides) error {
	err := yaml.NewDecoder(r).Decode(o)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (c *Config) apply(o *overrides) error {
	set(&c.Title, o.Title)
	set(&c.Graphics, o.Graphics)
	set(&c.Width, o.Width)
	set(&c.Height, o.Height)
	set(&c.Fullscreen, o.Fullscreen)
	set(&c.VSync, o.VSync)
	set(&c.Multisampling, o.Multisampling)
	set(&c.Validation, o.Validation)
	set(&c.BackBuffers, o.BackBuffers)
	set(&c.AssetsPath, o.AssetsPath)
	set(&c.LoadingScene, o.LoadingScene)
	set(&c.MainScene, o.MainScene)
	if o.FenceTimeout != nil {
		d, err := time.ParseDuration(*o.FenceTimeout)
		if err != nil {
			return errors.Wrap(err, "fence_timeout")
		}
		c.FenceTimeout = d
	}
	if o.SplashScreens != nil {
		c.SplashScreens = make([]*SplashScreen, 0, len(o.SplashScreens))
		for i, s := range o.SplashScreens {
			d, err := time.ParseDuration(s.Duration)
			if err != nil {
				return errors.Wrapf(err, "splash_screens[%d].duration", i)
			}
			c.SplashScreens = append(c.SplashScreens, &SplashScreen{URL: s.URL, Duration: d})
		}
	}
	if o.Log != nil {
		c.Log = *o.Log
	}
	return nil
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
