// Package texture holds texture and sampler descriptions as serializable
// data. Pixel decoding and GPU upload belong to the renderer.
package texture

import (
	"github.com/gpengine/gameplay/internal/core/filesystem"
	"github.com/gpengine/gameplay/internal/core/serializer"
)

const (
	ClassTexture = "gameplay::Texture"
	ClassSampler = "gameplay::Texture::Sampler"

	EnumFormat = "gameplay::Texture::Format"
	EnumFilter = "gameplay::Texture::Filter"
	EnumWrap   = "gameplay::Texture::Wrap"
)

type Format int

const (
	FormatRGB Format = iota
	FormatRGBA
	FormatAlpha
)

var formatNames = map[int]string{
	int(FormatRGB):   "RGB",
	int(FormatRGBA):  "RGBA",
	int(FormatAlpha): "ALPHA",
}

type Filter int

const (
	FilterNearest Filter = iota
	FilterLinear
	FilterNearestMipmapNearest
	FilterLinearMipmapNearest
	FilterNearestMipmapLinear
	FilterLinearMipmapLinear
)

var filterNames = map[int]string{
	int(FilterNearest):              "NEAREST",
	int(FilterLinear):               "LINEAR",
	int(FilterNearestMipmapNearest): "NEAREST_MIPMAP_NEAREST",
	int(FilterLinearMipmapNearest):  "LINEAR_MIPMAP_NEAREST",
	int(FilterNearestMipmapLinear):  "NEAREST_MIPMAP_LINEAR",
	int(FilterLinearMipmapLinear):   "LINEAR_MIPMAP_LINEAR",
}

type Wrap int

const (
	WrapRepeat Wrap = iota
	WrapClamp
)

var wrapNames = map[int]string{
	int(WrapRepeat): "REPEAT",
	int(WrapClamp):  "CLAMP",
}

func (f Format) String() string { return formatNames[int(f)] }
func (f Filter) String() string { return filterNames[int(f)] }
func (w Wrap) String() string   { return wrapNames[int(w)] }

// compressedExtensions are container formats uploaded without decoding.
var compressedExtensions = map[string]bool{".PVR": true, ".DDS": true, ".KTX": true}

// Texture describes an image asset.
type Texture struct {
	Path       string
	Format     Format
	Width      int
	Height     int
	Mipmapped  bool
	Compressed bool
}

var _ serializer.Serializable = (*Texture)(nil)

// New describes the texture at path. Compression is inferred from the
// file extension.
func New(path string, format Format, width, height int) *Texture {
	return &Texture{
		Path:       path,
		Format:     format,
		Width:      width,
		Height:     height,
		Compressed: compressedExtensions[filesystem.Extension(path)],
	}
}

func (t *Texture) GenerateMipmaps() { t.Mipmapped = true }

func (t *Texture) ClassName() string { return ClassTexture }

func (t *Texture) OnSerialize(w serializer.Writer) {
	w.WriteString("path", t.Path, "")
	w.WriteEnum("format", EnumFormat, int(t.Format), int(FormatRGBA))
	w.WriteInt("width", t.Width, 0)
	w.WriteInt("height", t.Height, 0)
	w.WriteBool("mipmapped", t.Mipmapped, false)
	w.WriteBool("compressed", t.Compressed, false)
}

func (t *Texture) OnDeserialize(r serializer.Reader) {
	t.Path = r.ReadString("path", "")
	t.Format = Format(r.ReadEnum("format", EnumFormat, int(FormatRGBA)))
	t.Width = r.ReadInt("width", 0)
	t.Height = r.ReadInt("height", 0)
	t.Mipmapped = r.ReadBool("mipmapped", false)
	t.Compressed = r.ReadBool("compressed", false)
}

// Sampler is a texture with its wrap and filter state.
type Sampler struct {
	Texture   *Texture
	WrapS     Wrap
	WrapT     Wrap
	MinFilter Filter
	MagFilter Filter
}

var _ serializer.Serializable = (*Sampler)(nil)

// NewSampler returns a sampler with repeat wrapping and trilinear
// minification.
func NewSampler(t *Texture) *Sampler {
	return &Sampler{
		Texture:   t,
		WrapS:     WrapRepeat,
		WrapT:     WrapRepeat,
		MinFilter: FilterNearestMipmapLinear,
		MagFilter: FilterLinear,
	}
}

func (s *Sampler) SetWrapMode(wrapS, wrapT Wrap) {
	s.WrapS, s.WrapT = wrapS, wrapT
}

func (s *Sampler) SetFilterMode(minification, magnification Filter) {
	s.MinFilter, s.MagFilter = minification, magnification
}

func (s *Sampler) ClassName() string { return ClassSampler }

func (s *Sampler) OnSerialize(w serializer.Writer) {
	if s.Texture != nil {
		w.WriteObject("texture", s.Texture)
	}
	w.WriteEnum("wrapS", EnumWrap, int(s.WrapS), int(WrapRepeat))
	w.WriteEnum("wrapT", EnumWrap, int(s.WrapT), int(WrapRepeat))
	w.WriteEnum("minFilter", EnumFilter, int(s.MinFilter), int(FilterNearestMipmapLinear))
	w.WriteEnum("magFilter", EnumFilter, int(s.MagFilter), int(FilterLinear))
}

func (s *Sampler) OnDeserialize(r serializer.Reader) {
	if obj, err := r.ReadObject("texture"); err == nil {
		s.Texture, _ = obj.(*Texture)
	}
	s.WrapS = Wrap(r.ReadEnum("wrapS", EnumWrap, int(WrapRepeat)))
	s.WrapT = Wrap(r.ReadEnum("wrapT", EnumWrap, int(WrapRepeat)))
	s.MinFilter = Filter(r.ReadEnum("minFilter", EnumFilter, int(FilterNearestMipmapLinear)))
	s.MagFilter = Filter(r.ReadEnum("magFilter", EnumFilter, int(FilterLinear)))
}

// RegisterTypes registers the texture classes and enums with act.
func RegisterTypes(act *serializer.Activator) {
	act.RegisterType(ClassTexture, func() serializer.Serializable { return &Texture{Format: FormatRGBA} })
	act.RegisterType(ClassSampler, func() serializer.Serializable { return NewSampler(nil) })
	for name, table := range map[string]map[int]string{
		EnumFormat: formatNames,
		EnumFilter: filterNames,
		EnumWrap:   wrapNames,
	} {
		toString, parse := serializer.EnumTable(table)
		act.RegisterEnum(name, toString, parse)
	}
}
