package texture

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpengine/gameplay/internal/core/serializer"
)

func TestNew_Compressed(t *testing.T) {
	assert.True(t, New("res/stone.dds", FormatRGBA, 256, 256).Compressed)
	assert.False(t, New("res/stone.png", FormatRGBA, 256, 256).Compressed)
}

func TestSampler_RoundTripJSON(t *testing.T) {
	act := serializer.NewActivator()
	RegisterTypes(act)

	tex := New("res/brick.png", FormatRGB, 512, 256)
	tex.GenerateMipmaps()
	s := NewSampler(tex)
	s.SetWrapMode(WrapClamp, WrapRepeat)
	s.SetFilterMode(FilterLinearMipmapLinear, FilterNearest)

	var buf bytes.Buffer
	w := serializer.NewJSONWriter("sampler.json", &buf, act)
	w.WriteObject("", s)
	require.NoError(t, w.Close())
	assert.Contains(t, buf.String(), `"wrapS": "CLAMP"`)
	assert.Contains(t, buf.String(), `"format": "RGB"`)
	assert.NotContains(t, buf.String(), "wrapT")

	r, err := serializer.NewJSONReader("sampler.json", buf.Bytes(), act)
	require.NoError(t, err)
	got, err := r.ReadObject("")
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestEnumStrings(t *testing.T) {
	act := serializer.NewActivator()
	RegisterTypes(act)

	assert.Equal(t, "LINEAR_MIPMAP_NEAREST", FilterLinearMipmapNearest.String())
	assert.Equal(t, "ALPHA", act.EnumToString(EnumFormat, int(FormatAlpha)))
	assert.Equal(t, int(WrapClamp), act.EnumParse(EnumWrap, "clamp"))
	assert.Equal(t, -1, act.EnumParse(EnumWrap, "MIRROR"))
}
