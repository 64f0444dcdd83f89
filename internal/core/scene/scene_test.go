package scene

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpengine/gameplay/internal/core/filesystem"
	"github.com/gpengine/gameplay/internal/core/serializer"
)

func newActivator() *serializer.Activator {
	act := serializer.NewActivator()
	RegisterTypes(act)
	return act
}

func sampleScene() *SceneObject {
	root := NewSceneObject("level")
	root.Tags = []string{"persistent"}

	player := NewSceneObject("player")
	player.Position = mgl32.Vec3{1, 2, 3}
	player.EulerAngles = mgl32.Vec3{0, 90, 0}
	root.AddChild(player)

	cam := NewCamera()
	cam.Type = CameraOrthographic
	cam.Zoom = mgl32.Vec2{20, 10}
	cam.ClearColor = mgl32.Vec4{0.2, 0.3, 0.4, 1}
	eye := NewSceneObject("eye")
	eye.AddComponent(cam)
	player.AddChild(eye)

	hidden := NewSceneObject("hidden")
	hidden.Enabled = false
	hidden.Scale = mgl32.Vec3{2, 2, 2}
	root.AddChild(hidden)
	return root
}

func TestSceneObject_RoundTrip(t *testing.T) {
	fsys, err := filesystem.NewMemory()
	require.NoError(t, err)
	act := newActivator()

	for _, format := range []serializer.Format{serializer.FormatBinary, serializer.FormatJSON} {
		t.Run(format.String(), func(t *testing.T) {
			want := sampleScene()
			w, err := serializer.CreateWriter(fsys, "level.scene", format, act)
			require.NoError(t, err)
			w.WriteObject("", want)
			require.NoError(t, w.Close())

			r, err := serializer.OpenReader(fsys, "level.scene", act)
			require.NoError(t, err)
			defer r.Close()
			obj, err := r.ReadObject("")
			require.NoError(t, err)

			got := obj.(*SceneObject)
			assert.Equal(t, want, got)
			assert.Same(t, got, got.FindChild("eye").Parent().Parent())
			assert.Equal(t, CameraOrthographic, FindCamera(got).Type)
		})
	}
}

func TestSceneObject_UnknownComponent(t *testing.T) {
	fsys, err := filesystem.NewMemory()
	require.NoError(t, err)

	root := NewSceneObject("root")
	root.AddComponent(NewCamera())
	w, err := serializer.CreateWriter(fsys, "a.scene", serializer.FormatBinary, newActivator())
	require.NoError(t, err)
	w.WriteObject("", root)
	require.NoError(t, w.Close())

	act := serializer.NewActivator()
	act.RegisterType(ClassSceneObject, func() serializer.Serializable { return NewSceneObject("") })
	r, err := serializer.OpenReader(fsys, "a.scene", act)
	require.NoError(t, err)
	_, err = r.ReadObject("")
	assert.True(t, errors.Is(err, serializer.ErrUnknownType))
}

func TestSceneObject_Hierarchy(t *testing.T) {
	root := sampleScene()
	player := root.FindChild("player")
	require.NotNil(t, player)
	eye := root.FindChild("eye")
	require.NotNil(t, eye)

	assert.True(t, root.HasTag("persistent"))
	assert.Nil(t, root.FindChild("missing"))

	root.AddChild(eye)
	assert.Same(t, root, eye.Parent())
	assert.Empty(t, player.Children)
	assert.True(t, root.RemoveChild(eye))
	assert.False(t, root.RemoveChild(eye))
	assert.Nil(t, eye.Parent())

	var names []string
	root.Walk(func(o *SceneObject) bool {
		names = append(names, o.Name)
		return true
	})
	assert.Equal(t, []string{"level", "player", "hidden"}, names)
}

func TestSceneObject_WorldTransform(t *testing.T) {
	parent := NewSceneObject("parent")
	parent.Position = mgl32.Vec3{10, 0, 0}
	child := NewSceneObject("child")
	child.Position = mgl32.Vec3{0, 5, 0}
	parent.AddChild(child)

	p := child.WorldTransform().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assert.InDelta(t, 10, p.X(), 1e-5)
	assert.InDelta(t, 5, p.Y(), 1e-5)

	parent.EulerAngles = mgl32.Vec3{0, 0, 90}
	p = child.WorldTransform().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assert.InDelta(t, 5, p.X(), 1e-5)
	assert.InDelta(t, 0, p.Y(), 1e-5)
}

func TestCamera_Defaults(t *testing.T) {
	act := newActivator()
	assert.Equal(t, -1, act.EnumParse(EnumCameraType, "NOT_A_VALUE"))
	assert.Equal(t, int(CameraOrthographic), act.EnumParse(EnumCameraType, "orthographic"))
	assert.Equal(t, "PERSPECTIVE", act.EnumToString(EnumCameraType, int(CameraPerspective)))

	doc := `{"version":[4,0],"root":{"@class":"gameplay::Camera","type":"NOT_A_VALUE","fieldOfView":60}}`
	r, err := serializer.NewJSONReader("camera.json", []byte(doc), act)
	require.NoError(t, err)
	obj, err := r.ReadObject("")
	require.NoError(t, err)

	want := NewCamera()
	want.FieldOfView = 60
	assert.Equal(t, want, obj)
	assert.NotEqual(t, mgl32.Mat4{}, want.Projection())
}
