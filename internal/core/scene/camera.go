package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gpengine/gameplay/internal/core/serializer"
)

const (
	ClassCamera    = "gameplay::Camera"
	EnumCameraType = "gameplay::Camera::Type"
)

type CameraType int

const (
	CameraPerspective CameraType = iota
	CameraOrthographic
)

var cameraTypeNames = map[int]string{
	int(CameraPerspective):  "PERSPECTIVE",
	int(CameraOrthographic): "ORTHOGRAPHIC",
}

func (t CameraType) String() string { return cameraTypeNames[int(t)] }

// Camera is a component that projects the scene. FieldOfView is in degrees.
type Camera struct {
	Type        CameraType
	FieldOfView float32
	Zoom        mgl32.Vec2
	AspectRatio float32
	NearPlane   float32
	FarPlane    float32
	ClearColor  mgl32.Vec4
	// Viewport is x, y, width, height normalized to the back buffer.
	Viewport mgl32.Vec4
}

var _ serializer.Serializable = (*Camera)(nil)

var defaultCamera = Camera{
	Type:        CameraPerspective,
	FieldOfView: 45,
	Zoom:        mgl32.Vec2{1, 1},
	AspectRatio: 16.0 / 9.0,
	NearPlane:   0.1,
	FarPlane:    1000,
	ClearColor:  mgl32.Vec4{0, 0, 0, 1},
	Viewport:    mgl32.Vec4{0, 0, 1, 1},
}

func NewCamera() *Camera {
	c := defaultCamera
	return &c
}

// Projection returns the projection matrix for the camera type.
func (c *Camera) Projection() mgl32.Mat4 {
	if c.Type == CameraOrthographic {
		hw, hh := c.Zoom.X()/2, c.Zoom.Y()/2
		return mgl32.Ortho(-hw, hw, -hh, hh, c.NearPlane, c.FarPlane)
	}
	return mgl32.Perspective(mgl32.DegToRad(c.FieldOfView), c.AspectRatio, c.NearPlane, c.FarPlane)
}

func (c *Camera) ClassName() string { return ClassCamera }

func (c *Camera) OnSerialize(w serializer.Writer) {
	d := &defaultCamera
	w.WriteEnum("type", EnumCameraType, int(c.Type), int(d.Type))
	w.WriteFloat("fieldOfView", c.FieldOfView, d.FieldOfView)
	w.WriteVector2("zoom", c.Zoom, d.Zoom)
	w.WriteFloat("aspectRatio", c.AspectRatio, d.AspectRatio)
	w.WriteFloat("nearPlane", c.NearPlane, d.NearPlane)
	w.WriteFloat("farPlane", c.FarPlane, d.FarPlane)
	w.WriteColor4("clearColor", c.ClearColor, d.ClearColor)
	w.WriteVector4("viewport", c.Viewport, d.Viewport)
}

func (c *Camera) OnDeserialize(r serializer.Reader) {
	d := &defaultCamera
	c.Type = CameraType(r.ReadEnum("type", EnumCameraType, int(d.Type)))
	c.FieldOfView = r.ReadFloat("fieldOfView", d.FieldOfView)
	c.Zoom = r.ReadVector2("zoom", d.Zoom)
	c.AspectRatio = r.ReadFloat("aspectRatio", d.AspectRatio)
	c.NearPlane = r.ReadFloat("nearPlane", d.NearPlane)
	c.FarPlane = r.ReadFloat("farPlane", d.FarPlane)
	c.ClearColor = r.ReadColor4("clearColor", d.ClearColor)
	c.Viewport = r.ReadVector4("viewport", d.Viewport)
}

// FindCamera returns the first enabled camera in the tree rooted at root.
func FindCamera(root *SceneObject) *Camera {
	var found *Camera
	root.Walk(func(o *SceneObject) bool {
		if !o.Enabled {
			return true
		}
		if c, ok := o.Component(ClassCamera).(*Camera); ok {
			found = c
			return false
		}
		return true
	})
	return found
}

// RegisterTypes registers the scene classes and enums with act.
func RegisterTypes(act *serializer.Activator) {
	act.RegisterType(ClassSceneObject, func() serializer.Serializable { return NewSceneObject("") })
	act.RegisterType(ClassCamera, func() serializer.Serializable { return NewCamera() })
	toString, parse := serializer.EnumTable(cameraTypeNames)
	act.RegisterEnum(EnumCameraType, toString, parse)
}
