// Package scene holds the serializable scene graph: objects with a
// transform, child objects and attached components such as cameras.
package scene

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/gpengine/gameplay/internal/core/serializer"
)

const ClassSceneObject = "gameplay::SceneObject"

// SceneObject is a node of the scene graph.
type SceneObject struct {
	ID          uuid.UUID
	Name        string
	Enabled     bool
	Position    mgl32.Vec3
	EulerAngles mgl32.Vec3
	Scale       mgl32.Vec3
	Tags        []string
	Children    []*SceneObject
	Components  []serializer.Serializable

	parent *SceneObject
}

var _ serializer.Serializable = (*SceneObject)(nil)

func NewSceneObject(name string) *SceneObject {
	return &SceneObject{
		ID:      uuid.New(),
		Name:    name,
		Enabled: true,
		Scale:   mgl32.Vec3{1, 1, 1},
	}
}

func (o *SceneObject) Parent() *SceneObject { return o.parent }

// AddChild reparents child under o.
func (o *SceneObject) AddChild(child *SceneObject) {
	if child.parent != nil {
		child.parent.RemoveChild(child)
	}
	child.parent = o
	o.Children = append(o.Children, child)
}

func (o *SceneObject) RemoveChild(child *SceneObject) bool {
	i := lo.IndexOf(o.Children, child)
	if i < 0 {
		return false
	}
	o.Children = append(o.Children[:i], o.Children[i+1:]...)
	child.parent = nil
	return true
}

// FindChild returns the first descendant named name, depth first.
func (o *SceneObject) FindChild(name string) *SceneObject {
	for _, c := range o.Children {
		if c.Name == name {
			return c
		}
		if found := c.FindChild(name); found != nil {
			return found
		}
	}
	return nil
}

func (o *SceneObject) AddComponent(c serializer.Serializable) {
	o.Components = append(o.Components, c)
}

// Component returns the first component of the given class.
func (o *SceneObject) Component(className string) serializer.Serializable {
	c, _ := lo.Find(o.Components, func(c serializer.Serializable) bool {
		return c.ClassName() == className
	})
	return c
}

func (o *SceneObject) HasTag(tag string) bool { return lo.Contains(o.Tags, tag) }

// Walk visits o and its descendants depth first until fn returns false.
func (o *SceneObject) Walk(fn func(*SceneObject) bool) bool {
	if !fn(o) {
		return false
	}
	for _, c := range o.Children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// LocalTransform is translation * rotation (Z, Y, X order) * scale.
func (o *SceneObject) LocalTransform() mgl32.Mat4 {
	rad := mgl32.Vec3{
		mgl32.DegToRad(o.EulerAngles.X()),
		mgl32.DegToRad(o.EulerAngles.Y()),
		mgl32.DegToRad(o.EulerAngles.Z()),
	}
	rotation := mgl32.AnglesToQuat(rad.Z(), rad.Y(), rad.X(), mgl32.ZYX).Mat4()
	return mgl32.Translate3D(o.Position.Elem()).
		Mul4(rotation).
		Mul4(mgl32.Scale3D(o.Scale.Elem()))
}

// WorldTransform composes the local transforms from the root down.
func (o *SceneObject) WorldTransform() mgl32.Mat4 {
	m := o.LocalTransform()
	for p := o.parent; p != nil; p = p.parent {
		m = p.LocalTransform().Mul4(m)
	}
	return m
}

func (o *SceneObject) ClassName() string { return ClassSceneObject }

func (o *SceneObject) OnSerialize(w serializer.Writer) {
	w.WriteString("id", o.ID.String(), "")
	w.WriteString("name", o.Name, "")
	w.WriteBool("enabled", o.Enabled, true)
	w.WriteVector3("position", o.Position, mgl32.Vec3{})
	w.WriteVector3("eulerAngles", o.EulerAngles, mgl32.Vec3{})
	w.WriteVector3("scale", o.Scale, mgl32.Vec3{1, 1, 1})
	w.WriteStringList("tags", len(o.Tags))
	for _, tag := range o.Tags {
		w.WriteString("", tag, "")
	}
	w.WriteObjectList("children", len(o.Children))
	for _, c := range o.Children {
		w.WriteObject("", c)
	}
	w.WriteObjectList("components", len(o.Components))
	for _, c := range o.Components {
		w.WriteObject("", c)
	}
}

func (o *SceneObject) OnDeserialize(r serializer.Reader) {
	if id, err := uuid.Parse(r.ReadString("id", "")); err == nil {
		o.ID = id
	}
	o.Name = r.ReadString("name", "")
	o.Enabled = r.ReadBool("enabled", true)
	o.Position = r.ReadVector3("position", mgl32.Vec3{})
	o.EulerAngles = r.ReadVector3("eulerAngles", mgl32.Vec3{})
	o.Scale = r.ReadVector3("scale", mgl32.Vec3{1, 1, 1})

	o.Tags = nil
	for i, n := 0, r.ReadStringList("tags"); i < n; i++ {
		o.Tags = append(o.Tags, r.ReadString("", ""))
	}
	o.Children = nil
	for i, n := 0, r.ReadObjectList("children"); i < n; i++ {
		obj, err := r.ReadObject("")
		if err != nil {
			return
		}
		if child, ok := obj.(*SceneObject); ok {
			o.AddChild(child)
		}
	}
	o.Components = nil
	for i, n := 0, r.ReadObjectList("components"); i < n; i++ {
		obj, err := r.ReadObject("")
		if err != nil {
			return
		}
		if obj != nil {
			o.Components = append(o.Components, obj)
		}
	}
}
