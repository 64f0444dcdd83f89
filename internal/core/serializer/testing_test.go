package serializer

import (
	"github.com/go-gl/mathgl/mgl32"
)

const (
	testNodeClass = "test::Node"
	testKindEnum  = "test::Node::Kind"
)

const (
	kindAlpha = iota
	kindBeta
	kindGamma
)

// testNode exercises every property kind the serializer supports.
type testNode struct {
	Name     string
	Enabled  bool
	Count    int
	Weight   float32
	Kind     int
	UV       mgl32.Vec2
	Pos      mgl32.Vec3
	Rot      mgl32.Vec4
	Tint     mgl32.Vec3
	Clear    mgl32.Vec4
	World    mgl32.Mat4
	Tags     []string
	Indices  []int32
	Samples  []float32
	Blob     []byte
	Child    *testNode
	Children []*testNode
}

func newTestNode() *testNode {
	return &testNode{Enabled: true, Weight: 1, World: mgl32.Ident4()}
}

func (n *testNode) ClassName() string { return testNodeClass }

func (n *testNode) OnSerialize(w Writer) {
	w.WriteString("name", n.Name, "")
	w.WriteBool("enabled", n.Enabled, true)
	w.WriteInt("count", n.Count, 0)
	w.WriteFloat("weight", n.Weight, 1)
	w.WriteEnum("kind", testKindEnum, n.Kind, kindAlpha)
	w.WriteVector2("uv", n.UV, mgl32.Vec2{})
	w.WriteVector3("pos", n.Pos, mgl32.Vec3{})
	w.WriteVector4("rot", n.Rot, mgl32.Vec4{})
	w.WriteColor3("tint", n.Tint, mgl32.Vec3{})
	w.WriteColor4("clear", n.Clear, mgl32.Vec4{})
	w.WriteMatrix("world", n.World, mgl32.Ident4())
	w.WriteStringList("tags", len(n.Tags))
	for _, t := range n.Tags {
		w.WriteString("", t, "")
	}
	w.WriteIntArray("indices", n.Indices)
	w.WriteFloatArray("samples", n.Samples)
	w.WriteByteArray("blob", n.Blob)
	if n.Child != nil {
		w.WriteObject("child", n.Child)
	}
	w.WriteObjectList("children", len(n.Children))
	for _, c := range n.Children {
		w.WriteObject("", c)
	}
}

func (n *testNode) OnDeserialize(r Reader) {
	n.Name = r.ReadString("name", "")
	n.Enabled = r.ReadBool("enabled", true)
	n.Count = r.ReadInt("count", 0)
	n.Weight = r.ReadFloat("weight", 1)
	n.Kind = r.ReadEnum("kind", testKindEnum, kindAlpha)
	n.UV = r.ReadVector2("uv", mgl32.Vec2{})
	n.Pos = r.ReadVector3("pos", mgl32.Vec3{})
	n.Rot = r.ReadVector4("rot", mgl32.Vec4{})
	n.Tint = r.ReadColor3("tint", mgl32.Vec3{})
	n.Clear = r.ReadColor4("clear", mgl32.Vec4{})
	n.World = r.ReadMatrix("world", mgl32.Ident4())
	for i, count := 0, r.ReadStringList("tags"); i < count; i++ {
		n.Tags = append(n.Tags, r.ReadString("", ""))
	}
	n.Indices = r.ReadIntArray("indices")
	n.Samples = r.ReadFloatArray("samples")
	n.Blob = r.ReadByteArray("blob")
	if obj, err := r.ReadObject("child"); err == nil {
		n.Child, _ = obj.(*testNode)
	}
	for i, count := 0, r.ReadObjectList("children"); i < count; i++ {
		obj, err := r.ReadObject("")
		if err != nil {
			return
		}
		c, _ := obj.(*testNode)
		n.Children = append(n.Children, c)
	}
}

// listNode announces Announced list items but writes Written of them.
type listNode struct {
	Announced int
	Written   int
}

func (n *listNode) ClassName() string { return "test::List" }

func (n *listNode) OnSerialize(w Writer) {
	w.WriteStringList("items", n.Announced)
	for i := 0; i < n.Written; i++ {
		w.WriteString("", "item", "")
	}
}

func (n *listNode) OnDeserialize(r Reader) {}

// recordNode reads a string, a property expected to fail, then another
// string.
type recordNode struct {
	Before string
	Count  int
	After  string
}

func (n *recordNode) ClassName() string { return "test::Record" }

func (n *recordNode) OnSerialize(w Writer) {}

func (n *recordNode) OnDeserialize(r Reader) {
	n.Before = r.ReadString("before", "")
	n.Count = r.ReadInt("count", -1)
	n.After = r.ReadString("after", "fallback")
}

// foreignNode has a class no test activator registers.
type foreignNode struct{}

func (foreignNode) ClassName() string    { return "Unknown::Type" }
func (foreignNode) OnSerialize(w Writer) { w.WriteInt("value", 7, 0) }

func (foreignNode) OnDeserialize(Reader) {}

func testActivator() *Activator {
	act := NewActivator()
	act.RegisterType(testNodeClass, func() Serializable { return newTestNode() })
	toString, parse := EnumTable(map[int]string{
		kindAlpha: "ALPHA",
		kindBeta:  "BETA",
		kindGamma: "GAMMA",
	})
	act.RegisterEnum(testKindEnum, toString, parse)
	return act
}

func sampleTree() *testNode {
	root := newTestNode()
	root.Name = "root"
	root.Enabled = false
	root.Count = -42
	root.Weight = 0.25
	root.Kind = kindGamma
	root.UV = mgl32.Vec2{0.5, 0.75}
	root.Pos = mgl32.Vec3{1, -2, 3.5}
	root.Rot = mgl32.Vec4{0, 0.7071, 0, 0.7071}
	root.Tint = mgl32.Vec3{1, 0.5, 0}
	root.Clear = mgl32.Vec4{0.1, 0.2, 0.3, 1}
	root.World = mgl32.Translate3D(1, 2, 3)
	root.Tags = []string{"player", "", "spawn"}
	root.Indices = []int32{0, 1, 2, -3}
	root.Samples = []float32{0.5, 1.5}
	root.Blob = []byte{0, 1, 2, 255}

	child := newTestNode()
	child.Name = "child"
	child.Kind = kindBeta
	child.Count = 1<<53 + 1
	root.Child = child

	first := newTestNode()
	first.Name = "first"
	second := newTestNode()
	second.Name = "second"
	second.Children = []*testNode{{Name: "grandchild", Enabled: true, Weight: 1, World: mgl32.Ident4()}}
	root.Children = []*testNode{first, second}
	return root
}
