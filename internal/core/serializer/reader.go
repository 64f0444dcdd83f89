package serializer

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
)

// readFrame is an object being read, with the list the caller opened on it.
type readFrame struct {
	node    *node
	objects []*node
	strings []string
	next    int
	list    kind
}

// reader serves both formats from the decoded node tree.
type reader struct {
	session
	act    *Activator
	root   *node
	frames []readFrame
}

var _ Reader = (*reader)(nil)

func newReader(path string, format Format, version [2]uint8, root *node, act *Activator) *reader {
	if act == nil {
		act = DefaultActivator()
	}
	r := &reader{act: act, root: root}
	r.path = path
	r.format = format
	r.version = version
	return r
}

// NewBinaryReader decodes a binary stream held in memory.
func NewBinaryReader(path string, data []byte, act *Activator) (Reader, error) {
	version, root, err := decodeBinary(data)
	if err != nil {
		return nil, openFailed(err, path)
	}
	return newReader(path, FormatBinary, version, root, act), nil
}

// NewJSONReader decodes a JSON document held in memory.
func NewJSONReader(path string, data []byte, act *Activator) (Reader, error) {
	version, root, err := decodeJSON(data)
	if err != nil {
		return nil, openFailed(err, path)
	}
	return newReader(path, FormatJSON, version, root, act), nil
}

// lookup returns the raw value of a named property of the current object.
// Once the session has failed every property reads as absent.
func (r *reader) lookup(name string) (any, bool) {
	if r.closed {
		r.fail(ErrClosed)
		return nil, false
	}
	if r.err != nil {
		return nil, false
	}
	if len(r.frames) == 0 {
		r.failf(ErrListProtocol, "property %q read outside of an object", name)
		return nil, false
	}
	v, ok := r.frames[len(r.frames)-1].node.props[name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func (r *reader) mismatch(name string, v any) {
	top := r.frames[len(r.frames)-1].node
	r.failf(ErrTypeMismatch, "%s.%s holds %T", top.class, name, v)
}

func (r *reader) ReadEnum(propertyName, enumName string, defaultValue int) int {
	v, ok := r.lookup(propertyName)
	if !ok {
		return defaultValue
	}
	if s, ok := asString(v); ok {
		if n := r.act.EnumParse(enumName, s); n != -1 {
			return n
		}
		return defaultValue
	}
	if n, ok := asInt(v); ok {
		return n
	}
	r.mismatch(propertyName, v)
	return defaultValue
}

func (r *reader) ReadBool(propertyName string, defaultValue bool) bool {
	v, ok := r.lookup(propertyName)
	if !ok {
		return defaultValue
	}
	b, ok := asBool(v)
	if !ok {
		r.mismatch(propertyName, v)
		return defaultValue
	}
	return b
}

func (r *reader) ReadInt(propertyName string, defaultValue int) int {
	v, ok := r.lookup(propertyName)
	if !ok {
		return defaultValue
	}
	n, ok := asInt(v)
	if !ok {
		r.mismatch(propertyName, v)
		return defaultValue
	}
	return n
}

func (r *reader) ReadFloat(propertyName string, defaultValue float32) float32 {
	v, ok := r.lookup(propertyName)
	if !ok {
		return defaultValue
	}
	f, ok := asFloat(v)
	if !ok {
		r.mismatch(propertyName, v)
		return defaultValue
	}
	return f
}

// tuple reads a fixed-size float property into dst, leaving dst untouched
// when the property is absent or malformed.
func (r *reader) tuple(propertyName string, dst []float32) {
	v, ok := r.lookup(propertyName)
	if !ok {
		return
	}
	f, ok := asFloats(v, len(dst))
	if !ok {
		r.mismatch(propertyName, v)
		return
	}
	copy(dst, f)
}

func (r *reader) ReadVector2(propertyName string, defaultValue mgl32.Vec2) mgl32.Vec2 {
	r.tuple(propertyName, defaultValue[:])
	return defaultValue
}

func (r *reader) ReadVector3(propertyName string, defaultValue mgl32.Vec3) mgl32.Vec3 {
	r.tuple(propertyName, defaultValue[:])
	return defaultValue
}

func (r *reader) ReadVector4(propertyName string, defaultValue mgl32.Vec4) mgl32.Vec4 {
	r.tuple(propertyName, defaultValue[:])
	return defaultValue
}

func (r *reader) ReadColor3(propertyName string, defaultValue mgl32.Vec3) mgl32.Vec3 {
	r.tuple(propertyName, defaultValue[:])
	return defaultValue
}

func (r *reader) ReadColor4(propertyName string, defaultValue mgl32.Vec4) mgl32.Vec4 {
	r.tuple(propertyName, defaultValue[:])
	return defaultValue
}

func (r *reader) ReadMatrix(propertyName string, defaultValue mgl32.Mat4) mgl32.Mat4 {
	r.tuple(propertyName, defaultValue[:])
	return defaultValue
}

func (r *reader) ReadString(propertyName, defaultValue string) string {
	if propertyName == "" {
		if len(r.frames) == 0 {
			r.failf(ErrListProtocol, "list item read outside of an object")
			return defaultValue
		}
		top := &r.frames[len(r.frames)-1]
		if top.list != kindStringList || top.next >= len(top.strings) {
			r.failf(ErrListProtocol, "no string list item pending in %s", top.node.class)
			return defaultValue
		}
		s := top.strings[top.next]
		top.next++
		return s
	}
	v, ok := r.lookup(propertyName)
	if !ok {
		return defaultValue
	}
	s, ok := asString(v)
	if !ok {
		r.mismatch(propertyName, v)
		return defaultValue
	}
	return s
}

func (r *reader) ReadStringList(propertyName string) int {
	v, ok := r.lookup(propertyName)
	if len(r.frames) == 0 {
		return 0
	}
	top := &r.frames[len(r.frames)-1]
	top.list, top.next, top.objects, top.strings = kindStringList, 0, nil, nil
	if !ok {
		return 0
	}
	s, ok := asStrings(v)
	if !ok {
		r.mismatch(propertyName, v)
		return 0
	}
	top.strings = s
	return len(s)
}

func (r *reader) ReadObject(propertyName string) (Serializable, error) {
	if r.closed {
		return nil, ErrClosed
	}
	if propertyName == "" {
		if len(r.frames) == 0 {
			return r.instantiate(r.root)
		}
		top := &r.frames[len(r.frames)-1]
		if top.list != kindObjectList || top.next >= len(top.objects) {
			err := errors.Mark(errors.Newf("no object list item pending in %s", top.node.class), ErrListProtocol)
			r.fail(err)
			return nil, err
		}
		n := top.objects[top.next]
		top.next++
		return r.instantiate(n)
	}
	v, ok := r.lookup(propertyName)
	if !ok {
		return nil, r.err
	}
	n, ok := v.(*node)
	if !ok {
		r.mismatch(propertyName, v)
		return nil, r.err
	}
	return r.instantiate(n)
}

// instantiate creates the object for n and lets it read its properties.
// Any error raised while reading the subtree fails the whole object, and
// nothing is instantiated once the session has failed.
func (r *reader) instantiate(n *node) (Serializable, error) {
	if r.err != nil {
		return nil, r.err
	}
	if n == nil {
		return nil, nil
	}
	obj, err := r.act.CreateObject(n.class)
	if err != nil {
		r.fail(err)
		return nil, err
	}
	r.frames = append(r.frames, readFrame{node: n})
	obj.OnDeserialize(r)
	r.frames = r.frames[:len(r.frames)-1]
	if r.err != nil {
		return nil, r.err
	}
	return obj, nil
}

func (r *reader) ReadObjectList(propertyName string) int {
	v, ok := r.lookup(propertyName)
	if len(r.frames) == 0 {
		return 0
	}
	top := &r.frames[len(r.frames)-1]
	top.list, top.next, top.objects, top.strings = kindObjectList, 0, nil, nil
	if !ok {
		return 0
	}
	objects, ok := asNodes(v)
	if !ok {
		r.mismatch(propertyName, v)
		return 0
	}
	top.objects = objects
	return len(objects)
}

func (r *reader) ReadIntArray(propertyName string) []int32 {
	v, ok := r.lookup(propertyName)
	if !ok {
		return nil
	}
	a, ok := asInts(v)
	if !ok {
		r.mismatch(propertyName, v)
		return nil
	}
	return a
}

func (r *reader) ReadFloatArray(propertyName string) []float32 {
	v, ok := r.lookup(propertyName)
	if !ok {
		return nil
	}
	a, ok := asFloats(v, -1)
	if !ok {
		r.mismatch(propertyName, v)
		return nil
	}
	return a
}

func (r *reader) ReadByteArray(propertyName string) []byte {
	v, ok := r.lookup(propertyName)
	if !ok {
		return nil
	}
	b, ok := asBytes(v)
	if !ok {
		r.mismatch(propertyName, v)
		return nil
	}
	return b
}

// Close releases the underlying stream.
func (r *reader) Close() error {
	if r.closed {
		return nil
	}
	r.frames = nil
	r.root = nil
	return r.release()
}
