package serializer

import (
	"github.com/go-gl/mathgl/mgl32"
)

// encoder emits one wire format. The writer drives it and enforces the
// property and list protocol, so encoders never see invalid sequences
// unless the session has already failed.
type encoder interface {
	beginRoot()
	beginField(k kind, name string)
	beginItem()

	putBool(v bool)
	putInt(v int)
	putFloat(v float32)
	putEnum(enumName string, v int)
	putFloats(v []float32)
	putString(v string)
	putInts(v []int32)
	putBytes(v []byte)
	putNull()

	beginList(count int)
	endList()
	beginObject(class string)
	endObject()

	// finish completes the document and flushes it.
	finish(rootWritten bool) error
}

// frame is an object being written, with the list it currently has open.
type frame struct {
	class     string
	list      kind
	remaining int
}

type writer struct {
	session
	enc         encoder
	frames      []frame
	rootWritten bool
}

var _ Writer = (*writer)(nil)

func newWriter(path string, format Format, enc encoder) *writer {
	w := &writer{enc: enc}
	w.path = path
	w.format = format
	w.version[0], w.version[1] = Version()
	return w
}

// property validates a named property and starts its record. It returns
// false when nothing must be written.
func (w *writer) property(k kind, name string) bool {
	if w.err != nil {
		return false
	}
	if w.closed {
		w.fail(ErrClosed)
		return false
	}
	if len(w.frames) == 0 {
		w.failf(ErrListProtocol, "property %q written outside of an object", name)
		return false
	}
	top := &w.frames[len(w.frames)-1]
	if top.list != kindEnd {
		w.failf(ErrListProtocol, "property %q written while %s has %d list items pending", name, top.class, top.remaining)
		return false
	}
	if name == "" {
		w.failf(ErrListProtocol, "unnamed property written outside of a list in %s", top.class)
		return false
	}
	w.enc.beginField(k, name)
	return true
}

// item validates the next list item of the given list kind.
func (w *writer) item(list kind) bool {
	if w.err != nil {
		return false
	}
	if w.closed {
		w.fail(ErrClosed)
		return false
	}
	if len(w.frames) == 0 {
		w.failf(ErrListProtocol, "list item written outside of an object")
		return false
	}
	top := &w.frames[len(w.frames)-1]
	if top.list != list {
		w.failf(ErrListProtocol, "list item written in %s without a matching open list", top.class)
		return false
	}
	w.enc.beginItem()
	return true
}

// itemDone is called after an item has been written. Frames can grow
// while an object item is written, so the owner is looked up by depth.
func (w *writer) itemDone(depth int) {
	f := &w.frames[depth]
	f.remaining--
	if f.remaining == 0 {
		f.list = kindEnd
		w.enc.endList()
	}
}

func (w *writer) list(k kind, name string, count int) {
	if count < 0 {
		w.failf(ErrListProtocol, "negative list count %d for %q", count, name)
		return
	}
	if !w.property(k, name) {
		return
	}
	w.enc.beginList(count)
	if count == 0 {
		w.enc.endList()
		return
	}
	top := &w.frames[len(w.frames)-1]
	top.list = k
	top.remaining = count
}

func (w *writer) object(value Serializable) {
	if value == nil {
		w.enc.putNull()
		return
	}
	class := value.ClassName()
	w.enc.beginObject(class)
	w.frames = append(w.frames, frame{class: class})
	value.OnSerialize(w)
	top := w.frames[len(w.frames)-1]
	w.frames = w.frames[:len(w.frames)-1]
	if top.list != kindEnd {
		w.failf(ErrListProtocol, "%s finished with %d list items pending", class, top.remaining)
	}
	w.enc.endObject()
}

func (w *writer) WriteEnum(propertyName, enumName string, value, defaultValue int) {
	if value == defaultValue {
		return
	}
	if w.property(kindEnum, propertyName) {
		w.enc.putEnum(enumName, value)
	}
}

func (w *writer) WriteBool(propertyName string, value, defaultValue bool) {
	if value == defaultValue {
		return
	}
	if w.property(kindBool, propertyName) {
		w.enc.putBool(value)
	}
}

func (w *writer) WriteInt(propertyName string, value, defaultValue int) {
	if value == defaultValue {
		return
	}
	if w.property(kindInt, propertyName) {
		w.enc.putInt(value)
	}
}

func (w *writer) WriteFloat(propertyName string, value, defaultValue float32) {
	if value == defaultValue {
		return
	}
	if w.property(kindFloat, propertyName) {
		w.enc.putFloat(value)
	}
}

func (w *writer) WriteVector2(propertyName string, value, defaultValue mgl32.Vec2) {
	if value == defaultValue {
		return
	}
	if w.property(kindVector2, propertyName) {
		w.enc.putFloats(value[:])
	}
}

func (w *writer) WriteVector3(propertyName string, value, defaultValue mgl32.Vec3) {
	if value == defaultValue {
		return
	}
	if w.property(kindVector3, propertyName) {
		w.enc.putFloats(value[:])
	}
}

func (w *writer) WriteVector4(propertyName string, value, defaultValue mgl32.Vec4) {
	if value == defaultValue {
		return
	}
	if w.property(kindVector4, propertyName) {
		w.enc.putFloats(value[:])
	}
}

func (w *writer) WriteColor3(propertyName string, value, defaultValue mgl32.Vec3) {
	if value == defaultValue {
		return
	}
	if w.property(kindColor3, propertyName) {
		w.enc.putFloats(value[:])
	}
}

func (w *writer) WriteColor4(propertyName string, value, defaultValue mgl32.Vec4) {
	if value == defaultValue {
		return
	}
	if w.property(kindColor4, propertyName) {
		w.enc.putFloats(value[:])
	}
}

func (w *writer) WriteMatrix(propertyName string, value, defaultValue mgl32.Mat4) {
	if value == defaultValue {
		return
	}
	if w.property(kindMatrix, propertyName) {
		w.enc.putFloats(value[:])
	}
}

func (w *writer) WriteString(propertyName, value, defaultValue string) {
	if propertyName == "" {
		depth := len(w.frames) - 1
		if w.item(kindStringList) {
			w.enc.putString(value)
			w.itemDone(depth)
		}
		return
	}
	if value == defaultValue {
		return
	}
	if w.property(kindString, propertyName) {
		w.enc.putString(value)
	}
}

func (w *writer) WriteStringList(propertyName string, count int) {
	w.list(kindStringList, propertyName, count)
}

func (w *writer) WriteObject(propertyName string, value Serializable) {
	switch {
	case len(w.frames) == 0:
		if w.err != nil {
			return
		}
		if w.closed {
			w.fail(ErrClosed)
			return
		}
		if propertyName != "" {
			w.failf(ErrListProtocol, "property %q written outside of an object", propertyName)
			return
		}
		if w.rootWritten {
			w.failf(ErrListProtocol, "root object written twice")
			return
		}
		w.rootWritten = true
		w.enc.beginRoot()
		w.object(value)
	case propertyName == "":
		depth := len(w.frames) - 1
		if w.item(kindObjectList) {
			w.object(value)
			w.itemDone(depth)
		}
	default:
		if value == nil {
			return
		}
		if w.property(kindObject, propertyName) {
			w.object(value)
		}
	}
}

func (w *writer) WriteObjectList(propertyName string, count int) {
	w.list(kindObjectList, propertyName, count)
}

func (w *writer) WriteIntArray(propertyName string, data []int32) {
	if len(data) == 0 {
		return
	}
	if w.property(kindIntArray, propertyName) {
		w.enc.putInts(data)
	}
}

func (w *writer) WriteFloatArray(propertyName string, data []float32) {
	if len(data) == 0 {
		return
	}
	if w.property(kindFloatArray, propertyName) {
		w.enc.putFloats(data)
	}
}

func (w *writer) WriteByteArray(propertyName string, data []byte) {
	if len(data) == 0 {
		return
	}
	if w.property(kindByteArray, propertyName) {
		w.enc.putBytes(data)
	}
}

// Close finishes the document, flushes it and releases the stream.
func (w *writer) Close() error {
	if w.closed {
		return w.err
	}
	if len(w.frames) != 0 {
		w.failf(ErrListProtocol, "writer closed inside %s", w.frames[len(w.frames)-1].class)
	}
	w.fail(w.enc.finish(w.rootWritten))
	w.fail(w.release())
	return w.err
}
