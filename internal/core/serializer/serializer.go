// Package serializer persists Serializable object graphs to and from a
// stream in either a binary or a JSON format.
//
// A session is strictly a Reader or a Writer. Object graphs are trees:
// objects are written with their class name so a Reader can recreate
// them through an Activator without knowing the concrete types up front.
//
// Lists use an announce-then-stream protocol: WriteObjectList (or
// WriteStringList) announces the count and must be followed by exactly
// that many WriteObject (or WriteString) calls with an empty property
// name. Readers mirror this with ReadObjectList/ReadStringList.
package serializer

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Format identifies the wire format of a session.
type Format uint8

const (
	FormatBinary Format = iota
	FormatJSON
)

func (f Format) String() string {
	switch f {
	case FormatBinary:
		return "binary"
	case FormatJSON:
		return "json"
	default:
		return "unknown"
	}
}

// Serializable is implemented by every engine entity that takes part in
// an object graph.
type Serializable interface {
	// ClassName returns the namespaced activation key, e.g. "gameplay::Camera".
	ClassName() string
	OnSerialize(w Writer)
	OnDeserialize(r Reader)
}

// Serializer holds what read and write sessions have in common.
type Serializer interface {
	Path() string
	Format() Format
	// VersionMajor and VersionMinor report the engine version stamped on
	// the stream. Readers use them to apply compatibility shims.
	VersionMajor() uint8
	VersionMinor() uint8
	// Err returns the first error recorded by the session.
	Err() error
	// Close releases the underlying stream. Writers flush first. Calling
	// Close more than once is safe.
	Close() error
}

// Writer serializes properties of the object currently being written.
// A value equal to its default may be omitted from the stream.
type Writer interface {
	Serializer

	WriteEnum(propertyName, enumName string, value, defaultValue int)
	WriteBool(propertyName string, value, defaultValue bool)
	WriteInt(propertyName string, value, defaultValue int)
	WriteFloat(propertyName string, value, defaultValue float32)
	WriteVector2(propertyName string, value, defaultValue mgl32.Vec2)
	WriteVector3(propertyName string, value, defaultValue mgl32.Vec3)
	WriteVector4(propertyName string, value, defaultValue mgl32.Vec4)
	// WriteColor3 writes an RGB color.
	WriteColor3(propertyName string, value, defaultValue mgl32.Vec3)
	// WriteColor4 writes an RGBA color.
	WriteColor4(propertyName string, value, defaultValue mgl32.Vec4)
	WriteMatrix(propertyName string, value, defaultValue mgl32.Mat4)
	// WriteString writes a named string, or the next list item when
	// propertyName is empty.
	WriteString(propertyName, value, defaultValue string)
	WriteStringList(propertyName string, count int)
	// WriteObject writes a named object, the next list item when
	// propertyName is empty and a list is open, or the root object.
	WriteObject(propertyName string, value Serializable)
	WriteObjectList(propertyName string, count int)
	WriteIntArray(propertyName string, data []int32)
	WriteFloatArray(propertyName string, data []float32)
	WriteByteArray(propertyName string, data []byte)
}

// Reader deserializes properties of the object currently being read.
// An absent property yields the supplied default. After the first error
// every property reads as absent and ReadObject returns that error.
type Reader interface {
	Serializer

	// ReadEnum returns defaultValue when the property is absent or its
	// stored name does not parse.
	ReadEnum(propertyName, enumName string, defaultValue int) int
	ReadBool(propertyName string, defaultValue bool) bool
	ReadInt(propertyName string, defaultValue int) int
	ReadFloat(propertyName string, defaultValue float32) float32
	ReadVector2(propertyName string, defaultValue mgl32.Vec2) mgl32.Vec2
	ReadVector3(propertyName string, defaultValue mgl32.Vec3) mgl32.Vec3
	ReadVector4(propertyName string, defaultValue mgl32.Vec4) mgl32.Vec4
	ReadColor3(propertyName string, defaultValue mgl32.Vec3) mgl32.Vec3
	ReadColor4(propertyName string, defaultValue mgl32.Vec4) mgl32.Vec4
	ReadMatrix(propertyName string, defaultValue mgl32.Mat4) mgl32.Mat4
	// ReadString reads a named string, or the next list item when
	// propertyName is empty.
	ReadString(propertyName, defaultValue string) string
	// ReadStringList returns the number of strings the caller must read next.
	ReadStringList(propertyName string) int
	// ReadObject reads a named object, the next list item when
	// propertyName is empty and a list is open, or a new instance of the
	// root object otherwise. Absent objects read as nil with no error.
	ReadObject(propertyName string) (Serializable, error)
	// ReadObjectList returns the number of objects the caller must read next.
	ReadObjectList(propertyName string) int
	ReadIntArray(propertyName string) []int32
	ReadFloatArray(propertyName string) []float32
	ReadByteArray(propertyName string) []byte
}
