package serializer

import (
	"bytes"
	"encoding/base64"
	"io"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"
)

// JSON layout:
//
//	{"version": [major, minor], "root": {"@class": "...", "<property>": value, ...}}
//
// Vectors, colors and matrices are number arrays, byte arrays are base64
// strings, enums are their registered names (or numbers when unnamed) and
// null objects are null.
var jsonAPI = jsoniter.Config{
	EscapeHTML:    false,
	IndentionStep: 2,
	UseNumber:     true,
}.Froze()

type jsonEncoder struct {
	stream *jsoniter.Stream
	act    *Activator
	// first tracks, per open container, whether the next member is the first.
	first []bool
}

// NewJSONWriter starts a JSON write session on w. Enum values are written
// by name using act (DefaultActivator when nil). If w is an io.Closer it is
// closed by the writer's Close.
func NewJSONWriter(path string, w io.Writer, act *Activator) Writer {
	if act == nil {
		act = DefaultActivator()
	}
	enc := &jsonEncoder{stream: jsoniter.NewStream(jsonAPI, w, 4096), act: act}
	wr := newWriter(path, FormatJSON, enc)
	if c, ok := w.(io.Closer); ok {
		wr.closer = c
	}

	s := enc.stream
	s.WriteObjectStart()
	s.WriteObjectField("version")
	s.WriteArrayStart()
	s.WriteUint8(wr.version[0])
	s.WriteMore()
	s.WriteUint8(wr.version[1])
	s.WriteArrayEnd()
	enc.first = append(enc.first, false)
	return wr
}

func (e *jsonEncoder) member() {
	top := len(e.first) - 1
	if !e.first[top] {
		e.stream.WriteMore()
	}
	e.first[top] = false
}

func (e *jsonEncoder) beginRoot() {
	e.beginField(kindObject, "root")
}

func (e *jsonEncoder) beginField(_ kind, name string) {
	e.member()
	e.stream.WriteObjectField(name)
}

func (e *jsonEncoder) beginItem() {
	e.member()
}

func (e *jsonEncoder) putBool(v bool)     { e.stream.WriteBool(v) }
func (e *jsonEncoder) putInt(v int)       { e.stream.WriteInt(v) }
func (e *jsonEncoder) putFloat(v float32) { e.stream.WriteFloat32(v) }
func (e *jsonEncoder) putString(v string) { e.stream.WriteString(v) }
func (e *jsonEncoder) putNull()           { e.stream.WriteNil() }
func (e *jsonEncoder) putBytes(v []byte)  { e.stream.WriteString(base64.StdEncoding.EncodeToString(v)) }

// putEnum writes the name of v, or v itself when it has none, so values
// outside the table survive a round trip as they do in binary.
func (e *jsonEncoder) putEnum(n string, v int) {
	if s := e.act.EnumToString(n, v); s != EnumUnknown {
		e.stream.WriteString(s)
		return
	}
	e.stream.WriteInt(v)
}

func (e *jsonEncoder) putFloats(v []float32) {
	e.stream.WriteArrayStart()
	for i, f := range v {
		if i > 0 {
			e.stream.WriteMore()
		}
		e.stream.WriteFloat32(f)
	}
	e.stream.WriteArrayEnd()
}

func (e *jsonEncoder) putInts(v []int32) {
	e.stream.WriteArrayStart()
	for i, n := range v {
		if i > 0 {
			e.stream.WriteMore()
		}
		e.stream.WriteInt32(n)
	}
	e.stream.WriteArrayEnd()
}

func (e *jsonEncoder) beginList(count int) {
	if count == 0 {
		e.stream.WriteEmptyArray()
		e.first = append(e.first, true)
		return
	}
	e.stream.WriteArrayStart()
	e.first = append(e.first, true)
}

func (e *jsonEncoder) endList() {
	empty := e.first[len(e.first)-1]
	e.first = e.first[:len(e.first)-1]
	if !empty {
		e.stream.WriteArrayEnd()
	}
}

func (e *jsonEncoder) beginObject(class string) {
	e.stream.WriteObjectStart()
	e.stream.WriteObjectField(classKey)
	e.stream.WriteString(class)
	e.first = append(e.first, false)
}

func (e *jsonEncoder) endObject() {
	e.first = e.first[:len(e.first)-1]
	e.stream.WriteObjectEnd()
}

func (e *jsonEncoder) finish(rootWritten bool) error {
	if !rootWritten {
		e.beginRoot()
		e.putNull()
	}
	e.stream.WriteObjectEnd()
	e.stream.WriteRaw("\n")
	if e.stream.Error != nil {
		return e.stream.Error
	}
	return e.stream.Flush()
}

// decodeJSON parses a JSON document into the shared node model.
func decodeJSON(data []byte) (version [2]uint8, root *node, err error) {
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")), " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return version, nil, ErrMalformedHeader
	}
	var doc map[string]any
	if err := jsonAPI.Unmarshal(trimmed, &doc); err != nil {
		return version, nil, errors.Mark(errors.Wrap(err, "parse json"), ErrCorrupt)
	}
	v, ok := doc["version"].([]any)
	if !ok || len(v) != 2 {
		return version, nil, errors.Mark(errors.New("missing version"), ErrMalformedHeader)
	}
	for i := range v {
		n, ok := asInt(v[i])
		if !ok || n < 0 || n > 255 {
			return version, nil, errors.Mark(errors.Newf("bad version component %v", v[i]), ErrMalformedHeader)
		}
		version[i] = uint8(n)
	}
	if !Compatible(version[0], version[1]) {
		return version, nil, errors.Mark(errors.Newf("stream version %d.%d", version[0], version[1]), ErrUnsupportedVersion)
	}
	rawRoot, ok := doc["root"]
	if !ok {
		return version, nil, errors.Mark(errors.New("missing root"), ErrMalformedHeader)
	}
	if rawRoot == nil {
		return version, nil, nil
	}
	root, ok = fromJSON(rawRoot).(*node)
	if !ok {
		return version, nil, errors.Mark(errors.New("root is not an object"), ErrCorrupt)
	}
	return version, root, nil
}

// fromJSON turns JSON objects into nodes, keeping other values as decoded.
func fromJSON(v any) any {
	switch t := v.(type) {
	case map[string]any:
		class, _ := t[classKey].(string)
		n := newNode(class)
		for k, e := range t {
			if k == classKey {
				continue
			}
			n.props[k] = fromJSON(e)
		}
		return n
	case []any:
		for i := range t {
			t[i] = fromJSON(t[i])
		}
		return t
	default:
		return v
	}
}
