package serializer

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"

	"github.com/gpengine/gameplay/pkg/generic"
)

// Binary layout:
//
//	magic "GPB\x00" | major | minor | root object | xxhash64 (LE) of all prior bytes
//
// An object is a presence byte (0 = null) followed by the class name and
// tagged property records (kind, name, payload) up to a kindEnd byte.
// Strings and arrays are uvarint-length prefixed, list counts are uint32.
var binaryMagic = [4]byte{'G', 'P', 'B', 0}

const (
	binaryHeaderSize  = len(binaryMagic) + 2
	binaryTrailerSize = 8
	maxListCount      = 1 << 24
)

// bufferPool keeps a couple of writers ready for the config and first
// scene saves.
var bufferPool = generic.NewHotPool(
	func() *bufio.Writer { return bufio.NewWriterSize(io.Discard, 32<<10) },
	func(b *bufio.Writer) { b.Reset(io.Discard) },
	2,
)

type binaryEncoder struct {
	out     *bufio.Writer
	digest  *xxhash.Digest
	w       io.Writer
	scratch [binary.MaxVarintLen64]byte
	err     error
}

// NewBinaryWriter starts a binary write session on w. If w is an
// io.Closer it is closed by the writer's Close.
func NewBinaryWriter(path string, w io.Writer) Writer {
	out := bufferPool.Get()
	out.Reset(w)
	enc := &binaryEncoder{out: out, digest: xxhash.New()}
	enc.w = io.MultiWriter(out, enc.digest)

	wr := newWriter(path, FormatBinary, enc)
	if c, ok := w.(io.Closer); ok {
		wr.closer = c
	}
	enc.write(binaryMagic[:])
	enc.write(wr.version[:])
	return wr
}

func (e *binaryEncoder) write(p []byte) {
	if e.err != nil {
		return
	}
	_, e.err = e.w.Write(p)
}

func (e *binaryEncoder) u8(b byte) {
	e.scratch[0] = b
	e.write(e.scratch[:1])
}

func (e *binaryEncoder) uvarint(v uint64) {
	n := binary.PutUvarint(e.scratch[:], v)
	e.write(e.scratch[:n])
}

func (e *binaryEncoder) varint(v int64) {
	n := binary.PutVarint(e.scratch[:], v)
	e.write(e.scratch[:n])
}

func (e *binaryEncoder) uint32(v uint32) {
	binary.LittleEndian.PutUint32(e.scratch[:4], v)
	e.write(e.scratch[:4])
}

func (e *binaryEncoder) float(v float32) {
	e.uint32(math.Float32bits(v))
}

func (e *binaryEncoder) str(s string) {
	e.uvarint(uint64(len(s)))
	if e.err == nil {
		_, e.err = io.WriteString(e.w, s)
	}
}

func (e *binaryEncoder) beginRoot() {}

func (e *binaryEncoder) beginField(k kind, name string) {
	e.u8(byte(k))
	e.str(name)
}

func (e *binaryEncoder) beginItem() {}

func (e *binaryEncoder) putBool(v bool) {
	if v {
		e.u8(1)
	} else {
		e.u8(0)
	}
}

func (e *binaryEncoder) putInt(v int)            { e.varint(int64(v)) }
func (e *binaryEncoder) putFloat(v float32)      { e.float(v) }
func (e *binaryEncoder) putEnum(_ string, v int) { e.varint(int64(v)) }
func (e *binaryEncoder) putString(v string)      { e.str(v) }
func (e *binaryEncoder) putNull()                { e.u8(0) }
func (e *binaryEncoder) beginList(count int)     { e.uint32(uint32(count)) }
func (e *binaryEncoder) endObject()              { e.u8(byte(kindEnd)) }

func (e *binaryEncoder) endList() {}

func (e *binaryEncoder) beginObject(class string) {
	e.u8(1)
	e.str(class)
}

// putFloats writes vectors, colors and matrices as well as float arrays.
// Fixed-size tuples carry the length too so the decoder stays kind-agnostic.
func (e *binaryEncoder) putFloats(v []float32) {
	e.uvarint(uint64(len(v)))
	for _, f := range v {
		e.float(f)
	}
}

func (e *binaryEncoder) putInts(v []int32) {
	e.uvarint(uint64(len(v)))
	for _, n := range v {
		e.varint(int64(n))
	}
}

func (e *binaryEncoder) putBytes(v []byte) {
	e.uvarint(uint64(len(v)))
	e.write(v)
}

func (e *binaryEncoder) finish(rootWritten bool) error {
	if !rootWritten {
		e.putNull()
	}
	if e.err == nil {
		var sum [binaryTrailerSize]byte
		binary.LittleEndian.PutUint64(sum[:], e.digest.Sum64())
		_, e.err = e.out.Write(sum[:])
	}
	if e.err == nil {
		e.err = e.out.Flush()
	}
	bufferPool.Put(e.out)
	e.out = nil
	e.w = io.Discard
	return e.err
}

// decodeBinary validates the header and checksum and decodes the root
// object (nil when the stream holds a null root).
func decodeBinary(data []byte) (version [2]uint8, root *node, err error) {
	if len(data) < binaryHeaderSize+1+binaryTrailerSize || !bytes.Equal(data[:len(binaryMagic)], binaryMagic[:]) {
		return version, nil, ErrMalformedHeader
	}
	version[0], version[1] = data[4], data[5]
	if !Compatible(version[0], version[1]) {
		return version, nil, errors.Mark(errors.Newf("stream version %d.%d", version[0], version[1]), ErrUnsupportedVersion)
	}
	body := data[:len(data)-binaryTrailerSize]
	want := binary.LittleEndian.Uint64(data[len(body):])
	if got := xxhash.Sum64(body); got != want {
		return version, nil, errors.Mark(errors.Newf("checksum %x, want %x", got, want), ErrChecksumMismatch)
	}
	d := &binaryDecoder{buf: body, pos: binaryHeaderSize}
	root = d.object()
	if d.err == nil && d.pos != len(d.buf) {
		d.corrupt("%d trailing bytes", len(d.buf)-d.pos)
	}
	return version, root, d.err
}

type binaryDecoder struct {
	buf []byte
	pos int
	err error
}

func (d *binaryDecoder) corrupt(format string, args ...any) {
	if d.err == nil {
		d.err = errors.Mark(errors.Newf("offset %d: "+format, append([]any{d.pos}, args...)...), ErrCorrupt)
	}
}

func (d *binaryDecoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || len(d.buf)-d.pos < n {
		d.corrupt("truncated, need %d bytes", n)
		return nil
	}
	p := d.buf[d.pos : d.pos+n]
	d.pos += n
	return p
}

func (d *binaryDecoder) u8() byte {
	p := d.take(1)
	if p == nil {
		return 0
	}
	return p[0]
}

func (d *binaryDecoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.buf[d.pos:])
	if n <= 0 {
		d.corrupt("bad uvarint")
		return 0
	}
	d.pos += n
	return v
}

func (d *binaryDecoder) varint() int64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Varint(d.buf[d.pos:])
	if n <= 0 {
		d.corrupt("bad varint")
		return 0
	}
	d.pos += n
	return v
}

func (d *binaryDecoder) length() int {
	n := d.uvarint()
	if n > uint64(len(d.buf)-d.pos) {
		d.corrupt("length %d exceeds stream", n)
		return 0
	}
	return int(n)
}

func (d *binaryDecoder) float() float32 {
	p := d.take(4)
	if p == nil {
		return 0
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(p))
}

func (d *binaryDecoder) str() string {
	return string(d.take(d.length()))
}

func (d *binaryDecoder) count() int {
	p := d.take(4)
	if p == nil {
		return 0
	}
	n := binary.LittleEndian.Uint32(p)
	if n > maxListCount {
		d.corrupt("list count %d too large", n)
		return 0
	}
	// every item takes at least one byte
	if int(n) > len(d.buf)-d.pos {
		d.corrupt("list count %d exceeds stream", n)
		return 0
	}
	return int(n)
}

func (d *binaryDecoder) floats() []float32 {
	n := d.length()
	out := make([]float32, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		out = append(out, d.float())
	}
	return out
}

func (d *binaryDecoder) object() *node {
	switch d.u8() {
	case 0:
		return nil
	case 1:
	default:
		d.corrupt("bad object marker")
		return nil
	}
	n := newNode(d.str())
	for d.err == nil {
		k := kind(d.u8())
		if k == kindEnd {
			break
		}
		name := d.str()
		n.props[name] = d.value(k)
	}
	return n
}

func (d *binaryDecoder) value(k kind) any {
	switch k {
	case kindBool:
		return d.u8() != 0
	case kindInt, kindEnum:
		return d.varint()
	case kindFloat:
		return d.float()
	case kindVector2, kindVector3, kindVector4, kindColor3, kindColor4, kindMatrix, kindFloatArray:
		return d.floats()
	case kindString:
		return d.str()
	case kindStringList:
		n := d.count()
		out := make([]string, 0, n)
		for i := 0; i < n && d.err == nil; i++ {
			out = append(out, d.str())
		}
		return out
	case kindObject:
		if n := d.object(); n != nil {
			return n
		}
		return nil
	case kindObjectList:
		n := d.count()
		out := make([]*node, 0, n)
		for i := 0; i < n && d.err == nil; i++ {
			out = append(out, d.object())
		}
		return out
	case kindIntArray:
		n := d.length()
		out := make([]int32, 0, n)
		for i := 0; i < n && d.err == nil; i++ {
			out = append(out, int32(d.varint()))
		}
		return out
	case kindByteArray:
		return bytes.Clone(d.take(d.length()))
	default:
		d.corrupt("unknown property kind %d", k)
		return nil
	}
}
