package serializer

import (
	"encoding/base64"
	"encoding/json"
	"math"
)

// kind tags a property in the binary format and selects the list type
// currently open in a writer frame.
type kind uint8

const (
	kindEnd kind = iota
	kindBool
	kindInt
	kindFloat
	kindEnum
	kindVector2
	kindVector3
	kindVector4
	kindColor3
	kindColor4
	kindMatrix
	kindString
	kindStringList
	kindObject
	kindObjectList
	kindIntArray
	kindFloatArray
	kindByteArray
)

const classKey = "@class"

// node is a decoded object. Property values are format specific:
// the binary decoder produces typed Go values, the JSON decoder produces
// json.Number, string, bool and []any leaves. The conversions below accept
// both.
type node struct {
	class string
	props map[string]any
}

func newNode(class string) *node {
	return &node{class: class, props: make(map[string]any)}
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return asInt(f)
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

func asFloat(v any) (float32, bool) {
	switch n := v.(type) {
	case float32:
		return n, true
	case float64:
		return float32(n), true
	case int64:
		return float32(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return float32(f), true
	default:
		return 0, false
	}
}

// asFloats converts a fixed-size float tuple (vector, color, matrix).
// A size of -1 accepts any length.
func asFloats(v any, size int) ([]float32, bool) {
	switch a := v.(type) {
	case []float32:
		if size >= 0 && len(a) != size {
			return nil, false
		}
		return a, true
	case []any:
		if size >= 0 && len(a) != size {
			return nil, false
		}
		out := make([]float32, len(a))
		for i, e := range a {
			f, ok := asFloat(e)
			if !ok {
				return nil, false
			}
			out[i] = f
		}
		return out, true
	default:
		return nil, false
	}
}

func asInts(v any) ([]int32, bool) {
	switch a := v.(type) {
	case []int32:
		return a, true
	case []any:
		out := make([]int32, len(a))
		for i, e := range a {
			n, ok := asInt(e)
			if !ok || n < math.MinInt32 || n > math.MaxInt32 {
				return nil, false
			}
			out[i] = int32(n)
		}
		return out, true
	default:
		return nil, false
	}
}

func asBytes(v any) ([]byte, bool) {
	switch b := v.(type) {
	case []byte:
		return b, true
	case string:
		out, err := base64.StdEncoding.DecodeString(b)
		if err != nil {
			return nil, false
		}
		return out, true
	default:
		return nil, false
	}
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asStrings(v any) ([]string, bool) {
	switch a := v.(type) {
	case []string:
		return a, true
	case []any:
		out := make([]string, len(a))
		for i, e := range a {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

// asNodes converts an object list. Null items stay nil.
func asNodes(v any) ([]*node, bool) {
	switch a := v.(type) {
	case []*node:
		return a, true
	case []any:
		out := make([]*node, len(a))
		for i, e := range a {
			if e == nil {
				continue
			}
			n, ok := e.(*node)
			if !ok {
				return nil, false
			}
			out[i] = n
		}
		return out, true
	default:
		return nil, false
	}
}
