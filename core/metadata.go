package core

import (
	"encoding/gob"
	"fmt"
	"math"
	"sort"
)

// Kind identifies the variant held by a Metadata value.
type Kind uint8

const (
	KindNull Kind = iota
	KindText
	KindInteger
	KindFloat
	KindBoolean
	KindBytes
	KindList
	KindObject
)

var kindNames = [...]string{"null", "text", "integer", "float", "boolean", "bytes", "list", "object"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Metadata is the payload stored next to a vector. The set of variants is closed:
// Null, Text, Integer, Float, Boolean, Bytes, List and Object.
type Metadata interface {
	Kind() Kind
	isMetadata()
}

type (
	// Null is an explicit empty payload.
	Null struct{}
	// Text is a string payload.
	Text string
	// Integer is a signed integer payload.
	Integer int64
	// Float is a floating-point payload.
	Float float64
	// Boolean is a boolean payload.
	Boolean bool
	// Bytes is an opaque binary payload.
	Bytes []byte
	// List is an ordered sequence of payloads.
	List []Metadata
	// Object maps field names to payloads.
	Object map[string]Metadata
)

func (Null) Kind() Kind    { return KindNull }
func (Text) Kind() Kind    { return KindText }
func (Integer) Kind() Kind { return KindInteger }
func (Float) Kind() Kind   { return KindFloat }
func (Boolean) Kind() Kind { return KindBoolean }
func (Bytes) Kind() Kind   { return KindBytes }
func (List) Kind() Kind    { return KindList }
func (Object) Kind() Kind  { return KindObject }

func (Null) isMetadata()    {}
func (Text) isMetadata()    {}
func (Integer) isMetadata() {}
func (Float) isMetadata()   {}
func (Boolean) isMetadata() {}
func (Bytes) isMetadata()   {}
func (List) isMetadata()    {}
func (Object) isMetadata()  {}

// GobEncode lets Null travel through gob, which rejects structs without exported fields.
func (Null) GobEncode() ([]byte, error) { return []byte{}, nil }

// GobDecode is the counterpart of GobEncode.
func (*Null) GobDecode([]byte) error { return nil }

// KindOf returns the kind of m, treating a nil interface as Null.
func KindOf(m Metadata) Kind {
	if m == nil {
		return KindNull
	}
	return m.Kind()
}

// MetadataFromAny converts a decoded JSON or YAML value into Metadata.
func MetadataFromAny(v any) (Metadata, error) {
	switch x := v.(type) {
	case nil:
		return Null{}, nil
	case Metadata:
		return x, nil
	case string:
		return Text(x), nil
	case bool:
		return Boolean(x), nil
	case int:
		return Integer(x), nil
	case int64:
		return Integer(x), nil
	case float32:
		return Float(x), nil
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return Integer(int64(x)), nil
		}
		return Float(x), nil
	case []byte:
		return Bytes(x), nil
	case []any:
		out := make(List, len(x))
		for i, e := range x {
			m, err := MetadataFromAny(e)
			if err != nil {
				return nil, fmt.Errorf("list element %d: %w", i, err)
			}
			out[i] = m
		}
		return out, nil
	case map[string]any:
		out := make(Object, len(x))
		for k, e := range x {
			m, err := MetadataFromAny(e)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			out[k] = m
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported metadata value of type %T", v)
	}
}

// ToAny converts Metadata back into plain Go values suitable for JSON encoding.
func ToAny(m Metadata) any {
	switch x := m.(type) {
	case nil, Null:
		return nil
	case Text:
		return string(x)
	case Integer:
		return int64(x)
	case Float:
		return float64(x)
	case Boolean:
		return bool(x)
	case Bytes:
		return []byte(x)
	case List:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = ToAny(e)
		}
		return out
	case Object:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = ToAny(e)
		}
		return out
	default:
		return nil
	}
}

// EqualMetadata reports whether a and b hold the same variant and value.
func EqualMetadata(a, b Metadata) bool {
	if KindOf(a) != KindOf(b) {
		return false
	}
	switch x := a.(type) {
	case nil, Null:
		return true
	case Bytes:
		y := b.(Bytes)
		return string(x) == string(y)
	case List:
		y := b.(List)
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if !EqualMetadata(x[i], y[i]) {
				return false
			}
		}
		return true
	case Object:
		y := b.(Object)
		if len(x) != len(y) {
			return false
		}
		for k, v := range x {
			w, ok := y[k]
			if !ok || !EqualMetadata(v, w) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

// Keys returns the field names of an Object in sorted order.
func (o Object) Keys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// init registers the metadata variants for gob encoding.
func init() {
	gob.Register(Null{})
	gob.Register(Text(""))
	gob.Register(Integer(0))
	gob.Register(Float(0))
	gob.Register(Boolean(false))
	gob.Register(Bytes(nil))
	gob.Register(List(nil))
	gob.Register(Object(nil))
}
