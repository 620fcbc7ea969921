package core

import (
	"fmt"
	"strconv"
)

// Object represents a PDF object
type Object interface {
	Type() ObjectType
	String() string
}

// ObjectType represents the type of PDF object
type ObjectType int

const (
	ObjNull ObjectType = iota
	ObjBool
	ObjInt
	ObjReal
	ObjString
	ObjName
	ObjArray
	ObjDict
	ObjStream
	ObjIndirect
)

var objectTypeNames = [...]string{
	ObjNull:     "Null",
	ObjBool:     "Bool",
	ObjInt:      "Int",
	ObjReal:     "Real",
	ObjString:   "String",
	ObjName:     "Name",
	ObjArray:    "Array",
	ObjDict:     "Dict",
	ObjStream:   "Stream",
	ObjIndirect: "IndirectRef",
}

// String returns the name of the object type
func (t ObjectType) String() string {
	if t < 0 || int(t) >= len(objectTypeNames) {
		return "Unknown"
	}
	return objectTypeNames[t]
}

// Null represents a PDF null object
type Null struct{}

func (Null) Type() ObjectType { return ObjNull }
func (Null) String() string   { return "null" }

// Bool represents a PDF boolean
type Bool bool

func (b Bool) Type() ObjectType { return ObjBool }
func (b Bool) String() string   { return strconv.FormatBool(bool(b)) }

// Int represents a PDF integer
type Int int64

func (i Int) Type() ObjectType { return ObjInt }
func (i Int) String() string   { return strconv.FormatInt(int64(i), 10) }

// Real represents a PDF real number
type Real float64

func (r Real) Type() ObjectType { return ObjReal }
func (r Real) String() string   { return formatReal(float64(r)) }

// String represents a PDF string. The value holds the raw bytes; whether the
// source used literal or hexadecimal syntax is not preserved.
type String string

func (s String) Type() ObjectType { return ObjString }
func (s String) String() string   { return Format(s) }

// Name represents a PDF name, stored without the leading slash
type Name string

func (n Name) Type() ObjectType { return ObjName }
func (n Name) String() string   { return Format(n) }

// Array represents a PDF array
type Array []Object

func (a Array) Type() ObjectType { return ObjArray }
func (a Array) String() string   { return Format(a) }

// Get retrieves an element at the given index, or nil when out of range
func (a Array) Get(index int) Object {
	if index < 0 || index >= len(a) {
		return nil
	}
	return a[index]
}

// Floats converts an all-numeric array to float64 values.
func (a Array) Floats() ([]float64, bool) {
	out := make([]float64, len(a))
	for i, o := range a {
		f, ok := Number(o)
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

// Dict represents a PDF dictionary keyed by name (without slash)
type Dict map[string]Object

func (d Dict) Type() ObjectType { return ObjDict }
func (d Dict) String() string   { return Format(d) }

// Get retrieves a value from the dictionary
func (d Dict) Get(key string) Object {
	return d[key]
}

// GetName retrieves a name value
func (d Dict) GetName(key string) (Name, bool) {
	n, ok := d[key].(Name)
	return n, ok
}

// GetInt retrieves an integer value
func (d Dict) GetInt(key string) (Int, bool) {
	i, ok := d[key].(Int)
	return i, ok
}

// GetNumber retrieves an integer or real value as float64
func (d Dict) GetNumber(key string) (float64, bool) {
	return Number(d[key])
}

// GetDict retrieves a dictionary value
func (d Dict) GetDict(key string) (Dict, bool) {
	v, ok := d[key].(Dict)
	return v, ok
}

// GetArray retrieves an array value
func (d Dict) GetArray(key string) (Array, bool) {
	v, ok := d[key].(Array)
	return v, ok
}

// GetString retrieves a string value
func (d Dict) GetString(key string) (String, bool) {
	v, ok := d[key].(String)
	return v, ok
}

// GetBool retrieves a boolean value
func (d Dict) GetBool(key string) (Bool, bool) {
	v, ok := d[key].(Bool)
	return v, ok
}

// GetIndirectRef retrieves an indirect reference
func (d Dict) GetIndirectRef(key string) (IndirectRef, bool) {
	v, ok := d[key].(IndirectRef)
	return v, ok
}

// Has checks if a key exists in the dictionary
func (d Dict) Has(key string) bool {
	_, ok := d[key]
	return ok
}

// Clone returns a shallow copy of the dictionary
func (d Dict) Clone() Dict {
	c := make(Dict, len(d))
	for k, v := range d {
		c[k] = v
	}
	return c
}

// Stream represents a PDF stream object. Data holds the bytes exactly as
// stored, i.e. still encoded with the filters named in Dict.
type Stream struct {
	Dict Dict
	Data []byte
}

func (s *Stream) Type() ObjectType { return ObjStream }
func (s *Stream) String() string {
	return fmt.Sprintf("stream %s (%d bytes)", s.Dict.String(), len(s.Data))
}

// IndirectRef represents an indirect object reference
type IndirectRef struct {
	Number     int
	Generation int
}

func (r IndirectRef) Type() ObjectType { return ObjIndirect }
func (r IndirectRef) String() string {
	return fmt.Sprintf("%d %d R", r.Number, r.Generation)
}

// IndirectObject represents an indirect object with its reference
type IndirectObject struct {
	Ref    IndirectRef
	Object Object
}

// Number returns the value of an Int or Real.
func Number(o Object) (float64, bool) {
	switch v := o.(type) {
	case Int:
		return float64(v), true
	case Real:
		return float64(v), true
	}
	return 0, false
}

// Refs appends every indirect reference reachable inside o, without
// following the references themselves.
func Refs(o Object, dst []IndirectRef) []IndirectRef {
	switch v := o.(type) {
	case IndirectRef:
		dst = append(dst, v)
	case Array:
		for _, e := range v {
			dst = Refs(e, dst)
		}
	case Dict:
		for _, e := range v {
			dst = Refs(e, dst)
		}
	case *Stream:
		dst = Refs(v.Dict, dst)
	}
	return dst
}

// RewriteRefs replaces, in place, every indirect reference inside o for
// which fn returns a different reference. It reports whether anything
// changed. A top-level IndirectRef cannot be rewritten in place; callers
// handle that case themselves.
func RewriteRefs(o Object, fn func(IndirectRef) IndirectRef) bool {
	changed := false
	switch v := o.(type) {
	case Array:
		for i, e := range v {
			if ref, ok := e.(IndirectRef); ok {
				if n := fn(ref); n != ref {
					v[i] = n
					changed = true
				}
				continue
			}
			if RewriteRefs(e, fn) {
				changed = true
			}
		}
	case Dict:
		for k, e := range v {
			if ref, ok := e.(IndirectRef); ok {
				if n := fn(ref); n != ref {
					v[k] = n
					changed = true
				}
				continue
			}
			if RewriteRefs(e, fn) {
				changed = true
			}
		}
	case *Stream:
		changed = RewriteRefs(v.Dict, fn)
	}
	return changed
}
