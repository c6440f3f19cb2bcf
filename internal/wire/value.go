package wire

import (
	"bytes"
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
	"unicode/utf16"
)

// Value is a sealed interface over everything an engine can send or receive.
type Value interface {
	wireValue()
}

// Kind names the concrete type of a Value. The realm type registry is keyed
// by Kind.
type Kind string

const (
	KindNull    Kind = "null"
	KindBool    Kind = "bool"
	KindInt     Kind = "int"
	KindFloat   Kind = "float"
	KindDouble  Kind = "double"
	KindString  Kind = "string"
	KindDate    Kind = "date"
	KindData    Kind = "data"
	KindObject  Kind = "object"
	KindList    Kind = "list"
	KindResults Kind = "results"
	KindArray   Kind = "array"
	KindMap     Kind = "map"
)

// Null is the absent value.
type Null struct{}

func (Null) wireValue() {}

// Bool is a boolean.
type Bool bool

func (Bool) wireValue() {}

// Int is a 64-bit integer.
type Int int64

func (Int) wireValue() {}

// Float is a single precision float.
type Float float32

func (Float) wireValue() {}

// Double is a double precision float.
type Double float64

func (Double) wireValue() {}

// String is a UTF-8 string.
type String string

func (String) wireValue() {}

// Date is a point in time.
type Date struct {
	time.Time
}

func (Date) wireValue() {}

// Data is an opaque binary blob.
type Data []byte

func (Data) wireValue() {}

// Object references one stored record.
type Object struct {
	Type string
	ID   int64
}

func (Object) wireValue() {}

func (o Object) String() string {
	return fmt.Sprintf("%s#%d", o.Type, o.ID)
}

// Collection is implemented by the two live collection references.
type Collection interface {
	Value
	collection()
	// ElementType is the object type of the collection's elements.
	ElementType() string
}

// Results references a query result set held by the engine.
type Results struct {
	ID         int64
	ObjectType string
}

func (Results) wireValue()  {}
func (Results) collection() {}

func (r Results) ElementType() string { return r.ObjectType }

// List references a list-of-links property of one object.
type List struct {
	Owner      Object
	Property   string
	ObjectType string
}

func (List) wireValue()  {}
func (List) collection() {}

func (l List) ElementType() string { return l.ObjectType }

// Array is an ordered sequence of values. Used for positional create
// arguments and list assignment.
type Array []Value

func (Array) wireValue() {}

// Map is a set of named values. Used for create arguments and for assigning
// a plain value map to a link property.
type Map map[string]Value

func (Map) wireValue() {}

// KindOf reports the Kind of v. A nil Value is KindNull.
func KindOf(v Value) Kind {
	switch v.(type) {
	case nil, Null:
		return KindNull
	case Bool:
		return KindBool
	case Int:
		return KindInt
	case Float:
		return KindFloat
	case Double:
		return KindDouble
	case String:
		return KindString
	case Date:
		return KindDate
	case Data:
		return KindData
	case Object:
		return KindObject
	case List:
		return KindList
	case Results:
		return KindResults
	case Array:
		return KindArray
	case Map:
		return KindMap
	default:
		panic(fmt.Sprintf("wire: unknown value type %T", v))
	}
}

// IsNull reports whether v is absent.
func IsNull(v Value) bool {
	_, ok := v.(Null)
	return v == nil || ok
}

// SortedKeys returns map keys in RFC 8785 order (UTF-16 code units).
func (m Map) SortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings by UTF-16 code units. Go's native
// string order is by UTF-8 bytes, which differs for supplementary planes.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	for i := 0; i < min(len(a16), len(b16)); i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	return len(a16) - len(b16)
}

// Native converts a scalar value to its Go representation:
// nil, bool, int64, float32, float64, string, time.Time or []byte.
// Arrays and maps convert element-wise. References are returned unchanged.
func Native(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case Bool:
		return bool(val)
	case Int:
		return int64(val)
	case Float:
		return float32(val)
	case Double:
		return float64(val)
	case String:
		return string(val)
	case Date:
		return val.Time
	case Data:
		return bytes.Clone([]byte(val))
	case Array:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = Native(e)
		}
		return out
	case Map:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = Native(e)
		}
		return out
	default:
		return v
	}
}

// FromScalar converts a Go scalar to a Value. Supported inputs are nil,
// bool, every integer type, float32, float64, string, time.Time, []byte and
// any Value. Containers are handled by From.
func FromScalar(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint:
		return fromUint(uint64(val))
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case uint64:
		return fromUint(val)
	case float32:
		return Float(val), nil
	case float64:
		return Double(val), nil
	case string:
		return String(val), nil
	case time.Time:
		return Date{val}, nil
	case *time.Time:
		if val == nil {
			return Null{}, nil
		}
		return Date{*val}, nil
	case []byte:
		if val == nil {
			return Null{}, nil
		}
		return Data(bytes.Clone(val)), nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

func fromUint(u uint64) (Value, error) {
	if u > math.MaxInt64 {
		return nil, fmt.Errorf("integer %d overflows int64", u)
	}
	return Int(int64(u)), nil
}

// From converts a Go value, including []any and map[string]any containers,
// to a Value.
func From(v any) (Value, error) {
	switch val := v.(type) {
	case []any:
		arr := make(Array, len(val))
		for i, e := range val {
			w, err := From(e)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = w
		}
		return arr, nil
	case map[string]any:
		m := make(Map, len(val))
		for k, e := range val {
			w, err := From(e)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			m[k] = w
		}
		return m, nil
	default:
		return FromScalar(v)
	}
}

// Equal reports whether two values are observationally equal. Numbers
// compare across Int, Float and Double.
func Equal(a, b Value) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}
	if _, ok := AsFloat(a); ok {
		c, ok := CompareNumbers(a, b)
		return ok && c == 0
	}
	switch x := a.(type) {
	case Bool:
		y, ok := b.(Bool)
		return ok && x == y
	case String:
		y, ok := b.(String)
		return ok && x == y
	case Date:
		y, ok := b.(Date)
		return ok && x.Equal(y.Time)
	case Data:
		y, ok := b.(Data)
		return ok && bytes.Equal(x, y)
	case Object:
		y, ok := b.(Object)
		return ok && x == y
	case Array:
		y, ok := b.(Array)
		return ok && slices.EqualFunc(x, y, Equal)
	case Map:
		y, ok := b.(Map)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, xv := range x {
			yv, ok := y[k]
			if !ok || !Equal(xv, yv) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

// CompareNumbers orders two numeric values. Two Ints compare exactly as
// int64; any other pair compares as float64. ok is false unless both sides
// are numeric.
func CompareNumbers(a, b Value) (int, bool) {
	if x, ok := a.(Int); ok {
		if y, ok := b.(Int); ok {
			return cmp.Compare(x, y), true
		}
	}
	fa, ok := AsFloat(a)
	if !ok {
		return 0, false
	}
	fb, ok := AsFloat(b)
	if !ok {
		return 0, false
	}
	return cmp.Compare(fa, fb), true
}

// AsFloat widens numeric values to float64.
func AsFloat(v Value) (float64, bool) {
	switch n := v.(type) {
	case Int:
		return float64(n), true
	case Float:
		return float64(n), true
	case Double:
		return float64(n), true
	}
	return 0, false
}

// Format renders v for diagnostics.
func Format(v Value) string {
	switch val := v.(type) {
	case nil, Null:
		return "null"
	case String:
		return fmt.Sprintf("%q", string(val))
	case Date:
		return val.UTC().Format(time.RFC3339Nano)
	case Data:
		return fmt.Sprintf("<%d bytes>", len(val))
	case Array:
		parts := make([]string, len(val))
		for i, e := range val {
			parts[i] = Format(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case Map:
		keys := val.SortedKeys()
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + Format(val[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case List:
		return fmt.Sprintf("%s.%s", val.Owner, val.Property)
	case Results:
		return fmt.Sprintf("results#%d<%s>", val.ID, val.ObjectType)
	default:
		return fmt.Sprintf("%v", val)
	}
}
