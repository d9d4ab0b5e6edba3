package jacrt

import (
	"math"
	"strconv"
)

// Value is a NaN-boxed JavaScript value in the engine's native layout:
// the tag lives in the high 32 bits, the payload in the low 32 bits, and
// doubles are stored with an offset so that every non-float tag falls in
// the NaN space.
type Value uint64

// Value tags.
const (
	TagFirst         int32 = -11
	TagObject        int32 = -1
	TagInt           int32 = 0
	TagBool          int32 = 1
	TagNull          int32 = 2
	TagUndefined     int32 = 3
	TagUninitialized int32 = 4
	TagCatchOffset   int32 = 5
	TagException     int32 = 6
	TagFloat64       int32 = 7
)

const float64TagAddend = uint64(0x7ff80000-int64(TagFirst)+1) << 32

// Well-known constants.
var (
	Undefined     = mkval(TagUndefined, 0)
	Null          = mkval(TagNull, 0)
	True          = mkval(TagBool, 1)
	False         = mkval(TagBool, 0)
	Uninitialized = mkval(TagUninitialized, 0)
	Exception     = mkval(TagException, 0)
	NaN           = Value(0xfffffff400000000) // canonical quiet NaN, stored offset
)

func mkval(tag int32, payload uint32) Value {
	return Value(uint64(uint32(tag))<<32 | uint64(payload))
}

// Int boxes an int32.
func Int(i int32) Value {
	return mkval(TagInt, uint32(i))
}

// Bool boxes a boolean.
func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

// Float boxes a float64. NaNs are canonicalized.
func Float(f float64) Value {
	u := math.Float64bits(f)
	if u&0x7fffffffffffffff > 0x7ff0000000000000 {
		return NaN
	}
	return Value(u - float64TagAddend)
}

// Number boxes f as an int when it is an int32 other than -0, else as a float.
func Number(f float64) Value {
	if i := int32(f); float64(i) == f && !(f == 0 && math.Signbit(f)) {
		return Int(i)
	}
	return Float(f)
}

// Object boxes an object table reference.
func Object(ref uint32) Value {
	return mkval(TagObject, ref)
}

// Tag returns the normalized tag; every double reports TagFloat64.
func (v Value) Tag() int32 {
	tag := int32(uint64(v) >> 32)
	if uint32(tag-TagFirst) >= uint32(TagFloat64-TagFirst) {
		return TagFloat64
	}
	return tag
}

func (v Value) IsInt() bool           { return v.Tag() == TagInt }
func (v Value) IsFloat() bool         { return v.Tag() == TagFloat64 }
func (v Value) IsNumber() bool        { t := v.Tag(); return t == TagInt || t == TagFloat64 }
func (v Value) IsBool() bool          { return v.Tag() == TagBool }
func (v Value) IsNull() bool          { return v.Tag() == TagNull }
func (v Value) IsUndefined() bool     { return v.Tag() == TagUndefined }
func (v Value) IsUninitialized() bool { return v.Tag() == TagUninitialized }
func (v Value) IsObject() bool        { return v.Tag() == TagObject }
func (v Value) IsException() bool     { return v.Tag() == TagException }

// Int32 returns the payload of an int value.
func (v Value) Int32() int32 {
	return int32(uint32(v))
}

// Float64 returns the payload of a float value.
func (v Value) Float64() float64 {
	return math.Float64frombits(uint64(v) + float64TagAddend)
}

// Truthy returns the payload of a bool value.
func (v Value) Truthy() bool {
	return uint32(v) != 0
}

// Ref returns the object table reference of an object value.
func (v Value) Ref() uint32 {
	return uint32(v)
}

// Num returns the numeric value of an int or float.
func (v Value) Num() (float64, bool) {
	switch v.Tag() {
	case TagInt:
		return float64(v.Int32()), true
	case TagFloat64:
		return v.Float64(), true
	}
	return 0, false
}

// TypeName returns the typeof-style name of the value's type.
func (v Value) TypeName() string {
	switch v.Tag() {
	case TagInt, TagFloat64:
		return "number"
	case TagBool:
		return "boolean"
	case TagNull:
		return "object"
	case TagUndefined:
		return "undefined"
	case TagObject:
		return "object"
	case TagUninitialized:
		return "uninitialized"
	}
	return "internal"
}

func (v Value) String() string {
	switch v.Tag() {
	case TagInt:
		return strconv.Itoa(int(v.Int32()))
	case TagFloat64:
		return formatNumber(v.Float64())
	case TagBool:
		return strconv.FormatBool(v.Truthy())
	case TagNull:
		return "null"
	case TagUndefined:
		return "undefined"
	case TagUninitialized:
		return "<uninitialized>"
	case TagObject:
		return "[object #" + strconv.FormatUint(uint64(v.Ref()), 10) + "]"
	case TagException:
		return "<exception>"
	}
	return "<tag " + strconv.Itoa(int(v.Tag())) + ">"
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
