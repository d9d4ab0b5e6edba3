package jacrt

import (
	"math"

	"github.com/wippyai/jac/errors"
)

// BinaryOp is a boxed two-operand helper.
type BinaryOp func(a, b Value) (Value, error)

// UnaryOp is a boxed one-operand helper.
type UnaryOp func(v Value) (Value, error)

// ToNumber converts a primitive to a number. Objects are rejected since
// compiled code has no access to user-defined conversions.
func ToNumber(v Value) (float64, error) {
	switch v.Tag() {
	case TagInt:
		return float64(v.Int32()), nil
	case TagFloat64:
		return v.Float64(), nil
	case TagBool:
		if v.Truthy() {
			return 1, nil
		}
		return 0, nil
	case TagNull:
		return 0, nil
	case TagUndefined:
		return math.NaN(), nil
	case TagUninitialized:
		return 0, errors.Uninitialized("variable")
	}
	return 0, errors.TypeError("cannot convert %s to number", v.TypeName())
}

// ToBool implements JavaScript truthiness.
func ToBool(v Value) bool {
	switch v.Tag() {
	case TagInt:
		return v.Int32() != 0
	case TagFloat64:
		f := v.Float64()
		return f != 0 && !math.IsNaN(f)
	case TagBool:
		return v.Truthy()
	case TagObject:
		return true
	}
	return false
}

// ToInt32 implements the ToInt32 abstract operation.
func ToInt32(v Value) (int32, error) {
	if v.IsInt() {
		return v.Int32(), nil
	}
	f, err := ToNumber(v)
	if err != nil {
		return 0, err
	}
	return float64ToInt32(f), nil
}

func float64ToInt32(f float64) int32 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	f = math.Mod(math.Trunc(f), 1<<32)
	return int32(uint32(int64(f)))
}

// ToNumeric returns v as a number value, keeping ints boxed as ints.
func ToNumeric(v Value) (Value, error) {
	if v.IsNumber() {
		return v, nil
	}
	f, err := ToNumber(v)
	if err != nil {
		return 0, err
	}
	return Number(f), nil
}

func operands(a, b Value) (float64, float64, error) {
	x, err := ToNumber(a)
	if err != nil {
		return 0, 0, err
	}
	y, err := ToNumber(b)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

func arith(fast func(x, y int64) (int64, bool), slow func(x, y float64) float64) BinaryOp {
	return func(a, b Value) (Value, error) {
		if a.IsInt() && b.IsInt() && fast != nil {
			if r, ok := fast(int64(a.Int32()), int64(b.Int32())); ok && r >= math.MinInt32 && r <= math.MaxInt32 {
				return Int(int32(r)), nil
			}
		}
		x, y, err := operands(a, b)
		if err != nil {
			return 0, err
		}
		return Number(slow(x, y)), nil
	}
}

func bitwise(op func(x, y int32) int32) BinaryOp {
	return func(a, b Value) (Value, error) {
		x, err := ToInt32(a)
		if err != nil {
			return 0, err
		}
		y, err := ToInt32(b)
		if err != nil {
			return 0, err
		}
		return Int(op(x, y)), nil
	}
}

func compare(op func(x, y float64) bool) BinaryOp {
	return func(a, b Value) (Value, error) {
		if a.IsInt() && b.IsInt() {
			return Bool(op(float64(a.Int32()), float64(b.Int32()))), nil
		}
		x, y, err := operands(a, b)
		if err != nil {
			return 0, err
		}
		// Comparisons involving NaN are false.
		if math.IsNaN(x) || math.IsNaN(y) {
			return False, nil
		}
		return Bool(op(x, y)), nil
	}
}

var (
	Add = arith(
		func(x, y int64) (int64, bool) { return x + y, true },
		func(x, y float64) float64 { return x + y })
	Sub = arith(
		func(x, y int64) (int64, bool) { return x - y, true },
		func(x, y float64) float64 { return x - y })
	Mul = arith(
		func(x, y int64) (int64, bool) {
			r := x * y
			// A zero product with a negative operand is -0.
			return r, r != 0 || (x >= 0 && y >= 0)
		},
		func(x, y float64) float64 { return x * y })
	Div = arith(nil, func(x, y float64) float64 { return x / y })
	Mod = arith(
		func(x, y int64) (int64, bool) {
			if y == 0 || x < 0 {
				return 0, false
			}
			return x % y, true
		},
		math.Mod)
	Pow = arith(nil, jsPow)

	And = bitwise(func(x, y int32) int32 { return x & y })
	Or  = bitwise(func(x, y int32) int32 { return x | y })
	Xor = bitwise(func(x, y int32) int32 { return x ^ y })
	Shl = bitwise(func(x, y int32) int32 { return x << (uint32(y) & 31) })
	Sar = bitwise(func(x, y int32) int32 { return x >> (uint32(y) & 31) })

	Lt  = compare(func(x, y float64) bool { return x < y })
	Lte = compare(func(x, y float64) bool { return x <= y })
	Gt  = compare(func(x, y float64) bool { return x > y })
	Gte = compare(func(x, y float64) bool { return x >= y })
)

// Shr is the unsigned right shift; its result may exceed int32.
func Shr(a, b Value) (Value, error) {
	x, err := ToInt32(a)
	if err != nil {
		return 0, err
	}
	y, err := ToInt32(b)
	if err != nil {
		return 0, err
	}
	return Number(float64(uint32(x) >> (uint32(y) & 31))), nil
}

func jsPow(x, y float64) float64 {
	if math.IsNaN(y) || (math.IsInf(y, 0) && math.Abs(x) == 1) {
		return math.NaN()
	}
	return math.Pow(x, y)
}

// StrictEq implements ===.
func StrictEq(a, b Value) (Value, error) {
	if a.IsUninitialized() || b.IsUninitialized() {
		return 0, errors.Uninitialized("variable")
	}
	return Bool(strictEquals(a, b)), nil
}

// StrictNeq implements !==.
func StrictNeq(a, b Value) (Value, error) {
	v, err := StrictEq(a, b)
	if err != nil {
		return 0, err
	}
	return Bool(!v.Truthy()), nil
}

func strictEquals(a, b Value) bool {
	if x, ok := a.Num(); ok {
		y, ok := b.Num()
		return ok && x == y
	}
	return a.Tag() == b.Tag() && uint32(a) == uint32(b)
}

// Eq implements == over primitives. Objects compare by identity and are
// never equal to a primitive.
func Eq(a, b Value) (Value, error) {
	if a.IsUninitialized() || b.IsUninitialized() {
		return 0, errors.Uninitialized("variable")
	}
	nullish := func(v Value) bool { return v.IsNull() || v.IsUndefined() }
	switch {
	case a.Tag() == b.Tag() || (a.IsNumber() && b.IsNumber()):
		return Bool(strictEquals(a, b)), nil
	case nullish(a) || nullish(b):
		return Bool(nullish(a) && nullish(b)), nil
	case a.IsObject() || b.IsObject():
		return False, nil
	}
	x, y, err := operands(a, b)
	if err != nil {
		return 0, err
	}
	return Bool(x == y), nil
}

// Neq implements !=.
func Neq(a, b Value) (Value, error) {
	v, err := Eq(a, b)
	if err != nil {
		return 0, err
	}
	return Bool(!v.Truthy()), nil
}

// Neg implements unary minus.
func Neg(v Value) (Value, error) {
	f, err := ToNumber(v)
	if err != nil {
		return 0, err
	}
	return Number(-f), nil
}

// Inc adds one.
func Inc(v Value) (Value, error) {
	if v.IsInt() && v.Int32() != math.MaxInt32 {
		return Int(v.Int32() + 1), nil
	}
	f, err := ToNumber(v)
	if err != nil {
		return 0, err
	}
	return Number(f + 1), nil
}

// Dec subtracts one.
func Dec(v Value) (Value, error) {
	if v.IsInt() && v.Int32() != math.MinInt32 {
		return Int(v.Int32() - 1), nil
	}
	f, err := ToNumber(v)
	if err != nil {
		return 0, err
	}
	return Number(f - 1), nil
}

// Not implements bitwise complement.
func Not(v Value) (Value, error) {
	x, err := ToInt32(v)
	if err != nil {
		return 0, err
	}
	return Int(^x), nil
}
