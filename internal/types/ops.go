package types

import "errors"

// Op identifies a value-algebra operator.
type Op int

const (
	Add Op = iota
	Sub
	Mul
	Div
	Mod
	BitAnd
	BitXor
	BitOr
	Shl
	Shr
	Eq
	Neq
	Lt
	Gt
	Le
	Ge
	Neg
	Not
	Compl
)

var (
	ErrDivByZero     = errors.New("types: division by zero")
	ErrModByZero     = errors.New("types: modulo by zero")
	ErrFloatMod      = errors.New("types: modulo is not defined on floating types")
	ErrBitwiseFloat  = errors.New("types: bitwise operator is not defined on floating types")
	ErrComplFloat    = errors.New("types: complement is not defined on floating types")
	ErrShiftOperand  = errors.New("types: shift operands must be integers")
)

func isRelational(op Op) bool {
	switch op {
	case Eq, Neq, Lt, Gt, Le, Ge:
		return true
	}
	return false
}

func isBitwise(op Op) bool {
	switch op {
	case BitAnd, BitXor, BitOr:
		return true
	}
	return false
}

// promote returns t itself unless t is a narrow integer (< 32 bits) or
// F32, in which case it returns the type that narrow values actually
// compute in: S32 for narrow integers, F64 for F32. This is the "narrow
// types do not own arithmetic" rule: every native operation below runs
// in the promoted width and reports its result at that width.
func promote(t Tag) Tag {
	if IsNarrow(t) {
		return S32
	}
	if t == F32 {
		return F64
	}
	return t
}

// dispatchType applies the widen/narrow operand policy: the
// lower-ranked operand is cast up (or down) to the other's type, then
// the pair's common type is promoted per the narrow-integer / F32 rule.
func dispatchType(a, b Tag) Tag {
	var common Tag
	switch {
	case Rank(a) < Rank(b):
		common = b
	case Rank(a) > Rank(b):
		common = a
	default:
		common = a
	}
	return promote(common)
}

// BinaryOp implements the full binary operator matrix: arithmetic,
// bitwise, shift, and relational. Arithmetic and bitwise results carry
// the promoted dispatch type (see dispatchType and promote); relational
// results are always S32 0 or 1.
func BinaryOp(op Op, a, b Value) (Value, error) {
	if op == Shl || op == Shr {
		return shiftOp(op, a, b)
	}

	t := dispatchType(a.Tag, b.Tag)
	aa, bb := a.CastTo(t), b.CastTo(t)

	if isBitwise(op) {
		if IsFloat(t) {
			return Value{}, ErrBitwiseFloat
		}
		return bitwiseOp(op, aa, bb, t)
	}

	if isRelational(op) {
		return relOp(op, aa, bb, t), nil
	}

	return arithOp(op, aa, bb, t)
}

func arithOp(op Op, a, b Value, t Tag) (Value, error) {
	if IsFloat(t) {
		x, y := a.AsF64(), b.AsF64()
		switch op {
		case Add:
			return NewF64(x + y), nil
		case Sub:
			return NewF64(x - y), nil
		case Mul:
			return NewF64(x * y), nil
		case Div:
			return NewF64(x / y), nil
		case Mod:
			return Value{}, ErrFloatMod
		}
		panic("types: unreachable arith op on float")
	}

	if IsSigned(t) {
		x, y := a.AsS64(), b.AsS64()
		switch op {
		case Add:
			return truncSigned(x+y, t), nil
		case Sub:
			return truncSigned(x-y, t), nil
		case Mul:
			return truncSigned(x*y, t), nil
		case Div:
			if y == 0 {
				return Value{}, ErrDivByZero
			}
			return truncSigned(x/y, t), nil
		case Mod:
			if y == 0 {
				return Value{}, ErrModByZero
			}
			return truncSigned(x%y, t), nil
		}
		panic("types: unreachable arith op on signed int")
	}

	x, y := a.AsU64(), b.AsU64()
	switch op {
	case Add:
		return truncUnsigned(x+y, t), nil
	case Sub:
		return truncUnsigned(x-y, t), nil
	case Mul:
		return truncUnsigned(x*y, t), nil
	case Div:
		if y == 0 {
			return Value{}, ErrDivByZero
		}
		return truncUnsigned(x/y, t), nil
	case Mod:
		if y == 0 {
			return Value{}, ErrModByZero
		}
		return truncUnsigned(x%y, t), nil
	}
	panic("types: unreachable arith op on unsigned int")
}

func bitwiseOp(op Op, a, b Value, t Tag) (Value, error) {
	// Always computed on the 64-bit unsigned bit pattern, regardless of
	// t's signedness, and stored back into t's slot by truncBits.
	x, y := a.AsU64(), b.AsU64()
	var r uint64
	switch op {
	case BitAnd:
		r = x & y
	case BitXor:
		r = x ^ y
	case BitOr:
		r = x | y
	}
	return truncBits(r, t), nil
}

func shiftOp(op Op, a, b Value) (Value, error) {
	lt := promote(a.Tag)
	if IsFloat(lt) {
		return Value{}, ErrShiftOperand
	}
	if !IsInt(b.Tag) {
		return Value{}, ErrShiftOperand
	}
	left := a.CastTo(lt)
	count := uint(b.AsU64() % uint64(Size(lt)*8))

	if IsSigned(lt) {
		x := left.AsS64()
		if op == Shl {
			return truncSigned(x<<count, lt), nil
		}
		return truncSigned(x>>count, lt), nil
	}
	x := left.AsU64()
	if op == Shl {
		return truncUnsigned(x<<count, lt), nil
	}
	return truncUnsigned(x>>count, lt), nil
}

func relOp(op Op, a, b Value, t Tag) Value {
	var cmp int
	switch {
	case IsFloat(t):
		x, y := a.AsF64(), b.AsF64()
		cmp = compareFloat(x, y)
	case IsSigned(t):
		x, y := a.AsS64(), b.AsS64()
		cmp = compareInt64(x, y)
	default:
		x, y := a.AsU64(), b.AsU64()
		cmp = compareUint64(x, y)
	}
	var result bool
	switch op {
	case Eq:
		result = cmp == 0
	case Neq:
		result = cmp != 0
	case Lt:
		result = cmp < 0
	case Gt:
		result = cmp > 0
	case Le:
		result = cmp <= 0
	case Ge:
		result = cmp >= 0
	}
	if result {
		return NewS32(1)
	}
	return NewS32(0)
}

func compareFloat(x, y float64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

func compareInt64(x, y int64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

func compareUint64(x, y uint64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

// UnaryOp implements neg, not, and compl. Neg and compl promote narrow
// operands the same way BinaryOp does; not accepts any type and always
// yields S32 0 or 1.
func UnaryOp(op Op, a Value) (Value, error) {
	if op == Not {
		if a.IsZero() {
			return NewS32(1), nil
		}
		return NewS32(0), nil
	}

	t := promote(a.Tag)
	v := a.CastTo(t)

	switch op {
	case Neg:
		if IsFloat(t) {
			return NewF64(-v.AsF64()), nil
		}
		if IsSigned(t) {
			return truncSigned(-v.AsS64(), t), nil
		}
		return truncUnsigned(-v.AsU64(), t), nil
	case Compl:
		if IsFloat(t) {
			return Value{}, ErrComplFloat
		}
		return truncBits(^v.AsU64(), t), nil
	}
	panic("types: unknown unary op")
}

func truncSigned(x int64, t Tag) Value {
	switch t {
	case S32:
		return NewS32(int32(x))
	case S64:
		return NewS64(x)
	default:
		panic("types: truncSigned on non-dispatch tag")
	}
}

func truncUnsigned(x uint64, t Tag) Value {
	switch t {
	case U32:
		return NewU32(uint32(x))
	case U64:
		return NewU64(x)
	default:
		panic("types: truncUnsigned on non-dispatch tag")
	}
}

// truncBits writes the low bits of x into a Value of tag t, which may be
// signed or unsigned. Bitwise operators always compute through this
// unsigned bit pattern and store it verbatim into whichever slot t
// names; like every Value, the bytes are written little-endian, so a
// signed and an unsigned tag of the same width share one layout.
func truncBits(x uint64, t Tag) Value {
	switch t {
	case S32, U32:
		v := NewU32(uint32(x))
		v.Tag = t
		return v
	case S64, U64:
		v := NewU64(x)
		v.Tag = t
		return v
	default:
		panic("types: truncBits on non-dispatch tag")
	}
}
