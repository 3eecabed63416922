package types

import (
	"encoding/binary"
	"math"
)

// Value is a tagged numeric value: a type tag paired with its raw
// little-endian byte representation, stored at the type's own width
// (unused trailing bytes are zero). This mirrors the bytes a Deref reads
// straight out of target memory, so a Value round-trips through a
// process's address space without reinterpretation.
type Value struct {
	Tag  Tag
	Data [8]byte
}

// FromBytes builds a Value of tag t from raw memory bytes, copying at
// most Size(t) bytes and zero-filling the rest.
func FromBytes(t Tag, raw []byte) Value {
	var v Value
	v.Tag = t
	n := Size(t)
	if len(raw) < n {
		n = len(raw)
	}
	copy(v.Data[:n], raw[:n])
	return v
}

// Bytes returns the value's significant bytes (Size(v.Tag) of them).
func (v Value) Bytes() []byte { return v.Data[:Size(v.Tag)] }

// IsZero reports whether every significant byte of the value is zero.
// This is a raw byte-level test, not a numeric one: -0.0's sign bit
// keeps it from being "zero" under this rule.
func (v Value) IsZero() bool {
	for _, b := range v.Bytes() {
		if b != 0 {
			return false
		}
	}
	return true
}

func NewS8(n int8) Value   { var v Value; v.Tag = S8; v.Data[0] = byte(n); return v }
func NewU8(n uint8) Value  { var v Value; v.Tag = U8; v.Data[0] = n; return v }

func NewS16(n int16) Value {
	var v Value
	v.Tag = S16
	binary.LittleEndian.PutUint16(v.Data[:2], uint16(n))
	return v
}

func NewU16(n uint16) Value {
	var v Value
	v.Tag = U16
	binary.LittleEndian.PutUint16(v.Data[:2], n)
	return v
}

func NewS32(n int32) Value {
	var v Value
	v.Tag = S32
	binary.LittleEndian.PutUint32(v.Data[:4], uint32(n))
	return v
}

func NewU32(n uint32) Value {
	var v Value
	v.Tag = U32
	binary.LittleEndian.PutUint32(v.Data[:4], n)
	return v
}

func NewS64(n int64) Value {
	var v Value
	v.Tag = S64
	binary.LittleEndian.PutUint64(v.Data[:8], uint64(n))
	return v
}

func NewU64(n uint64) Value {
	var v Value
	v.Tag = U64
	binary.LittleEndian.PutUint64(v.Data[:8], n)
	return v
}

func NewF32(f float32) Value {
	var v Value
	v.Tag = F32
	binary.LittleEndian.PutUint32(v.Data[:4], math.Float32bits(f))
	return v
}

func NewF64(f float64) Value {
	var v Value
	v.Tag = F64
	binary.LittleEndian.PutUint64(v.Data[:8], math.Float64bits(f))
	return v
}

// bitsU64 returns the value's raw bits sign- or zero-extended to 64 bits,
// as appropriate for its tag. Only valid for integer tags.
func (v Value) bitsU64() uint64 {
	switch v.Tag {
	case S8:
		return uint64(int64(int8(v.Data[0])))
	case S16:
		return uint64(int64(int16(binary.LittleEndian.Uint16(v.Data[:2]))))
	case S32:
		return uint64(int64(int32(binary.LittleEndian.Uint32(v.Data[:4]))))
	case S64:
		return binary.LittleEndian.Uint64(v.Data[:8])
	case U8:
		return uint64(v.Data[0])
	case U16:
		return uint64(binary.LittleEndian.Uint16(v.Data[:2]))
	case U32:
		return uint64(binary.LittleEndian.Uint32(v.Data[:4]))
	case U64:
		return binary.LittleEndian.Uint64(v.Data[:8])
	default:
		panic("types: bitsU64 on non-integer tag")
	}
}

// AsS64 reinterprets the value as a signed 64-bit integer, sign-extending
// integer tags and truncating floats toward zero.
func (v Value) AsS64() int64 {
	switch {
	case IsFloat(v.Tag):
		return int64(v.AsF64())
	default:
		return int64(v.bitsU64())
	}
}

// AsU64 reinterprets the value as an unsigned 64-bit integer.
func (v Value) AsU64() uint64 {
	switch {
	case IsFloat(v.Tag):
		return uint64(v.AsF64())
	default:
		return v.bitsU64()
	}
}

// AsF64 reinterprets the value as a float64, widening narrower
// representations and converting integers numerically.
func (v Value) AsF64() float64 {
	switch v.Tag {
	case F32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(v.Data[:4])))
	case F64:
		return math.Float64frombits(binary.LittleEndian.Uint64(v.Data[:8]))
	case S8, S16, S32, S64:
		return float64(int64(v.bitsU64()))
	default: // unsigned
		return float64(v.bitsU64())
	}
}

// CastTo implements cast_to_<target>(v): integer-to-integer truncates or
// two's-complement-extends the raw bit pattern, integer-to-float and
// float-to-integer convert numerically (truncating toward zero), and
// float-to-float rounds to the target precision.
func (v Value) CastTo(target Tag) Value {
	if v.Tag == target {
		return v
	}
	if IsFloat(target) {
		f := v.AsF64()
		if target == F32 {
			return NewF32(float32(f))
		}
		return NewF64(f)
	}
	var bits uint64
	if IsFloat(v.Tag) {
		f := v.AsF64()
		if IsSigned(target) {
			bits = uint64(int64(f))
		} else {
			bits = uint64(f)
		}
	} else {
		bits = v.bitsU64()
	}
	n := Size(target)
	if n < 8 {
		bits &= (uint64(1) << (uint(n) * 8)) - 1
	}
	var out Value
	out.Tag = target
	switch n {
	case 1:
		out.Data[0] = byte(bits)
	case 2:
		binary.LittleEndian.PutUint16(out.Data[:2], uint16(bits))
	case 4:
		binary.LittleEndian.PutUint32(out.Data[:4], uint32(bits))
	case 8:
		binary.LittleEndian.PutUint64(out.Data[:8], bits)
	}
	return out
}

// Assign implements assign(dst, src): *dst = cast_to_(type_of(dst))(src).
func Assign(dstTag Tag, src Value) Value { return src.CastTo(dstTag) }
