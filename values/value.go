// Package values implements Magpie's tagged runtime value model.
package values

import (
	"fmt"
	"math"
)

// Type identifies the variant carried by a Value.
type Type byte

const (
	TypeAtom Type = iota
	TypeInt
	TypeFloat
	TypeChar
	TypeString
	TypeList
	TypeRecord
	TypeDynamic
	TypeClass
	TypeFunction
	TypeChannel
	TypeFiber
	TypeMultimethod
)

func (t Type) String() string {
	switch t {
	case TypeAtom:
		return "Atom"
	case TypeInt:
		return "Int"
	case TypeFloat:
		return "Float"
	case TypeChar:
		return "Char"
	case TypeString:
		return "String"
	case TypeList:
		return "List"
	case TypeRecord:
		return "Record"
	case TypeDynamic:
		return "Dynamic"
	case TypeClass:
		return "Class"
	case TypeFunction:
		return "Function"
	case TypeChannel:
		return "Channel"
	case TypeFiber:
		return "Fiber"
	case TypeMultimethod:
		return "Multimethod"
	default:
		return "Unknown"
	}
}

// Atom is one of the fixed singleton values named in the glossary.
type Atom byte

const (
	AtomFalse Atom = iota
	AtomTrue
	AtomNothing
	AtomDone
	AtomNoMethod
)

func (a Atom) String() string {
	switch a {
	case AtomFalse:
		return "false"
	case AtomTrue:
		return "true"
	case AtomNothing:
		return "nothing"
	case AtomDone:
		return "done"
	case AtomNoMethod:
		return "no-method"
	default:
		return "unknown-atom"
	}
}

// Value is a tagged variant. Primitive variants keep their payload inline
// and leave Data nil: atoms (as their Atom id), ints and chars (as a rune)
// in Int64, floats in Flt. Data holds a pointer to a heap object
// (*String, *List, *Record, *Dynamic, *Class, *Function, *Channel,
// *FiberRef, *Multimethod) for everything else. Primitive variants compare
// by value; heap variants compare by identity except TypeString, which
// compares by content (§3).
type Value struct {
	Type  Type
	Int64 int64       // TypeAtom (as Atom), TypeInt, TypeChar (as rune)
	Flt   float64     // TypeFloat
	Data  interface{} // heap payload for reference variants
}

func NewAtom(a Atom) *Value { return &Value{Type: TypeAtom, Int64: int64(a)} }
func NewInt(i int64) *Value { return &Value{Type: TypeInt, Int64: i} }
func NewFloat(f float64) *Value { return &Value{Type: TypeFloat, Flt: f} }
func NewChar(r rune) *Value { return &Value{Type: TypeChar, Int64: int64(r)} }

func (v *Value) AsAtom() Atom { return Atom(v.Int64) }

// IsFalsey implements the spec's truthiness rule: only false and nothing
// are falsey. Everything else -- including 0, "", and [] -- is truthy.
func (v *Value) IsFalsey() bool {
	if v.Type != TypeAtom {
		return false
	}
	a := v.AsAtom()
	return a == AtomFalse || a == AtomNothing
}

func (v *Value) IsTruthy() bool { return !v.IsFalsey() }

func (v *Value) String() string {
	switch v.Type {
	case TypeAtom:
		return v.AsAtom().String()
	case TypeInt:
		return fmt.Sprintf("%d", v.Int64)
	case TypeFloat:
		return fmt.Sprintf("%g", v.Flt)
	case TypeChar:
		return string(rune(v.Int64))
	case TypeString:
		return v.Data.(*String).Content
	case TypeList:
		return v.Data.(*List).String()
	case TypeRecord:
		return v.Data.(*Record).String()
	case TypeDynamic:
		return v.Data.(*Dynamic).String()
	case TypeClass:
		return "class " + v.Data.(*Class).Name
	case TypeFunction:
		return "function"
	case TypeChannel:
		return "channel"
	case TypeFiber:
		return "fiber"
	case TypeMultimethod:
		if s, ok := v.Data.(fmt.Stringer); ok {
			return s.String()
		}
		return "multimethod"
	default:
		return "?"
	}
}

// Equal implements Value equality (EQUAL opcode): content for primitives and
// strings, identity for every other heap object.
func Equal(a, b *Value) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.Type != b.Type {
		// int/float comparisons coerce to float (§4.1 numeric semantics).
		if a.Type == TypeInt && b.Type == TypeFloat {
			return float64(a.Int64) == b.Flt
		}
		if a.Type == TypeFloat && b.Type == TypeInt {
			return a.Flt == float64(b.Int64)
		}
		return false
	}
	switch a.Type {
	case TypeAtom:
		return a.Int64 == b.Int64
	case TypeInt:
		return a.Int64 == b.Int64
	case TypeFloat:
		return a.Flt == b.Flt
	case TypeChar:
		return a.Int64 == b.Int64
	case TypeString:
		return a.Data.(*String).Content == b.Data.(*String).Content
	default:
		return a.Data == b.Data
	}
}

// AsFloat coerces an Int or Float value to float64, per the comparison
// coercion rule in §4.1.
func AsFloat(v *Value) (float64, bool) {
	switch v.Type {
	case TypeInt:
		return float64(v.Int64), true
	case TypeFloat:
		return v.Flt, true
	default:
		return 0, false
	}
}

// AddInt64 performs checked signed addition, returning ok=false on overflow
// per the resolved open question in DESIGN.md (integer overflow raises
// OVERFLOW_ERROR).
func AddInt64(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}

func SubInt64(a, b int64) (int64, bool) {
	diff := a - b
	if (b < 0 && diff < a) || (b > 0 && diff > a) {
		return 0, false
	}
	return diff, true
}

func MulInt64(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	p := a * b
	if p/b != a {
		return 0, false
	}
	if (a == math.MinInt64 && b == -1) || (b == math.MinInt64 && a == -1) {
		return 0, false
	}
	return p, true
}
