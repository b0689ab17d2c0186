package vm

import "fmt"

// Kind tags a Value's dynamic type: Nil, Bool, Number, or a heap Obj.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindObj
)

// Value is a tagged union: Nil, Bool(bool), Number(f64), or Obj(handle).
// Only one of B/Num/Obj is meaningful, selected by Kind.
type Value struct {
	Kind Kind
	B    bool
	Num  float64
	Obj  object
}

func Nil() Value              { return Value{Kind: KindNil} }
func Bool(b bool) Value       { return Value{Kind: KindBool, B: b} }
func Number(n float64) Value  { return Value{Kind: KindNumber, Num: n} }
func ObjVal(o object) Value   { return Value{Kind: KindObj, Obj: o} }

// IsNil reports whether v is the nil value.
func (v Value) IsNil() bool { return v.Kind == KindNil }

// Truthy implements KScript truthiness: nil and false are false, everything
// else (including 0 and "") is true.
func Truthy(v Value) bool {
	switch v.Kind {
	case KindNil:
		return false
	case KindBool:
		return v.B
	default:
		return true
	}
}

// Equal implements value equality: numbers by IEEE equality, booleans and
// nil by value, objects by identity except strings, which compare by
// content (interning makes this an identity check too, see intern table).
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNil:
		return true
	case KindBool:
		return a.B == b.B
	case KindNumber:
		return a.Num == b.Num
	case KindObj:
		as, aIsStr := a.Obj.(*ObjString)
		bs, bIsStr := b.Obj.(*ObjString)
		if aIsStr && bIsStr {
			return as.Chars == bs.Chars
		}
		return a.Obj == b.Obj
	default:
		return false
	}
}

// Stringify renders a Value the same way the `str` native and `print` do.
func Stringify(v Value) string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindBool:
		if v.B {
			return "true"
		}
		return "false"
	case KindNumber:
		return formatNumber(v.Num)
	case KindObj:
		return stringifyObj(v.Obj)
	default:
		return ""
	}
}

func formatNumber(n float64) string {
	if n == float64(int64(n)) {
		return fmt.Sprintf("%d", int64(n))
	}
	return fmt.Sprintf("%g", n)
}

func stringifyObj(o object) string {
	switch ov := o.(type) {
	case *ObjString:
		return ov.Chars
	case *ObjFunction:
		if ov.Name == "" {
			return "<fn script>"
		}
		if ov.Proto != nil && ov.Proto.IsMethod {
			return fmt.Sprintf("<method %s>", ov.Name)
		}
		return fmt.Sprintf("<fn %s>", ov.Name)
	case *ObjClosure:
		return stringifyObj(ov.Function)
	case *ObjNative:
		return "<native fn>"
	case *ObjClass:
		return fmt.Sprintf("<class %s>", ov.Name)
	case *ObjInstance:
		return fmt.Sprintf("<class %s instance>", ov.Class.Name)
	case *ObjBoundMethod:
		return stringifyObj(ov.Method)
	default:
		return "<obj>"
	}
}

// TypeName reports a human-readable dynamic type name, used in diagnostics.
func TypeName(v Value) string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindObj:
		switch v.Obj.(type) {
		case *ObjString:
			return "string"
		case *ObjFunction, *ObjClosure, *ObjNative, *ObjBoundMethod:
			return "function"
		case *ObjClass:
			return "class"
		case *ObjInstance:
			return "instance"
		default:
			return "object"
		}
	default:
		return "unknown"
	}
}
