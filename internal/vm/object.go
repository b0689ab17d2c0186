package vm

import "github.com/kenny-goh/kscript/internal/bytecode"

// object is implemented by every heap-allocated Obj variant. The GC walks
// the all-objects list via header() and marks/traces through the
// type-specific referents in heap.go's trace step.
type object interface {
	header() *objHeader
}

// objHeader is embedded first in every concrete Obj type. It carries the
// GC mark bit and the intrusive "next allocated" link required by the
// heap's allocation list invariant.
type objHeader struct {
	marked bool
	next   object
}

func (h *objHeader) header() *objHeader { return h }

// ObjString is an immutable byte sequence with a precomputed hash, used as
// the intern table's key and for fast map lookups by name.
type ObjString struct {
	objHeader
	Chars string
	Hash  uint32
}

// ObjFunction is a compiled function: its prototype (name, arity, chunk,
// declared upvalues) as produced by the compiler.
type ObjFunction struct {
	objHeader
	Name  string
	Proto *bytecode.Prototype
}

func (f *ObjFunction) Arity() int { return f.Proto.Arity }

// ObjUpvalue is either open (Location points at a live stack slot) or
// closed (it owns Closed after the owning frame returns). Open upvalues
// additionally form a VM-owned linked list sorted by descending stack
// slot via OpenNext/StackIndex; that list is distinct from the heap's own
// allocation list (next, via objHeader).
type ObjUpvalue struct {
	objHeader
	Location   *Value
	Closed     Value
	StackIndex int
	OpenNext   *ObjUpvalue
}

func (u *ObjUpvalue) get() Value {
	if u.Location != nil {
		return *u.Location
	}
	return u.Closed
}

func (u *ObjUpvalue) set(v Value) {
	if u.Location != nil {
		*u.Location = v
		return
	}
	u.Closed = v
}

func (u *ObjUpvalue) close() {
	if u.Location != nil {
		u.Closed = *u.Location
		u.Location = nil
	}
}

// ObjClosure pairs a Function with the fixed array of Upvalues it captured
// at creation time.
type ObjClosure struct {
	objHeader
	Function *ObjFunction
	Upvalues []*ObjUpvalue
}

// NativeFn is the signature of a host-provided function.
type NativeFn func(machine *VM, args []Value) (Value, error)

// ObjNative is a host-provided function pointer and declared arity
// (-1 for variadic).
type ObjNative struct {
	objHeader
	Name  string
	Arity int
	Fn    NativeFn
}

// ObjClass holds the class name and a copy-down mapping of method name to
// Closure, populated at class-creation time (INHERIT) and by METHOD.
type ObjClass struct {
	objHeader
	Name    string
	Methods map[string]*ObjClosure
}

// ObjInstance references its Class and holds the instance's own field
// values, distinct from the class's (shared) method table.
type ObjInstance struct {
	objHeader
	Class  *ObjClass
	Fields map[string]Value
}

// ObjBoundMethod pins a receiver Value to a method Closure so that calling
// the bound method implicitly supplies `this`.
type ObjBoundMethod struct {
	objHeader
	Receiver Value
	Method   *ObjClosure
}
