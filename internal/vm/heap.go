package vm

import (
	"fmt"
	"hash/fnv"

	"github.com/kenny-goh/kscript/internal/bytecode"
)

const (
	initialGCThreshold = 1 << 20 // bytes
	gcGrowthFactor     = 2
)

// RootSource lets a collaborator (the VM's own execution state, or a
// compiler that is still allocating constants) contribute GC roots without
// the Heap needing to know its shape.
type RootSource interface {
	MarkRoots(h *Heap)
}

// Heap owns every dynamically allocated Obj (strings, functions, closures,
// upvalues, classes, instances, bound methods) and performs mark-and-sweep
// collection triggered by allocation pressure. A single Heap is shared by
// the compiler (which interns string constants) and the VM that later
// executes against it, so both see the same intern table and object list.
type Heap struct {
	allObjects     object
	strings        map[string]*ObjString
	bytesAllocated int
	nextGC         int
	grayStack      []object
	roots          []RootSource
	stressGC       bool
	onCollect      func(before, after, next int)

	objectCount int
	freedCount  int
}

// NewHeap constructs an empty heap with the initial collection threshold.
func NewHeap() *Heap {
	return &Heap{
		strings: make(map[string]*ObjString),
		nextGC:  initialGCThreshold,
	}
}

// SetStressGC forces a collection cycle on every allocation, used to verify
// GC safety (§8 "GC safety" property) without waiting for real pressure.
func (h *Heap) SetStressGC(enable bool) { h.stressGC = enable }

// SetCollectHook installs a diagnostics callback invoked after every cycle
// with bytes-before, bytes-after, and the newly computed threshold.
func (h *Heap) SetCollectHook(fn func(before, after, next int)) { h.onCollect = fn }

// AddRootSource registers a collaborator whose live references must be
// treated as GC roots. The VM registers itself at construction; a
// compiler that is still building a chunk registers itself for the
// duration of compilation and unregisters when done.
func (h *Heap) AddRootSource(r RootSource) { h.roots = append(h.roots, r) }

// RemoveRootSource unregisters a previously added root source.
func (h *Heap) RemoveRootSource(r RootSource) {
	for i, existing := range h.roots {
		if existing == r {
			h.roots = append(h.roots[:i], h.roots[i+1:]...)
			return
		}
	}
}

// alloc registers o on the all-objects list, accounts for its approximate
// size, and triggers a collection cycle before returning if the allocation
// pressure threshold has been reached. GC must not run while an object is
// only partially initialized; callers allocate via one of the typed
// constructors below, which always produce a fully-formed object before
// it is linked onto the list, so there is no partial-object window here.
func (h *Heap) alloc(o object, size int) object {
	hdr := o.header()
	hdr.next = h.allObjects
	h.allObjects = o
	h.bytesAllocated += size
	h.objectCount++

	if h.stressGC || h.bytesAllocated >= h.nextGC {
		h.Collect()
	}
	return o
}

// newString allocates an ObjString directly, bypassing the intern table.
// Used internally by InternString; most callers should call InternString.
func (h *Heap) newString(s string) *ObjString {
	str := &ObjString{Chars: s, Hash: hashString(s)}
	h.alloc(str, len(s)+16)
	return str
}

// InternString returns the canonical ObjString for s, allocating and
// registering it in the intern table on first use. Interning makes
// string equality and method/field lookup an identity check.
func (h *Heap) InternString(s string) *ObjString {
	if existing, ok := h.strings[s]; ok {
		return existing
	}
	str := h.newString(s)
	h.strings[s] = str
	return str
}

// NewFunction allocates a Function object wrapping a compiled prototype.
func (h *Heap) NewFunction(name string, proto *bytecode.Prototype) *ObjFunction {
	fn := &ObjFunction{Name: name, Proto: proto}
	h.alloc(fn, 64)
	return fn
}

// NewClosure allocates a Closure over a Function with the given upvalue
// slots (already resolved by the caller).
func (h *Heap) NewClosure(fn *ObjFunction, upvalues []*ObjUpvalue) *ObjClosure {
	cl := &ObjClosure{Function: fn, Upvalues: upvalues}
	h.alloc(cl, 32+8*len(upvalues))
	return cl
}

// NewUpvalue allocates an open upvalue pointing at a live stack slot.
func (h *Heap) NewUpvalue(location *Value, stackIndex int) *ObjUpvalue {
	uv := &ObjUpvalue{Location: location, StackIndex: stackIndex}
	h.alloc(uv, 32)
	return uv
}

// NewNative allocates a host-provided native function.
func (h *Heap) NewNative(name string, arity int, fn NativeFn) *ObjNative {
	nat := &ObjNative{Name: name, Arity: arity, Fn: fn}
	h.alloc(nat, 32)
	return nat
}

// NewClass allocates a class with an empty method table.
func (h *Heap) NewClass(name string) *ObjClass {
	cls := &ObjClass{Name: name, Methods: make(map[string]*ObjClosure)}
	h.alloc(cls, 64)
	return cls
}

// NewInstance allocates an instance of the given class with an empty field set.
func (h *Heap) NewInstance(class *ObjClass) *ObjInstance {
	inst := &ObjInstance{Class: class, Fields: make(map[string]Value)}
	h.alloc(inst, 64)
	return inst
}

// NewBoundMethod allocates a method closure pre-bound to a receiver.
func (h *Heap) NewBoundMethod(receiver Value, method *ObjClosure) *ObjBoundMethod {
	bm := &ObjBoundMethod{Receiver: receiver, Method: method}
	h.alloc(bm, 32)
	return bm
}

// Collect runs one stop-the-world mark-and-sweep cycle.
func (h *Heap) Collect() {
	before := h.bytesAllocated

	for _, r := range h.roots {
		r.MarkRoots(h)
	}
	h.traceReferences()
	h.sweepStrings()
	h.sweep()

	h.nextGC = h.bytesAllocated * gcGrowthFactor
	if h.nextGC < initialGCThreshold {
		h.nextGC = initialGCThreshold
	}
	if h.onCollect != nil {
		h.onCollect(before, h.bytesAllocated, h.nextGC)
	}
}

// MarkValue marks v's referent object, if any, as reachable.
func (h *Heap) MarkValue(v Value) {
	if v.Kind == KindObj {
		h.MarkObject(v.Obj)
	}
}

// MarkObject marks o (and queues it for reference tracing) as reachable.
// Marking is idempotent: an already-marked object is not re-queued.
func (h *Heap) MarkObject(o object) {
	if o == nil {
		return
	}
	hdr := o.header()
	if hdr.marked {
		return
	}
	hdr.marked = true
	h.grayStack = append(h.grayStack, o)
}

// traceReferences drains the gray worklist, marking each object's
// referents until nothing new is discovered.
func (h *Heap) traceReferences() {
	for len(h.grayStack) > 0 {
		o := h.grayStack[len(h.grayStack)-1]
		h.grayStack = h.grayStack[:len(h.grayStack)-1]
		h.blacken(o)
	}
}

func (h *Heap) blacken(o object) {
	switch v := o.(type) {
	case *ObjString:
		// no further references
	case *ObjFunction:
		if v.Proto != nil {
			for _, c := range v.Proto.Chunk.Consts {
				if s, ok := c.(*ObjString); ok {
					h.MarkObject(s)
				}
			}
		}
	case *ObjClosure:
		h.MarkObject(v.Function)
		for _, uv := range v.Upvalues {
			h.MarkObject(uv)
		}
	case *ObjUpvalue:
		if v.Location == nil {
			h.MarkValue(v.Closed)
		}
	case *ObjNative:
		// no further references
	case *ObjClass:
		for _, m := range v.Methods {
			h.MarkObject(m)
		}
	case *ObjInstance:
		h.MarkObject(v.Class)
		for _, fv := range v.Fields {
			h.MarkValue(fv)
		}
	case *ObjBoundMethod:
		h.MarkValue(v.Receiver)
		h.MarkObject(v.Method)
	default:
		panic(fmt.Sprintf("heap: unreachable object kind in blacken: %T", o))
	}
}

// sweepStrings clears intern-table entries whose ObjString was not marked
// this cycle: the intern table is a weak root, never itself a reason an
// entry survives.
func (h *Heap) sweepStrings() {
	for k, s := range h.strings {
		if !s.marked {
			delete(h.strings, k)
		}
	}
}

// sweep walks the all-objects list, freeing unmarked objects and clearing
// the mark bit on survivors so the next cycle starts clean.
func (h *Heap) sweep() {
	var prev object
	cur := h.allObjects
	for cur != nil {
		hdr := cur.header()
		if hdr.marked {
			hdr.marked = false
			prev = cur
			cur = hdr.next
			continue
		}
		unreached := cur
		cur = hdr.next
		if prev != nil {
			prev.header().next = cur
		} else {
			h.allObjects = cur
		}
		h.bytesAllocated -= approxSize(unreached)
		h.freedCount++
	}
}

func approxSize(o object) int {
	switch v := o.(type) {
	case *ObjString:
		return len(v.Chars) + 16
	case *ObjClosure:
		return 32 + 8*len(v.Upvalues)
	case *ObjFunction, *ObjClass, *ObjInstance:
		return 64
	default:
		return 32
	}
}

func hashString(s string) uint32 {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(s))
	return hasher.Sum32()
}
