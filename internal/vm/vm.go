package vm

import (
	"fmt"

	"github.com/kenny-goh/kscript/internal/bytecode"
)

const (
	stackMax     = 16384
	defaultMaxFrames = 64
)

// frame is the per-invocation record: the active closure, an instruction
// pointer into its chunk, and a base slot into the shared value stack.
type frame struct {
	closure *ObjClosure
	ip      int
	base    int
}

// VM executes a top-level closure over a value stack and a stack of call
// frames. The heap, globals, and stacks are owned exclusively by this one
// instance (§5); there is no cancellation, timeout, or concurrency model.
type VM struct {
	heap  *Heap
	stack [stackMax]Value
	sp    int

	frames    []frame
	maxFrames int

	globals map[string]Value

	openUpvalues *ObjUpvalue // head of the list, sorted by descending StackIndex

	traceHook TraceHook
	instLimit int
	instCount int
}

// New constructs a VM bound to the given heap. The heap may already carry
// interned string constants from compilation; the VM registers itself as
// a GC root source for the lifetime of the process.
func New(heap *Heap) *VM {
	m := &VM{
		heap:      heap,
		globals:   make(map[string]Value),
		maxFrames: defaultMaxFrames,
	}
	heap.AddRootSource(m)
	return m
}

// SetTraceHook registers a callback for instruction-level tracing.
func (m *VM) SetTraceHook(h TraceHook) { m.traceHook = h }

// SetInstructionLimit caps the number of instructions a single Interpret
// call may execute (0 for unlimited).
func (m *VM) SetInstructionLimit(limit int) {
	if limit < 0 {
		limit = 0
	}
	m.instLimit = limit
}

// DefineGlobal binds a value into the global environment directly (used to
// register natives; see natives.go).
func (m *VM) DefineGlobal(name string, v Value) { m.globals[name] = v }

// ResetStack clears the value stack, call-frame stack, and open-upvalue
// list, but leaves globals and the heap untouched. The REPL calls this
// between lines so top-level state persists across interactive input
// while leftover expression results don't leak into the next line.
func (m *VM) ResetStack() {
	m.sp = 0
	m.frames = m.frames[:0]
	m.openUpvalues = nil
	m.instCount = 0
}

// MarkRoots implements RootSource: every Value on the value stack, every
// closure on the call-frame stack, every open upvalue, and every global.
func (m *VM) MarkRoots(h *Heap) {
	for i := 0; i < m.sp; i++ {
		h.MarkValue(m.stack[i])
	}
	for i := range m.frames {
		h.MarkObject(m.frames[i].closure)
	}
	for uv := m.openUpvalues; uv != nil; uv = uv.OpenNext {
		h.MarkObject(uv)
	}
	for _, v := range m.globals {
		h.MarkValue(v)
	}
}

// Interpret wraps an already compiled top-level script prototype in a
// closure and runs it to completion, starting a fresh frame stack at base 0.
func (m *VM) Interpret(proto *bytecode.Prototype) (Value, error) {
	m.ResetStack()
	fn := m.heap.NewFunction(proto.Name, proto)
	closure := m.heap.NewClosure(fn, nil)
	m.push(ObjVal(closure))
	if err := m.callClosure(closure, 0); err != nil {
		return Nil(), err
	}
	return m.run()
}

func (m *VM) push(v Value) {
	if m.sp >= stackMax {
		panic("vm: stack overflow (internal limit)")
	}
	m.stack[m.sp] = v
	m.sp++
}

func (m *VM) pop() Value {
	m.sp--
	return m.stack[m.sp]
}

func (m *VM) peek(distance int) Value {
	return m.stack[m.sp-1-distance]
}

func (m *VM) currentFrame() *frame {
	return &m.frames[len(m.frames)-1]
}

func (m *VM) readByte(fr *frame) byte {
	chunk := fr.closure.Function.Proto.Chunk
	b := chunk.Code[fr.ip]
	fr.ip++
	return b
}

// readU16 reads a 16-bit big-endian operand (§3 "Jumps store a 16-bit
// big-endian offset").
func (m *VM) readU16(fr *frame) int {
	chunk := fr.closure.Function.Proto.Chunk
	hi := chunk.Code[fr.ip]
	lo := chunk.Code[fr.ip+1]
	fr.ip += 2
	return int(hi)<<8 | int(lo)
}

func (m *VM) readConstant(fr *frame) interface{} {
	idx := m.readU16(fr)
	return fr.closure.Function.Proto.Chunk.Consts[idx]
}

func (m *VM) readStringConstant(fr *frame) *ObjString {
	return m.readConstant(fr).(*ObjString)
}

// run executes the dispatch loop until the outermost frame returns.
func (m *VM) run() (Value, error) {
	for len(m.frames) > 0 {
		fr := m.currentFrame()
		m.instCount++
		if m.instLimit > 0 && m.instCount > m.instLimit {
			return Nil(), m.runtimeErrorf("instruction limit exceeded")
		}
		op := m.readByte(fr)
		m.trace(fr, op)

		switch op {
		case bytecode.OP_NOP, bytecode.OP_DEBUG_TRACE:
			// no-op; reserved for single-step tooling.

		case bytecode.OP_CONSTANT:
			m.push(m.constantToValue(m.readConstant(fr)))

		case bytecode.OP_NIL:
			m.push(Nil())
		case bytecode.OP_TRUE:
			m.push(Bool(true))
		case bytecode.OP_FALSE:
			m.push(Bool(false))
		case bytecode.OP_POP:
			m.pop()

		case bytecode.OP_GET_LOCAL:
			slot := int(m.readByte(fr))
			m.push(m.stack[fr.base+slot])
		case bytecode.OP_SET_LOCAL:
			slot := int(m.readByte(fr))
			m.stack[fr.base+slot] = m.peek(0)

		case bytecode.OP_GET_UPVALUE:
			slot := int(m.readByte(fr))
			m.push(fr.closure.Upvalues[slot].get())
		case bytecode.OP_SET_UPVALUE:
			slot := int(m.readByte(fr))
			fr.closure.Upvalues[slot].set(m.peek(0))

		case bytecode.OP_GET_GLOBAL:
			name := m.readStringConstant(fr)
			v, ok := m.globals[name.Chars]
			if !ok {
				return Nil(), m.runtimeErrorf("Undefined variable '%s'.", name.Chars)
			}
			m.push(v)
		case bytecode.OP_SET_GLOBAL:
			name := m.readStringConstant(fr)
			if _, ok := m.globals[name.Chars]; !ok {
				return Nil(), m.runtimeErrorf("Undefined variable '%s'.", name.Chars)
			}
			m.globals[name.Chars] = m.peek(0)
		case bytecode.OP_DEFINE_GLOBAL:
			name := m.readStringConstant(fr)
			m.globals[name.Chars] = m.pop()

		case bytecode.OP_EQUAL:
			b := m.pop()
			a := m.pop()
			m.push(Bool(Equal(a, b)))
		case bytecode.OP_GREATER:
			if err := m.numericBinary(fr, func(a, b float64) Value { return Bool(a > b) }); err != nil {
				return Nil(), err
			}
		case bytecode.OP_LESS:
			if err := m.numericBinary(fr, func(a, b float64) Value { return Bool(a < b) }); err != nil {
				return Nil(), err
			}

		case bytecode.OP_ADD:
			if err := m.add(fr); err != nil {
				return Nil(), err
			}
		case bytecode.OP_SUBTRACT:
			if err := m.numericBinary(fr, func(a, b float64) Value { return Number(a - b) }); err != nil {
				return Nil(), err
			}
		case bytecode.OP_MULTIPLY:
			if err := m.numericBinary(fr, func(a, b float64) Value { return Number(a * b) }); err != nil {
				return Nil(), err
			}
		case bytecode.OP_DIVIDE:
			if err := m.numericBinary(fr, func(a, b float64) Value { return Number(a / b) }); err != nil {
				return Nil(), err
			}
		case bytecode.OP_NEGATE:
			v := m.peek(0)
			if v.Kind != KindNumber {
				return Nil(), m.runtimeErrorf("Operand must be a number.")
			}
			m.pop()
			m.push(Number(-v.Num))
		case bytecode.OP_NOT:
			m.push(Bool(!Truthy(m.pop())))

		case bytecode.OP_PRINT:
			fmt.Println(Stringify(m.pop()))

		case bytecode.OP_JUMP:
			off := m.readU16(fr)
			fr.ip += off
		case bytecode.OP_JUMP_IF_FALSE:
			off := m.readU16(fr)
			if !Truthy(m.peek(0)) {
				fr.ip += off
			}
		case bytecode.OP_LOOP:
			off := m.readU16(fr)
			fr.ip -= off

		case bytecode.OP_CALL:
			argc := int(m.readByte(fr))
			if err := m.callValue(m.peek(argc), argc); err != nil {
				return Nil(), err
			}
		case bytecode.OP_INVOKE:
			name := m.readStringConstant(fr)
			argc := int(m.readByte(fr))
			if err := m.invoke(name, argc); err != nil {
				return Nil(), err
			}
		case bytecode.OP_SUPER_INVOKE:
			name := m.readStringConstant(fr)
			argc := int(m.readByte(fr))
			superVal := m.pop()
			superclass, ok := superVal.Obj.(*ObjClass)
			if !ok {
				return Nil(), m.runtimeErrorf("Superclass must be a class.")
			}
			if err := m.invokeFromClass(superclass, name, argc); err != nil {
				return Nil(), err
			}
		case bytecode.OP_RETURN:
			result := m.pop()
			m.closeUpvaluesFrom(fr.base)
			returnedFrame := m.frames[len(m.frames)-1]
			m.frames = m.frames[:len(m.frames)-1]
			m.sp = returnedFrame.base
			if len(m.frames) == 0 {
				return result, nil
			}
			m.push(result)

		case bytecode.OP_CLOSURE:
			proto, ok := m.readConstant(fr).(*bytecode.Prototype)
			if !ok {
				return Nil(), m.runtimeErrorf("closure constant is not a function prototype")
			}
			fn := m.heap.NewFunction(proto.Name, proto)
			upvalues := make([]*ObjUpvalue, len(proto.Upvalues))
			for i, desc := range proto.Upvalues {
				if desc.IsLocal {
					upvalues[i] = m.captureUpvalue(fr.base + int(desc.Index))
				} else {
					upvalues[i] = fr.closure.Upvalues[desc.Index]
				}
			}
			closure := m.heap.NewClosure(fn, upvalues)
			m.push(ObjVal(closure))
		case bytecode.OP_CLOSE_UPVALUE:
			m.closeUpvaluesFrom(m.sp - 1)
			m.pop()

		case bytecode.OP_CLASS:
			name := m.readStringConstant(fr)
			m.push(ObjVal(m.heap.NewClass(name.Chars)))
		case bytecode.OP_INHERIT:
			superVal := m.peek(1)
			superclass, ok := superVal.Obj.(*ObjClass)
			if superVal.Kind != KindObj || !ok {
				return Nil(), m.runtimeErrorf("Superclass must be a class.")
			}
			subclass := m.peek(0).Obj.(*ObjClass)
			for name, method := range superclass.Methods {
				subclass.Methods[name] = method
			}
			m.pop() // the redundant subclass reference
		case bytecode.OP_METHOD:
			name := m.readStringConstant(fr)
			method := m.pop().Obj.(*ObjClosure)
			class := m.peek(0).Obj.(*ObjClass)
			class.Methods[name.Chars] = method

		case bytecode.OP_GET_PROPERTY:
			name := m.readStringConstant(fr)
			receiver := m.peek(0)
			inst, ok := receiver.Obj.(*ObjInstance)
			if receiver.Kind != KindObj || !ok {
				return Nil(), m.runtimeErrorf("Only instances have properties.")
			}
			if v, ok := inst.Fields[name.Chars]; ok {
				m.pop()
				m.push(v)
				break
			}
			bound, err := m.bindMethod(inst.Class, name, receiver)
			if err != nil {
				return Nil(), err
			}
			m.pop()
			m.push(bound)
		case bytecode.OP_SET_PROPERTY:
			name := m.readStringConstant(fr)
			value := m.peek(0)
			receiver := m.peek(1)
			inst, ok := receiver.Obj.(*ObjInstance)
			if receiver.Kind != KindObj || !ok {
				return Nil(), m.runtimeErrorf("Only instances have fields.")
			}
			inst.Fields[name.Chars] = value
			m.pop()
			m.pop()
			m.push(value)
		case bytecode.OP_GET_SUPER:
			name := m.readStringConstant(fr)
			superVal := m.pop()
			superclass, ok := superVal.Obj.(*ObjClass)
			if !ok {
				return Nil(), m.runtimeErrorf("Superclass must be a class.")
			}
			receiver := m.pop()
			bound, err := m.bindMethod(superclass, name, receiver)
			if err != nil {
				return Nil(), err
			}
			m.push(bound)

		default:
			panic(fmt.Sprintf("vm: unreachable opcode 0x%02X", op))
		}
	}
	return Nil(), nil
}

func (m *VM) constantToValue(c interface{}) Value {
	switch v := c.(type) {
	case nil:
		return Nil()
	case bool:
		return Bool(v)
	case float64:
		return Number(v)
	case *ObjString:
		return ObjVal(v)
	case *bytecode.Prototype:
		fn := m.heap.NewFunction(v.Name, v)
		return ObjVal(fn)
	default:
		panic(fmt.Sprintf("vm: unsupported constant type %T", c))
	}
}

func (m *VM) add(fr *frame) error {
	b := m.peek(0)
	a := m.peek(1)
	switch {
	case a.Kind == KindNumber && b.Kind == KindNumber:
		m.pop()
		m.pop()
		m.push(Number(a.Num + b.Num))
		return nil
	case isString(a) && isString(b):
		m.pop()
		m.pop()
		as := a.Obj.(*ObjString).Chars
		bs := b.Obj.(*ObjString).Chars
		m.push(ObjVal(m.heap.InternString(as + bs)))
		return nil
	default:
		return m.runtimeErrorf("Operands must be two numbers or two strings.")
	}
}

func isString(v Value) bool {
	if v.Kind != KindObj {
		return false
	}
	_, ok := v.Obj.(*ObjString)
	return ok
}

func (m *VM) numericBinary(fr *frame, op func(a, b float64) Value) error {
	b := m.peek(0)
	a := m.peek(1)
	if a.Kind != KindNumber || b.Kind != KindNumber {
		return m.runtimeErrorf("Operands must be numbers.")
	}
	m.pop()
	m.pop()
	m.push(op(a.Num, b.Num))
	return nil
}

// callValue implements CALL's dispatch table (§4.4 "Call dispatch").
func (m *VM) callValue(callee Value, argc int) error {
	if callee.Kind != KindObj {
		return m.runtimeErrorf("Can only call functions and classes.")
	}
	switch obj := callee.Obj.(type) {
	case *ObjClosure:
		return m.callClosure(obj, argc)
	case *ObjNative:
		return m.callNative(obj, argc)
	case *ObjClass:
		return m.callClass(obj, argc)
	case *ObjBoundMethod:
		m.stack[m.sp-argc-1] = obj.Receiver
		return m.callClosure(obj.Method, argc)
	default:
		return m.runtimeErrorf("Can only call functions and classes.")
	}
}

func (m *VM) callClosure(closure *ObjClosure, argc int) error {
	proto := closure.Function.Proto
	if proto != nil && argc != proto.Arity {
		return m.runtimeErrorf("Expected %d arguments but got %d.", proto.Arity, argc)
	}
	if len(m.frames) >= m.maxFrames {
		return m.runtimeErrorf("Stack overflow.")
	}
	base := m.sp - argc - 1
	m.frames = append(m.frames, frame{closure: closure, ip: 0, base: base})
	return nil
}

func (m *VM) callNative(nat *ObjNative, argc int) error {
	if nat.Arity >= 0 && argc != nat.Arity {
		return m.runtimeErrorf("Expected %d arguments but got %d.", nat.Arity, argc)
	}
	args := make([]Value, argc)
	for i := 0; i < argc; i++ {
		args[i] = m.stack[m.sp-argc+i]
	}
	result, err := nat.Fn(m, args)
	if err != nil {
		return m.wrapNativeError(err)
	}
	m.sp -= argc + 1
	m.push(result)
	return nil
}

func (m *VM) callClass(class *ObjClass, argc int) error {
	inst := m.heap.NewInstance(class)
	m.stack[m.sp-argc-1] = ObjVal(inst)
	if init, ok := class.Methods["init"]; ok {
		return m.callClosure(init, argc)
	}
	if argc != 0 {
		return m.runtimeErrorf("Expected 0 arguments but got %d.", argc)
	}
	return nil
}

// invoke fuses a property-get with a call for `expr.name(args)`, checking
// fields first so a field holding a callable still shadows a method.
func (m *VM) invoke(name *ObjString, argc int) error {
	receiver := m.peek(argc)
	inst, ok := receiver.Obj.(*ObjInstance)
	if receiver.Kind != KindObj || !ok {
		return m.runtimeErrorf("Only instances have methods.")
	}
	if v, ok := inst.Fields[name.Chars]; ok {
		m.stack[m.sp-argc-1] = v
		return m.callValue(v, argc)
	}
	return m.invokeFromClass(inst.Class, name, argc)
}

func (m *VM) invokeFromClass(class *ObjClass, name *ObjString, argc int) error {
	method, ok := class.Methods[name.Chars]
	if !ok {
		return m.runtimeErrorf("Undefined property '%s'.", name.Chars)
	}
	return m.callClosure(method, argc)
}

func (m *VM) bindMethod(class *ObjClass, name *ObjString, receiver Value) (Value, error) {
	method, ok := class.Methods[name.Chars]
	if !ok {
		return Nil(), m.runtimeErrorf("Undefined property '%s'.", name.Chars)
	}
	return ObjVal(m.heap.NewBoundMethod(receiver, method)), nil
}

// captureUpvalue implements closure creation's local-capture path (§4.4):
// search the open-upvalue list (sorted by descending slot) and return the
// existing open upvalue or insert a new one in sorted position.
func (m *VM) captureUpvalue(stackIndex int) *ObjUpvalue {
	var prev *ObjUpvalue
	cur := m.openUpvalues
	for cur != nil && cur.StackIndex > stackIndex {
		prev = cur
		cur = cur.OpenNext
	}
	if cur != nil && cur.StackIndex == stackIndex {
		return cur
	}
	created := m.heap.NewUpvalue(&m.stack[stackIndex], stackIndex)
	created.OpenNext = cur
	if prev == nil {
		m.openUpvalues = created
	} else {
		prev.OpenNext = created
	}
	return created
}

// closeUpvaluesFrom closes every open upvalue whose slot is >= from,
// per the Return semantics in §4.4.
func (m *VM) closeUpvaluesFrom(from int) {
	for m.openUpvalues != nil && m.openUpvalues.StackIndex >= from {
		uv := m.openUpvalues
		uv.close()
		m.openUpvalues = uv.OpenNext
		uv.OpenNext = nil
	}
}
