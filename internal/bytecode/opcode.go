package bytecode

// OpCode enumerates bytecode operations.
// Grouped in rows of 8 with reserved slots, mirroring the layout convention
// used throughout this codebase so new forms can be added to a group without
// renumbering the ones that already shipped.
const (
	OP_CONSTANT byte = iota
	OP_NIL
	OP_TRUE
	OP_FALSE
	OP_POP
	_ // reserved
	_ // reserved
	_ // reserved

	OP_ADD
	OP_SUBTRACT
	OP_MULTIPLY
	OP_DIVIDE
	OP_NEGATE
	OP_NOT
	_ // reserved
	_ // reserved

	OP_EQUAL
	OP_GREATER
	OP_LESS
	_ // reserved
	_ // reserved
	_ // reserved
	_ // reserved
	_ // reserved

	OP_GET_GLOBAL
	OP_SET_GLOBAL
	OP_DEFINE_GLOBAL
	_ // reserved
	_ // reserved
	_ // reserved
	_ // reserved
	_ // reserved

	OP_GET_LOCAL
	OP_SET_LOCAL
	OP_GET_UPVALUE
	OP_SET_UPVALUE
	OP_CLOSE_UPVALUE
	_ // reserved
	_ // reserved
	_ // reserved

	OP_GET_PROPERTY
	OP_SET_PROPERTY
	OP_CLASS
	OP_METHOD
	OP_INHERIT
	OP_GET_SUPER
	_ // reserved
	_ // reserved

	OP_JUMP
	OP_JUMP_IF_FALSE
	OP_LOOP
	_ // reserved
	_ // reserved
	_ // reserved
	_ // reserved
	_ // reserved

	OP_CALL
	OP_INVOKE
	OP_SUPER_INVOKE
	OP_RETURN
	OP_CLOSURE
	_ // reserved
	_ // reserved
	_ // reserved

	OP_PRINT
	_ // reserved
	_ // reserved
	_ // reserved
	_ // reserved
	_ // reserved
	_ // reserved
	_ // reserved
)

// Debug-only opcodes, never emitted by the compiler. Reserved block so the
// disassembler and trace hook have stable mnemonics for single-stepping.
const (
	OP_NOP         byte = 0x48
	OP_DEBUG_TRACE      = 0x49

	// 0x80-0x9F: reserved for future built-in operations.
)

var opcodeNames = map[byte]string{
	OP_CONSTANT:      "OP_CONSTANT",
	OP_NIL:           "OP_NIL",
	OP_TRUE:          "OP_TRUE",
	OP_FALSE:         "OP_FALSE",
	OP_POP:           "OP_POP",
	OP_ADD:           "OP_ADD",
	OP_SUBTRACT:      "OP_SUBTRACT",
	OP_MULTIPLY:      "OP_MULTIPLY",
	OP_DIVIDE:        "OP_DIVIDE",
	OP_NEGATE:        "OP_NEGATE",
	OP_NOT:           "OP_NOT",
	OP_EQUAL:         "OP_EQUAL",
	OP_GREATER:       "OP_GREATER",
	OP_LESS:          "OP_LESS",
	OP_GET_GLOBAL:    "OP_GET_GLOBAL",
	OP_SET_GLOBAL:    "OP_SET_GLOBAL",
	OP_DEFINE_GLOBAL: "OP_DEFINE_GLOBAL",
	OP_GET_LOCAL:     "OP_GET_LOCAL",
	OP_SET_LOCAL:     "OP_SET_LOCAL",
	OP_GET_UPVALUE:   "OP_GET_UPVALUE",
	OP_SET_UPVALUE:   "OP_SET_UPVALUE",
	OP_CLOSE_UPVALUE: "OP_CLOSE_UPVALUE",
	OP_GET_PROPERTY:  "OP_GET_PROPERTY",
	OP_SET_PROPERTY:  "OP_SET_PROPERTY",
	OP_CLASS:         "OP_CLASS",
	OP_METHOD:        "OP_METHOD",
	OP_INHERIT:       "OP_INHERIT",
	OP_GET_SUPER:     "OP_GET_SUPER",
	OP_JUMP:          "OP_JUMP",
	OP_JUMP_IF_FALSE: "OP_JUMP_IF_FALSE",
	OP_LOOP:          "OP_LOOP",
	OP_CALL:          "OP_CALL",
	OP_INVOKE:        "OP_INVOKE",
	OP_SUPER_INVOKE:  "OP_SUPER_INVOKE",
	OP_RETURN:        "OP_RETURN",
	OP_CLOSURE:       "OP_CLOSURE",
	OP_PRINT:         "OP_PRINT",
	OP_NOP:           "OP_NOP",
	OP_DEBUG_TRACE:   "OP_DEBUG_TRACE",
}
