package bytecode

import (
	"fmt"
	"io"
)

// Disassemble writes a human-readable listing of chunk to w, one line per
// instruction, headed by name (typically the function name or "script").
func Disassemble(w io.Writer, chunk *Chunk, name string) {
	fmt.Fprintf(w, "== %s ==\n", name)
	for offset := 0; offset < len(chunk.Code); {
		offset = disassembleInstruction(w, chunk, offset)
	}
}

func disassembleInstruction(w io.Writer, chunk *Chunk, offset int) int {
	fmt.Fprintf(w, "%04d %4d ", offset, chunk.LineAt(offset))
	op := chunk.Code[offset]
	switch op {
	case OP_CONSTANT, OP_GET_GLOBAL, OP_SET_GLOBAL, OP_DEFINE_GLOBAL,
		OP_CLASS, OP_GET_PROPERTY, OP_SET_PROPERTY, OP_METHOD, OP_GET_SUPER:
		return constantInstruction(w, OpName(op), chunk, offset)
	case OP_GET_LOCAL, OP_SET_LOCAL, OP_GET_UPVALUE, OP_SET_UPVALUE, OP_CALL:
		return byteInstruction(w, OpName(op), chunk, offset)
	case OP_INVOKE, OP_SUPER_INVOKE:
		return invokeInstruction(w, OpName(op), chunk, offset)
	case OP_JUMP, OP_JUMP_IF_FALSE:
		return jumpInstruction(w, OpName(op), 1, chunk, offset)
	case OP_LOOP:
		return jumpInstruction(w, OpName(op), -1, chunk, offset)
	case OP_CLOSURE:
		return closureInstruction(w, chunk, offset)
	default:
		return simpleInstruction(w, OpName(op), offset)
	}
}

func simpleInstruction(w io.Writer, name string, offset int) int {
	fmt.Fprintln(w, name)
	return offset + 1
}

func constantInstruction(w io.Writer, name string, chunk *Chunk, offset int) int {
	idx := int(chunk.Code[offset+1])<<8 | int(chunk.Code[offset+2])
	fmt.Fprintf(w, "%-16s %4d '%v'\n", name, idx, constAt(chunk, idx))
	return offset + 3
}

func byteInstruction(w io.Writer, name string, chunk *Chunk, offset int) int {
	slot := chunk.Code[offset+1]
	fmt.Fprintf(w, "%-16s %4d\n", name, slot)
	return offset + 2
}

func invokeInstruction(w io.Writer, name string, chunk *Chunk, offset int) int {
	idx := int(chunk.Code[offset+1])<<8 | int(chunk.Code[offset+2])
	argc := chunk.Code[offset+3]
	fmt.Fprintf(w, "%-16s %4d '%v' (%d args)\n", name, idx, constAt(chunk, idx), argc)
	return offset + 4
}

func jumpInstruction(w io.Writer, name string, sign int, chunk *Chunk, offset int) int {
	jump := int(chunk.Code[offset+1])<<8 | int(chunk.Code[offset+2])
	target := offset + 3 + sign*jump
	fmt.Fprintf(w, "%-16s %4d -> %d\n", name, offset, target)
	return offset + 3
}

func closureInstruction(w io.Writer, chunk *Chunk, offset int) int {
	idx := int(chunk.Code[offset+1])<<8 | int(chunk.Code[offset+2])
	offset += 3
	proto, _ := chunk.Consts[idx].(*Prototype)
	fmt.Fprintf(w, "%-16s %4d '%v'\n", "OP_CLOSURE", idx, constAt(chunk, idx))
	if proto == nil {
		return offset
	}
	for _, uv := range proto.Upvalues {
		kind := "upvalue"
		if uv.IsLocal {
			kind = "local"
		}
		fmt.Fprintf(w, "%04d      |                     %s %d\n", offset, kind, uv.Index)
	}
	return offset
}

func constAt(chunk *Chunk, idx int) interface{} {
	if idx < 0 || idx >= len(chunk.Consts) {
		return nil
	}
	return chunk.Consts[idx]
}

// OpName returns the mnemonic for an opcode, used by the disassembler and
// by trace hooks that want a readable label instead of a raw byte.
func OpName(op byte) string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("OP_UNKNOWN(0x%02X)", op)
}
