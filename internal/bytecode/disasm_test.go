package bytecode_test

import (
	"strings"
	"testing"

	"github.com/kenny-goh/kscript/internal/bytecode"
)

func TestDisassembleSimpleChunk(t *testing.T) {
	chunk := &bytecode.Chunk{}
	idx := chunk.AddConstant(1.5)
	chunk.Write(bytecode.OP_CONSTANT, 1)
	chunk.Write(byte(idx>>8), 1)
	chunk.Write(byte(idx), 1)
	chunk.Write(bytecode.OP_RETURN, 1)

	var buf strings.Builder
	bytecode.Disassemble(&buf, chunk, "test chunk")
	out := buf.String()

	if !strings.HasPrefix(out, "== test chunk ==\n") {
		t.Fatalf("missing header, got %q", out)
	}
	if !strings.Contains(out, "OP_CONSTANT") {
		t.Fatalf("expected OP_CONSTANT mnemonic, got %q", out)
	}
	if !strings.Contains(out, "OP_RETURN") {
		t.Fatalf("expected OP_RETURN mnemonic, got %q", out)
	}
}

func TestDisassembleJumpShowsRelativeTarget(t *testing.T) {
	chunk := &bytecode.Chunk{}
	chunk.Write(bytecode.OP_JUMP, 1)
	chunk.Write(0, 1)
	chunk.Write(5, 1)
	chunk.Write(bytecode.OP_RETURN, 1)

	var buf strings.Builder
	bytecode.Disassemble(&buf, chunk, "jump")
	out := buf.String()
	if !strings.Contains(out, "OP_JUMP") {
		t.Fatalf("expected OP_JUMP mnemonic, got %q", out)
	}
	// offset 0, three bytes of instruction, plus a relative jump of 5.
	if !strings.Contains(out, "0 -> 8") {
		t.Fatalf("expected jump target 8, got %q", out)
	}
}

func TestDisassembleUnknownOpcodeFallsBackToHex(t *testing.T) {
	chunk := &bytecode.Chunk{}
	chunk.Write(0x7F, 1)

	var buf strings.Builder
	bytecode.Disassemble(&buf, chunk, "unknown")
	out := buf.String()
	if !strings.Contains(out, "0x7F") {
		t.Fatalf("expected hex fallback for unmapped opcode, got %q", out)
	}
}
