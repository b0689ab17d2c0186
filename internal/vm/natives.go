package vm

import (
	"fmt"
	"os"
	"time"
)

// RegisterNatives installs the host-provided global functions: `clock`,
// `str`, and the supplemented file-writing pair `writeFile`/`appendFile`.
func RegisterNatives(m *VM) {
	m.defineNative("clock", 0, nativeClock)
	m.defineNative("str", 1, nativeStr)
	m.defineNative("writeFile", 2, nativeWriteFile)
	m.defineNative("appendFile", 2, nativeAppendFile)
}

func (m *VM) defineNative(name string, arity int, fn NativeFn) {
	nat := m.heap.NewNative(name, arity, fn)
	m.DefineGlobal(name, ObjVal(nat))
}

func nativeClock(_ *VM, _ []Value) (Value, error) {
	return Number(float64(time.Now().UnixNano()) / 1e9), nil
}

func nativeStr(m *VM, args []Value) (Value, error) {
	return ObjVal(m.heap.InternString(Stringify(args[0]))), nil
}

func nativeWriteFile(_ *VM, args []Value) (Value, error) {
	return writeFileImpl(args, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
}

func nativeAppendFile(_ *VM, args []Value) (Value, error) {
	return writeFileImpl(args, os.O_WRONLY|os.O_CREATE|os.O_APPEND)
}

func writeFileImpl(args []Value, flag int) (Value, error) {
	path, ok := args[0].Obj.(*ObjString)
	if args[0].Kind != KindObj || !ok {
		return Nil(), fmt.Errorf("expected a string path as the first argument")
	}
	content, ok := args[1].Obj.(*ObjString)
	if args[1].Kind != KindObj || !ok {
		return Nil(), fmt.Errorf("expected a string content as the second argument")
	}
	f, err := os.OpenFile(path.Chars, flag, 0644)
	if err != nil {
		return Nil(), err
	}
	defer f.Close()
	if _, err := f.WriteString(content.Chars); err != nil {
		return Nil(), err
	}
	return Nil(), nil
}
