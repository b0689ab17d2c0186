package vm

import (
	"fmt"
	"strings"
)

// TraceInfo describes a single instruction dispatch, for debugging/profiling hooks.
type TraceInfo struct {
	Op       byte
	Function string
	Line     int
	IP       int
}

// TraceHook observes instruction dispatch.
type TraceHook func(TraceInfo)

// FrameInfo captures one call frame at the time of an error or trace event.
type FrameInfo struct {
	Function string
	Line     int
	IP       int
}

// RuntimeError is a source-aware execution failure. A runtime error puts
// the VM into the errored state (§4.4): the message plus a frame-by-frame
// trace, printed `[line L] in <function name>` per frame, top-down.
type RuntimeError struct {
	Message string
	Frame   FrameInfo
	Stack   []FrameInfo
	Cause   error
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	for _, fr := range e.Stack {
		name := fr.Function
		if name == "" {
			name = "script"
		}
		fmt.Fprintf(&b, "\n[line %d] in %s", fr.Line, name)
	}
	return b.String()
}

// Unwrap exposes a wrapped native-function failure for errors.Is/As.
func (e *RuntimeError) Unwrap() error { return e.Cause }

func (m *VM) runtimeErrorf(format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	return m.newRuntimeError(msg, nil)
}

func (m *VM) wrapNativeError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*RuntimeError); ok {
		return err
	}
	return m.newRuntimeError(err.Error(), err)
}

func (m *VM) newRuntimeError(msg string, cause error) *RuntimeError {
	stack := m.stackTrace()
	var top FrameInfo
	if len(stack) > 0 {
		top = stack[0]
	}
	return &RuntimeError{Message: msg, Frame: top, Stack: stack, Cause: cause}
}

func (m *VM) stackTrace() []FrameInfo {
	trace := make([]FrameInfo, 0, len(m.frames))
	for i := len(m.frames) - 1; i >= 0; i-- {
		fr := &m.frames[i]
		trace = append(trace, m.frameInfo(fr))
	}
	return trace
}

func (m *VM) frameInfo(fr *frame) FrameInfo {
	name := fr.closure.Function.Name
	if name == "" {
		name = "script"
	}
	line := 0
	if fr.closure.Function.Proto != nil {
		ip := fr.ip - 1
		line = fr.closure.Function.Proto.Chunk.LineAt(ip)
	}
	return FrameInfo{Function: name, Line: line, IP: fr.ip}
}

func (m *VM) trace(fr *frame, op byte) {
	if m.traceHook == nil {
		return
	}
	info := m.frameInfo(fr)
	m.traceHook(TraceInfo{Op: op, Function: info.Function, Line: info.Line, IP: info.IP})
}
