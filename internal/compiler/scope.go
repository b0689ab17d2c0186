package compiler

import (
	"fmt"

	"github.com/kenny-goh/kscript/internal/bytecode"
)

type functionType int

const (
	funcTypeScript functionType = iota
	funcTypeFunction
	funcTypeMethod
	funcTypeInitializer
)

// local is one entry in a funcScope's ordered local-variable array. depth
// is -1 between declaration and initialization, so a variable can't refer
// to itself in its own initializer ("var a = a;").
type local struct {
	name       string
	depth      int
	isCaptured bool
}

// funcScope tracks the locals, upvalues, and block depth of one function
// currently being compiled. funcScopes nest via enclosing to mirror the
// lexical nesting of function literals, letting resolveUpvalue walk
// outward to find a captured variable.
type funcScope struct {
	enclosing    *funcScope
	functionType functionType
	name         string
	arity        int
	locals       []local
	upvalues     []bytecode.UpvalueDesc
	scopeDepth   int
	chunk        *bytecode.Chunk
}

// newFuncScope starts a fresh compiling frame. Local slot 0 is reserved:
// it names `this` inside a method or initializer, and is an anonymous
// slot holding the called closure everywhere else.
func newFuncScope(enclosing *funcScope, ft functionType, name string) *funcScope {
	slot0 := ""
	if ft == funcTypeMethod || ft == funcTypeInitializer {
		slot0 = "this"
	}
	return &funcScope{
		enclosing:    enclosing,
		functionType: ft,
		name:         name,
		chunk:        &bytecode.Chunk{},
		locals:       []local{{name: slot0, depth: 0}},
	}
}

func (s *funcScope) addLocal(name string) int {
	s.locals = append(s.locals, local{name: name, depth: -1})
	return len(s.locals) - 1
}

func (s *funcScope) markInitialized() {
	if len(s.locals) == 0 {
		return
	}
	s.locals[len(s.locals)-1].depth = s.scopeDepth
}

// resolveLocal searches this scope's locals from innermost to outermost,
// so shadowing a name in a nested block finds the nearer declaration.
func (s *funcScope) resolveLocal(name string) (slot int, found bool, uninitialized bool) {
	for i := len(s.locals) - 1; i >= 0; i-- {
		if s.locals[i].name == name {
			return i, true, s.locals[i].depth == -1
		}
	}
	return 0, false, false
}

func (s *funcScope) addUpvalue(index uint8, isLocal bool) (int, error) {
	for i, uv := range s.upvalues {
		if uv.Index == index && uv.IsLocal == isLocal {
			return i, nil
		}
	}
	if len(s.upvalues) == 256 {
		return 0, fmt.Errorf("Too many closure variables in function.")
	}
	s.upvalues = append(s.upvalues, bytecode.UpvalueDesc{IsLocal: isLocal, Index: index})
	return len(s.upvalues) - 1, nil
}

// resolveUpvalue walks the chain of enclosing scopes looking for name as a
// local there, capturing it (marking it isCaptured so the VM closes it on
// scope exit) and recording an upvalue descriptor in every scope between
// the capture site and this one.
func (s *funcScope) resolveUpvalue(name string) (index int, found bool, err error) {
	if s.enclosing == nil {
		return 0, false, nil
	}
	if slot, ok, uninit := s.enclosing.resolveLocal(name); ok {
		if uninit {
			return 0, false, fmt.Errorf("Can't read local variable in its own initializer.")
		}
		s.enclosing.locals[slot].isCaptured = true
		up, upErr := s.addUpvalue(uint8(slot), true)
		return up, upErr == nil, upErr
	}
	if idx, ok, err := s.enclosing.resolveUpvalue(name); err != nil {
		return 0, false, err
	} else if ok {
		up, upErr := s.addUpvalue(uint8(idx), false)
		return up, upErr == nil, upErr
	}
	return 0, false, nil
}
