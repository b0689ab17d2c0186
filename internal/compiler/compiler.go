// Package compiler implements a single-pass Pratt parser that emits
// bytecode directly: there is no intermediate AST. Each declaration or
// expression is translated to its bytecode the moment its grammar rule
// fires, following the precedence-climbing scheme of parsePrecedence.
package compiler

import (
	"strconv"

	"github.com/kenny-goh/kscript/internal/bytecode"
	"github.com/kenny-goh/kscript/internal/lexer"
	"github.com/kenny-goh/kscript/internal/token"
	"github.com/kenny-goh/kscript/internal/vm"
)

type precedence int

const (
	precNone       precedence = iota
	precAssignment            // =
	precOr                    // or
	precAnd                   // and
	precEquality              // == !=
	precComparison            // < > <= >=
	precTerm                  // + -
	precFactor                // * /
	precUnary                 // ! -
	precCall                  // . ()
)

type parseFn func(canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence precedence
}

// classCompiler tracks whether the class currently being compiled has a
// superclass, so `super` can be rejected outside of one, and nests via
// enclosing to support (admittedly unusual) nested class declarations.
type classCompiler struct {
	enclosing     *classCompiler
	hasSuperclass bool
}

// Parser drives the single-pass compile: it pulls tokens from a Lexer on
// demand and emits bytecode into the current funcScope's chunk as each
// grammar rule recognizes a construct.
type Parser struct {
	lex *lexer.Lexer
	heap *vm.Heap

	cur, prev token.Token

	hadError  bool
	panicMode bool
	errs      []*CompileError

	scope *funcScope
	class *classCompiler

	rules map[token.Type]parseRule
}

// Compile compiles source into a top-level script prototype, ready to be
// wrapped in a closure and run by a VM sharing the same heap (so that
// interned string constants in the chunk resolve against that heap's
// intern table).
func Compile(source string, heap *vm.Heap) (*bytecode.Prototype, error) {
	p := &Parser{lex: lexer.New(source), heap: heap}
	p.installRules()
	p.scope = newFuncScope(nil, funcTypeScript, "script")

	heap.AddRootSource(p)
	defer heap.RemoveRootSource(p)

	p.advance()
	for !p.check(token.EOF) {
		p.declaration()
	}
	proto := p.endCompiler()

	if p.hadError {
		return nil, joinErrors(p.errs)
	}
	return proto, nil
}

// MarkRoots implements vm.RootSource: every interned string constant
// already sitting in the chunk of this Parser's scope chain (identifier
// names, string literals) is live even though none of it is reachable
// from a VM yet, so a collection triggered mid-compile must not sweep it.
func (p *Parser) MarkRoots(h *vm.Heap) {
	for s := p.scope; s != nil; s = s.enclosing {
		for _, c := range s.chunk.Consts {
			if str, ok := c.(*vm.ObjString); ok {
				h.MarkObject(str)
			}
		}
	}
}

func (p *Parser) installRules() {
	p.rules = map[token.Type]parseRule{
		token.LParen:       {p.grouping, p.call, precCall},
		token.Dot:          {nil, p.dot, precCall},
		token.Minus:        {p.unary, p.binary, precTerm},
		token.Plus:         {nil, p.binary, precTerm},
		token.Slash:        {nil, p.binary, precFactor},
		token.Star:         {nil, p.binary, precFactor},
		token.Bang:         {p.unary, nil, precNone},
		token.BangEqual:    {nil, p.binary, precEquality},
		token.Equal:        {nil, p.binary, precEquality},
		token.Greater:      {nil, p.binary, precComparison},
		token.GreaterEqual: {nil, p.binary, precComparison},
		token.Less:         {nil, p.binary, precComparison},
		token.LessEqual:    {nil, p.binary, precComparison},
		token.Ident:        {p.variable, nil, precNone},
		token.String:       {p.string, nil, precNone},
		token.Number:       {p.number, nil, precNone},
		token.And:          {nil, p.and, precAnd},
		token.Or:           {nil, p.or, precOr},
		token.False:        {p.literal, nil, precNone},
		token.True:         {p.literal, nil, precNone},
		token.Nil:          {p.literal, nil, precNone},
		token.This:         {p.this, nil, precNone},
		token.Super:        {p.super, nil, precNone},
	}
}

func (p *Parser) ruleFor(t token.Type) parseRule {
	if r, ok := p.rules[t]; ok {
		return r
	}
	return parseRule{nil, nil, precNone}
}

// --- token stream -----------------------------------------------------

func (p *Parser) advance() {
	p.prev = p.cur
	for {
		p.cur = p.lex.NextToken()
		if p.cur.Type != token.Illegal {
			break
		}
		p.errorAtCurrent(p.cur.Literal)
	}
}

func (p *Parser) check(t token.Type) bool { return p.cur.Type == t }

func (p *Parser) match(t token.Type) bool {
	if !p.check(t) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) consume(t token.Type, message string) {
	if p.cur.Type == t {
		p.advance()
		return
	}
	p.errorAtCurrent(message)
}

func (p *Parser) errorAtCurrent(message string) { p.errorAt(p.cur, message) }
func (p *Parser) error(message string)          { p.errorAt(p.prev, message) }

func (p *Parser) errorAt(tok token.Token, message string) {
	if p.panicMode {
		return
	}
	p.panicMode = true
	p.hadError = true
	where := tok.Literal
	if tok.Type == token.EOF {
		where = ""
	}
	p.errs = append(p.errs, &CompileError{Line: tok.Line, Where: where, Message: message})
}

// synchronize discards tokens after a parse error until it reaches a
// plausible statement boundary, so one mistake reports once instead of
// cascading into a wall of follow-on errors.
func (p *Parser) synchronize() {
	p.panicMode = false
	for !p.check(token.EOF) {
		if p.prev.Type == token.Semicolon {
			return
		}
		switch p.cur.Type {
		case token.Class, token.Fun, token.Var, token.For, token.If, token.While, token.Print, token.Return:
			return
		}
		p.advance()
	}
}

// --- chunk emission -----------------------------------------------------

func (p *Parser) currentChunk() *bytecode.Chunk { return p.scope.chunk }

func (p *Parser) emitByte(b byte) {
	p.currentChunk().Write(b, p.prev.Line)
}

func (p *Parser) emitBytes(bs ...byte) {
	for _, b := range bs {
		p.emitByte(b)
	}
}

func (p *Parser) emitU16Op(op byte, idx int) {
	p.emitBytes(op, byte(idx>>8), byte(idx))
}

func (p *Parser) emitReturn() {
	if p.scope.functionType == funcTypeInitializer {
		p.emitBytes(bytecode.OP_GET_LOCAL, 0)
	} else {
		p.emitByte(bytecode.OP_NIL)
	}
	p.emitByte(bytecode.OP_RETURN)
}

// emitJump writes a jump opcode with a two-byte placeholder operand and
// returns the offset of the placeholder for patchJump to fill in later.
func (p *Parser) emitJump(op byte) int {
	p.emitBytes(op, 0xff, 0xff)
	return len(p.currentChunk().Code) - 2
}

// patchJump fills in a forward jump's placeholder with the distance from
// just past its operand to the current end of the chunk.
func (p *Parser) patchJump(placeholder int) {
	jump := len(p.currentChunk().Code) - placeholder - 2
	if jump > 0xffff {
		p.error("Too much code to jump over.")
	}
	code := p.currentChunk().Code
	code[placeholder] = byte(jump >> 8)
	code[placeholder+1] = byte(jump)
}

// emitLoop writes a backward OP_LOOP whose offset returns execution to
// loopStart, the chunk offset recorded before the loop's condition.
func (p *Parser) emitLoop(loopStart int) {
	p.emitByte(bytecode.OP_LOOP)
	offset := len(p.currentChunk().Code) - loopStart + 2
	if offset > 0xffff {
		p.error("Loop body too large.")
	}
	p.emitBytes(byte(offset>>8), byte(offset))
}

func (p *Parser) makeConstant(v interface{}) int {
	idx := p.currentChunk().AddConstant(v)
	if idx > 0xffff {
		p.error("Too many constants in one chunk.")
	}
	return idx
}

func (p *Parser) emitConstant(v interface{}) {
	p.emitU16Op(bytecode.OP_CONSTANT, p.makeConstant(v))
}

func (p *Parser) identifierConstant(name string) int {
	return p.makeConstant(p.heap.InternString(name))
}

// endCompiler closes out the current funcScope, returning to its
// enclosing one (nil at the top level) and assembling the finished
// Prototype.
func (p *Parser) endCompiler() *bytecode.Prototype {
	p.emitReturn()
	s := p.scope
	proto := &bytecode.Prototype{
		Name:     s.name,
		Arity:    s.arity,
		Upvalues: s.upvalues,
		Chunk:    s.chunk,
		IsMethod: s.functionType == funcTypeMethod || s.functionType == funcTypeInitializer,
	}
	p.scope = s.enclosing
	return proto
}

func (p *Parser) beginScope() { p.scope.scopeDepth++ }

func (p *Parser) endScope() {
	p.scope.scopeDepth--
	locals := p.scope.locals
	for len(locals) > 0 && locals[len(locals)-1].depth > p.scope.scopeDepth {
		if locals[len(locals)-1].isCaptured {
			p.emitByte(bytecode.OP_CLOSE_UPVALUE)
		} else {
			p.emitByte(bytecode.OP_POP)
		}
		locals = locals[:len(locals)-1]
	}
	p.scope.locals = locals
}

// --- declarations ---------------------------------------------------------

func (p *Parser) declaration() {
	switch {
	case p.match(token.Fun):
		p.funDeclaration()
	case p.match(token.Var):
		p.varDeclaration()
	case p.match(token.Class):
		p.classDeclaration()
	default:
		p.statement()
	}
	if p.panicMode {
		p.synchronize()
	}
}

func (p *Parser) funDeclaration() {
	p.consume(token.Ident, "Expect a function name.")
	global, name := p.declareNamedVariable()
	p.markInitializedIfLocal()
	p.function(funcTypeFunction, name)
	p.defineVariable(global)
}

// declareNamedVariable consumes no token itself; it records the previous
// identifier token as a local (if inside a scope) and otherwise as a
// global-variable name constant.
func (p *Parser) declareNamedVariable() (globalConst int, name string) {
	name = p.prev.Literal
	p.declareVariable()
	if p.scope.scopeDepth > 0 {
		return 0, name
	}
	return p.identifierConstant(name), name
}

func (p *Parser) declareVariable() {
	if p.scope.scopeDepth == 0 {
		return
	}
	name := p.prev.Literal
	for i := len(p.scope.locals) - 1; i >= 0; i-- {
		l := p.scope.locals[i]
		if l.depth != -1 && l.depth < p.scope.scopeDepth {
			break
		}
		if l.name == name {
			p.error("Already a variable with this name in this scope.")
		}
	}
	if len(p.scope.locals) == 256 {
		p.error("Too many local variables in function.")
		return
	}
	p.scope.addLocal(name)
}

func (p *Parser) markInitializedIfLocal() {
	if p.scope.scopeDepth > 0 {
		p.scope.markInitialized()
	}
}

func (p *Parser) defineVariable(global int) {
	if p.scope.scopeDepth > 0 {
		p.scope.markInitialized()
		return
	}
	p.emitU16Op(bytecode.OP_DEFINE_GLOBAL, global)
}

func (p *Parser) function(ft functionType, name string) {
	enclosing := p.scope
	p.scope = newFuncScope(enclosing, ft, name)
	p.beginScope()

	p.consume(token.LParen, "Expect '(' after function name.")
	if !p.check(token.RParen) {
		for {
			p.scope.arity++
			if p.scope.arity > 255 {
				p.errorAtCurrent("Can't have more than 255 parameters.")
			}
			p.consume(token.Ident, "Expect a parameter name.")
			global, _ := p.declareNamedVariable()
			p.defineVariable(global)
			if !p.match(token.Comma) {
				break
			}
		}
	}
	p.consume(token.RParen, "Expect ')' after parameters.")
	p.consume(token.LBrace, "Expect '{' before function body.")
	p.block()

	proto := p.endCompiler()
	idx := p.makeConstant(proto)
	p.emitU16Op(bytecode.OP_CLOSURE, idx)
}

func (p *Parser) varDeclaration() {
	p.consume(token.Ident, "Expect a variable name.")
	global, _ := p.declareNamedVariable()
	if p.match(token.Assign) {
		p.expression()
	} else {
		p.emitByte(bytecode.OP_NIL)
	}
	p.consume(token.Semicolon, "Expect ';' after variable declaration.")
	p.defineVariable(global)
}

// classDeclaration compiles a class, optionally preceded by `extend
// Super` (or the accepted alias `< Super`). The superclass body opens a
// scope binding `super` as a local so methods can reference it via an
// upvalue, and closes that scope after the class body's closing brace.
func (p *Parser) classDeclaration() {
	p.consume(token.Ident, "Expect a class name.")
	className := p.prev
	nameConst := p.identifierConstant(className.Literal)
	p.declareVariable()

	p.emitU16Op(bytecode.OP_CLASS, nameConst)
	p.defineVariable(nameConst)

	cc := &classCompiler{enclosing: p.class}
	p.class = cc

	if p.match(token.Extend) || p.match(token.Less) {
		p.consume(token.Ident, "Expect superclass name.")
		p.variable(false)
		if p.prev.Literal == className.Literal {
			p.error("A class can't inherit from itself.")
		}
		p.beginScope()
		p.scope.addLocal("super")
		p.scope.markInitialized()
		p.namedVariable(className, false)
		p.emitByte(bytecode.OP_INHERIT)
		cc.hasSuperclass = true
	}

	p.namedVariable(className, false)
	p.consume(token.LBrace, "Expect '{' before class body.")
	for !p.check(token.RBrace) && !p.check(token.EOF) {
		p.method()
	}
	p.consume(token.RBrace, "Expect '}' after class body.")
	p.emitByte(bytecode.OP_POP)

	if cc.hasSuperclass {
		p.endScope()
	}
	p.class = cc.enclosing
}

func (p *Parser) method() {
	p.consume(token.Ident, "Expect a method name.")
	name := p.prev.Literal
	nameConst := p.identifierConstant(name)
	ft := funcTypeMethod
	if name == "init" {
		ft = funcTypeInitializer
	}
	p.function(ft, name)
	p.emitU16Op(bytecode.OP_METHOD, nameConst)
}

// --- statements -------------------------------------------------------

func (p *Parser) statement() {
	switch {
	case p.match(token.Print):
		p.printStatement()
	case p.match(token.For):
		p.forStatement()
	case p.match(token.If):
		p.ifStatement()
	case p.match(token.Return):
		p.returnStatement()
	case p.match(token.While):
		p.whileStatement()
	case p.match(token.LBrace):
		p.beginScope()
		p.block()
		p.endScope()
	default:
		p.expressionStatement()
	}
}

func (p *Parser) block() {
	for !p.check(token.RBrace) && !p.check(token.EOF) {
		p.declaration()
	}
	p.consume(token.RBrace, "Expect '}' after block.")
}

func (p *Parser) expressionStatement() {
	p.expression()
	p.consume(token.Semicolon, "Expect ';' after expression.")
	p.emitByte(bytecode.OP_POP)
}

func (p *Parser) printStatement() {
	p.expression()
	p.consume(token.Semicolon, "Expect ';' after value.")
	p.emitByte(bytecode.OP_PRINT)
}

func (p *Parser) returnStatement() {
	if p.scope.functionType == funcTypeScript {
		p.error("Can't return from top-level code.")
	}
	if p.match(token.Semicolon) {
		p.emitReturn()
		return
	}
	if p.scope.functionType == funcTypeInitializer {
		p.error("Can't return a value from an initializer.")
	}
	p.expression()
	p.consume(token.Semicolon, "Expect ';' after return value.")
	p.emitByte(bytecode.OP_RETURN)
}

func (p *Parser) ifStatement() {
	p.consume(token.LParen, "Expect '(' after 'if'.")
	p.expression()
	p.consume(token.RParen, "Expect ')' after condition.")

	thenJump := p.emitJump(bytecode.OP_JUMP_IF_FALSE)
	p.emitByte(bytecode.OP_POP)
	p.statement()

	elseJump := p.emitJump(bytecode.OP_JUMP)
	p.patchJump(thenJump)
	p.emitByte(bytecode.OP_POP)

	if p.match(token.Else) {
		p.statement()
	}
	p.patchJump(elseJump)
}

func (p *Parser) whileStatement() {
	loopStart := len(p.currentChunk().Code)
	p.consume(token.LParen, "Expect '(' after 'while'.")
	p.expression()
	p.consume(token.RParen, "Expect ')' after condition.")

	exitJump := p.emitJump(bytecode.OP_JUMP_IF_FALSE)
	p.emitByte(bytecode.OP_POP)
	p.statement()
	p.emitLoop(loopStart)

	p.patchJump(exitJump)
	p.emitByte(bytecode.OP_POP)
}

func (p *Parser) forStatement() {
	p.beginScope()
	p.consume(token.LParen, "Expect '(' after 'for'.")

	switch {
	case p.match(token.Semicolon):
		// no initializer
	case p.match(token.Var):
		p.varDeclaration()
	default:
		p.expressionStatement()
	}

	loopStart := len(p.currentChunk().Code)
	exitJump := -1
	if !p.match(token.Semicolon) {
		p.expression()
		p.consume(token.Semicolon, "Expect ';' after loop condition.")
		exitJump = p.emitJump(bytecode.OP_JUMP_IF_FALSE)
		p.emitByte(bytecode.OP_POP)
	}

	if !p.match(token.RParen) {
		bodyJump := p.emitJump(bytecode.OP_JUMP)
		incrementStart := len(p.currentChunk().Code)
		p.expression()
		p.emitByte(bytecode.OP_POP)
		p.consume(token.RParen, "Expect ')' after for clauses.")

		p.emitLoop(loopStart)
		loopStart = incrementStart
		p.patchJump(bodyJump)
	}

	p.statement()
	p.emitLoop(loopStart)

	if exitJump != -1 {
		p.patchJump(exitJump)
		p.emitByte(bytecode.OP_POP)
	}
	p.endScope()
}

// --- expressions --------------------------------------------------------

func (p *Parser) expression() { p.parsePrecedence(precAssignment) }

func (p *Parser) parsePrecedence(prec precedence) {
	p.advance()
	rule := p.ruleFor(p.prev.Type)
	if rule.prefix == nil {
		p.error("Expect expression.")
		return
	}
	canAssign := prec <= precAssignment
	rule.prefix(canAssign)

	for prec <= p.ruleFor(p.cur.Type).precedence {
		p.advance()
		infix := p.ruleFor(p.prev.Type).infix
		infix(canAssign)
	}

	if canAssign && p.match(token.Assign) {
		p.error("Invalid assignment target.")
	}
}

func (p *Parser) number(_ bool) {
	val, _ := strconv.ParseFloat(p.prev.Literal, 64)
	p.emitConstant(val)
}

func (p *Parser) string(_ bool) {
	p.emitConstant(p.heap.InternString(p.prev.Literal))
}

func (p *Parser) literal(_ bool) {
	switch p.prev.Type {
	case token.False:
		p.emitByte(bytecode.OP_FALSE)
	case token.True:
		p.emitByte(bytecode.OP_TRUE)
	case token.Nil:
		p.emitByte(bytecode.OP_NIL)
	}
}

func (p *Parser) grouping(_ bool) {
	p.expression()
	p.consume(token.RParen, "Expect ')' after expression.")
}

func (p *Parser) unary(_ bool) {
	opType := p.prev.Type
	p.parsePrecedence(precUnary)
	switch opType {
	case token.Minus:
		p.emitByte(bytecode.OP_NEGATE)
	case token.Bang:
		p.emitByte(bytecode.OP_NOT)
	}
}

func (p *Parser) binary(_ bool) {
	opType := p.prev.Type
	rule := p.ruleFor(opType)
	p.parsePrecedence(rule.precedence + 1)
	switch opType {
	case token.Plus:
		p.emitByte(bytecode.OP_ADD)
	case token.Minus:
		p.emitByte(bytecode.OP_SUBTRACT)
	case token.Star:
		p.emitByte(bytecode.OP_MULTIPLY)
	case token.Slash:
		p.emitByte(bytecode.OP_DIVIDE)
	case token.BangEqual:
		p.emitBytes(bytecode.OP_EQUAL, bytecode.OP_NOT)
	case token.Equal:
		p.emitByte(bytecode.OP_EQUAL)
	case token.Greater:
		p.emitByte(bytecode.OP_GREATER)
	case token.GreaterEqual:
		p.emitBytes(bytecode.OP_LESS, bytecode.OP_NOT)
	case token.Less:
		p.emitByte(bytecode.OP_LESS)
	case token.LessEqual:
		p.emitBytes(bytecode.OP_GREATER, bytecode.OP_NOT)
	}
}

func (p *Parser) and(_ bool) {
	endJump := p.emitJump(bytecode.OP_JUMP_IF_FALSE)
	p.emitByte(bytecode.OP_POP)
	p.parsePrecedence(precAnd)
	p.patchJump(endJump)
}

func (p *Parser) or(_ bool) {
	elseJump := p.emitJump(bytecode.OP_JUMP_IF_FALSE)
	endJump := p.emitJump(bytecode.OP_JUMP)
	p.patchJump(elseJump)
	p.emitByte(bytecode.OP_POP)
	p.parsePrecedence(precOr)
	p.patchJump(endJump)
}

func (p *Parser) call(_ bool) {
	argc := p.argumentList()
	p.emitBytes(bytecode.OP_CALL, byte(argc))
}

func (p *Parser) argumentList() int {
	argc := 0
	if !p.check(token.RParen) {
		for {
			p.expression()
			if argc == 255 {
				p.error("Can't have more than 255 arguments.")
			}
			argc++
			if !p.match(token.Comma) {
				break
			}
		}
	}
	p.consume(token.RParen, "Expect ')' after arguments.")
	return argc
}

func (p *Parser) dot(canAssign bool) {
	p.consume(token.Ident, "Expect property name after '.'.")
	name := p.identifierConstant(p.prev.Literal)
	switch {
	case canAssign && p.match(token.Assign):
		p.expression()
		p.emitU16Op(bytecode.OP_SET_PROPERTY, name)
	case p.match(token.LParen):
		argc := p.argumentList()
		p.emitU16Op(bytecode.OP_INVOKE, name)
		p.emitByte(byte(argc))
	default:
		p.emitU16Op(bytecode.OP_GET_PROPERTY, name)
	}
}

func (p *Parser) this(_ bool) {
	if p.class == nil {
		p.error("Can't use 'this' outside of a class.")
		return
	}
	p.variable(false)
}

func (p *Parser) super(_ bool) {
	if p.class == nil {
		p.error("Can't use 'super' outside of a class.")
	} else if !p.class.hasSuperclass {
		p.error("Can't use 'super' in a class with no superclass.")
	}
	p.consume(token.Dot, "Expect '.' after 'super'.")
	p.consume(token.Ident, "Expect superclass method name.")
	name := p.identifierConstant(p.prev.Literal)

	p.namedVariable(token.Token{Type: token.This, Literal: "this", Line: p.prev.Line}, false)
	if p.match(token.LParen) {
		argc := p.argumentList()
		p.namedVariable(token.Token{Type: token.Super, Literal: "super", Line: p.prev.Line}, false)
		p.emitU16Op(bytecode.OP_SUPER_INVOKE, name)
		p.emitByte(byte(argc))
	} else {
		p.namedVariable(token.Token{Type: token.Super, Literal: "super", Line: p.prev.Line}, false)
		p.emitU16Op(bytecode.OP_GET_SUPER, name)
	}
}

func (p *Parser) variable(canAssign bool) {
	p.namedVariable(p.prev, canAssign)
}

// varRef describes how a named variable resolved: to a local slot, a
// captured upvalue, or a global constant name. Local/upvalue operands
// are one byte (array slot); global operands are the two-byte constant
// index identifying the interned name string.
type varRefKind int

const (
	refLocal varRefKind = iota
	refUpvalue
	refGlobal
)

func (p *Parser) namedVariable(tok token.Token, canAssign bool) {
	var kind varRefKind
	var arg int

	if slot, found, uninit := p.scope.resolveLocal(tok.Literal); found {
		if uninit {
			p.error("Can't read local variable in its own initializer.")
		}
		kind, arg = refLocal, slot
	} else if idx, found, err := p.scope.resolveUpvalue(tok.Literal); err != nil {
		p.error(err.Error())
		kind, arg = refUpvalue, idx
	} else if found {
		kind, arg = refUpvalue, idx
	} else {
		kind, arg = refGlobal, p.identifierConstant(tok.Literal)
	}

	switch {
	case canAssign && p.match(token.Assign):
		p.expression()
		p.emitSet(kind, arg)
	case canAssign && p.match(token.PlusEqual):
		p.emitGet(kind, arg)
		p.expression()
		p.emitByte(bytecode.OP_ADD)
		p.emitSet(kind, arg)
	case canAssign && p.match(token.MinusEqual):
		p.emitGet(kind, arg)
		p.expression()
		p.emitByte(bytecode.OP_SUBTRACT)
		p.emitSet(kind, arg)
	case canAssign && p.match(token.StarEqual):
		p.emitGet(kind, arg)
		p.expression()
		p.emitByte(bytecode.OP_MULTIPLY)
		p.emitSet(kind, arg)
	case canAssign && p.match(token.SlashEqual):
		p.emitGet(kind, arg)
		p.expression()
		p.emitByte(bytecode.OP_DIVIDE)
		p.emitSet(kind, arg)
	default:
		p.emitGet(kind, arg)
	}
}

func (p *Parser) emitGet(kind varRefKind, arg int) {
	switch kind {
	case refLocal:
		p.emitBytes(bytecode.OP_GET_LOCAL, byte(arg))
	case refUpvalue:
		p.emitBytes(bytecode.OP_GET_UPVALUE, byte(arg))
	case refGlobal:
		p.emitU16Op(bytecode.OP_GET_GLOBAL, arg)
	}
}

func (p *Parser) emitSet(kind varRefKind, arg int) {
	switch kind {
	case refLocal:
		p.emitBytes(bytecode.OP_SET_LOCAL, byte(arg))
	case refUpvalue:
		p.emitBytes(bytecode.OP_SET_UPVALUE, byte(arg))
	case refGlobal:
		p.emitU16Op(bytecode.OP_SET_GLOBAL, arg)
	}
}
