package lexer_test

import (
	"testing"

	"github.com/kenny-goh/kscript/internal/lexer"
	"github.com/kenny-goh/kscript/internal/token"
)

func collectTypes(t *testing.T, src string) []token.Type {
	t.Helper()
	l := lexer.New(src)
	var types []token.Type
	for {
		tok := l.NextToken()
		types = append(types, tok.Type)
		if tok.Type == token.EOF {
			return types
		}
	}
}

func TestLexerPunctuationAndOperators(t *testing.T) {
	src := `+ - * / += -= *= /= ! != = == < <= > >= ( ) { } , . ;`
	want := []token.Type{
		token.Plus, token.Minus, token.Star, token.Slash,
		token.PlusEqual, token.MinusEqual, token.StarEqual, token.SlashEqual,
		token.Bang, token.BangEqual, token.Assign, token.Equal,
		token.Less, token.LessEqual, token.Greater, token.GreaterEqual,
		token.LParen, token.RParen, token.LBrace, token.RBrace,
		token.Comma, token.Dot, token.Semicolon, token.EOF,
	}
	got := collectTypes(t, src)
	assertTypes(t, got, want)
}

func TestLexerKeywordsAndExtendAlias(t *testing.T) {
	src := `class extend fun var return this super and or if else while for print true false nil`
	want := []token.Type{
		token.Class, token.Extend, token.Fun, token.Var, token.Return,
		token.This, token.Super, token.And, token.Or, token.If, token.Else,
		token.While, token.For, token.Print, token.True, token.False, token.Nil,
		token.EOF,
	}
	got := collectTypes(t, src)
	assertTypes(t, got, want)
}

func TestLexerIdentifierVsKeyword(t *testing.T) {
	got := collectTypes(t, "classify extends x")
	want := []token.Type{token.Ident, token.Ident, token.Ident, token.EOF}
	assertTypes(t, got, want)
}

func TestLexerNumberLiteral(t *testing.T) {
	l := lexer.New("3.14 42")
	tok := l.NextToken()
	if tok.Type != token.Number || tok.Literal != "3.14" {
		t.Fatalf("got %#v", tok)
	}
	tok = l.NextToken()
	if tok.Type != token.Number || tok.Literal != "42" {
		t.Fatalf("got %#v", tok)
	}
}

func TestLexerStringLiteral(t *testing.T) {
	l := lexer.New(`"hello world"`)
	tok := l.NextToken()
	if tok.Type != token.String || tok.Literal != "hello world" {
		t.Fatalf("got %#v", tok)
	}
}

func TestLexerUnterminatedString(t *testing.T) {
	l := lexer.New(`"hello`)
	tok := l.NextToken()
	if tok.Type != token.Illegal {
		t.Fatalf("expected Illegal, got %#v", tok)
	}
}

func TestLexerLineComment(t *testing.T) {
	got := collectTypes(t, "1 // two \n 3")
	want := []token.Type{token.Number, token.Number, token.EOF}
	assertTypes(t, got, want)
}

func TestLexerBlockComment(t *testing.T) {
	got := collectTypes(t, "1 /* skip\nthis */ 2")
	want := []token.Type{token.Number, token.Number, token.EOF}
	assertTypes(t, got, want)
}

func TestLexerLineNumbers(t *testing.T) {
	l := lexer.New("1\n2\n3")
	for i, want := range []int{1, 2, 3} {
		tok := l.NextToken()
		if tok.Line != want {
			t.Fatalf("token %d: expected line %d, got %d", i, want, tok.Line)
		}
	}
}

func assertTypes(t *testing.T, got, want []token.Type) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d: got %s want %s", i, got[i], want[i])
		}
	}
}
