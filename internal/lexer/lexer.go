package lexer

import (
	"strings"

	"github.com/kenny-goh/kscript/internal/token"
)

// Lexer converts source text into a stream of tokens.
// It is finite and not restartable: once NextToken returns an EOF token,
// every subsequent call returns EOF again.
type Lexer struct {
	input   string
	pos     int  // current position in bytes
	readPos int  // next read position
	ch      byte // current char
	line    int
}

// New creates a lexer for the provided source text.
func New(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
	}
	l.readChar()
	return l
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() token.Token {
	l.skipWhitespaceAndComments()

	if l.ch == 0 {
		return l.makeToken(token.EOF, "")
	}

	switch l.ch {
	case '(':
		return l.advanceToken(token.LParen, string(l.ch))
	case ')':
		return l.advanceToken(token.RParen, string(l.ch))
	case '{':
		return l.advanceToken(token.LBrace, string(l.ch))
	case '}':
		return l.advanceToken(token.RBrace, string(l.ch))
	case ',':
		return l.advanceToken(token.Comma, string(l.ch))
	case '.':
		return l.advanceToken(token.Dot, string(l.ch))
	case ';':
		return l.advanceToken(token.Semicolon, string(l.ch))
	case '+':
		if l.peekChar() == '=' {
			return l.advanceTwoToken(token.PlusEqual, "+=")
		}
		return l.advanceToken(token.Plus, string(l.ch))
	case '-':
		if l.peekChar() == '=' {
			return l.advanceTwoToken(token.MinusEqual, "-=")
		}
		return l.advanceToken(token.Minus, string(l.ch))
	case '*':
		if l.peekChar() == '=' {
			return l.advanceTwoToken(token.StarEqual, "*=")
		}
		return l.advanceToken(token.Star, string(l.ch))
	case '/':
		if l.peekChar() == '=' {
			return l.advanceTwoToken(token.SlashEqual, "/=")
		}
		return l.advanceToken(token.Slash, string(l.ch))
	case '!':
		if l.peekChar() == '=' {
			return l.advanceTwoToken(token.BangEqual, "!=")
		}
		return l.advanceToken(token.Bang, string(l.ch))
	case '=':
		if l.peekChar() == '=' {
			return l.advanceTwoToken(token.Equal, "==")
		}
		return l.advanceToken(token.Assign, string(l.ch))
	case '<':
		if l.peekChar() == '=' {
			return l.advanceTwoToken(token.LessEqual, "<=")
		}
		return l.advanceToken(token.Less, string(l.ch))
	case '>':
		if l.peekChar() == '=' {
			return l.advanceTwoToken(token.GreaterEqual, ">=")
		}
		return l.advanceToken(token.Greater, string(l.ch))
	case '"':
		return l.readString()
	default:
		if isLetter(l.ch) {
			return l.readIdentifier()
		}
		if isDigit(l.ch) {
			return l.readNumber()
		}
		return l.advanceToken(token.Illegal, "Unexpected character.")
	}
}

func (l *Lexer) makeToken(t token.Type, lit string) token.Token {
	return token.Token{Type: t, Literal: lit, Line: l.line}
}

// advanceToken emits a token for the current char and consumes one byte.
func (l *Lexer) advanceToken(t token.Type, lit string) token.Token {
	tok := l.makeToken(t, lit)
	l.readChar()
	return tok
}

// advanceTwoToken emits a token for a two-char lexeme and consumes both bytes.
func (l *Lexer) advanceTwoToken(t token.Type, lit string) token.Token {
	tok := l.makeToken(t, lit)
	l.readChar()
	l.readChar()
	return tok
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		switch l.ch {
		case ' ', '\t', '\r', '\n':
			l.readChar()
		case '/':
			if l.peekChar() == '/' {
				l.skipLineComment()
				continue
			}
			if l.peekChar() == '*' {
				l.skipBlockComment()
				continue
			}
			return
		default:
			return
		}
	}
}

func (l *Lexer) skipLineComment() {
	for l.ch != 0 && l.ch != '\n' {
		l.readChar()
	}
}

// skipBlockComment consumes a non-nesting /* ... */ comment (supplemented, §12).
func (l *Lexer) skipBlockComment() {
	l.readChar() // consume '/'
	l.readChar() // consume '*'
	for {
		if l.ch == 0 {
			return
		}
		if l.ch == '*' && l.peekChar() == '/' {
			l.readChar()
			l.readChar()
			return
		}
		l.readChar()
	}
}

func (l *Lexer) readIdentifier() token.Token {
	line := l.line
	var sb strings.Builder
	for isLetter(l.ch) || isDigit(l.ch) {
		sb.WriteByte(l.ch)
		l.readChar()
	}
	lit := sb.String()
	return token.Token{Type: token.LookupIdent(lit), Literal: lit, Line: line}
}

func (l *Lexer) readNumber() token.Token {
	line := l.line
	var sb strings.Builder
	for isDigit(l.ch) {
		sb.WriteByte(l.ch)
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		sb.WriteByte(l.ch)
		l.readChar()
		for isDigit(l.ch) {
			sb.WriteByte(l.ch)
			l.readChar()
		}
	}
	return token.Token{Type: token.Number, Literal: sb.String(), Line: line}
}

// readString reads a double-quoted string literal. No escape sequences;
// newlines are allowed inside the literal.
func (l *Lexer) readString() token.Token {
	line := l.line
	var sb strings.Builder
	l.readChar() // consume opening quote
	for l.ch != '"' {
		if l.ch == 0 {
			return token.Token{Type: token.Illegal, Literal: "Unterminated string.", Line: line}
		}
		sb.WriteByte(l.ch)
		l.readChar()
	}
	l.readChar() // consume closing quote
	return token.Token{Type: token.String, Literal: sb.String(), Line: line}
}

func isLetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.pos = l.readPos
		l.ch = 0
		return
	}
	l.ch = l.input[l.readPos]
	l.pos = l.readPos
	l.readPos++
	if l.ch == '\n' {
		l.line++
	}
}
