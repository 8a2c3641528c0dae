package asm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Tokens
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenError
	TokenNewline
	TokenIdent    // mnemonics: leti, jmp_!=
	TokenRegister // r0..r255
	TokenInteger  // 42, -7, 0x1F
	TokenString   // "text"
	TokenComma
	TokenColon
)

var tokenNames = map[TokenType]string{
	TokenEOF:      "EOF",
	TokenError:    "ERROR",
	TokenNewline:  "NEWLINE",
	TokenIdent:    "IDENT",
	TokenRegister: "REGISTER",
	TokenInteger:  "INTEGER",
	TokenString:   "STRING",
	TokenComma:    ",",
	TokenColon:    ":",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Column  int
}

// ---------------------------------------------------------------------------
// Lexer
// ---------------------------------------------------------------------------

// Lexer tokenizes quest assembly. Input is treated as ASCII outside of
// string literals.
type Lexer struct {
	input string
	pos   int
	line  int
	col   int
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input, line: 1, col: 1}
}

func (l *Lexer) peek() byte {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

func (l *Lexer) advance() byte {
	ch := l.input[l.pos]
	l.pos++
	if ch == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return ch
}

func (l *Lexer) skipSpaceAndComments() {
	for l.pos < len(l.input) {
		ch := l.peek()
		switch {
		case ch == ' ' || ch == '\t' || ch == '\r':
			l.advance()
		case ch == ';' || strings.HasPrefix(l.input[l.pos:], "//"):
			for l.pos < len(l.input) && l.peek() != '\n' {
				l.advance()
			}
		default:
			return
		}
	}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	l.skipSpaceAndComments()

	tok := Token{Line: l.line, Column: l.col}
	if l.pos >= len(l.input) {
		tok.Type = TokenEOF
		return tok
	}

	start := l.pos
	ch := l.peek()
	switch {
	case ch == '\n':
		l.advance()
		tok.Type, tok.Literal = TokenNewline, "\n"
	case ch == ',':
		l.advance()
		tok.Type, tok.Literal = TokenComma, ","
	case ch == ':':
		l.advance()
		tok.Type, tok.Literal = TokenColon, ":"
	case ch == '"':
		return l.readString(tok)
	case ch == '-' || isDigit(ch):
		l.advance()
		for isAlnum(l.peek()) {
			l.advance()
		}
		tok.Type, tok.Literal = TokenInteger, l.input[start:l.pos]
	case isMnemonicChar(ch):
		for isMnemonicChar(l.peek()) {
			l.advance()
		}
		tok.Literal = l.input[start:l.pos]
		tok.Type = TokenIdent
		if isRegister(tok.Literal) {
			tok.Type = TokenRegister
		}
	default:
		l.advance()
		tok.Type, tok.Literal = TokenError, fmt.Sprintf("unexpected character %q", ch)
	}
	return tok
}

func (l *Lexer) readString(tok Token) Token {
	l.advance() // opening quote
	var b strings.Builder
	for {
		if l.pos >= len(l.input) || l.peek() == '\n' {
			tok.Type, tok.Literal = TokenError, "unterminated string"
			return tok
		}
		ch := l.advance()
		if ch == '"' {
			break
		}
		if ch == '\\' && l.pos < len(l.input) {
			switch esc := l.advance(); esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(esc)
			}
			continue
		}
		b.WriteByte(ch)
	}
	tok.Type, tok.Literal = TokenString, b.String()
	return tok
}

// Tokenize returns every token up to and including EOF.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens
		}
	}
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }

func isAlnum(ch byte) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isMnemonicChar(ch byte) bool {
	return isAlnum(ch) || ch == '=' || ch == '!' || ch == '<' || ch == '>'
}

func isRegister(s string) bool {
	if len(s) < 2 || (s[0] != 'r' && s[0] != 'R') {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}
