package expr

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// TokenKind identifies the type of a lexer token.
type TokenKind int

const (
	// Literals and identifiers
	TokenNumber TokenKind = iota // numeric literal
	TokenIdent                   // identifier

	// Operators
	TokenPlus  // +
	TokenMinus // -
	TokenStar  // *
	TokenSlash // /
	TokenCaret // ^ or **

	// Delimiters
	TokenLParen // (
	TokenRParen // )
	TokenComma  // ,

	// Special
	TokenEOF
)

var tokenNames = map[TokenKind]string{
	TokenNumber: "number",
	TokenIdent:  "identifier",
	TokenPlus:   "+",
	TokenMinus:  "-",
	TokenStar:   "*",
	TokenSlash:  "/",
	TokenCaret:  "^",
	TokenLParen: "(",
	TokenRParen: ")",
	TokenComma:  ",",
	TokenEOF:    "end of input",
}

func (k TokenKind) String() string {
	if name, ok := tokenNames[k]; ok {
		return name
	}
	return fmt.Sprintf("token(%d)", int(k))
}

// Token is a lexed token with position information.
type Token struct {
	Kind  TokenKind
	Value string // raw text of the token
	Pos   int    // byte offset in source
}

// Lexer tokenizes expression strings.
type Lexer struct {
	src    string
	pos    int
	tokens []Token
}

// Lex tokenizes the input string and returns all tokens, terminated by
// a TokenEOF.
func Lex(src string) ([]Token, error) {
	l := &Lexer{src: src}
	if err := l.lexAll(); err != nil {
		return nil, err
	}
	return l.tokens, nil
}

func (l *Lexer) lexAll() error {
	for {
		l.skipWhitespace()
		if l.pos >= len(l.src) {
			l.tokens = append(l.tokens, Token{Kind: TokenEOF, Pos: l.pos})
			return nil
		}

		ch, _ := utf8.DecodeRuneInString(l.src[l.pos:])
		if l.tryEmitOperator(ch) {
			continue
		}

		switch {
		case isDigit(ch) || (ch == '.' && isDigit(rune(l.peekNext()))):
			if err := l.lexNumber(); err != nil {
				return err
			}
		case isIdentStart(ch):
			l.lexIdent()
		default:
			return syntaxErrorf(l.pos, "unexpected character %q", string(ch))
		}
	}
}

func (l *Lexer) tryEmitOperator(ch rune) bool {
	switch ch {
	case '*':
		if l.peekNext() == '*' {
			l.emit(TokenCaret, 2)
		} else {
			l.emit(TokenStar, 1)
		}
	case '^':
		l.emit(TokenCaret, 1)
	case '+':
		l.emit(TokenPlus, 1)
	case '-':
		l.emit(TokenMinus, 1)
	case '/':
		l.emit(TokenSlash, 1)
	case '(':
		l.emit(TokenLParen, 1)
	case ')':
		l.emit(TokenRParen, 1)
	case ',':
		l.emit(TokenComma, 1)
	default:
		return false
	}
	return true
}

func (l *Lexer) peekNext() byte {
	next := l.pos + 1
	if next >= len(l.src) {
		return 0
	}
	return l.src[next]
}

func (l *Lexer) emit(kind TokenKind, width int) {
	l.tokens = append(l.tokens, Token{Kind: kind, Value: l.src[l.pos : l.pos+width], Pos: l.pos})
	l.pos += width
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.src) {
		ch, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if !unicode.IsSpace(ch) {
			break
		}
		l.pos += size
	}
}

// lexNumber scans digits, an optional fraction and an optional exponent.
// "2e" without exponent digits stops before the 'e' so the parser reports
// the adjacent identifier instead of silently multiplying.
func (l *Lexer) lexNumber() error {
	start := l.pos
	l.skipDigits()
	if l.pos < len(l.src) && l.src[l.pos] == '.' {
		l.pos++
		l.skipDigits()
		if l.pos < len(l.src) && l.src[l.pos] == '.' {
			return syntaxErrorf(start, "malformed number %q", l.src[start:l.pos+1])
		}
	}
	if l.pos < len(l.src) && (l.src[l.pos] == 'e' || l.src[l.pos] == 'E') {
		exp := l.pos + 1
		if exp < len(l.src) && (l.src[exp] == '+' || l.src[exp] == '-') {
			exp++
		}
		if exp < len(l.src) && isDigit(rune(l.src[exp])) {
			l.pos = exp
			l.skipDigits()
		}
	}
	l.tokens = append(l.tokens, Token{Kind: TokenNumber, Value: l.src[start:l.pos], Pos: start})
	return nil
}

func (l *Lexer) skipDigits() {
	for l.pos < len(l.src) && isDigit(rune(l.src[l.pos])) {
		l.pos++
	}
}

func (l *Lexer) lexIdent() {
	start := l.pos
	for l.pos < len(l.src) {
		ch, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if !isIdentPart(ch) {
			break
		}
		l.pos += size
	}
	l.tokens = append(l.tokens, Token{Kind: TokenIdent, Value: l.src[start:l.pos], Pos: start})
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isIdentPart(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch) || unicode.IsDigit(ch)
}
