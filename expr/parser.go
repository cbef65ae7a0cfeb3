package expr

import (
	"strconv"
)

// Parse parses an expression string into an AST. The AST is structural
// only; Validate decides which identifiers are acceptable.
func Parse(input string) (Expr, error) {
	tokens, err := Lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if tok := p.current(); tok.Kind != TokenEOF {
		return nil, p.unexpected(tok)
	}
	return e, nil
}

type parser struct {
	tokens []Token
	pos    int
}

func (p *parser) current() Token {
	if p.pos >= len(p.tokens) {
		return Token{Kind: TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *parser) advance() Token {
	tok := p.current()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *parser) expect(kind TokenKind) (Token, error) {
	tok := p.current()
	if tok.Kind != kind {
		return tok, syntaxErrorf(tok.Pos, "expected %s but got %s", kind, describe(tok))
	}
	p.advance()
	return tok, nil
}

func (p *parser) unexpected(tok Token) error {
	return syntaxErrorf(tok.Pos, "unexpected %s", describe(tok))
}

func describe(tok Token) string {
	switch tok.Kind {
	case TokenIdent:
		return "identifier " + strconv.Quote(tok.Value)
	case TokenNumber:
		return "number " + tok.Value
	case TokenEOF:
		return tok.Kind.String()
	default:
		return strconv.Quote(tok.Value)
	}
}

// Precedence levels (low to high):
// 1. + -  (left associative)
// 2. * /  (left associative)
// 3. unary - +
// 4. ^    (right associative, exponent may carry a sign)
// 5. number, identifier, call, parenthesized expression

func (p *parser) parseExpr() (Expr, error) {
	return p.parseAdditive()
}

func (p *parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.current().Kind == TokenPlus || p.current().Kind == TokenMinus {
		op := p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op.Kind, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.current().Kind == TokenStar || p.current().Kind == TokenSlash {
		op := p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op.Kind, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if k := p.current().Kind; k == TokenMinus || k == TokenPlus {
		op := p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: op.Kind, Operand: operand}, nil
	}
	return p.parsePower()
}

func (p *parser) parsePower() (Expr, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if startsOperand(p.current().Kind) {
		tok := p.current()
		return nil, syntaxErrorf(tok.Pos, "unexpected %s (implicit multiplication is not supported, use '*')", describe(tok))
	}
	if p.current().Kind != TokenCaret {
		return base, nil
	}
	op := p.advance()
	exponent, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &BinaryExpr{Op: op.Kind, Left: base, Right: exponent}, nil
}

func (p *parser) parsePrimary() (Expr, error) {
	tok := p.current()

	switch tok.Kind {
	case TokenNumber:
		p.advance()
		val, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, syntaxErrorf(tok.Pos, "invalid number %q", tok.Value)
		}
		return &NumberLit{Value: val}, nil

	case TokenIdent:
		p.advance()
		if p.current().Kind == TokenLParen {
			return p.parseCall(tok)
		}
		return &VarRef{Name: tok.Value, Pos: tok.Pos}, nil

	case TokenLParen:
		p.advance()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
		return inner, nil

	default:
		return nil, p.unexpected(tok)
	}
}

func (p *parser) parseCall(name Token) (Expr, error) {
	p.advance() // skip (
	call := &CallExpr{Name: name.Value, Pos: name.Pos}

	if p.current().Kind == TokenRParen {
		p.advance()
		return call, nil
	}

	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)

		if p.current().Kind != TokenComma {
			break
		}
		p.advance() // skip comma
	}

	if _, err := p.expect(TokenRParen); err != nil {
		return nil, err
	}
	return call, nil
}

func startsOperand(kind TokenKind) bool {
	return kind == TokenNumber || kind == TokenIdent || kind == TokenLParen
}
