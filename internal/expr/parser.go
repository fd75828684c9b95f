package expr

import (
	"fmt"
	"strconv"
	"strings"

	errors "github.com/paveg/colstat/internal/errors"
)

// Precedence constants for expression parsing, lowest to highest.
const (
	_ int = iota
	LOWEST
	LOGICALOR  // or
	LOGICALAND // and
	LOGICALNOT // not x
	COMPARE    // == != < <= > >=
	BITORPREC  // |
	BITXORPREC // ^
	BITANDPREC // &
	SUMPREC    // + -
	PRODUCT    // * / %
	PREFIX     // -x, +x, ~x
	POWER      // **
	CALL       // f(x)
)

var precedences = map[TokenType]int{
	OR:     LOGICALOR,
	AND:    LOGICALAND,
	EQ:     COMPARE,
	NE:     COMPARE,
	LT:     COMPARE,
	LE:     COMPARE,
	GT:     COMPARE,
	GE:     COMPARE,
	BITOR:  BITORPREC,
	BITXOR: BITXORPREC,
	BITAND: BITANDPREC,
	PLUS:   SUMPREC,
	MINUS:  SUMPREC,
	MULT:   PRODUCT,
	DIV:    PRODUCT,
	MOD:    PRODUCT,
	POW:    POWER,
	LPAREN: CALL,
}

var binaryOps = map[TokenType]BinaryOp{
	PLUS: OpAdd, MINUS: OpSub, MULT: OpMul, DIV: OpDiv, MOD: OpMod, POW: OpPow,
	EQ: OpEq, NE: OpNe, LT: OpLt, LE: OpLe, GT: OpGt, GE: OpGe,
	BITAND: OpBitAnd, BITOR: OpBitOr, BITXOR: OpBitXor, AND: OpAnd, OR: OpOr,
}

// Parser turns formula tokens into a Node tree.
type Parser struct {
	lexer *Lexer

	curToken  Token
	peekToken Token

	errors []string
}

// NewParser creates a new parser instance.
func NewParser(lexer *Lexer) *Parser {
	p := &Parser{lexer: lexer}
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a complete formula. Failures are syntax errors.
func Parse(text string) (Node, error) {
	p := NewParser(NewLexer(text))
	if p.curTokenIs(EOF) {
		return nil, errors.NewSyntaxError("Parse", text, "empty expression")
	}

	node, ok := p.parseExpression(LOWEST)
	if ok && !p.peekTokenIs(EOF) {
		p.addError(fmt.Sprintf("unexpected %q at position %d", p.peekToken.Literal, p.peekToken.Position))
		ok = false
	}
	if !ok {
		return nil, errors.NewSyntaxError("Parse", text, strings.Join(p.errors, "; "))
	}
	return node, nil
}

// Errors returns parse errors.
func (p *Parser) Errors() []string {
	return p.errors
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
}

func (p *Parser) parseExpression(precedence int) (Node, bool) {
	left, ok := p.parsePrefix()
	if !ok {
		return nil, false
	}

	for precedence < p.peekPrecedence() {
		left, ok = p.parseInfix(left)
		if !ok {
			return nil, false
		}
	}

	return left, true
}

func (p *Parser) parsePrefix() (Node, bool) {
	//nolint:exhaustive // only tokens that can start an operand
	switch p.curToken.Type {
	case IDENT:
		return &Ident{Name: p.curToken.Literal}, true
	case NUMBER:
		return p.parseNumber()
	case STRING:
		return &String{Value: p.curToken.Literal}, true
	case TRUE, FALSE:
		return &Bool{Value: p.curTokenIs(TRUE)}, true
	case MINUS, PLUS, INVERT:
		return p.parseUnary(PREFIX)
	case NOT:
		return p.parseUnary(LOGICALNOT)
	case LPAREN:
		return p.parseGroupedExpression()
	case EOF:
		p.addError("unexpected end of expression")
		return nil, false
	default:
		p.addError(fmt.Sprintf("unexpected %q at position %d", p.curToken.Literal, p.curToken.Position))
		return nil, false
	}
}

func (p *Parser) parseInfix(left Node) (Node, bool) {
	p.nextToken()

	if p.curTokenIs(LPAREN) {
		return p.parseCall(left)
	}

	tok := p.curToken
	op := binaryOps[tok.Type]
	precedence := p.curPrecedence()
	if op == OpPow {
		// right associative: 2**3**2 == 2**(3**2), and 2**-1 is allowed
		precedence = PREFIX - 1
	}

	p.nextToken()
	right, ok := p.parseExpression(precedence)
	if !ok {
		return nil, false
	}
	return &Binary{Op: op, Left: left, Right: right}, true
}

func (p *Parser) parseNumber() (Node, bool) {
	value, err := strconv.ParseFloat(p.curToken.Literal, 64)
	if err != nil {
		p.addError(fmt.Sprintf("could not parse %q as number", p.curToken.Literal))
		return nil, false
	}
	return &Number{Value: value}, true
}

func (p *Parser) parseUnary(precedence int) (Node, bool) {
	var op UnaryOp
	//nolint:exhaustive // prefix operators only
	switch p.curToken.Type {
	case MINUS:
		op = UnaryNeg
	case PLUS:
		op = UnaryPos
	case INVERT:
		op = UnaryInvert
	default:
		op = UnaryNot
	}
	p.nextToken()

	x, ok := p.parseExpression(precedence)
	if !ok {
		return nil, false
	}
	return &Unary{Op: op, X: x}, true
}

func (p *Parser) parseGroupedExpression() (Node, bool) {
	p.nextToken()

	node, ok := p.parseExpression(LOWEST)
	if !ok {
		return nil, false
	}
	if !p.expectPeek(RPAREN) {
		return nil, false
	}
	return node, true
}

func (p *Parser) parseCall(callee Node) (Node, bool) {
	ident, ok := callee.(*Ident)
	if !ok {
		p.addError(fmt.Sprintf("%s is not callable", callee))
		return nil, false
	}

	call := &Call{Func: ident.Name}
	if p.peekTokenIs(RPAREN) {
		p.nextToken()
		return call, true
	}

	p.nextToken()
	for {
		arg, ok := p.parseExpression(LOWEST)
		if !ok {
			return nil, false
		}
		call.Args = append(call.Args, arg)

		if !p.peekTokenIs(COMMA) {
			break
		}
		p.nextToken()
		p.nextToken()
	}

	if !p.expectPeek(RPAREN) {
		return nil, false
	}
	return call, true
}

func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

func (p *Parser) expectPeek(t TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.addError(fmt.Sprintf("expected %s, got %s instead", t, p.peekToken.Type))
	return false
}

func (p *Parser) peekPrecedence() int {
	if prec, ok := precedences[p.peekToken.Type]; ok {
		return prec
	}
	return LOWEST
}

func (p *Parser) curPrecedence() int {
	if prec, ok := precedences[p.curToken.Type]; ok {
		return prec
	}
	return LOWEST
}

func (p *Parser) addError(msg string) {
	p.errors = append(p.errors, msg)
}
