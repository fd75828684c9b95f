package expr

import "strings"

// TokenType represents the type of a formula token.
type TokenType int

const (
	// EOF represents end of input.
	EOF TokenType = iota
	ILLEGAL

	IDENT
	NUMBER
	STRING

	// Keywords
	AND
	OR
	NOT
	TRUE
	FALSE

	// Operators
	PLUS   // +
	MINUS  // -
	MULT   // *
	DIV    // /
	MOD    // %
	POW    // **
	EQ     // ==
	NE     // !=
	LT     // <
	LE     // <=
	GT     // >
	GE     // >=
	BITAND // &
	BITOR  // |
	BITXOR // ^
	INVERT // ~

	// Delimiters
	COMMA
	LPAREN
	RPAREN
)

var tokenNames = map[TokenType]string{
	EOF: "end of input", ILLEGAL: "illegal", IDENT: "identifier", NUMBER: "number",
	STRING: "string", AND: "and", OR: "or", NOT: "not", TRUE: "True", FALSE: "False",
	PLUS: "+", MINUS: "-", MULT: "*", DIV: "/", MOD: "%", POW: "**", EQ: "==",
	NE: "!=", LT: "<", LE: "<=", GT: ">", GE: ">=", BITAND: "&", BITOR: "|",
	BITXOR: "^", INVERT: "~", COMMA: ",", LPAREN: "(", RPAREN: ")",
}

func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return "unknown"
}

// Token represents a single formula token.
type Token struct {
	Type     TokenType
	Literal  string
	Position int
}

// Lexer tokenizes formula text.
type Lexer struct {
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           byte // current char under examination
}

// NewLexer creates a new lexer instance.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
}

func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

// NextToken scans the input and returns the next token.
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	pos := l.position
	single := func(t TokenType) Token {
		tok := Token{Type: t, Literal: string(l.ch), Position: pos}
		l.readChar()
		return tok
	}
	double := func(t TokenType) Token {
		lit := l.input[pos : pos+2]
		l.readChar()
		l.readChar()
		return Token{Type: t, Literal: lit, Position: pos}
	}

	switch l.ch {
	case 0:
		return Token{Type: EOF, Position: pos}
	case '+':
		return single(PLUS)
	case '-':
		return single(MINUS)
	case '*':
		if l.peekChar() == '*' {
			return double(POW)
		}
		return single(MULT)
	case '/':
		return single(DIV)
	case '%':
		return single(MOD)
	case '=':
		if l.peekChar() == '=' {
			return double(EQ)
		}
		return single(ILLEGAL)
	case '!':
		if l.peekChar() == '=' {
			return double(NE)
		}
		return single(ILLEGAL)
	case '<':
		if l.peekChar() == '=' {
			return double(LE)
		}
		return single(LT)
	case '>':
		if l.peekChar() == '=' {
			return double(GE)
		}
		return single(GT)
	case '&':
		return single(BITAND)
	case '|':
		return single(BITOR)
	case '^':
		return single(BITXOR)
	case '~':
		return single(INVERT)
	case ',':
		return single(COMMA)
	case '(':
		return single(LPAREN)
	case ')':
		return single(RPAREN)
	case '\'', '"':
		lit, ok := l.readString()
		if !ok {
			return Token{Type: ILLEGAL, Literal: lit, Position: pos}
		}
		return Token{Type: STRING, Literal: lit, Position: pos}
	}

	if isLetter(l.ch) {
		lit := l.readIdentifier()
		return Token{Type: lookupIdent(lit), Literal: lit, Position: pos}
	}
	if isDigit(l.ch) || (l.ch == '.' && isDigit(l.peekChar())) {
		return Token{Type: NUMBER, Literal: l.readNumber(), Position: pos}
	}
	return single(ILLEGAL)
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

func (l *Lexer) readIdentifier() string {
	position := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[position:l.position]
}

// readNumber reads 12, 1.5, .5, 1., 1e-3 and 2.5E+4.
func (l *Lexer) readNumber() string {
	position := l.position
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || ((next == '+' || next == '-') && l.readPosition+1 < len(l.input) && isDigit(l.input[l.readPosition+1])) {
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}
	return l.input[position:l.position]
}

// readString reads a quoted literal, handling backslash escapes. The
// closing quote is consumed; ok is false when the input ends first.
func (l *Lexer) readString() (string, bool) {
	quote := l.ch
	l.readChar()

	var sb strings.Builder
	for l.ch != quote {
		if l.ch == 0 {
			return sb.String(), false
		}
		if l.ch == '\\' && l.peekChar() != 0 {
			l.readChar()
			switch l.ch {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			default:
				sb.WriteByte(l.ch)
			}
			l.readChar()
			continue
		}
		sb.WriteByte(l.ch)
		l.readChar()
	}
	l.readChar()
	return sb.String(), true
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

var keywords = map[string]TokenType{
	"and":   AND,
	"or":    OR,
	"not":   NOT,
	"True":  TRUE,
	"False": FALSE,
}

func lookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}
