package linespec

import (
	"fmt"
	"go/constant"
	"go/scanner"
	"go/token"
)

// SymbolResolver returns the address of a named symbol.
type SymbolResolver interface {
	LookupSymbol(name string) (uint64, error)
}

// ErrAddressExpression is returned when an address expression can not be
// parsed or evaluated.
type ErrAddressExpression struct {
	Expr string
	Pos  int
	Msg  string
}

func (err *ErrAddressExpression) Error() string {
	return fmt.Sprintf("bad address expression %q at %d: %s", err.Expr, err.Pos, err.Msg)
}

// ExpressionToPC parses the address expression at the start of s, which
// must begin with '*', and returns its value and the number of bytes of s
// it spans (trailing white space excluded).
//
// Address expressions are integer constant expressions built from literals,
// symbol names (resolved through resolver, which may be nil), parentheses,
// unary - + ^ & and the binary operators + - * / % & | ^ &^ << >>.
// The expression ends at a top level comma, at a linespec keyword or at the
// first token that can not continue it.
func ExpressionToPC(s string, resolver SymbolResolver) (uint64, int, error) {
	if s == "" || s[0] != '*' {
		return 0, 0, &ErrAddressExpression{Expr: s, Msg: "address expressions must start with '*'"}
	}
	p := newExprParser(s[1:], resolver)
	v := p.parseBinary(token.LowestPrec + 1)
	if p.err == nil && p.end == 0 {
		p.errorf("expected expression")
	}
	if p.err != nil {
		p.err.Expr = s
		p.err.Pos++
		return 0, 0, p.err
	}
	addr, ok := toAddress(v)
	if !ok {
		return 0, 0, &ErrAddressExpression{Expr: s, Pos: 1, Msg: fmt.Sprintf("%v is not a valid address", v)}
	}
	return addr, p.end + 1, nil
}

type exprParser struct {
	src      string
	file     *token.File
	sc       scanner.Scanner
	resolver SymbolResolver

	pos   int // offset of the current token
	tok   token.Token
	lit   string
	end   int // end offset of the last consumed token
	depth int
	err   *ErrAddressExpression
}

func newExprParser(src string, resolver SymbolResolver) *exprParser {
	p := &exprParser{src: src, resolver: resolver}
	fset := token.NewFileSet()
	p.file = fset.AddFile("", fset.Base(), len(src))
	p.sc.Init(p.file, []byte(src), nil, 0)
	p.next()
	return p
}

func (p *exprParser) next() {
	pos, tok, lit := p.sc.Scan()
	p.pos, p.tok, p.lit = p.file.Offset(pos), tok, lit
}

func (p *exprParser) consume() {
	n := len(p.lit)
	if n == 0 || p.tok == token.SEMICOLON {
		n = len(p.tok.String())
	}
	p.end = p.pos + n
	p.next()
}

func (p *exprParser) errorf(format string, args ...interface{}) {
	if p.err == nil {
		p.err = &ErrAddressExpression{Pos: p.pos, Msg: fmt.Sprintf(format, args...)}
	}
}

// atKeyword is true if the current token starts a linespec keyword outside
// of parentheses.
func (p *exprParser) atKeyword() bool {
	return p.depth == 0 && p.pos < len(p.src) && LexKeyword(p.src[p.pos:]) != ""
}

func isBinaryOp(tok token.Token) bool {
	switch tok {
	case token.ADD, token.SUB, token.MUL, token.QUO, token.REM,
		token.AND, token.OR, token.XOR, token.AND_NOT, token.SHL, token.SHR:
		return true
	}
	return false
}

func (p *exprParser) parseBinary(prec1 int) constant.Value {
	x := p.parseUnary()
	for p.err == nil {
		if p.atKeyword() || !isBinaryOp(p.tok) || p.tok.Precedence() < prec1 {
			return x
		}
		op := p.tok
		p.consume()
		y := p.parseBinary(op.Precedence() + 1)
		if p.err != nil {
			break
		}
		x = p.binaryOp(x, op, y)
	}
	return constant.MakeUnknown()
}

func (p *exprParser) binaryOp(x constant.Value, op token.Token, y constant.Value) constant.Value {
	switch op {
	case token.SHL, token.SHR:
		s, ok := constant.Uint64Val(y)
		if !ok || s > 64 {
			p.errorf("invalid shift count %v", y)
			return constant.MakeUnknown()
		}
		return constant.Shift(x, op, uint(s))
	case token.QUO, token.REM:
		if constant.Sign(y) == 0 {
			p.errorf("division by zero")
			return constant.MakeUnknown()
		}
		if op == token.QUO {
			op = token.QUO_ASSIGN // integer division
		}
	}
	return constant.BinaryOp(x, op, y)
}

func (p *exprParser) parseUnary() constant.Value {
	switch p.tok {
	case token.ADD, token.SUB, token.XOR:
		op := p.tok
		p.consume()
		x := p.parseUnary()
		if p.err != nil {
			return x
		}
		return constant.UnaryOp(op, x, 64)
	case token.AND:
		p.consume()
		if p.tok != token.IDENT {
			p.errorf("can only take the address of a symbol")
			return constant.MakeUnknown()
		}
		return p.parsePrimary()
	case token.MUL:
		p.errorf("can not dereference memory in a location")
		return constant.MakeUnknown()
	}
	return p.parsePrimary()
}

func (p *exprParser) parsePrimary() constant.Value {
	switch p.tok {
	case token.INT, token.CHAR:
		v := constant.MakeFromLiteral(p.lit, p.tok, 0)
		if v.Kind() == constant.Unknown {
			p.errorf("malformed number %q", p.lit)
		}
		p.consume()
		return v
	case token.IDENT:
		return p.parseSymbol()
	case token.LPAREN:
		p.depth++
		p.consume()
		x := p.parseBinary(token.LowestPrec + 1)
		if p.err != nil {
			return x
		}
		if p.tok != token.RPAREN {
			p.errorf("expected ')'")
			return x
		}
		p.depth--
		p.consume()
		return x
	case token.EOF, token.SEMICOLON:
		p.errorf("unexpected end of expression")
	default:
		p.errorf("unexpected %s", p.tok)
	}
	return constant.MakeUnknown()
}

// parseSymbol parses a possibly qualified symbol name: pkg.name for Go,
// ns::name for C++.
func (p *exprParser) parseSymbol() constant.Value {
	start := p.pos
	p.consume()
	for {
		if p.tok == token.PERIOD && p.pos == p.end {
			p.consume()
		} else if p.tok == token.COLON && p.pos == p.end && p.pos+1 < len(p.src) && p.src[p.pos+1] == ':' {
			p.consume()
			p.consume()
		} else {
			break
		}
		if p.tok != token.IDENT || p.pos != p.end {
			p.errorf("malformed symbol name %q", p.src[start:p.end])
			return constant.MakeUnknown()
		}
		p.consume()
	}
	name := p.src[start:p.end]
	if p.resolver == nil {
		p.err = &ErrAddressExpression{Pos: start, Msg: fmt.Sprintf("no symbol table is loaded, can not resolve %q", name)}
		return constant.MakeUnknown()
	}
	addr, err := p.resolver.LookupSymbol(name)
	if err != nil {
		p.err = &ErrAddressExpression{Pos: start, Msg: err.Error()}
		return constant.MakeUnknown()
	}
	return constant.MakeUint64(addr)
}

func toAddress(v constant.Value) (uint64, bool) {
	if v.Kind() != constant.Int {
		return 0, false
	}
	if constant.Sign(v) < 0 {
		i, ok := constant.Int64Val(v)
		return uint64(i), ok
	}
	return constant.Uint64Val(v)
}
