// Package parser implements a recursive descent parser for kmp.
package parser

import (
	"fmt"
	"math/big"

	"github.com/repaj/kompilator/pkg/ast"
	"github.com/repaj/kompilator/pkg/lexer"
)

// Parser parses kmp source code into an ast.Program.
type Parser struct {
	l         *lexer.Lexer
	curToken  lexer.Token
	peekToken lexer.Token
	errors    []string
}

// New creates a new Parser for the given lexer.
func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}
	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

// Errors returns the list of parse errors accumulated so far.
func (p *Parser) Errors() []string {
	return p.errors
}

func (p *Parser) pos() ast.Pos {
	return ast.Pos{Line: p.curToken.Line, Column: p.curToken.Column}
}

func (p *Parser) addError(msg string) {
	p.errors = append(p.errors, fmt.Sprintf("line %d, col %d: %s",
		p.curToken.Line, p.curToken.Column, msg))
}

func (p *Parser) curTokenIs(t lexer.TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t lexer.TokenType) bool {
	return p.peekToken.Type == t
}

func (p *Parser) expect(t lexer.TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.addError(fmt.Sprintf("expected %s, got %s", t, p.curToken.Type))
	return false
}

// ParseProgram parses a whole kmp compilation unit.
func (p *Parser) ParseProgram() *ast.Program {
	prog := &ast.Program{}

	if p.curTokenIs(lexer.TokenDeclare) {
		p.nextToken()
		prog.Decls = p.parseDeclList()
	}

	if !p.expect(lexer.TokenBegin) {
		return prog
	}

	for !p.curTokenIs(lexer.TokenEnd) && !p.curTokenIs(lexer.TokenEOF) {
		stmt := p.parseStatement()
		if stmt != nil {
			prog.Body = append(prog.Body, stmt)
		}
	}
	p.expect(lexer.TokenEnd)

	return prog
}

func (p *Parser) parseDeclList() []ast.Decl {
	var decls []ast.Decl
	for p.curTokenIs(lexer.TokenIdent) {
		decls = append(decls, p.parseDecl())
		if p.curTokenIs(lexer.TokenComma) {
			p.nextToken()
		}
	}
	return decls
}

func (p *Parser) parseDecl() ast.Decl {
	pos := p.pos()
	name := p.curToken.Literal
	p.nextToken()

	if !p.curTokenIs(lexer.TokenLBracket) {
		return ast.Decl{Pos: pos, Name: name}
	}
	p.nextToken() // consume '['
	lo := p.parseSignedInt()
	p.expect(lexer.TokenColon)
	hi := p.parseSignedInt()
	p.expect(lexer.TokenRBracket)
	return ast.Decl{Pos: pos, Name: name, Lo: lo, Hi: hi}
}

func (p *Parser) parseSignedInt() *big.Int {
	neg := false
	if p.curTokenIs(lexer.TokenMinus) {
		neg = true
		p.nextToken()
	}
	if !p.curTokenIs(lexer.TokenNum) {
		p.addError(fmt.Sprintf("expected integer literal, got %s", p.curToken.Type))
		return big.NewInt(0)
	}
	v, ok := new(big.Int).SetString(p.curToken.Literal, 10)
	if !ok {
		p.addError(fmt.Sprintf("invalid integer literal %q", p.curToken.Literal))
		v = big.NewInt(0)
	}
	p.nextToken()
	if neg {
		v.Neg(v)
	}
	return v
}

func (p *Parser) parseStatementBlock(terminators ...lexer.TokenType) []ast.Stmt {
	var stmts []ast.Stmt
	for !p.atAny(terminators) && !p.curTokenIs(lexer.TokenEOF) {
		stmt := p.parseStatement()
		if stmt != nil {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

func (p *Parser) atAny(types []lexer.TokenType) bool {
	for _, t := range types {
		if p.curTokenIs(t) {
			return true
		}
	}
	return false
}

func (p *Parser) parseStatement() ast.Stmt {
	switch p.curToken.Type {
	case lexer.TokenIf:
		return p.parseIf()
	case lexer.TokenWhile:
		return p.parseWhile()
	case lexer.TokenFor:
		return p.parseFor()
	case lexer.TokenRead:
		return p.parseRead()
	case lexer.TokenWrite:
		return p.parseWrite()
	case lexer.TokenIdent:
		return p.parseAssign()
	default:
		p.addError(fmt.Sprintf("unexpected token in statement: %s", p.curToken.Type))
		p.nextToken()
		return nil
	}
}

func (p *Parser) parseLvalue() ast.Lvalue {
	pos := p.pos()
	name := p.curToken.Literal
	p.nextToken()
	if p.curTokenIs(lexer.TokenLBracket) {
		p.nextToken()
		offset := p.parseExpr()
		p.expect(lexer.TokenRBracket)
		return ast.Index{Pos: pos, Array: name, Offset: offset}
	}
	return ast.Var{Pos: pos, Name: name}
}

func (p *Parser) parseAssign() ast.Stmt {
	pos := p.pos()
	target := p.parseLvalue()
	if !p.expect(lexer.TokenAssign) {
		return nil
	}
	value := p.parseExpr()
	p.expect(lexer.TokenSemicolon)
	return ast.Assign{Pos: pos, Target: target, Value: value}
}

func (p *Parser) parseRead() ast.Stmt {
	pos := p.pos()
	p.nextToken() // consume READ
	target := p.parseLvalue()
	p.expect(lexer.TokenSemicolon)
	return ast.Read{Pos: pos, Target: target}
}

func (p *Parser) parseWrite() ast.Stmt {
	pos := p.pos()
	p.nextToken() // consume WRITE
	value := p.parseExpr()
	p.expect(lexer.TokenSemicolon)
	return ast.Write{Pos: pos, Value: value}
}

func (p *Parser) parseIf() ast.Stmt {
	pos := p.pos()
	p.nextToken() // consume IF
	cond := p.parseCond()
	p.expect(lexer.TokenThen)
	then := p.parseStatementBlock(lexer.TokenElse, lexer.TokenEndif)
	var els []ast.Stmt
	if p.curTokenIs(lexer.TokenElse) {
		p.nextToken()
		els = p.parseStatementBlock(lexer.TokenEndif)
	}
	p.expect(lexer.TokenEndif)
	return ast.If{Pos: pos, Cond: cond, Then: then, Else: els}
}

func (p *Parser) parseWhile() ast.Stmt {
	pos := p.pos()
	p.nextToken() // consume WHILE
	cond := p.parseCond()
	p.expect(lexer.TokenDo)
	body := p.parseStatementBlock(lexer.TokenEndwhile)
	p.expect(lexer.TokenEndwhile)
	return ast.While{Pos: pos, Cond: cond, Body: body}
}

func (p *Parser) parseFor() ast.Stmt {
	pos := p.pos()
	p.nextToken() // consume FOR
	name := p.curToken.Literal
	p.expect(lexer.TokenIdent)
	p.expect(lexer.TokenFrom)
	from := p.parseExpr()
	downto := false
	if p.curTokenIs(lexer.TokenDownto) {
		downto = true
		p.nextToken()
	} else {
		p.expect(lexer.TokenTo)
	}
	to := p.parseExpr()
	p.expect(lexer.TokenDo)
	body := p.parseStatementBlock(lexer.TokenEndfor)
	p.expect(lexer.TokenEndfor)
	return ast.For{Pos: pos, Var: name, From: from, To: to, Downto: downto, Body: body}
}

func (p *Parser) parseCond() ast.Cond {
	pos := p.pos()
	left := p.parseExpr()
	op := p.parseRelOp()
	right := p.parseExpr()
	return ast.Cond{Pos: pos, Op: op, Left: left, Right: right}
}

func (p *Parser) parseRelOp() ast.RelOp {
	var op ast.RelOp
	switch p.curToken.Type {
	case lexer.TokenEq:
		op = ast.RelEq
	case lexer.TokenNe:
		op = ast.RelNe
	case lexer.TokenLe:
		op = ast.RelLe
	case lexer.TokenGe:
		op = ast.RelGe
	case lexer.TokenLt:
		op = ast.RelLt
	case lexer.TokenGt:
		op = ast.RelGt
	default:
		p.addError(fmt.Sprintf("expected comparison operator, got %s", p.curToken.Type))
		return ast.RelEq
	}
	p.nextToken()
	return op
}

// parseExpr parses "term (+|-) term (+|-) ...", the full kmp expression
// grammar: a single multiplicative term, or a left-associative chain of
// sums and differences of any length.
func (p *Parser) parseExpr() ast.Expr {
	left := p.parseTerm()
	for p.curTokenIs(lexer.TokenPlus) || p.curTokenIs(lexer.TokenMinus) {
		pos := p.pos()
		op := ast.OpAdd
		if p.curTokenIs(lexer.TokenMinus) {
			op = ast.OpSub
		}
		p.nextToken()
		right := p.parseTerm()
		left = ast.Binary{Pos: pos, Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseTerm() ast.Expr {
	left := p.parseFactor()
	for p.curTokenIs(lexer.TokenStar) || p.curTokenIs(lexer.TokenSlash) || p.curTokenIs(lexer.TokenPercent) {
		pos := p.pos()
		var op ast.BinOp
		switch p.curToken.Type {
		case lexer.TokenStar:
			op = ast.OpMul
		case lexer.TokenSlash:
			op = ast.OpDiv
		case lexer.TokenPercent:
			op = ast.OpMod
		}
		p.nextToken()
		right := p.parseFactor()
		left = ast.Binary{Pos: pos, Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseFactor() ast.Expr {
	pos := p.pos()
	switch p.curToken.Type {
	case lexer.TokenNum:
		v, ok := new(big.Int).SetString(p.curToken.Literal, 10)
		if !ok {
			p.addError(fmt.Sprintf("invalid integer literal %q", p.curToken.Literal))
			v = big.NewInt(0)
		}
		p.nextToken()
		return ast.Num{Pos: pos, Value: v}
	case lexer.TokenMinus:
		// Array declaration bounds read a signed literal via parseSignedInt;
		// everywhere else (FROM/TO bounds included) the parser rewrites a
		// bare unary minus to "0 - factor".
		p.nextToken()
		v := p.parseFactor()
		return ast.Binary{Pos: pos, Op: ast.OpSub, Left: ast.Num{Pos: pos, Value: big.NewInt(0)}, Right: v}
	case lexer.TokenIdent:
		name := p.curToken.Literal
		p.nextToken()
		if p.curTokenIs(lexer.TokenLBracket) {
			p.nextToken()
			offset := p.parseExpr()
			p.expect(lexer.TokenRBracket)
			return ast.Index{Pos: pos, Array: name, Offset: offset}
		}
		return ast.Var{Pos: pos, Name: name}
	case lexer.TokenLParen:
		p.nextToken()
		e := p.parseExpr()
		p.expect(lexer.TokenRParen)
		return e
	default:
		p.addError(fmt.Sprintf("expected expression, got %s", p.curToken.Type))
		p.nextToken()
		return ast.Num{Pos: pos, Value: big.NewInt(0)}
	}
}
