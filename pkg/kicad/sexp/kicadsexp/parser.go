package kicadsexp

import (
	"fmt"
	"io"
)

// Parser builds S-expression trees from a lexer
type Parser struct {
	lexer *Lexer
}

// NewParser creates a new parser from an io.Reader
func NewParser(r io.Reader) *Parser {
	return &Parser{lexer: NewLexer(r)}
}

// ParseAll parses all top-level S-expressions from the input
func (p *Parser) ParseAll() ([]Sexp, error) {
	var result []Sexp
	for {
		tok, err := p.lexer.NextToken()
		if err != nil {
			return nil, err
		}
		if tok.Type == TokenEOF {
			return result, nil
		}
		expr, err := p.parseExpr(tok)
		if err != nil {
			return nil, err
		}
		result = append(result, expr)
	}
}

// parseExpr parses the expression starting at tok
func (p *Parser) parseExpr(tok Token) (Sexp, error) {
	switch tok.Type {
	case TokenLeftParen:
		return p.parseList()
	case TokenSymbol:
		return Symbol(tok.Value), nil
	case TokenString:
		return Str(tok.Value), nil
	case TokenRightParen:
		return nil, fmt.Errorf("line %d: unexpected ')'", tok.Line)
	}
	return nil, fmt.Errorf("line %d: unexpected %v", tok.Line, tok.Type)
}

// parseList parses list elements up to the matching ')'
func (p *Parser) parseList() (*List, error) {
	list := &List{}
	for {
		tok, err := p.lexer.NextToken()
		if err != nil {
			return nil, err
		}
		switch tok.Type {
		case TokenRightParen:
			return list, nil
		case TokenEOF:
			return nil, fmt.Errorf("line %d: unexpected EOF in list", tok.Line)
		}
		elem, err := p.parseExpr(tok)
		if err != nil {
			return nil, err
		}
		list.Items = append(list.Items, elem)
	}
}
