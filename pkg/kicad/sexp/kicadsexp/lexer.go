package kicadsexp

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode"
)

// TokenType represents the type of a token
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenLeftParen
	TokenRightParen
	TokenSymbol
	TokenString
)

func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "EOF"
	case TokenLeftParen:
		return "'('"
	case TokenRightParen:
		return "')'"
	case TokenSymbol:
		return "symbol"
	case TokenString:
		return "string"
	}
	return fmt.Sprintf("token(%d)", int(t))
}

// Token represents a lexical token and the line it started on
type Token struct {
	Type  TokenType
	Value string
	Line  int
}

// Lexer tokenizes S-expressions from an io.Reader without loading the
// whole input, so multi-megabyte boards with zone fills stay cheap.
type Lexer struct {
	reader *bufio.Reader
	line   int
}

// NewLexer creates a new lexer
func NewLexer(r io.Reader) *Lexer {
	return &Lexer{reader: bufio.NewReader(r), line: 1}
}

// NextToken reads the next token from the input
func (l *Lexer) NextToken() (Token, error) {
	if err := l.skipBlank(); err != nil {
		if err == io.EOF {
			return Token{Type: TokenEOF, Line: l.line}, nil
		}
		return Token{}, err
	}

	ch, _, err := l.reader.ReadRune()
	if err != nil {
		return Token{}, err
	}

	switch ch {
	case '(':
		return Token{Type: TokenLeftParen, Value: "(", Line: l.line}, nil
	case ')':
		return Token{Type: TokenRightParen, Value: ")", Line: l.line}, nil
	case '"':
		return l.readString()
	}

	if err := l.reader.UnreadRune(); err != nil {
		return Token{}, err
	}
	return l.readSymbol()
}

// skipBlank consumes whitespace and #-comments up to the next token.
func (l *Lexer) skipBlank() error {
	for {
		ch, _, err := l.reader.ReadRune()
		if err != nil {
			return err
		}
		switch {
		case ch == '\n':
			l.line++
		case unicode.IsSpace(ch):
		case ch == '#':
			rest, err := l.reader.ReadString('\n')
			if strings.HasSuffix(rest, "\n") {
				l.line++
			}
			if err != nil {
				return err
			}
		default:
			return l.reader.UnreadRune()
		}
	}
}

// readString reads a quoted string; the opening quote is already consumed.
func (l *Lexer) readString() (Token, error) {
	start := l.line
	var b strings.Builder
	for {
		ch, _, err := l.reader.ReadRune()
		if err != nil {
			if err == io.EOF {
				return Token{}, fmt.Errorf("line %d: unexpected EOF in string", start)
			}
			return Token{}, err
		}

		switch ch {
		case '"':
			return Token{Type: TokenString, Value: b.String(), Line: start}, nil
		case '\n':
			l.line++
			b.WriteRune(ch)
		case '\\':
			next, _, err := l.reader.ReadRune()
			if err != nil {
				return Token{}, fmt.Errorf("line %d: unexpected EOF after backslash", l.line)
			}
			switch next {
			case 'n':
				b.WriteRune('\n')
			case 't':
				b.WriteRune('\t')
			case 'r':
				b.WriteRune('\r')
			default:
				b.WriteRune(next)
			}
		default:
			b.WriteRune(ch)
		}
	}
}

// readSymbol reads an unquoted symbol (identifier, number, etc.)
func (l *Lexer) readSymbol() (Token, error) {
	var b strings.Builder
	for {
		ch, _, err := l.reader.ReadRune()
		if err != nil {
			if err == io.EOF {
				break
			}
			return Token{}, err
		}
		if unicode.IsSpace(ch) || ch == '(' || ch == ')' || ch == '"' {
			if err := l.reader.UnreadRune(); err != nil {
				return Token{}, err
			}
			break
		}
		b.WriteRune(ch)
	}

	if b.Len() == 0 {
		return Token{}, fmt.Errorf("line %d: empty symbol", l.line)
	}
	return Token{Type: TokenSymbol, Value: b.String(), Line: l.line}, nil
}
