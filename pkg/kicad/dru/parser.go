package dru

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/errors"
)

// Parser reads .kicad_dru custom design rule files
type Parser struct {
	parser    *participle.Parser[File]
	condition *participle.Parser[Condition]
}

// NewParser creates a new design rule parser
func NewParser() (*Parser, error) {
	parser, err := participle.Build[File](
		participle.Lexer(DRULexer),
		participle.Elide("Comment", "Whitespace"),
		participle.Unquote("String"),
		participle.UseLookahead(2),
	)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "failed to build rule parser")
	}
	condition, err := participle.Build[Condition](
		participle.Lexer(conditionLexer),
		participle.Elide("Whitespace"),
		participle.UseLookahead(2),
	)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "failed to build condition parser")
	}
	return &Parser{parser: parser, condition: condition}, nil
}

// Parse parses a rule file from a reader
func (p *Parser) Parse(r io.Reader) (*File, error) {
	f, err := p.parser.Parse("", r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "parse error")
	}
	return f, nil
}

// ParseString parses a rule file from a string
func (p *Parser) ParseString(input string) (*File, error) {
	f, err := p.parser.ParseString("", input)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "parse error")
	}
	return f, nil
}

// ParseFile parses a rule file from a file path
func (p *Parser) ParseFile(filename string) (*File, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNotFound, err, "failed to open rule file")
	}
	defer file.Close()

	return p.Parse(file)
}

// ParseCondition parses the expression of a (condition "...") clause
func (p *Parser) ParseCondition(expr string) (*Condition, error) {
	c, err := p.condition.ParseString("", expr)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "condition %q", expr)
	}
	return c, nil
}

// unitScale converts a unit suffix to millimetres
var unitScale = map[string]float64{
	"":    1,
	"mm":  1,
	"um":  0.001,
	"mil": 0.0254,
	"in":  25.4,
	"deg": 1,
}

// ParseQuantity converts a quantity such as "8mil" to millimetres.
// Values without a unit are millimetres; angles are returned unchanged.
func ParseQuantity(s string) (float64, error) {
	num := strings.TrimRightFunc(s, func(r rune) bool { return r >= 'a' && r <= 'z' })
	scale, ok := unitScale[s[len(num):]]
	if !ok {
		return 0, errors.New(errors.ErrCodeParse, "unknown unit in %q", s)
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeParse, err, "bad quantity %q", s)
	}
	return v * scale, nil
}
