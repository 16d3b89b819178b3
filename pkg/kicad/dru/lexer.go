package dru

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// DRULexer tokenises .kicad_dru files
var DRULexer = lexer.MustSimple([]lexer.SimpleRule{
	// Comments run from # to end of line
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "Whitespace", Pattern: `[\s\t\n\r]+`},

	{Name: "LParen", Pattern: `\(`},
	{Name: "RParen", Pattern: `\)`},

	{Name: "String", Pattern: `"(?:[^"\\]|\\.)*"`},

	// Numbers with an optional unit suffix (0.2mm, 8mil, 45deg)
	{Name: "Quantity", Pattern: `[-+]?(?:[0-9]+\.?[0-9]*|\.[0-9]+)(?:mm|mil|in|um|deg)?`},

	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_.\-]*`},
})

// conditionLexer tokenises the expressions inside (condition "...")
var conditionLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `[\s\t\n\r]+`},
	{Name: "String", Pattern: `'[^']*'`},
	{Name: "Op", Pattern: `==|!=|&&|\|\|`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Punct", Pattern: `[.()]`},
})
