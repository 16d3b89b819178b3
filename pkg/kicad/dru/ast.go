package dru

// File is a parsed .kicad_dru document
type File struct {
	Version int     `parser:"( LParen \"version\" @Quantity RParen )?"`
	Rules   []*Rule `parser:"@@*"`
}

// Rule is one (rule "name" ...) block
type Rule struct {
	Name  string      `parser:"LParen \"rule\" @(String | Ident)"`
	Items []*RuleItem `parser:"@@* RParen"`
}

// RuleItem is a clause of a rule
type RuleItem struct {
	Layer      *string     `parser:"  LParen \"layer\" @(String | Ident) RParen"`
	Condition  *string     `parser:"| LParen \"condition\" @String RParen"`
	Severity   *string     `parser:"| LParen \"severity\" @Ident RParen"`
	Constraint *Constraint `parser:"| @@"`
}

// Constraint is (constraint kind (min x) (opt y) (max z))
type Constraint struct {
	Kind   string   `parser:"LParen \"constraint\" @Ident"`
	Values []*Value `parser:"@@* RParen"`
}

// Value is a bound of a constraint, or a bare argument such as the item
// type of a disallow constraint.
type Value struct {
	Bound    string `parser:"(  LParen @(\"min\" | \"opt\" | \"max\")"`
	Quantity string `parser:"   @Quantity RParen"`
	Arg      string `parser:"| @Ident )"`
}

// Condition is a boolean expression over the two items of a rule
type Condition struct {
	Or []*AndExpr `parser:"@@ ( \"||\" @@ )*"`
}

// AndExpr is a conjunction of terms
type AndExpr struct {
	Terms []*Term `parser:"@@ ( \"&&\" @@ )*"`
}

// Term is a comparison or a parenthesised condition
type Term struct {
	Group   *Condition  `parser:"  \"(\" @@ \")\""`
	Compare *Comparison `parser:"| @@"`
}

// Comparison tests one property of item A or B
type Comparison struct {
	Item     string `parser:"@Ident \".\""`
	Property string `parser:"@Ident"`
	Op       string `parser:"@(\"==\" | \"!=\")"`
	Value    string `parser:"@String"`
}
