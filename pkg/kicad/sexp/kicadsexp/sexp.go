// Package kicadsexp provides a streaming S-expression reader and writer for
// KiCad board files. Quoted strings are kept distinct from bare symbols so
// that documents survive a read/write round trip.
package kicadsexp

import (
	"io"
	"strconv"
	"strings"
)

// Sexp represents an S-expression node: an atom or a list.
type Sexp interface {
	// IsLeaf returns true if this is an atom (not a list)
	IsLeaf() bool

	// String returns the KiCad text representation
	String() string
}

// Symbol is a bare atom (keyword, number, identifier)
type Symbol string

func (s Symbol) IsLeaf() bool   { return true }
func (s Symbol) String() string { return string(s) }

// Str is a quoted string atom
type Str string

func (s Str) IsLeaf() bool { return true }

func (s Str) String() string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range string(s) {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// List represents a parenthesised list of S-expressions
type List struct {
	Items []Sexp
}

// NewList builds a list whose head is the symbol name.
func NewList(name string, items ...Sexp) *List {
	l := &List{Items: make([]Sexp, 0, len(items)+1)}
	l.Items = append(l.Items, Symbol(name))
	l.Items = append(l.Items, items...)
	return l
}

func (l *List) IsLeaf() bool { return false }

func (l *List) String() string {
	var b strings.Builder
	l.write(&b)
	return b.String()
}

func (l *List) write(b *strings.Builder) {
	b.WriteByte('(')
	for i, item := range l.Items {
		if i > 0 {
			b.WriteByte(' ')
		}
		if sub, ok := item.(*List); ok {
			sub.write(b)
			continue
		}
		b.WriteString(item.String())
	}
	b.WriteByte(')')
}

// Append adds items to the list and returns it for chaining.
func (l *List) Append(items ...Sexp) *List {
	l.Items = append(l.Items, items...)
	return l
}

// Len returns the number of elements in the list
func (l *List) Len() int {
	return len(l.Items)
}

// Name returns the head symbol, or "" when the list has no symbol head.
func (l *List) Name() string {
	if len(l.Items) == 0 {
		return ""
	}
	if sym, ok := l.Items[0].(Symbol); ok {
		return string(sym)
	}
	return ""
}

// Find returns the first child list whose head is key.
// Example: Find("at") on (pad "1" smd rect (at 1 2)) returns (at 1 2).
func (l *List) Find(key string) (*List, bool) {
	for _, item := range l.Items {
		if sub, ok := item.(*List); ok && sub.Name() == key {
			return sub, true
		}
	}
	return nil, false
}

// FindAll returns every child list whose head is key.
func (l *List) FindAll(key string) []*List {
	var out []*List
	for _, item := range l.Items {
		if sub, ok := item.(*List); ok && sub.Name() == key {
			out = append(out, sub)
		}
	}
	return out
}

// Atom returns the text of the atom at index, quoted or not.
func (l *List) Atom(index int) (string, bool) {
	if index < 0 || index >= len(l.Items) {
		return "", false
	}
	switch v := l.Items[index].(type) {
	case Symbol:
		return string(v), true
	case Str:
		return string(v), true
	}
	return "", false
}

// Float parses the atom at index as a float64.
func (l *List) Float(index int) (float64, bool) {
	s, ok := l.Atom(index)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Int parses the atom at index as an int.
func (l *List) Int(index int) (int, bool) {
	s, ok := l.Atom(index)
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

// HasSymbol reports whether the list contains the bare symbol sym.
func (l *List) HasSymbol(sym string) bool {
	for _, item := range l.Items {
		if s, ok := item.(Symbol); ok && string(s) == sym {
			return true
		}
	}
	return false
}

// Atoms returns the text of every atom after the head.
func (l *List) Atoms() []string {
	var out []string
	for i := 1; i < len(l.Items); i++ {
		if s, ok := l.Atom(i); ok {
			out = append(out, s)
		}
	}
	return out
}

// Num formats a millimetre value with the fixed four-decimal precision KiCad
// writes. Values that round to zero are written as 0.0000, never -0.0000.
func Num(v float64) Symbol {
	s := strconv.FormatFloat(v, 'f', 4, 64)
	if s == "-0.0000" {
		s = "0.0000"
	}
	return Symbol(s)
}

// Int formats an integer atom.
func Int(v int) Symbol {
	return Symbol(strconv.Itoa(v))
}

// Parse parses every top-level S-expression from r.
func Parse(r io.Reader) ([]Sexp, error) {
	return NewParser(r).ParseAll()
}

// ParseString parses S-expressions from a string
func ParseString(s string) ([]Sexp, error) {
	return Parse(strings.NewReader(s))
}
