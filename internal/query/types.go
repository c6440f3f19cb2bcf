package query

import (
	"regexp"
	"strings"

	"github.com/roach88/realmbind/internal/wire"
)

// Predicate is a filter condition.
//
// This is a sealed interface; the marker method keeps implementations in
// this package.
type Predicate interface {
	predicateNode()
}

// Op is a comparison operator.
type Op string

const (
	OpEq       Op = "=="
	OpNe       Op = "!="
	OpLt       Op = "<"
	OpLe       Op = "<="
	OpGt       Op = ">"
	OpGe       Op = ">="
	OpMatch    Op = "=~"
	OpNotMatch Op = "!~"
)

// Ordered reports whether op compares by order rather than equality.
func (op Op) Ordered() bool {
	switch op {
	case OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

// Regexp reports whether op is a pattern match.
func (op Op) Regexp() bool {
	return op == OpMatch || op == OpNotMatch
}

// Compare tests the property at Path against a literal value.
//
// Path has one element per link hop: ["owner", "name"] reads the name of
// the object linked from owner.
type Compare struct {
	Path  []string
	Op    Op
	Value wire.Value

	re *regexp.Regexp
}

func (*Compare) predicateNode() {}

// Property returns the dotted key path.
func (c *Compare) Property() string {
	return strings.Join(c.Path, ".")
}

// And is true when every predicate is true. An empty And is true.
type And struct {
	Predicates []Predicate
}

func (*And) predicateNode() {}

// Or is true when any predicate is true. An empty Or is false.
type Or struct {
	Predicates []Predicate
}

func (*Or) predicateNode() {}

// Not negates a predicate.
type Not struct {
	Predicate Predicate
}

func (*Not) predicateNode() {}

// Const is a literal true or false.
type Const bool

func (Const) predicateNode() {}

// Error is a parse or validation failure.
type Error struct {
	Expr    string
	Message string
}

func (e *Error) Error() string {
	if e.Expr == "" {
		return "query: " + e.Message
	}
	return "query " + e.Expr + ": " + e.Message
}

// String renders p back in filter syntax.
func String(p Predicate) string {
	var b strings.Builder
	writePredicate(&b, p)
	return b.String()
}

func writePredicate(b *strings.Builder, p Predicate) {
	switch n := p.(type) {
	case nil:
		b.WriteString("true")
	case *Compare:
		b.WriteString(n.Property())
		b.WriteString(" " + string(n.Op) + " ")
		b.WriteString(wire.Format(n.Value))
	case *And:
		writeJoined(b, n.Predicates, " && ", "true")
	case *Or:
		writeJoined(b, n.Predicates, " || ", "false")
	case *Not:
		b.WriteString("!(")
		writePredicate(b, n.Predicate)
		b.WriteString(")")
	case Const:
		if n {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	}
}

func writeJoined(b *strings.Builder, ps []Predicate, sep, empty string) {
	if len(ps) == 0 {
		b.WriteString(empty)
		return
	}
	b.WriteByte('(')
	for i, p := range ps {
		if i > 0 {
			b.WriteString(sep)
		}
		writePredicate(b, p)
	}
	b.WriteByte(')')
}
