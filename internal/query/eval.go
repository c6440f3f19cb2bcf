package query

import (
	"regexp"
	"strings"

	"github.com/roach88/realmbind/internal/wire"
)

// Row is the view of one stored object that predicates evaluate against.
type Row interface {
	// Value returns the stored value of a property.
	Value(name string) (wire.Value, bool)
	// Follow resolves a link to the target row.
	Follow(ref wire.Object) (Row, bool)
}

// Eval reports whether row satisfies p. A nil predicate matches every row.
func Eval(p Predicate, row Row) (bool, error) {
	switch n := p.(type) {
	case nil:
		return true, nil
	case Const:
		return bool(n), nil
	case *Not:
		ok, err := Eval(n.Predicate, row)
		return !ok, err
	case *And:
		for _, sub := range n.Predicates {
			ok, err := Eval(sub, row)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case *Or:
		for _, sub := range n.Predicates {
			ok, err := Eval(sub, row)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case *Compare:
		return n.eval(row)
	}
	return false, &Error{Message: "unknown predicate"}
}

// Resolve reads a key path from row. A null link part way along the path
// yields null.
func Resolve(row Row, path []string) (wire.Value, error) {
	for i, name := range path {
		v, ok := row.Value(name)
		if !ok {
			return nil, &Error{Expr: strings.Join(path, "."), Message: "unknown property " + name}
		}
		if i == len(path)-1 {
			return v, nil
		}
		if wire.IsNull(v) {
			return wire.Null{}, nil
		}
		ref, ok := v.(wire.Object)
		if !ok {
			return nil, &Error{Expr: strings.Join(path, "."), Message: name + " is not a link"}
		}
		if row, ok = row.Follow(ref); !ok {
			return wire.Null{}, nil
		}
	}
	return wire.Null{}, nil
}

func (c *Compare) eval(row Row) (bool, error) {
	v, err := Resolve(row, c.Path)
	if err != nil {
		return false, err
	}

	switch c.Op {
	case OpEq:
		return wire.Equal(v, c.Value), nil
	case OpNe:
		return !wire.Equal(v, c.Value), nil
	case OpMatch, OpNotMatch:
		re, err := c.pattern()
		if err != nil {
			return false, err
		}
		s, ok := v.(wire.String)
		matched := ok && re.MatchString(string(s))
		if c.Op == OpNotMatch {
			return !matched, nil
		}
		return matched, nil
	}

	cmp, ok := compareOrdered(v, c.Value)
	if !ok {
		return false, nil
	}
	switch c.Op {
	case OpLt:
		return cmp < 0, nil
	case OpLe:
		return cmp <= 0, nil
	case OpGt:
		return cmp > 0, nil
	case OpGe:
		return cmp >= 0, nil
	}
	return false, &Error{Expr: c.Property(), Message: "unknown operator " + string(c.Op)}
}

func (c *Compare) pattern() (*regexp.Regexp, error) {
	if c.re != nil {
		return c.re, nil
	}
	s, ok := c.Value.(wire.String)
	if !ok {
		return nil, &Error{Expr: c.Property(), Message: "pattern must be a string"}
	}
	re, err := regexp.Compile(string(s))
	if err != nil {
		return nil, &Error{Expr: c.Property(), Message: err.Error()}
	}
	return re, nil
}

// compareOrdered compares two values of the same ordered family. ok is
// false when either side is null or the families differ.
func compareOrdered(a, b wire.Value) (int, bool) {
	if wire.IsNull(a) || wire.IsNull(b) {
		return 0, false
	}
	if _, ok := wire.AsFloat(a); ok {
		return wire.CompareNumbers(a, b)
	}
	switch x := a.(type) {
	case wire.String:
		y, ok := b.(wire.String)
		return strings.Compare(string(x), string(y)), ok
	case wire.Date:
		y, ok := b.(wire.Date)
		return x.Compare(y.Time), ok
	}
	return 0, false
}
