package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"cuelang.org/go/cue/ast"
	"cuelang.org/go/cue/literal"
	"cuelang.org/go/cue/parser"
	"cuelang.org/go/cue/token"

	"github.com/roach88/realmbind/internal/wire"
)

// Parse parses a filter expression. Placeholders $0, $1, ... are replaced by
// args.
func Parse(src string, args ...wire.Value) (Predicate, error) {
	if strings.TrimSpace(src) == "" {
		return nil, &Error{Message: "empty filter"}
	}
	expr, err := parser.ParseExpr("filter", src)
	if err != nil {
		return nil, &Error{Expr: src, Message: err.Error()}
	}
	p := &exprParser{src: src, args: args}
	pred, err := p.predicate(expr)
	if err != nil {
		return nil, err
	}
	return pred, nil
}

type exprParser struct {
	src  string
	args []wire.Value
}

func (p *exprParser) errorf(format string, args ...any) error {
	return &Error{Expr: p.src, Message: fmt.Sprintf(format, args...)}
}

func (p *exprParser) predicate(e ast.Expr) (Predicate, error) {
	switch n := e.(type) {
	case *ast.ParenExpr:
		return p.predicate(n.X)
	case *ast.UnaryExpr:
		if n.Op != token.NOT {
			return nil, p.errorf("unsupported operator %s", n.Op)
		}
		inner, err := p.predicate(n.X)
		if err != nil {
			return nil, err
		}
		return &Not{Predicate: inner}, nil
	case *ast.BinaryExpr:
		switch n.Op {
		case token.LAND, token.LOR:
			return p.logical(n)
		case token.EQL, token.NEQ, token.LSS, token.LEQ, token.GTR, token.GEQ, token.MAT, token.NMAT:
			return p.compare(n)
		}
		return nil, p.errorf("unsupported operator %s", n.Op)
	case *ast.BasicLit:
		switch n.Kind {
		case token.TRUE:
			return Const(true), nil
		case token.FALSE:
			return Const(false), nil
		}
	}
	return nil, p.errorf("expected a comparison, got %s", describe(e))
}

// logical flattens chains of the same operator into one node.
func (p *exprParser) logical(n *ast.BinaryExpr) (Predicate, error) {
	var operands []Predicate
	for _, side := range []ast.Expr{n.X, n.Y} {
		pred, err := p.predicate(side)
		if err != nil {
			return nil, err
		}
		switch inner := pred.(type) {
		case *And:
			if n.Op == token.LAND {
				operands = append(operands, inner.Predicates...)
				continue
			}
		case *Or:
			if n.Op == token.LOR {
				operands = append(operands, inner.Predicates...)
				continue
			}
		}
		operands = append(operands, pred)
	}
	if n.Op == token.LAND {
		return &And{Predicates: operands}, nil
	}
	return &Or{Predicates: operands}, nil
}

func (p *exprParser) compare(n *ast.BinaryExpr) (Predicate, error) {
	op := Op(n.Op.String())
	path, lhsErr := p.keyPath(n.X)
	value, rhsErr := p.value(n.Y)
	if lhsErr != nil || rhsErr != nil {
		// Allow the literal on the left: 3 < age
		var err error
		if path, err = p.keyPath(n.Y); err != nil {
			return nil, firstErr(lhsErr, rhsErr)
		}
		if value, err = p.value(n.X); err != nil {
			return nil, firstErr(lhsErr, rhsErr)
		}
		if op.Regexp() {
			return nil, p.errorf("pattern must be on the right of %s", op)
		}
		op = mirror(op)
	}

	c := &Compare{Path: path, Op: op, Value: value}
	if op.Regexp() {
		s, ok := value.(wire.String)
		if !ok {
			return nil, p.errorf("%s requires a string pattern, got %s", op, wire.KindOf(value))
		}
		re, err := regexp.Compile(string(s))
		if err != nil {
			return nil, p.errorf("invalid pattern: %v", err)
		}
		c.re = re
	}
	return c, nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func mirror(op Op) Op {
	switch op {
	case OpLt:
		return OpGt
	case OpLe:
		return OpGe
	case OpGt:
		return OpLt
	case OpGe:
		return OpLe
	}
	return op
}

func (p *exprParser) keyPath(e ast.Expr) ([]string, error) {
	switch n := e.(type) {
	case *ast.Ident:
		if strings.HasPrefix(n.Name, "$") {
			return nil, p.errorf("argument %s cannot be used as a property", n.Name)
		}
		return []string{n.Name}, nil
	case *ast.SelectorExpr:
		prefix, err := p.keyPath(n.X)
		if err != nil {
			return nil, err
		}
		name, _, err := ast.LabelName(n.Sel)
		if err != nil {
			return nil, p.errorf("invalid selector: %v", err)
		}
		return append(prefix, name), nil
	case *ast.ParenExpr:
		return p.keyPath(n.X)
	}
	return nil, p.errorf("expected a property, got %s", describe(e))
}

func (p *exprParser) value(e ast.Expr) (wire.Value, error) {
	switch n := e.(type) {
	case *ast.ParenExpr:
		return p.value(n.X)
	case *ast.Ident:
		if idx, ok := strings.CutPrefix(n.Name, "$"); ok {
			i, err := strconv.Atoi(idx)
			if err != nil || i < 0 {
				return nil, p.errorf("invalid argument %s", n.Name)
			}
			if i >= len(p.args) {
				return nil, p.errorf("argument %s not provided (%d given)", n.Name, len(p.args))
			}
			if p.args[i] == nil {
				return wire.Null{}, nil
			}
			return p.args[i], nil
		}
	case *ast.UnaryExpr:
		if n.Op == token.SUB || n.Op == token.ADD {
			v, err := p.value(n.X)
			if err != nil {
				return nil, err
			}
			if n.Op == token.ADD {
				return v, nil
			}
			switch num := v.(type) {
			case wire.Int:
				return -num, nil
			case wire.Double:
				return -num, nil
			}
			return nil, p.errorf("cannot negate %s", wire.KindOf(v))
		}
	case *ast.BasicLit:
		return p.literal(n)
	}
	return nil, p.errorf("expected a value, got %s", describe(e))
}

func (p *exprParser) literal(n *ast.BasicLit) (wire.Value, error) {
	switch n.Kind {
	case token.NULL:
		return wire.Null{}, nil
	case token.TRUE:
		return wire.Bool(true), nil
	case token.FALSE:
		return wire.Bool(false), nil
	case token.INT:
		i, err := strconv.ParseInt(strings.ReplaceAll(n.Value, "_", ""), 0, 64)
		if err != nil {
			return nil, p.errorf("invalid integer %s", n.Value)
		}
		return wire.Int(i), nil
	case token.FLOAT:
		f, err := strconv.ParseFloat(strings.ReplaceAll(n.Value, "_", ""), 64)
		if err != nil {
			return nil, p.errorf("invalid number %s", n.Value)
		}
		return wire.Double(f), nil
	case token.STRING:
		s, err := literal.Unquote(n.Value)
		if err != nil {
			return nil, p.errorf("invalid string %s: %v", n.Value, err)
		}
		return wire.String(s), nil
	}
	return nil, p.errorf("unsupported literal %s", n.Value)
}

func describe(e ast.Expr) string {
	switch n := e.(type) {
	case *ast.BasicLit:
		return "literal " + n.Value
	case *ast.Ident:
		return "identifier " + n.Name
	default:
		return fmt.Sprintf("%T", e)
	}
}
