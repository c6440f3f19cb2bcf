package harness

import (
	"fmt"
	"maps"
	"slices"
)

// assert evaluates one assertion against the realm and the trace.
func (x *executor) assert(a *Assertion) error {
	switch a.Type {
	case AssertCount:
		return x.assertCount(a)
	case AssertObject:
		return x.assertObject(a)
	case AssertValid:
		obj, err := x.object(a.Ref)
		if err != nil {
			return err
		}
		if got := obj.IsValid(); got != a.Valid {
			return &AssertionError{Type: a.Type, Expected: a.Valid, Actual: got}
		}
		return nil
	case AssertTraceCount:
		n := 0
		for _, e := range x.result.Trace {
			if e.Op == a.Op {
				n++
			}
		}
		if n != a.Count {
			return &AssertionError{Type: a.Type, Expected: a.Count, Actual: n}
		}
		return nil
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func (x *executor) assertCount(a *Assertion) error {
	res, err := x.realm.Objects(a.ObjectType)
	if err != nil {
		return err
	}
	if a.Filter != "" {
		args, err := x.resolveAll(a.Args)
		if err != nil {
			return err
		}
		if res, err = res.Filtered(a.Filter, args...); err != nil {
			return err
		}
	}
	n, err := res.Length()
	if err != nil {
		return err
	}
	if n != a.Count {
		return &AssertionError{Type: a.Type, Expected: a.Count, Actual: n}
	}
	return nil
}

// assertObject checks the listed properties of a named object. Properties
// not listed are ignored.
func (x *executor) assertObject(a *Assertion) error {
	obj, err := x.object(a.Ref)
	if err != nil {
		return err
	}
	for _, name := range slices.Sorted(maps.Keys(a.Expect)) {
		got, err := obj.Get(name)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", a.Ref, name, err)
		}
		want, err := x.resolve(a.Expect[name])
		if err != nil {
			return err
		}
		if g, w := format(got), format(want); g != w {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%s.%s = %s", a.Ref, name, w), Actual: g}
		}
	}
	return nil
}
