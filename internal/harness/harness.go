package harness

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/realmbind/internal/engine"
	"github.com/roach88/realmbind/internal/realm"
	"github.com/roach88/realmbind/internal/schema"
	"github.com/roach88/realmbind/internal/testutil"
)

// errAborted is returned by the function of a write step marked abort.
var errAborted = errors.New("write aborted by scenario")

var errorKinds = []struct {
	name string
	err  error
}{
	{"state", realm.ErrState},
	{"schema", realm.ErrSchema},
	{"transaction", realm.ErrTransaction},
	{"type", realm.ErrType},
	{"index", realm.ErrIndex},
	{"aborted", errAborted},
}

func knownKind(name string) bool {
	for _, k := range errorKinds {
		if k.name == name {
			return true
		}
	}
	return false
}

// kindOf names the error kind of err, or "unknown".
func kindOf(err error) string {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "unknown"
}

// collection is the read surface shared by *realm.Results and *realm.List.
type collection interface {
	Length() (int, error)
	At(i int) (realm.Handle, error)
}

// Run executes a scenario against a fresh in-memory realm. The returned
// error reports problems running the scenario at all; mismatches are
// reported in the Result.
func Run(s *Scenario) (*Result, error) {
	set, err := schema.LoadFile(s.Schema)
	if err != nil {
		return nil, fmt.Errorf("loading schema %s: %w", s.Schema, err)
	}
	defs := make([]schema.Definition, 0, set.Len())
	for _, t := range set.All() {
		defs = append(defs, t)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := engine.NewMemory(
		engine.WithIDGenerator(testutil.NewSequentialIDs("scenario")),
		engine.WithLogger(logger),
	)
	r, err := realm.Open(realm.Config{Schema: defs, Path: s.Name + ".realm", InMemory: true},
		realm.WithEngine(eng), realm.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("opening realm: %w", err)
	}
	defer r.Close()

	x := &executor{realm: r, refs: make(map[string]any), result: &Result{Pass: true}}
	for i := range s.Flow {
		x.step(fmt.Sprintf("flow[%d]", i), &s.Flow[i])
	}
	for i := range s.Assertions {
		if err := x.assert(&s.Assertions[i]); err != nil {
			x.result.failf("assertions[%d]: %v", i, err)
		}
	}
	return x.result, nil
}

type executor struct {
	realm  *realm.Realm
	refs   map[string]any
	result *Result
}

func (x *executor) record(op, target, outcome string) {
	x.result.Trace = append(x.result.Trace, TraceEvent{
		Seq:     len(x.result.Trace) + 1,
		Op:      op,
		Target:  target,
		Outcome: outcome,
	})
}

// step runs one step, records it and checks its expectations. It returns
// the step's error so a write can cancel on an unexpected failure.
func (x *executor) step(field string, s *Step) error {
	op, target := s.op()
	out, err := x.exec(s)

	if err != nil {
		x.record(op, target, "error: "+kindOf(err))
	} else {
		x.record(op, target, outcome(out))
	}

	switch {
	case err != nil && s.ExpectError == "":
		x.result.failf("%s: %s %s: unexpected error: %v", field, op, target, err)
		return err
	case err != nil && kindOf(err) != s.ExpectError:
		x.result.failf("%s: %s %s: expected %s error, got %v", field, op, target, s.ExpectError, err)
		return err
	case err == nil && s.ExpectError != "":
		x.result.failf("%s: %s %s: expected %s error, got none", field, op, target, s.ExpectError)
		return nil
	case err != nil:
		return nil
	}

	if s.Expect != nil {
		want, werr := x.resolve(s.Expect)
		if werr != nil {
			x.result.failf("%s: %v", field, werr)
		} else if got, w := format(out), format(want); got != w {
			x.result.failf("%s: %s %s: expected %s, got %s", field, op, target, w, got)
		}
	}
	if s.As != "" {
		x.refs[s.As] = out
	}
	return nil
}

func (x *executor) exec(s *Step) (any, error) {
	switch {
	case s.Create != "":
		values, err := x.resolve(s.Values)
		if err != nil {
			return nil, err
		}
		return x.realm.Create(s.Create, values)

	case s.Set != "":
		obj, err := x.object(s.Set)
		if err != nil {
			return nil, err
		}
		value, err := x.resolve(s.Value)
		if err != nil {
			return nil, err
		}
		return nil, obj.Set(s.Property, value)

	case s.Read != "":
		obj, err := x.object(s.Read)
		if err != nil {
			return nil, err
		}
		return obj.Get(s.Property)

	case s.Delete != "":
		target, ok := x.refs[s.Delete]
		if !ok {
			return nil, fmt.Errorf("unknown ref %q", s.Delete)
		}
		return nil, x.realm.Delete(target)

	case s.Objects != "":
		res, err := x.realm.Objects(s.Objects)
		if err != nil {
			return nil, err
		}
		if s.Filter != "" {
			args, err := x.resolveAll(s.Args)
			if err != nil {
				return nil, err
			}
			if res, err = res.Filtered(s.Filter, args...); err != nil {
				return nil, err
			}
		}
		if len(s.Sort) > 0 {
			return res.Sorted(s.Sort...)
		}
		return res, nil

	case s.Length != "":
		c, err := x.collection(s.Length)
		if err != nil {
			return nil, err
		}
		return c.Length()

	case s.At != "":
		c, err := x.collection(s.At)
		if err != nil {
			return nil, err
		}
		return c.At(s.Index)

	case s.Push != "":
		l, ok := x.refs[s.Push].(*realm.List)
		if !ok {
			return nil, fmt.Errorf("ref %q is not a list", s.Push)
		}
		value, err := x.resolve(s.Value)
		if err != nil {
			return nil, err
		}
		if values, ok := value.([]any); ok {
			return l.Push(values...)
		}
		return l.Push(value)

	case s.Write != nil:
		err := x.realm.Write(func() error {
			for i := range s.Write {
				if err := x.step(fmt.Sprintf("write[%d]", i), &s.Write[i]); err != nil {
					return err
				}
			}
			if s.Abort {
				return errAborted
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return "committed", nil

	case s.Close:
		return nil, x.realm.Close()
	}
	return nil, errors.New("step has no operation")
}

func (x *executor) object(ref string) (*realm.Object, error) {
	obj, ok := x.refs[ref].(*realm.Object)
	if !ok {
		return nil, fmt.Errorf("ref %q is not an object", ref)
	}
	return obj, nil
}

func (x *executor) collection(ref string) (collection, error) {
	c, ok := x.refs[ref].(collection)
	if !ok {
		return nil, fmt.Errorf("ref %q is not a collection", ref)
	}
	return c, nil
}

// resolve replaces "@name" strings with the named refs, recursively.
func (x *executor) resolve(v any) (any, error) {
	switch val := v.(type) {
	case string:
		name, ok := strings.CutPrefix(val, "@")
		if !ok {
			return val, nil
		}
		ref, ok := x.refs[name]
		if !ok {
			return nil, fmt.Errorf("unknown ref %q", name)
		}
		return ref, nil
	case []any:
		return x.resolveAll(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			r, err := x.resolve(e)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	}
	return v, nil
}

func (x *executor) resolveAll(values []any) ([]any, error) {
	out := make([]any, len(values))
	for i, e := range values {
		r, err := x.resolve(e)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// outcome renders a step result for the trace. Steps without a result
// read "ok".
func outcome(v any) string {
	if v == nil {
		return "ok"
	}
	return format(v)
}

// format renders values so expectations and engine results compare equal
// whatever their Go types: numbers by value, handles as Type#ID and
// collections as bracketed lists.
func format(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case string:
		return val
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case []byte:
		return fmt.Sprintf("<%d bytes>", len(val))
	case *realm.Object:
		return val.String()
	case collection:
		n, err := val.Length()
		if err != nil {
			return "error: " + kindOf(err)
		}
		parts := make([]string, 0, n)
		for i := range n {
			h, err := val.At(i)
			if err != nil {
				return "error: " + kindOf(err)
			}
			parts = append(parts, format(h))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []any:
		parts := make([]string, len(val))
		for i, e := range val {
			parts[i] = format(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case fmt.Stringer:
		return val.String()
	}
	return fmt.Sprint(v)
}
