package realm

import (
	"errors"
	"fmt"
	"iter"
	"runtime"
	"strconv"

	"github.com/roach88/realmbind/internal/engine"
	"github.com/roach88/realmbind/internal/query"
	"github.com/roach88/realmbind/internal/wire"
)

// collection is the live view shared by Results and List. Every call
// asks the engine; nothing is cached.
type collection struct {
	realm  *Realm
	handle wire.Collection
}

// Realm returns the owning realm.
func (c *collection) Realm() *Realm { return c.realm }

// Type returns the element type name.
func (c *collection) Type() string { return c.handle.ElementType() }

// Length returns the current number of elements.
func (c *collection) Length() (int, error) {
	const op = "length"
	if err := c.realm.check(op); err != nil {
		return 0, err
	}
	// A derived view releases its handle once unreachable.
	defer runtime.KeepAlive(c)
	n, err := c.realm.engine.Length(c.realm.ID(), c.handle)
	return n, wrapEngine(op, err)
}

// At returns the element at i. An index outside [0, Length()) fails with
// ErrIndex.
func (c *collection) At(i int) (Handle, error) {
	const op = "at"
	if err := c.realm.check(op); err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(c)
	ref, err := c.realm.engine.Get(c.realm.ID(), c.handle, i)
	if err != nil {
		return nil, wrapEngine(op, err)
	}
	return c.realm.materialize(ref), nil
}

// All iterates over the elements. It yields at most the length observed
// when iteration starts and stops early, without error, when an index
// falls out of range because elements were removed meanwhile.
func (c *collection) All() iter.Seq2[Handle, error] {
	return func(yield func(Handle, error) bool) {
		n, err := c.Length()
		if err != nil {
			yield(nil, err)
			return
		}
		for i := range n {
			h, err := c.At(i)
			if errors.Is(err, ErrIndex) {
				return
			}
			if !yield(h, err) || err != nil {
				return
			}
		}
	}
}

// Get looks up a key the way a generic property lookup would: "length"
// returns Length, a canonical decimal index returns At, anything else
// (including "01" or "+1") returns nil.
func (c *collection) Get(key string) (any, error) {
	if key == "length" {
		return c.Length()
	}
	if i, err := strconv.Atoi(key); err == nil && strconv.Itoa(i) == key {
		return c.At(i)
	}
	return nil, nil
}

func (c *collection) derive(op string, q engine.Query) (*Results, error) {
	if err := c.realm.check(op); err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(c)
	handle, err := c.realm.engine.Query(c.realm.ID(), c.handle, q)
	if err != nil {
		return nil, wrapEngine(op, err)
	}
	res := &Results{collection{realm: c.realm, handle: handle}}
	eng, id := c.realm.engine, c.realm.ID()
	// Cleanups run on one shared goroutine; the release may block on a Loop.
	runtime.AddCleanup(res, func(h wire.Results) {
		go func() { _ = eng.ReleaseResults(id, h) }()
	}, handle)
	return res, nil
}

// Sorted returns a live view ordered by keys. A key is a property name or
// key path, prefixed with "-" for descending order.
func (c *collection) Sorted(keys ...string) (*Results, error) {
	sort := make([]query.SortKey, len(keys))
	for i, k := range keys {
		sort[i] = query.ParseSortKey(k)
	}
	return c.derive("sorted", engine.Query{Sort: sort})
}

// SortedBy returns a live view ordered by one property.
func (c *collection) SortedBy(property string, reverse bool) (*Results, error) {
	return c.derive("sorted", engine.Query{Sort: []query.SortKey{{Property: property, Descending: reverse}}})
}

// Filtered returns a live view of the elements matching a query such as
// `age >= $0 && name =~ "^A"`. args bind to $0, $1, ...
func (c *collection) Filtered(expr string, args ...any) (*Results, error) {
	const op = "filtered"
	defer runtime.KeepAlive(args)
	wargs := make([]wire.Value, len(args))
	for i, a := range args {
		w, err := c.realm.toWire(a)
		if err != nil {
			return nil, fmt.Errorf("%s: argument $%d: %w", op, i, err)
		}
		wargs[i] = w
	}
	return c.derive(op, engine.Query{Filter: expr, Args: wargs})
}

// Snapshot returns a frozen view of the current elements. Its membership
// never changes; deleted members stay in it as invalid handles.
func (c *collection) Snapshot() (*Results, error) {
	return c.derive("snapshot", engine.Query{Snapshot: true})
}

// Results is a live view over the objects matching a query.
type Results struct {
	collection
}

// List is a live view over a list property, with mutation operations that
// require an active write transaction.
type List struct {
	collection
}

func (l *List) ref() wire.List { return l.handle.(wire.List) }

func (l *List) writable(op string) error {
	if err := l.realm.check(op); err != nil {
		return err
	}
	if !l.realm.IsInTransaction() {
		return newError(ErrTransaction, op, "cannot modify a list outside of a write transaction")
	}
	return nil
}

// Set replaces the element at i.
func (l *List) Set(i int, value any) error {
	const op = "list set"
	if err := l.writable(op); err != nil {
		return err
	}
	defer runtime.KeepAlive(value)
	v, err := l.realm.toWire(value)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return wrapEngine(op, l.realm.engine.ListSet(l.realm.ID(), l.ref(), i, v))
}

// Splice removes deleteCount elements at start, inserts values there and
// returns the removed elements. A negative start counts from the end;
// both arguments are clamped to the list bounds.
func (l *List) Splice(start, deleteCount int, values ...any) ([]Handle, error) {
	return l.splice("splice", start, deleteCount, values)
}

func (l *List) splice(op string, start, deleteCount int, values []any) ([]Handle, error) {
	if err := l.writable(op); err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(values)
	wvals := make([]wire.Value, len(values))
	for i, v := range values {
		w, err := l.realm.toWire(v)
		if err != nil {
			return nil, fmt.Errorf("%s: value %d: %w", op, i, err)
		}
		wvals[i] = w
	}
	removed, err := l.realm.engine.ListSplice(l.realm.ID(), l.ref(), start, deleteCount, wvals)
	if err != nil {
		return nil, wrapEngine(op, err)
	}
	out := make([]Handle, len(removed))
	for i, ref := range removed {
		out[i] = l.realm.materialize(ref)
	}
	return out, nil
}

// Push appends values and returns the new length.
func (l *List) Push(values ...any) (int, error) {
	n, err := l.Length()
	if err != nil {
		return 0, err
	}
	if _, err := l.splice("push", n, 0, values); err != nil {
		return 0, err
	}
	return l.Length()
}

// Pop removes and returns the last element, or nil when the list is empty.
func (l *List) Pop() (Handle, error) {
	return l.removeOne("pop", -1)
}

// Shift removes and returns the first element, or nil when the list is
// empty.
func (l *List) Shift() (Handle, error) {
	return l.removeOne("shift", 0)
}

// Unshift prepends values and returns the new length.
func (l *List) Unshift(values ...any) (int, error) {
	if _, err := l.splice("unshift", 0, 0, values); err != nil {
		return 0, err
	}
	return l.Length()
}

func (l *List) removeOne(op string, start int) (Handle, error) {
	removed, err := l.splice(op, start, 1, nil)
	if err != nil || len(removed) == 0 {
		return nil, err
	}
	return removed[0], nil
}
