package engine

import (
	"math"
	"slices"

	"github.com/roach88/realmbind/internal/query"
	"github.com/roach88/realmbind/internal/schema"
	"github.com/roach88/realmbind/internal/wire"
)

// resultsState backs one results handle. Exactly one of typ, list, parent
// or frozen is the source; filter and sort are applied on every
// evaluation. Evaluations are cached per dataset generation and version.
type resultsState struct {
	objectType string

	typ      string
	list     *wire.List
	parent   *resultsState
	frozen   []int64
	isFrozen bool

	filter query.Predicate
	sort   []query.SortKey

	cacheGen     int64
	cacheVersion int64
	cache        []int64
	cached       bool
}

func (rs *realmState) newResults(res *resultsState) wire.Results {
	rs.nextResults++
	rs.results[rs.nextResults] = res
	return wire.Results{ID: rs.nextResults, ObjectType: res.objectType}
}

// releaseResults forgets a derived handle. Derived results hold their
// parent by pointer, so releasing a parent leaves its children working.
func (rs *realmState) releaseResults(r wire.Results) {
	if shared, ok := rs.typeResults[r.ObjectType]; ok && shared.ID == r.ID {
		return
	}
	delete(rs.results, r.ID)
}

func (rs *realmState) lookupResults(r wire.Results) (*resultsState, error) {
	res, ok := rs.results[r.ID]
	if !ok {
		return nil, Errorf(ErrCodeInvalidObject, "unknown results handle %d", r.ID)
	}
	return res, nil
}

// ids evaluates the results against ds.
func (res *resultsState) ids(ds *dataset) ([]int64, error) {
	if res.isFrozen {
		return res.frozen, nil
	}
	if res.cached && res.cacheGen == ds.gen && res.cacheVersion == ds.version {
		return res.cache, nil
	}

	var base []int64
	switch {
	case res.parent != nil:
		ids, err := res.parent.ids(ds)
		if err != nil {
			return nil, err
		}
		base = ids
	case res.list != nil:
		owner, ok := ds.lookup(res.list.Owner)
		if !ok {
			return nil, Errorf(ErrCodeInvalidObject, "list owner %s has been deleted", res.list.Owner)
		}
		base = listIDs(owner.values[res.list.Property])
	default:
		base = ds.byType[res.typ]
	}

	out := base
	if res.filter != nil {
		out = make([]int64, 0, len(base))
		for _, id := range base {
			rec, ok := ds.objects[id]
			if !ok {
				continue
			}
			match, err := query.Eval(res.filter, row{ds: ds, rec: rec})
			if err != nil {
				return nil, Errorf(ErrCodeInvalidQuery, "%v", err)
			}
			if match {
				out = append(out, id)
			}
		}
	}

	if len(res.sort) > 0 {
		out = slices.Clone(out)
		var sortErr error
		slices.SortStableFunc(out, func(a, b int64) int {
			ra, oka := ds.objects[a]
			rb, okb := ds.objects[b]
			if !oka || !okb {
				return 0
			}
			c, err := query.CompareRows(res.sort, row{ds: ds, rec: ra}, row{ds: ds, rec: rb})
			if err != nil && sortErr == nil {
				sortErr = err
			}
			return c
		})
		if sortErr != nil {
			return nil, Errorf(ErrCodeInvalidQuery, "%v", sortErr)
		}
	}

	res.cache, res.cacheGen, res.cacheVersion, res.cached = out, ds.gen, ds.version, true
	return out, nil
}

func listIDs(v wire.Value) []int64 {
	arr, _ := v.(wire.Array)
	ids := make([]int64, 0, len(arr))
	for _, e := range arr {
		if ref, ok := e.(wire.Object); ok {
			ids = append(ids, ref.ID)
		}
	}
	return ids
}

// listRecord resolves the owner of a list and checks the property.
func (rs *realmState) listRecord(ds *dataset, l wire.List) (*record, *schema.ObjectSchema, *schema.Property, error) {
	owner, ok := ds.lookup(l.Owner)
	if !ok {
		return nil, nil, nil, Errorf(ErrCodeInvalidObject, "list owner %s has been deleted", l.Owner)
	}
	os, _ := rs.set.Get(l.Owner.Type)
	p, ok := os.Property(l.Property)
	if !ok || p.Type != schema.List {
		return nil, nil, nil, Errorf(ErrCodeUnknownProperty, "%s has no list property %q", l.Owner.Type, l.Property)
	}
	return owner, os, p, nil
}

// elements returns the object ids of a collection in the realm's view.
func (rs *realmState) elements(c wire.Collection) ([]int64, error) {
	ds := rs.view()
	switch col := c.(type) {
	case wire.Results:
		res, err := rs.lookupResults(col)
		if err != nil {
			return nil, err
		}
		return res.ids(ds)
	case wire.List:
		owner, _, _, err := rs.listRecord(ds, col)
		if err != nil {
			return nil, err
		}
		return listIDs(owner.values[col.Property]), nil
	}
	return nil, Errorf(ErrCodeTypeMismatch, "unsupported collection %T", c)
}

// Length returns the current number of elements.
func (m *Memory) Length(id RealmID, c wire.Collection) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rs, err := m.realm(id)
	if err != nil {
		return 0, err
	}
	ids, err := rs.elements(c)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Get returns the element at index.
func (m *Memory) Get(id RealmID, c wire.Collection, index int) (wire.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rs, err := m.realm(id)
	if err != nil {
		return wire.Object{}, err
	}
	ids, err := rs.elements(c)
	if err != nil {
		return wire.Object{}, err
	}
	if index < 0 || index >= len(ids) {
		return wire.Object{}, Errorf(ErrCodeIndexOutOfRange, "index %d out of range [0, %d)", index, len(ids))
	}
	return wire.Object{Type: c.ElementType(), ID: ids[index]}, nil
}

// Query derives a new results handle from a collection.
func (m *Memory) Query(id RealmID, c wire.Collection, q Query) (wire.Results, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rs, err := m.realm(id)
	if err != nil {
		return wire.Results{}, err
	}

	res := &resultsState{objectType: c.ElementType(), sort: slices.Clone(q.Sort)}
	switch col := c.(type) {
	case wire.Results:
		parent, err := rs.lookupResults(col)
		if err != nil {
			return wire.Results{}, err
		}
		res.parent = parent
	case wire.List:
		if _, _, _, err := rs.listRecord(rs.view(), col); err != nil {
			return wire.Results{}, err
		}
		l := col
		res.list = &l
	default:
		return wire.Results{}, Errorf(ErrCodeTypeMismatch, "unsupported collection %T", c)
	}

	if q.Filter != "" {
		pred, err := query.Parse(q.Filter, q.Args...)
		if err != nil {
			return wire.Results{}, Errorf(ErrCodeInvalidQuery, "%v", err)
		}
		if err := query.Validate(pred, rs.set, res.objectType); err != nil {
			return wire.Results{}, Errorf(ErrCodeInvalidQuery, "%v", err)
		}
		res.filter = pred
	}
	if err := query.ValidateSort(res.sort, rs.set, res.objectType); err != nil {
		return wire.Results{}, Errorf(ErrCodeInvalidQuery, "%v", err)
	}

	if q.Snapshot {
		ids, err := res.ids(rs.view())
		if err != nil {
			return wire.Results{}, err
		}
		res.frozen, res.isFrozen = slices.Clone(ids), true
		res.parent, res.list = nil, nil
	}
	return rs.newResults(res), nil
}

// ReleaseResults drops a results handle.
func (m *Memory) ReleaseResults(id RealmID, r wire.Results) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rs, err := m.realm(id)
	if err != nil {
		return err
	}
	rs.releaseResults(r)
	return nil
}

// ListSet replaces the element at index.
func (m *Memory) ListSet(id RealmID, l wire.List, index int, value wire.Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rs, err := m.realm(id)
	if err != nil {
		return err
	}
	t, err := m.writing(rs)
	if err != nil {
		return err
	}
	owner, os, p, err := rs.listRecord(t.ds, l)
	if err != nil {
		return err
	}
	n := len(listIDs(owner.values[l.Property]))
	if index < 0 || index >= n {
		return Errorf(ErrCodeIndexOutOfRange, "index %d out of range [0, %d)", index, n)
	}
	if wire.IsNull(value) {
		return Errorf(ErrCodeNotNullable, "%s.%s: list elements cannot be null", os.Name, p.Name)
	}
	var ref wire.Object
	err = t.atomically(func() (err error) {
		ref, err = t.link(os, p, value)
		return err
	})
	if err != nil {
		return err
	}
	owner = t.ds.mutable(t.ds.objects[owner.id])
	arr := slices.Clone(owner.values[l.Property].(wire.Array))
	arr[index] = ref
	owner.values[l.Property] = arr
	t.ds.version++
	return nil
}

// ListSplice removes deleteCount elements at start and inserts values in
// their place, returning the removed elements. start and deleteCount are
// clamped like Array.prototype.splice: a negative start counts from the end.
func (m *Memory) ListSplice(id RealmID, l wire.List, start, deleteCount int, values []wire.Value) ([]wire.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rs, err := m.realm(id)
	if err != nil {
		return nil, err
	}
	t, err := m.writing(rs)
	if err != nil {
		return nil, err
	}
	owner, os, p, err := rs.listRecord(t.ds, l)
	if err != nil {
		return nil, err
	}

	inserted := make(wire.Array, 0, len(values))
	err = t.atomically(func() error {
		for i, v := range values {
			if wire.IsNull(v) {
				return Errorf(ErrCodeNotNullable, "%s.%s[%d]: list elements cannot be null", os.Name, p.Name, i)
			}
			ref, err := t.link(os, p, v)
			if err != nil {
				return err
			}
			inserted = append(inserted, ref)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	owner = t.ds.mutable(t.ds.objects[owner.id])
	arr, _ := owner.values[l.Property].(wire.Array)
	start, deleteCount = clampSplice(len(arr), start, deleteCount)

	removed := make([]wire.Object, 0, deleteCount)
	for _, e := range arr[start : start+deleteCount] {
		removed = append(removed, e.(wire.Object))
	}
	out := make(wire.Array, 0, len(arr)-deleteCount+len(inserted))
	out = append(out, arr[:start]...)
	out = append(out, inserted...)
	out = append(out, arr[start+deleteCount:]...)
	owner.values[l.Property] = out
	t.ds.version++
	return removed, nil
}

func clampSplice(n, start, deleteCount int) (int, int) {
	switch {
	case start < 0:
		start = max(n+start, 0)
	case start > n:
		start = n
	}
	deleteCount = min(max(deleteCount, 0), n-start)
	return start, deleteCount
}

// SpliceAll is a deleteCount that removes every element from start.
const SpliceAll = math.MaxInt32
