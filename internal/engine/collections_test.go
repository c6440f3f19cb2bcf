package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/realmbind/internal/query"
	"github.com/roach88/realmbind/internal/wire"
)

func names(t *testing.T, p Proxy, id RealmID, c wire.Collection) []string {
	t.Helper()
	n, err := p.Length(id, c)
	require.NoError(t, err)
	out := make([]string, 0, n)
	for i := range n {
		obj, err := p.Get(id, c, i)
		require.NoError(t, err)
		v, err := p.GetProperty(id, obj, "name")
		require.NoError(t, err)
		out = append(out, string(v.(wire.String)))
	}
	return out
}

func seedPeople(t *testing.T, p Proxy, id RealmID) wire.Results {
	t.Helper()
	inWrite(t, p, id, func() {
		createPerson(t, p, id, "Carl", 40)
		createPerson(t, p, id, "Ann", 30)
		createPerson(t, p, id, "Bob", 30)
		createPerson(t, p, id, "Dora", 12)
	})
	v, err := p.CallMethod(id, MethodObjects, wire.String("Person"))
	require.NoError(t, err)
	return v.(wire.Results)
}

func TestResults_LiveAndIndexed(t *testing.T) {
	m := newTestMemory(t)
	id := openRealm(t, m, "a")
	people := seedPeople(t, m, id)

	assert.Equal(t, "Person", people.ElementType())
	assert.Equal(t, []string{"Carl", "Ann", "Bob", "Dora"}, names(t, m, id, people), "creation order")

	_, err := m.Get(id, people, 4)
	assert.True(t, IsCode(err, ErrCodeIndexOutOfRange))
	_, err = m.Get(id, people, -1)
	assert.True(t, IsCode(err, ErrCodeIndexOutOfRange))

	inWrite(t, m, id, func() { createPerson(t, m, id, "Eve", 50) })
	n, err := m.Length(id, people)
	require.NoError(t, err)
	assert.Equal(t, 5, n, "results re-evaluate after commit")
}

func TestQuery_FilterAndSort(t *testing.T) {
	m := newTestMemory(t)
	id := openRealm(t, m, "a")
	people := seedPeople(t, m, id)

	adults, err := m.Query(id, people, Query{Filter: "age >= $0", Args: []wire.Value{wire.Int(18)}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Carl", "Ann", "Bob"}, names(t, m, id, adults))

	sorted, err := m.Query(id, adults, Query{Sort: []query.SortKey{{Property: "age"}, {Property: "name", Descending: true}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob", "Ann", "Carl"}, names(t, m, id, sorted))

	regex, err := m.Query(id, people, Query{Filter: `name =~ "^[AB]"`})
	require.NoError(t, err)
	assert.Equal(t, []string{"Ann", "Bob"}, names(t, m, id, regex))

	inWrite(t, m, id, func() { createPerson(t, m, id, "Abe", 70) })
	assert.Equal(t, []string{"Carl", "Ann", "Bob", "Abe"}, names(t, m, id, adults), "derived results stay live")
}

func TestQuery_Invalid(t *testing.T) {
	m := newTestMemory(t)
	id := openRealm(t, m, "a")
	people := seedPeople(t, m, id)

	tests := []struct {
		name string
		q    Query
	}{
		{"syntax", Query{Filter: "age >="}},
		{"unknown property", Query{Filter: "height > 1"}},
		{"kind mismatch", Query{Filter: `age == "x"`}},
		{"missing arg", Query{Filter: "age == $3"}},
		{"bad sort", Query{Sort: []query.SortKey{{Property: "dogs"}}}},
		{"unknown sort", Query{Sort: []query.SortKey{{Property: "nope"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Query(id, people, tt.q)
			assert.True(t, IsCode(err, ErrCodeInvalidQuery), "err: %v", err)
		})
	}

	_, err := m.Query(id, wire.Results{ID: 999, ObjectType: "Person"}, Query{})
	assert.True(t, IsCode(err, ErrCodeInvalidObject))
}

func TestQuery_KeyPathThroughLink(t *testing.T) {
	m := newTestMemory(t)
	id := openRealm(t, m, "a")

	inWrite(t, m, id, func() {
		ann := createPerson(t, m, id, "Ann", 30)
		for _, name := range []string{"Rex", "Fido"} {
			_, err := m.CallMethod(id, MethodCreate, wire.String("Dog"), wire.Map{"name": wire.String(name), "owner": ann})
			require.NoError(t, err)
		}
		_, err := m.CallMethod(id, MethodCreate, wire.String("Dog"), wire.Map{"name": wire.String("Stray")})
		require.NoError(t, err)
	})
	dogs, err := m.CallMethod(id, MethodObjects, wire.String("Dog"))
	require.NoError(t, err)

	owned, err := m.Query(id, dogs.(wire.Results), Query{Filter: `owner.name == "Ann"`})
	require.NoError(t, err)
	assert.Equal(t, []string{"Rex", "Fido"}, names(t, m, id, owned))

	strays, err := m.Query(id, dogs.(wire.Results), Query{Filter: "owner == null"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Stray"}, names(t, m, id, strays))
}

func TestQuery_Snapshot(t *testing.T) {
	m := newTestMemory(t)
	id := openRealm(t, m, "a")
	people := seedPeople(t, m, id)

	snap, err := m.Query(id, people, Query{Snapshot: true})
	require.NoError(t, err)

	inWrite(t, m, id, func() { createPerson(t, m, id, "Eve", 50) })
	n, err := m.Length(id, snap)
	require.NoError(t, err)
	assert.Equal(t, 4, n, "snapshot is frozen")

	first, err := m.Get(id, snap, 0)
	require.NoError(t, err)
	inWrite(t, m, id, func() {
		_, err := m.CallMethod(id, MethodDelete, first)
		require.NoError(t, err)
	})
	n, err = m.Length(id, snap)
	require.NoError(t, err)
	assert.Equal(t, 4, n, "deleted members stay in a snapshot")
	valid, err := m.CallMethod(id, MethodIsValid, first)
	require.NoError(t, err)
	assert.Equal(t, wire.Bool(false), valid)
}

func TestObjects_ReusesTypeHandle(t *testing.T) {
	m := newTestMemory(t)
	id := openRealm(t, m, "a")
	people := seedPeople(t, m, id)

	for range 10000 {
		v, err := m.CallMethod(id, MethodObjects, wire.String("Person"))
		require.NoError(t, err)
		require.Equal(t, people, v)
	}
	assert.Len(t, m.realms[id].results, 1)

	require.NoError(t, m.ReleaseResults(id, people), "the shared handle is never dropped")
	assert.Equal(t, []string{"Carl", "Ann", "Bob", "Dora"}, names(t, m, id, people))
}

func TestReleaseResults(t *testing.T) {
	m := newTestMemory(t)
	id := openRealm(t, m, "a")
	people := seedPeople(t, m, id)

	adults, err := m.Query(id, people, Query{Filter: "age >= 18"})
	require.NoError(t, err)
	sorted, err := m.Query(id, adults, Query{Sort: []query.SortKey{{Property: "name"}}})
	require.NoError(t, err)
	assert.Len(t, m.realms[id].results, 3)

	require.NoError(t, m.ReleaseResults(id, adults))
	assert.Len(t, m.realms[id].results, 2)
	_, err = m.Length(id, adults)
	assert.True(t, IsCode(err, ErrCodeInvalidObject), "released handle")
	assert.Equal(t, []string{"Ann", "Bob", "Carl"}, names(t, m, id, sorted), "children outlive their parent")

	require.NoError(t, m.ReleaseResults(id, adults), "releasing twice is a no-op")
	require.NoError(t, m.ReleaseResults(id, sorted))
	assert.Len(t, m.realms[id].results, 1)
}

func TestReleaseResults_ThroughLoop(t *testing.T) {
	m := newTestMemory(t)
	id := openRealm(t, m, "a")
	people := seedPeople(t, m, id)
	l := NewLoop(m, discardLogger())
	go func() { _ = l.Run(context.Background()) }()
	t.Cleanup(l.Stop)

	for range 100 {
		r, err := l.Query(id, people, Query{Filter: "age > 20"})
		require.NoError(t, err)
		require.NoError(t, l.ReleaseResults(id, r))
	}
	assert.Len(t, m.realms[id].results, 1)
}

func listOf(t *testing.T, p Proxy, id RealmID, owner wire.Object) wire.List {
	t.Helper()
	v, err := p.GetProperty(id, owner, "dogs")
	require.NoError(t, err)
	return v.(wire.List)
}

func TestList_SetAndSplice(t *testing.T) {
	m := newTestMemory(t)
	id := openRealm(t, m, "a")

	var ann wire.Object
	inWrite(t, m, id, func() {
		v, err := m.CallMethod(id, MethodCreate, wire.String("Person"), wire.Map{
			"name": wire.String("Ann"),
			"dogs": wire.Array{
				wire.Map{"name": wire.String("A")},
				wire.Map{"name": wire.String("B")},
				wire.Map{"name": wire.String("C")},
			},
		})
		require.NoError(t, err)
		ann = v.(wire.Object)
	})
	dogs := listOf(t, m, id, ann)
	assert.Equal(t, []string{"A", "B", "C"}, names(t, m, id, dogs))

	assert.True(t, IsCode(m.ListSet(id, dogs, 0, wire.Map{"name": wire.String("Z")}), ErrCodeNotInTransaction))

	inWrite(t, m, id, func() {
		require.NoError(t, m.ListSet(id, dogs, 0, wire.Map{"name": wire.String("Z")}))
		assert.True(t, IsCode(m.ListSet(id, dogs, 3, wire.Map{"name": wire.String("Y")}), ErrCodeIndexOutOfRange))
		assert.True(t, IsCode(m.ListSet(id, dogs, 0, wire.Null{}), ErrCodeNotNullable))

		removed, err := m.ListSplice(id, dogs, -2, 1, []wire.Value{wire.Map{"name": wire.String("X")}, wire.Map{"name": wire.String("W")}})
		require.NoError(t, err)
		require.Len(t, removed, 1)
		name, err := m.GetProperty(id, removed[0], "name")
		require.NoError(t, err)
		assert.Equal(t, wire.String("B"), name, "removed object survives removal from the list")
	})
	assert.Equal(t, []string{"Z", "X", "W", "C"}, names(t, m, id, dogs))

	inWrite(t, m, id, func() {
		removed, err := m.ListSplice(id, dogs, 1, SpliceAll, nil)
		require.NoError(t, err)
		assert.Len(t, removed, 3)
	})
	assert.Equal(t, []string{"Z"}, names(t, m, id, dogs))
}

func TestList_QueryAndOwnerDeleted(t *testing.T) {
	m := newTestMemory(t)
	id := openRealm(t, m, "a")

	var ann wire.Object
	inWrite(t, m, id, func() {
		v, err := m.CallMethod(id, MethodCreate, wire.String("Person"), wire.Map{
			"name": wire.String("Ann"),
			"dogs": wire.Array{wire.Map{"name": wire.String("Rex")}, wire.Map{"name": wire.String("Ace")}},
		})
		require.NoError(t, err)
		ann = v.(wire.Object)
	})
	dogs := listOf(t, m, id, ann)

	sorted, err := m.Query(id, dogs, Query{Sort: []query.SortKey{{Property: "name"}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Ace", "Rex"}, names(t, m, id, sorted))

	inWrite(t, m, id, func() {
		_, err := m.CallMethod(id, MethodDelete, ann)
		require.NoError(t, err)
	})
	_, err = m.Length(id, dogs)
	assert.True(t, IsCode(err, ErrCodeInvalidObject))
	_, err = m.Length(id, sorted)
	assert.True(t, IsCode(err, ErrCodeInvalidObject))
}

func TestList_AssignResults(t *testing.T) {
	m := newTestMemory(t)
	id := openRealm(t, m, "a")

	var ann wire.Object
	inWrite(t, m, id, func() {
		ann = createPerson(t, m, id, "Ann", 1)
		for _, n := range []string{"Rex", "Ace"} {
			_, err := m.CallMethod(id, MethodCreate, wire.String("Dog"), wire.Map{"name": wire.String(n)})
			require.NoError(t, err)
		}
	})
	all, err := m.CallMethod(id, MethodObjects, wire.String("Dog"))
	require.NoError(t, err)

	inWrite(t, m, id, func() {
		require.NoError(t, m.SetProperty(id, ann, "dogs", all))
	})
	assert.Equal(t, []string{"Rex", "Ace"}, names(t, m, id, listOf(t, m, id, ann)))
}

func TestClampSplice(t *testing.T) {
	tests := []struct {
		n, start, count      int
		wantStart, wantCount int
	}{
		{5, 0, 2, 0, 2},
		{5, -2, 5, 3, 2},
		{5, -10, 1, 0, 1},
		{5, 9, 1, 5, 0},
		{5, 2, -1, 2, 0},
		{0, 0, SpliceAll, 0, 0},
	}
	for _, tt := range tests {
		start, count := clampSplice(tt.n, tt.start, tt.count)
		assert.Equal(t, tt.wantStart, start, "start for %+v", tt)
		assert.Equal(t, tt.wantCount, count, "count for %+v", tt)
	}
}
