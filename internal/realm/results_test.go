package realm

import (
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/realmbind/internal/engine"
	"github.com/roach88/realmbind/internal/testutil"
	"github.com/roach88/realmbind/internal/wire"
)

func seed(t *testing.T, r *Realm, people map[string]int) {
	t.Helper()
	mustWrite(t, r, func() {
		for _, name := range []string{"Carl", "Ann", "Bob", "Dora"} {
			if age, ok := people[name]; ok {
				mustCreate(t, r, "Person", map[string]any{"name": name, "age": age})
			}
		}
	})
}

func resultNames(t *testing.T, res *Results) []string {
	t.Helper()
	var out []string
	for h, err := range res.All() {
		require.NoError(t, err)
		name, err := Value[string](h, "name")
		require.NoError(t, err)
		out = append(out, name)
	}
	return out
}

func TestResults_LengthIsLive(t *testing.T) {
	r := openTest(t)
	people, err := r.Objects("Person")
	require.NoError(t, err)
	adults, err := people.Filtered("age >= $0", 18)
	require.NoError(t, err)

	mustWrite(t, r, func() {
		before, err := adults.Length()
		require.NoError(t, err)

		mustCreate(t, r, "Person", map[string]any{"name": "Ann", "age": 30})
		mustCreate(t, r, "Person", map[string]any{"name": "Bob", "age": 40})
		mustCreate(t, r, "Person", map[string]any{"name": "Kid", "age": 5})

		after, err := adults.Length()
		require.NoError(t, err)
		assert.Equal(t, 2, after-before, "only matching creations count")

		ann, err := adults.At(0)
		require.NoError(t, err)
		require.NoError(t, r.Delete(ann))
		n, err := adults.Length()
		require.NoError(t, err)
		assert.Equal(t, after-1, n)
	})
}

func TestResults_IndexErrorsAndSoftMiss(t *testing.T) {
	r := openTest(t)
	seed(t, r, map[string]int{"Ann": 1, "Bob": 2})
	people, err := r.Objects("Person")
	require.NoError(t, err)

	_, err = people.At(2)
	assert.ErrorIs(t, err, ErrIndex, "index == length")
	_, err = people.At(-1)
	assert.ErrorIs(t, err, ErrIndex)

	n, err := people.Get("length")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	first, err := people.Get("0")
	require.NoError(t, err)
	name, err := Value[string](first.(Handle), "name")
	require.NoError(t, err)
	assert.Equal(t, "Ann", name)

	_, err = people.Get("2")
	assert.ErrorIs(t, err, ErrIndex)
	_, err = people.Get("-1")
	assert.ErrorIs(t, err, ErrIndex)

	v, err := people.Get("foo")
	assert.NoError(t, err)
	assert.Nil(t, v, "unknown key is a soft miss")

	for _, key := range []string{"01", "+1", " 1", "1.0"} {
		v, err := people.Get(key)
		assert.NoError(t, err, key)
		assert.Nil(t, v, "non-canonical index %q is a soft miss", key)
	}
}

type releaseCounter struct {
	engine.Proxy
	released atomic.Int64
}

func (c *releaseCounter) ReleaseResults(id engine.RealmID, res wire.Results) error {
	c.released.Add(1)
	return c.Proxy.ReleaseResults(id, res)
}

func TestResults_UnreachableViewsAreReleased(t *testing.T) {
	p := &releaseCounter{Proxy: newEngine()}
	r := openWith(t, p, t.Name(), testutil.PersonSchema(), testutil.DogSchema())
	seed(t, r, map[string]int{"Ann": 30, "Bob": 12})

	people, err := r.Objects("Person")
	require.NoError(t, err)
	const views = 50
	for range views {
		adults, err := people.Filtered("age >= $0", 18)
		require.NoError(t, err)
		n, err := adults.Length()
		require.NoError(t, err)
		require.Equal(t, 1, n)
	}

	require.Eventually(t, func() bool {
		runtime.GC()
		return p.released.Load() == views
	}, 5*time.Second, 10*time.Millisecond)

	n, err := people.Length()
	require.NoError(t, err)
	assert.Equal(t, 2, n, "the objects view stays usable")
	runtime.KeepAlive(people)
}

func TestResults_AllStopsEarlyWhenShrinking(t *testing.T) {
	r := openTest(t)
	seed(t, r, map[string]int{"Carl": 1, "Ann": 2, "Bob": 3, "Dora": 4})
	people, err := r.Objects("Person")
	require.NoError(t, err)

	mustWrite(t, r, func() {
		var seen []string
		for h, err := range people.All() {
			require.NoError(t, err)
			name, err := Value[string](h, "name")
			require.NoError(t, err)
			seen = append(seen, name)
			if len(seen) == 1 {
				// Shrink the collection mid-iteration.
				require.NoError(t, r.Delete(people))
			}
		}
		assert.Equal(t, []string{"Carl"}, seen)
	})
}

func TestResults_AllYieldsAtMostInitialLength(t *testing.T) {
	r := openTest(t)
	seed(t, r, map[string]int{"Ann": 1})
	people, err := r.Objects("Person")
	require.NoError(t, err)

	mustWrite(t, r, func() {
		count := 0
		for _, err := range people.All() {
			require.NoError(t, err)
			count++
			mustCreate(t, r, "Person", map[string]any{"name": "more"})
		}
		assert.Equal(t, 1, count)
	})
}

func TestResults_SortedFilteredSnapshot(t *testing.T) {
	r := openTest(t)
	seed(t, r, map[string]int{"Carl": 40, "Ann": 30, "Bob": 30, "Dora": 12})
	people, err := r.Objects("Person")
	require.NoError(t, err)

	byAge, err := people.Sorted("age", "-name")
	require.NoError(t, err)
	assert.Equal(t, []string{"Dora", "Bob", "Ann", "Carl"}, resultNames(t, byAge))
	assert.Equal(t, []string{"Carl", "Ann", "Bob", "Dora"}, resultNames(t, people), "source unchanged")

	desc, err := people.SortedBy("name", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"Dora", "Carl", "Bob", "Ann"}, resultNames(t, desc))

	thirty, err := people.Filtered("age == $0 && name != $1", 30, "Bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"Ann"}, resultNames(t, thirty))

	_, err = people.Filtered("age >")
	assert.ErrorIs(t, err, ErrType)
	_, err = people.Sorted("nope")
	assert.ErrorIs(t, err, ErrType)

	snap, err := people.Snapshot()
	require.NoError(t, err)
	mustWrite(t, r, func() { mustCreate(t, r, "Person", map[string]any{"name": "Eve"}) })
	n, err := snap.Length()
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	n, err = people.Length()
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestList_Operations(t *testing.T) {
	r := openTest(t)
	var owner *Object
	mustWrite(t, r, func() {
		owner = mustCreate(t, r, "Person", map[string]any{
			"name": "Ann",
			"dogs": []any{map[string]any{"name": "A"}, map[string]any{"name": "B"}},
		}).object()
	})
	v, err := owner.Get("dogs")
	require.NoError(t, err)
	dogs := v.(*List)
	assert.Equal(t, "Dog", dogs.Type())

	_, err = dogs.Push(map[string]any{"name": "C"})
	assert.ErrorIs(t, err, ErrTransaction)
	assert.ErrorIs(t, dogs.Set(0, map[string]any{"name": "Z"}), ErrTransaction)

	mustWrite(t, r, func() {
		n, err := dogs.Push(map[string]any{"name": "C"}, map[string]any{"name": "D"})
		require.NoError(t, err)
		assert.Equal(t, 4, n)

		n, err = dogs.Unshift(map[string]any{"name": "Start"})
		require.NoError(t, err)
		assert.Equal(t, 5, n)

		last, err := dogs.Pop()
		require.NoError(t, err)
		name, err := last.(*Dog).Name()
		require.NoError(t, err)
		assert.Equal(t, "D", name)

		first, err := dogs.Shift()
		require.NoError(t, err)
		name, err = first.(*Dog).Name()
		require.NoError(t, err)
		assert.Equal(t, "Start", name)

		require.NoError(t, dogs.Set(1, map[string]any{"name": "Bee"}))
		assert.ErrorIs(t, dogs.Set(5, map[string]any{"name": "X"}), ErrIndex)

		removed, err := dogs.Splice(-1, 1, map[string]any{"name": "See"})
		require.NoError(t, err)
		require.Len(t, removed, 1)
		name, err = removed[0].(*Dog).Name()
		require.NoError(t, err)
		assert.Equal(t, "C", name)
	})

	assert.Equal(t, []string{"A", "Bee", "See"}, resultNamesList(t, dogs))

	sorted, err := dogs.Sorted("-name")
	require.NoError(t, err)
	assert.Equal(t, []string{"See", "Bee", "A"}, resultNames(t, sorted))

	mustWrite(t, r, func() {
		for range 3 {
			_, err := dogs.Pop()
			require.NoError(t, err)
		}
		h, err := dogs.Pop()
		require.NoError(t, err)
		assert.Nil(t, h, "pop on an empty list")
		h, err = dogs.Shift()
		require.NoError(t, err)
		assert.Nil(t, h)
	})
}

func resultNamesList(t *testing.T, l *List) []string {
	t.Helper()
	var out []string
	for h, err := range l.All() {
		require.NoError(t, err)
		name, err := Value[string](h, "name")
		require.NoError(t, err)
		out = append(out, name)
	}
	return out
}
