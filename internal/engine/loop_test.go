package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/realmbind/internal/wire"
)

func startLoop(t *testing.T, target Proxy) (*Loop, context.CancelFunc, <-chan error) {
	t.Helper()
	l := NewLoop(target, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	t.Cleanup(cancel)
	return l, cancel, done
}

func TestLoop_ForwardsCalls(t *testing.T) {
	l, _, _ := startLoop(t, newTestMemory(t))
	id := openRealm(t, l, "a")
	people := seedPeople(t, l, id)

	assert.Equal(t, []string{"Carl", "Ann", "Bob", "Dora"}, names(t, l, id, people))

	var ann wire.Object
	inWrite(t, l, id, func() {
		v, err := l.CallMethod(id, MethodCreate, wire.String("Person"), wire.Map{
			"name": wire.String("Zed"),
			"dogs": wire.Array{wire.Map{"name": wire.String("Rex")}},
		})
		require.NoError(t, err)
		ann = v.(wire.Object)
		require.NoError(t, l.SetProperty(id, ann, "age", wire.Int(5)))

		dogs := listOf(t, l, id, ann)
		require.NoError(t, l.ListSet(id, dogs, 0, wire.Map{"name": wire.String("Ace")}))
		_, err = l.ListSplice(id, dogs, 0, 0, []wire.Value{wire.Map{"name": wire.String("Bo")}})
		require.NoError(t, err)
	})
	assert.Equal(t, []string{"Bo", "Ace"}, names(t, l, id, listOf(t, l, id, ann)))

	older, err := l.Query(id, people, Query{Filter: "age > 20"})
	require.NoError(t, err)
	n, err := l.Length(id, older)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, l.BeginTransaction(id))
	require.NoError(t, l.CancelTransaction(id))
	require.NoError(t, l.CloseRealm(id))
	require.NoError(t, l.ClearTestState())
}

func TestLoop_ErrorsPassThrough(t *testing.T) {
	l, _, _ := startLoop(t, newTestMemory(t))

	err := l.BeginTransaction("missing")
	assert.True(t, IsCode(err, ErrCodeUnknownRealm))
}

func TestLoop_ConcurrentCallers(t *testing.T) {
	l, _, _ := startLoop(t, newTestMemory(t))

	const callers = 20
	var wg sync.WaitGroup
	ids := make([]RealmID, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := l.CreateRealm(RealmConfig{Path: "shared", Schema: testSet(), InMemory: true})
			assert.NoError(t, err)
			ids[i] = id
		}()
	}
	wg.Wait()

	seen := make(map[RealmID]bool)
	for _, id := range ids {
		seen[id] = true
	}
	assert.Len(t, seen, callers)
}

func TestLoop_StopRunsQueuedThenRejects(t *testing.T) {
	l, _, done := startLoop(t, newTestMemory(t))
	id := openRealm(t, l, "a")

	l.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}

	err := l.BeginTransaction(id)
	assert.True(t, IsCode(err, ErrCodeClosed))
}

func TestLoop_CancelReleasesCallers(t *testing.T) {
	l := NewLoop(newTestMemory(t), discardLogger())

	// Queue a call before the loop runs, then run with a cancelled context.
	result := make(chan error, 1)
	go func() {
		_, err := l.CreateRealm(RealmConfig{Path: "a", Schema: testSet(), InMemory: true})
		result <- err
	}()
	require.Eventually(t, func() bool { return l.queue.Len() == 1 }, 5*time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Queued calls still run before Run notices cancellation.
	err := l.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = l.CreateRealm(RealmConfig{Path: "b", Schema: testSet(), InMemory: true})
	assert.True(t, IsCode(err, ErrCodeClosed), "loop rejects calls after cancellation")

	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("caller was not released")
	}
}
