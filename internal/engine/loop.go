package engine

import (
	"context"
	"log/slog"

	"github.com/roach88/realmbind/internal/wire"
)

// Loop serializes every call to a Proxy onto the goroutine running Run.
//
// Hosts whose engine must only be touched from one thread wrap it in a
// Loop and hand the Loop to realms instead. Calls block until the loop has
// executed them.
//
// Thread-safety model:
//   - Proxy methods: safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//
// Calls made after the loop stopped, or still queued when its context was
// cancelled, fail with CLOSED.
type Loop struct {
	target Proxy
	queue  *callQueue
	logger *slog.Logger
}

// NewLoop wraps target. A nil logger means slog.Default().
func NewLoop(target Proxy, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{target: target, queue: newCallQueue(), logger: logger}
}

var _ Proxy = (*Loop)(nil)

// Run executes queued calls until ctx is cancelled or Stop is called.
// After Stop, calls already queued still run before Run returns nil.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Debug("engine loop starting")

	for {
		if c, ok := l.queue.TryDequeue(); ok {
			c.fn()
			close(c.done)
			continue
		}

		select {
		case <-ctx.Done():
			dropped := l.queue.Drain()
			for _, c := range dropped {
				c.dropped = true
				close(c.done)
			}
			l.logger.Debug("engine loop stopping: context cancelled", "dropped", len(dropped))
			return ctx.Err()

		case <-l.queue.Wait():
			// The signal channel closes with the queue.
			if l.queue.Len() == 0 && l.closed() {
				l.logger.Debug("engine loop stopping: closed")
				return nil
			}
		}
	}
}

func (l *Loop) closed() bool {
	l.queue.mu.Lock()
	defer l.queue.mu.Unlock()
	return l.queue.closed
}

// Stop closes the loop to new calls.
func (l *Loop) Stop() {
	l.queue.Close()
}

// submit runs fn on the loop goroutine and returns its results.
func submit[T any](l *Loop, fn func() (T, error)) (T, error) {
	var (
		out T
		err error
	)
	c := &call{
		fn:   func() { out, err = fn() },
		done: make(chan struct{}),
	}
	if !l.queue.Enqueue(c) {
		return out, Errorf(ErrCodeClosed, "engine loop is stopped")
	}
	<-c.done
	if c.dropped {
		return out, Errorf(ErrCodeClosed, "engine loop stopped before the call ran")
	}
	return out, err
}

func submitErr(l *Loop, fn func() error) error {
	_, err := submit(l, func() (struct{}, error) { return struct{}{}, fn() })
	return err
}

func (l *Loop) CreateRealm(cfg RealmConfig) (RealmID, error) {
	return submit(l, func() (RealmID, error) { return l.target.CreateRealm(cfg) })
}

func (l *Loop) CloseRealm(id RealmID) error {
	return submitErr(l, func() error { return l.target.CloseRealm(id) })
}

func (l *Loop) BeginTransaction(id RealmID) error {
	return submitErr(l, func() error { return l.target.BeginTransaction(id) })
}

func (l *Loop) CommitTransaction(id RealmID) error {
	return submitErr(l, func() error { return l.target.CommitTransaction(id) })
}

func (l *Loop) CancelTransaction(id RealmID) error {
	return submitErr(l, func() error { return l.target.CancelTransaction(id) })
}

func (l *Loop) CallMethod(id RealmID, method Method, args ...wire.Value) (wire.Value, error) {
	return submit(l, func() (wire.Value, error) { return l.target.CallMethod(id, method, args...) })
}

func (l *Loop) GetProperty(id RealmID, obj wire.Object, name string) (wire.Value, error) {
	return submit(l, func() (wire.Value, error) { return l.target.GetProperty(id, obj, name) })
}

func (l *Loop) SetProperty(id RealmID, obj wire.Object, name string, value wire.Value) error {
	return submitErr(l, func() error { return l.target.SetProperty(id, obj, name, value) })
}

func (l *Loop) Length(id RealmID, c wire.Collection) (int, error) {
	return submit(l, func() (int, error) { return l.target.Length(id, c) })
}

func (l *Loop) Get(id RealmID, c wire.Collection, index int) (wire.Object, error) {
	return submit(l, func() (wire.Object, error) { return l.target.Get(id, c, index) })
}

func (l *Loop) Query(id RealmID, c wire.Collection, q Query) (wire.Results, error) {
	return submit(l, func() (wire.Results, error) { return l.target.Query(id, c, q) })
}

func (l *Loop) ListSet(id RealmID, list wire.List, index int, value wire.Value) error {
	return submitErr(l, func() error { return l.target.ListSet(id, list, index, value) })
}

func (l *Loop) ListSplice(id RealmID, list wire.List, start, deleteCount int, values []wire.Value) ([]wire.Object, error) {
	return submit(l, func() ([]wire.Object, error) {
		return l.target.ListSplice(id, list, start, deleteCount, values)
	})
}

func (l *Loop) ReleaseResults(id RealmID, r wire.Results) error {
	return submitErr(l, func() error { return l.target.ReleaseResults(id, r) })
}

func (l *Loop) ClearTestState() error {
	return submitErr(l, l.target.ClearTestState)
}
