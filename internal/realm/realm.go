package realm

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/roach88/realmbind/internal/engine"
	"github.com/roach88/realmbind/internal/schema"
	"github.com/roach88/realmbind/internal/wire"
)

// DefaultPath is the file a realm opens when Config.Path is empty.
const DefaultPath = "default.realm"

// Config describes the realm to open.
type Config struct {
	// Schema lists the object types: *schema.ObjectSchema values or
	// classes created with NewClass. Required.
	Schema []schema.Definition
	// Path names the file. Realms on the same path share data.
	// Default: DefaultPath.
	Path string
	// InMemory keeps the file in memory only; it is dropped when the last
	// realm on it closes.
	InMemory bool
}

type options struct {
	engine engine.Proxy
	logger *slog.Logger
}

// Option configures Open.
type Option func(*options)

// WithEngine selects the engine. Default: engine.Default().
func WithEngine(p engine.Proxy) Option {
	return func(o *options) {
		o.engine = p
	}
}

// WithLogger sets the realm logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Realm is an open handle to one file.
//
// A Realm is meant to be used from one goroutine at a time. Handles and
// collections it returns hold no data of their own.
type Realm struct {
	engine    engine.Proxy
	logger    *slog.Logger
	path      string
	inMemory  bool
	set       *schema.Set
	classes   map[string]*Class
	accessors map[string]*accessorTable

	// mu guards id, which is cleared by Close and ClearTestState.
	mu sync.RWMutex
	id engine.RealmID

	inWrite atomic.Bool
}

// Open compiles the schema and opens a realm on the engine.
func Open(cfg Config, opts ...Option) (*Realm, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.engine == nil {
		o.engine = engine.Default()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if len(cfg.Schema) == 0 {
		return nil, newError(ErrSchema, "open", "schema is required")
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}

	set, native, err := schema.Compile(cfg.Schema)
	if err != nil {
		return nil, &Error{Kind: ErrSchema, Op: "open", Err: err}
	}
	classes := make(map[string]*Class, len(native))
	for name, def := range native {
		if c, ok := def.(*Class); ok {
			classes[name] = c
		}
	}

	id, err := o.engine.CreateRealm(engine.RealmConfig{Path: cfg.Path, Schema: set, InMemory: cfg.InMemory})
	if err != nil {
		return nil, wrapEngine("open", err)
	}

	r := &Realm{
		engine:    o.engine,
		logger:    o.logger,
		path:      cfg.Path,
		inMemory:  cfg.InMemory,
		set:       set,
		classes:   classes,
		accessors: buildAccessors(set),
		id:        id,
	}
	registry.insert(r)
	r.logger.Debug("realm opened", "realm", id, "path", cfg.Path, "types", set.Len())
	return r, nil
}

// ID returns the engine realm id, or "" once the realm is closed.
func (r *Realm) ID() engine.RealmID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.id
}

// Path returns the file path.
func (r *Realm) Path() string { return r.path }

// Schema returns the compiled schema.
func (r *Realm) Schema() *schema.Set { return r.set }

// Engine returns the engine the realm talks to.
func (r *Realm) Engine() engine.Proxy { return r.engine }

// IsClosed reports whether the realm was closed or cleared.
func (r *Realm) IsClosed() bool { return r.ID() == "" }

// IsInTransaction reports whether a Write is running on this realm.
func (r *Realm) IsInTransaction() bool { return r.inWrite.Load() }

// check fails with ErrState when the realm can no longer be used.
func (r *Realm) check(op string) error {
	if r == nil || r.IsClosed() {
		return newError(ErrState, op, "realm is closed or was never opened")
	}
	return nil
}

// sameFile reports whether other addresses the same stored objects.
func (r *Realm) sameFile(other *Realm) bool {
	return other != nil && (other == r || (other.engine == r.engine && other.path == r.path))
}

// Create stores a new object and returns its handle. values is a map keyed
// by property name or a slice in property declaration order; omitted
// properties take their defaults.
func (r *Realm) Create(typeName string, values any) (Handle, error) {
	const op = "create"
	if err := r.check(op); err != nil {
		return nil, err
	}
	// Views inside values must outlive the engine call that reads their handles.
	defer runtime.KeepAlive(values)
	v, err := r.toWire(values)
	if err != nil {
		return nil, err
	}
	switch v.(type) {
	case wire.Map, wire.Array, wire.Null:
	default:
		return nil, newError(ErrType, op, "values must be a map or a slice, got %T", values)
	}
	res, err := r.engine.CallMethod(r.ID(), engine.MethodCreate, wire.String(typeName), v)
	if err != nil {
		return nil, wrapEngine(op, err)
	}
	ref, ok := res.(wire.Object)
	if !ok {
		return nil, newError(ErrType, op, "engine returned %s, not an object", wire.KindOf(res))
	}
	return r.materialize(ref), nil
}

// Delete removes an object, every object of a *Results or *List, or every
// handle in a slice.
func (r *Realm) Delete(target any) error {
	const op = "delete"
	if err := r.check(op); err != nil {
		return err
	}
	defer runtime.KeepAlive(target)
	v, err := r.toWire(target)
	if err != nil {
		return err
	}
	_, err = r.engine.CallMethod(r.ID(), engine.MethodDelete, v)
	return wrapEngine(op, err)
}

// DeleteAll removes every object in the file.
func (r *Realm) DeleteAll() error {
	const op = "delete all"
	if err := r.check(op); err != nil {
		return err
	}
	_, err := r.engine.CallMethod(r.ID(), engine.MethodDeleteAll)
	return wrapEngine(op, err)
}

// Objects returns the live results of every object of a type.
func (r *Realm) Objects(typeName string) (*Results, error) {
	const op = "objects"
	if err := r.check(op); err != nil {
		return nil, err
	}
	v, err := r.engine.CallMethod(r.ID(), engine.MethodObjects, wire.String(typeName))
	if err != nil {
		return nil, wrapEngine(op, err)
	}
	handle, ok := v.(wire.Results)
	if !ok {
		return nil, newError(ErrType, op, "engine returned %s, not results", wire.KindOf(v))
	}
	return &Results{collection{realm: r, handle: handle}}, nil
}

// Close closes the realm. An open write transaction is cancelled by the
// engine. Closing twice is a no-op.
func (r *Realm) Close() error {
	r.mu.Lock()
	id := r.id
	r.id = ""
	r.mu.Unlock()
	if id == "" {
		return nil
	}
	registry.remove(r)

	err := r.engine.CloseRealm(id)
	if engine.IsCode(err, engine.ErrCodeUnknownRealm) {
		err = nil
	}
	r.logger.Debug("realm closed", "realm", id, "path", r.path)
	return wrapEngine("close", err)
}

// invalidate clears the realm id without calling the engine.
func (r *Realm) invalidate() {
	r.mu.Lock()
	r.id = ""
	r.mu.Unlock()
}

// Write runs fn inside a write transaction. The transaction commits when fn
// returns nil. When fn returns an error or panics, the transaction is
// cancelled and the error is returned unchanged (the panic is re-raised).
func (r *Realm) Write(fn func() error) error {
	const op = "write"
	if err := r.check(op); err != nil {
		return err
	}
	if !r.inWrite.CompareAndSwap(false, true) {
		return newError(ErrTransaction, op, "the realm is already in a write transaction")
	}
	defer r.inWrite.Store(false)

	id := r.ID()
	if err := r.engine.BeginTransaction(id); err != nil {
		return wrapEngine(op, err)
	}
	r.logger.Debug("transaction begun", "realm", id, "path", r.path)

	finished := false
	defer func() {
		if finished {
			return
		}
		// fn returned an error, panicked or called runtime.Goexit.
		p := recover()
		if cerr := r.engine.CancelTransaction(id); cerr != nil && !engine.IsCode(cerr, engine.ErrCodeUnknownRealm) {
			r.logger.Error("cancel transaction failed", "realm", id, "path", r.path, "error", cerr)
		} else {
			r.logger.Debug("transaction cancelled", "realm", id, "path", r.path)
		}
		if p != nil {
			panic(p)
		}
	}()

	if err := fn(); err != nil {
		return err
	}

	// A failed commit has already discarded the transaction.
	finished = true
	if err := r.engine.CommitTransaction(id); err != nil {
		r.logger.Error("commit failed", "realm", id, "path", r.path, "error", err)
		return wrapEngine("commit", err)
	}
	r.logger.Debug("transaction committed", "realm", id, "path", r.path)
	return nil
}
