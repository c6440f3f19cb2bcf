package engine

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/roach88/realmbind/internal/schema"
	"github.com/roach88/realmbind/internal/store"
	"github.com/roach88/realmbind/internal/wire"
)

// Persister stores committed files. *store.Store implements it.
type Persister interface {
	Load(ctx context.Context, path string) (*store.Snapshot, bool, error)
	Save(ctx context.Context, snap *store.Snapshot) error
	Delete(ctx context.Context, path string) error
}

// Memory is the reference engine. It keeps every file in memory and, when
// a Persister is configured, writes each commit through to it.
//
// Thread-safety: every method takes the engine mutex, so a Memory may be
// shared freely. Transactions are still per realm.
type Memory struct {
	mu        sync.Mutex
	files     map[string]*file
	realms    map[RealmID]*realmState
	ids       IDGenerator
	persister Persister
	logger    *slog.Logger
	gen       int64
}

// file is the shared state behind every realm opened on one path.
type file struct {
	path      string
	hash      string
	inMemory  bool
	clock     *Clock
	version   int64
	committed *dataset
	working   *dataset
	writer    RealmID
	refs      int
}

type realmState struct {
	id          RealmID
	file        *file
	set         *schema.Set
	results     map[int64]*resultsState
	nextResults int64
	// typeResults holds the one shared handle per object type.
	typeResults map[string]wire.Results
}

// MemoryOption configures a Memory engine.
type MemoryOption func(*Memory)

// WithPersister writes every commit of a non in-memory file to p and loads
// files from p when they are first opened.
func WithPersister(p Persister) MemoryOption {
	return func(m *Memory) {
		m.persister = p
	}
}

// WithLogger sets the engine logger. Default: slog.Default().
func WithLogger(l *slog.Logger) MemoryOption {
	return func(m *Memory) {
		m.logger = l
	}
}

// WithIDGenerator sets the realm id generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) MemoryOption {
	return func(m *Memory) {
		m.ids = g
	}
}

// NewMemory creates an empty engine.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		files:  make(map[string]*file),
		realms: make(map[RealmID]*realmState),
		ids:    UUIDv7Generator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var _ Proxy = (*Memory)(nil)

func (m *Memory) nextGen() int64 {
	m.gen++
	return m.gen
}

// realm returns the state of an open realm.
func (m *Memory) realm(id RealmID) (*realmState, error) {
	rs, ok := m.realms[id]
	if !ok {
		return nil, &Error{Code: ErrCodeUnknownRealm, Message: "realm is not open", Realm: id}
	}
	return rs, nil
}

// view is the dataset a realm reads: its working copy while it holds the
// write transaction, the committed state otherwise.
func (rs *realmState) view() *dataset {
	if rs.file.writer == rs.id {
		return rs.file.working
	}
	return rs.file.committed
}

// writing returns a txn over the realm's working copy.
func (m *Memory) writing(rs *realmState) (*txn, error) {
	if rs.file.writer != rs.id {
		return nil, &Error{Code: ErrCodeNotInTransaction, Message: "cannot modify managed objects outside of a write transaction", Realm: rs.id}
	}
	return &txn{
		ds:    rs.file.working,
		clock: rs.file.clock,
		results: func(r wire.Results) ([]int64, error) {
			res, err := rs.lookupResults(r)
			if err != nil {
				return nil, err
			}
			return res.ids(rs.file.working)
		},
	}, nil
}

// CreateRealm opens a realm on cfg.Path, loading the file from the
// persister on first use.
func (m *Memory) CreateRealm(cfg RealmConfig) (RealmID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cfg.Schema == nil {
		return "", Errorf(ErrCodeSchemaMismatch, "schema is required")
	}
	hash, err := cfg.Schema.Hash()
	if err != nil {
		return "", Errorf(ErrCodeSchemaMismatch, "hash schema: %v", err)
	}

	f, ok := m.files[cfg.Path]
	if !ok {
		if f, err = m.openFile(cfg, hash); err != nil {
			return "", err
		}
		m.files[cfg.Path] = f
	}
	if f.hash != hash {
		return "", Errorf(ErrCodeSchemaMismatch, "%s was created with a different schema", cfg.Path)
	}

	id := RealmID(m.ids.Generate())
	m.realms[id] = &realmState{
		id:          id,
		file:        f,
		set:         cfg.Schema,
		results:     make(map[int64]*resultsState),
		typeResults: make(map[string]wire.Results),
	}
	f.refs++

	m.logger.Debug("realm opened",
		"realm", id,
		"path", cfg.Path,
		"in_memory", f.inMemory,
		"objects", len(f.committed.objects),
	)
	return id, nil
}

func (m *Memory) openFile(cfg RealmConfig, hash string) (*file, error) {
	f := &file{path: cfg.Path, hash: hash, inMemory: cfg.InMemory}
	if m.persister != nil && !cfg.InMemory {
		snap, found, err := m.persister.Load(context.Background(), cfg.Path)
		if err != nil {
			m.logger.Error("load file failed", "path", cfg.Path, "error", err)
			return nil, Errorf(ErrCodePersistence, "load %s: %v", cfg.Path, err)
		}
		if found {
			if snap.SchemaHash != hash {
				return nil, Errorf(ErrCodeSchemaMismatch, "%s was created with a different schema", cfg.Path)
			}
			f.clock = NewClockAt(snap.NextID)
			f.version = snap.Version
			f.committed = loadDataset(m.nextGen(), cfg.Schema, snap)
			return f, nil
		}
	}
	f.clock = NewClock()
	f.committed = newDataset(m.nextGen(), cfg.Schema)
	return f, nil
}

// CloseRealm closes a realm, cancelling its open transaction. In-memory
// files are dropped with their last realm.
func (m *Memory) CloseRealm(id RealmID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rs, err := m.realm(id)
	if err != nil {
		return err
	}
	f := rs.file
	if f.writer == id {
		m.logger.Debug("transaction cancelled by close", "realm", id, "path", f.path)
		f.working, f.writer = nil, ""
	}
	delete(m.realms, id)
	f.refs--
	if f.refs == 0 && f.inMemory {
		delete(m.files, f.path)
	}
	m.logger.Debug("realm closed", "realm", id, "path", f.path)
	return nil
}

// BeginTransaction starts a write transaction. Only one realm per file may
// write at a time.
func (m *Memory) BeginTransaction(id RealmID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rs, err := m.realm(id)
	if err != nil {
		return err
	}
	f := rs.file
	switch f.writer {
	case "":
	case id:
		return &Error{Code: ErrCodeNestedTransaction, Message: "the realm is already in a write transaction", Realm: id}
	default:
		return &Error{Code: ErrCodeBusy, Message: f.path + " is being written by another realm", Realm: id}
	}
	f.working = f.committed.clone(m.nextGen())
	f.writer = id
	m.logger.Debug("transaction begun", "realm", id, "path", f.path)
	return nil
}

// CommitTransaction publishes the working copy. A persistence failure
// discards the transaction.
func (m *Memory) CommitTransaction(id RealmID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rs, err := m.realm(id)
	if err != nil {
		return err
	}
	f := rs.file
	if f.writer != id {
		return &Error{Code: ErrCodeNotInTransaction, Message: "no write transaction to commit", Realm: id}
	}
	ds := f.working
	f.working, f.writer = nil, ""

	if m.persister != nil && !f.inMemory {
		snap := ds.snapshot(f.path, f.hash, f.clock.Current(), f.version+1)
		if err := m.persister.Save(context.Background(), snap); err != nil {
			m.logger.Error("commit persistence failed",
				"realm", id,
				"path", f.path,
				"error", err,
			)
			return &Error{Code: ErrCodePersistence, Message: err.Error(), Realm: id}
		}
	}
	f.committed = ds
	f.version++
	m.logger.Debug("transaction committed",
		"realm", id,
		"path", f.path,
		"version", f.version,
		"objects", len(ds.objects),
	)
	return nil
}

// CancelTransaction discards the working copy.
func (m *Memory) CancelTransaction(id RealmID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rs, err := m.realm(id)
	if err != nil {
		return err
	}
	f := rs.file
	if f.writer != id {
		return &Error{Code: ErrCodeNotInTransaction, Message: "no write transaction to cancel", Realm: id}
	}
	f.working, f.writer = nil, ""
	m.logger.Debug("transaction cancelled", "realm", id, "path", f.path)
	return nil
}

// CallMethod dispatches a realm-level method.
func (m *Memory) CallMethod(id RealmID, method Method, args ...wire.Value) (wire.Value, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rs, err := m.realm(id)
	if err != nil {
		return nil, err
	}

	switch method {
	case MethodCreate:
		if len(args) < 1 || len(args) > 2 {
			return nil, Errorf(ErrCodeTypeMismatch, "create takes a type and optional values")
		}
		typ, ok := args[0].(wire.String)
		if !ok {
			return nil, Errorf(ErrCodeTypeMismatch, "create: type must be a string, got %s", wire.KindOf(args[0]))
		}
		t, err := m.writing(rs)
		if err != nil {
			return nil, err
		}
		var values wire.Value = wire.Null{}
		if len(args) == 2 {
			values = args[1]
		}
		var rec *record
		err = t.atomically(func() (err error) {
			rec, err = t.create(string(typ), values)
			return err
		})
		if err != nil {
			return nil, err
		}
		return wire.Object{Type: rec.typ, ID: rec.id}, nil

	case MethodDelete:
		if len(args) != 1 {
			return nil, Errorf(ErrCodeTypeMismatch, "delete takes one argument")
		}
		t, err := m.writing(rs)
		if err != nil {
			return nil, err
		}
		ids, err := rs.deleteTargets(t.ds, args[0])
		if err != nil {
			return nil, err
		}
		t.delete(ids)
		return wire.Null{}, nil

	case MethodDeleteAll:
		t, err := m.writing(rs)
		if err != nil {
			return nil, err
		}
		t.ds.clear()
		return wire.Null{}, nil

	case MethodObjects:
		if len(args) != 1 {
			return nil, Errorf(ErrCodeTypeMismatch, "objects takes a type")
		}
		typ, ok := args[0].(wire.String)
		if !ok {
			return nil, Errorf(ErrCodeTypeMismatch, "objects: type must be a string, got %s", wire.KindOf(args[0]))
		}
		if _, ok := rs.set.Get(string(typ)); !ok {
			return nil, Errorf(ErrCodeUnknownType, "unknown object type %q", typ)
		}
		if h, ok := rs.typeResults[string(typ)]; ok {
			return h, nil
		}
		h := rs.newResults(&resultsState{objectType: string(typ), typ: string(typ)})
		rs.typeResults[string(typ)] = h
		return h, nil

	case MethodIsValid:
		if len(args) != 1 {
			return nil, Errorf(ErrCodeTypeMismatch, "isValid takes an object")
		}
		ref, ok := args[0].(wire.Object)
		if !ok {
			return wire.Bool(false), nil
		}
		_, exists := rs.view().lookup(ref)
		return wire.Bool(exists), nil
	}
	return nil, Errorf(ErrCodeTypeMismatch, "unknown method %q", method)
}

// deleteTargets resolves a delete argument to object ids.
func (rs *realmState) deleteTargets(ds *dataset, target wire.Value) ([]int64, error) {
	switch val := target.(type) {
	case wire.Object:
		if _, ok := ds.lookup(val); !ok {
			return nil, Errorf(ErrCodeInvalidObject, "%s was already deleted", val)
		}
		return []int64{val.ID}, nil
	case wire.Results:
		res, err := rs.lookupResults(val)
		if err != nil {
			return nil, err
		}
		ids, err := res.ids(ds)
		if err != nil {
			return nil, err
		}
		return append([]int64(nil), ids...), nil
	case wire.List:
		owner, ok := ds.lookup(val.Owner)
		if !ok {
			return nil, Errorf(ErrCodeInvalidObject, "list owner %s was deleted", val.Owner)
		}
		return listIDs(owner.values[val.Property]), nil
	case wire.Array:
		ids := make([]int64, 0, len(val))
		for _, e := range val {
			sub, err := rs.deleteTargets(ds, e)
			if err != nil {
				return nil, err
			}
			ids = append(ids, sub...)
		}
		return ids, nil
	}
	return nil, Errorf(ErrCodeTypeMismatch, "cannot delete %s", wire.KindOf(target))
}

// GetProperty reads one property. List properties return a wire.List
// handle rather than their contents.
func (m *Memory) GetProperty(id RealmID, obj wire.Object, name string) (wire.Value, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rs, err := m.realm(id)
	if err != nil {
		return nil, err
	}
	rec, ok := rs.view().lookup(obj)
	if !ok {
		return nil, Errorf(ErrCodeInvalidObject, "%s has been deleted", obj)
	}
	os, _ := rs.set.Get(obj.Type)
	p, ok := os.Property(name)
	if !ok {
		return nil, Errorf(ErrCodeUnknownProperty, "%s has no property %q", obj.Type, name)
	}
	if p.Type == schema.List {
		return wire.List{Owner: obj, Property: name, ObjectType: p.ObjectType}, nil
	}
	v, ok := rec.values[name]
	if !ok || v == nil {
		return wire.Null{}, nil
	}
	return v, nil
}

// SetProperty writes one property inside a write transaction.
func (m *Memory) SetProperty(id RealmID, obj wire.Object, name string, value wire.Value) error {
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
	rec, ok := t.ds.lookup(obj)
	if !ok {
		return Errorf(ErrCodeInvalidObject, "%s has been deleted", obj)
	}
	os, _ := rs.set.Get(obj.Type)
	p, ok := os.Property(name)
	if !ok {
		return Errorf(ErrCodeUnknownProperty, "%s has no property %q", obj.Type, name)
	}
	return t.atomically(func() error { return t.set(os, rec, p, value) })
}

// ClearTestState closes every realm and forgets every file, deleting
// persisted copies of the files this engine opened.
func (m *Memory) ClearTestState() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	if m.persister != nil {
		for path, f := range m.files {
			if f.inMemory {
				continue
			}
			if err := m.persister.Delete(context.Background(), path); err != nil {
				errs = append(errs, err)
			}
		}
	}
	m.files = make(map[string]*file)
	m.realms = make(map[RealmID]*realmState)
	m.logger.Debug("engine state cleared")
	if err := errors.Join(errs...); err != nil {
		return Errorf(ErrCodePersistence, "clear: %v", err)
	}
	return nil
}

// Paths lists the paths of the files currently held in memory.
func (m *Memory) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Sorted(maps.Keys(m.files))
}
