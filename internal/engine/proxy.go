package engine

import (
	"github.com/roach88/realmbind/internal/query"
	"github.com/roach88/realmbind/internal/schema"
	"github.com/roach88/realmbind/internal/wire"
)

// RealmID identifies an open realm inside an engine.
type RealmID string

// RealmConfig is the request to open a realm.
type RealmConfig struct {
	// Path names the file. Realms with the same path share data.
	Path string
	// Schema is the compiled schema. It must match an existing file.
	Schema *schema.Set
	// InMemory files are dropped when their last realm closes and are
	// never persisted.
	InMemory bool
}

// Method names a realm-level operation invoked through CallMethod.
type Method string

const (
	// MethodCreate takes (type String, values Map|Array) and returns Object.
	MethodCreate Method = "create"
	// MethodDelete takes an Object, Results, List or Array of Objects.
	MethodDelete Method = "delete"
	// MethodDeleteAll takes no arguments.
	MethodDeleteAll Method = "deleteAll"
	// MethodObjects takes (type String) and returns Results.
	MethodObjects Method = "objects"
	// MethodIsValid takes an Object and returns Bool.
	MethodIsValid Method = "isValid"
)

// Query derives a results handle from a collection.
type Query struct {
	// Filter is a query expression; empty keeps every element.
	Filter string
	// Args are the values bound to $0, $1, ... in Filter.
	Args []wire.Value
	// Sort orders the results; empty keeps the source order.
	Sort []query.SortKey
	// Snapshot freezes the result at the time of the call.
	Snapshot bool
}

// Proxy is the engine contract. Calls are synchronous; errors returned by an
// engine are *Error values.
type Proxy interface {
	CreateRealm(cfg RealmConfig) (RealmID, error)
	CloseRealm(id RealmID) error

	BeginTransaction(id RealmID) error
	CommitTransaction(id RealmID) error
	CancelTransaction(id RealmID) error

	CallMethod(id RealmID, method Method, args ...wire.Value) (wire.Value, error)

	GetProperty(id RealmID, obj wire.Object, name string) (wire.Value, error)
	SetProperty(id RealmID, obj wire.Object, name string, value wire.Value) error

	Length(id RealmID, c wire.Collection) (int, error)
	Get(id RealmID, c wire.Collection, index int) (wire.Object, error)
	Query(id RealmID, c wire.Collection, q Query) (wire.Results, error)
	ListSet(id RealmID, l wire.List, index int, value wire.Value) error
	ListSplice(id RealmID, l wire.List, start, deleteCount int, values []wire.Value) ([]wire.Object, error)

	// ReleaseResults drops a results handle returned by Query. The handle
	// returned by the objects method of a type is shared and stays valid.
	// Releasing an unknown handle is a no-op.
	ReleaseResults(id RealmID, r wire.Results) error

	// ClearTestState closes every realm and forgets every file.
	ClearTestState() error
}
